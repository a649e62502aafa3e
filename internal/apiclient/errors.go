package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated matches every failure that means the user must sign in again:
	// a final 401, a missing refresh token, or a failed refresh.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoRefreshToken is wrapped by RefreshError when nothing is stored to refresh with
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// NetworkError is a transport-level failure: the request never produced an HTTP
// response. Its status is conventionally 0.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error - please check your connection (%s %s): %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Status always returns 0
func (e *NetworkError) Status() int { return 0 }

// HTTPError is a non-2xx response. Body holds the parsed JSON error payload, or nil
// when the body was empty or not JSON.
type HTTPError struct {
	StatusCode int
	Body       any
	Detail     string
}

// NewHTTPError builds an HTTPError, taking the message from the body when it has one
func NewHTTPError(status int, body any) *HTTPError {
	return &HTTPError{StatusCode: status, Body: body, Detail: detailFrom(body)}
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d Error", e.StatusCode)
}

// Status returns the HTTP status code
func (e *HTTPError) Status() int { return e.StatusCode }

// Is makes every 401 match ErrUnauthenticated
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthenticated && e.StatusCode == http.StatusUnauthorized
}

// FieldErrors returns per-field validation messages from a body shaped like
// {"email": ["already taken"], "password": ["too short"]}. Non-list values and the
// detail key are skipped.
func (e *HTTPError) FieldErrors() map[string][]string {
	m, ok := e.Body.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string)
	for field, raw := range m {
		if field == "detail" {
			continue
		}
		switch v := raw.(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out[field] = append(out[field], s)
				}
			}
		case string:
			out[field] = append(out[field], v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// RefreshError means the session could not be renewed
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("session refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool { return target == ErrUnauthenticated }

// EmptyPayloadError is a binary download that arrived with zero bytes
type EmptyPayloadError struct {
	URL string
}

func (e *EmptyPayloadError) Error() string {
	return fmt.Sprintf("downloaded file is empty, please retry: %s", e.URL)
}

// StatusOf returns the HTTP status carried by err: the response status for
// HTTPError, 0 for NetworkError, and -1 for anything else.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return 0
	}
	return -1
}

func detailFrom(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
