// Package apiclient talks to the study platform API. It attaches the stored bearer
// token to every call, renews it through the refresh endpoint when the server
// answers 401, and retries the call once with the new token.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dgellow/cpa-front/internal/ioutil"
	"github.com/dgellow/cpa-front/internal/log"
	"github.com/dgellow/cpa-front/internal/session"
	"github.com/dgellow/cpa-front/internal/storage"
	"github.com/dgellow/cpa-front/internal/urlutil"
)

// Client is safe for concurrent use. All goroutines share one credential store, and
// refreshes that overlap are coalesced into a single request to the refresh endpoint.
type Client struct {
	baseURL     string
	store       storage.Store
	httpClient  *http.Client
	refreshPath string
	userAgent   string
	maxBodySize int64
	limiter     *rate.Limiter
	onExpired   func(ctx context.Context, reason error)

	refreshGroup singleflight.Group
}

// pendingRequest is everything needed to send a call again after a refresh
type pendingRequest struct {
	method    string
	url       string
	body      []byte
	json      bool
	anonymous bool
	requestID string
}

// New creates a client for baseURL that reads and writes credentials through store
func New(baseURL string, store storage.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		store:       store,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		refreshPath: DefaultRefreshPath,
		userAgent:   defaultUserAgent,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root every relative path is resolved against
func (c *Client) BaseURL() string { return c.baseURL }

// Store returns the credential store
func (c *Client) Store() storage.Store { return c.store }

// Get issues a GET and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE and decodes the response into out
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// GetJSON returns the generic decoded payload of a GET. An empty or non-JSON body
// yields nil.
func (c *Client) GetJSON(ctx context.Context, path string) (any, error) {
	var out any
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Do performs a JSON call. A nil out discards the response. A 2xx response whose body
// is empty or not JSON leaves out untouched.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, false)
}

// DoAnonymous performs a JSON call without credentials. A 401 is returned as an
// HTTPError like any other status: no refresh, no retry, no session-expired callback.
// Sign-in endpoints use it, where a 401 means wrong credentials.
func (c *Client) DoAnonymous(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, true)
}

// PostAnonymous is DoAnonymous with POST
func (c *Client) PostAnonymous(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, anonymous bool) error {
	req := pendingRequest{
		method:    method,
		url:       urlutil.Resolve(c.baseURL, path),
		json:      true,
		anonymous: anonymous,
		requestID: uuid.NewString(),
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		req.body = payload
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, parsed, err := c.readBody(req, resp)
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return NewHTTPError(resp.StatusCode, parsed)
	}
	if out == nil || parsed == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}

// Download fetches a file. Absolute URLs are treated as pre-signed: they are sent
// without credentials and never trigger a refresh. On success the raw response is
// returned and the caller must close its body.
func (c *Client) Download(ctx context.Context, path string) (*http.Response, error) {
	req := pendingRequest{
		method:    http.MethodGet,
		url:       urlutil.Resolve(c.baseURL, path),
		anonymous: urlutil.IsAbsolute(path),
		requestID: uuid.NewString(),
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if isSuccess(resp.StatusCode) {
		return resp, nil
	}

	defer resp.Body.Close()
	_, parsed, err := c.readBody(req, resp)
	if err != nil {
		return nil, err
	}
	return nil, NewHTTPError(resp.StatusCode, parsed)
}

// RefreshToken exchanges the stored refresh token for a new access token and stores
// it. On failure both tokens are cleared, except when there was no refresh token to
// begin with or the refresh was cut short by a deadline.
//
// The exchange is shared by every caller that overlaps with it and runs detached from
// their contexts, bounded by the client timeout. A caller whose ctx ends first gets a
// NetworkError wrapping ctx.Err() while the exchange completes for the others.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		return c.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return "", &NetworkError{
			Method: http.MethodPost,
			URL:    redact(urlutil.Resolve(c.baseURL, c.refreshPath)),
			Err:    ctx.Err(),
		}
	case res := <-ch:
		if res.Shared {
			log.LogTraceWithFields("apiclient", "Joined in-flight token refresh", nil)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refreshTimeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return defaultTimeout
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken, err := session.RefreshToken(ctx, c.store)
	if err != nil {
		return "", &RefreshError{Err: err}
	}
	if refreshToken == "" {
		return "", &RefreshError{Err: ErrNoRefreshToken}
	}

	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", c.failRefresh(ctx, err)
	}
	req := pendingRequest{
		method:    http.MethodPost,
		url:       urlutil.Resolve(c.baseURL, c.refreshPath),
		body:      payload,
		json:      true,
		anonymous: true,
		requestID: uuid.NewString(),
	}

	resp, err := c.attempt(ctx, req, "", 1)
	if err != nil {
		return "", c.failRefresh(ctx, err)
	}
	defer resp.Body.Close()

	data, parsed, err := c.readBody(req, resp)
	if err != nil {
		return "", c.failRefresh(ctx, err)
	}
	if !isSuccess(resp.StatusCode) {
		return "", c.failRefresh(ctx, NewHTTPError(resp.StatusCode, parsed))
	}

	var tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if parsed != nil {
		if err := json.Unmarshal(data, &tokens); err != nil {
			return "", c.failRefresh(ctx, fmt.Errorf("failed to decode refresh response: %w", err))
		}
	}
	if tokens.Access == "" {
		return "", c.failRefresh(ctx, errors.New("refresh response carries no access token"))
	}

	if err := session.SaveAccess(ctx, c.store, tokens.Access); err != nil {
		return "", c.failRefresh(ctx, err)
	}
	if tokens.Refresh != "" && tokens.Refresh != refreshToken {
		if err := c.store.Set(ctx, session.RefreshTokenKey, tokens.Refresh); err != nil {
			return "", c.failRefresh(ctx, err)
		}
	}

	log.LogDebugWithFields("apiclient", "Access token refreshed", map[string]any{
		"rotated": tokens.Refresh != "" && tokens.Refresh != refreshToken,
	})
	return tokens.Access, nil
}

func (c *Client) failRefresh(ctx context.Context, cause error) error {
	if interrupted(cause) {
		log.LogWarnWithFields("apiclient", "Token refresh interrupted, keeping session", map[string]any{
			"error": cause.Error(),
		})
		return cause
	}
	if err := session.Clear(ctx, c.store); err != nil {
		log.LogErrorWithFields("apiclient", "Failed to clear session after refresh failure", map[string]any{
			"error": err.Error(),
		})
	}
	log.LogWarnWithFields("apiclient", "Token refresh failed", map[string]any{
		"error": cause.Error(),
	})
	return &RefreshError{Err: cause}
}

// interrupted reports whether err comes from a cancelled or expired context rather
// than from the server rejecting the request
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// send runs the credential sequence for one logical call: an optional refresh when
// only a refresh token is stored, the first attempt, and at most one retry after a
// 401. The returned response is never a 401 for credentialed requests.
func (c *Client) send(ctx context.Context, req pendingRequest) (*http.Response, error) {
	if req.anonymous {
		return c.attempt(ctx, req, "", 1)
	}

	creds, err := session.Load(ctx, c.store)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	refreshed := false
	if creds.Access == "" && creds.HasRefresh() {
		log.LogDebugWithFields("apiclient", "No access token stored, refreshing before request", map[string]any{
			"request_id": req.requestID,
		})
		access, err := c.RefreshToken(ctx)
		if err != nil {
			c.expireUnlessInterrupted(ctx, err)
			return nil, err
		}
		creds.Access = access
		refreshed = true
	}

	resp, err := c.attempt(ctx, req, creds.Access, 1)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if refreshed {
		return nil, c.rejected(ctx, req, resp)
	}

	current, err := session.Load(ctx, c.store)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var access string
	switch {
	case current.Access != "" && current.Access != creds.Access:
		// another call refreshed while this one was in flight
		drain(resp)
		access = current.Access
	case !current.HasRefresh():
		return nil, c.rejected(ctx, req, resp)
	default:
		drain(resp)
		access, err = c.RefreshToken(ctx)
		if err != nil {
			c.expireUnlessInterrupted(ctx, err)
			return nil, err
		}
	}

	resp, err = c.attempt(ctx, req, access, 2)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, c.rejected(ctx, req, resp)
	}
	return resp, nil
}

// rejected turns a final 401 into an HTTPError and fires the session-expired callback
func (c *Client) rejected(ctx context.Context, req pendingRequest, resp *http.Response) error {
	defer resp.Body.Close()
	_, parsed, err := c.readBody(req, resp)
	if err != nil {
		return err
	}
	httpErr := NewHTTPError(resp.StatusCode, parsed)
	c.expire(ctx, httpErr)
	return httpErr
}

func (c *Client) expireUnlessInterrupted(ctx context.Context, reason error) {
	if interrupted(reason) {
		return
	}
	c.expire(ctx, reason)
}

func (c *Client) expire(ctx context.Context, reason error) {
	log.LogInfoWithFields("apiclient", "Session expired", map[string]any{
		"reason": reason.Error(),
	})
	if c.onExpired != nil {
		c.onExpired(ctx, reason)
	}
}

func (c *Client) attempt(ctx context.Context, req pendingRequest, access string, n int) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Method: req.method, URL: redact(req.url), Err: err}
		}
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if req.json {
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
	}
	if !req.anonymous {
		if access != "" {
			httpReq.Header.Set("Authorization", "Bearer "+access)
		}
		httpReq.Header.Set("X-Request-ID", req.requestID)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	log.LogDebugWithFields("apiclient", "Sending request", map[string]any{
		"method":     req.method,
		"url":        redact(req.url),
		"attempt":    n,
		"request_id": req.requestID,
	})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: req.method, URL: redact(req.url), Err: err}
	}

	log.LogTraceWithFields("apiclient", "Received response", map[string]any{
		"status":     resp.StatusCode,
		"request_id": req.requestID,
	})
	return resp, nil
}

// readBody reads a bounded body and parses it as JSON. Empty or non-JSON bodies
// parse to nil.
func (c *Client) readBody(req pendingRequest, resp *http.Response) ([]byte, any, error) {
	data, err := ioutil.ReadAll(resp.Body, c.maxBodySize)
	if errors.Is(err, ioutil.ErrBodyTooLarge) {
		return nil, nil, fmt.Errorf("failed to read response from %s %s: %w", req.method, redact(req.url), err)
	}
	if err != nil {
		return nil, nil, &NetworkError{Method: req.method, URL: redact(req.url), Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return data, nil, nil
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return data, nil, nil
	}
	return data, parsed, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// redact drops the query string, which carries the signature of pre-signed URLs
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
