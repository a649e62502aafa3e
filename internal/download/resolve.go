// Package download turns API download responses into files on disk. A response is
// either the file itself or a JSON instruction pointing at a pre-signed storage URL.
package download

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/ioutil"
	"github.com/dgellow/cpa-front/internal/urlutil"
)

// DefaultFilename is used when neither the response nor the request path names the file
const DefaultFilename = "download"

// MaxFileSize bounds how much of a binary download is held in memory
const MaxFileSize = 512 << 20

const maxInstructionSize = 1 << 20

var dispositionFilename = regexp.MustCompile(`filename\*?=(?:UTF-8'')?"?([^";]+)"?`)

// Result is a resolved download: file bytes or a URL to go to instead
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
	RedirectURL string
}

// IsRedirect reports whether the server sent a pre-signed URL rather than the file
func (r *Result) IsRedirect() bool { return r.RedirectURL != "" }

// Resolve reads a successful download response. JSON bodies must carry a
// download_url; anything else in JSON is reported as an error. Every other content
// type is the file itself and must not be empty. The body is consumed but not closed.
func Resolve(resp *http.Response, requestPath string) (*Result, error) {
	return resolve(resp, requestPath, MaxFileSize)
}

func resolve(resp *http.Response, requestPath string, maxSize int64) (*Result, error) {
	contentType := resp.Header.Get("Content-Type")

	if isJSON(contentType) {
		data, err := readBody(resp, requestPath, maxInstructionSize)
		if err != nil {
			return nil, err
		}
		var body any
		if err := json.Unmarshal(data, &body); err != nil {
			body = nil
		}
		if m, ok := body.(map[string]any); ok {
			if u, ok := m["download_url"].(string); ok && u != "" {
				return &Result{RedirectURL: u, ContentType: contentType}, nil
			}
		}
		httpErr := apiclient.NewHTTPError(resp.StatusCode, body)
		if httpErr.Detail == "" {
			httpErr.Detail = "download failed: response has no download URL"
		}
		return nil, httpErr
	}

	data, err := readBody(resp, requestPath, maxSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &apiclient.EmptyPayloadError{URL: requestPath}
	}

	return &Result{
		Filename:    Filename(resp.Header.Get("Content-Disposition"), requestPath),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// readBody keeps transport failures in the NetworkError taxonomy; an oversized body is
// not a connection problem
func readBody(resp *http.Response, requestPath string, limit int64) ([]byte, error) {
	data, err := ioutil.ReadAll(resp.Body, limit)
	if errors.Is(err, ioutil.ErrBodyTooLarge) {
		return nil, fmt.Errorf("failed to read download %s: %w", requestPath, err)
	}
	if err != nil {
		return nil, &apiclient.NetworkError{Method: http.MethodGet, URL: requestPath, Err: err}
	}
	return data, nil
}

// Filename picks the name from a Content-Disposition header, falling back to the last
// segment of the request path and then to DefaultFilename.
func Filename(disposition, requestPath string) string {
	if m := dispositionFilename.FindStringSubmatch(disposition); m != nil {
		name := strings.TrimSpace(m[1])
		if decoded, err := url.PathUnescape(name); err == nil {
			name = decoded
		}
		if name != "" {
			return name
		}
	}
	if seg := urlutil.LastSegment(requestPath); seg != "" {
		return seg
	}
	return DefaultFilename
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
