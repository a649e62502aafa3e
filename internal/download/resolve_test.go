package download

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/ioutil"
)

func response(status int, contentType, disposition, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if disposition != "" {
		h.Set("Content-Disposition", disposition)
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func TestResolveRedirect(t *testing.T) {
	resp := response(200, "application/json; charset=utf-8", "", `{"download_url":"https://bucket.example/x.pdf?sig=1"}`)

	res, err := Resolve(resp, "/materials/7/download/")
	require.NoError(t, err)
	assert.True(t, res.IsRedirect())
	assert.Equal(t, "https://bucket.example/x.pdf?sig=1", res.RedirectURL)
	assert.Nil(t, res.Data)
}

func TestResolveJSONWithoutURL(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error key", 200, `{"error":"File not available"}`, "File not available"},
		{"message key", 202, `{"message":"Still processing"}`, "Still processing"},
		{"nothing useful", 200, `{}`, "download failed: response has no download URL"},
		{"invalid json", 200, `not json`, "download failed: response has no download URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(response(tt.status, "application/json", "", tt.body), "/materials/7/download/")
			var httpErr *apiclient.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.Status())
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestResolveBinary(t *testing.T) {
	res, err := Resolve(response(200, "application/pdf", `attachment; filename="Unit 3 notes.pdf"`, "%PDF"), "/materials/7/download/")
	require.NoError(t, err)
	assert.False(t, res.IsRedirect())
	assert.Equal(t, "Unit 3 notes.pdf", res.Filename)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, []byte("%PDF"), res.Data)
}

func TestResolveOversizedBinary(t *testing.T) {
	_, err := resolve(response(200, "application/pdf", "", "%PDF-1.4 and more"), "/materials/7/download/", 4)
	require.ErrorIs(t, err, ioutil.ErrBodyTooLarge)

	var netErr *apiclient.NetworkError
	assert.False(t, errors.As(err, &netErr))
	assert.NotContains(t, err.Error(), "check your connection")
}

func TestResolveEmptyBinary(t *testing.T) {
	_, err := Resolve(response(200, "application/octet-stream", "", ""), "/materials/7/download/")
	var empty *apiclient.EmptyPayloadError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "/materials/7/download/", empty.URL)
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		path        string
		want        string
	}{
		{"quoted", `attachment; filename="far.pdf"`, "/x/", "far.pdf"},
		{"bare", `attachment; filename=far.pdf`, "/x/", "far.pdf"},
		{"encoded", `attachment; filename*=UTF-8''r%C3%A9sum%C3%A9%20v2.pdf`, "/x/", "résumé v2.pdf"},
		{"first match wins", `attachment; filename="plain.pdf"; filename*=UTF-8''fancy.pdf`, "/x/", "plain.pdf"},
		{"bad escape kept", `attachment; filename="100%.pdf"`, "/x/", "100%.pdf"},
		{"path fallback", "", "/media/materials/reg.pdf?token=1", "reg.pdf"},
		{"trailing slash", "", "/materials/7/download/", "download"},
		{"nothing", "", "/", DefaultFilename},
		{"empty", "inline", "", DefaultFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.disposition, tt.path))
		})
	}
}
