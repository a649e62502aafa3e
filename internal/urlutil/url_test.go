package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAbsolute(t *testing.T) {
	assert.True(t, IsAbsolute("https://bucket.s3.amazonaws.com/a.pdf?X-Amz-Signature=abc"))
	assert.True(t, IsAbsolute("http://localhost:9000/file"))
	assert.False(t, IsAbsolute("/materials/3/download/"))
	assert.False(t, IsAbsolute("materials/3"))
	assert.False(t, IsAbsolute("ftp://example.com/file"))
	assert.False(t, IsAbsolute("https://"))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{"plain path", "http://localhost:8000/api", "/subjects/", "http://localhost:8000/api/subjects/"},
		{"base trailing slash", "http://localhost:8000/api/", "/subjects/", "http://localhost:8000/api/subjects/"},
		{"query kept", "http://localhost:8000/api", "/materials/?unit=3&search=tax", "http://localhost:8000/api/materials/?unit=3&search=tax"},
		{"no leading slash", "http://localhost:8000/api", "auth/login/", "http://localhost:8000/api/auth/login/"},
		{"absolute passthrough", "http://localhost:8000/api", "https://cdn.example.com/x.pdf", "https://cdn.example.com/x.pdf"},
		{"empty ref", "http://localhost:8000/api", "", "http://localhost:8000/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.base, tt.ref))
		})
	}
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "download", LastSegment("/materials/12/download/"))
	assert.Equal(t, "report.pdf", LastSegment("/files/report.pdf"))
	assert.Equal(t, "report.pdf", LastSegment("https://cdn.example.com/files/report.pdf?sig=1"))
	assert.Equal(t, "", LastSegment("/"))
	assert.Equal(t, "", LastSegment(""))
}

func TestJoinPath(t *testing.T) {
	got, err := JoinPath("http://127.0.0.1:8765", "callback")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8765/callback", got)

	got, err = JoinPath("https://example.com/base/", "api", "v1/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/base/api/v1/", got)

	_, err = JoinPath("://invalid", "api")
	assert.Error(t, err)
}

func TestIsLocalHost(t *testing.T) {
	for _, h := range []string{"", "localhost", "LOCALHOST", "127.0.0.1", "::1", "[::1]", "0.0.0.0", "localhost:3000", "devbox.local"} {
		assert.True(t, IsLocalHost(h), h)
	}
	for _, h := range []string{"cpa-website-1.onrender.com", "example.com:443", "10.0.0.5"} {
		assert.False(t, IsLocalHost(h), h)
	}
}
