package ioutil

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLimited(t *testing.T) {
	t.Run("reads content up to limit", func(t *testing.T) {
		assert.Equal(t, "hello world", ReadLimited(strings.NewReader("hello world"), 1024))
	})

	t.Run("truncates at limit", func(t *testing.T) {
		assert.Equal(t, "hello", ReadLimited(strings.NewReader("hello world"), 5))
	})

	t.Run("read error returns description", func(t *testing.T) {
		r := &failingReader{err: fmt.Errorf("connection reset")}
		assert.Equal(t, "<unreadable: connection reset>", ReadLimited(r, 1024))
	})
}

func TestReadAll(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		body, err := ReadAll(strings.NewReader("%PDF-1.7"), 8)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.7", string(body))
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := ReadAll(strings.NewReader("123456789"), 8)
		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})

	t.Run("no limit", func(t *testing.T) {
		body, err := ReadAll(strings.NewReader(strings.Repeat("a", 4096)), 0)
		require.NoError(t, err)
		assert.Len(t, body, 4096)
	})

	t.Run("read error", func(t *testing.T) {
		_, err := ReadAll(&failingReader{err: io.ErrUnexpectedEOF}, 10)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(_ []byte) (int, error) {
	return 0, r.err
}
