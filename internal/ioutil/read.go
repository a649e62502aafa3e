package ioutil

import (
	"errors"
	"fmt"
	"io"
)

// ErrBodyTooLarge is returned by ReadAll when the reader holds more than the limit
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// ReadLimited reads up to limit bytes from r for use in log lines and error messages.
// A read failure is described in the returned string instead of being dropped.
func ReadLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}

// ReadAll reads r completely, failing with ErrBodyTooLarge once more than limit bytes
// have been seen. A limit <= 0 disables the check.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return body, nil
}
