package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// Saver stores a downloaded file and returns where it ended up
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// SaverFunc adapts a function to Saver
type SaverFunc func(ctx context.Context, filename string, data []byte) (string, error)

func (f SaverFunc) Save(ctx context.Context, filename string, data []byte) (string, error) {
	return f(ctx, filename, data)
}

// DirSaver writes files into a directory. A file only appears under its final name
// once it is complete, and existing files are never overwritten: a clash gets a
// " (n)" suffix before the extension.
type DirSaver struct {
	dir string
	mu  sync.Mutex
}

// NewDirSaver returns a saver for dir, created on first save
func NewDirSaver(dir string) *DirSaver {
	return &DirSaver{dir: dir}
}

// Dir returns the target directory
func (s *DirSaver) Dir() string { return s.dir }

func (s *DirSaver) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".cpa-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", filename, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("failed to set permissions on %s: %w", filename, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.freePath(SanitizeFilename(filename))
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", filename, err)
	}
	return target, nil
}

func (s *DirSaver) freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}

	for i := 0; i < 10000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		full := filepath.Join(s.dir, candidate)
		_, err := os.Lstat(full)
		if errors.Is(err, os.ErrNotExist) {
			return full, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", full, err)
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, s.dir)
}

// SanitizeFilename reduces a server-supplied name to a single safe path element
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)

	name = strings.Trim(name, " .")
	if name == "" {
		return DefaultFilename
	}
	return name
}
