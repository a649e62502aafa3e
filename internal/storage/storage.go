package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under the key
var ErrNotFound = errors.New("session value not found")

// DefaultNamespace is used by backends that can hold several sessions
const DefaultNamespace = "default"

// Store persists small string values under fixed keys. It is the client-side
// equivalent of browser local storage: single-key operations are atomic, nothing
// spans keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Lister is implemented by backends that keep several profiles side by side
type Lister interface {
	Namespaces(ctx context.Context) ([]string, error)
}

// Namespaces lists the profiles held by s, looking through wrappers such as
// EncryptedStore. ok is false when the backend keeps a single profile.
func Namespaces(ctx context.Context, s Store) (names []string, ok bool, err error) {
	for {
		if l, isLister := s.(Lister); isLister {
			names, err = l.Namespaces(ctx)
			return names, true, err
		}
		w, isWrapper := s.(interface{ Unwrap() Store })
		if !isWrapper {
			return nil, false, nil
		}
		s = w.Unwrap()
	}
}
