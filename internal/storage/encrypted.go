package storage

import (
	"context"
	"fmt"

	"github.com/dgellow/cpa-front/internal/crypto"
)

var _ Store = (*EncryptedStore)(nil)

// EncryptedStore seals values before handing them to the wrapped store. Keys stay
// in clear so backends can still address them.
type EncryptedStore struct {
	inner     Store
	encryptor crypto.Encryptor
}

// NewEncryptedStore wraps inner. encryptor must not be nil.
func NewEncryptedStore(inner Store, encryptor crypto.Encryptor) (*EncryptedStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	return &EncryptedStore{inner: inner, encryptor: encryptor}, nil
}

// Unwrap returns the wrapped store
func (s *EncryptedStore) Unwrap() Store { return s.inner }

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	plain, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypting %s: %w", key, err)
	}
	return plain, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *EncryptedStore) Close() error {
	return s.inner.Close()
}
