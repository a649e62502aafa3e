package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt is returned when a ciphertext is malformed or fails authentication
var ErrDecrypt = errors.New("failed to decrypt value")

// Encryptor protects credentials at rest in persistent session stores
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SecretBoxEncryptor seals values with NaCl secretbox. The 32-byte box key is derived
// from the configured secret with HKDF-SHA256 so any sufficiently long secret works.
type SecretBoxEncryptor struct {
	key [32]byte
}

var _ Encryptor = (*SecretBoxEncryptor)(nil)

// NewEncryptor derives a box key from secret, which must be at least 16 bytes
func NewEncryptor(secret []byte) (*SecretBoxEncryptor, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("encryption key must be at least 16 bytes, got %d", len(secret))
	}

	e := &SecretBoxEncryptor{}
	kdf := hkdf.New(sha256.New, secret, nil, []byte("cpa-front session store v1"))
	if _, err := io.ReadFull(kdf, e.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return e, nil
}

// Encrypt returns base64(nonce || box)
func (e *SecretBoxEncryptor) Encrypt(plaintext string) (string, error) {
	nonceBytes, err := RandomBytes(nonceSize)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], nonceBytes)

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &e.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (e *SecretBoxEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &e.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
