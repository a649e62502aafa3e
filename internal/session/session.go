// Package session reads and writes the two persisted credentials of a signed-in
// user through a storage.Store.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgellow/cpa-front/internal/storage"
)

// Fixed storage keys for the credentials
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Credentials are the bearer and refresh tokens of the current session
type Credentials struct {
	Access  string
	Refresh string
}

// HasRefresh reports whether the session can be renewed
func (c Credentials) HasRefresh() bool { return c.Refresh != "" }

// get treats a missing key as an empty value
func get(ctx context.Context, s storage.Store, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

// AccessToken returns the stored access token, or "" when there is none
func AccessToken(ctx context.Context, s storage.Store) (string, error) {
	return get(ctx, s, AccessTokenKey)
}

// RefreshToken returns the stored refresh token, or "" when there is none
func RefreshToken(ctx context.Context, s storage.Store) (string, error) {
	return get(ctx, s, RefreshTokenKey)
}

// Load reads both credentials
func Load(ctx context.Context, s storage.Store) (Credentials, error) {
	access, err := AccessToken(ctx, s)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := RefreshToken(ctx, s)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Access: access, Refresh: refresh}, nil
}

// Save stores both credentials. An empty field deletes the stored value.
func Save(ctx context.Context, s storage.Store, c Credentials) error {
	if err := put(ctx, s, AccessTokenKey, c.Access); err != nil {
		return err
	}
	return put(ctx, s, RefreshTokenKey, c.Refresh)
}

// SaveAccess replaces only the access token, as a refresh does
func SaveAccess(ctx context.Context, s storage.Store, access string) error {
	return put(ctx, s, AccessTokenKey, access)
}

// Clear removes both credentials. Both deletes are attempted even if one fails.
func Clear(ctx context.Context, s storage.Store) error {
	return errors.Join(
		s.Delete(ctx, AccessTokenKey),
		s.Delete(ctx, RefreshTokenKey),
	)
}

func put(ctx context.Context, s storage.Store, key, value string) error {
	if value == "" {
		if err := s.Delete(ctx, key); err != nil {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
		return nil
	}
	if err := s.Set(ctx, key, value); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}
