package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StateSigner produces HMAC-signed, expiring JSON tokens. The Google login flow uses
// it for the OAuth state parameter so the callback needs no server-side cache.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type signedState struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// NewStateSigner creates a signer. A ttl of zero disables expiry.
func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	return &StateSigner{key: key, ttl: ttl, now: time.Now}
}

// Sign marshals v and returns "<payload>.<signature>"
func (s *StateSigner) Sign(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	st := signedState{Data: data}
	if s.ttl > 0 {
		st.ExpiresAt = s.now().Add(s.ttl)
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state envelope: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(payload) + "." + s.mac(payload), nil
}

// Verify checks signature and expiry, then unmarshals the payload into v
func (s *StateSigner) Verify(token string, v any) error {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return fmt.Errorf("invalid state format")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(payload))) {
		return fmt.Errorf("invalid state signature")
	}

	var st signedState
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("failed to unmarshal state envelope: %w", err)
	}
	if !st.ExpiresAt.IsZero() && s.now().After(st.ExpiresAt) {
		return fmt.Errorf("state expired")
	}
	if err := json.Unmarshal(st.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return nil
}

func (s *StateSigner) mac(payload []byte) string {
	h := hmac.New(sha256.New, s.key)
	h.Write(payload)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
