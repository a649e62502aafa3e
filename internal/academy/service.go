// Package academy wraps the study platform endpoints in typed calls: sign-in,
// the subject and material catalog, and quizzes.
package academy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/emailutil"
	"github.com/dgellow/cpa-front/internal/log"
	"github.com/dgellow/cpa-front/internal/session"
	"github.com/dgellow/cpa-front/internal/storage"
)

// ErrNoTokens is returned when a sign-in response carries no access token
var ErrNoTokens = errors.New("sign-in response carries no access token")

// Service is the typed study API
type Service struct {
	client *apiclient.Client
	store  storage.Store
	now    func() time.Time
}

// New creates a Service. Tokens obtained at sign-in are written to store, which
// should be the store the client reads from.
func New(client *apiclient.Client, store storage.Store) *Service {
	return &Service{client: client, store: store, now: time.Now}
}

// Client returns the underlying API client
func (s *Service) Client() *apiclient.Client { return s.client }

type tokenResponse struct {
	Access  string `json:"access"`
	Key     string `json:"key"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

func (t tokenResponse) credentials() session.Credentials {
	access := t.Access
	if access == "" {
		access = t.Key
	}
	return session.Credentials{Access: access, Refresh: t.Refresh}
}

func (s *Service) storeTokens(ctx context.Context, t tokenResponse) error {
	creds := t.credentials()
	if creds.Access == "" {
		return ErrNoTokens
	}
	if err := session.Save(ctx, s.store, creds); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Login signs in with a username and password and stores the session
func (s *Service) Login(ctx context.Context, username, password string) error {
	var resp tokenResponse
	err := s.client.PostAnonymous(ctx, "/auth/login/", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	if err := s.storeTokens(ctx, resp); err != nil {
		return err
	}
	log.LogInfoWithFields("academy", "Signed in", map[string]any{"username": username})
	return nil
}

// RegisterRequest is the sign-up form
type RegisterRequest struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates an account. The server signs the new user in straight away; when
// it returns tokens they are stored. Validation failures come back as
// *apiclient.HTTPError, see its FieldErrors.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = emailutil.Normalize(req.Email)
	if err := emailutil.Validate(req.Email); err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := s.client.PostAnonymous(ctx, "/auth/register/", req, &resp); err != nil {
		return nil, err
	}
	if resp.credentials().Access != "" {
		if err := s.storeTokens(ctx, resp); err != nil {
			return nil, err
		}
	}
	return resp.User, nil
}

// GoogleToken is what a Google sign-in yields. The ID token is preferred; the access
// token is accepted as a fallback.
type GoogleToken struct {
	IDToken     string
	AccessToken string
}

// ExchangeGoogleToken trades a Google token for a platform session
func (s *Service) ExchangeGoogleToken(ctx context.Context, tok GoogleToken) (*User, error) {
	body := map[string]string{}
	switch {
	case tok.IDToken != "":
		body["id_token"] = tok.IDToken
	case tok.AccessToken != "":
		body["access_token"] = tok.AccessToken
	default:
		return nil, errors.New("google sign-in produced no token")
	}

	var resp tokenResponse
	if err := s.client.PostAnonymous(ctx, "/auth/registration/google/", body, &resp); err != nil {
		return nil, err
	}
	if err := s.storeTokens(ctx, resp); err != nil {
		return nil, err
	}
	log.LogInfoWithFields("academy", "Signed in with Google", nil)
	return resp.User, nil
}

// Logout forgets the stored session. The tokens are not revoked server-side.
func (s *Service) Logout(ctx context.Context) error {
	if err := session.Clear(ctx, s.store); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
