package academy

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dgellow/cpa-front/internal/session"
)

// SessionStatus describes the stored session as far as the client can tell
type SessionStatus struct {
	LoggedIn   bool
	CanRefresh bool
	UserID     string
	Username   string
	IsAdmin    bool
	ExpiresAt  time.Time
	Expired    bool
}

type accessClaims struct {
	UserID   any    `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Status inspects the stored tokens without calling the server. The access token's
// claims are read but not verified; only the server can do that.
func (s *Service) Status(ctx context.Context) (*SessionStatus, error) {
	creds, err := session.Load(ctx, s.store)
	if err != nil {
		return nil, err
	}

	st := &SessionStatus{CanRefresh: creds.HasRefresh()}
	if creds.Access == "" {
		st.LoggedIn = creds.HasRefresh()
		return st, nil
	}
	st.LoggedIn = true

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(creds.Access, &claims); err != nil {
		return st, fmt.Errorf("failed to read access token: %w", err)
	}

	if claims.UserID != nil {
		st.UserID = fmt.Sprint(claims.UserID)
	}
	st.Username = claims.Username
	st.IsAdmin = claims.IsAdmin
	if claims.ExpiresAt != nil {
		st.ExpiresAt = claims.ExpiresAt.Time
		st.Expired = !s.now().Before(st.ExpiresAt)
	}
	return st, nil
}
