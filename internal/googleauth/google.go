// Package googleauth runs the Google sign-in flow for a command-line client: it
// opens the consent page in a browser and receives the authorization code on a
// loopback redirect.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dgellow/cpa-front/internal/academy"
	"github.com/dgellow/cpa-front/internal/crypto"
	"github.com/dgellow/cpa-front/internal/envutil"
	jsonwriter "github.com/dgellow/cpa-front/internal/json"
	"github.com/dgellow/cpa-front/internal/log"
	"github.com/dgellow/cpa-front/internal/opener"
)

// CallbackPath is where Google redirects back to on the loopback server
const CallbackPath = "/callback"

const defaultFlowTimeout = 5 * time.Minute

// Config configures the flow
type Config struct {
	ClientID     string
	ClientSecret string
	// CallbackPort fixes the loopback port; 0 picks a free one
	CallbackPort int
	// Endpoint defaults to google.Endpoint
	Endpoint oauth2.Endpoint
	// Timeout bounds the wait for the user; defaults to five minutes
	Timeout time.Duration
}

// Flow performs one sign-in at a time
type Flow struct {
	oauth   oauth2.Config
	port    int
	timeout time.Duration
	opener  opener.Opener
	signer  *crypto.StateSigner

	// OnAuthURL, when set, receives the consent URL before the browser is opened
	OnAuthURL func(url string)
}

type statePayload struct {
	Nonce string `json:"nonce"`
}

type result struct {
	token academy.GoogleToken
	err   error
}

// NewFlow creates a flow that opens the consent page with op
func NewFlow(cfg Config, op opener.Opener) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google client ID is required")
	}

	key, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultFlowTimeout
	}

	return &Flow{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoint(cfg.Endpoint),
		},
		port:    cfg.CallbackPort,
		timeout: timeout,
		opener:  op,
		signer:  crypto.NewStateSigner(key, timeout),
	}, nil
}

// endpoint falls back to Google's, with env overrides for testing
func endpoint(ep oauth2.Endpoint) oauth2.Endpoint {
	if ep.AuthURL == "" && ep.TokenURL == "" {
		ep = google.Endpoint
	}
	if authURL := envutil.FirstNonEmpty("GOOGLE_OAUTH_AUTH_URL"); authURL != "" {
		ep.AuthURL = authURL
	}
	if tokenURL := envutil.FirstNonEmpty("GOOGLE_OAUTH_TOKEN_URL"); tokenURL != "" {
		ep.TokenURL = tokenURL
	}
	return ep
}

// Run opens the consent page and waits for the redirect. It returns the Google
// tokens to exchange with the platform.
func (f *Flow) Run(ctx context.Context) (academy.GoogleToken, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port)))
	if err != nil {
		return academy.GoogleToken{}, fmt.Errorf("failed to start callback listener: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	conf := f.oauth
	conf.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, CallbackPath)

	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		ln.Close()
		return academy.GoogleToken{}, err
	}
	state, err := f.signer.Sign(statePayload{Nonce: nonce})
	if err != nil {
		ln.Close()
		return academy.GoogleToken{}, err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan result, 1)
	cb := &callback{conf: &conf, signer: f.signer, nonce: nonce, verifier: verifier, results: results}

	router := mux.NewRouter()
	router.HandleFunc(CallbackPath, cb.ServeHTTP).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteNotFound(w, "unknown path")
	})

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogErrorWithFields("googleauth", "Callback server failed", map[string]any{"error": err.Error()})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if f.OnAuthURL != nil {
		f.OnAuthURL(authURL)
	}
	log.LogDebugWithFields("googleauth", "Waiting for Google callback", map[string]any{"port": port})
	if f.opener != nil {
		if err := f.opener.Open(authURL); err != nil {
			log.LogWarnWithFields("googleauth", "Could not open browser", map[string]any{"error": err.Error()})
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	select {
	case res := <-results:
		return res.token, res.err
	case <-ctx.Done():
		return academy.GoogleToken{}, fmt.Errorf("google sign-in not completed: %w", ctx.Err())
	}
}

type callback struct {
	conf     *oauth2.Config
	signer   *crypto.StateSigner
	nonce    string
	verifier string
	results  chan<- result
}

func (c *callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Requests without our state did not come from the consent page and must not end
	// the sign-in; the timeout or a genuine redirect does that.
	var st statePayload
	if err := c.signer.Verify(q.Get("state"), &st); err != nil || st.Nonce != c.nonce {
		log.LogWarnWithFields("googleauth", "Ignoring callback with invalid state", map[string]any{
			"remote": r.RemoteAddr,
		})
		jsonwriter.WriteBadRequest(w, "invalid state parameter")
		return
	}

	if e := q.Get("error"); e != "" {
		jsonwriter.WriteForbidden(w, "Google sign-in was not completed: "+e)
		c.finish(result{err: fmt.Errorf("google sign-in denied: %s", e)})
		return
	}

	code := q.Get("code")
	if code == "" {
		jsonwriter.WriteBadRequest(w, "missing authorization code")
		c.finish(result{err: errors.New("google sign-in failed: missing authorization code")})
		return
	}

	tok, err := c.conf.Exchange(r.Context(), code, oauth2.VerifierOption(c.verifier))
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "could not exchange authorization code")
		c.finish(result{err: fmt.Errorf("failed to exchange authorization code: %w", err)})
		return
	}

	idToken, _ := tok.Extra("id_token").(string)
	_ = jsonwriter.Write(w, map[string]string{
		"status":  "signed_in",
		"message": "You can close this window and return to the terminal.",
	})
	c.finish(result{token: academy.GoogleToken{IDToken: idToken, AccessToken: tok.AccessToken}})
}

// finish reports the first outcome; later requests are ignored
func (c *callback) finish(res result) {
	select {
	case c.results <- res:
	default:
	}
}
