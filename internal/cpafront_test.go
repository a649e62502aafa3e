package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/cpa-front/internal/config"
	"github.com/dgellow/cpa-front/internal/testutil"
)

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Session.Storage = "memory"
	cfg.Downloads.Dir = t.TempDir()
	return cfg
}

func TestCPAFrontWiresLoginAndDownload(t *testing.T) {
	t.Setenv(config.EnvAPIBase, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login/":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access":"a1","refresh":"r1"}`))
		case "/api/materials/3/download/":
			assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
			assert.Equal(t, "cpa/1.2.3", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="ethics.pdf"`)
			_, _ = w.Write([]byte("%PDF"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/api")
	app, err := NewCPAFront(context.Background(), cfg, Options{Version: "1.2.3"})
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Academy().Login(context.Background(), "ada", "pw"))
	out, err := app.Downloader().Download(context.Background(), "/materials/3/download/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Downloads.Dir, "ethics.pdf"), out.Path)

	_, err = os.Stat(out.Path)
	assert.NoError(t, err)
}

func TestCPAFrontBrowserNavigator(t *testing.T) {
	t.Setenv(config.EnvAPIBase, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"download_url":"https://bucket.example/f.pdf?sig=1"}`))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/api")
	cfg.Downloads.Navigator = config.NavigatorBrowser

	op := &testutil.MockOpener{}
	op.On("Open", "https://bucket.example/f.pdf?sig=1").Return(nil)

	app, err := NewCPAFront(context.Background(), cfg, Options{Opener: op})
	require.NoError(t, err)
	defer app.Close()

	out, err := app.Downloader().Download(context.Background(), "/materials/1/download/")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/f.pdf?sig=1", out.Path)
	op.AssertExpectations(t)
}

func TestCPAFrontSessionExpiredCallback(t *testing.T) {
	t.Setenv(config.EnvAPIBase, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var expired int
	app, err := NewCPAFront(context.Background(), testConfig(t, srv.URL+"/api"), Options{
		OnSessionExpired: func(context.Context, error) { expired++ },
	})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Academy().SubmitAttempt(context.Background(), 1, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, expired)
}

func TestCPAFrontGoogleFlowNeedsConfig(t *testing.T) {
	app, err := NewCPAFront(context.Background(), testConfig(t, "http://localhost:8000/api"), Options{})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.GoogleFlow()
	assert.ErrorContains(t, err, "not configured")
	assert.NotNil(t, app.MCPServer())
}

func TestCPAFrontProfiles(t *testing.T) {
	cfg := testConfig(t, "http://localhost:8000/api")
	cfg.Session.Storage = "sqlite"
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.db")
	cfg.Session.Namespace = "work"

	app, err := NewCPAFront(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Client().Store().Set(context.Background(), "refresh_token", "r1"))
	names, ok, err := app.Profiles(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"work"}, names)

	memory, err := NewCPAFront(context.Background(), testConfig(t, "http://localhost:8000/api"), Options{})
	require.NoError(t, err)
	defer memory.Close()
	_, ok, err = memory.Profiles(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
