package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/cpa-front/internal/storage"
)

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret-password")
	assert.Equal(t, "***", s.String())
	assert.Equal(t, "value: ***", fmt.Sprintf("value: %s", s))
	assert.Equal(t, "", Secret("").String())

	data, err := json.Marshal(struct {
		User string `json:"user"`
		Key  Secret `json:"key"`
	}{"ada", s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":"ada","key":"***"}`, string(data))

	cfg := SessionConfig{Storage: "redis", EncryptionKey: s, Redis: &RedisConfig{Password: "hunter2"}}
	assert.NotContains(t, fmt.Sprintf("%+v %+v", cfg, *cfg.Redis), "super-secret-password")
	assert.NotContains(t, fmt.Sprintf("%+v", *cfg.Redis), "hunter2")
}

func TestParseResolvesEnvReferences(t *testing.T) {
	t.Setenv("TEST_CPA_KEY", "0123456789abcdef0123")
	t.Setenv("TEST_CPA_REDIS_PASS", `"quoted"`)
	t.Setenv("TEST_CPA_CLIENT", "client-id.apps.googleusercontent.com")
	t.Setenv("TEST_CPA_SECRET", "gsecret")

	cfg, err := Parse([]byte(`{
		"version": "v1",
		"api": {"baseURL": "https://api.example.com/api/", "timeout": "15s", "rateLimit": 2},
		"session": {
			"storage": "redis",
			"encryptionKey": {"$env": "TEST_CPA_KEY"},
			"redis": {"addr": "localhost:6379", "password": {"$env": "TEST_CPA_REDIS_PASS"}, "prefix": "cpa"}
		},
		"google": {"clientId": {"$env": "TEST_CPA_CLIENT"}, "clientSecret": {"$env": "TEST_CPA_SECRET"}},
		"downloads": {"dir": "/tmp/dl", "navigator": "browser", "openAfterSave": true},
		"log": {"level": "debug", "format": "json"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/auth/refresh/", cfg.API.RefreshPath)
	assert.Equal(t, Secret("0123456789abcdef0123"), cfg.Session.EncryptionKey)
	assert.Equal(t, Secret("quoted"), cfg.Session.Redis.Password)
	assert.Equal(t, "client-id.apps.googleusercontent.com", cfg.Google.ClientID)
	assert.Equal(t, Secret("gsecret"), cfg.Google.ClientSecret)
	assert.Equal(t, NavigatorBrowser, cfg.Downloads.Navigator)
	assert.Equal(t, 4, cfg.Downloads.Concurrency)
	assert.Equal(t, storage.DefaultNamespace, cfg.Session.Namespace)

	opts := cfg.Session.StorageOptions()
	assert.Equal(t, storage.KindRedis, opts.Kind)
	assert.Equal(t, "localhost:6379", opts.Redis.Addr)
	assert.Equal(t, "quoted", opts.Redis.Password)
	assert.Equal(t, "0123456789abcdef0123", opts.EncryptionKey)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"no version", `{}`, "config version is required"},
		{"bad version", `{"version":"v9"}`, "unsupported config version"},
		{"literal secret", `{"version":"v1","session":{"encryptionKey":"plaintext"}}`, "session.encryptionKey must use environment variable reference"},
		{"wrong ref", `{"version":"v1","google":{"clientId":"x","clientSecret":{"$file":"x"}}}`, `google.clientSecret must use {"$env": "VAR_NAME"} format`},
		{"unset env", `{"version":"v1","api":{"host":{"$env":"TEST_CPA_DEFINITELY_UNSET"}}}`, "environment variable TEST_CPA_DEFINITELY_UNSET not set"},
		{"bad timeout", `{"version":"v1","api":{"timeout":"soon"}}`, "parsing timeout"},
		{"relative base", `{"version":"v1","api":{"baseURL":"/api"}}`, "api.baseURL must be an absolute"},
		{"unknown storage", `{"version":"v1","session":{"storage":"etcd"}}`, `unknown storage "etcd"`},
		{"redis without addr", `{"version":"v1","session":{"storage":"redis"}}`, "redis.addr is required"},
		{"firestore without project", `{"version":"v1","session":{"storage":"firestore","firestore":{}}}`, "firestore.projectId is required"},
		{"bad navigator", `{"version":"v1","downloads":{"navigator":"teleport"}}`, "downloads.navigator"},
		{"bad log level", `{"version":"v1","log":{"level":"loud"}}`, "invalid log level"},
		{"google without client", `{"version":"v1","google":{}}`, "google.clientId is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRemoteStorageNeedsEncryptionKey(t *testing.T) {
	_, err := Parse([]byte(`{"version":"v1","session":{"storage":"redis","redis":{"addr":"localhost:6379"}}}`))
	assert.ErrorContains(t, err, "encryptionKey is required for redis storage")

	t.Setenv("TEST_CPA_SHORT_KEY", "short")
	_, err = Parse([]byte(`{"version":"v1","session":{"storage":"file","encryptionKey":{"$env":"TEST_CPA_SHORT_KEY"}}}`))
	assert.ErrorContains(t, err, "at least 16 characters")
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, "file", cfg.Session.Storage)
	assert.Equal(t, "session.json", filepath.Base(cfg.Session.Path))
	assert.Equal(t, NavigatorFetch, cfg.Downloads.Navigator)
	assert.Equal(t, 60*time.Second, cfg.API.Timeout)
	require.NoError(t, ValidateConfig(&cfg))

	sqlite, err := Parse([]byte(`{"version":"v1","session":{"storage":"sqlite"}}`))
	require.NoError(t, err)
	assert.Equal(t, "session.db", filepath.Base(sqlite.Session.Path))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	_, err := Load(path)
	assert.ErrorContains(t, err, "reading config file")

	require.NoError(t, os.WriteFile(path, []byte(`{"version":"v1","session":{"storage":"memory"}}`), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Session.Storage)
}

func TestWriteExample(t *testing.T) {
	t.Setenv("CPA_HOST", "localhost")
	t.Setenv("CPA_SESSION_KEY", "0123456789abcdef")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, WriteExample(path))
	assert.Error(t, WriteExample(path), "must not overwrite")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.API.Host)
	assert.Equal(t, 5.0, cfg.API.RateLimit)
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		envBase string
		envHost string
		cfg     APIConfig
		want    string
	}{
		{"env override wins", "https://staging.example.com/api/", "", APIConfig{BaseURL: "https://cfg.example.com/api"}, "https://staging.example.com/api"},
		{"config base", "", "", APIConfig{BaseURL: "https://cfg.example.com/api/"}, "https://cfg.example.com/api"},
		{"deployed host", "", "", APIConfig{Host: "cpa-academy.example.com"}, DeployedBaseURL},
		{"deployed host from env", "", "www.cpa.app", APIConfig{}, DeployedBaseURL},
		{"localhost", "", "", APIConfig{Host: "localhost:3000"}, LocalBaseURL},
		{"loopback ip", "", "127.0.0.1", APIConfig{}, LocalBaseURL},
		{"nothing configured", "", "", APIConfig{}, LocalBaseURL},
		{"config host beats env host", "", "example.org", APIConfig{Host: "localhost"}, LocalBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPIBase, tt.envBase)
			t.Setenv(EnvHost, tt.envHost)
			cfg := Config{API: tt.cfg}
			assert.Equal(t, tt.want, ResolveBaseURL(&cfg))
		})
	}
}

func TestDevEnvironmentDefaultsToDebugLogging(t *testing.T) {
	t.Setenv("CPA_ENV", "development")
	assert.Equal(t, "debug", Default().Log.Level)

	cfg, err := Parse([]byte(`{"version":"v1","log":{"level":"warn"}}`))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}
