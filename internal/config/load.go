package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgellow/cpa-front/internal/envutil"
	"github.com/dgellow/cpa-front/internal/log"
	"github.com/dgellow/cpa-front/internal/storage"
	"github.com/dgellow/cpa-front/internal/urlutil"
)

// CurrentVersion is the only config version Load accepts
const CurrentVersion = "v1"

// Base URLs chosen when none is configured explicitly
const (
	DeployedBaseURL = "https://cpa-website-lvup.onrender.com/api"
	LocalBaseURL    = "http://localhost:8000/api"
)

// Environment variables consulted by ResolveBaseURL
const (
	EnvAPIBase = "CPA_API_BASE"
	EnvHost    = "CPA_HOST"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultRefreshPath = "/auth/refresh/"
	defaultConcurrency = 4
)

// DefaultPath is the config file location under the user config directory
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cpa.json"
	}
	return filepath.Join(dir, "cpa", "config.json")
}

// Default returns the configuration used when no file exists: sessions in a local
// file, downloads into the user's Downloads folder.
func Default() Config {
	cfg := Config{Version: CurrentVersion}
	applyDefaults(&cfg)
	return cfg
}

// Load reads the config at path, resolving env references and applying defaults.
// A missing file at the default location is not an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultPath() {
		log.LogDebugWithFields("config", "No config file, using defaults", map[string]any{"path": path})
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse loads a config from JSON bytes
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != CurrentVersion {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = defaultTimeout
	}
	if cfg.API.RefreshPath == "" {
		cfg.API.RefreshPath = defaultRefreshPath
	}
	if cfg.Session.Storage == "" {
		cfg.Session.Storage = string(storage.KindFile)
	}
	if cfg.Session.Namespace == "" {
		cfg.Session.Namespace = storage.DefaultNamespace
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath(storage.Kind(cfg.Session.Storage))
	}
	if cfg.Downloads.Dir == "" {
		cfg.Downloads.Dir = defaultDownloadDir()
	}
	if cfg.Downloads.Concurrency == 0 {
		cfg.Downloads.Concurrency = defaultConcurrency
	}
	if cfg.Downloads.Navigator == "" {
		cfg.Downloads.Navigator = NavigatorFetch
	}
	if cfg.Log.Level == "" && envutil.IsDev() {
		cfg.Log.Level = "debug"
	}
}

func defaultSessionPath(kind storage.Kind) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	name := "session.json"
	if kind == storage.KindSQLite {
		name = "session.db"
	}
	return filepath.Join(dir, "cpa", name)
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// validateRawConfig checks, before env resolution, that secrets are env references
// rather than literals
func validateRawConfig(rawConfig map[string]any) error {
	secrets := []struct {
		path []string
		name string
	}{
		{[]string{"session"}, "encryptionKey"},
		{[]string{"session", "redis"}, "password"},
		{[]string{"google"}, "clientSecret"},
	}

	for _, secret := range secrets {
		section := rawConfig
		for _, key := range secret.path {
			next, ok := section[key].(map[string]any)
			if !ok {
				section = nil
				break
			}
			section = next
		}
		if section == nil {
			continue
		}
		value, exists := section[secret.name]
		if !exists {
			continue
		}
		field := strings.Join(append(secret.path, secret.name), ".")
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s must use environment variable reference for security", field)
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", field)
			}
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.API.BaseURL != "" && !urlutil.IsAbsolute(config.API.BaseURL) {
		return fmt.Errorf("api.baseURL must be an absolute http(s) URL")
	}
	if config.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	if config.API.RateLimit < 0 {
		return fmt.Errorf("api.rateLimit cannot be negative")
	}
	if !strings.HasPrefix(config.API.RefreshPath, "/") {
		return fmt.Errorf("api.refreshPath must start with /")
	}

	if err := validateSession(&config.Session); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if g := config.Google; g != nil {
		if g.ClientID == "" {
			return fmt.Errorf("google.clientId is required")
		}
		if g.CallbackPort < 0 || g.CallbackPort > 65535 {
			return fmt.Errorf("google.callbackPort out of range: %d", g.CallbackPort)
		}
	}

	if config.Downloads.Concurrency < 0 {
		return fmt.Errorf("downloads.concurrency cannot be negative")
	}
	switch config.Downloads.Navigator {
	case NavigatorFetch, NavigatorBrowser:
	default:
		return fmt.Errorf("downloads.navigator must be %s or %s", NavigatorFetch, NavigatorBrowser)
	}

	if config.Log.Level != "" {
		if _, err := log.ParseLevel(config.Log.Level); err != nil {
			return err
		}
	}
	switch strings.ToLower(config.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

func validateSession(s *SessionConfig) error {
	if s.EncryptionKey != "" && len(s.EncryptionKey) < 16 {
		return fmt.Errorf("encryptionKey must be at least 16 characters (got %d). Generate with: openssl rand -base64 32", len(s.EncryptionKey))
	}

	switch kind := storage.Kind(s.Storage); kind {
	case storage.KindMemory:
	case storage.KindFile, storage.KindSQLite:
		if s.Path == "" {
			return fmt.Errorf("path is required for %s storage", kind)
		}
	case storage.KindRedis:
		if s.Redis == nil || s.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for redis storage")
		}
		if s.EncryptionKey == "" {
			return fmt.Errorf("encryptionKey is required for redis storage")
		}
	case storage.KindFirestore:
		if s.Firestore == nil || s.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore.projectId is required for firestore storage")
		}
		if s.EncryptionKey == "" {
			return fmt.Errorf("encryptionKey is required for firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", s.Storage)
	}
	return nil
}

// ResolveBaseURL picks the API root: CPA_API_BASE, then api.baseURL, then the
// deployed API unless the configured host (api.host or CPA_HOST) is a local
// development host, in which case the local API.
func ResolveBaseURL(cfg *Config) string {
	if v := envutil.FirstNonEmpty(EnvAPIBase); v != "" {
		return strings.TrimRight(v, "/")
	}
	if cfg.API.BaseURL != "" {
		return strings.TrimRight(cfg.API.BaseURL, "/")
	}

	host := cfg.API.Host
	if host == "" {
		host = envutil.FirstNonEmpty(EnvHost)
	}
	if !urlutil.IsLocalHost(host) {
		return DeployedBaseURL
	}
	return LocalBaseURL
}

// StorageOptions converts the session section into storage.Open options
func (s *SessionConfig) StorageOptions() storage.Options {
	opts := storage.Options{
		Kind:          storage.Kind(s.Storage),
		Path:          s.Path,
		Namespace:     s.Namespace,
		EncryptionKey: string(s.EncryptionKey),
	}
	if s.Redis != nil {
		opts.Redis = storage.RedisOptions{
			Addr:     s.Redis.Addr,
			Password: string(s.Redis.Password),
			DB:       s.Redis.DB,
			Prefix:   s.Redis.Prefix,
		}
	}
	if s.Firestore != nil {
		opts.Firestore = storage.FirestoreOptions{
			ProjectID:       s.Firestore.ProjectID,
			Database:        s.Firestore.Database,
			Collection:      s.Firestore.Collection,
			CredentialsFile: s.Firestore.CredentialsFile,
		}
	}
	return opts
}
