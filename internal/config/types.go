package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Ways to follow a pre-signed download URL
const (
	NavigatorFetch   = "fetch"
	NavigatorBrowser = "browser"
)

// Config is the client configuration.
//
// String values may be written as {"$env": "VAR_NAME"} to read them from the
// environment at load time. Secrets (session.encryptionKey, session.redis.password,
// google.clientSecret) must use that form.
type Config struct {
	Version   string          `json:"version"`
	API       APIConfig       `json:"api"`
	Session   SessionConfig   `json:"session"`
	Google    *GoogleConfig   `json:"google,omitempty"`
	Downloads DownloadsConfig `json:"downloads"`
	Log       LogConfig       `json:"log"`
}

// APIConfig locates the study platform API
type APIConfig struct {
	// BaseURL overrides host-based resolution when set
	BaseURL string `json:"baseURL,omitempty"`
	// Host is the host the client considers itself deployed on
	Host        string        `json:"host,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	RefreshPath string        `json:"refreshPath,omitempty"`
	RateLimit   float64       `json:"rateLimit,omitempty"`
	RateBurst   int           `json:"rateBurst,omitempty"`
	UserAgent   string        `json:"userAgent,omitempty"`
}

// SessionConfig selects where the access and refresh tokens are kept
type SessionConfig struct {
	Storage       string           `json:"storage"`
	Path          string           `json:"path,omitempty"`
	Namespace     string           `json:"namespace,omitempty"`
	EncryptionKey Secret           `json:"encryptionKey,omitempty"`
	Redis         *RedisConfig     `json:"redis,omitempty"`
	Firestore     *FirestoreConfig `json:"firestore,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password Secret `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

type FirestoreConfig struct {
	ProjectID       string `json:"projectId"`
	Database        string `json:"database,omitempty"`
	Collection      string `json:"collection,omitempty"`
	CredentialsFile string `json:"credentialsFile,omitempty"`
}

// GoogleConfig enables "Sign in with Google" through a loopback redirect
type GoogleConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"clientSecret"`
	// CallbackPort fixes the loopback port; 0 picks a free one
	CallbackPort int `json:"callbackPort,omitempty"`
}

type DownloadsConfig struct {
	Dir           string `json:"dir,omitempty"`
	OpenAfterSave bool   `json:"openAfterSave,omitempty"`
	Concurrency   int    `json:"concurrency,omitempty"`
	Navigator     string `json:"navigator,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// RawConfigValue is a config string after reference resolution
type RawConfigValue struct {
	value string
}

func (v *RawConfigValue) String() string { return v.value }

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR_NAME"} reference
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s not set", envVar)
		}
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return &RawConfigValue{value: value}, nil
	}

	return nil, fmt.Errorf("unknown reference type in config value")
}

// parseOptional resolves raw into dst when present
func parseOptional(raw json.RawMessage, name string, dst *string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	parsed, err := ParseConfigValue(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = parsed.value
	return nil
}
