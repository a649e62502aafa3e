package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ExampleConfig is written by WriteExample. Secrets are env references.
const ExampleConfig = `{
  "version": "v1",
  "api": {
    "host": {"$env": "CPA_HOST"},
    "timeout": "60s",
    "rateLimit": 5,
    "rateBurst": 10
  },
  "session": {
    "storage": "file",
    "encryptionKey": {"$env": "CPA_SESSION_KEY"}
  },
  "google": {
    "clientId": {"$env": "GOOGLE_CLIENT_ID"},
    "clientSecret": {"$env": "GOOGLE_CLIENT_SECRET"}
  },
  "downloads": {
    "navigator": "fetch",
    "concurrency": 4
  },
  "log": {
    "level": "info",
    "format": "text"
  }
}
`

// WriteExample writes ExampleConfig to path unless a file is already there
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, []byte(ExampleConfig), 0o600)
}
