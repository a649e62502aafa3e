package envutil

import (
	"os"
	"strings"
)

// IsDev checks if we're running in development mode
func IsDev() bool {
	env := strings.ToLower(os.Getenv("CPA_ENV"))
	return env == "development" || env == "dev"
}

// FirstNonEmpty returns the value of the first set, non-empty environment variable
func FirstNonEmpty(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
