package emailutil

import (
	"fmt"
	"strings"
)

// Normalize trims whitespace and lowercases the address
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractDomain returns the part after the single "@", or "" when there is none
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return ""
	}
	return parts[1]
}

// Validate rejects addresses without a local part and a dotted domain. The server
// does the real validation.
func Validate(email string) error {
	domain := ExtractDomain(email)
	if domain == "" || !strings.Contains(strings.Trim(domain, "."), ".") {
		return fmt.Errorf("invalid email address %q", email)
	}
	return nil
}
