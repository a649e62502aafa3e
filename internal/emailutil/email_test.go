package emailutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ada@example.com", Normalize("  Ada@Example.COM "))
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"ada@example.com", "example.com"},
		{"no-at-sign", ""},
		{"a@b@c", ""},
		{"@example.com", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDomain(tt.email), tt.email)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("ada@example.com"))
	assert.NoError(t, Validate("a@b.c"))
	assert.Error(t, Validate("ada@localhost"))
	assert.Error(t, Validate("ada"))
	assert.Error(t, Validate("ada@."))
}
