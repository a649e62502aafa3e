package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDev(t *testing.T) {
	for _, tt := range []struct {
		value string
		want  bool
	}{
		{"development", true},
		{"DEV", true},
		{"production", false},
		{"", false},
	} {
		t.Setenv("CPA_ENV", tt.value)
		assert.Equal(t, tt.want, IsDev(), tt.value)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	t.Setenv("CPA_TEST_A", "  ")
	t.Setenv("CPA_TEST_B", " second ")
	t.Setenv("CPA_TEST_C", "third")

	assert.Equal(t, "second", FirstNonEmpty("CPA_TEST_A", "CPA_TEST_B", "CPA_TEST_C"))
	assert.Equal(t, "", FirstNonEmpty("CPA_TEST_UNSET"))
}
