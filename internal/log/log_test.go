package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARNING", slog.LevelWarn, false},
		{"trace", LevelTrace, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigureJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		_ = Configure("info", "text")
	})

	require.NoError(t, Configure("debug", "json"))
	LogDebugWithFields("apiclient", "sending request", map[string]any{"method": "GET"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sending request", entry["msg"])
	assert.Equal(t, "apiclient", entry["component"])
	assert.Equal(t, "GET", entry["method"])
	assert.Contains(t, entry, "timestamp")
	assert.Equal(t, "debug", GetLogLevel())
}

func TestTraceSuppressedAboveTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		_ = Configure("info", "text")
	})

	require.NoError(t, Configure("debug", "text"))
	LogTrace("hidden %d", 1)
	assert.Empty(t, buf.String())

	require.NoError(t, Configure("trace", ""))
	LogTraceWithFields("test", "visible", nil)
	assert.Contains(t, buf.String(), "TRACE")
}

func TestConfigureRejectsBadLevel(t *testing.T) {
	assert.Error(t, Configure("verbose", ""))
}
