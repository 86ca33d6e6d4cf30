package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	t.Run("Should convert all log levels to charm log levels", func(t *testing.T) {
		testCases := []struct {
			level    LogLevel
			expected charmlog.Level
		}{
			{DebugLevel, charmlog.DebugLevel},
			{InfoLevel, charmlog.InfoLevel},
			{WarnLevel, charmlog.WarnLevel},
			{ErrorLevel, charmlog.ErrorLevel},
			{"DEBUG", charmlog.DebugLevel},
			{"", charmlog.InfoLevel},
			{"verbose", charmlog.InfoLevel},
		}

		for _, tc := range testCases {
			assert.Equal(t, tc.expected, tc.level.ToCharmlogLevel(), "level %q", tc.level)
		}
	})

	t.Run("Should only accept known levels as valid", func(t *testing.T) {
		assert.True(t, LogLevel("warn").Valid())
		assert.True(t, LogLevel("Error").Valid())
		assert.False(t, LogLevel("trace").Valid())
		assert.False(t, LogLevel("").Valid())
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should drop messages below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf})

		l.Info("hidden")
		l.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("Should write one JSON object per line when JSON is set", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true})

		l.Debug("executing statement", "op", "select")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "executing statement", entry["msg"])
		assert.Equal(t, "select", entry["op"])
	})

	t.Run("Should fall back to defaults for a nil config", func(t *testing.T) {
		l := NewLogger(nil)
		require.NotNil(t, l)
		assert.Equal(t, charmlog.InfoLevel, l.GetLevel())
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expected := NewLogger(DefaultConfig())
		ctx := ContextWithLogger(context.Background(), expected)

		assert.Same(t, expected, FromContext(ctx))
	})

	t.Run("Should return default logger when wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), LoggerCtxKey, "not a logger")

		assert.Same(t, charmlog.Default(), FromContext(ctx))
	})
}
