package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, parseLevel(tc.in))
		})
	}
}

func TestFileOnlyWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := NewFileOnly(path, "info")

	l.Info("store", "snapshot saved", map[string]interface{}{"scope": "quiz-state"})
	l.Debug("store", "dropped below level", nil)
	_ = l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"message":"snapshot saved"`)
	assert.Contains(t, out, `"module":"store"`)
	assert.Contains(t, out, `"scope":"quiz-state"`)
	assert.False(t, strings.Contains(out, "dropped below level"))
}

func TestNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Error("x", "y", map[string]interface{}{"error": "boom"})
	l.Warn("x", "y", nil)
}
