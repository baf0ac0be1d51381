package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"INFO":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vvip.log")

	logger, cleanup, err := New(Config{Level: "info", File: path, Quiet: true})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("plugin loaded", zap.String("plugin", "site"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"plugin loaded"`)
	assert.Contains(t, out, `"plugin":"site"`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestNewQuietWithoutFile(t *testing.T) {
	logger, cleanup, err := New(Config{Quiet: true})
	require.NoError(t, err)
	defer cleanup()
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewRotatingWriterDefaults(t *testing.T) {
	w := NewRotatingWriter(Config{File: "x.log"})
	assert.Equal(t, DefaultMaxSizeMB, w.MaxSize)
	assert.Equal(t, DefaultMaxBackups, w.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, w.MaxAge)

	w = NewRotatingWriter(Config{File: "x.log", MaxSizeMB: 5, Compress: true})
	assert.Equal(t, 5, w.MaxSize)
	assert.True(t, w.Compress)
}
