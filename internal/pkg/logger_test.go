package pkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log-file.log")
	logger, stop := NewLogger(&LogConfig{
		LogPath:    path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
		Level:      "infoo", // 非法级别回退到 info
	})
	require.NotNil(t, logger)

	logger.Debug("hidden")
	logger.Info("decoded", zap.Int("sections", 2))
	stop()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "\n"))
	assert.Contains(t, string(raw), `"msg":"decoded"`)
	assert.Contains(t, string(raw), `"sections":2`)
}

func TestNewAsyncLogger(t *testing.T) {
	logger, stop := NewLogger(&LogConfig{
		LogPath: filepath.Join(t.TempDir(), "log-file.log"),
		MaxSize: 1,
		Level:   "debug",
		Async:   true,
	})
	require.NotNil(t, logger)
	logger.Info("queued")
	assert.NotPanics(t, stop)
}

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	ctx := WithLoggerAndModule(context.Background(), logger, "decoder")
	LoggerFromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "decoder", logs.All()[0].ContextMap()["module"])

	ctx = WithLogger(context.Background(), logger)
	assert.Same(t, logger, LoggerFromContext(ctx))

	assert.NotNil(t, LoggerFromContext(context.Background()))
}
