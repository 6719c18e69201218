package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shiki2014/binan/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Level(t *testing.T) {
	log, err := logger.NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = logger.NewLogger("nonsense")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel), "unknown level falls back to info")
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.log")
	log, err := logger.NewFileLogger(path, "info")
	require.NoError(t, err)

	log.Info("Submitted entry", zap.String("symbol", "BTCUSDT"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"symbol":"BTCUSDT"`)
}
