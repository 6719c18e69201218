package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	return build(level)
}

// NewFileLogger writes to path as well as stderr. The bot uses it for the
// trade log so entries and stop moves can be reviewed without the main log.
func NewFileLogger(path, level string) (*zap.Logger, error) {
	return build(level, path)
}

func build(level string, paths ...string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	// Parse level
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		l = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(l)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if len(paths) > 0 {
		config.OutputPaths = append(paths, "stderr")
	}

	return config.Build()
}
