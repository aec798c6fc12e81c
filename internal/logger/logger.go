// Package logger provides structured logging with zap.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a new zap.Logger depending on the environment. Production
// loggers emit JSON with ISO8601 timestamps; everything else gets the
// human-readable development console encoder with debug enabled.
func New(env string) *zap.Logger {
	if env == "production" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logger, _ := cfg.Build()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}
