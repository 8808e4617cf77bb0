package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build returns a zap-backed logr.Logger for the given level string and
// the underlying zap logger, so callers can Sync it on exit. debug enables
// logr V(1) output.
func Build(level string) (logr.Logger, *zap.Logger, error) {
	var zapLevel zapcore.Level
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
		zapLevel = zapcore.DebugLevel
	case "info", "":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return logr.Logger{}, nil, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(zl), zl, nil
}

// Level picks the effective level: debug wins when forced.
func Level(level string, forceDebug bool) string {
	if forceDebug {
		return "debug"
	}
	return level
}
