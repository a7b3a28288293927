// Package logger wraps zap with the printf-style call sites used across rinkcal.
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a leveled logger backed by a zap SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Options controls logger construction.
type Options struct {
	Level  string
	Format string // "json" or "console"
}

// NewLogger builds a console logger at the given level.
func NewLogger(level string) *Logger {
	l, err := New(Options{Level: level})
	if err != nil {
		return NewNop()
	}
	return l
}

// New builds a logger from options.
func New(opts Options) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.ToLower(opts.Format) != "json" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(opts.Level))
	cfg.Sampling = nil

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// LogSuccess records a completed fetch.
func (l *Logger) LogSuccess(url string, status int, size int, duration time.Duration) {
	l.sugar.Debugw("fetched", "url", url, "status", status, "bytes", size, "duration", duration)
}

// LogRetry records a retry of a throttled or unavailable page.
func (l *Logger) LogRetry(url string, attempt int, err error) {
	l.sugar.Warnw("retrying", "url", url, "attempt", attempt, "error", err)
}

// LogFailure records a fetch that gave up.
func (l *Logger) LogFailure(url string, err error) {
	l.sugar.Warnw("fetch failed", "url", url, "error", err)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
