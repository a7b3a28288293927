package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFormats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := New(Options{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		l.Info("hello %s", format)
		l.With("association", "Anoka").Debug("child")
	}
}

func TestNopDiscards(t *testing.T) {
	l := NewNop()
	l.Error("nothing %d", 1)
	l.LogRetry("https://example.com", 1, nil)
}
