package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// sensitiveKeys never reach the output with their values, whatever the
// caller passes.
var sensitiveKeys = map[string]bool{
	"password":   true,
	"secret":     true,
	"token":      true,
	"key":        true,
	"totp":       true,
	"master_key": true,
}

const redacted = "[REDACTED]"

// SlogLogger adapts a *slog.Logger.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewTextSlogLogger writes text records at level or above to w and masks
// the values of sensitive keys.
func NewTextSlogLogger(w io.Writer, level slog.Leveler) *SlogLogger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	})
	return NewSlogLogger(slog.New(h))
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
