package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Backend names accepted by New.
const (
	BackendSlog    = "slog"
	BackendZap     = "zap"
	BackendZerolog = "zerolog"
)

// New builds a Logger for the named backend writing to w at the given level
// (debug, info, warn or error). An empty backend selects slog.
func New(backend, level string, w io.Writer) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(backend) {
	case "", BackendSlog:
		return NewTextSlogLogger(w, lvl), nil

	case BackendZap:
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zapLevel(lvl))
		return NewZapLogger(zap.New(core).Sugar()), nil

	case BackendZerolog:
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}).
			Level(zerologLevel(lvl)).
			With().Timestamp().Logger()
		return NewZerologLogger(zl), nil

	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
