package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Logger is a thin wrapper over slog that keeps the Printf-style call sites
// used across the handlers and services.
type Logger struct {
	sl *slog.Logger
}

func NewLogger() *Logger {
	return NewLoggerWithLevel("info")
}

func NewLoggerWithLevel(level string) *Logger {
	return &Logger{sl: slog.New(newHandler(os.Stderr, parseLevel(level)))}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.sl == nil {
		return
	}
	l.sl.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || l.sl == nil {
		return
	}
	l.sl.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.sl == nil {
		return
	}
	l.sl.Error(fmt.Sprintf(format, args...))
}
