package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
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

// Options selects where and how verbosely New writes.
type Options struct {
	// File, when set, sends JSON records to a size-rotated log file instead
	// of stderr.
	File string
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
}

// New builds the process logger. Records go to File through lumberjack when
// configured; otherwise to stderr, as text on a terminal and JSON elsewhere.
func New(opts Options) *SlogLogger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	if opts.File != "" {
		w := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, handlerOpts)))
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)))
	}
	return NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)))
}

// ParseLevel maps a config string onto a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
