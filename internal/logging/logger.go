// Package logging wraps zerolog with subsystem-scoped child loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger that hands out tagged children.
type Logger struct {
	zl zerolog.Logger
}

// Options controls how NewFromOptions builds the root logger.
type Options struct {
	Level  string // trace|debug|info|warn|error|fatal|silent
	Format string // pretty|json
	File   string // optional path; output is duplicated there as JSON
}

var levels = map[string]zerolog.Level{
	"trace":  zerolog.TraceLevel,
	"debug":  zerolog.DebugLevel,
	"info":   zerolog.InfoLevel,
	"warn":   zerolog.WarnLevel,
	"error":  zerolog.ErrorLevel,
	"fatal":  zerolog.FatalLevel,
	"silent": zerolog.Disabled,
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	_, ok := levels[s]
	return ok
}

func parseLevel(s string) zerolog.Level {
	if lvl, ok := levels[s]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

func console() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
}

// New returns a root logger writing to w at level. Unknown levels mean info.
// A nil w selects the pretty console writer on stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = console()
	}
	return &Logger{zl: zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()}
}

// NewFromOptions builds the root logger. The returned closer releases the
// log file, if any, and is never nil.
func NewFromOptions(opts Options) (*Logger, io.Closer, error) {
	if opts.Level != "" && !ValidLevel(opts.Level) {
		return nil, nopCloser{}, fmt.Errorf("unknown log level %q", opts.Level)
	}

	var out io.Writer
	switch opts.Format {
	case "", "pretty":
		out = console()
	case "json":
		out = os.Stderr
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown log format %q", opts.Format)
	}
	if opts.File == "" {
		return New(out, opts.Level), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, nopCloser{}, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("opening log file: %w", err)
	}
	return New(zerolog.MultiLevelWriter(out, f), opts.Level), f, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Sub returns a child logger tagged with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return l.With("subsystem", subsystem)
}

// With returns a child logger carrying an extra string field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
