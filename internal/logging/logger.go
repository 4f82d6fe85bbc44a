package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // console, json or auto
	File   string
}

// New builds a zerolog logger writing to stderr and, optionally, a file.
// The returned closer releases the log file; it is never nil.
func New(opts Options) (zerolog.Logger, func() error, error) {
	closer := func() error { return nil }

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" || format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "console"
		}
	}

	var console io.Writer
	switch format {
	case "console":
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	case "json":
		console = os.Stderr
	default:
		return zerolog.Nop(), closer, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	out := console
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("ensure log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		closer = f.Close
		out = zerolog.MultiLevelWriter(console, f)
	}

	logger := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	return logger, closer, nil
}

// ParseLevel maps a textual level to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
