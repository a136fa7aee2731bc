// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or "file"
	Level  string // "debug", "info", "warn", "error"
	File   string // log file path (used when Output is "file")
}

// Init initializes the global zerolog logger with the given configuration.
// The returned closer releases the log file, if one was opened.
func Init(cfg Config) (io.Closer, error) {
	level := parseLevel(cfg.Level)

	var (
		writer  io.Writer
		closer  io.Closer = nopCloser{}
		console bool
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		writer, console = os.Stdout, true
	case "stderr":
		writer, console = os.Stderr, true
	default:
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log file %s", cfg.File)
		}
		writer, closer = f, f
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.CallerMarshalFunc = shortCaller

	logger := newLogger(writer, console, level)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	return closer, nil
}

// newLogger builds a console logger (colored) or a JSON logger.
// Caller info is only attached at debug level.
func newLogger(w io.Writer, console bool, level zerolog.Level) zerolog.Logger {
	debug := level == zerolog.DebugLevel

	if !console {
		ctx := zerolog.New(w).With().Timestamp()
		if debug {
			ctx = ctx.Caller()
		}
		return ctx.Logger()
	}

	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
	if !debug {
		return zerolog.New(cw).With().Timestamp().Logger()
	}

	cw.PartsOrder = []string{"time", "level", "message", "caller"}
	cw.FormatCaller = func(i interface{}) string {
		return "(" + i.(string) + ")"
	}
	return zerolog.New(cw).With().Timestamp().Caller().Logger()
}

// shortCaller renders the caller as dir/file.go:line.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
