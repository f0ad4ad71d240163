package infra

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger for the CLI. Output goes to a
// console writer on stderr and, when logDir is non-empty, to a session
// log file under that directory so failures stay inspectable after the
// terminal scrolls away.
func NewLogger(logDir string, verbose bool) Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	writers := []io.Writer{console}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			path := filepath.Join(logDir, "curator.log")
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				writers = append(writers, f)
			}
		}
		// A failed log file is not worth aborting the run for.
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Logger aliases zerolog.Logger so the rest of the module depends on
// the logging contract without importing the third-party package
// directly.
type Logger = zerolog.Logger
