package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation limits.
const (
	// MaxLogSizeMB is the size at which the log file is rotated.
	MaxLogSizeMB = 10

	// MaxLogBackups is the number of rotated files kept.
	MaxLogBackups = 3
)

func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewLogger creates a text logger for the console.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level(verbose)}))
}

// NewJSONLogger creates a logger that outputs JSON, one record per line.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level(verbose)}))
}

// NewFileLogger creates a logger that writes text to console at the
// verbosity selected by verbose and every record from Debug up as JSON to
// path. The file is rotated by size. The returned closer closes the file.
func NewFileLogger(console io.Writer, path string, verbose bool) (*slog.Logger, io.Closer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, err
		}
	}

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxLogSizeMB,
		MaxBackups: MaxLogBackups,
		LocalTime:  true,
	}

	handler := NewFanoutHandler(
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level(verbose)}),
		slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	return slog.New(handler), lj, nil
}
