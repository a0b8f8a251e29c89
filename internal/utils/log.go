package utils

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Routes slog through a charm logger writing to w and makes it the default.
func SetupLogger(w io.Writer, debug bool) *slog.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Opens the file a terminal ui logs to, it cannot log to the terminal it
// draws on. Without a path the logs are discarded.
func OpenLogFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "could not open log file")
	}
	return file, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
