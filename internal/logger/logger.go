// Package logger provides the structured slog logger for the service.
// Logs are written as JSON to a size-rotated file and mirrored to stderr.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger writing to <logDir>/notifyd.log with size
// rotation, and to stderr. The directory is created if it does not exist.
func New(logDir string, level slog.Level) (*slog.Logger, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, err
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "notifyd.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	handler := slog.NewJSONHandler(io.MultiWriter(rotated, os.Stderr), &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
