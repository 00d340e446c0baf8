// Package logger provides structured logging for InboxIntel.
// It uses Go's slog package with configurable levels and formats.
package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	return newLogger(os.Stdout, levelStr, jsonOutput)
}

func newLogger(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Middleware creates a request logging middleware for the fiber server.
// It logs method, path, status and duration of every request; server
// errors are logged at error level.
func Middleware(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		logEntry := log.With(
			"method", c.Method(),
			"path", c.Path(),
			"remote_ip", c.IP(),
		)
		logEntry.Debug("Processing request")

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if err != nil {
			status = fiber.StatusInternalServerError
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
		}

		attrs := []any{
			"status", status,
			"duration", time.Since(startTime),
			"bytes", len(c.Response().Body()),
		}

		switch {
		case err != nil && fiberErr == nil:
			logEntry.Error("Request failed", append(attrs, "error", err)...)
		case status >= fiber.StatusInternalServerError:
			logEntry.Error("Finished request", attrs...)
		case status >= fiber.StatusBadRequest:
			logEntry.Warn("Finished request", attrs...)
		default:
			logEntry.Info("Finished request", attrs...)
		}

		return err
	}
}
