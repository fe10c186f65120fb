// Package logging builds the label agent's JSON logger and the attribute
// helpers shared by its components.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
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

// NewLogger returns the agent's JSON logger on stdout.
func NewLogger(level string) *slog.Logger {
	return New(os.Stdout, level)
}

// New returns a JSON logger writing to w. Debug loggers record the call
// site.
func New(w io.Writer, level string) *slog.Logger {
	lvl := ParseLevel(level)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
}

// WithRequestID returns a logger with request_id attribute
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithComponent returns a logger with component attribute
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithJobID returns a logger with job_id attribute
func WithJobID(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With("job_id", jobID)
}

// WithLabelHash returns a logger with label_hash attribute
func WithLabelHash(logger *slog.Logger, labelHash string) *slog.Logger {
	return logger.With("label_hash", labelHash)
}

// WithInstanceHash returns a logger with instance_hash attribute
func WithInstanceHash(logger *slog.Logger, instanceHash string) *slog.Logger {
	return logger.With("instance_hash", instanceHash)
}

// SanitizeToken keeps the first and last four characters of a token.
// Tokens of eight characters or fewer are fully masked.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizePath shortens paths under the home directory to ~.
func SanitizePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
