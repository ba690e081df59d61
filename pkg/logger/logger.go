// Package logger builds the structured loggers used by the API and
// migration binaries.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog.Logger tagged with the given service name.
func New(service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// LevelFor maps the deployment environment to a log level. Development
// runs at debug; every other environment logs at info.
func LevelFor(environment string) slog.Level {
	if strings.EqualFold(strings.TrimSpace(environment), "development") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
