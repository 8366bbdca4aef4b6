package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"jobq/internal/config"
)

const (
	logLevelEnvKey  = "JOBQ_LOG_LEVEL"
	logFormatEnvKey = "JOBQ_LOG_FORMAT"
)

// levelSetting is one place a log level can come from, in precedence order.
type levelSetting struct {
	name  string
	value string
	// strict settings fail the command instead of falling back.
	strict bool
}

func levelSettings(flagLevel, configLevel string) []levelSetting {
	return []levelSetting{
		{name: "--log-level", value: flagLevel, strict: true},
		{name: logLevelEnvKey, value: os.Getenv(logLevelEnvKey)},
		{name: "log_level", value: configLevel},
	}
}

// setupLogging installs the process logger on stderr. The first non-empty
// setting wins; a bad env or config value degrades to the default level and
// comes back as a warning for the user.
func setupLogging(flagLevel, configLevel string) (warning string, err error) {
	level, warning, err := resolveLogLevel(levelSettings(flagLevel, configLevel))
	if err != nil {
		return "", err
	}
	handler, err := newLogHandler(os.Stderr, level, os.Getenv(logFormatEnvKey))
	if err != nil {
		return "", err
	}
	slog.SetDefault(slog.New(handler))
	return warning, nil
}

func resolveLogLevel(settings []levelSetting) (slog.Level, string, error) {
	fallback, _ := parseLogLevel(config.DefaultLogLevel)
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			continue
		}
		level, err := parseLogLevel(s.value)
		switch {
		case err == nil:
			return level, "", nil
		case s.strict:
			return fallback, "", fmt.Errorf("invalid %s %q", s.name, s.value)
		default:
			return fallback, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", s.name, s.value, config.DefaultLogLevel), nil
		}
	}
	return fallback, "", nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// newLogHandler picks text output for terminals and JSON for log shippers.
func newLogHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid %s %q (want text or json)", logFormatEnvKey, format)
	}
}
