package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestResolveLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		flag        string
		env         string
		config      string
		want        slog.Level
		wantWarning string
		wantErr     bool
	}{
		{name: "default", want: slog.LevelInfo},
		{name: "config", config: "error", want: slog.LevelError},
		{name: "env beats config", env: "warning", config: "error", want: slog.LevelWarn},
		{name: "flag beats env", flag: "debug", env: "error", want: slog.LevelDebug},
		{name: "flag masks bad env", flag: "DEBUG", env: "loud", want: slog.LevelDebug},
		{name: "bad flag fails", flag: "loud", wantErr: true},
		{name: "bad env warns", env: "loud", config: "error", want: slog.LevelInfo, wantWarning: "JOBQ_LOG_LEVEL"},
		{name: "bad config warns", config: "loud", want: slog.LevelInfo, wantWarning: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(logLevelEnvKey, tt.env)
			level, warning, err := resolveLogLevel(levelSettings(tt.flag, tt.config))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if level != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, level)
			}
			if tt.wantWarning == "" && warning != "" {
				t.Fatalf("unexpected warning %q", warning)
			}
			if tt.wantWarning != "" && (!strings.Contains(warning, tt.wantWarning) || !strings.Contains(warning, "defaulting to info")) {
				t.Fatalf("expected warning naming %s, got %q", tt.wantWarning, warning)
			}
		})
	}
}

func TestNewLogHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	handler, err := newLogHandler(&buf, slog.LevelInfo, "json")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	logger := slog.New(handler)
	logger.Debug("hidden")
	logger.Info("session reaped", "session_id", "s1", "blobs", 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "session reaped" || record["session_id"] != "s1" {
		t.Fatalf("unexpected record %v", record)
	}

	if _, err := newLogHandler(&buf, slog.LevelInfo, "xml"); err == nil {
		t.Fatal("expected unknown format to be rejected")
	}
}

func TestSetupLoggingRejectsBadFormat(t *testing.T) {
	t.Setenv(logLevelEnvKey, "")
	t.Setenv(logFormatEnvKey, "xml")
	if _, err := setupLogging("", "info"); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}
