// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
	if cfg.File != "" {
		t.Errorf("expected no default log file, got %q", cfg.File)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"critical", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// The tests below mutate the global logger and must not run in parallel.

func TestInit_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	Info().Str("device", "10.0.0.5").Msg("connected")

	out := buf.String()
	if !strings.Contains(out, `"message":"connected"`) {
		t.Errorf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, `"device":"10.0.0.5"`) {
		t.Errorf("expected device field in output, got: %s", out)
	}
}

func TestInit_LogFileReceivesCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "punchsync.log")
	var buf bytes.Buffer
	if err := Init(Config{Level: "info", Format: "console", Output: &buf, File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
		_ = Init(DefaultConfig())
	})

	Warn().Msg("file copy")

	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"file copy"`) {
		t.Errorf("expected JSON line in log file, got: %s", data)
	}
	if !strings.Contains(buf.String(), "file copy") {
		t.Errorf("expected console output too, got: %s", buf.String())
	}
}

func TestInit_UnopenableFileFallsBack(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing-dir", "x.log")
	err := Init(Config{Level: "info", Output: &buf, File: path})
	t.Cleanup(func() { _ = Init(DefaultConfig()) })
	if err == nil {
		t.Fatal("expected error for unopenable log file")
	}

	Info().Msg("still logging")
	if !strings.Contains(buf.String(), "still logging") {
		t.Errorf("expected output to primary writer, got: %s", buf.String())
	}
}

func TestCritical_TagsSeverity(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	Critical().Msg("boom")

	out := buf.String()
	if !strings.Contains(out, `"severity":"critical"`) || !strings.Contains(out, `"level":"error"`) {
		t.Errorf("expected critical error event, got: %s", out)
	}
}

func TestCtx_AddsRunID(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	ctx := ContextWithRunID(context.Background(), "abcd1234")
	ctx = ContextWithRequestID(ctx, "req-1")
	Ctx(ctx).Info().Msg("tagged")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"abcd1234"`) {
		t.Errorf("expected run_id, got: %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("expected request_id, got: %s", out)
	}
}

func TestGenerateRunID(t *testing.T) {
	t.Parallel()

	a, b := GenerateRunID(), GenerateRunID()
	if len(a) != 8 {
		t.Errorf("expected 8 character run id, got %q", a)
	}
	if a == b {
		t.Error("expected distinct run ids")
	}
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty run id on bare context, got %q", got)
	}
}

func TestSlogHandler_ForwardsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	logger := NewSlogLogger().With("supervisor", "root").WithGroup("svc")
	logger.Warn("service restarted", "name", "scheduler", "attempt", 2)

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"supervisor":"root"`,
		`"svc.name":"scheduler"`,
		`"svc.attempt":2`,
		`"message":"service restarted"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
}

func TestToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := toZerologLevel(tt.in); got != tt.want {
			t.Errorf("toZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
