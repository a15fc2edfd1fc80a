package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelsFilterOutput(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		logFunc  func(string, ...any)
		logMsg   string
		expected bool
	}{
		{"debug when debug level", "debug", Debug, "debug message", true},
		{"debug when info level", "info", Debug, "debug message", false},
		{"warn when info level", "info", Warn, "warn message", true},
		{"info when error level", "error", Info, "info message", false},
		{"error when error level", "error", Error, "error message", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetDefault(NewText(tt.logLevel, &buf))

			tt.logFunc(tt.logMsg)
			output := buf.String()

			if tt.expected != strings.Contains(output, tt.logMsg) {
				t.Errorf("level %s: output %q, expected logged=%v", tt.logLevel, output, tt.expected)
			}
		})
	}
}

func TestNewWithFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewWithFormat("json", "info", &buf))

	Info("generation complete", "generation", 3, "evaluations", 44)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log output: %v", err)
	}
	if entry["msg"] != "generation complete" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["generation"] != float64(3) {
		t.Errorf("generation = %v", entry["generation"])
	}
}

func TestNewWithFormatText(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithFormat("text", "info", &buf)
	l.Info("solver finished", "stress", 1.5e8)

	out := buf.String()
	if !strings.Contains(out, "msg=\"solver finished\"") || !strings.Contains(out, "stress=1.5e+08") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New("info", &buf))

	With("run_id", "run-1").Info("started")

	if !strings.Contains(buf.String(), `"run_id":"run-1"`) {
		t.Errorf("expected run_id attribute, got %s", buf.String())
	}
}
