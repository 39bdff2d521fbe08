package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config LogConfig
	}{
		{
			name: "json format",
			config: LogConfig{
				Level:  "info",
				Format: "json",
			},
		},
		{
			name: "text format",
			config: LogConfig{
				Level:  "debug",
				Format: "text",
			},
		},
		{
			name:   "defaults",
			config: LogConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("NewLogger() returned nil")
			}
			if logger.logger == nil {
				t.Error("Logger.logger is nil")
			}
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:  "warn",
		Format: "json",
		Output: &buf,
	})

	ctx := context.Background()
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("below-threshold messages were logged: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected warn and error messages, got: %s", out)
	}
}

func TestLoggerContextCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithSessionID(ctx, "projet_alpha")
	logger.Info(ctx, "step executed", "tool", "files")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", record["request_id"])
	}
	if record["session_id"] != "projet_alpha" {
		t.Errorf("session_id = %v, want projet_alpha", record["session_id"])
	}
	if record["tool"] != "files" {
		t.Errorf("tool = %v, want files", record["tool"])
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"api key assignment", "api_key=sk4f8a9b2c1d6e3f7a8b9c0d1e2f3a4b5"},
		{"anthropic key", "sk-ant-" + strings.Repeat("a", 96)},
		{"bearer token", "bearer abcdefghijklmnop1234"},
		{"password", "password: hunter2hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(LogConfig{
				Level:  "info",
				Format: "json",
				Output: &buf,
			})

			logger.Info(context.Background(), "config loaded", "detail", tt.input)

			out := buf.String()
			if !strings.Contains(out, "[REDACTED]") {
				t.Errorf("expected redaction in output: %s", out)
			}
		})
	}
}

func TestLoggerRedactsSensitiveMapKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	logger.Info(context.Background(), "provider configured", "provider", map[string]any{
		"base_url": "http://localhost:11434/v1",
		"api_key":  "super-secret-value",
	})

	out := buf.String()
	if strings.Contains(out, "super-secret-value") {
		t.Errorf("api_key value leaked into log output: %s", out)
	}
	if !strings.Contains(out, "localhost:11434") {
		t.Errorf("benign value was dropped: %s", out)
	}
}

func TestLoggerRedactsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	err := errors.New("auth failed for api_key=sk4f8a9b2c1d6e3f7a8b9c0d1e2f3a4b5")
	logger.Error(context.Background(), "provider call failed", "error", err)

	if strings.Contains(buf.String(), "sk4f8a9b2c1d6e3f7a8b9c0d1e2f3a4b5") {
		t.Errorf("secret leaked through error value: %s", buf.String())
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	child := logger.With("component", "executor")
	child.Info(context.Background(), "step done")

	if !strings.Contains(buf.String(), `"component":"executor"`) {
		t.Errorf("expected inherited attribute in output: %s", buf.String())
	}
}
