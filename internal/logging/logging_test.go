package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("expected log message in output, got: %s", output)
	}

	var logEntry map[string]interface{}
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got: %v", logEntry["msg"])
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf).With("components", 4)

	logger.Info("fit started")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if logEntry["components"] != float64(4) {
		t.Errorf("expected components=4, got: %v", logEntry["components"])
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	ctx := ContextWithFitID(context.Background(), "fit-abc")
	ctx = ContextWithBuildID(ctx, "build-def")
	logger.WithContext(ctx).Info("ready")

	output := buf.String()
	if !strings.Contains(output, `"fit_id":"fit-abc"`) {
		t.Errorf("fit_id missing from output: %s", output)
	}
	if !strings.Contains(output, `"build_id":"build-def"`) {
		t.Errorf("build_id missing from output: %s", output)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if got := FitIDFromContext(ctx); got != "" {
		t.Errorf("empty context returned fit id %q", got)
	}
	if got := BuildIDFromContext(ctx); got != "" {
		t.Errorf("empty context returned build id %q", got)
	}

	ctx = ContextWithFitID(ctx, "f-1")
	ctx = ContextWithBuildID(ctx, "b-1")
	if got := FitIDFromContext(ctx); got != "f-1" {
		t.Errorf("fit id = %q", got)
	}
	if got := BuildIDFromContext(ctx); got != "b-1" {
		t.Errorf("build id = %q", got)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	// Must not panic and must not write anywhere observable.
	logger := Nop()
	logger.Info("dropped")
	logger.With("k", "v").Error("also dropped")
}
