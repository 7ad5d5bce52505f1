package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"advisor-dashboard/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFrom(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggerConfig{Level: "info", Format: "json"})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx, span := StartSpan(ctx, "GET /api/overview")
	LoggerFrom(ctx, logger).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if line["request_id"] != "req-1" {
		t.Errorf("request_id = %v", line["request_id"])
	}
	if line["trace_id"] != span.TraceID || line["span_id"] != span.SpanID {
		t.Errorf("trace attrs = %v/%v, want %s/%s", line["trace_id"], line["span_id"], span.TraceID, span.SpanID)
	}
}

func TestStartSpan_Nesting(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "request")
	_, child := StartSpan(ctx, "analysis")

	if child.TraceID != parent.TraceID {
		t.Error("child span should share the trace id")
	}
	if child.ParentID != parent.SpanID {
		t.Errorf("child parent id = %q, want %q", child.ParentID, parent.SpanID)
	}
	if len(parent.SpanID) != 16 {
		t.Errorf("span id %q should be 16 hex chars", parent.SpanID)
	}

	child.SetTag("view", "overview")
	child.SetError(errors.New("boom"))
	child.Finish()
	if child.Status != SpanStatusError || child.Error != "boom" {
		t.Errorf("span status = %s, error = %q", child.Status, child.Error)
	}

	attrs := child.LogAttrs()
	if len(attrs)%2 != 0 {
		t.Fatalf("LogAttrs() returned an odd number of values: %v", attrs)
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closeFn := NewLogger(config.LoggerConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1, MaxBackups: 1})
	logger.Info("written")
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}
}
