package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("permission", "orders.read.all").
		WithField("principal_id", "user-1").
		Info("Decision made")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "Decision made" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["permission"] != "orders.read.all" {
		t.Errorf("permission field = %v", entry["permission"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("dropped")
	logger.Info("dropped too")
	if buf.Len() != 0 {
		t.Errorf("below-level output written: %s", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn output missing")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"Debug":   DebugLevel,
		"info":    InfoLevel,
		"WARN":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" {
		t.Error("empty context should yield empty request id")
	}

	ctx = WithRequestID(ctx, "req-123")
	if GetRequestID(ctx) != "req-123" {
		t.Errorf("GetRequestID = %q", GetRequestID(ctx))
	}
}

func TestLoggerFromContext(t *testing.T) {
	base := NewLogger(DebugLevel, &bytes.Buffer{})
	ctx := WithLogger(context.Background(), base)
	if FromContext(ctx) != base {
		t.Error("context logger not returned")
	}
	if FromContext(context.Background()) == nil {
		t.Error("missing logger must fall back to a default, not nil")
	}
}
