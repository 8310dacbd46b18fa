package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNew_EmbedsService(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "reportd", slog.LevelInfo)
	log.Debug("hidden")
	log.Info("built", "symbol", "ACME")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["service"] != "reportd" || rec["symbol"] != "ACME" || rec["msg"] != "built" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if id := RequestID(ctx); id != "" {
		t.Errorf("expected empty request id, got %q", id)
	}

	ctx = WithRequestID(ctx, "req-123")
	if id := RequestID(ctx); id != "req-123" {
		t.Errorf("expected 'req-123', got %q", id)
	}
}

func TestGenerateRequestID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	id := GenerateRequestID("ACME", ts)

	if !strings.HasPrefix(id, "ACME-") {
		t.Errorf("expected request id to start with 'ACME-', got %s", id)
	}
	if !strings.Contains(id, "123456789") {
		t.Errorf("expected request id to contain nanoseconds, got %s", id)
	}
}

func TestLogWithRequest(t *testing.T) {
	ctx := context.Background()

	if attrs := LogWithRequest(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no request id, got %v", attrs)
	}

	ctx = WithRequestID(ctx, "abc-123")
	attrs := LogWithRequest(ctx)
	if len(attrs) != 1 {
		t.Fatalf("expected one attr with request id set, got %v", attrs)
	}
	if a, ok := attrs[0].(slog.Attr); !ok || a.Value.String() != "abc-123" {
		t.Errorf("unexpected attr %v", attrs[0])
	}
}
