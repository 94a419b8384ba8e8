package logs

import (
	"bytes"
	"context"
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
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLokiPushURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://loki:3100", "http://loki:3100/loki/api/v1/push"},
		{"http://loki:3100/", "http://loki:3100/loki/api/v1/push"},
		{"http://loki:3100/loki/api/v1/push", "http://loki:3100/loki/api/v1/push"},
	}
	for _, tt := range tests {
		if got := lokiPushURL(tt.in); got != tt.want {
			t.Errorf("lokiPushURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMultiHandlerFansOutByLevel(t *testing.T) {
	var debugBuf, errBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h).With("service", "test")

	logger.Info("queue_confirmed", "queue_item_id", "q1")
	logger.Error("payment_failed")

	if got := strings.Count(debugBuf.String(), "\n"); got != 2 {
		t.Errorf("debug handler lines = %d, want 2", got)
	}
	if got := strings.Count(errBuf.String(), "\n"); got != 1 {
		t.Errorf("error handler lines = %d, want 1", got)
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.Split(errBuf.String(), "\n")[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["service"] != "test" || rec["msg"] != "payment_failed" {
		t.Errorf("unexpected record: %v", rec)
	}

	if h.Enabled(context.Background(), slog.LevelDebug-4) {
		t.Error("Enabled() = true below every handler level")
	}
}
