package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/sandeepkv93/live-voting-service/internal/config"
)

func TestNewLoggerWritesJSONWhenOTelLogsDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, lp, err := NewLogger(context.Background(), &config.Config{}, &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if lp != nil {
		t.Fatal("expected no logger provider when otel logs are disabled")
	}
	logger.Info("hello", "session_id", "s1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["msg"] != "hello" || line["session_id"] != "s1" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestFanoutHandlerDeliversToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := fanoutHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h).With("component", "test")
	logger.Info("info line")
	logger.Error("error line")

	if bytes.Count(a.Bytes(), []byte("\n")) != 2 {
		t.Fatalf("expected both records in first handler, got %q", a.String())
	}
	if bytes.Count(b.Bytes(), []byte("\n")) != 1 || !bytes.Contains(b.Bytes(), []byte(`"component":"test"`)) {
		t.Fatalf("expected only the error record with attrs in second handler, got %q", b.String())
	}
}

func TestRecordersAreNoopsWithoutMetrics(t *testing.T) {
	ctx := context.Background()
	RecordVoteCast(ctx, "ws", "success")
	RecordBroadcast(ctx, "stats:updated", 0)
	RecordRepositoryOperation(ctx, "vote", "create", "success")
	RecordConnectionDelta(ctx, "participant", 1)
}
