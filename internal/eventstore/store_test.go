package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/hawkaii/raahi-assistant/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "turns.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open turn store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	sessionID := "session-123"
	if err := es.AppendSession(context.Background(), sessionID, "Ramesh", "truck"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	turn := Turn{
		SessionID: sessionID,
		Intent:    "get_duties",
		UIAction:  "show_duties_list",
		Query:     "Delhi se Mumbai duty",
		CacheHit:  true,
		LatencyMS: 42,
		Payload:   []byte(`{"duties":3}`),
	}
	if err := es.AppendTurn(context.Background(), turn); err != nil {
		t.Fatalf("append turn: %v", err)
	}
	turns, err := es.ListSessionTurns(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	got := turns[0]
	if got.Intent != "get_duties" || got.UIAction != "show_duties_list" {
		t.Fatalf("unexpected turn: %+v", got)
	}
	if !got.CacheHit || got.LatencyMS != 42 {
		t.Fatalf("cache hit or latency lost: %+v", got)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "turns.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open turn store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "old-session", "Ramesh", "truck"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendTurn(context.Background(), Turn{SessionID: "old-session", Intent: "generic"}); err != nil {
		t.Fatalf("append turn: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "new-session", "Suresh", "mini"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	turns, err := es.ListSessionTurns(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
