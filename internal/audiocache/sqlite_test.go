package audiocache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "cache.db"), newLogger())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	key := DeriveKey("sqlite round trip")
	if _, err := store.Get(ctx, key); err != ErrNotFound {
		t.Fatalf("expected miss, got %v", err)
	}

	audio := []byte{0x49, 0x44, 0x33, 0x00, 0x0a, 0xff}
	if err := store.Set(ctx, key, audio, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(audio) {
		t.Fatalf("payload mismatch: %v", got)
	}

	ok, err := store.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, key); err != ErrNotFound {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestSQLiteStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "cache.db"), newLogger())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	if err := store.Set(ctx, "tts:short", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, err := store.Get(ctx, "tts:short"); err != nil {
		t.Fatalf("expected hit before expiry: %v", err)
	}

	now = now.Add(time.Second)
	if _, err := store.Get(ctx, "tts:short"); err != ErrNotFound {
		t.Fatalf("expected miss at expiry, got %v", err)
	}
}

func TestSQLitePrune(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "cache.db"), newLogger())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	if err := store.Set(ctx, "tts:old", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set old: %v", err)
	}
	if err := store.Set(ctx, "tts:fresh", []byte("y"), time.Hour); err != nil {
		t.Fatalf("set fresh: %v", err)
	}

	now = now.Add(10 * time.Minute)
	if err := store.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if _, err := store.Get(ctx, "tts:old"); err != ErrNotFound {
		t.Fatalf("expected old entry pruned, got %v", err)
	}
	if _, err := store.Get(ctx, "tts:fresh"); err != nil {
		t.Fatalf("expected fresh entry kept: %v", err)
	}
}
