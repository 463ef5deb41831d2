package audiocache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists cache entries in a local SQLite database. Expiry is
// passive: stale rows are rejected on read and cleaned up lazily or by Prune.
type SQLiteStore struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS audio_cache (
    cache_key TEXT PRIMARY KEY,
    audio BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audio_cache_expires ON audio_cache(expires_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var audio []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT audio, expires_at FROM audio_cache WHERE cache_key = ?`, key).
		Scan(&audio, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if s.clock().UnixMilli() >= expiresAt {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_cache WHERE cache_key = ?`, key); err != nil {
			s.log.Warn("failed to delete expired cache entry", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, ErrNotFound
	}
	return audio, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, audio []byte, ttl time.Duration) error {
	now := s.clock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_cache(cache_key, audio, created_at, expires_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET audio=excluded.audio, created_at=excluded.created_at, expires_at=excluded.expires_at`,
		key, audio, now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Prune removes every expired row. Not required for correctness, only to
// keep the database small; suitable for a startup or periodic call.
func (s *SQLiteStore) Prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audio_cache WHERE expires_at <= ?`, s.clock().UnixMilli())
	return err
}
