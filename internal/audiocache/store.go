// Package audiocache provides the content-addressed store for synthesized
// speech and the singleflight layer that collapses concurrent synthesis of
// identical response text into one upstream call.
package audiocache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no complete, non-expired entry exists for a key.
var ErrNotFound = errors.New("audio cache: entry not found")

// ErrUnavailable is returned when the backing store cannot be reached.
// Callers fall back to direct synthesis; cache failure never blocks a response.
var ErrUnavailable = errors.New("audio cache: store unavailable")

// Store is the backing store contract. Entries are immutable once written:
// a key either resolves to a complete clip or to ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, audio []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
