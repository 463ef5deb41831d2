// Package session issues and validates short-lived conversation identifiers.
// A session is a correlation token only; no conversation state lives here.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks known session identifiers with a time-to-live. It is safe
// for concurrent use and injected explicitly wherever sessions are needed.
type Registry struct {
	ttl   time.Duration
	log   *slog.Logger
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewRegistry(ttl time.Duration, log *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{
		ttl:      ttl,
		log:      log.With(slog.String("component", "session-registry")),
		clock:    time.Now,
		sessions: make(map[string]time.Time),
	}
}

// Ensure returns a valid session identifier: the supplied one if it is known
// and unexpired (its lifetime is renewed), otherwise a freshly issued one.
// The second return value reports whether a new identifier was created.
func (r *Registry) Ensure(id string) (string, bool) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if expires, ok := r.sessions[id]; ok && now.Before(expires) {
			r.sessions[id] = now.Add(r.ttl)
			return id, false
		}
	}

	fresh := uuid.New().String()
	r.sessions[fresh] = now.Add(r.ttl)
	r.log.Debug("session created", slog.String("session_id", fresh))
	return fresh, true
}

// Valid reports whether id is a known, unexpired session.
func (r *Registry) Valid(id string) bool {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	expires, ok := r.sessions[id]
	if !ok {
		return false
	}
	if !now.Before(expires) {
		delete(r.sessions, id)
		return false
	}
	return true
}

// Delete discards a session identifier. Idempotent: deleting an unknown or
// already-cleared identifier succeeds.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Sweep drops expired identifiers and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, expires := range r.sessions {
		if !now.Before(expires) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
