package audiocache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// SynthesisError wraps a failed upstream synthesis call. The failure path is
// never shared between waiters: each caller that observes it retries on its
// own.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// SynthFunc produces a complete audio clip for one response text.
type SynthFunc func(ctx context.Context) ([]byte, error)

// StreamFunc produces an audio clip as a sequence of chunks plus a terminal
// error channel, in the synthesizer idiom used across the codebase.
type StreamFunc func(ctx context.Context) (<-chan []byte, <-chan error)

// Options configures a Cache.
type Options struct {
	// TTL applied to newly written entries.
	TTL time.Duration
	// WaitTimeout bounds how long a request waits behind an in-flight
	// synthesis for the same key before proceeding independently.
	WaitTimeout time.Duration
}

// Cache layers singleflight semantics over a Store: concurrent requests for
// the same uncached key trigger exactly one synthesis call, and all of them
// observe the written entry. Distinct keys never contend.
type Cache struct {
	store       Store
	ttl         time.Duration
	waitTimeout time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

func New(store Store, opts Options, log *slog.Logger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	return &Cache{
		store:       store,
		ttl:         opts.TTL,
		waitTimeout: opts.WaitTimeout,
		log:         log.With(slog.String("component", "audio-cache")),
		inflight:    make(map[string]chan struct{}),
	}
}

// TTL reports the entry lifetime applied on write.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Exists reports whether a complete, non-expired entry is present. Store
// failures read as absent: existence is advisory only.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		c.log.Warn("cache existence check failed", slog.String("key", key), slogError(err))
		return false
	}
	return ok
}

// Get returns a cached clip without triggering synthesis.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.store.Get(ctx, key)
}

// claim marks key as having a synthesis in flight. The second return value
// is false when another request already holds the marker; the channel is then
// closed on release.
func (c *Cache) claim(key string) (chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.inflight[key]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	c.inflight[key] = ch
	return ch, true
}

func (c *Cache) release(key string, ch chan struct{}) {
	c.mu.Lock()
	if cur, ok := c.inflight[key]; ok && cur == ch {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	close(ch)
}

// lookup reads the store and distinguishes miss from degraded store.
func (c *Cache) lookup(ctx context.Context, key string) (data []byte, found, degraded bool) {
	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		return data, true, false
	case errors.Is(err, ErrNotFound):
		return nil, false, false
	default:
		c.log.Warn("cache lookup degraded", slog.String("key", key), slogError(err))
		return nil, false, true
	}
}

// writeEntry persists a freshly synthesized clip. Failures only degrade
// caching, never the response.
func (c *Cache) writeEntry(ctx context.Context, key string, data []byte) {
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn("cache write failed, entry not cached", slog.String("key", key), slogError(err))
	}
}

// GetOrSynthesize returns the cached clip for key, or synthesizes it through
// fn. On a miss it claims the per-key in-flight marker before calling fn;
// concurrent requests for the same key wait (bounded by the configured
// timeout) for the marker and then re-check the entry. Only the success path
// is shared: after a failed or timed-out flight each waiter makes its own
// attempt. An unreachable store bypasses caching entirely.
func (c *Cache) GetOrSynthesize(ctx context.Context, key string, fn SynthFunc) ([]byte, error) {
	waited := false
	for {
		data, found, degraded := c.lookup(ctx, key)
		if found {
			return data, nil
		}
		if degraded {
			return c.synthesize(ctx, fn)
		}

		ch, claimed := c.claim(key)
		if claimed {
			data, err := c.synthesize(ctx, fn)
			if err != nil {
				c.release(key, ch)
				return nil, err
			}
			c.writeEntry(ctx, key, data)
			c.release(key, ch)
			return data, nil
		}

		if waited {
			// Already waited one full flight that did not produce an entry;
			// do not queue behind another one.
			data, err := c.synthesize(ctx, fn)
			if err != nil {
				return nil, err
			}
			c.writeEntry(ctx, key, data)
			return data, nil
		}

		timer := time.NewTimer(c.waitTimeout)
		select {
		case <-ch:
			timer.Stop()
			waited = true
			// Loop: re-check the entry, then claim or synthesize.
		case <-timer.C:
			data, err := c.synthesize(ctx, fn)
			if err != nil {
				return nil, err
			}
			c.writeEntry(ctx, key, data)
			return data, nil
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func (c *Cache) synthesize(ctx context.Context, fn SynthFunc) ([]byte, error) {
	data, err := fn(ctx)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	return data, nil
}

// OpenStream is the streaming variant used by the framed endpoint. A hit
// returns a reader over the cached clip. A miss claims the in-flight marker,
// starts fn, and returns a reader that surfaces chunks as they are produced
// while teeing them into a buffer; when the stream completes cleanly the
// entry is written and the marker released. If the consumer stops reading
// (client disconnect) or synthesis fails, the marker is released without a
// write. The cached return value reports whether the clip came from the
// store.
func (c *Cache) OpenStream(ctx context.Context, key string, fn StreamFunc) (rc io.ReadCloser, cached bool, err error) {
	data, found, degraded := c.lookup(ctx, key)
	if found {
		return io.NopCloser(bytes.NewReader(data)), true, nil
	}

	var ch chan struct{}
	claimed := false
	if !degraded {
		ch, claimed = c.claim(key)
		if !claimed {
			timer := time.NewTimer(c.waitTimeout)
			select {
			case <-ch:
				timer.Stop()
				if data, found, _ := c.lookup(ctx, key); found {
					return io.NopCloser(bytes.NewReader(data)), true, nil
				}
				ch, claimed = c.claim(key)
			case <-timer.C:
				// Proceed independently; no marker held.
			case <-ctx.Done():
				timer.Stop()
				return nil, false, ctx.Err()
			}
		}
	}

	chunks, errs := fn(ctx)
	pr, pw := io.Pipe()

	go func() {
		var buf bytes.Buffer
		failed := false
		for chunks != nil || errs != nil {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					chunks = nil
					continue
				}
				buf.Write(chunk)
				if _, werr := pw.Write(chunk); werr != nil {
					// Consumer gone; abandon the stream, do not retry.
					failed = true
					chunks, errs = nil, nil
				}
			case serr, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if serr != nil {
					failed = true
					pw.CloseWithError(&SynthesisError{Err: serr})
					chunks, errs = nil, nil
				}
			case <-ctx.Done():
				failed = true
				pw.CloseWithError(ctx.Err())
				chunks, errs = nil, nil
			}
		}
		if claimed {
			defer c.release(key, ch)
		}
		if failed {
			pw.CloseWithError(io.ErrClosedPipe)
			return
		}
		if !degraded {
			c.writeEntry(ctx, key, buf.Bytes())
		}
		pw.Close()
	}()

	return pr, false, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
