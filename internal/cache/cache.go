// Package cache provides the TTL-keyed response cache with single-flight
// computation sharing.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
	"github.com/smartroute/smart-route/internal/pkg/logger"
)

// Entry is one cached response. Entries are immutable once written and
// replaced wholesale on overwrite.
type Entry struct {
	Key       string    `json:"key"`
	Payload   string    `json:"payload"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is the pluggable persistence backend.
type Store interface {
	// Get returns the entry for key, or ok=false on miss. Expired entries
	// may still be returned; the cache treats them as misses.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Put writes an entry, overwriting any existing one for the key.
	Put(ctx context.Context, entry *Entry) error

	// Delete removes an entry.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Stored int64 `json:"stored"`
	Errors int64 `json:"errors"`
}

// ComputeFunc produces the payload for a key on cache miss.
type ComputeFunc func(ctx context.Context) (string, error)

// Cache is a TTL response cache with a single-flight guarantee: at most one
// computation per key runs at a time, and concurrent callers for the same
// key share its result. Store failures degrade to always-miss rather than
// blocking routing.
type Cache struct {
	store Store
	ttl   time.Duration
	log   *logger.Logger

	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	stored atomic.Int64
	errors atomic.Int64
}

// New creates a cache over the given store.
func New(store Store, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		store: store,
		ttl:   ttl,
		log:   log.WithComponent("cache"),
	}
}

// sfResult carries a shared computation result to all waiters.
type sfResult struct {
	payload string
	hit     bool
}

// GetOrCompute returns the cached payload for key, or runs compute exactly
// once across concurrent callers and caches its result. The shared
// computation is detached from the first caller's context: a waiter whose
// context expires stops waiting, but the computation continues for the
// others and its result is still cached. Failed computations are never
// cached.
func (c *Cache) GetOrCompute(ctx context.Context, key, model string, compute ComputeFunc) (string, bool, error) {
	if entry, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		return entry.Payload, true, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Double-check under single-flight: a concurrent caller may have
		// stored the value between our miss and this execution.
		detached := context.WithoutCancel(ctx)
		if entry, ok := c.lookup(detached, key); ok {
			return sfResult{payload: entry.Payload, hit: true}, nil
		}

		payload, err := compute(detached)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		entry := &Entry{
			Key:       key,
			Payload:   payload,
			Model:     model,
			CreatedAt: now,
			ExpiresAt: now.Add(c.ttl),
		}
		if err := c.store.Put(detached, entry); err != nil {
			// Fail open: the response is still served.
			c.errors.Add(1)
			c.log.Warn("cache store put failed", "key", key, "error", err)
		} else {
			c.stored.Add(1)
		}

		return sfResult{payload: payload}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		r := res.Val.(sfResult)
		if r.hit {
			c.hits.Add(1)
		} else {
			c.misses.Add(1)
		}
		return r.payload, r.hit, nil
	case <-ctx.Done():
		// Stop waiting; the shared computation keeps running for the
		// remaining waiters.
		c.misses.Add(1)
		return "", false, ctx.Err()
	}
}

// Get returns the cached payload for key without computing on miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	entry, ok := c.lookup(ctx, key)
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return entry.Payload, true
}

// Put writes a payload directly with the configured TTL.
func (c *Cache) Put(ctx context.Context, key, model, payload string) error {
	now := time.Now()
	err := c.store.Put(ctx, &Entry{
		Key:       key,
		Payload:   payload,
		Model:     model,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	})
	if err != nil {
		c.errors.Add(1)
		return apperrors.CacheError("storing cache entry", err)
	}
	c.stored.Add(1)
	return nil
}

// lookup fetches a live entry, treating store errors and expired entries
// as misses. Expired entries are deleted on read.
func (c *Cache) lookup(ctx context.Context, key string) (*Entry, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.errors.Add(1)
		c.log.Warn("cache store get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if entry.Expired(time.Now()) {
		if err := c.store.Delete(ctx, key); err != nil {
			c.errors.Add(1)
		}
		return nil, false
	}
	return entry, true
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Stored: c.stored.Load(),
		Errors: c.errors.Load(),
	}
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
