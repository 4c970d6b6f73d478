// Package cache provides the bounded, fingerprint-keyed result cache
// that sits in front of adapters and analyzers. Entries are evicted by
// least-recent access when capacity is exceeded and treated as absent
// once their TTL elapses.
//
// The cache guarantees at most one concurrent compute per fingerprint:
// concurrent callers with the same fingerprint share the single
// in-flight computation instead of triggering duplicate upstream calls.
// A caller that cancels while others still wait detaches without
// disturbing them; when the last waiter leaves, the compute itself is
// cancelled and its result discarded. A failed compute never populates
// the cache.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultCapacity bounds the number of resident entries when no
// capacity is configured.
const DefaultCapacity = 256

// ComputeFunc produces the value for a cache miss. The context is
// detached from the initiating caller; it is cancelled only when every
// waiter has abandoned the computation.
type ComputeFunc func(ctx context.Context) (any, error)

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

type entry struct {
	fingerprint string
	value       any
	createdAt   time.Time
	ttl         time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

// flight tracks one in-progress computation and its waiters.
type flight struct {
	done    chan struct{}
	value   any
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Cache is a bounded LRU cache with TTL expiry and per-fingerprint
// compute deduplication. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element // fingerprint -> order element
	order    *list.List               // front = most recently accessed
	inflight map[string]*flight
	stats    Stats
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity sets the maximum number of resident entries.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		capacity: DefaultCapacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		inflight: make(map[string]*flight),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached value for the fingerprint, or runs
// compute exactly once across all concurrent callers and commits the
// result under the given TTL. A non-positive ttl disables caching for
// this invocation while still deduplicating concurrent computes.
//
// The returned bool reports whether the value came from a resident
// entry. Joining an in-flight computation is a miss: the caller waited
// on upstream work, the same way Stats counts it.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, ttl time.Duration, compute ComputeFunc) (any, bool, error) {
	c.mu.Lock()

	if value, ok := c.lookupLocked(fingerprint); ok {
		c.stats.Hits++
		c.mu.Unlock()
		return value, true, nil
	}
	c.stats.Misses++

	if f, ok := c.inflight[fingerprint]; ok {
		f.waiters++
		c.mu.Unlock()
		value, err := c.wait(ctx, fingerprint, f)
		return value, false, err
	}

	// First caller: start the computation detached from this caller's
	// context so cancelling one waiter cannot corrupt the result the
	// others are awaiting.
	computeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}
	c.inflight[fingerprint] = f
	c.mu.Unlock()

	go c.run(fingerprint, ttl, f, computeCtx, compute)

	value, err := c.wait(ctx, fingerprint, f)
	return value, false, err
}

// run executes the compute function and commits a successful result.
func (c *Cache) run(fingerprint string, ttl time.Duration, f *flight, ctx context.Context, compute ComputeFunc) {
	value, err := compute(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	f.value = value
	f.err = err
	delete(c.inflight, fingerprint)
	close(f.done)

	// An abandoned computation's result is discarded; a failed compute
	// leaves the fingerprint eligible for immediate retry.
	if err == nil && ctx.Err() == nil && ttl > 0 {
		c.storeLocked(fingerprint, value, ttl)
	}
}

// wait blocks until the flight completes or the caller's context is
// cancelled. The last departing waiter cancels the compute.
func (c *Cache) wait(ctx context.Context, fingerprint string, f *flight) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		c.mu.Lock()
		f.waiters--
		if f.waiters == 0 {
			f.cancel()
		}
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// lookupLocked returns a fresh entry's value, promoting it to most
// recently used. Expired entries are removed and treated as absent.
func (c *Cache) lookupLocked(fingerprint string) (any, bool) {
	elem, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	if e.expired(c.now()) {
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

// storeLocked commits a computed value, evicting the least-recently
// accessed entry if the cache is over capacity.
func (c *Cache) storeLocked(fingerprint string, value any, ttl time.Duration) {
	if elem, ok := c.entries[fingerprint]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.createdAt = c.now()
		e.ttl = ttl
		c.order.MoveToFront(elem)
		return
	}

	c.entries[fingerprint] = c.order.PushFront(&entry{
		fingerprint: fingerprint,
		value:       value,
		createdAt:   c.now(),
		ttl:         ttl,
	})

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		e := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.entries, e.fingerprint)
		c.stats.Evictions++
	}
}

// Invalidate removes an entry regardless of freshness.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[fingerprint]; ok {
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
	}
}

// Sweep removes every expired entry. Called opportunistically; lookups
// already treat expired entries as absent.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for fingerprint, elem := range c.entries {
		if elem.Value.(*entry).expired(now) {
			c.order.Remove(elem)
			delete(c.entries, fingerprint)
		}
	}
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}
