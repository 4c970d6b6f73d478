package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrComputeMissThenHit(t *testing.T) {
	c := New()

	var calls atomic.Int32
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "payload", nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), "fp-1", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "payload", got)

	got, hit, err = c.GetOrCompute(context.Background(), "fp-1", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "payload", got)
	assert.Equal(t, int32(1), calls.Load(), "second call should be served from cache")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestGetOrComputeConcurrentSingleCompute(t *testing.T) {
	c := New()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrCompute(context.Background(), "shared", time.Minute, compute)
		}(i)
	}

	// Let every caller either start the compute or join as a waiter.
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one compute")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
}

func TestGetOrComputeJoinedCallerIsNotAHit(t *testing.T) {
	c := New()

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "v", nil
	}

	type result struct {
		hit bool
		err error
	}
	first := make(chan result, 1)
	go func() {
		_, hit, err := c.GetOrCompute(context.Background(), "fp", time.Minute, compute)
		first <- result{hit, err}
	}()
	<-started

	second := make(chan result, 1)
	go func() {
		_, hit, err := c.GetOrCompute(context.Background(), "fp", time.Minute, compute)
		second <- result{hit, err}
	}()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f, ok := c.inflight["fp"]
		return ok && f.waiters == 2
	}, time.Second, time.Millisecond)
	close(release)

	// Both callers waited on the upstream compute, so neither is a hit
	// and the counters agree with the flags.
	for _, ch := range []chan result{first, second} {
		res := <-ch
		require.NoError(t, res.err)
		assert.False(t, res.hit, "a caller that waited on the compute did not hit the cache")
	}
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)

	_, hit, err := c.GetOrCompute(context.Background(), "fp", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit, "the committed entry serves the next caller")
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestGetOrComputeTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New(withClock(func() time.Time { return now }))

	var calls atomic.Int32
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "fp", 30*time.Second, compute)
	require.NoError(t, err)

	now = now.Add(29 * time.Second)
	_, _, err = c.GetOrCompute(context.Background(), "fp", 30*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "entry should still be fresh")

	now = now.Add(2 * time.Second)
	_, _, err = c.GetOrCompute(context.Background(), "fp", 30*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "expired entry must be recomputed")
}

func TestGetOrComputeEvictsLeastRecentlyAccessed(t *testing.T) {
	c := New(WithCapacity(3))

	fill := func(fp string) {
		_, _, err := c.GetOrCompute(context.Background(), fp, time.Minute, func(ctx context.Context) (any, error) {
			return fp, nil
		})
		require.NoError(t, err)
	}

	fill("a")
	fill("b")
	fill("c")

	// Touch "a" so "b" becomes the least recently accessed entry.
	fill("a")
	fill("d")

	var recomputed []string
	for _, fp := range []string{"a", "b", "c", "d"} {
		_, _, err := c.GetOrCompute(context.Background(), fp, time.Minute, func(ctx context.Context) (any, error) {
			recomputed = append(recomputed, fp)
			return fp, nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"b"}, recomputed, "only the least recently accessed entry should have been evicted")
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestGetOrComputeFailureNotCached(t *testing.T) {
	c := New()

	boom := errors.New("upstream unavailable")
	var calls atomic.Int32
	failing := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	}

	_, _, err := c.GetOrCompute(context.Background(), "fp", time.Minute, failing)
	require.ErrorIs(t, err, boom)

	got, _, err := c.GetOrCompute(context.Background(), "fp", time.Minute, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(2), calls.Load(), "failed compute must leave the fingerprint retryable")
	assert.Equal(t, 1, c.Stats().Size)
}

func TestGetOrComputeZeroTTLNotStored(t *testing.T) {
	c := New()

	var calls atomic.Int32
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "fp", 0, compute)
	require.NoError(t, err)
	_, _, err = c.GetOrCompute(context.Background(), "fp", 0, compute)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.Stats().Size)
}

func TestGetOrComputeInitiatorCancelKeepsWaiters(t *testing.T) {
	c := New()

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		close(started)
		select {
		case <-release:
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	initCtx, cancelInitiator := context.WithCancel(context.Background())

	initErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(initCtx, "fp", time.Minute, compute)
		initErr <- err
	}()
	<-started

	waiterVal := make(chan any, 1)
	waiterErr := make(chan error, 1)
	go func() {
		v, _, err := c.GetOrCompute(context.Background(), "fp", time.Minute, compute)
		waiterVal <- v
		waiterErr <- err
	}()

	// Ensure the second caller has joined the in-flight computation
	// before the initiator walks away.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f, ok := c.inflight["fp"]
		return ok && f.waiters == 2
	}, time.Second, time.Millisecond)

	cancelInitiator()
	require.ErrorIs(t, <-initErr, context.Canceled)

	close(release)
	assert.Equal(t, "late", <-waiterVal)
	require.NoError(t, <-waiterErr)

	// The surviving waiter's result was committed.
	got, _, err := c.GetOrCompute(context.Background(), "fp", time.Minute, func(ctx context.Context) (any, error) {
		t.Fatal("value should have been cached")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "late", got)
}

func TestGetOrComputeAllCallersCancelAbandonsCompute(t *testing.T) {
	c := New()

	started := make(chan struct{})
	computeDone := make(chan error, 1)
	compute := func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		computeDone <- ctx.Err()
		return "stale", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	callerErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(ctx, "fp", time.Minute, compute)
		callerErr <- err
	}()
	<-started

	cancel()
	require.ErrorIs(t, <-callerErr, context.Canceled)

	select {
	case err := <-computeDone:
		require.ErrorIs(t, err, context.Canceled, "compute context should be cancelled once the last waiter leaves")
	case <-time.After(time.Second):
		t.Fatal("compute was never cancelled")
	}

	// The abandoned result must not have been committed.
	assert.Eventually(t, func() bool {
		return c.Stats().Size == 0
	}, time.Second, time.Millisecond)
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New(withClock(func() time.Time { return now }))

	for i := 0; i < 4; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		ttl := time.Duration(i+1) * 10 * time.Second
		_, _, err := c.GetOrCompute(context.Background(), fp, ttl, func(ctx context.Context) (any, error) {
			return i, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 4, c.Stats().Size)

	now = now.Add(25 * time.Second)
	c.Sweep()
	assert.Equal(t, 2, c.Stats().Size, "entries with ttl 10s and 20s should be gone")
}

func TestInvalidateRemovesFreshEntry(t *testing.T) {
	c := New()

	var calls atomic.Int32
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "fp", time.Minute, compute)
	require.NoError(t, err)

	c.Invalidate("fp")

	_, _, err = c.GetOrCompute(context.Background(), "fp", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
