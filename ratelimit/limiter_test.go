// ratelimit/limiter_test.go
package ratelimit_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/ratelimit"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

// memoryCounter is a process-local stand-in for the distributed
// sliding-window counter.
type memoryCounter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	err  error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{hits: make(map[string][]time.Time)}
}

func (c *memoryCounter) count(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, time.Time{}, c.err
	}
	now := time.Now()
	cutoff := now.Add(-window)
	kept := c.hits[key][:0]
	for _, t := range c.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	c.hits[key] = kept
	return int64(len(kept)), kept[0], nil
}

func TestLimiterAllowsWithinLimit(t *testing.T) {
	counter := newMemoryCounter()
	l := ratelimit.NewWithCounter("default", 3, time.Minute, counter.count)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := l.Allow(ctx, "user-1")
		assert.True(t, result.Allowed)
		assert.Equal(t, 3, result.Limit)
		assert.Equal(t, 3-(i+1), result.Remaining)
	}

	result := l.Allow(ctx, "user-1")
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.False(t, result.ResetAt.IsZero())
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	counter := newMemoryCounter()
	l := ratelimit.NewWithCounter("default", 1, time.Minute, counter.count)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "user-1").Allowed)
	assert.False(t, l.Allow(ctx, "user-1").Allowed)
	assert.True(t, l.Allow(ctx, "user-2").Allowed, "another caller has their own window")
}

func TestLimiterWindowSlides(t *testing.T) {
	counter := newMemoryCounter()
	l := ratelimit.NewWithCounter("default", 2, 40*time.Millisecond, counter.count)
	ctx := context.Background()

	require.True(t, l.Allow(ctx, "user-1").Allowed)
	require.True(t, l.Allow(ctx, "user-1").Allowed)
	require.False(t, l.Allow(ctx, "user-1").Allowed)

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Allow(ctx, "user-1").Allowed, "expired hits leave the window")
}

func TestLimiterFailsOpen(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = assert.AnError
	l := ratelimit.NewWithCounter("default", 1, time.Minute, counter.count)

	result := l.Allow(context.Background(), "user-1")
	assert.True(t, result.Allowed)
}

func TestLimiterConcurrentCallersNeverExceedLimit(t *testing.T) {
	const limit = 10
	const callers = 50
	counter := newMemoryCounter()
	l := ratelimit.NewWithCounter("default", limit, time.Minute, counter.count)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(context.Background(), "user-1").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed, "the counted hit includes our own, so exactly limit calls pass")
}
