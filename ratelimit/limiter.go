// ratelimit/limiter.go
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GPT-Gradient/xynergy-core-sub001/db"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// CountFunc records one hit and returns the in-window count plus the oldest
// in-window instant. The distributed implementation is db.SlidingWindowCount.
type CountFunc func(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)

// Limiter enforces a sliding-window limit per identity key, shared across
// gateway instances through the distributed store. It never performs a
// client-side check-then-act: the count it acts on includes its own hit.
type Limiter struct {
	name   string
	limit  int
	window time.Duration
	count  CountFunc
}

func New(name string, limit int, window time.Duration) *Limiter {
	return NewWithCounter(name, limit, window, db.SlidingWindowCount)
}

func NewWithCounter(name string, limit int, window time.Duration, count CountFunc) *Limiter {
	return &Limiter{name: name, limit: limit, window: window, count: count}
}

// Allow records a hit for key and reports whether it is within the limit.
// Limiter-store unavailability fails open: platform availability is
// prioritized over strict quota enforcement.
func (l *Limiter) Allow(ctx context.Context, key string) Result {
	count, oldest, err := l.count(ctx, l.name+":"+key, l.window)
	if err != nil {
		logger.Warn("Rate limiter store unavailable, failing open",
			zap.String("limiter", l.name),
			zap.String("key", key),
			zap.Error(err))
		return Result{Allowed: true, Limit: l.limit, Remaining: 0, ResetAt: time.Now().Add(l.window)}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   oldest.Add(l.window),
	}
}
