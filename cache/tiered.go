// cache/tiered.go
package cache

import (
	"context"
	"time"
)

// Tiered layers a bounded local map in front of the distributed store.
// Reads check the local tier first and repopulate it on a distributed hit.
// Writes and invalidations go to the distributed tier only; the local tier
// drains passively via its short TTL, which bounds its staleness window.
type Tiered struct {
	local *localCache
	store Store
}

func NewTiered(store Store, localMaxEntries int, localTTL time.Duration) *Tiered {
	return &Tiered{
		local: newLocalCache(localMaxEntries, localTTL),
		store: store,
	}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if value, ok := t.local.get(key); ok {
		return value, true, nil
	}
	value, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	t.local.set(key, value)
	return value, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	return t.store.Set(ctx, key, value, ttl, tags...)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	t.local.delete(key)
	return t.store.Delete(ctx, key)
}

func (t *Tiered) InvalidateTag(ctx context.Context, tag string) (int, error) {
	// Local tiers on other instances cannot be reached from here; theirs and
	// ours both age out within the local TTL.
	return t.store.InvalidateTag(ctx, tag)
}

func (t *Tiered) Ping(ctx context.Context) error {
	return t.store.Ping(ctx)
}
