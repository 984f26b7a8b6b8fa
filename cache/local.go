// cache/local.go
package cache

import (
	"sync"
	"time"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// localCache is a small bounded process-local map. It has no cross-instance
// visibility and is advisory only: entries age out via their own short TTL
// rather than being invalidated.
type localCache struct {
	mu      sync.Mutex
	entries map[string]localEntry
	order   []string // insertion order, evicted oldest-first
	max     int
	ttl     time.Duration
}

func newLocalCache(max int, ttl time.Duration) *localCache {
	return &localCache{
		entries: make(map[string]localEntry),
		max:     max,
		ttl:     ttl,
	}
}

func (l *localCache) get(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		l.remove(key)
		return nil, false
	}
	return entry.value, true
}

func (l *localCache) set(key string, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[key]; !exists {
		for len(l.entries) >= l.max && len(l.order) > 0 {
			oldest := l.order[0]
			l.order = l.order[1:]
			delete(l.entries, oldest)
		}
		l.order = append(l.order, key)
	}
	l.entries[key] = localEntry{value: value, expiresAt: time.Now().Add(l.ttl)}
}

func (l *localCache) delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remove(key)
}

// remove drops the entry and its order slot so the slice stays in step with
// the map. Must be called with the lock held.
func (l *localCache) remove(key string) {
	if _, ok := l.entries[key]; !ok {
		return
	}
	delete(l.entries, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}
