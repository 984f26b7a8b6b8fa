// upstream/stats.go
package upstream

import "sync"

// BackendStats are per-backend call counters.
type BackendStats struct {
	Requests  int64 `json:"requests"`
	Failures  int64 `json:"failures"`
	CacheHits int64 `json:"cache_hits"`
	Retries   int64 `json:"retries"`
}

type stats struct {
	mu       sync.Mutex
	backends map[string]*BackendStats
}

func newStats() *stats {
	return &stats{backends: make(map[string]*BackendStats)}
}

func (s *stats) get(name string) *BackendStats {
	b, ok := s.backends[name]
	if !ok {
		b = &BackendStats{}
		s.backends[name] = b
	}
	return b
}

func (s *stats) request(name string) {
	s.mu.Lock()
	s.get(name).Requests++
	s.mu.Unlock()
}

func (s *stats) failure(name string) {
	s.mu.Lock()
	s.get(name).Failures++
	s.mu.Unlock()
}

func (s *stats) cacheHit(name string) {
	s.mu.Lock()
	s.get(name).CacheHits++
	s.mu.Unlock()
}

func (s *stats) retry(name string) {
	s.mu.Lock()
	s.get(name).Retries++
	s.mu.Unlock()
}

func (s *stats) snapshot() map[string]BackendStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BackendStats, len(s.backends))
	for name, b := range s.backends {
		out[name] = *b
	}
	return out
}
