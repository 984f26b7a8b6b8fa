// breaker/registry.go
package breaker

import (
	"context"
	"sync"
)

// Registry owns one breaker per backend name. Breakers are created on first
// reference and never destroyed. Construct one registry at process start and
// pass it by reference; breaker state is deliberately process-local.
type Registry struct {
	mu           sync.Mutex
	breakers     map[string]*Breaker
	settings     Settings
	onTransition TransitionFunc
}

func NewRegistry(settings Settings, onTransition TransitionFunc) *Registry {
	return &Registry{
		breakers:     make(map[string]*Breaker),
		settings:     settings,
		onTransition: onTransition,
	}
}

// Get returns the breaker for name, creating it on first reference.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.settings, r.onTransition)
		r.breakers[name] = b
	}
	return b
}

// Execute runs fn through the breaker for name.
func (r *Registry) Execute(ctx context.Context, name string, fn func(context.Context) error) error {
	return r.Get(name).Execute(ctx, fn)
}

// State returns the current state for name.
func (r *Registry) State(name string) State {
	return r.Get(name).State()
}

// Snapshot reports every known breaker, for deep health checks.
func (r *Registry) Snapshot() map[string]Status {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	breakers := make([]*Breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]Status, len(names))
	for i, b := range breakers {
		out[names[i]] = b.Snapshot()
	}
	return out
}
