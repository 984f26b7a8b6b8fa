// breaker/breaker.go
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when a call is rejected without being attempted.
var ErrOpen = errors.New("circuit breaker open")

// State captures circuit breaker states.
type State int

const (
	// StateClosed indicates normal operation.
	StateClosed State = iota
	// StateOpen indicates the breaker is rejecting calls.
	StateOpen
	// StateHalfOpen indicates trial calls are permitted.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings controls thresholds for state transitions.
type Settings struct {
	FailureThreshold int
	Window           time.Duration
	Cooldown         time.Duration
	SuccessThreshold int
}

func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		Window:           60 * time.Second,
		Cooldown:         60 * time.Second,
		SuccessThreshold: 2,
	}
}

// TransitionFunc is notified after a state change, outside the breaker lock.
type TransitionFunc func(name string, from, to State)

// Breaker is the per-backend failure-isolation state machine. Failures are
// timestamps pruned to the monitoring window; an OPEN breaker is lazily
// promoted to HALF_OPEN on the first call after the cooldown elapses.
type Breaker struct {
	name     string
	settings Settings

	mu           sync.Mutex
	state        State
	failures     []time.Time
	successes    int // only meaningful while half-open
	openedUntil  time.Time
	onTransition TransitionFunc
}

func New(name string, settings Settings, onTransition TransitionFunc) *Breaker {
	return &Breaker{
		name:         name,
		settings:     settings,
		state:        StateClosed,
		onTransition: onTransition,
	}
}

// Execute runs fn through the breaker. When the breaker is open and the
// cooldown has not elapsed, fn is never invoked and ErrOpen is returned.
// Concurrent calls during HALF_OPEN are all admitted as test traffic; any
// one failure reopens regardless of in-flight successes.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		// A caller abandoning its request says nothing about backend health.
		if !errors.Is(err, context.Canceled) {
			b.recordFailure()
		}
		return err
	}
	b.recordSuccess()
	return nil
}

// State returns the current state, applying the lazy cooldown promotion so
// observers see HALF_OPEN once the cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !time.Now().Before(b.openedUntil) {
		return StateHalfOpen
	}
	return b.state
}

// Status is a point-in-time view for health reporting.
type Status struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	OpenedUntil time.Time `json:"opened_until,omitempty"`
}

func (b *Breaker) Snapshot() Status {
	state := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(time.Now())
	status := Status{State: state.String(), Failures: len(b.failures)}
	if b.state == StateOpen {
		status.OpenedUntil = b.openedUntil
	}
	return status
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Now().Before(b.openedUntil) {
			b.mu.Unlock()
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.successes = 0
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	b.failures = b.failures[:0]
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
	b.mu.Unlock()
}

func (b *Breaker) recordFailure() {
	now := time.Now()
	b.mu.Lock()
	if b.state == StateHalfOpen {
		// A single failure during trial traffic reopens immediately
		b.open(now)
		b.mu.Unlock()
		return
	}
	b.failures = append(b.failures, now)
	b.prune(now)
	if len(b.failures) >= b.settings.FailureThreshold {
		b.open(now)
	}
	b.mu.Unlock()
}

// open must be called with the lock held.
func (b *Breaker) open(now time.Time) {
	b.failures = b.failures[:0]
	b.openedUntil = now.Add(b.settings.Cooldown)
	b.transition(StateOpen)
}

// prune must be called with the lock held.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.settings.Window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// transition must be called with the lock held; the callback runs on its own
// goroutine so subscribers cannot deadlock against the breaker.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onTransition != nil {
		go b.onTransition(b.name, from, to)
	}
}
