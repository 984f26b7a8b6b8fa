// breaker/breaker_test.go
package breaker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GPT-Gradient/xynergy-core-sub001/breaker"
)

var errBackend = errors.New("backend exploded")

func failing(context.Context) error { return errBackend }
func succeeding(context.Context) error { return nil }

func testSettings() breaker.Settings {
	return breaker.Settings{
		FailureThreshold: 3,
		Window:           time.Minute,
		Cooldown:         50 * time.Millisecond,
		SuccessThreshold: 2,
	}
}

func trip(t *testing.T, b *breaker.Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := b.Execute(context.Background(), failing)
		require.ErrorIs(t, err, errBackend)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := breaker.New("crm", testSettings(), nil)

	trip(t, b, 2)
	assert.Equal(t, breaker.StateClosed, b.State())

	trip(t, b, 1)
	assert.Equal(t, breaker.StateOpen, b.State())

	// Open breaker fails fast without invoking the call
	invoked := false
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.False(t, invoked)
}

func TestBreakerSuccessClearsWindow(t *testing.T) {
	b := breaker.New("crm", testSettings(), nil)

	trip(t, b, 2)
	require.NoError(t, b.Execute(context.Background(), succeeding))

	// The two earlier failures no longer count toward the threshold
	trip(t, b, 2)
	assert.Equal(t, breaker.StateClosed, b.State())

	trip(t, b, 1)
	assert.Equal(t, breaker.StateOpen, b.State())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	settings := testSettings()
	b := breaker.New("crm", settings, nil)

	trip(t, b, settings.FailureThreshold)
	require.Equal(t, breaker.StateOpen, b.State())

	time.Sleep(settings.Cooldown + 10*time.Millisecond)
	assert.Equal(t, breaker.StateHalfOpen, b.State())

	// First trial success keeps it half-open, second closes it
	require.NoError(t, b.Execute(context.Background(), succeeding))
	assert.Equal(t, breaker.StateHalfOpen, b.State())

	require.NoError(t, b.Execute(context.Background(), succeeding))
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	settings := testSettings()
	b := breaker.New("crm", settings, nil)

	trip(t, b, settings.FailureThreshold)
	time.Sleep(settings.Cooldown + 10*time.Millisecond)

	require.NoError(t, b.Execute(context.Background(), succeeding))
	require.Equal(t, breaker.StateHalfOpen, b.State())

	// One failed trial call reopens immediately, no threshold math
	trip(t, b, 1)
	assert.Equal(t, breaker.StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(context.Background(), succeeding), breaker.ErrOpen)
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b := breaker.New("crm", testSettings(), nil)

	cancelled := func(context.Context) error {
		return fmt.Errorf("Get \"http://crm/contacts\": %w", context.Canceled)
	}
	for i := 0; i < 10; i++ {
		require.ErrorIs(t, b.Execute(context.Background(), cancelled), context.Canceled)
	}
	assert.Equal(t, breaker.StateClosed, b.State())
	assert.Zero(t, b.Snapshot().Failures)

	// Genuine failures still trip it
	trip(t, b, 3)
	assert.Equal(t, breaker.StateOpen, b.State())
}

func TestBreakerTransitionCallback(t *testing.T) {
	settings := testSettings()
	var mu sync.Mutex
	var transitions []string
	done := make(chan struct{}, 4)

	b := breaker.New("crm", settings, func(name string, from, to breaker.State) {
		mu.Lock()
		transitions = append(transitions, from.String()+">"+to.String())
		mu.Unlock()
		done <- struct{}{}
	})

	trip(t, b, settings.FailureThreshold)
	<-done

	time.Sleep(settings.Cooldown + 10*time.Millisecond)
	require.NoError(t, b.Execute(context.Background(), succeeding))
	<-done
	require.NoError(t, b.Execute(context.Background(), succeeding))
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestRegistryIsolatesBackends(t *testing.T) {
	r := breaker.NewRegistry(testSettings(), nil)

	for i := 0; i < 3; i++ {
		_ = r.Execute(context.Background(), "crm", failing)
	}
	assert.Equal(t, breaker.StateOpen, r.State("crm"))
	assert.Equal(t, breaker.StateClosed, r.State("content"))

	require.NoError(t, r.Execute(context.Background(), "content", succeeding))

	snapshot := r.Snapshot()
	assert.Equal(t, "open", snapshot["crm"].State)
	assert.Equal(t, "closed", snapshot["content"].State)
}

func TestRegistryReturnsSameBreaker(t *testing.T) {
	r := breaker.NewRegistry(testSettings(), nil)
	assert.Same(t, r.Get("crm"), r.Get("crm"))
}
