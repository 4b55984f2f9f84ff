package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contactrelay/mailgateway/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func fail(ctx context.Context) error    { return errBoom }
func succeed(ctx context.Context) error { return nil }

func newBreaker(reset time.Duration) *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Name:             "test",
		WindowSize:       10,
		FailureThreshold: 0.5,
		MinCalls:         5,
		ResetTimeout:     reset,
	})
}

func TestBreaker_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("stays closed below minimum calls", func(t *testing.T) {
		b := newBreaker(time.Minute)

		err := b.Do(ctx, fail)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, circuitbreaker.StateClosed, b.State())
	})

	t.Run("opens once failure rate reaches threshold", func(t *testing.T) {
		b := newBreaker(time.Minute)

		for i := 0; i < 5; i++ {
			err := b.Do(ctx, fail)
			assert.ErrorIs(t, err, errBoom)
		}

		assert.Equal(t, circuitbreaker.StateOpen, b.State())
	})

	t.Run("successes dilute the failure rate", func(t *testing.T) {
		b := newBreaker(time.Minute)

		for i := 0; i < 5; i++ {
			assert.NoError(t, b.Do(ctx, succeed))
		}
		for i := 0; i < 4; i++ {
			assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
			assert.Equal(t, circuitbreaker.StateClosed, b.State())
		}

		// 5 failures out of the last 10 outcomes.
		assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
		assert.Equal(t, circuitbreaker.StateOpen, b.State())
	})

	t.Run("rejects without invoking the operation while open", func(t *testing.T) {
		b := newBreaker(time.Minute)
		for i := 0; i < 5; i++ {
			_ = b.Do(ctx, fail)
		}

		invoked := false
		err := b.Do(ctx, func(ctx context.Context) error {
			invoked = true
			return nil
		})

		assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
		assert.False(t, invoked)
	})

	t.Run("failed half-open trial reopens", func(t *testing.T) {
		b := newBreaker(20 * time.Millisecond)
		for i := 0; i < 5; i++ {
			_ = b.Do(ctx, fail)
		}
		assert.Equal(t, circuitbreaker.StateOpen, b.State())

		time.Sleep(30 * time.Millisecond)

		err := b.Do(ctx, fail)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, circuitbreaker.StateOpen, b.State())

		// Freshly reopened: rejected until the reset timeout elapses again.
		assert.ErrorIs(t, b.Do(ctx, succeed), circuitbreaker.ErrOpen)
	})

	t.Run("successful half-open trial closes and resets the window", func(t *testing.T) {
		b := newBreaker(20 * time.Millisecond)
		for i := 0; i < 5; i++ {
			_ = b.Do(ctx, fail)
		}

		time.Sleep(30 * time.Millisecond)

		assert.NoError(t, b.Do(ctx, succeed))
		assert.Equal(t, circuitbreaker.StateClosed, b.State())
		assert.Equal(t, circuitbreaker.Counts{}, b.Counts())

		// The old failures are gone; one new failure cannot trip it.
		assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
		assert.Equal(t, circuitbreaker.StateClosed, b.State())
	})

	t.Run("single trial per half-open period", func(t *testing.T) {
		b := newBreaker(20 * time.Millisecond)
		for i := 0; i < 5; i++ {
			_ = b.Do(ctx, fail)
		}

		time.Sleep(30 * time.Millisecond)

		release := make(chan struct{})
		trialDone := make(chan error, 1)
		go func() {
			trialDone <- b.Do(ctx, func(ctx context.Context) error {
				<-release
				return nil
			})
		}()

		// Wait for the trial to be admitted.
		assert.Eventually(t, func() bool {
			return b.State() == circuitbreaker.StateHalfOpen
		}, time.Second, time.Millisecond)

		err := b.Do(ctx, succeed)
		assert.ErrorIs(t, err, circuitbreaker.ErrOpen)

		close(release)
		assert.NoError(t, <-trialDone)
		assert.Equal(t, circuitbreaker.StateClosed, b.State())
	})

	t.Run("slow call from before opening cannot decide the trial", func(t *testing.T) {
		b := newBreaker(20 * time.Millisecond)

		staleStarted := make(chan struct{})
		staleRelease := make(chan struct{})
		staleDone := make(chan error, 1)
		go func() {
			staleDone <- b.Do(ctx, func(ctx context.Context) error {
				close(staleStarted)
				<-staleRelease
				return nil
			})
		}()
		<-staleStarted

		for i := 0; i < 5; i++ {
			_ = b.Do(ctx, fail)
		}
		assert.Equal(t, circuitbreaker.StateOpen, b.State())

		time.Sleep(30 * time.Millisecond)

		trialRelease := make(chan struct{})
		trialDone := make(chan error, 1)
		go func() {
			trialDone <- b.Do(ctx, func(ctx context.Context) error {
				<-trialRelease
				return errBoom
			})
		}()
		assert.Eventually(t, func() bool {
			return b.State() == circuitbreaker.StateHalfOpen
		}, time.Second, time.Millisecond)

		// The stale success resolves while the trial is in flight; it must
		// be discarded, not close the breaker.
		close(staleRelease)
		assert.NoError(t, <-staleDone)
		assert.Equal(t, circuitbreaker.StateHalfOpen, b.State())

		close(trialRelease)
		assert.ErrorIs(t, <-trialDone, errBoom)
		assert.Equal(t, circuitbreaker.StateOpen, b.State())
	})

	t.Run("timeout counts as failure", func(t *testing.T) {
		b := circuitbreaker.New(circuitbreaker.Config{
			Name:             "test",
			WindowSize:       10,
			FailureThreshold: 0.5,
			MinCalls:         5,
			CallTimeout:      5 * time.Millisecond,
			ResetTimeout:     time.Minute,
		})

		for i := 0; i < 5; i++ {
			err := b.Do(ctx, func(ctx context.Context) error {
				time.Sleep(50 * time.Millisecond)
				return nil
			})
			assert.ErrorIs(t, err, circuitbreaker.ErrCallTimeout)
		}

		assert.Equal(t, circuitbreaker.StateOpen, b.State())
	})

	t.Run("operation errors pass through unchanged", func(t *testing.T) {
		b := newBreaker(time.Minute)

		err := b.Do(ctx, fail)

		assert.ErrorIs(t, err, errBoom)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	})

	t.Run("reports transitions", func(t *testing.T) {
		var transitions []string
		b := circuitbreaker.New(circuitbreaker.Config{
			Name:             "test",
			WindowSize:       10,
			FailureThreshold: 0.5,
			MinCalls:         5,
			ResetTimeout:     20 * time.Millisecond,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				transitions = append(transitions, from.String()+"->"+to.String())
			},
		})

		for i := 0; i < 5; i++ {
			_ = b.Do(ctx, fail)
		}
		time.Sleep(30 * time.Millisecond)
		_ = b.Do(ctx, succeed)

		assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
	})
}

func TestRegistry(t *testing.T) {
	registry := circuitbreaker.NewRegistry()
	b := registry.Register(newBreaker(time.Minute))

	got, ok := registry.Get("test")
	assert.True(t, ok)
	assert.Same(t, b, got)

	_, ok = registry.Get("unknown")
	assert.False(t, ok)

	snapshots := registry.Snapshots()
	assert.Len(t, snapshots, 1)
	assert.Equal(t, "test", snapshots[0].Name)
	assert.Equal(t, "closed", snapshots[0].State)
}
