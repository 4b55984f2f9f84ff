// Package circuitbreaker guards a single fallible operation with a
// closed/open/half-open gate computed over a rolling window of recent
// call outcomes.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
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

var (
	// ErrOpen is returned without invoking the wrapped operation while the
	// breaker is open, or while a half-open trial is already in flight.
	ErrOpen = errors.New("CIRCUIT_OPEN")

	// ErrCallTimeout is returned when the wrapped operation does not resolve
	// within the configured call timeout. The operation may still complete
	// later; its result is discarded.
	ErrCallTimeout = errors.New("CIRCUIT_CALL_TIMEOUT")
)

const (
	defaultWindowSize       = 10
	defaultFailureThreshold = 0.5
	defaultResetTimeout     = 30 * time.Second
)

type Config struct {
	Name             string
	WindowSize       int           // number of recent outcomes tracked
	FailureThreshold float64       // failure ratio that opens the breaker
	MinCalls         int           // outcomes required before the ratio is evaluated
	CallTimeout      time.Duration // per-call timeout, 0 disables
	ResetTimeout     time.Duration // open duration before a half-open trial

	// OnStateChange is invoked after every transition. Observational only;
	// it never affects breaker state and runs outside the breaker lock.
	OnStateChange func(name string, from, to State)
}

type Counts struct {
	Successes int
	Failures  int
}

type Snapshot struct {
	Name       string
	State      string
	Successes  int
	Failures   int
	LastChange time.Time
}

type Breaker struct {
	cfg Config

	mu         sync.Mutex
	state      State
	window     []bool // true = failure
	head       int
	size       int
	failures   int
	openedAt   time.Time
	lastChange time.Time
	trial      bool
	gen        uint64 // bumped on every transition
	now        func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaultWindowSize
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.MinCalls <= 0 {
		cfg.MinCalls = cfg.WindowSize / 2
	}
	if cfg.MinCalls <= 0 {
		cfg.MinCalls = 1
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}

	return &Breaker{
		cfg:        cfg,
		state:      StateClosed,
		window:     make([]bool, cfg.WindowSize),
		lastChange: time.Now(),
		now:        time.Now,
	}
}

func (b *Breaker) Name() string { return b.cfg.Name }

// Do executes op through the breaker gate. While open it rejects with
// ErrOpen without invoking op. Operation errors pass through unchanged so
// callers can inspect them; timeouts surface as ErrCallTimeout.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	notify, gen, err := b.beforeCall()
	b.emit(notify)
	if err != nil {
		return err
	}

	opErr := b.invoke(ctx, op)

	notify = b.afterCall(gen, opErr == nil)
	b.emit(notify)

	return opErr
}

type transition struct {
	fired    bool
	from, to State
}

// beforeCall admits or rejects the call and returns the state generation it
// was admitted under.
func (b *Breaker) beforeCall() (transition, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return transition{}, b.gen, nil

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return transition{}, 0, ErrOpen
		}
		t := b.transition(StateHalfOpen)
		b.trial = true
		return t, b.gen, nil

	case StateHalfOpen:
		if b.trial {
			return transition{}, 0, ErrOpen
		}
		b.trial = true
		return transition{}, b.gen, nil
	}

	return transition{}, b.gen, nil
}

func (b *Breaker) invoke(ctx context.Context, op func(context.Context) error) error {
	if b.cfg.CallTimeout <= 0 {
		return op(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(callCtx) }()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		return ErrCallTimeout
	}
}

func (b *Breaker) afterCall(gen uint64, success bool) transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A slow call admitted under an earlier state must not commit against the
	// current one; only the half-open trial itself may decide the trial.
	if gen != b.gen {
		return transition{}
	}

	switch b.state {
	case StateHalfOpen:
		b.trial = false
		if success {
			b.resetWindow()
			return b.transition(StateClosed)
		}
		b.openedAt = b.now()
		return b.transition(StateOpen)

	case StateClosed:
		b.record(!success)
		if b.size >= b.cfg.MinCalls && b.failureRate() >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			return b.transition(StateOpen)
		}
	}

	return transition{}
}

func (b *Breaker) record(failure bool) {
	if b.size == len(b.window) {
		if b.window[b.head] {
			b.failures--
		}
	} else {
		b.size++
	}

	b.window[b.head] = failure
	if failure {
		b.failures++
	}
	b.head = (b.head + 1) % len(b.window)
}

func (b *Breaker) failureRate() float64 {
	if b.size == 0 {
		return 0
	}
	return float64(b.failures) / float64(b.size)
}

func (b *Breaker) resetWindow() {
	for i := range b.window {
		b.window[i] = false
	}
	b.head = 0
	b.size = 0
	b.failures = 0
}

func (b *Breaker) transition(to State) transition {
	from := b.state
	b.state = to
	b.gen++
	b.lastChange = b.now()
	return transition{fired: true, from: from, to: to}
}

func (b *Breaker) emit(t transition) {
	if !t.fired || b.cfg.OnStateChange == nil {
		return
	}
	b.cfg.OnStateChange(b.cfg.Name, t.from, t.to)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{Successes: b.size - b.failures, Failures: b.failures}
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:       b.cfg.Name,
		State:      b.state.String(),
		Successes:  b.size - b.failures,
		Failures:   b.failures,
		LastChange: b.lastChange,
	}
}
