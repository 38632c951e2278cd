// Package circuitbreaker isolates a failing store. While open, calls fail fast
// with ErrOpen instead of waiting on the store's own timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrOpen is returned without calling through while the breaker is open,
	// and for calls beyond the half-open probe budget.
	ErrOpen = errors.New("circuit breaker is open")
)

// State of a Breaker.
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
		return "half_open"
	default:
		return "unknown"
	}
}

// Settings configure a Breaker. Zero values fall back to the defaults below.
type Settings struct {
	Name             string
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // time spent open before probing
	HalfOpenMaxCalls int           // concurrent probes allowed while half-open

	// IsFailure decides whether an error counts against the store. Errors that
	// describe the data (not found, conflict) should return false.
	IsFailure func(error) bool

	// OnStateChange is called with the lock held; keep it cheap.
	OnStateChange func(name string, from, to State)

	Now func() time.Time
}

const (
	defaultMaxFailures      = 5
	defaultResetTimeout     = 30 * time.Second
	defaultHalfOpenMaxCalls = 1
)

type Breaker struct {
	s Settings

	mu            sync.Mutex
	state         State
	failureCount  int
	openedAt      time.Time
	halfOpenCalls int
}

func New(s Settings) *Breaker {
	if s.MaxFailures <= 0 {
		s.MaxFailures = defaultMaxFailures
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = defaultResetTimeout
	}
	if s.HalfOpenMaxCalls <= 0 {
		s.HalfOpenMaxCalls = defaultHalfOpenMaxCalls
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &Breaker{s: s, state: StateClosed}
}

// Do runs fn unless the breaker is open. fn's error is returned unchanged.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	// A caller giving up is not the store's fault.
	if err != nil && errors.Is(err, context.Canceled) {
		if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
			b.halfOpenCalls--
		}
		return err
	}

	if err != nil && b.s.IsFailure(err) {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.s.Now().Sub(b.openedAt) >= b.s.ResetTimeout {
		b.setState(StateHalfOpen)
		b.halfOpenCalls = 0
	}

	switch b.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.halfOpenCalls >= b.s.HalfOpenMaxCalls {
			return ErrOpen
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *Breaker) onFailure() {
	b.failureCount++

	switch b.state {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		if b.failureCount >= b.s.MaxFailures {
			b.trip()
		}
	}
}

func (b *Breaker) onSuccess() {
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.halfOpenCalls = 0
		b.setState(StateClosed)
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.s.Now()
	b.halfOpenCalls = 0
	b.setState(StateOpen)
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.s.OnStateChange != nil {
		b.s.OnStateChange(b.s.Name, from, to)
	}
}

// State reports the current state. An open breaker whose reset timeout has
// elapsed still reports open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

func (b *Breaker) Name() string { return b.s.Name }
