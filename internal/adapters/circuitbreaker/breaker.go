package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker short-circuits calls to an upstream that keeps failing.
// Caller cancellation is not counted as an upstream failure.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time

	maxFailures   int
	timeout       time.Duration
	halfOpenMax   int
	onStateChange func(State)
	now           func() time.Time
}

func New(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		timeout:     timeout,
		halfOpenMax: 3,
		now:         time.Now,
	}
}

// OnStateChange registers a callback invoked with the new state on every
// transition. It runs with the breaker lock held and must not call back in.
func (cb *CircuitBreaker) OnStateChange(fn func(State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	if cb.onStateChange != nil {
		cb.onStateChange(s)
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) <= cb.timeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.successes = 0
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.setState(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.setState(StateClosed)
			cb.failures = 0
		}
	} else {
		cb.failures = 0
	}

	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
