package circuitbreaker

import (
	"errors"

	"github.com/sony/gobreaker/v2"
)

// State mirrors the breaker states without leaking the gobreaker type.
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

// CircuitBreaker wraps gobreaker for calls returning T.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](cfg Config) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
	}

	if cfg.IsExpected != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || cfg.IsExpected(err)
		}
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}

// State reports the current state. A nil breaker is always closed.
func (c *CircuitBreaker[T]) State() State {
	if c == nil {
		return StateClosed
	}

	return fromGobreaker(c.cb.State())
}

// Execute runs fn through cb, or directly when cb is nil. It returns
// ErrCircuitOpen while open and ErrTooManyRequests when half-open probes are
// exhausted.
func Execute[T any](cb *CircuitBreaker[T], fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}

	result, err := cb.cb.Execute(fn)
	if err != nil {
		var zero T

		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			return zero, ErrCircuitOpen
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, ErrTooManyRequests
		}

		return result, err
	}

	return result, nil
}

func fromGobreaker(state gobreaker.State) State {
	switch state {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
