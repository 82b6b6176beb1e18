package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned without calling fn while the circuit is open
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = iota
	// StateOpen means the circuit is open and requests are blocked
	StateOpen
	// StateHalfOpen means the circuit is testing if it can close
	StateHalfOpen
)

// String returns the string representation of the state
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

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Config holds configuration for the circuit breaker
type Config struct {
	Name          string
	Threshold     int                  // Consecutive failures before opening (default: 5)
	Timeout       time.Duration        // Time open before a probe is allowed (default: 30s)
	OnStateChange func(from, to State) // Called synchronously on every transition
	// IsFailure decides which errors count against the circuit; nil counts all
	IsFailure func(error) bool
}

// CircuitBreaker guards calls to a flaky dependency
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a new circuit breaker with the given configuration
func New(config Config) *CircuitBreaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "default"
	}

	threshold := uint32(config.Threshold)
	isFailure := config.IsFailure
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return isFailure != nil && !isFailure(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if config.OnStateChange != nil {
				config.OnStateChange(fromGobreaker(from), fromGobreaker(to))
			}
		},
	})

	return &CircuitBreaker{cb: cb}
}

// Call executes fn unless the circuit is open.
// An open circuit returns an error wrapping ErrOpen.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := cb.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", cb.cb.Name(), ErrOpen)
	}
	return err
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	return fromGobreaker(cb.cb.State())
}
