package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Action tells Do what to do with a failed attempt
type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, use normal backoff
	After               // rate-limited, use longer backoff
)

// Policy bounds the attempts and backoff of Do
type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration
	OnRetry          func(attempt int, err error, backoff time.Duration)
	Clock            clockwork.Clock
}

type Classify func(err error) Action
type VoidOperation func() error

// Do runs op until it succeeds, classify says Stop, or attempts run out.
// Backoff doubles after each retry.
func Do(ctx context.Context, p Policy, classify Classify, op VoidOperation) error {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		action := classify(err)
		if action == Stop {
			return &PermanentError{Err: err}
		}

		if attempt >= maxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
		}

		wait := backoff
		if action == After && p.RateLimitBackoff > wait {
			wait = p.RateLimitBackoff
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		select {
		case <-clock.After(wait):
			backoff *= 2
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// PermanentError marks an error that classify refused to retry
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
