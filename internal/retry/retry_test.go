package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = Policy{
	MaxAttempts:      3,
	InitialBackoff:   time.Millisecond,
	RateLimitBackoff: 5 * time.Millisecond,
}

func alwaysRetry(error) Action { return Retry }
func alwaysStop(error) Action  { return Stop }

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy, alwaysRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("not authorized")
	calls := 0
	err := Do(context.Background(), fastPolicy, alwaysStop, func() error {
		calls++
		return permanent
	})

	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedRetries(t *testing.T) {
	underlying := errors.New("device offline")
	calls := 0
	err := Do(context.Background(), fastPolicy, alwaysRetry, func() error {
		calls++
		return underlying
	})
	assert.ErrorIs(t, err, underlying)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, alwaysRetry, func() error {
		calls++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffDoublesAndRateLimitWins(t *testing.T) {
	var backoffs []time.Duration
	p := Policy{
		MaxAttempts:      4,
		InitialBackoff:   time.Millisecond,
		RateLimitBackoff: 10 * time.Millisecond,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			backoffs = append(backoffs, backoff)
		},
	}

	calls := 0
	_ = Do(context.Background(), p, func(error) Action {
		if calls == 2 {
			return After
		}
		return Retry
	}, func() error {
		calls++
		return errors.New("fail")
	})

	assert.Equal(t, []time.Duration{time.Millisecond, 10 * time.Millisecond, 4 * time.Millisecond}, backoffs)
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Hour,
		Clock:          clockwork.NewFakeClock(),
	}

	calls := 0
	err := Do(ctx, p, alwaysRetry, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_FakeClockBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := Policy{MaxAttempts: 2, InitialBackoff: 30 * time.Second, Clock: clock}

	done := make(chan error, 1)
	calls := 0
	go func() {
		done <- Do(context.Background(), p, alwaysRetry, func() error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			return nil
		})
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(30 * time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not resume after backoff")
	}
}
