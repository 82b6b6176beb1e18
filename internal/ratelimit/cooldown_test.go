package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T, window time.Duration, maxFires int) (*CooldownTracker, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	tracker, err := NewCooldownTracker(window, maxFires, clock)
	require.NoError(t, err)
	return tracker, clock
}

func TestNewCooldownTracker_Validation(t *testing.T) {
	_, err := NewCooldownTracker(0, 1, nil)
	assert.Error(t, err)

	_, err = NewCooldownTracker(-time.Second, 1, nil)
	assert.Error(t, err)

	_, err = NewCooldownTracker(time.Minute, -1, nil)
	assert.Error(t, err)

	tracker, err := NewCooldownTracker(time.Minute, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, tracker.Window())
	assert.Equal(t, 0, tracker.MaxFires())
}

func TestTryFire_FixedWindow(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 2)

	tests := []struct {
		name      string
		offset    time.Duration
		allowed   bool
		remaining int
	}{
		{name: "first fire opens window", offset: 0, allowed: true},
		{name: "second fire within limit", offset: 1 * time.Second, allowed: true},
		{name: "third fire denied", offset: 2 * time.Second, allowed: false, remaining: 58},
		{name: "partial second rounds up", offset: 2500 * time.Millisecond, allowed: false, remaining: 58},
		{name: "last instant of window", offset: 59*time.Second + 999*time.Millisecond, allowed: false, remaining: 1},
		{name: "window boundary rolls over", offset: 60 * time.Second, allowed: true},
		{name: "new window second fire", offset: 61 * time.Second, allowed: true},
		{name: "new window exhausted", offset: 62 * time.Second, allowed: false, remaining: 58},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admission := tracker.TryFire("alice", t0.Add(tt.offset))
			assert.Equal(t, tt.allowed, admission.Allowed)
			assert.Equal(t, tt.remaining, admission.SecondsRemaining)
		})
	}
}

func TestTryFire_RolloverAfterWindow(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 2)

	require.True(t, tracker.TryFire("alice", t0).Allowed)
	require.True(t, tracker.TryFire("alice", t0.Add(time.Second)).Allowed)
	require.False(t, tracker.TryFire("alice", t0.Add(2*time.Second)).Allowed)

	// The window starts at the first fire, not the last one
	admission := tracker.TryFire("alice", t0.Add(61*time.Second))
	assert.True(t, admission.Allowed)
	assert.Zero(t, admission.SecondsRemaining)
}

func TestTryFire_UsersAreIndependent(t *testing.T) {
	tracker, _ := newTestTracker(t, 30*time.Second, 1)

	assert.True(t, tracker.TryFire("alice", t0).Allowed)
	assert.False(t, tracker.TryFire("alice", t0.Add(time.Second)).Allowed)
	assert.True(t, tracker.TryFire("bob", t0.Add(time.Second)).Allowed)
	assert.True(t, tracker.TryFire("carol", t0.Add(2*time.Second)).Allowed)
	assert.Equal(t, 3, tracker.Len())
}

func TestTryFire_ZeroMaxAlwaysDenies(t *testing.T) {
	tracker, _ := newTestTracker(t, 10*time.Second, 0)

	first := tracker.TryFire("alice", t0)
	assert.False(t, first.Allowed)
	assert.Equal(t, 10, first.SecondsRemaining)

	later := tracker.TryFire("alice", t0.Add(4*time.Second))
	assert.False(t, later.Allowed)
	assert.Equal(t, 6, later.SecondsRemaining)

	// Rollover still happens, the count-down restarts
	rolled := tracker.TryFire("alice", t0.Add(10*time.Second))
	assert.False(t, rolled.Allowed)
	assert.Equal(t, 10, rolled.SecondsRemaining)
}

func TestTryFire_ClockGoesBackwards(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 1)

	require.True(t, tracker.TryFire("alice", t0).Allowed)

	admission := tracker.TryFire("alice", t0.Add(-5*time.Second))
	assert.False(t, admission.Allowed)
	assert.Equal(t, 60, admission.SecondsRemaining)
}

func TestAllow_UsesTrackerClock(t *testing.T) {
	tracker, clock := newTestTracker(t, 60*time.Second, 1)

	assert.True(t, tracker.Allow("alice").Allowed)

	clock.Advance(20 * time.Second)
	denied := tracker.Allow("alice")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 40, denied.SecondsRemaining)

	clock.Advance(40 * time.Second)
	assert.True(t, tracker.Allow("alice").Allowed)
}

func TestTryFire_ConcurrentSameUser(t *testing.T) {
	tests := []struct {
		name       string
		goroutines int
		maxFires   int
	}{
		{name: "more callers than fires", goroutines: 64, maxFires: 5},
		{name: "fewer callers than fires", goroutines: 3, maxFires: 10},
		{name: "zero limit", goroutines: 16, maxFires: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := newTestTracker(t, time.Minute, tt.maxFires)

			var allowed atomic.Int64
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < tt.goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if tracker.TryFire("alice", t0).Allowed {
						allowed.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int64(min(tt.goroutines, tt.maxFires)), allowed.Load())
		})
	}
}

func TestTryFire_ConcurrentWithCleanup(t *testing.T) {
	tracker, _ := newTestTracker(t, time.Minute, 3)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.TryFire("alice", t0.Add(time.Second)).Allowed {
				allowed.Add(1)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Nothing has elapsed at t0+1s, so nothing may be evicted
			tracker.Cleanup(t0.Add(time.Second))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), allowed.Load())
}

func TestCleanup_RemovesElapsedWindows(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 1)

	tracker.TryFire("alice", t0)
	tracker.TryFire("bob", t0.Add(30*time.Second))
	require.Equal(t, 2, tracker.Len())

	assert.Equal(t, 0, tracker.Cleanup(t0.Add(59*time.Second)))
	assert.Equal(t, 1, tracker.Cleanup(t0.Add(60*time.Second)))
	assert.Equal(t, 1, tracker.Len())

	// bob's window is still live and still enforced
	denied := tracker.TryFire("bob", t0.Add(61*time.Second))
	assert.False(t, denied.Allowed)
	assert.Equal(t, 29, denied.SecondsRemaining)

	// alice behaves as a fresh user
	assert.True(t, tracker.TryFire("alice", t0.Add(61*time.Second)).Allowed)
}

func TestStartCleanup_RunsOnTicker(t *testing.T) {
	tracker, clock := newTestTracker(t, 10*time.Second, 1)
	tracker.TryFire("alice", t0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.StartCleanup(ctx, 15*time.Second, func(removed, remaining int) {
			results <- removed
		})
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(15 * time.Second)

	select {
	case removed := <-results:
		assert.Equal(t, 1, removed)
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not run")
	}
	assert.Equal(t, 0, tracker.Len())

	cancel()
	<-done
}

func TestPeek(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 3)

	status := tracker.Peek("alice", t0)
	assert.False(t, status.Tracked)
	assert.Equal(t, 3, status.FiresRemaining)

	tracker.TryFire("alice", t0)
	tracker.TryFire("alice", t0.Add(5*time.Second))

	status = tracker.Peek("alice", t0.Add(10*time.Second))
	assert.True(t, status.Tracked)
	assert.Equal(t, 2, status.FiresUsed)
	assert.Equal(t, 1, status.FiresRemaining)
	assert.Equal(t, 50*time.Second, status.ResetIn)

	// Peek never counts a fire
	assert.True(t, tracker.TryFire("alice", t0.Add(11*time.Second)).Allowed)

	status = tracker.Peek("alice", t0.Add(70*time.Second))
	assert.False(t, status.Tracked)
	assert.Equal(t, 3, status.FiresRemaining)
}

func TestReset(t *testing.T) {
	tracker, _ := newTestTracker(t, 60*time.Second, 1)

	assert.False(t, tracker.Reset("alice"))

	tracker.TryFire("alice", t0)
	require.False(t, tracker.TryFire("alice", t0.Add(time.Second)).Allowed)

	assert.True(t, tracker.Reset("alice"))
	assert.Equal(t, 0, tracker.Len())
	assert.True(t, tracker.TryFire("alice", t0.Add(2*time.Second)).Allowed)
}

func TestSecondsRemaining(t *testing.T) {
	tests := []struct {
		window   time.Duration
		elapsed  time.Duration
		expected int
	}{
		{window: 60 * time.Second, elapsed: 0, expected: 60},
		{window: 60 * time.Second, elapsed: 2 * time.Second, expected: 58},
		{window: 60 * time.Second, elapsed: 2*time.Second + time.Nanosecond, expected: 58},
		{window: 60 * time.Second, elapsed: 59*time.Second + time.Millisecond, expected: 1},
		{window: 60 * time.Second, elapsed: -time.Hour, expected: 60},
		{window: 1500 * time.Millisecond, elapsed: 0, expected: 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, secondsRemaining(tt.window, tt.elapsed), "window=%v elapsed=%v", tt.window, tt.elapsed)
	}
}

func TestCooldownTracker_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("never more than maxFires admissions per window", prop.ForAll(
		func(maxFires int, windowSecs int, gaps []int) bool {
			window := time.Duration(windowSecs) * time.Second
			tracker, err := NewCooldownTracker(window, maxFires, nil)
			if err != nil {
				return false
			}

			now := t0
			windowStart := now
			inWindow := 0
			for i, gap := range gaps {
				if i > 0 {
					now = now.Add(time.Duration(gap) * time.Millisecond)
				}
				if now.Sub(windowStart) >= window {
					windowStart = now
					inWindow = 0
				}
				admission := tracker.TryFire("alice", now)
				if admission.Allowed {
					inWindow++
					if inWindow > maxFires {
						return false
					}
				} else if admission.SecondsRemaining < 1 || admission.SecondsRemaining > windowSecs {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5),
		gen.IntRange(1, 120),
		gen.SliceOf(gen.IntRange(0, 30000)),
	))

	properties.Property("denied wait matches the ceiling of the time left", prop.ForAll(
		func(windowSecs int, offsetMs int) bool {
			window := time.Duration(windowSecs) * time.Second
			tracker, err := NewCooldownTracker(window, 1, nil)
			if err != nil {
				return false
			}
			tracker.TryFire("alice", t0)

			offset := time.Duration(offsetMs) * time.Millisecond
			if offset >= window {
				return tracker.TryFire("alice", t0.Add(offset)).Allowed
			}

			left := window - offset
			expected := int((left + time.Second - 1) / time.Second)
			admission := tracker.TryFire("alice", t0.Add(offset))
			return !admission.Allowed && admission.SecondsRemaining == expected
		},
		gen.IntRange(1, 300),
		gen.IntRange(0, 400000),
	))

	properties.TestingRun(t)
}
