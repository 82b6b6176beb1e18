package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Admission is the result of a fire request against a user's cooldown window
type Admission struct {
	Allowed bool
	// SecondsRemaining is set on denial and is always >= 1
	SecondsRemaining int
}

// Status is a read-only view of a user's current window
type Status struct {
	Tracked        bool
	FiresUsed      int
	FiresRemaining int
	ResetIn        time.Duration
}

// cooldownWindow counts firings for one user inside a fixed window
type cooldownWindow struct {
	mu          sync.Mutex
	windowStart time.Time
	fireCount   int
	// evicted is set under mu when the window is removed from the table
	evicted bool
}

// CooldownTracker enforces a fixed-window fire limit per user.
// The table lock only guards map membership; each window has its own lock,
// so fire requests from different users do not contend.
type CooldownTracker struct {
	mu       sync.RWMutex
	windows  map[string]*cooldownWindow
	window   time.Duration
	maxFires int
	clock    clockwork.Clock
}

// NewCooldownTracker creates a tracker allowing maxFires firings per window
func NewCooldownTracker(window time.Duration, maxFires int, clock clockwork.Clock) (*CooldownTracker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("cooldown window must be positive, got %v", window)
	}
	if maxFires < 0 {
		return nil, fmt.Errorf("max fires per window must be non-negative, got %d", maxFires)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &CooldownTracker{
		windows:  make(map[string]*cooldownWindow),
		window:   window,
		maxFires: maxFires,
		clock:    clock,
	}, nil
}

// Window returns the configured window duration
func (ct *CooldownTracker) Window() time.Duration {
	return ct.window
}

// MaxFires returns the configured per-window limit
func (ct *CooldownTracker) MaxFires() int {
	return ct.maxFires
}

// Allow is TryFire at the tracker clock's current time
func (ct *CooldownTracker) Allow(user string) Admission {
	return ct.TryFire(user, ct.clock.Now())
}

// TryFire decides whether user may fire at now and, if so, counts the firing.
// Rollover, admission and increment happen under one lock and use the single
// clock reading now.
func (ct *CooldownTracker) TryFire(user string, now time.Time) Admission {
	for {
		w := ct.load(user, now)

		w.mu.Lock()
		if w.evicted {
			// Lost a race with Cleanup or Reset; the table holds a fresh entry now
			w.mu.Unlock()
			continue
		}
		admission := w.tryFire(now, ct.window, ct.maxFires)
		w.mu.Unlock()

		return admission
	}
}

// load returns the user's window, creating it on first use
func (ct *CooldownTracker) load(user string, now time.Time) *cooldownWindow {
	ct.mu.RLock()
	w, ok := ct.windows[user]
	ct.mu.RUnlock()
	if ok {
		return w
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	if w, ok := ct.windows[user]; ok {
		return w
	}
	w = &cooldownWindow{windowStart: now}
	ct.windows[user] = w
	return w
}

// tryFire must be called with w.mu held
func (w *cooldownWindow) tryFire(now time.Time, window time.Duration, maxFires int) Admission {
	elapsed := now.Sub(w.windowStart)
	if elapsed >= window {
		w.windowStart = now
		w.fireCount = 0
		elapsed = 0
	}

	if w.fireCount < maxFires {
		w.fireCount++
		return Admission{Allowed: true}
	}

	return Admission{SecondsRemaining: secondsRemaining(window, elapsed)}
}

// secondsRemaining rounds the time left in the window up to whole seconds.
// A clock reading earlier than the window start counts as zero elapsed.
func secondsRemaining(window, elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := window - elapsed
	seconds := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// Peek reports the user's window without counting a firing
func (ct *CooldownTracker) Peek(user string, now time.Time) Status {
	ct.mu.RLock()
	w, ok := ct.windows[user]
	ct.mu.RUnlock()

	if !ok {
		return Status{FiresRemaining: ct.maxFires}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := now.Sub(w.windowStart)
	if w.evicted || elapsed >= ct.window {
		return Status{FiresRemaining: ct.maxFires}
	}
	if elapsed < 0 {
		elapsed = 0
	}

	return Status{
		Tracked:        true,
		FiresUsed:      w.fireCount,
		FiresRemaining: ct.maxFires - w.fireCount,
		ResetIn:        ct.window - elapsed,
	}
}

// Reset forgets a user's window. Returns false if the user was not tracked.
func (ct *CooldownTracker) Reset(user string) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	w, ok := ct.windows[user]
	if !ok {
		return false
	}

	w.mu.Lock()
	w.evicted = true
	w.mu.Unlock()
	delete(ct.windows, user)

	return true
}

// Len returns the number of tracked users
func (ct *CooldownTracker) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.windows)
}

// Cleanup removes windows that have fully elapsed at now.
// An elapsed window behaves exactly like a fresh one, so nothing observable is lost.
func (ct *CooldownTracker) Cleanup(now time.Time) int {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	removed := 0
	for user, w := range ct.windows {
		w.mu.Lock()
		if now.Sub(w.windowStart) >= ct.window {
			w.evicted = true
			delete(ct.windows, user)
			removed++
		}
		w.mu.Unlock()
	}

	return removed
}

// StartCleanup periodically evicts elapsed windows until ctx is cancelled.
// onCleanup, if set, receives the number removed and the remaining size.
func (ct *CooldownTracker) StartCleanup(ctx context.Context, interval time.Duration, onCleanup func(removed, remaining int)) {
	ticker := ct.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			removed := ct.Cleanup(ct.clock.Now())
			if onCleanup != nil {
				onCleanup(removed, ct.Len())
			}
		}
	}
}
