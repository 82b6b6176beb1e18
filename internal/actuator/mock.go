package actuator

import (
	"context"
	"sync"
	"time"
)

// FireCall records one MockActuator.Fire invocation
type FireCall struct {
	Intensity int
	Duration  time.Duration
	RequestID string
}

// MockActuator stands in for the device in test mode.
// It records every call and never touches the network.
type MockActuator struct {
	mu    sync.Mutex
	calls []FireCall
	err   error
	delay time.Duration
}

// NewMockActuator creates a mock that always succeeds
func NewMockActuator() *MockActuator {
	return &MockActuator{}
}

// SetError makes subsequent Fire calls fail with err
func (m *MockActuator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Fire block for d, or until ctx is done
func (m *MockActuator) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Fire records the call and returns the configured error
func (m *MockActuator) Fire(ctx context.Context, intensity int, duration time.Duration) error {
	m.mu.Lock()
	delay := m.delay
	err := m.err
	id, _ := RequestID(ctx)
	m.calls = append(m.calls, FireCall{Intensity: intensity, Duration: duration, RequestID: id})
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Calls returns a copy of the recorded calls
func (m *MockActuator) Calls() []FireCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FireCall(nil), m.calls...)
}

// WaitForInflight always succeeds; the mock has no background work
func (m *MockActuator) WaitForInflight(time.Duration) bool {
	return true
}
