package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/jolt/internal/circuitbreaker"
)

// fakePiShock replays a scripted list of responses
type fakePiShock struct {
	mu        sync.Mutex
	responses []fakeResponse
	requests  []operateRequest
	ids       []string
	hits      atomic.Int64
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakePiShock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)

	var req operateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.ids = append(f.ids, r.Header.Get("X-Request-ID"))
	resp := fakeResponse{status: http.StatusOK, body: respSucceeded}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		if len(f.responses) > 1 {
			f.responses = f.responses[1:]
		}
	}
	f.mu.Unlock()

	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func newTestClient(t *testing.T, fake *fakePiShock, mutate func(*PiShockConfig)) *PiShockClient {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := PiShockConfig{
		Endpoint:         server.URL,
		Username:         "operator",
		APIKey:           "key-123",
		ShareCode:        "ABC123",
		Name:             "jolt",
		Operation:        OpShock,
		Timeout:          2 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     time.Millisecond,
		BreakerThreshold: 3,
		BreakerTimeout:   time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPiShockClient(cfg)
}

func TestPiShockClient_Success(t *testing.T) {
	fake := &fakePiShock{}
	var statuses []string
	client := newTestClient(t, fake, func(c *PiShockConfig) {
		c.OnRequest = func(status string, _ time.Duration) { statuses = append(statuses, status) }
	})

	ctx := WithRequestID(context.Background(), "req-42")
	require.NoError(t, client.Fire(ctx, 40, time.Second))

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "operator", req.Username)
	assert.Equal(t, "key-123", req.APIKey)
	assert.Equal(t, "ABC123", req.Code)
	assert.Equal(t, "jolt", req.Name)
	assert.Equal(t, 0, req.Op)
	assert.Equal(t, 1, req.Duration)
	assert.Equal(t, 40, req.Intensity)
	assert.Equal(t, "req-42", fake.ids[0])
	assert.Equal(t, []string{StatusSuccess}, statuses)
}

func TestPiShockClient_AttemptedCountsAsSuccess(t *testing.T) {
	fake := &fakePiShock{responses: []fakeResponse{{http.StatusOK, respAttempted}}}
	client := newTestClient(t, fake, nil)
	assert.NoError(t, client.Fire(context.Background(), 10, 2*time.Second))
}

func TestPiShockClient_RetriesTransient(t *testing.T) {
	fake := &fakePiShock{responses: []fakeResponse{
		{http.StatusOK, respNotConnected},
		{http.StatusBadGateway, ""},
		{http.StatusOK, respSucceeded},
	}}
	client := newTestClient(t, fake, nil)

	require.NoError(t, client.Fire(context.Background(), 40, time.Second))
	assert.Equal(t, int64(3), fake.hits.Load())
}

func TestPiShockClient_GivesUpAfterRetries(t *testing.T) {
	fake := &fakePiShock{responses: []fakeResponse{{http.StatusOK, respNotConnected}}}
	client := newTestClient(t, fake, nil)

	err := client.Fire(context.Background(), 40, time.Second)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, int64(3), fake.hits.Load())
	assert.Equal(t, StatusUnavailable, StatusOf(err))
}

func TestPiShockClient_TerminalErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name     string
		response fakeResponse
		expected error
	}{
		{name: "not authorized text", response: fakeResponse{http.StatusOK, respNotAuthorized}, expected: ErrUnauthorized},
		{name: "unknown share code", response: fakeResponse{http.StatusOK, "This code doesn't exist."}, expected: ErrConfiguration},
		{name: "forbidden status", response: fakeResponse{http.StatusForbidden, ""}, expected: ErrUnauthorized},
		{name: "bad request status", response: fakeResponse{http.StatusBadRequest, "nope"}, expected: ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePiShock{responses: []fakeResponse{tt.response}}
			client := newTestClient(t, fake, nil)

			err := client.Fire(context.Background(), 40, time.Second)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, int64(1), fake.hits.Load())
			assert.Equal(t, circuitbreaker.StateClosed, client.BreakerState())
		})
	}
}

func TestPiShockClient_RejectsOutOfRangeParameters(t *testing.T) {
	fake := &fakePiShock{}
	client := newTestClient(t, fake, nil)

	assert.ErrorIs(t, client.Fire(context.Background(), 0, time.Second), ErrConfiguration)
	assert.ErrorIs(t, client.Fire(context.Background(), 101, time.Second), ErrConfiguration)
	assert.ErrorIs(t, client.Fire(context.Background(), 50, 16*time.Second), ErrConfiguration)
	assert.ErrorIs(t, client.Fire(context.Background(), 50, 500*time.Millisecond), ErrConfiguration)
	assert.Equal(t, int64(0), fake.hits.Load())
}

func TestPiShockClient_CircuitOpensAndFailsFast(t *testing.T) {
	fake := &fakePiShock{responses: []fakeResponse{{http.StatusServiceUnavailable, ""}}}
	var changes []string
	client := newTestClient(t, fake, func(c *PiShockConfig) {
		c.MaxRetries = 0
		c.BreakerThreshold = 2
		c.OnBreakerChange = func(from, to circuitbreaker.State) {
			changes = append(changes, to.String())
		}
	})

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, client.Fire(context.Background(), 40, time.Second), ErrDeviceUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, client.BreakerState())

	err := client.Fire(context.Background(), 40, time.Second)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StatusCircuitOpen, StatusOf(err))
	assert.Equal(t, int64(2), fake.hits.Load())
	assert.Equal(t, []string{"open"}, changes)
}

func TestPiShockClient_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client := NewPiShockClient(PiShockConfig{
		Endpoint:     endpoint,
		Timeout:      time.Second,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	})

	err := client.Fire(context.Background(), 40, time.Second)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestPiShockClient_WaitForInflight(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		_, _ = w.Write([]byte(respSucceeded))
	}))
	defer server.Close()

	client := NewPiShockClient(PiShockConfig{Endpoint: server.URL, Timeout: 5 * time.Second})

	done := make(chan error, 1)
	go func() { done <- client.Fire(context.Background(), 40, time.Second) }()

	select {
	case <-arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the server")
	}

	assert.False(t, client.WaitForInflight(10*time.Millisecond))

	// Once shutdown has begun new calls are refused
	err := client.Fire(context.Background(), 40, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StatusClosed, StatusOf(err))

	close(release)
	require.NoError(t, <-done)
	assert.True(t, client.WaitForInflight(time.Second))
}

func TestPiShockClient_FireDuringWaitForInflight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		_, _ = w.Write([]byte(respSucceeded))
	}))
	defer server.Close()

	client := NewPiShockClient(PiShockConfig{Endpoint: server.URL, Timeout: 5 * time.Second})

	var wg sync.WaitGroup
	var fired, refused atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := client.Fire(context.Background(), 40, time.Second)
			switch {
			case err == nil:
				fired.Add(1)
			case errors.Is(err, ErrClosed):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	close(start)
	assert.True(t, client.WaitForInflight(5*time.Second))
	wg.Wait()

	assert.Equal(t, int32(20), fired.Load()+refused.Load())
	assert.ErrorIs(t, client.Fire(context.Background(), 40, time.Second), ErrClosed)
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		status   int
		text     string
		expected error
	}{
		{http.StatusOK, respSucceeded, nil},
		{http.StatusOK, respAttempted, nil},
		{http.StatusOK, respNotConnected, ErrDeviceUnavailable},
		{http.StatusOK, "Shocker is Paused or does not exist. Unpause to send command.", ErrDeviceUnavailable},
		{http.StatusOK, respNotAuthorized, ErrUnauthorized},
		{http.StatusOK, "Intensity must be between 0 and 100", ErrConfiguration},
		{http.StatusTooManyRequests, "", ErrDeviceUnavailable},
		{http.StatusInternalServerError, "", ErrDeviceUnavailable},
		{http.StatusUnauthorized, "", ErrUnauthorized},
		{http.StatusNotFound, "", ErrConfiguration},
	}

	for _, tt := range tests {
		err := classifyResponse(tt.status, tt.text)
		if tt.expected == nil {
			assert.NoError(t, err, "status=%d text=%q", tt.status, tt.text)
			continue
		}
		assert.ErrorIs(t, err, tt.expected, "status=%d text=%q", tt.status, tt.text)
	}
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("Vibrate")
	require.NoError(t, err)
	assert.Equal(t, OpVibrate, op)
	assert.Equal(t, "vibrate", op.String())

	_, err = ParseOperation("tickle")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMockActuator(t *testing.T) {
	mock := NewMockActuator()
	ctx := WithRequestID(context.Background(), "req-1")

	require.NoError(t, mock.Fire(ctx, 40, time.Second))
	mock.SetError(ErrDeviceUnavailable)
	assert.True(t, errors.Is(mock.Fire(ctx, 40, time.Second), ErrDeviceUnavailable))

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "req-1", calls[0].RequestID)
	assert.True(t, mock.WaitForInflight(0))
}
