package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/jolt/internal/circuitbreaker"
	"github.com/yourusername/jolt/internal/output"
	"github.com/yourusername/jolt/internal/retry"
)

const (
	// DefaultEndpoint is the PiShock operate API
	DefaultEndpoint = "https://do.pishock.com/api/apioperate/"

	MaxIntensity = 100
	MaxDuration  = 15 * time.Second

	maxResponseBytes = 4096
)

// Response texts returned by the PiShock API with HTTP 200
const (
	respSucceeded     = "Operation Succeeded."
	respAttempted     = "Operation Attempted."
	respNotConnected  = "Device currently not connected."
	respNotAuthorized = "Not Authorized."
)

// PiShockConfig configures a PiShockClient
type PiShockConfig struct {
	Endpoint     string
	Username     string
	APIKey       string
	ShareCode    string
	Name         string
	Operation    Operation
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	BreakerThreshold int
	BreakerTimeout   time.Duration
	OnBreakerChange  func(from, to circuitbreaker.State)

	// OnRequest observes every Fire with its status label and latency
	OnRequest func(status string, elapsed time.Duration)
	Logger    output.Logger
}

// operateRequest is the JSON body of an operate call
type operateRequest struct {
	Username  string `json:"Username"`
	APIKey    string `json:"Apikey"`
	Code      string `json:"Code"`
	Name      string `json:"Name"`
	Op        int    `json:"Op"`
	Duration  int    `json:"Duration"`
	Intensity int    `json:"Intensity"`
}

// PiShockClient fires a shared PiShock device over HTTPS
type PiShockClient struct {
	config         PiShockConfig
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker

	mu       sync.Mutex
	inflight int
	closing  bool
	idle     chan struct{} // closed when inflight drops to zero while closing
}

// NewPiShockClient creates a client with retry and circuit breaker protection
func NewPiShockClient(config PiShockConfig) *PiShockClient {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: config.Timeout,
	}

	return &PiShockClient{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		circuitBreaker: circuitbreaker.New(circuitbreaker.Config{
			Name:          "pishock",
			Threshold:     config.BreakerThreshold,
			Timeout:       config.BreakerTimeout,
			OnStateChange: config.OnBreakerChange,
			IsFailure: func(err error) bool {
				return errors.Is(err, ErrDeviceUnavailable)
			},
		}),
	}
}

// BreakerState returns the circuit breaker state
func (c *PiShockClient) BreakerState() circuitbreaker.State {
	return c.circuitBreaker.GetState()
}

// Fire asks the device to run the configured operation.
// Transient failures are retried; an open circuit fails fast with ErrCircuitOpen.
func (c *PiShockClient) Fire(ctx context.Context, intensity int, duration time.Duration) error {
	if !c.begin() {
		return ErrClosed
	}
	defer c.end()

	requestID, ok := RequestID(ctx)
	if !ok {
		requestID = uuid.New().String()
	}

	start := time.Now()
	err := c.fire(ctx, requestID, intensity, duration)
	if c.config.OnRequest != nil {
		c.config.OnRequest(StatusOf(err), time.Since(start))
	}
	return err
}

func (c *PiShockClient) fire(ctx context.Context, requestID string, intensity int, duration time.Duration) error {
	if intensity < 1 || intensity > MaxIntensity {
		return fmt.Errorf("[%s] %w: intensity %d outside 1..%d", requestID, ErrConfiguration, intensity, MaxIntensity)
	}
	if duration < time.Second || duration > MaxDuration {
		return fmt.Errorf("[%s] %w: duration %v outside 1s..%v", requestID, ErrConfiguration, duration, MaxDuration)
	}

	body := operateRequest{
		Username:  c.config.Username,
		APIKey:    c.config.APIKey,
		Code:      c.config.ShareCode,
		Name:      c.config.Name,
		Op:        int(c.config.Operation),
		Duration:  int(duration / time.Second),
		Intensity: intensity,
	}

	policy := retry.Policy{
		MaxAttempts:      c.config.MaxRetries + 1,
		InitialBackoff:   c.config.RetryBackoff,
		RateLimitBackoff: 4 * c.config.RetryBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.debug("Actuator request [%s] failed (attempt %d): %v - retrying in %v", requestID, attempt, err, backoff)
		},
	}

	err := c.circuitBreaker.Call(ctx, func() error {
		return retry.Do(ctx, policy, classify, func() error {
			return c.doRequest(ctx, requestID, body)
		})
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("[%s] %w", requestID, ErrCircuitOpen)
	}
	if err != nil {
		return fmt.Errorf("[%s] %w", requestID, err)
	}

	c.debug("Actuator request [%s] completed: %s intensity=%d duration=%v", requestID, c.config.Operation, intensity, duration)
	return nil
}

// doRequest performs a single operate call and classifies the answer
func (c *PiShockClient) doRequest(ctx context.Context, requestID string, body operateRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: failed to encode request: %v", ErrConfiguration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", ErrConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: request failed: %v", ErrDeviceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrDeviceUnavailable, err)
	}

	return classifyResponse(resp.StatusCode, strings.TrimSpace(string(raw)))
}

// classifyResponse maps an HTTP status and body text to a sentinel error
func classifyResponse(status int, text string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &statusError{status: status, err: ErrDeviceUnavailable, text: text}
	case status >= 500:
		return &statusError{status: status, err: ErrDeviceUnavailable, text: text}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &statusError{status: status, err: ErrUnauthorized, text: text}
	case status >= 400:
		return &statusError{status: status, err: ErrConfiguration, text: text}
	case status < 200 || status >= 300:
		return &statusError{status: status, err: ErrDeviceUnavailable, text: text}
	}

	switch {
	case text == respSucceeded, text == respAttempted:
		return nil
	case text == respNotConnected:
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, text)
	case strings.Contains(text, "Paused"):
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, text)
	case text == respNotAuthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, text)
	default:
		// Unknown share codes and rejected parameters land here; never retried
		return fmt.Errorf("%w: %s", ErrConfiguration, text)
	}
}

// statusError is a non-2xx response
type statusError struct {
	status int
	err    error
	text   string
}

func (e *statusError) Error() string {
	if e.text == "" {
		return fmt.Sprintf("%v: status %d", e.err, e.status)
	}
	return fmt.Sprintf("%v: status %d: %s", e.err, e.status, e.text)
}

func (e *statusError) Unwrap() error { return e.err }

// classify decides whether a failed request is worth retrying
func classify(err error) retry.Action {
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusTooManyRequests {
		return retry.After
	}
	if errors.Is(err, ErrDeviceUnavailable) {
		return retry.Retry
	}
	return retry.Stop
}

func (c *PiShockClient) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return false
	}
	c.inflight++
	return true
}

func (c *PiShockClient) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// WaitForInflight stops accepting new Fire calls and waits for running ones
// to finish. Returns false if the timeout elapsed first.
func (c *PiShockClient) WaitForInflight(timeout time.Duration) bool {
	c.mu.Lock()
	c.closing = true
	if c.inflight == 0 {
		c.mu.Unlock()
		return true
	}
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	idle := c.idle
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}

func (c *PiShockClient) debug(format string, args ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(format, args...)
	}
}
