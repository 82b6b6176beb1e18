package actuator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Actuator fires the remote device
type Actuator interface {
	Fire(ctx context.Context, intensity int, duration time.Duration) error
}

var (
	// ErrDeviceUnavailable covers transient failures: offline or paused device,
	// server errors, throttling and network problems
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrUnauthorized means the API credentials were rejected
	ErrUnauthorized = errors.New("actuator credentials rejected")
	// ErrConfiguration means the request itself is wrong and retrying cannot help
	ErrConfiguration = errors.New("actuator misconfigured")
	// ErrCircuitOpen means recent failures tripped the breaker
	ErrCircuitOpen = errors.New("actuator circuit open")
	// ErrClosed is returned by Fire once shutdown has begun
	ErrClosed = errors.New("actuator is shutting down")
)

// Operation selects what the device does
type Operation int

const (
	OpShock   Operation = 0
	OpVibrate Operation = 1
	OpBeep    Operation = 2
)

// ParseOperation maps a config name to an Operation
func ParseOperation(name string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "shock":
		return OpShock, nil
	case "vibrate":
		return OpVibrate, nil
	case "beep":
		return OpBeep, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation %q", ErrConfiguration, name)
	}
}

func (o Operation) String() string {
	switch o {
	case OpShock:
		return "shock"
	case OpVibrate:
		return "vibrate"
	case OpBeep:
		return "beep"
	default:
		return "unknown"
	}
}

// Status labels used for request outcomes
const (
	StatusSuccess       = "success"
	StatusUnavailable   = "unavailable"
	StatusUnauthorized  = "unauthorized"
	StatusConfiguration = "configuration"
	StatusCircuitOpen   = "circuit_open"
	StatusCancelled     = "cancelled"
	StatusClosed        = "closed"
)

// StatusOf maps a Fire error to a status label
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrClosed):
		return StatusClosed
	case errors.Is(err, ErrCircuitOpen):
		return StatusCircuitOpen
	case errors.Is(err, ErrUnauthorized):
		return StatusUnauthorized
	case errors.Is(err, ErrConfiguration):
		return StatusConfiguration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusUnavailable
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request id that Fire reuses for its API call
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request id from ctx
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
