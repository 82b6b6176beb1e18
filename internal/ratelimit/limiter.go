package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// NewOutboundLimiter creates a token bucket allowing messagesPerWindow
// messages every windowSeconds, with a burst of the full window allowance
func NewOutboundLimiter(messagesPerWindow int, windowSeconds int) *rate.Limiter {
	if messagesPerWindow <= 0 || windowSeconds <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	interval := time.Duration(windowSeconds) * time.Second / time.Duration(messagesPerWindow)
	return rate.NewLimiter(rate.Every(interval), messagesPerWindow)
}
