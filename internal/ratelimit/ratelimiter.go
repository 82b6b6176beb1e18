package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound chat messages through a bounded queue
type RateLimiter struct {
	limiter *rate.Limiter
	queue   *MessageQueue
}

// New creates a RateLimiter sending at most messagesPerWindow messages every windowSeconds
func New(messagesPerWindow, windowSeconds, maxQueueSize int, sendFunc func(target, message string) error) *RateLimiter {
	limiter := NewOutboundLimiter(messagesPerWindow, windowSeconds)
	return &RateLimiter{
		limiter: limiter,
		queue:   NewMessageQueue(maxQueueSize, limiter, sendFunc),
	}
}

// QueueMessage adds a message to the outbound queue
func (rl *RateLimiter) QueueMessage(target, message string) error {
	rl.queue.Enqueue(target, message)
	return nil
}

// OnDrop registers a callback for dropped messages
func (rl *RateLimiter) OnDrop(fn func()) {
	rl.queue.OnDrop(fn)
}

// QueueSize returns the current queue size
func (rl *RateLimiter) QueueSize() int {
	return rl.queue.Size()
}

// DroppedMessages returns the number of dropped messages
func (rl *RateLimiter) DroppedMessages() int {
	return rl.queue.DroppedCount()
}

// Start begins processing the message queue
func (rl *RateLimiter) Start(ctx context.Context) {
	rl.queue.Start(ctx)
}

// Stop stops the message queue processor
func (rl *RateLimiter) Stop() {
	rl.queue.Stop()
}
