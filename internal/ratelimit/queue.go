package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// maxSendAttempts bounds how often a failed message goes back to the front
const maxSendAttempts = 3

// QueuedMessage represents a message waiting to be sent
type QueuedMessage struct {
	Target   string // Channel or nick to send to
	Message  string
	attempts int
}

// MessageQueue is a bounded FIFO drained at the limiter's pace.
// When full, the oldest message is dropped.
type MessageQueue struct {
	mu          sync.Mutex
	queue       []QueuedMessage
	maxSize     int
	limiter     *rate.Limiter
	sendFunc    func(target, message string) error
	onDrop      func()
	notify      chan struct{}
	stopCh      chan struct{}
	stoppedCh   chan struct{}
	stopOnce    sync.Once
	started     bool
	droppedMsgs int
}

// NewMessageQueue creates a new message queue
func NewMessageQueue(maxSize int, limiter *rate.Limiter, sendFunc func(target, message string) error) *MessageQueue {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &MessageQueue{
		queue:     make([]QueuedMessage, 0, maxSize),
		maxSize:   maxSize,
		limiter:   limiter,
		sendFunc:  sendFunc,
		notify:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// OnDrop registers a callback invoked each time a message is dropped
func (mq *MessageQueue) OnDrop(fn func()) {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	mq.onDrop = fn
}

// Enqueue adds a message to the queue.
// Returns false if an older message had to be dropped to make room.
func (mq *MessageQueue) Enqueue(target, message string) bool {
	mq.mu.Lock()
	dropped := false
	if len(mq.queue) >= mq.maxSize {
		mq.queue = mq.queue[1:]
		mq.droppedMsgs++
		dropped = true
	}
	mq.queue = append(mq.queue, QueuedMessage{Target: target, Message: message})
	onDrop := mq.onDrop
	mq.mu.Unlock()

	if dropped && onDrop != nil {
		onDrop()
	}
	mq.wake()

	return !dropped
}

// Dequeue removes and returns the next message from the queue
func (mq *MessageQueue) Dequeue() (QueuedMessage, bool) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if len(mq.queue) == 0 {
		return QueuedMessage{}, false
	}

	msg := mq.queue[0]
	mq.queue = mq.queue[1:]

	return msg, true
}

// Size returns the current queue size
func (mq *MessageQueue) Size() int {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	return len(mq.queue)
}

// DroppedCount returns the number of dropped messages
func (mq *MessageQueue) DroppedCount() int {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	return mq.droppedMsgs
}

// Start begins processing the queue in a goroutine; later calls are no-ops
func (mq *MessageQueue) Start(ctx context.Context) {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.started {
		return
	}
	mq.started = true
	go mq.processQueue(ctx)
}

// Stop stops the queue processor and waits for it to exit
func (mq *MessageQueue) Stop() {
	mq.stopOnce.Do(func() {
		close(mq.stopCh)
	})

	mq.mu.Lock()
	started := mq.started
	mq.mu.Unlock()
	if started {
		<-mq.stoppedCh
	}
}

func (mq *MessageQueue) wake() {
	select {
	case mq.notify <- struct{}{}:
	default:
	}
}

// processQueue drains the queue whenever messages arrive
func (mq *MessageQueue) processQueue(ctx context.Context) {
	defer close(mq.stoppedCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-mq.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mq.notify:
			for mq.Size() > 0 {
				if err := mq.limiter.Wait(ctx); err != nil {
					return
				}
				mq.processNextMessage()
			}
		}
	}
}

// processNextMessage sends the head of the queue, putting it back on failure
func (mq *MessageQueue) processNextMessage() {
	msg, ok := mq.Dequeue()
	if !ok {
		return
	}

	if err := mq.sendFunc(msg.Target, msg.Message); err != nil {
		msg.attempts++

		mq.mu.Lock()
		// It is the oldest message, so a full queue drops it
		requeue := msg.attempts < maxSendAttempts && len(mq.queue) < mq.maxSize
		if requeue {
			mq.queue = append([]QueuedMessage{msg}, mq.queue...)
		} else {
			mq.droppedMsgs++
		}
		onDrop := mq.onDrop
		mq.mu.Unlock()

		if !requeue && onDrop != nil {
			onDrop()
		}
	}
}
