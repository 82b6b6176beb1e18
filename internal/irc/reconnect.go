package irc

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/jolt/internal/config"
	"github.com/yourusername/jolt/internal/output"
)

const connectionCheckInterval = 5 * time.Second

// connector is the part of ConnectionManager the reconnect loop drives
type connector interface {
	IsConnected() bool
	Disconnect() error
	Connect() error
}

// ReconnectionManager reconnects with exponential backoff after a lost connection
type ReconnectionManager struct {
	conn   connector
	logger output.Logger

	mu           sync.Mutex
	currentDelay time.Duration
	minDelay     time.Duration
	maxDelay     time.Duration
	reconnecting bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewReconnectionManager creates a new reconnection manager
func NewReconnectionManager(conn connector, limits config.LimitsConfig, logger output.Logger) *ReconnectionManager {
	ctx, cancel := context.WithCancel(context.Background())
	minDelay := limits.GetReconnectDelayMinDuration()

	return &ReconnectionManager{
		conn:         conn,
		logger:       logger,
		currentDelay: minDelay,
		minDelay:     minDelay,
		maxDelay:     limits.GetReconnectDelayMaxDuration(),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins monitoring the connection
func (rm *ReconnectionManager) Start() {
	go rm.monitorConnection()
}

// Stop ends monitoring and any reconnect in progress
func (rm *ReconnectionManager) Stop() {
	rm.stopOnce.Do(rm.cancel)
}

func (rm *ReconnectionManager) monitorConnection() {
	ticker := time.NewTicker(connectionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rm.ctx.Done():
			return
		case <-ticker.C:
			if !rm.conn.IsConnected() && rm.beginReconnect() {
				rm.logger.Warning("Connection lost, initiating reconnection...")
				go rm.reconnect()
			}
		}
	}
}

// beginReconnect claims the single reconnect slot
func (rm *ReconnectionManager) beginReconnect() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.reconnecting {
		return false
	}
	rm.reconnecting = true
	return true
}

func (rm *ReconnectionManager) reconnect() {
	defer func() {
		rm.mu.Lock()
		rm.reconnecting = false
		rm.mu.Unlock()
	}()

	for attempt := 1; ; attempt++ {
		delay := rm.delay()
		rm.logger.Info("Reconnection attempt %d (waiting %v)...", attempt, delay)

		select {
		case <-time.After(delay):
		case <-rm.ctx.Done():
			return
		}

		_ = rm.conn.Disconnect()
		err := rm.conn.Connect()
		if err == nil {
			rm.logger.Success("Reconnection successful!")
			rm.resetBackoff()
			return
		}

		rm.logger.Error("Reconnection attempt %d failed: %v", attempt, err)
		rm.increaseBackoff()
	}
}

func (rm *ReconnectionManager) delay() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.currentDelay
}

// increaseBackoff doubles the delay up to the maximum
func (rm *ReconnectionManager) increaseBackoff() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.currentDelay *= 2
	if rm.currentDelay > rm.maxDelay {
		rm.currentDelay = rm.maxDelay
	}
}

func (rm *ReconnectionManager) resetBackoff() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.currentDelay = rm.minDelay
}

// IsReconnecting returns whether a reconnection is in progress
func (rm *ReconnectionManager) IsReconnecting() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.reconnecting
}
