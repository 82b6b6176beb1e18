package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yourusername/jolt/internal/output"
)

// Step is one named piece of shutdown work
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handler runs registered steps in order on SIGINT/SIGTERM or on request
type Handler struct {
	logger       output.Logger
	steps        []Step
	mu           sync.Mutex
	shutdownChan chan struct{}
	signalChan   chan os.Signal
	forceTimeout time.Duration
	shutdownOnce sync.Once
}

// NewHandler creates a handler; steps that outlive forceTimeout are abandoned
func NewHandler(logger output.Logger, forceTimeout time.Duration) *Handler {
	h := &Handler{
		logger:       logger,
		shutdownChan: make(chan struct{}),
		signalChan:   make(chan os.Signal, 1),
		forceTimeout: forceTimeout,
	}
	signal.Notify(h.signalChan, syscall.SIGINT, syscall.SIGTERM)

	return h
}

// Register appends a step; steps run in registration order
func (h *Handler) Register(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, Step{Name: name, Fn: fn})
}

// WaitForShutdown blocks until a signal arrives or ctx is done, then shuts down
func (h *Handler) WaitForShutdown(ctx context.Context) {
	select {
	case sig := <-h.signalChan:
		h.logger.Info("Received signal: %v", sig)
	case <-ctx.Done():
		h.logger.Warning("Shutting down: %v", context.Cause(ctx))
	}
	h.Shutdown()
}

// Shutdown runs the steps once; later calls wait for the first to finish
func (h *Handler) Shutdown() {
	h.shutdownOnce.Do(func() {
		defer close(h.shutdownChan)
		h.logger.Info("Initiating graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), h.forceTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			h.runSteps(ctx)
			close(done)
		}()

		select {
		case <-done:
			h.logger.Success("Graceful shutdown completed")
		case <-ctx.Done():
			h.logger.Warning("Forced shutdown after %v", h.forceTimeout)
		}
	})
	<-h.shutdownChan
}

func (h *Handler) runSteps(ctx context.Context) {
	h.mu.Lock()
	steps := append([]Step(nil), h.steps...)
	h.mu.Unlock()

	for _, step := range steps {
		if ctx.Err() != nil {
			return
		}
		h.logger.Debug("Shutdown: %s", step.Name)
		if err := step.Fn(ctx); err != nil {
			h.logger.Error("Shutdown step %q failed: %v", step.Name, err)
		}
	}
}

// Done is closed when shutdown has finished
func (h *Handler) Done() <-chan struct{} {
	return h.shutdownChan
}

// Stop stops listening for signals
func (h *Handler) Stop() {
	signal.Stop(h.signalChan)
}
