package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yourusername/jolt/internal/output"
)

const (
	// DefaultPruneInterval is how often the scheduler wakes up
	DefaultPruneInterval = time.Hour
	vacuumTimeout        = 5 * time.Minute
	pruneTimeout         = time.Minute
)

// Store is the database work the scheduler drives; *database.DB implements it
type Store interface {
	PruneFireEvents(ctx context.Context, before time.Time) (int64, error)
	Vacuum(ctx context.Context) error
}

// SessionPruner drops expired admin sessions; *user.Manager implements it
type SessionPruner interface {
	PruneExpired() int
}

// Options configure the scheduler. A zero Retention keeps events forever;
// a zero VacuumInterval disables VACUUM.
type Options struct {
	PruneInterval  time.Duration
	VacuumInterval time.Duration
	Retention      time.Duration
	Sessions       SessionPruner
	// OnPrune receives the number of events removed by each prune
	OnPrune func(removed int64)
}

// Scheduler prunes old fire events and vacuums the database
type Scheduler struct {
	store  Store
	logger output.Logger
	clock  clockwork.Clock
	opts   Options

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastVacuum time.Time
}

// New creates a new maintenance scheduler
func New(store Store, logger output.Logger, clock clockwork.Clock, opts Options) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = DefaultPruneInterval
	}

	return &Scheduler{
		store:      store,
		logger:     logger,
		clock:      clock,
		opts:       opts,
		lastVacuum: clock.Now(),
	}
}

// Start runs maintenance every PruneInterval until Stop or ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("Starting database maintenance (every %v, retention %v, VACUUM every %v)",
		s.opts.PruneInterval, s.opts.Retention, s.opts.VacuumInterval)

	s.wg.Add(1)
	go s.run(ctx)

	return nil
}

// Stop stops the scheduler and waits for a running pass to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Success("Database maintenance scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.RunOnce(ctx)
		}
	}
}

// RunOnce prunes expired events and admin sessions, then vacuums if a VACUUM is due
func (s *Scheduler) RunOnce(ctx context.Context) {
	if err := s.prune(ctx); err != nil {
		s.logger.Error("Fire event pruning failed: %v", err)
	}
	if s.opts.Sessions != nil {
		if n := s.opts.Sessions.PruneExpired(); n > 0 {
			s.logger.Debug("Expired %d admin sessions", n)
		}
	}
	if s.vacuumDue() {
		if err := s.vacuum(ctx); err != nil {
			s.logger.Error("VACUUM operation failed: %v", err)
		}
	}
}

func (s *Scheduler) prune(ctx context.Context) error {
	if s.opts.Retention <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	removed, err := s.store.PruneFireEvents(ctx, s.clock.Now().Add(-s.opts.Retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("Pruned %d fire events older than %v", removed, s.opts.Retention)
	}
	if s.opts.OnPrune != nil {
		s.opts.OnPrune(removed)
	}
	return nil
}

func (s *Scheduler) vacuumDue() bool {
	if s.opts.VacuumInterval <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.lastVacuum) >= s.opts.VacuumInterval
}

func (s *Scheduler) vacuum(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, vacuumTimeout)
	defer cancel()

	start := s.clock.Now()
	if err := s.store.Vacuum(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastVacuum = s.clock.Now()
	s.mu.Unlock()

	s.logger.Success("VACUUM completed in %v", s.clock.Since(start))
	return nil
}

// LastVacuum returns when VACUUM last completed (or when the scheduler was created)
func (s *Scheduler) LastVacuum() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVacuum
}
