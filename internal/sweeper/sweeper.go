// Package sweeper implements the periodic maintenance loop: it
// materializes the current day's ledger, marks overdue doses as missed,
// and raises refill alerts for medications running low.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/adherence"
	"github.com/gmsas95/dosetrack/internal/metrics"
	"github.com/gmsas95/dosetrack/internal/notify"
)

// Config holds sweeper configuration
type Config struct {
	SweepInterval       int // Minutes between sweep runs
	MissedGracePeriod   int // Minutes a pending dose may lag before it counts as missed
	RefillAlertCooldown int // Hours between refill alerts per medication
}

// Sweeper runs the maintenance loop
type Sweeper struct {
	config     Config
	coord      *adherence.Coordinator
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	running    bool
	mu         sync.RWMutex

	now       func() time.Time
	alertMu   sync.Mutex
	lastAlert map[int64]time.Time
}

// NewSweeper creates a new sweeper
func NewSweeper(config Config, coord *adherence.Coordinator, dispatcher *notify.Dispatcher, logger *zap.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())

	// Set defaults
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5
	}
	if config.MissedGracePeriod < 0 {
		config.MissedGracePeriod = 0
	}
	if config.RefillAlertCooldown <= 0 {
		config.RefillAlertCooldown = 24
	}

	return &Sweeper{
		config:     config,
		coord:      coord,
		dispatcher: dispatcher,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
		lastAlert:  make(map[int64]time.Time),
	}
}

// WithClock overrides the time source, for tests
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// UpdateConfig applies new grace and cooldown settings to subsequent
// sweeps. The tick interval stays fixed for the process lifetime.
func (s *Sweeper) UpdateConfig(config Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if config.MissedGracePeriod >= 0 {
		s.config.MissedGracePeriod = config.MissedGracePeriod
	}
	if config.RefillAlertCooldown > 0 {
		s.config.RefillAlertCooldown = config.RefillAlertCooldown
	}
}

// Start starts the sweeper loop
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	s.running = true
	s.wg.Add(1)
	go s.run()

	return nil
}

// Stop stops the sweeper loop
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("Sweeper stopped")
}

// IsRunning returns whether the sweeper is active
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// run is the main loop
func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.config.SweepInterval) * time.Minute)
	defer ticker.Stop()

	// Sweep immediately on start
	s.Sweep(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep executes one maintenance pass. Errors are logged, never fatal:
// the next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()
	metrics.Default().SweepRuns.Inc()

	if created, err := s.coord.MaterializeDay(ctx, now); err != nil {
		s.logger.Error("Failed to materialize day", zap.Error(err))
	} else if created > 0 {
		s.logger.Info("Materialized ledger entries", zap.Int64("created", created))
	}

	s.mu.RLock()
	grace := s.config.MissedGracePeriod
	s.mu.RUnlock()

	cutoff := now.Add(-time.Duration(grace) * time.Minute)
	if _, err := s.coord.SweepMissed(ctx, cutoff); err != nil {
		s.logger.Error("Failed to sweep missed doses", zap.Error(err))
	}

	s.checkRefills(ctx, now)
}

// checkRefills sends a refill alert for every active medication whose
// remaining pills fell to its refill threshold, at most once per
// cooldown window.
func (s *Sweeper) checkRefills(ctx context.Context, now time.Time) {
	meds, err := s.coord.Medications(ctx, true)
	if err != nil {
		s.logger.Error("Failed to list medications for refill check", zap.Error(err))
		return
	}

	s.mu.RLock()
	cooldown := time.Duration(s.config.RefillAlertCooldown) * time.Hour
	s.mu.RUnlock()
	for i := range meds {
		med := &meds[i]
		if !med.NeedsRefill() {
			continue
		}

		s.alertMu.Lock()
		last, seen := s.lastAlert[med.ID]
		if seen && now.Sub(last) < cooldown {
			s.alertMu.Unlock()
			continue
		}
		s.lastAlert[med.ID] = now
		s.alertMu.Unlock()

		metrics.Default().RefillAlerts.Inc()
		s.dispatcher.Dispatch(ctx, notify.Reminder{
			Kind:         notify.KindRefill,
			MedicationID: med.ID,
			Name:         med.Name,
			Dosage:       med.Dosage,
			PillsLeft:    med.PillsRemaining,
		})
		s.logger.Info("Refill alert sent",
			zap.Int64("medication_id", med.ID),
			zap.String("name", med.Name),
			zap.Int("pills_remaining", med.PillsRemaining))
	}
}
