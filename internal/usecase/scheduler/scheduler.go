package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
	"github.com/rewardflow/rewardflow-backend/internal/metrics"
)

// WindowCloser closes a collection window. Implemented by the window
// controller; the scheduler never forces an early close.
type WindowCloser interface {
	CloseWindow(ctx context.Context, distributionID uuid.UUID, force bool) (*domain.BurnRecord, error)
}

// Scheduler is the periodic ticker that enforces window deadlines
// server-side. Each tick closes every OPEN distribution whose deadline has
// passed and resumes any CLOSED_BURNING distribution whose finalization was
// interrupted. It runs concurrently with admin calls and holder claims; all
// races are resolved by the controller's conditional updates.
type Scheduler struct {
	DistributionRepo domain.DistributionRepository
	Windows          WindowCloser
	Interval         time.Duration
	Clock            clockwork.Clock
	Log              *slog.Logger
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(
	distributionRepo domain.DistributionRepository,
	windows WindowCloser,
	interval time.Duration,
	clock clockwork.Clock,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		DistributionRepo: distributionRepo,
		Windows:          windows,
		Interval:         interval,
		Clock:            clock,
		Log:              log,
	}
}

// Start runs the tick loop until the context is cancelled. An immediate tick
// precedes the ticker so expired windows are not left open for an extra
// interval after a restart.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		s.Log.Info("window scheduler started", "interval", s.Interval)

		s.safeTick(ctx)

		ticker := s.Clock.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.Log.Info("window scheduler stopped")
				return
			case <-ticker.Chan():
				s.safeTick(ctx)
			}
		}
	}()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.Log.Error("scheduler tick panicked", "panic", r)
			metrics.SchedulerTicksTotal.WithLabelValues("panic").Inc()
		}
	}()

	if err := s.Tick(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.Log.Error("scheduler tick failed", "error", err)
		metrics.SchedulerTicksTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.SchedulerTicksTotal.WithLabelValues("ok").Inc()
}

// Tick performs one scan. A failure on one distribution never blocks the
// others or the next month's scheduling.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.Clock.Now()

	expired, err := s.DistributionRepo.ListExpiredOpen(ctx, now)
	if err != nil {
		return err
	}
	for _, dist := range expired {
		if _, err := s.Windows.CloseWindow(ctx, dist.ID, false); err != nil {
			// Losing the close race to an admin call surfaces as an
			// invalid-state error here and is not a failure
			if errors.Is(err, domain.ErrInvalidState) {
				continue
			}
			s.Log.Error("failed to close expired window",
				"distribution_id", dist.ID,
				"month", dist.Month,
				"error", err,
			)
		}
	}

	stuck, err := s.DistributionRepo.ListClosing(ctx)
	if err != nil {
		return err
	}
	for _, dist := range stuck {
		s.Log.Warn("resuming interrupted finalization",
			"distribution_id", dist.ID,
			"month", dist.Month,
		)
		if _, err := s.Windows.CloseWindow(ctx, dist.ID, false); err != nil {
			s.Log.Error("failed to resume finalization",
				"distribution_id", dist.ID,
				"error", err,
			)
		}
	}

	return nil
}
