package window

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
	"github.com/rewardflow/rewardflow-backend/internal/metrics"
)

// BurnExecutor is the burn-accounting step invoked by the winning close
// transition. Implemented by the burn engine.
type BurnExecutor interface {
	Burn(ctx context.Context, distributionID uuid.UUID, totalUncollected decimal.Decimal, uncollectedCount int) (*domain.BurnRecord, error)
}

// Controller drives the collection window state machine:
// PENDING -> OPEN -> CLOSED_BURNING -> COMPLETE.
//
// Every transition is a single conditional update in the repository, so
// concurrent admin calls and scheduler ticks produce exactly one winner;
// losers observe the already-updated status and no-op.
type Controller struct {
	DistributionRepo domain.DistributionRepository
	TransferRepo     domain.TransferRepository
	BurnRepo         domain.BurnRecordRepository
	Burner           BurnExecutor
	WindowDuration   time.Duration
	Clock            clockwork.Clock
	Log              *slog.Logger
}

// NewController creates a new window Controller instance
func NewController(
	distributionRepo domain.DistributionRepository,
	transferRepo domain.TransferRepository,
	burnRepo domain.BurnRecordRepository,
	burner BurnExecutor,
	windowDuration time.Duration,
	clock clockwork.Clock,
	log *slog.Logger,
) *Controller {
	return &Controller{
		DistributionRepo: distributionRepo,
		TransferRepo:     transferRepo,
		BurnRepo:         burnRepo,
		Burner:           burner,
		WindowDuration:   windowDuration,
		Clock:            clock,
		Log:              log,
	}
}

// OpenWindow moves a PENDING distribution to OPEN, fixing the deadline at
// now + WindowDuration, and materializes one PENDING reward transfer per
// holder allocation. The deadline is never extended afterwards.
// Returns ErrInvalidState if the distribution already left PENDING.
func (c *Controller) OpenWindow(ctx context.Context, distributionID uuid.UUID) (*domain.MonthlyRewardDistribution, error) {
	dist, err := c.DistributionRepo.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}

	if dist.Status != domain.DistributionStatusPending {
		return nil, fmt.Errorf("%w: distribution %s is %s, expected PENDING",
			domain.ErrInvalidState, distributionID, dist.Status)
	}

	now := c.Clock.Now()
	deadline := now.Add(c.WindowDuration)

	won, err := c.DistributionRepo.OpenWindow(ctx, distributionID, now, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection window: %w", err)
	}
	if !won {
		// A concurrent trigger opened it between our read and our update
		return nil, fmt.Errorf("%w: distribution %s already left PENDING",
			domain.ErrInvalidState, distributionID)
	}

	metrics.WindowTransitionsTotal.WithLabelValues(string(domain.DistributionStatusOpen)).Inc()
	c.Log.Info("collection window opened",
		"distribution_id", distributionID,
		"month", dist.Month,
		"deadline", deadline,
	)

	return c.DistributionRepo.GetByID(ctx, distributionID)
}

// CloseWindow closes the collection window and runs burn accounting.
//
// Closing before the deadline requires the explicit force flag; the
// scheduler never forces, so slow claims are not starved by default.
// Calling CloseWindow on a COMPLETE distribution is a no-op that returns the
// existing burn record. Exactly one caller wins the OPEN -> CLOSED_BURNING
// update; everyone else either returns the existing record or helps finish
// an interrupted finalization, which is idempotent end to end.
func (c *Controller) CloseWindow(ctx context.Context, distributionID uuid.UUID, force bool) (*domain.BurnRecord, error) {
	dist, err := c.DistributionRepo.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}

	switch dist.Status {
	case domain.DistributionStatusPending:
		return nil, fmt.Errorf("%w: distribution %s was never opened",
			domain.ErrInvalidState, distributionID)

	case domain.DistributionStatusComplete:
		return c.BurnRepo.Get(ctx, distributionID)

	case domain.DistributionStatusClosedBurning:
		// A previous close won the transition but did not finish; resume
		return c.finalize(ctx, distributionID)

	case domain.DistributionStatusOpen:
		now := c.Clock.Now()
		if !force && now.Before(*dist.WindowDeadline) {
			return nil, fmt.Errorf("%w: window deadline %s not reached",
				domain.ErrInvalidState, dist.WindowDeadline.Format(time.RFC3339))
		}

		won, err := c.DistributionRepo.CloseWindow(ctx, distributionID)
		if err != nil {
			return nil, fmt.Errorf("failed to close collection window: %w", err)
		}
		if !won {
			// Lost the race; the winner is (or was) finalizing
			fresh, err := c.DistributionRepo.GetByID(ctx, distributionID)
			if err != nil {
				return nil, err
			}
			if fresh.Status == domain.DistributionStatusComplete {
				return c.BurnRepo.Get(ctx, distributionID)
			}
			return c.finalize(ctx, distributionID)
		}

		metrics.WindowTransitionsTotal.WithLabelValues(string(domain.DistributionStatusClosedBurning)).Inc()
		c.Log.Info("collection window closed",
			"distribution_id", distributionID,
			"month", dist.Month,
			"forced", force,
		)

		return c.finalize(ctx, distributionID)

	default:
		return nil, fmt.Errorf("%w: distribution %s has unknown status %s",
			domain.ErrInvalidState, distributionID, dist.Status)
	}
}

// finalize runs burn accounting for a CLOSED_BURNING distribution and moves
// it to COMPLETE. The uncollected sum read here happens after the close
// update, so it is the single source of truth: no transfer of this
// distribution can reach COMPLETED anymore.
func (c *Controller) finalize(ctx context.Context, distributionID uuid.UUID) (*domain.BurnRecord, error) {
	totalUncollected, uncollectedCount, err := c.TransferRepo.UncollectedSummary(ctx, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read uncollected summary: %w", err)
	}

	record, err := c.Burner.Burn(ctx, distributionID, totalUncollected, uncollectedCount)
	if err != nil {
		return nil, err
	}

	if err := c.DistributionRepo.Complete(ctx, distributionID, record.TotalBurnt, record.UncollectedCount); err != nil {
		return nil, fmt.Errorf("failed to finalize distribution: %w", err)
	}

	metrics.WindowTransitionsTotal.WithLabelValues(string(domain.DistributionStatusComplete)).Inc()
	c.Log.Info("distribution finalized",
		"distribution_id", distributionID,
		"total_burnt", record.TotalBurnt,
		"uncollected_count", record.UncollectedCount,
	)

	return record, nil
}
