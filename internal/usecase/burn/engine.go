package burn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
	"github.com/rewardflow/rewardflow-backend/internal/metrics"
)

// Engine executes the burn-accounting step for a closed distribution.
// Racing finalizers are resolved by the burn record insert: the single
// caller whose insert lands owns the external burn broadcast, everyone
// else returns the stored record.
type Engine struct {
	BurnRepo domain.BurnRecordRepository
	Chain    domain.ChainBurnClient
	Clock    clockwork.Clock
	Log      *slog.Logger
}

// NewEngine creates a new burn Engine instance
func NewEngine(
	burnRepo domain.BurnRecordRepository,
	chain domain.ChainBurnClient,
	clock clockwork.Clock,
	log *slog.Logger,
) *Engine {
	return &Engine{
		BurnRepo: burnRepo,
		Chain:    chain,
		Clock:    clock,
		Log:      log,
	}
}

// Burn records the uncollected remainder of a distribution and hands it to
// the external burn transaction.
// Logic:
//   - A zero remainder still produces a BurnRecord with TotalBurnt = 0, so
//     every closed distribution has uniform terminal history
//   - The record insert comes first. A losing insert means another
//     finalizer already owns this burn, so a racing or resumed
//     finalization returns the stored record without broadcasting again
//   - A failed external burn is logged and left with an empty BurnTxRef for
//     manual reconciliation; it never blocks finalization and the claim
//     window never reopens
func (e *Engine) Burn(ctx context.Context, distributionID uuid.UUID, totalUncollected decimal.Decimal, uncollectedCount int) (*domain.BurnRecord, error) {
	record := &domain.BurnRecord{
		DistributionID:   distributionID,
		TotalBurnt:       totalUncollected,
		UncollectedCount: uncollectedCount,
		ExecutedAt:       e.Clock.Now(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	inserted, err := e.BurnRepo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to persist burn record: %w", err)
	}
	if !inserted {
		return e.BurnRepo.Get(ctx, distributionID)
	}

	if totalUncollected.IsPositive() {
		txRef, err := e.Chain.Burn(ctx, totalUncollected)
		if err != nil {
			e.Log.Error("external burn transaction failed, recording for reconciliation",
				"distribution_id", distributionID,
				"total_uncollected", totalUncollected,
				"error", fmt.Errorf("%w: %v", domain.ErrBurnExecution, err),
			)
			metrics.BurnsTotal.WithLabelValues("chain_error").Inc()
		} else {
			if err := e.BurnRepo.SetTxRef(ctx, distributionID, txRef); err != nil {
				return nil, fmt.Errorf("failed to store burn tx ref: %w", err)
			}
			metrics.BurnsTotal.WithLabelValues("executed").Inc()
		}
	} else {
		metrics.BurnsTotal.WithLabelValues("skipped_zero").Inc()
	}

	stored, err := e.BurnRepo.Get(ctx, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load burn record: %w", err)
	}

	if rerr := stored.ReconciliationError(); rerr != nil {
		e.Log.Warn("burn recorded without a transaction reference",
			"distribution_id", distributionID,
			"total_burnt", stored.TotalBurnt,
			"error", rerr,
		)
	} else {
		e.Log.Info("burn recorded",
			"distribution_id", distributionID,
			"total_burnt", stored.TotalBurnt,
			"uncollected_count", stored.UncollectedCount,
			"burn_tx_ref", stored.BurnTxRef,
		)
	}

	return stored, nil
}
