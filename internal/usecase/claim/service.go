package claim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
	"github.com/rewardflow/rewardflow-backend/internal/metrics"
)

// Service is the core-owned wrapper around the external transfer broadcaster.
// It decides whether a claim may run and how many attempts it gets; the
// cryptographic construction of the payment lives behind ChainTransferClient.
//
// Retries are caller-driven: a holder (or the UI on their behalf) simply
// claims again. The service only enforces the attempt cap and the state
// transitions.
type Service struct {
	DistributionRepo domain.DistributionRepository
	TransferRepo     domain.TransferRepository
	Chain            domain.ChainTransferClient
	MaxAttempts      int
	Clock            clockwork.Clock
	Log              *slog.Logger
}

// NewService creates a new claim Service instance
func NewService(
	distributionRepo domain.DistributionRepository,
	transferRepo domain.TransferRepository,
	chain domain.ChainTransferClient,
	maxAttempts int,
	clock clockwork.Clock,
	log *slog.Logger,
) *Service {
	return &Service{
		DistributionRepo: distributionRepo,
		TransferRepo:     transferRepo,
		Chain:            chain,
		MaxAttempts:      maxAttempts,
		Clock:            clock,
		Log:              log,
	}
}

// Claim pays one holder their allocation, idempotently per
// (distribution, wallet).
// Logic:
//  1. The window must be OPEN and the deadline not reached, else
//     ErrWindowClosed (ErrInvalidState if the window never opened)
//  2. An already-COMPLETED transfer short-circuits and returns the stored
//     result without touching the broadcaster again
//  3. A broadcast failure increments the attempt counter; at MaxAttempts the
//     transfer becomes FAILED and burn-eligible
//  4. A successful broadcast is recorded with a conditional update that also
//     checks the distribution is still OPEN, so no transfer completes after
//     the close transition's accounting read
//
// The external send itself holds no lock: concurrency is per transfer row.
func (s *Service) Claim(ctx context.Context, distributionID uuid.UUID, walletAddress string) (*domain.RewardTransfer, error) {
	dist, err := s.DistributionRepo.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}

	switch dist.Status {
	case domain.DistributionStatusPending:
		metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: collection window for distribution %s is not open yet",
			domain.ErrInvalidState, distributionID)
	case domain.DistributionStatusClosedBurning, domain.DistributionStatusComplete:
		metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: distribution %s is %s",
			domain.ErrWindowClosed, distributionID, dist.Status)
	}

	now := s.Clock.Now()
	if !now.Before(*dist.WindowDeadline) {
		// The scheduler may not have ticked yet; the deadline is enforced
		// here regardless
		metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: deadline %s has passed",
			domain.ErrWindowClosed, dist.WindowDeadline)
	}

	transfer, err := s.TransferRepo.GetByWallet(ctx, distributionID, walletAddress)
	if err != nil {
		return nil, err
	}

	// Idempotency: the (distribution, wallet) key already paid out
	if transfer.Status == domain.TransferStatusCompleted {
		metrics.ClaimsTotal.WithLabelValues("duplicate").Inc()
		return transfer, nil
	}

	if transfer.Attempts >= s.MaxAttempts {
		metrics.ClaimsTotal.WithLabelValues("exhausted").Inc()
		return nil, fmt.Errorf("%w: transfer %s exhausted %d attempts",
			domain.ErrTransferFailed, transfer.ID, transfer.Attempts)
	}

	txHash, sendErr := s.Chain.Send(ctx, walletAddress, transfer.Amount)
	if sendErr != nil {
		updated, err := s.TransferRepo.RecordFailedAttempt(ctx, transfer.ID, s.MaxAttempts)
		if err != nil {
			return nil, fmt.Errorf("failed to record claim attempt: %w", err)
		}

		metrics.ClaimsTotal.WithLabelValues("failed").Inc()
		s.Log.Warn("reward transfer broadcast failed",
			"distribution_id", distributionID,
			"wallet", walletAddress,
			"attempts", updated.Attempts,
			"status", updated.Status,
			"error", sendErr,
		)
		return updated, fmt.Errorf("%w: %v", domain.ErrTransferFailed, sendErr)
	}

	completed, err := s.TransferRepo.MarkCompleted(ctx, transfer.ID, txHash, s.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to record completed transfer: %w", err)
	}
	if !completed {
		// The window closed (or a duplicate claim finished) between the
		// broadcast and our write. If another claim completed the row we
		// honor its stored result; otherwise the close won and this payout
		// is part of the burn reconciliation.
		fresh, err := s.TransferRepo.GetByWallet(ctx, distributionID, walletAddress)
		if err != nil {
			return nil, err
		}
		if fresh.Status == domain.TransferStatusCompleted {
			metrics.ClaimsTotal.WithLabelValues("duplicate").Inc()
			return fresh, nil
		}

		metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
		s.Log.Error("broadcast landed after window close, flagging for reconciliation",
			"distribution_id", distributionID,
			"wallet", walletAddress,
			"tx_hash", txHash,
		)
		return nil, fmt.Errorf("%w: window closed before completion could be recorded",
			domain.ErrWindowClosed)
	}

	metrics.ClaimsTotal.WithLabelValues("completed").Inc()
	s.Log.Info("reward transfer completed",
		"distribution_id", distributionID,
		"wallet", walletAddress,
		"amount", transfer.Amount,
		"tx_hash", txHash,
	)

	return s.TransferRepo.GetByWallet(ctx, distributionID, walletAddress)
}
