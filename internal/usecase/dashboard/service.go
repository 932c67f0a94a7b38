package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
)

// DistributionDetail is the full read model of one distribution: the ledger
// row, its transfers and, when closed, its burn record.
type DistributionDetail struct {
	Distribution *domain.MonthlyRewardDistribution
	Transfers    []domain.RewardTransfer
	BurnRecord   *domain.BurnRecord // nil until the distribution closed
}

// DistributionSummary is a per-distribution aggregate computed from the
// transfer ledger.
type DistributionSummary struct {
	DistributionID    uuid.UUID
	Month             string
	Status            domain.DistributionStatus
	HolderCount       int
	CollectedAmount   decimal.Decimal
	CollectedCount    int
	UncollectedAmount decimal.Decimal
	TotalBurnt        decimal.Decimal
}

// OverallSummary aggregates across all distributions.
type OverallSummary struct {
	DistributionCount int
	TotalAllocated    decimal.Decimal
	TotalCollected    decimal.Decimal
	TotalBurnt        decimal.Decimal
}

// Service computes read-only projections over the immutable ledger. Nothing
// here is live mutable state: every number is derived from distribution,
// transfer and burn rows at query time.
type Service struct {
	DistributionRepo domain.DistributionRepository
	TransferRepo     domain.TransferRepository
	BurnRepo         domain.BurnRecordRepository
}

// NewService creates a new dashboard Service instance
func NewService(
	distributionRepo domain.DistributionRepository,
	transferRepo domain.TransferRepository,
	burnRepo domain.BurnRecordRepository,
) *Service {
	return &Service{
		DistributionRepo: distributionRepo,
		TransferRepo:     transferRepo,
		BurnRepo:         burnRepo,
	}
}

// GetDistribution returns the full read model of one distribution
func (s *Service) GetDistribution(ctx context.Context, distributionID uuid.UUID) (*DistributionDetail, error) {
	dist, err := s.DistributionRepo.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}

	transfers, err := s.TransferRepo.ListByDistribution(ctx, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	detail := &DistributionDetail{
		Distribution: dist,
		Transfers:    transfers,
	}

	if dist.Status == domain.DistributionStatusClosedBurning ||
		dist.Status == domain.DistributionStatusComplete {
		record, err := s.BurnRepo.Get(ctx, distributionID)
		switch {
		case err == nil:
			detail.BurnRecord = record
		case errors.Is(err, domain.ErrNotFound):
			// A CLOSED_BURNING distribution mid-finalization legitimately
			// has no record yet
		default:
			return nil, err
		}
	}

	return detail, nil
}

// GetDistributionByMonth returns the full read model for a month key
func (s *Service) GetDistributionByMonth(ctx context.Context, month string) (*DistributionDetail, error) {
	dist, err := s.DistributionRepo.GetByMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	return s.GetDistribution(ctx, dist.ID)
}

// Summarize computes the per-distribution aggregate from the transfer ledger
func (s *Service) Summarize(ctx context.Context, distributionID uuid.UUID) (*DistributionSummary, error) {
	detail, err := s.GetDistribution(ctx, distributionID)
	if err != nil {
		return nil, err
	}

	summary := &DistributionSummary{
		DistributionID:    detail.Distribution.ID,
		Month:             detail.Distribution.Month,
		Status:            detail.Distribution.Status,
		HolderCount:       len(detail.Transfers),
		CollectedAmount:   decimal.Zero,
		UncollectedAmount: decimal.Zero,
		TotalBurnt:        detail.Distribution.TotalBurnt,
	}

	for _, transfer := range detail.Transfers {
		if transfer.Status == domain.TransferStatusCompleted {
			summary.CollectedAmount = summary.CollectedAmount.Add(transfer.Amount)
			summary.CollectedCount++
		} else {
			summary.UncollectedAmount = summary.UncollectedAmount.Add(transfer.Amount)
		}
	}

	return summary, nil
}

// SummarizeAll aggregates every distribution into one overall projection
func (s *Service) SummarizeAll(ctx context.Context) (*OverallSummary, error) {
	distributions, err := s.DistributionRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	overall := &OverallSummary{
		TotalAllocated: decimal.Zero,
		TotalCollected: decimal.Zero,
		TotalBurnt:     decimal.Zero,
	}

	for _, dist := range distributions {
		overall.DistributionCount++
		overall.TotalAllocated = overall.TotalAllocated.Add(dist.HolderAllocationAmount)
		overall.TotalBurnt = overall.TotalBurnt.Add(dist.TotalBurnt)

		summary, err := s.Summarize(ctx, dist.ID)
		if err != nil {
			return nil, err
		}
		overall.TotalCollected = overall.TotalCollected.Add(summary.CollectedAmount)
	}

	return overall, nil
}
