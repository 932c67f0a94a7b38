package calculator

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
	"github.com/rewardflow/rewardflow-backend/internal/metrics"
)

// Share is one wallet's computed slice of the revenue.
type Share struct {
	WalletAddress string
	UserHandle    string
	Weight        int64
	Amount        decimal.Decimal
}

// CalculateAllocation splits revenueAmount across holders in proportion to
// their weights using integer arithmetic only.
// Logic:
//  1. Floor-divide: amount = floor(revenueAmount * weight / totalWeight)
//  2. Distribute the leftover units with the largest-remainder method,
//     one unit at a time to the largest fractional remainders,
//     breaking ties by wallet address ascending
//
// Safety: Ensures total allocation equals revenueAmount exactly (no unit
// lost), and is fully deterministic for identical input.
func CalculateAllocation(revenueAmount decimal.Decimal, holdings []domain.Holding) ([]Share, error) {
	if revenueAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: revenue amount must be positive", domain.ErrInsufficientData)
	}

	if !revenueAmount.IsInteger() {
		return nil, fmt.Errorf("%w: revenue amount must be a whole number of base units", domain.ErrInsufficientData)
	}

	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: holdings snapshot is empty", domain.ErrInsufficientData)
	}

	// Create a copy sorted by wallet address so identical input always
	// yields the identical assignment
	sorted := make([]domain.Holding, len(holdings))
	copy(sorted, holdings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].WalletAddress < sorted[j].WalletAddress
	})

	totalWeight := decimal.Zero
	seen := make(map[string]bool, len(sorted))
	for _, h := range sorted {
		if h.WalletAddress == "" {
			return nil, fmt.Errorf("holdings snapshot contains an empty wallet address")
		}
		if h.Weight <= 0 {
			return nil, fmt.Errorf("holdings snapshot weight for %s must be positive", h.WalletAddress)
		}
		if seen[h.WalletAddress] {
			return nil, fmt.Errorf("holdings snapshot contains duplicate wallet %s", h.WalletAddress)
		}
		seen[h.WalletAddress] = true
		totalWeight = totalWeight.Add(decimal.NewFromInt(h.Weight))
	}

	// Step 1: Floor division. QuoRem with precision 0 gives the exact
	// integer quotient and the exact remainder of revenue*weight/totalWeight
	shares := make([]Share, len(sorted))
	remainders := make([]decimal.Decimal, len(sorted))
	allocated := decimal.Zero

	for i, h := range sorted {
		product := revenueAmount.Mul(decimal.NewFromInt(h.Weight))
		quotient, remainder := product.QuoRem(totalWeight, 0)
		shares[i] = Share{
			WalletAddress: h.WalletAddress,
			UserHandle:    h.UserHandle,
			Weight:        h.Weight,
			Amount:        quotient,
		}
		remainders[i] = remainder
		allocated = allocated.Add(quotient)
	}

	// Step 2: Assign the leftover units to the largest fractional
	// remainders, ties broken by wallet address ascending
	leftover := revenueAmount.Sub(allocated)
	if leftover.IsNegative() || !leftover.IsInteger() {
		return nil, fmt.Errorf("allocation leftover %s is not a non-negative integer", leftover)
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		cmp := remainders[order[a]].Cmp(remainders[order[b]])
		if cmp != 0 {
			return cmp > 0
		}
		return shares[order[a]].WalletAddress < shares[order[b]].WalletAddress
	})

	one := decimal.NewFromInt(1)
	for i := int64(0); i < leftover.IntPart(); i++ {
		idx := order[i%int64(len(order))]
		shares[idx].Amount = shares[idx].Amount.Add(one)
	}

	// Safety check: Ensure total allocation equals revenue exactly
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	if !total.Equal(revenueAmount) {
		return nil, fmt.Errorf("total allocation %s does not equal revenue amount %s", total, revenueAmount)
	}

	return shares, nil
}

// Service turns a monthly revenue figure and the holdings snapshot into a
// persisted PENDING distribution with its immutable holder allocations.
type Service struct {
	DistributionRepo domain.DistributionRepository
	Snapshots        domain.HoldingsSnapshotProvider
	Clock            clockwork.Clock
}

// NewService creates a new calculator Service instance
func NewService(
	distributionRepo domain.DistributionRepository,
	snapshots domain.HoldingsSnapshotProvider,
	clock clockwork.Clock,
) *Service {
	return &Service{
		DistributionRepo: distributionRepo,
		Snapshots:        snapshots,
		Clock:            clock,
	}
}

// CalculateMonthly computes the distribution for a month and persists it in
// PENDING together with all holder allocations, atomically.
// Logic:
//  1. Fetch the holdings snapshot for the month (never treating an
//     unavailable snapshot as zero holders)
//  2. Split the revenue with CalculateAllocation
//  3. Create the distribution and allocation rows in a single transaction
func (s *Service) CalculateMonthly(ctx context.Context, month string, revenueAmount decimal.Decimal) (*domain.MonthlyRewardDistribution, []domain.HolderAllocation, error) {
	holdings, err := s.Snapshots.GetHoldings(ctx, month)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch holdings snapshot for %s: %w", month, err)
	}

	shares, err := CalculateAllocation(revenueAmount, holdings)
	if err != nil {
		return nil, nil, err
	}

	dist := &domain.MonthlyRewardDistribution{
		ID:                     uuid.New(),
		Month:                  month,
		RevenueAmount:          revenueAmount,
		HolderAllocationAmount: revenueAmount,
		Status:                 domain.DistributionStatusPending,
		TotalBurnt:             decimal.Zero,
		CreatedAt:              s.Clock.Now(),
	}
	if err := dist.Validate(); err != nil {
		return nil, nil, err
	}

	allocations := make([]domain.HolderAllocation, 0, len(shares))
	for _, share := range shares {
		alloc := domain.HolderAllocation{
			ID:             uuid.New(),
			DistributionID: dist.ID,
			WalletAddress:  share.WalletAddress,
			UserHandle:     share.UserHandle,
			Weight:         share.Weight,
			Amount:         share.Amount,
		}
		if err := alloc.Validate(); err != nil {
			return nil, nil, err
		}
		allocations = append(allocations, alloc)
	}

	if err := s.DistributionRepo.CreateWithAllocations(ctx, dist, allocations); err != nil {
		return nil, nil, err
	}

	metrics.DistributionsCalculatedTotal.Inc()

	return dist, allocations, nil
}
