package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDistribution() *MonthlyRewardDistribution {
	return &MonthlyRewardDistribution{
		ID:                     uuid.New(),
		Month:                  "2025-01",
		RevenueAmount:          decimal.NewFromInt(1000),
		HolderAllocationAmount: decimal.NewFromInt(1000),
		Status:                 DistributionStatusPending,
		TotalBurnt:             decimal.Zero,
		CreatedAt:              time.Now(),
	}
}

func TestDistributionValidate_Pending(t *testing.T) {
	dist := validDistribution()
	require.NoError(t, dist.Validate())
}

func TestDistributionValidate_BadMonth(t *testing.T) {
	dist := validDistribution()
	dist.Month = "January 2025"
	assert.Error(t, dist.Validate())

	dist.Month = "2025-13"
	assert.Error(t, dist.Validate())

	dist.Month = "2025-1"
	assert.Error(t, dist.Validate())
}

func TestDistributionValidate_NonPositiveRevenue(t *testing.T) {
	dist := validDistribution()
	dist.RevenueAmount = decimal.Zero
	assert.Error(t, dist.Validate())

	dist.RevenueAmount = decimal.NewFromInt(-5)
	assert.Error(t, dist.Validate())
}

func TestDistributionValidate_OpenRequiresWindowBounds(t *testing.T) {
	dist := validDistribution()
	dist.Status = DistributionStatusOpen
	assert.Error(t, dist.Validate(), "OPEN without window bounds should fail")

	openedAt := time.Now()
	deadline := openedAt.Add(24 * time.Hour)
	dist.WindowOpenedAt = &openedAt
	dist.WindowDeadline = &deadline
	assert.NoError(t, dist.Validate())

	// Deadline before open is never valid
	badDeadline := openedAt.Add(-time.Hour)
	dist.WindowDeadline = &badDeadline
	assert.Error(t, dist.Validate())
}

func TestDistributionCanTransitionTo_ForwardOnly(t *testing.T) {
	dist := validDistribution()

	assert.True(t, dist.CanTransitionTo(DistributionStatusOpen))
	assert.False(t, dist.CanTransitionTo(DistributionStatusClosedBurning), "cannot skip OPEN")
	assert.False(t, dist.CanTransitionTo(DistributionStatusComplete))
	assert.False(t, dist.CanTransitionTo(DistributionStatusPending))

	dist.Status = DistributionStatusOpen
	assert.True(t, dist.CanTransitionTo(DistributionStatusClosedBurning))
	assert.False(t, dist.CanTransitionTo(DistributionStatusPending), "no regression")

	dist.Status = DistributionStatusClosedBurning
	assert.True(t, dist.CanTransitionTo(DistributionStatusComplete))

	dist.Status = DistributionStatusComplete
	assert.False(t, dist.CanTransitionTo(DistributionStatusPending))
	assert.False(t, dist.CanTransitionTo(DistributionStatusOpen))
	assert.True(t, dist.IsTerminal())
}

func TestTransferValidate(t *testing.T) {
	transfer := &RewardTransfer{
		ID:             uuid.New(),
		DistributionID: uuid.New(),
		WalletAddress:  "0xabc",
		Amount:         decimal.NewFromInt(750),
		Status:         TransferStatusPending,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, transfer.Validate())
	assert.True(t, transfer.Collectable())

	// COMPLETED requires tx hash and timestamp
	transfer.Status = TransferStatusCompleted
	assert.Error(t, transfer.Validate())

	now := time.Now()
	transfer.TxHash = "0xdeadbeef"
	transfer.CompletedAt = &now
	assert.NoError(t, transfer.Validate())
	assert.False(t, transfer.Collectable())

	transfer.Status = TransferStatus("UNKNOWN")
	assert.Error(t, transfer.Validate())
}

func TestHolderAllocationValidate(t *testing.T) {
	alloc := &HolderAllocation{
		ID:             uuid.New(),
		DistributionID: uuid.New(),
		WalletAddress:  "0xabc",
		Weight:         3,
		Amount:         decimal.NewFromInt(750),
	}
	require.NoError(t, alloc.Validate())

	alloc.Weight = 0
	assert.Error(t, alloc.Validate())

	alloc.Weight = 3
	alloc.Amount = decimal.NewFromFloat(0.5)
	assert.Error(t, alloc.Validate(), "fractional base units are not allowed")
}

func TestBurnRecordValidateZeroRemainder(t *testing.T) {
	record := &BurnRecord{
		DistributionID:   uuid.New(),
		TotalBurnt:       decimal.NewFromInt(250),
		UncollectedCount: 1,
		BurnTxRef:        "burn-1",
		ExecutedAt:       time.Now(),
	}
	require.NoError(t, record.Validate())

	// Zero-remainder records are valid and expected
	record.TotalBurnt = decimal.Zero
	record.UncollectedCount = 0
	record.BurnTxRef = ""
	assert.NoError(t, record.Validate())

	record.TotalBurnt = decimal.NewFromInt(10)
	assert.Error(t, record.Validate(), "burnt amount with zero uncollected is inconsistent")
}
