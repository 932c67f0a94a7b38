package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistributionRepository defines the interface for distribution persistence.
//
// The transition methods (OpenWindow, CloseWindow, Complete) are single
// conditional updates: they succeed only when the row is still in the
// expected source status, so concurrent triggers produce exactly one winner
// and every loser observes the already-updated row.
type DistributionRepository interface {
	// CreateWithAllocations persists a new PENDING distribution together
	// with all its holder allocations in a single database transaction.
	// Partial writes are never observable.
	// Returns ErrDuplicateMonth if a distribution for the month exists.
	CreateWithAllocations(ctx context.Context, dist *MonthlyRewardDistribution, allocations []HolderAllocation) error

	// GetByID retrieves a distribution by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*MonthlyRewardDistribution, error)

	// GetByMonth retrieves the distribution for a YYYY-MM month key
	GetByMonth(ctx context.Context, month string) (*MonthlyRewardDistribution, error)

	// List retrieves all distributions ordered by month
	List(ctx context.Context) ([]*MonthlyRewardDistribution, error)

	// ListAllocations retrieves the immutable allocations of a distribution,
	// ordered by wallet address
	ListAllocations(ctx context.Context, distributionID uuid.UUID) ([]HolderAllocation, error)

	// OpenWindow atomically moves PENDING -> OPEN, stamps the window bounds
	// and creates one PENDING reward transfer per holder allocation, all in
	// one database transaction. Returns false if the distribution was not in
	// PENDING (some other trigger already won).
	OpenWindow(ctx context.Context, distributionID uuid.UUID, openedAt, deadline time.Time) (bool, error)

	// CloseWindow atomically moves OPEN -> CLOSED_BURNING. Returns false if
	// the distribution was not in OPEN.
	CloseWindow(ctx context.Context, distributionID uuid.UUID) (bool, error)

	// Complete moves CLOSED_BURNING -> COMPLETE and records the final burn
	// totals on the distribution row. A no-op if the row already left
	// CLOSED_BURNING, so racing finalizers are harmless.
	Complete(ctx context.Context, distributionID uuid.UUID, totalBurnt decimal.Decimal, uncollectedCount int) error

	// ListExpiredOpen retrieves distributions still OPEN whose deadline is
	// at or before now. Used by the scheduler tick.
	ListExpiredOpen(ctx context.Context, now time.Time) ([]*MonthlyRewardDistribution, error)

	// ListClosing retrieves distributions stuck in CLOSED_BURNING, i.e. a
	// previous close won the transition but died before finalizing. The
	// scheduler resumes these.
	ListClosing(ctx context.Context) ([]*MonthlyRewardDistribution, error)
}

// TransferRepository defines the interface for reward transfer persistence
type TransferRepository interface {
	// GetByWallet retrieves the transfer of one wallet within a distribution
	GetByWallet(ctx context.Context, distributionID uuid.UUID, walletAddress string) (*RewardTransfer, error)

	// ListByDistribution retrieves all transfers of a distribution
	ListByDistribution(ctx context.Context, distributionID uuid.UUID) ([]RewardTransfer, error)

	// MarkCompleted records a successful broadcast. The update is guarded on
	// both the transfer not being COMPLETED yet and the distribution still
	// being OPEN, so no transfer can complete after the close transition.
	// Returns false if the guard failed.
	MarkCompleted(ctx context.Context, transferID uuid.UUID, txHash string, completedAt time.Time) (bool, error)

	// RecordFailedAttempt increments the attempt counter and flips the
	// transfer to FAILED once the counter reaches maxAttempts. Returns the
	// updated transfer.
	RecordFailedAttempt(ctx context.Context, transferID uuid.UUID, maxAttempts int) (*RewardTransfer, error)

	// UncollectedSummary returns the sum and count of transfers still
	// PENDING or FAILED in a distribution. After the close transition this
	// is stable: no transfer of a closed distribution can change status.
	UncollectedSummary(ctx context.Context, distributionID uuid.UUID) (decimal.Decimal, int, error)
}

// BurnRecordRepository defines the interface for burn record persistence
type BurnRecordRepository interface {
	// Create persists the burn record and reports whether this call inserted
	// it. The insert is ignored if a record for the distribution already
	// exists (primary key on distribution_id), which is what makes burn
	// accounting exactly-once under racing finalizers: the single inserter
	// owns the external burn broadcast.
	Create(ctx context.Context, record *BurnRecord) (bool, error)

	// SetTxRef stores the external burn transaction reference after a
	// successful broadcast
	SetTxRef(ctx context.Context, distributionID uuid.UUID, txRef string) error

	// Get retrieves the burn record of a distribution
	Get(ctx context.Context, distributionID uuid.UUID) (*BurnRecord, error)
}
