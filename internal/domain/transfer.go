package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus represents the execution state of a reward transfer
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
)

// RewardTransfer is the mutable execution record for one holder allocation.
// Once COMPLETED it is immutable. Attempts only ever increase, bounded by the
// claim service's max-attempts policy.
type RewardTransfer struct {
	ID             uuid.UUID
	DistributionID uuid.UUID
	WalletAddress  string
	Amount         decimal.Decimal
	Status         TransferStatus
	TxHash         string // set when COMPLETED
	Attempts       int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Validate ensures the transfer adheres to domain rules
func (t *RewardTransfer) Validate() error {
	if t.WalletAddress == "" {
		return errors.New("transfer wallet address cannot be empty")
	}

	if t.Amount.IsNegative() {
		return errors.New("transfer amount cannot be negative")
	}

	if t.Status != TransferStatusPending &&
		t.Status != TransferStatusCompleted &&
		t.Status != TransferStatusFailed {
		return errors.New("transfer status must be PENDING, COMPLETED or FAILED")
	}

	if t.Attempts < 0 {
		return errors.New("transfer attempts cannot be negative")
	}

	if t.Status == TransferStatusCompleted {
		if t.TxHash == "" {
			return errors.New("completed transfer must have a tx hash")
		}
		if t.CompletedAt == nil {
			return errors.New("completed transfer must have a completed-at timestamp")
		}
	}

	return nil
}

// Collectable reports whether the transfer still counts toward the burn:
// anything not COMPLETED at close time is forfeited.
func (t *RewardTransfer) Collectable() bool {
	return t.Status != TransferStatusCompleted
}
