package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HolderAllocation represents one wallet's share of a distribution.
// Allocations are derived from the holdings snapshot at calculation time and
// are immutable once created: a holder buying or selling NFTs mid-window does
// not change an already-calculated allocation.
type HolderAllocation struct {
	ID             uuid.UUID
	DistributionID uuid.UUID
	WalletAddress  string
	UserHandle     string // optional display handle, empty if unknown
	Weight         int64  // NFT count at snapshot time
	Amount         decimal.Decimal
}

// Validate ensures the allocation adheres to domain rules
func (a *HolderAllocation) Validate() error {
	if a.WalletAddress == "" {
		return errors.New("allocation wallet address cannot be empty")
	}

	if a.Weight <= 0 {
		return errors.New("allocation weight must be positive")
	}

	if a.Amount.IsNegative() {
		return errors.New("allocation amount cannot be negative")
	}

	if !a.Amount.IsInteger() {
		return errors.New("allocation amount must be a whole number of base units")
	}

	return nil
}
