package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BurnRecord is the burn-accounting row for a closed distribution.
// Exactly one exists per distribution that reached CLOSED_BURNING, including
// the zero-remainder case, so every closed distribution has uniform terminal
// history. Exactly-once creation is enforced by the primary key on
// distribution_id, not by application-level checks.
type BurnRecord struct {
	DistributionID   uuid.UUID
	TotalBurnt       decimal.Decimal
	UncollectedCount int
	BurnTxRef        string // empty if the external burn failed and awaits reconciliation
	ExecutedAt       time.Time
}

// ReconciliationError reports whether the external burn for this record is
// still outstanding. A positive remainder without a transaction reference
// means the broadcast failed and the burn awaits manual reconciliation.
func (b *BurnRecord) ReconciliationError() error {
	if b.TotalBurnt.IsPositive() && b.BurnTxRef == "" {
		return ErrBurnExecution
	}
	return nil
}

// Validate ensures the burn record adheres to domain rules
func (b *BurnRecord) Validate() error {
	if b.TotalBurnt.IsNegative() {
		return errors.New("total burnt cannot be negative")
	}

	if b.UncollectedCount < 0 {
		return errors.New("uncollected count cannot be negative")
	}

	if b.UncollectedCount == 0 && !b.TotalBurnt.IsZero() {
		return errors.New("total burnt must be zero when uncollected count is zero")
	}

	if b.ExecutedAt.IsZero() {
		return errors.New("burn record must have an executed-at timestamp")
	}

	return nil
}
