package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistributionStatus represents the lifecycle state of a monthly distribution
type DistributionStatus string

const (
	DistributionStatusPending       DistributionStatus = "PENDING"
	DistributionStatusOpen          DistributionStatus = "OPEN"
	DistributionStatusClosedBurning DistributionStatus = "CLOSED_BURNING"
	DistributionStatusComplete      DistributionStatus = "COMPLETE"
)

// statusRank orders distribution statuses along the only legal direction of
// travel. A transition is valid only if it moves strictly forward.
var statusRank = map[DistributionStatus]int{
	DistributionStatusPending:       0,
	DistributionStatusOpen:          1,
	DistributionStatusClosedBurning: 2,
	DistributionStatusComplete:      3,
}

// MonthFormat is the layout for the month key of a distribution (YYYY-MM)
const MonthFormat = "2006-01"

// MonthlyRewardDistribution represents one month's reward-allocation batch.
// Exactly one distribution exists per month; its status only moves forward
// (PENDING -> OPEN -> CLOSED_BURNING -> COMPLETE).
type MonthlyRewardDistribution struct {
	ID                     uuid.UUID
	Month                  string // YYYY-MM
	RevenueAmount          decimal.Decimal
	HolderAllocationAmount decimal.Decimal
	Status                 DistributionStatus
	WindowOpenedAt         *time.Time // set when the window opens, never changed after
	WindowDeadline         *time.Time // WindowOpenedAt + fixed duration, never extended
	TotalBurnt             decimal.Decimal
	UncollectedCount       int
	CreatedAt              time.Time
}

// Validate ensures the distribution adheres to domain rules
// Returns an error if validation fails
func (d *MonthlyRewardDistribution) Validate() error {
	if _, err := time.Parse(MonthFormat, d.Month); err != nil {
		return errors.New("distribution month must be in YYYY-MM format")
	}

	if d.RevenueAmount.LessThanOrEqual(decimal.Zero) {
		return errors.New("revenue amount must be positive")
	}

	if !d.HolderAllocationAmount.IsInteger() {
		return errors.New("holder allocation amount must be a whole number of base units")
	}

	if _, ok := statusRank[d.Status]; !ok {
		return errors.New("distribution status must be PENDING, OPEN, CLOSED_BURNING or COMPLETE")
	}

	// An open (or later) distribution must carry its window bounds
	if d.Status != DistributionStatusPending {
		if d.WindowOpenedAt == nil || d.WindowDeadline == nil {
			return errors.New("open distribution must have window opened-at and deadline set")
		}
		if !d.WindowDeadline.After(*d.WindowOpenedAt) {
			return errors.New("window deadline must be after window opened-at")
		}
	}

	return nil
}

// CanTransitionTo reports whether moving to the target status is a legal
// forward step. Status regression is never allowed.
func (d *MonthlyRewardDistribution) CanTransitionTo(target DistributionStatus) bool {
	from, ok := statusRank[d.Status]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to == from+1
}

// IsTerminal reports whether the distribution reached its final state
func (d *MonthlyRewardDistribution) IsTerminal() bool {
	return d.Status == DistributionStatusComplete
}
