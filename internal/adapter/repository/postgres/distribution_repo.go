package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
)

const pqUniqueViolation = "23505"

const distributionColumns = `
	id, month, revenue_amount, holder_allocation_amount, status,
	window_opened_at, window_deadline, total_burnt, uncollected_count, created_at
`

// distributionRepository implements domain.DistributionRepository
type distributionRepository struct {
	db *DB
}

// NewDistributionRepository creates a new distribution repository
func NewDistributionRepository(db *DB) domain.DistributionRepository {
	return &distributionRepository{db: db}
}

// CreateWithAllocations creates the distribution and all holder allocations
// in a single database transaction so partial writes are never observable
func (r *distributionRepository) CreateWithAllocations(ctx context.Context, dist *domain.MonthlyRewardDistribution, allocations []domain.HolderAllocation) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertDistQuery := `
		INSERT INTO monthly_reward_distributions
			(id, month, revenue_amount, holder_allocation_amount, status, total_burnt, uncollected_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = dbTx.ExecContext(ctx, insertDistQuery,
		dist.ID,
		dist.Month,
		dist.RevenueAmount.String(),
		dist.HolderAllocationAmount.String(),
		string(dist.Status),
		dist.TotalBurnt.String(),
		dist.UncollectedCount,
		dist.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMonth, dist.Month)
		}
		return fmt.Errorf("failed to insert distribution: %w", err)
	}

	insertAllocQuery := `
		INSERT INTO holder_allocations (id, distribution_id, wallet_address, user_handle, weight, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, alloc := range allocations {
		var userHandle interface{}
		if alloc.UserHandle != "" {
			userHandle = alloc.UserHandle
		}

		_, err = dbTx.ExecContext(ctx, insertAllocQuery,
			alloc.ID,
			alloc.DistributionID,
			alloc.WalletAddress,
			userHandle,
			alloc.Weight,
			alloc.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert holder allocation: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a distribution by its ID
func (r *distributionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MonthlyRewardDistribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM monthly_reward_distributions WHERE id = $1`
	return r.scanDistribution(r.db.QueryRowContext(ctx, query, id))
}

// GetByMonth retrieves the distribution for a YYYY-MM month key
func (r *distributionRepository) GetByMonth(ctx context.Context, month string) (*domain.MonthlyRewardDistribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM monthly_reward_distributions WHERE month = $1`
	return r.scanDistribution(r.db.QueryRowContext(ctx, query, month))
}

// List retrieves all distributions ordered by month
func (r *distributionRepository) List(ctx context.Context) ([]*domain.MonthlyRewardDistribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM monthly_reward_distributions ORDER BY month`
	return r.queryDistributions(ctx, query)
}

// ListAllocations retrieves the allocations of a distribution ordered by wallet
func (r *distributionRepository) ListAllocations(ctx context.Context, distributionID uuid.UUID) ([]domain.HolderAllocation, error) {
	query := `
		SELECT id, distribution_id, wallet_address, user_handle, weight, amount
		FROM holder_allocations
		WHERE distribution_id = $1
		ORDER BY wallet_address
	`

	rows, err := r.db.QueryContext(ctx, query, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holder allocations: %w", err)
	}
	defer rows.Close()

	allocations := make([]domain.HolderAllocation, 0)
	for rows.Next() {
		var alloc domain.HolderAllocation
		var userHandle sql.NullString
		var amountStr string

		if err := rows.Scan(
			&alloc.ID,
			&alloc.DistributionID,
			&alloc.WalletAddress,
			&userHandle,
			&alloc.Weight,
			&amountStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan holder allocation: %w", err)
		}

		if userHandle.Valid {
			alloc.UserHandle = userHandle.String
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse allocation amount: %w", err)
		}
		alloc.Amount = amount

		allocations = append(allocations, alloc)
	}

	return allocations, rows.Err()
}

// OpenWindow atomically moves PENDING -> OPEN and materializes the reward
// transfers. The conditional UPDATE makes concurrent triggers produce exactly
// one winner; the transfer inserts ride in the same database transaction.
func (r *distributionRepository) OpenWindow(ctx context.Context, distributionID uuid.UUID, openedAt, deadline time.Time) (bool, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	openQuery := `
		UPDATE monthly_reward_distributions
		SET status = 'OPEN', window_opened_at = $2, window_deadline = $3
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := dbTx.ExecContext(ctx, openQuery, distributionID, openedAt, deadline)
	if err != nil {
		return false, fmt.Errorf("failed to open window: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	// One PENDING transfer per allocation, born in the same transaction as
	// the status flip
	transfersQuery := `
		INSERT INTO reward_transfers (id, distribution_id, wallet_address, amount, status, attempts, created_at)
		SELECT gen_random_uuid(), distribution_id, wallet_address, amount, 'PENDING', 0, $2
		FROM holder_allocations
		WHERE distribution_id = $1
	`

	if _, err := dbTx.ExecContext(ctx, transfersQuery, distributionID, openedAt); err != nil {
		return false, fmt.Errorf("failed to create reward transfers: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// CloseWindow atomically moves OPEN -> CLOSED_BURNING
func (r *distributionRepository) CloseWindow(ctx context.Context, distributionID uuid.UUID) (bool, error) {
	query := `
		UPDATE monthly_reward_distributions
		SET status = 'CLOSED_BURNING'
		WHERE id = $1 AND status = 'OPEN'
	`

	result, err := r.db.ExecContext(ctx, query, distributionID)
	if err != nil {
		return false, fmt.Errorf("failed to close window: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// Complete moves CLOSED_BURNING -> COMPLETE with the final burn totals.
// Racing finalizers are harmless: the second update matches zero rows.
func (r *distributionRepository) Complete(ctx context.Context, distributionID uuid.UUID, totalBurnt decimal.Decimal, uncollectedCount int) error {
	query := `
		UPDATE monthly_reward_distributions
		SET status = 'COMPLETE', total_burnt = $2, uncollected_count = $3
		WHERE id = $1 AND status = 'CLOSED_BURNING'
	`

	if _, err := r.db.ExecContext(ctx, query, distributionID, totalBurnt.String(), uncollectedCount); err != nil {
		return fmt.Errorf("failed to complete distribution: %w", err)
	}

	return nil
}

// ListExpiredOpen retrieves OPEN distributions past their deadline
func (r *distributionRepository) ListExpiredOpen(ctx context.Context, now time.Time) ([]*domain.MonthlyRewardDistribution, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM monthly_reward_distributions
		WHERE status = 'OPEN' AND window_deadline <= $1
		ORDER BY month
	`
	return r.queryDistributions(ctx, query, now)
}

// ListClosing retrieves distributions stuck in CLOSED_BURNING
func (r *distributionRepository) ListClosing(ctx context.Context) ([]*domain.MonthlyRewardDistribution, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM monthly_reward_distributions
		WHERE status = 'CLOSED_BURNING'
		ORDER BY month
	`
	return r.queryDistributions(ctx, query)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanDistribution reads one distribution row
func (r *distributionRepository) scanDistribution(row rowScanner) (*domain.MonthlyRewardDistribution, error) {
	var dist domain.MonthlyRewardDistribution
	var revenueStr, allocationStr, burntStr string
	var openedAt, deadline sql.NullTime

	err := row.Scan(
		&dist.ID,
		&dist.Month,
		&revenueStr,
		&allocationStr,
		&dist.Status,
		&openedAt,
		&deadline,
		&burntStr,
		&dist.UncollectedCount,
		&dist.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("distribution %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan distribution: %w", err)
	}

	if dist.RevenueAmount, err = decimal.NewFromString(revenueStr); err != nil {
		return nil, fmt.Errorf("failed to parse revenue_amount: %w", err)
	}
	if dist.HolderAllocationAmount, err = decimal.NewFromString(allocationStr); err != nil {
		return nil, fmt.Errorf("failed to parse holder_allocation_amount: %w", err)
	}
	if dist.TotalBurnt, err = decimal.NewFromString(burntStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_burnt: %w", err)
	}

	if openedAt.Valid {
		t := openedAt.Time
		dist.WindowOpenedAt = &t
	}
	if deadline.Valid {
		t := deadline.Time
		dist.WindowDeadline = &t
	}

	return &dist, nil
}

func (r *distributionRepository) queryDistributions(ctx context.Context, query string, args ...interface{}) ([]*domain.MonthlyRewardDistribution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	distributions := make([]*domain.MonthlyRewardDistribution, 0)
	for rows.Next() {
		dist, err := r.scanDistribution(rows)
		if err != nil {
			return nil, err
		}
		distributions = append(distributions, dist)
	}

	return distributions, rows.Err()
}
