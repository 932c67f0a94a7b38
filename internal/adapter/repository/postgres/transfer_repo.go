package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
)

const transferColumns = `
	id, distribution_id, wallet_address, amount, status,
	tx_hash, attempts, created_at, completed_at
`

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	db *DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

// GetByWallet retrieves the transfer of one wallet within a distribution
func (r *transferRepository) GetByWallet(ctx context.Context, distributionID uuid.UUID, walletAddress string) (*domain.RewardTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM reward_transfers
		WHERE distribution_id = $1 AND wallet_address = $2
	`
	return r.scanTransfer(r.db.QueryRowContext(ctx, query, distributionID, walletAddress))
}

// ListByDistribution retrieves all transfers of a distribution
func (r *transferRepository) ListByDistribution(ctx context.Context, distributionID uuid.UUID) ([]domain.RewardTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM reward_transfers
		WHERE distribution_id = $1
		ORDER BY wallet_address
	`

	rows, err := r.db.QueryContext(ctx, query, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward transfers: %w", err)
	}
	defer rows.Close()

	transfers := make([]domain.RewardTransfer, 0)
	for rows.Next() {
		transfer, err := r.scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *transfer)
	}

	return transfers, rows.Err()
}

// MarkCompleted records a successful broadcast. The join on the distribution
// row guarantees no transfer completes once the window left OPEN: the close
// transition's conditional update happens-before any completion it excludes.
func (r *transferRepository) MarkCompleted(ctx context.Context, transferID uuid.UUID, txHash string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE reward_transfers t
		SET status = 'COMPLETED', tx_hash = $2, attempts = t.attempts + 1, completed_at = $3
		FROM monthly_reward_distributions d
		WHERE t.id = $1
		  AND d.id = t.distribution_id
		  AND d.status = 'OPEN'
		  AND t.status <> 'COMPLETED'
	`

	result, err := r.db.ExecContext(ctx, query, transferID, txHash, completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark transfer completed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// RecordFailedAttempt bumps the attempt counter and flips the transfer to
// FAILED once the cap is reached, in one conditional update
func (r *transferRepository) RecordFailedAttempt(ctx context.Context, transferID uuid.UUID, maxAttempts int) (*domain.RewardTransfer, error) {
	query := `
		UPDATE reward_transfers
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $2 THEN 'FAILED' ELSE status END
		WHERE id = $1 AND status <> 'COMPLETED'
		RETURNING ` + transferColumns

	return r.scanTransfer(r.db.QueryRowContext(ctx, query, transferID, maxAttempts))
}

// UncollectedSummary sums the transfers still PENDING or FAILED
func (r *transferRepository) UncollectedSummary(ctx context.Context, distributionID uuid.UUID) (decimal.Decimal, int, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM reward_transfers
		WHERE distribution_id = $1 AND status IN ('PENDING', 'FAILED')
	`

	var sumStr string
	var count int
	if err := r.db.QueryRowContext(ctx, query, distributionID).Scan(&sumStr, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to query uncollected summary: %w", err)
	}

	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to parse uncollected sum: %w", err)
	}

	return sum, count, nil
}

// scanTransfer reads one transfer row
func (r *transferRepository) scanTransfer(row rowScanner) (*domain.RewardTransfer, error) {
	var transfer domain.RewardTransfer
	var amountStr string
	var txHash sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&transfer.ID,
		&transfer.DistributionID,
		&transfer.WalletAddress,
		&amountStr,
		&transfer.Status,
		&txHash,
		&transfer.Attempts,
		&transfer.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reward transfer %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan reward transfer: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transfer amount: %w", err)
	}
	transfer.Amount = amount

	if txHash.Valid {
		transfer.TxHash = txHash.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		transfer.CompletedAt = &t
	}

	return &transfer, nil
}
