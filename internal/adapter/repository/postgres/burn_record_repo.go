package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
)

// burnRecordRepository implements domain.BurnRecordRepository
type burnRecordRepository struct {
	db *DB
}

// NewBurnRecordRepository creates a new burn record repository
func NewBurnRecordRepository(db *DB) domain.BurnRecordRepository {
	return &burnRecordRepository{db: db}
}

// Create persists the burn record. The primary key on distribution_id plus
// ON CONFLICT DO NOTHING makes the write exactly-once: a racing finalizer's
// insert silently loses and the original record stands. The reported flag
// tells the caller whether it was the inserter.
func (r *burnRecordRepository) Create(ctx context.Context, record *domain.BurnRecord) (bool, error) {
	query := `
		INSERT INTO burn_records (distribution_id, total_burnt, uncollected_count, burn_tx_ref, executed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (distribution_id) DO NOTHING
	`

	var burnTxRef interface{}
	if record.BurnTxRef != "" {
		burnTxRef = record.BurnTxRef
	}

	result, err := r.db.ExecContext(ctx, query,
		record.DistributionID,
		record.TotalBurnt.String(),
		record.UncollectedCount,
		burnTxRef,
		record.ExecutedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert burn record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return rows > 0, nil
}

// SetTxRef stores the external burn transaction reference
func (r *burnRecordRepository) SetTxRef(ctx context.Context, distributionID uuid.UUID, txRef string) error {
	query := `UPDATE burn_records SET burn_tx_ref = $2 WHERE distribution_id = $1`

	_, err := r.db.ExecContext(ctx, query, distributionID, txRef)
	if err != nil {
		return fmt.Errorf("failed to store burn tx ref: %w", err)
	}

	return nil
}

// Get retrieves the burn record of a distribution
func (r *burnRecordRepository) Get(ctx context.Context, distributionID uuid.UUID) (*domain.BurnRecord, error) {
	query := `
		SELECT distribution_id, total_burnt, uncollected_count, burn_tx_ref, executed_at
		FROM burn_records
		WHERE distribution_id = $1
	`

	var record domain.BurnRecord
	var burntStr string
	var burnTxRef sql.NullString

	err := r.db.QueryRowContext(ctx, query, distributionID).Scan(
		&record.DistributionID,
		&burntStr,
		&record.UncollectedCount,
		&burnTxRef,
		&record.ExecutedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("burn record %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan burn record: %w", err)
	}

	totalBurnt, err := decimal.NewFromString(burntStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_burnt: %w", err)
	}
	record.TotalBurnt = totalBurnt

	if burnTxRef.Valid {
		record.BurnTxRef = burnTxRef.String
	}

	return &record, nil
}
