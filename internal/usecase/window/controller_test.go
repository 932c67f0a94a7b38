package window

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
)

// MockDistributionRepository is a mock implementation of DistributionRepository for testing
type MockDistributionRepository struct {
	mock.Mock
}

func (m *MockDistributionRepository) CreateWithAllocations(ctx context.Context, dist *domain.MonthlyRewardDistribution, allocations []domain.HolderAllocation) error {
	args := m.Called(ctx, dist, allocations)
	return args.Error(0)
}

func (m *MockDistributionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MonthlyRewardDistribution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MonthlyRewardDistribution), args.Error(1)
}

func (m *MockDistributionRepository) GetByMonth(ctx context.Context, month string) (*domain.MonthlyRewardDistribution, error) {
	args := m.Called(ctx, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MonthlyRewardDistribution), args.Error(1)
}

func (m *MockDistributionRepository) List(ctx context.Context) ([]*domain.MonthlyRewardDistribution, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MonthlyRewardDistribution), args.Error(1)
}

func (m *MockDistributionRepository) ListAllocations(ctx context.Context, distributionID uuid.UUID) ([]domain.HolderAllocation, error) {
	args := m.Called(ctx, distributionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HolderAllocation), args.Error(1)
}

func (m *MockDistributionRepository) OpenWindow(ctx context.Context, distributionID uuid.UUID, openedAt, deadline time.Time) (bool, error) {
	args := m.Called(ctx, distributionID, openedAt, deadline)
	return args.Bool(0), args.Error(1)
}

func (m *MockDistributionRepository) CloseWindow(ctx context.Context, distributionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, distributionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDistributionRepository) Complete(ctx context.Context, distributionID uuid.UUID, totalBurnt decimal.Decimal, uncollectedCount int) error {
	args := m.Called(ctx, distributionID, totalBurnt, uncollectedCount)
	return args.Error(0)
}

func (m *MockDistributionRepository) ListExpiredOpen(ctx context.Context, now time.Time) ([]*domain.MonthlyRewardDistribution, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MonthlyRewardDistribution), args.Error(1)
}

func (m *MockDistributionRepository) ListClosing(ctx context.Context) ([]*domain.MonthlyRewardDistribution, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MonthlyRewardDistribution), args.Error(1)
}

// MockTransferRepository is a mock implementation of TransferRepository for testing
type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) GetByWallet(ctx context.Context, distributionID uuid.UUID, walletAddress string) (*domain.RewardTransfer, error) {
	args := m.Called(ctx, distributionID, walletAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RewardTransfer), args.Error(1)
}

func (m *MockTransferRepository) ListByDistribution(ctx context.Context, distributionID uuid.UUID) ([]domain.RewardTransfer, error) {
	args := m.Called(ctx, distributionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RewardTransfer), args.Error(1)
}

func (m *MockTransferRepository) MarkCompleted(ctx context.Context, transferID uuid.UUID, txHash string, completedAt time.Time) (bool, error) {
	args := m.Called(ctx, transferID, txHash, completedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransferRepository) RecordFailedAttempt(ctx context.Context, transferID uuid.UUID, maxAttempts int) (*domain.RewardTransfer, error) {
	args := m.Called(ctx, transferID, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RewardTransfer), args.Error(1)
}

func (m *MockTransferRepository) UncollectedSummary(ctx context.Context, distributionID uuid.UUID) (decimal.Decimal, int, error) {
	args := m.Called(ctx, distributionID)
	return args.Get(0).(decimal.Decimal), args.Int(1), args.Error(2)
}

// MockBurnRecordRepository is a mock implementation of BurnRecordRepository for testing
type MockBurnRecordRepository struct {
	mock.Mock
}

func (m *MockBurnRecordRepository) Create(ctx context.Context, record *domain.BurnRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockBurnRecordRepository) SetTxRef(ctx context.Context, distributionID uuid.UUID, txRef string) error {
	args := m.Called(ctx, distributionID, txRef)
	return args.Error(0)
}

func (m *MockBurnRecordRepository) Get(ctx context.Context, distributionID uuid.UUID) (*domain.BurnRecord, error) {
	args := m.Called(ctx, distributionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BurnRecord), args.Error(1)
}

// MockBurnExecutor is a mock implementation of BurnExecutor for testing
type MockBurnExecutor struct {
	mock.Mock
}

func (m *MockBurnExecutor) Burn(ctx context.Context, distributionID uuid.UUID, totalUncollected decimal.Decimal, uncollectedCount int) (*domain.BurnRecord, error) {
	args := m.Called(ctx, distributionID, totalUncollected, uncollectedCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BurnRecord), args.Error(1)
}

type controllerFixture struct {
	distRepo *MockDistributionRepository
	transfer *MockTransferRepository
	burnRepo *MockBurnRecordRepository
	burner   *MockBurnExecutor
	clock    *clockwork.FakeClock
	ctrl     *Controller
}

func newFixture() *controllerFixture {
	f := &controllerFixture{
		distRepo: new(MockDistributionRepository),
		transfer: new(MockTransferRepository),
		burnRepo: new(MockBurnRecordRepository),
		burner:   new(MockBurnExecutor),
		clock:    clockwork.NewFakeClock(),
	}
	f.ctrl = NewController(
		f.distRepo, f.transfer, f.burnRepo, f.burner,
		24*time.Hour, f.clock, slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func pendingDistribution() *domain.MonthlyRewardDistribution {
	return &domain.MonthlyRewardDistribution{
		ID:                     uuid.New(),
		Month:                  "2025-01",
		RevenueAmount:          decimal.NewFromInt(1000),
		HolderAllocationAmount: decimal.NewFromInt(1000),
		Status:                 domain.DistributionStatusPending,
		TotalBurnt:             decimal.Zero,
	}
}

func openDistribution(openedAt time.Time) *domain.MonthlyRewardDistribution {
	dist := pendingDistribution()
	dist.Status = domain.DistributionStatusOpen
	deadline := openedAt.Add(24 * time.Hour)
	dist.WindowOpenedAt = &openedAt
	dist.WindowDeadline = &deadline
	return dist
}

func TestOpenWindow_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := pendingDistribution()

	now := f.clock.Now()
	deadline := now.Add(24 * time.Hour)

	opened := openDistribution(now)
	opened.ID = dist.ID

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil).Once()
	f.distRepo.On("OpenWindow", ctx, dist.ID, now, deadline).Return(true, nil).Once()
	f.distRepo.On("GetByID", ctx, dist.ID).Return(opened, nil).Once()

	result, err := f.ctrl.OpenWindow(ctx, dist.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DistributionStatusOpen, result.Status)
	assert.Equal(t, deadline, *result.WindowDeadline)
	f.distRepo.AssertExpectations(t)
}

func TestOpenWindow_NotPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := openDistribution(f.clock.Now())

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil)

	_, err := f.ctrl.OpenWindow(ctx, dist.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.distRepo.AssertNotCalled(t, "OpenWindow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOpenWindow_LostRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := pendingDistribution()

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil)
	f.distRepo.On("OpenWindow", ctx, dist.ID, mock.Anything, mock.Anything).Return(false, nil)

	_, err := f.ctrl.OpenWindow(ctx, dist.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCloseWindow_AfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := openDistribution(f.clock.Now())

	f.clock.Advance(25 * time.Hour)

	record := &domain.BurnRecord{
		DistributionID:   dist.ID,
		TotalBurnt:       decimal.NewFromInt(250),
		UncollectedCount: 1,
		BurnTxRef:        "burn-1",
		ExecutedAt:       f.clock.Now(),
	}

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil)
	f.distRepo.On("CloseWindow", ctx, dist.ID).Return(true, nil)
	f.transfer.On("UncollectedSummary", ctx, dist.ID).Return(decimal.NewFromInt(250), 1, nil)
	f.burner.On("Burn", ctx, dist.ID, decimal.NewFromInt(250), 1).Return(record, nil)
	f.distRepo.On("Complete", ctx, dist.ID, decimal.NewFromInt(250), 1).Return(nil)

	result, err := f.ctrl.CloseWindow(ctx, dist.ID, false)
	require.NoError(t, err)
	assert.True(t, result.TotalBurnt.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, 1, result.UncollectedCount)

	f.distRepo.AssertExpectations(t)
	f.burner.AssertExpectations(t)
}

func TestCloseWindow_BeforeDeadlineNeedsForce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := openDistribution(f.clock.Now())

	f.clock.Advance(time.Hour)

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil)

	_, err := f.ctrl.CloseWindow(ctx, dist.ID, false)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.distRepo.AssertNotCalled(t, "CloseWindow", mock.Anything, mock.Anything)

	// The explicit admin override may close early
	record := &domain.BurnRecord{
		DistributionID: dist.ID,
		TotalBurnt:     decimal.Zero,
		ExecutedAt:     f.clock.Now(),
	}
	f.distRepo.On("CloseWindow", ctx, dist.ID).Return(true, nil)
	f.transfer.On("UncollectedSummary", ctx, dist.ID).Return(decimal.Zero, 0, nil)
	f.burner.On("Burn", ctx, dist.ID, decimal.Zero, 0).Return(record, nil)
	f.distRepo.On("Complete", ctx, dist.ID, decimal.Zero, 0).Return(nil)

	result, err := f.ctrl.CloseWindow(ctx, dist.ID, true)
	require.NoError(t, err)
	assert.True(t, result.TotalBurnt.IsZero())
}

func TestCloseWindow_IdempotentAfterComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := pendingDistribution()
	dist.Status = domain.DistributionStatusComplete
	openedAt := f.clock.Now()
	deadline := openedAt.Add(24 * time.Hour)
	dist.WindowOpenedAt = &openedAt
	dist.WindowDeadline = &deadline

	record := &domain.BurnRecord{
		DistributionID:   dist.ID,
		TotalBurnt:       decimal.NewFromInt(250),
		UncollectedCount: 1,
		BurnTxRef:        "burn-1",
		ExecutedAt:       openedAt,
	}

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil)
	f.burnRepo.On("Get", ctx, dist.ID).Return(record, nil)

	first, err := f.ctrl.CloseWindow(ctx, dist.ID, false)
	require.NoError(t, err)
	second, err := f.ctrl.CloseWindow(ctx, dist.ID, false)
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeated close must return the identical record")
	f.burner.AssertNotCalled(t, "Burn", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCloseWindow_LoserObservesWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := openDistribution(f.clock.Now())
	f.clock.Advance(25 * time.Hour)

	completed := *dist
	completed.Status = domain.DistributionStatusComplete

	record := &domain.BurnRecord{
		DistributionID:   dist.ID,
		TotalBurnt:       decimal.NewFromInt(100),
		UncollectedCount: 2,
		ExecutedAt:       f.clock.Now(),
	}

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil).Once()
	f.distRepo.On("CloseWindow", ctx, dist.ID).Return(false, nil)
	f.distRepo.On("GetByID", ctx, dist.ID).Return(&completed, nil).Once()
	f.burnRepo.On("Get", ctx, dist.ID).Return(record, nil)

	result, err := f.ctrl.CloseWindow(ctx, dist.ID, false)
	require.NoError(t, err)
	assert.Equal(t, record, result)
	f.burner.AssertNotCalled(t, "Burn", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCloseWindow_ResumesInterruptedFinalization(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := openDistribution(f.clock.Now())
	dist.Status = domain.DistributionStatusClosedBurning

	record := &domain.BurnRecord{
		DistributionID:   dist.ID,
		TotalBurnt:       decimal.NewFromInt(500),
		UncollectedCount: 3,
		ExecutedAt:       f.clock.Now(),
	}

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil)
	f.transfer.On("UncollectedSummary", ctx, dist.ID).Return(decimal.NewFromInt(500), 3, nil)
	f.burner.On("Burn", ctx, dist.ID, decimal.NewFromInt(500), 3).Return(record, nil)
	f.distRepo.On("Complete", ctx, dist.ID, decimal.NewFromInt(500), 3).Return(nil)

	result, err := f.ctrl.CloseWindow(ctx, dist.ID, false)
	require.NoError(t, err)
	assert.Equal(t, record, result)
	f.distRepo.AssertNotCalled(t, "CloseWindow", mock.Anything, mock.Anything)
}

func TestCloseWindow_NeverOpened(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dist := pendingDistribution()

	f.distRepo.On("GetByID", ctx, dist.ID).Return(dist, nil)

	_, err := f.ctrl.CloseWindow(ctx, dist.ID, false)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCloseWindow_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	id := uuid.New()

	f.distRepo.On("GetByID", ctx, id).Return(nil, errors.New("distribution not found"))

	_, err := f.ctrl.CloseWindow(ctx, id, false)
	assert.Error(t, err)
}
