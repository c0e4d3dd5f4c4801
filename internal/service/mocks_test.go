package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/internal/gateway"
)

// --- Mock Repositories ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.FulfillmentState) error {
	args := m.Called(ctx, tx, id, state)
	return args.Error(0)
}

func (m *mockOrderRepository) SetState(ctx context.Context, id uuid.UUID, state domain.FulfillmentState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

type mockInventoryRepository struct {
	mock.Mock
}

func (m *mockInventoryRepository) Insert(ctx context.Context, item *domain.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockInventoryRepository) CountAvailable(ctx context.Context, productID uuid.UUID) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *mockInventoryRepository) AllocateTx(ctx context.Context, tx pgx.Tx, productID, orderID uuid.UUID, quantity int) ([]domain.InventoryItem, error) {
	args := m.Called(ctx, tx, productID, orderID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InventoryItem), args.Error(1)
}

type mockTransactionLogRepository struct {
	mock.Mock
}

func (m *mockTransactionLogRepository) Append(ctx context.Context, entry *domain.TransactionLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockTransactionLogRepository) LatestInitiation(ctx context.Context, provider, reference string) (*domain.TransactionLogEntry, error) {
	args := m.Called(ctx, provider, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionLogEntry), args.Error(1)
}

func (m *mockTransactionLogRepository) ListByOrder(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]domain.TransactionLogEntry, int, error) {
	args := m.Called(ctx, orderID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.TransactionLogEntry), args.Int(1), args.Error(2)
}

type mockIdempotencyRepository struct {
	mock.Mock
}

func (m *mockIdempotencyRepository) Admit(ctx context.Context, key string) (*domain.Admission, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Admission), args.Error(1)
}

func (m *mockIdempotencyRepository) Finalize(ctx context.Context, key string, outcome domain.Outcome) error {
	args := m.Called(ctx, key, outcome)
	return args.Error(0)
}

func (m *mockIdempotencyRepository) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockIdempotencyRepository) StaleInProgress(ctx context.Context, cutoff time.Time) ([]domain.IdempotencyRecord, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.IdempotencyRecord), args.Error(1)
}

func (m *mockIdempotencyRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Gateway Provider ---

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string {
	if m.name == "" {
		return "zarinpal"
	}
	return m.name
}

func (m *mockProvider) Initiate(ctx context.Context, input *gateway.InitiateInput) (*gateway.InitiateResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.InitiateResult), args.Error(1)
}

func (m *mockProvider) Verify(ctx context.Context, input *gateway.VerifyInput) (*gateway.VerifyResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.VerifyResult), args.Error(1)
}

type mockOrderCache struct {
	mock.Mock
}

func (m *mockOrderCache) InvalidateOrder(ctx context.Context, id uuid.UUID) {
	m.Called(ctx, id)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestOrder() *domain.Order {
	return &domain.Order{
		ID:             uuid.New(),
		ProductID:      uuid.New(),
		Quantity:       2,
		ExpectedAmount: 990_000,
		Currency:       "IRT",
		Paid:           false,
		State:          domain.FulfillmentPending,
		CustomerPhone:  "09120000000",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}
