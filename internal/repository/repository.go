package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikpour310/accountinox/internal/domain"
)

// OrderRepository persists checkout orders. Methods with a Tx suffix run
// inside a caller-owned transaction so settlement and allocation commit or
// roll back together.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// GetForUpdateTx locks the order row for the duration of the transaction.
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)

	// MarkPaidTx flips paid to true and advances the fulfillment state.
	MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.FulfillmentState) error

	// SetState moves the order into the given state unless it is already in
	// a terminal state. Used for the refund_flagged and failed branches that
	// happen outside the settlement transaction.
	SetState(ctx context.Context, id uuid.UUID, state domain.FulfillmentState) error
}

// InventoryRepository persists credential inventory items.
type InventoryRepository interface {
	Insert(ctx context.Context, item *domain.InventoryItem) error
	CountAvailable(ctx context.Context, productID uuid.UUID) (int, error)

	// AllocateTx claims up to quantity available items for the order inside
	// the caller's transaction. It returns the claimed items, which may be
	// fewer than requested when the pool is short; the caller decides whether
	// to commit or roll back.
	AllocateTx(ctx context.Context, tx pgx.Tx, productID, orderID uuid.UUID, quantity int) ([]domain.InventoryItem, error)
}

// TransactionLogRepository is the append-only payment ledger. There is
// deliberately no update or delete.
type TransactionLogRepository interface {
	Append(ctx context.Context, entry *domain.TransactionLogEntry) error

	// LatestInitiation returns the most recent initiated entry for the
	// provider reference, used to resolve callbacks that arrive without an
	// order id.
	LatestInitiation(ctx context.Context, provider, reference string) (*domain.TransactionLogEntry, error)

	// ListByOrder returns the ledger rows for one order, newest first, with
	// the total count for pagination.
	ListByOrder(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]domain.TransactionLogEntry, int, error)
}

// IdempotencyRepository implements the admission protocol for callback
// deliveries.
type IdempotencyRepository interface {
	// Admit claims the key for the caller. Exactly one concurrent caller per
	// key receives AdmissionProceed; the rest observe the existing record.
	Admit(ctx context.Context, key string) (*domain.Admission, error)

	// Finalize completes the record and caches the terminal outcome.
	Finalize(ctx context.Context, key string, outcome domain.Outcome) error

	// Release deletes an in_progress record so the delivery can be retried.
	// Completed records are never released.
	Release(ctx context.Context, key string) error

	// StaleInProgress lists in_progress records started before the cutoff.
	StaleInProgress(ctx context.Context, cutoff time.Time) ([]domain.IdempotencyRecord, error)

	// ReleaseStale deletes in_progress records started before the cutoff and
	// returns how many were removed.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
}
