package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/pkg/database"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, product_id, quantity, expected_amount, currency, paid, fulfillment_state, customer_phone, created_at, updated_at`

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		o.ID,
		o.ProductID,
		o.Quantity,
		o.ExpectedAmount,
		o.Currency,
		o.Paid,
		o.State,
		o.CustomerPhone,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1`

	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id.String())
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	return o, nil
}

// GetForUpdateTx locks the order row within the caller's transaction. All
// concurrent settlement attempts for the same order serialize on this lock.
func (r *OrderRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1
		FOR UPDATE`

	o, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id.String())
		}
		return nil, fmt.Errorf("scan order for update: %w", err)
	}

	return o, nil
}

// MarkPaidTx flips the paid flag and advances the fulfillment state within
// the caller's transaction. The paid = false guard makes the flip at most
// once even if callers race past the row lock.
func (r *OrderRepository) MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.FulfillmentState) error {
	query := `
		UPDATE orders
		SET paid = TRUE, fulfillment_state = $1, updated_at = $2
		WHERE id = $3 AND paid = FALSE`

	ct, err := tx.Exec(ctx, query, state, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.Conflict(fmt.Sprintf("order %s already paid", id))
	}

	return nil
}

// SetState moves the order into the given state. Orders already in a
// terminal state are left untouched and reported as a conflict.
func (r *OrderRepository) SetState(ctx context.Context, id uuid.UUID, state domain.FulfillmentState) error {
	query := `
		UPDATE orders
		SET fulfillment_state = $1, updated_at = $2
		WHERE id = $3 AND fulfillment_state NOT IN ('failed', 'refund_flagged')`

	ct, err := r.db.Exec(ctx, query, state, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set order state: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.Conflict(fmt.Sprintf("order %s is in a terminal state", id))
	}

	return nil
}

// scanOrder scans a single order row.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.ProductID,
		&o.Quantity,
		&o.ExpectedAmount,
		&o.Currency,
		&o.Paid,
		&o.State,
		&o.CustomerPhone,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
