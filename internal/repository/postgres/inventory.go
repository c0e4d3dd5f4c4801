package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/pkg/database"
)

// InventoryRepository implements repository.InventoryRepository using PostgreSQL.
type InventoryRepository struct {
	db database.DBTX
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(db database.DBTX) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Insert adds a new credential item to the pool.
func (r *InventoryRepository) Insert(ctx context.Context, item *domain.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (id, product_id, credential_payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		item.ID,
		item.ProductID,
		item.CredentialPayload,
		item.Status,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}

	return nil
}

// CountAvailable returns the number of unallocated items for a product.
func (r *InventoryRepository) CountAvailable(ctx context.Context, productID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM inventory_items
		WHERE product_id = $1 AND status = 'available'`

	var count int
	if err := r.db.QueryRow(ctx, query, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count available items: %w", err)
	}

	return count, nil
}

// AllocateTx claims up to quantity available items for the order. Oldest
// items are taken first so selection is deterministic, and SKIP LOCKED keeps
// concurrent settlements on the same product from blocking each other while
// guaranteeing they claim disjoint rows. The caller checks the returned
// count and rolls the transaction back on a shortfall.
func (r *InventoryRepository) AllocateTx(ctx context.Context, tx pgx.Tx, productID, orderID uuid.UUID, quantity int) ([]domain.InventoryItem, error) {
	query := `
		UPDATE inventory_items
		SET status = 'allocated', allocated_order_id = $1, allocated_at = $2
		WHERE id IN (
			SELECT id
			FROM inventory_items
			WHERE product_id = $3 AND status = 'available'
			ORDER BY created_at, id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, product_id, credential_payload, status, allocated_order_id, created_at, allocated_at`

	ctx, end := database.TraceQuery(ctx, "AllocateInventory", query)
	var traceErr error
	defer func() { end(traceErr) }()

	now := time.Now().UTC()
	rows, err := tx.Query(ctx, query, orderID, now, productID, quantity)
	if err != nil {
		traceErr = err
		return nil, fmt.Errorf("allocate inventory items: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.CredentialPayload,
			&item.Status,
			&item.AllocatedOrderID,
			&item.CreatedAt,
			&item.AllocatedAt,
		); err != nil {
			traceErr = err
			return nil, fmt.Errorf("scan allocated item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		traceErr = err
		return nil, fmt.Errorf("iterate allocated items: %w", err)
	}

	return items, nil
}
