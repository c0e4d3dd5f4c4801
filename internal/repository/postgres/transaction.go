package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/pkg/database"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
)

// TransactionLogRepository implements the append-only ledger using PostgreSQL.
type TransactionLogRepository struct {
	db database.DBTX
}

// NewTransactionLogRepository creates a new PostgreSQL-backed ledger repository.
func NewTransactionLogRepository(db database.DBTX) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

// Append inserts a ledger entry. The generated id and timestamp are written
// back into the entry.
func (r *TransactionLogRepository) Append(ctx context.Context, e *domain.TransactionLogEntry) error {
	query := `
		INSERT INTO transaction_log (order_id, provider, provider_reference, raw_payload, outcome)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		e.OrderID,
		e.Provider,
		e.ProviderReference,
		e.RawPayload,
		e.Outcome,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction log entry: %w", err)
	}

	return nil
}

// LatestInitiation returns the most recent initiated entry for a provider
// reference. Callbacks that arrive without an order id are resolved through
// this mapping.
func (r *TransactionLogRepository) LatestInitiation(ctx context.Context, provider, reference string) (*domain.TransactionLogEntry, error) {
	query := `
		SELECT id, order_id, provider, provider_reference, raw_payload, outcome, created_at
		FROM transaction_log
		WHERE provider = $1 AND provider_reference = $2 AND outcome = 'initiated'
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var e domain.TransactionLogEntry
	err := r.db.QueryRow(ctx, query, provider, reference).Scan(
		&e.ID,
		&e.OrderID,
		&e.Provider,
		&e.ProviderReference,
		&e.RawPayload,
		&e.Outcome,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan initiation entry: %w", err)
	}

	return &e, nil
}

// ListByOrder returns the ledger rows for an order, newest first, with the
// total count for pagination.
func (r *TransactionLogRepository) ListByOrder(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]domain.TransactionLogEntry, int, error) {
	query := `
		SELECT id, order_id, provider, provider_reference, raw_payload, outcome, created_at,
		       count(*) OVER() AS total_count
		FROM transaction_log
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, orderID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transaction log entries: %w", err)
	}
	defer rows.Close()

	var (
		entries    []domain.TransactionLogEntry
		totalCount int
	)

	for rows.Next() {
		var e domain.TransactionLogEntry
		if err := rows.Scan(
			&e.ID,
			&e.OrderID,
			&e.Provider,
			&e.ProviderReference,
			&e.RawPayload,
			&e.Outcome,
			&e.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan transaction log row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction log rows: %w", err)
	}

	if entries == nil {
		entries = []domain.TransactionLogEntry{}
	}

	return entries, totalCount, nil
}
