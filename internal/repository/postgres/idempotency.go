package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/pkg/database"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
)

// IdempotencyRepository implements the callback admission protocol using
// PostgreSQL. The primary key on idempotency_records.key is what makes the
// admission race safe: concurrent inserts for the same key resolve to
// exactly one winner.
type IdempotencyRepository struct {
	db database.DBTX
}

// NewIdempotencyRepository creates a new PostgreSQL-backed idempotency repository.
func NewIdempotencyRepository(db database.DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Admit claims the key via insert-if-absent. A successful insert admits the
// caller; a conflict falls through to reading the existing record so the
// caller learns whether the prior attempt completed or is still running.
func (r *IdempotencyRepository) Admit(ctx context.Context, key string) (*domain.Admission, error) {
	insert := `
		INSERT INTO idempotency_records (key, state, started_at)
		VALUES ($1, 'in_progress', $2)
		ON CONFLICT (key) DO NOTHING`

	ct, err := r.db.Exec(ctx, insert, key, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert idempotency record: %w", err)
	}

	if ct.RowsAffected() == 1 {
		return &domain.Admission{Decision: domain.AdmissionProceed}, nil
	}

	query := `
		SELECT state, result_outcome
		FROM idempotency_records
		WHERE key = $1`

	var (
		state   domain.IdempotencyState
		outcome *domain.Outcome
	)
	if err := r.db.QueryRow(ctx, query, key).Scan(&state, &outcome); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The competing record was released between our insert and read.
			// Treat as a transient conflict; the gateway will redeliver.
			return &domain.Admission{Decision: domain.AdmissionInProgress}, nil
		}
		return nil, fmt.Errorf("read idempotency record: %w", err)
	}

	if state == domain.IdempotencyCompleted {
		return &domain.Admission{
			Decision:      domain.AdmissionAlreadyCompleted,
			CachedOutcome: outcome,
		}, nil
	}

	return &domain.Admission{Decision: domain.AdmissionInProgress}, nil
}

// Finalize completes the record and caches the terminal outcome for future
// duplicate deliveries.
func (r *IdempotencyRepository) Finalize(ctx context.Context, key string, outcome domain.Outcome) error {
	query := `
		UPDATE idempotency_records
		SET state = 'completed', result_outcome = $1, completed_at = $2
		WHERE key = $3 AND state = 'in_progress'`

	ct, err := r.db.Exec(ctx, query, outcome, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("finalize idempotency record: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.Conflict(fmt.Sprintf("idempotency record %s is not in progress", key))
	}

	return nil
}

// Release deletes an in_progress record so the delivery can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	query := `
		DELETE FROM idempotency_records
		WHERE key = $1 AND state = 'in_progress'`

	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("release idempotency record: %w", err)
	}

	return nil
}

// StaleInProgress lists in_progress records started before the cutoff.
func (r *IdempotencyRepository) StaleInProgress(ctx context.Context, cutoff time.Time) ([]domain.IdempotencyRecord, error) {
	query := `
		SELECT key, state, result_outcome, started_at, completed_at
		FROM idempotency_records
		WHERE state = 'in_progress' AND started_at < $1
		ORDER BY started_at`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale idempotency records: %w", err)
	}
	defer rows.Close()

	var records []domain.IdempotencyRecord
	for rows.Next() {
		var rec domain.IdempotencyRecord
		if err := rows.Scan(&rec.Key, &rec.State, &rec.ResultOutcome, &rec.StartedAt, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan idempotency record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idempotency records: %w", err)
	}

	return records, nil
}

// ReleaseStale deletes in_progress records started before the cutoff and
// returns how many were removed.
func (r *IdempotencyRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM idempotency_records
		WHERE state = 'in_progress' AND started_at < $1`

	ct, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale idempotency records: %w", err)
	}

	return ct.RowsAffected(), nil
}
