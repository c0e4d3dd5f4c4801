package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/pkg/database"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
)

var ledgerCols = []string{
	"id", "order_id", "provider", "provider_reference", "raw_payload", "outcome", "created_at",
}

func TestTransactionLogRepository_Append(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionLogRepository(mock)
	orderID := uuid.New()
	entry := &domain.TransactionLogEntry{
		OrderID:           &orderID,
		Provider:          "zarinpal",
		ProviderReference: "A00000123",
		RawPayload:        json.RawMessage(`{"Status":"OK","Authority":"A00000123"}`),
		Outcome:           domain.OutcomeVerifiedPaid,
	}

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO transaction_log").
		WithArgs(entry.OrderID, entry.Provider, entry.ProviderReference, entry.RawPayload, entry.Outcome).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	err = repo.Append(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.ID)
	assert.Equal(t, now, entry.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLogRepository_LatestInitiation(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionLogRepository(mock)
	orderID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM transaction_log").
		WithArgs("zibal", "991234").
		WillReturnRows(pgxmock.NewRows(ledgerCols).AddRow(
			int64(7), &orderID, "zibal", "991234",
			json.RawMessage(`{"trackId":991234}`), domain.OutcomeInitiated, now,
		))

	entry, err := repo.LatestInitiation(context.Background(), "zibal", "991234")
	require.NoError(t, err)
	assert.Equal(t, orderID, *entry.OrderID)
	assert.Equal(t, domain.OutcomeInitiated, entry.Outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLogRepository_LatestInitiation_NotFound(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionLogRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM transaction_log").
		WithArgs("zarinpal", "unknown-ref").
		WillReturnRows(pgxmock.NewRows(ledgerCols))

	_, err = repo.LatestInitiation(context.Background(), "zarinpal", "unknown-ref")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLogRepository_ListByOrder(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionLogRepository(mock)
	orderID := uuid.New()
	now := time.Now().UTC()

	cols := append(append([]string{}, ledgerCols...), "total_count")
	rows := pgxmock.NewRows(cols).
		AddRow(int64(9), &orderID, "zarinpal", "A1", json.RawMessage(`{}`), domain.OutcomeVerifiedPaid, now, 2).
		AddRow(int64(8), &orderID, "zarinpal", "A1", json.RawMessage(`{}`), domain.OutcomeInitiated, now.Add(-time.Minute), 2)

	mock.ExpectQuery("SELECT (.+) FROM transaction_log").
		WithArgs(orderID, 20, 0).
		WillReturnRows(rows)

	entries, total, err := repo.ListByOrder(context.Background(), orderID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.OutcomeVerifiedPaid, entries[0].Outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLogRepository_ListByOrder_Empty(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionLogRepository(mock)
	orderID := uuid.New()

	cols := append(append([]string{}, ledgerCols...), "total_count")
	mock.ExpectQuery("SELECT (.+) FROM transaction_log").
		WithArgs(orderID, 20, 0).
		WillReturnRows(pgxmock.NewRows(cols))

	entries, total, err := repo.ListByOrder(context.Background(), orderID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	assert.NoError(t, mock.ExpectationsWereMet())
}
