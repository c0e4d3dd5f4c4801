package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/pkg/database"
)

var itemCols = []string{
	"id", "product_id", "credential_payload", "status",
	"allocated_order_id", "created_at", "allocated_at",
}

func TestInventoryRepository_Insert(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewInventoryRepository(mock)
	item := &domain.InventoryItem{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		CredentialPayload: []byte(`{"username":"u1","password":"encrypted"}`),
		Status:            domain.ItemAvailable,
		CreatedAt:         time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO inventory_items").
		WithArgs(item.ID, item.ProductID, item.CredentialPayload, item.Status, item.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Insert(context.Background(), item)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_CountAvailable(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewInventoryRepository(mock)
	productID := uuid.New()

	mock.ExpectQuery("SELECT count").
		WithArgs(productID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountAvailable(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_AllocateTx(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewInventoryRepository(mock)
	productID := uuid.New()
	orderID := uuid.New()
	now := time.Now().UTC()

	itemA := uuid.New()
	itemB := uuid.New()
	rows := pgxmock.NewRows(itemCols).
		AddRow(itemA, productID, []byte("cred-a"), domain.ItemAllocated, &orderID, now.Add(-2*time.Hour), &now).
		AddRow(itemB, productID, []byte("cred-b"), domain.ItemAllocated, &orderID, now.Add(-time.Hour), &now)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE inventory_items").
		WithArgs(orderID, pgxmock.AnyArg(), productID, 2).
		WillReturnRows(rows)
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	items, err := repo.AllocateTx(ctx, tx, productID, orderID, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, itemA, items[0].ID)
	assert.Equal(t, itemB, items[1].ID)
	assert.Equal(t, domain.ItemAllocated, items[0].Status)
	assert.Equal(t, orderID, *items[0].AllocatedOrderID)

	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_AllocateTx_Shortfall(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewInventoryRepository(mock)
	productID := uuid.New()
	orderID := uuid.New()
	now := time.Now().UTC()

	// Three requested, only one row in the pool. The repository reports what
	// it claimed; the shortfall decision belongs to the caller.
	itemA := uuid.New()
	rows := pgxmock.NewRows(itemCols).
		AddRow(itemA, productID, []byte("cred-a"), domain.ItemAllocated, &orderID, now, &now)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE inventory_items").
		WithArgs(orderID, pgxmock.AnyArg(), productID, 3).
		WillReturnRows(rows)
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	items, err := repo.AllocateTx(ctx, tx, productID, orderID, 3)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
