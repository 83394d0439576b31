package repository

import (
	"context"
	"testing"
	"time"

	"kart-checkout/internal/database/dbtest"
	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	return dbtest.Setup(t).Pool
}

var testLogger = zerolog.Nop()

func intPtr(i int) *int            { return &i }
func strPtr(s string) *string      { return &s }
func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedBasics inserts one customer, two products and the momo method.
func seedBasics(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	dbtest.SeedCustomer(t, pool, "C001", "Nguyen Van A", "12 Le Loi, District 1, HCMC")
	dbtest.SeedProduct(t, pool, "P001", "Linen Shirt", "100000", intPtr(10))
	dbtest.SeedProduct(t, pool, "P002", "Canvas Tote", "50000", nil)

	max := dec("50000000")
	_, err := pool.Exec(context.Background(), `
		INSERT INTO payment_methods (payment_method_id, code, name, transaction_fee_percentage,
			transaction_fee_fixed, minimum_amount, maximum_amount)
		VALUES ('PM001', 'momo', 'MoMo', 0.5, 0, 10000, $1)
	`, max)
	require.NoError(t, err)
}

func newOrder(customerID string, total string) *model.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Status:          model.OrderPending,
		TotalPrice:      dec(total),
		PaymentMethod:   "MoMo",
		ShippingAddress: "12 Le Loi, District 1, HCMC",
		Discount:        decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// insertOrder commits an order so payment tests can reference it.
func insertOrder(t *testing.T, pool *pgxpool.Pool, order *model.Order) {
	t.Helper()
	ctx := context.Background()
	repo := NewOrderRepository(pool, testLogger)
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, tx.Commit(ctx))
}
