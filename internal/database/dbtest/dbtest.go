// Package dbtest starts a migrated PostgreSQL container for tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"kart-checkout/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DB is a running test database.
type DB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// Setup starts postgres:16-alpine, applies migrations and registers cleanup.
func Setup(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := database.Migrate(MigrationsPath(), connStr, zerolog.Nop()); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.Open(ctx, connStr, database.DefaultPoolOptions())
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &DB{Container: container, Pool: pool, ConnStr: connStr}
}

// MigrationsPath returns the file:// URL of the repository's migrations directory.
func MigrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(filename), "..", "..", "..")
	return "file://" + filepath.Join(root, "migrations")
}

// Truncate empties every table, children first.
func Truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	tables := []string{
		"payment_transactions", "order_events", "order_lines", "orders",
		"cart_lines", "carts", "payment_methods", "products", "customers",
	}
	for _, table := range tables {
		if _, err := pool.Exec(context.Background(), fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// SeedCustomer inserts a customer row.
func SeedCustomer(t *testing.T, pool *pgxpool.Pool, id, name, address string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		"INSERT INTO customers (customer_id, full_name, address) VALUES ($1, $2, $3)", id, name, address)
	if err != nil {
		t.Fatalf("failed to seed customer %s: %v", id, err)
	}
}

// SeedProduct inserts a product row; stock nil means untracked.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, id, name, price string, stock *int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		"INSERT INTO products (product_id, name, price, quantity_in_stock) VALUES ($1, $2, $3::numeric, $4)",
		id, name, price, stock)
	if err != nil {
		t.Fatalf("failed to seed product %s: %v", id, err)
	}
}
