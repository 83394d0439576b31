package repository

import (
	"context"
	"errors"
	"fmt"

	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const cartLineColumns = `cart_detail_id, cart_id, product_id, product_name, unit_price, quantity,
	total_price, size, color, image, is_checked_out, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartLine(row rowScanner) (*model.CartLine, error) {
	var l model.CartLine
	err := row.Scan(
		&l.ID, &l.CartID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity,
		&l.TotalPrice, &l.Size, &l.Color, &l.Image, &l.IsCheckedOut, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectCartLines(rows pgx.Rows) ([]model.CartLine, error) {
	defer rows.Close()

	lines := []model.CartLine{}
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}
	return lines, nil
}

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *cartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// GetCart retrieves a cart with all of its lines.
func (r *cartRepository) GetCart(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	query := `
		SELECT cart_id, customer_id, cart_status, total_price, created_at, updated_at
		FROM carts
		WHERE cart_id = $1
	`

	var c model.Cart
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.CustomerID, &c.Status, &c.TotalPrice, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("cart_id", id.String()).Msg("cart not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_id = $1 ORDER BY created_at, cart_detail_id`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to query cart lines")
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}

	c.Lines, err = collectCartLines(rows)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to read cart lines")
		return nil, err
	}

	return &c, nil
}

// GetActiveCartForUpdate locks and returns the customer's active cart.
func (r *cartRepository) GetActiveCartForUpdate(ctx context.Context, tx pgx.Tx, customerID string) (*model.Cart, error) {
	query := `
		SELECT cart_id, customer_id, cart_status, total_price, created_at, updated_at
		FROM carts
		WHERE customer_id = $1 AND cart_status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`

	var c model.Cart
	err := tx.QueryRow(ctx, query, customerID).Scan(&c.ID, &c.CustomerID, &c.Status, &c.TotalPrice, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to query active cart")
		return nil, fmt.Errorf("failed to query active cart: %w", err)
	}
	return &c, nil
}

// CreateCart inserts an empty cart. It reports false without error when the
// customer already has an active cart.
func (r *cartRepository) CreateCart(ctx context.Context, tx pgx.Tx, cart *model.Cart) (bool, error) {
	query := `
		INSERT INTO carts (cart_id, customer_id, cart_status, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (customer_id) WHERE cart_status = 'active' DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, cart.ID, cart.CustomerID, cart.Status, cart.TotalPrice, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to create cart")
		return false, fmt.Errorf("failed to create cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug().Str("customer_id", cart.CustomerID).Msg("active cart already exists")
		return false, nil
	}

	r.logger.Debug().Str("cart_id", cart.ID.String()).Str("customer_id", cart.CustomerID).Msg("cart created")
	return true, nil
}

// GetLineForUpdate locks and returns a cart line.
func (r *cartRepository) GetLineForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.CartLine, error) {
	l, err := scanCartLine(tx.QueryRow(ctx,
		`SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_detail_id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("line_id", id.String()).Msg("failed to query cart line")
		return nil, fmt.Errorf("failed to query cart line: %w", err)
	}
	return l, nil
}

// FindOpenLine returns the not-checked-out line holding the variant.
func (r *cartRepository) FindOpenLine(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productID, size string, color *string) (*model.CartLine, error) {
	query := `SELECT ` + cartLineColumns + `
		FROM cart_lines
		WHERE cart_id = $1
		  AND product_id = $2
		  AND size = $3
		  AND color IS NOT DISTINCT FROM $4
		  AND is_checked_out = FALSE
		LIMIT 1
		FOR UPDATE`

	l, err := scanCartLine(tx.QueryRow(ctx, query, cartID, productID, size, color))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Str("product_id", productID).Msg("failed to query open cart line")
		return nil, fmt.Errorf("failed to query open cart line: %w", err)
	}
	return l, nil
}

// InsertLine inserts a new cart line.
func (r *cartRepository) InsertLine(ctx context.Context, tx pgx.Tx, line *model.CartLine) error {
	query := `
		INSERT INTO cart_lines (` + cartLineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := tx.Exec(ctx, query,
		line.ID, line.CartID, line.ProductID, line.ProductName, line.UnitPrice, line.Quantity,
		line.TotalPrice, line.Size, line.Color, line.Image, line.IsCheckedOut, line.CreatedAt, line.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", line.CartID.String()).Str("product_id", line.ProductID).Msg("failed to insert cart line")
		return fmt.Errorf("failed to insert cart line: %w", err)
	}
	return nil
}

// UpdateLineQuantity sets quantity and total of an open line.
func (r *cartRepository) UpdateLineQuantity(ctx context.Context, tx pgx.Tx, id uuid.UUID, quantity int, total decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE cart_lines
		SET quantity = $2, total_price = $3, updated_at = NOW()
		WHERE cart_detail_id = $1 AND is_checked_out = FALSE
	`, id, quantity, total)
	if err != nil {
		r.logger.Error().Err(err).Str("line_id", id.String()).Msg("failed to update cart line")
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrLineCheckedOut
	}
	return nil
}

// DeleteLine removes an open line.
func (r *cartRepository) DeleteLine(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_detail_id = $1 AND is_checked_out = FALSE`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("line_id", id.String()).Msg("failed to delete cart line")
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrLineCheckedOut
	}
	return nil
}

// RecalculateTotal sets the cart total to the sum of its open lines.
func (r *cartRepository) RecalculateTotal(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (decimal.Decimal, error) {
	query := `
		UPDATE carts
		SET total_price = COALESCE((
				SELECT SUM(total_price) FROM cart_lines
				WHERE cart_id = $1 AND is_checked_out = FALSE
			), 0),
			updated_at = NOW()
		WHERE cart_id = $1
		RETURNING total_price
	`

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, cartID).Scan(&total); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to recalculate cart total")
		return decimal.Zero, fmt.Errorf("failed to recalculate cart total: %w", err)
	}
	return total, nil
}

// ClaimLines marks open lines as checked out and returns those it claimed.
// The WHERE clause re-checks is_checked_out so a concurrent claimer blocks
// on the row lock and then matches nothing.
func (r *cartRepository) ClaimLines(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, lineIDs []uuid.UUID) ([]model.CartLine, error) {
	query := `
		UPDATE cart_lines
		SET is_checked_out = TRUE, updated_at = NOW()
		WHERE cart_id = $1
		  AND cart_detail_id = ANY($2)
		  AND is_checked_out = FALSE
		RETURNING ` + cartLineColumns

	rows, err := tx.Query(ctx, query, cartID, lineIDs)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to claim cart lines")
		return nil, fmt.Errorf("failed to claim cart lines: %w", err)
	}

	lines, err := collectCartLines(rows)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to read claimed cart lines")
		return nil, err
	}

	r.logger.Debug().
		Str("cart_id", cartID.String()).
		Int("requested", len(lineIDs)).
		Int("claimed", len(lines)).
		Msg("cart lines claimed")

	return lines, nil
}

// MarkCheckedOut moves an active cart to checked_out.
func (r *cartRepository) MarkCheckedOut(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE carts
		SET cart_status = 'checked_out', updated_at = NOW()
		WHERE cart_id = $1 AND cart_status = 'active'
	`, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to mark cart checked out")
		return fmt.Errorf("failed to mark cart checked out: %w", err)
	}
	return nil
}
