package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const paymentColumns = `transaction_id, order_id, payment_method_id, amount, fee_amount, currency, status,
	reference_number, gateway_transaction_id, gateway_response, qr_code_url, qr_code_payload, payment_url,
	processed_at, failure_reason, created_at, updated_at`

func scanPayment(row rowScanner) (*model.PaymentTransaction, error) {
	var t model.PaymentTransaction
	err := row.Scan(
		&t.ID, &t.OrderID, &t.PaymentMethodID, &t.Amount, &t.FeeAmount, &t.Currency, &t.Status,
		&t.ReferenceNumber, &t.GatewayTransactionID, &t.GatewayResponse, &t.QRCodeURL, &t.QRCodePayload, &t.PaymentURL,
		&t.ProcessedAt, &t.FailureReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type paymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment transaction repository.
func NewPaymentRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *paymentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Create inserts a transaction guarded by the active-transaction partial index.
func (r *paymentRepository) Create(ctx context.Context, tx pgx.Tx, t *model.PaymentTransaction) (bool, error) {
	query := `
		INSERT INTO payment_transactions (transaction_id, order_id, payment_method_id, amount, fee_amount,
			currency, status, reference_number, gateway_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id, payment_method_id) WHERE status IN ('pending', 'processing') DO NOTHING
	`

	resp := t.GatewayResponse
	if resp == nil {
		resp = map[string]any{}
	}

	tag, err := tx.Exec(ctx, query,
		t.ID, t.OrderID, t.PaymentMethodID, t.Amount, t.FeeAmount,
		t.Currency, t.Status, t.ReferenceNumber, resp, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).
			Str("transaction_id", t.ID.String()).
			Str("order_id", t.OrderID.String()).
			Msg("failed to create payment transaction")
		return false, fmt.Errorf("failed to create payment transaction: %w", err)
	}

	inserted := tag.RowsAffected() == 1
	if !inserted {
		r.logger.Info().
			Str("order_id", t.OrderID.String()).
			Str("payment_method", t.PaymentMethodID).
			Msg("active payment transaction already exists, insert skipped")
	}
	return inserted, nil
}

// FindActiveForUpdate locks the active transaction for an order and method.
func (r *paymentRepository) FindActiveForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, methodID string) (*model.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payment_transactions
		WHERE order_id = $1 AND payment_method_id = $2 AND status IN ('pending', 'processing')
		FOR UPDATE`

	return r.one(tx.QueryRow(ctx, query, orderID, methodID), "order_id", orderID.String())
}

// GetByID retrieves a transaction.
func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentTransaction, error) {
	return r.one(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE transaction_id = $1`, id),
		"transaction_id", id.String())
}

// GetForUpdate locks and returns a transaction.
func (r *paymentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.PaymentTransaction, error) {
	return r.one(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE transaction_id = $1 FOR UPDATE`, id),
		"transaction_id", id.String())
}

const correlationWhere = `
	WHERE transaction_id::text = $1 OR gateway_transaction_id = $1 OR reference_number = $1
	ORDER BY created_at DESC
	LIMIT 1`

// FindByCorrelation returns the newest transaction matching key.
func (r *paymentRepository) FindByCorrelation(ctx context.Context, key string) (*model.PaymentTransaction, error) {
	return r.one(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions`+correlationWhere, key),
		"correlation_id", key)
}

// FindByCorrelationForUpdate is FindByCorrelation with a row lock.
func (r *paymentRepository) FindByCorrelationForUpdate(ctx context.Context, tx pgx.Tx, key string) (*model.PaymentTransaction, error) {
	return r.one(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions`+correlationWhere+` FOR UPDATE`, key),
		"correlation_id", key)
}

func (r *paymentRepository) one(row pgx.Row, field, value string) (*model.PaymentTransaction, error) {
	t, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str(field, value).Msg("payment transaction not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str(field, value).Msg("failed to query payment transaction")
		return nil, fmt.Errorf("failed to query payment transaction: %w", err)
	}
	return t, nil
}

// SaveArtifact persists a gateway artifact into the dedicated columns and
// merges it into gateway_response.
func (r *paymentRepository) SaveArtifact(ctx context.Context, tx pgx.Tx, id uuid.UUID, a *model.PaymentArtifact) error {
	merged, err := json.Marshal(artifactDocument(a))
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE payment_transactions
		SET qr_code_payload = NULLIF($2, ''),
			qr_code_url = NULLIF($3, ''),
			payment_url = NULLIF($4, ''),
			gateway_transaction_id = COALESCE(NULLIF($5, ''), gateway_transaction_id),
			gateway_response = gateway_response || $6::jsonb,
			updated_at = NOW()
		WHERE transaction_id = $1
	`, id, a.Payload, a.QRCodeURL, a.PaymentURL, a.CorrelationID, merged)
	if err != nil {
		r.logger.Error().Err(err).Str("transaction_id", id.String()).Msg("failed to save payment artifact")
		return fmt.Errorf("failed to save payment artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPaymentNotFound
	}
	return nil
}

func artifactDocument(a *model.PaymentArtifact) map[string]any {
	doc := make(map[string]any, len(a.Extra)+4)
	for k, v := range a.Extra {
		doc[k] = v
	}
	if a.Payload != "" {
		doc[model.ArtifactKeyPayload] = a.Payload
	}
	if a.QRCodeURL != "" {
		doc[model.ArtifactKeyQRCodeURL] = a.QRCodeURL
	}
	if a.PaymentURL != "" {
		doc[model.ArtifactKeyPaymentURL] = a.PaymentURL
	}
	if a.CorrelationID != "" {
		doc[model.ArtifactKeyCorrelationID] = a.CorrelationID
	}
	return doc
}

const appendRound = `jsonb_set(gateway_response, '{rounds}',
	COALESCE(gateway_response->'rounds', '[]'::jsonb) || jsonb_build_array($2::jsonb))`

// UpdateStatus writes a status change and appends its gateway round.
func (r *paymentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, u model.StatusUpdate) error {
	round, err := json.Marshal(u.Round)
	if err != nil {
		return fmt.Errorf("failed to encode gateway round: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $3,
			processed_at = COALESCE($4, processed_at),
			failure_reason = COALESCE($5, failure_reason),
			gateway_transaction_id = COALESCE($6, gateway_transaction_id),
			gateway_response = `+appendRound+`,
			updated_at = NOW()
		WHERE transaction_id = $1
	`, id, round, u.Status, u.ProcessedAt, u.FailureReason, u.GatewayTransactionID)
	if err != nil {
		r.logger.Error().Err(err).Str("transaction_id", id.String()).Str("status", string(u.Status)).Msg("failed to update payment status")
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPaymentNotFound
	}

	r.logger.Debug().Str("transaction_id", id.String()).Str("status", string(u.Status)).Msg("payment status updated")
	return nil
}

// AppendRound appends a gateway round without changing status.
func (r *paymentRepository) AppendRound(ctx context.Context, tx pgx.Tx, id uuid.UUID, round model.GatewayRound) error {
	raw, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to encode gateway round: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE payment_transactions
		SET gateway_response = `+appendRound+`, updated_at = NOW()
		WHERE transaction_id = $1
	`, id, raw)
	if err != nil {
		r.logger.Error().Err(err).Str("transaction_id", id.String()).Msg("failed to append gateway round")
		return fmt.Errorf("failed to append gateway round: %w", err)
	}
	return nil
}

// ListByOrder returns the order's transactions, newest first.
func (r *paymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentTransaction, error) {
	return r.list(ctx, `WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
}

// ListPendingBefore returns pending transactions created before cutoff.
func (r *paymentRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.PaymentTransaction, error) {
	return r.list(ctx, `WHERE status = 'pending' AND created_at < $1 ORDER BY created_at LIMIT $2`, cutoff, limit)
}

func (r *paymentRepository) list(ctx context.Context, tail string, args ...any) ([]model.PaymentTransaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payment_transactions `+tail, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query payment transactions")
		return nil, fmt.Errorf("failed to query payment transactions: %w", err)
	}
	defer rows.Close()

	txns := []model.PaymentTransaction{}
	for rows.Next() {
		t, err := scanPayment(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan payment transaction row")
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment transactions: %w", err)
	}
	return txns, nil
}
