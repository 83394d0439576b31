package repository

import (
	"context"
	"errors"
	"fmt"

	"kart-checkout/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const paymentMethodColumns = `payment_method_id, code, name, description, transaction_fee_percentage,
	transaction_fee_fixed, minimum_amount, maximum_amount, is_active, api_config, created_at, updated_at`

func scanPaymentMethod(row rowScanner) (*model.PaymentMethod, error) {
	var m model.PaymentMethod
	var maxAmount decimal.NullDecimal
	err := row.Scan(
		&m.ID, &m.Code, &m.Name, &m.Description, &m.FeePercentage,
		&m.FeeFixed, &m.MinimumAmount, &maxAmount, &m.IsActive, &m.APIConfig, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if maxAmount.Valid {
		m.MaximumAmount = &maxAmount.Decimal
	}
	return &m, nil
}

type paymentMethodRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentMethodRepository creates a new PostgreSQL-backed payment method repository.
func NewPaymentMethodRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentMethodRepository {
	return &paymentMethodRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment_method").Logger(),
	}
}

func (r *paymentMethodRepository) GetByID(ctx context.Context, id string) (*model.PaymentMethod, error) {
	return r.getOne(ctx, "payment_method_id", id)
}

func (r *paymentMethodRepository) GetByCode(ctx context.Context, code string) (*model.PaymentMethod, error) {
	return r.getOne(ctx, "code", code)
}

func (r *paymentMethodRepository) getOne(ctx context.Context, column, value string) (*model.PaymentMethod, error) {
	m, err := scanPaymentMethod(r.pool.QueryRow(ctx,
		`SELECT `+paymentMethodColumns+` FROM payment_methods WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str(column, value).Msg("payment method not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str(column, value).Msg("failed to query payment method")
		return nil, fmt.Errorf("failed to query payment method: %w", err)
	}
	return m, nil
}

func (r *paymentMethodRepository) List(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY payment_method_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query payment methods")
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	methods := []model.PaymentMethod{}
	for rows.Next() {
		m, err := scanPaymentMethod(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan payment method row")
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment methods: %w", err)
	}
	return methods, nil
}

func (r *paymentMethodRepository) Upsert(ctx context.Context, m *model.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (payment_method_id, code, name, description, transaction_fee_percentage,
			transaction_fee_fixed, minimum_amount, maximum_amount, is_active, api_config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (payment_method_id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			transaction_fee_percentage = EXCLUDED.transaction_fee_percentage,
			transaction_fee_fixed = EXCLUDED.transaction_fee_fixed,
			minimum_amount = EXCLUDED.minimum_amount,
			maximum_amount = EXCLUDED.maximum_amount,
			is_active = EXCLUDED.is_active,
			api_config = EXCLUDED.api_config,
			updated_at = NOW()
	`

	var maxAmount decimal.NullDecimal
	if m.MaximumAmount != nil {
		maxAmount = decimal.NewNullDecimal(*m.MaximumAmount)
	}
	apiConfig := m.APIConfig
	if apiConfig == nil {
		apiConfig = map[string]any{}
	}

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.Code, m.Name, m.Description, m.FeePercentage,
		m.FeeFixed, m.MinimumAmount, maxAmount, m.IsActive, apiConfig,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_method_id", m.ID).Msg("failed to upsert payment method")
		return fmt.Errorf("failed to upsert payment method: %w", err)
	}

	r.logger.Debug().Str("payment_method_id", m.ID).Str("code", m.Code).Msg("payment method upserted")
	return nil
}
