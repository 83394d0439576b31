// Package catalog resolves payment methods and computes their fees and limits.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"kart-checkout/internal/model"
	"kart-checkout/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Catalog is the read side of the payment method reference data.
type Catalog struct {
	repo   repository.PaymentMethodRepository
	logger zerolog.Logger
}

// New creates a Catalog over the given repository, which may be a cache.
func New(repo repository.PaymentMethodRepository, logger zerolog.Logger) *Catalog {
	return &Catalog{
		repo:   repo,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Resolve looks a method up by id first, then by code.
func (c *Catalog) Resolve(ctx context.Context, ref string) (*model.PaymentMethod, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, model.ErrPaymentMethodNotFound
	}

	m, err := c.repo.GetByID(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payment method: %w", err)
	}
	if m != nil {
		return m, nil
	}

	m, err = c.repo.GetByCode(ctx, strings.ToLower(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payment method: %w", err)
	}
	if m == nil {
		c.logger.Debug().Str("payment_method", ref).Msg("payment method not found")
		return nil, model.ErrPaymentMethodNotFound
	}
	return m, nil
}

// ResolveActive is Resolve plus the is_active gate.
func (c *Catalog) ResolveActive(ctx context.Context, ref string) (*model.PaymentMethod, error) {
	m, err := c.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, model.ErrPaymentMethodInactive
	}
	return m, nil
}

// List returns the methods ordered by id.
func (c *Catalog) List(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	methods, err := c.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

// ValidateAmount checks amount against the method's limits. A nil maximum is unbounded.
func ValidateAmount(m *model.PaymentMethod, amount decimal.Decimal) error {
	if amount.LessThan(m.MinimumAmount) {
		return fmt.Errorf("%w: %s is below %s for %s", model.ErrBelowMinimum,
			amount.StringFixed(2), m.MinimumAmount.StringFixed(2), m.Code)
	}
	if m.MaximumAmount != nil && amount.GreaterThan(*m.MaximumAmount) {
		return fmt.Errorf("%w: %s is above %s for %s", model.ErrAboveMaximum,
			amount.StringFixed(2), m.MaximumAmount.StringFixed(2), m.Code)
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// ComputeFee returns amount × percentage/100 + fixed at currency precision.
func ComputeFee(m *model.PaymentMethod, amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(m.FeePercentage).Div(hundred).Add(m.FeeFixed)
	return model.RoundMoney(fee)
}
