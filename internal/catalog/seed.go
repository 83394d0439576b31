package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"kart-checkout/internal/model"
	"kart-checkout/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedDocument is the on-disk seed format. Amounts are strings so they are
// parsed as exact decimals.
type seedDocument struct {
	PaymentMethods []seedMethod `yaml:"payment_methods"`
}

type seedMethod struct {
	ID            string         `yaml:"id"`
	Code          string         `yaml:"code"`
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description,omitempty"`
	FeePercentage string         `yaml:"fee_percentage"`
	FeeFixed      string         `yaml:"fee_fixed"`
	MinimumAmount string         `yaml:"minimum_amount"`
	MaximumAmount string         `yaml:"maximum_amount,omitempty"`
	IsActive      *bool          `yaml:"is_active,omitempty"`
	APIConfig     map[string]any `yaml:"api_config,omitempty"`
}

func parseAmount(field, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s %q: must not be negative", field, v)
	}
	return d, nil
}

func (s seedMethod) toModel() (model.PaymentMethod, error) {
	if s.ID == "" || s.Code == "" || s.Name == "" {
		return model.PaymentMethod{}, fmt.Errorf("payment method requires id, code and name (id=%q)", s.ID)
	}

	m := model.PaymentMethod{
		ID:          s.ID,
		Code:        strings.ToLower(s.Code),
		Name:        s.Name,
		Description: s.Description,
		IsActive:    s.IsActive == nil || *s.IsActive,
		APIConfig:   s.APIConfig,
	}

	var err error
	if m.FeePercentage, err = parseAmount("fee_percentage", s.FeePercentage); err != nil {
		return m, err
	}
	if m.FeeFixed, err = parseAmount("fee_fixed", s.FeeFixed); err != nil {
		return m, err
	}
	if m.MinimumAmount, err = parseAmount("minimum_amount", s.MinimumAmount); err != nil {
		return m, err
	}
	if strings.TrimSpace(s.MaximumAmount) != "" {
		maxAmount, err := parseAmount("maximum_amount", s.MaximumAmount)
		if err != nil {
			return m, err
		}
		if maxAmount.LessThan(m.MinimumAmount) {
			return m, fmt.Errorf("payment method %s: maximum_amount below minimum_amount", s.ID)
		}
		m.MaximumAmount = &maxAmount
	}
	return m, nil
}

func fromModel(m model.PaymentMethod) seedMethod {
	s := seedMethod{
		ID:            m.ID,
		Code:          m.Code,
		Name:          m.Name,
		Description:   m.Description,
		FeePercentage: m.FeePercentage.String(),
		FeeFixed:      m.FeeFixed.String(),
		MinimumAmount: m.MinimumAmount.String(),
		APIConfig:     m.APIConfig,
	}
	if m.MaximumAmount != nil {
		s.MaximumAmount = m.MaximumAmount.String()
	}
	if !m.IsActive {
		inactive := false
		s.IsActive = &inactive
	}
	return s
}

// EncodeSeed writes methods as a YAML seed document readable by the loaders.
func EncodeSeed(w io.Writer, methods []model.PaymentMethod) error {
	doc := seedDocument{PaymentMethods: make([]seedMethod, len(methods))}
	for i, m := range methods {
		doc.PaymentMethods[i] = fromModel(m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode seed document: %w", err)
	}
	return enc.Close()
}

// decodeSeed parses a YAML seed document.
func decodeSeed(r io.Reader) ([]model.PaymentMethod, error) {
	var doc seedDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode seed document: %w", err)
	}

	seen := make(map[string]bool, len(doc.PaymentMethods))
	methods := make([]model.PaymentMethod, 0, len(doc.PaymentMethods))
	for _, sm := range doc.PaymentMethods {
		m, err := sm.toModel()
		if err != nil {
			return nil, err
		}
		if seen[m.ID] || seen["code:"+m.Code] {
			return nil, fmt.Errorf("duplicate payment method %s (%s)", m.ID, m.Code)
		}
		seen[m.ID], seen["code:"+m.Code] = true, true
		methods = append(methods, m)
	}
	return methods, nil
}

// Seeder upserts payment methods from a Loader.
type Seeder struct {
	loader Loader
	repo   repository.PaymentMethodRepository
	logger zerolog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(loader Loader, repo repository.PaymentMethodRepository, logger zerolog.Logger) *Seeder {
	return &Seeder{
		loader: loader,
		repo:   repo,
		logger: logger.With().Str("component", "catalog-seeder").Logger(),
	}
}

// Seed loads path and upserts every method. It returns the number written.
func (s *Seeder) Seed(ctx context.Context, path string) (int, error) {
	methods, err := s.loader.Load(ctx, path)
	if err != nil {
		return 0, err
	}
	return s.Apply(ctx, methods)
}

// Apply upserts the given methods.
func (s *Seeder) Apply(ctx context.Context, methods []model.PaymentMethod) (int, error) {
	for i := range methods {
		if err := s.repo.Upsert(ctx, &methods[i]); err != nil {
			return i, fmt.Errorf("failed to seed payment method %s: %w", methods[i].ID, err)
		}
	}
	s.logger.Info().Int("count", len(methods)).Msg("payment methods seeded")
	return len(methods), nil
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bound(s string) *decimal.Decimal {
	d := amount(s)
	return &d
}

// DefaultMethods is the built-in catalog used when no seed file is available.
func DefaultMethods() []model.PaymentMethod {
	return []model.PaymentMethod{
		{
			ID: "PM001", Code: "momo", Name: "MoMo", Description: "MoMo e-wallet QR",
			FeePercentage: amount("0.5"), FeeFixed: decimal.Zero,
			MinimumAmount: amount("10000"), MaximumAmount: bound("50000000"), IsActive: true,
		},
		{
			ID: "PM002", Code: "vnpay", Name: "VNPay", Description: "VNPay QR",
			FeePercentage: amount("0.8"), FeeFixed: decimal.Zero,
			MinimumAmount: amount("5000"), MaximumAmount: bound("100000000"), IsActive: true,
		},
		{
			ID: "PM003", Code: "bank_transfer", Name: "Bank Transfer", Description: "VietQR bank transfer",
			FeePercentage: decimal.Zero, FeeFixed: decimal.Zero,
			MinimumAmount: amount("1000"), IsActive: true,
			APIConfig: map[string]any{
				"bank_code":      "970422",
				"account_number": "0123456789",
				"account_name":   "FASHION STORE",
			},
		},
		{
			ID: "PM004", Code: "cod", Name: "Cash on Delivery", Description: "Pay the courier on delivery",
			FeePercentage: decimal.Zero, FeeFixed: amount("15000"),
			MinimumAmount: decimal.Zero, MaximumAmount: bound("5000000"), IsActive: true,
		},
		{
			ID: "PM005", Code: "zalopay", Name: "ZaloPay", Description: "ZaloPay wallet",
			FeePercentage: amount("2.5"), FeeFixed: decimal.Zero,
			MinimumAmount: amount("1000"), MaximumAmount: bound("50000000"), IsActive: true,
		},
	}
}
