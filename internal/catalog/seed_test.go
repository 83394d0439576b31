package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kart-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
payment_methods:
  - id: PM001
    code: MoMo
    name: MoMo
    fee_percentage: "0.5"
    minimum_amount: "10000"
    maximum_amount: "50000000"
  - id: PM003
    code: bank_transfer
    name: Bank Transfer
    minimum_amount: "1000"
    is_active: false
    api_config:
      bank_code: "970422"
`

func TestDecodeSeed(t *testing.T) {
	methods, err := decodeSeed(strings.NewReader(sampleSeed))
	require.NoError(t, err)
	require.Len(t, methods, 2)

	assert.Equal(t, "momo", methods[0].Code)
	assert.True(t, methods[0].IsActive)
	assert.True(t, dec("0.5").Equal(methods[0].FeePercentage))
	assert.True(t, methods[0].FeeFixed.IsZero())
	require.NotNil(t, methods[0].MaximumAmount)
	assert.True(t, dec("50000000").Equal(*methods[0].MaximumAmount))

	assert.False(t, methods[1].IsActive)
	assert.Nil(t, methods[1].MaximumAmount)
	assert.Equal(t, "970422", methods[1].ConfigString("bank_code", ""))
}

func TestDecodeSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "payment_methods: [:"},
		{"missing code", "payment_methods:\n  - id: PM001\n    name: MoMo\n"},
		{"bad amount", "payment_methods:\n  - id: PM001\n    code: momo\n    name: MoMo\n    minimum_amount: abc\n"},
		{"negative fee", "payment_methods:\n  - id: PM001\n    code: momo\n    name: MoMo\n    fee_fixed: \"-1\"\n"},
		{"max below min", "payment_methods:\n  - id: PM001\n    code: momo\n    name: MoMo\n    minimum_amount: \"100\"\n    maximum_amount: \"10\"\n"},
		{"duplicate code", "payment_methods:\n  - id: PM001\n    code: momo\n    name: A\n  - id: PM002\n    code: momo\n    name: B\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeSeed(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestDefaultMethods(t *testing.T) {
	methods := DefaultMethods()
	require.Len(t, methods, 5)

	codes := make([]string, len(methods))
	for i, m := range methods {
		codes[i] = m.Code
		assert.True(t, m.IsActive, m.Code)
		if m.MaximumAmount != nil {
			assert.True(t, m.MaximumAmount.GreaterThanOrEqual(m.MinimumAmount), m.Code)
		}
	}
	assert.Equal(t, []string{"momo", "vnpay", "bank_transfer", "cod", "zalopay"}, codes)
}

func TestEncodeSeed(t *testing.T) {
	defaults := DefaultMethods()
	defaults[4].IsActive = false

	var buf strings.Builder
	require.NoError(t, EncodeSeed(&buf, defaults))
	assert.Contains(t, buf.String(), "payment_methods:")
	assert.Contains(t, buf.String(), `fee_fixed: "15000"`)

	methods, err := decodeSeed(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, methods, len(defaults))

	for i, m := range methods {
		want := defaults[i]
		assert.Equal(t, want.Code, m.Code)
		assert.True(t, want.FeePercentage.Equal(m.FeePercentage), want.Code)
		assert.True(t, want.MinimumAmount.Equal(m.MinimumAmount), want.Code)
		assert.Equal(t, want.MaximumAmount == nil, m.MaximumAmount == nil, want.Code)
		assert.Equal(t, want.IsActive, m.IsActive, want.Code)
	}
	assert.Equal(t, "970422", methods[2].APIConfig["bank_code"])
}

type stubLoader struct {
	methods []model.PaymentMethod
	err     error
	gotPath string
}

func (s *stubLoader) Load(_ context.Context, path string) ([]model.PaymentMethod, error) {
	s.gotPath = path
	return s.methods, s.err
}

func TestSeeder_Seed(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts every method", func(t *testing.T) {
		repo := new(MockMethodRepository)
		repo.On("Upsert", ctx, mock.AnythingOfType("*model.PaymentMethod")).Return(nil).Times(5)
		loader := &stubLoader{methods: DefaultMethods()}

		n, err := NewSeeder(loader, repo, zerolog.Nop()).Seed(ctx, "seeds/payment_methods.yaml")
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "seeds/payment_methods.yaml", loader.gotPath)
		repo.AssertExpectations(t)
	})

	t.Run("stops on first failure", func(t *testing.T) {
		repo := new(MockMethodRepository)
		repo.On("Upsert", ctx, mock.AnythingOfType("*model.PaymentMethod")).Return(nil).Once()
		repo.On("Upsert", ctx, mock.AnythingOfType("*model.PaymentMethod")).Return(errors.New("boom")).Once()

		n, err := NewSeeder(&stubLoader{methods: DefaultMethods()}, repo, zerolog.Nop()).Seed(ctx, "x")
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Contains(t, err.Error(), "PM002")
	})

	t.Run("loader error", func(t *testing.T) {
		_, err := NewSeeder(&stubLoader{err: errors.New("missing")}, new(MockMethodRepository), zerolog.Nop()).Seed(ctx, "x")
		assert.Error(t, err)
	})
}
