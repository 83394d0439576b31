package gateway

import (
	"context"
	"fmt"
	"strings"

	"kart-checkout/internal/config"
	"kart-checkout/internal/model"

	"github.com/rs/zerolog"
)

// Defaults used when the method row carries no bank details.
const (
	defaultBankCode    = "970422"
	defaultBankAccount = "0123456789"
	defaultBankName    = "FASHION STORE"
)

// BankTransfer is the VietQR bank-transfer adapter. Banks push webhooks but
// expose no status API.
type BankTransfer struct {
	cfg    config.BankConfig
	logger zerolog.Logger
}

// NewBankTransfer creates a bank-transfer adapter.
func NewBankTransfer(cfg config.BankConfig, logger zerolog.Logger) *BankTransfer {
	return &BankTransfer{
		cfg:    cfg,
		logger: logger.With().Str("gateway", CodeBankTransfer).Logger(),
	}
}

func (b *BankTransfer) Code() string { return CodeBankTransfer }

// CreateArtifact builds the VietQR payload bank_code|account_number|amount|description.
func (b *BankTransfer) CreateArtifact(_ context.Context, req ArtifactRequest) (*model.PaymentArtifact, error) {
	txn := req.Transaction
	bankCode := req.Method.ConfigString("bank_code", defaultBankCode)
	account := req.Method.ConfigString("account_number", defaultBankAccount)
	name := req.Method.ConfigString("account_name", defaultBankName)

	payload := strings.Join([]string{
		bankCode,
		account,
		wholeAmount(txn.Amount),
		"TT " + txn.OrderID.String(),
	}, "|")

	return &model.PaymentArtifact{
		Payload:       payload,
		QRCodeURL:     QRImageURL(payload),
		CorrelationID: txn.ID.String(),
		Extra: map[string]any{
			"bank_info": map[string]any{
				"bank_code":      bankCode,
				"account_number": account,
				"account_name":   name,
			},
		},
	}, nil
}

func (b *BankTransfer) MapStatus(code string) model.CanonicalStatus {
	switch strings.ToLower(code) {
	case "paid":
		return model.CanonicalCompleted
	case "failed", "expired":
		return model.CanonicalFailed
	default:
		return model.CanonicalPending
	}
}

func (b *BankTransfer) VerifySignature(payload []byte, mac string) bool {
	return verifySHA256(b.cfg.WebhookSecret, payload, mac)
}

// ParseCallback handles {transaction_id, amount, status, bank_reference, signature}
// signed over transaction_id|amount|status.
func (b *BankTransfer) ParseCallback(body []byte) (*Outcome, error) {
	data, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedCallback, err)
	}

	txnID, amountRaw, status := field(data, "transaction_id"), field(data, "amount"), field(data, "status")
	signed := []byte(txnID + "|" + amountRaw + "|" + status)
	if !b.VerifySignature(signed, field(data, "signature")) {
		return nil, model.ErrInvalidSignature
	}
	if txnID == "" {
		return nil, model.ErrMissingCorrelationKey
	}
	amount, err := parseAmount(amountRaw)
	if err != nil {
		return nil, err
	}

	delete(data, "signature")
	return &Outcome{
		CorrelationID:        txnID,
		GatewayTransactionID: field(data, "bank_reference"),
		ProviderCode:         status,
		Status:               b.MapStatus(status),
		Amount:               amount,
		Message:              "bank transfer " + status,
		Data:                 data,
	}, nil
}

func (b *BankTransfer) QueryRemote(context.Context, *model.PaymentTransaction) (*Outcome, error) {
	return nil, ErrQueryUnsupported
}
