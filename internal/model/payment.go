package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is read-mostly reference data describing a way to pay.
// A nil MaximumAmount means the method has no upper limit.
type PaymentMethod struct {
	ID            string           `json:"id" db:"payment_method_id"`
	Code          string           `json:"code" db:"code"`
	Name          string           `json:"name" db:"name"`
	Description   string           `json:"description,omitempty" db:"description"`
	FeePercentage decimal.Decimal  `json:"transactionFeePercentage" db:"transaction_fee_percentage"`
	FeeFixed      decimal.Decimal  `json:"transactionFeeFixed" db:"transaction_fee_fixed"`
	MinimumAmount decimal.Decimal  `json:"minimumAmount" db:"minimum_amount"`
	MaximumAmount *decimal.Decimal `json:"maximumAmount,omitempty" db:"maximum_amount"`
	IsActive      bool             `json:"isActive" db:"is_active"`
	APIConfig     map[string]any   `json:"-" db:"api_config"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" db:"updated_at"`
}

// ConfigString returns a string entry of APIConfig, or def when absent.
func (m *PaymentMethod) ConfigString(key, def string) string {
	if m == nil || m.APIConfig == nil {
		return def
	}
	if v, ok := m.APIConfig[key].(string); ok && v != "" {
		return v
	}
	return def
}

// PaymentTransaction records one attempt to collect payment for an order.
type PaymentTransaction struct {
	ID                   uuid.UUID       `json:"id" db:"transaction_id"`
	OrderID              uuid.UUID       `json:"orderId" db:"order_id"`
	PaymentMethodID      string          `json:"paymentMethodId" db:"payment_method_id"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	FeeAmount            decimal.Decimal `json:"feeAmount" db:"fee_amount"`
	Currency             string          `json:"currency" db:"currency"`
	Status               PaymentStatus   `json:"status" db:"status"`
	ReferenceNumber      string          `json:"referenceNumber" db:"reference_number"`
	GatewayTransactionID *string         `json:"gatewayTransactionId,omitempty" db:"gateway_transaction_id"`
	GatewayResponse      map[string]any  `json:"gatewayResponse,omitempty" db:"gateway_response"`
	QRCodeURL            *string         `json:"qrCodeUrl,omitempty" db:"qr_code_url"`
	QRCodePayload        *string         `json:"qrCodePayload,omitempty" db:"qr_code_payload"`
	PaymentURL           *string         `json:"paymentUrl,omitempty" db:"payment_url"`
	ProcessedAt          *time.Time      `json:"processedAt,omitempty" db:"processed_at"`
	FailureReason        *string         `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt            time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasArtifact reports whether a gateway artifact has been persisted, either
// in the dedicated columns or merged into the gateway response.
func (t *PaymentTransaction) HasArtifact() bool {
	if t.QRCodePayload != nil || t.QRCodeURL != nil || t.PaymentURL != nil {
		return true
	}
	for _, k := range []string{ArtifactKeyPayload, ArtifactKeyQRCodeURL, ArtifactKeyPaymentURL} {
		if _, ok := t.GatewayResponse[k]; ok {
			return true
		}
	}
	return false
}

// CorrelationKey is the key a gateway uses to refer to this transaction.
func (t *PaymentTransaction) CorrelationKey() string {
	if t.GatewayTransactionID != nil && *t.GatewayTransactionID != "" {
		return *t.GatewayTransactionID
	}
	return t.ID.String()
}

// Keys used when an artifact is merged into gateway_response.
const (
	ArtifactKeyPayload       = "qr_code_payload"
	ArtifactKeyQRCodeURL     = "qr_code_url"
	ArtifactKeyPaymentURL    = "payment_url"
	ArtifactKeyCorrelationID = "correlation_id"
	GatewayResponseRoundsKey = "rounds"
)

// Round sources.
const (
	SourceCallback = "callback"
	SourceQuery    = "query"
	SourceManual   = "manual"
	SourceCancel   = "cancel"
)

// GatewayRound is one gateway round-trip appended to gateway_response.rounds.
type GatewayRound struct {
	Source     string         `json:"source"`
	Status     PaymentStatus  `json:"status"`
	ReceivedAt time.Time      `json:"received_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// PaymentArtifact is what a gateway adapter produced for a transaction.
type PaymentArtifact struct {
	Payload       string
	QRCodeURL     string
	PaymentURL    string
	CorrelationID string
	Extra         map[string]any
}

// StatusUpdate describes a terminal or pending status write.
type StatusUpdate struct {
	Status               PaymentStatus
	ProcessedAt          *time.Time
	FailureReason        *string
	GatewayTransactionID *string
	Round                GatewayRound
}

// CreatePaymentRequest is the payload for creating or regenerating a payment.
type CreatePaymentRequest struct {
	OrderID       uuid.UUID `json:"orderId"`
	PaymentMethod string    `json:"paymentMethod"`
	Description   string    `json:"description,omitempty"`
}

// CreatePaymentResult is returned by CreatePayment. Existing is true when an
// active transaction was already present.
type CreatePaymentResult struct {
	Transaction *PaymentTransaction `json:"transaction"`
	Existing    bool                `json:"existing"`
}

// ManualConfirmationRequest is an operator-supplied outcome.
type ManualConfirmationRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// CancelPaymentRequest is the payload for cancelling a payment.
type CancelPaymentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// QueryStatusRequest asks for a remote status poll.
type QueryStatusRequest struct {
	CorrelationID string `json:"correlationId"`
}

// ReconcileResult is the outcome of applying a status to a transaction.
type ReconcileResult struct {
	Transaction *PaymentTransaction `json:"transaction"`
	OrderStatus OrderStatus         `json:"orderStatus"`
	Duplicate   bool                `json:"duplicate"`
	Cascaded    bool                `json:"cascaded"`
}

// QueryStatusResult is the outcome of a remote status poll. Inconclusive is
// set when the gateway could not be reached or does not support queries.
type QueryStatusResult struct {
	Status       CanonicalStatus     `json:"status"`
	Inconclusive bool                `json:"inconclusive"`
	Transaction  *PaymentTransaction `json:"transaction"`
	OrderStatus  OrderStatus         `json:"orderStatus,omitempty"`
}

// PollSummary counts the outcomes of a batch poll.
type PollSummary struct {
	Checked      int `json:"checked"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	Pending      int `json:"pending"`
	Inconclusive int `json:"inconclusive"`
	Errors       int `json:"errors"`
}
