// Package gateway adapts external payment providers to canonical payment outcomes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"kart-checkout/internal/model"

	"github.com/shopspring/decimal"
)

// Provider codes.
const (
	CodeMoMo         = "momo"
	CodeVNPay        = "vnpay"
	CodeBankTransfer = "bank_transfer"
	CodeZaloPay      = "zalopay"
)

// ErrQueryUnsupported is returned by adapters whose provider has no status API.
var ErrQueryUnsupported = errors.New("gateway does not support status queries")

// TransientError marks a failure to reach a provider. It never implies the
// payment failed.
type TransientError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ArtifactRequest is the input to CreateArtifact.
type ArtifactRequest struct {
	Transaction *model.PaymentTransaction
	Method      *model.PaymentMethod
	CustomerID  string
	Description string
}

// Outcome is a verified provider report about one transaction, from a
// callback or a status query.
type Outcome struct {
	CorrelationID        string
	GatewayTransactionID string
	ProviderCode         string
	Status               model.CanonicalStatus
	Amount               *decimal.Decimal
	Message              string
	Data                 map[string]any
}

// Adapter is implemented by every provider integration.
type Adapter interface {
	// Code is the payment method code the adapter serves.
	Code() string
	// CreateArtifact builds what the customer needs to pay. It never mutates
	// the transaction; the caller persists the result.
	CreateArtifact(ctx context.Context, req ArtifactRequest) (*model.PaymentArtifact, error)
	// MapStatus maps a provider code to a canonical status. Unknown codes are pending.
	MapStatus(providerCode string) model.CanonicalStatus
	// VerifySignature checks mac against the adapter's canonical byte string.
	VerifySignature(payload []byte, mac string) bool
	// ParseCallback authenticates and decodes a provider push.
	ParseCallback(body []byte) (*Outcome, error)
	// QueryRemote asks the provider for the transaction's status.
	QueryRemote(ctx context.Context, txn *model.PaymentTransaction) (*Outcome, error)
}

const qrImageBase = "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data="

// QRImageURL renders payload through the public QR image service.
func QRImageURL(payload string) string {
	return qrImageBase + url.QueryEscape(payload)
}

// vietnamZone is the provider-local time zone (GMT+7).
var vietnamZone = time.FixedZone("ICT", 7*60*60)

// wholeAmount formats an amount as an integer string, as VND providers expect.
func wholeAmount(d decimal.Decimal) string {
	return d.Round(0).StringFixed(0)
}

func parseAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q", model.ErrMalformedCallback, s)
	}
	return &d, nil
}

// decodeObject decodes a JSON object keeping numbers exact.
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("empty object")
	}
	return m, nil
}

// field renders a decoded JSON value the way providers sign it.
func field(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

// valuesToMap flattens form values for storage in gateway_response.
func valuesToMap(v url.Values) map[string]any {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := make(map[string]any, len(keys))
	for _, k := range keys {
		m[k] = v.Get(k)
	}
	return m
}
