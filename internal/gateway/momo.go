package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"kart-checkout/internal/config"
	"kart-checkout/internal/model"

	"github.com/rs/zerolog"
)

// MoMo result codes that leave a payment open.
var momoPending = map[string]bool{"1000": true, "7000": true, "7002": true, "9000": true}

// MoMo result codes that end a payment unsuccessfully.
var momoFailed = map[string]bool{
	"1001": true, "1002": true, "1003": true, "1004": true, "1005": true, "1006": true,
	"1007": true, "1017": true, "1026": true, "1080": true, "1081": true, "2019": true,
	"4001": true, "4010": true, "4011": true, "4100": true,
}

// momoCallbackFields is the signing order for IPN payloads.
var momoCallbackFields = []string{
	"amount", "extraData", "message", "orderId", "orderInfo", "orderType",
	"partnerCode", "payType", "requestId", "responseTime", "resultCode", "transId",
}

// MoMo is the MoMo wallet QR adapter.
type MoMo struct {
	cfg      config.MoMoConfig
	payments config.PaymentsConfig
	remote   remote
	logger   zerolog.Logger
}

// NewMoMo creates a MoMo adapter.
func NewMoMo(cfg config.MoMoConfig, payments config.PaymentsConfig, client *http.Client, logger zerolog.Logger) *MoMo {
	if cfg.PartnerCode == "" {
		cfg.PartnerCode = "DEMO"
	}
	return &MoMo{
		cfg:      cfg,
		payments: payments,
		remote:   remote{client: client, gateway: CodeMoMo},
		logger:   logger.With().Str("gateway", CodeMoMo).Logger(),
	}
}

func (m *MoMo) Code() string { return CodeMoMo }

type momoExtra struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
}

type momoPayload struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
}

// CreateArtifact builds the MoMo QR payload. MoMo's orderId carries the
// transaction id so callbacks correlate to one attempt.
func (m *MoMo) CreateArtifact(_ context.Context, req ArtifactRequest) (*model.PaymentArtifact, error) {
	txn := req.Transaction
	extra, err := json.Marshal(momoExtra{TransactionID: txn.ID.String(), OrderID: txn.OrderID.String()})
	if err != nil {
		return nil, err
	}

	info := req.Description
	if info == "" {
		info = "Payment for order " + txn.OrderID.String()
	}

	payload, err := json.Marshal(momoPayload{
		PartnerCode: m.cfg.PartnerCode,
		RequestID:   txn.ID.String(),
		Amount:      wholeAmount(txn.Amount),
		OrderID:     txn.ID.String(),
		OrderInfo:   info,
		RedirectURL: strings.TrimRight(m.payments.PublicBaseURL, "/") + "/payment/result",
		IpnURL:      m.payments.CallbackURL(CodeMoMo),
		ExtraData:   base64.StdEncoding.EncodeToString(extra),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode momo payload: %w", err)
	}

	return &model.PaymentArtifact{
		Payload:       string(payload),
		QRCodeURL:     QRImageURL(string(payload)),
		PaymentURL:    m.payURL() + "?t=" + base64.URLEncoding.EncodeToString(payload),
		CorrelationID: txn.ID.String(),
	}, nil
}

func (m *MoMo) payURL() string {
	return strings.TrimSuffix(strings.TrimRight(m.cfg.Endpoint, "/"), "/api") + "/pay"
}

func (m *MoMo) MapStatus(code string) model.CanonicalStatus {
	switch {
	case code == "0":
		return model.CanonicalCompleted
	case momoPending[code]:
		return model.CanonicalPending
	case momoFailed[code]:
		return model.CanonicalFailed
	default:
		return model.CanonicalPending
	}
}

func (m *MoMo) VerifySignature(payload []byte, mac string) bool {
	return verifySHA256(m.cfg.SecretKey, payload, mac)
}

// canonical builds accessKey=..&k=v.. over fields in order.
func (m *MoMo) canonical(data map[string]any, fields []string) []byte {
	var b strings.Builder
	b.WriteString("accessKey=")
	b.WriteString(m.cfg.AccessKey)
	for _, f := range fields {
		b.WriteString("&")
		b.WriteString(f)
		b.WriteString("=")
		b.WriteString(field(data, f))
	}
	return []byte(b.String())
}

func (m *MoMo) ParseCallback(body []byte) (*Outcome, error) {
	data, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedCallback, err)
	}
	if !m.VerifySignature(m.canonical(data, momoCallbackFields), field(data, "signature")) {
		return nil, model.ErrInvalidSignature
	}

	orderID := field(data, "orderId")
	if orderID == "" {
		return nil, model.ErrMissingCorrelationKey
	}
	amount, err := parseAmount(field(data, "amount"))
	if err != nil {
		return nil, err
	}

	code := field(data, "resultCode")
	delete(data, "signature")
	return &Outcome{
		CorrelationID:        orderID,
		GatewayTransactionID: field(data, "transId"),
		ProviderCode:         code,
		Status:               m.MapStatus(code),
		Amount:               amount,
		Message:              field(data, "message"),
		Data:                 data,
	}, nil
}

type momoQueryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

func (m *MoMo) QueryRemote(ctx context.Context, txn *model.PaymentTransaction) (*Outcome, error) {
	orderID := txn.ID.String()
	raw := fmt.Sprintf("accessKey=%s&orderId=%s&partnerCode=%s&requestId=%s",
		m.cfg.AccessKey, orderID, m.cfg.PartnerCode, orderID)

	var resp map[string]any
	err := m.remote.postJSON(ctx, "query", strings.TrimRight(m.cfg.Endpoint, "/")+"/query", momoQueryRequest{
		PartnerCode: m.cfg.PartnerCode,
		RequestID:   orderID,
		OrderID:     orderID,
		Lang:        "vi",
		Signature:   SignSHA256(m.cfg.SecretKey, []byte(raw)),
	}, &resp)
	if err != nil {
		m.logger.Warn().Err(err).Str("transaction_id", orderID).Msg("momo query failed")
		return nil, err
	}

	amount, err := parseAmount(field(resp, "amount"))
	if err != nil {
		return nil, &TransientError{Gateway: CodeMoMo, Op: "query", Err: err}
	}
	code := field(resp, "resultCode")
	return &Outcome{
		CorrelationID:        orderID,
		GatewayTransactionID: field(resp, "transId"),
		ProviderCode:         code,
		Status:               m.MapStatus(code),
		Amount:               amount,
		Message:              field(resp, "message"),
		Data:                 resp,
	}, nil
}
