package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"kart-checkout/internal/config"
	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	vnpayVersion    = "2.1.0"
	vnpayPayURL     = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	vnpayTimeLayout = "20060102150405"
)

// vnp_ResponseCode values that end a payment unsuccessfully.
var vnpayFailed = map[string]bool{
	"09": true, "10": true, "11": true, "12": true, "13": true, "24": true,
	"51": true, "65": true, "75": true, "79": true, "99": true,
}

// vnp_TransactionStatus values returned by querydr.
var vnpayTxnStatus = map[string]model.CanonicalStatus{
	"00": model.CanonicalCompleted,
	"01": model.CanonicalPending,
	"02": model.CanonicalFailed,
	"04": model.CanonicalFailed,
	"05": model.CanonicalPending,
	"06": model.CanonicalPending,
	"07": model.CanonicalPending,
}

// VNPay is the VNPay QR adapter.
type VNPay struct {
	cfg      config.VNPayConfig
	payments config.PaymentsConfig
	remote   remote
	now      func() time.Time
	logger   zerolog.Logger
}

// NewVNPay creates a VNPay adapter.
func NewVNPay(cfg config.VNPayConfig, payments config.PaymentsConfig, client *http.Client, logger zerolog.Logger) *VNPay {
	if cfg.TmnCode == "" {
		cfg.TmnCode = "DEMO"
	}
	return &VNPay{
		cfg:      cfg,
		payments: payments,
		remote:   remote{client: client, gateway: CodeVNPay},
		now:      time.Now,
		logger:   logger.With().Str("gateway", CodeVNPay).Logger(),
	}
}

func (v *VNPay) Code() string { return CodeVNPay }

// vnpayAmount is the provider's integer amount: VND × 100.
func vnpayAmount(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).Round(0).StringFixed(0)
}

// canonical is the sorted, query-escaped k=v list of vnp_* fields minus the hash fields.
func vnpayCanonical(params url.Values) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		if !strings.HasPrefix(k, "vnp_") || k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(params.Get(k)))
	}
	return []byte(strings.Join(parts, "&"))
}

func (v *VNPay) CreateArtifact(_ context.Context, req ArtifactRequest) (*model.PaymentArtifact, error) {
	txn := req.Transaction
	info := req.Description
	if info == "" {
		info = "Payment for order " + txn.OrderID.String()
	}

	params := url.Values{}
	params.Set("vnp_Version", vnpayVersion)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Amount", vnpayAmount(txn.Amount))
	params.Set("vnp_CurrCode", txn.Currency)
	params.Set("vnp_TxnRef", txn.ID.String())
	params.Set("vnp_OrderInfo", info)
	params.Set("vnp_OrderType", "billpayment")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", v.payments.CallbackURL(CodeVNPay))
	params.Set("vnp_IpAddr", "127.0.0.1")
	params.Set("vnp_CreateDate", txn.CreatedAt.In(vietnamZone).Format(vnpayTimeLayout))
	params.Set("vnp_SecureHash", SignSHA512(v.cfg.HashSecret, vnpayCanonical(params)))

	payload, err := json.Marshal(valuesToMap(params))
	if err != nil {
		return nil, fmt.Errorf("failed to encode vnpay payload: %w", err)
	}

	payURL := req.Method.ConfigString("pay_url", vnpayPayURL)
	return &model.PaymentArtifact{
		Payload:       string(payload),
		QRCodeURL:     QRImageURL(string(payload)),
		PaymentURL:    payURL + "?" + params.Encode(),
		CorrelationID: txn.ID.String(),
	}, nil
}

func (v *VNPay) MapStatus(code string) model.CanonicalStatus {
	switch {
	case code == "00":
		return model.CanonicalCompleted
	case vnpayFailed[code]:
		return model.CanonicalFailed
	default:
		return model.CanonicalPending
	}
}

func (v *VNPay) VerifySignature(payload []byte, mac string) bool {
	return verifySHA512(v.cfg.HashSecret, payload, strings.ToLower(mac))
}

// ParseCallback accepts the IPN query string, sent as a form body or URL query.
func (v *VNPay) ParseCallback(body []byte) (*Outcome, error) {
	params, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil || len(params) == 0 {
		return nil, fmt.Errorf("%w: invalid query string", model.ErrMalformedCallback)
	}
	if !v.VerifySignature(vnpayCanonical(params), params.Get("vnp_SecureHash")) {
		return nil, model.ErrInvalidSignature
	}

	ref := params.Get("vnp_TxnRef")
	if ref == "" {
		return nil, model.ErrMissingCorrelationKey
	}

	var amount *decimal.Decimal
	if raw := params.Get("vnp_Amount"); raw != "" {
		a, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid amount %q", model.ErrMalformedCallback, raw)
		}
		a = a.Div(decimal.NewFromInt(100))
		amount = &a
	}

	params.Del("vnp_SecureHash")
	params.Del("vnp_SecureHashType")
	code := params.Get("vnp_ResponseCode")
	return &Outcome{
		CorrelationID:        ref,
		GatewayTransactionID: params.Get("vnp_TransactionNo"),
		ProviderCode:         code,
		Status:               v.MapStatus(code),
		Amount:               amount,
		Message:              "vnp_ResponseCode " + code,
		Data:                 valuesToMap(params),
	}, nil
}

type vnpayQueryRequest struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	TmnCode         string `json:"vnp_TmnCode"`
	TxnRef          string `json:"vnp_TxnRef"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateDate      string `json:"vnp_CreateDate"`
	IPAddr          string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

func (v *VNPay) QueryRemote(ctx context.Context, txn *model.PaymentTransaction) (*Outcome, error) {
	q := vnpayQueryRequest{
		RequestID:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		Version:         vnpayVersion,
		Command:         "querydr",
		TmnCode:         v.cfg.TmnCode,
		TxnRef:          txn.ID.String(),
		OrderInfo:       "Query transaction " + txn.ID.String(),
		TransactionDate: txn.CreatedAt.In(vietnamZone).Format(vnpayTimeLayout),
		CreateDate:      v.now().In(vietnamZone).Format(vnpayTimeLayout),
		IPAddr:          "127.0.0.1",
	}
	raw := strings.Join([]string{q.RequestID, q.Version, q.Command, q.TmnCode, q.TxnRef,
		q.TransactionDate, q.CreateDate, q.IPAddr, q.OrderInfo}, "|")
	q.SecureHash = SignSHA512(v.cfg.HashSecret, []byte(raw))

	var resp map[string]any
	if err := v.remote.postJSON(ctx, "query", v.cfg.Endpoint, q, &resp); err != nil {
		v.logger.Warn().Err(err).Str("transaction_id", txn.ID.String()).Msg("vnpay query failed")
		return nil, err
	}

	out := &Outcome{
		CorrelationID:        txn.ID.String(),
		GatewayTransactionID: field(resp, "vnp_TransactionNo"),
		ProviderCode:         field(resp, "vnp_ResponseCode"),
		Status:               model.CanonicalPending,
		Message:              field(resp, "vnp_Message"),
		Data:                 resp,
	}
	if out.ProviderCode != "00" {
		return out, nil
	}

	out.ProviderCode = field(resp, "vnp_TransactionStatus")
	if s, ok := vnpayTxnStatus[out.ProviderCode]; ok {
		out.Status = s
	}
	if raw := field(resp, "vnp_Amount"); raw != "" {
		a, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, &TransientError{Gateway: CodeVNPay, Op: "query", Err: err}
		}
		a = a.Div(decimal.NewFromInt(100))
		out.Amount = &a
	}
	return out, nil
}
