package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kart-checkout/internal/config"
	"kart-checkout/internal/model"

	"github.com/rs/zerolog"
)

const zaloPayMerchant = "Fashion Store"

// ZaloPay is the ZaloPay wallet adapter. Unlike the QR adapters it registers
// the order with the provider when the artifact is created.
type ZaloPay struct {
	cfg      config.ZaloPayConfig
	payments config.PaymentsConfig
	remote   remote
	now      func() time.Time
	logger   zerolog.Logger
}

// NewZaloPay creates a ZaloPay adapter.
func NewZaloPay(cfg config.ZaloPayConfig, payments config.PaymentsConfig, client *http.Client, logger zerolog.Logger) *ZaloPay {
	return &ZaloPay{
		cfg:      cfg,
		payments: payments,
		remote:   remote{client: client, gateway: CodeZaloPay},
		now:      time.Now,
		logger:   logger.With().Str("gateway", CodeZaloPay).Logger(),
	}
}

func (z *ZaloPay) Code() string { return CodeZaloPay }

// AppTransID is yymmdd (GMT+7) + "_" + the transaction id in hex.
func AppTransID(txn *model.PaymentTransaction) string {
	return txn.CreatedAt.In(vietnamZone).Format("060102") + "_" + strings.ReplaceAll(txn.ID.String(), "-", "")
}

type zaloItem struct {
	ItemID       string `json:"itemid"`
	ItemName     string `json:"itemname"`
	ItemPrice    int64  `json:"itemprice"`
	ItemQuantity int    `json:"itemquantity"`
}

type zaloCreateResponse struct {
	ReturnCode    json.Number `json:"return_code"`
	ReturnMessage string      `json:"return_message"`
	SubReturnCode json.Number `json:"sub_return_code"`
	OrderURL      string      `json:"order_url"`
	ZPTransToken  string      `json:"zp_trans_token"`
	QRCode        string      `json:"qr_code"`
}

func (z *ZaloPay) CreateArtifact(ctx context.Context, req ArtifactRequest) (*model.PaymentArtifact, error) {
	txn := req.Transaction
	appTransID := AppTransID(txn)
	orderID := txn.OrderID.String()

	description := req.Description
	if description == "" {
		description = "Payment for order " + orderID
	}
	user := "guest"
	if req.CustomerID != "" {
		user = req.CustomerID
	}

	embed, err := json.Marshal(map[string]string{
		"order_id":      orderID,
		"merchant_info": zaloPayMerchant,
		"redirect_url":  strings.TrimRight(z.payments.PublicBaseURL, "/") + "/payment/success",
	})
	if err != nil {
		return nil, err
	}
	amount := txn.Amount.Round(0).IntPart()
	items, err := json.Marshal([]zaloItem{{ItemID: orderID, ItemName: description, ItemPrice: amount, ItemQuantity: 1}})
	if err != nil {
		return nil, err
	}

	appUser := "user_" + user
	appTime := strconv.FormatInt(z.now().UnixMilli(), 10)
	amountStr := strconv.FormatInt(amount, 10)
	macData := strings.Join([]string{z.cfg.AppID, appTransID, appUser, amountStr, appTime, string(embed), string(items)}, "|")

	form := url.Values{}
	form.Set("app_id", z.cfg.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("app_user", appUser)
	form.Set("amount", amountStr)
	form.Set("app_time", appTime)
	form.Set("embed_data", string(embed))
	form.Set("item", string(items))
	form.Set("description", description)
	form.Set("bank_code", "")
	form.Set("callback_url", z.payments.CallbackURL(CodeZaloPay))
	form.Set("mac", SignSHA256(z.cfg.Key1, []byte(macData)))

	var resp zaloCreateResponse
	if err := z.remote.postForm(ctx, "create", z.endpoint("create"), form, &resp); err != nil {
		return nil, err
	}
	if resp.ReturnCode.String() != "1" {
		return nil, fmt.Errorf("zalopay rejected order %s: %s (%s/%s)", appTransID,
			resp.ReturnMessage, resp.ReturnCode, resp.SubReturnCode)
	}

	payload := resp.QRCode
	if payload == "" {
		payload = resp.OrderURL
	}
	z.logger.Info().Str("transaction_id", txn.ID.String()).Str("correlation_id", appTransID).Msg("zalopay order created")

	return &model.PaymentArtifact{
		Payload:       payload,
		QRCodeURL:     QRImageURL(payload),
		PaymentURL:    resp.OrderURL,
		CorrelationID: appTransID,
		Extra: map[string]any{
			"app_trans_id":   appTransID,
			"order_url":      resp.OrderURL,
			"zp_trans_token": resp.ZPTransToken,
			"qr_code":        resp.QRCode,
		},
	}, nil
}

func (z *ZaloPay) endpoint(op string) string {
	return strings.TrimRight(z.cfg.Endpoint, "/") + "/" + op
}

func (z *ZaloPay) MapStatus(code string) model.CanonicalStatus {
	switch code {
	case "1":
		return model.CanonicalCompleted
	case "2":
		return model.CanonicalFailed
	default:
		return model.CanonicalPending
	}
}

// VerifySignature checks a callback MAC, keyed with key2 over the raw data string.
func (z *ZaloPay) VerifySignature(payload []byte, mac string) bool {
	return verifySHA256(z.cfg.Key2, payload, mac)
}

type zaloCallback struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type"`
}

// ParseCallback handles {data, mac}. ZaloPay only calls back on success.
func (z *ZaloPay) ParseCallback(body []byte) (*Outcome, error) {
	var cb zaloCallback
	if err := json.Unmarshal(body, &cb); err != nil || cb.Data == "" || cb.MAC == "" {
		return nil, fmt.Errorf("%w: missing data or mac", model.ErrMalformedCallback)
	}
	if !z.VerifySignature([]byte(cb.Data), cb.MAC) {
		return nil, model.ErrInvalidSignature
	}

	data, err := decodeObject([]byte(cb.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedCallback, err)
	}
	appTransID := field(data, "app_trans_id")
	if appTransID == "" {
		return nil, model.ErrMissingCorrelationKey
	}
	amount, err := parseAmount(field(data, "amount"))
	if err != nil {
		return nil, err
	}

	return &Outcome{
		CorrelationID:        appTransID,
		GatewayTransactionID: appTransID,
		ProviderCode:         "1",
		Status:               model.CanonicalCompleted,
		Amount:               amount,
		Message:              "zalopay callback",
		Data:                 data,
	}, nil
}

func (z *ZaloPay) QueryRemote(ctx context.Context, txn *model.PaymentTransaction) (*Outcome, error) {
	appTransID := txn.CorrelationKey()
	if txn.GatewayTransactionID == nil {
		appTransID = AppTransID(txn)
	}

	form := url.Values{}
	form.Set("app_id", z.cfg.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("mac", SignSHA256(z.cfg.Key1, []byte(z.cfg.AppID+"|"+appTransID+"|"+z.cfg.Key1)))

	var resp map[string]any
	if err := z.remote.postForm(ctx, "query", z.endpoint("query"), form, &resp); err != nil {
		z.logger.Warn().Err(err).Str("correlation_id", appTransID).Msg("zalopay query failed")
		return nil, err
	}

	amount, err := parseAmount(field(resp, "amount"))
	if err != nil {
		return nil, &TransientError{Gateway: CodeZaloPay, Op: "query", Err: err}
	}
	code := field(resp, "return_code")
	return &Outcome{
		CorrelationID:        appTransID,
		GatewayTransactionID: appTransID,
		ProviderCode:         code,
		Status:               z.MapStatus(code),
		Amount:               amount,
		Message:              field(resp, "return_message"),
		Data:                 resp,
	}, nil
}
