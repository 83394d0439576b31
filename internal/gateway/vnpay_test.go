package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"kart-checkout/internal/config"
	"kart-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVNPayConfig = config.VNPayConfig{
	TmnCode:    "VNPTEST1",
	HashSecret: "vnpay-secret",
}

func vnpayIPN(txnRef, amount, responseCode string) url.Values {
	v := url.Values{}
	v.Set("vnp_TmnCode", testVNPayConfig.TmnCode)
	v.Set("vnp_TxnRef", txnRef)
	v.Set("vnp_Amount", amount)
	v.Set("vnp_ResponseCode", responseCode)
	v.Set("vnp_TransactionNo", "14012345")
	v.Set("vnp_OrderInfo", "Payment for order 42")
	v.Set("vnp_SecureHash", SignSHA512(testVNPayConfig.HashSecret, vnpayCanonical(v)))
	return v
}

func TestVNPay_CreateArtifact(t *testing.T) {
	a := NewVNPay(testVNPayConfig, testPayments, http.DefaultClient, zerolog.Nop())
	txn := testTransaction("150000")
	method := &model.PaymentMethod{Code: CodeVNPay}

	art, err := a.CreateArtifact(context.Background(), ArtifactRequest{Transaction: txn, Method: method})
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(art.Payload), &payload))
	assert.Equal(t, "15000000", payload["vnp_Amount"])
	assert.Equal(t, txn.ID.String(), payload["vnp_TxnRef"])
	assert.Equal(t, "20260315033000", payload["vnp_CreateDate"], "create date is GMT+7")
	assert.Equal(t, "https://shop.example.com/api/payments/callback/vnpay", payload["vnp_ReturnUrl"])

	params := url.Values{}
	for k, v := range payload {
		params.Set(k, v)
	}
	assert.True(t, a.VerifySignature(vnpayCanonical(params), payload["vnp_SecureHash"]))

	assert.True(t, strings.HasPrefix(art.PaymentURL, vnpayPayURL+"?"))
	assert.Equal(t, txn.ID.String(), art.CorrelationID)
}

func TestVNPay_CreateArtifact_PayURLOverride(t *testing.T) {
	a := NewVNPay(testVNPayConfig, testPayments, http.DefaultClient, zerolog.Nop())
	method := &model.PaymentMethod{Code: CodeVNPay, APIConfig: map[string]any{"pay_url": "https://pay.vnpay.vn/vpcpay.html"}}

	art, err := a.CreateArtifact(context.Background(), ArtifactRequest{Transaction: testTransaction("1000"), Method: method})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(art.PaymentURL, "https://pay.vnpay.vn/vpcpay.html?"))
}

func TestVNPay_ParseCallback(t *testing.T) {
	a := NewVNPay(testVNPayConfig, testPayments, http.DefaultClient, zerolog.Nop())
	txn := testTransaction("150000")

	t.Run("success", func(t *testing.T) {
		out, err := a.ParseCallback([]byte(vnpayIPN(txn.ID.String(), "15000000", "00").Encode()))
		require.NoError(t, err)
		assert.Equal(t, model.CanonicalCompleted, out.Status)
		assert.Equal(t, "150000", out.Amount.String())
		assert.Equal(t, "14012345", out.GatewayTransactionID)
		assert.NotContains(t, out.Data, "vnp_SecureHash")
	})

	t.Run("customer cancelled", func(t *testing.T) {
		out, err := a.ParseCallback([]byte(vnpayIPN(txn.ID.String(), "15000000", "24").Encode()))
		require.NoError(t, err)
		assert.Equal(t, model.CanonicalFailed, out.Status)
	})

	t.Run("suspicious stays pending", func(t *testing.T) {
		out, err := a.ParseCallback([]byte(vnpayIPN(txn.ID.String(), "15000000", "07").Encode()))
		require.NoError(t, err)
		assert.Equal(t, model.CanonicalPending, out.Status)
	})

	t.Run("upper-case hash accepted", func(t *testing.T) {
		v := vnpayIPN(txn.ID.String(), "15000000", "00")
		v.Set("vnp_SecureHash", strings.ToUpper(v.Get("vnp_SecureHash")))
		_, err := a.ParseCallback([]byte(v.Encode()))
		assert.NoError(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		v := vnpayIPN(txn.ID.String(), "15000000", "00")
		v.Set("vnp_Amount", "100")
		_, err := a.ParseCallback([]byte(v.Encode()))
		assert.ErrorIs(t, err, model.ErrInvalidSignature)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := a.ParseCallback(nil)
		assert.ErrorIs(t, err, model.ErrMalformedCallback)
	})
}

func TestVNPay_QueryRemote(t *testing.T) {
	txn := testTransaction("150000")

	tests := []struct {
		name     string
		response string
		want     model.CanonicalStatus
	}{
		{"paid", `{"vnp_ResponseCode":"00","vnp_TransactionStatus":"00","vnp_Amount":"15000000","vnp_TransactionNo":"99"}`, model.CanonicalCompleted},
		{"processing", `{"vnp_ResponseCode":"00","vnp_TransactionStatus":"01","vnp_Amount":"15000000"}`, model.CanonicalPending},
		{"error", `{"vnp_ResponseCode":"00","vnp_TransactionStatus":"02","vnp_Amount":"15000000"}`, model.CanonicalFailed},
		{"request rejected", `{"vnp_ResponseCode":"91","vnp_Message":"not found"}`, model.CanonicalPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req vnpayQueryRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "querydr", req.Command)
				assert.Equal(t, txn.ID.String(), req.TxnRef)
				assert.Len(t, req.SecureHash, 128)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			cfg := testVNPayConfig
			cfg.Endpoint = srv.URL
			a := NewVNPay(cfg, testPayments, srv.Client(), zerolog.Nop())

			out, err := a.QueryRemote(context.Background(), txn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
		})
	}
}
