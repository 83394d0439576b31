package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPaymentHandler() (*PaymentHandler, *MockPaymentService) {
	svc := new(MockPaymentService)
	return NewPaymentHandler(svc, zerolog.Nop()), svc
}

func TestPaymentHandler_Callback(t *testing.T) {
	txn := &model.PaymentTransaction{ID: uuid.New(), Status: model.PaymentCompleted, Amount: decimal.NewFromInt(355250)}
	momoBody := `{"partnerCode":"MOMO","orderId":"abc","resultCode":0,"signature":"deadbeef"}`

	tests := []struct {
		name           string
		gateway        string
		method         string
		target         string
		body           any
		expectedBody   []byte
		mockReturn     *model.ReconcileResult
		mockError      error
		expectedStatus int
		expectedAck    string
		expectedCode   string
	}{
		{
			name:           "Applied",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           momoBody,
			expectedBody:   []byte(momoBody),
			mockReturn:     &model.ReconcileResult{Transaction: txn, OrderStatus: model.OrderConfirmed, Cascaded: true},
			expectedStatus: http.StatusOK,
			expectedAck:    "ok",
		},
		{
			name:           "Duplicate delivery",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           momoBody,
			expectedBody:   []byte(momoBody),
			mockReturn:     &model.ReconcileResult{Transaction: txn, OrderStatus: model.OrderConfirmed, Duplicate: true},
			expectedStatus: http.StatusOK,
			expectedAck:    "ok",
		},
		{
			name:           "VNPay IPN in query string",
			gateway:        "vnpay",
			method:         http.MethodGet,
			target:         "/api/payments/callback/vnpay?vnp_TxnRef=abc&vnp_ResponseCode=00",
			expectedBody:   []byte("vnp_TxnRef=abc&vnp_ResponseCode=00"),
			mockReturn:     &model.ReconcileResult{Transaction: txn, OrderStatus: model.OrderConfirmed},
			expectedStatus: http.StatusOK,
			expectedAck:    "ok",
		},
		{
			name:           "Unknown transaction is acknowledged",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           momoBody,
			expectedBody:   []byte(momoBody),
			mockError:      model.ErrPaymentNotFound,
			expectedStatus: http.StatusOK,
			expectedAck:    "ignored",
		},
		{
			name:           "Invalid signature",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           momoBody,
			expectedBody:   []byte(momoBody),
			mockError:      model.ErrInvalidSignature,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   model.ErrCodeInvalidSignature,
		},
		{
			name:           "Amount mismatch",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           momoBody,
			expectedBody:   []byte(momoBody),
			mockError:      model.ErrAmountMismatch,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   model.ErrCodeAmountMismatch,
		},
		{
			name:           "Malformed payload",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           "not json",
			expectedBody:   []byte("not json"),
			mockError:      model.ErrMalformedCallback,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeMalformedCallback,
		},
		{
			name:           "Unknown gateway",
			gateway:        "paypal",
			method:         http.MethodPost,
			target:         "/api/payments/callback/paypal",
			body:           "{}",
			expectedBody:   []byte("{}"),
			mockError:      model.ErrUnknownGateway,
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeUnknownGateway,
		},
		{
			name:           "Finalized transaction",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           momoBody,
			expectedBody:   []byte(momoBody),
			mockError:      model.ErrPaymentFinalized,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodePaymentFinalized,
		},
		{
			name:           "Storage failure lets the gateway retry",
			gateway:        "momo",
			method:         http.MethodPost,
			target:         "/api/payments/callback/momo",
			body:           momoBody,
			expectedBody:   []byte(momoBody),
			mockError:      errors.New("deadlock detected"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := newPaymentHandler()
			svc.On("ApplyCallback", mock.Anything, tt.gateway, tt.expectedBody).Return(tt.mockReturn, tt.mockError)

			req := newRequest(t, tt.method, tt.target, tt.body, map[string]string{"gateway": tt.gateway})
			w := httptest.NewRecorder()
			h.Callback(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedAck != "" {
				var ack callbackAck
				require.NoError(t, json.NewDecoder(w.Body).Decode(&ack))
				assert.Equal(t, tt.expectedAck, ack.Status)
				if tt.mockReturn != nil {
					assert.Equal(t, tt.mockReturn.Duplicate, ack.Duplicate)
					assert.Equal(t, model.PaymentCompleted, ack.Payment)
					assert.Equal(t, model.OrderConfirmed, ack.OrderStatus)
				}
			} else {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Create(t *testing.T) {
	orderID := uuid.New()
	body := &model.CreatePaymentRequest{OrderID: orderID, PaymentMethod: "vnpay"}
	txn := &model.PaymentTransaction{ID: uuid.New(), OrderID: orderID, Status: model.PaymentPending}

	tests := []struct {
		name           string
		body           any
		mockReturn     *model.CreatePaymentResult
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Created",
			body:           body,
			mockReturn:     &model.CreatePaymentResult{Transaction: txn},
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Existing active payment",
			body:           body,
			mockReturn:     &model.CreatePaymentResult{Transaction: txn, Existing: true},
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Order not payable",
			body:           body,
			mockError:      model.ErrOrderNotPayable,
			expectedStatus: http.StatusConflict,
			expectService:  true,
		},
		{
			name:           "Inactive method",
			body:           body,
			mockError:      model.ErrPaymentMethodInactive,
			expectedStatus: http.StatusBadRequest,
			expectService:  true,
		},
		{
			name:           "Missing order",
			body:           &model.CreatePaymentRequest{PaymentMethod: "vnpay"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid JSON",
			body:           "[1,2",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := newPaymentHandler()
			if tt.expectService {
				svc.On("CreatePayment", mock.Anything, body).Return(tt.mockReturn, tt.mockError)
			}

			w := httptest.NewRecorder()
			h.Create(w, newRequest(t, http.MethodPost, "/api/payments", tt.body, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Confirm(t *testing.T) {
	id := uuid.New()
	path := map[string]string{"id": id.String()}
	body := &model.ManualConfirmationRequest{Status: "completed", Note: "bank statement 14/03"}

	tests := []struct {
		name           string
		mockError      error
		expectedStatus int
	}{
		{name: "Confirmed", expectedStatus: http.StatusOK},
		{name: "Not pending", mockError: model.ErrPaymentNotPending, expectedStatus: http.StatusConflict},
		{name: "Bad outcome", mockError: model.ErrInvalidManualOutcome, expectedStatus: http.StatusBadRequest},
		{name: "Unknown payment", mockError: model.ErrPaymentNotFound, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := newPaymentHandler()
			var ret *model.ReconcileResult
			if tt.mockError == nil {
				ret = &model.ReconcileResult{
					Transaction: &model.PaymentTransaction{ID: id, Status: model.PaymentCompleted},
					OrderStatus: model.OrderConfirmed,
				}
			}
			svc.On("ApplyManualConfirmation", mock.Anything, id, body).Return(ret, tt.mockError)

			w := httptest.NewRecorder()
			h.Confirm(w, newRequest(t, http.MethodPost, "/", body, path))

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Cancel(t *testing.T) {
	id := uuid.New()
	path := map[string]string{"id": id.String()}

	t.Run("default reason", func(t *testing.T) {
		h, svc := newPaymentHandler()
		svc.On("CancelPayment", mock.Anything, id, "").Return(&model.ReconcileResult{
			Transaction: &model.PaymentTransaction{ID: id, Status: model.PaymentCancelled},
		}, nil)

		w := httptest.NewRecorder()
		h.Cancel(w, newRequest(t, http.MethodPost, "/", nil, path))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("already settled", func(t *testing.T) {
		h, svc := newPaymentHandler()
		svc.On("CancelPayment", mock.Anything, id, "duplicate").Return(nil, model.ErrPaymentNotCancellable)

		w := httptest.NewRecorder()
		h.Cancel(w, newRequest(t, http.MethodPost, "/", &model.CancelPaymentRequest{Reason: "duplicate"}, path))

		assert.Equal(t, http.StatusConflict, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		h, svc := newPaymentHandler()

		w := httptest.NewRecorder()
		h.Cancel(w, newRequest(t, http.MethodPost, "/", nil, map[string]string{"id": "42"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertExpectations(t)
	})
}

func TestPaymentHandler_Query(t *testing.T) {
	t.Run("inconclusive answer is still 200", func(t *testing.T) {
		h, svc := newPaymentHandler()
		svc.On("QueryStatus", mock.Anything, "PAY-REF-1").Return(&model.QueryStatusResult{
			Status:       model.CanonicalPending,
			Inconclusive: true,
		}, nil)

		w := httptest.NewRecorder()
		h.Query(w, newRequest(t, http.MethodPost, "/api/payments/query", &model.QueryStatusRequest{CorrelationID: "PAY-REF-1"}, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got model.QueryStatusResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.True(t, got.Inconclusive)
		svc.AssertExpectations(t)
	})

	t.Run("missing key", func(t *testing.T) {
		h, svc := newPaymentHandler()
		svc.On("QueryStatus", mock.Anything, "").Return(nil, model.ErrMissingCorrelationKey)

		w := httptest.NewRecorder()
		h.Query(w, newRequest(t, http.MethodPost, "/api/payments/query", &model.QueryStatusRequest{}, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodeMissingCorrelationKey, decodeError(t, w).Error)
	})
}

func TestPaymentHandler_ListMethods(t *testing.T) {
	methods := []model.PaymentMethod{{ID: "PM002", Code: "momo", Name: "MoMo", IsActive: true}}

	tests := []struct {
		name       string
		target     string
		activeOnly bool
	}{
		{name: "active only by default", target: "/api/payment-methods", activeOnly: true},
		{name: "all methods", target: "/api/payment-methods?all=true", activeOnly: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := newPaymentHandler()
			svc.On("ListMethods", mock.Anything, tt.activeOnly).Return(methods, nil)

			w := httptest.NewRecorder()
			h.ListMethods(w, newRequest(t, http.MethodGet, tt.target, nil, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_GetByID(t *testing.T) {
	id := uuid.New()
	h, svc := newPaymentHandler()
	svc.On("GetTransaction", mock.Anything, id).Return(nil, model.ErrPaymentNotFound)

	w := httptest.NewRecorder()
	h.GetByID(w, newRequest(t, http.MethodGet, "/", nil, map[string]string{"id": id.String()}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, model.ErrCodePaymentNotFound, decodeError(t, w).Error)
	svc.AssertExpectations(t)
}
