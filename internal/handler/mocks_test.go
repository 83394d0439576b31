package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) AddLine(ctx context.Context, req *model.AddLineRequest) (*model.Cart, error) {
	args := m.Called(ctx, req)
	return cartResult(args)
}

func (m *MockCartService) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) (*model.Cart, error) {
	args := m.Called(ctx, lineID, quantity)
	return cartResult(args)
}

func (m *MockCartService) RemoveLine(ctx context.Context, lineID uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, lineID)
	return cartResult(args)
}

func (m *MockCartService) GetCart(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, id)
	return cartResult(args)
}

func cartResult(args mock.Arguments) (*model.Cart, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutResponse), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Get(ctx context.Context, id uuid.UUID) (*model.OrderDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderDetails), args.Error(1)
}

func (m *MockOrderService) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) ListByStatus(ctx context.Context, status string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest) (*model.Order, error) {
	args := m.Called(ctx, id, req)
	return orderResult(args)
}

func (m *MockOrderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error) {
	args := m.Called(ctx, id, reason)
	return orderResult(args)
}

func (m *MockOrderService) UpdateShippingAddress(ctx context.Context, id uuid.UUID, address string) (*model.Order, error) {
	args := m.Called(ctx, id, address)
	return orderResult(args)
}

func (m *MockOrderService) AddTracking(ctx context.Context, id uuid.UUID, req *model.TrackingRequest) (*model.TrackingInfo, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TrackingInfo), args.Error(1)
}

func (m *MockOrderService) RecordRefund(ctx context.Context, id uuid.UUID, req *model.RefundRequest) (*model.RefundRecord, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRecord), args.Error(1)
}

func orderResult(args mock.Arguments) (*model.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) ApplyCallback(ctx context.Context, gatewayCode string, body []byte) (*model.ReconcileResult, error) {
	args := m.Called(ctx, gatewayCode, body)
	return reconcileResult(args)
}

func (m *MockPaymentService) ApplyManualConfirmation(ctx context.Context, id uuid.UUID, req *model.ManualConfirmationRequest) (*model.ReconcileResult, error) {
	args := m.Called(ctx, id, req)
	return reconcileResult(args)
}

func (m *MockPaymentService) QueryStatus(ctx context.Context, correlationID string) (*model.QueryStatusResult, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueryStatusResult), args.Error(1)
}

func (m *MockPaymentService) CancelPayment(ctx context.Context, id uuid.UUID, reason string) (*model.ReconcileResult, error) {
	args := m.Called(ctx, id, reason)
	return reconcileResult(args)
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, req *model.CreatePaymentRequest) (*model.CreatePaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreatePaymentResult), args.Error(1)
}

func (m *MockPaymentService) GetTransaction(ctx context.Context, id uuid.UUID) (*model.PaymentTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentTransaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentService) ListMethods(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentMethod), args.Error(1)
}

func (m *MockPaymentService) PollPending(ctx context.Context, olderThan time.Duration, limit int) (*model.PollSummary, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PollSummary), args.Error(1)
}

func reconcileResult(args mock.Arguments) (*model.ReconcileResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReconcileResult), args.Error(1)
}

// jsonBody encodes v, passing raw strings through untouched.
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return bytes.NewBufferString(s)
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// newRequest builds a request with the given path values set.
func newRequest(t *testing.T, method, target string, body any, pathValues map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}
