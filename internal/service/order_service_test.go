package service

import (
	"context"
	"encoding/json"
	"testing"

	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	orders    *MockOrderRepository
	products  *MockProductRepository
	publisher *MockPublisher
	tx        *MockTx
	svc       OrderService
	order     *model.Order
	events    []*model.OrderEvent
}

func newOrderFixture(status model.OrderStatus) *orderFixture {
	f := &orderFixture{
		orders:    &MockOrderRepository{},
		products:  &MockProductRepository{},
		publisher: &MockPublisher{},
		tx:        newMockTx(),
		order: &model.Order{
			ID:              uuid.New(),
			CustomerID:      "C1",
			Status:          status,
			TotalPrice:      dec("350000"),
			ShippingAddress: "12 Nguyen Hue, District 1",
		},
	}
	f.svc = NewOrderService(f.orders, f.products, f.publisher, zerolog.Nop())

	f.orders.On("BeginTx", mock.Anything).Return(f.tx, nil).Maybe()
	f.orders.On("GetForUpdate", mock.Anything, f.tx, f.order.ID).Return(f.order, nil).Maybe()
	f.orders.On("AppendEvent", mock.Anything, f.tx, mock.AnythingOfType("*model.OrderEvent")).
		Run(func(args mock.Arguments) { f.events = append(f.events, args.Get(2).(*model.OrderEvent)) }).
		Return(nil).Maybe()
	f.publisher.On("Publish", mock.Anything, model.TopicOrderStatusChanged, f.order.ID.String(), mock.Anything).Return(nil).Maybe()
	return f
}

func TestOrderService_Get(t *testing.T) {
	f := newOrderFixture(model.OrderPending)
	lines := []model.OrderLine{{ID: uuid.New(), OrderID: f.order.ID, ProductID: "P1", Quantity: 1}}
	events := []model.OrderEvent{{ID: uuid.New(), OrderID: f.order.ID, Kind: model.EventCreated, Payload: json.RawMessage(`{}`)}}
	f.orders.On("GetByID", mock.Anything, f.order.ID).Return(f.order, lines, nil)
	f.orders.On("ListEvents", mock.Anything, f.order.ID).Return(events, nil)

	details, err := f.svc.Get(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, f.order, details.Order)
	assert.Len(t, details.Lines, 1)
	assert.Len(t, details.Events, 1)

	missing := uuid.New()
	f.orders.On("GetByID", mock.Anything, missing).Return(nil, nil, nil)
	_, err = f.svc.Get(context.Background(), missing)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestOrderService_ListByStatus_RejectsUnknownStatus(t *testing.T) {
	f := newOrderFixture(model.OrderPending)
	_, err := f.svc.ListByStatus(context.Background(), "teleported", 10, 0)
	assert.ErrorIs(t, err, model.ErrInvalidStatus)

	f.orders.On("ListByStatus", mock.Anything, model.OrderShipped, 10, 0).Return([]model.Order{*f.order}, nil)
	orders, err := f.svc.ListByStatus(context.Background(), "shipped", 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    model.OrderStatus
		to      string
		wantErr error
	}{
		{name: "pending to confirmed", from: model.OrderPending, to: "confirmed"},
		{name: "confirmed to shipped", from: model.OrderConfirmed, to: "shipped"},
		{name: "shipped to delivered", from: model.OrderShipped, to: "delivered"},
		{name: "skipping a step", from: model.OrderPending, to: "shipped", wantErr: model.ErrInvalidTransition},
		{name: "backwards", from: model.OrderShipped, to: "confirmed", wantErr: model.ErrInvalidTransition},
		{name: "out of terminal", from: model.OrderDelivered, to: "shipped", wantErr: model.ErrInvalidTransition},
		{name: "unknown status", from: model.OrderPending, to: "lost", wantErr: model.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(tt.from)
			next := model.OrderStatus(tt.to)
			f.orders.On("UpdateStatus", mock.Anything, f.tx, f.order.ID, next).Return(nil).Maybe()

			order, err := f.svc.UpdateStatus(context.Background(), f.order.ID, &model.UpdateStatusRequest{Status: tt.to, Note: "ops"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, f.tx.committed)
				f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, next, order.Status)
			assert.True(t, f.tx.committed)
			require.Len(t, f.events, 1)
			assert.Equal(t, model.EventStatusChanged, f.events[0].Kind)
			f.publisher.AssertNumberOfCalls(t, "Publish", 1)
		})
	}
}

func TestOrderService_Cancel_RestoresTrackedStock(t *testing.T) {
	f := newOrderFixture(model.OrderConfirmed)
	lines := []model.OrderLine{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P-untracked", Quantity: 1},
	}
	f.orders.On("GetLines", mock.Anything, f.tx, f.order.ID).Return(lines, nil)
	f.products.On("RestoreStock", mock.Anything, f.tx, "P1", 2).Return(true, nil)
	f.products.On("RestoreStock", mock.Anything, f.tx, "P-untracked", 1).Return(false, nil)
	f.orders.On("UpdateStatus", mock.Anything, f.tx, f.order.ID, model.OrderCancelled).Return(nil)

	order, err := f.svc.UpdateStatus(context.Background(), f.order.ID, &model.UpdateStatusRequest{Status: "cancelled", Note: "customer request"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.Status)

	require.Len(t, f.events, 1)
	assert.Equal(t, model.EventCancelled, f.events[0].Kind)
	var payload model.Cancellation
	require.NoError(t, json.Unmarshal(f.events[0].Payload, &payload))
	assert.Equal(t, model.OrderConfirmed, payload.From)
	assert.Equal(t, "customer request", payload.Reason)
	assert.Equal(t, []model.StockRestored{{ProductID: "P1", Quantity: 2}}, payload.Restored)
	f.products.AssertExpectations(t)
}

func TestOrderService_Cancel_NotCancellable(t *testing.T) {
	for _, st := range []model.OrderStatus{model.OrderShipped, model.OrderDelivered, model.OrderCancelled} {
		t.Run(string(st), func(t *testing.T) {
			f := newOrderFixture(st)
			_, err := f.svc.Cancel(context.Background(), f.order.ID, "")
			assert.ErrorIs(t, err, model.ErrOrderNotCancellable)
			f.products.AssertNotCalled(t, "RestoreStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_Cancel_NotFound(t *testing.T) {
	f := newOrderFixture(model.OrderPending)
	missing := uuid.New()
	f.orders.On("GetForUpdate", mock.Anything, f.tx, missing).Return(nil, nil)

	_, err := f.svc.Cancel(context.Background(), missing, "")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestOrderService_UpdateShippingAddress(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		f := newOrderFixture(model.OrderPending)
		_, err := f.svc.UpdateShippingAddress(context.Background(), f.order.ID, "  short  ")
		assert.ErrorIs(t, err, model.ErrInvalidAddress)
	})

	t.Run("locked once shipped", func(t *testing.T) {
		f := newOrderFixture(model.OrderShipped)
		_, err := f.svc.UpdateShippingAddress(context.Background(), f.order.ID, "1 Pasteur Street, District 1")
		assert.ErrorIs(t, err, model.ErrAddressLocked)
	})

	t.Run("updates confirmed order", func(t *testing.T) {
		f := newOrderFixture(model.OrderConfirmed)
		f.orders.On("UpdateShippingAddress", mock.Anything, f.tx, f.order.ID, "1 Pasteur Street, District 1").Return(nil)

		order, err := f.svc.UpdateShippingAddress(context.Background(), f.order.ID, " 1 Pasteur Street, District 1 ")
		require.NoError(t, err)
		assert.Equal(t, "1 Pasteur Street, District 1", order.ShippingAddress)
		require.Len(t, f.events, 1)
		assert.Equal(t, model.EventAddressChanged, f.events[0].Kind)
	})
}

func TestOrderService_AddTracking(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		f := newOrderFixture(model.OrderShipped)
		_, err := f.svc.AddTracking(context.Background(), f.order.ID, &model.TrackingRequest{TrackingNumber: "VN123"})
		var de *model.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, model.ErrCodeMissingField, de.Code)
	})

	t.Run("not shipped", func(t *testing.T) {
		f := newOrderFixture(model.OrderConfirmed)
		_, err := f.svc.AddTracking(context.Background(), f.order.ID, &model.TrackingRequest{TrackingNumber: "VN123", Carrier: "GHN"})
		assert.ErrorIs(t, err, model.ErrTrackingNotAllowed)
	})

	t.Run("shipped", func(t *testing.T) {
		f := newOrderFixture(model.OrderShipped)
		info, err := f.svc.AddTracking(context.Background(), f.order.ID, &model.TrackingRequest{TrackingNumber: "VN123", Carrier: "GHN"})
		require.NoError(t, err)
		assert.Equal(t, "VN123", info.TrackingNumber)
		assert.False(t, info.AddedAt.IsZero())
		require.Len(t, f.events, 1)
		assert.Equal(t, model.EventTrackingAdded, f.events[0].Kind)
	})
}

func TestOrderService_RecordRefund(t *testing.T) {
	tests := []struct {
		name    string
		status  model.OrderStatus
		req     model.RefundRequest
		wantErr error
	}{
		{name: "missing reason", status: model.OrderDelivered, req: model.RefundRequest{Amount: dec("100"), Method: "bank"}, wantErr: model.ErrInvalidRefund},
		{name: "negative amount", status: model.OrderDelivered, req: model.RefundRequest{Amount: dec("-1"), Reason: "r", Method: "bank"}, wantErr: model.ErrInvalidRefund},
		{name: "not refundable", status: model.OrderShipped, req: model.RefundRequest{Amount: dec("100"), Reason: "r", Method: "bank"}, wantErr: model.ErrRefundNotAllowed},
		{name: "exceeds total", status: model.OrderDelivered, req: model.RefundRequest{Amount: dec("350000.01"), Reason: "r", Method: "bank"}, wantErr: model.ErrRefundExceedsTotal},
		{name: "delivered full refund", status: model.OrderDelivered, req: model.RefundRequest{Amount: dec("350000"), Reason: "damaged", Method: "bank"}},
		{name: "cancelled", status: model.OrderCancelled, req: model.RefundRequest{Amount: dec("0"), Reason: "goodwill", Method: "voucher"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(tt.status)
			record, err := f.svc.RecordRefund(context.Background(), f.order.ID, &tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.events)
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, `^RF-[0-9A-F]{8}$`, record.RefundID)
			require.Len(t, f.events, 1)
			assert.Equal(t, model.EventRefundRecorded, f.events[0].Kind)
			f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
