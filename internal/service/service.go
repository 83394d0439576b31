package service

import (
	"context"
	"errors"
	"time"

	"kart-checkout/internal/gateway"
	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("kart-checkout/service")

// CartService defines operations on a customer's cart.
type CartService interface {
	// AddLine adds a product variant to the customer's active cart, merging
	// into an open line holding the same variant.
	AddLine(ctx context.Context, req *model.AddLineRequest) (*model.Cart, error)

	// UpdateLineQuantity sets the quantity of an open line.
	UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) (*model.Cart, error)

	// RemoveLine deletes an open line.
	RemoveLine(ctx context.Context, lineID uuid.UUID) (*model.Cart, error)

	// GetCart retrieves a cart with its lines.
	GetCart(ctx context.Context, id uuid.UUID) (*model.Cart, error)
}

// CheckoutService converts cart lines into an order and its first payment.
type CheckoutService interface {
	Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutResponse, error)
}

// OrderService defines the order lifecycle operations.
type OrderService interface {
	// Get retrieves an order with its lines and audit trail.
	Get(ctx context.Context, id uuid.UUID) (*model.OrderDetails, error)

	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]model.Order, error)

	// UpdateStatus applies one transition of the order state machine.
	UpdateStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest) (*model.Order, error)

	// Cancel cancels a pending or confirmed order and restores tracked stock.
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error)

	UpdateShippingAddress(ctx context.Context, id uuid.UUID, address string) (*model.Order, error)
	AddTracking(ctx context.Context, id uuid.UUID, req *model.TrackingRequest) (*model.TrackingInfo, error)

	// RecordRefund records refund intent. It moves no money and keeps the status.
	RecordRefund(ctx context.Context, id uuid.UUID, req *model.RefundRequest) (*model.RefundRecord, error)
}

// PaymentService reconciles gateway outcomes with transactions and orders.
type PaymentService interface {
	// ApplyCallback authenticates a gateway push and applies its outcome.
	ApplyCallback(ctx context.Context, gatewayCode string, body []byte) (*model.ReconcileResult, error)

	// ApplyManualConfirmation applies an operator outcome to a pending transaction.
	ApplyManualConfirmation(ctx context.Context, id uuid.UUID, req *model.ManualConfirmationRequest) (*model.ReconcileResult, error)

	// QueryStatus polls the gateway and applies a conclusive answer.
	QueryStatus(ctx context.Context, correlationID string) (*model.QueryStatusResult, error)

	CancelPayment(ctx context.Context, id uuid.UUID, reason string) (*model.ReconcileResult, error)

	// CreatePayment returns the active transaction for the order and method,
	// creating one when none exists.
	CreatePayment(ctx context.Context, req *model.CreatePaymentRequest) (*model.CreatePaymentResult, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*model.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentTransaction, error)
	ListMethods(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error)

	// PollPending queries every pending transaction older than olderThan.
	PollPending(ctx context.Context, olderThan time.Duration, limit int) (*model.PollSummary, error)
}

// Gateways looks adapters up by payment method code.
type Gateways interface {
	Get(code string) (gateway.Adapter, bool)
}

// rollback is deferred after BeginTx; it is a no-op once the tx committed.
func rollback(ctx context.Context, tx pgx.Tx, logger zerolog.Logger) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}

// appendEvent encodes payload and appends it to the order's audit trail.
func appendEvent(ctx context.Context, tx pgx.Tx, orders orderEventWriter, orderID uuid.UUID, kind model.EventKind, payload any) error {
	event, err := model.NewOrderEvent(orderID, kind, payload)
	if err != nil {
		return err
	}
	return orders.AppendEvent(ctx, tx, &event)
}

type orderEventWriter interface {
	AppendEvent(ctx context.Context, tx pgx.Tx, event *model.OrderEvent) error
}
