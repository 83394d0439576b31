package model

import (
	"time"

	"github.com/google/uuid"
)

// Topics status events are published to.
const (
	TopicOrderStatusChanged   = "order.status_changed"
	TopicPaymentStatusChanged = "payment.status_changed"
)

// OrderStatusChangedEvent is published after an order status commit.
// From is empty for newly created orders.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID   `json:"order_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// PaymentStatusChangedEvent is published after a payment status commit.
type PaymentStatusChangedEvent struct {
	TransactionID uuid.UUID     `json:"transaction_id"`
	OrderID       uuid.UUID     `json:"order_id"`
	From          PaymentStatus `json:"from"`
	To            PaymentStatus `json:"to"`
	Source        string        `json:"source"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
