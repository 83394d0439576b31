package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order represents a customer order. TotalPrice is fixed at creation.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"order_id"`
	CustomerID      string          `json:"customerId" db:"customer_id"`
	Status          OrderStatus     `json:"status" db:"order_status"`
	TotalPrice      decimal.Decimal `json:"totalPrice" db:"total_price"`
	PaymentMethod   string          `json:"paymentMethod" db:"payment_method"`
	ShippingAddress string          `json:"shippingAddress" db:"shipping_address"`
	Discount        decimal.Decimal `json:"discount" db:"discount"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderLine is the immutable snapshot of a cart line taken at checkout.
type OrderLine struct {
	ID          uuid.UUID       `json:"id" db:"order_detail_id"`
	OrderID     uuid.UUID       `json:"-" db:"order_id"`
	ProductID   string          `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Size        string          `json:"size" db:"size"`
	Color       *string         `json:"color,omitempty" db:"color"`
	Image       *string         `json:"image,omitempty" db:"image"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	TotalPrice  decimal.Decimal `json:"totalPrice" db:"total_price"`
}

// OrderLineFromCart copies the snapshot fields of a cart line.
func OrderLineFromCart(orderID uuid.UUID, l CartLine) OrderLine {
	return OrderLine{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		Size:        l.Size,
		Color:       l.Color,
		Image:       l.Image,
		UnitPrice:   l.UnitPrice,
		TotalPrice:  l.TotalPrice,
	}
}

// EventKind names an entry in an order's audit trail.
type EventKind string

const (
	EventCreated        EventKind = "created"
	EventStatusChanged  EventKind = "status_changed"
	EventCancelled      EventKind = "cancelled"
	EventAddressChanged EventKind = "address_changed"
	EventTrackingAdded  EventKind = "tracking_added"
	EventRefundRecorded EventKind = "refund_recorded"
	EventPaymentOutcome EventKind = "payment_outcome"
)

// OrderEvent is one append-only audit entry.
type OrderEvent struct {
	ID        uuid.UUID       `json:"id" db:"event_id"`
	OrderID   uuid.UUID       `json:"orderId" db:"order_id"`
	Kind      EventKind       `json:"kind" db:"kind"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// NewOrderEvent encodes payload into a new event.
func NewOrderEvent(orderID uuid.UUID, kind EventKind, payload any) (OrderEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	return OrderEvent{
		ID:        uuid.New(),
		OrderID:   orderID,
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Event payloads.
type (
	OrderCreated struct {
		TotalPrice    decimal.Decimal `json:"total_price"`
		PaymentMethod string          `json:"payment_method"`
		LineCount     int             `json:"line_count"`
	}

	StatusChange struct {
		From OrderStatus `json:"from"`
		To   OrderStatus `json:"to"`
		Note string      `json:"note,omitempty"`
	}

	Cancellation struct {
		From     OrderStatus     `json:"from"`
		Reason   string          `json:"reason,omitempty"`
		Restored []StockRestored `json:"restored"`
	}

	StockRestored struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}

	AddressChange struct {
		From string `json:"from"`
		To   string `json:"to"`
	}

	TrackingInfo struct {
		TrackingNumber string    `json:"tracking_number"`
		Carrier        string    `json:"carrier"`
		AddedAt        time.Time `json:"added_at"`
	}

	RefundRecord struct {
		RefundID    string          `json:"refund_id"`
		Amount      decimal.Decimal `json:"amount"`
		Reason      string          `json:"reason"`
		Method      string          `json:"method"`
		ProcessedAt time.Time       `json:"processed_at"`
		ProcessedBy string          `json:"processed_by,omitempty"`
	}

	PaymentOutcome struct {
		TransactionID uuid.UUID     `json:"transaction_id"`
		Status        PaymentStatus `json:"status"`
		Source        string        `json:"source"`
		OrderStatus   OrderStatus   `json:"order_status"`
		Applied       bool          `json:"applied"`
	}
)

// OrderDetails is an order with its lines and audit trail.
type OrderDetails struct {
	Order    *Order         `json:"order"`
	Lines    []OrderLine    `json:"lines"`
	Events   []OrderEvent   `json:"events"`
	Tracking []TrackingInfo `json:"tracking"`
	Refunds  []RefundRecord `json:"refunds"`
	Notes    []string       `json:"notes"`
}

// NewOrderDetails builds the projected views over the event list.
func NewOrderDetails(order *Order, lines []OrderLine, events []OrderEvent) *OrderDetails {
	d := &OrderDetails{
		Order:    order,
		Lines:    lines,
		Events:   events,
		Tracking: []TrackingInfo{},
		Refunds:  []RefundRecord{},
		Notes:    []string{},
	}
	for _, e := range events {
		switch e.Kind {
		case EventTrackingAdded:
			var t TrackingInfo
			if json.Unmarshal(e.Payload, &t) == nil {
				d.Tracking = append(d.Tracking, t)
				d.Notes = append(d.Notes, fmt.Sprintf("Tracking %s via %s", t.TrackingNumber, t.Carrier))
			}
		case EventRefundRecorded:
			var r RefundRecord
			if json.Unmarshal(e.Payload, &r) == nil {
				d.Refunds = append(d.Refunds, r)
				d.Notes = append(d.Notes, fmt.Sprintf("Refund %s of %s: %s", r.RefundID, r.Amount.StringFixed(2), r.Reason))
			}
		case EventStatusChanged:
			var c StatusChange
			if json.Unmarshal(e.Payload, &c) == nil && c.Note != "" {
				d.Notes = append(d.Notes, fmt.Sprintf("%s -> %s: %s", c.From, c.To, c.Note))
			}
		case EventCancelled:
			var c Cancellation
			if json.Unmarshal(e.Payload, &c) == nil && c.Reason != "" {
				d.Notes = append(d.Notes, "Cancelled: "+c.Reason)
			}
		}
	}
	return d
}

// CheckoutRequest is the payload for converting a cart into an order.
// SelectedLineIDs empty means every open line of the cart.
type CheckoutRequest struct {
	CartID          uuid.UUID        `json:"cartId"`
	CustomerID      string           `json:"customerId"`
	SelectedLineIDs []uuid.UUID      `json:"selectedLineIds,omitempty"`
	PaymentMethod   string           `json:"paymentMethod"`
	ShippingAddress *string          `json:"shippingAddress,omitempty"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
}

// CheckoutResponse is the result of a successful checkout.
type CheckoutResponse struct {
	Order       *Order              `json:"order"`
	Lines       []OrderLine         `json:"lines"`
	Transaction *PaymentTransaction `json:"transaction"`
}

// UpdateStatusRequest is the payload for an explicit order transition.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// CancelOrderRequest is the payload for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ShippingAddressRequest is the payload for editing the shipping address.
type ShippingAddressRequest struct {
	ShippingAddress string `json:"shippingAddress"`
}

// TrackingRequest is the payload for attaching shipment tracking.
type TrackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

// RefundRequest is the payload for recording refund intent.
type RefundRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	Method      string          `json:"method"`
	ProcessedBy string          `json:"processedBy,omitempty"`
}
