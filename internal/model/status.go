package model

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered},
	OrderDelivered: nil,
	OrderCancelled: nil,
}

// ParseOrderStatus returns ErrInvalidStatus for anything outside the known set.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderTransitions[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// CanTransitionTo reports whether next is reachable in one step.
// Same-state transitions are never allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// Cancellable reports whether an order in this state may be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// AddressEditable reports whether the shipping address may still change.
func (s OrderStatus) AddressEditable() bool {
	return s != OrderShipped && s != OrderDelivered && s != OrderCancelled
}

// Refundable reports whether a refund may be recorded.
func (s OrderStatus) Refundable() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// PaymentStatus is the persisted state of a payment transaction.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentCompleted:  nil,
	PaymentFailed:     nil,
	PaymentCancelled:  nil,
}

// ParsePaymentStatus returns ErrInvalidStatus for anything outside the known set.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if _, ok := paymentTransitions[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// CanTransitionTo reports whether next is reachable in one step.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the transaction is finalized.
func (s PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

// IsActive reports whether the transaction still awaits an outcome.
func (s PaymentStatus) IsActive() bool {
	return s == PaymentPending || s == PaymentProcessing
}

// CanonicalStatus is the provider-independent outcome every gateway
// response code is mapped to.
type CanonicalStatus string

const (
	CanonicalPending   CanonicalStatus = "pending"
	CanonicalCompleted CanonicalStatus = "completed"
	CanonicalFailed    CanonicalStatus = "failed"
)

// PaymentStatus converts the canonical outcome to the persisted status.
func (c CanonicalStatus) PaymentStatus() PaymentStatus {
	switch c {
	case CanonicalCompleted:
		return PaymentCompleted
	case CanonicalFailed:
		return PaymentFailed
	default:
		return PaymentPending
	}
}

// OrderTarget returns the order status a terminal payment outcome cascades
// to. The boolean is false for pending, which never cascades.
func (s PaymentStatus) OrderTarget() (OrderStatus, bool) {
	switch s {
	case PaymentCompleted:
		return OrderConfirmed, true
	case PaymentFailed, PaymentCancelled:
		return OrderCancelled, true
	default:
		return "", false
	}
}
