package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON    = "INVALID_JSON"
	ErrCodeMissingField   = "MISSING_FIELD"
	ErrCodeUnauthorised   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeInvalidID      = "INVALID_ID"
	ErrCodeMethodNotAllow = "METHOD_NOT_ALLOWED"

	// cart and checkout
	ErrCodeCartNotFound           = "CART_NOT_FOUND"
	ErrCodeCustomerNotFound       = "CUSTOMER_NOT_FOUND"
	ErrCodeProductNotFound        = "PRODUCT_NOT_FOUND"
	ErrCodeLineNotFound           = "LINE_NOT_FOUND"
	ErrCodeLineCheckedOut         = "LINE_CHECKED_OUT"
	ErrCodeInvalidQuantity        = "INVALID_QUANTITY"
	ErrCodeInvalidSelection       = "INVALID_SELECTION"
	ErrCodeEmptyCart              = "EMPTY_CART"
	ErrCodeInvalidDiscount        = "INVALID_DISCOUNT"
	ErrCodeCheckoutConflict       = "CHECKOUT_CONFLICT"
	ErrCodePaymentMethodNotFound  = "PAYMENT_METHOD_NOT_FOUND"
	ErrCodePaymentMethodInactive  = "PAYMENT_METHOD_INACTIVE"
	ErrCodeBelowMinimum           = "BELOW_MINIMUM"
	ErrCodeAboveMaximum           = "ABOVE_MAXIMUM"
	ErrCodeActivePaymentExists    = "ACTIVE_PAYMENT_EXISTS"
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodeOrderNotPayable        = "ORDER_NOT_PAYABLE"
	ErrCodeInvalidStatus          = "INVALID_STATUS"
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeOrderNotCancellable    = "ORDER_NOT_CANCELLABLE"
	ErrCodeInvalidAddress         = "INVALID_ADDRESS"
	ErrCodeAddressLocked          = "ADDRESS_LOCKED"
	ErrCodeTrackingNotAllowed     = "TRACKING_NOT_ALLOWED"
	ErrCodeInvalidRefund          = "INVALID_REFUND"
	ErrCodeRefundNotAllowed       = "REFUND_NOT_ALLOWED"
	ErrCodeRefundExceedsTotal     = "REFUND_EXCEEDS_TOTAL"
	ErrCodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	ErrCodePaymentNotPending      = "PAYMENT_NOT_PENDING"
	ErrCodePaymentNotCancellable  = "PAYMENT_NOT_CANCELLABLE"
	ErrCodePaymentFinalized       = "PAYMENT_FINALIZED"
	ErrCodeInvalidSignature       = "INVALID_SIGNATURE"
	ErrCodeAmountMismatch         = "AMOUNT_MISMATCH"
	ErrCodeMalformedCallback      = "MALFORMED_CALLBACK"
	ErrCodeUnknownGateway         = "UNKNOWN_GATEWAY"
	ErrCodeInvalidManualOutcome   = "INVALID_MANUAL_OUTCOME"
	ErrCodeMissingCorrelationKey  = "MISSING_CORRELATION_KEY"
)

// ErrorKind classifies a DomainError so callers can react without
// inspecting codes.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindIntegrity
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	default:
		return "validation"
	}
}

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
	Kind    ErrorKind
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new validation domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindValidation,
	}
}

func newError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: kind}
}

// Common domain errors
var (
	ErrCartNotFound          = newError(KindNotFound, ErrCodeCartNotFound, "Cart not found")
	ErrCustomerNotFound      = newError(KindNotFound, ErrCodeCustomerNotFound, "Customer not found")
	ErrProductNotFound       = newError(KindNotFound, ErrCodeProductNotFound, "Product not found")
	ErrLineNotFound          = newError(KindNotFound, ErrCodeLineNotFound, "Cart line not found")
	ErrLineCheckedOut        = newError(KindConflict, ErrCodeLineCheckedOut, "Cart line has already been checked out")
	ErrInvalidQuantity       = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidSelection      = NewDomainError(ErrCodeInvalidSelection, "One or more selected lines are not available for checkout")
	ErrEmptyCart             = NewDomainError(ErrCodeEmptyCart, "No cart lines to check out")
	ErrInvalidDiscount       = NewDomainError(ErrCodeInvalidDiscount, "Discount must be between 0 and 100")
	ErrCheckoutConflict      = newError(KindConflict, ErrCodeCheckoutConflict, "Cart lines were checked out concurrently")
	ErrPaymentMethodNotFound = newError(KindNotFound, ErrCodePaymentMethodNotFound, "Payment method not found")
	ErrPaymentMethodInactive = NewDomainError(ErrCodePaymentMethodInactive, "Payment method is not active")
	ErrBelowMinimum          = NewDomainError(ErrCodeBelowMinimum, "Amount is below the payment method minimum")
	ErrAboveMaximum          = NewDomainError(ErrCodeAboveMaximum, "Amount exceeds the payment method maximum")
	ErrActivePaymentExists   = newError(KindConflict, ErrCodeActivePaymentExists, "An active payment already exists for this order and method")

	ErrOrderNotFound       = newError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrOrderNotPayable     = newError(KindConflict, ErrCodeOrderNotPayable, "Order is not awaiting payment")
	ErrInvalidStatus       = NewDomainError(ErrCodeInvalidStatus, "Unknown status")
	ErrInvalidTransition   = newError(KindConflict, ErrCodeInvalidTransition, "Status transition is not allowed")
	ErrOrderNotCancellable = newError(KindConflict, ErrCodeOrderNotCancellable, "Only pending or confirmed orders can be cancelled")
	ErrInvalidAddress      = NewDomainError(ErrCodeInvalidAddress, "Shipping address must be at least 10 characters")
	ErrAddressLocked       = newError(KindConflict, ErrCodeAddressLocked, "Shipping address can no longer be changed")
	ErrTrackingNotAllowed  = newError(KindConflict, ErrCodeTrackingNotAllowed, "Tracking can only be added to shipped orders")
	ErrInvalidRefund       = NewDomainError(ErrCodeInvalidRefund, "Refund requires a non-negative amount, a reason and a method")
	ErrRefundNotAllowed    = newError(KindConflict, ErrCodeRefundNotAllowed, "Refunds can only be recorded for delivered or cancelled orders")
	ErrRefundExceedsTotal  = NewDomainError(ErrCodeRefundExceedsTotal, "Refund amount cannot exceed the order total")

	ErrPaymentNotFound       = newError(KindNotFound, ErrCodePaymentNotFound, "Payment transaction not found")
	ErrPaymentNotPending     = newError(KindConflict, ErrCodePaymentNotPending, "Payment transaction is not pending")
	ErrPaymentNotCancellable = newError(KindConflict, ErrCodePaymentNotCancellable, "Only pending or processing payments can be cancelled")
	ErrPaymentFinalized      = newError(KindConflict, ErrCodePaymentFinalized, "Payment transaction is already finalized")
	ErrInvalidSignature      = newError(KindIntegrity, ErrCodeInvalidSignature, "Callback signature is invalid")
	ErrAmountMismatch        = newError(KindIntegrity, ErrCodeAmountMismatch, "Callback amount does not match the transaction amount")
	ErrMalformedCallback     = NewDomainError(ErrCodeMalformedCallback, "Callback payload could not be parsed")
	ErrUnknownGateway        = newError(KindNotFound, ErrCodeUnknownGateway, "Unknown payment gateway")
	ErrInvalidManualOutcome  = NewDomainError(ErrCodeInvalidManualOutcome, "Manual confirmation status must be completed or failed")
	ErrMissingCorrelationKey = NewDomainError(ErrCodeMissingCorrelationKey, "A correlation key is required")
)
