package handler

import (
	"net/http"
	"strings"

	"kart-checkout/internal/model"
	"kart-checkout/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
	payments service.PaymentService
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(checkout service.CheckoutService, orders service.OrderService, payments service.PaymentService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		payments: payments,
		logger:   logger.With().Str("handler", "order").Logger(),
	}
}

// Checkout handles POST /api/orders/checkout requests.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if req.CartID == uuid.Nil || strings.TrimSpace(req.PaymentMethod) == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "cartId and paymentMethod are required", h.logger)
		return
	}

	resp, err := h.checkout.Checkout(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "failed to checkout", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	details, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to retrieve order", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// List handles GET /api/orders?customerId=… or ?status=… requests.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := r.URL.Query()

	var (
		orders []model.Order
		err    error
	)
	switch {
	case q.Get("customerId") != "":
		orders, err = h.orders.ListByCustomer(r.Context(), q.Get("customerId"), limit, offset)
	case q.Get("status") != "":
		orders, err = h.orders.ListByStatus(r.Context(), q.Get("status"), limit, offset)
	default:
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "customerId or status is required", h.logger)
		return
	}
	if err != nil {
		writeDomainError(w, err, "failed to list orders", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// UpdateStatus handles PATCH /api/orders/{id}/status requests.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req model.UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err, "failed to update order status", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/orders/{id}/cancel requests. The body is optional.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req model.CancelOrderRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.orders.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err, "failed to cancel order", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateShippingAddress handles PATCH /api/orders/{id}/shipping-address requests.
func (h *OrderHandler) UpdateShippingAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req model.ShippingAddressRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.orders.UpdateShippingAddress(r.Context(), id, req.ShippingAddress)
	if err != nil {
		writeDomainError(w, err, "failed to update shipping address", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AddTracking handles POST /api/orders/{id}/tracking requests.
func (h *OrderHandler) AddTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req model.TrackingRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	info, err := h.orders.AddTracking(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err, "failed to add tracking", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// RecordRefund handles POST /api/orders/{id}/refunds requests.
func (h *OrderHandler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req model.RefundRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	record, err := h.orders.RecordRefund(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err, "failed to record refund", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// Payments handles GET /api/orders/{id}/payments requests.
func (h *OrderHandler) Payments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	txns, err := h.payments.ListByOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to list payments", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidID, "invalid order ID format", h.logger)
	}
	return id, ok
}
