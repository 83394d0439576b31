package handler

import (
	"errors"
	"io"
	"net/http"

	"kart-checkout/internal/model"
	"kart-checkout/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentHandler handles payment and gateway callback HTTP requests.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// callbackAck is returned to gateways. Gateways retry on anything but 2xx.
type callbackAck struct {
	Status      string              `json:"status"`
	Duplicate   bool                `json:"duplicate,omitempty"`
	Payment     model.PaymentStatus `json:"paymentStatus,omitempty"`
	OrderStatus model.OrderStatus   `json:"orderStatus,omitempty"`
}

// ListMethods handles GET /api/payment-methods requests.
// ?all=true includes inactive methods.
func (h *PaymentHandler) ListMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListMethods(r.Context(), r.URL.Query().Get("all") != "true")
	if err != nil {
		writeDomainError(w, err, "failed to list payment methods", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

// Create handles POST /api/payments requests.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePaymentRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if req.OrderID == uuid.Nil || req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "orderId and paymentMethod are required", h.logger)
		return
	}

	res, err := h.service.CreatePayment(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "failed to create payment", h.logger)
		return
	}
	status := http.StatusCreated
	if res.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// GetByID handles GET /api/payments/{id} requests.
func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	txn, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to retrieve payment", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// Confirm handles POST /api/payments/{id}/confirm requests.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	var req model.ManualConfirmationRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	res, err := h.service.ApplyManualConfirmation(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err, "failed to confirm payment", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Cancel handles POST /api/payments/{id}/cancel requests. The body is optional.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	var req model.CancelPaymentRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	res, err := h.service.CancelPayment(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err, "failed to cancel payment", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Query handles POST /api/payments/query requests.
func (h *PaymentHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req model.QueryStatusRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	res, err := h.service.QueryStatus(r.Context(), req.CorrelationID)
	if err != nil {
		writeDomainError(w, err, "failed to query payment status", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Callback handles POST /api/payments/callback/{gateway} requests. VNPay
// also delivers its IPN as a GET with the fields in the query string.
//
// Unknown transactions are acknowledged so the gateway stops retrying.
// Authentication and integrity failures are rejected without detail.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	gatewayCode := r.PathValue("gateway")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMalformedCallback, "unreadable callback body", h.logger)
		return
	}
	if len(body) == 0 && r.URL.RawQuery != "" {
		body = []byte(r.URL.RawQuery)
	}

	res, err := h.service.ApplyCallback(r.Context(), gatewayCode, body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, callbackAck{
			Status:      "ok",
			Duplicate:   res.Duplicate,
			Payment:     res.Transaction.Status,
			OrderStatus: res.OrderStatus,
		})
	case errors.Is(err, model.ErrPaymentNotFound):
		h.logger.Warn().Str("gateway", gatewayCode).Msg("callback for unknown transaction acknowledged")
		writeJSON(w, http.StatusOK, callbackAck{Status: "ignored"})
	case errors.Is(err, model.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, model.ErrCodeInvalidSignature, "invalid signature", h.logger)
	default:
		writeDomainError(w, err, "failed to process callback", h.logger)
	}
}

func (h *PaymentHandler) paymentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidID, "invalid payment ID format", h.logger)
	}
	return id, ok
}
