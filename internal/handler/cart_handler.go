package handler

import (
	"net/http"

	"kart-checkout/internal/model"
	"kart-checkout/internal/service"

	"github.com/rs/zerolog"
)

// CartHandler handles cart-related HTTP requests.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// AddLine handles POST /api/carts/lines requests.
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req model.AddLineRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	cart, err := h.service.AddLine(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "failed to add cart line", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// UpdateLine handles PATCH /api/carts/lines/{id} requests.
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidID, "invalid cart line ID format", h.logger)
		return
	}

	var req model.UpdateLineRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	cart, err := h.service.UpdateLineQuantity(r.Context(), lineID, req.Quantity)
	if err != nil {
		writeDomainError(w, err, "failed to update cart line", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveLine handles DELETE /api/carts/lines/{id} requests.
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidID, "invalid cart line ID format", h.logger)
		return
	}

	cart, err := h.service.RemoveLine(r.Context(), lineID)
	if err != nil {
		writeDomainError(w, err, "failed to remove cart line", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// Get handles GET /api/carts/{id} requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidID, "invalid cart ID format", h.logger)
		return
	}

	cart, err := h.service.GetCart(r.Context(), cartID)
	if err != nil {
		writeDomainError(w, err, "failed to retrieve cart", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
