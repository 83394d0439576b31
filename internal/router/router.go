package router

import (
	"net/http"

	"kart-checkout/internal/handler"
	"kart-checkout/internal/middleware"
	"kart-checkout/internal/telemetry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Carts    *handler.CartHandler
	Orders   *handler.OrderHandler
	Payments *handler.PaymentHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Gateways are the codes that accept callbacks.
	Gateways []string
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, apiKey string, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(fn))
	}

	// Health check endpoint (no authentication required)
	handle("GET /health", handler.Health)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	handle("POST /api/carts/lines", h.Carts.AddLine)
	handle("PATCH /api/carts/lines/{id}", h.Carts.UpdateLine)
	handle("DELETE /api/carts/lines/{id}", h.Carts.RemoveLine)
	handle("GET /api/carts/{id}", h.Carts.Get)

	handle("POST /api/orders/checkout", h.Orders.Checkout)
	handle("GET /api/orders", h.Orders.List)
	handle("GET /api/orders/{id}", h.Orders.GetByID)
	handle("PATCH /api/orders/{id}/status", h.Orders.UpdateStatus)
	handle("POST /api/orders/{id}/cancel", h.Orders.Cancel)
	handle("PATCH /api/orders/{id}/shipping-address", h.Orders.UpdateShippingAddress)
	handle("POST /api/orders/{id}/tracking", h.Orders.AddTracking)
	handle("POST /api/orders/{id}/refunds", h.Orders.RecordRefund)
	handle("GET /api/orders/{id}/payments", h.Orders.Payments)

	handle("GET /api/payment-methods", h.Payments.ListMethods)
	handle("POST /api/payments", h.Payments.Create)
	handle("POST /api/payments/query", h.Payments.Query)
	handle("GET /api/payments/{id}", h.Payments.GetByID)
	handle("POST /api/payments/{id}/confirm", h.Payments.Confirm)
	handle("POST /api/payments/{id}/cancel", h.Payments.Cancel)

	// Callback paths are literal per gateway: a {gateway} wildcard would
	// overlap /api/payments/{id}/cancel and make ServeMux panic.
	for _, code := range h.Gateways {
		cb := gatewayCallback(code, h.Payments.Callback)
		handle("POST /api/payments/callback/"+code, cb)
		handle("GET /api/payments/callback/"+code, cb)
	}

	// Apply middleware in order: Recovery -> RequestID -> otel -> Logging -> CORS -> APIKeyAuth
	var handler http.Handler = mux
	handler = middleware.APIKeyAuth(apiKey, logger)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = otelhttp.NewHandler(handler, "http.server")
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}

func gatewayCallback(code string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.SetPathValue("gateway", code)
		next(w, r)
	}
}
