package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"kart-checkout/internal/handler"
	"kart-checkout/internal/middleware"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestRouter() http.Handler {
	logger := zerolog.Nop()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return New(Handlers{
		Carts:    handler.NewCartHandler(nil, logger),
		Orders:   handler.NewOrderHandler(nil, nil, nil, logger),
		Payments: handler.NewPaymentHandler(nil, logger),
		Metrics:  metrics,
		Gateways: []string{"momo", "vnpay", "bank_transfer"},
	}, "secret-key", logger)
}

func TestRouter(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name           string
		method         string
		path           string
		apiKey         string
		expectedStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "metrics is public", method: http.MethodGet, path: "/metrics", expectedStatus: http.StatusOK},
		{name: "api requires key", method: http.MethodGet, path: "/api/orders/" + "00000000-0000-0000-0000-000000000000", expectedStatus: http.StatusUnauthorized},
		{name: "preflight", method: http.MethodOptions, path: "/api/orders/checkout", expectedStatus: http.StatusNoContent},
		{name: "bad payment id", method: http.MethodGet, path: "/api/payments/query", apiKey: "secret-key", expectedStatus: http.StatusBadRequest},
		{name: "bad order id on nested route", method: http.MethodPost, path: "/api/orders/abc/cancel", apiKey: "secret-key", expectedStatus: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodDelete, path: "/api/orders/checkout", apiKey: "secret-key", expectedStatus: http.StatusMethodNotAllowed},
		{name: "unregistered gateway callback", method: http.MethodPost, path: "/api/payments/callback/zalopay", expectedStatus: http.StatusNotFound},
		{name: "unknown path", method: http.MethodGet, path: "/api/products", apiKey: "secret-key", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}
