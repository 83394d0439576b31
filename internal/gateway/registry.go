package gateway

import (
	"net/http"
	"sort"

	"kart-checkout/internal/config"

	"github.com/rs/zerolog"
)

// Registry maps payment method codes to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

// Get returns the adapter for code. Methods without an adapter (cod) report false.
func (r *Registry) Get(code string) (Adapter, bool) {
	a, ok := r.adapters[code]
	return a, ok
}

// Codes lists the registered codes in order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// NewDefaultRegistry builds the adapters from configuration. ZaloPay is only
// registered when its credentials are present.
func NewDefaultRegistry(payments config.PaymentsConfig, gateways config.GatewaysConfig, client *http.Client, logger zerolog.Logger) *Registry {
	adapters := []Adapter{
		NewMoMo(gateways.MoMo, payments, client, logger),
		NewVNPay(gateways.VNPay, payments, client, logger),
		NewBankTransfer(gateways.Bank, logger),
	}
	if gateways.ZaloPay.Enabled() {
		adapters = append(adapters, NewZaloPay(gateways.ZaloPay, payments, client, logger))
	} else {
		logger.Warn().Msg("ZaloPay credentials not configured, adapter disabled")
	}
	return NewRegistry(adapters...)
}
