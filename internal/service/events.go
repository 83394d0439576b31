package service

import (
	"context"
	"time"

	"kart-checkout/internal/messaging"
	"kart-checkout/internal/model"

	"github.com/rs/zerolog"
)

// statusEvents collects events during a transaction and publishes them after
// commit. Publishing failures are logged and never reach the caller.
type statusEvents struct {
	orders   []model.OrderStatusChangedEvent
	payments []model.PaymentStatusChangedEvent
}

func (e *statusEvents) order(o model.OrderStatusChangedEvent) {
	if o.OccurredAt.IsZero() {
		o.OccurredAt = time.Now().UTC()
	}
	e.orders = append(e.orders, o)
}

func (e *statusEvents) payment(p model.PaymentStatusChangedEvent) {
	if p.OccurredAt.IsZero() {
		p.OccurredAt = time.Now().UTC()
	}
	e.payments = append(e.payments, p)
}

func (e *statusEvents) publish(ctx context.Context, pub messaging.Publisher, logger zerolog.Logger) {
	for _, p := range e.payments {
		if err := pub.Publish(ctx, model.TopicPaymentStatusChanged, p.OrderID.String(), p); err != nil {
			logger.Warn().Err(err).Str("transaction_id", p.TransactionID.String()).Msg("failed to publish payment status event")
		}
	}
	for _, o := range e.orders {
		if err := pub.Publish(ctx, model.TopicOrderStatusChanged, o.OrderID.String(), o); err != nil {
			logger.Warn().Err(err).Str("order_id", o.OrderID.String()).Msg("failed to publish order status event")
		}
	}
}
