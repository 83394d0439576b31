package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kart-checkout/internal/messaging"
	"kart-checkout/internal/model"
	"kart-checkout/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const minAddressLength = 10

// orderService implements OrderService.
type orderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	publisher messaging.Publisher
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	publisher messaging.Publisher,
	logger zerolog.Logger,
) OrderService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &orderService{
		orders:    orders,
		products:  products,
		publisher: publisher,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// Get retrieves an order by its ID with lines and events.
func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*model.OrderDetails, error) {
	order, lines, err := s.orders.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	events, err := s.orders.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order events: %w", err)
	}
	return model.NewOrderDetails(order, lines, events), nil
}

func (s *orderService) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, model.ErrCustomerNotFound
	}
	return s.orders.ListByCustomer(ctx, customerID, limit, offset)
}

func (s *orderService) ListByStatus(ctx context.Context, status string, limit, offset int) ([]model.Order, error) {
	st, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByStatus(ctx, st, limit, offset)
}

// UpdateStatus applies one transition. Cancellation is routed through Cancel
// so stock is always restored.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest) (*model.Order, error) {
	next, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if next == model.OrderCancelled {
		return s.Cancel(ctx, id, req.Note)
	}

	var from model.OrderStatus
	order, err := s.inTx(ctx, id, func(tx pgx.Tx, order *model.Order) error {
		if !order.Status.CanTransitionTo(next) {
			s.logger.Warn().
				Str("order_id", id.String()).
				Str("from", string(order.Status)).
				Str("to", string(next)).
				Msg("invalid order transition")
			return model.ErrInvalidTransition
		}
		from = order.Status
		if err := s.orders.UpdateStatus(ctx, tx, id, next); err != nil {
			return err
		}
		order.Status = next
		return appendEvent(ctx, tx, s.orders, id, model.EventStatusChanged, model.StatusChange{From: from, To: next, Note: req.Note})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", id.String()).Str("from", string(from)).Str("to", string(next)).Msg("order status updated")
	s.publishStatus(ctx, id, from, next, req.Note)
	return order, nil
}

// Cancel cancels the order and restores stock of tracked products.
func (s *orderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error) {
	var from model.OrderStatus
	order, err := s.inTx(ctx, id, func(tx pgx.Tx, order *model.Order) error {
		if !order.Status.Cancellable() {
			return model.ErrOrderNotCancellable
		}
		from = order.Status

		lines, err := s.orders.GetLines(ctx, tx, id)
		if err != nil {
			return err
		}
		restored := []model.StockRestored{}
		for _, l := range lines {
			ok, err := s.products.RestoreStock(ctx, tx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			if ok {
				restored = append(restored, model.StockRestored{ProductID: l.ProductID, Quantity: l.Quantity})
			}
		}

		if err := s.orders.UpdateStatus(ctx, tx, id, model.OrderCancelled); err != nil {
			return err
		}
		order.Status = model.OrderCancelled
		return appendEvent(ctx, tx, s.orders, id, model.EventCancelled, model.Cancellation{
			From:     from,
			Reason:   reason,
			Restored: restored,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", id.String()).Str("from", string(from)).Msg("order cancelled")
	s.publishStatus(ctx, id, from, model.OrderCancelled, reason)
	return order, nil
}

func (s *orderService) UpdateShippingAddress(ctx context.Context, id uuid.UUID, address string) (*model.Order, error) {
	address = strings.TrimSpace(address)
	if len([]rune(address)) < minAddressLength {
		return nil, model.ErrInvalidAddress
	}

	return s.inTx(ctx, id, func(tx pgx.Tx, order *model.Order) error {
		if !order.Status.AddressEditable() {
			return model.ErrAddressLocked
		}
		previous := order.ShippingAddress
		if err := s.orders.UpdateShippingAddress(ctx, tx, id, address); err != nil {
			return err
		}
		order.ShippingAddress = address
		return appendEvent(ctx, tx, s.orders, id, model.EventAddressChanged, model.AddressChange{From: previous, To: address})
	})
}

func (s *orderService) AddTracking(ctx context.Context, id uuid.UUID, req *model.TrackingRequest) (*model.TrackingInfo, error) {
	info := model.TrackingInfo{
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
		Carrier:        strings.TrimSpace(req.Carrier),
		AddedAt:        time.Now().UTC(),
	}
	if info.TrackingNumber == "" || info.Carrier == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "Tracking number and carrier are required")
	}

	_, err := s.inTx(ctx, id, func(tx pgx.Tx, order *model.Order) error {
		if order.Status != model.OrderShipped {
			return model.ErrTrackingNotAllowed
		}
		return appendEvent(ctx, tx, s.orders, id, model.EventTrackingAdded, info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *orderService) RecordRefund(ctx context.Context, id uuid.UUID, req *model.RefundRequest) (*model.RefundRecord, error) {
	if req.Amount.IsNegative() || strings.TrimSpace(req.Reason) == "" || strings.TrimSpace(req.Method) == "" {
		return nil, model.ErrInvalidRefund
	}
	record := model.RefundRecord{
		RefundID:    "RF-" + strings.ToUpper(uuid.NewString()[:8]),
		Amount:      model.RoundMoney(req.Amount),
		Reason:      strings.TrimSpace(req.Reason),
		Method:      strings.TrimSpace(req.Method),
		ProcessedAt: time.Now().UTC(),
		ProcessedBy: req.ProcessedBy,
	}

	_, err := s.inTx(ctx, id, func(tx pgx.Tx, order *model.Order) error {
		if !order.Status.Refundable() {
			return model.ErrRefundNotAllowed
		}
		if record.Amount.GreaterThan(order.TotalPrice) {
			return model.ErrRefundExceedsTotal
		}
		return appendEvent(ctx, tx, s.orders, id, model.EventRefundRecorded, record)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", id.String()).Str("refund_id", record.RefundID).Str("amount", record.Amount.StringFixed(2)).Msg("refund recorded")
	return &record, nil
}

// inTx locks the order, runs fn and commits. fn may mutate the locked order,
// which is returned on success.
func (s *orderService) inTx(ctx context.Context, id uuid.UUID, fn func(pgx.Tx, *model.Order) error) (*model.Order, error) {
	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	order, err := s.orders.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if err := fn(tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to commit order update")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	order.UpdatedAt = time.Now().UTC()
	return order, nil
}

func (s *orderService) publishStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, reason string) {
	var events statusEvents
	events.order(model.OrderStatusChangedEvent{OrderID: id, From: from, To: to, Reason: reason})
	events.publish(ctx, s.publisher, s.logger)
}
