package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kart-checkout/internal/catalog"
	"kart-checkout/internal/gateway"
	"kart-checkout/internal/messaging"
	"kart-checkout/internal/model"
	"kart-checkout/internal/repository"
	"kart-checkout/internal/telemetry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CheckoutDeps groups the collaborators of the checkout service.
type CheckoutDeps struct {
	Carts     repository.CartRepository
	Orders    repository.OrderRepository
	Customers repository.CustomerRepository
	Payments  repository.PaymentRepository
	Catalog   *catalog.Catalog
	Gateways  Gateways
	Publisher messaging.Publisher
	Metrics   *telemetry.Metrics
	Currency  string
	// GatewayTimeout bounds the artifact call made inside the checkout.
	GatewayTimeout time.Duration
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	CheckoutDeps
	logger zerolog.Logger
}

var maxDiscount = decimal.NewFromInt(100)

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps CheckoutDeps, logger zerolog.Logger) CheckoutService {
	if deps.Publisher == nil {
		deps.Publisher = messaging.NopPublisher{}
	}
	if deps.Currency == "" {
		deps.Currency = model.DefaultCurrency
	}
	if deps.GatewayTimeout <= 0 {
		deps.GatewayTimeout = 10 * time.Second
	}
	return &checkoutService{
		CheckoutDeps: deps,
		logger:       logger.With().Str("service", "checkout").Logger(),
	}
}

// Checkout converts the selected open lines of a cart into a pending order
// with a pending payment transaction, all in one database transaction.
func (s *checkoutService) Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	ctx, span := tracer.Start(ctx, "checkout")
	defer span.End()

	resp, err := s.checkout(ctx, req)
	s.Metrics.CheckoutAttempt(ctx, checkoutOutcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order_id", resp.Order.ID.String()),
		attribute.String("transaction_id", resp.Transaction.ID.String()),
	)
	return resp, nil
}

func checkoutOutcome(err error) string {
	var de *model.DomainError
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.As(err, &de) && de.Kind == model.KindConflict:
		return telemetry.OutcomeConflict
	case errors.As(err, &de):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}

func (s *checkoutService) checkout(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	if req == nil || strings.TrimSpace(req.CustomerID) == "" {
		return nil, model.ErrCustomerNotFound
	}
	discount := decimal.Zero
	if req.Discount != nil {
		if req.Discount.IsNegative() || req.Discount.GreaterThan(maxDiscount) {
			return nil, model.ErrInvalidDiscount
		}
		discount = *req.Discount
	}

	cart, err := s.Carts.GetCart(ctx, req.CartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || cart.CustomerID != req.CustomerID {
		s.logger.Warn().Str("cart_id", req.CartID.String()).Str("customer_id", req.CustomerID).Msg("cart not found for customer")
		return nil, model.ErrCartNotFound
	}

	customer, err := s.Customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if customer == nil {
		return nil, model.ErrCustomerNotFound
	}

	method, err := s.Catalog.ResolveActive(ctx, req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	lines, err := selectLines(cart, req.SelectedLineIDs)
	if err != nil {
		s.logger.Warn().Err(err).Str("cart_id", cart.ID.String()).Int("selected", len(req.SelectedLineIDs)).Msg("invalid checkout selection")
		return nil, err
	}
	if err := catalog.ValidateAmount(method, sumLines(lines)); err != nil {
		return nil, err
	}

	address := customer.Address
	if req.ShippingAddress != nil && strings.TrimSpace(*req.ShippingAddress) != "" {
		address = strings.TrimSpace(*req.ShippingAddress)
	}

	tx, err := s.Orders.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	claimed, err := s.Carts.ClaimLines(ctx, tx, cart.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}
	if len(claimed) != len(ids) {
		s.logger.Warn().
			Str("cart_id", cart.ID.String()).
			Int("requested", len(ids)).
			Int("claimed", len(claimed)).
			Msg("cart lines claimed concurrently")
		return nil, model.ErrCheckoutConflict
	}

	// Claimed rows are authoritative; a concurrent quantity edit may have
	// changed the total since the first read.
	total := sumLines(claimed)
	if err := catalog.ValidateAmount(method, total); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:              uuid.New(),
		CustomerID:      req.CustomerID,
		Status:          model.OrderPending,
		TotalPrice:      total,
		PaymentMethod:   method.Name,
		ShippingAddress: address,
		Discount:        discount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Orders.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	orderLines := make([]model.OrderLine, len(claimed))
	for i, l := range claimed {
		orderLines[i] = model.OrderLineFromCart(order.ID, l)
	}
	if err := s.Orders.CreateOrderLines(ctx, tx, orderLines); err != nil {
		return nil, err
	}
	if err := appendEvent(ctx, tx, s.Orders, order.ID, model.EventCreated, model.OrderCreated{
		TotalPrice:    total,
		PaymentMethod: method.Code,
		LineCount:     len(orderLines),
	}); err != nil {
		return nil, err
	}

	txn := &model.PaymentTransaction{
		ID:              uuid.New(),
		OrderID:         order.ID,
		PaymentMethodID: method.ID,
		Amount:          total,
		FeeAmount:       catalog.ComputeFee(method, total),
		Currency:        s.Currency,
		Status:          model.PaymentPending,
		ReferenceNumber: order.ID.String(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inserted, err := s.Payments.Create(ctx, tx, txn)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, model.ErrActivePaymentExists
	}

	if err := s.attachArtifact(ctx, tx, txn, method, req.CustomerID); err != nil {
		return nil, err
	}

	if _, err := s.Carts.RecalculateTotal(ctx, tx, cart.ID); err != nil {
		return nil, err
	}
	if err := s.Carts.MarkCheckedOut(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit checkout")
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("cart_id", cart.ID.String()).
		Str("transaction_id", txn.ID.String()).
		Str("payment_method", method.Code).
		Str("total", total.StringFixed(2)).
		Int("line_count", len(orderLines)).
		Msg("checkout completed")

	var events statusEvents
	events.order(model.OrderStatusChangedEvent{OrderID: order.ID, To: model.OrderPending, OccurredAt: now})
	events.publish(ctx, s.Publisher, s.logger)

	return &model.CheckoutResponse{Order: order, Lines: orderLines, Transaction: txn}, nil
}

// attachArtifact asks the method's adapter for a payment artifact and
// persists it. Adapter failures only log; persistence failures abort.
func (s *checkoutService) attachArtifact(ctx context.Context, tx pgx.Tx, txn *model.PaymentTransaction, method *model.PaymentMethod, customerID string) error {
	artifact, ok := requestArtifact(ctx, s.Gateways, s.Metrics, s.GatewayTimeout, s.logger, gateway.ArtifactRequest{
		Transaction: txn,
		Method:      method,
		CustomerID:  customerID,
		Description: "Payment for order " + txn.OrderID.String(),
	})
	if !ok {
		return nil
	}
	if err := s.Payments.SaveArtifact(ctx, tx, txn.ID, artifact); err != nil {
		return err
	}
	applyArtifact(txn, artifact)
	return nil
}

// requestArtifact calls the adapter for req.Method under a bounded timeout.
// The boolean is false when there is no adapter or the call failed.
func requestArtifact(
	ctx context.Context,
	gateways Gateways,
	metrics *telemetry.Metrics,
	timeout time.Duration,
	logger zerolog.Logger,
	req gateway.ArtifactRequest,
) (*model.PaymentArtifact, bool) {
	adapter, ok := gateways.Get(req.Method.Code)
	if !ok {
		logger.Debug().Str("payment_method", req.Method.Code).Msg("no gateway adapter, transaction has no artifact")
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	artifact, err := adapter.CreateArtifact(callCtx, req)
	if err != nil {
		metrics.GatewayRequest(ctx, adapter.Code(), "create", telemetry.OutcomeError, start)
		logger.Warn().
			Err(err).
			Bool("transient", gateway.IsTransient(err)).
			Str("transaction_id", req.Transaction.ID.String()).
			Str("payment_method", req.Method.Code).
			Msg("gateway artifact creation failed, continuing without artifact")
		return nil, false
	}
	metrics.GatewayRequest(ctx, adapter.Code(), "create", telemetry.OutcomeSuccess, start)
	return artifact, true
}

// applyArtifact mirrors a persisted artifact onto the in-memory transaction.
func applyArtifact(txn *model.PaymentTransaction, a *model.PaymentArtifact) {
	if txn.GatewayResponse == nil {
		txn.GatewayResponse = map[string]any{}
	}
	set := func(dst **string, key, v string) {
		if v == "" {
			return
		}
		val := v
		*dst = &val
		txn.GatewayResponse[key] = v
	}
	set(&txn.QRCodePayload, model.ArtifactKeyPayload, a.Payload)
	set(&txn.QRCodeURL, model.ArtifactKeyQRCodeURL, a.QRCodeURL)
	set(&txn.PaymentURL, model.ArtifactKeyPaymentURL, a.PaymentURL)
	if a.CorrelationID != "" {
		id := a.CorrelationID
		txn.GatewayTransactionID = &id
		txn.GatewayResponse[model.ArtifactKeyCorrelationID] = id
	}
	for k, v := range a.Extra {
		txn.GatewayResponse[k] = v
	}
}

// selectLines resolves the checkout line set against the cart's open lines.
func selectLines(cart *model.Cart, selected []uuid.UUID) ([]model.CartLine, error) {
	open := cart.OpenLines()
	if len(selected) == 0 {
		if len(open) == 0 {
			return nil, model.ErrEmptyCart
		}
		return open, nil
	}

	byID := make(map[uuid.UUID]model.CartLine, len(open))
	for _, l := range open {
		byID[l.ID] = l
	}
	lines := make([]model.CartLine, 0, len(selected))
	seen := make(map[uuid.UUID]bool, len(selected))
	for _, id := range selected {
		l, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		lines = append(lines, l)
	}
	if len(lines) != len(selected) {
		return nil, model.ErrInvalidSelection
	}
	return lines, nil
}

func sumLines(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalPrice)
	}
	return model.RoundMoney(total)
}
