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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PaymentDeps groups the collaborators of the payment service.
type PaymentDeps struct {
	Orders         repository.OrderRepository
	Payments       repository.PaymentRepository
	Catalog        *catalog.Catalog
	Gateways       Gateways
	Publisher      messaging.Publisher
	Metrics        *telemetry.Metrics
	Currency       string
	GatewayTimeout time.Duration
}

// paymentService implements PaymentService.
type paymentService struct {
	PaymentDeps
	logger zerolog.Logger
	now    func() time.Time
}

// NewPaymentService creates a new payment service.
func NewPaymentService(deps PaymentDeps, logger zerolog.Logger) PaymentService {
	if deps.Publisher == nil {
		deps.Publisher = messaging.NopPublisher{}
	}
	if deps.Currency == "" {
		deps.Currency = model.DefaultCurrency
	}
	if deps.GatewayTimeout <= 0 {
		deps.GatewayTimeout = 10 * time.Second
	}
	return &paymentService{
		PaymentDeps: deps,
		logger:      logger.With().Str("service", "payment").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// settlement is a status change about to be applied to a locked transaction.
type settlement struct {
	status        model.PaymentStatus
	source        string
	data          map[string]any
	failureReason string
	gatewayTxnID  string
}

// ApplyCallback authenticates the push with the gateway's adapter, then
// locates, checks and updates the transaction and its order in one
// database transaction.
func (s *paymentService) ApplyCallback(ctx context.Context, gatewayCode string, body []byte) (*model.ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "payment.callback", trace.WithAttributes(attribute.String("gateway", gatewayCode)))
	defer span.End()

	result, err := s.applyCallback(ctx, gatewayCode, body)
	s.Metrics.PaymentCallback(ctx, gatewayCode, reconcileOutcome(result, err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (s *paymentService) applyCallback(ctx context.Context, gatewayCode string, body []byte) (*model.ReconcileResult, error) {
	adapter, ok := s.Gateways.Get(gatewayCode)
	if !ok {
		s.logger.Warn().Str("gateway", gatewayCode).Msg("callback for unknown gateway")
		return nil, model.ErrUnknownGateway
	}

	outcome, err := adapter.ParseCallback(body)
	if err != nil {
		s.logger.Warn().Err(err).Str("gateway", gatewayCode).Msg("callback rejected")
		return nil, err
	}

	s.logger.Info().
		Str("gateway", gatewayCode).
		Str("correlation_id", outcome.CorrelationID).
		Str("provider_code", outcome.ProviderCode).
		Str("status", string(outcome.Status)).
		Msg("callback received")

	return s.applyOutcome(ctx, model.SourceCallback, outcome, true, func(tx pgx.Tx) (*model.PaymentTransaction, error) {
		return s.Payments.FindByCorrelationForUpdate(ctx, tx, outcome.CorrelationID)
	})
}

func reconcileOutcome(result *model.ReconcileResult, err error) string {
	var de *model.DomainError
	switch {
	case err == nil && result.Duplicate:
		return telemetry.OutcomeDuplicate
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.As(err, &de):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}

// applyOutcome runs the reconciliation steps for a verified provider outcome.
// A completed transaction is acknowledged without changes. The amount check
// happens before any write.
func (s *paymentService) applyOutcome(
	ctx context.Context,
	source string,
	outcome *gateway.Outcome,
	checkAmount bool,
	locate func(pgx.Tx) (*model.PaymentTransaction, error),
) (*model.ReconcileResult, error) {
	tx, err := s.Payments.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile payment: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	txn, err := locate(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile payment: %w", err)
	}
	if txn == nil {
		s.logger.Warn().Str("correlation_id", outcome.CorrelationID).Str("source", source).Msg("payment transaction not found")
		return nil, model.ErrPaymentNotFound
	}

	target := outcome.Status.PaymentStatus()
	if txn.Status.IsTerminal() {
		if txn.Status != model.PaymentCompleted && txn.Status != target {
			s.logger.Error().
				Str("transaction_id", txn.ID.String()).
				Str("status", string(txn.Status)).
				Str("reported", string(target)).
				Msg("outcome reported for finalized transaction")
			return nil, model.ErrPaymentFinalized
		}
		order, err := s.lockOrder(ctx, tx, txn.OrderID)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("transaction_id", txn.ID.String()).Str("source", source).Msg("duplicate outcome ignored")
		return &model.ReconcileResult{Transaction: txn, OrderStatus: order.Status, Duplicate: true}, nil
	}

	if checkAmount && target.IsTerminal() {
		if outcome.Amount == nil {
			s.logger.Error().
				Str("transaction_id", txn.ID.String()).
				Str("reported", string(target)).
				Msg("terminal outcome without amount")
			return nil, model.ErrAmountMismatch
		}
		if !model.AmountsMatch(*outcome.Amount, txn.Amount) {
			s.logger.Error().
				Str("transaction_id", txn.ID.String()).
				Str("expected", txn.Amount.StringFixed(2)).
				Str("reported", outcome.Amount.StringFixed(2)).
				Msg("payment amount mismatch")
			return nil, model.ErrAmountMismatch
		}
	}

	change := settlement{
		status:       target,
		source:       source,
		data:         outcome.Data,
		gatewayTxnID: outcome.GatewayTransactionID,
	}
	if target == model.PaymentFailed {
		change.failureReason = failureMessage(outcome)
	}

	var events statusEvents
	result, err := s.settle(ctx, tx, txn, change, &events)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to reconcile payment: %w", err)
	}

	events.publish(ctx, s.Publisher, s.logger)
	return result, nil
}

func failureMessage(o *gateway.Outcome) string {
	if o.Message != "" {
		return o.Message
	}
	return "gateway reported failure code " + o.ProviderCode
}

func (s *paymentService) lockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	order, err := s.Orders.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// canSettle extends the transition table with explicit cancellation, which
// is allowed from any active state.
func canSettle(from, to model.PaymentStatus) bool {
	if to == model.PaymentCancelled {
		return from.IsActive()
	}
	return from.CanTransitionTo(to)
}

// settle writes change onto the locked transaction and cascades a terminal
// outcome to the order. A pending change only records the gateway round.
func (s *paymentService) settle(ctx context.Context, tx pgx.Tx, txn *model.PaymentTransaction, change settlement, events *statusEvents) (*model.ReconcileResult, error) {
	now := s.now()
	round := model.GatewayRound{Source: change.source, Status: change.status, ReceivedAt: now, Data: change.data}

	order, err := s.lockOrder(ctx, tx, txn.OrderID)
	if err != nil {
		return nil, err
	}
	result := &model.ReconcileResult{Transaction: txn, OrderStatus: order.Status}

	if change.status == model.PaymentPending || change.status == txn.Status {
		if err := s.Payments.AppendRound(ctx, tx, txn.ID, round); err != nil {
			return nil, err
		}
		recordRound(txn, round)
		return result, nil
	}

	if !canSettle(txn.Status, change.status) {
		s.logger.Warn().
			Str("transaction_id", txn.ID.String()).
			Str("from", string(txn.Status)).
			Str("to", string(change.status)).
			Msg("invalid payment transition")
		return nil, model.ErrInvalidTransition
	}

	update := model.StatusUpdate{Status: change.status, Round: round}
	if change.status.IsTerminal() {
		update.ProcessedAt = &now
	}
	if change.failureReason != "" {
		reason := change.failureReason
		update.FailureReason = &reason
	}
	if change.gatewayTxnID != "" && txn.GatewayTransactionID == nil {
		id := change.gatewayTxnID
		update.GatewayTransactionID = &id
	}
	if err := s.Payments.UpdateStatus(ctx, tx, txn.ID, update); err != nil {
		return nil, err
	}

	from := txn.Status
	txn.Status = change.status
	txn.ProcessedAt = coalesceTime(update.ProcessedAt, txn.ProcessedAt)
	txn.FailureReason = coalesceString(update.FailureReason, txn.FailureReason)
	txn.GatewayTransactionID = coalesceString(update.GatewayTransactionID, txn.GatewayTransactionID)
	txn.UpdatedAt = now
	recordRound(txn, round)

	events.payment(model.PaymentStatusChangedEvent{
		TransactionID: txn.ID,
		OrderID:       txn.OrderID,
		From:          from,
		To:            change.status,
		Source:        change.source,
		OccurredAt:    now,
	})

	if target, ok := change.status.OrderTarget(); ok {
		if order.Status.CanTransitionTo(target) {
			note := fmt.Sprintf("payment %s via %s", change.status, change.source)
			if err := s.Orders.UpdateStatus(ctx, tx, order.ID, target); err != nil {
				return nil, err
			}
			if err := appendEvent(ctx, tx, s.Orders, order.ID, model.EventStatusChanged, model.StatusChange{
				From: order.Status, To: target, Note: note,
			}); err != nil {
				return nil, err
			}
			events.order(model.OrderStatusChangedEvent{OrderID: order.ID, From: order.Status, To: target, Reason: note, OccurredAt: now})
			result.OrderStatus = target
			result.Cascaded = true
		} else if order.Status != target {
			s.logger.Warn().
				Str("order_id", order.ID.String()).
				Str("order_status", string(order.Status)).
				Str("payment_status", string(change.status)).
				Msg("order transition not allowed, payment outcome recorded only")
		}
	}

	if err := appendEvent(ctx, tx, s.Orders, order.ID, model.EventPaymentOutcome, model.PaymentOutcome{
		TransactionID: txn.ID,
		Status:        change.status,
		Source:        change.source,
		OrderStatus:   result.OrderStatus,
		Applied:       result.Cascaded,
	}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", txn.ID.String()).
		Str("order_id", order.ID.String()).
		Str("from", string(from)).
		Str("to", string(change.status)).
		Str("source", change.source).
		Bool("cascaded", result.Cascaded).
		Msg("payment status updated")

	return result, nil
}

// recordRound mirrors an appended round onto the in-memory gateway response.
func recordRound(txn *model.PaymentTransaction, round model.GatewayRound) {
	if txn.GatewayResponse == nil {
		txn.GatewayResponse = map[string]any{}
	}
	rounds, _ := txn.GatewayResponse[model.GatewayResponseRoundsKey].([]any)
	txn.GatewayResponse[model.GatewayResponseRoundsKey] = append(rounds, round)
}

func coalesceTime(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}

func coalesceString(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

// ApplyManualConfirmation applies an operator outcome. Only pending
// transactions accept it.
func (s *paymentService) ApplyManualConfirmation(ctx context.Context, id uuid.UUID, req *model.ManualConfirmationRequest) (*model.ReconcileResult, error) {
	status, err := model.ParsePaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil || (status != model.PaymentCompleted && status != model.PaymentFailed) {
		return nil, model.ErrInvalidManualOutcome
	}

	change := settlement{status: status, source: model.SourceManual}
	if req.Note != "" {
		change.data = map[string]any{"note": req.Note}
	}
	if status == model.PaymentFailed {
		change.failureReason = req.Note
		if change.failureReason == "" {
			change.failureReason = "Manually marked as failed"
		}
	}

	return s.settleByID(ctx, id, change, func(txn *model.PaymentTransaction) error {
		if txn.Status != model.PaymentPending {
			return model.ErrPaymentNotPending
		}
		return nil
	})
}

// CancelPayment cancels an active transaction and cascades the order to
// cancelled when that transition is allowed.
func (s *paymentService) CancelPayment(ctx context.Context, id uuid.UUID, reason string) (*model.ReconcileResult, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "Cancelled by user"
	}
	change := settlement{
		status:        model.PaymentCancelled,
		source:        model.SourceCancel,
		data:          map[string]any{"reason": reason},
		failureReason: reason,
	}
	return s.settleByID(ctx, id, change, func(txn *model.PaymentTransaction) error {
		if !txn.Status.IsActive() {
			return model.ErrPaymentNotCancellable
		}
		return nil
	})
}

func (s *paymentService) settleByID(ctx context.Context, id uuid.UUID, change settlement, guard func(*model.PaymentTransaction) error) (*model.ReconcileResult, error) {
	tx, err := s.Payments.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	txn, err := s.Payments.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	if txn == nil {
		return nil, model.ErrPaymentNotFound
	}
	if err := guard(txn); err != nil {
		s.logger.Warn().Err(err).Str("transaction_id", id.String()).Str("status", string(txn.Status)).Str("source", change.source).Msg("payment update rejected")
		return nil, err
	}

	var events statusEvents
	result, err := s.settle(ctx, tx, txn, change, &events)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	events.publish(ctx, s.Publisher, s.logger)
	return result, nil
}

// QueryStatus polls the gateway for the transaction identified by
// correlationID. Transport failures and unsupported queries are
// inconclusive and change nothing.
func (s *paymentService) QueryStatus(ctx context.Context, correlationID string) (*model.QueryStatusResult, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, model.ErrMissingCorrelationKey
	}

	ctx, span := tracer.Start(ctx, "payment.query", trace.WithAttributes(attribute.String("correlation_id", correlationID)))
	defer span.End()

	txn, err := s.Payments.FindByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	if txn == nil {
		return nil, model.ErrPaymentNotFound
	}

	if txn.Status.IsTerminal() {
		return &model.QueryStatusResult{Status: canonicalOf(txn.Status), Transaction: txn}, nil
	}

	method, err := s.Catalog.Resolve(ctx, txn.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	adapter, ok := s.Gateways.Get(method.Code)
	if !ok {
		return &model.QueryStatusResult{Status: model.CanonicalPending, Inconclusive: true, Transaction: txn}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.GatewayTimeout)
	defer cancel()
	start := time.Now()
	outcome, err := adapter.QueryRemote(callCtx, txn)
	if err != nil {
		outcomeLabel := telemetry.OutcomeInconclusive
		if !gateway.IsTransient(err) && !errors.Is(err, gateway.ErrQueryUnsupported) {
			outcomeLabel = telemetry.OutcomeError
		}
		s.Metrics.GatewayRequest(ctx, adapter.Code(), "query", outcomeLabel, start)
		s.logger.Warn().Err(err).Str("transaction_id", txn.ID.String()).Str("gateway", adapter.Code()).Msg("status query inconclusive")
		return &model.QueryStatusResult{Status: model.CanonicalPending, Inconclusive: true, Transaction: txn}, nil
	}
	s.Metrics.GatewayRequest(ctx, adapter.Code(), "query", telemetry.OutcomeSuccess, start)

	// A pending answer may carry a zero amount, so only terminal answers are checked.
	checkAmount := outcome.Status != model.CanonicalPending
	result, err := s.applyOutcome(ctx, model.SourceQuery, outcome, checkAmount, func(tx pgx.Tx) (*model.PaymentTransaction, error) {
		return s.Payments.GetForUpdate(ctx, tx, txn.ID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &model.QueryStatusResult{
		Status:      outcome.Status,
		Transaction: result.Transaction,
		OrderStatus: result.OrderStatus,
	}, nil
}

func canonicalOf(s model.PaymentStatus) model.CanonicalStatus {
	switch s {
	case model.PaymentCompleted:
		return model.CanonicalCompleted
	case model.PaymentFailed, model.PaymentCancelled:
		return model.CanonicalFailed
	default:
		return model.CanonicalPending
	}
}

// CreatePayment returns the active transaction for the order and method,
// regenerating its artifact when missing, or creates a new one.
func (s *paymentService) CreatePayment(ctx context.Context, req *model.CreatePaymentRequest) (*model.CreatePaymentResult, error) {
	order, _, err := s.Orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if order.Status != model.OrderPending {
		return nil, model.ErrOrderNotPayable
	}

	method, err := s.Catalog.ResolveActive(ctx, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := catalog.ValidateAmount(method, order.TotalPrice); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Payment for order " + order.ID.String()
	}

	tx, err := s.Payments.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	txn, err := s.Payments.FindActiveForUpdate(ctx, tx, order.ID, method.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	existing := txn != nil

	if !existing {
		now := s.now()
		txn = &model.PaymentTransaction{
			ID:              uuid.New(),
			OrderID:         order.ID,
			PaymentMethodID: method.ID,
			Amount:          order.TotalPrice,
			FeeAmount:       catalog.ComputeFee(method, order.TotalPrice),
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
			// A concurrent request won the active slot.
			txn, err = s.Payments.FindActiveForUpdate(ctx, tx, order.ID, method.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to create payment: %w", err)
			}
			if txn == nil {
				return nil, model.ErrActivePaymentExists
			}
			existing = true
		}
	}

	if !txn.HasArtifact() {
		artifact, ok := requestArtifact(ctx, s.Gateways, s.Metrics, s.GatewayTimeout, s.logger, gateway.ArtifactRequest{
			Transaction: txn,
			Method:      method,
			CustomerID:  order.CustomerID,
			Description: description,
		})
		if ok {
			if err := s.Payments.SaveArtifact(ctx, tx, txn.ID, artifact); err != nil {
				return nil, err
			}
			applyArtifact(txn, artifact)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.logger.Info().
		Str("transaction_id", txn.ID.String()).
		Str("order_id", order.ID.String()).
		Str("payment_method", method.Code).
		Bool("existing", existing).
		Msg("payment ready")

	return &model.CreatePaymentResult{Transaction: txn, Existing: existing}, nil
}

func (s *paymentService) GetTransaction(ctx context.Context, id uuid.UUID) (*model.PaymentTransaction, error) {
	txn, err := s.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if txn == nil {
		return nil, model.ErrPaymentNotFound
	}
	return txn, nil
}

func (s *paymentService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentTransaction, error) {
	return s.Payments.ListByOrder(ctx, orderID)
}

func (s *paymentService) ListMethods(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	return s.Catalog.List(ctx, activeOnly)
}

// PollPending queries pending transactions older than olderThan, oldest
// first. Per-transaction failures are counted, not returned.
func (s *paymentService) PollPending(ctx context.Context, olderThan time.Duration, limit int) (*model.PollSummary, error) {
	txns, err := s.Payments.ListPendingBefore(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}

	summary := &model.PollSummary{}
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++

		res, err := s.QueryStatus(ctx, txn.ID.String())
		switch {
		case err != nil:
			summary.Errors++
			s.logger.Warn().Err(err).Str("transaction_id", txn.ID.String()).Msg("poll failed")
		case res.Inconclusive:
			summary.Inconclusive++
		case res.Status == model.CanonicalCompleted:
			summary.Completed++
		case res.Status == model.CanonicalFailed:
			summary.Failed++
		default:
			summary.Pending++
		}
	}

	s.logger.Info().
		Int("checked", summary.Checked).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("inconclusive", summary.Inconclusive).
		Int("errors", summary.Errors).
		Msg("pending payments polled")
	return summary, nil
}
