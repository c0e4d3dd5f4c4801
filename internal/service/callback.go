package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/internal/event"
	"github.com/nikpour310/accountinox/internal/gateway"
	"github.com/nikpour310/accountinox/internal/repository"
	"github.com/nikpour310/accountinox/pkg/database"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
)

// CallbackResult is what the HTTP layer acknowledges back to the gateway.
type CallbackResult struct {
	Outcome   domain.Outcome `json:"outcome"`
	OrderID   uuid.UUID      `json:"order_id,omitempty"`
	Duplicate bool           `json:"duplicate"`
}

// OrderCache drops cached order snapshots after the settlement path writes
// a new state. *OrderService satisfies it.
type OrderCache interface {
	InvalidateOrder(ctx context.Context, id uuid.UUID)
}

// CallbackService drives a payment callback from delivery to terminal
// outcome: admission, verification, settlement plus allocation in one
// transaction, ledger append, and event publication.
type CallbackService struct {
	db            database.DBTX
	orders        repository.OrderRepository
	inventory     repository.InventoryRepository
	ledger        repository.TransactionLogRepository
	idempotency   repository.IdempotencyRepository
	registry      *gateway.Registry
	producer      *event.Producer
	orderCache    OrderCache
	logger        *slog.Logger
	verifyTimeout time.Duration
}

// NewCallbackService creates a new callback orchestrator.
func NewCallbackService(
	db database.DBTX,
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	ledger repository.TransactionLogRepository,
	idempotency repository.IdempotencyRepository,
	registry *gateway.Registry,
	producer *event.Producer,
	orderCache OrderCache,
	logger *slog.Logger,
	verifyTimeout time.Duration,
) *CallbackService {
	if verifyTimeout <= 0 {
		verifyTimeout = 10 * time.Second
	}
	return &CallbackService{
		db:            db,
		orders:        orders,
		inventory:     inventory,
		ledger:        ledger,
		idempotency:   idempotency,
		registry:      registry,
		producer:      producer,
		orderCache:    orderCache,
		logger:        logger,
		verifyTimeout: verifyTimeout,
	}
}

// ProcessCallback handles one gateway delivery. Terminal outcomes return a
// result and nil error so the HTTP layer can acknowledge and stop gateway
// retries. Transient conditions (another attempt in flight, gateway
// unreachable) return an AppError carrying the retryable status.
func (s *CallbackService) ProcessCallback(ctx context.Context, cb domain.Callback) (*CallbackResult, error) {
	provider, err := s.registry.Get(cb.Provider)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	// Resolve the order through the initiation ledger. A callback without an
	// order id relies entirely on the (provider, reference) mapping; one with
	// an order id is cross-checked against it to catch tampered references.
	initiation, err := s.ledger.LatestInitiation(ctx, cb.Provider, cb.Reference)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("resolve initiation for callback: %w", err)
	}

	referenceMismatch := false
	if cb.OrderID == nil {
		if initiation == nil || initiation.OrderID == nil {
			s.logger.WarnContext(ctx, "callback reference has no initiation mapping",
				slog.String("provider", cb.Provider),
				slog.String("reference", cb.Reference),
			)
			return s.concludeUnmapped(ctx, cb)
		}
		cb.OrderID = initiation.OrderID
	} else if initiation != nil && initiation.OrderID != nil && *initiation.OrderID != *cb.OrderID {
		s.logger.WarnContext(ctx, "callback reference mapped to a different order",
			slog.String("provider", cb.Provider),
			slog.String("reference", cb.Reference),
			slog.String("claimed_order_id", cb.OrderID.String()),
			slog.String("mapped_order_id", initiation.OrderID.String()),
		)
		referenceMismatch = true
	}

	key := cb.IdempotencyKey()
	admission, err := s.idempotency.Admit(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("admit callback delivery: %w", err)
	}

	switch admission.Decision {
	case domain.AdmissionAlreadyCompleted:
		// Record the duplicate in the ledger and replay the cached outcome.
		if err := s.appendLedger(ctx, cb, domain.OutcomeDuplicateIgnored); err != nil {
			return nil, err
		}
		outcome := domain.OutcomeDuplicateIgnored
		if admission.CachedOutcome != nil {
			outcome = *admission.CachedOutcome
		}
		callbackOutcomes.WithLabelValues(cb.Provider, string(domain.OutcomeDuplicateIgnored)).Inc()
		return &CallbackResult{Outcome: outcome, OrderID: *cb.OrderID, Duplicate: true}, nil

	case domain.AdmissionInProgress:
		return nil, apperrors.Conflict("another attempt for this payment is in flight")
	}

	// Admitted. A tampered reference or a gateway-declared failure is
	// terminal; no verify call needed.
	if referenceMismatch || !cb.ClaimedSuccess {
		return s.conclude(ctx, cb, domain.OutcomeVerificationFailed)
	}

	order, err := s.orders.GetByID(ctx, *cb.OrderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.conclude(ctx, cb, domain.OutcomeVerificationFailed)
		}
		return nil, fmt.Errorf("load order for callback: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	verdict, err := provider.Verify(verifyCtx, &gateway.VerifyInput{
		Reference: cb.Reference,
		Amount:    order.ExpectedAmount,
		Currency:  order.Currency,
	})
	if err != nil {
		// The verdict is unknown. The idempotency record stays in_progress so
		// nobody half-processes this attempt; the reaper surfaces it if the
		// gateway retry never comes.
		s.logger.ErrorContext(ctx, "gateway verification unreachable",
			slog.String("provider", cb.Provider),
			slog.String("reference", cb.Reference),
			slog.String("order_id", cb.OrderID.String()),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Unavailable("payment gateway unreachable, delivery will be retried")
	}

	if !verdict.Verified {
		s.logger.InfoContext(ctx, "gateway rejected payment",
			slog.String("provider", cb.Provider),
			slog.String("reference", cb.Reference),
			slog.String("gateway_status", verdict.GatewayStatus),
		)
		return s.conclude(ctx, cb, domain.OutcomeVerificationFailed)
	}

	return s.settleAndAllocate(ctx, cb, order, verdict)
}

// settleAndAllocate runs the paid flip and the inventory claim in a single
// transaction. Either the order ends up paid with every item allocated, or
// nothing changes.
func (s *CallbackService) settleAndAllocate(ctx context.Context, cb domain.Callback, order *domain.Order, verdict *gateway.VerifyResult) (*CallbackResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin settlement transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := s.orders.GetForUpdateTx(ctx, tx, order.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.conclude(ctx, cb, domain.OutcomeVerificationFailed)
		}
		return nil, fmt.Errorf("lock order for settlement: %w", err)
	}

	if locked.Paid {
		// A concurrent delivery settled this order first.
		_ = tx.Rollback(ctx)
		s.finalize(ctx, cb, domain.OutcomeDuplicateIgnored)
		if err := s.appendLedger(ctx, cb, domain.OutcomeDuplicateIgnored); err != nil {
			return nil, err
		}
		callbackOutcomes.WithLabelValues(cb.Provider, string(domain.OutcomeDuplicateIgnored)).Inc()
		return &CallbackResult{Outcome: domain.OutcomeDuplicateIgnored, OrderID: locked.ID, Duplicate: true}, nil
	}

	// Integrity check is exact-value and exact-currency. A gateway that
	// settled the right number in the wrong currency did not pay this order.
	if verdict.Amount != locked.ExpectedAmount || verdict.Currency != locked.Currency {
		_ = tx.Rollback(ctx)
		s.logger.WarnContext(ctx, "verified amount does not match order",
			slog.String("order_id", locked.ID.String()),
			slog.Int64("expected_amount", locked.ExpectedAmount),
			slog.Int64("verified_amount", verdict.Amount),
			slog.String("expected_currency", locked.Currency),
			slog.String("verified_currency", verdict.Currency),
		)
		if err := s.orders.SetState(ctx, locked.ID, domain.FulfillmentFailed); err != nil {
			s.logger.ErrorContext(ctx, "failed to fail order after amount mismatch",
				slog.String("order_id", locked.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		s.invalidateOrder(ctx, locked.ID)
		return s.conclude(ctx, cb, domain.OutcomeAmountMismatch)
	}

	items, err := s.inventory.AllocateTx(ctx, tx, locked.ProductID, locked.ID, locked.Quantity)
	if err != nil {
		return nil, fmt.Errorf("allocate inventory: %w", err)
	}

	if len(items) < locked.Quantity {
		// Shortfall: roll everything back so no partial claim survives, then
		// flag the paid-but-unfillable order for a manual refund.
		_ = tx.Rollback(ctx)
		s.logger.WarnContext(ctx, "insufficient stock for settled payment",
			slog.String("order_id", locked.ID.String()),
			slog.Int("requested", locked.Quantity),
			slog.Int("available", len(items)),
		)
		if err := s.orders.SetState(ctx, locked.ID, domain.FulfillmentRefundFlagged); err != nil {
			s.logger.ErrorContext(ctx, "failed to flag order for refund",
				slog.String("order_id", locked.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		s.invalidateOrder(ctx, locked.ID)
		if s.producer != nil {
			if pubErr := s.producer.PublishOrderRefundFlagged(ctx, locked, cb.Provider, cb.Reference, "insufficient stock"); pubErr != nil {
				s.logger.ErrorContext(ctx, "failed to publish order.refund-flagged event",
					slog.String("order_id", locked.ID.String()),
					slog.String("error", pubErr.Error()),
				)
			}
		}
		return s.concludeWithoutEvents(ctx, cb, domain.OutcomeAllocationFailed)
	}

	if err := s.orders.MarkPaidTx(ctx, tx, locked.ID, domain.FulfillmentAllocated); err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settlement transaction: %w", err)
	}

	s.invalidateOrder(ctx, locked.ID)
	s.finalize(ctx, cb, domain.OutcomeVerifiedPaid)
	if err := s.appendLedger(ctx, cb, domain.OutcomeVerifiedPaid); err != nil {
		return nil, err
	}

	if s.producer != nil {
		if pubErr := s.producer.PublishPaymentSettled(ctx, locked, cb.Provider, cb.Reference); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment.settled event",
				slog.String("order_id", locked.ID.String()),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "payment settled and inventory allocated",
		slog.String("order_id", locked.ID.String()),
		slog.String("provider", cb.Provider),
		slog.String("reference", cb.Reference),
		slog.Int("allocated_items", len(items)),
	)

	callbackOutcomes.WithLabelValues(cb.Provider, string(domain.OutcomeVerifiedPaid)).Inc()
	return &CallbackResult{Outcome: domain.OutcomeVerifiedPaid, OrderID: locked.ID}, nil
}

// conclude records a terminal failure outcome: ledger append, idempotency
// finalize, failure event, metrics.
func (s *CallbackService) conclude(ctx context.Context, cb domain.Callback, outcome domain.Outcome) (*CallbackResult, error) {
	result, err := s.concludeWithoutEvents(ctx, cb, outcome)
	if err != nil {
		return nil, err
	}

	if s.producer != nil {
		orderID := ""
		if cb.OrderID != nil {
			orderID = cb.OrderID.String()
		}
		if pubErr := s.producer.PublishPaymentFailed(ctx, orderID, cb, outcome); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment.failed event",
				slog.String("order_id", orderID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	return result, nil
}

// concludeWithoutEvents is conclude for branches that publish their own,
// more specific event. The record is finalized before the append so that
// when the append fails, the gateway's retry replays the cached outcome and
// re-appends a duplicate_ignored row instead of being stuck on in_progress.
func (s *CallbackService) concludeWithoutEvents(ctx context.Context, cb domain.Callback, outcome domain.Outcome) (*CallbackResult, error) {
	s.finalize(ctx, cb, outcome)
	if err := s.appendLedger(ctx, cb, outcome); err != nil {
		return nil, err
	}
	callbackOutcomes.WithLabelValues(cb.Provider, string(outcome)).Inc()

	result := &CallbackResult{Outcome: outcome}
	if cb.OrderID != nil {
		result.OrderID = *cb.OrderID
	}
	return result, nil
}

// concludeUnmapped handles a callback whose reference cannot be resolved to
// any order. There is no idempotency record to finalize because admission
// never ran.
func (s *CallbackService) concludeUnmapped(ctx context.Context, cb domain.Callback) (*CallbackResult, error) {
	if err := s.appendLedger(ctx, cb, domain.OutcomeVerificationFailed); err != nil {
		return nil, err
	}
	callbackOutcomes.WithLabelValues(cb.Provider, string(domain.OutcomeVerificationFailed)).Inc()
	return &CallbackResult{Outcome: domain.OutcomeVerificationFailed}, nil
}

// appendLedger writes the attempt into the transaction ledger. The append
// must be durable before the gateway is acknowledged, so a failure here
// aborts the response instead of losing the audit row.
func (s *CallbackService) appendLedger(ctx context.Context, cb domain.Callback, outcome domain.Outcome) error {
	entry := &domain.TransactionLogEntry{
		OrderID:           cb.OrderID,
		Provider:          cb.Provider,
		ProviderReference: cb.Reference,
		RawPayload:        cb.RawPayload,
		Outcome:           outcome,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append transaction ledger entry",
			slog.String("provider", cb.Provider),
			slog.String("reference", cb.Reference),
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("append %s ledger entry: %w", outcome, err)
	}
	return nil
}

// invalidateOrder drops the cached order snapshot so status polls see the
// new state immediately.
func (s *CallbackService) invalidateOrder(ctx context.Context, id uuid.UUID) {
	if s.orderCache != nil {
		s.orderCache.InvalidateOrder(ctx, id)
	}
}

// finalize completes the idempotency record with the terminal outcome.
func (s *CallbackService) finalize(ctx context.Context, cb domain.Callback, outcome domain.Outcome) {
	if err := s.idempotency.Finalize(ctx, cb.IdempotencyKey(), outcome); err != nil {
		s.logger.ErrorContext(ctx, "failed to finalize idempotency record",
			slog.String("key", cb.IdempotencyKey()),
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()),
		)
	}
}
