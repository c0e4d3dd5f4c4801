package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/internal/gateway"
	"github.com/nikpour310/accountinox/internal/repository"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
	"github.com/nikpour310/accountinox/pkg/validator"
)

// InitiatePaymentInput is the request to start a payment for an order.
type InitiatePaymentInput struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Provider string `json:"provider" validate:"required,oneof=zarinpal zibal mock"`
}

// InitiatePaymentResult carries the redirect target for the customer.
type InitiatePaymentResult struct {
	OrderID    uuid.UUID `json:"order_id"`
	Provider   string    `json:"provider"`
	Reference  string    `json:"reference"`
	PaymentURL string    `json:"payment_url"`
}

// PaymentService hands orders off to a gateway and records the initiation
// so the callback can be mapped back later.
type PaymentService struct {
	orders          repository.OrderRepository
	ledger          repository.TransactionLogRepository
	registry        *gateway.Registry
	callbackBaseURL string
	logger          *slog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	orders repository.OrderRepository,
	ledger repository.TransactionLogRepository,
	registry *gateway.Registry,
	callbackBaseURL string,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		orders:          orders,
		ledger:          ledger,
		registry:        registry,
		callbackBaseURL: callbackBaseURL,
		logger:          logger,
	}
}

// InitiatePayment registers the order with the gateway and returns the
// payment URL the customer is redirected to. The returned reference is
// appended to the transaction ledger as the initiation record.
func (s *PaymentService) InitiatePayment(ctx context.Context, input *InitiatePaymentInput) (*InitiatePaymentResult, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	provider, err := s.registry.Get(input.Provider)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	orderID, err := uuid.Parse(input.OrderID)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid order id")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Paid {
		return nil, apperrors.Conflict("order is already paid")
	}

	result, err := provider.Initiate(ctx, &gateway.InitiateInput{
		OrderID:     order.ID,
		Amount:      order.ExpectedAmount,
		Description: fmt.Sprintf("order %s", order.ID),
		CallbackURL: s.callbackURL(input.Provider, order.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("initiate payment with %s: %w", input.Provider, err)
	}

	raw, _ := json.Marshal(map[string]string{
		"reference":   result.Reference,
		"payment_url": result.PaymentURL,
	})
	entry := &domain.TransactionLogEntry{
		OrderID:           &order.ID,
		Provider:          input.Provider,
		ProviderReference: result.Reference,
		RawPayload:        raw,
		Outcome:           domain.OutcomeInitiated,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("record payment initiation: %w", err)
	}

	s.logger.InfoContext(ctx, "payment initiated",
		slog.String("order_id", order.ID.String()),
		slog.String("provider", input.Provider),
		slog.String("reference", result.Reference),
	)

	paymentsInitiated.WithLabelValues(input.Provider).Inc()

	return &InitiatePaymentResult{
		OrderID:    order.ID,
		Provider:   input.Provider,
		Reference:  result.Reference,
		PaymentURL: result.PaymentURL,
	}, nil
}

// callbackURL builds the per-provider return URL. The order id rides along
// as a query parameter; the (provider, reference) ledger mapping remains the
// authoritative fallback when a gateway strips it.
func (s *PaymentService) callbackURL(provider string, orderID uuid.UUID) string {
	return fmt.Sprintf("%s/api/v1/payments/callback/%s?order_id=%s",
		s.callbackBaseURL, provider, url.QueryEscape(orderID.String()))
}
