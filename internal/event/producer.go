package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikpour310/accountinox/internal/domain"
	pkgkafka "github.com/nikpour310/accountinox/pkg/kafka"
)

// Kafka topic constants for fulfillment domain events.
const (
	TopicPaymentSettled     = "accountinox.payment.settled"
	TopicPaymentFailed      = "accountinox.payment.failed"
	TopicOrderRefundFlagged = "accountinox.order.refund-flagged"
)

// Aggregate type constant.
const AggregateTypeOrder = "order"

// Source identifier for events originating from this service.
const SourceFulfillment = "fulfillment-service"

// PaymentSettledData is the payload for a payment.settled event.
type PaymentSettledData struct {
	OrderID           string `json:"order_id"`
	ProductID         string `json:"product_id"`
	Quantity          int    `json:"quantity"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Provider          string `json:"provider"`
	ProviderReference string `json:"provider_reference"`
}

// PaymentFailedData is the payload for a payment.failed event.
type PaymentFailedData struct {
	OrderID           string `json:"order_id"`
	Provider          string `json:"provider"`
	ProviderReference string `json:"provider_reference"`
	Outcome           string `json:"outcome"`
}

// OrderRefundFlaggedData is the payload for an order.refund-flagged event.
// Consumed by support tooling that queues the manual refund.
type OrderRefundFlaggedData struct {
	OrderID           string `json:"order_id"`
	ProductID         string `json:"product_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Provider          string `json:"provider"`
	ProviderReference string `json:"provider_reference"`
	Reason            string `json:"reason"`
}

// Producer publishes fulfillment domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishPaymentSettled publishes a payment.settled event.
func (p *Producer) PublishPaymentSettled(ctx context.Context, order *domain.Order, provider, reference string) error {
	data := PaymentSettledData{
		OrderID:           order.ID.String(),
		ProductID:         order.ProductID.String(),
		Quantity:          order.Quantity,
		Amount:            order.ExpectedAmount,
		Currency:          order.Currency,
		Provider:          provider,
		ProviderReference: reference,
	}

	event, err := pkgkafka.NewEvent(TopicPaymentSettled, order.ID.String(), AggregateTypeOrder, SourceFulfillment, data)
	if err != nil {
		return fmt.Errorf("create payment.settled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPaymentSettled, event); err != nil {
		return fmt.Errorf("publish payment.settled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published payment.settled event",
		slog.String("order_id", order.ID.String()),
		slog.String("provider", provider),
	)

	return nil
}

// PublishPaymentFailed publishes a payment.failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, orderID string, cb domain.Callback, outcome domain.Outcome) error {
	data := PaymentFailedData{
		OrderID:           orderID,
		Provider:          cb.Provider,
		ProviderReference: cb.Reference,
		Outcome:           string(outcome),
	}

	event, err := pkgkafka.NewEvent(TopicPaymentFailed, orderID, AggregateTypeOrder, SourceFulfillment, data)
	if err != nil {
		return fmt.Errorf("create payment.failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPaymentFailed, event); err != nil {
		return fmt.Errorf("publish payment.failed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published payment.failed event",
		slog.String("order_id", orderID),
		slog.String("outcome", string(outcome)),
	)

	return nil
}

// PublishOrderRefundFlagged publishes an order.refund-flagged event.
func (p *Producer) PublishOrderRefundFlagged(ctx context.Context, order *domain.Order, provider, reference, reason string) error {
	data := OrderRefundFlaggedData{
		OrderID:           order.ID.String(),
		ProductID:         order.ProductID.String(),
		Amount:            order.ExpectedAmount,
		Currency:          order.Currency,
		Provider:          provider,
		ProviderReference: reference,
		Reason:            reason,
	}

	event, err := pkgkafka.NewEvent(TopicOrderRefundFlagged, order.ID.String(), AggregateTypeOrder, SourceFulfillment, data)
	if err != nil {
		return fmt.Errorf("create order.refund-flagged event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderRefundFlagged, event); err != nil {
		return fmt.Errorf("publish order.refund-flagged event: %w", err)
	}

	p.logger.WarnContext(ctx, "published order.refund-flagged event",
		slog.String("order_id", order.ID.String()),
		slog.String("reason", reason),
	)

	return nil
}
