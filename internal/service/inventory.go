package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/internal/repository"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
	"github.com/nikpour310/accountinox/pkg/kafka"
	"github.com/nikpour310/accountinox/pkg/validator"
)

// AddInventoryInput is the intake payload for new credential stock.
type AddInventoryInput struct {
	ProductID   string   `json:"product_id" validate:"required,uuid"`
	Credentials []string `json:"credentials" validate:"required,min=1,max=500,dive,required"`
}

// RestockEventData is the payload of an inventory restock event published by
// the procurement pipeline.
type RestockEventData struct {
	ProductID   string   `json:"product_id"`
	Credentials []string `json:"credentials"`
}

// InventoryService manages credential stock intake and availability reads.
type InventoryService struct {
	inventory repository.InventoryRepository
	logger    *slog.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(inventory repository.InventoryRepository, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		inventory: inventory,
		logger:    logger,
	}
}

// AddItems registers new credential payloads as available stock.
func (s *InventoryService) AddItems(ctx context.Context, input *AddInventoryInput) (int, error) {
	if err := validator.Validate(input); err != nil {
		return 0, err
	}

	productID, err := uuid.Parse(input.ProductID)
	if err != nil {
		return 0, apperrors.InvalidInput("invalid product id")
	}

	added := 0
	for _, credential := range input.Credentials {
		item := &domain.InventoryItem{
			ID:                uuid.New(),
			ProductID:         productID,
			CredentialPayload: []byte(credential),
			Status:            domain.ItemAvailable,
		}
		if err := s.inventory.Insert(ctx, item); err != nil {
			return added, fmt.Errorf("insert inventory item: %w", err)
		}
		added++
	}

	s.logger.InfoContext(ctx, "inventory items added",
		slog.String("product_id", productID.String()),
		slog.Int("count", added),
	)

	return added, nil
}

// Availability returns the number of unallocated items for a product.
func (s *InventoryService) Availability(ctx context.Context, productID uuid.UUID) (int, error) {
	count, err := s.inventory.CountAvailable(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("count available inventory: %w", err)
	}

	inventoryAvailable.WithLabelValues(productID.String()).Set(float64(count))
	return count, nil
}

// RestockHandler returns the Kafka handler for restock events from the
// procurement pipeline. Wrap it with kafka.IdempotentHandler so redelivered
// events do not double-insert stock.
func (s *InventoryService) RestockHandler() kafka.Handler {
	return func(ctx context.Context, event *kafka.Event) error {
		var data RestockEventData
		if err := event.UnmarshalData(&data); err != nil {
			return fmt.Errorf("unmarshal restock event: %w", err)
		}

		added, err := s.AddItems(ctx, &AddInventoryInput{
			ProductID:   data.ProductID,
			Credentials: data.Credentials,
		})
		if err != nil {
			return fmt.Errorf("apply restock event %s: %w", event.EventID, err)
		}

		s.logger.InfoContext(ctx, "restock event applied",
			slog.String("event_id", event.EventID),
			slog.String("product_id", data.ProductID),
			slog.Int("added", added),
		)

		return nil
	}
}
