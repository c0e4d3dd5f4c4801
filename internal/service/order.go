package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/internal/repository"
	apperrors "github.com/nikpour310/accountinox/pkg/errors"
	"github.com/nikpour310/accountinox/pkg/pagination"
	"github.com/nikpour310/accountinox/pkg/validator"
)

// orderCacheTTL keeps status reads cheap between gateway redirect polls
// without letting the paid flip go unnoticed for long.
const orderCacheTTL = 10 * time.Second

// CreateOrderInput is the intake payload for a new order.
type CreateOrderInput struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Quantity       int    `json:"quantity" validate:"required,gte=1,lte=100"`
	ExpectedAmount int64  `json:"expected_amount" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,len=3"`
	CustomerPhone  string `json:"customer_phone" validate:"required,min=10,max=15"`
}

// OrderService handles order intake and status reads.
type OrderService struct {
	orders repository.OrderRepository
	ledger repository.TransactionLogRepository
	cache  *redis.Client
	logger *slog.Logger
}

// NewOrderService creates a new order service. The cache client may be nil,
// in which case every read goes to the database.
func NewOrderService(
	orders repository.OrderRepository,
	ledger repository.TransactionLogRepository,
	cache *redis.Client,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders: orders,
		ledger: ledger,
		cache:  cache,
		logger: logger,
	}
}

// CreateOrder registers a pending order awaiting payment.
func (s *OrderService) CreateOrder(ctx context.Context, input *CreateOrderInput) (*domain.Order, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	productID, err := uuid.Parse(input.ProductID)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid product id")
	}

	order := &domain.Order{
		ID:             uuid.New(),
		ProductID:      productID,
		Quantity:       input.Quantity,
		ExpectedAmount: input.ExpectedAmount,
		Currency:       input.Currency,
		State:          domain.FulfillmentPending,
		CustomerPhone:  input.CustomerPhone,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID.String()),
		slog.String("product_id", productID.String()),
		slog.Int("quantity", order.Quantity),
	)

	return order, nil
}

// GetOrder returns the order, served from cache when fresh.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	key := s.cacheKey(id)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var order domain.Order
			if err := json.Unmarshal(cached, &order); err == nil {
				return &order, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "order cache read failed",
				slog.String("order_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(order); err == nil {
			if err := s.cache.Set(ctx, key, raw, orderCacheTTL).Err(); err != nil {
				s.logger.WarnContext(ctx, "order cache write failed",
					slog.String("order_id", id.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return order, nil
}

// InvalidateOrder drops the cached snapshot after a state change.
func (s *OrderService) InvalidateOrder(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(id)).Err(); err != nil {
		s.logger.WarnContext(ctx, "order cache invalidation failed",
			slog.String("order_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

// ListTransactions returns the order's ledger entries, newest first.
func (s *OrderService) ListTransactions(ctx context.Context, orderID uuid.UUID, params pagination.Params) (*pagination.Result[domain.TransactionLogEntry], error) {
	entries, total, err := s.ledger.ListByOrder(ctx, orderID, params.PerPage, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list order transactions: %w", err)
	}

	result := pagination.NewResult(entries, total, params)
	return &result, nil
}

func (s *OrderService) cacheKey(id uuid.UUID) string {
	return "accountinox:order:" + id.String()
}
