package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikpour310/accountinox/internal/service"
	"github.com/nikpour310/accountinox/pkg/httputil"
	"github.com/nikpour310/accountinox/pkg/pagination"
	"github.com/nikpour310/accountinox/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Quantity       int    `json:"quantity" validate:"required,gte=1,lte=100"`
	ExpectedAmount int64  `json:"expected_amount" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,len=3"`
	CustomerPhone  string `json:"customer_phone" validate:"required,min=10,max=15"`
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), &service.CreateOrderInput{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		ExpectedAmount: req.ExpectedAmount,
		Currency:       req.Currency,
		CustomerPhone:  req.CustomerPhone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ListTransactions handles GET /api/v1/orders/{id}/transactions
func (h *OrderHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	params := pagination.FromRequest(r)

	result, err := h.service.ListTransactions(r.Context(), id, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
