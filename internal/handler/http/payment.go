package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nikpour310/accountinox/internal/service"
	"github.com/nikpour310/accountinox/pkg/httputil"
	"github.com/nikpour310/accountinox/pkg/validator"
)

// PaymentHandler handles HTTP requests for payment initiation.
type PaymentHandler struct {
	service *service.PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(svc *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		logger:  logger,
	}
}

// InitiatePaymentRequest is the JSON request body for starting a payment.
type InitiatePaymentRequest struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Provider string `json:"provider" validate:"required,oneof=zarinpal zibal mock"`
}

// InitiatePayment handles POST /api/v1/payments/initiate
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req InitiatePaymentRequest
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

	result, err := h.service.InitiatePayment(r.Context(), &service.InitiatePaymentInput{
		OrderID:  req.OrderID,
		Provider: req.Provider,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}
