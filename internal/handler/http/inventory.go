package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikpour310/accountinox/internal/service"
	"github.com/nikpour310/accountinox/pkg/httputil"
	"github.com/nikpour310/accountinox/pkg/validator"
)

// InventoryHandler handles HTTP requests for credential stock.
type InventoryHandler struct {
	service *service.InventoryService
	logger  *slog.Logger
}

// NewInventoryHandler creates a new inventory HTTP handler.
func NewInventoryHandler(svc *service.InventoryService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  logger,
	}
}

// AddItemsRequest is the JSON request body for loading credential stock.
type AddItemsRequest struct {
	ProductID   string   `json:"product_id" validate:"required,uuid"`
	Credentials []string `json:"credentials" validate:"required,min=1,max=500,dive,required"`
}

// AddItems handles POST /api/v1/inventory/items
func (h *InventoryHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20) // batches of credentials

	var req AddItemsRequest
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

	added, err := h.service.AddItems(r.Context(), &service.AddInventoryInput{
		ProductID:   req.ProductID,
		Credentials: req.Credentials,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: map[string]int{"added": added}})
}

// Availability handles GET /api/v1/inventory/{productId}/availability
func (h *InventoryHandler) Availability(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	count, err := h.service.Availability(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"product_id": productID,
		"available":  count,
	}})
}
