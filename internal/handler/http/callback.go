package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikpour310/accountinox/internal/domain"
	"github.com/nikpour310/accountinox/internal/service"
	"github.com/nikpour310/accountinox/pkg/httputil"
)

// CallbackHandler receives return-from-gateway deliveries. Gateways redirect
// the customer's browser here with GET query parameters; some also POST
// server-to-server, so both methods land on the same handler.
type CallbackHandler struct {
	service *service.CallbackService
	logger  *slog.Logger
}

// NewCallbackHandler creates a new callback HTTP handler.
func NewCallbackHandler(svc *service.CallbackService, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{
		service: svc,
		logger:  logger,
	}
}

// HandleCallback handles GET/POST /api/v1/payments/callback/{provider}.
//
// A 200 response means the delivery reached a terminal outcome and the
// gateway must stop retrying, even when the outcome is a failure. 409 and
// 503 invite a retry.
func (h *CallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	if err := r.ParseForm(); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "malformed callback parameters"},
		})
		return
	}

	cb, err := parseCallback(providerName, r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
		})
		return
	}

	result, err := h.service.ProcessCallback(r.Context(), cb)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// parseCallback maps each gateway's parameter dialect onto the normalized
// callback. The full parameter set is preserved verbatim for the ledger.
func parseCallback(providerName string, r *http.Request) (domain.Callback, error) {
	params := make(map[string]string, len(r.Form))
	for key := range r.Form {
		params[key] = r.Form.Get(key)
	}
	raw, _ := json.Marshal(params)

	cb := domain.Callback{
		Provider:   providerName,
		RawPayload: raw,
	}

	switch providerName {
	case "zarinpal":
		cb.Reference = r.Form.Get("Authority")
		cb.ClaimedSuccess = r.Form.Get("Status") == "100"
	case "zibal":
		cb.Reference = r.Form.Get("trackId")
		cb.ClaimedSuccess = r.Form.Get("status") == "0"
	default:
		// Unknown providers are rejected by the orchestrator's registry
		// lookup; generic parameter names cover the mock gateway.
		cb.Reference = r.Form.Get("reference")
		cb.ClaimedSuccess = r.Form.Get("status") == "success"
	}

	if rawOrderID := r.Form.Get("order_id"); rawOrderID != "" {
		orderID, err := uuid.Parse(rawOrderID)
		if err != nil {
			return domain.Callback{}, err
		}
		cb.OrderID = &orderID
	}

	return cb, nil
}
