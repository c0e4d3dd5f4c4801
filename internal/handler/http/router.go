package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikpour310/accountinox/internal/service"
	"github.com/nikpour310/accountinox/pkg/health"
	"github.com/nikpour310/accountinox/pkg/middleware"
)

// RouterConfig carries the non-service knobs the router needs.
type RouterConfig struct {
	// ServiceKey guards the intake endpoints (inventory loads). Empty
	// disables the check.
	ServiceKey string

	// PprofCIDRs allowlists the debug endpoints. Empty disables them.
	PprofCIDRs []string
}

// NewRouter creates a chi router with all fulfillment routes registered.
func NewRouter(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	callbackService *service.CallbackService,
	inventoryService *service.InventoryService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("fulfillment"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("fulfillment"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	orderHandler := NewOrderHandler(orderService, logger)
	paymentHandler := NewPaymentHandler(paymentService, logger)
	callbackHandler := NewCallbackHandler(callbackService, logger)
	inventoryHandler := NewInventoryHandler(inventoryService, logger)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", orderHandler.CreateOrder)
		r.With(middleware.CacheControl(5)).Get("/{id}", orderHandler.GetOrder)
		r.Get("/{id}/transactions", orderHandler.ListTransactions)
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.With(ContentTypeJSON).Post("/initiate", paymentHandler.InitiatePayment)

		// Gateways redirect browsers here with query parameters, so no
		// content-type enforcement.
		r.Get("/callback/{provider}", callbackHandler.HandleCallback)
		r.Post("/callback/{provider}", callbackHandler.HandleCallback)
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(middleware.ServiceAuth(cfg.ServiceKey))

		r.With(ContentTypeJSON).Post("/items", inventoryHandler.AddItems)
		r.With(middleware.CacheControl(10)).Get("/{productId}/availability", inventoryHandler.Availability)
	})

	return r
}
