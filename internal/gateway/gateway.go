package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InitiateInput holds the parameters for requesting a payment session.
type InitiateInput struct {
	OrderID     uuid.UUID
	Amount      int64 // smallest currency unit (Rials for IRT)
	Description string
	CallbackURL string
}

// InitiateResult holds the gateway's reference and the URL the customer is
// redirected to.
type InitiateResult struct {
	Reference  string
	PaymentURL string
}

// VerifyInput holds the parameters for a server-to-server verification call.
type VerifyInput struct {
	Reference string
	Amount    int64
	Currency  string
}

// VerifyResult is the gateway's verdict on a payment. Verified false with a
// nil error is a terminal rejection; a non-nil error from Verify means the
// gateway could not be reached and the attempt may be retried.
type VerifyResult struct {
	Verified      bool
	Amount        int64
	Currency      string // currency the gateway settles in (IRT for the Iranian gateways)
	GatewayRef    string // settlement reference (ZarinPal RefID, Zibal refNumber)
	GatewayStatus string
}

// Provider defines the interface for payment gateway integrations.
type Provider interface {
	// Name returns the provider name (e.g., "zarinpal", "zibal", "mock").
	Name() string

	// Initiate requests a payment session from the gateway.
	Initiate(ctx context.Context, input *InitiateInput) (*InitiateResult, error)

	// Verify confirms with the gateway that a payment actually settled.
	Verify(ctx context.Context, input *VerifyInput) (*VerifyResult, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", name)
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
