package mock

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikpour310/accountinox/internal/gateway"
)

// Provider is a payment gateway that always succeeds. It is intended for
// development and testing; verification echoes back the amount it is asked
// about, so the amount integrity check always passes.
type Provider struct{}

// NewProvider creates a new mock payment provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// Initiate simulates a payment request that always succeeds.
func (p *Provider) Initiate(_ context.Context, input *gateway.InitiateInput) (*gateway.InitiateResult, error) {
	reference := "mock_" + uuid.New().String()
	return &gateway.InitiateResult{
		Reference:  reference,
		PaymentURL: fmt.Sprintf("http://localhost:8080/mockpay/%s?order=%s", reference, input.OrderID),
	}, nil
}

// Verify simulates a verification that always confirms the payment. It
// echoes back the amount and currency it is asked about, so the integrity
// checks always pass.
func (p *Provider) Verify(_ context.Context, input *gateway.VerifyInput) (*gateway.VerifyResult, error) {
	return &gateway.VerifyResult{
		Verified:      true,
		Amount:        input.Amount,
		Currency:      input.Currency,
		GatewayRef:    "mock_ref_" + uuid.New().String(),
		GatewayStatus: "100",
	}, nil
}
