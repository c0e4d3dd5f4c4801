package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nikpour310/accountinox/internal/gateway"
	"github.com/nikpour310/accountinox/pkg/httpclient"
)

const (
	sandboxBaseURL    = "https://sandbox.zarinpal.com/pg"
	productionBaseURL = "https://www.zarinpal.com/pg"

	// statusOK is ZarinPal's success code for both request and verification.
	statusOK = 100

	// settlementCurrency is the only currency ZarinPal settles in.
	settlementCurrency = "IRT"
)

// Config holds the ZarinPal adapter configuration.
type Config struct {
	MerchantID string
	Sandbox    bool
	// BaseURL overrides the gateway endpoint; used in tests. Empty selects
	// the sandbox or production URL based on Sandbox.
	BaseURL string
}

// Provider is the ZarinPal payment gateway adapter.
type Provider struct {
	cfg    Config
	client *httpclient.CircuitBreakerClient
}

// New creates a ZarinPal provider that calls the gateway through the given
// circuit-breaker protected client.
func New(cfg Config, client *httpclient.CircuitBreakerClient) *Provider {
	if cfg.BaseURL == "" {
		if cfg.Sandbox {
			cfg.BaseURL = sandboxBaseURL
		} else {
			cfg.BaseURL = productionBaseURL
		}
	}
	return &Provider{cfg: cfg, client: client}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "zarinpal"
}

type requestPayload struct {
	MerchantID  string `json:"MerchantID"`
	Amount      int64  `json:"Amount"`
	Description string `json:"Description"`
	CallbackURL string `json:"CallbackURL"`
}

type requestResponse struct {
	Status    int    `json:"Status"`
	Authority string `json:"Authority"`
}

// Initiate requests a payment session. On success the customer is redirected
// to StartPay with the returned authority.
func (p *Provider) Initiate(ctx context.Context, input *gateway.InitiateInput) (*gateway.InitiateResult, error) {
	if p.cfg.MerchantID == "" {
		return nil, fmt.Errorf("zarinpal: merchant id not configured")
	}

	payload := requestPayload{
		MerchantID:  p.cfg.MerchantID,
		Amount:      input.Amount,
		Description: input.Description,
		CallbackURL: input.CallbackURL,
	}
	if payload.Description == "" {
		payload.Description = fmt.Sprintf("Order %s", input.OrderID)
	}

	var out requestResponse
	if err := p.postJSON(ctx, p.cfg.BaseURL+"/rest/WebGate/PaymentRequest.json", payload, &out); err != nil {
		return nil, err
	}

	if out.Status != statusOK {
		return nil, fmt.Errorf("zarinpal: payment request rejected with status %d", out.Status)
	}

	return &gateway.InitiateResult{
		Reference:  out.Authority,
		PaymentURL: fmt.Sprintf("%s/StartPay/%s", p.cfg.BaseURL, out.Authority),
	}, nil
}

type verifyPayload struct {
	MerchantID string `json:"MerchantID"`
	Authority  string `json:"Authority"`
	Amount     int64  `json:"Amount"`
}

type verifyResponse struct {
	Status int    `json:"Status"`
	RefID  string `json:"RefID"`
	Amount int64  `json:"Amount"`
}

// Verify confirms the payment with ZarinPal. A response with a non-success
// status is a terminal rejection, not an error; errors are reserved for
// transport failures where the verdict is unknown.
func (p *Provider) Verify(ctx context.Context, input *gateway.VerifyInput) (*gateway.VerifyResult, error) {
	if p.cfg.MerchantID == "" {
		return nil, fmt.Errorf("zarinpal: merchant id not configured")
	}

	payload := verifyPayload{
		MerchantID: p.cfg.MerchantID,
		Authority:  input.Reference,
		Amount:     input.Amount,
	}

	var out verifyResponse
	if err := p.postJSON(ctx, p.cfg.BaseURL+"/rest/WebGate/PaymentVerification.json", payload, &out); err != nil {
		return nil, err
	}

	result := &gateway.VerifyResult{
		Verified:      out.Status == statusOK,
		Amount:        out.Amount,
		Currency:      settlementCurrency,
		GatewayRef:    out.RefID,
		GatewayStatus: strconv.Itoa(out.Status),
	}
	return result, nil
}

func (p *Provider) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("zarinpal: marshal payload: %w", err)
	}

	resp, err := p.client.Post(ctx, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("zarinpal: call gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zarinpal: decode response: %w", err)
	}

	return nil
}
