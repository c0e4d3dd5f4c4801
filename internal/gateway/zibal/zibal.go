package zibal

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
	sandboxBaseURL    = "https://sandbox.zibal.ir/api"
	productionBaseURL = "https://api.zibal.ir/api"
	startPayBaseURL   = "https://gateway.zibal.ir/start"

	// resultOK is Zibal's success code for both request and verification.
	resultOK = 0

	// settlementCurrency is the only currency Zibal settles in.
	settlementCurrency = "IRT"
)

// Config holds the Zibal adapter configuration.
type Config struct {
	Merchant string
	Sandbox  bool
	// BaseURL overrides the gateway endpoint; used in tests.
	BaseURL string
}

// Provider is the Zibal payment gateway adapter.
type Provider struct {
	cfg    Config
	client *httpclient.CircuitBreakerClient
}

// New creates a Zibal provider that calls the gateway through the given
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
	return "zibal"
}

type requestPayload struct {
	Merchant    string `json:"merchant"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callbackUrl"`
	Description string `json:"description"`
	OrderID     string `json:"orderId"`
}

type requestResponse struct {
	Result  int    `json:"result"`
	TrackID int64  `json:"trackId"`
	Message string `json:"message"`
}

// Initiate requests a payment session. Zibal identifies the session by a
// numeric track id, which becomes our provider reference.
func (p *Provider) Initiate(ctx context.Context, input *gateway.InitiateInput) (*gateway.InitiateResult, error) {
	if p.cfg.Merchant == "" {
		return nil, fmt.Errorf("zibal: merchant not configured")
	}

	payload := requestPayload{
		Merchant:    p.cfg.Merchant,
		Amount:      input.Amount,
		CallbackURL: input.CallbackURL,
		Description: input.Description,
		OrderID:     input.OrderID.String(),
	}
	if payload.Description == "" {
		payload.Description = fmt.Sprintf("Order %s", input.OrderID)
	}

	var out requestResponse
	if err := p.postJSON(ctx, p.cfg.BaseURL+"/v1/request", payload, &out); err != nil {
		return nil, err
	}

	if out.Result != resultOK {
		return nil, fmt.Errorf("zibal: payment request rejected: %s (result %d)", out.Message, out.Result)
	}

	reference := strconv.FormatInt(out.TrackID, 10)
	return &gateway.InitiateResult{
		Reference:  reference,
		PaymentURL: fmt.Sprintf("%s/%s", startPayBaseURL, reference),
	}, nil
}

type verifyPayload struct {
	Merchant string `json:"merchant"`
	TrackID  string `json:"trackId"`
}

type verifyResponse struct {
	Result    int    `json:"result"`
	Amount    int64  `json:"amount"`
	RefNumber any    `json:"refNumber"`
	Message   string `json:"message"`
}

// Verify confirms the payment with Zibal. A non-success result is a terminal
// rejection; errors are reserved for transport failures.
func (p *Provider) Verify(ctx context.Context, input *gateway.VerifyInput) (*gateway.VerifyResult, error) {
	if p.cfg.Merchant == "" {
		return nil, fmt.Errorf("zibal: merchant not configured")
	}

	payload := verifyPayload{
		Merchant: p.cfg.Merchant,
		TrackID:  input.Reference,
	}

	var out verifyResponse
	if err := p.postJSON(ctx, p.cfg.BaseURL+"/v1/verify", payload, &out); err != nil {
		return nil, err
	}

	return &gateway.VerifyResult{
		Verified:      out.Result == resultOK,
		Amount:        out.Amount,
		Currency:      settlementCurrency,
		GatewayRef:    fmt.Sprint(out.RefNumber),
		GatewayStatus: strconv.Itoa(out.Result),
	}, nil
}

func (p *Provider) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("zibal: marshal payload: %w", err)
	}

	resp, err := p.client.Post(ctx, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("zibal: call gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zibal: decode response: %w", err)
	}

	return nil
}
