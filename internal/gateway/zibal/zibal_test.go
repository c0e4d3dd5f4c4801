package zibal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikpour310/accountinox/internal/gateway"
	"github.com/nikpour310/accountinox/pkg/httpclient"
)

func testClient(t *testing.T) *httpclient.CircuitBreakerClient {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("zibal-test-"+uuid.NewString()), logger)
}

func TestProvider_Initiate(t *testing.T) {
	orderID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/request", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "zibal-merchant", payload["merchant"])
		assert.Equal(t, float64(990_000), payload["amount"])
		assert.Equal(t, orderID.String(), payload["orderId"])

		_ = json.NewEncoder(w).Encode(map[string]any{"result": 0, "trackId": 991234567})
	}))
	defer srv.Close()

	p := New(Config{Merchant: "zibal-merchant", BaseURL: srv.URL}, testClient(t))

	result, err := p.Initiate(context.Background(), &gateway.InitiateInput{
		OrderID:     orderID,
		Amount:      990_000,
		CallbackURL: "https://shop.example/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "991234567", result.Reference)
	assert.Equal(t, "https://gateway.zibal.ir/start/991234567", result.PaymentURL)
}

func TestProvider_Initiate_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": 102, "message": "merchant not found"})
	}))
	defer srv.Close()

	p := New(Config{Merchant: "zibal-merchant", BaseURL: srv.URL}, testClient(t))

	_, err := p.Initiate(context.Background(), &gateway.InitiateInput{OrderID: uuid.New(), Amount: 1000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merchant not found")
}

func TestProvider_Verify_Confirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/verify", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "991234567", payload["trackId"])

		_ = json.NewEncoder(w).Encode(map[string]any{"result": 0, "amount": 990_000, "refNumber": 555})
	}))
	defer srv.Close()

	p := New(Config{Merchant: "zibal-merchant", BaseURL: srv.URL}, testClient(t))

	result, err := p.Verify(context.Background(), &gateway.VerifyInput{Reference: "991234567", Amount: 990_000})
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, int64(990_000), result.Amount)
	assert.Equal(t, "IRT", result.Currency)
	assert.Equal(t, "0", result.GatewayStatus)
}

func TestProvider_Verify_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": 202, "message": "not paid"})
	}))
	defer srv.Close()

	p := New(Config{Merchant: "zibal-merchant", BaseURL: srv.URL}, testClient(t))

	result, err := p.Verify(context.Background(), &gateway.VerifyInput{Reference: "991234567"})
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, "202", result.GatewayStatus)
}

func TestProvider_Verify_NoMerchant(t *testing.T) {
	p := New(Config{BaseURL: "http://unused"}, testClient(t))
	_, err := p.Verify(context.Background(), &gateway.VerifyInput{Reference: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merchant not configured")
}

func TestProvider_BaseURLSelection(t *testing.T) {
	sandbox := New(Config{Merchant: "m", Sandbox: true}, testClient(t))
	assert.Equal(t, "https://sandbox.zibal.ir/api", sandbox.cfg.BaseURL)

	production := New(Config{Merchant: "m"}, testClient(t))
	assert.Equal(t, "https://api.zibal.ir/api", production.cfg.BaseURL)
}
