package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Callback is a gateway return normalized into provider-independent form.
// OrderID may be nil when the gateway did not echo our order parameter; the
// orchestrator then resolves it through the initiation ledger row for
// (Provider, Reference).
type Callback struct {
	Provider       string          `json:"provider"`
	Reference      string          `json:"reference"`
	OrderID        *uuid.UUID      `json:"order_id,omitempty"`
	ClaimedSuccess bool            `json:"claimed_success"`
	RawPayload     json.RawMessage `json:"raw_payload"`
}

// IdempotencyKey derives the deduplication key for this delivery. Two
// deliveries with the same provider, reference, and order are the same
// payment attempt regardless of how many times the gateway retries.
func (c Callback) IdempotencyKey() string {
	orderPart := ""
	if c.OrderID != nil {
		orderPart = c.OrderID.String()
	}
	return fmt.Sprintf("%s:%s:%s", c.Provider, c.Reference, orderPart)
}
