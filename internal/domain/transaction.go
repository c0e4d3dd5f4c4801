package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies the terminal result of a single payment attempt.
type Outcome string

const (
	OutcomeInitiated          Outcome = "initiated"
	OutcomeVerifiedPaid       Outcome = "verified_paid"
	OutcomeVerificationFailed Outcome = "verification_failed"
	OutcomeAmountMismatch     Outcome = "amount_mismatch"
	OutcomeDuplicateIgnored   Outcome = "duplicate_ignored"
	OutcomeAllocationFailed   Outcome = "allocation_failed"
)

// Terminal reports whether the outcome ends the payment attempt. Every
// outcome recorded in the ledger is terminal for its attempt; transient
// failures (gateway unreachable, concurrent attempt in flight) never reach
// the ledger.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeVerifiedPaid, OutcomeVerificationFailed, OutcomeAmountMismatch,
		OutcomeDuplicateIgnored, OutcomeAllocationFailed:
		return true
	}
	return false
}

// TransactionLogEntry is one row of the append-only payment ledger. Rows are
// inserted and never updated or deleted; the ledger is the audit trail every
// dispute is settled against.
type TransactionLogEntry struct {
	ID                int64           `json:"id"`
	OrderID           *uuid.UUID      `json:"order_id,omitempty"`
	Provider          string          `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	RawPayload        json.RawMessage `json:"raw_payload"`
	Outcome           Outcome         `json:"outcome"`
	CreatedAt         time.Time       `json:"created_at"`
}
