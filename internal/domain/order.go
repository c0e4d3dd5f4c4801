package domain

import (
	"time"

	"github.com/google/uuid"
)

// FulfillmentState tracks how far an order has progressed after checkout.
// States only move forward: pending -> paid -> allocated. The terminal
// branches failed and refund_flagged are never left once entered.
type FulfillmentState string

const (
	FulfillmentPending       FulfillmentState = "pending"
	FulfillmentPaid          FulfillmentState = "paid"
	FulfillmentAllocated     FulfillmentState = "allocated"
	FulfillmentFailed        FulfillmentState = "failed"
	FulfillmentRefundFlagged FulfillmentState = "refund_flagged"
)

// stateRank orders the forward-moving states. Terminal branches are handled
// separately in CanTransition.
var stateRank = map[FulfillmentState]int{
	FulfillmentPending:   0,
	FulfillmentPaid:      1,
	FulfillmentAllocated: 2,
}

// CanTransition reports whether an order may move from one fulfillment state
// to another. Forward moves along pending -> paid -> allocated are allowed,
// as are moves from a non-terminal state into failed or refund_flagged.
func CanTransition(from, to FulfillmentState) bool {
	if from == FulfillmentFailed || from == FulfillmentRefundFlagged {
		return false
	}
	if to == FulfillmentFailed || to == FulfillmentRefundFlagged {
		return true
	}
	fromRank, ok := stateRank[from]
	if !ok {
		return false
	}
	toRank, ok := stateRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Order is a checkout record awaiting payment confirmation and credential
// allocation. ExpectedAmount is in the smallest currency unit (Rials for IRT).
type Order struct {
	ID             uuid.UUID        `json:"id"`
	ProductID      uuid.UUID        `json:"product_id"`
	Quantity       int              `json:"quantity"`
	ExpectedAmount int64            `json:"expected_amount"`
	Currency       string           `json:"currency"`
	Paid           bool             `json:"paid"`
	State          FulfillmentState `json:"fulfillment_state"`
	CustomerPhone  string           `json:"customer_phone,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SettleOutcome is the result of attempting to mark an order paid.
type SettleOutcome string

const (
	SettleSettled        SettleOutcome = "settled"
	SettleAlreadyPaid    SettleOutcome = "already_paid"
	SettleAmountMismatch SettleOutcome = "amount_mismatch"
	SettleNotFound       SettleOutcome = "not_found"
)
