package domain

import "time"

// IdempotencyState is the lifecycle state of an idempotency record.
type IdempotencyState string

const (
	IdempotencyInProgress IdempotencyState = "in_progress"
	IdempotencyCompleted  IdempotencyState = "completed"
)

// IdempotencyRecord claims a callback delivery for exactly one worker. The
// primary-key insert on Key is the admission race: whoever inserts first
// proceeds, everyone else observes this record.
type IdempotencyRecord struct {
	Key           string           `json:"key"`
	State         IdempotencyState `json:"state"`
	ResultOutcome *Outcome         `json:"result_outcome,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// AdmissionDecision tells the orchestrator how to treat an incoming delivery.
type AdmissionDecision string

const (
	AdmissionProceed          AdmissionDecision = "proceed"
	AdmissionAlreadyCompleted AdmissionDecision = "already_completed"
	AdmissionInProgress       AdmissionDecision = "in_progress"
)

// Admission is the outcome of admitting a callback delivery. CachedOutcome is
// set only when Decision is AdmissionAlreadyCompleted.
type Admission struct {
	Decision      AdmissionDecision
	CachedOutcome *Outcome
}
