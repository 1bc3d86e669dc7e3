package domain

import (
	"time"
)

// ConditionKind classifies which guard condition a FailureReason refers to.
type ConditionKind string

// The closed set of condition kinds produced by the checker pipeline.
const (
	CondActor      ConditionKind = "actor"
	CondTemporal   ConditionKind = "temporal"
	CondLocation   ConditionKind = "location"
	CondState      ConditionKind = "state"
	CondDependency ConditionKind = "dependency"
	CondExpired    ConditionKind = "expired"
)

// FailureReason is a structured explanation of a failed guard condition.
// Guard mismatches are data, not errors: they are collected into Attempt
// records rather than returned as Go errors.
type FailureReason struct {
	// Kind names the condition that failed.
	Kind ConditionKind `json:"kind"`

	// Expected is what the guard required.
	Expected any `json:"expected"`

	// Actual is what the context provided.
	Actual any `json:"actual"`

	// Message is a human-readable explanation.
	Message string `json:"message"`
}

// StateChange records one applied mutation (key, old value, new value)
// attributed to a bound unit.
type StateChange struct {
	Key string `json:"key"`
	Old any    `json:"old"`
	New any    `json:"new"`
}

// BoundResult is the product of a successful bind: the released payload
// plus provenance.
type BoundResult struct {
	// ID uniquely identifies this binding (a UUID).
	ID string `json:"id"`

	// UnitID and UnitType identify the unit that bound.
	UnitID   string `json:"unit_id"`
	UnitType string `json:"unit_type"`

	// Effect is the unit's payload, released by the binding.
	Effect map[string]any `json:"effect"`

	// Weight is the payload-supplied weight, defaulting to 1.0.
	Weight float64 `json:"weight"`

	// BoundAt records when the binding happened.
	BoundAt time.Time `json:"bound_at"`

	// ContextSnapshot captures the context the unit bound against.
	ContextSnapshot map[string]any `json:"context_snapshot"`

	// AppliedChanges lists state mutations applied on behalf of this
	// binding during a sweep, in application order.
	AppliedChanges []StateChange `json:"applied_changes,omitempty"`
}

// Attempt is an audit record of one binding attempt, successful or not.
type Attempt struct {
	// UnitID identifies the attempted unit.
	UnitID string `json:"unit_id"`

	// Timestamp records when the attempt was made.
	Timestamp time.Time `json:"timestamp"`

	// ContextSnapshot captures the context at the time of the attempt.
	ContextSnapshot map[string]any `json:"context_snapshot"`

	// Success reports the outcome.
	Success bool `json:"success"`

	// BoundResultID references the BoundResult on success.
	BoundResultID string `json:"bound_result_id,omitempty"`

	// FailureReasons carries every failing diagnostic on failure; a
	// single attempt may fail several conditions at once.
	FailureReasons []FailureReason `json:"failure_reasons,omitempty"`

	// AppliedChanges mirrors the state mutations applied for the
	// corresponding BoundResult, patched in after the sweep round.
	AppliedChanges []StateChange `json:"applied_changes,omitempty"`
}
