package domain

import (
	"time"
)

// UnitState is a lifecycle state of a registered unit.
type UnitState string

// Lifecycle states. One-shot units follow Created → Dormant → Activated →
// Archived; reusable units may return from Activated to Dormant; units
// whose hard deadline passes move Dormant → Expired.
const (
	StateCreated   UnitState = "created"
	StateDormant   UnitState = "dormant"
	StateActivated UnitState = "activated"
	StateArchived  UnitState = "archived"
	StateExpired   UnitState = "expired"
)

// legalTransitions is the closed table of permitted lifecycle moves.
var legalTransitions = map[UnitState][]UnitState{
	StateCreated:   {StateDormant},
	StateDormant:   {StateActivated, StateExpired},
	StateActivated: {StateArchived, StateDormant},
}

// LegalTransition reports whether to is reachable from from in one step.
func LegalTransition(from, to UnitState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition records one validated lifecycle move. Values are only
// constructible through NewTransition, so an illegal move can never
// appear in a ledger.
type Transition struct {
	UnitID    string    `json:"unit_id"`
	From      UnitState `json:"from"`
	To        UnitState `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// NewTransition builds a Transition, failing with a *TransitionError when
// the move is not in the legal table.
func NewTransition(unitID string, from, to UnitState, reason string) (Transition, error) {
	if !LegalTransition(from, to) {
		return Transition{}, &TransitionError{UnitID: unitID, From: from, To: to}
	}
	return Transition{
		UnitID:    unitID,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	}, nil
}
