package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors for unit construction and engine operations.
var (
	// ErrEmptyUnitID indicates a unit was built without an ID.
	ErrEmptyUnitID = errors.New("unit ID cannot be empty")

	// ErrInvalidUnitType indicates a type tag outside the CATEGORY:name form.
	ErrInvalidUnitType = errors.New("invalid unit type")

	// ErrInvalidConsumption indicates an unrecognized consumption mode.
	ErrInvalidConsumption = errors.New("consumption must be 'one_shot' or 'reusable'")

	// ErrUnknownUnit indicates a lookup for an unregistered unit ID.
	ErrUnknownUnit = errors.New("unknown unit")
)

// TransitionError reports an attempt to record an illegal lifecycle move.
// It is a structural invariant violation, never a guard mismatch.
type TransitionError struct {
	UnitID string
	From   UnitState
	To     UnitState
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for unit %s: %s -> %s", e.UnitID, e.From, e.To)
}

// CycleError reports a circular dependency detected at registration.
// Path holds the ordered cycle, first node repeated at the end.
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}
