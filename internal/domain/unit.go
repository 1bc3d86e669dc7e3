package domain

import (
	"fmt"
	"regexp"
	"slices"
)

// Consumption controls whether a unit can bind more than once within a
// single cascade call.
type Consumption string

const (
	// OneShot units burn after binding: later rounds of the same sweep
	// skip them.
	OneShot Consumption = "one_shot"

	// Reusable units stay eligible and may bind again in later rounds.
	Reusable Consumption = "reusable"
)

// Valid reports whether the consumption mode is one of the allowed values.
func (c Consumption) Valid() bool { return c == OneShot || c == Reusable }

// unitTypePattern constrains unit type tags to the CATEGORY:name form.
var unitTypePattern = regexp.MustCompile(`^[A-Z]+:[a-z_]+$`)

// Guard is the conjunctive predicate that must hold for a unit to bind.
// Every present field must pass; an absent field is vacuously true.
type Guard struct {
	// Actors restricts binding to contexts whose actor is a member.
	Actors []string `json:"actors,omitempty" yaml:"actors,omitempty"`

	// Temporal holds a "<after|before>:<reference>" expression evaluated
	// against the context timestamp or state (see ParseTemporal).
	Temporal string `json:"temporal,omitempty" yaml:"temporal,omitempty"`

	// Locations restricts binding to contexts whose location is a member.
	Locations []string `json:"locations,omitempty" yaml:"locations,omitempty"`

	// State requires strict equality between each entry and the
	// corresponding context state value.
	State map[string]any `json:"state,omitempty" yaml:"state,omitempty"`
}

// AllowsActor reports whether the guard's actor set admits the given actor.
// An absent set admits everyone.
func (g Guard) AllowsActor(actor string) bool {
	return len(g.Actors) == 0 || slices.Contains(g.Actors, actor)
}

// AllowsLocation reports whether the guard's location set admits the
// given location. An absent set admits everywhere.
func (g Guard) AllowsLocation(where string) bool {
	return len(g.Locations) == 0 || slices.Contains(g.Locations, where)
}

// Unit is a registered item of dormant payload awaiting a satisfying
// context. Units are immutable values: the registry stores them once and
// re-registering the same ID overwrites the stored value.
type Unit struct {
	// ID uniquely identifies the unit within an engine.
	ID string `json:"id" yaml:"id"`

	// Type tags the unit in CATEGORY:name form, e.g. "DOOR:unlock".
	Type string `json:"type" yaml:"type"`

	// Guard is the predicate gating activation.
	Guard Guard `json:"guard" yaml:"guard"`

	// Payload is the dormant effect released on binding. The reserved
	// keys "weight" (numeric) and "state_mutation" (map) are interpreted
	// by the engine; everything else passes through untouched.
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`

	// Metadata carries caller annotations the engine never inspects.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// DependsOn lists unit IDs that must have activated before this
	// unit's dependency check passes.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Consumption selects one-shot or reusable binding within a sweep.
	// Empty defaults to OneShot.
	Consumption Consumption `json:"consumption,omitempty" yaml:"consumption,omitempty"`
}

// ConsumptionMode returns the effective consumption mode, defaulting to
// OneShot when unset.
func (u Unit) ConsumptionMode() Consumption {
	if u.Consumption == "" {
		return OneShot
	}
	return u.Consumption
}

// Validate checks the unit's structural invariants: non-empty ID, a type
// tag in CATEGORY:name form, and a recognized consumption mode.
func (u Unit) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("unit: %w", ErrEmptyUnitID)
	}
	if !unitTypePattern.MatchString(u.Type) {
		return fmt.Errorf("unit %s: %w: %q", u.ID, ErrInvalidUnitType, u.Type)
	}
	if u.Consumption != "" && !u.Consumption.Valid() {
		return fmt.Errorf("unit %s: %w: %q", u.ID, ErrInvalidConsumption, u.Consumption)
	}
	return nil
}

// String renders the unit's type tag for debugging.
func (u Unit) String() string { return fmt.Sprintf("⟦%s⟧", u.Type) }
