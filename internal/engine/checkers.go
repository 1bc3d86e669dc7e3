// Package engine implements the binding core: the guard checker pipeline,
// the cycle-checked unit registry, the cascade scheduler, and the
// combinator algebra over bindable units.
package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

// Verify the closed checker set at compile time.
var (
	_ ports.GuardChecker = (*dependencyChecker)(nil)
	_ ports.GuardChecker = (*expirationChecker)(nil)
	_ ports.GuardChecker = (*actorChecker)(nil)
	_ ports.GuardChecker = (*locationChecker)(nil)
	_ ports.GuardChecker = (*stateChecker)(nil)
	_ ports.GuardChecker = (*temporalChecker)(nil)
)

// dependencyChecker passes iff every declared dependency ID is in the
// engine's permanently-satisfied set.
type dependencyChecker struct {
	// satisfied reports whether a unit ID has ever successfully bound.
	satisfied func(id string) bool
}

func (c *dependencyChecker) Kind() domain.ConditionKind { return domain.CondDependency }

func (c *dependencyChecker) Matches(unit domain.Unit, _ domain.Context) bool {
	for _, dep := range unit.DependsOn {
		if !c.satisfied(dep) {
			return false
		}
	}
	return true
}

func (c *dependencyChecker) Check(unit domain.Unit, _ domain.Context) *domain.FailureReason {
	for _, dep := range unit.DependsOn {
		if !c.satisfied(dep) {
			return &domain.FailureReason{
				Kind:     domain.CondDependency,
				Expected: dep,
				Actual:   "not activated",
				Message:  fmt.Sprintf("dependency %q not yet activated", dep),
			}
		}
	}
	return nil
}

// expirationChecker signals the irreversible "expired" diagnostic for
// guards with an absolute "before:<ISO-datetime>" deadline that has
// passed. Symbolic "before:<state-key>" references never expire and
// ordinary temporal failures are left to the temporal checker.
type expirationChecker struct{}

func (expirationChecker) Kind() domain.ConditionKind { return domain.CondExpired }

func (expirationChecker) Matches(unit domain.Unit, ctx domain.Context) bool {
	when := unit.Guard.Temporal
	if !strings.HasPrefix(when, domain.OpBefore+":") {
		return true
	}
	expr, err := domain.ParseTemporal(when)
	if err != nil {
		return true
	}
	if dt, ok := expr.(domain.DateTimeTemporal); ok && !dt.Evaluate(ctx) {
		return false
	}
	return true
}

func (expirationChecker) Check(unit domain.Unit, ctx domain.Context) *domain.FailureReason {
	when := unit.Guard.Temporal
	if !strings.HasPrefix(when, domain.OpBefore+":") {
		return nil
	}
	expr, err := domain.ParseTemporal(when)
	if err != nil {
		return nil
	}
	if dt, ok := expr.(domain.DateTimeTemporal); ok && !dt.Evaluate(ctx) {
		return &domain.FailureReason{
			Kind:     domain.CondExpired,
			Expected: fmt.Sprintf("before %s", dt.Reference),
			Actual:   ctx.When().String(),
			Message:  fmt.Sprintf("unit expired: deadline %q has passed", dt.Reference),
		}
	}
	return nil
}

// actorChecker passes iff the context actor is in the guard's actor set.
type actorChecker struct{}

func (actorChecker) Kind() domain.ConditionKind { return domain.CondActor }

func (actorChecker) Matches(unit domain.Unit, ctx domain.Context) bool {
	return unit.Guard.AllowsActor(ctx.Actor())
}

func (actorChecker) Check(unit domain.Unit, ctx domain.Context) *domain.FailureReason {
	if unit.Guard.AllowsActor(ctx.Actor()) {
		return nil
	}
	expected := sortedSet(unit.Guard.Actors)
	return &domain.FailureReason{
		Kind:     domain.CondActor,
		Expected: expected,
		Actual:   ctx.Actor(),
		Message:  fmt.Sprintf("actor: %q not in %v", ctx.Actor(), expected),
	}
}

// locationChecker passes iff the context location is in the guard's
// location set.
type locationChecker struct{}

func (locationChecker) Kind() domain.ConditionKind { return domain.CondLocation }

func (locationChecker) Matches(unit domain.Unit, ctx domain.Context) bool {
	return unit.Guard.AllowsLocation(ctx.Where())
}

func (locationChecker) Check(unit domain.Unit, ctx domain.Context) *domain.FailureReason {
	if unit.Guard.AllowsLocation(ctx.Where()) {
		return nil
	}
	expected := sortedSet(unit.Guard.Locations)
	return &domain.FailureReason{
		Kind:     domain.CondLocation,
		Expected: expected,
		Actual:   ctx.Where(),
		Message:  fmt.Sprintf("location: %q not in %v", ctx.Where(), expected),
	}
}

// stateChecker requires strict equality between each guard state entry
// and the corresponding context value; a missing context key counts as
// nil and therefore mismatches any non-nil expectation.
type stateChecker struct{}

func (stateChecker) Kind() domain.ConditionKind { return domain.CondState }

func (stateChecker) Matches(unit domain.Unit, ctx domain.Context) bool {
	for key, expected := range unit.Guard.State {
		actual, _ := ctx.StateValue(key)
		if !reflect.DeepEqual(actual, expected) {
			return false
		}
	}
	return true
}

func (stateChecker) Check(unit domain.Unit, ctx domain.Context) *domain.FailureReason {
	keys := make([]string, 0, len(unit.Guard.State))
	for key := range unit.Guard.State {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := unit.Guard.State[key]
		actual, _ := ctx.StateValue(key)
		if !reflect.DeepEqual(actual, expected) {
			return &domain.FailureReason{
				Kind:     domain.CondState,
				Expected: map[string]any{key: expected},
				Actual:   map[string]any{key: actual},
				Message:  fmt.Sprintf("state[%q]: expected %v, got %v", key, expected, actual),
			}
		}
	}
	return nil
}

// temporalChecker evaluates the guard's temporal expression. Parse and
// evaluation errors are folded into a diagnostic, never propagated.
type temporalChecker struct{}

func (temporalChecker) Kind() domain.ConditionKind { return domain.CondTemporal }

func (temporalChecker) Matches(unit domain.Unit, ctx domain.Context) bool {
	if unit.Guard.Temporal == "" {
		return true
	}
	expr, err := domain.ParseTemporal(unit.Guard.Temporal)
	if err != nil {
		return false
	}
	return expr.Evaluate(ctx)
}

func (temporalChecker) Check(unit domain.Unit, ctx domain.Context) *domain.FailureReason {
	when := unit.Guard.Temporal
	if when == "" {
		return nil
	}

	expr, err := domain.ParseTemporal(when)
	if err != nil {
		return &domain.FailureReason{
			Kind:     domain.CondTemporal,
			Expected: when,
			Actual:   ctx.When().String(),
			Message:  fmt.Sprintf("temporal: expression %q evaluation error: %v", when, err),
		}
	}
	if expr.Evaluate(ctx) {
		return nil
	}
	return &domain.FailureReason{
		Kind:     domain.CondTemporal,
		Expected: when,
		Actual:   ctx.When().String(),
		Message:  fmt.Sprintf("temporal: condition %q not satisfied at %s", when, ctx.When()),
	}
}

// sortedSet returns a sorted copy of a guard membership set for stable
// diagnostics.
func sortedSet(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
