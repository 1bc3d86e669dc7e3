package engine

import (
	"fmt"
	"strings"

	"github.com/arlowe/go-latch/internal/domain"
)

// AuditTrail is the ordered in-memory log of every binding attempt with
// its outcome and diagnostics.
type AuditTrail struct {
	trail []domain.Attempt
}

// record appends one attempt.
func (a *AuditTrail) record(attempt domain.Attempt) {
	a.trail = append(a.trail, attempt)
}

// attachChanges patches the most recent successful attempt for unitID
// with the state changes applied during the sweep round.
func (a *AuditTrail) attachChanges(unitID string, changes []domain.StateChange) {
	for i := len(a.trail) - 1; i >= 0; i-- {
		if a.trail[i].UnitID == unitID && a.trail[i].Success {
			a.trail[i].AppliedChanges = changes
			return
		}
	}
}

// Attempts returns all recorded attempts in order.
func (a *AuditTrail) Attempts() []domain.Attempt {
	out := make([]domain.Attempt, len(a.trail))
	copy(out, a.trail)
	return out
}

// AttemptsFor returns all attempts for a unit, in order.
func (a *AuditTrail) AttemptsFor(unitID string) []domain.Attempt {
	var out []domain.Attempt
	for _, attempt := range a.trail {
		if attempt.UnitID == unitID {
			out = append(out, attempt)
		}
	}
	return out
}

// Failed returns all failed attempts for a unit.
func (a *AuditTrail) Failed(unitID string) []domain.Attempt {
	var out []domain.Attempt
	for _, attempt := range a.trail {
		if attempt.UnitID == unitID && !attempt.Success {
			out = append(out, attempt)
		}
	}
	return out
}

// Stats aggregates failure counts by condition kind across the trail.
func (a *AuditTrail) Stats() map[domain.ConditionKind]int {
	stats := make(map[domain.ConditionKind]int)
	for _, attempt := range a.trail {
		if attempt.Success {
			continue
		}
		for _, reason := range attempt.FailureReasons {
			stats[reason.Kind]++
		}
	}
	return stats
}

// Explain renders the most recent attempt's outcome for a unit in
// human-readable form: success, itemized failure reasons, or "never
// attempted".
func (a *AuditTrail) Explain(unitID string) string {
	attempts := a.AttemptsFor(unitID)
	if len(attempts) == 0 {
		return fmt.Sprintf("unit %q was never attempted for binding", unitID)
	}

	latest := attempts[len(attempts)-1]
	if latest.Success {
		return fmt.Sprintf("unit %q successfully activated", unitID)
	}
	if len(latest.FailureReasons) == 0 {
		return fmt.Sprintf("unit %q failed to activate (no specific reason recorded)", unitID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "unit %q failed to activate:", unitID)
	for _, reason := range latest.FailureReasons {
		fmt.Fprintf(&b, "\n  - %s", reason.Message)
	}
	return b.String()
}
