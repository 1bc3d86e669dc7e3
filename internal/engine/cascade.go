package engine

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arlowe/go-latch/internal/domain"
)

// DefaultMaxRounds bounds a cascade when the caller does not say otherwise.
const DefaultMaxRounds = 10

// SweepOptions controls a cascade call.
type SweepOptions struct {
	// MaxRounds caps the cascade; zero or negative falls back to
	// DefaultMaxRounds.
	MaxRounds int

	// ApplyMutations applies each bound unit's "state_mutation" payload
	// to the working context between rounds. When false, mutations are
	// neither applied nor recorded (analytical mode).
	ApplyMutations bool
}

// DefaultSweepOptions returns the standard cascade configuration:
// ten rounds, mutations applied.
func DefaultSweepOptions() SweepOptions {
	return SweepOptions{MaxRounds: DefaultMaxRounds, ApplyMutations: true}
}

// TurnHook runs between macro-rounds of EvolveUntilConverged and may
// inject further state into the context for the next sweep.
type TurnHook func(e *Engine, ectx domain.Context, turn int) domain.Context

// Sweep runs a cascade with default options. See SweepWith.
func (e *Engine) Sweep(ctx context.Context, ectx domain.Context) ([]domain.BoundResult, domain.Context, error) {
	return e.SweepWith(ctx, ectx, DefaultSweepOptions())
}

// SweepWith repeatedly sweeps all registered units until a fixed point or
// the round cap. Each round visits units in registry-insertion order,
// skipping one-shot units already consumed in this call. A cheap
// prefilter (dependency, temporal, state, actor, location) decides
// eligibility: units failing it stay latent (never attempted, no audit
// entry), as opposed to units that pass the prefilter but fail the full
// check, which are recorded as attempted failures.
//
// After each round, when mutation application is enabled, every bound
// unit's "state_mutation" payload map is applied to the working context
// in the round's bind order, last write wins, and each applied change is
// recorded against its BoundResult and its Attempt.
//
// Results come back in round-major, then registry, order together with
// the evolved context.
func (e *Engine) SweepWith(ctx context.Context, ectx domain.Context, opts SweepOptions) ([]domain.BoundResult, domain.Context, error) {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	spanCtx, span := e.tracer.Start(ctx, "Engine.Sweep",
		trace.WithAttributes(attribute.Int("max_rounds", maxRounds)))
	defer span.End()

	var results []domain.BoundResult
	consumed := make(map[string]struct{})
	current := ectx
	rounds := 0

	for i := 0; i < maxRounds; i++ {
		rounds++
		roundStart := len(results)

		for _, id := range e.reg.ids() {
			if _, done := consumed[id]; done {
				continue
			}
			unit, _ := e.reg.get(id)

			// Prefilter: a failing unit is latent this round, not
			// attempted, and leaves no audit entry.
			eligible := true
			for _, checker := range e.prefilter {
				if !checker.Matches(unit, current) {
					eligible = false
					break
				}
			}
			if !eligible {
				continue
			}

			bound, err := e.Bind(spanCtx, unit, current)
			if err != nil {
				return results, current, err
			}
			if bound == nil {
				continue
			}
			results = append(results, *bound)
			if unit.ConsumptionMode() == domain.OneShot {
				consumed[id] = struct{}{}
			}
		}

		if len(results) == roundStart {
			break
		}

		if opts.ApplyMutations {
			for i := roundStart; i < len(results); i++ {
				current = e.applyMutations(&results[i], current)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("rounds", rounds),
		attribute.Int("bound", len(results)),
	)
	e.metrics.observeSweep(rounds)
	return results, current, nil
}

// applyMutations applies one bound unit's declared state mutations to the
// working context, recording each change (key, old, new) on the result
// and retro-patching the unit's successful attempt.
func (e *Engine) applyMutations(bound *domain.BoundResult, current domain.Context) domain.Context {
	raw, ok := bound.Effect["state_mutation"]
	if !ok {
		return current
	}
	mutation, ok := raw.(map[string]any)
	if !ok || len(mutation) == 0 {
		return current
	}

	keys := make([]string, 0, len(mutation))
	for key := range mutation {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changes := make([]domain.StateChange, 0, len(keys))
	for _, key := range keys {
		old, _ := current.StateValue(key)
		value := mutation[key]
		changes = append(changes, domain.StateChange{Key: key, Old: old, New: value})
		current = current.WithStateValue(key, value)
	}

	bound.AppliedChanges = changes
	e.audit.attachChanges(bound.UnitID, changes)
	return current
}

// EvolveUntilConverged repeats whole sweeps across turns until a turn
// activates no new units, or maxTurns is reached (zero or negative means
// DefaultMaxRounds). The optional hook runs after each productive turn
// and may inject state before the next sweep. It returns the evolved
// context and the number of turns used.
func (e *Engine) EvolveUntilConverged(ctx context.Context, ectx domain.Context, maxTurns int, onTurnComplete TurnHook) (domain.Context, int, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxRounds
	}

	current := ectx
	turns := 0
	for turn := 0; turn < maxTurns; turn++ {
		turns = turn + 1
		before := len(e.satisfied)

		_, next, err := e.Sweep(ctx, current)
		if err != nil {
			return current, turns, err
		}
		current = next

		if len(e.satisfied) == before {
			break
		}
		if onTurnComplete != nil {
			current = onTurnComplete(e, current, turn)
		}
	}
	return current, turns, nil
}
