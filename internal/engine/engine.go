package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

// ActivationFunc is invoked synchronously after a unit binds.
type ActivationFunc func(unit domain.Unit, ctx domain.Context, bound domain.BoundResult)

// Engine owns all mutable binding state: the unit registry and dependency
// graph, the permanently-satisfied ID set, the transition ledger, and the
// attempt trail. It is fully synchronous and assumes single-writer access;
// concurrent external callers must serialize themselves.
type Engine struct {
	reg       *registry
	satisfied map[string]struct{}
	ledger    []domain.Transition
	audit     *AuditTrail

	sink        ports.AuditSink
	onActivated ActivationFunc
	metrics     *Metrics
	tracer      trace.Tracer

	// checkers is the full pipeline in cheap-to-expensive order:
	// dependency, expiration, actor, location, state, temporal.
	checkers []ports.GuardChecker

	// prefilter is the cascade scheduler's cheap eligibility pass:
	// dependency, temporal, state, actor, location. It shares the same
	// checker instances as the full pipeline so the two paths cannot
	// diverge.
	prefilter []ports.GuardChecker
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditSink attaches a pluggable sink that receives every attempt.
// A failing sink write propagates synchronously from Bind.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithActivationCallback registers a hook fired synchronously on every
// successful bind.
func WithActivationCallback(fn ActivationFunc) Option {
	return func(e *Engine) { e.onActivated = fn }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine with an empty registry, ledger, and trail.
func New(opts ...Option) *Engine {
	e := &Engine{
		reg:       newRegistry(),
		satisfied: make(map[string]struct{}),
		audit:     &AuditTrail{},
		tracer:    otel.Tracer("latch-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	deps := &dependencyChecker{satisfied: e.Satisfied}
	expiration := expirationChecker{}
	actor := actorChecker{}
	location := locationChecker{}
	state := stateChecker{}
	temporal := temporalChecker{}

	e.checkers = []ports.GuardChecker{deps, expiration, actor, location, state, temporal}
	e.prefilter = []ports.GuardChecker{deps, temporal, state, actor, location}
	return e
}

// Register validates and stores a unit, recording the Created → Dormant
// transition. Registration fails with a *domain.CycleError if the unit's
// dependencies would make the graph cyclic, in which case no engine state
// is mutated.
func (e *Engine) Register(unit domain.Unit) error {
	if err := unit.Validate(); err != nil {
		return err
	}
	if err := e.reg.add(unit); err != nil {
		return err
	}
	e.metrics.setRegistered(e.reg.len())
	return e.logTransition(unit.ID, domain.StateCreated, domain.StateDormant, "Registered")
}

// Unit returns the registered unit for id.
func (e *Engine) Unit(id string) (domain.Unit, bool) { return e.reg.get(id) }

// Satisfied reports whether a unit ID has ever successfully bound.
// Once satisfied, an ID stays satisfied regardless of consumption mode.
func (e *Engine) Satisfied(id string) bool {
	_, ok := e.satisfied[id]
	return ok
}

// Bind evaluates one unit against one context through the full checker
// pipeline. Guard mismatches are not errors: all six checkers run, every
// failing diagnostic is collected onto a failed Attempt, and Bind returns
// (nil, nil). The returned error is reserved for invariant violations and
// sink write failures.
func (e *Engine) Bind(ctx context.Context, unit domain.Unit, ectx domain.Context) (*domain.BoundResult, error) {
	_, span := e.tracer.Start(ctx, "Engine.Bind",
		trace.WithAttributes(
			attribute.String("unit.id", unit.ID),
			attribute.String("unit.type", unit.Type),
		))
	defer span.End()

	start := time.Now()

	var reasons []domain.FailureReason
	for _, checker := range e.checkers {
		if reason := checker.Check(unit, ectx); reason != nil {
			reasons = append(reasons, *reason)
		}
	}

	if len(reasons) > 0 {
		span.SetAttributes(attribute.Bool("bound", false))
		for _, reason := range reasons {
			e.metrics.observeFailureKind(string(reason.Kind))
		}
		e.metrics.observeAttempt(false, time.Since(start))

		attempt := domain.Attempt{
			UnitID:          unit.ID,
			Timestamp:       time.Now(),
			ContextSnapshot: ectx.Snapshot(),
			Success:         false,
			FailureReasons:  reasons,
		}
		if err := e.recordAttempt(attempt); err != nil {
			return nil, err
		}

		// An expired diagnostic is irreversible in the ledger, but
		// does not hard-block later attempts on the same unit.
		for _, reason := range reasons {
			if reason.Kind == domain.CondExpired {
				if err := e.logTransition(unit.ID, domain.StateDormant, domain.StateExpired, "Deadline passed"); err != nil {
					return nil, err
				}
				break
			}
		}
		return nil, nil
	}

	bound := &domain.BoundResult{
		ID:              uuid.NewString(),
		UnitID:          unit.ID,
		UnitType:        unit.Type,
		Effect:          unit.Payload,
		Weight:          weightOf(unit),
		BoundAt:         time.Now(),
		ContextSnapshot: ectx.Snapshot(),
	}

	e.satisfied[unit.ID] = struct{}{}
	if err := e.logTransition(unit.ID, domain.StateDormant, domain.StateActivated, "Binding success"); err != nil {
		return nil, err
	}

	attempt := domain.Attempt{
		UnitID:          unit.ID,
		Timestamp:       time.Now(),
		ContextSnapshot: ectx.Snapshot(),
		Success:         true,
		BoundResultID:   bound.ID,
	}
	if err := e.recordAttempt(attempt); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("bound", true))
	e.metrics.observeAttempt(true, time.Since(start))

	if e.onActivated != nil {
		e.onActivated(unit, ectx, *bound)
	}
	return bound, nil
}

// BindMany binds the listed units sequentially in the given order, with
// no dependency resolution between them. It fails if any ID is not
// registered.
func (e *Engine) BindMany(ctx context.Context, ids []string, ectx domain.Context) ([]domain.BoundResult, error) {
	results := make([]domain.BoundResult, 0, len(ids))
	for _, id := range ids {
		unit, ok := e.reg.get(id)
		if !ok {
			return nil, fmt.Errorf("bind many: %w: %s", domain.ErrUnknownUnit, id)
		}
		bound, err := e.Bind(ctx, unit, ectx)
		if err != nil {
			return nil, err
		}
		if bound != nil {
			results = append(results, *bound)
		}
	}
	return results, nil
}

// Ledger returns recorded transitions, optionally filtered by unit ID.
func (e *Engine) Ledger(unitID ...string) []domain.Transition {
	if len(unitID) == 0 {
		out := make([]domain.Transition, len(e.ledger))
		copy(out, e.ledger)
		return out
	}
	var out []domain.Transition
	for _, t := range e.ledger {
		if t.UnitID == unitID[0] {
			out = append(out, t)
		}
	}
	return out
}

// Audit exposes the attempt trail for querying and export.
func (e *Engine) Audit() *AuditTrail { return e.audit }

// Explain reports the most recent attempt's outcome for a unit in
// human-readable form.
func (e *Engine) Explain(unitID string) string { return e.audit.Explain(unitID) }

// Close releases the attached sink, if any.
func (e *Engine) Close() error {
	if e.sink == nil {
		return nil
	}
	sink := e.sink
	e.sink = nil
	return sink.Close()
}

// recordAttempt appends to the in-memory trail and pushes the attempt to
// the sink with no retry.
func (e *Engine) recordAttempt(attempt domain.Attempt) error {
	e.audit.record(attempt)
	if e.sink == nil {
		return nil
	}
	if err := e.sink.Write(attempt); err != nil {
		return fmt.Errorf("audit sink write: %w", err)
	}
	return nil
}

// logTransition appends a validated lifecycle transition to the ledger.
func (e *Engine) logTransition(unitID string, from, to domain.UnitState, reason string) error {
	transition, err := domain.NewTransition(unitID, from, to, reason)
	if err != nil {
		return err
	}
	e.ledger = append(e.ledger, transition)
	return nil
}

// weightOf computes a unit's weight: a numeric payload "weight" override,
// else 1.0.
func weightOf(unit domain.Unit) float64 {
	raw, ok := unit.Payload["weight"]
	if !ok {
		return 1.0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 1.0
}
