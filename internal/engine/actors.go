package engine

import (
	"context"
	"time"

	"github.com/arlowe/go-latch/internal/domain"
)

// Perspective describes one actor's turn in a multi-actor sequence: who
// is evaluating, where, and optionally when (zero time falls back to the
// sequence's initial timestamp).
type Perspective struct {
	Actor string
	Where string
	When  time.Time
}

// ActorRunner replays the cascade once per actor perspective, carrying
// state mutations forward between perspectives. A Context always models a
// single perspective ("" = system/omniscient); multi-actor coordination
// happens through the shared state map and explicit sequencing.
type ActorRunner struct {
	engine *Engine
}

// NewActorRunner wraps an engine with registered units.
func NewActorRunner(e *Engine) *ActorRunner {
	return &ActorRunner{engine: e}
}

// RunSequence sweeps once per perspective in order, starting from
// initialState at initialWhen, and returns every bound result plus the
// final state after all perspectives.
func (r *ActorRunner) RunSequence(ctx context.Context, perspectives []Perspective, initialState map[string]any, initialWhen time.Time) ([]domain.BoundResult, map[string]any, error) {
	if initialWhen.IsZero() {
		initialWhen = time.Now()
	}

	var allBound []domain.BoundResult
	state := initialState

	for _, p := range perspectives {
		when := p.When
		if when.IsZero() {
			when = initialWhen
		}
		ectx := domain.NewContext(p.Actor, when, p.Where, state)

		bound, final, err := r.engine.Sweep(ctx, ectx)
		if err != nil {
			return allBound, state, err
		}
		allBound = append(allBound, bound...)
		state = final.StateMap()
	}
	return allBound, state, nil
}

// TimelineStep is one (when, actor, where) point of an explicit timeline.
type TimelineStep struct {
	When  time.Time
	Actor string
	Where string
}

// RunTimeline is RunSequence over an explicit temporal progression.
func (r *ActorRunner) RunTimeline(ctx context.Context, timeline []TimelineStep, initialState map[string]any) ([]domain.BoundResult, map[string]any, error) {
	perspectives := make([]Perspective, len(timeline))
	for i, step := range timeline {
		perspectives[i] = Perspective{Actor: step.Actor, Where: step.Where, When: step.When}
	}
	return r.RunSequence(ctx, perspectives, initialState, time.Time{})
}
