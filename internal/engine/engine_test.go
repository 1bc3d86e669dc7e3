package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

func TestEngineRegister(t *testing.T) {
	e := New()
	require.NoError(t, e.Register(domain.Unit{ID: "u1", Type: "DOOR:unlock"}))

	unit, ok := e.Unit("u1")
	require.True(t, ok)
	assert.Equal(t, "DOOR:unlock", unit.Type)

	ledger := e.Ledger("u1")
	require.Len(t, ledger, 1)
	assert.Equal(t, domain.StateCreated, ledger[0].From)
	assert.Equal(t, domain.StateDormant, ledger[0].To)
	assert.Equal(t, "Registered", ledger[0].Reason)
}

func TestEngineRegisterInvalidUnit(t *testing.T) {
	e := New()
	err := e.Register(domain.Unit{ID: "u1", Type: "not-a-type"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidUnitType)
	assert.Empty(t, e.Ledger(), "invalid unit leaves no trace")
}

func TestEngineRegisterCycle(t *testing.T) {
	e := New()
	require.NoError(t, e.Register(domain.Unit{ID: "a", Type: "T:a", DependsOn: []string{"b"}}))

	err := e.Register(domain.Unit{ID: "b", Type: "T:b", DependsOn: []string{"a"}})
	require.Error(t, err)

	var cycleErr *domain.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Len(t, e.Ledger(), 1, "only the surviving unit has a transition")
}

func TestEngineBindSuccess(t *testing.T) {
	e := New()
	unit := domain.Unit{
		ID:   "door",
		Type: "DOOR:unlock",
		Guard: domain.Guard{
			Actors: []string{"alice"},
			State:  map[string]any{"has_key": true},
		},
		Payload: map[string]any{"message": "click", "weight": 2.5},
	}
	require.NoError(t, e.Register(unit))

	ectx := domain.NewContext("alice", time.Now(), "hallway", map[string]any{"has_key": true})
	bound, err := e.Bind(context.Background(), unit, ectx)
	require.NoError(t, err)
	require.NotNil(t, bound)

	assert.NotEmpty(t, bound.ID)
	assert.Equal(t, "door", bound.UnitID)
	assert.Equal(t, "DOOR:unlock", bound.UnitType)
	assert.Equal(t, "click", bound.Effect["message"])
	assert.Equal(t, 2.5, bound.Weight)
	assert.True(t, e.Satisfied("door"))

	ledger := e.Ledger("door")
	require.Len(t, ledger, 2)
	assert.Equal(t, domain.StateActivated, ledger[1].To)

	attempts := e.Audit().AttemptsFor("door")
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, bound.ID, attempts[0].BoundResultID)
}

func TestEngineBindDefaultWeight(t *testing.T) {
	e := New()
	unit := domain.Unit{ID: "u", Type: "T:t"}
	require.NoError(t, e.Register(unit))

	bound, err := e.Bind(context.Background(), unit, domain.NewContext("", time.Now(), "", nil))
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, 1.0, bound.Weight)
}

func TestEngineBindCollectsAllFailures(t *testing.T) {
	e := New()
	unit := domain.Unit{
		ID:   "strict",
		Type: "VAULT:open",
		Guard: domain.Guard{
			Actors:    []string{"alice"},
			Locations: []string{"vault"},
			State:     map[string]any{"armed": false},
			Temporal:  "after:2099-01-01T00:00:00",
		},
	}
	require.NoError(t, e.Register(unit))

	ectx := domain.NewContext("mallory", time.Now(), "lobby", map[string]any{"armed": true})
	bound, err := e.Bind(context.Background(), unit, ectx)
	require.NoError(t, err, "guard mismatch is not an error")
	assert.Nil(t, bound)
	assert.False(t, e.Satisfied("strict"))

	attempts := e.Audit().AttemptsFor("strict")
	require.Len(t, attempts, 1)
	require.False(t, attempts[0].Success)

	kinds := make(map[domain.ConditionKind]bool)
	for _, reason := range attempts[0].FailureReasons {
		kinds[reason.Kind] = true
	}
	assert.Len(t, attempts[0].FailureReasons, 4, "all failing checks are collected, not just the first")
	assert.True(t, kinds[domain.CondActor])
	assert.True(t, kinds[domain.CondLocation])
	assert.True(t, kinds[domain.CondState])
	assert.True(t, kinds[domain.CondTemporal])
}

func TestEngineBindExpired(t *testing.T) {
	e := New()
	unit := domain.Unit{
		ID:    "offer",
		Type:  "OFFER:redeem",
		Guard: domain.Guard{Temporal: "before:2020-01-01T00:00:00"},
	}
	require.NoError(t, e.Register(unit))

	ectx := domain.NewContext("alice", time.Now(), "", nil)
	bound, err := e.Bind(context.Background(), unit, ectx)
	require.NoError(t, err)
	assert.Nil(t, bound)

	attempts := e.Audit().AttemptsFor("offer")
	require.Len(t, attempts, 1)
	kinds := make(map[domain.ConditionKind]bool)
	for _, reason := range attempts[0].FailureReasons {
		kinds[reason.Kind] = true
	}
	assert.True(t, kinds[domain.CondExpired])
	assert.True(t, kinds[domain.CondTemporal], "expired deadline also fails the temporal check")

	ledger := e.Ledger("offer")
	require.Len(t, ledger, 2)
	assert.Equal(t, domain.StateDormant, ledger[1].From)
	assert.Equal(t, domain.StateExpired, ledger[1].To)

	// Expiry is irreversible in the ledger but does not hard-block
	// further attempts; each retry records another expiry transition.
	_, err = e.Bind(context.Background(), unit, ectx)
	require.NoError(t, err)
	assert.Len(t, e.Audit().AttemptsFor("offer"), 2)
}

func TestEngineBindMany(t *testing.T) {
	e := New()
	require.NoError(t, e.Register(domain.Unit{ID: "a", Type: "T:a"}))
	require.NoError(t, e.Register(domain.Unit{ID: "b", Type: "T:b", Guard: domain.Guard{Actors: []string{"alice"}}}))

	ectx := domain.NewContext("bob", time.Now(), "", nil)
	results, err := e.BindMany(context.Background(), []string{"a", "b"}, ectx)
	require.NoError(t, err)
	require.Len(t, results, 1, "failed binds are skipped, not fatal")
	assert.Equal(t, "a", results[0].UnitID)

	_, err = e.BindMany(context.Background(), []string{"missing"}, ectx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownUnit)
}

func TestEngineActivationCallback(t *testing.T) {
	var got []string
	e := New(WithActivationCallback(func(unit domain.Unit, _ domain.Context, bound domain.BoundResult) {
		got = append(got, bound.UnitID)
	}))
	require.NoError(t, e.Register(domain.Unit{ID: "a", Type: "T:a"}))
	require.NoError(t, e.Register(domain.Unit{ID: "b", Type: "T:b", Guard: domain.Guard{Actors: []string{"nobody"}}}))

	ectx := domain.NewContext("alice", time.Now(), "", nil)
	_, _, err := e.Sweep(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got, "callback fires only on successful binds")
}

// failingSink always rejects writes so sink error propagation can be
// observed from Bind.
type failingSink struct{ err error }

func (s *failingSink) Write(domain.Attempt) error { return s.err }
func (s *failingSink) Flush() error               { return nil }
func (s *failingSink) Close() error               { return nil }

var _ ports.AuditSink = (*failingSink)(nil)

func TestEngineSinkErrorPropagates(t *testing.T) {
	sinkErr := errors.New("disk full")
	e := New(WithAuditSink(&failingSink{err: sinkErr}))
	unit := domain.Unit{ID: "u", Type: "T:t"}
	require.NoError(t, e.Register(unit))

	_, err := e.Bind(context.Background(), unit, domain.NewContext("", time.Now(), "", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
}

func TestEngineExplain(t *testing.T) {
	e := New()
	gated := domain.Unit{ID: "gated", Type: "T:t", Guard: domain.Guard{Actors: []string{"alice"}}}
	open := domain.Unit{ID: "open", Type: "T:t"}
	require.NoError(t, e.Register(gated))
	require.NoError(t, e.Register(open))

	assert.Contains(t, e.Explain("gated"), "never attempted")

	ectx := domain.NewContext("bob", time.Now(), "", nil)
	_, err := e.Bind(context.Background(), gated, ectx)
	require.NoError(t, err)
	_, err = e.Bind(context.Background(), open, ectx)
	require.NoError(t, err)

	explanation := e.Explain("gated")
	assert.Contains(t, explanation, "failed to activate")
	assert.Contains(t, explanation, "actor")
	assert.Contains(t, e.Explain("open"), "successfully activated")
}

func TestEngineClose(t *testing.T) {
	e := New(WithAuditSink(&failingSink{}))
	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "double close is safe")
}
