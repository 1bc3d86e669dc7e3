package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLegalTransition enumerates the closed transition table.
func TestLegalTransition(t *testing.T) {
	tests := []struct {
		from, to UnitState
		want     bool
	}{
		{StateCreated, StateDormant, true},
		{StateDormant, StateActivated, true},
		{StateDormant, StateExpired, true},
		{StateActivated, StateArchived, true},
		{StateActivated, StateDormant, true},

		{StateCreated, StateActivated, false},
		{StateCreated, StateExpired, false},
		{StateDormant, StateArchived, false},
		{StateActivated, StateExpired, false},
		{StateArchived, StateDormant, false},
		{StateExpired, StateDormant, false},
		{StateExpired, StateActivated, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LegalTransition(tt.from, tt.to),
			"transition %s -> %s", tt.from, tt.to)
	}
}

// TestNewTransition verifies legal moves construct and illegal moves fail
// with a *TransitionError, so the ledger can never hold an illegal entry.
func TestNewTransition(t *testing.T) {
	transition, err := NewTransition("u1", StateDormant, StateActivated, "Binding success")
	require.NoError(t, err)
	assert.Equal(t, "u1", transition.UnitID)
	assert.Equal(t, StateDormant, transition.From)
	assert.Equal(t, StateActivated, transition.To)
	assert.Equal(t, "Binding success", transition.Reason)
	assert.False(t, transition.Timestamp.IsZero())

	_, err = NewTransition("u1", StateExpired, StateActivated, "nope")
	require.Error(t, err)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StateExpired, transitionErr.From)
	assert.Equal(t, StateActivated, transitionErr.To)
}
