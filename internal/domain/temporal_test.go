package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseTemporal covers the two-token mini-language: ISO datetime
// references, symbolic state references, and malformed expressions.
func TestParseTemporal(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    TemporalExpr
		wantErr bool
	}{
		{
			name: "after ISO datetime",
			expr: "after:2024-01-01T00:00:00",
			want: DateTimeTemporal{Operator: OpAfter, Reference: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			name: "before ISO date only",
			expr: "before:2025-06-15",
			want: DateTimeTemporal{Operator: OpBefore, Reference: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		},
		{
			name: "symbolic state reference",
			expr: "after:deadline_passed",
			want: StateTemporal{StateKey: "deadline_passed"},
		},
		{
			name:    "missing colon",
			expr:    "after 2024-01-01",
			wantErr: true,
		},
		{
			name:    "unknown operator",
			expr:    "until:2024-01-01",
			wantErr: true,
		},
		{
			name:    "digit-leading reference must be valid ISO",
			expr:    "after:2024-13-45",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTemporal(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDateTimeTemporal_Evaluate checks strict after/before comparison
// against the context timestamp.
func TestDateTimeTemporal_Evaluate(t *testing.T) {
	reference := time.Date(2024, 11, 16, 0, 0, 0, 0, time.UTC)
	ctxAt := func(when time.Time) Context { return NewContext("", when, "", nil) }

	after := DateTimeTemporal{Operator: OpAfter, Reference: reference}
	assert.True(t, after.Evaluate(ctxAt(reference.Add(time.Second))))
	assert.False(t, after.Evaluate(ctxAt(reference)), "boundary is exclusive")
	assert.False(t, after.Evaluate(ctxAt(reference.Add(-time.Second))))

	before := DateTimeTemporal{Operator: OpBefore, Reference: reference}
	assert.True(t, before.Evaluate(ctxAt(reference.Add(-time.Second))))
	assert.False(t, before.Evaluate(ctxAt(reference)), "boundary is exclusive")
	assert.False(t, before.Evaluate(ctxAt(reference.Add(time.Second))))
}

// TestStateTemporal_Evaluate checks symbolic references resolve through
// state truthiness.
func TestStateTemporal_Evaluate(t *testing.T) {
	expr := StateTemporal{StateKey: "ready"}

	tests := []struct {
		name  string
		state map[string]any
		want  bool
	}{
		{name: "true bool", state: map[string]any{"ready": true}, want: true},
		{name: "false bool", state: map[string]any{"ready": false}, want: false},
		{name: "missing key", state: map[string]any{}, want: false},
		{name: "non-empty string", state: map[string]any{"ready": "yes"}, want: true},
		{name: "empty string", state: map[string]any{"ready": ""}, want: false},
		{name: "zero int", state: map[string]any{"ready": 0}, want: false},
		{name: "non-zero int", state: map[string]any{"ready": 2}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext("", time.Now(), "", tt.state)
			assert.Equal(t, tt.want, expr.Evaluate(ctx))
		})
	}
}
