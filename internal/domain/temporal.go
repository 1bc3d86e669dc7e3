package domain

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Temporal operators recognized by the guard mini-language.
const (
	OpAfter  = "after"
	OpBefore = "before"
)

// isoLayouts are the accepted ISO-8601 shapes for datetime references,
// tried in order.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// TemporalExpr is a parsed temporal guard expression.
type TemporalExpr interface {
	// Evaluate reports whether the expression holds for the context.
	Evaluate(ctx Context) bool
}

// DateTimeTemporal compares the context timestamp against an absolute
// ISO-8601 reference.
type DateTimeTemporal struct {
	Operator  string
	Reference time.Time
}

// Evaluate reports ctx.When() strictly after/before the reference.
func (t DateTimeTemporal) Evaluate(ctx Context) bool {
	switch t.Operator {
	case OpAfter:
		return ctx.When().After(t.Reference)
	case OpBefore:
		return ctx.When().Before(t.Reference)
	}
	return false
}

// StateTemporal evaluates a symbolic reference into context state as a
// truthiness check. The operator carries no meaning for symbolic
// references; presence of a truthy value decides.
type StateTemporal struct {
	StateKey string
}

// Evaluate reports whether the referenced state value is truthy.
func (t StateTemporal) Evaluate(ctx Context) bool {
	value, ok := ctx.StateValue(t.StateKey)
	if !ok {
		return false
	}
	return Truthy(value)
}

// Truthy applies loose truthiness to an arbitrary state value: nil, false,
// zero numbers, and empty strings/collections are false; everything else
// is true.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

// ParseTemporal parses a "<after|before>:<reference>" expression. A
// reference starting with a digit must be an ISO-8601 datetime; anything
// else is treated as a symbolic state key.
func ParseTemporal(expr string) (TemporalExpr, error) {
	operator, reference, found := strings.Cut(expr, ":")
	if !found {
		return nil, fmt.Errorf("invalid temporal expression %q: missing ':'", expr)
	}

	if operator != OpAfter && operator != OpBefore {
		return nil, fmt.Errorf("invalid temporal operator %q: must be %q or %q", operator, OpAfter, OpBefore)
	}

	if reference != "" && reference[0] >= '0' && reference[0] <= '9' {
		for _, layout := range isoLayouts {
			if ref, err := time.Parse(layout, reference); err == nil {
				return DateTimeTemporal{Operator: operator, Reference: ref}, nil
			}
		}
		return nil, fmt.Errorf("invalid ISO datetime %q", reference)
	}

	return StateTemporal{StateKey: reference}, nil
}
