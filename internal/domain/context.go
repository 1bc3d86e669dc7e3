// Package domain contains pure, dependency-free domain models and types
// for the binding engine.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// deepCopyValue creates a deep copy of a value so that shared Contexts and
// snapshots stay immutable. It handles slices, maps, and other reference
// types that would otherwise allow external modification.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// Context is an immutable runtime snapshot used for guard evaluation.
// Actor identifies the perspective evaluating the units; an empty actor
// means a system/omniscient perspective with no specific identity.
// State carries world facts (what has happened, who is present) and is
// never mutated in place: updates produce a new Context via copy-on-write.
type Context struct {
	actor string
	when  time.Time
	where string
	state map[string]any
}

// NewContext creates a Context from an actor, timestamp, location, and
// initial state map. The state map is deep-copied; the caller keeps
// ownership of its argument.
func NewContext(actor string, when time.Time, where string, state map[string]any) Context {
	cp := make(map[string]any, len(state))
	for k, v := range state {
		cp[k] = deepCopyValue(v)
	}
	return Context{actor: actor, when: when, where: where, state: cp}
}

// Actor returns the acting perspective, or "" for the system perspective.
func (c Context) Actor() string { return c.actor }

// When returns the context timestamp.
func (c Context) When() time.Time { return c.when }

// Where returns the context location.
func (c Context) Where() string { return c.where }

// StateValue retrieves a state value by key. The returned value is a deep
// copy, so callers cannot mutate the Context through it.
func (c Context) StateValue(key string) (any, bool) {
	value, exists := c.state[key]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// WithStateValue returns a new Context with the key set to value.
// The receiver is left unchanged.
func (c Context) WithStateValue(key string, value any) Context {
	newState := maps.Clone(c.state)
	if newState == nil {
		newState = make(map[string]any, 1)
	}
	newState[key] = deepCopyValue(value)
	return Context{actor: c.actor, when: c.when, where: c.where, state: newState}
}

// WithActor returns a new Context seen from a different actor perspective.
func (c Context) WithActor(actor string) Context {
	return Context{actor: actor, when: c.when, where: c.where, state: c.state}
}

// WithWhen returns a new Context at a different timestamp.
func (c Context) WithWhen(when time.Time) Context {
	return Context{actor: c.actor, when: when, where: c.where, state: c.state}
}

// WithWhere returns a new Context at a different location.
func (c Context) WithWhere(where string) Context {
	return Context{actor: c.actor, when: c.when, where: where, state: c.state}
}

// StateMap returns a deep copy of the full state map.
func (c Context) StateMap() map[string]any {
	cp := make(map[string]any, len(c.state))
	for k, v := range c.state {
		cp[k] = deepCopyValue(v)
	}
	return cp
}

// Snapshot renders the context as a plain map for audit records.
func (c Context) Snapshot() map[string]any {
	return map[string]any{
		"actor": c.actor,
		"when":  c.when,
		"where": c.where,
		"state": c.StateMap(),
	}
}

// String returns a compact representation for debugging.
func (c Context) String() string {
	return fmt.Sprintf("Context{actor=%q where=%q when=%s state=%v}", c.actor, c.where, c.when.Format(time.RFC3339), c.state)
}
