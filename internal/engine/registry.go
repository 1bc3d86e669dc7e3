package engine

import (
	"slices"

	"github.com/arlowe/go-latch/internal/domain"
)

// registry stores units in insertion order and maintains the declared
// dependency adjacency list. Every insert re-validates the whole graph
// for cycles; a full re-scan is accepted for the expected unit counts.
type registry struct {
	// order preserves first-registration order for deterministic sweeps.
	order []string
	units map[string]domain.Unit
	// deps maps unit ID to its declared dependency IDs.
	deps map[string][]string
}

func newRegistry() *registry {
	return &registry{
		units: make(map[string]domain.Unit),
		deps:  make(map[string][]string),
	}
}

// add inserts or overwrites a unit, then re-validates acyclicity. On a
// cycle the insert is rolled back so no visible state changes.
func (r *registry) add(unit domain.Unit) error {
	prev, existed := r.units[unit.ID]
	prevDeps, hadDeps := r.deps[unit.ID]

	r.units[unit.ID] = unit
	r.deps[unit.ID] = slices.Clone(unit.DependsOn)
	if !existed {
		r.order = append(r.order, unit.ID)
	}

	if cycle := r.findCycle(); cycle != nil {
		if existed {
			r.units[unit.ID] = prev
		} else {
			delete(r.units, unit.ID)
			r.order = r.order[:len(r.order)-1]
		}
		if hadDeps {
			r.deps[unit.ID] = prevDeps
		} else {
			delete(r.deps, unit.ID)
		}
		return &domain.CycleError{Path: cycle}
	}
	return nil
}

// get returns the unit registered under id.
func (r *registry) get(id string) (domain.Unit, bool) {
	unit, ok := r.units[id]
	return unit, ok
}

// ids returns the registration order. Callers must not mutate it.
func (r *registry) ids() []string { return r.order }

func (r *registry) len() int { return len(r.units) }

// findCycle runs a depth-first search over the dependency graph with a
// visited set and an active recursion stack. A back-edge into the stack
// yields the cycle as an ordered path, first node repeated at the end.
func (r *registry) findCycle() []string {
	visited := make(map[string]bool, len(r.deps))
	onStack := make(map[string]bool, len(r.deps))

	var path []string
	var dfs func(node string) []string
	dfs = func(node string) []string {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, neighbor := range r.deps[node] {
			if !visited[neighbor] {
				if cycle := dfs(neighbor); cycle != nil {
					return cycle
				}
			} else if onStack[neighbor] {
				start := slices.Index(path, neighbor)
				cycle := slices.Clone(path[start:])
				return append(cycle, neighbor)
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, node := range r.order {
		if !visited[node] {
			if cycle := dfs(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
