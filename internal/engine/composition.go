package engine

import (
	"context"

	"github.com/arlowe/go-latch/internal/domain"
)

// BindStatus is the outcome class of a combinator evaluation.
type BindStatus string

const (
	// StatusBound means the expression's binding requirement was met.
	StatusBound BindStatus = "bound"

	// StatusLatent means the expression did not bind.
	StatusLatent BindStatus = "latent"
)

// BindOutcome is the result of evaluating a combinator expression.
type BindOutcome struct {
	Status BindStatus

	// Bound holds the result of the binding that satisfied the
	// expression (for Parallel, the last child's).
	Bound *domain.BoundResult

	// BoundAll carries every child result, in declared order, when a
	// Parallel expression succeeds.
	BoundAll []domain.BoundResult

	// Source is the unit whose latency caused a latent outcome.
	Source *domain.Unit
}

// IsBound reports whether the outcome is a successful binding.
func (o BindOutcome) IsBound() bool { return o.Status == StatusBound }

// Bindable is a lazily-evaluated node of the combinator algebra. Nothing
// is evaluated at construction; TryBind walks the tree depth-first, left
// to right, delegating leaves to the engine's binding core.
type Bindable interface {
	TryBind(ctx context.Context, e *Engine, ectx domain.Context) (BindOutcome, error)
}

// Closed variant set of the algebra.
var (
	_ Bindable = atom{}
	_ Bindable = alternative{}
	_ Bindable = sequential{}
	_ Bindable = parallel{}
	_ Bindable = Expr{}
)

// atom delegates to the binding core: success carries the BoundResult,
// failure carries the original unit as the diagnostic source.
type atom struct {
	unit domain.Unit
}

func (a atom) TryBind(ctx context.Context, e *Engine, ectx domain.Context) (BindOutcome, error) {
	bound, err := e.Bind(ctx, a.unit, ectx)
	if err != nil {
		return BindOutcome{}, err
	}
	if bound == nil {
		unit := a.unit
		return BindOutcome{Status: StatusLatent, Source: &unit}, nil
	}
	return BindOutcome{Status: StatusBound, Bound: bound}, nil
}

// alternative evaluates left; if bound, returns its outcome, else
// evaluates and returns right's outcome regardless. Both attempts are
// independently recorded.
type alternative struct {
	left, right Bindable
}

func (n alternative) TryBind(ctx context.Context, e *Engine, ectx domain.Context) (BindOutcome, error) {
	outcome, err := n.left.TryBind(ctx, e, ectx)
	if err != nil || outcome.IsBound() {
		return outcome, err
	}
	return n.right.TryBind(ctx, e, ectx)
}

// sequential gates right on left binding; no data flows between them.
// A latent left short-circuits without touching right.
type sequential struct {
	first, second Bindable
}

func (n sequential) TryBind(ctx context.Context, e *Engine, ectx domain.Context) (BindOutcome, error) {
	outcome, err := n.first.TryBind(ctx, e, ectx)
	if err != nil || !outcome.IsBound() {
		return outcome, err
	}
	return n.second.TryBind(ctx, e, ectx)
}

// parallel evaluates every child unconditionally and succeeds only if
// all bound. On partial failure it returns the first non-bound child's
// outcome in declared order.
type parallel struct {
	children []Bindable
}

func (n parallel) TryBind(ctx context.Context, e *Engine, ectx domain.Context) (BindOutcome, error) {
	outcomes := make([]BindOutcome, 0, len(n.children))
	for _, child := range n.children {
		outcome, err := child.TryBind(ctx, e, ectx)
		if err != nil {
			return BindOutcome{}, err
		}
		outcomes = append(outcomes, outcome)
	}

	var all []domain.BoundResult
	for _, outcome := range outcomes {
		if !outcome.IsBound() {
			return outcome, nil
		}
		if outcome.BoundAll != nil {
			all = append(all, outcome.BoundAll...)
		} else if outcome.Bound != nil {
			all = append(all, *outcome.Bound)
		}
	}

	success := BindOutcome{Status: StatusBound, BoundAll: all}
	if len(all) > 0 {
		last := all[len(all)-1]
		success.Bound = &last
	}
	return success, nil
}

// Expr wraps any node with fluent composition. All three node kinds
// support further alternative/sequential/parallel composition, so trees
// of arbitrary depth evaluate depth-first, left to right.
type Expr struct {
	node Bindable
}

// Atom lifts a unit into the algebra.
func Atom(unit domain.Unit) Expr { return Expr{node: atom{unit: unit}} }

// Compose wraps an existing Bindable for further composition.
func Compose(node Bindable) Expr { return Expr{node: node} }

// TryBind evaluates the wrapped expression.
func (x Expr) TryBind(ctx context.Context, e *Engine, ectx domain.Context) (BindOutcome, error) {
	return x.node.TryBind(ctx, e, ectx)
}

// Or builds the alternative x | other.
func (x Expr) Or(other Bindable) Expr {
	return Expr{node: alternative{left: x.node, right: unwrap(other)}}
}

// Then builds the sequential gate x then other.
func (x Expr) Then(other Bindable) Expr {
	return Expr{node: sequential{first: x.node, second: unwrap(other)}}
}

// And builds (or extends) the parallel conjunction x & other.
func (x Expr) And(other Bindable) Expr {
	if p, ok := x.node.(parallel); ok {
		children := make([]Bindable, len(p.children), len(p.children)+1)
		copy(children, p.children)
		return Expr{node: parallel{children: append(children, unwrap(other))}}
	}
	return Expr{node: parallel{children: []Bindable{x.node, unwrap(other)}}}
}

// All builds a parallel conjunction over the given expressions.
func All(exprs ...Bindable) Expr {
	children := make([]Bindable, len(exprs))
	for i, expr := range exprs {
		children[i] = unwrap(expr)
	}
	return Expr{node: parallel{children: children}}
}

// unwrap strips the Expr wrapper so nested trees stay flat where the
// algebra expects raw nodes.
func unwrap(b Bindable) Bindable {
	if x, ok := b.(Expr); ok {
		return x.node
	}
	return b
}
