package expression

import (
	"fmt"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Treat asserts the type of its argument, failing at evaluation time if a
// value does not match.
type Treat struct {
	UnaryExpression
	positioned
	As *query.SeqType
}

// NewTreat creates a new Treat expression.
func NewTreat(child query.Expression, as *query.SeqType, info query.InputInfo) *Treat {
	return &Treat{UnaryExpression{child}, positioned{info}, as}
}

// Type implements the Expression interface.
func (t *Treat) Type() *query.Cardinality { return query.CardOfType(t.As) }

// WithChildren implements the Expression interface.
func (t *Treat) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(t, children, 1); err != nil {
		return nil, err
	}
	return NewTreat(children[0], t.As, t.info), nil
}

// Compile implements the Expression interface.
func (t *Treat) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, t)
}

// Optimize implements the Expression interface.
func (t *Treat) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if query.IsValue(t.Child) {
		return PreEval(ctx, t)
	}
	return t, nil
}

// Iter implements the Expression interface. Items are checked as they are
// pulled.
func (t *Treat) Iter(ctx *query.Context) (query.Iter, error) {
	iter, err := t.Child.Iter(ctx)
	if err != nil {
		return nil, err
	}
	first, err := iter.Next()
	if err != nil {
		iter.Close()
		return nil, err
	}

	if first == nil {
		iter.Close()
		if t.As.MayBeZero() {
			return query.EmptyIter(), nil
		}
		return nil, query.ErrTreat.New(t.info, t.description(), query.EmptySeqType, t.As)
	}
	if t.As.IsEmpty() {
		iter.Close()
		return nil, query.ErrTreat.New(t.info, t.description(), first.Type(), t.As)
	}

	if t.As.ZeroOrOne() {
		defer iter.Close()
		second, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if second != nil {
			return nil, query.ErrTreatMultiple.New(t.info, t.description(), t.As)
		}
		if err := t.check(first); err != nil {
			return nil, err
		}
		return query.ValueIter(first), nil
	}

	next := func() (query.Item, error) {
		if first != nil {
			it := first
			first = nil
			return it, t.check(it)
		}
		it, err := iter.Next()
		if err != nil || it == nil {
			return nil, err
		}
		return it, t.check(it)
	}
	return query.NewIter(next, iter.Close), nil
}

// Value implements the Expression interface.
func (t *Treat) Value(ctx *query.Context) (query.Value, error) {
	v, err := t.Child.Value(ctx)
	if err != nil {
		return nil, err
	}

	n := v.Size()
	switch {
	case n == 0:
		if t.As.MayBeZero() {
			return v, nil
		}
		return nil, query.ErrTreat.New(t.info, t.description(), query.EmptySeqType, t.As)
	case t.As.IsEmpty():
		return nil, query.ErrTreat.New(t.info, t.description(), v.Card().Type(), t.As)
	case t.As.ZeroOrOne() && n > 1:
		return nil, query.ErrTreatMultiple.New(t.info, t.description(), t.As)
	}
	for i := int64(0); i < n; i++ {
		if err := t.check(v.ItemAt(i)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Item implements the Expression interface.
func (t *Treat) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, t, t.info)
}

func (t *Treat) check(it query.Item) error {
	if !query.InstanceOf(it, t.As.Type) {
		return query.ErrTreat.New(t.info, t.description(), it.Type(), t.As)
	}
	return nil
}

func (t *Treat) description() string { return "treat" }

// Copy implements the Expression interface.
func (t *Treat) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewTreat(t.Child.Copy(ctx, scope, vars), t.As, t.info)
}

func (t *Treat) String() string {
	return fmt.Sprintf("(%s) treat as %s", t.Child, t.As)
}

// Plan implements the query.Planner interface.
func (t *Treat) Plan() *query.PlanNode {
	p := query.NewPlan("Treat", "type", t.As.String())
	p.Children = []*query.PlanNode{query.PlanOf(t.Child)}
	return p
}
