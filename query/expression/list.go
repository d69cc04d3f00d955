package expression

import (
	"fmt"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// List is the concatenation of sequences.
type List struct {
	positioned
	exprs []query.Expression
	typ   *query.Cardinality
}

// NewList creates a new List expression.
func NewList(info query.InputInfo, exprs ...query.Expression) *List {
	return &List{positioned{info}, exprs, listType(exprs)}
}

func listType(exprs []query.Expression) *query.Cardinality {
	typ := query.EmptyCard
	for _, e := range exprs {
		typ = typ.Plus(e.Type())
	}
	return typ
}

// Type implements the Expression interface.
func (l *List) Type() *query.Cardinality { return l.typ }

// Children implements the Expression interface.
func (l *List) Children() []query.Expression { return l.exprs }

// WithChildren implements the Expression interface.
func (l *List) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(l, children, len(l.exprs)); err != nil {
		return nil, err
	}
	return NewList(l.info, children...), nil
}

// Compile implements the Expression interface.
func (l *List) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, l)
}

// Optimize implements the Expression interface. Empty operands are removed,
// nested lists are flattened and lists of small constant values are
// materialized.
func (l *List) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	var changed bool
	exprs := make([]query.Expression, 0, len(l.exprs))
	for _, e := range l.exprs {
		if query.IsEmpty(e) {
			changed = true
			continue
		}
		if sub, ok := e.(*List); ok {
			exprs = append(exprs, sub.exprs...)
			changed = true
			continue
		}
		exprs = append(exprs, e)
	}

	switch len(exprs) {
	case 0:
		return Simplify(ctx, l), nil
	case 1:
		ctx.CompInfo("removing list around %s", query.DebugString(exprs[0]))
		return exprs[0], nil
	}

	list := l
	if changed || !listType(exprs).Equal(l.typ) {
		list = NewList(l.info, exprs...)
	}

	size := list.typ.Size()
	if size >= 0 && size <= ctx.Options.MaxMaterializeSize && AllValues(list.exprs...) {
		items := make([]query.Item, 0, size)
		for _, e := range list.exprs {
			items = append(items, query.Items(e.(query.Constant).Val())...)
		}
		ctx.CompInfo("materializing %s", query.DebugString(list))
		return NewLiteral(query.Compact(items), l.info), nil
	}
	return list, nil
}

// Iter implements the Expression interface. The operands are evaluated
// lazily from left to right.
func (l *List) Iter(ctx *query.Context) (query.Iter, error) {
	var (
		cur query.Iter
		i   int
	)
	next := func() (query.Item, error) {
		for {
			if cur == nil {
				if i == len(l.exprs) {
					return nil, nil
				}
				it, err := l.exprs[i].Iter(ctx)
				if err != nil {
					return nil, err
				}
				cur = it
				i++
			}
			item, err := cur.Next()
			if err != nil || item != nil {
				return item, err
			}
			if err := cur.Close(); err != nil {
				return nil, err
			}
			cur = nil
		}
	}
	closeFn := func() error {
		if cur != nil {
			return cur.Close()
		}
		return nil
	}
	return query.NewIter(next, closeFn), nil
}

// Value implements the Expression interface.
func (l *List) Value(ctx *query.Context) (query.Value, error) {
	var b query.ValueBuilder
	for _, e := range l.exprs {
		v, err := e.Value(ctx)
		if err != nil {
			return nil, err
		}
		b.Add(v)
	}
	return b.Value(), nil
}

// Item implements the Expression interface.
func (l *List) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, l, l.info)
}

// Copy implements the Expression interface.
func (l *List) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewList(l.info, query.CopyAll(ctx, scope, vars, l.exprs)...)
}

// Accept implements the Expression interface.
func (l *List) Accept(v query.ASTVisitor) bool {
	return query.AcceptAll(v, l.exprs...)
}

// Has implements the Expression interface.
func (l *List) Has(f query.Flag) bool {
	return query.HasAny(f, l.exprs...)
}

func (l *List) String() string {
	return fmt.Sprintf("(%s)", joinExprs(l.exprs, ", "))
}
