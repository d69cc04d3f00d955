package expression

import (
	"gopkg.in/src-d/go-xquery.v0/query"
)

// Range is the sequence of consecutive integers between two bounds, written
// "a to b".
type Range struct {
	BinaryExpression
	positioned
}

// NewRange creates a new Range expression.
func NewRange(from, to query.Expression, info query.InputInfo) *Range {
	return &Range{BinaryExpression{from, to}, positioned{info}}
}

// Type implements the Expression interface.
func (r *Range) Type() *query.Cardinality {
	from, to := r.bound(r.Left), r.bound(r.Right)
	if from != nil && to != nil {
		n := int64(*to) - int64(*from) + 1
		if n <= 0 {
			return query.EmptyCard
		}
		return query.CardOf(query.IntegerType, n, n)
	}
	return query.ZeroOrMore(query.IntegerType)
}

func (r *Range) bound(e query.Expression) *query.Int {
	c, ok := e.(query.Constant)
	if !ok || c.Val().Size() != 1 {
		return nil
	}
	i, ok := c.Val().ItemAt(0).(query.Int)
	if !ok {
		return nil
	}
	return &i
}

// WithChildren implements the Expression interface.
func (r *Range) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(r, children, 2); err != nil {
		return nil, err
	}
	return NewRange(children[0], children[1], r.info), nil
}

// Compile implements the Expression interface.
func (r *Range) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, r)
}

// Optimize implements the Expression interface.
func (r *Range) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if query.IsEmpty(r.Left) || query.IsEmpty(r.Right) {
		return Simplify(ctx, r), nil
	}
	if AllValues(r.Left, r.Right) {
		return PreEval(ctx, r)
	}
	return r, nil
}

// Value implements the Expression interface. The result is not materialized.
func (r *Range) Value(ctx *query.Context) (query.Value, error) {
	from, err := r.integer(ctx, r.Left)
	if err != nil || from == nil {
		return query.Empty, err
	}
	to, err := r.integer(ctx, r.Right)
	if err != nil || to == nil {
		return query.Empty, err
	}
	return query.NewRange(int64(*from), int64(*to)-int64(*from)+1), nil
}

func (r *Range) integer(ctx *query.Context, e query.Expression) (*query.Int, error) {
	it, err := query.ItemOf(ctx, e, r.info)
	if err != nil || it == nil {
		return nil, err
	}
	it, err = query.Atomize(r.info, it)
	if err != nil {
		return nil, err
	}
	if it.Type().IsUntyped() {
		if it, err = query.CastItem(r.info, it, query.IntegerType); err != nil {
			return nil, err
		}
	}
	i, ok := it.(query.Int)
	if !ok {
		return nil, query.ErrNumberExpected.New(r.info, "to", it.Type())
	}
	return &i, nil
}

// Iter implements the Expression interface.
func (r *Range) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, r)
}

// Item implements the Expression interface.
func (r *Range) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, r, r.info)
}

// Copy implements the Expression interface.
func (r *Range) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewRange(r.Left.Copy(ctx, scope, vars), r.Right.Copy(ctx, scope, vars), r.info)
}

func (r *Range) String() string {
	return fmtOperands(r.Left, rangeOp{}, r.Right)
}

type rangeOp struct{}

func (rangeOp) String() string { return "to" }
