package expression

import (
	"fmt"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Cast casts its argument to an atomic type.
type Cast struct {
	UnaryExpression
	positioned
	To  *query.SeqType
	typ *query.Cardinality
}

// NewCast creates a new Cast expression.
func NewCast(child query.Expression, to *query.SeqType, info query.InputInfo) *Cast {
	return &Cast{UnaryExpression{child}, positioned{info}, to, castType(child, to)}
}

func castType(child query.Expression, to *query.SeqType) *query.Cardinality {
	typ := query.CardOfType(to)
	if child.Type().One() {
		typ = typ.WithSize(1)
	}
	return typ
}

// Type implements the Expression interface.
func (c *Cast) Type() *query.Cardinality { return c.typ }

// WithChildren implements the Expression interface.
func (c *Cast) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(c, children, 1); err != nil {
		return nil, err
	}
	return NewCast(children[0], c.To, c.info), nil
}

// Compile implements the Expression interface.
func (c *Cast) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, c)
}

// Optimize implements the Expression interface.
func (c *Cast) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	arg := c.Child.Type()
	if arg.MinSize() > 1 {
		return nil, query.ErrInvalidCast.New(c.info, arg, c.To)
	}
	if query.IsValue(c.Child) {
		return PreEval(ctx, c)
	}
	if !castType(c.Child, c.To).Equal(c.typ) {
		c = NewCast(c.Child, c.To, c.info)
	}

	switch c.To.Type {
	case query.BooleanType, query.FloatType, query.DoubleType, query.QNameType, query.AnyURIType:
		if c.To.Eq(arg.SeqType()) {
			ctx.CompInfo("removing redundant cast to %s", c.To)
			return c.Child, nil
		}
	}
	return c, nil
}

// Value implements the Expression interface.
func (c *Cast) Value(ctx *query.Context) (query.Value, error) {
	it, err := query.ItemOf(ctx, c.Child, c.info)
	if err != nil {
		return nil, err
	}
	var v query.Value = query.Empty
	if it != nil {
		v = it
	}
	return c.To.Cast(c.info, v)
}

// Item implements the Expression interface.
func (c *Cast) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, c, c.info)
}

// Iter implements the Expression interface.
func (c *Cast) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, c)
}

// Copy implements the Expression interface.
func (c *Cast) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewCast(c.Child.Copy(ctx, scope, vars), c.To, c.info)
}

func (c *Cast) String() string {
	return fmt.Sprintf("%s cast as %s", c.Child, c.To)
}

// Plan implements the query.Planner interface.
func (c *Cast) Plan() *query.PlanNode {
	p := query.NewPlan("Cast", "type", c.To.String())
	p.Children = []*query.PlanNode{query.PlanOf(c.Child)}
	return p
}
