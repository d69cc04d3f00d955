package function

import (
	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
)

// Count returns the number of items of a sequence.
type Count struct {
	call
}

// NewCount creates a new Count expression.
func NewCount(info query.InputInfo, e query.Expression) query.Expression {
	return &Count{newCall("fn:count", info, e)}
}

// Type implements the Expression interface.
func (*Count) Type() *query.Cardinality { return query.One(query.IntegerType) }

// WithChildren implements the Expression interface.
func (c *Count) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(c, children, 1); err != nil {
		return nil, err
	}
	return NewCount(c.info, children[0]), nil
}

// Compile implements the Expression interface.
func (c *Count) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, c)
}

// Optimize implements the Expression interface. The count is known
// statically if the size of the argument is.
func (c *Count) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if size := c.Args[0].Type().Size(); size >= 0 && c.pure() {
		ctx.CompInfo("pre-evaluating %s", c)
		return expression.NewLiteral(query.Int(size), c.info), nil
	}
	return c, nil
}

// Item implements the Expression interface.
func (c *Count) Item(ctx *query.Context) (query.Item, error) {
	iter, err := c.Args[0].Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	if size := iter.Size(); size >= 0 {
		return query.Int(size), nil
	}

	var n int64
	for {
		it, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if it == nil {
			return query.Int(n), nil
		}
		n++
	}
}

// Value implements the Expression interface.
func (c *Count) Value(ctx *query.Context) (query.Value, error) {
	return expression.ItemValue(c.Item(ctx))
}

// Iter implements the Expression interface.
func (c *Count) Iter(ctx *query.Context) (query.Iter, error) {
	return expression.ItemIter(c.Item(ctx))
}

// Copy implements the Expression interface.
func (c *Count) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewCount(c.info, c.copyArgs(ctx, scope, vars)[0])
}

// Empty reports whether a sequence is empty.
type Empty struct {
	call
	// exists negates the result.
	exists bool
}

// NewEmpty creates a new Empty expression.
func NewEmpty(info query.InputInfo, e query.Expression) query.Expression {
	return &Empty{newCall("fn:empty", info, e), false}
}

// NewExists creates an expression reporting whether a sequence is not empty.
func NewExists(info query.InputInfo, e query.Expression) query.Expression {
	return &Empty{newCall("fn:exists", info, e), true}
}

// Type implements the Expression interface.
func (*Empty) Type() *query.Cardinality { return query.One(query.BooleanType) }

// WithChildren implements the Expression interface.
func (e *Empty) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(e, children, 1); err != nil {
		return nil, err
	}
	return &Empty{newCall(e.name, e.info, children[0]), e.exists}, nil
}

// Compile implements the Expression interface.
func (e *Empty) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, e)
}

// Optimize implements the Expression interface.
func (e *Empty) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if !e.pure() {
		return e, nil
	}
	t := e.Args[0].Type()
	switch {
	case t.IsEmpty():
		ctx.CompInfo("pre-evaluating %s", e)
		return expression.NewLiteral(query.Bln(!e.exists), e.info), nil
	case t.NonEmpty():
		ctx.CompInfo("pre-evaluating %s", e)
		return expression.NewLiteral(query.Bln(e.exists), e.info), nil
	}
	return e, nil
}

// Item implements the Expression interface.
func (e *Empty) Item(ctx *query.Context) (query.Item, error) {
	it, err := query.FirstItem(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	return query.Bln((it == nil) != e.exists), nil
}

// Value implements the Expression interface.
func (e *Empty) Value(ctx *query.Context) (query.Value, error) {
	return expression.ItemValue(e.Item(ctx))
}

// Iter implements the Expression interface.
func (e *Empty) Iter(ctx *query.Context) (query.Iter, error) {
	return expression.ItemIter(e.Item(ctx))
}

// Copy implements the Expression interface.
func (e *Empty) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return &Empty{newCall(e.name, e.info, e.copyArgs(ctx, scope, vars)[0]), e.exists}
}
