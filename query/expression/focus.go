package expression

import (
	"gopkg.in/src-d/go-xquery.v0/query"
)

// focusExpression is embedded by the leaf expressions reading the focus.
type focusExpression struct {
	positioned
}

// Children implements the Expression interface.
func (focusExpression) Children() []query.Expression { return nil }

// ContextValue is the context item, written ".".
type ContextValue struct {
	focusExpression
}

// NewContextValue creates a new ContextValue expression.
func NewContextValue(info query.InputInfo) *ContextValue {
	return &ContextValue{focusExpression{positioned{info}}}
}

// Type implements the Expression interface.
func (*ContextValue) Type() *query.Cardinality { return query.One(query.ItemType) }

// WithChildren implements the Expression interface.
func (c *ContextValue) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(c, children, 0); err != nil {
		return nil, err
	}
	return c, nil
}

// Compile implements the Expression interface.
func (c *ContextValue) Compile(*query.Context, *query.VarScope) (query.Expression, error) {
	return c, nil
}

// Optimize implements the Expression interface.
func (c *ContextValue) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return c, nil
}

// Item implements the Expression interface.
func (c *ContextValue) Item(ctx *query.Context) (query.Item, error) {
	return ctx.ContextItem(c.info)
}

// Iter implements the Expression interface.
func (c *ContextValue) Iter(ctx *query.Context) (query.Iter, error) {
	return ItemIter(c.Item(ctx))
}

// Value implements the Expression interface.
func (c *ContextValue) Value(ctx *query.Context) (query.Value, error) {
	return ItemValue(c.Item(ctx))
}

// Copy implements the Expression interface.
func (c *ContextValue) Copy(*query.Context, *query.VarScope, query.VarMap) query.Expression {
	return c
}

// Accept implements the Expression interface.
func (c *ContextValue) Accept(v query.ASTVisitor) bool {
	return v.Lock(query.ContextResource)
}

// Has implements the Expression interface.
func (*ContextValue) Has(f query.Flag) bool { return f == query.FlagCtx }

func (*ContextValue) String() string { return "." }

// Position is the context position, written position().
type Position struct {
	focusExpression
}

// NewPosition creates a new Position expression.
func NewPosition(info query.InputInfo) *Position {
	return &Position{focusExpression{positioned{info}}}
}

// Type implements the Expression interface.
func (*Position) Type() *query.Cardinality { return query.One(query.IntegerType) }

// WithChildren implements the Expression interface.
func (p *Position) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(p, children, 0); err != nil {
		return nil, err
	}
	return p, nil
}

// Compile implements the Expression interface.
func (p *Position) Compile(*query.Context, *query.VarScope) (query.Expression, error) {
	return p, nil
}

// Optimize implements the Expression interface.
func (p *Position) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return p, nil
}

// Item implements the Expression interface.
func (p *Position) Item(ctx *query.Context) (query.Item, error) {
	f := ctx.Focus()
	if f.Item == nil {
		return nil, query.ErrNoContext.New(p.info)
	}
	return query.Int(f.Pos), nil
}

// Iter implements the Expression interface.
func (p *Position) Iter(ctx *query.Context) (query.Iter, error) {
	return ItemIter(p.Item(ctx))
}

// Value implements the Expression interface.
func (p *Position) Value(ctx *query.Context) (query.Value, error) {
	return ItemValue(p.Item(ctx))
}

// Copy implements the Expression interface.
func (p *Position) Copy(*query.Context, *query.VarScope, query.VarMap) query.Expression {
	return p
}

// Accept implements the Expression interface.
func (*Position) Accept(query.ASTVisitor) bool { return true }

// Has implements the Expression interface.
func (*Position) Has(f query.Flag) bool { return f == query.FlagFcs }

func (*Position) String() string { return "position()" }

// Last is the context size, written last().
type Last struct {
	focusExpression
}

// NewLast creates a new Last expression.
func NewLast(info query.InputInfo) *Last {
	return &Last{focusExpression{positioned{info}}}
}

// Type implements the Expression interface.
func (*Last) Type() *query.Cardinality { return query.One(query.IntegerType) }

// WithChildren implements the Expression interface.
func (l *Last) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(l, children, 0); err != nil {
		return nil, err
	}
	return l, nil
}

// Compile implements the Expression interface.
func (l *Last) Compile(*query.Context, *query.VarScope) (query.Expression, error) {
	return l, nil
}

// Optimize implements the Expression interface.
func (l *Last) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return l, nil
}

// Item implements the Expression interface.
func (l *Last) Item(ctx *query.Context) (query.Item, error) {
	f := ctx.Focus()
	if f.Item == nil {
		return nil, query.ErrNoContext.New(l.info)
	}
	if f.Size < 0 {
		return nil, query.ErrNoContextSize.New(l.info)
	}
	return query.Int(f.Size), nil
}

// Iter implements the Expression interface.
func (l *Last) Iter(ctx *query.Context) (query.Iter, error) {
	return ItemIter(l.Item(ctx))
}

// Value implements the Expression interface.
func (l *Last) Value(ctx *query.Context) (query.Value, error) {
	return ItemValue(l.Item(ctx))
}

// Copy implements the Expression interface.
func (l *Last) Copy(*query.Context, *query.VarScope, query.VarMap) query.Expression {
	return l
}

// Accept implements the Expression interface.
func (*Last) Accept(query.ASTVisitor) bool { return true }

// Has implements the Expression interface.
func (*Last) Has(f query.Flag) bool { return f == query.FlagFcs }

func (*Last) String() string { return "last()" }
