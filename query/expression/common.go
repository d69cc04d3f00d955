package expression

import (
	"strings"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// UnaryExpression is an expression that has only one child.
type UnaryExpression struct {
	Child query.Expression
}

// Children implements the Expression interface.
func (p *UnaryExpression) Children() []query.Expression {
	return []query.Expression{p.Child}
}

// Has implements the Expression interface.
func (p *UnaryExpression) Has(f query.Flag) bool {
	return p.Child.Has(f)
}

// Accept implements the Expression interface.
func (p *UnaryExpression) Accept(v query.ASTVisitor) bool {
	return p.Child.Accept(v)
}

// BinaryExpression is an expression that has two children.
type BinaryExpression struct {
	Left  query.Expression
	Right query.Expression
}

// Children implements the Expression interface.
func (p *BinaryExpression) Children() []query.Expression {
	return []query.Expression{p.Left, p.Right}
}

// Has implements the Expression interface.
func (p *BinaryExpression) Has(f query.Flag) bool {
	return p.Left.Has(f) || p.Right.Has(f)
}

// Accept implements the Expression interface.
func (p *BinaryExpression) Accept(v query.ASTVisitor) bool {
	return p.Left.Accept(v) && p.Right.Accept(v)
}

// positioned holds the source position of an expression.
type positioned struct {
	info query.InputInfo
}

// Info implements the query.Positioned interface.
func (p positioned) Info() query.InputInfo { return p.info }

// Compile compiles the children of e and optimizes the result.
func Compile(ctx *query.Context, scope *query.VarScope, e query.Expression) (query.Expression, error) {
	e, err := query.CompileChildren(ctx, scope, e)
	if err != nil {
		return nil, err
	}
	return e.Optimize(ctx, scope)
}

// PreEval evaluates e at compile time and returns its value as a literal.
func PreEval(ctx *query.Context, e query.Expression) (query.Expression, error) {
	v, err := e.Value(ctx)
	if err != nil {
		return nil, err
	}
	ctx.CompInfo("pre-evaluating %s", query.DebugString(e))
	return NewLiteral(v, query.InfoOf(e)), nil
}

// Simplify replaces e by the empty sequence.
func Simplify(ctx *query.Context, e query.Expression) query.Expression {
	ctx.CompInfo("simplifying %s to ()", query.DebugString(e))
	return NewEmpty(query.InfoOf(e))
}

// AllValues reports whether all expressions are constants.
func AllValues(exprs ...query.Expression) bool {
	for _, e := range exprs {
		if !query.IsValue(e) {
			return false
		}
	}
	return true
}

// ItemIter returns an iterator over the result of an item evaluation.
func ItemIter(it query.Item, err error) (query.Iter, error) {
	if err != nil {
		return nil, err
	}
	if it == nil {
		return query.EmptyIter(), nil
	}
	return query.ValueIter(it), nil
}

// ItemValue returns the value of the result of an item evaluation.
func ItemValue(it query.Item, err error) (query.Value, error) {
	if err != nil {
		return nil, err
	}
	if it == nil {
		return query.Empty, nil
	}
	return it, nil
}

// Pure reports whether e has no side effects and is deterministic.
func Pure(e query.Expression) bool {
	return !e.Has(query.FlagNdt) && !e.Has(query.FlagUpd)
}

func joinExprs(exprs []query.Expression, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = query.DebugString(e)
	}
	return strings.Join(parts, sep)
}

func checkChildren(e query.Expression, children []query.Expression, n int) error {
	if len(children) != n {
		return query.ErrInvalidChildrenNumber.New(e, len(children), n)
	}
	return nil
}
