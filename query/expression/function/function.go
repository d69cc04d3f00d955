// Package function implements the builtin functions.
package function

import (
	"fmt"
	"strings"

	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
)

// call holds the name and arguments of a builtin function call.
type call struct {
	name string
	info query.InputInfo
	Args []query.Expression
}

func newCall(name string, info query.InputInfo, args ...query.Expression) call {
	return call{name, info, args}
}

// Info implements the query.Positioned interface.
func (c *call) Info() query.InputInfo { return c.info }

// Children implements the Expression interface.
func (c *call) Children() []query.Expression { return c.Args }

// Has implements the Expression interface.
func (c *call) Has(f query.Flag) bool { return query.HasAny(f, c.Args...) }

// Accept implements the Expression interface.
func (c *call) Accept(v query.ASTVisitor) bool { return query.AcceptAll(v, c.Args...) }

func (c *call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = query.DebugString(a)
	}
	return fmt.Sprintf("%s(%s)", c.name, strings.Join(args, ", "))
}

// pure reports whether the call has no side effects and is deterministic.
func (c *call) pure() bool {
	return !c.Has(query.FlagNdt) && !c.Has(query.FlagUpd)
}

func (c *call) copyArgs(ctx *query.Context, scope *query.VarScope, vars query.VarMap) []query.Expression {
	return query.CopyAll(ctx, scope, vars, c.Args)
}

func checkChildren(e query.Expression, children []query.Expression, n int) error {
	if len(children) != n {
		return query.ErrInvalidChildrenNumber.New(e, len(children), n)
	}
	return nil
}

// preEval evaluates e at compile time if all its arguments are values.
func preEval(ctx *query.Context, e query.Expression, args []query.Expression) (query.Expression, error) {
	if expression.AllValues(args...) {
		return expression.PreEval(ctx, e)
	}
	return e, nil
}

// checkArity fails if e is statically known to not yield a function with
// the given arity.
func checkArity(e query.Expression, arity int, info query.InputInfo) error {
	t := e.Type()
	if t.IsEmpty() {
		return query.ErrInvalidCast.New(info, t, query.ArityType(arity))
	}
	switch ft := t.Type().(type) {
	case *query.FuncType:
		if ft.Args != nil && len(ft.Args) != arity {
			return query.ErrInvalidCast.New(info, ft, query.ArityType(arity))
		}
	case query.AtomType:
		if ft != query.ItemType {
			return query.ErrInvalidCast.New(info, ft, query.ArityType(arity))
		}
	case query.NodeType, query.MapType:
		return query.ErrInvalidCast.New(info, ft, query.ArityType(arity))
	}
	return nil
}

// withArity evaluates e to a function item with the given arity.
func withArity(ctx *query.Context, e query.Expression, arity int, info query.InputInfo) (query.FItem, error) {
	it, err := query.ItemOfOne(ctx, e, info)
	if err != nil {
		return nil, err
	}
	if f, ok := it.(query.FItem); ok && f.Arity() == arity {
		return f, nil
	}
	return nil, query.ErrInvalidCast.New(info, it.Type(), query.ArityType(arity))
}

// checkFunc evaluates e to a function item.
func checkFunc(ctx *query.Context, e query.Expression, info query.InputInfo) (query.FItem, error) {
	it, err := query.ItemOfOne(ctx, e, info)
	if err != nil {
		return nil, err
	}
	f, ok := it.(query.FItem)
	if !ok {
		return nil, query.ErrFuncExpected.New(info, it.Type())
	}
	return f, nil
}

// invokeIter returns the items of the results of calling f for each of the
// argument lists returned by next, which returns nil once exhausted.
func invokeIter(
	ctx *query.Context,
	info query.InputInfo,
	f query.FItem,
	next func() ([]query.Value, error),
	done func() error,
) query.Iter {
	var cur query.Iter
	return query.NewIter(func() (query.Item, error) {
		for {
			if cur != nil {
				it, err := cur.Next()
				if err != nil || it != nil {
					return it, err
				}
				cur = nil
			}
			if err := ctx.Canceled(); err != nil {
				return nil, err
			}
			args, err := next()
			if err != nil || args == nil {
				return nil, err
			}
			v, err := query.Invoke(ctx, info, f, args...)
			if err != nil {
				return nil, err
			}
			cur = query.ValueIter(v)
		}
	}, done)
}
