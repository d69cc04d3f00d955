package function

import (
	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
)

// FunctionLookup returns the function with a given name and arity, or the
// empty sequence if there is none.
type FunctionLookup struct {
	call
}

// NewFunctionLookup creates a new FunctionLookup expression.
func NewFunctionLookup(info query.InputInfo, name, arity query.Expression) query.Expression {
	return &FunctionLookup{newCall("fn:function-lookup", info, name, arity)}
}

// Type implements the Expression interface.
func (*FunctionLookup) Type() *query.Cardinality {
	return query.ZeroOrOne(query.AnyFuncType)
}

// WithChildren implements the Expression interface.
func (f *FunctionLookup) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 2); err != nil {
		return nil, err
	}
	return NewFunctionLookup(f.info, children[0], children[1]), nil
}

// Compile implements the Expression interface.
func (f *FunctionLookup) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *FunctionLookup) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return f, nil
}

// Item implements the Expression interface. Lookup errors are not reported:
// a function that cannot be resolved is absent.
func (f *FunctionLookup) Item(ctx *query.Context) (query.Item, error) {
	it, err := query.ItemOfOne(ctx, f.Args[0], f.info)
	if err != nil {
		return nil, err
	}
	name, ok := it.(query.QName)
	if !ok {
		return nil, query.ErrInvalidCast.New(f.info, it.Type(), query.QNameType)
	}
	it, err = query.ItemOfOne(ctx, f.Args[1], f.info)
	if err != nil {
		return nil, err
	}
	arity, ok := it.(query.Int)
	if !ok {
		return nil, query.ErrInvalidCast.New(f.info, it.Type(), query.IntegerType)
	}
	if arity < 0 || arity > query.Unbounded {
		return nil, query.ErrFuncUnknown.New(f.info, name, arity)
	}

	if ctx.Resolver == nil {
		return nil, nil
	}
	fn, err := ctx.Resolver.Function(ctx, f.info, name, int(arity))
	if err != nil {
		ctx.Logger().WithError(err).Debugf("lookup of %s#%d failed", name, arity)
		return nil, nil
	}
	if fn == nil {
		return nil, nil
	}
	return fn, nil
}

// Value implements the Expression interface.
func (f *FunctionLookup) Value(ctx *query.Context) (query.Value, error) {
	return expression.ItemValue(f.Item(ctx))
}

// Iter implements the Expression interface.
func (f *FunctionLookup) Iter(ctx *query.Context) (query.Iter, error) {
	return expression.ItemIter(f.Item(ctx))
}

// Copy implements the Expression interface.
func (f *FunctionLookup) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := f.copyArgs(ctx, scope, vars)
	return NewFunctionLookup(f.info, args[0], args[1])
}

// FunctionArity returns the arity of a function item.
type FunctionArity struct {
	call
}

// NewFunctionArity creates a new FunctionArity expression.
func NewFunctionArity(info query.InputInfo, f query.Expression) query.Expression {
	return &FunctionArity{newCall("fn:function-arity", info, f)}
}

// Type implements the Expression interface.
func (*FunctionArity) Type() *query.Cardinality { return query.One(query.IntegerType) }

// WithChildren implements the Expression interface.
func (f *FunctionArity) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 1); err != nil {
		return nil, err
	}
	return NewFunctionArity(f.info, children[0]), nil
}

// Compile implements the Expression interface.
func (f *FunctionArity) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface. The arity is known
// statically if the signature of the argument is.
func (f *FunctionArity) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	arg := f.Args[0]
	if ft, ok := arg.Type().Type().(*query.FuncType); ok && ft.Args != nil && arg.Type().One() && f.pure() {
		ctx.CompInfo("pre-evaluating %s", f)
		return expression.NewLiteral(query.Int(len(ft.Args)), f.info), nil
	}
	return preEval(ctx, f, f.Args)
}

// Item implements the Expression interface.
func (f *FunctionArity) Item(ctx *query.Context) (query.Item, error) {
	fn, err := checkFunc(ctx, f.Args[0], f.info)
	if err != nil {
		return nil, err
	}
	return query.Int(fn.Arity()), nil
}

// Value implements the Expression interface.
func (f *FunctionArity) Value(ctx *query.Context) (query.Value, error) {
	return expression.ItemValue(f.Item(ctx))
}

// Iter implements the Expression interface.
func (f *FunctionArity) Iter(ctx *query.Context) (query.Iter, error) {
	return expression.ItemIter(f.Item(ctx))
}

// Copy implements the Expression interface.
func (f *FunctionArity) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewFunctionArity(f.info, f.copyArgs(ctx, scope, vars)[0])
}

// FunctionName returns the name of a function item, the empty sequence for
// anonymous functions.
type FunctionName struct {
	call
}

// NewFunctionName creates a new FunctionName expression.
func NewFunctionName(info query.InputInfo, f query.Expression) query.Expression {
	return &FunctionName{newCall("fn:function-name", info, f)}
}

// Type implements the Expression interface.
func (*FunctionName) Type() *query.Cardinality { return query.ZeroOrOne(query.QNameType) }

// WithChildren implements the Expression interface.
func (f *FunctionName) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 1); err != nil {
		return nil, err
	}
	return NewFunctionName(f.info, children[0]), nil
}

// Compile implements the Expression interface.
func (f *FunctionName) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *FunctionName) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	return preEval(ctx, f, f.Args)
}

// Item implements the Expression interface.
func (f *FunctionName) Item(ctx *query.Context) (query.Item, error) {
	fn, err := checkFunc(ctx, f.Args[0], f.info)
	if err != nil {
		return nil, err
	}
	if name, ok := fn.FuncName(); ok {
		return name, nil
	}
	return nil, nil
}

// Value implements the Expression interface.
func (f *FunctionName) Value(ctx *query.Context) (query.Value, error) {
	return expression.ItemValue(f.Item(ctx))
}

// Iter implements the Expression interface.
func (f *FunctionName) Iter(ctx *query.Context) (query.Iter, error) {
	return expression.ItemIter(f.Item(ctx))
}

// Copy implements the Expression interface.
func (f *FunctionName) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewFunctionName(f.info, f.copyArgs(ctx, scope, vars)[0])
}
