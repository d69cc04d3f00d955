package expression

import (
	"fmt"
	"strings"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Capture binds a variable of an inline function to the value of an
// expression of the enclosing scope when the function item is created.
type Capture struct {
	Local *query.Var
	Expr  query.Expression
}

// InlineFunc is an inline function expression. Its body is compiled in its
// own scope and only sees the parameters and the captured variables.
type InlineFunc struct {
	positioned
	Params   []*query.Var
	Declared *query.SeqType
	Closure  []Capture
	Updating bool

	scope *query.VarScope
	body  query.Expression
}

// NewInlineFunc creates a new inline function. The parameters and the local
// variables of the closure must be declared in scope.
func NewInlineFunc(
	scope *query.VarScope,
	params []*query.Var,
	declared *query.SeqType,
	closure []Capture,
	body query.Expression,
	info query.InputInfo,
) *InlineFunc {
	return &InlineFunc{
		positioned: positioned{info},
		Params:     params,
		Declared:   declared,
		Closure:    closure,
		scope:      scope,
		body:       body,
	}
}

// Body returns the body of the function.
func (f *InlineFunc) Body() query.Expression { return f.body }

// Scope returns the scope of the function body.
func (f *InlineFunc) Scope() *query.VarScope { return f.scope }

// Type implements the Expression interface.
func (f *InlineFunc) Type() *query.Cardinality {
	return query.One(funcType(f.Params, f.Declared, f.body))
}

func funcType(params []*query.Var, declared *query.SeqType, body query.Expression) *query.FuncType {
	args := make([]*query.SeqType, len(params))
	for i, p := range params {
		args[i] = query.ItemZeroMore
		if p.Declared != nil {
			args[i] = p.Declared
		}
	}
	ret := declared
	if ret == nil {
		ret = body.Type().SeqType()
	}
	return query.NewFuncType(ret, args...)
}

// Children implements the Expression interface. Only the captured
// expressions are evaluated in the enclosing scope.
func (f *InlineFunc) Children() []query.Expression {
	exprs := make([]query.Expression, len(f.Closure))
	for i, c := range f.Closure {
		exprs[i] = c.Expr
	}
	return exprs
}

// WithChildren implements the Expression interface.
func (f *InlineFunc) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, len(f.Closure)); err != nil {
		return nil, err
	}
	nf := *f
	nf.Closure = make([]Capture, len(f.Closure))
	for i, c := range f.Closure {
		nf.Closure[i] = Capture{c.Local, children[i]}
	}
	return &nf, nil
}

// Compile implements the Expression interface.
func (f *InlineFunc) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	nf := *f
	nf.Closure = make([]Capture, len(f.Closure))
	for i, c := range f.Closure {
		e, err := c.Expr.Compile(ctx, scope)
		if err != nil {
			return nil, err
		}
		c.Local.Refine(e.Type())
		nf.Closure[i] = Capture{c.Local, e}
	}

	body, err := query.CompileBody(ctx, f.scope, f.body, "inline function")
	if err != nil {
		return nil, err
	}
	if f.Declared != nil && !f.Declared.CouldBe(body.Type()) {
		return nil, query.ErrInvalidCast.New(f.info, body.Type(), f.Declared)
	}
	nf.body = body
	return nf.Optimize(ctx, scope)
}

// Optimize implements the Expression interface. Functions without dynamic
// closure are turned into function items.
func (f *InlineFunc) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if !f.Updating && !f.body.Has(query.FlagNdt) && AllValues(f.Children()...) {
		return PreEval(ctx, f)
	}
	return f, nil
}

// Item implements the Expression interface.
func (f *InlineFunc) Item(ctx *query.Context) (query.Item, error) {
	locals := make([]*query.Var, len(f.Closure))
	vals := make([]query.Value, len(f.Closure))
	for i, c := range f.Closure {
		v, err := c.Expr.Value(ctx)
		if err != nil {
			return nil, err
		}
		locals[i], vals[i] = c.Local, v
	}
	return &FuncItem{
		Params:   f.Params,
		Declared: f.Declared,
		Updating: f.Updating,
		info:     f.info,
		scope:    f.scope,
		body:     f.body,
		locals:   locals,
		vals:     vals,
	}, nil
}

// Iter implements the Expression interface.
func (f *InlineFunc) Iter(ctx *query.Context) (query.Iter, error) {
	return ItemIter(f.Item(ctx))
}

// Value implements the Expression interface.
func (f *InlineFunc) Value(ctx *query.Context) (query.Value, error) {
	return ItemValue(f.Item(ctx))
}

// Copy implements the Expression interface.
func (f *InlineFunc) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	ns := query.NewVarScope()
	inner := query.VarMap{}
	params := make([]*query.Var, len(f.Params))
	for i, p := range f.Params {
		params[i] = ns.CopyVar(p, inner)
	}
	closure := make([]Capture, len(f.Closure))
	for i, c := range f.Closure {
		closure[i] = Capture{ns.CopyVar(c.Local, inner), c.Expr.Copy(ctx, scope, vars)}
	}
	nf := NewInlineFunc(ns, params, f.Declared, closure, f.body.Copy(ctx, ns, inner), f.info)
	nf.Updating = f.Updating
	return nf
}

// Accept implements the Expression interface.
func (f *InlineFunc) Accept(v query.ASTVisitor) bool {
	return query.AcceptAll(v, f.Children()...) && v.InlineFunc(f.body)
}

// Has implements the Expression interface.
func (f *InlineFunc) Has(flag query.Flag) bool {
	if flag == query.FlagUpd && f.Updating {
		return true
	}
	if (flag == query.FlagNdt || flag == query.FlagUpd) && f.body.Has(flag) {
		return true
	}
	return query.HasAny(flag, f.Children()...)
}

func (f *InlineFunc) String() string {
	return fmt.Sprintf("function(%s) { %s }", paramList(f.Params), query.DebugString(f.body))
}

func paramList(params []*query.Var) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
		if p.Declared != nil {
			parts[i] += " as " + p.Declared.String()
		}
	}
	return strings.Join(parts, ", ")
}

// FuncItem is a function item created by an inline function, together with
// the captured values of its closure.
type FuncItem struct {
	Params   []*query.Var
	Declared *query.SeqType
	Updating bool

	info   query.InputInfo
	scope  *query.VarScope
	body   query.Expression
	locals []*query.Var
	vals   []query.Value
}

var (
	_ query.FItem    = (*FuncItem)(nil)
	_ query.FuncBody = (*FuncItem)(nil)
)

// Arity implements the query.FItem interface.
func (f *FuncItem) Arity() int { return len(f.Params) }

// FuncName implements the query.FItem interface.
func (*FuncItem) FuncName() (query.QName, bool) { return query.QName{}, false }

// FuncType implements the query.FItem interface.
func (f *FuncItem) FuncType() *query.FuncType {
	return funcType(f.Params, f.Declared, f.body)
}

// FuncBody implements the query.FuncBody interface.
func (f *FuncItem) FuncBody() query.Expression { return f.body }

// RetCard returns the cardinality of the results of a call.
func (f *FuncItem) RetCard() *query.Cardinality {
	t := f.body.Type()
	if f.Declared == nil {
		return t
	}
	declared := query.CardOfType(f.Declared)
	if r := t.Intersect(declared); r != nil && t.Type().InstanceOf(f.Declared.Type) {
		return r
	}
	return declared
}

// Type implements the query.Item interface.
func (f *FuncItem) Type() query.Type { return f.FuncType() }

// Size implements the query.Value interface.
func (*FuncItem) Size() int64 { return 1 }

// ItemAt implements the query.Value interface.
func (f *FuncItem) ItemAt(int64) query.Item { return f }

// Card implements the query.Value interface.
func (f *FuncItem) Card() *query.Cardinality { return query.One(f.FuncType()) }

// Invoke implements the query.FItem interface.
func (f *FuncItem) Invoke(ctx *query.Context, info query.InputInfo, args ...query.Value) (query.Value, error) {
	if len(args) != len(f.Params) {
		return nil, query.ErrArity.New(info, f, len(f.Params), len(args))
	}

	frame := f.scope.Enter(ctx)
	defer f.scope.Exit(ctx, frame)
	prev := ctx.SetFocus(query.Focus{})
	defer ctx.SetFocus(prev)

	for i, l := range f.locals {
		ctx.Set(l, f.vals[i])
	}
	for i, p := range f.Params {
		v, err := p.Check(args[i])
		if err != nil {
			return nil, err
		}
		ctx.Set(p, v)
	}
	res, err := f.body.Value(ctx)
	if err != nil {
		return nil, err
	}
	if f.Declared != nil {
		return f.Declared.Promote(f.info, res)
	}
	return res, nil
}

// inline returns the body of the function bound to the arguments in scope.
func (f *FuncItem) inline(ctx *query.Context, scope *query.VarScope, args []query.Expression, info query.InputInfo) (query.Expression, error) {
	ctx.CompInfo("inlining %s", f)
	vars := query.VarMap{}
	locals := make([]*query.Var, len(f.locals))
	for i, l := range f.locals {
		locals[i] = scope.CopyVar(l, vars)
	}
	params := make([]*query.Var, len(f.Params))
	for i, p := range f.Params {
		params[i] = scope.CopyVar(p, vars)
	}

	body := f.body.Copy(ctx, scope, vars)
	if f.Declared != nil {
		body = NewTypeCheck(body, f.Declared, true, info)
	}
	for i := len(params) - 1; i >= 0; i-- {
		body = NewLet(params[i], args[i], body, info)
	}
	for i := len(locals) - 1; i >= 0; i-- {
		body = NewLet(locals[i], NewLiteral(f.vals[i], info), body, info)
	}
	return body.Compile(ctx, scope)
}

func (f *FuncItem) String() string {
	return fmt.Sprintf("function(%s) { %s }", paramList(f.Params), query.DebugString(f.body))
}

// RetType returns the cardinality of the results of calling the functions
// e evaluates to.
func RetType(e query.Expression) *query.Cardinality {
	if c, ok := e.(query.Constant); ok && c.Val().Size() == 1 {
		switch f := c.Val().ItemAt(0).(type) {
		case *FuncItem:
			return f.RetCard()
		case query.FItem:
			if decl, ok := query.DeclOf(f); ok {
				return decl.Type()
			}
		}
	}
	if ft, ok := e.Type().Type().(*query.FuncType); ok && ft.Ret != nil {
		return query.CardOfType(ft.Ret)
	}
	return query.AnyCard
}

// inlinable reports whether calls of f may be replaced by its body.
func inlinable(f query.FItem) (*FuncItem, bool) {
	fi, ok := f.(*FuncItem)
	if !ok || fi.Updating {
		return nil, false
	}
	b := fi.body
	return fi, !b.Has(query.FlagCtx) && !b.Has(query.FlagFcs) && !b.Has(query.FlagUpd)
}

// DynFuncCall is a dynamic function call, calling the function item its
// first child evaluates to.
type DynFuncCall struct {
	positioned
	Func query.Expression
	Args []query.Expression
}

// NewDynFuncCall creates a new DynFuncCall expression.
func NewDynFuncCall(fn query.Expression, info query.InputInfo, args ...query.Expression) *DynFuncCall {
	return &DynFuncCall{positioned{info}, fn, args}
}

// Type implements the Expression interface.
func (d *DynFuncCall) Type() *query.Cardinality { return RetType(d.Func) }

// Children implements the Expression interface.
func (d *DynFuncCall) Children() []query.Expression {
	return append([]query.Expression{d.Func}, d.Args...)
}

// WithChildren implements the Expression interface.
func (d *DynFuncCall) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(d, children, len(d.Args)+1); err != nil {
		return nil, err
	}
	return NewDynFuncCall(children[0], d.info, children[1:]...), nil
}

// Compile implements the Expression interface.
func (d *DynFuncCall) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, d)
}

// Optimize implements the Expression interface. Calls of known functions are
// checked statically and turned into static calls or inlined.
func (d *DynFuncCall) Optimize(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	c, ok := d.Func.(query.Constant)
	if !ok {
		return d, nil
	}
	f, ok := c.Val().(query.FItem)
	if !ok || c.Val().Size() != 1 {
		return nil, query.ErrFuncExpected.New(d.info, c.Val().Card())
	}
	if f.Arity() != len(d.Args) {
		return nil, query.ErrArity.New(d.info, f, f.Arity(), len(d.Args))
	}

	if decl, ok := query.DeclOf(f); ok {
		if err := decl.Compile(ctx); err != nil {
			return nil, err
		}
		return NewStaticFuncCall(decl, d.info, d.Args...), nil
	}
	if fi, ok := inlinable(f); ok {
		return fi.inline(ctx, scope, d.Args, d.info)
	}
	return d, nil
}

// Value implements the Expression interface.
func (d *DynFuncCall) Value(ctx *query.Context) (query.Value, error) {
	it, err := query.ItemOfOne(ctx, d.Func, d.info)
	if err != nil {
		return nil, err
	}
	f, ok := it.(query.FItem)
	if !ok {
		return nil, query.ErrFuncExpected.New(d.info, it.Type())
	}
	args, err := argValues(ctx, d.Args)
	if err != nil {
		return nil, err
	}
	return query.Invoke(ctx, d.info, f, args...)
}

func argValues(ctx *query.Context, exprs []query.Expression) ([]query.Value, error) {
	args := make([]query.Value, len(exprs))
	for i, e := range exprs {
		v, err := e.Value(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// Iter implements the Expression interface.
func (d *DynFuncCall) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, d)
}

// Item implements the Expression interface.
func (d *DynFuncCall) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, d, d.info)
}

// Copy implements the Expression interface.
func (d *DynFuncCall) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewDynFuncCall(d.Func.Copy(ctx, scope, vars), d.info, query.CopyAll(ctx, scope, vars, d.Args)...)
}

// Accept implements the Expression interface.
func (d *DynFuncCall) Accept(v query.ASTVisitor) bool {
	return query.AcceptAll(v, d.Children()...)
}

// Has implements the Expression interface.
func (d *DynFuncCall) Has(f query.Flag) bool {
	if f == query.FlagUpd {
		if c, ok := d.Func.(query.Constant); ok {
			if fi, ok := c.Val().(*FuncItem); ok && fi.Updating {
				return true
			}
		}
	}
	return query.HasAny(f, d.Children()...)
}

func (d *DynFuncCall) String() string {
	return fmt.Sprintf("%s(%s)", query.DebugString(d.Func), joinExprs(d.Args, ", "))
}

// StaticFuncCall is a call of a declared function.
type StaticFuncCall struct {
	positioned
	Func *query.StaticFunc
	Args []query.Expression
}

// NewStaticFuncCall creates a new StaticFuncCall expression.
func NewStaticFuncCall(f *query.StaticFunc, info query.InputInfo, args ...query.Expression) *StaticFuncCall {
	return &StaticFuncCall{positioned{info}, f, args}
}

// Type implements the Expression interface.
func (s *StaticFuncCall) Type() *query.Cardinality { return s.Func.Type() }

// Children implements the Expression interface.
func (s *StaticFuncCall) Children() []query.Expression { return s.Args }

// WithChildren implements the Expression interface.
func (s *StaticFuncCall) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(s, children, len(s.Args)); err != nil {
		return nil, err
	}
	return NewStaticFuncCall(s.Func, s.info, children...), nil
}

// Compile implements the Expression interface.
func (s *StaticFuncCall) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	if s.Func.Arity() != len(s.Args) {
		return nil, query.ErrArity.New(s.info, s.Func.ID(), s.Func.Arity(), len(s.Args))
	}
	e, err := query.CompileChildren(ctx, scope, s)
	if err != nil {
		return nil, err
	}
	if err := s.Func.Compile(ctx); err != nil {
		return nil, err
	}
	return e.Optimize(ctx, scope)
}

// Optimize implements the Expression interface. Calls of functions without
// parameters whose body is a constant are replaced by the constant.
func (s *StaticFuncCall) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if len(s.Args) == 0 && s.Func.Declared == nil && s.Func.State() == query.Compiled {
		if c, ok := s.Func.Body().(query.Constant); ok {
			ctx.CompInfo("inlining %s", s.Func.ID())
			return NewLiteral(c.Val(), s.info), nil
		}
	}
	return s, nil
}

// Value implements the Expression interface.
func (s *StaticFuncCall) Value(ctx *query.Context) (query.Value, error) {
	args, err := argValues(ctx, s.Args)
	if err != nil {
		return nil, err
	}
	return s.Func.Invoke(ctx, s.info, args...)
}

// Iter implements the Expression interface.
func (s *StaticFuncCall) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, s)
}

// Item implements the Expression interface.
func (s *StaticFuncCall) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, s, s.info)
}

// Copy implements the Expression interface.
func (s *StaticFuncCall) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewStaticFuncCall(s.Func, s.info, query.CopyAll(ctx, scope, vars, s.Args)...)
}

// Accept implements the Expression interface.
func (s *StaticFuncCall) Accept(v query.ASTVisitor) bool {
	return query.AcceptAll(v, s.Args...) && v.StaticFuncCall(s.Func)
}

// Has implements the Expression interface.
func (s *StaticFuncCall) Has(f query.Flag) bool {
	return query.HasAny(f, s.Args...) || s.Func.Has(f)
}

func (s *StaticFuncCall) String() string {
	return fmt.Sprintf("%s(%s)", s.Func.Name, joinExprs(s.Args, ", "))
}

// StaticVarRef is a reference to a global variable.
type StaticVarRef struct {
	positioned
	Var *query.StaticVar
}

// NewStaticVarRef creates a new StaticVarRef expression.
func NewStaticVarRef(v *query.StaticVar, info query.InputInfo) *StaticVarRef {
	return &StaticVarRef{positioned{info}, v}
}

// Type implements the Expression interface.
func (r *StaticVarRef) Type() *query.Cardinality { return r.Var.Type() }

// Children implements the Expression interface.
func (*StaticVarRef) Children() []query.Expression { return nil }

// WithChildren implements the Expression interface.
func (r *StaticVarRef) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(r, children, 0); err != nil {
		return nil, err
	}
	return r, nil
}

// Compile implements the Expression interface.
func (r *StaticVarRef) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	if err := r.Var.Compile(ctx); err != nil {
		return nil, err
	}
	return r.Optimize(ctx, scope)
}

// Optimize implements the Expression interface. References to variables
// bound to constants are replaced by the constant.
func (r *StaticVarRef) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if r.Var.State() != query.Compiled {
		return r, nil
	}
	c, ok := r.Var.Body().(query.Constant)
	if !ok {
		return r, nil
	}
	if r.Var.Declared != nil && !r.Var.Declared.Instance(c.Val()) {
		return r, nil
	}
	ctx.CompInfo("inlining $%s", r.Var.Name)
	return NewLiteral(c.Val(), r.info), nil
}

// Value implements the Expression interface.
func (r *StaticVarRef) Value(ctx *query.Context) (query.Value, error) {
	return r.Var.Value(ctx)
}

// Iter implements the Expression interface.
func (r *StaticVarRef) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, r)
}

// Item implements the Expression interface.
func (r *StaticVarRef) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, r, r.info)
}

// Copy implements the Expression interface.
func (r *StaticVarRef) Copy(*query.Context, *query.VarScope, query.VarMap) query.Expression {
	return r
}

// Accept implements the Expression interface.
func (r *StaticVarRef) Accept(v query.ASTVisitor) bool { return v.StaticVar(r.Var) }

// Has implements the Expression interface. Global variables are evaluated
// without focus.
func (r *StaticVarRef) Has(f query.Flag) bool {
	if f == query.FlagCtx || f == query.FlagFcs || r.Var.State() != query.Compiled {
		return false
	}
	if b := r.Var.Body(); b != nil {
		return b.Has(f)
	}
	return false
}

func (r *StaticVarRef) String() string { return "$" + r.Var.Name.String() }

// FuncRef is a named function reference, written name#arity.
type FuncRef struct {
	positioned
	Name  query.QName
	Arity int
}

// NewFuncRef creates a new FuncRef expression.
func NewFuncRef(name query.QName, arity int, info query.InputInfo) *FuncRef {
	return &FuncRef{positioned{info}, name, arity}
}

// Type implements the Expression interface.
func (r *FuncRef) Type() *query.Cardinality { return query.One(query.ArityType(r.Arity)) }

// Children implements the Expression interface.
func (*FuncRef) Children() []query.Expression { return nil }

// WithChildren implements the Expression interface.
func (r *FuncRef) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(r, children, 0); err != nil {
		return nil, err
	}
	return r, nil
}

// Compile implements the Expression interface.
func (r *FuncRef) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return r.Optimize(ctx, scope)
}

// Optimize implements the Expression interface, resolving the function.
func (r *FuncRef) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	f, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return NewLiteral(f, r.info), nil
}

func (r *FuncRef) resolve(ctx *query.Context) (query.FItem, error) {
	if ctx.Resolver == nil {
		return nil, query.ErrFuncUnknown.New(r.info, r.Name, r.Arity)
	}
	f, err := ctx.Resolver.Function(ctx, r.info, r.Name, r.Arity)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, query.ErrFuncUnknown.New(r.info, r.Name, r.Arity)
	}
	return f, nil
}

// Item implements the Expression interface.
func (r *FuncRef) Item(ctx *query.Context) (query.Item, error) {
	return r.resolve(ctx)
}

// Iter implements the Expression interface.
func (r *FuncRef) Iter(ctx *query.Context) (query.Iter, error) {
	return ItemIter(r.Item(ctx))
}

// Value implements the Expression interface.
func (r *FuncRef) Value(ctx *query.Context) (query.Value, error) {
	return ItemValue(r.Item(ctx))
}

// Copy implements the Expression interface.
func (r *FuncRef) Copy(*query.Context, *query.VarScope, query.VarMap) query.Expression {
	return r
}

// Accept implements the Expression interface.
func (*FuncRef) Accept(query.ASTVisitor) bool { return true }

// Has implements the Expression interface.
func (*FuncRef) Has(query.Flag) bool { return false }

func (r *FuncRef) String() string { return fmt.Sprintf("%s#%d", r.Name, r.Arity) }
