package expression

import (
	"fmt"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// VarRef is a reference to a local variable.
type VarRef struct {
	positioned
	Var *query.Var
}

// NewVarRef creates a new VarRef expression.
func NewVarRef(v *query.Var, info query.InputInfo) *VarRef {
	return &VarRef{positioned{info}, v}
}

// Type implements the Expression interface.
func (r *VarRef) Type() *query.Cardinality { return r.Var.Card() }

// Children implements the Expression interface.
func (*VarRef) Children() []query.Expression { return nil }

// WithChildren implements the Expression interface.
func (r *VarRef) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(r, children, 0); err != nil {
		return nil, err
	}
	return r, nil
}

// Compile implements the Expression interface.
func (r *VarRef) Compile(*query.Context, *query.VarScope) (query.Expression, error) {
	return r, nil
}

// Optimize implements the Expression interface.
func (r *VarRef) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return r, nil
}

// Value implements the Expression interface.
func (r *VarRef) Value(ctx *query.Context) (query.Value, error) {
	v := ctx.Get(r.Var)
	if v == nil {
		return nil, query.ErrVarUndefined.New(r.info, r.Var)
	}
	return v, nil
}

// Iter implements the Expression interface.
func (r *VarRef) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, r)
}

// Item implements the Expression interface.
func (r *VarRef) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, r, r.info)
}

// Copy implements the Expression interface.
func (r *VarRef) Copy(_ *query.Context, _ *query.VarScope, vars query.VarMap) query.Expression {
	if v, ok := vars[r.Var]; ok {
		return NewVarRef(v, r.info)
	}
	return r
}

// Accept implements the Expression interface.
func (r *VarRef) Accept(v query.ASTVisitor) bool { return v.VarRef(r.Var) }

// Has implements the Expression interface.
func (*VarRef) Has(query.Flag) bool { return false }

func (r *VarRef) String() string { return r.Var.String() }

// refine narrows the type of v to the type of the values bound to it. Values
// bound to parameters are promoted, so their type is only narrowed if no
// promotion happens.
func refine(v *query.Var, c *query.Cardinality) {
	if v.Param && v.Declared != nil && !c.Type().InstanceOf(v.Declared.Type) {
		return
	}
	v.Refine(c)
}

// countRefs returns the number of references to v in e.
func countRefs(e query.Expression, v *query.Var) int {
	return query.Fold(e, 0, func(n int, e query.Expression) (int, bool) {
		if r, ok := e.(*VarRef); ok && r.Var == v {
			n++
		}
		return n, true
	})
}

// inlineVar replaces the references to v in e by a literal. The nodes of e
// are optimized again as their operands may have become constant.
func inlineVar(ctx *query.Context, scope *query.VarScope, e query.Expression, v *query.Var, val query.Value) (query.Expression, error) {
	ctx.CompInfo("inlining %s", v)
	e, _, err := query.TransformUp(e, func(e query.Expression) (query.Expression, query.TreeIdentity, error) {
		if r, ok := e.(*VarRef); ok && r.Var == v {
			return NewLiteral(val, r.info), query.NewTree, nil
		}
		n, err := e.Optimize(ctx, scope)
		if err != nil {
			return nil, query.SameTree, err
		}
		if n == e {
			return e, query.SameTree, nil
		}
		return n, query.NewTree, nil
	})
	return e, err
}

// Let binds the value of an expression to a variable for the evaluation of
// its return expression.
type Let struct {
	positioned
	Var    *query.Var
	Bind   query.Expression
	Return query.Expression
}

// NewLet creates a new Let expression.
func NewLet(v *query.Var, bind, ret query.Expression, info query.InputInfo) *Let {
	return &Let{positioned{info}, v, bind, ret}
}

// Type implements the Expression interface.
func (l *Let) Type() *query.Cardinality { return l.Return.Type() }

// Children implements the Expression interface.
func (l *Let) Children() []query.Expression {
	return []query.Expression{l.Bind, l.Return}
}

// WithChildren implements the Expression interface.
func (l *Let) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(l, children, 2); err != nil {
		return nil, err
	}
	return NewLet(l.Var, children[0], children[1], l.info), nil
}

// Compile implements the Expression interface.
func (l *Let) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	bind, err := l.Bind.Compile(ctx, scope)
	if err != nil {
		return nil, err
	}
	refine(l.Var, bind.Type())
	ret, err := l.Return.Compile(ctx, scope)
	if err != nil {
		return nil, err
	}
	n := l
	if bind != l.Bind || ret != l.Return {
		n = NewLet(l.Var, bind, ret, l.info)
	}
	return n.Optimize(ctx, scope)
}

// Optimize implements the Expression interface. Unused bindings are removed
// and constant bindings are inlined.
func (l *Let) Optimize(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	if countRefs(l.Return, l.Var) == 0 && Pure(l.Bind) {
		ctx.CompInfo("removing unused %s", l.Var)
		return l.Return, nil
	}
	if query.IsValue(l.Bind) {
		v, err := l.Var.Check(l.Bind.(query.Constant).Val())
		if err != nil {
			return nil, err
		}
		return inlineVar(ctx, scope, l.Return, l.Var, v)
	}
	return l, nil
}

func (l *Let) bind(ctx *query.Context) error {
	v, err := l.Bind.Value(ctx)
	if err != nil {
		return err
	}
	if v, err = l.Var.Check(v); err != nil {
		return err
	}
	ctx.Set(l.Var, v)
	return nil
}

// Iter implements the Expression interface.
func (l *Let) Iter(ctx *query.Context) (query.Iter, error) {
	if err := l.bind(ctx); err != nil {
		return nil, err
	}
	return l.Return.Iter(ctx)
}

// Value implements the Expression interface.
func (l *Let) Value(ctx *query.Context) (query.Value, error) {
	if err := l.bind(ctx); err != nil {
		return nil, err
	}
	return l.Return.Value(ctx)
}

// Item implements the Expression interface.
func (l *Let) Item(ctx *query.Context) (query.Item, error) {
	if err := l.bind(ctx); err != nil {
		return nil, err
	}
	return l.Return.Item(ctx)
}

// Copy implements the Expression interface.
func (l *Let) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	bind := l.Bind.Copy(ctx, scope, vars)
	v := scope.CopyVar(l.Var, vars)
	return NewLet(v, bind, l.Return.Copy(ctx, scope, vars), l.info)
}

// Accept implements the Expression interface.
func (l *Let) Accept(v query.ASTVisitor) bool {
	return l.Bind.Accept(v) && v.DeclVar(l.Var) && l.Return.Accept(v)
}

// Has implements the Expression interface.
func (l *Let) Has(f query.Flag) bool {
	return l.Bind.Has(f) || l.Return.Has(f)
}

func (l *Let) String() string {
	return fmt.Sprintf("let %s := %s return %s", l.Var, query.DebugString(l.Bind), query.DebugString(l.Return))
}

// For evaluates its return expression once for each item of a sequence.
type For struct {
	positioned
	Var *query.Var
	// Pos is the positional variable, nil if there is none.
	Pos    *query.Var
	In     query.Expression
	Return query.Expression
}

// NewFor creates a new For expression. The positional variable may be nil.
func NewFor(v, pos *query.Var, in, ret query.Expression, info query.InputInfo) *For {
	return &For{positioned{info}, v, pos, in, ret}
}

// Type implements the Expression interface.
func (f *For) Type() *query.Cardinality {
	return f.Return.Type().Multiply(f.In.Type())
}

// Children implements the Expression interface.
func (f *For) Children() []query.Expression {
	return []query.Expression{f.In, f.Return}
}

// WithChildren implements the Expression interface.
func (f *For) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 2); err != nil {
		return nil, err
	}
	return NewFor(f.Var, f.Pos, children[0], children[1], f.info), nil
}

// Compile implements the Expression interface.
func (f *For) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	in, err := f.In.Compile(ctx, scope)
	if err != nil {
		return nil, err
	}
	if t := in.Type(); !t.IsEmpty() {
		refine(f.Var, query.One(t.Type()))
	}
	if f.Pos != nil {
		f.Pos.Refine(query.One(query.IntegerType))
	}
	ret, err := f.Return.Compile(ctx, scope)
	if err != nil {
		return nil, err
	}
	n := f
	if in != f.In || ret != f.Return {
		n = NewFor(f.Var, f.Pos, in, ret, f.info)
	}
	return n.Optimize(ctx, scope)
}

// Optimize implements the Expression interface.
func (f *For) Optimize(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	if query.IsEmpty(f.In) || query.IsEmpty(f.Return) {
		return Simplify(ctx, f), nil
	}
	if f.Pos == nil && f.In.Type().One() {
		ctx.CompInfo("rewriting %s to let", f.Var)
		return NewLet(f.Var, f.In, f.Return, f.info).Optimize(ctx, scope)
	}
	return f, nil
}

// Iter implements the Expression interface. The return expression is
// evaluated lazily for each item.
func (f *For) Iter(ctx *query.Context) (query.Iter, error) {
	in, err := f.In.Iter(ctx)
	if err != nil {
		return nil, err
	}

	var (
		cur query.Iter
		pos int64
	)
	next := func() (query.Item, error) {
		for {
			if cur != nil {
				it, err := cur.Next()
				if err != nil || it != nil {
					return it, err
				}
				if err := cur.Close(); err != nil {
					return nil, err
				}
				cur = nil
			}

			if err := ctx.Canceled(); err != nil {
				return nil, err
			}
			it, err := in.Next()
			if err != nil || it == nil {
				return nil, err
			}
			pos++
			v, err := f.Var.Check(it)
			if err != nil {
				return nil, err
			}
			ctx.Set(f.Var, v)
			if f.Pos != nil {
				ctx.Set(f.Pos, query.Int(pos))
			}
			if cur, err = f.Return.Iter(ctx); err != nil {
				return nil, err
			}
		}
	}
	done := func() error {
		if cur != nil {
			cur.Close()
		}
		return in.Close()
	}
	return query.NewIter(next, done), nil
}

// Value implements the Expression interface.
func (f *For) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *For) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *For) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	in := f.In.Copy(ctx, scope, vars)
	v := scope.CopyVar(f.Var, vars)
	var pos *query.Var
	if f.Pos != nil {
		pos = scope.CopyVar(f.Pos, vars)
	}
	return NewFor(v, pos, in, f.Return.Copy(ctx, scope, vars), f.info)
}

// Accept implements the Expression interface.
func (f *For) Accept(v query.ASTVisitor) bool {
	if !f.In.Accept(v) || !v.DeclVar(f.Var) {
		return false
	}
	if f.Pos != nil && !v.DeclVar(f.Pos) {
		return false
	}
	return f.Return.Accept(v)
}

// Has implements the Expression interface.
func (f *For) Has(flag query.Flag) bool {
	return f.In.Has(flag) || f.Return.Has(flag)
}

func (f *For) String() string {
	pos := ""
	if f.Pos != nil {
		pos = " at " + f.Pos.String()
	}
	return fmt.Sprintf("for %s%s in %s return %s", f.Var, pos, query.DebugString(f.In), query.DebugString(f.Return))
}
