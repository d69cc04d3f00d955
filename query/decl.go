package query

import (
	"fmt"
	"strings"
)

// DeclState is the compilation state of a declaration.
type DeclState uint8

const (
	// NotCompiled declarations have not been compiled yet.
	NotCompiled DeclState = iota
	// Compiling declarations are being compiled. Reaching one again means
	// the declaration depends on itself.
	Compiling
	// Compiled declarations are ready for evaluation.
	Compiled
)

func (s DeclState) String() string {
	switch s {
	case NotCompiled:
		return "not compiled"
	case Compiling:
		return "compiling"
	}
	return "compiled"
}

// Compiler compiles the body of a declaration.
type Compiler interface {
	CompileBody(ctx *Context, scope *VarScope, body Expression, name string) (Expression, error)
}

// CompileBody compiles the body of a declaration or inline function with the
// compiler of the context, if any.
func CompileBody(ctx *Context, scope *VarScope, body Expression, name string) (Expression, error) {
	if ctx.Compiler != nil {
		return ctx.Compiler.CompileBody(ctx, scope, body, name)
	}
	return body.Compile(ctx, scope)
}

// Decl is a static declaration of a module.
type Decl interface {
	// Compile compiles the declaration once.
	Compile(ctx *Context) error
	// State returns the compilation state.
	State() DeclState
	// Type returns the cardinality of the declaration's value.
	Type() *Cardinality
	// Body returns the expression of the declaration.
	Body() Expression
	String() string
	Plan() *PlanNode
}

// StaticVar is a global variable declaration.
type StaticVar struct {
	Name     QName
	Declared *SeqType
	Info     InputInfo
	Doc      string
	// External variables without a body must be bound before evaluation.
	External bool

	scope *VarScope
	body  Expression
	state DeclState
}

var _ Decl = (*StaticVar)(nil)

// NewStaticVar creates a variable declaration. body may be nil for external
// variables.
func NewStaticVar(name QName, declared *SeqType, body Expression, info InputInfo) *StaticVar {
	return &StaticVar{
		Name:     name,
		Declared: declared,
		Info:     info,
		External: body == nil,
		scope:    NewVarScope(),
		body:     body,
	}
}

// Scope returns the scope of the variable's body.
func (v *StaticVar) Scope() *VarScope { return v.scope }

// Body implements the Decl interface.
func (v *StaticVar) Body() Expression { return v.body }

// SetBody replaces the body of an uncompiled declaration.
func (v *StaticVar) SetBody(e Expression) {
	v.body = e
	v.External = e == nil
	v.state = NotCompiled
}

// State implements the Decl interface.
func (v *StaticVar) State() DeclState { return v.state }

// Compile implements the Decl interface.
func (v *StaticVar) Compile(ctx *Context) error {
	switch v.state {
	case Compiled:
		return nil
	case Compiling:
		return ErrCircularDeclaration.New(v.Info, v.displayName())
	}
	if v.body == nil {
		v.state = Compiled
		return nil
	}

	v.state = Compiling
	body, err := CompileBody(ctx, v.scope, v.body, v.displayName())
	if err != nil {
		v.state = NotCompiled
		return err
	}
	if v.Declared != nil && !v.Declared.CouldBe(body.Type()) {
		v.state = NotCompiled
		return ErrInvalidCast.New(v.Info, body.Type(), v.Declared)
	}
	v.body = body
	v.state = Compiled
	return nil
}

// Type implements the Decl interface.
func (v *StaticVar) Type() *Cardinality {
	var declared *Cardinality
	if v.Declared != nil {
		declared = CardOfType(v.Declared)
	}
	if v.body == nil || v.state == Compiling {
		if declared != nil {
			return declared
		}
		return AnyCard
	}
	t := v.body.Type()
	if declared != nil {
		if i := t.Intersect(declared); i != nil {
			return i
		}
		return declared
	}
	return t
}

// Bind sets the value of an external variable for the given context.
func (v *StaticVar) Bind(ctx *Context, val Value) error {
	val, err := v.check(val)
	if err != nil {
		return err
	}
	ctx.state.statics[v] = val
	return nil
}

// Value evaluates the variable once per context.
func (v *StaticVar) Value(ctx *Context) (Value, error) {
	if val, ok := ctx.state.statics[v]; ok {
		if val == nil {
			return nil, ErrCircularDeclaration.New(v.Info, v.displayName())
		}
		return val, nil
	}
	if v.body == nil {
		return nil, ErrVarUndefined.New(v.Info, v.displayName())
	}
	if err := v.Compile(ctx); err != nil {
		return nil, err
	}

	ctx.state.statics[v] = nil
	val, err := v.eval(ctx)
	if err != nil {
		delete(ctx.state.statics, v)
		return nil, err
	}
	ctx.state.statics[v] = val
	return val, nil
}

// eval evaluates the body in its own frame, without a focus.
func (v *StaticVar) eval(ctx *Context) (Value, error) {
	frame := v.scope.Enter(ctx)
	defer v.scope.Exit(ctx, frame)
	prev := ctx.SetFocus(Focus{})
	defer ctx.SetFocus(prev)

	val, err := v.body.Value(ctx)
	if err != nil {
		return nil, err
	}
	return v.check(val)
}

func (v *StaticVar) check(val Value) (Value, error) {
	if v.Declared == nil {
		return val, nil
	}
	return v.Declared.Promote(v.Info, val)
}

func (v *StaticVar) displayName() string { return "$" + v.Name.String() }

func (v *StaticVar) String() string {
	var sb strings.Builder
	sb.WriteString("declare variable ")
	sb.WriteString(v.displayName())
	if v.Declared != nil {
		sb.WriteString(" as ")
		sb.WriteString(v.Declared.String())
	}
	if v.body == nil {
		sb.WriteString(" external")
	} else {
		sb.WriteString(" := ")
		sb.WriteString(DebugString(v.body))
	}
	return sb.String()
}

// Plan implements the Decl interface.
func (v *StaticVar) Plan() *PlanNode {
	p := NewPlan("StaticVar", "name", v.displayName(), "type", v.Type().String())
	if v.body != nil {
		p.Children = append(p.Children, PlanOf(v.body))
	}
	return p
}

// StaticFunc is a declared function. Item returns it as a function item.
type StaticFunc struct {
	Name     QName
	Params   []*Var
	Declared *SeqType
	Info     InputInfo
	Doc      string
	Updating bool

	scope    *VarScope
	body     Expression
	state    DeclState
	visiting bool
	item     *funcDeclItem
}

var _ Decl = (*StaticFunc)(nil)

// NewStaticFunc creates a function declaration without parameters. The
// declared return type may be nil.
func NewStaticFunc(name QName, declared *SeqType, info InputInfo) *StaticFunc {
	return &StaticFunc{Name: name, Declared: declared, Info: info, scope: NewVarScope()}
}

// AddParam declares a parameter. The type may be nil.
func (f *StaticFunc) AddParam(name string, t *SeqType) *Var {
	v := f.scope.NewParam(QName{Local: name}, t, f.Info)
	f.Params = append(f.Params, v)
	return v
}

// SetBody sets the body of the function.
func (f *StaticFunc) SetBody(e Expression) {
	f.body = e
	f.state = NotCompiled
}

// Scope returns the scope of the function body.
func (f *StaticFunc) Scope() *VarScope { return f.scope }

// Body implements the Decl interface.
func (f *StaticFunc) Body() Expression { return f.body }

// State implements the Decl interface.
func (f *StaticFunc) State() DeclState { return f.state }

// Compile implements the Decl interface. A function reached again while it
// is being compiled is recursive and keeps its declared type.
func (f *StaticFunc) Compile(ctx *Context) error {
	if f.state != NotCompiled {
		return nil
	}
	if f.body == nil {
		return ErrFuncUnknown.New(f.Info, f.Name, len(f.Params))
	}

	f.state = Compiling
	body, err := CompileBody(ctx, f.scope, f.body, f.displayName())
	if err != nil {
		f.state = NotCompiled
		return err
	}
	if f.Declared != nil && !f.Declared.CouldBe(body.Type()) {
		f.state = NotCompiled
		return ErrInvalidCast.New(f.Info, body.Type(), f.Declared)
	}
	f.body = body
	f.state = Compiled
	return nil
}

// Type implements the Decl interface, returning the cardinality of the
// results of a call.
func (f *StaticFunc) Type() *Cardinality {
	var declared *Cardinality
	if f.Declared != nil {
		declared = CardOfType(f.Declared)
	}
	if f.state != Compiled {
		if declared != nil {
			return declared
		}
		return AnyCard
	}
	t := f.body.Type()
	if declared != nil {
		if i := t.Intersect(declared); i != nil {
			return i
		}
		return declared
	}
	return t
}

// Has reports whether calls of the function have the flag. Function bodies
// have no focus, so only FlagNdt and FlagUpd are propagated.
func (f *StaticFunc) Has(flag Flag) bool {
	switch flag {
	case FlagUpd:
		if f.Updating {
			return true
		}
	case FlagNdt:
	default:
		return false
	}
	if f.visiting || f.body == nil {
		return false
	}
	f.visiting = true
	defer func() { f.visiting = false }()
	return f.body.Has(flag)
}

// Arity returns the number of parameters.
func (f *StaticFunc) Arity() int { return len(f.Params) }

// FuncType returns the signature of the function.
func (f *StaticFunc) FuncType() *FuncType {
	args := make([]*SeqType, len(f.Params))
	for i, p := range f.Params {
		args[i] = ItemZeroMore
		if p.Declared != nil {
			args[i] = p.Declared
		}
	}
	ret := f.Declared
	if ret == nil {
		ret = ItemZeroMore
	}
	return NewFuncType(ret, args...)
}

// Item returns the function as a function item.
func (f *StaticFunc) Item() FItem {
	if f.item == nil {
		f.item = &funcDeclItem{f}
	}
	return f.item
}

// Invoke calls the function. The body is evaluated in a new stack frame
// without focus and its result is materialized before the frame is released.
func (f *StaticFunc) Invoke(ctx *Context, info InputInfo, args ...Value) (Value, error) {
	if err := f.Compile(ctx); err != nil {
		return nil, err
	}
	if len(args) != len(f.Params) {
		return nil, ErrArity.New(info, f.displayName(), len(f.Params), len(args))
	}

	frame := f.scope.Enter(ctx)
	defer f.scope.Exit(ctx, frame)
	prev := ctx.SetFocus(Focus{})
	defer ctx.SetFocus(prev)

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
		return f.Declared.Promote(f.Info, res)
	}
	return res, nil
}

type funcDeclItem struct{ fn *StaticFunc }

func (i *funcDeclItem) Arity() int              { return i.fn.Arity() }
func (i *funcDeclItem) FuncName() (QName, bool) { return i.fn.Name, true }
func (i *funcDeclItem) FuncType() *FuncType     { return i.fn.FuncType() }
func (i *funcDeclItem) Type() Type              { return i.fn.FuncType() }
func (i *funcDeclItem) Size() int64             { return 1 }
func (i *funcDeclItem) ItemAt(int64) Item       { return i }
func (i *funcDeclItem) Card() *Cardinality      { return One(i.fn.FuncType()) }
func (i *funcDeclItem) String() string          { return i.fn.ID() }

func (i *funcDeclItem) Invoke(ctx *Context, info InputInfo, args ...Value) (Value, error) {
	return i.fn.Invoke(ctx, info, args...)
}

// DeclOf returns the declaration of a function item created by StaticFunc.Item.
func DeclOf(f FItem) (*StaticFunc, bool) {
	if i, ok := f.(*funcDeclItem); ok {
		return i.fn, true
	}
	return nil, false
}

// ID returns the name and arity identifying the function in its module.
func (f *StaticFunc) ID() string { return FuncKey(f.Name, len(f.Params)) }

// FuncKey returns the key of a function with the given name and arity.
func FuncKey(name QName, arity int) string {
	return fmt.Sprintf("%s#%d", name, arity)
}

func (f *StaticFunc) displayName() string { return f.ID() }

func (f *StaticFunc) String() string {
	var sb strings.Builder
	sb.WriteString("declare ")
	if f.Updating {
		sb.WriteString("updating ")
	}
	sb.WriteString("function ")
	sb.WriteString(f.Name.String())
	sb.WriteString("(")
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("$" + p.Name.String())
		if p.Declared != nil {
			sb.WriteString(" as " + p.Declared.String())
		}
	}
	sb.WriteString(")")
	if f.Declared != nil {
		sb.WriteString(" as " + f.Declared.String())
	}
	if f.body != nil {
		sb.WriteString(" { " + DebugString(f.body) + " }")
	}
	return sb.String()
}

// Plan implements the Decl interface.
func (f *StaticFunc) Plan() *PlanNode {
	p := NewPlan("StaticFunc", "name", f.ID(), "type", f.Type().String())
	if f.body != nil {
		p.Children = append(p.Children, PlanOf(f.body))
	}
	return p
}

// MainExpr is the main expression of a main module.
type MainExpr struct {
	Info InputInfo

	scope *VarScope
	body  Expression
	state DeclState
}

var _ Decl = (*MainExpr)(nil)

// NewMainExpr creates the main expression of a query.
func NewMainExpr(scope *VarScope, body Expression, info InputInfo) *MainExpr {
	if scope == nil {
		scope = NewVarScope()
	}
	return &MainExpr{Info: info, scope: scope, body: body}
}

// Scope returns the scope of the main expression.
func (m *MainExpr) Scope() *VarScope { return m.scope }

// Body implements the Decl interface.
func (m *MainExpr) Body() Expression { return m.body }

// State implements the Decl interface.
func (m *MainExpr) State() DeclState { return m.state }

// Compile implements the Decl interface.
func (m *MainExpr) Compile(ctx *Context) error {
	switch m.state {
	case Compiled:
		return nil
	case Compiling:
		return ErrCircularDeclaration.New(m.Info, "main expression")
	}
	m.state = Compiling
	body, err := CompileBody(ctx, m.scope, m.body, "main")
	if err != nil {
		m.state = NotCompiled
		return err
	}
	m.body = body
	m.state = Compiled
	return nil
}

// Type implements the Decl interface.
func (m *MainExpr) Type() *Cardinality { return m.body.Type() }

// Iter evaluates the main expression lazily. The stack frame of the main
// expression is released when the results are exhausted or the iterator is
// closed.
func (m *MainExpr) Iter(ctx *Context) (Iter, error) {
	frame := m.scope.Enter(ctx)
	iter, err := m.body.Iter(ctx)
	if err != nil {
		m.scope.Exit(ctx, frame)
		return nil, err
	}
	return &frameIter{Iter: iter, release: func() { m.scope.Exit(ctx, frame) }}, nil
}

// Value evaluates the main expression.
func (m *MainExpr) Value(ctx *Context) (Value, error) {
	frame := m.scope.Enter(ctx)
	defer m.scope.Exit(ctx, frame)
	return m.body.Value(ctx)
}

func (m *MainExpr) String() string { return DebugString(m.body) }

// Plan implements the Decl interface.
func (m *MainExpr) Plan() *PlanNode {
	p := NewPlan("MainExpr", "type", m.Type().String())
	p.Children = append(p.Children, PlanOf(m.body))
	return p
}

// frameIter releases a stack frame once its iterator is exhausted, failed
// or closed.
type frameIter struct {
	Iter
	release func()
}

func (i *frameIter) Next() (Item, error) {
	if i.release == nil {
		return nil, nil
	}
	it, err := i.Iter.Next()
	if err != nil || it == nil {
		i.done()
	}
	return it, err
}

func (i *frameIter) Reset() bool { return false }

func (i *frameIter) Close() error {
	i.done()
	return i.Iter.Close()
}

func (i *frameIter) done() {
	if i.release != nil {
		i.release()
		i.release = nil
	}
}

// ContextItemDecl declares the type and default value of the context item.
type ContextItemDecl struct {
	Declared *SeqType
	Info     InputInfo

	scope *VarScope
	body  Expression
	state DeclState
}

var _ Decl = (*ContextItemDecl)(nil)

// NewContextItemDecl creates a context item declaration. body may be nil if
// the context item is external.
func NewContextItemDecl(declared *SeqType, body Expression, info InputInfo) *ContextItemDecl {
	return &ContextItemDecl{Declared: declared, Info: info, scope: NewVarScope(), body: body}
}

// Body implements the Decl interface.
func (d *ContextItemDecl) Body() Expression { return d.body }

// State implements the Decl interface.
func (d *ContextItemDecl) State() DeclState { return d.state }

// Compile implements the Decl interface.
func (d *ContextItemDecl) Compile(ctx *Context) error {
	if d.state != NotCompiled || d.body == nil {
		d.state = Compiled
		return nil
	}
	d.state = Compiling
	body, err := CompileBody(ctx, d.scope, d.body, "context item")
	if err != nil {
		d.state = NotCompiled
		return err
	}
	if d.Declared != nil && !d.Declared.CouldBe(body.Type()) {
		d.state = NotCompiled
		return ErrInvalidCast.New(d.Info, body.Type(), d.Declared)
	}
	d.body = body
	d.state = Compiled
	return nil
}

// Type implements the Decl interface.
func (d *ContextItemDecl) Type() *Cardinality {
	if d.body != nil && d.state == Compiled {
		return d.body.Type()
	}
	if d.Declared != nil {
		return CardOfType(d.Declared)
	}
	return CardOfType(ItemOne)
}

// Bind evaluates the default value of the context item, unless one is
// already bound, and checks it against the declared type.
func (d *ContextItemDecl) Bind(ctx *Context) error {
	it := ctx.Focus().Item
	if it == nil && d.body != nil {
		v, err := d.eval(ctx)
		if err != nil {
			return err
		}
		it = v
	}
	if it == nil {
		return nil
	}
	if d.Declared != nil && !d.Declared.Instance(it) {
		return ErrInvalidCast.New(d.Info, it.Type(), d.Declared)
	}
	ctx.SetFocus(Focus{Item: it, Pos: 1, Size: 1})
	return nil
}

func (d *ContextItemDecl) eval(ctx *Context) (Item, error) {
	frame := d.scope.Enter(ctx)
	defer d.scope.Exit(ctx, frame)
	return ItemOf(ctx, d.body, d.Info)
}

func (d *ContextItemDecl) String() string {
	var sb strings.Builder
	sb.WriteString("declare context item")
	if d.Declared != nil {
		sb.WriteString(" as " + d.Declared.String())
	}
	if d.body == nil {
		sb.WriteString(" external")
	} else {
		sb.WriteString(" := " + DebugString(d.body))
	}
	return sb.String()
}

// Plan implements the Decl interface.
func (d *ContextItemDecl) Plan() *PlanNode {
	p := NewPlan("ContextItem", "type", d.Type().String())
	if d.body != nil {
		p.Children = append(p.Children, PlanOf(d.body))
	}
	return p
}
