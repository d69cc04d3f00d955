package query

import (
	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
)

// StaticContext holds the static properties of a module.
type StaticContext struct {
	BaseURI string
	// Namespaces maps prefixes to namespace URIs.
	Namespaces map[string]string
}

// NewStaticContext creates a static context with the predeclared prefixes.
func NewStaticContext() *StaticContext {
	return &StaticContext{Namespaces: map[string]string{
		"fn":     "http://www.w3.org/2005/xpath-functions",
		"map":    "http://www.w3.org/2005/xpath-functions/map",
		"xs":     "http://www.w3.org/2001/XMLSchema",
		"db":     "http://basex.org/modules/db",
		"random": "http://basex.org/modules/random",
	}}
}

// Module is a set of function and variable declarations.
type Module struct {
	Static *StaticContext

	funcs     []*StaticFunc
	vars      []*StaticVar
	imports   []*LibraryModule
	compiling bool
}

func newModule() Module {
	return Module{Static: NewStaticContext()}
}

// DeclareFunc adds a function declaration.
func (m *Module) DeclareFunc(f *StaticFunc) error {
	if m.Func(f.Name, len(f.Params)) != nil {
		return ErrDuplicateDecl.New(f.Info, f.ID())
	}
	m.funcs = append(m.funcs, f)
	return nil
}

// DeclareVar adds a variable declaration.
func (m *Module) DeclareVar(v *StaticVar) error {
	if m.Var(v.Name) != nil {
		return ErrDuplicateDecl.New(v.Info, v.displayName())
	}
	m.vars = append(m.vars, v)
	return nil
}

// Import makes the declarations of a library module visible.
func (m *Module) Import(lib *LibraryModule) {
	for _, l := range m.imports {
		if l.Namespace == lib.Namespace {
			return
		}
	}
	m.imports = append(m.imports, lib)
}

// Imports returns the namespaces of the imported modules, sorted.
func (m *Module) Imports() []string {
	uris := make([]string, len(m.imports))
	for i, l := range m.imports {
		uris[i] = l.Namespace
	}
	slices.Sort(uris)
	return uris
}

// Func returns the function with the given name and arity declared in the
// module or one of its imports, nil if there is none.
func (m *Module) Func(name QName, arity int) *StaticFunc {
	for _, f := range m.funcs {
		if f.Name == name && len(f.Params) == arity {
			return f
		}
	}
	for _, l := range m.imports {
		if f := l.Func(name, arity); f != nil {
			return f
		}
	}
	return nil
}

// Var returns the variable with the given name declared in the module or
// one of its imports, nil if there is none.
func (m *Module) Var(name QName) *StaticVar {
	for _, v := range m.vars {
		if v.Name == name {
			return v
		}
	}
	for _, l := range m.imports {
		if v := l.Var(name); v != nil {
			return v
		}
	}
	return nil
}

// Funcs returns the functions declared in the module, in declaration order.
func (m *Module) Funcs() []*StaticFunc { return m.funcs }

// Vars returns the variables declared in the module, in declaration order.
func (m *Module) Vars() []*StaticVar { return m.vars }

// Decls returns the declarations of the module: variables first, then
// functions.
func (m *Module) Decls() []Decl {
	decls := make([]Decl, 0, len(m.vars)+len(m.funcs))
	for _, v := range m.vars {
		decls = append(decls, v)
	}
	for _, f := range m.funcs {
		decls = append(decls, f)
	}
	return decls
}

// Function implements the Resolver interface.
func (m *Module) Function(_ *Context, _ InputInfo, name QName, arity int) (FItem, error) {
	if f := m.Func(name, arity); f != nil {
		return f.Item(), nil
	}
	return nil, nil
}

func (m *Module) compile(ctx *Context, decls []Decl) error {
	if m.compiling {
		return nil
	}
	m.compiling = true
	defer func() { m.compiling = false }()

	var result *multierror.Error
	for _, d := range decls {
		if err := d.Compile(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, l := range m.imports {
		if err := l.Compile(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result != nil && len(result.Errors) == 1 {
		return result.Errors[0]
	}
	return result.ErrorOrNil()
}

// LibraryModule is a module with a namespace and no main expression.
type LibraryModule struct {
	Module
	Namespace string
	Prefix    string
}

// NewLibraryModule creates an empty library module.
func NewLibraryModule(namespace, prefix string) *LibraryModule {
	return &LibraryModule{Module: newModule(), Namespace: namespace, Prefix: prefix}
}

// Compile compiles all declarations. Failures of single declarations are
// collected so the others are still compiled.
func (l *LibraryModule) Compile(ctx *Context) error {
	return l.compile(ctx, l.Decls())
}

// MainModule is the module of a query, holding its main expression.
type MainModule struct {
	Module
	Main        *MainExpr
	ContextItem *ContextItemDecl
	// Updating reports whether the query modifies resources.
	Updating bool
}

// NewMainModule creates a main module with the given main expression.
func NewMainModule(main *MainExpr) *MainModule {
	return &MainModule{Module: newModule(), Main: main}
}

// Decls returns all declarations including the main expression.
func (m *MainModule) Decls() []Decl {
	var decls []Decl
	if m.ContextItem != nil {
		decls = append(decls, m.ContextItem)
	}
	decls = append(decls, m.Module.Decls()...)
	return append(decls, m.Main)
}

// Compile compiles all declarations and the main expression. Failures of
// single declarations are collected so the others are still compiled.
func (m *MainModule) Compile(ctx *Context) error {
	return m.compile(ctx, m.Decls())
}

// Type returns the cardinality of the query result.
func (m *MainModule) Type() *Cardinality { return m.Main.Type() }

// Iter evaluates the query lazily.
func (m *MainModule) Iter(ctx *Context) (Iter, error) {
	if err := m.bindContext(ctx); err != nil {
		return nil, err
	}
	return m.Main.Iter(ctx)
}

// Value evaluates the query.
func (m *MainModule) Value(ctx *Context) (Value, error) {
	if err := m.bindContext(ctx); err != nil {
		return nil, err
	}
	return m.Main.Value(ctx)
}

func (m *MainModule) bindContext(ctx *Context) error {
	if err := m.Compile(ctx); err != nil {
		return err
	}
	if m.ContextItem == nil {
		return nil
	}
	return m.ContextItem.Bind(ctx)
}

func (m *MainModule) String() string {
	return m.Main.String()
}

// Plan returns the plan of the module and its declarations.
func (m *MainModule) Plan() *PlanNode {
	p := NewPlan("QueryPlan", "type", m.Type().String())
	for _, d := range m.Decls() {
		p.Children = append(p.Children, d.Plan())
	}
	return p
}
