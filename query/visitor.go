package query

// ASTVisitor is notified of the static dependencies of an expression tree.
// Every method returns false to stop the traversal.
type ASTVisitor interface {
	// DeclVar is called when a variable is declared.
	DeclVar(v *Var) bool
	// VarRef is called for each reference to a local variable.
	VarRef(v *Var) bool
	// StaticVar is called for each reference to a global variable.
	StaticVar(v *StaticVar) bool
	// StaticFuncCall is called for each call of a declared function.
	StaticFuncCall(f *StaticFunc) bool
	// FuncItem is called for each function item literal.
	FuncItem(f FItem) bool
	// InlineFunc is called with the body of each inline function.
	InlineFunc(body Expression) bool
	// Lock is called for each resource accessed by the query. An empty name
	// means the resource is not statically known.
	Lock(resource string) bool
	// EnterFocus is called before visiting an expression evaluated with a
	// new focus.
	EnterFocus()
	// ExitFocus is called after visiting an expression evaluated with a new
	// focus.
	ExitFocus()
}

// BaseVisitor implements ASTVisitor, continuing on every node without
// entering declarations or function bodies.
type BaseVisitor struct{}

var _ ASTVisitor = BaseVisitor{}

func (BaseVisitor) DeclVar(*Var) bool               { return true }
func (BaseVisitor) VarRef(*Var) bool                { return true }
func (BaseVisitor) StaticVar(*StaticVar) bool       { return true }
func (BaseVisitor) StaticFuncCall(*StaticFunc) bool { return true }
func (BaseVisitor) FuncItem(FItem) bool             { return true }
func (BaseVisitor) InlineFunc(Expression) bool      { return true }
func (BaseVisitor) Lock(string) bool                { return true }
func (BaseVisitor) EnterFocus()                     {}
func (BaseVisitor) ExitFocus()                      {}

// AcceptAll visits the expressions in order, stopping at the first one
// returning false.
func AcceptAll(v ASTVisitor, exprs ...Expression) bool {
	for _, e := range exprs {
		if !e.Accept(v) {
			return false
		}
	}
	return true
}

// AcceptFocus visits the expressions with a new focus.
func AcceptFocus(v ASTVisitor, exprs ...Expression) bool {
	v.EnterFocus()
	defer v.ExitFocus()
	return AcceptAll(v, exprs...)
}
