package query

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// LockResult holds the resources a query reads and writes. ReadAll and
// WriteAll are set if the resources are not statically known.
type LockResult struct {
	Read     []string
	Write    []string
	ReadAll  bool
	WriteAll bool
}

// Compatible reports whether two queries with the given locks may run
// concurrently: the write set of each must be disjoint from the resources
// locked by the other.
func (r *LockResult) Compatible(o *LockResult) bool {
	return !overlaps(r.Write, r.WriteAll, o.Read, o.ReadAll) &&
		!overlaps(r.Write, r.WriteAll, o.Write, o.WriteAll) &&
		!overlaps(o.Write, o.WriteAll, r.Read, r.ReadAll)
}

func (r *LockResult) String() string {
	read, write := fmt.Sprint(r.Read), fmt.Sprint(r.Write)
	if r.ReadAll {
		read = "*"
	}
	if r.WriteAll {
		write = "*"
	}
	return fmt.Sprintf("read: %s, write: %s", read, write)
}

func overlaps(a []string, allA bool, b []string, allB bool) bool {
	switch {
	case allA && allB:
		return true
	case allA:
		return len(b) > 0
	case allB:
		return len(a) > 0
	}
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

// FuncBody is implemented by function items with a body expression.
type FuncBody interface {
	FuncBody() Expression
}

// LockVisitor collects the resources accessed by an expression tree. The
// focus level is the number of enclosing focus changes: references to the
// context resource are only locked at level 0, where no context item is bound.
type LockVisitor struct {
	BaseVisitor
	level int
	locks map[string]struct{}
	all   bool
	funcs map[*StaticFunc]struct{}
	vars  map[*StaticVar]struct{}
	items map[FItem]struct{}
}

var _ ASTVisitor = (*LockVisitor)(nil)

// NewLockVisitor creates a visitor. If a context item is bound, the initial
// focus level is 1.
func NewLockVisitor(contextBound bool) *LockVisitor {
	v := &LockVisitor{
		locks: map[string]struct{}{},
		funcs: map[*StaticFunc]struct{}{},
		vars:  map[*StaticVar]struct{}{},
		items: map[FItem]struct{}{},
	}
	if contextBound {
		v.level = 1
	}
	return v
}

// Lock implements the ASTVisitor interface. It stops the traversal if the
// resource is not statically known.
func (v *LockVisitor) Lock(resource string) bool {
	if resource == "" {
		v.all = true
		return false
	}
	if v.level == 0 || resource != ContextResource {
		v.locks[resource] = struct{}{}
	}
	return true
}

// EnterFocus implements the ASTVisitor interface.
func (v *LockVisitor) EnterFocus() { v.level++ }

// ExitFocus implements the ASTVisitor interface.
func (v *LockVisitor) ExitFocus() { v.level-- }

// StaticVar implements the ASTVisitor interface. Each variable is visited once.
func (v *LockVisitor) StaticVar(sv *StaticVar) bool {
	if _, ok := v.vars[sv]; ok {
		return true
	}
	v.vars[sv] = struct{}{}
	if sv.Body() == nil {
		return true
	}
	return AcceptFocus(v, sv.Body())
}

// StaticFuncCall implements the ASTVisitor interface. Each function is
// visited once.
func (v *LockVisitor) StaticFuncCall(f *StaticFunc) bool {
	if _, ok := v.funcs[f]; ok {
		return true
	}
	v.funcs[f] = struct{}{}
	if f.Body() == nil {
		return true
	}
	return AcceptFocus(v, f.Body())
}

// FuncItem implements the ASTVisitor interface. Each item is visited once.
func (v *LockVisitor) FuncItem(f FItem) bool {
	if decl, ok := DeclOf(f); ok {
		return v.StaticFuncCall(decl)
	}
	if _, ok := v.items[f]; ok {
		return true
	}
	v.items[f] = struct{}{}
	if fb, ok := f.(FuncBody); ok {
		return AcceptFocus(v, fb.FuncBody())
	}
	return true
}

// InlineFunc implements the ASTVisitor interface.
func (v *LockVisitor) InlineFunc(body Expression) bool {
	return AcceptFocus(v, body)
}

// Level returns the current focus level.
func (v *LockVisitor) Level() int { return v.level }

// Locks returns the locked resources, sorted.
func (v *LockVisitor) Locks() []string {
	locks := maps.Keys(v.locks)
	slices.Sort(locks)
	return locks
}

// All reports whether a resource that is not statically known was found.
func (v *LockVisitor) All() bool { return v.all }

// LockSets computes the resources read or written by the query.
func (m *MainModule) LockSets(ctx *Context) *LockResult {
	bound := ctx.Focus().Item != nil
	if m.ContextItem != nil && m.ContextItem.Body() != nil {
		bound = true
	}

	v := NewLockVisitor(bound)
	ok := true
	if m.ContextItem != nil && m.ContextItem.Body() != nil {
		ok = m.ContextItem.Body().Accept(v)
	}
	if ok {
		m.Main.Body().Accept(v)
	}

	r := &LockResult{}
	if m.Updating || m.Main.Body().Has(FlagUpd) {
		r.Write, r.WriteAll = v.Locks(), v.All()
	} else {
		r.Read, r.ReadAll = v.Locks(), v.All()
	}
	return r
}
