package query

import (
	"fmt"
	"sync/atomic"
)

var varIDs int64

// Var is a variable declared in a VarScope. Its value lives in a slot of
// the stack frame of the scope.
type Var struct {
	Name QName
	// Declared is the declared type of the variable, nil if none.
	Declared *SeqType
	Info     InputInfo
	// Param reports whether the variable is a function parameter.
	Param bool

	id   int64
	slot int
	card *Cardinality
}

// ID returns the unique id of the variable.
func (v *Var) ID() int64 { return v.id }

// Slot returns the position of the variable in its frame.
func (v *Var) Slot() int { return v.slot }

// Card returns the statically known cardinality of the bound values.
func (v *Var) Card() *Cardinality {
	if v.card != nil {
		return v.card
	}
	if v.Declared != nil {
		return CardOfType(v.Declared)
	}
	return AnyCard
}

// Refine narrows the statically known cardinality of the variable.
func (v *Var) Refine(c *Cardinality) {
	if v.Declared != nil {
		if r := c.Intersect(CardOfType(v.Declared)); r != nil {
			c = r
		}
	}
	v.card = c
}

// Check checks a value bound to the variable against its declared type,
// applying the function conversion rules to parameters.
func (v *Var) Check(val Value) (Value, error) {
	if v.Declared == nil {
		return val, nil
	}
	if v.Param {
		return v.Declared.Promote(v.Info, val)
	}
	if !v.Declared.Instance(val) {
		return nil, ErrInvalidCast.New(v.Info, val.Card(), v.Declared)
	}
	return val, nil
}

func (v *Var) String() string {
	return fmt.Sprintf("$%s_%d", v.Name, v.id)
}

// VarMap maps the variables of an expression to their copies.
type VarMap map[*Var]*Var

// VarScope allocates the stack slots of the variables declared in the body
// of a declaration or inline function.
type VarScope struct {
	vars []*Var
}

// NewVarScope creates an empty scope.
func NewVarScope() *VarScope { return &VarScope{} }

// NewVar declares a new variable in the scope.
func (s *VarScope) NewVar(name QName, declared *SeqType, info InputInfo) *Var {
	v := &Var{
		Name:     name,
		Declared: declared,
		Info:     info,
		id:       atomic.AddInt64(&varIDs, 1),
		slot:     len(s.vars),
	}
	s.vars = append(s.vars, v)
	return v
}

// NewParam declares a new function parameter in the scope.
func (s *VarScope) NewParam(name QName, declared *SeqType, info InputInfo) *Var {
	v := s.NewVar(name, declared, info)
	v.Param = true
	return v
}

// CopyVar declares a fresh copy of v in the scope and records it in vars.
func (s *VarScope) CopyVar(v *Var, vars VarMap) *Var {
	c := s.NewVar(v.Name, v.Declared, v.Info)
	c.Param = v.Param
	c.card = v.card
	if vars != nil {
		vars[v] = c
	}
	return c
}

// Size returns the number of slots of the frame of the scope.
func (s *VarScope) Size() int { return len(s.vars) }

// Vars returns the declared variables.
func (s *VarScope) Vars() []*Var { return s.vars }

// Enter pushes the stack frame of the scope. The returned frame must be
// passed to Exit on every path.
func (s *VarScope) Enter(ctx *Context) StackFrame {
	return ctx.state.stack.enter(s.Size())
}

// Exit pops the stack back to the state before the matching Enter.
func (s *VarScope) Exit(ctx *Context, f StackFrame) {
	ctx.state.stack.exit(f)
}

// StackFrame is the marker returned by VarScope.Enter.
type StackFrame struct {
	base     int
	prevBase int
}

type stack struct {
	vals []Value
	base int
}

func (s *stack) enter(size int) StackFrame {
	f := StackFrame{base: len(s.vals), prevBase: s.base}
	for i := 0; i < size; i++ {
		s.vals = append(s.vals, nil)
	}
	s.base = f.base
	return f
}

func (s *stack) exit(f StackFrame) {
	for i := f.base; i < len(s.vals); i++ {
		s.vals[i] = nil
	}
	s.vals = s.vals[:f.base]
	s.base = f.prevBase
}

func (s *stack) get(v *Var) Value {
	if i := s.base + v.slot; i < len(s.vals) {
		return s.vals[i]
	}
	return nil
}

func (s *stack) set(v *Var, val Value) {
	s.vals[s.base+v.slot] = val
}
