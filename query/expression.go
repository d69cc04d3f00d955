package query

import (
	"fmt"
	"reflect"
)

// Flag is a static property of an expression.
type Flag uint8

const (
	// FlagCtx marks expressions depending on the context item.
	FlagCtx Flag = iota
	// FlagFcs marks expressions depending on the context position or size.
	FlagFcs
	// FlagNdt marks nondeterministic expressions.
	FlagNdt
	// FlagUpd marks updating expressions.
	FlagUpd
)

func (f Flag) String() string {
	switch f {
	case FlagCtx:
		return "ctx"
	case FlagFcs:
		return "fcs"
	case FlagNdt:
		return "ndt"
	case FlagUpd:
		return "upd"
	}
	return fmt.Sprintf("flag(%d)", uint8(f))
}

// Expression is a node of a query. Nodes are immutable: Compile and Optimize
// return the receiver when nothing changed and a new node otherwise.
type Expression interface {
	fmt.Stringer
	// Type returns the statically inferred cardinality of the results.
	Type() *Cardinality
	// Children returns the sub-expressions of the node.
	Children() []Expression
	// WithChildren returns a copy of the node with new children.
	WithChildren(children ...Expression) (Expression, error)
	// Compile compiles the children, binds variables in scope and optimizes
	// the node. It runs once per node.
	Compile(ctx *Context, scope *VarScope) (Expression, error)
	// Optimize rewrites the node, assuming its children are optimized.
	Optimize(ctx *Context, scope *VarScope) (Expression, error)
	// Iter evaluates the node lazily.
	Iter(ctx *Context) (Iter, error)
	// Value evaluates the node to a materialized value.
	Value(ctx *Context) (Value, error)
	// Item evaluates the node to at most one item, nil if empty.
	Item(ctx *Context) (Item, error)
	// Copy returns a deep copy of the node, declaring copies of the variables
	// bound by it in scope and recording them in vars.
	Copy(ctx *Context, scope *VarScope, vars VarMap) Expression
	// Accept traverses the node with the visitor, returning false if the
	// traversal was stopped.
	Accept(v ASTVisitor) bool
	// Has reports whether the node or one of its children has the flag.
	Has(f Flag) bool
}

// Constant is an expression whose value is known statically.
type Constant interface {
	Expression
	Val() Value
}

// Positioned is an expression with a source position.
type Positioned interface {
	Info() InputInfo
}

// InfoOf returns the source position of e, if known.
func InfoOf(e Expression) InputInfo {
	if p, ok := e.(Positioned); ok {
		return p.Info()
	}
	return InputInfo{}
}

// IsValue reports whether e is a constant.
func IsValue(e Expression) bool {
	_, ok := e.(Constant)
	return ok
}

// IsEmpty reports whether e always yields the empty sequence and has no
// side effects.
func IsEmpty(e Expression) bool {
	return e.Type().IsEmpty() && !e.Has(FlagNdt) && !e.Has(FlagUpd)
}

// HasAny reports whether any of the expressions has the flag.
func HasAny(f Flag, exprs ...Expression) bool {
	for _, e := range exprs {
		if e.Has(f) {
			return true
		}
	}
	return false
}

// ItemOf evaluates e to at most one item, failing if it yields more.
func ItemOf(ctx *Context, e Expression, info InputInfo) (Item, error) {
	if c, ok := e.(Constant); ok {
		v := c.Val()
		switch v.Size() {
		case 0:
			return nil, nil
		case 1:
			return v.ItemAt(0), nil
		}
		return nil, ErrSeqFound.New(info, DebugString(e))
	}
	iter, err := e.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	first, err := iter.Next()
	if err != nil || first == nil {
		return nil, err
	}
	second, err := iter.Next()
	if err != nil {
		return nil, err
	}
	if second != nil {
		return nil, ErrSeqFound.New(info, DebugString(e))
	}
	return first, nil
}

// ItemOfOne is like ItemOf, failing if e yields the empty sequence.
func ItemOfOne(ctx *Context, e Expression, info InputInfo) (Item, error) {
	it, err := ItemOf(ctx, e, info)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ErrEmptyFound.New(info)
	}
	return it, nil
}

// ValueOf evaluates e by materializing its iterator.
func ValueOf(ctx *Context, e Expression) (Value, error) {
	iter, err := e.Iter(ctx)
	if err != nil {
		return nil, err
	}
	return Materialize(iter)
}

// IterOf evaluates e by iterating over its value.
func IterOf(ctx *Context, e Expression) (Iter, error) {
	v, err := e.Value(ctx)
	if err != nil {
		return nil, err
	}
	return ValueIter(v), nil
}

// FirstItem evaluates e to its first item, nil if empty.
func FirstItem(ctx *Context, e Expression) (Item, error) {
	iter, err := e.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	return iter.Next()
}

// EBV returns the effective boolean value of v.
func EBV(info InputInfo, v Value) (bool, error) {
	switch v.Size() {
	case 0:
		return false, nil
	case 1:
		return itemEBV(info, v.ItemAt(0))
	}
	if _, ok := v.ItemAt(0).(*Node); ok {
		return true, nil
	}
	return false, ErrEBV.New(info, v.Card())
}

// EBVOf computes the effective boolean value of e, pulling at most two items.
func EBVOf(ctx *Context, e Expression, info InputInfo) (bool, error) {
	iter, err := e.Iter(ctx)
	if err != nil {
		return false, err
	}
	defer iter.Close()
	first, err := iter.Next()
	if err != nil || first == nil {
		return false, err
	}
	if _, ok := first.(*Node); ok {
		return true, nil
	}
	second, err := iter.Next()
	if err != nil {
		return false, err
	}
	if second != nil {
		return false, ErrEBV.New(info, e.Type())
	}
	return itemEBV(info, first)
}

func itemEBV(info InputInfo, it Item) (bool, error) {
	switch it := it.(type) {
	case Bln:
		return bool(it), nil
	case Str:
		return it != "", nil
	case Untyped:
		return it != "", nil
	case URI:
		return it != "", nil
	case *Node:
		return true, nil
	case Int:
		return it != 0, nil
	case Dbl, Flt, Dec:
		b, err := BooleanType.cast(info, it)
		if err != nil {
			return false, err
		}
		return bool(b.(Bln)), nil
	}
	return false, ErrEBV.New(info, it.Type())
}

// DebugStringer is implemented by expressions with a debug representation
// differing from String.
type DebugStringer interface {
	DebugString() string
}

// DebugString returns the debug representation of e.
func DebugString(e Expression) string {
	if d, ok := e.(DebugStringer); ok {
		return d.DebugString()
	}
	return e.String()
}

// CompileAll compiles the expressions in order.
func CompileAll(ctx *Context, scope *VarScope, exprs []Expression) ([]Expression, bool, error) {
	var changed bool
	result := make([]Expression, len(exprs))
	for i, e := range exprs {
		c, err := e.Compile(ctx, scope)
		if err != nil {
			return nil, false, err
		}
		if c != e {
			changed = true
		}
		result[i] = c
	}
	return result, changed, nil
}

// CompileChildren compiles the children of e and rebuilds it if any of them
// changed.
func CompileChildren(ctx *Context, scope *VarScope, e Expression) (Expression, error) {
	children, changed, err := CompileAll(ctx, scope, e.Children())
	if err != nil {
		return nil, err
	}
	if !changed {
		return e, nil
	}
	return e.WithChildren(children...)
}

// CopyAll copies the expressions.
func CopyAll(ctx *Context, scope *VarScope, vars VarMap, exprs []Expression) []Expression {
	result := make([]Expression, len(exprs))
	for i, e := range exprs {
		result[i] = e.Copy(ctx, scope, vars)
	}
	return result
}

// SameAs reports whether both expressions are structurally equal.
func SameAs(a, b Expression) bool {
	if a == b {
		return true
	}
	if ca, ok := a.(Constant); ok {
		cb, ok := b.(Constant)
		return ok && SameValue(ca.Val(), cb.Val())
	}
	return reflect.DeepEqual(a, b)
}

// Inspect traverses the tree in pre-order, calling f for each node. If f
// returns false the children of the node are skipped. Inspect returns false
// if the traversal was stopped by f returning false for the root.
func Inspect(e Expression, f func(Expression) bool) bool {
	if e == nil || !f(e) {
		return false
	}
	for _, child := range e.Children() {
		Inspect(child, f)
	}
	return true
}

// Find reports whether f holds for any node of the tree, stopping at the
// first match.
func Find(e Expression, f func(Expression) bool) bool {
	if f(e) {
		return true
	}
	for _, child := range e.Children() {
		if Find(child, f) {
			return true
		}
	}
	return false
}

// Fold folds f over the tree in pre-order, stopping when f returns false.
func Fold[T any](e Expression, acc T, f func(T, Expression) (T, bool)) T {
	acc, _ = fold(e, acc, f)
	return acc
}

func fold[T any](e Expression, acc T, f func(T, Expression) (T, bool)) (T, bool) {
	acc, ok := f(acc, e)
	if !ok {
		return acc, false
	}
	for _, child := range e.Children() {
		if acc, ok = fold(child, acc, f); !ok {
			return acc, false
		}
	}
	return acc, true
}

// TreeIdentity tells whether a transformation changed a tree.
type TreeIdentity bool

const (
	// SameTree is returned when the tree is unchanged.
	SameTree TreeIdentity = true
	// NewTree is returned when the tree was rebuilt.
	NewTree TreeIdentity = false
)

// TransformFunc transforms a single node.
type TransformFunc func(Expression) (Expression, TreeIdentity, error)

// TransformUp applies f to all nodes bottom-up, rebuilding the parents of
// changed nodes.
func TransformUp(e Expression, f TransformFunc) (Expression, TreeIdentity, error) {
	children := e.Children()
	if len(children) == 0 {
		return f(e)
	}

	var newChildren []Expression
	for i, c := range children {
		nc, same, err := TransformUp(c, f)
		if err != nil {
			return nil, SameTree, err
		}
		if !same {
			if newChildren == nil {
				newChildren = make([]Expression, len(children))
				copy(newChildren, children)
			}
			newChildren[i] = nc
		}
	}

	sameC := SameTree
	if len(newChildren) > 0 {
		sameC = NewTree
		var err error
		if e, err = e.WithChildren(newChildren...); err != nil {
			return nil, SameTree, err
		}
	}

	e, sameN, err := f(e)
	if err != nil {
		return nil, SameTree, err
	}
	return e, sameC && sameN, nil
}
