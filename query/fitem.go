package query

import "fmt"

// FItem is a function item.
type FItem interface {
	Item
	// Arity returns the number of arguments.
	Arity() int
	// FuncName returns the name of the function, false for anonymous ones.
	FuncName() (QName, bool)
	// FuncType returns the signature.
	FuncType() *FuncType
	// Invoke calls the function. The number of arguments must match its arity.
	Invoke(ctx *Context, info InputInfo, args ...Value) (Value, error)
}

// Invoke calls f after checking the number of arguments.
func Invoke(ctx *Context, info InputInfo, f FItem, args ...Value) (Value, error) {
	if f.Arity() != len(args) {
		return nil, ErrArity.New(info, f, f.Arity(), len(args))
	}
	return f.Invoke(ctx, info, args...)
}

// Coerce returns f adapted to the signature ft: arguments and results are
// converted with the function conversion rules when it is invoked.
func Coerce(info InputInfo, f FItem, ft *FuncType) (FItem, error) {
	if ft.Args == nil || f.FuncType().InstanceOf(ft) {
		return f, nil
	}
	if f.Arity() != len(ft.Args) {
		return nil, ErrInvalidCast.New(info, f.FuncType(), ft)
	}
	return &coercedFunc{fn: f, typ: ft, info: info}, nil
}

type coercedFunc struct {
	fn   FItem
	typ  *FuncType
	info InputInfo
}

func (c *coercedFunc) Arity() int              { return len(c.typ.Args) }
func (c *coercedFunc) FuncName() (QName, bool) { return c.fn.FuncName() }
func (c *coercedFunc) FuncType() *FuncType     { return c.typ }
func (c *coercedFunc) Type() Type              { return c.typ }
func (c *coercedFunc) Size() int64             { return 1 }
func (c *coercedFunc) ItemAt(int64) Item       { return c }
func (c *coercedFunc) Card() *Cardinality      { return One(c.typ) }

func (c *coercedFunc) String() string {
	return fmt.Sprintf("coerce(%s, %s)", c.fn, c.typ)
}

func (c *coercedFunc) Invoke(ctx *Context, info InputInfo, args ...Value) (Value, error) {
	conv := make([]Value, len(args))
	for i, a := range args {
		v, err := c.typ.Args[i].Promote(c.info, a)
		if err != nil {
			return nil, err
		}
		conv[i] = v
	}
	res, err := c.fn.Invoke(ctx, info, conv...)
	if err != nil {
		return nil, err
	}
	if c.typ.Ret == nil {
		return res, nil
	}
	return c.typ.Ret.Promote(c.info, res)
}
