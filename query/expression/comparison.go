package expression

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// CmpOp is a comparison operator.
type CmpOp uint8

const (
	// Eq is the = operator.
	Eq CmpOp = iota
	// Ne is the != operator.
	Ne
	// Lt is the < operator.
	Lt
	// Le is the <= operator.
	Le
	// Gt is the > operator.
	Gt
	// Ge is the >= operator.
	Ge
)

var cmpNames = [...]string{Eq: "=", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">="}

func (o CmpOp) String() string { return cmpNames[o] }

// holds reports whether the operator accepts the comparison result cmp.
func (o CmpOp) holds(cmp int) bool {
	switch o {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	}
	return cmp >= 0
}

// Compare is a general comparison: it is true if any pair of items of both
// operands satisfies the operator.
type Compare struct {
	BinaryExpression
	positioned
	Op CmpOp
}

// NewCompare creates a new Compare expression.
func NewCompare(left, right query.Expression, op CmpOp, info query.InputInfo) *Compare {
	return &Compare{BinaryExpression{left, right}, positioned{info}, op}
}

// Type implements the Expression interface.
func (c *Compare) Type() *query.Cardinality { return query.One(query.BooleanType) }

// WithChildren implements the Expression interface.
func (c *Compare) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(c, children, 2); err != nil {
		return nil, err
	}
	return NewCompare(children[0], children[1], c.Op, c.info), nil
}

// Compile implements the Expression interface.
func (c *Compare) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, c)
}

// Optimize implements the Expression interface.
func (c *Compare) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if query.IsEmpty(c.Left) || query.IsEmpty(c.Right) {
		ctx.CompInfo("simplifying %s to false()", c)
		return NewLiteral(query.Bln(false), c.info), nil
	}
	if AllValues(c.Left, c.Right) {
		return PreEval(ctx, c)
	}
	return c, nil
}

// Item implements the Expression interface.
func (c *Compare) Item(ctx *query.Context) (query.Item, error) {
	iter, err := c.Left.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var right query.Value
	for {
		l, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if l == nil {
			return query.Bln(false), nil
		}
		if right == nil {
			if right, err = c.Right.Value(ctx); err != nil {
				return nil, err
			}
		}
		for i, n := int64(0), right.Size(); i < n; i++ {
			ok, err := CompareItems(c.info, l, right.ItemAt(i), c.Op)
			if err != nil {
				return nil, err
			}
			if ok {
				return query.Bln(true), nil
			}
		}
	}
}

// Iter implements the Expression interface.
func (c *Compare) Iter(ctx *query.Context) (query.Iter, error) {
	return ItemIter(c.Item(ctx))
}

// Value implements the Expression interface.
func (c *Compare) Value(ctx *query.Context) (query.Value, error) {
	return ItemValue(c.Item(ctx))
}

// Copy implements the Expression interface.
func (c *Compare) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewCompare(c.Left.Copy(ctx, scope, vars), c.Right.Copy(ctx, scope, vars), c.Op, c.info)
}

func (c *Compare) String() string {
	return fmt.Sprintf("(%s)", fmtOperands(c.Left, c.Op, c.Right))
}

// DebugString implements the query.DebugStringer interface.
func (c *Compare) DebugString() string {
	return fmt.Sprintf("(%s)", fmtOperands(query.DebugString(c.Left), c.Op, query.DebugString(c.Right)))
}

// CompareItems compares two items with the general comparison rules:
// untyped values are compared as numbers against numbers and as strings
// otherwise.
func CompareItems(info query.InputInfo, a, b query.Item, op CmpOp) (bool, error) {
	a, err := query.Atomize(info, a)
	if err != nil {
		return false, err
	}
	b, err = query.Atomize(info, b)
	if err != nil {
		return false, err
	}

	ta, tb := a.Type(), b.Type()
	switch {
	case ta.IsUntyped() && tb.IsNumber(), tb.IsUntyped() && ta.IsNumber():
		x, err := query.ToFloat64(info, a)
		if err != nil {
			return false, err
		}
		y, err := query.ToFloat64(info, b)
		if err != nil {
			return false, err
		}
		return compareFloats(x, y, op), nil
	case ta.IsNumber() && tb.IsNumber():
		if x, ok := a.(query.Int); ok {
			if y, ok := b.(query.Int); ok {
				return op.holds(compareInts(int64(x), int64(y))), nil
			}
		}
		if x, ok := query.ToDecimal(a); ok {
			if y, ok := query.ToDecimal(b); ok {
				return op.holds(x.Cmp(y)), nil
			}
		}
		x, _ := query.ToFloat64(info, a)
		y, _ := query.ToFloat64(info, b)
		return compareFloats(x, y, op), nil
	case stringLike(ta) && stringLike(tb):
		return op.holds(strings.Compare(a.String(), b.String())), nil
	case ta.Eq(query.BooleanType) && tb.Eq(query.BooleanType):
		return op.holds(compareBools(bool(a.(query.Bln)), bool(b.(query.Bln)))), nil
	case ta.Eq(query.QNameType) && tb.Eq(query.QNameType) && (op == Eq || op == Ne):
		x, y := a.(query.QName), b.(query.QName)
		same := x.URI == y.URI && x.Local == y.Local
		return same == (op == Eq), nil
	}
	return false, query.ErrCompare.New(info, ta, tb)
}

func stringLike(t query.Type) bool {
	return t.IsUntyped() || t.InstanceOf(query.StringType) || t.Eq(query.AnyURIType)
}

func compareFloats(x, y float64, op CmpOp) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return op == Ne
	}
	switch {
	case x < y:
		return op.holds(-1)
	case x > y:
		return op.holds(1)
	}
	return op.holds(0)
}

func compareInts(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func compareBools(x, y bool) int {
	switch {
	case x == y:
		return 0
	case y:
		return -1
	}
	return 1
}
