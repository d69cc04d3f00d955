package expression

import (
	"math"

	"github.com/shopspring/decimal"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Calc is an arithmetic operator.
type Calc uint8

const (
	// Plus is the + operator.
	Plus Calc = iota
	// Minus is the - operator.
	Minus
	// Mult is the * operator.
	Mult
	// Div is the div operator.
	Div
	// IDiv is the integer division operator.
	IDiv
	// Mod is the modulo operator.
	Mod
)

var calcNames = [...]string{
	Plus:  "+",
	Minus: "-",
	Mult:  "*",
	Div:   "div",
	IDiv:  "idiv",
	Mod:   "mod",
}

func (c Calc) String() string { return calcNames[c] }

// numKind is the numeric type an operation is performed in, ordered by
// promotion.
type numKind uint8

const (
	kindNone numKind = iota
	kindInteger
	kindDecimal
	kindFloat
	kindDouble
)

func (k numKind) Type() query.Type {
	switch k {
	case kindInteger:
		return query.IntegerType
	case kindDecimal:
		return query.DecimalType
	case kindFloat:
		return query.FloatType
	case kindDouble:
		return query.DoubleType
	}
	return query.NumericType
}

func kindOfType(t query.Type) numKind {
	switch {
	case t.IsUntyped():
		return kindDouble
	case t.InstanceOf(query.IntegerType):
		return kindInteger
	case t.InstanceOf(query.DecimalType):
		return kindDecimal
	case t.Eq(query.FloatType):
		return kindFloat
	case t.Eq(query.DoubleType):
		return kindDouble
	}
	return kindNone
}

func kindOfItem(it query.Item) numKind {
	switch it.(type) {
	case query.Int:
		return kindInteger
	case query.Dec:
		return kindDecimal
	case query.Flt:
		return kindFloat
	case query.Dbl:
		return kindDouble
	}
	return kindNone
}

// kind returns the kind of the result of the operator applied to operands
// of kinds a and b.
func (c Calc) kind(a, b numKind) numKind {
	if a == kindNone || b == kindNone {
		if c == IDiv {
			return kindInteger
		}
		return kindNone
	}
	k := a
	if b > k {
		k = b
	}
	switch {
	case c == IDiv:
		return kindInteger
	case c == Div && k == kindInteger:
		return kindDecimal
	}
	return k
}

// Eval applies the operator to two atomic items.
func (c Calc) Eval(info query.InputInfo, a, b query.Item) (query.Item, error) {
	a, err := c.operand(info, a)
	if err != nil {
		return nil, err
	}
	b, err = c.operand(info, b)
	if err != nil {
		return nil, err
	}

	k := kindOfItem(a)
	if kb := kindOfItem(b); kb > k {
		k = kb
	}
	return c.eval(info, k, a, b)
}

func (c Calc) operand(info query.InputInfo, it query.Item) (query.Item, error) {
	it, err := query.Atomize(info, it)
	if err != nil {
		return nil, err
	}
	if it.Type().IsUntyped() {
		f, err := query.ToFloat64(info, it)
		if err != nil {
			return nil, err
		}
		return query.Dbl(f), nil
	}
	if !it.Type().IsNumber() {
		return nil, query.ErrNumberExpected.New(info, c, it.Type())
	}
	return it, nil
}

func (c Calc) eval(info query.InputInfo, k numKind, a, b query.Item) (query.Item, error) {
	switch k {
	case kindInteger:
		return c.evalInt(info, int64(a.(query.Int)), int64(b.(query.Int)))
	case kindDecimal:
		x, _ := query.ToDecimal(a)
		y, _ := query.ToDecimal(b)
		return c.evalDec(info, x, y)
	case kindFloat:
		x, err := query.ToFloat64(info, a)
		if err != nil {
			return nil, err
		}
		y, err := query.ToFloat64(info, b)
		if err != nil {
			return nil, err
		}
		r, err := c.evalFloat(info, float64(float32(x)), float64(float32(y)))
		if f, ok := r.(query.Dbl); ok {
			return query.Flt(float32(f)), err
		}
		return r, err
	}
	x, err := query.ToFloat64(info, a)
	if err != nil {
		return nil, err
	}
	y, err := query.ToFloat64(info, b)
	if err != nil {
		return nil, err
	}
	return c.evalFloat(info, x, y)
}

func (c Calc) evalInt(info query.InputInfo, a, b int64) (query.Item, error) {
	switch c {
	case Plus:
		r := a + b
		if (a > 0 && b > 0 && r < 0) || (a < 0 && b < 0 && r >= 0) {
			return nil, query.ErrIntegerOverflow.New(info, c.expr(a, b))
		}
		return query.Int(r), nil
	case Minus:
		r := a - b
		if (a >= 0 && b < 0 && r < 0) || (a < 0 && b > 0 && r >= 0) {
			return nil, query.ErrIntegerOverflow.New(info, c.expr(a, b))
		}
		return query.Int(r), nil
	case Mult:
		if a == 0 || b == 0 {
			return query.Int(0), nil
		}
		r := a * b
		if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return nil, query.ErrIntegerOverflow.New(info, c.expr(a, b))
		}
		return query.Int(r), nil
	case Div:
		return c.evalDec(info, decimal.New(a, 0), decimal.New(b, 0))
	}

	if b == 0 {
		return nil, query.ErrDivisionByZero.New(info, c.expr(a, b))
	}
	if c == IDiv {
		if a == math.MinInt64 && b == -1 {
			return nil, query.ErrIntegerOverflow.New(info, c.expr(a, b))
		}
		return query.Int(a / b), nil
	}
	if b == -1 {
		return query.Int(0), nil
	}
	return query.Int(a % b), nil
}

func (c Calc) evalDec(info query.InputInfo, a, b decimal.Decimal) (query.Item, error) {
	switch c {
	case Plus:
		return query.NewDec(a.Add(b)), nil
	case Minus:
		return query.NewDec(a.Sub(b)), nil
	case Mult:
		return query.NewDec(a.Mul(b)), nil
	}

	if b.IsZero() {
		return nil, query.ErrDivisionByZero.New(info, c.expr(a, b))
	}
	switch c {
	case Div:
		return query.NewDec(a.Div(b)), nil
	case IDiv:
		q := a.Div(b).Truncate(0)
		if !q.Equal(decimal.New(q.IntPart(), 0)) {
			return nil, query.ErrIntegerOverflow.New(info, c.expr(a, b))
		}
		return query.Int(q.IntPart()), nil
	}
	return query.NewDec(a.Mod(b)), nil
}

func (c Calc) evalFloat(info query.InputInfo, a, b float64) (query.Item, error) {
	switch c {
	case Plus:
		return query.Dbl(a + b), nil
	case Minus:
		return query.Dbl(a - b), nil
	case Mult:
		return query.Dbl(a * b), nil
	case Div:
		return query.Dbl(a / b), nil
	case Mod:
		return query.Dbl(math.Mod(a, b)), nil
	}

	if b == 0 {
		return nil, query.ErrDivisionByZero.New(info, c.expr(a, b))
	}
	q := math.Trunc(a / b)
	if math.IsNaN(q) || q >= math.MaxInt64 || q < math.MinInt64 {
		return nil, query.ErrIntegerOverflow.New(info, c.expr(a, b))
	}
	return query.Int(int64(q)), nil
}

func (c Calc) expr(a, b interface{}) string {
	return fmtOperands(a, c, b)
}
