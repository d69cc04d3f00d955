package expression

import (
	"fmt"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Arith is a binary arithmetic expression.
type Arith struct {
	BinaryExpression
	positioned
	Calc Calc
	kind numKind
	typ  *query.Cardinality
}

// NewArith creates a new Arith expression. If the types of both operands
// are known numeric types, the operator is specialized to their result type.
func NewArith(left, right query.Expression, c Calc, info query.InputInfo) *Arith {
	typ, kind := arithType(c, left.Type(), right.Type())
	return &Arith{BinaryExpression{left, right}, positioned{info}, c, kind, typ}
}

// NewPlus creates a new Arith + expression.
func NewPlus(left, right query.Expression, info query.InputInfo) *Arith {
	return NewArith(left, right, Plus, info)
}

// NewMinus creates a new Arith - expression.
func NewMinus(left, right query.Expression, info query.InputInfo) *Arith {
	return NewArith(left, right, Minus, info)
}

// NewMult creates a new Arith * expression.
func NewMult(left, right query.Expression, info query.InputInfo) *Arith {
	return NewArith(left, right, Mult, info)
}

// NewDiv creates a new Arith div expression.
func NewDiv(left, right query.Expression, info query.InputInfo) *Arith {
	return NewArith(left, right, Div, info)
}

func arithType(c Calc, l, r *query.Cardinality) (*query.Cardinality, numKind) {
	nonEmpty := l.NonEmpty() && r.NonEmpty()
	t1, t2 := l.Type(), r.Type()
	if query.IsNumberOrUntyped(t1) && query.IsNumberOrUntyped(t2) {
		kind := c.kind(kindOfType(t1), kindOfType(t2))
		if nonEmpty {
			return query.One(kind.Type()), kind
		}
		return query.ZeroOrOne(kind.Type()), kind
	}
	if nonEmpty {
		return query.One(query.AnyAtomicType), kindNone
	}
	return query.ZeroOrOne(query.AnyAtomicType), kindNone
}

// Specialized returns the numeric type the operator is specialized to, nil
// if it dispatches on the operand types at evaluation time.
func (a *Arith) Specialized() query.Type {
	if a.kind == kindNone {
		return nil
	}
	return a.kind.Type()
}

// Type implements the Expression interface.
func (a *Arith) Type() *query.Cardinality { return a.typ }

// WithChildren implements the Expression interface.
func (a *Arith) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(a, children, 2); err != nil {
		return nil, err
	}
	return NewArith(children[0], children[1], a.Calc, a.info), nil
}

// Compile implements the Expression interface.
func (a *Arith) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, a)
}

// Optimize implements the Expression interface. The type and the operator
// specialization are derived again from the compiled operands.
func (a *Arith) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if typ, kind := arithType(a.Calc, a.Left.Type(), a.Right.Type()); kind != a.kind || !typ.Equal(a.typ) {
		a = NewArith(a.Left, a.Right, a.Calc, a.info)
	}
	if query.IsEmpty(a.Left) || query.IsEmpty(a.Right) {
		return Simplify(ctx, a), nil
	}
	if AllValues(a.Left, a.Right) {
		return PreEval(ctx, a)
	}
	return a, nil
}

// Item implements the Expression interface.
func (a *Arith) Item(ctx *query.Context) (query.Item, error) {
	l, err := query.ItemOf(ctx, a.Left, a.info)
	if err != nil || l == nil {
		return nil, err
	}
	r, err := query.ItemOf(ctx, a.Right, a.info)
	if err != nil || r == nil {
		return nil, err
	}

	switch a.kind {
	case kindInteger:
		if x, ok := l.(query.Int); ok {
			if y, ok := r.(query.Int); ok {
				return a.Calc.evalInt(a.info, int64(x), int64(y))
			}
		}
	case kindDouble:
		if x, ok := l.(query.Dbl); ok {
			if y, ok := r.(query.Dbl); ok {
				return a.Calc.evalFloat(a.info, float64(x), float64(y))
			}
		}
	}
	return a.Calc.Eval(a.info, l, r)
}

// Iter implements the Expression interface.
func (a *Arith) Iter(ctx *query.Context) (query.Iter, error) {
	return ItemIter(a.Item(ctx))
}

// Value implements the Expression interface.
func (a *Arith) Value(ctx *query.Context) (query.Value, error) {
	return ItemValue(a.Item(ctx))
}

// Copy implements the Expression interface.
func (a *Arith) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewArith(a.Left.Copy(ctx, scope, vars), a.Right.Copy(ctx, scope, vars), a.Calc, a.info)
}

func (a *Arith) String() string {
	return fmt.Sprintf("(%s)", fmtOperands(a.Left, a.Calc, a.Right))
}

// DebugString implements the query.DebugStringer interface.
func (a *Arith) DebugString() string {
	return fmt.Sprintf("(%s)", fmtOperands(query.DebugString(a.Left), a.Calc, query.DebugString(a.Right)))
}

// Plan implements the query.Planner interface.
func (a *Arith) Plan() *query.PlanNode {
	p := query.NewPlan("Arith", "op", a.Calc.String(), "type", a.typ.String())
	p.Children = []*query.PlanNode{query.PlanOf(a.Left), query.PlanOf(a.Right)}
	return p
}

func fmtOperands(a interface{}, op fmt.Stringer, b interface{}) string {
	return fmt.Sprintf("%v %s %v", a, op, b)
}
