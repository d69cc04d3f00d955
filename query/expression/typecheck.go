package expression

import (
	"fmt"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// TypeCheck checks that the value of its argument is an instance of a
// sequence type. If Promote is set, the function conversion rules are
// applied instead of failing.
type TypeCheck struct {
	UnaryExpression
	positioned
	Target  *query.SeqType
	Promote bool
}

// NewTypeCheck creates a new TypeCheck expression.
func NewTypeCheck(child query.Expression, target *query.SeqType, promote bool, info query.InputInfo) *TypeCheck {
	return &TypeCheck{UnaryExpression{child}, positioned{info}, target, promote}
}

// Type implements the Expression interface.
func (t *TypeCheck) Type() *query.Cardinality {
	target := query.CardOfType(t.Target)
	arg := t.Child.Type()
	if r := arg.Intersect(target); r != nil && (!t.Promote || arg.Type().InstanceOf(t.Target.Type)) {
		return r
	}
	occ, ok := arg.Occ().Intersect(t.Target.Occ)
	if !ok {
		return target
	}
	return query.CardOfType(t.Target.WithOcc(occ))
}

// WithChildren implements the Expression interface.
func (t *TypeCheck) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(t, children, 1); err != nil {
		return nil, err
	}
	return NewTypeCheck(children[0], t.Target, t.Promote, t.info), nil
}

// Compile implements the Expression interface.
func (t *TypeCheck) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, t)
}

// Optimize implements the Expression interface. The check is removed if the
// argument is statically known to match; it fails if it can never match.
func (t *TypeCheck) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	arg := t.Child.Type()
	if arg.InstanceOf(query.CardOfType(t.Target)) {
		ctx.CompInfo("removing redundant type check for %s", t.Target)
		return t.Child, nil
	}

	if _, ok := arg.Occ().Intersect(t.Target.Occ); !ok {
		return nil, query.ErrInvalidCast.New(t.info, arg, t.Target)
	}
	if arg.NonEmpty() && !t.Target.CouldBe(arg) {
		return nil, query.ErrInvalidCast.New(t.info, arg, t.Target)
	}
	if !t.Promote && arg.NonEmpty() && query.IntersectType(arg.Type(), t.Target.Type) == nil {
		if _, ok := t.Target.Type.(*query.FuncType); !ok {
			return nil, query.ErrInvalidCast.New(t.info, arg, t.Target)
		}
	}

	if query.IsValue(t.Child) {
		return PreEval(ctx, t)
	}
	return t, nil
}

// Value implements the Expression interface.
func (t *TypeCheck) Value(ctx *query.Context) (query.Value, error) {
	v, err := t.Child.Value(ctx)
	if err != nil {
		return nil, err
	}
	if t.Target.Instance(v) {
		return v, nil
	}
	if t.Promote {
		return t.Target.Promote(t.info, v)
	}
	if ft, ok := t.Target.Type.(*query.FuncType); ok && t.Target.Occ.Check(v.Size()) {
		return coerceAll(t.info, v, ft)
	}
	return nil, query.ErrInvalidCast.New(t.info, v.Card(), t.Target)
}

// coerceAll coerces all function items of v to ft.
func coerceAll(info query.InputInfo, v query.Value, ft *query.FuncType) (query.Value, error) {
	items := make([]query.Item, 0, v.Size())
	for i, n := int64(0), v.Size(); i < n; i++ {
		f, ok := v.ItemAt(i).(query.FItem)
		if !ok {
			return nil, query.ErrInvalidCast.New(info, v.ItemAt(i).Type(), ft)
		}
		c, err := query.Coerce(info, f, ft)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return query.NewItemSeq(items), nil
}

// Item implements the Expression interface.
func (t *TypeCheck) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, t, t.info)
}

// Iter implements the Expression interface.
func (t *TypeCheck) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, t)
}

// Copy implements the Expression interface.
func (t *TypeCheck) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewTypeCheck(t.Child.Copy(ctx, scope, vars), t.Target, t.Promote, t.info)
}

func (t *TypeCheck) String() string {
	return fmt.Sprintf("((: %s, %t :) %s)", t.Target, t.Promote, t.Child)
}

// Plan implements the query.Planner interface.
func (t *TypeCheck) Plan() *query.PlanNode {
	p := query.NewPlan("TypeCheck", "type", t.Target.String(), "promote", fmt.Sprint(t.Promote))
	p.Children = []*query.PlanNode{query.PlanOf(t.Child)}
	return p
}
