package expression

import (
	"gopkg.in/src-d/go-xquery.v0/query"
)

// Literal represents a constant value.
type Literal struct {
	positioned
	value query.Value
}

var _ query.Constant = (*Literal)(nil)

// NewLiteral creates a new Literal expression.
func NewLiteral(v query.Value, info query.InputInfo) *Literal {
	return &Literal{positioned{info}, v}
}

// NewEmpty returns the empty sequence.
func NewEmpty(info query.InputInfo) *Literal {
	return NewLiteral(query.Empty, info)
}

// Val implements the query.Constant interface.
func (l *Literal) Val() query.Value { return l.value }

// Type implements the Expression interface.
func (l *Literal) Type() *query.Cardinality { return l.value.Card() }

// Children implements the Expression interface.
func (*Literal) Children() []query.Expression { return nil }

// WithChildren implements the Expression interface.
func (l *Literal) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(l, children, 0); err != nil {
		return nil, err
	}
	return l, nil
}

// Compile implements the Expression interface.
func (l *Literal) Compile(*query.Context, *query.VarScope) (query.Expression, error) {
	return l, nil
}

// Optimize implements the Expression interface.
func (l *Literal) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return l, nil
}

// Iter implements the Expression interface.
func (l *Literal) Iter(*query.Context) (query.Iter, error) {
	return query.ValueIter(l.value), nil
}

// Value implements the Expression interface.
func (l *Literal) Value(*query.Context) (query.Value, error) {
	return l.value, nil
}

// Item implements the Expression interface.
func (l *Literal) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, l, l.info)
}

// Copy implements the Expression interface. Values are immutable and shared.
func (l *Literal) Copy(*query.Context, *query.VarScope, query.VarMap) query.Expression {
	return l
}

// Accept implements the Expression interface, reporting function items.
func (l *Literal) Accept(v query.ASTVisitor) bool {
	for i, n := int64(0), l.value.Size(); i < n; i++ {
		if f, ok := l.value.ItemAt(i).(query.FItem); ok && !v.FuncItem(f) {
			return false
		}
	}
	return true
}

// Has implements the Expression interface.
func (*Literal) Has(query.Flag) bool { return false }

func (l *Literal) String() string { return query.ValueString(l.value) }

// Plan implements the query.Planner interface.
func (l *Literal) Plan() *query.PlanNode {
	return query.NewPlan("Literal", "type", l.Type().String(), "value", l.String())
}
