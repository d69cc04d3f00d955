package expression

import (
	"math"
	"strings"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// FilterStrategy is the evaluation strategy of a filter, chosen when the
// filter is built.
type FilterStrategy uint8

const (
	// IterFilter evaluates the predicates item by item. None of them
	// depends on the context position.
	IterFilter FilterStrategy = iota
	// OffsetFilter evaluates its single numeric predicate once and returns
	// the item at that position.
	OffsetFilter
	// PositionalFilter evaluates predicates depending on the context
	// position, keeping a counter per predicate.
	PositionalFilter
)

func (s FilterStrategy) String() string {
	switch s {
	case IterFilter:
		return "iter"
	case OffsetFilter:
		return "offset"
	}
	return "positional"
}

// Filter applies predicates to the items of its root expression.
type Filter struct {
	positioned
	Root  query.Expression
	Preds []query.Expression

	typ      *query.Cardinality
	strategy FilterStrategy
}

// NewFilter creates a new Filter expression.
func NewFilter(root query.Expression, info query.InputInfo, preds ...query.Expression) *Filter {
	f := &Filter{positioned: positioned{info}, Root: root, Preds: preds}
	f.strategy = filterStrategy(preds)
	f.typ = f.filterType()
	return f
}

// Strategy returns the evaluation strategy of the filter.
func (f *Filter) Strategy() FilterStrategy { return f.strategy }

func filterStrategy(preds []query.Expression) FilterStrategy {
	positional := false
	for _, p := range preds {
		if positionalPred(p) {
			positional = true
			break
		}
	}
	if !positional {
		return IterFilter
	}
	if len(preds) == 1 {
		p := preds[0]
		t := p.Type()
		if t.Type().IsNumber() && t.ZeroOrOne() &&
			!p.Has(query.FlagCtx) && !p.Has(query.FlagFcs) && !p.Has(query.FlagNdt) {
			return OffsetFilter
		}
	}
	return PositionalFilter
}

// positionalPred reports whether the result of p may depend on the context
// position, either because it reads it or because it may yield a number.
func positionalPred(p query.Expression) bool {
	if p.Has(query.FlagFcs) {
		return true
	}
	t := p.Type().Type()
	return t.IsNumber() || t.Eq(query.ItemType) || t.Eq(query.AnyAtomicType)
}

// posRange is an inclusive range of positions. A max of -1 is unbounded.
type posRange struct {
	min, max int64
}

// positional returns the range of positions accepted by p, if p only
// depends on the context position.
func positional(p query.Expression) (posRange, bool) {
	switch p := p.(type) {
	case query.Constant:
		if !numericPred(p.Val()) {
			return posRange{}, false
		}
		n, ok := integral(p.Val().ItemAt(0))
		if !ok {
			return noPositions, true
		}
		return boundedRange(n, n), true
	case *Compare:
		op := p.Op
		pos, lit := p.Left, p.Right
		if _, ok := pos.(*Position); !ok {
			pos, lit = lit, pos
			op = op.flip()
		}
		if _, ok := pos.(*Position); !ok {
			return posRange{}, false
		}
		c, ok := lit.(query.Constant)
		if !ok || !numericPred(c.Val()) {
			return posRange{}, false
		}
		it := c.Val().ItemAt(0)
		i, ok := it.(query.Int)
		if !ok {
			if op != Eq {
				return posRange{}, false
			}
			n, ok := integral(it)
			if !ok {
				return noPositions, true
			}
			i = query.Int(n)
		}
		n := int64(i)
		switch op {
		case Eq:
			return boundedRange(n, n), true
		case Lt:
			return boundedRange(1, n-1), true
		case Le:
			return boundedRange(1, n), true
		case Gt:
			return posRange{maxInt(n+1, 1), -1}, true
		case Ge:
			return posRange{maxInt(n, 1), -1}, true
		}
	}
	return posRange{}, false
}

// noPositions is the range matching no position.
var noPositions = posRange{1, 0}

// boundedRange returns the range of positions from min to max, both
// inclusive. Positions start at 1.
func boundedRange(min, max int64) posRange {
	if max < 1 || max < min {
		return noPositions
	}
	return posRange{maxInt(min, 1), max}
}

func (r posRange) empty() bool { return r.max >= 0 && r.max < r.min }

// flip returns the operator with swapped operands.
func (o CmpOp) flip() CmpOp {
	switch o {
	case Lt:
		return Gt
	case Le:
		return Ge
	case Gt:
		return Lt
	case Ge:
		return Le
	}
	return o
}

// isLast reports whether p selects the last item.
func isLast(p query.Expression) bool {
	switch p := p.(type) {
	case *Last:
		return true
	case *Compare:
		if p.Op != Eq {
			return false
		}
		_, l1 := p.Left.(*Position)
		_, l2 := p.Right.(*Last)
		_, r1 := p.Right.(*Position)
		_, r2 := p.Left.(*Last)
		return l1 && l2 || r1 && r2
	}
	return false
}

func (f *Filter) filterType() *query.Cardinality {
	t := f.Root.Type()
	if len(f.Preds) == 0 || t.IsEmpty() {
		return t
	}

	first := f.Preds[0]
	single := len(f.Preds) == 1
	if isLast(first) {
		min := int64(0)
		if single {
			min = minInt(t.MinSize(), 1)
		}
		t = t.WithRange(min, minBound(t.MaxSize(), 1))
	} else if r, ok := positional(first); ok {
		t = rangeType(t, r, single)
	} else {
		t = t.WithMinSize(0)
	}

	if f.strategy == OffsetFilter {
		t = t.WithRange(minInt(t.MinSize(), 1), minBound(t.MaxSize(), 1))
	}
	return t
}

// rangeType returns the cardinality of the items of t at the positions of r.
func rangeType(t *query.Cardinality, r posRange, single bool) *query.Cardinality {
	if r.empty() {
		return query.EmptyCard
	}
	max := r.max
	if max >= 0 {
		max = max - r.min + 1
	}
	if t.MaxSize() >= 0 {
		max = minBound(max, maxInt(t.MaxSize()-r.min+1, 0))
	}

	min := int64(0)
	if single {
		last := t.MinSize()
		if r.max >= 0 {
			last = minInt(last, r.max)
		}
		min = maxInt(last-r.min+1, 0)
	}
	if max >= 0 {
		min = minInt(min, max)
	}
	return t.WithRange(min, max)
}

// minBound returns the minimum of two bounds, -1 being unbounded.
func minBound(a, b int64) int64 {
	switch {
	case a < 0:
		return b
	case b < 0:
		return a
	}
	return minInt(a, b)
}

func minInt(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// numericPred reports whether a predicate value is a position.
func numericPred(v query.Value) bool {
	return v.Size() == 1 && v.ItemAt(0).Type().IsNumber()
}

func integral(it query.Item) (int64, bool) {
	if i, ok := it.(query.Int); ok {
		return int64(i), true
	}
	f, err := query.ToFloat64(query.InputInfo{}, it)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// testPred evaluates a predicate for the current focus. Numeric values
// select the item at their position, other values are tested by their
// effective boolean value.
func testPred(ctx *query.Context, p query.Expression, info query.InputInfo) (bool, error) {
	v, err := p.Value(ctx)
	if err != nil {
		return false, err
	}
	if numericPred(v) {
		n, err := query.ToFloat64(info, v.ItemAt(0))
		if err != nil {
			return false, err
		}
		return n == float64(ctx.Focus().Pos), nil
	}
	return query.EBV(info, v)
}

// Type implements the Expression interface.
func (f *Filter) Type() *query.Cardinality { return f.typ }

// Children implements the Expression interface.
func (f *Filter) Children() []query.Expression {
	return append([]query.Expression{f.Root}, f.Preds...)
}

// WithChildren implements the Expression interface.
func (f *Filter) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, len(f.Preds)+1); err != nil {
		return nil, err
	}
	return NewFilter(children[0], f.info, children[1:]...), nil
}

// Compile implements the Expression interface.
func (f *Filter) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *Filter) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if query.IsEmpty(f.Root) {
		return Simplify(ctx, f), nil
	}

	changed := false
	preds := make([]query.Expression, 0, len(f.Preds))
	for _, p := range f.Preds {
		c, ok := p.(query.Constant)
		if !ok {
			preds = append(preds, p)
			continue
		}
		if numericPred(c.Val()) {
			if n, ok := integral(c.Val().ItemAt(0)); (!ok || n < 1) && Pure(f.Root) {
				return Simplify(ctx, f), nil
			}
			preds = append(preds, p)
			continue
		}
		b, err := query.EBV(f.info, c.Val())
		if err != nil {
			return nil, err
		}
		if !b && Pure(f.Root) {
			return Simplify(ctx, f), nil
		}
		if b {
			ctx.CompInfo("removing true predicate from %s", query.DebugString(f))
			changed = true
			continue
		}
		preds = append(preds, p)
	}

	if len(preds) == 0 {
		return f.Root, nil
	}
	if path, ok := f.Root.(*Path); ok && len(path.Steps) > 0 && !anyPositional(preds) {
		ctx.CompInfo("merging predicates into %s", query.DebugString(path))
		return path.AddPreds(preds...), nil
	}
	for _, p := range preds {
		if r, ok := positional(p); ok && r.empty() && Pure(f.Root) && Pure(p) {
			return Simplify(ctx, f), nil
		}
	}
	if len(preds) == 1 && f.Root.Type().One() && Pure(f.Root) {
		if r, ok := positional(preds[0]); isLast(preds[0]) || ok && r.min == 1 && r.max != 0 {
			return f.Root, nil
		}
	}

	n := f
	if changed {
		n = NewFilter(f.Root, f.info, preds...)
	} else if fresh := NewFilter(f.Root, f.info, preds...); fresh.strategy != f.strategy || !fresh.typ.Equal(f.typ) {
		n = fresh
	}
	if n.typ.IsEmpty() && Pure(n) {
		return Simplify(ctx, n), nil
	}
	if AllValues(n.Children()...) {
		return PreEval(ctx, n)
	}
	return n, nil
}

func isLastCall(e query.Expression) bool {
	_, ok := e.(*Last)
	return ok
}

func anyPositional(preds []query.Expression) bool {
	for _, p := range preds {
		if positionalPred(p) {
			return true
		}
	}
	return false
}

// Iter implements the Expression interface.
func (f *Filter) Iter(ctx *query.Context) (query.Iter, error) {
	switch f.strategy {
	case OffsetFilter:
		return ItemIter(f.offset(ctx))
	case PositionalFilter:
		for _, p := range f.Preds {
			if query.Find(p, isLastCall) {
				return f.materialized(ctx)
			}
		}
		return f.positional(ctx)
	}
	return f.iter(ctx)
}

// iter tests the items one by one.
func (f *Filter) iter(ctx *query.Context) (query.Iter, error) {
	root, err := f.Root.Iter(ctx)
	if err != nil {
		return nil, err
	}
	var pos int64
	next := func() (query.Item, error) {
		prev := ctx.Focus()
		defer ctx.SetFocus(prev)
	items:
		for {
			if err := ctx.Canceled(); err != nil {
				return nil, err
			}
			it, err := root.Next()
			if err != nil || it == nil {
				return nil, err
			}
			pos++
			ctx.SetFocus(query.Focus{Item: it, Pos: pos, Size: -1})
			for _, p := range f.Preds {
				ok, err := testPred(ctx, p, f.info)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue items
				}
			}
			return it, nil
		}
	}
	return query.NewIter(next, root.Close), nil
}

// offset returns the item at the position the predicate evaluates to.
func (f *Filter) offset(ctx *query.Context) (query.Item, error) {
	root, err := f.Root.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	v, err := f.Preds[0].Value(ctx)
	if err != nil || v.Size() == 0 {
		return nil, err
	}
	n, ok := integral(v.ItemAt(0))
	if !ok || n < 1 {
		return nil, nil
	}
	if size := root.Size(); size >= 0 {
		if n > size {
			return nil, nil
		}
		return root.Get(n - 1)
	}
	for i := int64(1); ; i++ {
		it, err := root.Next()
		if err != nil || it == nil || i == n {
			return it, err
		}
	}
}

// positional chains the predicates lazily, each one counting the items
// accepted by the previous ones. It stops as soon as a position range is
// exhausted.
func (f *Filter) positional(ctx *query.Context) (query.Iter, error) {
	root, err := f.Root.Iter(ctx)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, len(f.Preds))
	maxes := make([]int64, len(f.Preds))
	for i, p := range f.Preds {
		maxes[i] = -1
		if r, ok := positional(p); ok {
			maxes[i] = r.max
		}
	}

	done := false
	next := func() (query.Item, error) {
		if done {
			return nil, nil
		}
		prev := ctx.Focus()
		defer ctx.SetFocus(prev)
	items:
		for {
			if err := ctx.Canceled(); err != nil {
				return nil, err
			}
			it, err := root.Next()
			if err != nil || it == nil {
				return nil, err
			}
			for i, p := range f.Preds {
				counts[i]++
				if maxes[i] >= 0 && counts[i] > maxes[i] {
					done = true
					return nil, nil
				}
				ctx.SetFocus(query.Focus{Item: it, Pos: counts[i], Size: -1})
				ok, err := testPred(ctx, p, f.info)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue items
				}
			}
			return it, nil
		}
	}
	return query.NewIter(next, root.Close), nil
}

// materialized evaluates the predicates over the materialized root, as
// they depend on the context size.
func (f *Filter) materialized(ctx *query.Context) (query.Iter, error) {
	v, err := f.Root.Value(ctx)
	if err != nil {
		return nil, err
	}
	items := query.Items(v)

	prev := ctx.Focus()
	defer ctx.SetFocus(prev)
	for _, p := range f.Preds {
		size := int64(len(items))
		res := items[:0:0]
		for i, it := range items {
			if err := ctx.Canceled(); err != nil {
				return nil, err
			}
			ctx.SetFocus(query.Focus{Item: it, Pos: int64(i) + 1, Size: size})
			ok, err := testPred(ctx, p, f.info)
			if err != nil {
				return nil, err
			}
			if ok {
				res = append(res, it)
			}
		}
		items = res
	}
	return query.ValueIter(query.NewItemSeq(items)), nil
}

// Value implements the Expression interface.
func (f *Filter) Value(ctx *query.Context) (query.Value, error) {
	if f.strategy == OffsetFilter {
		return ItemValue(f.offset(ctx))
	}
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *Filter) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *Filter) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return NewFilter(f.Root.Copy(ctx, scope, vars), f.info, query.CopyAll(ctx, scope, vars, f.Preds)...)
}

// Accept implements the Expression interface.
func (f *Filter) Accept(v query.ASTVisitor) bool {
	return f.Root.Accept(v) && query.AcceptFocus(v, f.Preds...)
}

// Has implements the Expression interface. Predicates are evaluated with
// their own focus.
func (f *Filter) Has(flag query.Flag) bool {
	if f.Root.Has(flag) {
		return true
	}
	if flag == query.FlagCtx || flag == query.FlagFcs {
		return false
	}
	return query.HasAny(flag, f.Preds...)
}

func (f *Filter) String() string {
	var sb strings.Builder
	sb.WriteString(query.DebugString(f.Root))
	for _, p := range f.Preds {
		sb.WriteString("[")
		sb.WriteString(query.DebugString(p))
		sb.WriteString("]")
	}
	return sb.String()
}

// Plan implements the query.Planner interface.
func (f *Filter) Plan() *query.PlanNode {
	p := query.NewPlan("Filter", "strategy", f.strategy.String(), "type", f.typ.String())
	for _, c := range f.Children() {
		p.Children = append(p.Children, query.PlanOf(c))
	}
	return p
}
