package function

import (
	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
)

// unroll reports whether a loop over the constant sequence seq calling the
// constant function f may be replaced by its individual calls.
func unroll(ctx *query.Context, seq, f query.Expression) bool {
	return expression.AllValues(seq, f) && seq.Type().Size() < int64(ctx.Options.UnrollLimit)
}

// collapse reports whether a loop over seq never calls its function and can
// be replaced by the empty sequence.
func collapse(c *call, seq query.Expression) bool {
	return query.IsEmpty(seq) && c.pure()
}

// ForEach applies a function to each item of a sequence.
type ForEach struct {
	call
}

// NewForEach creates a new ForEach expression.
func NewForEach(info query.InputInfo, seq, f query.Expression) query.Expression {
	return &ForEach{newCall("fn:for-each", info, seq, f)}
}

// Type implements the Expression interface.
func (f *ForEach) Type() *query.Cardinality {
	return expression.RetType(f.Args[1]).Multiply(f.Args[0].Type())
}

// WithChildren implements the Expression interface.
func (f *ForEach) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 2); err != nil {
		return nil, err
	}
	return NewForEach(f.info, children[0], children[1]), nil
}

// Compile implements the Expression interface.
func (f *ForEach) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface. Calls over small constant
// sequences are unrolled.
func (f *ForEach) Optimize(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	if err := checkArity(f.Args[1], 1, f.info); err != nil {
		return nil, err
	}
	seq := f.Args[0]
	if unroll(ctx, seq, f.Args[1]) {
		ctx.CompInfo("unrolling %s", f)
		v := seq.(query.Constant).Val()
		results := make([]query.Expression, v.Size())
		for i := range results {
			lit := expression.NewLiteral(v.ItemAt(int64(i)), f.info)
			r, err := expression.NewDynFuncCall(f.Args[1], f.info, lit).Optimize(ctx, scope)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return expression.NewList(f.info, results...).Optimize(ctx, scope)
	}
	if collapse(&f.call, seq) {
		return expression.Simplify(ctx, f), nil
	}
	return f, nil
}

// Iter implements the Expression interface.
func (f *ForEach) Iter(ctx *query.Context) (query.Iter, error) {
	fn, err := withArity(ctx, f.Args[1], 1, f.info)
	if err != nil {
		return nil, err
	}
	xs, err := f.Args[0].Iter(ctx)
	if err != nil {
		return nil, err
	}
	return invokeIter(ctx, f.info, fn, func() ([]query.Value, error) {
		x, err := xs.Next()
		if err != nil || x == nil {
			return nil, err
		}
		return []query.Value{x}, nil
	}, xs.Close), nil
}

// Value implements the Expression interface.
func (f *ForEach) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *ForEach) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *ForEach) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := f.copyArgs(ctx, scope, vars)
	return NewForEach(f.info, args[0], args[1])
}

// Filter returns the items of a sequence for which a predicate function
// returns true.
type Filter struct {
	call
}

// NewFilter creates a new Filter expression.
func NewFilter(info query.InputInfo, seq, f query.Expression) query.Expression {
	return &Filter{newCall("fn:filter", info, seq, f)}
}

// Type implements the Expression interface.
func (f *Filter) Type() *query.Cardinality {
	return f.Args[0].Type().WithMinSize(0)
}

// WithChildren implements the Expression interface.
func (f *Filter) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 2); err != nil {
		return nil, err
	}
	return NewFilter(f.info, children[0], children[1]), nil
}

// Compile implements the Expression interface.
func (f *Filter) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *Filter) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if err := checkArity(f.Args[1], 1, f.info); err != nil {
		return nil, err
	}
	if collapse(&f.call, f.Args[0]) {
		return expression.Simplify(ctx, f), nil
	}
	return f, nil
}

// Iter implements the Expression interface.
func (f *Filter) Iter(ctx *query.Context) (query.Iter, error) {
	fn, err := withArity(ctx, f.Args[1], 1, f.info)
	if err != nil {
		return nil, err
	}
	xs, err := f.Args[0].Iter(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewIter(func() (query.Item, error) {
		for {
			if err := ctx.Canceled(); err != nil {
				return nil, err
			}
			x, err := xs.Next()
			if err != nil || x == nil {
				return nil, err
			}
			ok, err := f.test(ctx, fn, x)
			if err != nil {
				return nil, err
			}
			if ok {
				return x, nil
			}
		}
	}, xs.Close), nil
}

func (f *Filter) test(ctx *query.Context, fn query.FItem, x query.Item) (bool, error) {
	v, err := query.Invoke(ctx, f.info, fn, x)
	if err != nil {
		return false, err
	}
	switch v.Size() {
	case 0:
		return false, query.ErrEmptyFound.New(f.info)
	case 1:
	default:
		return false, query.ErrSeqFound.New(f.info, query.ValueString(v))
	}
	b, ok := v.ItemAt(0).(query.Bln)
	if !ok {
		return false, query.ErrInvalidCast.New(f.info, v.ItemAt(0).Type(), query.BooleanType)
	}
	return bool(b), nil
}

// Value implements the Expression interface.
func (f *Filter) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *Filter) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *Filter) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := f.copyArgs(ctx, scope, vars)
	return NewFilter(f.info, args[0], args[1])
}

// ForEachPair applies a function to the items at the same positions of two
// sequences, stopping at the end of the shorter one.
type ForEachPair struct {
	call
}

// NewForEachPair creates a new ForEachPair expression.
func NewForEachPair(info query.InputInfo, xs, ys, f query.Expression) query.Expression {
	return &ForEachPair{newCall("fn:for-each-pair", info, xs, ys, f)}
}

// Type implements the Expression interface.
func (f *ForEachPair) Type() *query.Cardinality {
	st1, st2 := f.Args[0].Type(), f.Args[1].Type()
	if st1.IsEmpty() || st2.IsEmpty() {
		return query.EmptyCard
	}
	rt := expression.RetType(f.Args[2])
	if rt.IsEmpty() {
		return query.EmptyCard
	}

	maxIter := int64(-1)
	switch {
	case st1.IsBounded() && st2.IsBounded():
		maxIter = minInt64(st1.MaxSize(), st2.MaxSize())
	case st1.IsBounded():
		maxIter = st1.MaxSize()
	case st2.IsBounded():
		maxIter = st2.MaxSize()
	}

	max := int64(-1)
	if rt.IsBounded() && maxIter >= 0 {
		max = maxIter * rt.MaxSize()
	}
	return rt.WithRange(rt.MinSize()*minInt64(st1.MinSize(), st2.MinSize()), max)
}

// WithChildren implements the Expression interface.
func (f *ForEachPair) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 3); err != nil {
		return nil, err
	}
	return NewForEachPair(f.info, children[0], children[1], children[2]), nil
}

// Compile implements the Expression interface.
func (f *ForEachPair) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *ForEachPair) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if err := checkArity(f.Args[2], 2, f.info); err != nil {
		return nil, err
	}
	if collapse(&f.call, f.Args[0]) || collapse(&f.call, f.Args[1]) {
		return expression.Simplify(ctx, f), nil
	}
	return f, nil
}

// Iter implements the Expression interface.
func (f *ForEachPair) Iter(ctx *query.Context) (query.Iter, error) {
	fn, err := withArity(ctx, f.Args[2], 2, f.info)
	if err != nil {
		return nil, err
	}
	xs, err := f.Args[0].Iter(ctx)
	if err != nil {
		return nil, err
	}
	ys, err := f.Args[1].Iter(ctx)
	if err != nil {
		xs.Close()
		return nil, err
	}
	next := func() ([]query.Value, error) {
		x, err := xs.Next()
		if err != nil || x == nil {
			return nil, err
		}
		y, err := ys.Next()
		if err != nil || y == nil {
			return nil, err
		}
		return []query.Value{x, y}, nil
	}
	done := func() error {
		err := xs.Close()
		if err2 := ys.Close(); err == nil {
			err = err2
		}
		return err
	}
	return invokeIter(ctx, f.info, fn, next, done), nil
}

// Value implements the Expression interface.
func (f *ForEachPair) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *ForEachPair) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *ForEachPair) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := f.copyArgs(ctx, scope, vars)
	return NewForEachPair(f.info, args[0], args[1], args[2])
}

// fold is the common part of FoldLeft and FoldRight.
type fold struct {
	call
}

func (f *fold) Type() *query.Cardinality {
	seq, zero := f.Args[0].Type(), f.Args[1].Type()
	if seq.IsEmpty() {
		return zero
	}
	rt := expression.RetType(f.Args[2])
	if seq.NonEmpty() {
		return rt
	}
	return zero.Union(rt)
}

// optimize returns the unrolled chain of calls, the seed if the sequence is
// empty, or nil.
func (f *fold) optimize(ctx *query.Context, scope *query.VarScope, right bool) (query.Expression, error) {
	if err := checkArity(f.Args[2], 2, f.info); err != nil {
		return nil, err
	}
	seq := f.Args[0]
	if query.IsEmpty(seq) && f.pure() {
		ctx.CompInfo("replacing %s by its seed", f)
		return f.Args[1], nil
	}
	if !unroll(ctx, seq, f.Args[2]) {
		return nil, nil
	}

	ctx.CompInfo("unrolling %s", f)
	v := seq.(query.Constant).Val()
	e := f.Args[1]
	for i := int64(0); i < v.Size(); i++ {
		var err error
		if right {
			lit := expression.NewLiteral(v.ItemAt(v.Size()-1-i), f.info)
			e, err = expression.NewDynFuncCall(f.Args[2], f.info, lit, e).Optimize(ctx, scope)
		} else {
			lit := expression.NewLiteral(v.ItemAt(i), f.info)
			e, err = expression.NewDynFuncCall(f.Args[2], f.info, e, lit).Optimize(ctx, scope)
		}
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// FoldLeft folds a sequence from the left, threading an accumulator through
// the calls of a function.
type FoldLeft struct {
	fold
}

// NewFoldLeft creates a new FoldLeft expression.
func NewFoldLeft(info query.InputInfo, seq, zero, f query.Expression) query.Expression {
	return &FoldLeft{fold{newCall("fn:fold-left", info, seq, zero, f)}}
}

// WithChildren implements the Expression interface.
func (f *FoldLeft) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 3); err != nil {
		return nil, err
	}
	return NewFoldLeft(f.info, children[0], children[1], children[2]), nil
}

// Compile implements the Expression interface.
func (f *FoldLeft) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *FoldLeft) Optimize(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	e, err := f.optimize(ctx, scope, false)
	if err != nil || e != nil {
		return e, err
	}
	return f, nil
}

// Iter implements the Expression interface. The sequence is consumed item
// by item.
func (f *FoldLeft) Iter(ctx *query.Context) (query.Iter, error) {
	fn, err := withArity(ctx, f.Args[2], 2, f.info)
	if err != nil {
		return nil, err
	}
	xs, err := f.Args[0].Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer xs.Close()

	x, err := xs.Next()
	if err != nil {
		return nil, err
	}
	if x == nil {
		return f.Args[1].Iter(ctx)
	}

	acc, err := f.Args[1].Value(ctx)
	if err != nil {
		return nil, err
	}
	for x != nil {
		if err := ctx.Canceled(); err != nil {
			return nil, err
		}
		if acc, err = query.Invoke(ctx, f.info, fn, acc, x); err != nil {
			return nil, err
		}
		if x, err = xs.Next(); err != nil {
			return nil, err
		}
	}
	return query.ValueIter(acc), nil
}

// Value implements the Expression interface.
func (f *FoldLeft) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *FoldLeft) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *FoldLeft) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := f.copyArgs(ctx, scope, vars)
	return NewFoldLeft(f.info, args[0], args[1], args[2])
}

// FoldRight folds a sequence from the right. The sequence is materialized.
type FoldRight struct {
	fold
}

// NewFoldRight creates a new FoldRight expression.
func NewFoldRight(info query.InputInfo, seq, zero, f query.Expression) query.Expression {
	return &FoldRight{fold{newCall("fn:fold-right", info, seq, zero, f)}}
}

// WithChildren implements the Expression interface.
func (f *FoldRight) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 3); err != nil {
		return nil, err
	}
	return NewFoldRight(f.info, children[0], children[1], children[2]), nil
}

// Compile implements the Expression interface.
func (f *FoldRight) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *FoldRight) Optimize(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	e, err := f.optimize(ctx, scope, true)
	if err != nil || e != nil {
		return e, err
	}
	return f, nil
}

// Iter implements the Expression interface.
func (f *FoldRight) Iter(ctx *query.Context) (query.Iter, error) {
	fn, err := withArity(ctx, f.Args[2], 2, f.info)
	if err != nil {
		return nil, err
	}
	xs, err := f.Args[0].Value(ctx)
	if err != nil {
		return nil, err
	}
	if xs.Size() == 0 {
		return f.Args[1].Iter(ctx)
	}

	acc, err := f.Args[1].Value(ctx)
	if err != nil {
		return nil, err
	}
	for i := xs.Size() - 1; i >= 0; i-- {
		if err := ctx.Canceled(); err != nil {
			return nil, err
		}
		if acc, err = query.Invoke(ctx, f.info, fn, xs.ItemAt(i), acc); err != nil {
			return nil, err
		}
	}
	return query.ValueIter(acc), nil
}

// Value implements the Expression interface.
func (f *FoldRight) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *FoldRight) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *FoldRight) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := f.copyArgs(ctx, scope, vars)
	return NewFoldRight(f.info, args[0], args[1], args[2])
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
