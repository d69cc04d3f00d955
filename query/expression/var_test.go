package expression

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
)

func TestFor(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()
	scope := query.NewVarScope()
	v := scope.NewVar(query.NewQName("", "x"), nil, info)
	pos := scope.NewVar(query.NewQName("", "i"), nil, info)

	f := NewFor(v, pos, dynamic(query.NewIntSeq(10, 20, 30)),
		NewList(info, NewVarRef(pos, info), NewVarRef(v, info)), info)
	e, err := f.Compile(ctx, scope)
	require.NoError(err)

	frame := scope.Enter(ctx)
	defer scope.Exit(ctx, frame)
	require.Equal(intItems(1, 10, 2, 20, 3, 30), eval(t, ctx, e))
	require.True(v.Card().One())
	require.True(v.Card().Type().Eq(query.IntegerType))
	require.Equal(int64(6), e.Type().Size())
}

func TestForToLet(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()
	scope := query.NewVarScope()
	v := scope.NewVar(query.NewQName("", "x"), nil, info)

	f := NewFor(v, nil, lit(query.Int(5)), NewPlus(NewVarRef(v, info), lit(query.Int(1)), info), info)
	e, err := f.Compile(ctx, scope)
	require.NoError(err)
	c, ok := e.(query.Constant)
	require.True(ok, "expected constant, got %s", e)
	require.Equal(query.Int(6), c.Val())
}

func TestForEmpty(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()
	scope := query.NewVarScope()
	v := scope.NewVar(query.NewQName("", "x"), nil, info)

	f := NewFor(v, nil, NewEmpty(info), NewVarRef(v, info), info)
	e, err := f.Compile(ctx, scope)
	require.NoError(err)
	require.True(query.IsEmpty(e))
}

func TestForLazy(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()
	scope := query.NewVarScope()
	v := scope.NewVar(query.NewQName("", "x"), nil, info)

	f := NewFor(v, nil, rangeOf(1, 1<<40), NewMult(NewVarRef(v, info), lit(query.Int(2)), info), info)
	e, err := f.Compile(ctx, scope)
	require.NoError(err)
	require.Equal(int64(1<<40), e.Type().Size())

	frame := scope.Enter(ctx)
	iter, err := e.Iter(ctx)
	require.NoError(err)
	for i := int64(1); i <= 3; i++ {
		it, err := iter.Next()
		require.NoError(err)
		require.Equal(query.Int(2*i), it)
	}
	require.NoError(iter.Close())
	scope.Exit(ctx, frame)
	require.Equal(0, ctx.StackDepth())
}

func TestLet(t *testing.T) {
	ctx := query.NewEmptyContext()

	t.Run("unused", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), nil, info)
		body := dynamic(query.Int(2))
		e, err := NewLet(v, dynamic(query.Int(1)), body, info).Compile(ctx, scope)
		require.NoError(err)
		require.Equal(body, e)
	})

	t.Run("inlined", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), nil, info)
		ref := NewVarRef(v, info)
		body := NewList(info, NewMult(ref, ref, info), dynamic(query.Int(0)))
		e, err := NewLet(v, lit(query.Int(3)), body, info).Compile(ctx, scope)
		require.NoError(err)
		require.Equal(0, countRefs(e, v))
		require.Equal(intItems(9, 0), eval(t, ctx, e))
	})

	t.Run("bound", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), nil, info)
		ref := NewVarRef(v, info)
		e, err := NewLet(v, dynamic(query.NewIntSeq(1, 2)), NewList(info, ref, ref), info).Compile(ctx, scope)
		require.NoError(err)
		_, ok := e.(*Let)
		require.True(ok)
		require.Equal(int64(4), e.Type().Size())

		frame := scope.Enter(ctx)
		defer scope.Exit(ctx, frame)
		require.Equal(intItems(1, 2, 1, 2), eval(t, ctx, e))
	})

	t.Run("declared type", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), query.StringOne, info)
		_, err := NewLet(v, lit(query.Int(1)), NewVarRef(v, info), info).Compile(ctx, scope)
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))
	})

	t.Run("undefined", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), nil, info)
		_, err := NewVarRef(v, info).Value(ctx)
		require.Error(err)
		require.True(query.ErrVarUndefined.Is(err))
	})
}

func TestVarCopy(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()
	scope := query.NewVarScope()
	v := scope.NewVar(query.NewQName("", "x"), nil, info)
	let := NewLet(v, dynamic(query.Int(1)), NewPlus(NewVarRef(v, info), NewVarRef(v, info), info), info)

	target := query.NewVarScope()
	vars := query.VarMap{}
	c := let.Copy(ctx, target, vars).(*Let)
	require.NotEqual(v, c.Var)
	require.Equal(c.Var, vars[v])
	require.Equal(0, countRefs(c, v))
	require.Equal(2, countRefs(c, c.Var))
	require.Equal(1, target.Size())
}

// closure builds function($y) { $y + $x } capturing $x from an expression of
// the enclosing scope.
func closure(captured query.Expression) *InlineFunc {
	scope := query.NewVarScope()
	y := scope.NewParam(query.NewQName("", "y"), query.IntegerOne, info)
	x := scope.NewVar(query.NewQName("", "x"), nil, info)
	body := NewPlus(NewVarRef(y, info), NewVarRef(x, info), info)
	return NewInlineFunc(scope, []*query.Var{y}, nil, []Capture{{x, captured}}, body, info)
}

func TestInlineFunc(t *testing.T) {
	ctx := query.NewEmptyContext()

	t.Run("constant closure", func(t *testing.T) {
		require := require.New(t)
		f := compile(t, ctx, closure(lit(query.Int(10))))
		c, ok := f.(query.Constant)
		require.True(ok)
		fi, ok := c.Val().(*FuncItem)
		require.True(ok)
		require.Equal(1, fi.Arity())
		_, named := fi.FuncName()
		require.False(named)

		res, err := query.Invoke(ctx, info, fi, query.Int(5))
		require.NoError(err)
		require.Equal(query.Int(15), res)
		require.Equal(0, ctx.StackDepth())

		_, err = query.Invoke(ctx, info, fi)
		require.Error(err)
		require.True(query.ErrArity.Is(err))
	})

	t.Run("dynamic closure", func(t *testing.T) {
		require := require.New(t)
		f := compile(t, ctx, closure(dynamic(query.Int(10))))
		_, ok := f.(*InlineFunc)
		require.True(ok)
		require.True(f.Type().One())

		it, err := f.Item(ctx)
		require.NoError(err)
		res, err := query.Invoke(ctx, info, it.(query.FItem), query.Int(1))
		require.NoError(err)
		require.Equal(query.Int(11), res)
	})

	t.Run("promoted argument", func(t *testing.T) {
		require := require.New(t)
		fi := compile(t, ctx, closure(lit(query.Int(1)))).(query.Constant).Val().(query.FItem)
		res, err := query.Invoke(ctx, info, fi, query.Untyped("41"))
		require.NoError(err)
		require.Equal(query.Int(42), res)

		_, err = query.Invoke(ctx, info, fi, query.Str("41"))
		require.Error(err)
	})
}

func TestDynFuncCall(t *testing.T) {
	ctx := query.NewEmptyContext()

	t.Run("inlined", func(t *testing.T) {
		require := require.New(t)
		f := compile(t, ctx, closure(lit(query.Int(10))))
		e := compile(t, ctx, NewDynFuncCall(f, info, lit(query.Int(5))))
		c, ok := e.(query.Constant)
		require.True(ok, "expected constant, got %s", e)
		require.Equal(query.Int(15), c.Val())
	})

	t.Run("dynamic argument", func(t *testing.T) {
		require := require.New(t)
		f := compile(t, ctx, closure(lit(query.Int(10))))
		scope := query.NewVarScope()
		e, err := NewDynFuncCall(f, info, dynamic(query.Int(5))).Compile(ctx, scope)
		require.NoError(err)
		_, ok := e.(*Let)
		require.True(ok, "expected let, got %s", e)

		frame := scope.Enter(ctx)
		defer scope.Exit(ctx, frame)
		require.Equal(intItems(15), eval(t, ctx, e))
	})

	t.Run("dynamic function", func(t *testing.T) {
		require := require.New(t)
		f := compile(t, ctx, closure(dynamic(query.Int(10))))
		e := compile(t, ctx, NewDynFuncCall(f, info, lit(query.Int(5))))
		_, ok := e.(*DynFuncCall)
		require.True(ok)
		require.Equal(intItems(15), eval(t, ctx, e))
	})

	t.Run("arity", func(t *testing.T) {
		require := require.New(t)
		f := compile(t, ctx, closure(lit(query.Int(10))))
		_, err := NewDynFuncCall(f, info).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrArity.Is(err))
	})

	t.Run("not a function", func(t *testing.T) {
		require := require.New(t)
		_, err := NewDynFuncCall(lit(query.Int(1)), info).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrFuncExpected.Is(err))

		_, err = NewDynFuncCall(dynamic(query.Str("f")), info).Value(ctx)
		require.Error(err)
		require.True(query.ErrFuncExpected.Is(err))
	})
}

func TestRefinedVarNarrowsParents(t *testing.T) {
	ctx := query.NewEmptyContext()

	t.Run("arith", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), nil, info)
		plus := NewPlus(NewVarRef(v, info), lit(query.Int(1)), info)
		require.Nil(plus.Specialized())
		require.True(plus.Type().MayBeZero())

		e, err := NewFor(v, nil, dynamic(query.NewIntSeq(1, 2, 3)), plus, info).Compile(ctx, scope)
		require.NoError(err)
		f, ok := e.(*For)
		require.True(ok, "expected for, got %s", e)
		a, ok := f.Return.(*Arith)
		require.True(ok)
		require.NotNil(a.Specialized())
		require.True(a.Specialized().Eq(query.IntegerType))
		require.True(a.Type().One())
		require.True(e.Type().Equal(query.CardOf(query.IntegerType, 3, 3)), "type %s", e.Type())

		frame := scope.Enter(ctx)
		defer scope.Exit(ctx, frame)
		require.Equal(intItems(2, 3, 4), eval(t, ctx, e))
	})

	t.Run("cast", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), nil, info)
		cast := NewCast(NewVarRef(v, info), query.IntegerZeroOne, info)
		require.True(cast.Type().MayBeZero())

		e, err := NewLet(v, dynamic(query.Str("7")), cast, info).Compile(ctx, scope)
		require.NoError(err)
		require.True(e.Type().One(), "type %s", e.Type())

		frame := scope.Enter(ctx)
		defer scope.Exit(ctx, frame)
		require.Equal(intItems(7), eval(t, ctx, e))
	})

	t.Run("filter", func(t *testing.T) {
		require := require.New(t)
		scope := query.NewVarScope()
		v := scope.NewVar(query.NewQName("", "x"), nil, info)
		f := NewFilter(NewVarRef(v, info), info, posCmp(Le, 5))
		require.Equal(int64(0), f.Type().MinSize())

		e, err := NewLet(v, dynamic(query.NewIntSeq(1, 2)), f, info).Compile(ctx, scope)
		require.NoError(err)
		require.Equal(int64(2), e.Type().Size(), "type %s", e.Type())

		frame := scope.Enter(ctx)
		defer scope.Exit(ctx, frame)
		require.Equal(intItems(1, 2), eval(t, ctx, e))
	})
}

// random is a nondeterministic expression.
type random struct {
	opaque
}

func (r *random) Has(f query.Flag) bool { return f == query.FlagNdt }

func (r *random) Compile(*query.Context, *query.VarScope) (query.Expression, error) {
	return r, nil
}

func (r *random) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return r, nil
}

func TestInlineFuncNondeterministicBody(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	f := NewInlineFunc(query.NewVarScope(), nil, nil, nil, &random{opaque{query.Dbl(0.5)}}, info)
	require.True(f.Has(query.FlagNdt))
	require.False(f.Has(query.FlagCtx))
	require.False(Pure(f))

	e := compile(t, ctx, f)
	_, ok := e.(*InlineFunc)
	require.True(ok, "expected inline function, got %s", e)
	require.True(e.Has(query.FlagNdt))

	det := compile(t, ctx, NewInlineFunc(query.NewVarScope(), nil, nil, nil, lit(query.Dbl(0.5)), info))
	require.True(query.IsValue(det))
}
