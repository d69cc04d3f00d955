package function

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
)

var info = query.NewInputInfo("function_test", 1, 1)

func lit(v query.Value) query.Expression { return expression.NewLiteral(v, info) }

func ints(vals ...int64) query.Expression { return lit(query.NewIntSeq(vals...)) }

func rangeOf(start, size int64) query.Expression { return lit(query.NewRange(start, size)) }

// lambda compiles an inline function without closure taking integers to a
// function item literal.
func lambda(t *testing.T, ctx *query.Context, arity int, body func(p ...query.Expression) query.Expression) query.Expression {
	t.Helper()
	scope := query.NewVarScope()
	params := make([]*query.Var, arity)
	refs := make([]query.Expression, arity)
	for i := range params {
		params[i] = scope.NewParam(query.NewQName("", fmt.Sprintf("p%d", i)), query.IntegerOne, info)
		refs[i] = expression.NewVarRef(params[i], info)
	}
	f, err := expression.NewInlineFunc(scope, params, nil, nil, body(refs...), info).
		Compile(ctx, query.NewVarScope())
	require.NoError(t, err)
	require.True(t, query.IsValue(f))
	return f
}

func compile(t *testing.T, ctx *query.Context, e query.Expression) query.Expression {
	t.Helper()
	e, err := e.Compile(ctx, query.NewVarScope())
	require.NoError(t, err)
	return e
}

func eval(t *testing.T, ctx *query.Context, e query.Expression) []query.Item {
	t.Helper()
	iter, err := e.Iter(ctx)
	require.NoError(t, err)
	items, err := query.Collect(iter)
	require.NoError(t, err)
	return items
}

func intItems(vals ...int64) []query.Item {
	items := make([]query.Item, len(vals))
	for i, v := range vals {
		items[i] = query.Int(v)
	}
	return items
}

func TestForEach(t *testing.T) {
	ctx := query.NewEmptyContext()
	inc := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression {
		return expression.NewPlus(p[0], lit(query.Int(1)), info)
	})

	t.Run("unrolled", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewForEach(info, ints(1, 2, 3), inc))
		require.True(query.IsValue(e), "got %s", e)
		require.Equal(intItems(2, 3, 4), query.Items(e.(query.Constant).Val()))
	})

	t.Run("lazy", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewForEach(info, rangeOf(1, 20), inc))
		require.IsType(&ForEach{}, e)
		require.Equal(int64(20), e.Type().MinSize())
		require.Equal(int64(20), e.Type().MaxSize())

		items := eval(t, ctx, e)
		require.Len(items, 20)
		require.Equal(query.Int(2), items[0])
		require.Equal(query.Int(21), items[19])
	})

	t.Run("empty", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewForEach(info, lit(query.Empty), inc))
		require.True(query.IsEmpty(e))
	})

	t.Run("arity", func(t *testing.T) {
		require := require.New(t)
		pair := lambda(t, ctx, 2, func(p ...query.Expression) query.Expression { return p[0] })
		_, err := NewForEach(info, rangeOf(1, 20), pair).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))
	})

	t.Run("not a function", func(t *testing.T) {
		require := require.New(t)
		_, err := NewForEach(info, rangeOf(1, 20), lit(query.Int(1))).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))
	})
}

func TestForEachPartialConsumption(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	double := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression {
		return expression.NewList(info, p[0], p[0])
	})
	e := compile(t, ctx, NewForEach(info, rangeOf(1, 1<<40), double))
	require.Equal(int64(1<<41), e.Type().Size())

	depth := ctx.StackDepth()
	iter, err := e.Iter(ctx)
	require.NoError(err)
	for i := 0; i < 5; i++ {
		it, err := iter.Next()
		require.NoError(err)
		require.Equal(query.Int(i/2+1), it)
	}
	require.NoError(iter.Close())
	require.Equal(depth, ctx.StackDepth())
}

func TestFilter(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	big := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression {
		return expression.NewCompare(p[0], lit(query.Int(15)), expression.Gt, info)
	})
	e := compile(t, ctx, NewFilter(info, rangeOf(1, 20), big))
	require.Equal(int64(0), e.Type().MinSize())
	require.Equal(int64(20), e.Type().MaxSize())
	require.Equal(intItems(16, 17, 18, 19, 20), eval(t, ctx, e))

	e = compile(t, ctx, NewFilter(info, lit(query.Empty), big))
	require.True(query.IsEmpty(e))

	notBool := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression { return p[0] })
	e = compile(t, ctx, NewFilter(info, rangeOf(1, 20), notBool))
	_, err := e.Value(ctx)
	require.Error(err)
	require.True(query.ErrInvalidCast.Is(err))
}

func TestForEachPair(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	add := lambda(t, ctx, 2, func(p ...query.Expression) query.Expression {
		return expression.NewPlus(p[0], p[1], info)
	})
	e := compile(t, ctx, NewForEachPair(info, rangeOf(1, 20), rangeOf(100, 5), add))
	require.Equal(int64(5), e.Type().Size())
	require.Equal(intItems(101, 103, 105, 107, 109), eval(t, ctx, e))

	e = compile(t, ctx, NewForEachPair(info, rangeOf(1, 20), lit(query.Empty), add))
	require.True(query.IsEmpty(e))

	_, err := NewForEachPair(info, rangeOf(1, 20), rangeOf(1, 20), lit(query.Empty)).
		Compile(ctx, query.NewVarScope())
	require.Error(err)
}

func TestFolds(t *testing.T) {
	ctx := query.NewEmptyContext()
	minusLeft := lambda(t, ctx, 2, func(p ...query.Expression) query.Expression {
		return expression.NewMinus(p[0], p[1], info)
	})
	minusRight := lambda(t, ctx, 2, func(p ...query.Expression) query.Expression {
		return expression.NewMinus(p[0], p[1], info)
	})
	plus := lambda(t, ctx, 2, func(p ...query.Expression) query.Expression {
		return expression.NewPlus(p[0], p[1], info)
	})

	foldl := func(n int64) int64 {
		acc := int64(0)
		for i := int64(1); i <= n; i++ {
			acc = acc - i
		}
		return acc
	}
	foldr := func(n int64) int64 {
		acc := int64(0)
		for i := n; i >= 1; i-- {
			acc = i - acc
		}
		return acc
	}

	for _, n := range []int64{3, 50} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			require := require.New(t)
			zero := lit(query.Int(0))

			e := compile(t, ctx, NewFoldLeft(info, rangeOf(1, n), zero, minusLeft))
			require.Equal(intItems(foldl(n)), eval(t, ctx, e))

			e = compile(t, ctx, NewFoldRight(info, rangeOf(1, n), zero, minusRight))
			require.Equal(intItems(foldr(n)), eval(t, ctx, e))

			l := compile(t, ctx, NewFoldLeft(info, rangeOf(1, n), zero, plus))
			r := compile(t, ctx, NewFoldRight(info, rangeOf(1, n), zero, plus))
			require.Equal(eval(t, ctx, l), eval(t, ctx, r))
		})
	}

	t.Run("unrolled", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewFoldLeft(info, ints(1, 2, 3), lit(query.Int(0)), minusLeft))
		require.True(query.IsValue(e), "got %s", e)
		require.Equal(intItems(-6), query.Items(e.(query.Constant).Val()))
	})

	t.Run("empty", func(t *testing.T) {
		require := require.New(t)
		seed := rangeOf(7, 2)
		e := compile(t, ctx, NewFoldLeft(info, lit(query.Empty), seed, plus))
		require.True(e == seed)
		e = compile(t, ctx, NewFoldRight(info, lit(query.Empty), seed, plus))
		require.True(e == seed)
	})

	t.Run("arity", func(t *testing.T) {
		require := require.New(t)
		one := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression { return p[0] })
		_, err := NewFoldLeft(info, rangeOf(1, 20), lit(query.Int(0)), one).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))
	})
}

func TestFoldErrorPropagation(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	div := lambda(t, ctx, 2, func(p ...query.Expression) query.Expression {
		return expression.NewArith(p[0], p[1], expression.IDiv, info)
	})
	e := compile(t, ctx, NewFoldLeft(info, ints(1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1), lit(query.Int(10)), div))
	depth := ctx.StackDepth()
	_, err := e.Value(ctx)
	require.Error(err)
	require.True(query.ErrDivisionByZero.Is(err))
	require.Equal(depth, ctx.StackDepth())
}

func TestCount(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	e := compile(t, ctx, NewCount(info, rangeOf(1, 42)))
	require.True(query.IsValue(e))
	require.Equal(intItems(42), eval(t, ctx, e))

	e = compile(t, ctx, NewCount(info, NewRandomDouble(info)))
	require.IsType(&Count{}, e)
	require.Equal(intItems(1), eval(t, ctx, e))

	big := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression {
		return expression.NewCompare(p[0], lit(query.Int(15)), expression.Gt, info)
	})
	e = compile(t, ctx, NewCount(info, NewFilter(info, rangeOf(1, 20), big)))
	require.IsType(&Count{}, e)
	require.Equal(intItems(5), eval(t, ctx, e))
}

func TestEmptyExists(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	e := compile(t, ctx, NewEmpty(info, lit(query.Empty)))
	require.Equal([]query.Item{query.Bln(true)}, eval(t, ctx, e))
	e = compile(t, ctx, NewExists(info, rangeOf(1, 3)))
	require.Equal([]query.Item{query.Bln(true)}, eval(t, ctx, e))

	none := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression {
		return expression.NewCompare(p[0], lit(query.Int(100)), expression.Gt, info)
	})
	e = compile(t, ctx, NewEmpty(info, NewFilter(info, rangeOf(1, 20), none)))
	require.IsType(&Empty{}, e)
	require.Equal([]query.Item{query.Bln(true)}, eval(t, ctx, e))
}

func TestRandomDouble(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	e := compile(t, ctx, NewRandomDouble(info))
	require.True(e.Has(query.FlagNdt))
	require.False(query.IsValue(e))

	it, err := e.Item(ctx)
	require.NoError(err)
	d := float64(it.(query.Dbl))
	require.True(d >= 0 && d < 1)

	e = compile(t, ctx, NewForEach(info, lit(query.Empty), lambda(t, ctx, 1,
		func(p ...query.Expression) query.Expression { return p[0] })))
	require.True(query.IsEmpty(e))
}

func TestHigherOrderCanceled(t *testing.T) {
	cctx, cancel := context.WithCancel(context.Background())
	ctx := query.NewContext(cctx)
	inc := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression {
		return expression.NewPlus(p[0], lit(query.Int(1)), info)
	})
	positive := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression {
		return expression.NewCompare(p[0], lit(query.Int(0)), expression.Gt, info)
	})
	plus := lambda(t, ctx, 2, func(p ...query.Expression) query.Expression {
		return expression.NewPlus(p[0], p[1], info)
	})
	cancel()

	testCases := []struct {
		name string
		e    query.Expression
	}{
		{"for-each", NewForEach(info, rangeOf(1, 1<<20), inc)},
		{"filter", NewFilter(info, rangeOf(1, 1<<20), positive)},
		{"fold-left", NewFoldLeft(info, rangeOf(1, 1<<20), lit(query.Int(0)), plus)},
		{"fold-right", NewFoldRight(info, rangeOf(1, 1<<20), lit(query.Int(0)), plus)},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			iter, err := tt.e.Iter(ctx)
			if err == nil {
				_, err = query.Collect(iter)
			}
			require.Equal(t, context.Canceled, err)
		})
	}
}
