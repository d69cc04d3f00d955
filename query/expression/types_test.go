package expression

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
)

func TestCast(t *testing.T) {
	ctx := query.NewEmptyContext()

	t.Run("constant", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewCast(lit(query.Str("12")), query.IntegerOne, info))
		require.True(query.IsValue(e))
		require.Equal(query.Int(12), e.(query.Constant).Val())
	})

	t.Run("dynamic", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewCast(dynamic(query.Str(" 12 ")), query.IntegerOne, info))
		_, ok := e.(*Cast)
		require.True(ok)
		require.True(e.Type().One())
		require.True(e.Type().Type().Eq(query.IntegerType))
		require.Equal(intItems(12), eval(t, ctx, e))
	})

	t.Run("redundant", func(t *testing.T) {
		require := require.New(t)
		child := dynamic(query.Dbl(1))
		e := compile(t, ctx, NewCast(child, query.DoubleOne, info))
		require.Equal(child, e)
	})

	t.Run("sequence", func(t *testing.T) {
		require := require.New(t)
		_, err := NewCast(ints(1, 2), query.IntegerOne, info).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))
	})

	t.Run("empty", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewCast(dynamic(query.Empty), query.IntegerOne, info))
		require.True(e.Type().One())
		_, err := e.Value(ctx)
		require.Error(err)
		require.True(query.ErrCastEmpty.Is(err))

		e = compile(t, ctx, NewCast(dynamic(query.Empty), query.IntegerZeroOne, info))
		require.True(e.Type().MayBeZero())
		require.Len(eval(t, ctx, e), 0)
	})

	t.Run("invalid", func(t *testing.T) {
		require := require.New(t)
		_, err := NewCast(dynamic(query.Str("abc")), query.IntegerOne, info).Value(ctx)
		require.Error(err)
		require.True(query.ErrCast.Is(err))
	})
}

func TestTreat(t *testing.T) {
	ctx := query.NewEmptyContext()
	intZeroMore := query.NewSeqType(query.IntegerType, query.OccZeroMore)

	t.Run("valid", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewTreat(dynamic(query.NewIntSeq(1, 2)), intZeroMore, info))
		require.Equal(intItems(1, 2), eval(t, ctx, e))
		require.True(e.Type().MayBeZero())
	})

	t.Run("multiple", func(t *testing.T) {
		require := require.New(t)
		_, err := NewTreat(dynamic(query.NewIntSeq(1, 2)), query.IntegerOne, info).Value(ctx)
		require.Error(err)
		require.True(query.ErrTreatMultiple.Is(err))

		_, err = NewTreat(dynamic(query.NewIntSeq(1, 2)), query.IntegerZeroOne, info).Iter(ctx)
		require.Error(err)
		require.True(query.ErrTreatMultiple.Is(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		require := require.New(t)
		_, err := NewTreat(dynamic(query.Str("a")), query.IntegerOne, info).Value(ctx)
		require.Error(err)
		require.True(query.ErrTreat.Is(err))
	})

	t.Run("empty", func(t *testing.T) {
		require := require.New(t)
		_, err := NewTreat(dynamic(query.Empty), query.IntegerOne, info).Value(ctx)
		require.Error(err)
		require.True(query.ErrTreat.Is(err))

		_, err = NewTreat(dynamic(query.Int(1)), query.EmptySeqType, info).Value(ctx)
		require.Error(err)
		require.True(query.ErrTreat.Is(err))
	})

	t.Run("lazy", func(t *testing.T) {
		require := require.New(t)
		mixed := query.NewItemSeq([]query.Item{query.Int(1), query.Str("a")})
		iter, err := NewTreat(dynamic(mixed), intZeroMore, info).Iter(ctx)
		require.NoError(err)

		it, err := iter.Next()
		require.NoError(err)
		require.Equal(query.Int(1), it)

		_, err = iter.Next()
		require.Error(err)
		require.True(query.ErrTreat.Is(err))
		require.NoError(iter.Close())
	})

	t.Run("constant", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewTreat(lit(query.Int(1)), query.IntegerOne, info))
		require.True(query.IsValue(e))

		_, err := NewTreat(lit(query.Str("a")), query.IntegerOne, info).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrTreat.Is(err))
	})
}

func TestTypeCheck(t *testing.T) {
	ctx := query.NewEmptyContext()

	t.Run("redundant", func(t *testing.T) {
		require := require.New(t)
		child := dynamic(query.Int(1))
		e := compile(t, ctx, NewTypeCheck(child, query.IntegerOne, false, info))
		require.Equal(child, e)
	})

	t.Run("empty", func(t *testing.T) {
		require := require.New(t)
		_, err := NewTypeCheck(NewEmpty(info), query.IntegerOne, false, info).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))
	})

	t.Run("incompatible", func(t *testing.T) {
		require := require.New(t)
		_, err := NewTypeCheck(dynamic(query.Str("a")), query.IntegerOne, false, info).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))

		_, err = NewTypeCheck(dynamic(query.Str("a")), query.IntegerOne, true, info).Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))
	})

	t.Run("promote", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewTypeCheck(dynamic(query.Int(1)), query.DoubleOne, true, info))
		_, ok := e.(*TypeCheck)
		require.True(ok)
		require.True(e.Type().One())
		require.True(e.Type().Type().Eq(query.DoubleType))
		require.Equal([]query.Item{query.Dbl(1)}, eval(t, ctx, e))
	})

	t.Run("untyped", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, NewTypeCheck(lit(query.Untyped("7")), query.IntegerOne, true, info))
		require.True(query.IsValue(e))
		require.Equal(query.Int(7), e.(query.Constant).Val())
	})

	t.Run("occurrence", func(t *testing.T) {
		require := require.New(t)
		e := NewTypeCheck(dynamic(query.NewIntSeq(1, 2)), query.IntegerZeroOne, false, info)
		_, err := e.Compile(ctx, query.NewVarScope())
		require.Error(err)
		require.True(query.ErrInvalidCast.Is(err))

		items := query.NewSeqType(query.IntegerType, query.OccZeroMore)
		c := NewTypeCheck(dynamic(query.NewIntSeq(1, 2)), items, false, info)
		require.Equal(int64(2), c.Type().Size())
	})
}
