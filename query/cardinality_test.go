package query

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCardOf(t *testing.T) {
	require := require.New(t)

	require.Equal(EmptyCard, CardOf(IntegerType, 0, 0))
	require.Equal(AnyCard, CardOf(ItemType, 0, -5))
	require.Equal(int64(-1), CardOf(IntegerType, 1, -7).MaxSize())
	require.Panics(func() { CardOf(IntegerType, 2, 1) })

	c := CardOf(StringType, 2, 2)
	require.Equal(int64(2), c.Size())
	require.True(c.NonEmpty())
	require.False(c.ZeroOrOne())
	require.Equal(OccOneMore, c.Occ())
	require.Equal("xs:string{2,2}", c.String())

	require.Equal("xs:integer?", ZeroOrOne(IntegerType).String())
	require.Equal("xs:integer*", ZeroOrMore(IntegerType).String())
	require.Equal("empty-sequence()", EmptyCard.String())
	require.Equal(int64(-1), ZeroOrMore(IntegerType).Size())
}

func TestCardOfType(t *testing.T) {
	testCases := []struct {
		st       *SeqType
		min, max int64
	}{
		{IntegerOne, 1, 1},
		{IntegerZeroOne, 0, 1},
		{ItemZeroMore, 0, -1},
		{NewSeqType(StringType, OccOneMore), 1, -1},
		{EmptySeqType, 0, 0},
	}

	for _, tt := range testCases {
		t.Run(tt.st.String(), func(t *testing.T) {
			c := CardOfType(tt.st)
			require.Equal(t, tt.min, c.MinSize())
			require.Equal(t, tt.max, c.MaxSize())
		})
	}
}

func TestCardinalityOps(t *testing.T) {
	require := require.New(t)
	one := One(IntegerType)
	opt := ZeroOrOne(DoubleType)
	many := ZeroOrMore(StringType)

	c := one.Plus(opt)
	require.Equal(int64(1), c.MinSize())
	require.Equal(int64(2), c.MaxSize())
	require.True(c.Type().Eq(NumericType))
	require.Equal(one, EmptyCard.Plus(one))
	require.Equal(one, one.Plus(EmptyCard))

	c = one.Or(EmptyCard)
	require.True(c.Type().Eq(IntegerType))
	require.Equal(int64(0), c.MinSize())
	require.Equal(int64(1), c.MaxSize())

	c = one.Union(many)
	require.True(c.Type().Eq(AnyAtomicType))
	require.False(c.IsBounded())

	require.Nil(one.Intersect(One(StringType)))
	require.Equal(EmptyCard, opt.Intersect(many))
	require.Nil(CardOf(IntegerType, 3, 3).Intersect(ZeroOrOne(IntegerType)))
	c = ZeroOrMore(NumericType).Intersect(CardOf(IntegerType, 1, 4))
	require.True(c.Equal(CardOf(IntegerType, 1, 4)))

	require.True(one.InstanceOf(ZeroOrMore(DecimalType)))
	require.False(many.InstanceOf(One(StringType)))
	require.True(EmptyCard.InstanceOf(ZeroOrOne(BooleanType)))

	c = CardOf(IntegerType, 2, 3).Multiply(CardOf(StringType, 1, 4))
	require.True(c.Equal(CardOf(IntegerType, 2, 12)))
	require.Equal(EmptyCard, one.Multiply(EmptyCard))
	require.False(one.Multiply(many).IsBounded())
}

func TestCardinalitySubSeq(t *testing.T) {
	testCases := []struct {
		name          string
		card          *Cardinality
		start, length int64
		min, max      int64
	}{
		{"tail", CardOf(IntegerType, 3, 5), 2, -1, 2, 4},
		{"past end", CardOf(IntegerType, 3, 5), 7, -1, 0, 0},
		{"unbounded", CardOf(IntegerType, 1, -1), 3, -1, 0, -1},
		{"window", CardOf(IntegerType, 3, 10), 2, 4, 2, 4},
		{"short window", CardOf(IntegerType, 0, 3), 2, 4, 0, 2},
		{"zero length", CardOf(IntegerType, 0, 3), 1, 0, 0, 0},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			var c *Cardinality
			if tt.length < 0 {
				c = tt.card.SubSeq(tt.start)
			} else {
				c = tt.card.SubSeqLen(tt.start, tt.length)
			}
			require.Equal(t, tt.min, c.MinSize(), "%s", c)
			require.Equal(t, tt.max, c.MaxSize(), "%s", c)
		})
	}
}

func TestCardinalityWith(t *testing.T) {
	require := require.New(t)
	c := CardOf(IntegerType, 2, 5)

	require.Equal(c, c.WithRange(2, 5))
	require.Equal(int64(7), c.WithMinSize(7).MaxSize())
	require.Equal(int64(1), c.WithMaxSize(1).MinSize())
	require.Equal(int64(-1), c.WithSize(-1).MaxSize())
	require.True(c.WithType(StringType).Type().Eq(StringType))
	require.Equal(EmptyCard, EmptyCard.WithType(StringType))
}

func TestCardinalityHash(t *testing.T) {
	require := require.New(t)
	a := CardOf(IntegerType, 1, 3)
	b := CardOf(IntegerType, 1, 3)
	require.Equal(a.Hash(), b.Hash())
	require.NotEqual(a.Hash(), CardOf(IntegerType, 1, 4).Hash())
	require.NotEqual(a.Hash(), CardOf(DecimalType, 1, 3).Hash())
}

func randomCard(rnd *rand.Rand) *Cardinality {
	types := []Type{IntegerType, DoubleType, StringType, DecimalType, ElementType}
	min := int64(rnd.Intn(4))
	max := int64(-1)
	if rnd.Intn(4) > 0 {
		max = min + int64(rnd.Intn(4))
	}
	return CardOf(types[rnd.Intn(len(types))], min, max)
}

func within(c *Cardinality, n int64) bool {
	return n >= c.MinSize() && (!c.IsBounded() || n <= c.MaxSize())
}

// The size ranges of combined cardinalities contain every possible size of
// the combined sequences.
func TestCardinalityRanges(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	sizes := func(c *Cardinality) []int64 {
		max := c.MaxSize()
		if max < 0 {
			max = c.MinSize() + 3
		}
		var out []int64
		for n := c.MinSize(); n <= max; n++ {
			out = append(out, n)
		}
		return out
	}

	for i := 0; i < 300; i++ {
		a, b := randomCard(rnd), randomCard(rnd)
		for _, n := range sizes(a) {
			require.True(t, within(a.Or(b), n), "%s or %s", a, b)
			require.True(t, within(a.Union(b), n), "%s union %s", a, b)
			for _, m := range sizes(b) {
				require.True(t, within(a.Plus(b), n+m), "%s plus %s", a, b)
				require.True(t, within(a.Multiply(b), n*m), "%s times %s", a, b)
				if r := a.Intersect(b); n == m && a.Type().InstanceOf(b.Type()) {
					require.NotNil(t, r, "%s intersect %s", a, b)
					require.True(t, within(r, n), "%s intersect %s", a, b)
				}
			}
		}
		require.True(t, a.InstanceOf(a.Union(b)))
		require.True(t, a.InstanceOf(a.Or(b)))
	}
}

func TestTypeHierarchy(t *testing.T) {
	require := require.New(t)

	require.True(IntegerType.InstanceOf(NumericType))
	require.False(NumericType.InstanceOf(IntegerType))
	require.True(ElementType.InstanceOf(AnyNodeType))
	require.True(UnionType(IntegerType, DoubleType).Eq(NumericType))
	require.True(UnionType(ElementType, TextType).Eq(AnyNodeType))
	require.True(UnionType(ElementType, IntegerType).Eq(ItemType))
	require.Nil(IntersectType(StringType, IntegerType))
	require.True(IntersectType(ItemType, BooleanType).Eq(BooleanType))

	f := NewFuncType(IntegerOne, ItemZeroMore)
	g := NewFuncType(ItemZeroMore, IntegerOne)
	require.True(f.InstanceOf(g))
	require.False(g.InstanceOf(f))
	require.True(f.InstanceOf(AnyFuncType))
	require.Equal(1, f.Arity())
	require.Equal(-1, AnyFuncType.Arity())
	require.Equal("function(item()*) as xs:integer", f.String())
	require.True(AnyMapType.InstanceOf(ItemType))
	require.True(ArityType(2).Eq(NewFuncType(ItemZeroMore, ItemZeroMore, ItemZeroMore)))
}

func TestCardinalityOverflow(t *testing.T) {
	require := require.New(t)
	huge := CardOf(IntegerType, 1<<40, 1<<40)

	c := huge.Multiply(huge)
	require.False(c.IsBounded())
	require.Equal(int64(math.MaxInt64), c.MinSize())

	c = CardOf(IntegerType, 0, 1<<40).Multiply(huge)
	require.Equal(int64(0), c.MinSize())
	require.False(c.IsBounded())

	c = CardOf(IntegerType, 0, math.MaxInt64).Plus(CardOf(IntegerType, 1, 1))
	require.Equal(int64(1), c.MinSize())
	require.False(c.IsBounded())

	c = CardOf(IntegerType, math.MaxInt64, -1).Plus(One(IntegerType))
	require.Equal(int64(math.MaxInt64), c.MinSize())
	require.False(c.IsBounded())

	require.True(CardOf(IntegerType, 1<<20, 1<<20).Multiply(huge).Equal(CardOf(IntegerType, 1<<60, 1<<60)))
}
