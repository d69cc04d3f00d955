package trie

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
)

var info = query.NewInputInfo("trie_test", 1, 1)

func build(t *testing.T, n int) *Map {
	t.Helper()
	m := Empty
	for i := 0; i < n; i++ {
		var err error
		m, err = m.Put(info, query.Int(i), query.Str(strconv.Itoa(i)))
		require.NoError(t, err)
	}
	return m
}

func collect(m *Map) map[string]query.Value {
	res := make(map[string]query.Value)
	m.ForEach(func(k query.Item, v query.Value) error {
		res[k.String()] = v
		return nil
	})
	return res
}

func TestMapTraversal(t *testing.T) {
	for _, n := range []int{0, 1, 2, 31, 32, 33, 1000, 5000} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			require := require.New(t)
			m := build(t, n)
			require.Equal(n, m.Len())

			seen := collect(m)
			require.Len(seen, n)
			for i := 0; i < n; i++ {
				v, ok := seen[strconv.Itoa(i)]
				require.True(ok, "missing key %d", i)
				require.Equal(query.Str(strconv.Itoa(i)), v)
			}
		})
	}
}

func TestMapDeterministicOrder(t *testing.T) {
	require := require.New(t)

	a := build(t, 200)
	b := Empty
	for i := 199; i >= 0; i-- {
		var err error
		b, err = b.Put(info, query.Int(i), query.Str(strconv.Itoa(i)))
		require.NoError(err)
	}

	require.Equal(query.Items(a.Keys()), query.Items(b.Keys()))
}

func TestMapPersistence(t *testing.T) {
	require := require.New(t)

	m1 := build(t, 10)
	m2, err := m1.Put(info, query.Int(3), query.Str("three"))
	require.NoError(err)
	m3, err := m1.Delete(info, query.Int(4))
	require.NoError(err)

	v, ok, err := m1.Get(info, query.Int(3))
	require.NoError(err)
	require.True(ok)
	require.Equal(query.Str("3"), v)

	v, _, err = m2.Get(info, query.Int(3))
	require.NoError(err)
	require.Equal(query.Str("three"), v)
	require.Equal(10, m2.Len())

	ok, err = m3.Contains(info, query.Int(4))
	require.NoError(err)
	require.False(ok)
	require.Equal(9, m3.Len())
	require.Equal(10, m1.Len())
}

func TestMapNumericKeys(t *testing.T) {
	require := require.New(t)

	m, err := Empty.Put(info, query.Int(1), query.Str("a"))
	require.NoError(err)

	keys := []query.Item{
		query.Dbl(1),
		query.Flt(1),
		query.NewDec(decimal.New(10, -1)),
	}
	for _, k := range keys {
		v, ok, err := m.Get(info, k)
		require.NoError(err)
		require.True(ok, "%s", k)
		require.Equal(query.Str("a"), v)
	}

	m, err = m.Put(info, query.Dbl(1.0), query.Str("b"))
	require.NoError(err)
	require.Equal(1, m.Len())

	m, err = m.Put(info, query.Str("1"), query.Str("c"))
	require.NoError(err)
	require.Equal(2, m.Len())

	m, err = m.Put(info, query.Untyped("1"), query.Str("d"))
	require.NoError(err)
	require.Equal(2, m.Len())
}

func TestMapInvalidKey(t *testing.T) {
	require := require.New(t)

	_, err := Empty.Put(info, Empty, query.Empty)
	require.Error(err)
	require.True(query.ErrAtomize.Is(err))
}

func TestMapNodeKey(t *testing.T) {
	require := require.New(t)

	m, err := Empty.Put(info, query.NewText("x"), query.Int(1))
	require.NoError(err)
	v, ok, err := m.Get(info, query.Str("x"))
	require.NoError(err)
	require.True(ok)
	require.Equal(query.Int(1), v)
}

func withHash(t *testing.T, f func(string) uint64) {
	old := hashKey
	hashKey = f
	t.Cleanup(func() { hashKey = old })
}

func TestMapCollisions(t *testing.T) {
	require := require.New(t)
	withHash(t, func(s string) uint64 {
		if len(s) > 3 {
			return 42
		}
		return uint64(len(s))
	})

	m := Empty
	words := []string{"beta", "alpha", "gamma", "delta", "ab", "c"}
	for i, w := range words {
		var err error
		m, err = m.Put(info, query.Str(w), query.Int(i))
		require.NoError(err)
	}
	require.Equal(len(words), m.Len())

	seen := collect(m)
	require.Len(seen, len(words))

	m2, err := m.Put(info, query.Str("gamma"), query.Int(100))
	require.NoError(err)
	require.Equal(m.Len(), m2.Len())
	v, _, err := m2.Get(info, query.Str("gamma"))
	require.NoError(err)
	require.Equal(query.Int(100), v)

	for _, w := range words[:3] {
		m2, err = m2.Delete(info, query.Str(w))
		require.NoError(err)
	}
	require.Equal(3, m2.Len())
	ok, err := m2.Contains(info, query.Str("delta"))
	require.NoError(err)
	require.True(ok)
	require.Len(collect(m2), 3)
}

func TestMapCollisionOrder(t *testing.T) {
	require := require.New(t)
	withHash(t, func(string) uint64 { return 7 })

	a, b := Empty, Empty
	for _, w := range []string{"x", "y", "z"} {
		a, _ = a.Put(info, query.Str(w), query.Empty)
	}
	for _, w := range []string{"z", "x", "y"} {
		b, _ = b.Put(info, query.Str(w), query.Empty)
	}
	require.Equal(query.Items(a.Keys()), query.Items(b.Keys()))
}

func TestMapDeleteAll(t *testing.T) {
	require := require.New(t)

	m := build(t, 300)
	for i := 0; i < 300; i++ {
		var err error
		m, err = m.Delete(info, query.Int(i))
		require.NoError(err)
	}
	require.Equal(0, m.Len())
	require.Len(collect(m), 0)

	same, err := m.Delete(info, query.Int(1))
	require.NoError(err)
	require.True(same == m)
}

func TestIterExhausted(t *testing.T) {
	require := require.New(t)

	it := build(t, 3).Iter()
	for i := 0; i < 3; i++ {
		_, _, ok := it.Next()
		require.True(ok)
	}
	_, _, ok := it.Next()
	require.False(ok)
	_, _, ok = it.Next()
	require.False(ok)
}
