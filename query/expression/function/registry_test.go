package function

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
	"gopkg.in/src-d/go-xquery.v0/query/trie"
)

func TestRegistry(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	require.Len(r, len(Defaults))

	f, ok := r.Function("count")
	require.True(ok)
	require.Equal("fn:count", f.FunctionName())

	_, ok = r.Lookup(query.QName{Prefix: "map", Local: "put"}, 2)
	require.False(ok)
	_, ok = r.Lookup(query.QName{Prefix: "map", Local: "put"}, 3)
	require.True(ok)

	_, ok = r.Lookup(query.QName{Prefix: "db", Local: "open"}, 1)
	require.True(ok)
	_, ok = r.Lookup(query.QName{Prefix: "db", Local: "open"}, 2)
	require.True(ok)

	require.Error(r.Register(Defaults[0]))
}

type failingResolver struct{}

func (failingResolver) Function(_ *query.Context, info query.InputInfo, name query.QName, arity int) (query.FItem, error) {
	return nil, query.ErrInvalidCast.New(info, name, query.ArityType(arity))
}

func TestFunctionLookup(t *testing.T) {
	resolver := NewResolver(NewRegistry())
	ctx := query.NewEmptyContext()
	ctx.Resolver = resolver

	lookup := func(name query.QName, arity int64) query.Expression {
		return NewFunctionLookup(info, lit(name), lit(query.Int(arity)))
	}

	t.Run("found", func(t *testing.T) {
		require := require.New(t)
		e := compile(t, ctx, lookup(query.NewQName("", "count"), 1))
		it, err := e.Item(ctx)
		require.NoError(err)
		f, ok := it.(query.FItem)
		require.True(ok)
		require.Equal(1, f.Arity())

		call := compile(t, ctx, expression.NewDynFuncCall(e, info, rangeOf(1, 30)))
		require.Equal(intItems(30), eval(t, ctx, call))
	})

	t.Run("namespace", func(t *testing.T) {
		require := require.New(t)
		name := query.NewQName("http://www.w3.org/2005/xpath-functions/map", "size")
		it, err := compile(t, ctx, lookup(name, 1)).Item(ctx)
		require.NoError(err)
		require.NotNil(it)
	})

	t.Run("missing", func(t *testing.T) {
		require := require.New(t)
		it, err := compile(t, ctx, lookup(query.NewQName("", "count"), 2)).Item(ctx)
		require.NoError(err)
		require.Nil(it)
	})

	t.Run("resolver error", func(t *testing.T) {
		require := require.New(t)
		ctx := query.NewEmptyContext()
		ctx.Resolver = failingResolver{}
		v, err := compile(t, ctx, lookup(query.NewQName("", "count"), 1)).Value(ctx)
		require.NoError(err)
		require.Equal(int64(0), v.Size())
	})

	t.Run("negative arity", func(t *testing.T) {
		require := require.New(t)
		_, err := compile(t, ctx, lookup(query.NewQName("", "count"), -1)).Item(ctx)
		require.Error(err)
		require.True(query.ErrFuncUnknown.Is(err))
	})

	t.Run("name and arity", func(t *testing.T) {
		require := require.New(t)
		f := lookup(query.QName{Prefix: "fn", Local: "for-each"}, 2)

		it, err := compile(t, ctx, NewFunctionArity(info, f)).Item(ctx)
		require.NoError(err)
		require.Equal(query.Int(2), it)

		it, err = compile(t, ctx, NewFunctionName(info, f)).Item(ctx)
		require.NoError(err)
		require.Equal("fn:for-each", it.String())

		anon := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression { return p[0] })
		e := compile(t, ctx, NewFunctionName(info, anon))
		require.True(query.IsEmpty(e))
		e = compile(t, ctx, NewFunctionArity(info, anon))
		require.Equal(intItems(1), eval(t, ctx, e))
	})
}

func TestMapFunctions(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	m := NewMapEntry(info, lit(query.Str("a")), ints(1, 2))
	m = NewMapPut(info, m, lit(query.Int(1)), lit(query.Str("one")))
	m = NewMapPut(info, m, lit(query.Dbl(1)), lit(query.Str("uno")))
	m = compile(t, ctx, m)
	require.True(query.IsValue(m))

	size, err := newMapFunc(mapSize)(info, m)
	require.NoError(err)
	require.Equal(intItems(2), eval(t, ctx, compile(t, ctx, size)))

	get := compile(t, ctx, NewMapGet(info, m, lit(query.Int(1))))
	require.Equal([]query.Item{query.Str("uno")}, eval(t, ctx, get))

	get = compile(t, ctx, NewMapGet(info, m, lit(query.Str("b"))))
	require.Len(eval(t, ctx, get), 0)

	rm, err := newMapFunc(mapRemove)(info, m, lit(query.Str("a")))
	require.NoError(err)
	contains, err := newMapFunc(mapContains)(info, rm, lit(query.Str("a")))
	require.NoError(err)
	require.Equal([]query.Item{query.Bln(false)}, eval(t, ctx, compile(t, ctx, contains)))

	other := NewMapEntry(info, lit(query.Str("a")), lit(query.Str("replaced")))
	merge, err := newMapFunc(mapMerge)(info, expression.NewList(info, m, other))
	require.NoError(err)
	merged := eval(t, ctx, compile(t, ctx, merge))
	require.Len(merged, 1)
	v, ok, err := merged[0].(*trie.Map).Get(info, query.Str("a"))
	require.NoError(err)
	require.True(ok)
	require.Equal(query.Str("replaced"), v)

	_, err = NewMapGet(info, lit(query.Int(1)), lit(query.Int(1))).Value(ctx)
	require.Error(err)
	require.True(query.ErrInvalidCast.Is(err))
}

func TestMapForEach(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	m := trie.Empty
	for i := 0; i < 100; i++ {
		var err error
		m, err = m.Put(info, query.Int(i), query.Int(i*i))
		require.NoError(err)
	}

	scope := query.NewVarScope()
	k := scope.NewParam(query.NewQName("", "k"), query.ItemOne, info)
	v := scope.NewParam(query.NewQName("", "v"), query.ItemZeroMore, info)
	f, err := expression.NewInlineFunc(scope, []*query.Var{k, v}, nil, nil,
		expression.NewVarRef(v, info), info).Compile(ctx, query.NewVarScope())
	require.NoError(err)

	e := compile(t, ctx, NewMapForEach(info, lit(m), f))
	items := eval(t, ctx, e)
	require.Len(items, 100)

	var sum int64
	for _, it := range items {
		sum += int64(it.(query.Int))
	}
	require.Equal(int64(328350), sum)
	require.Equal(items, eval(t, ctx, e))

	iter, err := e.Iter(ctx)
	require.NoError(err)
	first, err := iter.Next()
	require.NoError(err)
	require.Equal(items[0], first)
	require.NoError(iter.Close())

	one := lambda(t, ctx, 1, func(p ...query.Expression) query.Expression { return p[0] })
	_, err = NewMapForEach(info, lit(m), one).Compile(ctx, query.NewVarScope())
	require.Error(err)
}

type storage map[string][]*query.Node

func (s storage) Open(_ *query.Context, resource, _ string) (query.Iter, error) {
	docs, ok := s[resource]
	if !ok {
		return nil, query.ErrResourceNotFound.New(query.InputInfo{}, resource)
	}
	items := make([]query.Item, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	return query.ValueIter(query.NewItemSeq(items)), nil
}

func (s storage) Store(_ *query.Context, resource, path string, v query.Value) error {
	s[resource] = append(s[resource], query.NewDocument(path, query.NewText(query.ValueString(v))))
	return nil
}

func TestDatabase(t *testing.T) {
	require := require.New(t)
	store := storage{"A": {query.NewDocument("a.xml", query.NewText("x"))}}
	ctx := query.NewContext(context.Background(), query.WithStorage(store))

	open, err := NewOpen(info, lit(query.Str("A")))
	require.NoError(err)
	open = compile(t, ctx, open)
	require.False(query.IsValue(open))
	require.Len(eval(t, ctx, open), 1)

	v := query.NewLockVisitor(false)
	require.True(open.Accept(v))
	require.Equal([]string{"A"}, v.Locks())

	missing, err := NewOpen(info, lit(query.Str("B")))
	require.NoError(err)
	_, err = missing.Value(ctx)
	require.Error(err)
	require.True(query.ErrResourceNotFound.Is(err))

	store2 := NewStore(info, lit(query.Str("B")), lit(query.Str("b.xml")), lit(query.Int(1)))
	store2 = compile(t, ctx, store2)
	require.True(store2.Has(query.FlagUpd))
	require.False(query.IsEmpty(store2))
	_, err = store2.Value(ctx)
	require.NoError(err)
	require.Len(store["B"], 1)

	v = query.NewLockVisitor(false)
	require.True(store2.Accept(v))
	require.Equal([]string{"B"}, v.Locks())

	scope := query.NewVarScope()
	name := scope.NewVar(query.NewQName("", "name"), nil, info)
	dynamic, err := NewOpen(info, expression.NewVarRef(name, info))
	require.NoError(err)
	v = query.NewLockVisitor(false)
	require.False(dynamic.Accept(v))
	require.True(v.All())
}

func TestNoStorage(t *testing.T) {
	require := require.New(t)
	ctx := query.NewEmptyContext()

	open, err := NewOpen(info, lit(query.Str("A")), lit(query.Str("doc.xml")))
	require.NoError(err)
	_, err = open.Value(ctx)
	require.Error(err)
	require.True(query.ErrResourceNotFound.Is(err))

	_, err = NewOpen(info)
	require.Error(err)
	require.True(strings.HasPrefix(open.String(), "db:open("))
}
