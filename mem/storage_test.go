package mem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
	"gopkg.in/src-d/go-xquery.v0/query/expression/function"
)

func newStorage() *Storage {
	docs := NewResource("docs")
	docs.AddDocument("b/2.xml", query.NewElement("b", nil, query.NewText("two")))
	docs.AddDocument("a/1.xml", query.NewElement("a", nil, query.NewText("one")))
	docs.AddDocument("a/3.xml", query.NewElement("a", nil, query.NewText("three")))
	return NewStorage(docs)
}

func paths(t *testing.T, iter query.Iter) []string {
	t.Helper()
	items, err := query.Collect(iter)
	require.NoError(t, err)
	var out []string
	for _, it := range items {
		out = append(out, it.(*query.Node).Base)
	}
	return out
}

func TestResource(t *testing.T) {
	require := require.New(t)
	r := NewResource("test")
	require.Equal("test", r.Name())
	require.Len(r.Paths(), 0)

	d := r.AddDocument("x.xml", query.NewText("x"))
	require.Equal(query.DocumentType, d.Kind)
	got, ok := r.Document("x.xml")
	require.True(ok)
	require.Equal(d, got)

	_, ok = r.Document("y.xml")
	require.False(ok)
}

func TestStorageOpen(t *testing.T) {
	testCases := []struct {
		name     string
		path     string
		expected []string
	}{
		{"all", "", []string{"a/1.xml", "a/3.xml", "b/2.xml"}},
		{"prefix", "a/", []string{"a/1.xml", "a/3.xml"}},
		{"exact", "b/2.xml", []string{"b/2.xml"}},
		{"none", "c/", nil},
	}

	s := newStorage()
	ctx := query.NewEmptyContext()
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			iter, err := s.Open(ctx, "docs", tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.expected, paths(t, iter))
		})
	}

	_, err := s.Open(ctx, "missing", "")
	require.Error(t, err)
	require.True(t, query.ErrResourceNotFound.Is(err))

	_, err = s.Open(ctx, "doc", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "doc, maybe you mean docs?")
}

func TestStorageStore(t *testing.T) {
	require := require.New(t)
	s := newStorage()
	ctx := query.NewEmptyContext()

	require.NoError(s.Store(ctx, "out", "r.xml", query.NewIntSeq(1, 2)))
	require.Equal([]string{"docs", "out"}, s.Resources())

	r, ok := s.Resource("out")
	require.True(ok)
	doc, ok := r.Document("r.xml")
	require.True(ok)
	require.Equal("12", doc.StringValue())

	src, _ := s.Resource("docs")
	a, _ := src.Document("a/1.xml")
	require.NoError(s.Store(ctx, "docs", "a/1.xml", query.NewText("new")))
	b, _ := src.Document("a/1.xml")
	require.NotEqual(a, b)
	require.Equal("new", b.StringValue())
}

func TestStorageQuery(t *testing.T) {
	require := require.New(t)
	s := newStorage()
	ctx := query.NewContext(context.Background(), query.WithStorage(s))
	info := query.InputInfo{}

	open, err := function.NewOpen(info, expression.NewLiteral(query.Str("docs"), info), expression.NewLiteral(query.Str("a/"), info))
	require.NoError(err)
	store := function.NewStore(info, expression.NewLiteral(query.Str("copy"), info), expression.NewLiteral(query.Str("all.xml"), info), open)

	_, err = store.Value(ctx)
	require.NoError(err)
	r, ok := s.Resource("copy")
	require.True(ok)
	doc, _ := r.Document("all.xml")
	require.Len(doc.Children, 2)
	require.Equal("onethree", doc.StringValue())
}
