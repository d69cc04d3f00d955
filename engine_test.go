package xquery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/boltstore"
	"gopkg.in/src-d/go-xquery.v0/mem"
	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
	"gopkg.in/src-d/go-xquery.v0/query/expression/function"
)

var info = query.NewInputInfo("engine_test", 1, 1)

func lit(v query.Value) query.Expression { return expression.NewLiteral(v, info) }

func str(s string) query.Expression { return lit(query.Str(s)) }

func newStorage() *mem.Storage {
	docs := mem.NewResource("docs")
	docs.AddDocument("1.xml", query.NewElement("a", nil, query.NewText("one")))
	docs.AddDocument("2.xml", query.NewElement("a", nil, query.NewText("two")))
	docs.AddDocument("3.xml", query.NewElement("b", nil, query.NewText("three")))
	return mem.NewStorage(docs)
}

func open(t *testing.T, args ...query.Expression) query.Expression {
	t.Helper()
	e, err := function.NewOpen(info, args...)
	require.NoError(t, err)
	return e
}

func count(t *testing.T, resource string) *query.MainModule {
	body := function.NewCount(info, open(t, str(resource)))
	return query.NewMainModule(query.NewMainExpr(nil, body, info))
}

func store(resource, path string, v query.Value) *query.MainModule {
	body := function.NewStore(info, str(resource), str(path), lit(v))
	return query.NewMainModule(query.NewMainExpr(nil, body, info))
}

func doubles() *query.MainModule {
	scope := query.NewVarScope()
	x := scope.NewVar(query.NewQName("", "x"), nil, info)
	body := expression.NewFor(x, nil,
		expression.NewRange(lit(query.Int(1)), lit(query.Int(3)), info),
		expression.NewMult(expression.NewVarRef(x, info), lit(query.Int(2)), info), info)
	return query.NewMainModule(query.NewMainExpr(scope, body, info))
}

func TestEngineQuery(t *testing.T) {
	require := require.New(t)
	e := NewDefault(newStorage())
	ctx := e.NewContext(context.Background())

	iter, locks, err := e.Query(ctx, count(t, "docs"))
	require.NoError(err)
	require.Equal("read: [docs], write: []", locks.String())
	require.Len(e.ProcessList.Processes(), 1)

	items, err := query.Collect(iter)
	require.NoError(err)
	require.Equal([]query.Item{query.Int(3)}, items)
	require.Len(e.ProcessList.Processes(), 0)
}

func TestEngineQueryStreaming(t *testing.T) {
	require := require.New(t)
	e := NewDefault(newStorage())
	ctx := e.NewContext(context.Background())

	iter, locks, err := e.Query(ctx, doubles())
	require.NoError(err)
	require.Equal("read: [], write: []", locks.String())

	it, err := iter.Next()
	require.NoError(err)
	require.Equal(query.Int(2), it)

	procs := e.ProcessList.Processes()
	require.Len(procs, 1)
	require.Equal(ctx.ID(), procs[0].ID)
	require.Equal(locks, procs[0].Locks)

	require.NoError(iter.Close())
	require.Len(e.ProcessList.Processes(), 0)
	require.Equal(0, ctx.StackDepth())
}

func TestEngineQueryKill(t *testing.T) {
	require := require.New(t)
	e := NewDefault(nil)
	ctx := e.NewContext(context.Background())

	scope := query.NewVarScope()
	x := scope.NewVar(query.NewQName("", "x"), nil, info)
	body := expression.NewFor(x, nil,
		expression.NewRange(lit(query.Int(1)), lit(query.Int(1<<40)), info),
		expression.NewMult(expression.NewVarRef(x, info), lit(query.Int(2)), info), info)
	mod := query.NewMainModule(query.NewMainExpr(scope, body, info))

	iter, _, err := e.Query(ctx, mod)
	require.NoError(err)
	for i := int64(1); i <= 3; i++ {
		it, err := iter.Next()
		require.NoError(err)
		require.Equal(query.Int(2*i), it)
	}

	require.True(e.ProcessList.Kill(ctx.ID()))
	_, err = iter.Next()
	require.Equal(context.Canceled, err)
	require.Len(e.ProcessList.Processes(), 0)
	require.NoError(iter.Close())
	require.Equal(0, ctx.StackDepth())
}

func TestEngineCompile(t *testing.T) {
	require := require.New(t)
	e := NewDefault(nil)

	v := query.NewStaticVar(query.NewQName("", "a"), nil,
		expression.NewPlus(lit(query.Int(1)), lit(query.Int(2)), info), info)
	mod := query.NewMainModule(query.NewMainExpr(nil,
		expression.NewMult(expression.NewStaticVarRef(v, info), lit(query.Int(2)), info), info))
	require.NoError(mod.DeclareVar(v))

	compiled, err := e.Compile(e.NewContext(context.Background()), mod)
	require.NoError(err)
	require.Equal(mod, compiled)
	require.Equal(query.Compiled, v.State())
	require.True(query.IsValue(mod.Main.Body()))
	require.True(mod.Type().One())
}

func TestEngineQueryError(t *testing.T) {
	require := require.New(t)
	e := NewDefault(newStorage())

	body := expression.NewCast(lit(query.NewIntSeq(1, 2)), query.IntegerOne, info)
	mod := query.NewMainModule(query.NewMainExpr(nil, body, info))
	_, _, err := e.Query(e.NewContext(context.Background()), mod)
	require.Error(err)
	require.True(query.ErrInvalidCast.Is(err))
	require.Len(e.ProcessList.Processes(), 0)

	iter, _, err := e.Query(e.NewContext(context.Background()), count(t, "missing"))
	if err == nil {
		_, err = query.Collect(iter)
	}
	require.Error(err)
	require.True(query.ErrResourceNotFound.Is(err))
	require.Len(e.ProcessList.Processes(), 0)
}

func TestEngineExclusive(t *testing.T) {
	require := require.New(t)
	cfg := DefaultConfig()
	cfg.Exclusive = true
	e, err := New(newStorage(), cfg, nil)
	require.NoError(err)

	writer, locks, err := e.Query(e.NewContext(context.Background()), store("out", "a.xml", query.Int(1)))
	require.NoError(err)
	require.Equal("read: [], write: [out]", locks.String())

	_, _, err = e.Query(e.NewContext(context.Background()), count(t, "out"))
	require.Error(err)
	require.True(ErrLockConflict.Is(err))

	reader, _, err := e.Query(e.NewContext(context.Background()), count(t, "docs"))
	require.NoError(err)
	require.Len(e.ProcessList.Processes(), 2)

	require.NoError(writer.Close())
	out, _, err := e.Query(e.NewContext(context.Background()), count(t, "out"))
	require.NoError(err)

	items, err := query.Collect(out)
	require.NoError(err)
	require.Equal([]query.Item{query.Int(1)}, items)
	require.NoError(reader.Close())
	require.Len(e.ProcessList.Processes(), 0)
}

func TestEngineImport(t *testing.T) {
	require := require.New(t)
	e := NewDefault(nil)

	lib := query.NewLibraryModule("http://example.com/lib", "lib")
	fn := query.NewStaticFunc(query.QName{URI: lib.Namespace, Prefix: "lib", Local: "answer"}, query.IntegerOne, info)
	fn.SetBody(lit(query.Int(42)))
	require.NoError(lib.DeclareFunc(fn))
	e.AddLibrary(lib)

	mod := query.NewMainModule(query.NewMainExpr(nil, expression.NewStaticFuncCall(fn, info), info))
	require.NoError(e.Import(mod, lib.Namespace))
	require.Equal([]string{lib.Namespace}, mod.Imports())

	err := e.Import(mod, "http://example.com/missing")
	require.Error(err)
	require.True(ErrLibraryNotFound.Is(err))

	err = e.Import(mod, "http://example.com/lib2")
	require.Error(err)
	require.Contains(err.Error(), "maybe you mean http://example.com/lib?")

	iter, _, err := e.Query(e.NewContext(context.Background()), mod)
	require.NoError(err)
	items, err := query.Collect(iter)
	require.NoError(err)
	require.Equal([]query.Item{query.Int(42)}, items)
}

func TestEngineBoltStorage(t *testing.T) {
	require := require.New(t)
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(err)
	defer s.Close()

	e := NewDefault(s)
	for _, path := range []string{"a.xml", "b.xml"} {
		iter, _, err := e.Query(e.NewContext(context.Background()), store("docs", path, query.Str(path)))
		require.NoError(err)
		require.NoError(iter.Close())
	}

	iter, _, err := e.Query(e.NewContext(context.Background()), count(t, "docs"))
	require.NoError(err)
	items, err := query.Collect(iter)
	require.NoError(err)
	require.Equal([]query.Item{query.Int(2)}, items)
}

func TestEngineMetrics(t *testing.T) {
	require := require.New(t)
	r := prometheus.NewRegistry()
	e, err := New(newStorage(), nil, r)
	require.NoError(err)

	iter, _, err := e.Query(e.NewContext(context.Background()), count(t, "docs"))
	require.NoError(err)
	require.NoError(iter.Close())

	families, err := r.Gather()
	require.NoError(err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(names, "xquery_analyzer_compile_seconds")
	require.Contains(names, "xquery_analyzer_compiled_declarations_total")
}

func TestEngineInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analyzer.MaxIterations = 0
	_, err := New(nil, cfg, nil)
	require.Error(t, err)
	require.True(t, ErrInvalidConfig.Is(err))
}
