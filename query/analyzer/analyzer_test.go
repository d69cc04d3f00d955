package analyzer_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/analyzer"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
	"gopkg.in/src-d/go-xquery.v0/query/expression/function"
)

var info = query.NewInputInfo("analyzer_test", 1, 1)

func lit(v query.Value) query.Expression { return expression.NewLiteral(v, info) }

func TestAnalyzer_CompileBody(t *testing.T) {
	require := require.New(t)
	a := analyzer.NewDefault()
	ctx := query.NewEmptyContext()

	e, err := a.CompileBody(ctx, query.NewVarScope(), expression.NewPlus(lit(query.Int(1)), lit(query.Int(2)), info), "main")
	require.NoError(err)
	c, ok := e.(query.Constant)
	require.True(ok)
	require.Equal(query.Int(3), c.Val())

	_, err = a.CompileBody(ctx, query.NewVarScope(), expression.NewCast(lit(query.NewIntSeq(1, 2)), query.IntegerOne, info), "main")
	require.Error(err)
	require.True(query.ErrInvalidCast.Is(err))
}

func TestAnalyzer_Idempotent(t *testing.T) {
	require := require.New(t)
	a := analyzer.NewDefault()
	ctx := query.NewEmptyContext()
	scope := query.NewVarScope()

	x := scope.NewVar(query.NewQName("", "x"), nil, info)
	body := expression.NewLet(x, function.NewRandomDouble(info),
		expression.NewList(info,
			expression.NewPlus(lit(query.Int(1)), lit(query.Int(2)), info),
			expression.NewVarRef(x, info),
			expression.NewFilter(expression.NewRange(lit(query.Int(1)), lit(query.Int(10)), info), info, lit(query.Int(3))),
			expression.NewVarRef(x, info),
		), info)

	first, err := a.CompileBody(ctx, scope, body, "main")
	require.NoError(err)
	second, err := a.CompileBody(ctx, scope, first, "main")
	require.NoError(err)
	require.True(query.SameAs(first, second), "%s\n%s", query.DebugString(first), query.DebugString(second))
	require.True(first.Type().Equal(second.Type()))
}

func TestAnalyzer_MaxIterations(t *testing.T) {
	var i int64
	infinite := func(*query.Context, *analyzer.Analyzer, *query.VarScope, query.Expression) (query.Expression, error) {
		i++
		return lit(query.Int(i)), nil
	}

	t.Run("builder", func(t *testing.T) {
		require := require.New(t)
		i = 0
		a, err := analyzer.NewBuilder().
			WithMaxIterations(5).
			AddPostAnalyzeRule("infinite", infinite).
			Build()
		require.NoError(err)

		e, err := a.CompileBody(query.NewEmptyContext(), query.NewVarScope(), lit(query.Int(0)), "main")
		require.NoError(err)
		require.Equal(int64(5), i)
		require.Equal(query.Int(5), e.(query.Constant).Val())
	})

	t.Run("context", func(t *testing.T) {
		require := require.New(t)
		i = 0
		a, err := analyzer.NewBuilder().AddPostAnalyzeRule("infinite", infinite).Build()
		require.NoError(err)

		opts := query.DefaultOptions()
		opts.MaxIterations = 3
		ctx := query.NewContext(context.Background(), query.WithOptions(opts))
		_, err = a.CompileBody(ctx, query.NewVarScope(), lit(query.Int(0)), "main")
		require.NoError(err)
		require.Equal(int64(3), i)
	})

	t.Run("batch", func(t *testing.T) {
		require := require.New(t)
		i = 0
		b := &analyzer.Batch{
			Desc:       "test",
			Iterations: 4,
			Rules:      []analyzer.Rule{{Name: "infinite", Apply: infinite}},
		}
		e, err := b.Eval(query.NewEmptyContext(), analyzer.NewDefault(), query.NewVarScope(), lit(query.Int(0)))
		require.Error(err)
		require.True(analyzer.ErrMaxAnalysisIters.Is(err))
		require.Equal(query.Int(4), e.(query.Constant).Val())
	})
}

func TestAnalyzer_BatchFixpoint(t *testing.T) {
	require := require.New(t)
	var calls int
	equivalent := func(_ *query.Context, _ *analyzer.Analyzer, _ *query.VarScope, e query.Expression) (query.Expression, error) {
		calls++
		if calls < 4 {
			return lit(query.Int(1)), nil
		}
		return e, nil
	}
	b := &analyzer.Batch{Desc: "test", Iterations: 100, Rules: []analyzer.Rule{{Name: "equivalent", Apply: equivalent}}}

	e, err := b.Eval(query.NewEmptyContext(), nil, query.NewVarScope(), lit(query.Int(0)))
	require.NoError(err)
	require.Equal(2, calls)
	require.Equal(query.Int(1), e.(query.Constant).Val())

	calls = 0
	b.Iterations = 0
	e, err = b.Eval(query.NewEmptyContext(), nil, query.NewVarScope(), lit(query.Int(0)))
	require.NoError(err)
	require.Equal(0, calls)
	require.Equal(query.Int(0), e.(query.Constant).Val())
}

// wrongType is a constant whose value is not an instance of its type.
type wrongType struct {
	*expression.Literal
}

func (wrongType) Type() *query.Cardinality { return query.EmptyCard }

func TestAnalyzer_Validation(t *testing.T) {
	require := require.New(t)
	a, err := analyzer.NewBuilder().
		AddPreValidationRule("corrupt", func(_ *query.Context, _ *analyzer.Analyzer, _ *query.VarScope, e query.Expression) (query.Expression, error) {
			return expression.NewList(info, e, wrongType{expression.NewLiteral(query.Int(1), info)}), nil
		}).
		Build()
	require.NoError(err)

	_, err = a.CompileBody(query.NewEmptyContext(), query.NewVarScope(), lit(query.Int(0)), "main")
	require.Error(err)
	require.True(analyzer.ErrInvalidType.Is(err))
}

func TestAnalyzer_Analyze(t *testing.T) {
	require := require.New(t)
	a := analyzer.NewDefault()

	v := query.NewStaticVar(query.NewQName("", "a"), nil, expression.NewPlus(lit(query.Int(1)), lit(query.Int(2)), info), info)
	mod := query.NewMainModule(query.NewMainExpr(nil,
		expression.NewMult(expression.NewStaticVarRef(v, info), lit(query.Int(2)), info), info))
	require.NoError(mod.DeclareVar(v))

	ctx := query.NewEmptyContext()
	require.NoError(a.Analyze(ctx, mod))
	require.Nil(ctx.Compiler)
	require.Equal(query.Compiled, v.State())

	c, ok := mod.Main.Body().(query.Constant)
	require.True(ok)
	require.Equal(query.Int(6), c.Val())
}

func TestAnalyzer_Metrics(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()

	unfolded := false
	unfold := func(_ *query.Context, _ *analyzer.Analyzer, _ *query.VarScope, e query.Expression) (query.Expression, error) {
		if unfolded {
			return e, nil
		}
		unfolded = true
		return expression.NewPlus(lit(query.Int(1)), lit(query.Int(1)), info), nil
	}
	a, err := analyzer.NewBuilder().
		WithRegisterer(reg).
		AddPreAnalyzeRule("unfold", unfold).
		Build()
	require.NoError(err)

	f := query.NewStaticFunc(query.QName{Prefix: "local", Local: "f"}, nil, info)
	f.SetBody(lit(query.Int(1)))
	v := query.NewStaticVar(query.NewQName("", "a"), nil, lit(query.Int(1)), info)
	mod := query.NewMainModule(query.NewMainExpr(nil, lit(query.Int(2)), info))
	require.NoError(mod.DeclareVar(v))
	require.NoError(mod.DeclareFunc(f))
	require.NoError(a.Analyze(query.NewEmptyContext(), mod))

	// builders sharing a registry share the collectors
	_, err = analyzer.NewBuilder().WithRegisterer(reg).Build()
	require.NoError(err)

	families, err := reg.Gather()
	require.NoError(err)

	counters := map[string]float64{}
	var compilations uint64
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "xquery_analyzer_compile_seconds":
				compilations = m.GetHistogram().GetSampleCount()
			default:
				for _, l := range m.GetLabel() {
					counters[mf.GetName()+"/"+l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}

	require.Equal(uint64(1), compilations)
	require.Equal(map[string]float64{
		"xquery_analyzer_compiled_declarations_total/variable": 1,
		"xquery_analyzer_compiled_declarations_total/function": 1,
		"xquery_analyzer_compiled_declarations_total/main":     1,
		"xquery_analyzer_rewrites_total/Arith":                 1,
	}, counters)
}

func TestAnalyzer_DebugContext(t *testing.T) {
	require := require.New(t)
	var a *analyzer.Analyzer
	require.NotPanics(func() {
		a.PushDebugContext("x")
		a.Log("message %d", 1)
		a.PopDebugContext()
		a.LogExpr(lit(query.Int(1)))
	})

	a, err := analyzer.NewBuilder().WithDebug().WithVerbose().Build()
	require.NoError(err)
	require.True(a.Debug)
	require.True(a.Verbose)
	require.Len(a.Batches, 7)
}
