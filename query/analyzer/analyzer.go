package analyzer

import (
	"fmt"
	"os"
	"strings"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"

	"gopkg.in/src-d/go-xquery.v0/query"
)

const debugAnalyzerKey = "DEBUG_ANALYZER"

const maxAnalysisIterations = 1000

// ErrMaxAnalysisIters is thrown when the analysis iterations are exceeded
var ErrMaxAnalysisIters = errors.NewKind("exceeded max analysis iterations (%d)")

// ErrInvalidType is thrown when a compiled expression has an inconsistent type
var ErrInvalidType = errors.NewKind("%s: invalid type of %s: %v")

// Builder provides an easy way to generate Analyzer with custom rules and options.
type Builder struct {
	preAnalyzeRules     []Rule
	postAnalyzeRules    []Rule
	preValidationRules  []Rule
	postValidationRules []Rule
	debug               bool
	verbose             bool
	maxIterations       int
	registerer          prometheus.Registerer
}

// NewBuilder creates a new Builder.
// This builder allow us add custom Rules and modify some internal properties.
func NewBuilder() *Builder {
	return &Builder{maxIterations: maxAnalysisIterations}
}

// WithDebug activates debug on the Analyzer.
func (ab *Builder) WithDebug() *Builder {
	ab.debug = true

	return ab
}

// WithVerbose makes the Analyzer log the compiled expressions.
func (ab *Builder) WithVerbose() *Builder {
	ab.verbose = true

	return ab
}

// WithMaxIterations sets the maximum number of iterations of the batches
// applied until a fixed point is reached.
func (ab *Builder) WithMaxIterations(n int) *Builder {
	if n > 0 {
		ab.maxIterations = n
	}
	return ab
}

// WithRegisterer registers the metrics of the analyzer in r.
func (ab *Builder) WithRegisterer(r prometheus.Registerer) *Builder {
	ab.registerer = r
	return ab
}

// AddPreAnalyzeRule adds a new rule to the analyze before the standard analyzer rules.
func (ab *Builder) AddPreAnalyzeRule(name string, fn RuleFunc) *Builder {
	ab.preAnalyzeRules = append(ab.preAnalyzeRules, Rule{name, fn})

	return ab
}

// AddPostAnalyzeRule adds a new rule to the analyzer after standard analyzer rules.
func (ab *Builder) AddPostAnalyzeRule(name string, fn RuleFunc) *Builder {
	ab.postAnalyzeRules = append(ab.postAnalyzeRules, Rule{name, fn})

	return ab
}

// AddPreValidationRule adds a new rule to the analyzer before standard validation rules.
func (ab *Builder) AddPreValidationRule(name string, fn RuleFunc) *Builder {
	ab.preValidationRules = append(ab.preValidationRules, Rule{name, fn})

	return ab
}

// AddPostValidationRule adds a new rule to the analyzer after standard validation rules.
func (ab *Builder) AddPostValidationRule(name string, fn RuleFunc) *Builder {
	ab.postValidationRules = append(ab.postValidationRules, Rule{name, fn})

	return ab
}

// Build creates a new Analyzer using all previous data setted to the Builder.
// It fails if the metrics cannot be registered.
func (ab *Builder) Build() (*Analyzer, error) {
	_, debug := os.LookupEnv(debugAnalyzerKey)
	m, err := newMetrics(ab.registerer)
	if err != nil {
		return nil, err
	}

	var batches = []*Batch{
		{
			Desc:       "once-before",
			Iterations: 1,
			Rules:      OnceBeforeDefault,
		},
		{
			Desc:       "pre-analyzer",
			Iterations: ab.maxIterations,
			Rules:      ab.preAnalyzeRules,
		},
		{
			Desc:       "default-rules",
			Iterations: ab.maxIterations,
			Rules:      DefaultRules,
		},
		{
			Desc:       "post-analyzer",
			Iterations: ab.maxIterations,
			Rules:      ab.postAnalyzeRules,
		},
		{
			Desc:       "pre-validation",
			Iterations: 1,
			Rules:      ab.preValidationRules,
		},
		{
			Desc:       "validation",
			Iterations: 1,
			Rules:      DefaultValidationRules,
		},
		{
			Desc:       "post-validation",
			Iterations: 1,
			Rules:      ab.postValidationRules,
		},
	}

	return &Analyzer{
		Debug:    debug || ab.debug,
		Verbose:  ab.verbose,
		debugCtx: make([]string, 0),
		Batches:  batches,
		metrics:  m,
	}, nil
}

// Analyzer compiles the bodies of declarations by applying batches of rules
// and validations to them.
type Analyzer struct {
	// Whether to log various debugging messages
	Debug bool
	// Whether to output the compiled expressions
	Verbose  bool
	debugCtx []string
	// Batches of Rules to apply.
	Batches []*Batch

	metrics *metrics
}

var _ query.Compiler = (*Analyzer)(nil)

// NewDefault creates a default Analyzer instance with all default Rules and
// configuration, without registered metrics.
// To add custom rules, the easiest way is use the Builder.
func NewDefault() *Analyzer {
	a, err := NewBuilder().Build()
	if err != nil {
		panic(err)
	}
	return a
}

// Log prints an INFO message to stdout with the given message and args
// if the analyzer is in debug mode.
func (a *Analyzer) Log(msg string, args ...interface{}) {
	if a != nil && a.Debug {
		if len(a.debugCtx) > 0 {
			ctx := strings.Join(a.debugCtx, "/")
			logrus.Infof("%s: "+msg, append([]interface{}{ctx}, args...)...)
		} else {
			logrus.Infof(msg, args...)
		}
	}
}

// LogExpr prints the given expression if Verbose logging is enabled.
func (a *Analyzer) LogExpr(e query.Expression) {
	if a != nil && e != nil && a.Verbose {
		if len(a.debugCtx) > 0 {
			ctx := strings.Join(a.debugCtx, "/")
			fmt.Printf("%s: %s\n", ctx, query.PlanOf(e))
		} else {
			fmt.Printf("%s\n", query.PlanOf(e))
		}
	}
}

// PushDebugContext pushes the given context string onto the context stack, to use when logging debug messages.
func (a *Analyzer) PushDebugContext(msg string) {
	if a != nil {
		a.debugCtx = append(a.debugCtx, msg)
	}
}

// PopDebugContext pops a context message off the context stack.
func (a *Analyzer) PopDebugContext() {
	if a != nil && len(a.debugCtx) > 0 {
		a.debugCtx = a.debugCtx[:len(a.debugCtx)-1]
	}
}

// CompileBody implements the query.Compiler interface. The batches are
// applied in order to the body of the named declaration.
func (a *Analyzer) CompileBody(
	ctx *query.Context,
	scope *query.VarScope,
	body query.Expression,
	name string,
) (query.Expression, error) {
	span, ctx := ctx.Span("analyze", opentracing.Tags{
		"decl": name,
	})
	defer span.Finish()

	a.PushDebugContext(name)
	defer a.PopDebugContext()

	cur := body
	a.Log("starting analysis of %s", query.DebugString(body))
	for _, batch := range a.Batches {
		a.PushDebugContext(batch.Desc)
		next, err := batch.Eval(ctx, a, scope, cur)
		a.PopDebugContext()
		if ErrMaxAnalysisIters.Is(err) {
			a.Log(err.Error())
			cur = next
			continue
		}
		if err != nil {
			span.SetTag("error", true)
			return nil, err
		}
		cur = next
	}

	a.LogExpr(cur)
	span.SetTag("type", cur.Type().String())
	return cur, nil
}

// Analyze compiles all declarations of the module and its main expression
// with the analyzer. Declarations that cannot be compiled are reported
// together, the other ones are still compiled.
func (a *Analyzer) Analyze(ctx *query.Context, mod *query.MainModule) error {
	span, ctx := ctx.Span("compile")
	start := time.Now()
	defer func() {
		a.metrics.compileSeconds.Observe(time.Since(start).Seconds())
		span.Finish()
	}()

	ctx.Compiler = a
	decls := mod.Decls()
	states := make([]query.DeclState, len(decls))
	for i, d := range decls {
		states[i] = d.State()
	}

	a.Log("compiling module with %d declarations", len(decls))
	err := mod.Compile(ctx)
	for i, d := range decls {
		if states[i] != query.Compiled && d.State() == query.Compiled {
			a.metrics.decls.WithLabelValues(declKind(d)).Inc()
		}
	}
	if err != nil {
		span.SetTag("error", true)
		return err
	}
	return nil
}

func declKind(d query.Decl) string {
	switch d.(type) {
	case *query.StaticVar:
		return "variable"
	case *query.StaticFunc:
		return "function"
	case *query.ContextItemDecl:
		return "context"
	}
	return "main"
}
