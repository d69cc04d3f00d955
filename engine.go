package xquery

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"

	"gopkg.in/src-d/go-xquery.v0/internal/similartext"
	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/analyzer"
	"gopkg.in/src-d/go-xquery.v0/query/expression/function"
)

// ErrLibraryNotFound is returned when an imported library module is not in
// the catalog.
var ErrLibraryNotFound = errors.NewKind("library module not found: %s")

// Engine compiles and runs XQuery modules.
type Engine struct {
	Catalog     *query.Catalog
	Analyzer    *analyzer.Analyzer
	ProcessList *ProcessList
	Config      *Config

	logger *logrus.Logger
}

// New creates a new Engine reading and writing resources in the given
// storage. A nil config uses the defaults, a nil registerer leaves the
// analyzer metrics unregistered.
func New(storage query.Storage, cfg *Config, r prometheus.Registerer) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	c := query.NewCatalog(storage)
	if err := c.Register(function.Defaults...); err != nil {
		return nil, err
	}

	b := analyzer.NewBuilder().
		WithMaxIterations(cfg.Analyzer.MaxIterations).
		WithRegisterer(r)
	if cfg.Analyzer.Debug {
		b = b.WithDebug()
	}
	if cfg.Analyzer.Verbose {
		b = b.WithVerbose()
	}
	a, err := b.Build()
	if err != nil {
		return nil, err
	}

	return &Engine{
		Catalog:     c,
		Analyzer:    a,
		ProcessList: NewProcessList(),
		Config:      cfg,
		logger:      logger,
	}, nil
}

// NewDefault creates a new Engine with the default configuration and the
// given storage.
func NewDefault(storage query.Storage) *Engine {
	e, err := New(storage, nil, nil)
	if err != nil {
		panic(err)
	}
	return e
}

// NewContext creates a query context using the storage, options and logger
// of the engine. Further options are applied afterwards.
func (e *Engine) NewContext(ctx context.Context, opts ...query.ContextOption) *query.Context {
	base := []query.ContextOption{
		query.WithStorage(e.Catalog.Storage),
		query.WithOptions(e.Config.Options()),
		query.WithLogger(e.logger),
	}
	return query.NewContext(ctx, append(base, opts...)...)
}

// AddLibrary makes a library module available for import.
func (e *Engine) AddLibrary(lib *query.LibraryModule) {
	e.Catalog.AddLibrary(lib)
}

// Import imports the library module with the given namespace into mod.
func (e *Engine) Import(mod *query.MainModule, namespace string) error {
	lib, ok := e.Catalog.Library(namespace)
	if !ok {
		similar := similartext.Find(e.Catalog.Libraries(), namespace)
		return ErrLibraryNotFound.New(namespace + similar)
	}
	mod.Import(lib)
	return nil
}

func (e *Engine) prepare(ctx *query.Context, mod *query.MainModule) {
	if ctx.Storage == nil {
		ctx.Storage = e.Catalog.Storage
	}
	if ctx.Resolver == nil {
		ctx.Resolver = query.Resolvers{mod, function.NewResolver(e.Catalog.FunctionRegistry)}
	}
	ctx.Updating = ctx.Updating || mod.Updating
}

// Compile compiles all declarations of the module. It returns the module
// itself, with its declarations replaced by their compiled form.
func (e *Engine) Compile(ctx *query.Context, mod *query.MainModule) (*query.MainModule, error) {
	e.prepare(ctx, mod)
	if err := e.Analyzer.Analyze(ctx, mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// Query compiles the module and starts its evaluation. It returns the lazy
// result together with the resources the query locks. The query is listed
// in the process list until the result is exhausted or closed.
func (e *Engine) Query(ctx *query.Context, mod *query.MainModule) (query.Iter, *query.LockResult, error) {
	span, ctx := ctx.Span("query", opentracing.Tag{Key: "query_id", Value: ctx.ID().String()})
	defer span.Finish()

	if _, err := e.Compile(ctx, mod); err != nil {
		span.SetTag("error", true)
		return nil, nil, err
	}

	locks := mod.LockSets(ctx)
	span.LogKV("locks", locks.String())
	span.SetTag("type", mod.Type().String())

	ctx, err := e.ProcessList.AddProcess(ctx, locks, e.Config.Exclusive)
	if err != nil {
		span.SetTag("error", true)
		return nil, nil, err
	}

	ctx.Logger().WithFields(logrus.Fields{
		LocksLogField:      locks.String(),
		ResultTypeLogField: mod.Type().String(),
	}).Debug("running query")

	iter, err := mod.Iter(ctx)
	if err != nil {
		e.ProcessList.Done(ctx.ID())
		return nil, nil, err
	}

	id := ctx.ID()
	return &trackedIter{Iter: iter, ctx: ctx, notify: func() { e.ProcessList.Done(id) }}, locks, nil
}
