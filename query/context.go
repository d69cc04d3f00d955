package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// QueryIDLogField is the logrus field holding the id of a query.
const QueryIDLogField = "query_id"

// Options are the tunables of compilation and evaluation.
type Options struct {
	// UnrollLimit is the maximum number of items of a constant sequence for
	// which higher-order functions are unrolled.
	UnrollLimit int
	// MaxMaterializeSize is the maximum size of a pre-evaluated sequence.
	MaxMaterializeSize int64
	// MaxIterations bounds the number of optimization passes.
	MaxIterations int
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		UnrollLimit:        10,
		MaxMaterializeSize: 1 << 20,
		MaxIterations:      1000,
	}
}

// Focus is the context item together with its position and the size of the
// sequence it was taken from. Size is -1 if unknown.
type Focus struct {
	Item Item
	Pos  int64
	Size int64
}

// evalState is shared by all copies of a Context.
type evalState struct {
	stack   stack
	focus   Focus
	statics map[*StaticVar]Value
}

// Context of the compilation and evaluation of a query.
type Context struct {
	context.Context
	Storage  Storage
	Resolver Resolver
	Compiler Compiler
	Options  Options
	// Updating reports whether the query may modify resources.
	Updating bool

	id       uuid.UUID
	logger   *logrus.Entry
	tracer   opentracing.Tracer
	rootSpan opentracing.Span
	state    *evalState
}

// ContextOption is a function to configure the context.
type ContextOption func(*Context)

// WithTracer adds the given tracer to the context.
func WithTracer(t opentracing.Tracer) ContextOption {
	return func(ctx *Context) {
		ctx.tracer = t
	}
}

// WithRootSpan sets the root span of the context.
func WithRootSpan(s opentracing.Span) ContextOption {
	return func(ctx *Context) {
		ctx.rootSpan = s
	}
}

// WithStorage sets the storage resources are read from and written to.
func WithStorage(s Storage) ContextOption {
	return func(ctx *Context) {
		ctx.Storage = s
	}
}

// WithResolver sets the resolver of dynamic function lookups.
func WithResolver(r Resolver) ContextOption {
	return func(ctx *Context) {
		ctx.Resolver = r
	}
}

// WithOptions sets the compilation options.
func WithOptions(o Options) ContextOption {
	return func(ctx *Context) {
		ctx.Options = o
	}
}

// WithLogger sets the logger. The query id is added as a field.
func WithLogger(l *logrus.Logger) ContextOption {
	return func(ctx *Context) {
		ctx.logger = logrus.NewEntry(l)
	}
}

// WithQueryID sets the id of the query.
func WithQueryID(id uuid.UUID) ContextOption {
	return func(ctx *Context) {
		ctx.id = id
	}
}

// WithContextItem binds the context item.
func WithContextItem(it Item) ContextOption {
	return func(ctx *Context) {
		ctx.state.focus = Focus{Item: it, Pos: 1, Size: 1}
	}
}

// NewContext creates a new query context. By default the context has a noop
// tracer, a fresh query id, no storage and the default options.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	c := &Context{
		Context: ctx,
		Options: DefaultOptions(),
		id:      uuid.New(),
		tracer:  opentracing.NoopTracer{},
		state:   &evalState{statics: map[*StaticVar]Value{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c.logger = c.logger.WithField(QueryIDLogField, c.id.String())
	return c
}

// NewEmptyContext returns a default context with default values.
func NewEmptyContext() *Context { return NewContext(context.TODO()) }

// ID returns the id of the query.
func (c *Context) ID() uuid.UUID { return c.id }

// Logger returns the logger of the query.
func (c *Context) Logger() *logrus.Entry { return c.logger }

// Span creates a new tracing span with the given context.
// It will return the span and a new context that should be passed to all
// children of this span.
func (c *Context) Span(
	opName string,
	opts ...opentracing.StartSpanOption,
) (opentracing.Span, *Context) {
	parentSpan := opentracing.SpanFromContext(c.Context)
	if parentSpan != nil {
		opts = append(opts, opentracing.ChildOf(parentSpan.Context()))
	}
	span := c.tracer.StartSpan(opName, opts...)
	ctx := opentracing.ContextWithSpan(c.Context, span)

	return span, c.WithContext(ctx)
}

// WithContext returns a new context with the given underlying context. The
// evaluation state is shared.
func (c *Context) WithContext(ctx context.Context) *Context {
	nc := *c
	nc.Context = ctx
	return &nc
}

// Canceled returns the error of the underlying context once the query was
// cancelled or killed, nil otherwise.
func (c *Context) Canceled() error {
	select {
	case <-c.Done():
		return c.Err()
	default:
		return nil
	}
}

// RootSpan returns the root span, if any.
func (c *Context) RootSpan() opentracing.Span {
	return c.rootSpan
}

// CompInfo logs an optimization performed at compile time.
func (c *Context) CompInfo(format string, args ...interface{}) {
	c.logger.Debugf("compile: "+format, args...)
}

// Focus returns the current focus.
func (c *Context) Focus() Focus { return c.state.focus }

// SetFocus replaces the focus and returns the previous one.
func (c *Context) SetFocus(f Focus) Focus {
	prev := c.state.focus
	c.state.focus = f
	return prev
}

// ContextItem returns the context item, failing if none is bound.
func (c *Context) ContextItem(info InputInfo) (Item, error) {
	if c.state.focus.Item == nil {
		return nil, ErrNoContext.New(info)
	}
	return c.state.focus.Item, nil
}

// Get returns the value bound to v in the current frame.
func (c *Context) Get(v *Var) Value { return c.state.stack.get(v) }

// Set binds val to v in the current frame.
func (c *Context) Set(v *Var, val Value) { c.state.stack.set(v, val) }

// StackDepth returns the number of slots currently on the variable stack.
func (c *Context) StackDepth() int { return len(c.state.stack.vals) }

// ResetState clears the evaluation state, including cached values of static
// variables.
func (c *Context) ResetState() {
	focus := c.state.focus
	*c.state = evalState{statics: map[*StaticVar]Value{}, focus: focus}
}

func (c *Context) String() string {
	return fmt.Sprintf("query %s", c.id)
}
