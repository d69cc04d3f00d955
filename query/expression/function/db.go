package function

import (
	"math/rand"

	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
)

// resourceName returns the name of the resource accessed through e if it is
// statically known.
func resourceName(e query.Expression) (string, bool) {
	c, ok := e.(query.Constant)
	if !ok || c.Val().Size() != 1 {
		return "", false
	}
	switch it := c.Val().ItemAt(0).(type) {
	case query.Str:
		return string(it), true
	case query.Untyped:
		return string(it), true
	}
	return "", false
}

func acceptResource(v query.ASTVisitor, args []query.Expression) bool {
	name, _ := resourceName(args[0])
	return v.Lock(name) && query.AcceptAll(v, args...)
}

func stringArg(ctx *query.Context, e query.Expression, info query.InputInfo) (string, error) {
	it, err := query.ItemOfOne(ctx, e, info)
	if err != nil {
		return "", err
	}
	it, err = query.CastItem(info, it, query.StringType)
	if err != nil {
		return "", err
	}
	return string(it.(query.Str)), nil
}

// Open returns the documents of a resource.
type Open struct {
	call
}

// NewOpen creates a new Open expression. The path is optional.
func NewOpen(info query.InputInfo, args ...query.Expression) (query.Expression, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, query.ErrInvalidArgumentNumber.New(info, "db:open", "1 or 2", len(args))
	}
	return &Open{newCall("db:open", info, args...)}, nil
}

// Type implements the Expression interface.
func (*Open) Type() *query.Cardinality { return query.ZeroOrMore(query.DocumentType) }

// WithChildren implements the Expression interface.
func (o *Open) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(o, children, len(o.Args)); err != nil {
		return nil, err
	}
	return NewOpen(o.info, children...)
}

// Compile implements the Expression interface.
func (o *Open) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, o)
}

// Optimize implements the Expression interface. Resources are never read
// at compile time.
func (o *Open) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return o, nil
}

// Iter implements the Expression interface.
func (o *Open) Iter(ctx *query.Context) (query.Iter, error) {
	name, err := stringArg(ctx, o.Args[0], o.info)
	if err != nil {
		return nil, err
	}
	var path string
	if len(o.Args) > 1 {
		if path, err = stringArg(ctx, o.Args[1], o.info); err != nil {
			return nil, err
		}
	}
	if ctx.Storage == nil {
		return nil, query.ErrResourceNotFound.New(o.info, name)
	}
	return ctx.Storage.Open(ctx, name, path)
}

// Value implements the Expression interface.
func (o *Open) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, o)
}

// Item implements the Expression interface.
func (o *Open) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, o, o.info)
}

// Accept implements the Expression interface. The resource is locked by its
// name, or entirely if the name is computed at runtime.
func (o *Open) Accept(v query.ASTVisitor) bool { return acceptResource(v, o.Args) }

// Copy implements the Expression interface.
func (o *Open) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return &Open{newCall(o.name, o.info, o.copyArgs(ctx, scope, vars)...)}
}

// Store replaces a document of a resource.
type Store struct {
	call
}

// NewStore creates a new Store expression.
func NewStore(info query.InputInfo, resource, path, value query.Expression) query.Expression {
	return &Store{newCall("db:store", info, resource, path, value)}
}

// Type implements the Expression interface.
func (*Store) Type() *query.Cardinality { return query.EmptyCard }

// WithChildren implements the Expression interface.
func (s *Store) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(s, children, 3); err != nil {
		return nil, err
	}
	return NewStore(s.info, children[0], children[1], children[2]), nil
}

// Compile implements the Expression interface.
func (s *Store) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, s)
}

// Optimize implements the Expression interface.
func (s *Store) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return s, nil
}

// Value implements the Expression interface.
func (s *Store) Value(ctx *query.Context) (query.Value, error) {
	name, err := stringArg(ctx, s.Args[0], s.info)
	if err != nil {
		return nil, err
	}
	path, err := stringArg(ctx, s.Args[1], s.info)
	if err != nil {
		return nil, err
	}
	v, err := s.Args[2].Value(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.Storage == nil {
		return nil, query.ErrResourceNotFound.New(s.info, name)
	}
	if err := ctx.Storage.Store(ctx, name, path, v); err != nil {
		return nil, err
	}
	return query.Empty, nil
}

// Iter implements the Expression interface.
func (s *Store) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, s)
}

// Item implements the Expression interface.
func (s *Store) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, s, s.info)
}

// Has implements the Expression interface.
func (s *Store) Has(f query.Flag) bool {
	return f == query.FlagUpd || s.call.Has(f)
}

// Accept implements the Expression interface.
func (s *Store) Accept(v query.ASTVisitor) bool { return acceptResource(v, s.Args) }

// Copy implements the Expression interface.
func (s *Store) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := s.copyArgs(ctx, scope, vars)
	return NewStore(s.info, args[0], args[1], args[2])
}

// RandomDouble returns a random number between 0 and 1.
type RandomDouble struct {
	call
}

// NewRandomDouble creates a new RandomDouble expression.
func NewRandomDouble(info query.InputInfo) query.Expression {
	return &RandomDouble{newCall("random:double", info)}
}

// Type implements the Expression interface.
func (*RandomDouble) Type() *query.Cardinality { return query.One(query.DoubleType) }

// WithChildren implements the Expression interface.
func (r *RandomDouble) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(r, children, 0); err != nil {
		return nil, err
	}
	return r, nil
}

// Compile implements the Expression interface.
func (r *RandomDouble) Compile(*query.Context, *query.VarScope) (query.Expression, error) {
	return r, nil
}

// Optimize implements the Expression interface.
func (r *RandomDouble) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	return r, nil
}

// Item implements the Expression interface.
func (*RandomDouble) Item(*query.Context) (query.Item, error) {
	return query.Dbl(rand.Float64()), nil
}

// Value implements the Expression interface.
func (r *RandomDouble) Value(ctx *query.Context) (query.Value, error) {
	return expression.ItemValue(r.Item(ctx))
}

// Iter implements the Expression interface.
func (r *RandomDouble) Iter(ctx *query.Context) (query.Iter, error) {
	return expression.ItemIter(r.Item(ctx))
}

// Has implements the Expression interface.
func (*RandomDouble) Has(f query.Flag) bool { return f == query.FlagNdt }

// Copy implements the Expression interface.
func (r *RandomDouble) Copy(*query.Context, *query.VarScope, query.VarMap) query.Expression {
	return NewRandomDouble(r.info)
}
