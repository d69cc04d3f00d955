package function

import (
	"fmt"

	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
)

// Defaults is the list of the builtin functions.
var Defaults = []query.Function{
	query.Function2{Name: "fn:for-each", Fn: NewForEach},
	query.Function2{Name: "fn:filter", Fn: NewFilter},
	query.Function3{Name: "fn:for-each-pair", Fn: NewForEachPair},
	query.Function3{Name: "fn:fold-left", Fn: NewFoldLeft},
	query.Function3{Name: "fn:fold-right", Fn: NewFoldRight},
	query.Function2{Name: "fn:function-lookup", Fn: NewFunctionLookup},
	query.Function1{Name: "fn:function-arity", Fn: NewFunctionArity},
	query.Function1{Name: "fn:function-name", Fn: NewFunctionName},
	query.Function1{Name: "fn:count", Fn: NewCount},
	query.Function1{Name: "fn:empty", Fn: NewEmpty},
	query.Function1{Name: "fn:exists", Fn: NewExists},
	query.Function0{Name: "fn:position", Fn: func(info query.InputInfo) query.Expression {
		return expression.NewPosition(info)
	}},
	query.Function0{Name: "fn:last", Fn: func(info query.InputInfo) query.Expression {
		return expression.NewLast(info)
	}},
	query.FunctionN{Name: "map:entry", Min: 2, Max: 2, Fn: newMapFunc(mapEntry)},
	query.FunctionN{Name: "map:merge", Min: 1, Max: 1, Fn: newMapFunc(mapMerge)},
	query.FunctionN{Name: "map:get", Min: 2, Max: 2, Fn: newMapFunc(mapGet)},
	query.FunctionN{Name: "map:put", Min: 3, Max: 3, Fn: newMapFunc(mapPut)},
	query.FunctionN{Name: "map:remove", Min: 2, Max: 2, Fn: newMapFunc(mapRemove)},
	query.FunctionN{Name: "map:size", Min: 1, Max: 1, Fn: newMapFunc(mapSize)},
	query.FunctionN{Name: "map:contains", Min: 2, Max: 2, Fn: newMapFunc(mapContains)},
	query.Function2{Name: "map:for-each", Fn: NewMapForEach},
	query.FunctionN{Name: "db:open", Min: 1, Max: 2, Fn: NewOpen},
	query.Function3{Name: "db:store", Fn: NewStore},
	query.Function0{Name: "random:double", Fn: NewRandomDouble},
}

// NewRegistry returns a registry with the default functions.
func NewRegistry() query.FunctionRegistry {
	r := query.NewFunctionRegistry()
	if err := r.Register(Defaults...); err != nil {
		panic(err)
	}
	return r
}

// Resolver resolves the functions of a registry as function items.
type Resolver struct {
	Registry query.FunctionRegistry
	// Static maps namespace URIs of names without prefix to prefixes.
	Static *query.StaticContext
}

var _ query.Resolver = (*Resolver)(nil)

// NewResolver creates a resolver for the functions of a registry.
func NewResolver(r query.FunctionRegistry) *Resolver {
	return &Resolver{r, query.NewStaticContext()}
}

// Function implements the query.Resolver interface.
func (r *Resolver) Function(_ *query.Context, _ query.InputInfo, name query.QName, arity int) (query.FItem, error) {
	if name.Prefix == "" && name.URI != "" {
		for prefix, uri := range r.Static.Namespaces {
			if uri == name.URI {
				name.Prefix = prefix
				break
			}
		}
	}
	fn, ok := r.Registry.Lookup(query.QName{Prefix: name.Prefix, Local: name.Local}, arity)
	if !ok {
		return nil, nil
	}
	return &builtin{fn: fn, name: name, arity: arity}, nil
}

// builtin is a function item calling a builtin function.
type builtin struct {
	fn    query.Function
	name  query.QName
	arity int
}

var _ query.FItem = (*builtin)(nil)

func (b *builtin) Arity() int                    { return b.arity }
func (b *builtin) FuncName() (query.QName, bool) { return b.name, true }
func (b *builtin) FuncType() *query.FuncType     { return query.ArityType(b.arity) }
func (b *builtin) Type() query.Type              { return b.FuncType() }
func (b *builtin) Size() int64                   { return 1 }
func (b *builtin) ItemAt(int64) query.Item       { return b }
func (b *builtin) Card() *query.Cardinality      { return query.One(b.FuncType()) }
func (b *builtin) String() string                { return fmt.Sprintf("%s#%d", b.fn.FunctionName(), b.arity) }

// Invoke implements the query.FItem interface. The arguments are evaluated
// in an empty focus.
func (b *builtin) Invoke(ctx *query.Context, info query.InputInfo, args ...query.Value) (query.Value, error) {
	exprs := make([]query.Expression, len(args))
	for i, a := range args {
		exprs[i] = expression.NewLiteral(a, info)
	}
	e, err := b.fn.NewInstance(info, exprs...)
	if err != nil {
		return nil, err
	}
	prev := ctx.SetFocus(query.Focus{Size: -1})
	defer ctx.SetFocus(prev)
	return e.Value(ctx)
}
