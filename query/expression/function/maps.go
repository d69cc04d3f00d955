package function

import (
	"gopkg.in/src-d/go-xquery.v0/query"
	"gopkg.in/src-d/go-xquery.v0/query/expression"
	"gopkg.in/src-d/go-xquery.v0/query/trie"
)

type mapOp uint8

const (
	mapEntry mapOp = iota
	mapMerge
	mapGet
	mapPut
	mapRemove
	mapSize
	mapContains
)

var mapOps = map[mapOp]struct {
	name  string
	arity int
	typ   *query.Cardinality
}{
	mapEntry:    {"map:entry", 2, query.One(query.AnyMapType)},
	mapMerge:    {"map:merge", 1, query.One(query.AnyMapType)},
	mapGet:      {"map:get", 2, query.AnyCard},
	mapPut:      {"map:put", 3, query.One(query.AnyMapType)},
	mapRemove:   {"map:remove", 2, query.One(query.AnyMapType)},
	mapSize:     {"map:size", 1, query.One(query.IntegerType)},
	mapContains: {"map:contains", 2, query.One(query.BooleanType)},
}

// MapFunc is one of the functions building and accessing maps.
type MapFunc struct {
	call
	op mapOp
}

func newMapFunc(op mapOp) func(query.InputInfo, ...query.Expression) (query.Expression, error) {
	return func(info query.InputInfo, args ...query.Expression) (query.Expression, error) {
		def := mapOps[op]
		if len(args) != def.arity {
			return nil, query.ErrInvalidArgumentNumber.New(info, def.name, def.arity, len(args))
		}
		return &MapFunc{newCall(def.name, info, args...), op}, nil
	}
}

// NewMapEntry creates a map:entry call.
func NewMapEntry(info query.InputInfo, key, value query.Expression) query.Expression {
	e, _ := newMapFunc(mapEntry)(info, key, value)
	return e
}

// NewMapGet creates a map:get call.
func NewMapGet(info query.InputInfo, m, key query.Expression) query.Expression {
	e, _ := newMapFunc(mapGet)(info, m, key)
	return e
}

// NewMapPut creates a map:put call.
func NewMapPut(info query.InputInfo, m, key, value query.Expression) query.Expression {
	e, _ := newMapFunc(mapPut)(info, m, key, value)
	return e
}

// Type implements the Expression interface.
func (f *MapFunc) Type() *query.Cardinality { return mapOps[f.op].typ }

// WithChildren implements the Expression interface.
func (f *MapFunc) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, len(f.Args)); err != nil {
		return nil, err
	}
	return &MapFunc{newCall(f.name, f.info, children...), f.op}, nil
}

// Compile implements the Expression interface.
func (f *MapFunc) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *MapFunc) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if f.op == mapGet && f.Args[0].Type().IsEmpty() {
		return nil, query.ErrEmptyFound.New(f.info)
	}
	return preEval(ctx, f, f.Args)
}

// Value implements the Expression interface.
func (f *MapFunc) Value(ctx *query.Context) (query.Value, error) {
	switch f.op {
	case mapEntry:
		key, err := query.ItemOfOne(ctx, f.Args[0], f.info)
		if err != nil {
			return nil, err
		}
		v, err := f.Args[1].Value(ctx)
		if err != nil {
			return nil, err
		}
		return trie.Empty.Put(f.info, key, v)
	case mapMerge:
		return f.merge(ctx)
	}

	m, err := checkMap(ctx, f.Args[0], f.info)
	if err != nil {
		return nil, err
	}
	if f.op == mapSize {
		return query.Int(m.Len()), nil
	}

	key, err := query.ItemOfOne(ctx, f.Args[1], f.info)
	if err != nil {
		return nil, err
	}
	switch f.op {
	case mapGet:
		v, ok, err := m.Get(f.info, key)
		if err != nil || !ok {
			return query.Empty, err
		}
		return v, nil
	case mapContains:
		ok, err := m.Contains(f.info, key)
		if err != nil {
			return nil, err
		}
		return query.Bln(ok), nil
	case mapRemove:
		return m.Delete(f.info, key)
	}

	v, err := f.Args[2].Value(ctx)
	if err != nil {
		return nil, err
	}
	return m.Put(f.info, key, v)
}

// merge combines maps. Entries of later maps replace the ones of earlier
// maps with the same key.
func (f *MapFunc) merge(ctx *query.Context) (query.Value, error) {
	iter, err := f.Args[0].Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	res := trie.Empty
	for {
		it, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if it == nil {
			return res, nil
		}
		m, ok := it.(*trie.Map)
		if !ok {
			return nil, query.ErrInvalidCast.New(f.info, it.Type(), query.AnyMapType)
		}
		if res.Len() == 0 {
			res = m
			continue
		}
		err = m.ForEach(func(k query.Item, v query.Value) error {
			var err error
			res, err = res.Put(f.info, k, v)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
}

func checkMap(ctx *query.Context, e query.Expression, info query.InputInfo) (*trie.Map, error) {
	it, err := query.ItemOfOne(ctx, e, info)
	if err != nil {
		return nil, err
	}
	m, ok := it.(*trie.Map)
	if !ok {
		return nil, query.ErrInvalidCast.New(info, it.Type(), query.AnyMapType)
	}
	return m, nil
}

// Iter implements the Expression interface.
func (f *MapFunc) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, f)
}

// Item implements the Expression interface.
func (f *MapFunc) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *MapFunc) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return &MapFunc{newCall(f.name, f.info, f.copyArgs(ctx, scope, vars)...), f.op}
}

// MapForEach applies a function to each entry of a map. The entries are
// traversed lazily.
type MapForEach struct {
	call
}

// NewMapForEach creates a new MapForEach expression.
func NewMapForEach(info query.InputInfo, m, f query.Expression) query.Expression {
	return &MapForEach{newCall("map:for-each", info, m, f)}
}

// Type implements the Expression interface.
func (f *MapForEach) Type() *query.Cardinality {
	return expression.RetType(f.Args[1]).Multiply(query.AnyCard)
}

// WithChildren implements the Expression interface.
func (f *MapForEach) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(f, children, 2); err != nil {
		return nil, err
	}
	return NewMapForEach(f.info, children[0], children[1]), nil
}

// Compile implements the Expression interface.
func (f *MapForEach) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return expression.Compile(ctx, scope, f)
}

// Optimize implements the Expression interface.
func (f *MapForEach) Optimize(*query.Context, *query.VarScope) (query.Expression, error) {
	if err := checkArity(f.Args[1], 2, f.info); err != nil {
		return nil, err
	}
	return f, nil
}

// Iter implements the Expression interface.
func (f *MapForEach) Iter(ctx *query.Context) (query.Iter, error) {
	m, err := checkMap(ctx, f.Args[0], f.info)
	if err != nil {
		return nil, err
	}
	fn, err := withArity(ctx, f.Args[1], 2, f.info)
	if err != nil {
		return nil, err
	}
	entries := m.Iter()
	return invokeIter(ctx, f.info, fn, func() ([]query.Value, error) {
		k, v, ok := entries.Next()
		if !ok {
			return nil, nil
		}
		return []query.Value{k, v}, nil
	}, nil), nil
}

// Value implements the Expression interface.
func (f *MapForEach) Value(ctx *query.Context) (query.Value, error) {
	return query.ValueOf(ctx, f)
}

// Item implements the Expression interface.
func (f *MapForEach) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, f, f.info)
}

// Copy implements the Expression interface.
func (f *MapForEach) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	args := f.copyArgs(ctx, scope, vars)
	return NewMapForEach(f.info, args[0], args[1])
}
