package query

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Catalog holds the storage, the builtin functions and the library modules
// available to queries.
type Catalog struct {
	Storage Storage
	FunctionRegistry

	mu   sync.RWMutex
	libs map[string]*LibraryModule
}

// NewCatalog returns a new catalog without libraries.
func NewCatalog(storage Storage) *Catalog {
	return &Catalog{
		Storage:          storage,
		FunctionRegistry: NewFunctionRegistry(),
		libs:             map[string]*LibraryModule{},
	}
}

// AddLibrary registers a library module by its namespace.
func (c *Catalog) AddLibrary(lib *LibraryModule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.libs[lib.Namespace] = lib
}

// Library returns the library module with the given namespace.
func (c *Catalog) Library(namespace string) (*LibraryModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lib, ok := c.libs[namespace]
	return lib, ok
}

// Libraries returns the namespaces of all libraries, sorted.
func (c *Catalog) Libraries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ns := maps.Keys(c.libs)
	slices.Sort(ns)
	return ns
}

// Resolvers is a Resolver trying each of its resolvers in order.
type Resolvers []Resolver

// Function implements the Resolver interface.
func (rs Resolvers) Function(ctx *Context, info InputInfo, name QName, arity int) (FItem, error) {
	for _, r := range rs {
		f, err := r.Function(ctx, info, name, arity)
		if err != nil || f != nil {
			return f, err
		}
	}
	return nil, nil
}
