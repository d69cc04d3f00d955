package mem

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"gopkg.in/src-d/go-xquery.v0/internal/similartext"
	"gopkg.in/src-d/go-xquery.v0/query"
)

// Storage is an in-memory query.Storage.
type Storage struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

var _ query.Storage = (*Storage)(nil)

// NewStorage creates a new storage holding the given resources.
func NewStorage(resources ...*Resource) *Storage {
	s := &Storage{resources: map[string]*Resource{}}
	for _, r := range resources {
		s.resources[r.Name()] = r
	}
	return s
}

// AddResource adds a resource, replacing any resource with the same name.
func (s *Storage) AddResource(r *Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.Name()] = r
}

// Resource returns the resource with the given name.
func (s *Storage) Resource(name string) (*Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[name]
	return r, ok
}

// Resources returns the names of all resources, sorted.
func (s *Storage) Resources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := maps.Keys(s.resources)
	slices.Sort(names)
	return names
}

// Open implements the query.Storage interface.
func (s *Storage) Open(ctx *query.Context, resource, path string) (query.Iter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resources[resource]
	if !ok {
		similar := similartext.FindFromMap(s.resources, resource)
		return nil, query.ErrResourceNotFound.New(query.InputInfo{}, resource+similar)
	}

	docs := r.documents(path)
	ctx.Logger().WithField("resource", resource).Debugf("opened %d documents", len(docs))
	return query.ValueIter(query.NewItemSeq(docs)), nil
}

// Store implements the query.Storage interface.
func (s *Storage) Store(ctx *query.Context, resource, path string, v query.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[resource]
	if !ok {
		r = NewResource(resource)
		s.resources[resource] = r
	}
	r.put(query.DocumentOf(path, v))
	ctx.Logger().WithField("resource", resource).Debugf("stored %s", path)
	return nil
}
