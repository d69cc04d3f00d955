package mem

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Resource is an in-memory collection of documents addressed by path.
type Resource struct {
	name string
	docs map[string]*query.Node
}

// NewResource creates a new empty resource with the given name.
func NewResource(name string) *Resource {
	return &Resource{
		name: name,
		docs: map[string]*query.Node{},
	}
}

// Name returns the resource name.
func (r *Resource) Name() string {
	return r.name
}

// Paths returns the paths of all documents, sorted.
func (r *Resource) Paths() []string {
	paths := maps.Keys(r.docs)
	slices.Sort(paths)
	return paths
}

// Document returns the document stored at path.
func (r *Resource) Document(path string) (*query.Node, bool) {
	d, ok := r.docs[path]
	return d, ok
}

// AddDocument adds a document with the given children at path, replacing
// any previous one.
func (r *Resource) AddDocument(path string, children ...*query.Node) *query.Node {
	d := query.NewDocument(path, children...)
	r.docs[path] = d
	return d
}

// put stores doc at its base path.
func (r *Resource) put(doc *query.Node) {
	r.docs[doc.Base] = doc
}

// documents returns the documents whose path starts with prefix, in path
// order.
func (r *Resource) documents(prefix string) []query.Item {
	var items []query.Item
	for _, p := range r.Paths() {
		if strings.HasPrefix(p, prefix) {
			items = append(items, r.docs[p])
		}
	}
	return items
}
