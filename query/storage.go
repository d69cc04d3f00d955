package query

// ContextResource is the name locked by expressions accessing the resource
// of the context item.
const ContextResource = "."

// Storage resolves named resources to trees.
type Storage interface {
	// Open returns the documents of the resource whose path starts with the
	// given prefix, in document order. It fails with ErrResourceNotFound if
	// the resource does not exist.
	Open(ctx *Context, resource, path string) (Iter, error)
	// Store replaces the document at path in the resource with the nodes of
	// the value, creating the resource if needed.
	Store(ctx *Context, resource, path string, v Value) error
}

// Resolver resolves functions by name and arity.
type Resolver interface {
	// Function returns the function item with the given name and arity, or
	// nil if there is none.
	Function(ctx *Context, info InputInfo, name QName, arity int) (FItem, error)
}

// DocumentOf builds the document stored at base from the items of v. Nodes
// are copied, documents contribute their children, and attributes and atomic
// items become text nodes.
func DocumentOf(base string, v Value) *Node {
	var children []*Node
	for i, n := int64(0), v.Size(); i < n; i++ {
		switch it := v.ItemAt(i).(type) {
		case *Node:
			switch it.Kind {
			case DocumentType:
				for _, c := range it.Children {
					children = append(children, c.Clone())
				}
			case AttributeType:
				children = append(children, NewText(it.Text))
			default:
				children = append(children, it.Clone())
			}
		case Item:
			children = append(children, NewText(it.String()))
		}
	}
	return NewDocument(base, children...)
}
