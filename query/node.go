package query

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var nodeIDs int64

// Node is a node of an immutable tree. Nodes are created bottom-up with the
// constructor functions, which set parent links and document order.
type Node struct {
	Kind     NodeType
	Name     QName
	Text     string
	Attrs    []*Node
	Children []*Node
	Parent   *Node
	// Base is the name of the resource the tree was loaded from, if any.
	Base string

	id int64
}

// NewDocument creates a document node.
func NewDocument(base string, children ...*Node) *Node {
	n := &Node{Kind: DocumentType, Base: base, Children: children}
	n.adopt()
	return n
}

// NewElement creates an element node.
func NewElement(name string, attrs []*Node, children ...*Node) *Node {
	n := &Node{Kind: ElementType, Name: QName{Local: name}, Attrs: attrs, Children: children}
	n.adopt()
	return n
}

// NewAttribute creates an attribute node.
func NewAttribute(name, value string) *Node {
	n := &Node{Kind: AttributeType, Name: QName{Local: name}, Text: value}
	n.adopt()
	return n
}

// NewText creates a text node.
func NewText(text string) *Node {
	n := &Node{Kind: TextType, Text: text}
	n.adopt()
	return n
}

// adopt sets the parent links of the direct children and renumbers the
// subtree in document order.
func (n *Node) adopt() {
	for _, a := range n.Attrs {
		a.Parent = n
	}
	for _, c := range n.Children {
		c.Parent = n
	}
	size := n.count()
	next := atomic.AddInt64(&nodeIDs, size) - size
	n.number(&next)
}

func (n *Node) count() int64 {
	c := int64(1 + len(n.Attrs))
	for _, ch := range n.Children {
		c += ch.count()
	}
	return c
}

func (n *Node) number(next *int64) {
	*next++
	n.id = *next
	for _, a := range n.Attrs {
		*next++
		a.id = *next
	}
	for _, c := range n.Children {
		c.number(next)
	}
}

// Order returns the position of the node in document order. Nodes of
// different trees are ordered by creation.
func (n *Node) Order() int64 { return n.id }

// Type implements the Item interface.
func (n *Node) Type() Type { return n.Kind }

// Size implements the Value interface.
func (n *Node) Size() int64 { return 1 }

// ItemAt implements the Value interface.
func (n *Node) ItemAt(int64) Item { return n }

// Card implements the Value interface.
func (n *Node) Card() *Cardinality { return nodeCards[n.Kind] }

// Root returns the root of the tree containing n.
func (n *Node) Root() *Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// StringValue returns the concatenated text of the node and its descendants.
func (n *Node) StringValue() string {
	switch n.Kind {
	case TextType, AttributeType:
		return n.Text
	}
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder) {
	if n.Kind == TextType {
		sb.WriteString(n.Text)
		return
	}
	for _, c := range n.Children {
		c.writeText(sb)
	}
}

// Descendants calls f for each descendant of n in document order, stopping
// when f returns false.
func (n *Node) Descendants(f func(*Node) bool) bool {
	for _, c := range n.Children {
		if !f(c) || !c.Descendants(f) {
			return false
		}
	}
	return true
}

func (n *Node) String() string {
	switch n.Kind {
	case DocumentType:
		return fmt.Sprintf("document-node { %s }", n.Base)
	case AttributeType:
		return fmt.Sprintf("%s=%q", n.Name, n.Text)
	case TextType:
		return fmt.Sprintf("text { %q }", n.Text)
	}
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(n.Name.String())
	for _, a := range n.Attrs {
		sb.WriteString(" ")
		sb.WriteString(a.String())
	}
	if len(n.Children) == 0 {
		sb.WriteString("/>")
		return sb.String()
	}
	sb.WriteString(">...</")
	sb.WriteString(n.Name.String())
	sb.WriteString(">")
	return sb.String()
}

// Clone returns a deep copy of the subtree rooted at n, detached from its
// parent and numbered as a new tree.
func (n *Node) Clone() *Node {
	c := n.clone()
	c.adopt()
	return c
}

func (n *Node) clone() *Node {
	c := &Node{Kind: n.Kind, Name: n.Name, Text: n.Text, Base: n.Base}
	if len(n.Attrs) > 0 {
		c.Attrs = make([]*Node, len(n.Attrs))
		for i, a := range n.Attrs {
			c.Attrs[i] = a.clone()
			c.Attrs[i].Parent = c
		}
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.clone()
			c.Children[i].Parent = c
		}
	}
	return c
}
