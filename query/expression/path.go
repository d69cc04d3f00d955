package expression

import (
	"strings"

	"golang.org/x/exp/slices"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Axis is the direction of a path step.
type Axis uint8

const (
	// Child selects the children of the context node.
	Child Axis = iota
	// Descendant selects the descendants of the context node.
	Descendant
	// DescendantOrSelf selects the context node and its descendants.
	DescendantOrSelf
	// Self selects the context node.
	Self
	// Attribute selects the attributes of the context node.
	Attribute
	// Parent selects the parent of the context node.
	Parent
)

var axisNames = [...]string{
	Child:            "child",
	Descendant:       "descendant",
	DescendantOrSelf: "descendant-or-self",
	Self:             "self",
	Attribute:        "attribute",
	Parent:           "parent",
}

func (a Axis) String() string { return axisNames[a] }

// nodes returns the nodes of the axis of n in document order.
func (a Axis) nodes(n *query.Node) []*query.Node {
	switch a {
	case Child:
		return n.Children
	case Attribute:
		return n.Attrs
	case Self:
		return []*query.Node{n}
	case Parent:
		if n.Parent == nil {
			return nil
		}
		return []*query.Node{n.Parent}
	}

	var res []*query.Node
	if a == DescendantOrSelf {
		res = append(res, n)
	}
	n.Descendants(func(d *query.Node) bool {
		res = append(res, d)
		return true
	})
	return res
}

// Test is a node test. A Kind of query.AnyNodeType matches every kind and
// an empty Name matches every name.
type Test struct {
	Kind query.NodeType
	Name string
}

// NewTest creates a new node test.
func NewTest(kind query.NodeType, name string) *Test {
	return &Test{kind, name}
}

// Matches reports whether the node passes the test.
func (t *Test) Matches(n *query.Node) bool {
	if t.Kind != query.AnyNodeType && n.Kind != t.Kind {
		return false
	}
	return t.Name == "" || n.Name.Local == t.Name
}

// SameAs reports whether both tests match the same nodes.
func (t *Test) SameAs(o *Test) bool {
	return t.Kind == o.Kind && t.Name == o.Name
}

// Intersect returns the test matching the nodes matched by both tests, or
// nil if no node matches both.
func (t *Test) Intersect(o *Test) *Test {
	kind := t.Kind
	switch {
	case kind == query.AnyNodeType:
		kind = o.Kind
	case o.Kind != query.AnyNodeType && o.Kind != kind:
		return nil
	}

	name := t.Name
	switch {
	case name == "":
		name = o.Name
	case o.Name != "" && o.Name != name:
		return nil
	}
	if name != "" && (kind == query.TextType || kind == query.DocumentType) {
		return nil
	}
	return &Test{kind, name}
}

func (t *Test) String() string {
	switch {
	case t.Name == "" && t.Kind == query.ElementType:
		return "*"
	case t.Name == "":
		return t.Kind.String()
	case t.Kind == query.AttributeType:
		return "@" + t.Name
	}
	return t.Name
}

// Step is a step of a path: the nodes of an axis matching a node test,
// filtered by predicates.
type Step struct {
	positioned
	Axis  Axis
	Test  *Test
	Preds []query.Expression
}

// NewStep creates a new Step expression.
func NewStep(axis Axis, test *Test, info query.InputInfo, preds ...query.Expression) *Step {
	return &Step{positioned{info}, axis, test, preds}
}

// Type implements the Expression interface. It is the cardinality of the
// results for a single context node.
func (s *Step) Type() *query.Cardinality {
	for _, p := range s.Preds {
		if isFalse(p) {
			return query.EmptyCard
		}
	}

	t := query.Type(s.Test.Kind)
	if s.Test.Kind == query.AnyNodeType && s.Axis == Attribute {
		t = query.AttributeType
	}
	switch s.Axis {
	case Self, Parent:
		return query.ZeroOrOne(t)
	}
	return query.ZeroOrMore(t)
}

// isFalse reports whether p is a constant whose effective boolean value is
// false.
func isFalse(p query.Expression) bool {
	c, ok := p.(query.Constant)
	if !ok || numericPred(c.Val()) {
		return false
	}
	b, err := query.EBV(query.InfoOf(p), c.Val())
	return err == nil && !b
}

// Children implements the Expression interface.
func (s *Step) Children() []query.Expression { return s.Preds }

// WithChildren implements the Expression interface.
func (s *Step) WithChildren(children ...query.Expression) (query.Expression, error) {
	if err := checkChildren(s, children, len(s.Preds)); err != nil {
		return nil, err
	}
	return NewStep(s.Axis, s.Test, s.info, children...), nil
}

// Compile implements the Expression interface.
func (s *Step) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, s)
}

// Optimize implements the Expression interface. Predicates that are always
// true are removed.
func (s *Step) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	preds := make([]query.Expression, 0, len(s.Preds))
	for _, p := range s.Preds {
		if c, ok := p.(query.Constant); ok && !numericPred(c.Val()) {
			if b, err := query.EBV(s.info, c.Val()); err == nil && b {
				ctx.CompInfo("removing true predicate from %s", s)
				continue
			}
		}
		preds = append(preds, p)
	}
	if len(preds) == len(s.Preds) {
		return s, nil
	}
	return NewStep(s.Axis, s.Test, s.info, preds...), nil
}

// apply returns the result of the step for the context node n.
func (s *Step) apply(ctx *query.Context, n *query.Node) ([]*query.Node, error) {
	var nodes []*query.Node
	for _, c := range s.Axis.nodes(n) {
		if s.Test.Matches(c) {
			nodes = append(nodes, c)
		}
	}
	if len(s.Preds) == 0 || len(nodes) == 0 {
		return nodes, nil
	}

	prev := ctx.Focus()
	defer ctx.SetFocus(prev)
	for _, p := range s.Preds {
		size := int64(len(nodes))
		res := nodes[:0:0]
		for i, c := range nodes {
			ctx.SetFocus(query.Focus{Item: c, Pos: int64(i) + 1, Size: size})
			ok, err := testPred(ctx, p, s.info)
			if err != nil {
				return nil, err
			}
			if ok {
				res = append(res, c)
			}
		}
		nodes = res
	}
	return nodes, nil
}

// Value implements the Expression interface. The step is applied to the
// context item.
func (s *Step) Value(ctx *query.Context) (query.Value, error) {
	it, err := ctx.ContextItem(s.info)
	if err != nil {
		return nil, err
	}
	n, ok := it.(*query.Node)
	if !ok {
		return nil, query.ErrPathNode.New(s.info, it.Type())
	}
	nodes, err := s.apply(ctx, n)
	if err != nil {
		return nil, err
	}
	return nodeValue(nodes), nil
}

// Iter implements the Expression interface.
func (s *Step) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, s)
}

// Item implements the Expression interface.
func (s *Step) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, s, s.info)
}

// Copy implements the Expression interface.
func (s *Step) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	return s.copy(ctx, scope, vars)
}

func (s *Step) copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) *Step {
	return NewStep(s.Axis, s.Test, s.info, query.CopyAll(ctx, scope, vars, s.Preds)...)
}

// Accept implements the Expression interface.
func (s *Step) Accept(v query.ASTVisitor) bool {
	return query.AcceptFocus(v, s.Preds...)
}

// Has implements the Expression interface.
func (s *Step) Has(f query.Flag) bool {
	switch f {
	case query.FlagCtx:
		return true
	case query.FlagFcs:
		return false
	}
	return query.HasAny(f, s.Preds...)
}

func (s *Step) String() string {
	var sb strings.Builder
	sb.WriteString(s.Axis.String())
	sb.WriteString("::")
	sb.WriteString(s.Test.String())
	for _, p := range s.Preds {
		sb.WriteString("[")
		sb.WriteString(query.DebugString(p))
		sb.WriteString("]")
	}
	return sb.String()
}

// Path is a structural path: a sequence of steps applied to the nodes of a
// root expression, or to the context node if the root is nil.
type Path struct {
	positioned
	Root  query.Expression
	Steps []*Step
}

// NewPath creates a new Path expression. The root may be nil.
func NewPath(root query.Expression, info query.InputInfo, steps ...*Step) *Path {
	return &Path{positioned{info}, root, steps}
}

// Type implements the Expression interface.
func (p *Path) Type() *query.Cardinality {
	t := query.One(query.AnyNodeType)
	if p.Root != nil {
		t = p.Root.Type()
	}
	for _, s := range p.Steps {
		t = s.Type().Multiply(t)
	}
	return t
}

// Children implements the Expression interface.
func (p *Path) Children() []query.Expression {
	var children []query.Expression
	if p.Root != nil {
		children = append(children, p.Root)
	}
	for _, s := range p.Steps {
		children = append(children, s)
	}
	return children
}

// WithChildren implements the Expression interface.
func (p *Path) WithChildren(children ...query.Expression) (query.Expression, error) {
	n := len(p.Steps)
	if p.Root != nil {
		n++
	}
	if err := checkChildren(p, children, n); err != nil {
		return nil, err
	}

	var root query.Expression
	if p.Root != nil {
		root, children = children[0], children[1:]
	}
	steps := make([]*Step, len(children))
	for i, c := range children {
		s, ok := c.(*Step)
		if !ok {
			return nil, query.ErrInvalidChildType.New(p, c, i)
		}
		steps[i] = s
	}
	return NewPath(root, p.info, steps...), nil
}

// Compile implements the Expression interface.
func (p *Path) Compile(ctx *query.Context, scope *query.VarScope) (query.Expression, error) {
	return Compile(ctx, scope, p)
}

// Optimize implements the Expression interface.
func (p *Path) Optimize(ctx *query.Context, _ *query.VarScope) (query.Expression, error) {
	if p.Root != nil && query.IsEmpty(p.Root) {
		return Simplify(ctx, p), nil
	}
	for _, s := range p.Steps {
		if query.IsEmpty(s) {
			return Simplify(ctx, p), nil
		}
	}
	if len(p.Steps) == 0 && p.Root != nil {
		return p.Root, nil
	}
	return p, nil
}

// AddPreds returns a copy of the path with the predicates appended to its
// last step.
func (p *Path) AddPreds(preds ...query.Expression) *Path {
	steps := make([]*Step, len(p.Steps))
	copy(steps, p.Steps)
	last := steps[len(steps)-1]
	all := make([]query.Expression, 0, len(last.Preds)+len(preds))
	all = append(append(all, last.Preds...), preds...)
	steps[len(steps)-1] = NewStep(last.Axis, last.Test, last.info, all...)
	return NewPath(p.Root, p.info, steps...)
}

// Value implements the Expression interface. The results of every step are
// deduplicated and sorted in document order.
func (p *Path) Value(ctx *query.Context) (query.Value, error) {
	var ctxNodes []*query.Node
	if p.Root == nil {
		it, err := ctx.ContextItem(p.info)
		if err != nil {
			return nil, err
		}
		n, ok := it.(*query.Node)
		if !ok {
			return nil, query.ErrPathNode.New(p.info, it.Type())
		}
		ctxNodes = []*query.Node{n}
	} else {
		iter, err := p.Root.Iter(ctx)
		if err != nil {
			return nil, err
		}
		err = query.ForEach(iter, func(it query.Item) error {
			n, ok := it.(*query.Node)
			if !ok {
				return query.ErrPathNode.New(p.info, it.Type())
			}
			ctxNodes = append(ctxNodes, n)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(p.Steps) == 0 {
			return nodeValue(ctxNodes), nil
		}
	}

	prev := ctx.Focus()
	defer ctx.SetFocus(prev)
	for _, s := range p.Steps {
		seen := make(map[*query.Node]struct{})
		var next []*query.Node
		for _, n := range ctxNodes {
			res, err := s.apply(ctx, n)
			if err != nil {
				return nil, err
			}
			for _, r := range res {
				if _, ok := seen[r]; !ok {
					seen[r] = struct{}{}
					next = append(next, r)
				}
			}
		}
		slices.SortFunc(next, func(a, b *query.Node) bool { return a.Order() < b.Order() })
		ctxNodes = next
	}
	return nodeValue(ctxNodes), nil
}

func nodeValue(nodes []*query.Node) query.Value {
	items := make([]query.Item, len(nodes))
	for i, n := range nodes {
		items[i] = n
	}
	return query.NewItemSeq(items)
}

// Iter implements the Expression interface.
func (p *Path) Iter(ctx *query.Context) (query.Iter, error) {
	return query.IterOf(ctx, p)
}

// Item implements the Expression interface.
func (p *Path) Item(ctx *query.Context) (query.Item, error) {
	return query.ItemOf(ctx, p, p.info)
}

// Copy implements the Expression interface.
func (p *Path) Copy(ctx *query.Context, scope *query.VarScope, vars query.VarMap) query.Expression {
	var root query.Expression
	if p.Root != nil {
		root = p.Root.Copy(ctx, scope, vars)
	}
	steps := make([]*Step, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = s.copy(ctx, scope, vars)
	}
	return NewPath(root, p.info, steps...)
}

// Accept implements the Expression interface.
func (p *Path) Accept(v query.ASTVisitor) bool {
	if p.Root == nil {
		if !v.Lock(query.ContextResource) {
			return false
		}
	} else if !p.Root.Accept(v) {
		return false
	}
	for _, s := range p.Steps {
		if !s.Accept(v) {
			return false
		}
	}
	return true
}

// Has implements the Expression interface. Steps are evaluated with their
// own focus.
func (p *Path) Has(f query.Flag) bool {
	if p.Root == nil {
		if f == query.FlagCtx {
			return true
		}
	} else if p.Root.Has(f) {
		return true
	}
	if f == query.FlagCtx || f == query.FlagFcs {
		return false
	}
	for _, s := range p.Steps {
		if s.Has(f) {
			return true
		}
	}
	return false
}

func (p *Path) String() string {
	parts := make([]string, 0, len(p.Steps)+1)
	if p.Root != nil {
		parts = append(parts, query.DebugString(p.Root))
	}
	for _, s := range p.Steps {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "/")
}

// Plan implements the query.Planner interface.
func (p *Path) Plan() *query.PlanNode {
	n := query.NewPlan("Path", "type", p.Type().String())
	if p.Root != nil {
		n.Children = append(n.Children, query.PlanOf(p.Root))
	}
	for _, s := range p.Steps {
		n.Children = append(n.Children, query.NewPlan("Step", "step", s.String()))
	}
	return n
}

// SameAs reports whether both paths have the same root and steps.
func (p *Path) SameAs(o *Path) bool {
	if (p.Root == nil) != (o.Root == nil) || len(p.Steps) != len(o.Steps) {
		return false
	}
	if p.Root != nil && !query.SameAs(p.Root, o.Root) {
		return false
	}
	for i, s := range p.Steps {
		t := o.Steps[i]
		if s.Axis != t.Axis || !s.Test.SameAs(t.Test) || len(s.Preds) != len(t.Preds) {
			return false
		}
		for j, pred := range s.Preds {
			if !query.SameAs(pred, t.Preds[j]) {
				return false
			}
		}
	}
	return true
}
