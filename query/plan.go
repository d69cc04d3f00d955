package query

import (
	"fmt"
	"reflect"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	yaml "gopkg.in/yaml.v2"
)

// PlanNode is the structured representation of an expression tree, used by
// tooling to inspect compiled queries.
type PlanNode struct {
	Name     string            `yaml:"name"`
	Attrs    map[string]string `yaml:"attrs,omitempty"`
	Children []*PlanNode       `yaml:"children,omitempty"`
}

// Planner is implemented by expressions rendering their own plan.
type Planner interface {
	Plan() *PlanNode
}

// NewPlan creates a plan node with the given attribute key/value pairs.
func NewPlan(name string, kv ...string) *PlanNode {
	p := &PlanNode{Name: name}
	if len(kv) > 0 {
		p.Attrs = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			p.Attrs[kv[i]] = kv[i+1]
		}
	}
	return p
}

// PlanOf returns the plan of an expression. Expressions not implementing
// Planner are rendered by their type name, cardinality and children.
func PlanOf(e Expression) *PlanNode {
	if p, ok := e.(Planner); ok {
		return p.Plan()
	}
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	p := NewPlan(t.Name(), "type", e.Type().String())
	if len(e.Children()) == 0 {
		p.Attrs["value"] = DebugString(e)
	}
	for _, c := range e.Children() {
		p.Children = append(p.Children, PlanOf(c))
	}
	return p
}

// YAML renders the plan as a YAML document.
func (p *PlanNode) YAML() (string, error) {
	b, err := yaml.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *PlanNode) String() string {
	tp := NewTreePrinter()
	_ = tp.WriteNode("%s", p.label())
	children := make([]string, len(p.Children))
	for i, c := range p.Children {
		children[i] = c.String()
	}
	_ = tp.WriteChildren(children...)
	return tp.String()
}

func (p *PlanNode) label() string {
	if len(p.Attrs) == 0 {
		return p.Name
	}
	keys := maps.Keys(p.Attrs)
	slices.Sort(keys)
	label := p.Name + "("
	for i, k := range keys {
		if i > 0 {
			label += ", "
		}
		label += fmt.Sprintf("%s=%s", k, p.Attrs[k])
	}
	return label + ")"
}
