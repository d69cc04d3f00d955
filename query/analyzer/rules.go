package analyzer

import (
	"reflect"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// OnceBeforeDefault contains the rules to be applied just once before the
// DefaultRules.
var OnceBeforeDefault = []Rule{
	{"compile", compileBody},
}

// DefaultRules to apply when analyzing expressions. They are applied until
// the expression does not change anymore.
var DefaultRules = []Rule{
	{"optimize", optimizeTree},
}

// DefaultValidationRules to apply while analyzing expressions.
var DefaultValidationRules = []Rule{
	{"validate_types", validateTypes},
}

func compileBody(ctx *query.Context, _ *Analyzer, scope *query.VarScope, e query.Expression) (query.Expression, error) {
	return e.Compile(ctx, scope)
}

// optimizeTree runs the optimizations of all nodes again, bottom-up. Nodes
// are rewritten when the refined types of their children allow more
// simplifications than the first compilation found.
func optimizeTree(ctx *query.Context, a *Analyzer, scope *query.VarScope, e query.Expression) (query.Expression, error) {
	span, ctx := ctx.Span("optimize")
	defer span.Finish()

	result, _, err := query.TransformUp(e, func(e query.Expression) (query.Expression, query.TreeIdentity, error) {
		o, err := e.Optimize(ctx, scope)
		if err != nil {
			return nil, query.SameTree, err
		}
		if query.SameAs(e, o) {
			return e, query.SameTree, nil
		}

		a.Log("rewriting %s to %s", query.DebugString(e), query.DebugString(o))
		a.metrics.rewrites.WithLabelValues(nodeName(e)).Inc()
		return o, query.NewTree, nil
	})
	return result, err
}

// validateTypes checks that every node has a type and that constants are
// instances of it.
func validateTypes(_ *query.Context, _ *Analyzer, _ *query.VarScope, e query.Expression) (query.Expression, error) {
	var err error
	query.Inspect(e, func(e query.Expression) bool {
		if err != nil {
			return false
		}
		t := e.Type()
		if t == nil {
			err = ErrInvalidType.New(query.InfoOf(e), nodeName(e), "missing type")
			return false
		}
		if c, ok := e.(query.Constant); ok {
			n := c.Val().Size()
			if n < t.MinSize() || t.IsBounded() && n > t.MaxSize() {
				err = ErrInvalidType.New(query.InfoOf(e), nodeName(e), t)
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func nodeName(e query.Expression) string {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
