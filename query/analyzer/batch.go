package analyzer

import (
	"gopkg.in/src-d/go-xquery.v0/query"
)

// RuleFunc is the function to be applied in a rule.
type RuleFunc func(*query.Context, *Analyzer, *query.VarScope, query.Expression) (query.Expression, error)

// Rule to transform expressions.
type Rule struct {
	// Name of the rule.
	Name string
	// Apply transforms an expression.
	Apply RuleFunc
}

// Batch executes a set of rules a specific number of times.
// When this number of times is reached, the actual expression
// and ErrMaxAnalysisIters is returned.
type Batch struct {
	Desc       string
	Iterations int
	Rules      []Rule
}

// Eval executes the actual rules the specified number of times on the Batch.
// If max number of iterations is reached, this method will return the actual
// processed expression and ErrMaxAnalysisIters error. The iterations are
// further bounded by the MaxIterations option of the context.
func (b *Batch) Eval(
	ctx *query.Context,
	a *Analyzer,
	scope *query.VarScope,
	e query.Expression,
) (query.Expression, error) {
	iterations := b.Iterations
	if max := ctx.Options.MaxIterations; iterations > 1 && max > 0 && max < iterations {
		iterations = max
	}
	if iterations == 0 || len(b.Rules) == 0 {
		return e, nil
	}

	prev := e
	cur, err := b.evalOnce(ctx, a, scope, e)
	if err != nil {
		return nil, err
	}

	if iterations == 1 {
		return cur, nil
	}

	for i := 1; !query.SameAs(prev, cur); {
		prev = cur
		cur, err = b.evalOnce(ctx, a, scope, cur)
		if err != nil {
			return nil, err
		}

		i++
		if i >= iterations {
			return cur, ErrMaxAnalysisIters.New(iterations)
		}
	}

	return cur, nil
}

func (b *Batch) evalOnce(
	ctx *query.Context,
	a *Analyzer,
	scope *query.VarScope,
	e query.Expression,
) (query.Expression, error) {
	result := e
	for _, rule := range b.Rules {
		var err error
		a.PushDebugContext(rule.Name)
		result, err = rule.Apply(ctx, a, scope, result)
		a.PopDebugContext()
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}
