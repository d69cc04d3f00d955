package query

import "strings"

// Function is a builtin function that can be called with a range of arities.
type Function interface {
	// FunctionName returns the prefixed name of the function.
	FunctionName() string
	// Arities returns the minimum and maximum number of arguments.
	Arities() (min, max int)
	// NewInstance returns a call of the function with the given arguments.
	NewInstance(info InputInfo, args ...Expression) (Expression, error)
}

// Function0 is a function without arguments.
type Function0 struct {
	Name string
	Fn   func(info InputInfo) Expression
}

// Function1 is a function with one argument.
type Function1 struct {
	Name string
	Fn   func(info InputInfo, e Expression) Expression
}

// Function2 is a function with two arguments.
type Function2 struct {
	Name string
	Fn   func(info InputInfo, e1, e2 Expression) Expression
}

// Function3 is a function with three arguments.
type Function3 struct {
	Name string
	Fn   func(info InputInfo, e1, e2, e3 Expression) Expression
}

// FunctionN is a function with a variable number of arguments.
type FunctionN struct {
	Name     string
	Min, Max int
	Fn       func(info InputInfo, args ...Expression) (Expression, error)
}

var (
	_ Function = Function0{}
	_ Function = Function1{}
	_ Function = Function2{}
	_ Function = Function3{}
	_ Function = FunctionN{}
)

func (f Function0) FunctionName() string { return f.Name }
func (f Function1) FunctionName() string { return f.Name }
func (f Function2) FunctionName() string { return f.Name }
func (f Function3) FunctionName() string { return f.Name }
func (f FunctionN) FunctionName() string { return f.Name }

func (Function0) Arities() (int, int)   { return 0, 0 }
func (Function1) Arities() (int, int)   { return 1, 1 }
func (Function2) Arities() (int, int)   { return 2, 2 }
func (Function3) Arities() (int, int)   { return 3, 3 }
func (f FunctionN) Arities() (int, int) { return f.Min, f.Max }

// NewInstance implements the Function interface.
func (f Function0) NewInstance(info InputInfo, args ...Expression) (Expression, error) {
	if len(args) != 0 {
		return nil, ErrInvalidArgumentNumber.New(info, f.Name, 0, len(args))
	}
	return f.Fn(info), nil
}

// NewInstance implements the Function interface.
func (f Function1) NewInstance(info InputInfo, args ...Expression) (Expression, error) {
	if len(args) != 1 {
		return nil, ErrInvalidArgumentNumber.New(info, f.Name, 1, len(args))
	}
	return f.Fn(info, args[0]), nil
}

// NewInstance implements the Function interface.
func (f Function2) NewInstance(info InputInfo, args ...Expression) (Expression, error) {
	if len(args) != 2 {
		return nil, ErrInvalidArgumentNumber.New(info, f.Name, 2, len(args))
	}
	return f.Fn(info, args[0], args[1]), nil
}

// NewInstance implements the Function interface.
func (f Function3) NewInstance(info InputInfo, args ...Expression) (Expression, error) {
	if len(args) != 3 {
		return nil, ErrInvalidArgumentNumber.New(info, f.Name, 3, len(args))
	}
	return f.Fn(info, args[0], args[1], args[2]), nil
}

// NewInstance implements the Function interface.
func (f FunctionN) NewInstance(info InputInfo, args ...Expression) (Expression, error) {
	if len(args) < f.Min || f.Max >= 0 && len(args) > f.Max {
		return nil, ErrInvalidArgumentNumber.New(info, f.Name, f.Min, len(args))
	}
	return f.Fn(info, args...)
}

// FunctionRegistry is used to register builtin functions.
type FunctionRegistry map[string]Function

// NewFunctionRegistry creates a new empty registry.
func NewFunctionRegistry() FunctionRegistry {
	return FunctionRegistry{}
}

// Register registers functions by their name, failing on duplicates.
func (r FunctionRegistry) Register(fns ...Function) error {
	for _, f := range fns {
		if _, ok := r[f.FunctionName()]; ok {
			return ErrFunctionAlreadyRegistered.New(f.FunctionName())
		}
		r[f.FunctionName()] = f
	}
	return nil
}

// Function returns the function with the given name, which may omit the
// default fn prefix.
func (r FunctionRegistry) Function(name string) (Function, bool) {
	if f, ok := r[name]; ok {
		return f, true
	}
	if !strings.ContainsRune(name, ':') {
		f, ok := r["fn:"+name]
		return f, ok
	}
	return nil, false
}

// Lookup returns the function with the given name accepting arity arguments.
func (r FunctionRegistry) Lookup(name QName, arity int) (Function, bool) {
	f, ok := r.Function(name.String())
	if !ok {
		return nil, false
	}
	min, max := f.Arities()
	if arity < min || max >= 0 && arity > max {
		return nil, false
	}
	return f, true
}
