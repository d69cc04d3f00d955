package query

import "gopkg.in/src-d/go-errors.v1"

// Query error kinds take the InputInfo of the failing expression as their
// first argument.
var (
	// ErrInvalidCast is returned when a value does not match the type it is
	// checked against, either statically or at evaluation time.
	ErrInvalidCast = errors.NewKind("%s: cannot treat %s as %s")

	// ErrTreat is returned when a treat expression finds a value of the wrong type.
	ErrTreat = errors.NewKind("%s: %s: cannot treat %s as %s")

	// ErrTreatMultiple is returned when a treat expression expecting at most
	// one item finds more.
	ErrTreatMultiple = errors.NewKind("%s: %s: sequence cannot be treated as %s")

	// ErrCast is returned when an item cannot be cast to the target type.
	ErrCast = errors.NewKind("%s: cannot cast %s to %s: %s")

	// ErrCastEmpty is returned when the empty sequence is cast to a type
	// that does not allow it.
	ErrCastEmpty = errors.NewKind("%s: cannot cast empty sequence to %s")

	// ErrTypePromotion is returned when function conversion rules cannot
	// turn a value into the expected type.
	ErrTypePromotion = errors.NewKind("%s: cannot promote %s to %s")

	// ErrArity is returned when a function item is invoked with the wrong
	// number of arguments.
	ErrArity = errors.NewKind("%s: %s expects %d argument(s), %d supplied")

	// ErrCircularDeclaration is returned when the compilation or evaluation of
	// a static declaration depends on itself.
	ErrCircularDeclaration = errors.NewKind("%s: circular dependency in declaration of %s")

	// ErrSeqFound is returned when a single item is expected and a sequence
	// of more items is found.
	ErrSeqFound = errors.NewKind("%s: item expected, sequence found: %s")

	// ErrEmptyFound is returned when a single item is expected and the empty
	// sequence is found.
	ErrEmptyFound = errors.NewKind("%s: item expected, empty sequence found")

	// ErrEBV is returned when the effective boolean value of a value cannot
	// be computed.
	ErrEBV = errors.NewKind("%s: effective boolean value not defined for %s")

	// ErrDivisionByZero is returned by integer and decimal division by zero.
	ErrDivisionByZero = errors.NewKind("%s: division by zero: %s")

	// ErrIntegerOverflow is returned when integer arithmetic overflows.
	ErrIntegerOverflow = errors.NewKind("%s: integer overflow: %s")

	// ErrFuncExpected is returned when a dynamic call is applied to an item
	// that is not a function.
	ErrFuncExpected = errors.NewKind("%s: function expected, %s found")

	// ErrNumberExpected is returned when an arithmetic operand is not numeric.
	ErrNumberExpected = errors.NewKind("%s: %s operator: number expected, %s found")

	// ErrNoContext is returned when the context item is accessed but undefined.
	ErrNoContext = errors.NewKind("%s: no context value bound")

	// ErrNoContextSize is returned when last() is evaluated without a known
	// context size.
	ErrNoContextSize = errors.NewKind("%s: context size is unknown")

	// ErrCompare is returned when two items cannot be compared.
	ErrCompare = errors.NewKind("%s: %s and %s cannot be compared")

	// ErrAtomize is returned when an item has no typed value.
	ErrAtomize = errors.NewKind("%s: items of type %s cannot be atomized")

	// ErrVarUndefined is returned when an external variable has no value.
	ErrVarUndefined = errors.NewKind("%s: no value bound to %s")

	// ErrFuncUnknown is returned when a static function cannot be resolved.
	ErrFuncUnknown = errors.NewKind("%s: unknown function %s#%d")

	// ErrResourceNotFound is returned by storage collaborators when a named
	// resource does not exist.
	ErrResourceNotFound = errors.NewKind("%s: resource not found: %s")

	// ErrPathNode is returned when a path step is applied to a non-node item.
	ErrPathNode = errors.NewKind("%s: path step applied to non-node %s")

	// ErrInvalidArgumentNumber is returned when a builtin function is called
	// with the wrong number of arguments.
	ErrInvalidArgumentNumber = errors.NewKind("%s: function '%s' expected %v arguments, %v received")

	// ErrFunctionAlreadyRegistered is returned when a builtin function is
	// registered twice.
	ErrFunctionAlreadyRegistered = errors.NewKind("function '%s' is already registered")

	// ErrDuplicateDecl is returned when a module declares a name twice.
	ErrDuplicateDecl = errors.NewKind("%s: duplicate declaration of %s")

	// ErrNoRandomAccess is returned by Get on iterators of unknown size.
	ErrNoRandomAccess = errors.NewKind("iterator does not support random access")

	// ErrInvalidChildrenNumber is returned when the WithChildren method of an
	// expression is called with an invalid number of arguments.
	ErrInvalidChildrenNumber = errors.NewKind("%T: invalid children number, got %d, expected %d")

	// ErrInvalidChildType is returned when the WithChildren method of an
	// expression is called with a child of an unexpected type.
	ErrInvalidChildType = errors.NewKind("%T: invalid child type %T at position %d")
)
