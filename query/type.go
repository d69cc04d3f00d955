package query

import (
	"fmt"
	"strings"
)

// Type is the dynamic type of a single item.
type Type interface {
	fmt.Stringer
	// Parent returns the direct supertype, or nil for item().
	Parent() Type
	// InstanceOf reports whether every instance of this type is an instance of t.
	InstanceOf(t Type) bool
	// Eq reports whether both types are the same.
	Eq(t Type) bool
	IsNumber() bool
	// IsUntyped reports whether instances atomize to untyped values.
	IsUntyped() bool
}

// IsNumberOrUntyped reports whether t is numeric or atomizes to untyped values.
func IsNumberOrUntyped(t Type) bool {
	return t.IsNumber() || t.IsUntyped()
}

// UnionType returns the most specific common supertype of a and b.
func UnionType(a, b Type) Type {
	for t := a; t != nil; t = t.Parent() {
		if b.InstanceOf(t) {
			return t
		}
	}
	return ItemType
}

// IntersectType returns the more specific of a and b, or nil if they have no
// common instances.
func IntersectType(a, b Type) Type {
	if a.InstanceOf(b) {
		return a
	}
	if b.InstanceOf(a) {
		return b
	}
	return nil
}

func instanceOf(a, b Type) bool {
	for t := a; t != nil; t = t.Parent() {
		if t.Eq(b) {
			return true
		}
	}
	return false
}

// AtomType enumerates item() and the atomic types.
type AtomType uint8

const (
	// ItemType is item(), the supertype of all items.
	ItemType AtomType = iota
	AnyAtomicType
	UntypedAtomicType
	StringType
	BooleanType
	NumericType
	DecimalType
	IntegerType
	DoubleType
	FloatType
	QNameType
	AnyURIType
)

var atomParents = [...]AtomType{
	ItemType:          ItemType,
	AnyAtomicType:     ItemType,
	UntypedAtomicType: AnyAtomicType,
	StringType:        AnyAtomicType,
	BooleanType:       AnyAtomicType,
	NumericType:       AnyAtomicType,
	DecimalType:       NumericType,
	IntegerType:       DecimalType,
	DoubleType:        NumericType,
	FloatType:         NumericType,
	QNameType:         AnyAtomicType,
	AnyURIType:        AnyAtomicType,
}

var atomNames = [...]string{
	ItemType:          "item()",
	AnyAtomicType:     "xs:anyAtomicType",
	UntypedAtomicType: "xs:untypedAtomic",
	StringType:        "xs:string",
	BooleanType:       "xs:boolean",
	NumericType:       "xs:numeric",
	DecimalType:       "xs:decimal",
	IntegerType:       "xs:integer",
	DoubleType:        "xs:double",
	FloatType:         "xs:float",
	QNameType:         "xs:QName",
	AnyURIType:        "xs:anyURI",
}

func (t AtomType) String() string { return atomNames[t] }

// Parent implements the Type interface.
func (t AtomType) Parent() Type {
	if t == ItemType {
		return nil
	}
	return atomParents[t]
}

// InstanceOf implements the Type interface.
func (t AtomType) InstanceOf(o Type) bool { return instanceOf(t, o) }

// Eq implements the Type interface.
func (t AtomType) Eq(o Type) bool {
	a, ok := o.(AtomType)
	return ok && a == t
}

// IsNumber implements the Type interface.
func (t AtomType) IsNumber() bool {
	switch t {
	case NumericType, DecimalType, IntegerType, DoubleType, FloatType:
		return true
	}
	return false
}

// IsUntyped implements the Type interface.
func (t AtomType) IsUntyped() bool { return t == UntypedAtomicType }

// IsAtomic reports whether t is an atomic type.
func (t AtomType) IsAtomic() bool { return t != ItemType }

// NodeType enumerates the node kinds.
type NodeType uint8

const (
	// AnyNodeType is node().
	AnyNodeType NodeType = iota
	DocumentType
	ElementType
	AttributeType
	TextType
)

var nodeNames = [...]string{
	AnyNodeType:   "node()",
	DocumentType:  "document-node()",
	ElementType:   "element()",
	AttributeType: "attribute()",
	TextType:      "text()",
}

func (t NodeType) String() string { return nodeNames[t] }

// Parent implements the Type interface.
func (t NodeType) Parent() Type {
	if t == AnyNodeType {
		return ItemType
	}
	return AnyNodeType
}

// InstanceOf implements the Type interface.
func (t NodeType) InstanceOf(o Type) bool { return instanceOf(t, o) }

// Eq implements the Type interface.
func (t NodeType) Eq(o Type) bool {
	n, ok := o.(NodeType)
	return ok && n == t
}

// IsNumber implements the Type interface.
func (NodeType) IsNumber() bool { return false }

// IsUntyped implements the Type interface. Nodes atomize to untyped values.
func (NodeType) IsUntyped() bool { return true }

// FuncType is the type of function items. A nil Args slice denotes function(*).
type FuncType struct {
	Args []*SeqType
	Ret  *SeqType
}

// AnyFuncType is function(*).
var AnyFuncType = &FuncType{}

// NewFuncType creates the type of functions with the given signature.
func NewFuncType(ret *SeqType, args ...*SeqType) *FuncType {
	if args == nil {
		args = []*SeqType{}
	}
	return &FuncType{Args: args, Ret: ret}
}

// ArityType returns the type of any function taking n arguments.
func ArityType(n int) *FuncType {
	args := make([]*SeqType, n)
	for i := range args {
		args[i] = ItemZeroMore
	}
	return NewFuncType(ItemZeroMore, args...)
}

// Arity returns the number of arguments, or -1 for function(*).
func (t *FuncType) Arity() int {
	if t.Args == nil {
		return -1
	}
	return len(t.Args)
}

func (t *FuncType) String() string {
	if t.Args == nil {
		return "function(*)"
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	ret := ItemZeroMore
	if t.Ret != nil {
		ret = t.Ret
	}
	return fmt.Sprintf("function(%s) as %s", strings.Join(args, ", "), ret)
}

// Parent implements the Type interface.
func (t *FuncType) Parent() Type {
	if t.Args == nil {
		return ItemType
	}
	return AnyFuncType
}

// InstanceOf implements the Type interface. Argument types are contravariant
// and the return type is covariant.
func (t *FuncType) InstanceOf(o Type) bool {
	if a, ok := o.(AtomType); ok {
		return a == ItemType
	}
	ft, ok := o.(*FuncType)
	if !ok {
		return false
	}
	if ft.Args == nil {
		return true
	}
	if t.Args == nil || len(t.Args) != len(ft.Args) {
		return false
	}
	for i, a := range ft.Args {
		if !a.InstanceOf(t.Args[i]) {
			return false
		}
	}
	return ft.Ret == nil || t.Ret != nil && t.Ret.InstanceOf(ft.Ret)
}

// Eq implements the Type interface.
func (t *FuncType) Eq(o Type) bool {
	ft, ok := o.(*FuncType)
	if !ok {
		return false
	}
	if (t.Args == nil) != (ft.Args == nil) || len(t.Args) != len(ft.Args) {
		return false
	}
	for i, a := range t.Args {
		if !a.Eq(ft.Args[i]) {
			return false
		}
	}
	if t.Ret == nil || ft.Ret == nil {
		return t.Ret == ft.Ret
	}
	return t.Ret.Eq(ft.Ret)
}

// IsNumber implements the Type interface.
func (*FuncType) IsNumber() bool { return false }

// IsUntyped implements the Type interface.
func (*FuncType) IsUntyped() bool { return false }

// MapType is the type map(*).
type MapType struct{}

// AnyMapType is map(*).
var AnyMapType = MapType{}

func (MapType) String() string { return "map(*)" }

// Parent implements the Type interface.
func (MapType) Parent() Type { return ItemType }

// InstanceOf implements the Type interface.
func (t MapType) InstanceOf(o Type) bool { return instanceOf(t, o) }

// Eq implements the Type interface.
func (MapType) Eq(o Type) bool {
	_, ok := o.(MapType)
	return ok
}

// IsNumber implements the Type interface.
func (MapType) IsNumber() bool { return false }

// IsUntyped implements the Type interface.
func (MapType) IsUntyped() bool { return false }
