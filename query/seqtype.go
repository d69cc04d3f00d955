package query

import (
	"fmt"
	"math"
)

// Occ is an occurrence indicator of a sequence type.
type Occ struct {
	Min int
	Max int
}

// Unbounded is the maximum of an occurrence indicator without upper bound.
const Unbounded = math.MaxInt32

// Occurrence indicators.
var (
	OccZero     = Occ{0, 0}
	OccZeroOne  = Occ{0, 1}
	OccOne      = Occ{1, 1}
	OccOneMore  = Occ{1, Unbounded}
	OccZeroMore = Occ{0, Unbounded}
)

// OccOf returns the occurrence indicator covering the given sizes. A negative
// max is unbounded.
func OccOf(min, max int64) Occ {
	if min > 0 {
		if max == 1 {
			return OccOne
		}
		return OccOneMore
	}
	switch max {
	case 0:
		return OccZero
	case 1:
		return OccZeroOne
	}
	return OccZeroMore
}

// Check reports whether n items satisfy the indicator.
func (o Occ) Check(n int64) bool {
	return n >= int64(o.Min) && n <= int64(o.Max)
}

// InstanceOf reports whether o is contained in p.
func (o Occ) InstanceOf(p Occ) bool {
	return o.Min >= p.Min && o.Max <= p.Max
}

// Union returns the smallest indicator containing o and p.
func (o Occ) Union(p Occ) Occ {
	return Occ{minInt(o.Min, p.Min), maxInt(o.Max, p.Max)}
}

// Intersect returns the indicator contained in both o and p, and false if
// there is none.
func (o Occ) Intersect(p Occ) (Occ, bool) {
	r := Occ{maxInt(o.Min, p.Min), minInt(o.Max, p.Max)}
	return r, r.Min <= r.Max
}

func (o Occ) String() string {
	switch o {
	case OccZero, OccOne:
		return ""
	case OccZeroOne:
		return "?"
	case OccOneMore:
		return "+"
	case OccZeroMore:
		return "*"
	}
	if o.Max == Unbounded {
		return fmt.Sprintf("{%d,*}", o.Min)
	}
	return fmt.Sprintf("{%d,%d}", o.Min, o.Max)
}

// SeqType is a declared sequence type: an item type plus an occurrence indicator.
type SeqType struct {
	Type Type
	Occ  Occ
}

// Common sequence types.
var (
	EmptySeqType   = &SeqType{ItemType, OccZero}
	ItemOne        = &SeqType{ItemType, OccOne}
	ItemZeroOne    = &SeqType{ItemType, OccZeroOne}
	ItemZeroMore   = &SeqType{ItemType, OccZeroMore}
	AtomZeroOne    = &SeqType{AnyAtomicType, OccZeroOne}
	AtomZeroMore   = &SeqType{AnyAtomicType, OccZeroMore}
	BooleanOne     = &SeqType{BooleanType, OccOne}
	IntegerOne     = &SeqType{IntegerType, OccOne}
	IntegerZeroOne = &SeqType{IntegerType, OccZeroOne}
	DoubleOne      = &SeqType{DoubleType, OccOne}
	StringOne      = &SeqType{StringType, OccOne}
	StringZeroOne  = &SeqType{StringType, OccZeroOne}
	QNameZeroOne   = &SeqType{QNameType, OccZeroOne}
	NodeZeroMore   = &SeqType{AnyNodeType, OccZeroMore}
	FuncOne        = &SeqType{AnyFuncType, OccOne}
	FuncZeroOne    = &SeqType{AnyFuncType, OccZeroOne}
	MapOne         = &SeqType{AnyMapType, OccOne}
)

// NewSeqType creates a sequence type.
func NewSeqType(t Type, o Occ) *SeqType {
	return &SeqType{Type: t, Occ: o}
}

// WithOcc returns the sequence type with the item type of s and occurrence o.
func (s *SeqType) WithOcc(o Occ) *SeqType {
	if s.Occ == o {
		return s
	}
	return &SeqType{s.Type, o}
}

// IsEmpty reports whether the type only admits the empty sequence.
func (s *SeqType) IsEmpty() bool { return s.Occ.Max == 0 }

// MayBeZero reports whether the empty sequence is an instance.
func (s *SeqType) MayBeZero() bool { return s.Occ.Min == 0 }

// ZeroOrOne reports whether instances have at most one item.
func (s *SeqType) ZeroOrOne() bool { return s.Occ.Max <= 1 }

// One reports whether instances have exactly one item.
func (s *SeqType) One() bool { return s.Occ == OccOne }

// InstanceOf reports whether every instance of s is an instance of o.
func (s *SeqType) InstanceOf(o *SeqType) bool {
	return s.Occ.InstanceOf(o.Occ) && (s.IsEmpty() || s.Type.InstanceOf(o.Type))
}

// Eq reports whether both types are the same.
func (s *SeqType) Eq(o *SeqType) bool {
	return s.Occ == o.Occ && s.Type.Eq(o.Type)
}

// Union returns the smallest sequence type containing s and o.
func (s *SeqType) Union(o *SeqType) *SeqType {
	occ := s.Occ.Union(o.Occ)
	switch {
	case s.IsEmpty():
		return &SeqType{o.Type, occ}
	case o.IsEmpty():
		return &SeqType{s.Type, occ}
	}
	return &SeqType{UnionType(s.Type, o.Type), occ}
}

// Intersect returns the sequence type of values that are instances of both s
// and o, or nil if there are none.
func (s *SeqType) Intersect(o *SeqType) *SeqType {
	occ, ok := s.Occ.Intersect(o.Occ)
	if !ok {
		return nil
	}
	t := IntersectType(s.Type, o.Type)
	if t == nil {
		if occ.Min > 0 {
			return nil
		}
		return EmptySeqType
	}
	return &SeqType{t, occ}
}

// Instance reports whether v is an instance of s.
func (s *SeqType) Instance(v Value) bool {
	n := v.Size()
	if !s.Occ.Check(n) {
		return false
	}
	if v.Card().Type().InstanceOf(s.Type) {
		return true
	}
	for i := int64(0); i < n; i++ {
		if !InstanceOf(v.ItemAt(i), s.Type) {
			return false
		}
	}
	return true
}

// CouldBe reports whether values described by c may be converted to s with
// the function conversion rules.
func (s *SeqType) CouldBe(c *Cardinality) bool {
	if c.MinSize() > int64(s.Occ.Max) {
		return false
	}
	if c.IsBounded() && c.MaxSize() < int64(s.Occ.Min) {
		return false
	}
	if c.IsEmpty() || s.IsEmpty() {
		return c.MinSize() == 0
	}
	if IntersectType(c.Type(), s.Type) != nil {
		return true
	}
	return promotable(c.Type(), s.Type)
}

func promotable(from, to Type) bool {
	switch {
	case from.IsUntyped():
		_, atomic := to.(AtomType)
		return atomic
	case from.IsNumber():
		return to.IsNumber()
	case from.Eq(AnyURIType):
		return to.Eq(StringType)
	}
	_, f1 := from.(*FuncType)
	_, f2 := to.(*FuncType)
	return f1 && f2
}

func (s *SeqType) String() string {
	if s.IsEmpty() {
		return "empty-sequence()"
	}
	return s.Type.String() + s.Occ.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
