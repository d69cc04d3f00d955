package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type emptySeq struct{}

// Empty is the empty sequence.
var Empty Value = emptySeq{}

func (emptySeq) Size() int64        { return 0 }
func (emptySeq) Card() *Cardinality { return EmptyCard }
func (emptySeq) String() string     { return "()" }
func (emptySeq) ItemAt(i int64) Item {
	panic(fmt.Sprintf("index %d out of range of empty sequence", i))
}

// ItemSeq is a sequence of at least two arbitrary items.
type ItemSeq struct {
	items []Item
	card  *Cardinality
}

// NewItemSeq returns the value of the given items.
func NewItemSeq(items []Item) Value {
	switch len(items) {
	case 0:
		return Empty
	case 1:
		return items[0]
	}
	t := items[0].Type()
	for _, it := range items[1:] {
		t = UnionType(t, it.Type())
	}
	n := int64(len(items))
	return &ItemSeq{items: items, card: CardOf(t, n, n)}
}

// Items returns the items of the sequence.
func (s *ItemSeq) Items() []Item { return s.items }

// Size implements the Value interface.
func (s *ItemSeq) Size() int64 { return int64(len(s.items)) }

// ItemAt implements the Value interface.
func (s *ItemSeq) ItemAt(i int64) Item { return s.items[i] }

// Card implements the Value interface.
func (s *ItemSeq) Card() *Cardinality { return s.card }

func (s *ItemSeq) String() string { return seqString(s) }

type native interface {
	int64 | float64 | string | bool | decimal.Decimal
}

// nativeSeq is a compact sequence of at least two items of one atomic type.
type nativeSeq[T native] struct {
	vals []T
	typ  AtomType
}

func newNativeSeq[T native](typ AtomType, vals []T) Value {
	s := &nativeSeq[T]{vals: vals, typ: typ}
	switch len(vals) {
	case 0:
		return Empty
	case 1:
		return s.ItemAt(0)
	}
	return s
}

// NewIntSeq returns the sequence of the given integers.
func NewIntSeq(vals ...int64) Value { return newNativeSeq(IntegerType, vals) }

// NewDblSeq returns the sequence of the given doubles.
func NewDblSeq(vals ...float64) Value { return newNativeSeq(DoubleType, vals) }

// NewStrSeq returns the sequence of the given strings.
func NewStrSeq(vals ...string) Value { return newNativeSeq(StringType, vals) }

// NewBlnSeq returns the sequence of the given booleans.
func NewBlnSeq(vals ...bool) Value { return newNativeSeq(BooleanType, vals) }

// NewDecSeq returns the sequence of the given decimals.
func NewDecSeq(vals ...decimal.Decimal) Value { return newNativeSeq(DecimalType, vals) }

func (s *nativeSeq[T]) Size() int64 { return int64(len(s.vals)) }

func (s *nativeSeq[T]) Card() *Cardinality {
	n := int64(len(s.vals))
	return CardOf(s.typ, n, n)
}

func (s *nativeSeq[T]) ItemAt(i int64) Item {
	switch v := any(s.vals[i]).(type) {
	case int64:
		return Int(v)
	case float64:
		return Dbl(v)
	case string:
		return Str(v)
	case bool:
		return Bln(v)
	case decimal.Decimal:
		return Dec{v}
	}
	panic("unreachable")
}

func (s *nativeSeq[T]) String() string { return seqString(s) }

// IsCompact reports whether v uses a homogeneous compact representation.
func IsCompact(v Value) bool {
	switch v.(type) {
	case *nativeSeq[int64], *nativeSeq[float64], *nativeSeq[string],
		*nativeSeq[bool], *nativeSeq[decimal.Decimal], *RangeSeq:
		return true
	}
	return false
}

// Compact returns the value of the given items, using a compact
// representation if all items are integers, doubles, decimals, strings or
// booleans.
func Compact(items []Item) Value {
	if len(items) < 2 {
		return NewItemSeq(items)
	}
	switch items[0].(type) {
	case Int:
		if vals, ok := collect(items, func(it Item) (int64, bool) { i, ok := it.(Int); return int64(i), ok }); ok {
			return NewIntSeq(vals...)
		}
	case Dbl:
		if vals, ok := collect(items, func(it Item) (float64, bool) { d, ok := it.(Dbl); return float64(d), ok }); ok {
			return NewDblSeq(vals...)
		}
	case Str:
		if vals, ok := collect(items, func(it Item) (string, bool) { s, ok := it.(Str); return string(s), ok }); ok {
			return NewStrSeq(vals...)
		}
	case Bln:
		if vals, ok := collect(items, func(it Item) (bool, bool) { b, ok := it.(Bln); return bool(b), ok }); ok {
			return NewBlnSeq(vals...)
		}
	case Dec:
		if vals, ok := collect(items, func(it Item) (decimal.Decimal, bool) { d, ok := it.(Dec); return d.Decimal, ok }); ok {
			return NewDecSeq(vals...)
		}
	}
	return NewItemSeq(items)
}

func collect[T any](items []Item, f func(Item) (T, bool)) ([]T, bool) {
	vals := make([]T, len(items))
	for i, it := range items {
		v, ok := f(it)
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// RangeSeq is the lazy sequence of consecutive integers.
type RangeSeq struct {
	start int64
	size  int64
}

// NewRange returns the sequence of size integers starting at start.
func NewRange(start, size int64) Value {
	switch {
	case size <= 0:
		return Empty
	case size == 1:
		return Int(start)
	}
	return &RangeSeq{start: start, size: size}
}

// Size implements the Value interface.
func (r *RangeSeq) Size() int64 { return r.size }

// ItemAt implements the Value interface.
func (r *RangeSeq) ItemAt(i int64) Item { return Int(r.start + i) }

// Card implements the Value interface.
func (r *RangeSeq) Card() *Cardinality { return CardOf(IntegerType, r.size, r.size) }

func (r *RangeSeq) String() string {
	return fmt.Sprintf("(%d to %d)", r.start, r.start+r.size-1)
}

// ValueBuilder accumulates items into a value.
type ValueBuilder struct {
	items []Item
}

// Add appends all items of v.
func (b *ValueBuilder) Add(v Value) {
	if it, ok := v.(Item); ok {
		b.items = append(b.items, it)
		return
	}
	if s, ok := v.(*ItemSeq); ok {
		b.items = append(b.items, s.items...)
		return
	}
	for i, n := int64(0), v.Size(); i < n; i++ {
		b.items = append(b.items, v.ItemAt(i))
	}
}

// Len returns the number of items added so far.
func (b *ValueBuilder) Len() int { return len(b.items) }

// Value returns the accumulated items as a value.
func (b *ValueBuilder) Value() Value { return NewItemSeq(b.items) }

// NewSeq returns the concatenation of the given values.
func NewSeq(vals ...Value) Value {
	var b ValueBuilder
	for _, v := range vals {
		b.Add(v)
	}
	return b.Value()
}

// ValueString returns the debug representation of v, quoting strings.
func ValueString(v Value) string {
	switch v := v.(type) {
	case Str:
		return strconv.Quote(string(v))
	case Untyped:
		return "xs:untypedAtomic(" + strconv.Quote(string(v)) + ")"
	case URI:
		return "xs:anyURI(" + strconv.Quote(string(v)) + ")"
	case Dbl:
		if _, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return "xs:double(" + v.String() + ")"
		}
	}
	return v.String()
}

func seqString(v Value) string {
	n := v.Size()
	parts := make([]string, n)
	for i := int64(0); i < n; i++ {
		parts[i] = ValueString(v.ItemAt(i))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Items returns the items of v as a slice.
func Items(v Value) []Item {
	if s, ok := v.(*ItemSeq); ok {
		return s.items
	}
	n := v.Size()
	items := make([]Item, n)
	for i := int64(0); i < n; i++ {
		items[i] = v.ItemAt(i)
	}
	return items
}

// SameValue reports whether both values consist of the same items.
func SameValue(a, b Value) bool {
	n := a.Size()
	if n != b.Size() {
		return false
	}
	for i := int64(0); i < n; i++ {
		if !sameItem(a.ItemAt(i), b.ItemAt(i)) {
			return false
		}
	}
	return true
}

func sameItem(a, b Item) bool {
	switch a := a.(type) {
	case Dec:
		d, ok := b.(Dec)
		return ok && a.Equal(d.Decimal)
	case *Node:
		return a == b
	case FItem:
		f, ok := b.(FItem)
		return ok && a == f
	}
	if _, ok := b.(FItem); ok {
		return false
	}
	if _, ok := b.(Dec); ok {
		return false
	}
	return a == b
}
