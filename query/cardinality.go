package query

import (
	"fmt"
	"math"

	"github.com/mitchellh/hashstructure"
)

// Cardinality is the statically inferred type of a sequence: an item type
// and the inclusive range of its possible sizes. A maximum of -1 means the
// size is unbounded. Cardinalities are immutable.
type Cardinality struct {
	typ Type
	min int64
	max int64
}

var (
	// EmptyCard is the cardinality of the empty sequence.
	EmptyCard = &Cardinality{typ: ItemType, min: 0, max: 0}
	// AnyCard is the cardinality of an arbitrary sequence.
	AnyCard = &Cardinality{typ: ItemType, min: 0, max: -1}
)

// CardOf returns the cardinality with the given item type and size range.
func CardOf(t Type, min, max int64) *Cardinality {
	if max >= 0 && min > max {
		panic(fmt.Sprintf("invalid cardinality range [%d, %d]", min, max))
	}
	switch {
	case min == 0 && max == 0:
		return EmptyCard
	case min == 0 && max < 0 && t.Eq(ItemType):
		return AnyCard
	}
	if max < 0 {
		max = -1
	}
	return &Cardinality{typ: t, min: min, max: max}
}

// CardOfType returns the cardinality described by a declared sequence type.
func CardOfType(st *SeqType) *Cardinality {
	max := int64(st.Occ.Max)
	if st.Occ.Max == Unbounded {
		max = -1
	}
	return CardOf(st.Type, int64(st.Occ.Min), max)
}

// One returns the cardinality of exactly one item of type t.
func One(t Type) *Cardinality { return CardOf(t, 1, 1) }

// ZeroOrOne returns the cardinality of at most one item of type t.
func ZeroOrOne(t Type) *Cardinality { return CardOf(t, 0, 1) }

// ZeroOrMore returns the cardinality of any number of items of type t.
func ZeroOrMore(t Type) *Cardinality { return CardOf(t, 0, -1) }

// Type returns the item type.
func (c *Cardinality) Type() Type { return c.typ }

// MinSize returns the minimum size.
func (c *Cardinality) MinSize() int64 { return c.min }

// MaxSize returns the maximum size, -1 if unbounded.
func (c *Cardinality) MaxSize() int64 { return c.max }

// Size returns the exact size if known, -1 otherwise.
func (c *Cardinality) Size() int64 {
	if c.min == c.max {
		return c.min
	}
	return -1
}

// IsEmpty reports whether the sequence is statically empty.
func (c *Cardinality) IsEmpty() bool { return c.max == 0 }

// NonEmpty reports whether the sequence has at least one item.
func (c *Cardinality) NonEmpty() bool { return c.min > 0 }

// ZeroOrOne reports whether the sequence has at most one item.
func (c *Cardinality) ZeroOrOne() bool { return c.max == 0 || c.max == 1 }

// One reports whether the sequence has exactly one item.
func (c *Cardinality) One() bool { return c.min == 1 && c.max == 1 }

// MayBeZero reports whether the sequence may be empty.
func (c *Cardinality) MayBeZero() bool { return c.min == 0 }

// IsBounded reports whether the maximum size is known.
func (c *Cardinality) IsBounded() bool { return c.max >= 0 }

// Occ returns the occurrence indicator covering the size range.
func (c *Cardinality) Occ() Occ { return OccOf(c.min, c.max) }

// SeqType returns the declared sequence type approximating c.
func (c *Cardinality) SeqType() *SeqType {
	return &SeqType{Type: c.typ, Occ: c.Occ()}
}

// Plus returns the cardinality of the concatenation of two sequences.
func (c *Cardinality) Plus(o *Cardinality) *Cardinality {
	if c == EmptyCard {
		return o
	}
	if o == EmptyCard {
		return c
	}
	max := int64(-1)
	if c.max >= 0 && o.max >= 0 {
		max = addSize(c.max, o.max)
	}
	min := addSize(c.min, o.min)
	if min < 0 {
		min = math.MaxInt64
	}
	return CardOf(UnionType(c.typ, o.typ), min, max)
}

// addSize adds two sizes, returning -1 on overflow.
func addSize(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return -1
	}
	return a + b
}

// Or returns the cardinality of choosing either sequence.
func (c *Cardinality) Or(o *Cardinality) *Cardinality {
	t := UnionType(c.typ, o.typ)
	switch {
	case c == EmptyCard:
		t = o.typ
	case o == EmptyCard:
		t = c.typ
	}
	max := int64(-1)
	if c.max >= 0 && o.max >= 0 {
		max = maxInt64(c.max, o.max)
	}
	return CardOf(t, minInt64(c.min, o.min), max)
}

// Union returns the smallest cardinality containing both.
func (c *Cardinality) Union(o *Cardinality) *Cardinality {
	max := int64(-1)
	if c.max >= 0 && o.max >= 0 {
		max = maxInt64(c.max, o.max)
	}
	return CardOf(UnionType(c.typ, o.typ), minInt64(c.min, o.min), max)
}

// Intersect returns the cardinality of sequences described by both, or nil
// if there are none.
func (c *Cardinality) Intersect(o *Cardinality) *Cardinality {
	min := maxInt64(c.min, o.min)
	var max int64
	switch {
	case c.max < 0:
		max = o.max
	case o.max < 0:
		max = c.max
	default:
		max = minInt64(c.max, o.max)
	}
	if max >= 0 && min > max {
		return nil
	}
	if max == 0 {
		return EmptyCard
	}
	t := IntersectType(c.typ, o.typ)
	if t == nil {
		if min > 0 {
			return nil
		}
		return EmptyCard
	}
	return CardOf(t, min, max)
}

// InstanceOf reports whether every sequence described by c is described by o.
func (c *Cardinality) InstanceOf(o *Cardinality) bool {
	if c.min < o.min || o.max >= 0 && (c.max < 0 || c.max > o.max) {
		return false
	}
	return c.max == 0 || c.typ.InstanceOf(o.typ)
}

// WithType returns the cardinality with the same sizes and item type t.
func (c *Cardinality) WithType(t Type) *Cardinality {
	if c.typ.Eq(t) || c.max == 0 {
		return c
	}
	return CardOf(t, c.min, c.max)
}

// WithSize returns the cardinality of a sequence with exactly size items, or
// any number of items if size is negative.
func (c *Cardinality) WithSize(size int64) *Cardinality {
	if size < 0 {
		return c.WithRange(0, -1)
	}
	return c.WithRange(size, size)
}

// WithMinSize returns the cardinality with the given minimum size.
func (c *Cardinality) WithMinSize(min int64) *Cardinality {
	if min == c.min {
		return c
	}
	max := c.max
	if max >= 0 {
		max = maxInt64(max, min)
	}
	return CardOf(c.typ, min, max)
}

// WithMaxSize returns the cardinality with the given maximum size.
func (c *Cardinality) WithMaxSize(max int64) *Cardinality {
	if max == c.max {
		return c
	}
	min := c.min
	if max >= 0 {
		min = minInt64(min, max)
	}
	return CardOf(c.typ, min, max)
}

// WithRange returns the cardinality with the given size range.
func (c *Cardinality) WithRange(min, max int64) *Cardinality {
	if min == c.min && max == c.max {
		return c
	}
	return CardOf(c.typ, min, max)
}

// SubSeq returns the cardinality of the items of c starting at the 1-based
// position start.
func (c *Cardinality) SubSeq(start int64) *Cardinality {
	if c == EmptyCard || start < 2 || c.min == 0 && c.max < 0 {
		return c
	}
	if c.max >= 0 && start > c.max {
		return EmptyCard
	}
	max := int64(-1)
	if c.max >= 0 {
		max = maxInt64(c.max-start+1, 0)
	}
	return CardOf(c.typ, maxInt64(c.min-start+1, 0), max)
}

// SubSeqLen returns the cardinality of at most length items of c starting at
// the 1-based position start.
func (c *Cardinality) SubSeqLen(start, length int64) *Cardinality {
	if length <= 0 || c.max >= 0 && start > c.max {
		return EmptyCard
	}
	min := minInt64(maxInt64(c.min-start+1, 0), length)
	max := length
	if c.max >= 0 {
		max = minInt64(maxInt64(c.max-start+1, 0), length)
	}
	return c.WithRange(min, max)
}

// Multiply returns the cardinality of n sequences of c each, where n ranges
// over the sizes of o. The item type is the one of c.
func (c *Cardinality) Multiply(o *Cardinality) *Cardinality {
	if c.max == 0 || o.max == 0 {
		return EmptyCard
	}
	max := int64(-1)
	if c.max >= 0 && o.max >= 0 {
		max = mulSize(c.max, o.max)
	}
	min := mulSize(c.min, o.min)
	if min < 0 {
		min = math.MaxInt64
	}
	return CardOf(c.typ, min, max)
}

// mulSize multiplies two sizes, returning -1 on overflow.
func mulSize(a, b int64) int64 {
	if a != 0 && b > math.MaxInt64/a {
		return -1
	}
	return a * b
}

// Equal reports whether both cardinalities are structurally equal.
func (c *Cardinality) Equal(o *Cardinality) bool {
	return c.min == o.min && c.max == o.max && c.typ.Eq(o.typ)
}

// Hash returns a structural hash over the item type and size range.
func (c *Cardinality) Hash() uint64 {
	h, err := hashstructure.Hash(struct {
		Type     string
		Min, Max int64
	}{c.typ.String(), c.min, c.max}, nil)
	if err != nil {
		panic(err)
	}
	return h
}

func (c *Cardinality) String() string {
	if c.max == 0 {
		return EmptySeqType.String()
	}
	if c.min > 1 || c.max > 1 {
		max := "*"
		if c.max >= 0 {
			max = fmt.Sprint(c.max)
		}
		return fmt.Sprintf("%s{%d,%s}", c.typ, c.min, max)
	}
	return c.SeqType().String()
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
