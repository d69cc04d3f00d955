// Package trie implements the persistent maps of the query language as hash
// array mapped tries.
package trie

import (
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"gopkg.in/src-d/go-xquery.v0/query"
)

const (
	bitsPerLevel = 5
	levelMask    = 1<<bitsPerLevel - 1
)

type node interface{}

// branch is an inner node. Its kids are stored in the order of the bits set
// in bitmap.
type branch struct {
	bitmap uint32
	kids   []node
}

type leaf struct {
	hash  uint64
	ckey  string
	key   query.Item
	value query.Value
}

// collision holds the entries whose keys have the same hash.
type collision struct {
	hash   uint64
	leaves []*leaf
}

// Map is an immutable map from atomic keys to values. Keys that are equal
// numbers, such as 1 and 1.0, denote the same entry.
type Map struct {
	root *branch
	size int
}

var _ query.Item = (*Map)(nil)

// Empty is the empty map.
var Empty = &Map{root: &branch{}}

// Len returns the number of entries.
func (m *Map) Len() int { return m.size }

// Type implements the query.Item interface.
func (*Map) Type() query.Type { return query.AnyMapType }

// Size implements the query.Value interface.
func (*Map) Size() int64 { return 1 }

// ItemAt implements the query.Value interface.
func (m *Map) ItemAt(int64) query.Item { return m }

// Card implements the query.Value interface.
func (*Map) Card() *query.Cardinality { return query.One(query.AnyMapType) }

// Key returns the atomized key and its canonical string. Numbers of different
// types that are equal have the same canonical string.
func Key(info query.InputInfo, it query.Item) (query.Item, string, error) {
	it, err := query.Atomize(info, it)
	if err != nil {
		return nil, "", err
	}
	switch k := it.(type) {
	case query.Int:
		return k, "n:" + strconv.FormatInt(int64(k), 10), nil
	case query.Dbl:
		return k, "n:" + floatKey(float64(k)), nil
	case query.Flt:
		return k, "n:" + floatKey(float64(k)), nil
	case query.Dec:
		return k, "n:" + k.Decimal.String(), nil
	case query.Str:
		return k, "s:" + string(k), nil
	case query.Untyped:
		return k, "s:" + string(k), nil
	case query.URI:
		return k, "s:" + string(k), nil
	case query.Bln:
		return k, "b:" + k.String(), nil
	case query.QName:
		return k, "q:" + k.URI + "}" + k.Local, nil
	}
	return nil, "", query.ErrAtomize.New(info, it.Type())
}

func floatKey(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return decimal.NewFromFloat(f).String()
}

var hashKey = xxhash.Sum64String

// Put returns a map with key bound to value.
func (m *Map) Put(info query.InputInfo, key query.Item, value query.Value) (*Map, error) {
	k, ckey, err := Key(info, key)
	if err != nil {
		return nil, err
	}
	l := &leaf{hash: hashKey(ckey), ckey: ckey, key: k, value: value}
	root, added := m.root.put(l, 0)
	size := m.size
	if added {
		size++
	}
	return &Map{root: root, size: size}, nil
}

// Get returns the value bound to key.
func (m *Map) Get(info query.InputInfo, key query.Item) (query.Value, bool, error) {
	_, ckey, err := Key(info, key)
	if err != nil {
		return nil, false, err
	}
	if l := m.root.get(hashKey(ckey), ckey, 0); l != nil {
		return l.value, true, nil
	}
	return nil, false, nil
}

// Contains reports whether key is bound.
func (m *Map) Contains(info query.InputInfo, key query.Item) (bool, error) {
	_, ok, err := m.Get(info, key)
	return ok, err
}

// Delete returns a map without key.
func (m *Map) Delete(info query.InputInfo, key query.Item) (*Map, error) {
	_, ckey, err := Key(info, key)
	if err != nil {
		return nil, err
	}
	root, removed := m.root.delete(hashKey(ckey), ckey, 0)
	if !removed {
		return m, nil
	}
	return &Map{root: root.(*branch), size: m.size - 1}, nil
}

func index(hash uint64, shift uint) uint32 {
	return uint32(hash>>shift) & levelMask
}

// pos returns the position in kids of the kid with the given bit.
func (b *branch) pos(bit uint32) int {
	return bits.OnesCount32(b.bitmap & (bit - 1))
}

func (b *branch) with(i int, kid node) *branch {
	kids := make([]node, len(b.kids))
	copy(kids, b.kids)
	kids[i] = kid
	return &branch{b.bitmap, kids}
}

func (b *branch) put(l *leaf, shift uint) (*branch, bool) {
	bit := uint32(1) << index(l.hash, shift)
	i := b.pos(bit)
	if b.bitmap&bit == 0 {
		kids := make([]node, 0, len(b.kids)+1)
		kids = append(kids, b.kids[:i]...)
		kids = append(kids, l)
		kids = append(kids, b.kids[i:]...)
		return &branch{b.bitmap | bit, kids}, true
	}

	switch kid := b.kids[i].(type) {
	case *leaf:
		switch {
		case kid.ckey == l.ckey:
			return b.with(i, l), false
		case kid.hash == l.hash:
			return b.with(i, newCollision(l.hash, []*leaf{kid, l})), true
		}
		return b.with(i, merge(kid, kid.hash, l, shift+bitsPerLevel)), true
	case *branch:
		nk, added := kid.put(l, shift+bitsPerLevel)
		return b.with(i, nk), added
	case *collision:
		if kid.hash != l.hash {
			return b.with(i, merge(kid, kid.hash, l, shift+bitsPerLevel)), true
		}
		leaves := make([]*leaf, len(kid.leaves), len(kid.leaves)+1)
		copy(leaves, kid.leaves)
		for j, o := range leaves {
			if o.ckey == l.ckey {
				leaves[j] = l
				return b.with(i, &collision{kid.hash, leaves}), false
			}
		}
		return b.with(i, newCollision(kid.hash, append(leaves, l))), true
	}
	panic("unreachable")
}

// newCollision returns a collision node with the leaves ordered by key.
func newCollision(hash uint64, leaves []*leaf) *collision {
	slices.SortFunc(leaves, func(a, b *leaf) bool { return a.ckey < b.ckey })
	return &collision{hash, leaves}
}

// merge returns the branch holding n and l, whose hashes differ.
func merge(n node, hash uint64, l *leaf, shift uint) *branch {
	i1, i2 := index(hash, shift), index(l.hash, shift)
	if i1 == i2 {
		return &branch{uint32(1) << i1, []node{merge(n, hash, l, shift+bitsPerLevel)}}
	}
	b := &branch{bitmap: uint32(1)<<i1 | uint32(1)<<i2}
	if i1 < i2 {
		b.kids = []node{n, l}
	} else {
		b.kids = []node{l, n}
	}
	return b
}

func (b *branch) get(hash uint64, ckey string, shift uint) *leaf {
	for {
		bit := uint32(1) << index(hash, shift)
		if b.bitmap&bit == 0 {
			return nil
		}
		switch kid := b.kids[b.pos(bit)].(type) {
		case *leaf:
			if kid.ckey == ckey {
				return kid
			}
			return nil
		case *collision:
			for _, l := range kid.leaves {
				if l.ckey == ckey {
					return l
				}
			}
			return nil
		case *branch:
			b = kid
			shift += bitsPerLevel
		}
	}
}

// delete removes the entry with the given key. Inner branches left with a
// single leaf or collision are replaced by it.
func (b *branch) delete(hash uint64, ckey string, shift uint) (node, bool) {
	bit := uint32(1) << index(hash, shift)
	if b.bitmap&bit == 0 {
		return b, false
	}
	i := b.pos(bit)

	var nk node
	switch kid := b.kids[i].(type) {
	case *leaf:
		if kid.ckey != ckey {
			return b, false
		}
	case *collision:
		j := -1
		for k, l := range kid.leaves {
			if l.ckey == ckey {
				j = k
			}
		}
		if j < 0 {
			return b, false
		}
		leaves := make([]*leaf, 0, len(kid.leaves)-1)
		leaves = append(append(leaves, kid.leaves[:j]...), kid.leaves[j+1:]...)
		if len(leaves) == 1 {
			nk = leaves[0]
		} else {
			nk = &collision{kid.hash, leaves}
		}
	case *branch:
		n, removed := kid.delete(hash, ckey, shift+bitsPerLevel)
		if !removed {
			return b, false
		}
		nk = n
	}

	if nk != nil {
		if _, ok := nk.(*branch); !ok && len(b.kids) == 1 && shift > 0 {
			return nk, true
		}
		return b.with(i, nk), true
	}

	kids := make([]node, 0, len(b.kids)-1)
	kids = append(append(kids, b.kids[:i]...), b.kids[i+1:]...)
	nb := &branch{b.bitmap &^ bit, kids}
	if len(kids) == 1 && shift > 0 {
		if _, ok := kids[0].(*branch); !ok {
			return kids[0], true
		}
	}
	return nb, true
}

// ForEach calls f for each entry, in iteration order.
func (m *Map) ForEach(f func(key query.Item, value query.Value) error) error {
	it := m.Iter()
	for {
		k, v, ok := it.Next()
		if !ok {
			return nil
		}
		if err := f(k, v); err != nil {
			return err
		}
	}
}

// Keys returns the keys of the map in iteration order.
func (m *Map) Keys() query.Value {
	items := make([]query.Item, 0, m.size)
	m.ForEach(func(k query.Item, _ query.Value) error {
		items = append(items, k)
		return nil
	})
	return query.NewItemSeq(items)
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteString("map {")
	first := true
	m.ForEach(func(k query.Item, v query.Value) error {
		if !first {
			sb.WriteString(",")
		}
		first = false
		sb.WriteString(" ")
		sb.WriteString(query.ValueString(k))
		sb.WriteString(": ")
		sb.WriteString(query.ValueString(v))
		return nil
	})
	sb.WriteString(" }")
	return sb.String()
}
