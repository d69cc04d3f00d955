package trie

import (
	"math/bits"

	"gopkg.in/src-d/go-xquery.v0/query"
)

type frame struct {
	b    *branch
	c    *collision
	slot int
}

// Iter walks the entries of a map in hash order. The order only depends on
// the keys, so maps with the same keys are always iterated the same way.
type Iter struct {
	stack []frame
}

// Iter returns an iterator over the entries of m.
func (m *Map) Iter() *Iter {
	return &Iter{stack: []frame{{b: m.root, slot: -1}}}
}

// Next returns the next entry, false once all have been returned.
func (it *Iter) Next() (query.Item, query.Value, bool) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]

		if top.c != nil {
			top.slot++
			if top.slot < len(top.c.leaves) {
				l := top.c.leaves[top.slot]
				return l.key, l.value, true
			}
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}

		rest := top.b.bitmap
		if top.slot >= 0 {
			rest &^= uint32(2)<<uint(top.slot) - 1
		}
		if rest == 0 {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		top.slot = bits.TrailingZeros32(rest)
		kid := top.b.kids[top.b.pos(uint32(1)<<uint(top.slot))]

		switch kid := kid.(type) {
		case *leaf:
			return kid.key, kid.value, true
		case *branch:
			it.stack = append(it.stack, frame{b: kid, slot: -1})
		case *collision:
			it.stack = append(it.stack, frame{c: kid, slot: -1})
		}
	}
	return nil, nil, false
}
