package query

// Iter is a lazy, pull-based sequence of items.
type Iter interface {
	// Next returns the next item, or nil if the sequence is exhausted.
	Next() (Item, error)
	// Size returns the number of items, or -1 if unknown.
	Size() int64
	// Get returns the item at the given position. It may only be called if
	// Size returns a non-negative value.
	Get(i int64) (Item, error)
	// Reset restarts the sequence and reports whether that was possible.
	Reset() bool
	// Close releases the resources held by the sequence. Partially consumed
	// sequences must be closed.
	Close() error
}

// EmptyIter returns an exhausted iterator.
func EmptyIter() Iter { return ValueIter(Empty) }

type valueIter struct {
	v   Value
	pos int64
}

// ValueIter returns an iterator over the items of v.
func ValueIter(v Value) Iter { return &valueIter{v: v} }

func (i *valueIter) Next() (Item, error) {
	if i.pos >= i.v.Size() {
		return nil, nil
	}
	it := i.v.ItemAt(i.pos)
	i.pos++
	return it, nil
}

func (i *valueIter) Size() int64               { return i.v.Size() }
func (i *valueIter) Get(n int64) (Item, error) { return i.v.ItemAt(n), nil }
func (i *valueIter) Close() error              { return nil }

func (i *valueIter) Reset() bool {
	i.pos = 0
	return true
}

// Value returns the underlying value.
func (i *valueIter) Value() Value { return i.v }

type funcIter struct {
	next   func() (Item, error)
	closed bool
	close  func() error
}

// NewIter returns an iterator of unknown size pulling items from next. The
// optional close function is called once, by Close.
func NewIter(next func() (Item, error), close func() error) Iter {
	return &funcIter{next: next, close: close}
}

func (i *funcIter) Next() (Item, error) {
	if i.closed {
		return nil, nil
	}
	return i.next()
}

func (i *funcIter) Size() int64 { return -1 }

func (i *funcIter) Get(int64) (Item, error) { return nil, ErrNoRandomAccess.New() }

func (i *funcIter) Reset() bool { return false }

func (i *funcIter) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	if i.close != nil {
		return i.close()
	}
	return nil
}

// Materialize pulls all remaining items of it into a value and closes it.
func Materialize(it Iter) (Value, error) {
	if vi, ok := it.(*valueIter); ok && vi.pos == 0 {
		return vi.v, nil
	}
	var b ValueBuilder
	for {
		item, err := it.Next()
		if err != nil {
			it.Close()
			return nil, err
		}
		if item == nil {
			break
		}
		b.Add(item)
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return b.Value(), nil
}

// ForEach calls f for every item of it and closes it.
func ForEach(it Iter, f func(Item) error) error {
	defer it.Close()
	for {
		item, err := it.Next()
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		if err := f(item); err != nil {
			return err
		}
	}
}

// Collect is like Materialize, returning the items as a slice.
func Collect(it Iter) ([]Item, error) {
	v, err := Materialize(it)
	if err != nil {
		return nil, err
	}
	return Items(v), nil
}

type errIter struct{ err error }

// IterError returns an iterator failing with err on its first pull.
func IterError(err error) Iter { return &errIter{err} }

func (i *errIter) Next() (Item, error)     { return nil, i.err }
func (i *errIter) Size() int64             { return -1 }
func (i *errIter) Get(int64) (Item, error) { return nil, i.err }
func (i *errIter) Reset() bool             { return false }
func (i *errIter) Close() error            { return nil }
