// Package intvec provides the growable, integer-addressed containers used
// throughout the solver core: a growable vector and an id-indexed
// record store. Both are thin wrappers over Go slices.
package intvec

// Vector is a growable sequence of ints, e.g. a clause's literals or an
// occurrence list. The zero value is an empty vector.
type Vector struct {
	items []int
}

// Len returns the number of elements.
func (v *Vector) Len() int { return len(v.items) }

// At returns the element at index i.
func (v *Vector) At(i int) int { return v.items[i] }

// Set overwrites the element at index i.
func (v *Vector) Set(i, x int) { v.items[i] = x }

// Push appends x.
func (v *Vector) Push(x int) { v.items = append(v.items, x) }

// Pop removes and returns the last element.
func (v *Vector) Pop() int {
	n := len(v.items) - 1
	x := v.items[n]
	v.items = v.items[:n]
	return x
}

// Truncate shrinks the vector to length n, discarding the tail. It is a
// no-op if n >= Len().
func (v *Vector) Truncate(n int) {
	if n < len(v.items) {
		v.items = v.items[:n]
	}
}

// RemoveSwap removes the element at index i by swapping in the last
// element, in O(1) at the cost of order (occurrence lists don't care
// about order).
func (v *Vector) RemoveSwap(i int) {
	n := len(v.items) - 1
	v.items[i] = v.items[n]
	v.items = v.items[:n]
}

// Contains does a linear scan for x. Occurrence lists and small clauses are
// short enough that this beats maintaining a side index.
func (v *Vector) Contains(x int) bool {
	for _, y := range v.items {
		if y == x {
			return true
		}
	}
	return false
}

// Slice returns the backing elements. Callers must not retain a reference
// across a mutating call.
func (v *Vector) Slice() []int { return v.items }

// Clone returns an independent copy.
func (v *Vector) Clone() Vector {
	cp := make([]int, len(v.items))
	copy(cp, v.items)
	return Vector{items: cp}
}

// Store is an address-keyed mapping from monotonically assigned integer ids
// to records of type T. New ids are never reused, so a retained id stays
// valid for the store's lifetime even as records are logically retired.
type Store[T any] struct {
	records []T
}

// NewStore returns an empty store. Id 0 is reserved as "no id" by
// convention; the first Add call returns id 1.
func NewStore[T any]() *Store[T] {
	var zero T
	return &Store[T]{records: []T{zero}}
}

// Add appends rec and returns its freshly minted id.
func (s *Store[T]) Add(rec T) int {
	s.records = append(s.records, rec)
	return len(s.records) - 1
}

// Get returns a pointer to the record for id, so callers can mutate it
// in place. Records are addressed by id, never by retained pointer: the
// backing array may move on growth.
func (s *Store[T]) Get(id int) *T { return &s.records[id] }

// Len returns the number of ids minted so far, including the reserved 0.
func (s *Store[T]) Len() int { return len(s.records) }

// Valid reports whether id refers to a minted, non-reserved record.
func (s *Store[T]) Valid(id int) bool { return id > 0 && id < len(s.records) }
