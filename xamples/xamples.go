// Package xamples maintains a bounded set of concrete partial
// assignments, each propagated forward by plain unit propagation, used
// to cheaply rule out a candidate decision literal before paying for a
// SAT-based check. An example never learns a clause; it only ever
// reports "this literal conflicts." (The package is named xamples to
// stay clear of Go's testable-example convention.)
package xamples

import (
	"math/rand"

	"github.com/kestrelqbf/cadet/qcnf"
)

// Value is the four-valued truth lattice of a variable within one
// example: Open (never touched), True, False, or Conflict (both forced,
// a contradiction local to this example).
type Value int8

const (
	Open Value = iota
	True
	False
	Conflict
)

// Example is one concrete partial assignment plus its propagation
// bookkeeping: a value per variable, the clause that forced each one,
// and the decision level it was forced at.
type Example struct {
	values      []Value
	antecedent  []int // clause id that forced each variable, 0 if none
	level       []int // decision level each variable was forced at
	conflicted  bool
	conflictVar int
}

func newExample(n int) *Example {
	return &Example{
		values:     make([]Value, n+1),
		antecedent: make([]int, n+1),
		level:      make([]int, n+1),
	}
}

// Value returns variable v's current truth value in this example.
func (e *Example) Value(v int) Value { return e.values[v] }

// Conflicted reports whether propagation drove this example to a
// contradiction.
func (e *Example) Conflicted() bool { return e.conflicted }

// ConflictVar returns the variable whose assignment conflicted, 0 if
// none.
func (e *Example) ConflictVar() int { return e.conflictVar }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func litValue(e *Example, l int) Value {
	v := e.values[abs(l)]
	if v == Open || v == Conflict {
		return v
	}
	want := True
	if l < 0 {
		want = False
	}
	if v == want {
		return True
	}
	return False
}

func (e *Example) assign(q *qcnf.Store, l, antecedent, level int) {
	v := abs(l)
	want := True
	if l < 0 {
		want = False
	}
	if e.values[v] != Open {
		if e.values[v] != want {
			e.values[v] = Conflict
			e.conflicted = true
			e.conflictVar = v
		}
		return
	}
	e.values[v] = want
	e.antecedent[v] = antecedent
	e.level[v] = level
}

// propagate runs forward unit propagation over q's active clauses to
// fixpoint or first conflict.
func (e *Example) propagate(q *qcnf.Store, level int) {
	for {
		if e.conflicted {
			return
		}
		changed := false
		q.Clauses(func(id int, c *qcnf.Clause) bool {
			satisfied := false
			freeCount := 0
			var freeLit int
			for _, l := range c.Lits {
				switch litValue(e, l) {
				case True:
					satisfied = true
				case Open:
					freeCount++
					freeLit = l
				}
			}
			if satisfied {
				return true
			}
			if freeCount == 0 {
				e.conflicted = true
				e.conflictVar = abs(c.Lits[0])
				return false
			}
			if freeCount == 1 {
				e.assign(q, freeLit, id, level)
				changed = true
			}
			return true
		})
		if !changed {
			return
		}
	}
}

// Set is the bounded collection of examples.
type Set struct {
	q       *qcnf.Store
	rng     *rand.Rand
	maxSize int
	members []*Example
}

// New returns an empty example set bound to q, capped at maxSize
// members (0 disables the engine entirely).
func New(q *qcnf.Store, rng *rand.Rand, maxSize int) *Set {
	return &Set{q: q, rng: rng, maxSize: maxSize}
}

func (s *Set) admit(e *Example) *Example {
	if s.maxSize <= 0 {
		return e
	}
	if len(s.members) >= s.maxSize {
		s.members = s.members[1:] // drop the oldest, FIFO eviction
	}
	s.members = append(s.members, e)
	return e
}

// NewAssignmentRandom samples a uniform value for every universal
// variable, then propagates forward.
func (s *Set) NewAssignmentRandom() *Example {
	e := newExample(s.q.NumVars())
	for v := 1; v <= s.q.NumVars(); v++ {
		if !s.q.Var(v).IsUniversal {
			continue
		}
		l := v
		if s.rng.Intn(2) == 0 {
			l = -v
		}
		e.assign(s.q, l, 0, 0)
	}
	e.propagate(s.q, 0)
	return s.admit(e)
}

// constAssigner reports the current constant value (if any) the Skolem
// engine has forced for v, so NewAssignmentFromSkolem can seed from it
// without xamples importing skolem (which would create an import
// cycle: skolem never needs xamples, but keeping the dependency one-way
// keeps the two engines testable in isolation).
type constAssigner interface {
	ConstantValue(v int) (lit int, known bool)
}

// NewAssignmentFromSkolem seeds an example from the Skolem solver's
// current model, random-completing any universal the Skolem engine left
// free.
func (s *Set) NewAssignmentFromSkolem(model constAssigner) *Example {
	e := newExample(s.q.NumVars())
	for v := 1; v <= s.q.NumVars(); v++ {
		if l, ok := model.ConstantValue(v); ok {
			e.assign(s.q, l, 0, 0)
			continue
		}
		if s.q.Var(v).IsUniversal {
			l := v
			if s.rng.Intn(2) == 0 {
				l = -v
			}
			e.assign(s.q, l, 0, 0)
		}
	}
	e.propagate(s.q, 0)
	return s.admit(e)
}

// Decision asks every member example to adopt l. Returns the first
// example that conflicts (the conflict witness), nil if none did.
func (s *Set) Decision(l int, level int) *Example {
	var witness *Example
	for _, e := range s.members {
		if e.conflicted {
			continue
		}
		e.assign(s.q, l, 0, level)
		e.propagate(s.q, level)
		if e.conflicted && witness == nil {
			witness = e
		}
	}
	return witness
}

// Members returns the current example set, for diagnostics/tests.
func (s *Set) Members() []*Example { return s.members }

// Reset discards every member. Examples have no undo integration; a
// caller unwinding past the levels the members were propagated at (the
// driver's restart) drops the whole set and reseeds instead.
func (s *Set) Reset() { s.members = nil }
