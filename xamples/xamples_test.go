package xamples

import (
	"math/rand"
	"testing"

	"github.com/kestrelqbf/cadet/qcnf"
)

func TestNewAssignmentRandomPropagatesUnitClauses(t *testing.T) {
	q := qcnf.New()
	sc := q.NewScope(false)
	x := q.NewVar(sc, false, true, 1)
	y := q.NewVar(sc, false, true, 2)
	q.NewClause([]int{x}, true)
	q.NewClause([]int{-x, y}, true)

	s := New(q, rand.New(rand.NewSource(1)), 0)
	e := s.NewAssignmentRandom()
	if e.Conflicted() {
		t.Fatal("unexpected conflict")
	}
	if e.Value(x) != True {
		t.Fatalf("x = %v, want True", e.Value(x))
	}
	if e.Value(y) != True {
		t.Fatalf("y = %v, want True (cascaded from x)", e.Value(y))
	}
}

func TestNewAssignmentRandomDetectsConflict(t *testing.T) {
	q := qcnf.New()
	sc := q.NewScope(false)
	x := q.NewVar(sc, false, true, 1)
	q.NewClause([]int{x}, true)
	q.NewClause([]int{-x}, true)

	s := New(q, rand.New(rand.NewSource(1)), 0)
	e := s.NewAssignmentRandom()
	if !e.Conflicted() {
		t.Fatal("expected a conflict from the two contradictory unit clauses")
	}
}

func TestResetDiscardsMembers(t *testing.T) {
	q := qcnf.New()
	sc := q.NewScope(true)
	q.NewVar(sc, true, true, 1)

	s := New(q, rand.New(rand.NewSource(1)), 2)
	s.NewAssignmentRandom()
	s.NewAssignmentRandom()
	if len(s.Members()) != 2 {
		t.Fatalf("Members() = %d, want 2", len(s.Members()))
	}
	s.Reset()
	if len(s.Members()) != 0 {
		t.Fatalf("Members() after Reset = %d, want 0", len(s.Members()))
	}
}

func TestSetBoundedSizeEvictsOldest(t *testing.T) {
	q := qcnf.New()
	sc := q.NewScope(true)
	q.NewVar(sc, true, true, 1)

	s := New(q, rand.New(rand.NewSource(1)), 2)
	first := s.NewAssignmentRandom()
	s.NewAssignmentRandom()
	s.NewAssignmentRandom()

	members := s.Members()
	if len(members) != 2 {
		t.Fatalf("len(Members()) = %d, want 2 (bounded)", len(members))
	}
	for _, m := range members {
		if m == first {
			t.Fatal("oldest example should have been evicted")
		}
	}
}

func TestDecisionConflictsOffendingExample(t *testing.T) {
	q := qcnf.New()
	scU := q.NewScope(true)
	scE := q.NewScope(false)
	u := q.NewVar(scU, true, true, 1)
	y := q.NewVar(scE, false, true, 2)
	q.NewClause([]int{-u, y}, true)
	q.NewClause([]int{-u, -y}, true)

	s := New(q, rand.New(rand.NewSource(1)), 4)
	e := newExample(q.NumVars())
	e.assign(q, -u, 0, 0) // u false: neither clause fires yet
	s.members = append(s.members, e)

	witness := s.Decision(u, 1)
	if witness == nil {
		t.Fatal("expected a conflict witness once u is decided true")
	}
}

type fakeModel struct{ consts map[int]int }

func (f fakeModel) ConstantValue(v int) (int, bool) {
	l, ok := f.consts[v]
	return l, ok
}

func TestNewAssignmentFromSkolemSeedsConstantsAndCompletesUniversals(t *testing.T) {
	q := qcnf.New()
	scU := q.NewScope(true)
	scE := q.NewScope(false)
	u := q.NewVar(scU, true, true, 1)
	y := q.NewVar(scE, false, true, 2)

	s := New(q, rand.New(rand.NewSource(2)), 0)
	model := fakeModel{consts: map[int]int{y: y}}
	e := s.NewAssignmentFromSkolem(model)
	if e.Value(y) != True {
		t.Fatalf("y = %v, want True (seeded from Skolem model)", e.Value(y))
	}
	if e.Value(u) == Open {
		t.Fatal("universal left unassigned by Skolem model should be random-completed")
	}
}
