package satadapter

import (
	"math/rand"
	"testing"
)

func newTestAdapter() *Adapter {
	return New(rand.New(rand.NewSource(1)))
}

func TestUnitPropagationSat(t *testing.T) {
	a := newTestAdapter()
	a.NewVar()
	a.NewVar()
	a.AddClause(1, 2)
	a.AddClause(-1, 2)
	if got := a.Solve(); got != Sat {
		t.Fatalf("Solve() = %v, want Sat", got)
	}
	if !a.Value(2) {
		t.Fatal("expected var 2 to be true (forced by both clauses when 1 is false)")
	}
}

func TestEmptyClauseIsUnsat(t *testing.T) {
	a := newTestAdapter()
	a.NewVar()
	a.AddClause(1)
	a.AddClause(-1)
	if got := a.Solve(); got != Unsat {
		t.Fatalf("Solve() = %v, want Unsat", got)
	}
}

func TestAssumptionConflict(t *testing.T) {
	a := newTestAdapter()
	a.NewVar()
	a.AddClause(1)
	if got := a.Solve(-1); got != Unsat {
		t.Fatalf("Solve(-1) = %v, want Unsat (clause forces var 1 true)", got)
	}
	// The adapter itself remains usable for further queries.
	if got := a.Solve(1); got != Sat {
		t.Fatalf("Solve(1) = %v, want Sat", got)
	}
}

func TestPushPopContextLiteral(t *testing.T) {
	a := newTestAdapter()
	a.NewVar()
	ctx := a.Push()
	a.AddClause(-1) // guarded: only constrains while ctx is assumed true
	if got := a.Solve(ctx, 1); got != Unsat {
		t.Fatalf("Solve(ctx, 1) = %v, want Unsat under the guarded clause", got)
	}
	if got := a.Solve(1); got != Sat {
		t.Fatalf("Solve(1) without assuming ctx = %v, want Sat (guard inactive)", got)
	}
	a.Pop()
	if got := a.Solve(1); got != Sat {
		t.Fatalf("Solve(1) after Pop = %v, want Sat (guarded clause permanently satisfied)", got)
	}
}

func TestConflictLearning(t *testing.T) {
	a := newTestAdapter()
	for i := 0; i < 3; i++ {
		a.NewVar()
	}
	// (-1 v 2) & (-1 v -2) & (-1 v 3) & (-1 v -3) forces 1 = false.
	a.AddClause(-1, 2)
	a.AddClause(-1, -2)
	a.AddClause(-1, 3)
	a.AddClause(-1, -3)
	got := a.Solve(1)
	if got != Unsat {
		t.Fatalf("Solve(1) = %v, want Unsat", got)
	}
	if got := a.Solve(-1); got != Sat {
		t.Fatalf("Solve(-1) = %v, want Sat", got)
	}
}
