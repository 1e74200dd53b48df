package casesplit

import (
	"math/rand"
	"testing"

	"github.com/kestrelqbf/cadet/qcnf"
	"github.com/kestrelqbf/cadet/satadapter"
	"github.com/kestrelqbf/cadet/skolem"
	"github.com/kestrelqbf/cadet/solverlog"
	"github.com/kestrelqbf/cadet/undo"
)

func newTestSkolem(q *qcnf.Store) *skolem.Engine {
	ustack := &undo.Stack{}
	return skolem.New(q, ustack, satadapter.New(rand.New(rand.NewSource(1))), false)
}

func TestNewControllerRejectsExponentialPenalty(t *testing.T) {
	q := qcnf.New()
	sk := newTestSkolem(q)
	_, err := NewController(sk, rand.New(rand.NewSource(1)), Config{Penalty: DepthPenaltyExponential}, solverlog.Discard())
	if err != ErrExponentialUnsupported {
		t.Fatalf("err = %v, want ErrExponentialUnsupported", err)
	}
}

func TestAttemptSplitForcesFailedLiteralPolarity(t *testing.T) {
	q := qcnf.New()
	scU := q.NewScope(true)
	scE := q.NewScope(false)
	u := q.NewVar(scU, true, true, 1)
	x := q.NewVar(scE, false, true, 2)
	// Probing u true immediately conflicts: (-u v x) & (-u v -x) force
	// x both ways. For a universal that failed polarity is a candidate
	// counterexample, so the controller commits exactly it and lets the
	// driver's real propagate/conflict path process the refutation.
	q.NewClause([]int{-u, x}, true)
	q.NewClause([]int{-u, -x}, true)

	sk := newTestSkolem(q)
	c, err := NewController(sk, rand.New(rand.NewSource(1)), DefaultConfig(), solverlog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	lit, status := c.AttemptSplit([]int{u})
	if status != Picked {
		t.Fatalf("status = %v, want Picked", status)
	}
	if lit != u {
		t.Fatalf("lit = %d, want %d (the conflicting polarity is committed, not avoided)", lit, u)
	}
}

func TestAttemptSplitNoCandidates(t *testing.T) {
	q := qcnf.New()
	sk := newTestSkolem(q)
	c, _ := NewController(sk, rand.New(rand.NewSource(1)), DefaultConfig(), solverlog.Discard())
	_, status := c.AttemptSplit(nil)
	if status != NoCandidates {
		t.Fatalf("status = %v, want NoCandidates", status)
	}
}

func TestAttemptSplitExhaustedWhenVacuousAtBase(t *testing.T) {
	q := qcnf.New()
	scU := q.NewScope(true)
	u := q.NewVar(scU, true, true, 1)
	// u appears in no clause at all: assuming either polarity
	// propagates nothing and conflicts nothing.
	sk := newTestSkolem(q)
	c, _ := NewController(sk, rand.New(rand.NewSource(1)), DefaultConfig(), solverlog.Discard())
	_, status := c.AttemptSplit([]int{u})
	if status != Exhausted {
		t.Fatalf("status = %v, want Exhausted", status)
	}
}

func TestCompleteCasePopsStackAndNegates(t *testing.T) {
	q := qcnf.New()
	scU := q.NewScope(true)
	scE := q.NewScope(false)
	u := q.NewVar(scU, true, true, 1)
	y := q.NewVar(scE, false, true, 2)
	q.NewClause([]int{-u, y}, true)

	sk := newTestSkolem(q)
	c, _ := NewController(sk, rand.New(rand.NewSource(1)), DefaultConfig(), solverlog.Discard())
	lit, status := c.AttemptSplit([]int{u})
	if status != Picked {
		t.Fatalf("status = %v, want Picked", status)
	}
	if c.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", c.Depth())
	}
	cube := c.CompleteCase()
	if len(cube) != 1 || cube[0] != -lit {
		t.Fatalf("CompleteCase() = %v, want [%d]", cube, -lit)
	}
	if c.Depth() != 0 {
		t.Fatalf("Depth() after CompleteCase = %d, want 0", c.Depth())
	}
}
