// Package cegar implements counterexample-guided abstraction
// refinement: a second, purely-existential SAT oracle used to check a
// candidate Skolem function's current interface assignment against the
// still-quantified subproblem, and to compress a satisfying model into
// a minimized cube whose negation blocks revisiting that assignment.
// The oracle is its own adapter instance, independent of the one
// embedded in skolem.
package cegar

import (
	"sort"

	"github.com/kestrelqbf/cadet/qcnf"
	"github.com/kestrelqbf/cadet/satadapter"
	"github.com/kestrelqbf/cadet/solverlog"
)

// constAssigner mirrors skolem.Engine's ConstantValue, kept as a local
// interface so cegar never imports skolem directly (skolem is the
// thing being abstracted, not a dependency of the abstraction).
type constAssigner interface {
	ConstantValue(v int) (lit int, known bool)
}

// Result is the outcome of checking one candidate universal assignment
// against the existential oracle.
type Result int

const (
	// BranchRefuted means the existential oracle is UNSAT under the
	// current interface assumption: this candidate universal branch
	// can never be completed and should be abandoned.
	BranchRefuted Result = iota
	// BranchHasModel means the oracle is SAT; Cube carries the
	// minimized interface assignment that produced it.
	BranchHasModel
)

// Cube is a minimized interface assignment extracted from a satisfying
// existential model.
type Cube struct {
	Lits []int // signed, 1-based qcnf variable literals
}

// BlockingClause returns the clause to add to the outer solver context:
// the negation of the cube, so the outer search never revisits this
// exact interface assignment.
func (c *Cube) BlockingClause() []int {
	neg := make([]int, len(c.Lits))
	for i, l := range c.Lits {
		neg[i] = -l
	}
	return neg
}

// Stats tracks minimization effectiveness: attempts, successful
// minimizations, and the additional assignments accepted along the way.
type Stats struct {
	Attempts                   int
	SuccessfulMinimizations    int
	TotalAdditionalAssignments int
}

// FractionHelped returns the share of minimization attempts that
// produced a cube strictly smaller than the full interface, 0 if no
// attempts were made yet.
func (s Stats) FractionHelped() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.SuccessfulMinimizations) / float64(s.Attempts)
}

// Engine is the existential SAT oracle plus its interface bookkeeping.
type Engine struct {
	q       *qcnf.Store
	adapter *satadapter.Adapter
	log     solverlog.Logger

	qToAdapter map[int]int // qcnf var id -> existential-oracle adapter var id
	added      map[int]bool

	stats Stats

	smoothedCubeSize       float64
	smoothingAlpha         float64
	effectivenessThreshold float64
}

// New returns an empty CEGAR engine over q, using its own SAT adapter
// instance (independent of the one skolem uses). effectivenessThreshold
// is the exponentially-smoothed recent-cube-size ceiling past which
// Effective reports false and the outer loop should take over. A nil
// log discards diagnostics. Every variable q holds at construction is
// allocated in adapter up front, in id order, so on a fresh adapter a
// qcnf variable and its oracle variable share the same id and qcnf
// literals (cubes, blocking clauses) can be passed to Adapter() as is.
func New(q *qcnf.Store, adapter *satadapter.Adapter, effectivenessThreshold float64, log solverlog.Logger) *Engine {
	if log == nil {
		log = solverlog.Discard()
	}
	e := &Engine{
		q:                      q,
		adapter:                adapter,
		log:                    log,
		qToAdapter:             make(map[int]int),
		added:                  make(map[int]bool),
		smoothingAlpha:         0.2,
		effectivenessThreshold: effectivenessThreshold,
	}
	for v := 1; v <= q.NumVars(); v++ {
		e.qToAdapter[v] = adapter.NewVar()
	}
	return e
}

func (e *Engine) adapterVar(v int) int {
	if id, ok := e.qToAdapter[v]; ok {
		return id
	}
	id := e.adapter.NewVar()
	e.qToAdapter[v] = id
	return id
}

func adapterLit(av int, negative bool) int {
	if negative {
		return -av
	}
	return av
}

// SyncClauses populates the existential oracle with every active clause
// whose unique-consequence variable is nondeterministic,
// skipping clauses already added and those whose UC variable sk reports
// as deterministic (a deterministic UC means the clause is already
// satisfied by the candidate Skolem function, so it adds no constraint
// to the existential oracle).
func (e *Engine) SyncClauses(sk interface {
	UniqueConsequence(c int) (int, bool)
	IsDeterministic(v int) bool
}) {
	e.q.Clauses(func(id int, c *qcnf.Clause) bool {
		if e.added[id] {
			return true
		}
		if ucLit, ok := sk.UniqueConsequence(id); ok && sk.IsDeterministic(abs(ucLit)) {
			return true
		}
		lits := make([]int, len(c.Lits))
		for i, l := range c.Lits {
			v := abs(l)
			lits[i] = adapterLit(e.adapterVar(v), l < 0)
		}
		e.adapter.AddClause(lits...)
		e.added[id] = true
		return true
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Interface computes the set of deterministic variables that share a
// clause with any nondeterministic variable: the boundary the outer
// loop assigns and the oracle is checked under.
func (e *Engine) Interface(sk interface{ IsDeterministic(v int) bool }) []int {
	seen := make(map[int]bool)
	var out []int
	e.q.Clauses(func(id int, c *qcnf.Clause) bool {
		hasNondeterministic := false
		for _, l := range c.Lits {
			if !sk.IsDeterministic(abs(l)) {
				hasNondeterministic = true
				break
			}
		}
		if !hasNondeterministic {
			return true
		}
		for _, l := range c.Lits {
			v := abs(l)
			if sk.IsDeterministic(v) && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
		return true
	})
	sort.Ints(out)
	return out
}

// BuildAbstractionForAssignment reads interface variable values from
// sk, assumes them in the existential oracle, and either refutes the
// branch (UNSAT) or extracts and minimizes a cube (SAT).
func (e *Engine) BuildAbstractionForAssignment(sk constAssigner, interfaceVars []int) (Result, *Cube) {
	assumps := make([]int, 0, len(interfaceVars))
	model := make(map[int]bool, len(interfaceVars))
	for _, v := range interfaceVars {
		l, ok := sk.ConstantValue(v)
		if !ok {
			continue
		}
		av := e.adapterVar(v)
		assumps = append(assumps, adapterLit(av, l < 0))
		model[v] = l > 0
	}
	if e.adapter.Solve(assumps...) == satadapter.Unsat {
		e.log.Debug("interface assignment refuted", "assumptions", len(assumps))
		return BranchRefuted, nil
	}
	cube := e.minimizeCube(interfaceVars, model)
	e.updateSmoothedCubeSize(len(cube.Lits))
	e.log.Debug("cube extracted", "size", len(cube.Lits), "interface", len(interfaceVars), "smoothed_size", e.smoothedCubeSize)
	return BranchHasModel, cube
}

// minimizeCube applies the literal-necessity test: a literal l at the
// interface is needed iff some clause containing l has no other literal
// that is satisfied by the model, satisfied by a previously-accepted
// additional assignment, or satisfiable by flipping a
// currently-unassigned variable. The flippability check is the
// common-case approximation: any variable the oracle left unassigned
// counts as freely flippable, without cross-checking the flip against
// other additional assignments; the result errs toward a larger cube,
// never an incorrect one.
func (e *Engine) minimizeCube(interfaceVars []int, model map[int]bool) *Cube {
	var additional []int // kept sorted for binary-search membership
	containsAdditional := func(l int) bool {
		i := sort.SearchInts(additional, l)
		return i < len(additional) && additional[i] == l
	}
	insertAdditional := func(l int) {
		i := sort.SearchInts(additional, l)
		additional = append(additional, 0)
		copy(additional[i+1:], additional[i:])
		additional[i] = l
	}

	var cube []int
	for _, v := range interfaceVars {
		positive, ok := model[v]
		if !ok {
			continue
		}
		l := v
		if !positive {
			l = -v
		}
		if e.literalNeeded(v, l, model, containsAdditional) {
			cube = append(cube, l)
		} else {
			insertAdditional(l)
		}
	}

	e.stats.Attempts++
	e.stats.TotalAdditionalAssignments += len(additional)
	if len(cube) < len(interfaceVars) {
		e.stats.SuccessfulMinimizations++
	}
	return &Cube{Lits: cube}
}

func (e *Engine) literalNeeded(v, l int, model map[int]bool, containsAdditional func(int) bool) bool {
	var occ func(yield func(id int) bool)
	rec := e.q.Var(v)
	if l > 0 {
		occ = func(yield func(id int) bool) {
			for i := 0; i < rec.PosOcc.Len(); i++ {
				if !yield(rec.PosOcc.At(i)) {
					return
				}
			}
		}
	} else {
		occ = func(yield func(id int) bool) {
			for i := 0; i < rec.NegOcc.Len(); i++ {
				if !yield(rec.NegOcc.At(i)) {
					return
				}
			}
		}
	}

	needed := false
	occ(func(id int) bool {
		c := e.q.Clause(id)
		if !c.Active {
			return true
		}
		otherSatisfiable := false
		for _, l2 := range c.Lits {
			if l2 == l {
				continue
			}
			v2 := abs(l2)
			if positive2, ok := model[v2]; ok {
				if positive2 == (l2 > 0) {
					otherSatisfiable = true
					break
				}
				continue
			}
			adapterID, haveVar := e.qToAdapter[v2]
			if !haveVar || !e.adapter.Assigned(adapterID) {
				otherSatisfiable = true // unassigned: freely flippable
				break
			}
			if containsAdditional(l2) {
				otherSatisfiable = true
				break
			}
		}
		if !otherSatisfiable {
			needed = true
			return false
		}
		return true
	})
	return needed
}

func (e *Engine) updateSmoothedCubeSize(size int) {
	if e.smoothedCubeSize == 0 {
		e.smoothedCubeSize = float64(size)
		return
	}
	e.smoothedCubeSize = e.smoothingAlpha*float64(size) + (1-e.smoothingAlpha)*e.smoothedCubeSize
}

// Effective reports whether the exponentially-smoothed recent cube size
// is still under the configured threshold; past it, refinement is
// making too little progress per cube to be worth continuing.
func (e *Engine) Effective() bool {
	return e.smoothedCubeSize < e.effectivenessThreshold
}

// Stats returns the current minimization statistics.
func (e *Engine) Stats() Stats { return e.stats }

// Adapter exposes the existential oracle for the driver's blocking-
// clause injection during abstraction refinement and case closure.
func (e *Engine) Adapter() *satadapter.Adapter { return e.adapter }
