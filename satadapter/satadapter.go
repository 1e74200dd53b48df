// Package satadapter implements an incremental propositional solver
// behind a narrow interface: two-watched-literal propagation, first-UIP
// conflict analysis with clause learning, VSIDS-style activity
// decisions, and assumption-scoped reasoning through context literals
// (Push allocates a selector variable guarding subsequent clauses, Pop
// permanently asserts its negation).
//
// Two private instances are used by the core: one inside the skolem
// package (the Skolem-function candidate) and a separate one inside
// cegar (the existential oracle). Nothing else mutates either.
package satadapter

import (
	"math/rand"

	"github.com/kestrelqbf/cadet/pqueue"
	"github.com/kestrelqbf/cadet/solvererr"
)

// Result is the outcome of a Solve call.
type Result int

const (
	Unsat Result = iota
	Sat
	Unknown
)

func (r Result) String() string {
	switch r {
	case Unsat:
		return "UNSAT"
	case Sat:
		return "SAT"
	default:
		return "UNKNOWN"
	}
}

// lit is a 0-based internal literal: var(l) = l>>1, polarity = l&1 (1
// means negated). litNone is a sentinel "no literal" value.
type lit int32

const litNone lit = -1

func (l lit) not() lit   { return l ^ 1 }
func (l lit) v() int32   { return int32(l >> 1) }
func (l lit) sign() int8 { return int8(l & 1) } // 0 = positive, 1 = negative

func encodeLit(x int) lit {
	v := int32(x)
	if v < 0 {
		v = -v
	}
	l := lit((v - 1) << 1)
	if x < 0 {
		l |= 1
	}
	return l
}

func decodeLit(l lit) int {
	v := int(l.v()) + 1
	if l.sign() == 1 {
		return -v
	}
	return v
}

// lbool is a ternary truth value for a variable.
type lbool int8

const (
	lUndef lbool = iota
	lTrue
	lFalse
)

func litValue(assign []lbool, l lit) lbool {
	v := assign[l.v()]
	if v == lUndef {
		return lUndef
	}
	if l.sign() == 1 {
		if v == lTrue {
			return lFalse
		}
		return lTrue
	}
	return v
}

type clauseRec struct {
	lits   []lit
	learnt bool
}

// Adapter is one incremental SAT instance. The zero value is not usable;
// construct with New.
type Adapter struct {
	rng *rand.Rand

	assign []lbool
	level  []int32
	reason []int32 // clause index + 1, 0 if none (decision or unassigned)

	trail    []lit
	trailLim []int32

	watches [][]int32 // indexed by lit
	clauses []clauseRec

	activity  []float64
	varInc    float64
	varDecay  float64
	order     *pqueue.DedupQueue[int32]

	propHead int

	// contextSelectors holds, in push order, the internal var id for
	// each currently active context literal: Push allocates a fresh
	// selector, Pop permanently asserts its negation.
	contextSelectors []int32

	conflicts int64
	decisions int64
	restarts  int64

	unsat bool // a top-level (decision-level-0) conflict was derived; permanently UNSAT
}

// New returns an empty adapter. rng is stored on the adapter but not
// read: decisions follow VSIDS order with a fixed negative phase.
func New(rng *rand.Rand) *Adapter {
	a := &Adapter{
		rng:      rng,
		varInc:   1,
		varDecay: 0.95,
	}
	a.order = pqueue.New(func(x, y int32) bool { return a.activity[x] > a.activity[y] })
	return a
}

// NewVar allocates a fresh solver variable and returns its 1-based id.
func (a *Adapter) NewVar() int {
	a.assign = append(a.assign, lUndef)
	a.level = append(a.level, -1)
	a.reason = append(a.reason, 0)
	a.activity = append(a.activity, 0)
	a.watches = append(a.watches, nil, nil) // two lits per var
	id := int32(len(a.assign) - 1)
	a.order.Insert(id)
	return int(id) + 1
}

func (a *Adapter) nVars() int32 { return int32(len(a.assign)) }

// AddClause adds a clause given as signed, 1-based DIMACS-style
// literals. If any context literals are currently pushed, the clause is
// guarded by their conjunction: it is appended with each context
// selector's negation, so a later Pop (which permanently asserts the
// selector false) makes the clause vacuous forever without needing to
// touch the clause database directly.
func (a *Adapter) AddClause(lits ...int) {
	a.backtrackTo(0)
	cl := make([]lit, 0, len(lits)+len(a.contextSelectors))
	seen := make(map[lit]bool, len(lits))
	tautology := false
	for _, x := range lits {
		l := encodeLit(x)
		if seen[l.not()] {
			tautology = true
		}
		if !seen[l] {
			seen[l] = true
			cl = append(cl, l)
		}
	}
	if tautology {
		return
	}
	for _, sv := range a.contextSelectors {
		g := lit((sv << 1) | 1) // negation of the context selector variable
		if !seen[g] {
			seen[g] = true
			cl = append(cl, g)
		}
	}
	a.addInternalClause(cl, false)
}

// addInternalClause installs cl (already deduplicated, non-tautological)
// into the clause database; unit clauses are asserted at level 0 and an
// empty clause marks the instance permanently unsatisfiable.
func (a *Adapter) addInternalClause(cl []lit, learnt bool) {
	if len(cl) == 0 {
		a.unsat = true
		return
	}
	if len(cl) == 1 {
		a.unsat = a.unsat || !a.enqueueLevel0(cl[0])
		return
	}
	idx := int32(len(a.clauses))
	a.clauses = append(a.clauses, clauseRec{lits: cl, learnt: learnt})
	a.watches[cl[0]] = append(a.watches[cl[0]], idx)
	a.watches[cl[1]] = append(a.watches[cl[1]], idx)
}

// enqueueLevel0 asserts l permanently (decision level 0), returning false
// if it contradicts an existing level-0 assignment.
func (a *Adapter) enqueueLevel0(l lit) bool {
	cur := litValue(a.assign, l)
	if cur == lTrue {
		return true
	}
	if cur == lFalse {
		return false
	}
	a.assign[l.v()] = boolToLbool(l.sign() == 0)
	a.level[l.v()] = 0
	a.reason[l.v()] = 0
	a.trail = append(a.trail, l)
	if a.order.Contains(l.v()) {
		a.order.Remove(l.v())
	}
	return true
}

func boolToLbool(b bool) lbool {
	if b {
		return lTrue
	}
	return lFalse
}

// Push allocates a fresh context literal and returns its 1-based var id.
// Callers must Solve with this literal assumed true for clauses added
// afterward to actually constrain the search (an unassumed selector
// trivially satisfies every clause it guards).
func (a *Adapter) Push() int {
	id := a.NewVar()
	a.contextSelectors = append(a.contextSelectors, int32(id-1))
	return id
}

// Pop permanently asserts the negation of the most recently pushed,
// not-yet-popped context literal, which forever satisfies every clause
// it guards, and removes it from the active context stack. It first
// backtracks to decision level 0, discarding any model left by the last
// Solve.
func (a *Adapter) Pop() {
	n := len(a.contextSelectors)
	if n == 0 {
		solvererr.Raise("context", "satadapter.Pop called with no active context", nil)
	}
	a.backtrackTo(0)
	sv := a.contextSelectors[n-1]
	a.contextSelectors = a.contextSelectors[:n-1]
	if !a.enqueueLevel0(lit((sv << 1) | 1)) {
		a.unsat = true
	}
}

func (a *Adapter) curLevel() int32 { return int32(len(a.trailLim)) }

// Value reports the current truth value of the 1-based variable v. It is
// only meaningful to call after Solve returned Sat (or on variables the
// solver has otherwise assigned, e.g. at level 0).
func (a *Adapter) Value(v int) bool {
	return a.assign[int32(v-1)] == lTrue
}

// Assigned reports whether v currently has a value.
func (a *Adapter) Assigned(v int) bool {
	return a.assign[int32(v-1)] != lUndef
}

// Solve checks satisfiability under assumps (signed, 1-based literals,
// typically including any currently active context literals the caller
// wants enforced). It runs CDCL to completion: there is no artificial
// conflict budget here because both callers (skolem, cegar) need a
// definite verdict, not "unknown", for their control flow to be sound;
// external wall-clock/decision-count budgets are enforced by the driver
// between Solve calls instead.
func (a *Adapter) Solve(assumps ...int) Result {
	if a.unsat {
		return Unsat
	}
	a.backtrackTo(0)
	base := a.curLevel()
	assumeLits := make([]lit, len(assumps))
	for i, x := range assumps {
		assumeLits[i] = encodeLit(x)
	}

	conflictsSinceRestart := int64(0)
	restartThreshold := int64(100)

	for {
		conflictCl, ok := a.propagate()
		if !ok {
			if a.curLevel() == 0 {
				a.unsat = true
				return Unsat
			}
			backLevel, learnt := a.analyze(conflictCl)
			a.conflicts++
			conflictsSinceRestart++
			if backLevel < base {
				// The conflict doesn't depend on any decision made
				// after the assumptions were installed: unsatisfiable
				// under these assumptions (but not necessarily at true
				// level 0, unless base == 0).
				a.backtrackTo(base)
				if len(learnt) > 0 {
					// record the learnt clause for future calls only
					// if it survives independent of the assumptions.
					a.addInternalClause(learnt, true)
				}
				return Unsat
			}
			a.backtrackTo(backLevel)
			a.addInternalClause(learnt, true)
			if len(learnt) == 1 {
				a.enqueueImplied(learnt[0], 0)
			} else {
				a.enqueueImplied(learnt[0], int32(len(a.clauses)-1))
			}
			continue
		}

		if conflictsSinceRestart >= restartThreshold {
			a.restarts++
			conflictsSinceRestart = 0
			restartThreshold += restartThreshold / 2
			a.backtrackTo(base)
			continue
		}

		// Install any outstanding assumptions not yet on the trail.
		nextLevel, assumeFailed := a.nextAssumption(assumeLits)
		if assumeFailed {
			a.backtrackTo(base)
			return Unsat
		}
		if nextLevel != litNone {
			a.newDecisionLevel()
			a.enqueueImplied(nextLevel, 0)
			continue
		}

		lv, ok := a.pickDecision()
		if !ok {
			return Sat
		}
		a.decisions++
		a.newDecisionLevel()
		a.enqueueImplied(lv, 0)
	}
}

func (a *Adapter) nextAssumption(assumeLits []lit) (next lit, failed bool) {
	for _, l := range assumeLits {
		switch litValue(a.assign, l) {
		case lTrue:
			continue
		case lFalse:
			return litNone, true
		default:
			return l, false
		}
	}
	return litNone, false
}

func (a *Adapter) newDecisionLevel() {
	a.trailLim = append(a.trailLim, int32(len(a.trail)))
}

func (a *Adapter) enqueueImplied(l lit, reasonClause int32) {
	a.assign[l.v()] = boolToLbool(l.sign() == 0)
	a.level[l.v()] = a.curLevel()
	a.reason[l.v()] = reasonClause + 1
	a.trail = append(a.trail, l)
	if a.order.Contains(l.v()) {
		a.order.Remove(l.v())
	}
}

// propagate runs BCP to fixpoint: for each newly implied literal, walk
// the watch list of its negation, looking for a replacement watch or,
// failing that, either a new implication or a conflict.
func (a *Adapter) propagate() (conflict int32, ok bool) {
	for a.propHead < len(a.trail) {
		p := a.trail[a.propHead]
		a.propHead++
		neg := p.not()
		ws := a.watches[neg]
		j := 0
		for i := 0; i < len(ws); i++ {
			ci := ws[i]
			cl := a.clauses[ci].lits
			if cl[0] == neg {
				cl[0], cl[1] = cl[1], cl[0]
			}
			if litValue(a.assign, cl[0]) == lTrue {
				ws[j] = ci
				j++
				continue
			}
			found := false
			for k := 2; k < len(cl); k++ {
				if litValue(a.assign, cl[k]) != lFalse {
					cl[k], cl[1] = cl[1], cl[k]
					a.watches[cl[1]] = append(a.watches[cl[1]], ci)
					found = true
					break
				}
			}
			if found {
				continue
			}
			ws[j] = ci
			j++
			if litValue(a.assign, cl[0]) == lFalse {
				// Conflict: copy the not-yet-examined tail of ws down
				// (positions i+1..) since compaction so far only
				// overwrote indices <= i.
				for ii := i + 1; ii < len(ws); ii++ {
					ws[j] = ws[ii]
					j++
				}
				a.watches[neg] = ws[:j]
				a.propHead = len(a.trail)
				return ci, false
			}
			a.enqueueImplied(cl[0], ci)
		}
		a.watches[neg] = ws[:j]
	}
	return 0, true
}

// analyze performs first-UIP conflict analysis over the trail, following
// reason clauses backward, and returns the backtrack level plus the
// learnt clause (UIP literal first).
func (a *Adapter) analyze(confl int32) (backLevel int32, learnt []lit) {
	seen := make([]bool, a.nVars())
	counter := 0
	learnt = append(learnt, litNone) // reserve slot 0 for the UIP literal
	idx := len(a.trail) - 1
	var p lit = litNone
	pReason := confl

	for {
		cl := a.clauses[pReason].lits
		start := 0
		if p != litNone {
			start = 1 // cl[0] == p.not() by watch invariant; skip it
		}
		for i := start; i < len(cl); i++ {
			q := cl[i]
			v := q.v()
			if seen[v] {
				continue
			}
			if a.level[v] == 0 {
				// Level-0 literals are permanent; they contribute
				// nothing reversible, so they're omitted from the
				// learnt clause (it remains implied by originals via
				// them) but still marked seen to avoid revisiting.
				seen[v] = true
				continue
			}
			seen[v] = true
			if a.level[v] == a.curLevel() {
				counter++
			} else {
				learnt = append(learnt, q)
			}
		}

		for idx >= 0 && !seen[a.trail[idx].v()] {
			idx--
		}
		p = a.trail[idx]
		counter--
		if counter == 0 {
			break
		}
		pReason = a.reason[p.v()] - 1
		idx--
	}
	learnt[0] = p.not()

	// Backtrack level is the second-highest level among the remaining
	// literals, or 0 if the UIP is the only one.
	backLevel = 0
	if len(learnt) > 1 {
		maxI := 1
		for i := 2; i < len(learnt); i++ {
			if a.level[learnt[i].v()] > a.level[learnt[maxI].v()] {
				maxI = i
			}
		}
		learnt[1], learnt[maxI] = learnt[maxI], learnt[1]
		backLevel = a.level[learnt[1].v()]
	}

	for _, v := range learnt {
		a.bumpActivity(v.v())
	}
	a.decayActivity()
	return backLevel, learnt
}

func (a *Adapter) bumpActivity(v int32) {
	a.activity[v] += a.varInc
	if a.order.Contains(v) {
		a.order.Fix(v)
	}
	if a.activity[v] > 1e100 {
		for i := range a.activity {
			a.activity[i] *= 1e-100
		}
		a.varInc *= 1e-100
	}
}

func (a *Adapter) decayActivity() {
	a.varInc /= a.varDecay
}

// backtrackTo undoes trail entries down to the start of level. Variables
// unassigned here are returned to the VSIDS order, not re-ordered.
func (a *Adapter) backtrackTo(level int32) {
	if a.curLevel() <= level {
		return
	}
	start := a.trailLim[level]
	for i := len(a.trail) - 1; i >= int(start); i-- {
		v := a.trail[i].v()
		a.assign[v] = lUndef
		a.level[v] = -1
		a.reason[v] = 0
		if !a.order.Contains(v) {
			a.order.Insert(v)
		}
	}
	a.trail = a.trail[:start]
	a.trailLim = a.trailLim[:level]
	if a.propHead > len(a.trail) {
		a.propHead = len(a.trail)
	}
}

// pickDecision returns the next VSIDS-highest unassigned literal (phase:
// always negative, "try false first", arbitrary but fixed). ok is false
// once every variable is assigned.
func (a *Adapter) pickDecision() (lit, bool) {
	for {
		v, ok := a.order.PopMax()
		if !ok {
			return litNone, false
		}
		if a.assign[v] != lUndef {
			continue
		}
		return lit((v << 1) | 1), true
	}
}

// Stats exposes the adapter's search counters and database sizes.
type Stats struct {
	Decisions int64
	Conflicts int64
	Restarts  int64
	Vars      int
	Clauses   int
}

func (a *Adapter) Stats() Stats {
	return Stats{
		Decisions: a.decisions,
		Conflicts: a.conflicts,
		Restarts:  a.restarts,
		Vars:      len(a.assign),
		Clauses:   len(a.clauses),
	}
}
