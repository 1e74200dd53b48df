// Package skolem maintains a candidate Skolem function represented as
// clauses in an embedded SAT adapter, incrementally refined by
// determinicity propagation, unique-consequence tracking,
// partial-function encoding, and conflict detection/analysis over the
// unique-consequence reason DAG.
package skolem

import (
	"sort"

	"github.com/kestrelqbf/cadet/qcnf"
	"github.com/kestrelqbf/cadet/satadapter"
	"github.com/kestrelqbf/cadet/solvererr"
	"github.com/kestrelqbf/cadet/undo"
)

// ErrAlreadyHasUC reports that a clause already has a registered unique
// consequence (a clause carries at most one at a time). Unlike
// InvariantViolation this is an expected, recoverable control-flow
// outcome for the caller (propagation simply skips the clause).
type ErrAlreadyHasUC struct {
	Clause   int
	Existing int
}

func (e *ErrAlreadyHasUC) Error() string { return "clause already has a unique consequence" }

// Record is the per-variable Skolem-construction state.
type Record struct {
	VarID                   int
	Deterministic           bool
	DecisionLevel           int
	PurePos, PureNeg        bool
	ConstVal                int8 // 0 unknown, 1 true, 2 false
	ReasonForConstant       int  // clause id that forced ConstVal, 0 = none (an assumption/decision)
	DlvlForConstant         int
	DependsOnDecisionSatlit bool
	SatPos, SatNeg          int // adapter var ids for the two satisfaction literals, 0 if not yet encoded
}

// Engine owns the candidate Skolem function's SAT encoding and the
// per-variable bookkeeping described above.
type Engine struct {
	q       *qcnf.Store
	adapter *satadapter.Adapter
	ustack  *undo.Stack

	records  []Record // indexed by qcnf variable id
	uc       map[int]int
	detOrder []int

	assumed []int // currently assumed constant literals (case-split stack + decisions)

	functionalSynthesis bool

	conflicted     bool
	conflictVar    int
	conflictClause int // set instead of conflictVar when a clause is directly falsified

	trueConst int // adapter var permanently asserted true, the AND-chain's identity element
}

// New returns an engine bound to q's variable population so far; call
// EnsureVar for every variable q mints afterward (qcnf.Store.NewVar
// callers are expected to call both in the same place).
func New(q *qcnf.Store, ustack *undo.Stack, adapter *satadapter.Adapter, functionalSynthesis bool) *Engine {
	e := &Engine{
		q:                   q,
		adapter:             adapter,
		ustack:              ustack,
		uc:                  make(map[int]int),
		functionalSynthesis: functionalSynthesis,
	}
	e.trueConst = adapter.NewVar()
	adapter.AddClause(e.trueConst)
	for v := 1; v <= q.NumVars(); v++ {
		e.EnsureVar(v)
	}
	return e
}

// EnsureVar grows the record table to cover a newly minted qcnf variable.
func (e *Engine) EnsureVar(v int) {
	for len(e.records) <= v {
		e.records = append(e.records, Record{})
	}
	e.records[v].VarID = v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (e *Engine) decisionLevel() int { return e.ustack.Depth() }

// record pushes e onto the undo stack, but only when at least one
// milestone is open: changes made at the permanent base level (before
// any Push) are never undone.
func (e *Engine) record(entry undo.Entry) {
	if e.ustack.Depth() == 0 {
		return
	}
	e.ustack.Record(entry)
}

// Record returns the bookkeeping for variable v.
func (e *Engine) Record(v int) *Record { return &e.records[v] }

// IsDeterministic reports whether v has been marked deterministic, for
// cegar's interface-variable extraction.
func (e *Engine) IsDeterministic(v int) bool { return e.records[v].Deterministic }

// ConstantValue reports the signed literal v is currently forced to, if
// any. Satisfies the constAssigner interface xamples.NewAssignmentFromSkolem
// and cegar's interface-value extraction use to read the candidate
// Skolem function's current model without either package importing the
// other.
func (e *Engine) ConstantValue(v int) (lit int, known bool) {
	switch e.records[v].ConstVal {
	case 1:
		return v, true
	case 2:
		return -v, true
	default:
		return 0, false
	}
}

// Push mirrors the master undo stack, opening a new reversible scope.
func (e *Engine) Push() { e.ustack.Push() }

// Pop mirrors the master undo stack, closing the most recent scope and
// undoing everything recorded since.
func (e *Engine) Pop() { e.ustack.Pop() }

// MarkDeterministic sets v's deterministic flag, records its decision
// level, and appends it to the determinization order. Reversible.
func (e *Engine) MarkDeterministic(v int) {
	rec := &e.records[v]
	if rec.Deterministic {
		return
	}
	rec.Deterministic = true
	rec.DecisionLevel = e.decisionLevel()
	e.detOrder = append(e.detOrder, v)
	idx := len(e.detOrder) - 1
	e.record(undo.Func(func() {
		rec.Deterministic = false
		rec.DecisionLevel = 0
		e.detOrder = e.detOrder[:idx]
	}))
}

// SetUniqueConsequence registers l as clause c's unique consequence.
// Fails with *ErrAlreadyHasUC if c already has one. Raises an
// InvariantViolation if l's variable is already deterministic: that
// precondition is the propagation loop's responsibility to keep, not a
// user-facing error.
func (e *Engine) SetUniqueConsequence(c, l int) error {
	v := abs(l)
	if e.records[v].Deterministic {
		solvererr.Raise("unique-consequence", "SetUniqueConsequence on an already-deterministic variable", v)
	}
	if existing, ok := e.uc[c]; ok {
		return &ErrAlreadyHasUC{Clause: c, Existing: existing}
	}
	e.uc[c] = l
	e.record(undo.Func(func() { delete(e.uc, c) }))
	return nil
}

// UniqueConsequence returns clause c's registered unique-consequence
// literal and whether one is registered.
func (e *Engine) UniqueConsequence(c int) (int, bool) {
	l, ok := e.uc[c]
	return l, ok
}

// AssumeConstantValue asserts l as a current-branch constant, the way
// the case-split controller commits to a universal literal or the
// driver commits to a decision literal. Reversible. Raises an
// InvariantViolation if l's variable is already deterministic:
// asserting over a deterministic variable is a programmer error, not
// user-facing.
func (e *Engine) AssumeConstantValue(l int) {
	v := abs(l)
	if e.records[v].Deterministic {
		solvererr.Raise("assume-deterministic", "AssumeConstantValue on an already-deterministic variable", v)
	}
	old := e.records[v].ConstVal
	want := int8(1)
	if l < 0 {
		want = 2
	}
	e.records[v].ConstVal = want
	e.records[v].ReasonForConstant = 0
	e.records[v].DlvlForConstant = e.decisionLevel()
	e.assumed = append(e.assumed, l)
	idx := len(e.assumed) - 1
	rec := &e.records[v]
	e.record(undo.Func(func() {
		rec.ConstVal = old
		e.assumed = e.assumed[:idx]
	}))
}

// LiteralValue exposes litValue's tri-state read (1 satisfied, -1
// falsified, 0 unknown) for the driver's decision-literal selection.
func (e *Engine) LiteralValue(l int) int { return e.litValue(l) }

// litValue reports how l currently evaluates: 1 satisfied, -1 falsified,
// 0 unknown.
func (e *Engine) litValue(l int) int {
	v := abs(l)
	cv := e.records[v].ConstVal
	if cv == 0 {
		return 0
	}
	want := int8(1)
	if l < 0 {
		want = 2
	}
	if cv == want {
		return 1
	}
	return -1
}

func (e *Engine) shallowestExistentialOrder(c *qcnf.Clause) (order int, any bool) {
	order = -1
	for _, l := range c.Lits {
		v := e.q.Var(abs(l))
		if v.IsUniversal {
			continue
		}
		sc := e.q.Scope(v.ScopeID)
		if !any || sc.Order < order {
			order = sc.Order
			any = true
		}
	}
	return order, any
}

// relevantForDeterminicity reports whether l should be considered at
// all when scanning a clause for unique-consequence purposes: a
// universal literal strictly deeper in the prefix than the clause's
// shallowest existential is dropped from the effective scope
// (universal reduction).
func (e *Engine) relevantForDeterminicity(l int, shallowest int, haveExistential bool) bool {
	v := e.q.Var(abs(l))
	if !v.IsUniversal {
		return true
	}
	if !haveExistential {
		return true
	}
	return e.q.Scope(v.ScopeID).Order <= shallowest
}

// Propagate applies the unit-existential, universal-reduction,
// pure-literal and determinicity-closure rules to fixpoint, or until a
// conflict is found, returning the conflicting variable (0 if none).
func (e *Engine) Propagate() (conflictVar int, conflict bool) {
	for {
		changed := e.propagateOnce()
		if e.conflicted {
			return e.conflictVar, true
		}
		if e.CheckConflicts() {
			return e.conflictVar, true
		}
		if !changed {
			return 0, false
		}
	}
}

func (e *Engine) propagateOnce() bool {
	changed := false

	e.q.Clauses(func(id int, c *qcnf.Clause) bool {
		if e.conflicted {
			return false
		}
		if _, ok := e.uc[id]; ok {
			return true // already has a unique consequence
		}
		shallow, haveExistential := e.shallowestExistentialOrder(c)
		satisfied := false
		var freeLit int
		freeCount := 0
		for _, l := range c.Lits {
			if !e.relevantForDeterminicity(l, shallow, haveExistential) {
				continue
			}
			switch e.litValue(l) {
			case 1:
				satisfied = true
			case 0:
				v := abs(l)
				if e.q.Var(v).IsUniversal {
					// An unassigned universal blocks the unit rule
					// (its value isn't determined by the Skolem side).
					freeCount = 2
					break
				}
				freeCount++
				freeLit = l
			}
		}
		if !satisfied && freeCount == 0 {
			// Every literal relevant to determinicity is already forced
			// false: the candidate function violates this clause outright,
			// independent of any dual-satisfaction-literal check.
			e.conflicted = true
			e.conflictClause = id
			e.conflictVar = 0
			return false
		}
		if satisfied || freeCount != 1 {
			return true
		}
		v := abs(freeLit)
		if e.records[v].Deterministic {
			return true
		}
		if err := e.SetUniqueConsequence(id, freeLit); err != nil {
			return true
		}
		changed = true
		e.groundConstant(id, freeLit)
		return true
	})

	for v := 1; v < len(e.records); v++ {
		rec := &e.records[v]
		if rec.Deterministic {
			continue
		}
		vv := e.q.Var(v)
		hasPos := vv.PosOcc.Len() > 0
		hasNeg := vv.NegOcc.Len() > 0
		if hasPos && !hasNeg && !rec.PurePos {
			rec.PurePos = true
			e.record(undo.Func(func() { rec.PurePos = false }))
			changed = true
		}
		if hasNeg && !hasPos && !rec.PureNeg {
			rec.PureNeg = true
			e.record(undo.Func(func() { rec.PureNeg = false }))
			changed = true
		}
	}
	return changed
}

// groundConstant applies the unit rule's consequence: when every other
// literal of c is falsified, c forces freeLit's variable to the
// constant value matching freeLit's polarity. It then extends the
// partial-function encoding and re-checks the determinicity closure.
func (e *Engine) groundConstant(c, freeLit int) {
	v := abs(freeLit)
	rec := &e.records[v]
	oldVal, oldReason, oldDlvl := rec.ConstVal, rec.ReasonForConstant, rec.DlvlForConstant
	want := int8(1)
	if freeLit < 0 {
		want = 2
	}
	rec.ConstVal = want
	rec.ReasonForConstant = c
	rec.DlvlForConstant = e.decisionLevel()
	oldDepends := rec.DependsOnDecisionSatlit
	if e.dependsOnDecision(c, freeLit) {
		rec.DependsOnDecisionSatlit = true
	}
	e.record(undo.Func(func() {
		rec.ConstVal, rec.ReasonForConstant, rec.DlvlForConstant = oldVal, oldReason, oldDlvl
		rec.DependsOnDecisionSatlit = oldDepends
	}))

	e.encodeUniqueConsequence(c, freeLit)
	e.maybeMarkDeterministic(v)
}

// dependsOnDecision reports whether any antecedent literal of c traces
// back to an assumed existential (a decision, recognizable by carrying
// no reason clause above the base level) or to a variable already so
// marked. Assumed universals, such as case-split literals, do not count. The flag feeds the functional-synthesis
// independence encoding: a satisfaction literal built from
// decision-dependent antecedents is not a pure function of the
// universals and can't be emitted as a witness unmodified.
func (e *Engine) dependsOnDecision(c, freeLit int) bool {
	for _, l := range e.q.Clause(c).Lits {
		if l == freeLit {
			continue
		}
		rec := &e.records[abs(l)]
		if rec.DependsOnDecisionSatlit {
			return true
		}
		if rec.ConstVal != 0 && rec.ReasonForConstant == 0 && rec.DlvlForConstant > 0 && !e.q.Var(abs(l)).IsUniversal {
			return true
		}
	}
	return false
}

// encodeUniqueConsequence extends freeLit's satisfaction literal with
// the antecedent of clause c:
//
//	new_sl = prev_sl OR (NOT x1 AND NOT x2 AND ... AND NOT xk)
//
// built as an AND-chain over the other literals of c (three clauses per
// x_i: two forward, one closing) feeding a final two-forward-plus-
// closing-clause OR with the previous satisfaction literal. The closing
// clauses keep both directions of every definition exact; without them
// a satisfaction literal could be set true freely, and the
// dual-satisfaction conflict check would report phantom conflicts.
func (e *Engine) encodeUniqueConsequence(c, freeLit int) {
	v := abs(freeLit)
	rec := &e.records[v]
	prevSl := rec.SatPos
	if freeLit < 0 {
		prevSl = rec.SatNeg
	}
	// prevSl == 0 means "no grounding clause yet", the OR chain's
	// identity element; rather than minting an unconstrained variable to
	// stand in for it (which would let the solver satisfy this polarity
	// for free, defeating the dual-satisfaction conflict check), the OR
	// step below special-cases it as false.

	cl := e.q.Clause(c)
	term := e.trueConst
	for _, l := range cl.Lits {
		if l == freeLit {
			continue
		}
		xi := e.adapter.NewVar() // represents the literal l's truth value in this encoding
		// xi <-> l is implicit: we reuse l's own adapter mirror via the
		// satisfaction-literal chain when l is itself Skolem-tracked;
		// for a direct propositional mirror we assert the equivalence
		// against l's current (possibly still-building) satlit pairing.
		e.mirrorLiteral(xi, l)

		next := e.adapter.NewVar()
		// next <-> term AND NOT xi
		e.adapter.AddClause(-next, term)
		e.adapter.AddClause(-next, -xi)
		e.adapter.AddClause(next, -term, xi) // closing clause
		term = next
	}

	newSl := term
	if prevSl != 0 {
		newSl = e.adapter.NewVar()
		e.adapter.AddClause(-prevSl, newSl)
		e.adapter.AddClause(-term, newSl)
		e.adapter.AddClause(-newSl, prevSl, term) // closing clause
	}

	old := prevSl
	if freeLit < 0 {
		rec.SatNeg = newSl
		e.record(undo.Func(func() { rec.SatNeg = old }))
	} else {
		rec.SatPos = newSl
		e.record(undo.Func(func() { rec.SatPos = old }))
	}
}

// mirrorLiteral asserts that adapter variable xi tracks literal l's
// current truth value. The ConstVal branch below covers every literal
// of c that is already grounded; the satlit-mirror fallback covers the
// others, e.g. universal literals the unit rule dropped by universal
// reduction without assigning them.
func (e *Engine) mirrorLiteral(xi, l int) {
	v := abs(l)
	rec := &e.records[v]
	if rec.ConstVal != 0 {
		isTrue := (rec.ConstVal == 1) == (l > 0)
		if isTrue {
			e.adapter.AddClause(xi)
		} else {
			e.adapter.AddClause(-xi)
		}
		return
	}
	sl := rec.SatPos
	if l < 0 {
		sl = rec.SatNeg
	}
	if sl == 0 {
		sl = e.adapter.NewVar()
		if l < 0 {
			rec.SatNeg = sl
		} else {
			rec.SatPos = sl
		}
	}
	e.adapter.AddClause(-xi, sl)
	e.adapter.AddClause(xi, -sl)
}

// maybeMarkDeterministic closes determinicity: once every clause whose
// unique consequence is a literal of v has been encoded and v has both
// polarities encoded, v becomes deterministic. With
// --functional-synthesis, a side with no grounding clause of its own is
// completed as the complement of the defined side, so both polarities
// are always encoded and witnesses can later be extracted from either
// satisfaction literal.
func (e *Engine) maybeMarkDeterministic(v int) {
	rec := &e.records[v]
	if rec.Deterministic {
		return
	}
	if e.functionalSynthesis {
		e.completeOppositePolarity(rec)
	}
	if rec.SatPos == 0 || rec.SatNeg == 0 {
		return
	}
	e.MarkDeterministic(v)
}

// completeOppositePolarity totalizes the candidate function for a
// variable with grounding clauses on only one side by defining the
// other side as that side's complement. Only meaningful in functional-
// synthesis mode: it commits the variable to a default value where no
// clause constrains it, which is what makes the function extractable as
// a witness, at the price that the dual-satisfaction conflict check can
// no longer fire for this variable (the two sides are complementary by
// construction; a violated clause still surfaces through direct
// falsification).
func (e *Engine) completeOppositePolarity(rec *Record) {
	if (rec.SatPos == 0) == (rec.SatNeg == 0) {
		return
	}
	sl := e.adapter.NewVar()
	if rec.SatPos == 0 {
		e.adapter.AddClause(rec.SatNeg, sl)
		e.adapter.AddClause(-rec.SatNeg, -sl)
		rec.SatPos = sl
		e.record(undo.Func(func() { rec.SatPos = 0 }))
	} else {
		e.adapter.AddClause(rec.SatPos, sl)
		e.adapter.AddClause(-rec.SatPos, -sl)
		rec.SatNeg = sl
		e.record(undo.Func(func() { rec.SatNeg = 0 }))
	}
}

// CheckConflicts scans the determinization order for a variable whose
// two satisfaction literals are simultaneously satisfiable, meaning the
// candidate Skolem function is not a function. The first such variable
// becomes conflictVar.
func (e *Engine) CheckConflicts() bool {
	for _, v := range e.detOrder {
		rec := &e.records[v]
		if rec.SatPos == 0 || rec.SatNeg == 0 {
			continue
		}
		if e.adapter.Solve(rec.SatPos, rec.SatNeg) == satadapter.Sat {
			e.conflicted = true
			e.conflictVar = v
			return true
		}
	}
	return false
}

// IsConflicted reports whether the last Propagate/CheckConflicts call
// found a conflict.
func (e *Engine) IsConflicted() bool { return e.conflicted }

// ConflictVar returns the variable whose dual satisfaction caused the
// current conflict, 0 if the conflict instead came from a directly
// falsified clause (see ConflictClause).
func (e *Engine) ConflictVar() int { return e.conflictVar }

// ConflictClause returns the clause id that was found directly falsified,
// 0 if the conflict instead came from a variable's dual satisfaction
// (see ConflictVar).
func (e *Engine) ConflictClause() int { return e.conflictClause }

// ClearConflict resets conflict state, e.g. after the driver has learned
// a clause and wants to resume propagation.
func (e *Engine) ClearConflict() {
	e.conflicted = false
	e.conflictVar = 0
	e.conflictClause = 0
}

// AnalyzeConflict performs first-UIP-style resolution over the unique-
// consequence reason DAG rooted at the conflict variable:
// nodes grounded at the current decision level are expanded through
// their reason clause; nodes grounded at a shallower level (or carrying
// no reason at all, i.e. an assumption/decision literal) become frontier
// literals in the learnt clause. Returns the learnt clause's literals
// (deduplicated, sorted for determinism), implied by originals and
// containing at most one literal at the current decision level, by
// construction.
func (e *Engine) AnalyzeConflict() []int {
	level := e.decisionLevel()
	visited := make(map[int]bool)
	learnt := make(map[int]bool)
	var stack []int
	if e.conflictClause != 0 {
		for _, l := range e.q.Clause(e.conflictClause).Lits {
			stack = append(stack, abs(l))
		}
	} else {
		stack = []int{e.conflictVar}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		rec := &e.records[cur]
		if rec.ReasonForConstant == 0 || rec.DlvlForConstant < level {
			l := cur
			if rec.ConstVal == 2 {
				l = -cur
			}
			learnt[-l] = true
			continue
		}
		c := e.q.Clause(rec.ReasonForConstant)
		ucLit := e.uc[rec.ReasonForConstant]
		for _, l := range c.Lits {
			if l == ucLit {
				continue
			}
			stack = append(stack, abs(l))
		}
	}
	out := make([]int, 0, len(learnt))
	for l := range learnt {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return abs(out[i]) < abs(out[j]) })
	return out
}

// DeterminizationOrder returns the variables in the order they became
// deterministic, for CEGAR's interface computation.
func (e *Engine) DeterminizationOrder() []int { return e.detOrder }

// GroundedCount returns the number of variables currently carrying a
// constant value, used by casesplit's literal-scoring probe as its
// propagation-count metric: it grows by exactly one per unit-propagated
// variable, unlike DeterminizationOrder which only grows once both
// satisfaction literals of a variable have been built.
func (e *Engine) GroundedCount() int {
	n := 0
	for i := 1; i < len(e.records); i++ {
		if e.records[i].ConstVal != 0 {
			n++
		}
	}
	return n
}

// Adapter exposes the embedded SAT adapter for components (CEGAR,
// case-split) that need to read the current model directly.
func (e *Engine) Adapter() *satadapter.Adapter { return e.adapter }
