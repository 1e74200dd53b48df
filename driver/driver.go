// Package driver implements the outer solve loop: it wires the Skolem
// engine, the Examples engine, the CEGAR engine and the case-split
// controller into the restart/propagate/conflict/decision cycle that
// actually decides SAT/UNSAT for a QBF/DQBF instance.
package driver

import (
	"math/rand"
	"time"

	"github.com/kestrelqbf/cadet/casesplit"
	"github.com/kestrelqbf/cadet/cegar"
	"github.com/kestrelqbf/cadet/qcnf"
	"github.com/kestrelqbf/cadet/satadapter"
	"github.com/kestrelqbf/cadet/skolem"
	"github.com/kestrelqbf/cadet/solverlog"
	"github.com/kestrelqbf/cadet/undo"
	"github.com/kestrelqbf/cadet/xamples"
)

// Result is the driver's final verdict.
type Result int

const (
	Unknown Result = iota
	SAT
	UNSAT
)

func (r Result) String() string {
	switch r {
	case SAT:
		return "SAT"
	case UNSAT:
		return "UNSAT"
	default:
		return "UNKNOWN"
	}
}

// Config is the explicit, test-constructible replacement for a global
// options struct (Design Note: every knob the CLI exposes is a field
// here, not a package-level flag variable).
type Config struct {
	Seed                int64
	CaseSplits          bool
	Cegar               bool
	FunctionalSynthesis bool
	CertifySAT          bool
	ExampleSetSize      int // 0 disables the examples engine

	CegarEffectivenessThreshold float64
	MaxCegarRefinementsPerRound int
	CaseSplit                   casesplit.Config

	// InitialRestartBudget is the decision budget before the first
	// restart; it doubles every RestartDoublingPeriod restarts.
	InitialRestartBudget  int
	RestartDoublingPeriod int

	// LearntClauseSizeLimit is the size past which a learned clause no
	// longer anchoring a unique consequence is deleted at the next
	// restart; OriginalMinimizationPeriod is the number of restarts
	// between minimization sweeps over original clauses. 0 disables
	// either sweep.
	LearntClauseSizeLimit      int
	OriginalMinimizationPeriod int

	// TimeBudget and DecisionLimit are the soft budgets the driver
	// checks between iterations; exceeding either surfaces as Unknown,
	// never as a hard failure. 0 means unlimited.
	TimeBudget    time.Duration
	DecisionLimit int

	// Logger receives solve-time diagnostics; the case-split and CEGAR
	// subsystems emit theirs at debug level under the derived
	// "casesplit"/"cegar" names. nil discards everything.
	Logger solverlog.Logger
}

// DefaultConfig returns the stock configuration. Both the case-split
// controller and CEGAR are on by default; a caller (or the CLI's
// --no-case-splits/--no-cegar) must opt out explicitly.
func DefaultConfig() Config {
	return Config{
		CaseSplits:                  true,
		Cegar:                       true,
		CegarEffectivenessThreshold: 18,
		MaxCegarRefinementsPerRound: 8,
		CaseSplit:                   casesplit.DefaultConfig(),
		InitialRestartBudget:        10,
		RestartDoublingPeriod:       25,
		LearntClauseSizeLimit:       20,
		OriginalMinimizationPeriod:  15,
	}
}

// Stats accumulates solve-time counters for the CLI's exit summary.
type Stats struct {
	Decisions        int
	Conflicts        int
	Restarts         int
	CaseSplits       int
	CegarChecks      int
	ExampleConflicts int
	ClausesDeleted   int

	// CegarMinimizationEffectiveness is the fraction of CEGAR cube
	// minimization attempts that shrank the cube below the full
	// interface, 0 until the first attempt.
	CegarMinimizationEffectiveness float64
}

// Solver is one QBF/DQBF solve attempt over a qcnf.Store.
type Solver struct {
	q      *qcnf.Store
	ustack *undo.Stack
	rng    *rand.Rand
	cfg    Config
	log    solverlog.Logger

	sk       *skolem.Engine
	examples *xamples.Set
	cg       *cegar.Engine
	caseCtl  *casesplit.Controller

	stats Stats

	// SolvedCases accumulates the negated case-split cube for every
	// branch the case-split controller closed, in closure order. The
	// --certify-SAT/--qdimacs-output CLI surface reads this after
	// Solve returns SAT.
	SolvedCases [][]int

	restartBudget        int
	decisionsThisRestart int
	deadline             time.Time // zero when no TimeBudget is set

	// frameIsCaseSplit mirrors the undo stack's depth, recording
	// whether each currently-open level was opened by an existential
	// decision (false) or by the case-split controller (true). Needed
	// because the case-split controller keeps its own frame metadata
	// (the assumed universal literal) in addition to the shared
	// undo.Stack; a conflict that backtracks into a case-split frame
	// must close it through caseCtl.CompleteCase rather than popping
	// the shared undo stack directly, or the two would desync.
	frameIsCaseSplit []bool
}

// New wires a fresh Solver around q. The only construction failure is a
// Config selecting the rejected exponential depth penalty
// (casesplit.ErrExponentialUnsupported), which is surfaced rather than
// silently falling back to a supported policy.
func New(q *qcnf.Store, cfg Config) (*Solver, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	ustack := &undo.Stack{}
	skAdapter := satadapter.New(rng)
	sk := skolem.New(q, ustack, skAdapter, cfg.FunctionalSynthesis)
	log := cfg.Logger
	if log == nil {
		log = solverlog.Discard()
	}

	s := &Solver{
		q:             q,
		ustack:        ustack,
		rng:           rng,
		cfg:           cfg,
		log:           log,
		sk:            sk,
		examples:      xamples.New(q, rng, cfg.ExampleSetSize),
		restartBudget: cfg.InitialRestartBudget,
	}
	if cfg.Cegar {
		s.cg = cegar.New(q, satadapter.New(rng), cfg.CegarEffectivenessThreshold, log.Named("cegar"))
	}
	if cfg.CaseSplits {
		ctl, err := casesplit.NewController(sk, rng, cfg.CaseSplit, log.Named("casesplit"))
		if err != nil {
			return nil, err
		}
		s.caseCtl = ctl
	}
	return s, nil
}

// Skolem exposes the underlying Skolem engine, for callers (e.g. the RL
// protocol codec) that need direct access to its state.
func (s *Solver) Skolem() *skolem.Engine { return s.sk }

// Stats returns the accumulated solve statistics.
func (s *Solver) Stats() Stats { return s.stats }

// Solve runs the outer loop to completion, or to Unknown if a
// configured soft budget elapses first.
func (s *Solver) Solve() Result {
	if s.q.Empty() {
		// An empty clause list is satisfied regardless of the
		// quantifier prefix.
		return SAT
	}
	if s.cfg.TimeBudget > 0 {
		s.deadline = time.Now().Add(s.cfg.TimeBudget)
	}
	s.seedExamples()
	for {
		if s.budgetExceeded() {
			return Unknown
		}
		if s.decisionsThisRestart >= s.restartBudget {
			s.restart()
			continue
		}

		if _, conflict := s.sk.Propagate(); conflict {
			if !s.handleConflict() {
				return UNSAT
			}
			continue
		}

		if lit, existential, universalOnly := s.pendingClause(); existential || universalOnly {
			// A case split is attempted before ever falling back to an
			// existential decision: a universal candidate always gets
			// first refusal, whether or not this particular pending
			// clause happened to also have a free existential literal.
			switch s.trySplit() {
			case casesplit.Picked:
				continue
			case casesplit.Exhausted:
				// Every remaining universal assumption is vacuous at the
				// base level: nothing left to split, the universal side
				// of the search is exhausted.
				return SAT
			}
			if existential {
				s.decide(lit)
				continue
			}
			// The only remaining unresolved clauses depend on a free
			// universal literal, but case-splitting is disabled or has
			// no eligible candidate. The driver has no sound way to
			// pin that literal down (doing so via an existential-style
			// decision would silently assume one polarity of a
			// universally-quantified variable), so it reports unknown
			// rather than an unsound verdict.
			return Unknown
		}

		if s.cfg.Cegar {
			switch s.cegarRound() {
			case cegarRefuted:
				if !s.handleConflict() {
					return UNSAT
				}
				continue
			case cegarRefining:
				continue
			case cegarAccepted:
				return SAT
			}
		}
		return SAT
	}
}

// pendingClause finds an active, unsatisfied clause with no unique
// consequence and reports how to make progress on it. Only an
// existential literal is ever returned as a decision candidate;
// committing a universal variable is the case-split controller's job
// exclusively, never a plain decision's. universalOnly reports that at least one
// pending clause has no free existential left to decide on, only a free
// universal: that clause can only be resolved by case-splitting. The
// Skolem candidate is quiescent (ready for CEGAR, or outright SAT) when
// both existential and universalOnly come back false.
func (s *Solver) pendingClause() (lit int, existential, universalOnly bool) {
	s.q.Clauses(func(id int, c *qcnf.Clause) bool {
		if _, hasUC := s.sk.UniqueConsequence(id); hasUC {
			return true
		}
		satisfied := false
		freeExistential := 0
		freeUniversal := false
		for _, l := range c.Lits {
			switch s.sk.LiteralValue(l) {
			case 1:
				satisfied = true
			case 0:
				if s.q.Var(abs(l)).IsUniversal {
					freeUniversal = true
				} else if freeExistential == 0 {
					freeExistential = l
				}
			}
		}
		if satisfied {
			return true
		}
		if freeExistential != 0 {
			lit, existential = freeExistential, true
			return false
		}
		if freeUniversal {
			universalOnly = true
		}
		return true
	})
	return lit, existential, universalOnly
}

func (s *Solver) decide(lit int) {
	s.stats.Decisions++
	s.decisionsThisRestart++
	s.sk.Push()
	s.sk.AssumeConstantValue(lit)
	s.frameIsCaseSplit = append(s.frameIsCaseSplit, false)
	// The examples are fast falsifiers only: a conflicting member is
	// evidence the decision was poor, counted here; the real verdict
	// still comes from Skolem propagation on the next iteration.
	if w := s.examples.Decision(lit, s.ustack.Depth()); w != nil {
		s.stats.ExampleConflicts++
	}
}

// trySplit asks the case-split controller to assume a universal literal
// instead of an existential decision, when enabled. The
// caller reacts to the returned status directly rather than collapsing
// it to a bool: Exhausted and NoCandidates call for different outer
// behavior (see Solve).
func (s *Solver) trySplit() casesplit.Status {
	if s.caseCtl == nil {
		return casesplit.NoCandidates
	}
	var candidates []int
	for v := 1; v <= s.q.NumVars(); v++ {
		if !s.q.Var(v).IsUniversal {
			continue
		}
		if s.sk.LiteralValue(v) == 0 {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return casesplit.NoCandidates
	}
	_, status := s.caseCtl.AttemptSplit(candidates)
	if status == casesplit.Picked {
		s.stats.CaseSplits++
		s.decisionsThisRestart++
		s.frameIsCaseSplit = append(s.frameIsCaseSplit, true)
	}
	return status
}

type cegarOutcome int

const (
	cegarAccepted cegarOutcome = iota
	cegarRefuted
	cegarRefining
)

// cegarRound runs CEGAR's abstraction-refinement loop for one outer
// iteration: check the interface assignment against the existential
// oracle; UNSAT refutes the branch, SAT yields a cube whose blocking
// clause excludes it from the next check. It iterates up to
// MaxCegarRefinementsPerRound times; if the interface is still
// satisfiable after the cap, the candidate function is accepted as-is
// rather than risking a non-terminating refinement loop on
// pathological inputs.
func (s *Solver) cegarRound() cegarOutcome {
	defer func() {
		s.stats.CegarMinimizationEffectiveness = s.cg.Stats().FractionHelped()
	}()
	s.cg.SyncClauses(s.sk)
	iface := s.cg.Interface(s.sk)
	for i := 0; i < s.cfg.MaxCegarRefinementsPerRound; i++ {
		s.stats.CegarChecks++
		result, cube := s.cg.BuildAbstractionForAssignment(s.sk, iface)
		if result == cegar.BranchRefuted {
			return cegarRefuted
		}
		if len(cube.Lits) == len(iface) {
			// Nothing was minimized away: the model is already as tight
			// as the oracle can make it without more information, so
			// there's nothing further to refine this round.
			return cegarAccepted
		}
		s.cg.Adapter().AddClause(cube.BlockingClause()...)
		if !s.cg.Effective() {
			// Recent cubes have grown past the effectiveness threshold:
			// refinement is buying too little per check, hand the round
			// back to the outer loop.
			return cegarAccepted
		}
	}
	return cegarAccepted
}

// handleConflict runs first-UIP analysis, learns the resulting clause,
// and backtracks one level. Returns false when the conflict can't
// be backtracked past (either decision level 0, or a refuted universal
// case-split frame with nothing open beneath it), meaning the whole
// search is UNSAT.
func (s *Solver) handleConflict() bool {
	s.stats.Conflicts++
	learnt := s.sk.AnalyzeConflict()
	s.sk.ClearConflict()
	for _, l := range learnt {
		if s.q.Var(abs(l)).IsUniversal && s.caseCtl != nil {
			s.caseCtl.BumpActivity(abs(l))
		}
	}
	if len(s.frameIsCaseSplit) == 0 {
		return false
	}
	top := s.frameIsCaseSplit[len(s.frameIsCaseSplit)-1]
	if top {
		if len(s.frameIsCaseSplit) == 1 {
			// This case-split frame is the outermost open frame: no
			// existential decision or enclosing case sits beneath it to
			// blame instead. A real propagation conflict right after
			// committing it means this polarity of the universal
			// variable admits no Skolem witness at all; since nothing
			// else narrowed the universal space, that is a
			// counterexample to the whole formula, not a combination to
			// route around. Folding it into a solved cube and forcing
			// the complementary polarity (as closeCase does for nested
			// frames) would silently stop checking the polarity that
			// just failed, which is unsound: a universal variable does
			// not get to be "decided," it ranges over both values.
			return false
		}
		return s.closeCase()
	}
	s.frameIsCaseSplit = s.frameIsCaseSplit[:len(s.frameIsCaseSplit)-1]
	s.ustack.Pop()
	s.decisionsThisRestart = max0(s.decisionsThisRestart - 1)
	if _, err := s.q.NewClause(learnt, false); err != nil {
		// A learned clause can never itself be malformed (every
		// literal in it already names a live variable); surfacing this
		// as a panic would hide a real bug in conflict analysis.
		panic(err)
	}
	return true
}

// closeCase folds the most recently opened case-split frame into a
// solved cube once its branch is fully refuted: the negations of the
// assumed literals describe the region just shown unwinnable. Only
// reachable for a *nested* case-split frame (handleConflict routes the
// outermost one straight to an UNSAT verdict instead, per the
// correctness note there): here there is an enclosing case-split or
// decision frame beneath this one, so the refutation legitimately
// narrows the search rather than discarding the only remaining
// universal branch. The frame is a case split by construction
// (handleConflict only calls this when frameIsCaseSplit's top entry is
// true), so caseCtl is guaranteed non-nil and open here.
func (s *Solver) closeCase() bool {
	cube := s.caseCtl.CompleteCase()
	s.frameIsCaseSplit = s.frameIsCaseSplit[:len(s.frameIsCaseSplit)-1]
	if s.cfg.CertifySAT {
		s.SolvedCases = append(s.SolvedCases, cube)
	}
	if s.cg != nil {
		s.cg.Adapter().AddClause(cube...)
	}
	if _, err := s.q.NewClause(cube, false); err != nil {
		panic(err)
	}
	return true
}

// restart backtracks to the permanent base level, doubles the restart
// budget every RestartDoublingPeriod restarts, and runs the clause
// minimization sweep.
func (s *Solver) restart() {
	s.stats.Restarts++
	s.ustack.PopTo(0)
	s.frameIsCaseSplit = nil
	if s.caseCtl != nil {
		s.caseCtl.Reset()
	}
	s.decisionsThisRestart = 0
	if s.cfg.RestartDoublingPeriod > 0 && s.stats.Restarts%s.cfg.RestartDoublingPeriod == 0 {
		s.restartBudget *= 2
	}
	s.log.Debug("restart", "restarts", s.stats.Restarts, "budget", s.restartBudget)
	s.minimizeClauses()
	// Members carry assignments from the branch that was just unwound;
	// they have no undo integration of their own, so the whole set is
	// regenerated instead.
	s.examples.Reset()
	s.seedExamples()
}

// minimizeClauses sweeps the clause database on restart: learned clauses
// exceeding LearntClauseSizeLimit are deleted every restart, original
// clauses every OriginalMinimizationPeriod restarts. A
// clause anchoring a unique consequence is never touched (its antecedent
// is wired into the Skolem encoding); an original is only dropped once a
// permanent level-0 constant already satisfies it.
func (s *Solver) minimizeClauses() {
	sweepOriginals := s.cfg.OriginalMinimizationPeriod > 0 &&
		s.stats.Restarts%s.cfg.OriginalMinimizationPeriod == 0
	var drop []int
	s.q.Clauses(func(id int, c *qcnf.Clause) bool {
		if _, anchored := s.sk.UniqueConsequence(id); anchored {
			return true
		}
		if c.Original {
			if !sweepOriginals {
				return true
			}
			for _, l := range c.Lits {
				rec := s.sk.Record(abs(l))
				if rec.ConstVal != 0 && rec.DlvlForConstant == 0 && constSatisfies(rec.ConstVal, l) {
					drop = append(drop, id)
					break
				}
			}
			return true
		}
		if s.cfg.LearntClauseSizeLimit > 0 && c.Size() > s.cfg.LearntClauseSizeLimit {
			drop = append(drop, id)
		}
		return true
	})
	for _, id := range drop {
		s.q.DeactivateClause(id)
	}
	s.stats.ClausesDeleted += len(drop)
}

func constSatisfies(constVal int8, l int) bool {
	if l > 0 {
		return constVal == 1
	}
	return constVal == 2
}

func (s *Solver) seedExamples() {
	for i := 0; i < s.cfg.ExampleSetSize; i++ {
		s.examples.NewAssignmentRandom()
	}
}

// budgetExceeded checks the soft time and decision budgets between
// iterations; cancellation is external and not directly observable, so
// this poll is the only suspension-point check.
func (s *Solver) budgetExceeded() bool {
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return true
	}
	if s.cfg.DecisionLimit > 0 && s.stats.Decisions+s.stats.CaseSplits >= s.cfg.DecisionLimit {
		return true
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func max0(x int) int {
	if x < 0 {
		return 0
	}
	return x
}
