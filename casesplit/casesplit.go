// Package casesplit implements the case-split controller: it scores
// candidate universal literals by probing both polarities against the
// Skolem engine, picks the best-scoring literal to assume when progress
// is slow, and tracks the resulting case-split stack so a branch
// reaching UNSAT can be folded back into a solved cube.
package casesplit

import (
	"errors"
	"math"
	"math/rand"

	"github.com/kestrelqbf/cadet/solverlog"
)

// DepthPenalty selects how the controller discounts a literal's quality
// score as the case-split stack grows deeper.
type DepthPenalty int

const (
	DepthPenaltyLinear DepthPenalty = iota
	DepthPenaltyQuadratic
	// DepthPenaltyExponential is named for completeness but is not
	// implemented; NewController rejects it explicitly rather than
	// silently substituting another policy.
	DepthPenaltyExponential
)

// ErrExponentialUnsupported is returned by NewController when Config
// selects DepthPenaltyExponential.
var ErrExponentialUnsupported = errors.New("casesplit: exponential depth penalty is not implemented")

// Config parametrizes a Controller.
type Config struct {
	Penalty DepthPenalty
	// FlipProbability is the chance a scored-but-not-forced literal has
	// its polarity flipped before assumption, breaking deterministic
	// loops.
	FlipProbability float64
}

// DefaultConfig returns a linear depth penalty with 1/30 flip
// probability.
func DefaultConfig() Config {
	return Config{Penalty: DepthPenaltyLinear, FlipProbability: 1.0 / 30.0}
}

// probeEngine is the slice of skolem.Engine's API the controller needs
// to probe a candidate assumption without importing skolem directly.
type probeEngine interface {
	Push()
	Pop()
	AssumeConstantValue(l int)
	Propagate() (int, bool)
	ClearConflict()
	GroundedCount() int
}

type frame struct {
	lit int
}

// Controller owns the case-split stack and per-variable activity EMA.
type Controller struct {
	sk  probeEngine
	rng *rand.Rand
	cfg Config
	log solverlog.Logger

	activity map[int]float64 // universal var id -> EMA of conflict involvement
	stack    []frame
}

// NewController returns a Controller probing sk, using rng for the
// polarity-flip coin flip. A nil log discards diagnostics. Returns
// ErrExponentialUnsupported if cfg asks for the unimplemented depth
// penalty.
func NewController(sk probeEngine, rng *rand.Rand, cfg Config, log solverlog.Logger) (*Controller, error) {
	if cfg.Penalty == DepthPenaltyExponential {
		return nil, ErrExponentialUnsupported
	}
	if log == nil {
		log = solverlog.Discard()
	}
	return &Controller{sk: sk, rng: rng, cfg: cfg, log: log, activity: make(map[int]float64)}, nil
}

// BumpActivity records that v participated in a just-derived conflict,
// feeding the decaying per-variable activity average the scorer
// consults.
func (c *Controller) BumpActivity(v int) {
	if v < 0 {
		v = -v
	}
	c.activity[v] = c.activity[v]*0.9 + 1
}

func (c *Controller) depthPenalty() float64 {
	depth := float64(len(c.stack))
	if c.cfg.Penalty == DepthPenaltyQuadratic {
		return 1 + depth*depth
	}
	return 1 + depth
}

// probe pushes a scope, assumes l, propagates, and reports how many
// variables that propagation grounded (not counting l's own variable)
// plus whether it conflicted, then pops, leaving the Skolem engine
// exactly as it found it.
func (c *Controller) probe(l int) (propagations int, conflict bool) {
	c.sk.Push()
	c.sk.AssumeConstantValue(l)
	before := c.sk.GroundedCount()
	_, conflict = c.sk.Propagate()
	after := c.sk.GroundedCount()
	if conflict {
		c.sk.ClearConflict()
	}
	c.sk.Pop()
	return after - before, conflict
}

// Score is one candidate universal literal's evaluated quality.
type Score struct {
	Literal int
	Quality float64
	// Forced is set when probing hit an immediate conflict (a failed
	// literal), making Literal the choice regardless of quality.
	Forced bool
	// Vacuous is set when both polarities propagated nothing and
	// neither conflicted: this literal can't make progress right now.
	Vacuous bool
}

func (c *Controller) score(v int) Score {
	if v < 0 {
		v = -v
	}
	posProp, posConflict := c.probe(v)
	negProp, negConflict := c.probe(-v)
	// A probe conflict is a failed literal: assuming that polarity
	// immediately falsifies the Skolem construction. For a universal
	// variable this is not "avoid it, assume the safe polarity instead"
	// (that would hide a genuine counterexample to satisfiability); it
	// is itself the useful outcome, so the controller commits exactly
	// the polarity that failed and lets the real propagate/conflict
	// path in the driver process it (direct refutation, or backjump
	// through conflict analysis, depending on what else is assumed).
	if posConflict && !negConflict {
		return Score{Literal: v, Quality: math.Inf(1), Forced: true}
	}
	if negConflict && !posConflict {
		return Score{Literal: -v, Quality: math.Inf(1), Forced: true}
	}
	if posProp == 0 && negProp == 0 && !posConflict && !negConflict {
		return Score{Literal: v, Vacuous: true}
	}
	activityFactor := 1 + 20*c.activity[v]
	combined := activityFactor / c.depthPenalty()
	quality := combined * (float64(posProp)*float64(negProp) + float64(posProp) + float64(negProp) + 1)
	lit := v
	if posProp < negProp {
		lit = -v // pick the polarity that propagated more; ties go to the positive literal
	}
	if c.rng.Float64() < c.cfg.FlipProbability {
		lit = -lit
	}
	return Score{Literal: lit, Quality: quality}
}

// Status is AttemptSplit's outcome.
type Status int

const (
	// Picked means a literal was scored, assumed, and pushed onto the
	// case-split stack.
	Picked Status = iota
	// NoCandidates means the candidate list was empty; nothing to do.
	NoCandidates
	// Exhausted means every candidate was vacuous at the base decision
	// level: the universal space is exhausted and the driver should
	// treat the search as overall SAT.
	Exhausted
)

// AttemptSplit scores every candidate (unsigned universal variable ids)
// and assumes the best-scoring literal, pushing a new case-split frame.
func (c *Controller) AttemptSplit(candidates []int) (int, Status) {
	if len(candidates) == 0 {
		return 0, NoCandidates
	}
	var best Score
	haveBest := false
	allVacuous := true
	for _, v := range candidates {
		s := c.score(v)
		if !s.Vacuous {
			allVacuous = false
		}
		if s.Forced {
			best, haveBest = s, true
			break
		}
		if !haveBest || s.Quality > best.Quality {
			best, haveBest = s, true
		}
	}
	if allVacuous && len(c.stack) == 0 {
		return 0, Exhausted
	}
	if !haveBest {
		return 0, NoCandidates
	}
	c.sk.Push()
	c.sk.AssumeConstantValue(best.Literal)
	c.stack = append(c.stack, frame{lit: best.Literal})
	c.log.Debug("assuming universal literal", "lit", best.Literal, "quality", best.Quality, "forced", best.Forced, "depth", len(c.stack))
	return best.Literal, Picked
}

// Depth returns the number of currently open case-split frames.
func (c *Controller) Depth() int { return len(c.stack) }

// Reset discards all open case-split frame metadata without touching
// the Skolem engine, for callers (the driver's restart) that have
// already unwound the shared undo stack directly rather than through
// CompleteCase.
func (c *Controller) Reset() { c.stack = nil }

// CompleteCase pops the most recently opened case-split frame (its
// branch reached UNSAT at the outer solver) and returns the solved
// cube: the negation of every literal still assumed on the case-split
// stack below and including it. Returns nil if no frame is open.
func (c *Controller) CompleteCase() []int {
	if len(c.stack) == 0 {
		return nil
	}
	cube := make([]int, len(c.stack))
	for i, f := range c.stack {
		cube[i] = -f.lit
	}
	c.stack = c.stack[:len(c.stack)-1]
	c.sk.Pop()
	c.log.Debug("case closed", "cube_size", len(cube), "depth", len(c.stack))
	return cube
}
