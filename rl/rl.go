// Package rl implements the line-based reinforcement-learning
// protocol: the solver emits state/decision/clause/update lines on
// stdout and reads back integer literal decisions on stdin. It is a
// thin codec the CLI drives only when --rl is set; the solver core
// never imports it.
package rl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Encoder writes RL protocol lines to an underlying writer.
// EncodeState and EncodeDecision flush before returning so a listening
// process always sees a complete state before it's asked for a
// decision.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Flush writes any buffered bytes to the underlying writer.
func (e *Encoder) Flush() error { return e.w.Flush() }

// State is the solver-state vector emitted before every decision. It
// carries raw driver/skolem/formula counters only; derived ratios
// (e.g. decisions-per-conflict) are reconstructible by the listening
// process and not duplicated here.
type State struct {
	RestartBaseDecisionLevel  int
	SkolemDecisionLevel       int
	DeterminizationOrderLen   int
	Restarts                  int
	RestartsSinceLastMajor    int
	ConflictsUntilNextRestart int

	NumVars    int
	NumClauses int

	Decisions int
	Conflicts int
}

// EncodeState writes one "s <state-vector>" line.
func (e *Encoder) EncodeState(s State) error {
	_, err := fmt.Fprintf(e.w, "s %d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
		s.RestartBaseDecisionLevel,
		s.SkolemDecisionLevel,
		s.DeterminizationOrderLen,
		s.Restarts,
		s.RestartsSinceLastMajor,
		s.ConflictsUntilNextRestart,
		s.NumVars,
		s.NumClauses,
		s.Decisions,
		s.Conflicts,
	)
	if err != nil {
		return err
	}
	return e.w.Flush()
}

// EncodeDecision writes one "d <var>,<phase>" line.
func (e *Encoder) EncodeDecision(varID, phase int) error {
	_, err := fmt.Fprintf(e.w, "d %d,%d\n", varID, phase)
	if err != nil {
		return err
	}
	return e.w.Flush()
}

// EncodeClause writes one "clause <idx> <isLearnt> lits <l1> <l2> ..."
// line.
func (e *Encoder) EncodeClause(idx int, learnt bool, lits []int) error {
	learntFlag := 0
	if learnt {
		learntFlag = 1
	}
	if _, err := fmt.Fprintf(e.w, "clause %d %d lits", idx, learntFlag); err != nil {
		return err
	}
	for _, l := range lits {
		if _, err := fmt.Fprintf(e.w, " %d", l); err != nil {
			return err
		}
	}
	_, err := e.w.WriteString("\n")
	return err
}

// EncodeConstantValue writes one "v <var> <val>" line.
func (e *Encoder) EncodeConstantValue(varID, val int) error {
	_, err := fmt.Fprintf(e.w, "v %d %d\n", varID, val)
	return err
}

// EncodeDeterminicity writes one "u+ <var>" or "u- <var>" line.
func (e *Encoder) EncodeDeterminicity(varID int, deterministic bool) error {
	sign := "-"
	if deterministic {
		sign = "+"
	}
	_, err := fmt.Fprintf(e.w, "u%s %d\n", sign, varID)
	return err
}

// EncodeConflict writes one "conflict <var>" line.
func (e *Encoder) EncodeConflict(varID int) error {
	_, err := fmt.Fprintf(e.w, "conflict %d\n", varID)
	return err
}

// EncodeUniqueConsequence writes one "uc <clause> <lit>" line.
func (e *Encoder) EncodeUniqueConsequence(clauseIdx, lit int) error {
	_, err := fmt.Fprintf(e.w, "uc %d %d\n", clauseIdx, lit)
	return err
}

// EncodeActivity writes one "a <var>,<activity>" line, but only when
// activity exceeds 0.5, rather than emitting noise for every variable
// on every bump.
func (e *Encoder) EncodeActivity(varID int, activity float64) error {
	if activity <= 0.5 {
		return nil
	}
	_, err := fmt.Fprintf(e.w, "a %d,%f\n", varID, activity)
	return err
}

// EncodeRewards writes the terminal "rewards <v1> <v2> ..." line, one
// value per decision index in Rewards.
func (e *Encoder) EncodeRewards(values []float64) error {
	if _, err := e.w.WriteString("rewards"); err != nil {
		return err
	}
	for _, v := range values {
		if _, err := fmt.Fprintf(e.w, " %f", v); err != nil {
			return err
		}
	}
	if _, err := e.w.WriteString("\n"); err != nil {
		return err
	}
	return e.w.Flush()
}

// Decoder reads integer literal decisions from an underlying reader,
// one line per decision.
type Decoder struct {
	sc *bufio.Scanner
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{sc: bufio.NewScanner(r)}
}

// NextDecision blocks for the next line and parses it as a signed
// integer literal choice. Returns io.EOF once the underlying reader is
// exhausted, i.e. the driving process closed the pipe.
func (d *Decoder) NextDecision() (int, error) {
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	line := strings.TrimSpace(d.sc.Text())
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("rl: malformed decision line %q: %w", line, err)
	}
	return v, nil
}

// NextFileName blocks for the next line and returns it verbatim
// (trimmed), for the batch-mode variant of the protocol where the
// driving process names one QDIMACS file per solve before the
// line-based decision exchange for that file begins.
func (d *Decoder) NextFileName() (string, error) {
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(d.sc.Text()), nil
}

// Rewards accumulates one value per decision index, credited in
// arrears once a run's outcome and per-decision runtimes are known:
// the vector is indexed by decision order and not settled until the
// formula is solved.
type Rewards struct {
	values []float64
}

// StartDecision appends a new zero-valued slot and returns its index,
// called once per decision as it's made.
func (r *Rewards) StartDecision() int {
	r.values = append(r.values, 0)
	return len(r.values) - 1
}

// Add credits value to the decision at idx (rl_add_reward).
func (r *Rewards) Add(idx int, value float64) {
	r.values[idx] += value
}

// AddRuntimePenalty applies the source's runtime penalty term
// (-runtimeSeconds * 0.1) to the decision at idx.
func (r *Rewards) AddRuntimePenalty(idx int, runtimeSeconds float64) {
	r.Add(idx, -runtimeSeconds*0.1)
}

// Values returns the accumulated reward vector, in decision order.
func (r *Rewards) Values() []float64 {
	return r.values
}
