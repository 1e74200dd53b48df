// Package solvererr defines the error kinds shared across the solver
// core: malformed input, invariant violations (programmer errors,
// fatal), and the two "expected, surfaced as unknown" conditions,
// timeout and a transient SAT-adapter state. None of these are retried
// by the core; CEGAR's expected-UNSAT control flow is deliberately not
// modeled as an error at all.
package solvererr

import "fmt"

// MalformedInput reports a QDIMACS/QCNF well-formedness failure, such as
// a malformed line, a literal over an unknown variable, or an
// existential co-occurring with a universal outside its scope's declared
// dependency set (DQBF). Prenex quantifier order is not checked.
// Unrecoverable; carries a line/byte offset when the fault was detected
// while parsing text.
type MalformedInput struct {
	Offset  int // byte offset, -1 if not applicable (e.g. detected post-parse)
	Line    int // 1-based line number, 0 if not applicable
	Message string
}

func (e *MalformedInput) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d (offset %d): %s", e.Line, e.Offset, e.Message)
	}
	return fmt.Sprintf("malformed input: %s", e.Message)
}

// InvariantViolation signals a programmer error: a second unique
// consequence registered for one clause, an assertion over an already
// deterministic variable, popping an undo stack with no milestones, and
// similar conditions that can never arise from well-formed input. These
// are fatal: production code logs the snapshot and exits with a
// distinguished code; tests assert on the panic/error directly.
type InvariantViolation struct {
	Invariant string // short name of the broken rule, e.g. "unique-consequence", "undo-milestone"
	Message   string
	Snapshot  any // component-supplied state snapshot, logged verbatim
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Message)
}

// Raise panics with an *InvariantViolation. Invariant breaches are
// programmer errors, not something callers are expected to handle with
// an if-err-return; cmd/cadet recovers once at the top to log the
// snapshot and exit with a distinguished code.
func Raise(invariant, message string, snapshot any) {
	panic(&InvariantViolation{Invariant: invariant, Message: message, Snapshot: snapshot})
}

// Timeout reports that a soft time or decision budget elapsed. The
// driver surfaces this as result "unknown", not as a hard failure.
type Timeout struct {
	Budget string // "time" or "decisions"
}

func (e *Timeout) Error() string { return fmt.Sprintf("%s budget exhausted", e.Budget) }

// SatAdapterTransient reports that the embedded SAT adapter returned an
// UNKNOWN verdict (e.g. its own internal resource limit), which must be
// preserved through solver_state rather than treated as SAT or UNSAT.
type SatAdapterTransient struct {
	Context string
}

func (e *SatAdapterTransient) Error() string {
	return fmt.Sprintf("sat adapter returned unknown (%s)", e.Context)
}
