// Package undo implements the reversible-operation log of the solver
// core. The Skolem engine records its mutations onto one shared Stack,
// so a single Pop() unwinds a whole decision level's worth of its state
// atomically; the QCNF store, the case-split controller and the SAT
// adapters record nothing here.
//
// Entries implement the Entry interface. Components record closures
// through the Func adapter, which captures the payload inline, so
// dispatch needs no dynamic casts.
package undo

import "github.com/kestrelqbf/cadet/solvererr"

// Entry is one reversible operation. Undo must restore the prior value
// of whatever it captured; it is called at most once, in the reverse
// order entries were recorded, never crossing a milestone.
type Entry interface {
	Undo()
}

// Func adapts a plain closure to Entry, for the common case of a
// component capturing "restore this field to its old value" inline.
type Func func()

func (f Func) Undo() { f() }

// Stack is an append-only log of entries interleaved with milestone
// markers. The zero value is usable.
type Stack struct {
	entries    []Entry
	milestones []int
}

// Depth returns the number of currently open milestones (i.e. the
// current decision level relative to the permanent base).
func (s *Stack) Depth() int { return len(s.milestones) }

// Push installs a new milestone. Entries recorded after this call are
// undone, in reverse order, by the matching Pop.
func (s *Stack) Push() { s.milestones = append(s.milestones, len(s.entries)) }

// Record appends e to the log. It is an invariant violation to record
// work while no milestone is open: work on the permanent base level
// (decision level 0 before any Push) can never be undone, so a component
// that would need to undo it must simply not make it reversible.
func (s *Stack) Record(e Entry) {
	if len(s.milestones) == 0 {
		solvererr.Raise("undo-milestone", "undo.Stack.Record called with no open milestone", nil)
	}
	s.entries = append(s.entries, e)
}

// Pop undoes every entry recorded since the most recent Push, in reverse
// order, and closes that milestone. It is an invariant violation to Pop
// with no milestones open.
func (s *Stack) Pop() {
	if len(s.milestones) == 0 {
		solvererr.Raise("undo-milestone", "undo.Stack.Pop called with no milestones on the stack", nil)
	}
	mark := s.milestones[len(s.milestones)-1]
	s.milestones = s.milestones[:len(s.milestones)-1]
	for i := len(s.entries) - 1; i >= mark; i-- {
		s.entries[i].Undo()
	}
	s.entries = s.entries[:mark]
}

// PopTo repeatedly Pops until Depth() == depth. It is a convenience for
// restarts, which backtrack to a stable base decision level in one call
// rather than one Pop per intervening level.
func (s *Stack) PopTo(depth int) {
	for s.Depth() > depth {
		s.Pop()
	}
}
