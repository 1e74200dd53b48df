// Package qcnf implements the quantified-CNF data store: variables,
// scopes, clauses and their occurrence lists. Clause indices are
// assigned monotonically and never reused, occurrence lists are kept as
// the exact inverse of active clause contents, and every literal must
// name a declared variable; scope-dependency validation collects all
// faults in one pass rather than failing on the first.
package qcnf

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/kestrelqbf/cadet/intvec"
	"github.com/kestrelqbf/cadet/solvererr"
)

// Scope is an ordered quantifier-prefix block. Order is the scope's
// position in the prefix (0-based, increasing outward to inward). For
// DQBF existentials, Deps holds the explicit set of
// universal variable ids this scope's variables may depend on; a nil
// Deps means "every universal in an earlier scope" (plain prenex QBF).
type Scope struct {
	ID          int
	Order       int
	IsUniversal bool
	Vars        []int
	Deps        map[int]bool
}

// Variable is one QCNF variable record.
type Variable struct {
	ID          int
	ScopeID     int
	IsUniversal bool
	Original    bool
	PosOcc      intvec.Vector // clause ids containing +ID
	NegOcc      intvec.Vector // clause ids containing -ID
}

// Clause is one QCNF clause record.
type Clause struct {
	ID                      int
	Lits                    []int
	Original                bool
	Active                  bool
	ConsistentWithOriginals bool
	Blocked                 bool
}

// Size returns the clause's literal count.
func (c *Clause) Size() int { return len(c.Lits) }

// Store is the mapping from clause index to clause plus the
// variable/scope tables and occurrence lists.
type Store struct {
	vars     *intvec.Store[Variable]
	bySource map[int]int // external (parser-facing) var number -> internal id
	scopes   []*Scope
	clauses  *intvec.Store[Clause]
	active   int // count of active clauses, for quick emptiness checks
}

// New returns an empty store.
func New() *Store {
	return &Store{
		vars:     intvec.NewStore[Variable](),
		bySource: make(map[int]int),
		clauses:  intvec.NewStore[Clause](),
	}
}

// NewScope appends a scope at the next prefix position and returns its
// id. Scopes must be declared in prefix order; this is the caller's
// (the parser's) responsibility.
func (s *Store) NewScope(isUniversal bool) int {
	id := len(s.scopes)
	s.scopes = append(s.scopes, &Scope{ID: id, Order: id, IsUniversal: isUniversal})
	return id
}

// Scope returns the scope record for id.
func (s *Store) Scope(id int) *Scope { return s.scopes[id] }

// NumScopes returns the number of declared scopes.
func (s *Store) NumScopes() int { return len(s.scopes) }

// SetDependencies installs an explicit DQBF dependency set on scope id: the
// universal variable ids (by internal id) its existentials may depend on.
// Call before adding clauses that reference the scope's variables.
func (s *Store) SetDependencies(scopeID int, universalVarIDs []int) {
	deps := make(map[int]bool, len(universalVarIDs))
	for _, v := range universalVarIDs {
		deps[v] = true
	}
	s.scopes[scopeID].Deps = deps
}

// NewVar appends a variable record and returns its internal id. If
// sourceID is nonzero and has already been registered, the existing id
// is returned unchanged; sourceID 0 means "no external name"
// (solver-introduced variable) and always mints a fresh id.
func (s *Store) NewVar(scopeID int, isUniversal, original bool, sourceID int) int {
	if sourceID != 0 {
		if id, ok := s.bySource[sourceID]; ok {
			return id
		}
	}
	id := s.vars.Add(Variable{ScopeID: scopeID, IsUniversal: isUniversal, Original: original})
	s.vars.Get(id).ID = id
	s.scopes[scopeID].Vars = append(s.scopes[scopeID].Vars, id)
	if sourceID != 0 {
		s.bySource[sourceID] = id
	}
	return id
}

// Var returns the variable record for id.
func (s *Store) Var(id int) *Variable { return s.vars.Get(id) }

// VarBySource looks up a variable by its external (parser-facing) number.
func (s *Store) VarBySource(sourceID int) (int, bool) {
	id, ok := s.bySource[sourceID]
	return id, ok
}

// NumVars returns the number of declared variables (excluding the
// reserved id 0).
func (s *Store) NumVars() int { return s.vars.Len() - 1 }

func litVar(l int) int {
	if l < 0 {
		return -l
	}
	return l
}

// NewClause deduplicates lits, drops the clause entirely if it's a
// tautology (a literal and its negation both present), registers
// occurrences, and returns the new clause's id. original marks whether
// this clause came from the parsed input (vs. a learned clause).
//
// Returns a *solvererr.MalformedInput wrapped in a multierror if any
// literal references an unknown variable, or (DQBF only) a universal
// literal outside the scope of an existential literal's explicit
// dependency set also present in the clause.
func (s *Store) NewClause(lits []int, original bool) (int, error) {
	seen := make(map[int]bool, len(lits))
	var deduped []int
	var errs *multierror.Error
	for _, l := range lits {
		v := litVar(l)
		if !s.vars.Valid(v) {
			errs = multierror.Append(errs, &solvererr.MalformedInput{
				Offset: -1, Message: fmt.Sprintf("literal %d references unknown variable %d", l, v),
			})
			continue
		}
		if seen[-l] {
			// Tautology: drop the whole clause, not just this literal.
			return 0, nil
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		deduped = append(deduped, l)
	}
	if errs != nil {
		return 0, errs.ErrorOrNil()
	}
	if err := s.checkDependencies(deduped); err != nil {
		return 0, err
	}

	id := s.clauses.Add(Clause{Lits: deduped, Original: original, Active: true, ConsistentWithOriginals: original})
	s.clauses.Get(id).ID = id
	s.active++
	for _, l := range deduped {
		v := s.vars.Get(litVar(l))
		if l > 0 {
			v.PosOcc.Push(id)
		} else {
			v.NegOcc.Push(id)
		}
	}
	return id, nil
}

// checkDependencies enforces the DQBF dependency restriction: a
// universal literal alongside an existential literal in the same clause
// must belong to that existential's scope's explicit dependency set,
// when one is declared. Plain prenex scopes (Deps == nil) place no
// restriction here; a universal declared later than an existential is
// handled by the Skolem engine's universal-reduction rule, not rejected
// at clause-construction time.
func (s *Store) checkDependencies(lits []int) error {
	var errs *multierror.Error
	for _, le := range lits {
		ve := s.vars.Get(litVar(le))
		if ve.IsUniversal {
			continue
		}
		scope := s.scopes[ve.ScopeID]
		if scope.Deps == nil {
			continue
		}
		for _, lu := range lits {
			vu := s.vars.Get(litVar(lu))
			if !vu.IsUniversal {
				continue
			}
			if !scope.Deps[vu.ID] {
				errs = multierror.Append(errs, &solvererr.MalformedInput{
					Offset: -1,
					Message: fmt.Sprintf(
						"existential %d (scope %d) co-occurs with universal %d outside its declared dependency set",
						ve.ID, scope.ID, vu.ID),
				})
			}
		}
	}
	return errs.ErrorOrNil()
}

// DeactivateClause unregisters c's occurrences and marks it inactive,
// preserving its index; indices are never reused.
func (s *Store) DeactivateClause(id int) {
	c := s.clauses.Get(id)
	if !c.Active {
		return
	}
	for _, l := range c.Lits {
		v := s.vars.Get(litVar(l))
		if l > 0 {
			removeID(&v.PosOcc, id)
		} else {
			removeID(&v.NegOcc, id)
		}
	}
	c.Active = false
	s.active--
}

func removeID(vec *intvec.Vector, id int) {
	for i := 0; i < vec.Len(); i++ {
		if vec.At(i) == id {
			vec.RemoveSwap(i)
			return
		}
	}
}

// Clause returns the clause record for id.
func (s *Store) Clause(id int) *Clause { return s.clauses.Get(id) }

// NumClauses returns the number of minted clause ids (including
// deactivated ones, excluding the reserved id 0).
func (s *Store) NumClauses() int { return s.clauses.Len() - 1 }

// NumActiveClauses returns the number of currently active clauses.
func (s *Store) NumActiveClauses() int { return s.active }

// Clauses yields every currently active clause in index order.
func (s *Store) Clauses(yield func(id int, c *Clause) bool) {
	for id := 1; id < s.clauses.Len(); id++ {
		c := s.clauses.Get(id)
		if !c.Active {
			continue
		}
		if !yield(id, c) {
			return
		}
	}
}

// Empty reports whether there are no active clauses; an empty clause
// list is satisfiable regardless of the quantifier prefix.
func (s *Store) Empty() bool { return s.active == 0 }
