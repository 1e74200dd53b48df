// Package qdimacs implements the QDIMACS parser and writer: the
// boundary that turns text into a qcnf.Store and back. The solver core
// never depends on it, but it is the only way anything in this module
// gets fed a real formula, so it is shipped and tested like any other
// component. The parser is scanner-based and tolerates a few common
// nonstandard variations (missing problem line, undeclared variables).
package qdimacs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/kestrelqbf/cadet/qcnf"
	"github.com/kestrelqbf/cadet/solvererr"
)

// Parse reads a QDIMACS (or DQDIMACS) formula from r into a fresh
// qcnf.Store.
//
// Accepted lines, beyond the standard "p cnf"/clause body:
//
//	a v1 v2 ... 0     universal scope
//	e v1 v2 ... 0     existential scope
//	d v dep1 dep2 0   DQBF: v (already declared in some e scope) may
//	                  depend only on the listed universals
//	n lit1 lit2 ... 0 a non-original-marked clause: accepted
//	                  syntactically but never added to the store, so a
//	                  QDIMACS file can carry solver hints without
//	                  perturbing semantics
//
// Comment lines ('c') are allowed anywhere. Errors are collected with
// go-multierror so a single pass over a malformed file reports every
// problem line, not just the first.
func Parse(r io.Reader) (*qcnf.Store, error) {
	p := &parser{q: qcnf.New(), bySource: make(map[int]int), pendingScope: -1}
	s := bufio.NewScanner(r)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || line == "%" {
			if line == "%" {
				break
			}
			continue
		}
		if line[0] == 'c' {
			continue
		}
		p.handleLine(lineNo, line)
	}
	if err := s.Err(); err != nil {
		p.errs = multierror.Append(p.errs, err)
	}
	if p.pendingClause != nil {
		p.errs = multierror.Append(p.errs, &solvererr.MalformedInput{
			Offset: -1, Line: lineNo, Message: "clause not terminated by 0 before end of input",
		})
	}
	return p.q, p.errs.ErrorOrNil()
}

type parser struct {
	q        *qcnf.Store
	bySource map[int]int // external var number -> internal qcnf var id, filled by a/e lines

	sawProblem bool
	vars       int
	numClauses int

	pendingScope  int // scope id lazily created for variables used without a quantifier line
	pendingClause []int

	errs *multierror.Error
}

func (p *parser) fail(line int, format string, args ...any) {
	p.errs = multierror.Append(p.errs, &solvererr.MalformedInput{
		Offset: -1, Line: line, Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) handleLine(line int, text string) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "p":
		p.handleProblem(line, fields)
	case "a", "e":
		p.handleScope(line, fields[0] == "a", fields[1:])
	case "d":
		p.handleDeps(line, fields[1:])
	case "n":
		p.handleClauseFields(line, fields[1:], true)
	default:
		p.handleClauseFields(line, fields, false)
	}
}

func (p *parser) handleProblem(line int, fields []string) {
	if p.sawProblem {
		p.fail(line, "multiple problem lines")
		return
	}
	if len(fields) != 4 {
		p.fail(line, "malformed problem line %q", strings.Join(fields, " "))
		return
	}
	if fields[1] != "cnf" {
		p.fail(line, "only cnf supported; got %q", fields[1])
		return
	}
	vars, err := strconv.Atoi(fields[2])
	if err != nil {
		p.fail(line, "malformed #vars: %s", err)
		return
	}
	clauses, err := strconv.Atoi(fields[3])
	if err != nil {
		p.fail(line, "malformed #clauses: %s", err)
		return
	}
	p.sawProblem = true
	p.vars = vars
	p.numClauses = clauses
}

func (p *parser) handleScope(line int, universal bool, fields []string) {
	scID := p.q.NewScope(universal)
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			p.fail(line, "invalid variable in quantifier line: %s", err)
			return
		}
		if n == 0 {
			return
		}
		id := p.q.NewVar(scID, universal, true, n)
		p.bySource[n] = id
	}
}

func (p *parser) handleDeps(line int, fields []string) {
	if len(fields) < 1 {
		p.fail(line, "empty dependency line")
		return
	}
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			p.fail(line, "invalid variable in dependency line: %s", err)
			return
		}
		nums = append(nums, n)
	}
	if nums[len(nums)-1] != 0 {
		p.fail(line, "dependency line not terminated by 0")
		return
	}
	nums = nums[:len(nums)-1]
	if len(nums) == 0 {
		p.fail(line, "dependency line names no variable")
		return
	}
	v, ok := p.bySource[nums[0]]
	if !ok {
		p.fail(line, "dependency line references undeclared variable %d", nums[0])
		return
	}
	deps := make([]int, 0, len(nums)-1)
	for _, n := range nums[1:] {
		d, ok := p.bySource[n]
		if !ok {
			p.fail(line, "dependency line references undeclared universal %d", n)
			continue
		}
		deps = append(deps, d)
	}
	p.q.SetDependencies(p.q.Var(v).ScopeID, deps)
}

func (p *parser) handleClauseFields(line int, fields []string, nonOriginal bool) {
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			p.fail(line, "invalid literal %q", f)
			return
		}
		if n == 0 {
			p.finishClause(line, nonOriginal)
			return
		}
		id, ok := p.bySource[abs(n)]
		if !ok {
			// A variable used in the matrix without an explicit
			// quantifier line defaults to innermost existential, the
			// common convention in QDIMACS files found in the wild.
			id = p.implicitExistential(abs(n))
		}
		lit := id
		if n < 0 {
			lit = -id
		}
		p.pendingClause = append(p.pendingClause, lit)
	}
}

func (p *parser) implicitExistential(sourceID int) int {
	if id, ok := p.bySource[sourceID]; ok {
		return id
	}
	if p.pendingScope == -1 {
		p.pendingScope = p.q.NewScope(false)
	}
	id := p.q.NewVar(p.pendingScope, false, true, sourceID)
	p.bySource[sourceID] = id
	return id
}

func (p *parser) finishClause(line int, nonOriginal bool) {
	lits := p.pendingClause
	p.pendingClause = nil
	if nonOriginal {
		return // syntactically valid, deliberately never added
	}
	if _, err := p.q.NewClause(lits, true); err != nil {
		p.errs = multierror.Append(p.errs, err)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Write emits q as QDIMACS: a problem line, one quantifier line per
// scope in prefix order, then one line per active clause. Solver-
// introduced variables (Original == false) are omitted from the
// quantifier lines and the reported variable count, matching the
// convention that only the parsed input's own variables are named in
// the output.
func Write(w io.Writer, q *qcnf.Store) error {
	bw := bufio.NewWriter(w)
	origVars := 0
	for v := 1; v <= q.NumVars(); v++ {
		if q.Var(v).Original {
			origVars++
		}
	}
	if _, err := fmt.Fprintf(bw, "p cnf %d %d\n", origVars, q.NumActiveClauses()); err != nil {
		return err
	}
	for s := 0; s < q.NumScopes(); s++ {
		sc := q.Scope(s)
		var names []string
		for _, v := range sc.Vars {
			if !q.Var(v).Original {
				continue
			}
			names = append(names, strconv.Itoa(v))
		}
		if len(names) == 0 {
			continue
		}
		tag := "e"
		if sc.IsUniversal {
			tag = "a"
		}
		if _, err := fmt.Fprintf(bw, "%s %s 0\n", tag, strings.Join(names, " ")); err != nil {
			return err
		}
	}
	var writeErr error
	q.Clauses(func(id int, c *qcnf.Clause) bool {
		parts := make([]string, 0, len(c.Lits)+1)
		for _, l := range c.Lits {
			parts = append(parts, strconv.Itoa(l))
		}
		parts = append(parts, "0")
		if _, err := fmt.Fprintln(bw, strings.Join(parts, " ")); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if writeErr != nil {
		return writeErr
	}
	return bw.Flush()
}
