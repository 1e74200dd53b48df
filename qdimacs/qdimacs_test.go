package qdimacs

import (
	"strings"
	"testing"
)

func TestParseScenario1(t *testing.T) {
	src := "p cnf 2 2\na 1 0\ne 2 0\n1 2 0\n-1 2 0\n"
	q, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if q.NumVars() != 2 {
		t.Fatalf("NumVars() = %d, want 2", q.NumVars())
	}
	if q.NumActiveClauses() != 2 {
		t.Fatalf("NumActiveClauses() = %d, want 2", q.NumActiveClauses())
	}
	if q.Scope(0).IsUniversal != true || q.Scope(1).IsUniversal != false {
		t.Fatal("scope order/kind not preserved")
	}
}

func TestParseNonOriginalMarkerIgnored(t *testing.T) {
	src := "p cnf 1 1\ne 1 0\nn 1 0\n1 0\n"
	q, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if q.NumActiveClauses() != 1 {
		t.Fatalf("NumActiveClauses() = %d, want 1 (n-marked clause must be ignored)", q.NumActiveClauses())
	}
}

func TestParseDependencyLine(t *testing.T) {
	src := "a 1 2 0\ne 3 0\nd 3 1 0\n3 1 0\n"
	q, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	v3, _ := q.VarBySource(3)
	sc := q.Scope(q.Var(v3).ScopeID)
	if sc.Deps == nil {
		t.Fatal("expected an explicit dependency set on scope of variable 3")
	}
	v1, _ := q.VarBySource(1)
	if !sc.Deps[v1] {
		t.Fatal("expected variable 1 in the declared dependency set")
	}
}

func TestParseMalformedProblemLine(t *testing.T) {
	_, err := Parse(strings.NewReader("p cnf notanumber 2\n"))
	if err == nil {
		t.Fatal("expected an error for a malformed problem line")
	}
}

func TestRoundTripWrite(t *testing.T) {
	src := "p cnf 2 2\na 1 0\ne 2 0\n1 2 0\n-1 2 0\n"
	q, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	if err := Write(&sb, q); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, "p cnf 2 2\n") {
		t.Fatalf("Write output = %q, want it to start with the problem line", out)
	}
	if !strings.Contains(out, "a 1 0\n") || !strings.Contains(out, "e 2 0\n") {
		t.Fatalf("Write output missing quantifier lines: %q", out)
	}
}
