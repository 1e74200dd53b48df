package rl

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestEncodeStateWritesCommaJoinedVector(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	if err := e.EncodeState(State{
		RestartBaseDecisionLevel:  1,
		SkolemDecisionLevel:       2,
		DeterminizationOrderLen:   3,
		Restarts:                  4,
		RestartsSinceLastMajor:    5,
		ConflictsUntilNextRestart: 6,
		NumVars:                   7,
		NumClauses:                8,
		Decisions:                 9,
		Conflicts:                 10,
	}); err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	want := "s 1,2,3,4,5,6,7,8,9,10\n"
	if got := buf.String(); got != want {
		t.Fatalf("EncodeState wrote %q, want %q", got, want)
	}
}

func TestEncodeDecisionFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	if err := e.EncodeDecision(5, -1); err != nil {
		t.Fatalf("EncodeDecision: %v", err)
	}
	if got, want := buf.String(), "d 5,-1\n"; got != want {
		t.Fatalf("EncodeDecision wrote %q, want %q", got, want)
	}
}

func TestEncodeClauseFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	if err := e.EncodeClause(3, true, []int{1, -2, 4}); err != nil {
		t.Fatalf("EncodeClause: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got, want := buf.String(), "clause 3 1 lits 1 -2 4\n"; got != want {
		t.Fatalf("EncodeClause wrote %q, want %q", got, want)
	}
}

func TestEncodeClauseOriginalFlag(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	if err := e.EncodeClause(0, false, []int{1}); err != nil {
		t.Fatalf("EncodeClause: %v", err)
	}
	e.Flush()
	if got, want := buf.String(), "clause 0 0 lits 1\n"; got != want {
		t.Fatalf("EncodeClause wrote %q, want %q", got, want)
	}
}

func TestEncodeDeterminicitySign(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.EncodeDeterminicity(7, true)
	e.EncodeDeterminicity(7, false)
	e.Flush()
	if got, want := buf.String(), "u+ 7\nu- 7\n"; got != want {
		t.Fatalf("EncodeDeterminicity wrote %q, want %q", got, want)
	}
}

func TestEncodeActivitySkipsLowValues(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	if err := e.EncodeActivity(1, 0.2); err != nil {
		t.Fatalf("EncodeActivity: %v", err)
	}
	e.Flush()
	if buf.Len() != 0 {
		t.Fatalf("expected no output for activity <= 0.5, got %q", buf.String())
	}
	if err := e.EncodeActivity(1, 0.9); err != nil {
		t.Fatalf("EncodeActivity: %v", err)
	}
	e.Flush()
	if got, want := buf.String(), "a 1,0.900000\n"; got != want {
		t.Fatalf("EncodeActivity wrote %q, want %q", got, want)
	}
}

func TestEncodeRewardsFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	if err := e.EncodeRewards([]float64{1, -0.2, 0}); err != nil {
		t.Fatalf("EncodeRewards: %v", err)
	}
	if got, want := buf.String(), "rewards 1.000000 -0.200000 0.000000\n"; got != want {
		t.Fatalf("EncodeRewards wrote %q, want %q", got, want)
	}
}

func TestDecoderNextDecisionParsesIntegers(t *testing.T) {
	d := NewDecoder(strings.NewReader("5\n-3\n0\n"))
	for _, want := range []int{5, -3, 0} {
		got, err := d.NextDecision()
		if err != nil {
			t.Fatalf("NextDecision: %v", err)
		}
		if got != want {
			t.Fatalf("NextDecision = %d, want %d", got, want)
		}
	}
	if _, err := d.NextDecision(); err != io.EOF {
		t.Fatalf("NextDecision at EOF = %v, want io.EOF", err)
	}
}

func TestDecoderNextDecisionRejectsMalformedLine(t *testing.T) {
	d := NewDecoder(strings.NewReader("not-a-number\n"))
	if _, err := d.NextDecision(); err == nil {
		t.Fatal("expected an error for a non-integer decision line")
	}
}

func TestDecoderNextFileName(t *testing.T) {
	d := NewDecoder(strings.NewReader("instances/foo.qdimacs\n"))
	got, err := d.NextFileName()
	if err != nil {
		t.Fatalf("NextFileName: %v", err)
	}
	if want := "instances/foo.qdimacs"; got != want {
		t.Fatalf("NextFileName = %q, want %q", got, want)
	}
}

func TestRewardsAccumulatesPerDecisionIndex(t *testing.T) {
	var r Rewards
	idx0 := r.StartDecision()
	idx1 := r.StartDecision()
	r.Add(idx0, 1.0)
	r.AddRuntimePenalty(idx0, 0.5)
	r.Add(idx1, 1.0)

	values := r.Values()
	if len(values) != 2 {
		t.Fatalf("Values() len = %d, want 2", len(values))
	}
	if got, want := values[idx0], 1.0-0.05; got != want {
		t.Fatalf("values[0] = %v, want %v", got, want)
	}
	if got, want := values[idx1], 1.0; got != want {
		t.Fatalf("values[1] = %v, want %v", got, want)
	}
}
