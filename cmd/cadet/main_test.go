package main

import (
	"strings"
	"testing"

	"github.com/kestrelqbf/cadet/solverlog"
)

func TestRunOnceReportsSATExitCode(t *testing.T) {
	input := "p cnf 2 2\na 1 0\ne 2 0\n1 2 0\n-1 2 0\n"
	var stdout, stderr strings.Builder
	a := cliArgs{}
	code := runOnce(a, strings.NewReader(input), &stdout, &stderr, solverlog.Discard())
	if code != exitSAT {
		t.Fatalf("runOnce exit code = %d, want %d (stderr: %s)", code, exitSAT, stderr.String())
	}
	if got := stdout.String(); !strings.HasPrefix(got, "SAT") {
		t.Fatalf("stdout = %q, want it to start with SAT", got)
	}
}

func TestRunOnceReportsUNSATExitCode(t *testing.T) {
	input := "p cnf 1 2\ne 1 0\n1 0\n-1 0\n"
	var stdout, stderr strings.Builder
	a := cliArgs{}
	code := runOnce(a, strings.NewReader(input), &stdout, &stderr, solverlog.Discard())
	if code != exitUNSAT {
		t.Fatalf("runOnce exit code = %d, want %d (stderr: %s)", code, exitUNSAT, stderr.String())
	}
	if got := stdout.String(); !strings.HasPrefix(got, "UNSAT") {
		t.Fatalf("stdout = %q, want it to start with UNSAT", got)
	}
}

func TestRunOnceReportsMalformedInputAsError(t *testing.T) {
	var stdout, stderr strings.Builder
	a := cliArgs{}
	code := runOnce(a, strings.NewReader("not qdimacs at all"), &stdout, &stderr, solverlog.Discard())
	if code != exitError {
		t.Fatalf("runOnce exit code = %d, want %d", code, exitError)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected a diagnostic on stderr for malformed input")
	}
}

func TestRunOnceEmitsQDIMACSCertificateOnSAT(t *testing.T) {
	input := "p cnf 2 2\na 1 0\ne 2 0\n1 2 0\n-1 2 0\n"
	var stdout, stderr strings.Builder
	a := cliArgs{QDIMACSOutput: true}
	code := runOnce(a, strings.NewReader(input), &stdout, &stderr, solverlog.Discard())
	if code != exitSAT {
		t.Fatalf("runOnce exit code = %d, want %d (stderr: %s)", code, exitSAT, stderr.String())
	}
	if got := stdout.String(); !strings.Contains(got, "c SAT") {
		t.Fatalf("stdout = %q, want it to contain the certificate header", got)
	}
}

func TestConfigFromArgsAppliesFlags(t *testing.T) {
	a := cliArgs{Seed: 7, NoCaseSplits: true, NoCegar: true, FunctionalSynthesis: true, QDIMACSOutput: true}
	cfg := configFromArgs(a)
	if cfg.Seed != 7 {
		t.Fatalf("Seed = %d, want 7", cfg.Seed)
	}
	if cfg.CaseSplits {
		t.Fatal("expected CaseSplits false")
	}
	if cfg.Cegar {
		t.Fatal("expected Cegar false")
	}
	if !cfg.FunctionalSynthesis {
		t.Fatal("expected FunctionalSynthesis true")
	}
	if !cfg.CertifySAT {
		t.Fatal("expected CertifySAT true when QDIMACSOutput is set")
	}
}
