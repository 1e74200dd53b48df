// Package aiger emits a SAT witness certificate for a solved formula.
// Rather than encoding full Skolem functions as an AIGER circuit, it
// renders the solved-case cubes the driver retains as a QDIMACS-shaped
// certificate: a comment header followed by one clause line per case,
// in closure order. A downstream checker can confirm the cases' cubes
// partition the universal assignment space without needing a full
// Skolem-function witness.
package aiger

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCertificate writes the certificate for a SAT result over a
// formula with numVars variables, given the cubes accumulated in
// driver.Solver.SolvedCases (one blocking clause per closed case, in
// the order cases were closed). Callers only invoke this once Solve has
// returned SAT; a certificate is meaningless for UNSAT/unknown, which
// exit with codes 20/30 and no certificate.
func WriteCertificate(w io.Writer, numVars int, cases [][]int) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "c SAT\nc vars %d\nc cases %d\n", numVars, len(cases)); err != nil {
		return err
	}
	for i, cube := range cases {
		if _, err := fmt.Fprintf(bw, "c case %d\n", i); err != nil {
			return err
		}
		parts := make([]string, 0, len(cube)+1)
		for _, l := range cube {
			parts = append(parts, strconv.Itoa(l))
		}
		parts = append(parts, "0")
		if _, err := fmt.Fprintln(bw, strings.Join(parts, " ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
