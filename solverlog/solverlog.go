// Package solverlog is a thin leveled-logging facade over hclog, so
// call sites across the solver core depend on this package's small
// interface rather than hclog directly.
package solverlog

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger is the subset of hclog.Logger the solver core uses.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// Named returns a descendant logger prefixed with name, e.g.
	// log.Named("cegar") for CEGAR-specific diagnostics.
	Named(name string) Logger
	// IsDebug reports whether Debug-level messages are emitted, so
	// expensive call sites (stats dumps) can skip formatting work.
	IsDebug() bool
}

type hclogLogger struct {
	hclog.Logger
}

func (l hclogLogger) Named(name string) Logger {
	return hclogLogger{l.Logger.Named(name)}
}

func (l hclogLogger) IsDebug() bool {
	return l.Logger.IsDebug()
}

// New builds a Logger writing to w at the given level. Level is one of
// "trace", "debug", "info", "warn", "error", "off" (hclog's own level
// names); an unrecognized level defaults to "info".
func New(w io.Writer, level string) Logger {
	if w == nil {
		w = os.Stderr
	}
	return hclogLogger{hclog.New(&hclog.LoggerOptions{
		Name:            "cadet",
		Output:          w,
		Level:           hclog.LevelFromString(level),
		IncludeLocation: false,
	})}
}

// Discard returns a Logger that drops everything, for library callers
// and tests that don't want solver diagnostics on stderr.
func Discard() Logger {
	return hclogLogger{hclog.NewNullLogger()}
}
