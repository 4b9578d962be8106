// Package clog is a thin leveled wrapper over the standard log package,
// using the bracketed-tag convention ("[WARN] ...", "[WS] ...") used
// throughout this codebase's services.
package clog

import "log"

// Logger tags every line with a stage name, e.g. "[cpsat] solved cluster c3".
type Logger struct {
	stage string
}

// New returns a Logger that prefixes every line with [stage].
func New(stage string) Logger {
	return Logger{stage: stage}
}

func (l Logger) Info(format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{l.stage}, args...)...)
}

func (l Logger) Warn(format string, args ...any) {
	log.Printf("[%s][WARN] "+format, append([]any{l.stage}, args...)...)
}

func (l Logger) Error(format string, args ...any) {
	log.Printf("[%s][ERROR] "+format, append([]any{l.stage}, args...)...)
}

// With returns a Logger scoped to a sub-stage, e.g. cpsat.With("cluster-3").
func (l Logger) With(substage string) Logger {
	return Logger{stage: l.stage + "." + substage}
}
