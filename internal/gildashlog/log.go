// Package gildashlog wraps the standard library logger with the leveled
// call sites the rest of the module uses, matching the plain log.Printf
// idiom the core is built around.
package gildashlog

import (
	"log"
	"os"
)

// Logger is the narrow logging interface the Context accepts as an
// injection point; callers may supply their own implementation.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type stdLogger struct {
	l *log.Logger
}

// New builds a Logger writing to stderr with the standard log flags, the
// same destination and flag set the teacher's CLI uses.
func New() Logger {
	return &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags)}
}

func (s *stdLogger) Debugf(format string, args ...any) {
	s.l.Printf("DEBUG "+format, args...)
}

func (s *stdLogger) Warnf(format string, args ...any) {
	s.l.Printf("WARN "+format, args...)
}

func (s *stdLogger) Errorf(format string, args ...any) {
	s.l.Printf("ERROR "+format, args...)
}

// Nop discards everything; useful for tests.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
