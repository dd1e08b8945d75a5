// Package logging builds the per-subsystem loggers used across the
// module: one *log.Logger per component, a "<component>: " prefix,
// log.LstdFlags.
package logging

import (
	"log"
	"os"
)

// New returns a *log.Logger for component, writing to stderr.
func New(component string) *log.Logger {
	return log.New(os.Stderr, component+": ", log.LstdFlags)
}

// Level gates debug-only output behind a boolean toggle.
type Level struct {
	Debug   bool
	Verbose bool
}

// Debugf logs only when l.Debug is set.
func (l Level) Debugf(logger *log.Logger, format string, args ...any) {
	if l.Debug {
		logger.Printf(format, args...)
	}
}
