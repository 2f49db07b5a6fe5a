// Package logger provides the debug/info/warn/error hooks the DQ controller
// and its collaborators use to surface what would otherwise be silent state
// transitions (probe sent, query terminated, guidance requested).
package logger

import "log"

// DebugLogger lets a client attach hooks for controller events. Implementations
// must be safe to call from the single controller goroutine only; the
// controller never logs concurrently with itself.
type DebugLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	// Warnf marks a condition that is handled but worth a human's attention,
	// e.g. a MUID collision at registration or an orphaned query at shutdown.
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NullLogger is the default DebugLogger: everything goes to the standard
// logger with a level prefix. Callers that want silence should supply their
// own no-op implementation instead of relying on this one.
type NullLogger struct{}

func (l *NullLogger) Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}

func (l *NullLogger) Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

func (l *NullLogger) Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}

func (l *NullLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
