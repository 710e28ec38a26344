package log

import "sync/atomic"

var (
	installed atomic.Pointer[Logger]
	silent    = Discard()
)

// SetDefaultLogger installs the process-wide logger used by components
// built without one. Passing nil restores the silent default.
func SetDefaultLogger(logger *Logger) {
	installed.Store(logger)
}

// DefaultLogger returns the installed logger. Until a command installs
// one, log output is discarded.
func DefaultLogger() *Logger {
	if l := installed.Load(); l != nil {
		return l
	}
	return silent
}

// Component returns the default logger tagged with a component name.
func Component(name string) *Logger {
	return DefaultLogger().With("component", name)
}
