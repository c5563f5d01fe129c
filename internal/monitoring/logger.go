package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Hosts embedding the stabilizer can redirect it
// into their own logging; tests can mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// verbose gates per-frame diagnostics. The frame path runs at capture rate,
// so per-frame logging is off unless a host explicitly opts in.
var verbose bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose enables or disables per-frame diagnostics.
func SetVerbose(v bool) {
	verbose = v
}

// Debugf logs only when per-frame diagnostics are enabled.
func Debugf(format string, v ...interface{}) {
	if verbose {
		Logf(format, v...)
	}
}
