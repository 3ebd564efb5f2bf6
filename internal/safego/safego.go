package safego

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Go runs fn on a new goroutine. A panic is written to logger together with
// its stack before being re-raised, because the full-screen console hides
// anything printed to stderr.
func Go(logger logrus.FieldLogger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("stack", string(debug.Stack())).Errorf("PANIC: %v", r)
				panic(r)
			}
		}()
		fn()
	}()
}

// GoQuiet runs fn on a new goroutine and swallows any panic after logging it.
// Used for fire-and-forget work such as cue playback, which must never take
// the session down.
func GoQuiet(logger logrus.FieldLogger, fn func()) {
	go func() {
		defer Recover(logger)
		fn()
	}()
}

// Recover logs a recovered panic. It must be called directly by defer.
func Recover(logger logrus.FieldLogger) {
	if r := recover(); r != nil {
		logger.WithField("stack", string(debug.Stack())).Errorf("recovered panic: %v", r)
	}
}
