package observability

import "runtime/debug"

// RecoverPanic recovers from a panic and logs it with the stack trace.
// Call it in a defer around long-lived background goroutines; a panic in the
// registration runner must not take the serving process down with it.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
