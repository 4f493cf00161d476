package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError wraps a panic value as an error
type PanicError struct {
	Value      interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverAsError recovers from a panic and stores it in *errPtr as a
// *PanicError. It must be deferred directly:
//
//	func doWork() (err error) {
//	    defer RecoverAsError(&err)
//	    // ... code that might panic
//	}
func RecoverAsError(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = newPanicError(r)
	}
}

// RecoverWithCallback recovers from a panic and passes it to callback.
// Useful when you can't use the error return pattern. It must be deferred
// directly.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		err := newPanicError(r)
		if callback != nil {
			callback(err)
		}
	}
}

func newPanicError(r interface{}) *PanicError {
	stack := string(debug.Stack())
	slog.Error("Recovered from panic", "panic", r, "stack", stack)
	return &PanicError{Value: r, StackTrace: stack}
}
