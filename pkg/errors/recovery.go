package errors

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a panic recovered from a model while it was being built,
// fitted or scored. GridSearchCV records it as the trial's error so one bad
// configuration does not stop the search.
type PanicError struct {
	PanicValue interface{}
	// StackTrace starts at the frame that panicked.
	StackTrace string
	Operation  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String includes the stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("%s\nStack trace:\n%s", e.Error(), e.StackTrace)
}

// Unwrap exposes a panic value that is itself an error, e.g. panic(ErrNotFitted).
func (e *PanicError) Unwrap() error {
	if err, ok := e.PanicValue.(error); ok {
		return err
	}
	return nil
}

// MarshalZerologObject adds the panic details to a zerolog event.
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("panic_value", fmt.Sprint(e.PanicValue)).
		Str("type", "PanicError")
}

// NewPanicError captures the current goroutine's stack. Call it from the
// deferred function that recovered.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: trimPanicStack(string(debug.Stack())),
		Operation:  operation,
	}
}

// trimPanicStack drops the recovery frames above the "panic(" line.
// The goroutine header is kept.
func trimPanicStack(stack string) string {
	lines := strings.Split(stack, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "panic(") && i+2 < len(lines) {
			return lines[0] + "\n" + strings.Join(lines[i+2:], "\n")
		}
	}
	return stack
}

// Recover converts a panic into *err. Use it with defer:
//
//	func (t *trial) run() (err error) {
//	    defer Recover(&err, "fit")
//	    ...
//	}
//
// An error already set on *err stays primary; the PanicError is attached as a
// secondary error so its stack survives in %+v output.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	pe := NewPanicError(operation, r)
	if *err != nil {
		*err = errors.WithSecondaryError(Wrapf(*err, "panic in %s: %v", operation, r), pe)
		return
	}
	*err = pe
}

// SafeExecute runs fn and returns its error, or a PanicError if it panicked.
//
//	err := SafeExecute("refit", func() error {
//	    return clf.Fit(X, y)
//	})
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
