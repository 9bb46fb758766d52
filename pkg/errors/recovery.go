package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// PanicError is a panic recovered inside a pipeline step or a forest worker.
type PanicError struct {
	Operation  string
	PanicValue any
	StackTrace string
	// Prior is the error the function had already set when it panicked.
	Prior error
}

func NewPanicError(operation string, value any) *PanicError {
	return &PanicError{Operation: operation, PanicValue: value, StackTrace: string(debug.Stack())}
}

func (e *PanicError) Error() string {
	if e.Prior != nil {
		return fmt.Sprintf("panic in %s: %v (after: %v)", e.Operation, e.PanicValue, e.Prior)
	}
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap yields the panic value when it is an error, then Prior.
func (e *PanicError) Unwrap() []error {
	var errs []error
	if err, ok := e.PanicValue.(error); ok {
		errs = append(errs, err)
	}
	if e.Prior != nil {
		errs = append(errs, e.Prior)
	}
	return errs
}

// String appends the goroutine stack to the message.
func (e *PanicError) String() string {
	return e.Error() + "\n" + e.StackTrace
}

func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "PanicError").
		Str("operation", e.Operation).
		Interface("panic_value", e.PanicValue)
}

// Recover turns a panic into a *PanicError stored in *err. Defer it in a
// function with a named error result:
//
//	func (s *step) run() (err error) {
//		defer errors.Recover(&err, "basic_cleaning")
//		...
//	}
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	pe := NewPanicError(operation, r)
	pe.Prior = *err
	*err = pe
}

// SafeExecute calls fn, converting a panic into a *PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
