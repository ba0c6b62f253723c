package nact

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMethodNotFound is returned (wrapped in a *ConfigError) when
	// the method named by HandlerMetadata does not exist.
	ErrMethodNotFound = errors.New("handler method not found")
	// ErrSignature is returned (wrapped in a *ConfigError) when the
	// method exists but its parameters or returns do not match.
	ErrSignature = errors.New("handler signature mismatch")
	// ErrUnknownController is returned when the declaring type has
	// not been registered with the App.
	ErrUnknownController = errors.New("controller type not registered")
	// ErrNoResolver means no string resolver exists for a type
	ErrNoResolver = errors.New("no resolver for type")
	// ErrNoBinder means a named binder was referenced but not registered
	ErrNoBinder = errors.New("no binder registered")
	// ErrFieldInjection means context field injection cannot be done
	ErrFieldInjection = errors.New("cannot inject context into field")
	// ErrConstructorInjection means the controller constructor does
	// not take a Context
	ErrConstructorInjection = errors.New("controller constructor does not take a context")
	// ErrDestroyed is returned by Handle after Destroy
	ErrDestroyed = errors.New("invoker has been destroyed")
)

// ConfigError is returned when an invoker cannot be constructed.  These
// errors are meant to abort application startup.
type ConfigError struct {
	Handler string
	err     error
	details string
}

func configError(handler string, err error, details string) *ConfigError {
	return &ConfigError{
		Handler: handler,
		err:     err,
		details: details,
	}
}

func (e *ConfigError) Error() string {
	return "configure " + e.Handler + ": " + e.err.Error()
}

func (e *ConfigError) Unwrap() error { return e.err }
func (e *ConfigError) Cause() error  { return e.err }

// BindError wraps any failure that happened while building the
// argument list for a handler.  It is a per-request failure.
type BindError struct {
	Param string
	Index int
	err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind parameter %d (%s): %s", e.Index, e.Param, e.err)
}

func (e *BindError) Unwrap() error { return e.err }
func (e *BindError) Cause() error  { return e.err }

// UnexpectedError wraps an error returned by, or a panic raised by,
// a handler method.
type UnexpectedError struct {
	Handler string
	err     error
	// Recovered is the value passed to panic, if this came from a panic
	Recovered interface{}
	// Stack is set when this came from a panic
	Stack string
}

func (e *UnexpectedError) Error() string {
	return e.Handler + ": " + e.err.Error()
}

func (e *UnexpectedError) Unwrap() error { return e.err }
func (e *UnexpectedError) Cause() error  { return e.err }

// DetailedError transforms errors into strings.  If the error is
// a *ConfigError then extra detail about the mismatch is included.
func DetailedError(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) && ce.details != "" {
		return err.Error() + "\n\n" + ce.details
	}
	return err.Error()
}

type haltError struct {
	result Result
}

func (h haltError) Error() string {
	return fmt.Sprintf("halt with status %d", h.result.StatusCode())
}

// Halt wraps a Result so that it can be returned as an error from
// a handler.  The invoker treats this as the chosen response for the
// request rather than as a failure.
func Halt(result Result) error {
	return haltError{result: result}
}

// HaltResult returns the Result from a Halt() error, even if the
// halt error has been wrapped.
func HaltResult(err error) (Result, bool) {
	var h haltError
	if errors.As(err, &h) {
		return h.result, true
	}
	return nil, false
}
