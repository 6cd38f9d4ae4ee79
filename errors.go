package eventbus

import (
	"errors"
	"fmt"
)

var (
	// ErrNilEvent is returned when nil is published.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNilListener is returned when nil is registered.
	ErrNilListener = errors.New("listener cannot be nil")

	// ErrRegistration classifies *RegistrationError.
	ErrRegistration = errors.New("invalid listener")

	// ErrUnsupported classifies *UnsupportedOperationError.
	ErrUnsupported = errors.New("operation not supported")

	// ErrHandlerPanic matches a *HandlerError caused by a panic.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrQueueFull is returned by Pool.Execute when the queue is at capacity.
	ErrQueueFull = errors.New("executor queue full")

	// ErrPoolStopped is returned by Pool.Execute when the pool is not running.
	ErrPoolStopped = errors.New("executor pool not running")
)

// RegistrationError reports a listener member that cannot be subscribed.
// Register returns every problem found in a source, combined.
type RegistrationError struct {
	Source string
	Member string
	Reason string
}

func (e *RegistrationError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("register %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("register %s: %s %s", e.Source, e.Member, e.Reason)
}

// Is reports whether target is ErrRegistration.
func (e *RegistrationError) Is(target error) bool { return target == ErrRegistration }

// UnsupportedOperationError reports an operation the bus was not configured
// for.
type UnsupportedOperationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *UnsupportedOperationError) Error() string {
	msg := e.Op + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedOperationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupported }

// HandlerError is what the exception handler receives when a subscription
// fails. Err is the returned error; for panics Err is nil and Panic and Stack
// are set.
type HandlerError struct {
	Subscription *Subscription
	Event        any
	Err          error
	Panic        any
	Stack        []byte
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s panicked: %v", e.Subscription, e.Panic)
	}
	return fmt.Sprintf("%s failed: %v", e.Subscription, e.Err)
}

func (e *HandlerError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// Is reports whether target is ErrHandlerPanic and the handler panicked.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerPanic && e.Panic != nil
}
