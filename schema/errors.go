package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSchema classifies *SchemaError.
	ErrInvalidSchema = errors.New("invalid event schema")

	// ErrInvalidArgument classifies *ArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInstantiation classifies *InstantiationError.
	ErrInstantiation = errors.New("instantiation failed")
)

// SchemaError reports a schema that cannot be synthesized.
type SchemaError struct {
	Schema string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Schema, e.Reason)
}

// Is reports whether target is ErrInvalidSchema.
func (e *SchemaError) Is(target error) bool { return target == ErrInvalidSchema }

// ArgumentError reports factory or mutator arguments that do not fit the
// synthesized type.
type ArgumentError struct {
	Type     string
	Property string // empty when the error concerns the argument list
	Reason   string
	Err      error
}

func (e *ArgumentError) Error() string {
	msg := e.Type
	if e.Property != "" {
		msg += "." + e.Property
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidArgument.
func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// InstantiationError reports a backend failure while defining or creating a
// synthesized type.
type InstantiationError struct {
	Type string
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiate %s: %v", e.Type, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInstantiation.
func (e *InstantiationError) Is(target error) bool { return target == ErrInstantiation }
