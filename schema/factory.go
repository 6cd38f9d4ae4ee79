package schema

import (
	"fmt"
)

// Factory constructs events of one synthesized type from positional
// arguments.
type Factory struct {
	typ *Type
}

// Type returns the type the factory builds.
func (f *Factory) Type() *Type { return f.typ }

// Arity returns the number of positional arguments Build expects.
func (f *Factory) Arity() int { return f.typ.positional }

// Build creates an event. Arguments are checked against the positional
// properties before the backend is asked for an instance.
func (f *Factory) Build(args ...any) (*Event, error) {
	t := f.typ
	if len(args) != t.positional {
		return nil, &ArgumentError{
			Type:   t.name,
			Reason: fmt.Sprintf("invalid argument count: expected %d, found %d", t.positional, len(args)),
		}
	}
	for i, p := range t.properties[:t.positional] {
		if reason := p.accept(args[i]); reason != "" {
			return nil, &ArgumentError{Type: t.name, Property: p.Name, Reason: reason}
		}
	}

	inst, err := instantiate(t, args)
	if err != nil {
		return nil, &InstantiationError{Type: t.name, Err: err}
	}
	e, err := wrap(t, inst)
	if err != nil {
		return nil, &InstantiationError{Type: t.name, Err: err}
	}
	return e, nil
}

func instantiate(t *Type, args []any) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panicked: %v", r)
		}
	}()
	return t.backend.Instantiate(t.handle, args)
}
