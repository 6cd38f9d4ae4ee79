package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bjaus/eventbus/codegen"
)

var synthesizers sync.Map // codegen.Backend -> *Synthesizer

// Synthesizer turns schemas into synthesized types on one backend and caches
// the result per schema for the life of the process.
type Synthesizer struct {
	backend codegen.Backend
	types   sync.Map // *Schema -> *Type
	group   singleflight.Group
}

// For returns the process-wide synthesizer for backend.
func For(backend codegen.Backend) *Synthesizer {
	if z, ok := synthesizers.Load(backend); ok {
		return z.(*Synthesizer)
	}
	z, _ := synthesizers.LoadOrStore(backend, &Synthesizer{backend: backend})
	return z.(*Synthesizer)
}

// Default returns the synthesizer for codegen.Default.
func Default() *Synthesizer { return For(codegen.Default()) }

// Backend returns the backend types are defined on.
func (z *Synthesizer) Backend() codegen.Backend { return z.backend }

// Describe returns the synthesized type for s, synthesizing it on first use.
// Concurrent first calls for the same schema share one synthesis. Failures are
// not cached.
func (z *Synthesizer) Describe(s *Schema) (*Type, error) {
	if s == nil {
		return nil, &SchemaError{Schema: "<nil>", Reason: "nil schema"}
	}
	if t, ok := z.types.Load(s); ok {
		return t.(*Type), nil
	}
	return z.describe(s, nil)
}

func (z *Synthesizer) describe(s *Schema, path []*Schema) (*Type, error) {
	for _, p := range path {
		if p == s {
			return nil, &SchemaError{Schema: s.name, Reason: "schema extends itself"}
		}
	}
	if t, ok := z.types.Load(s); ok {
		return t.(*Type), nil
	}

	v, err, _ := z.group.Do(s.key(), func() (any, error) {
		if t, ok := z.types.Load(s); ok {
			return t, nil
		}
		t, err := z.synthesize(s, append(path, s))
		if err != nil {
			return nil, err
		}
		z.types.Store(s, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Type), nil
}

// Factory returns the constructor for s, synthesizing the type if needed.
func (z *Synthesizer) Factory(s *Schema) (*Factory, error) {
	t, err := z.Describe(s)
	if err != nil {
		return nil, err
	}
	return t.factory, nil
}

// Instantiate builds an event of schema s from positional arguments.
func (z *Synthesizer) Instantiate(s *Schema, args ...any) (*Event, error) {
	f, err := z.Factory(s)
	if err != nil {
		return nil, err
	}
	return f.Build(args...)
}

// InstantiateJSON builds an event of schema s, reading each positional
// property from the JSON document by name.
func (z *Synthesizer) InstantiateJSON(s *Schema, raw []byte) (*Event, error) {
	t, err := z.Describe(s)
	if err != nil {
		return nil, err
	}
	args, err := ArgsFromJSON(t, raw)
	if err != nil {
		return nil, err
	}
	return t.factory.Build(args...)
}

func (z *Synthesizer) synthesize(s *Schema, path []*Schema) (*Type, error) {
	if s.err != "" {
		return nil, &SchemaError{Schema: s.name, Reason: s.err}
	}
	if !isIdentifier(s.name) {
		return nil, &SchemaError{Schema: s.name, Reason: "name is not a valid identifier"}
	}

	parents := make([]*Type, 0, len(s.parents))
	for _, p := range s.parents {
		if p == nil {
			return nil, &SchemaError{Schema: s.name, Reason: "nil parent schema"}
		}
		pt, err := z.describe(p, path)
		if err != nil {
			return nil, err
		}
		parents = append(parents, pt)
	}

	props, positional, err := resolve(s)
	if err != nil {
		return nil, err
	}

	spec := codegen.TypeSpec{Fields: make([]codegen.Field, len(props))}
	for i, p := range props {
		spec.Fields[i] = codegen.Field{Name: p.Name, Type: p.Type}
	}
	handle, err := z.backend.DefineType(s.generatedName(), spec)
	if err != nil {
		return nil, &InstantiationError{Type: s.name, Err: err}
	}

	t := &Type{
		schema:     s,
		name:       s.name,
		handle:     handle,
		backend:    z.backend,
		properties: props,
		positional: positional,
		slots:      make(map[string]int, len(props)),
		routing:    routingType(handle.Name()),
		parents:    parents,
	}
	for i, p := range props {
		t.slots[p.Name] = i
	}
	t.factory = &Factory{typ: t}
	return t, nil
}

type draft struct {
	name   string
	getter *Accessor
	setter *Accessor
}

// inherited lists accessors with ancestors first, depth first, each schema
// visited once.
func inherited(s *Schema) []Accessor {
	var out []Accessor
	seen := make(map[*Schema]bool)
	var walk func(*Schema)
	walk = func(s *Schema) {
		if s == nil || seen[s] {
			return
		}
		seen[s] = true
		for _, p := range s.parents {
			walk(p)
		}
		out = append(out, s.accessors...)
	}
	walk(s)
	return out
}

func sameAccessor(a, b *Accessor) bool {
	return a.Type == b.Type && a.Index == b.Index && a.Indexed == b.Indexed &&
		a.Extra == b.Extra && a.NonNull == b.NonNull && a.Message == b.Message
}

func resolve(s *Schema) ([]Property, int, error) {
	fail := func(format string, args ...any) ([]Property, int, error) {
		return nil, 0, &SchemaError{Schema: s.name, Reason: fmt.Sprintf(format, args...)}
	}

	var order []string
	drafts := make(map[string]*draft)
	fields := make(map[string]string) // struct field -> property
	for _, a := range inherited(s) {
		if a.Name == "" {
			return fail("accessor without a name")
		}
		field := Canonical(a.Name)
		if !isIdentifier(field) {
			return fail("accessor %s maps to invalid property name %q", a.Name, field)
		}
		d, ok := drafts[field]
		if !ok {
			exported := codegen.FieldName(field)
			if exported == codegen.MarkerField {
				return fail("property %s is reserved", field)
			}
			if other, taken := fields[exported]; taken {
				return fail("properties %s and %s map to the same field %s", other, field, exported)
			}
			fields[exported] = field
			d = &draft{name: field}
			drafts[field] = d
			order = append(order, field)
		}

		a := a
		switch a.Kind {
		case Getter:
			if a.Type == nil {
				return fail("accessor %s returns nothing", a.Name)
			}
			if a.Extra && a.Indexed {
				return fail("extra accessor %s cannot have an index", a.Name)
			}
			if !a.Extra && !a.Indexed {
				return fail("missing index on accessor %s", a.Name)
			}
			if a.Indexed && a.Index < 0 {
				return fail("negative index %d on accessor %s", a.Index, a.Name)
			}
			if d.getter != nil {
				if sameAccessor(d.getter, &a) {
					continue
				}
				return fail("conflicting definitions of property %s", field)
			}
			d.getter = &a
		case Setter:
			if a.Type == nil {
				return fail("setter %s takes no value", a.Name)
			}
			if d.setter != nil {
				if sameAccessor(d.setter, &a) {
					continue
				}
				return fail("conflicting setters for property %s", field)
			}
			d.setter = &a
		default:
			return fail("accessor %s has unknown kind %d", a.Name, a.Kind)
		}
	}

	var positional, extras []Property
	for _, name := range order {
		d := drafts[name]
		if d.getter == nil {
			return fail("setter %s has no matching accessor", d.setter.Name)
		}
		if d.setter != nil && d.setter.Type != d.getter.Type {
			return fail("setter %s takes %s but property %s is %s", d.setter.Name, d.setter.Type, name, d.getter.Type)
		}

		p := Property{
			Name:       name,
			Type:       d.getter.Type,
			Index:      -1,
			Positional: !d.getter.Extra,
			Mutable:    d.setter != nil || d.getter.Extra,
		}
		message := ""
		switch {
		case d.setter != nil && d.setter.NonNull:
			p.NonNull, message = true, d.setter.Message
		case d.getter.NonNull:
			p.NonNull, message = true, d.getter.Message
		}
		if p.NonNull {
			if message == "" {
				message = DefaultNonNullMessage
			}
			p.Message = strings.ReplaceAll(message, "$field", name)
		}

		if p.Positional {
			p.Index = d.getter.Index
			positional = append(positional, p)
		} else {
			extras = append(extras, p)
		}
	}

	sort.SliceStable(positional, func(i, j int) bool { return positional[i].Index < positional[j].Index })
	for i, p := range positional {
		if p.Index == i {
			continue
		}
		if i > 0 && positional[i-1].Index == p.Index {
			return fail("duplicate index %d on %s and %s", p.Index, positional[i-1].Name, p.Name)
		}
		return fail("index %d is missing; positions must be contiguous from 0", i)
	}

	return append(positional, extras...), len(positional), nil
}
