package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Event is an instance of a synthesized type.
//
// Events are routed by their type's RoutingType and match subscriptions for
// any ancestor schema. Mutators are not synchronized; an event shared across
// goroutines must not be modified concurrently.
type Event struct {
	typ   *Type
	inst  any
	value reflect.Value
}

func wrap(t *Type, inst any) (*Event, error) {
	v := reflect.ValueOf(inst)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || v.NumField() < len(t.properties) {
		return nil, fmt.Errorf("backend returned %T, not an instance of %s", inst, t.handle.Name())
	}
	if !v.CanSet() {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}
	return &Event{typ: t, inst: inst, value: v}, nil
}

// Type returns the synthesized type.
func (e *Event) Type() *Type { return e.typ }

// Schema returns the schema the event was built from.
func (e *Event) Schema() *Schema { return e.typ.schema }

// Value returns the backend instance behind the event.
func (e *Event) Value() any { return e.inst }

// EventType returns the routing type of the event.
func (e *Event) EventType() reflect.Type { return e.typ.routing }

// SuperTypes returns the routing types of every ancestor schema.
func (e *Event) SuperTypes() []reflect.Type { return e.typ.SuperTypes() }

// Get returns the value stored for a property.
func (e *Event) Get(name string) (any, bool) {
	i, ok := e.typ.slots[name]
	if !ok {
		return nil, false
	}
	return e.value.Field(i).Interface(), true
}

// MustGet is Get for properties known to exist.
func (e *Event) MustGet(name string) any {
	v, ok := e.Get(name)
	if !ok {
		panic(fmt.Sprintf("%s has no property %s", e.typ.name, name))
	}
	return v
}

// Set stores a value for a mutable property, enforcing its non-null
// precondition.
func (e *Event) Set(name string, value any) error {
	i, ok := e.typ.slots[name]
	if !ok {
		return &ArgumentError{Type: e.typ.name, Property: name, Reason: "no such property"}
	}
	p := e.typ.properties[i]
	if !p.Mutable {
		return &ArgumentError{Type: e.typ.name, Property: name, Reason: "property is not mutable"}
	}
	if reason := p.accept(value); reason != "" {
		return &ArgumentError{Type: e.typ.name, Property: name, Reason: reason}
	}

	f := e.value.Field(i)
	if value == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	f.Set(reflect.ValueOf(value))
	return nil
}

// Fields returns the positional values in index order.
func (e *Event) Fields() []any {
	out := make([]any, e.typ.positional)
	for i := range out {
		out[i] = e.value.Field(i).Interface()
	}
	return out
}

// Equal reports whether other is an event of the same synthesized type whose
// positional values are deeply equal. Extra properties do not take part.
func (e *Event) Equal(other any) bool {
	o, ok := other.(*Event)
	if !ok || e == nil || o == nil {
		return e == o && ok
	}
	if e == o {
		return true
	}
	if e.typ != o.typ || !e.typ.sameParents(o.typ) {
		return false
	}
	for i := 0; i < e.typ.positional; i++ {
		if !reflect.DeepEqual(e.value.Field(i).Interface(), o.value.Field(i).Interface()) {
			return false
		}
	}
	return true
}

// Hash combines the positional values as h = 31*h + hash(field), starting
// from 1. Equal events hash equally.
func (e *Event) Hash() uint64 {
	h := uint64(1)
	for i := 0; i < e.typ.positional; i++ {
		h = 31*h + hashValue(e.value.Field(i))
	}
	return h
}

// String renders the event as Name{a=1, b=[x, y]} over its positional
// properties.
func (e *Event) String() string {
	var b strings.Builder
	b.WriteString(e.typ.name)
	b.WriteByte('{')
	for i, p := range e.typ.properties[:e.typ.positional] {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteByte('=')
		writeFormatted(&b, e.value.Field(i))
	}
	b.WriteByte('}')
	return b.String()
}

func writeFormatted(b *strings.Builder, v reflect.Value) {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			b.WriteString("<nil>")
			return
		}
		writeFormatted(b, v.Elem())
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan:
		if v.IsNil() {
			b.WriteString("<nil>")
			return
		}
		fmt.Fprint(b, v.Interface())
	case reflect.Slice, reflect.Array:
		b.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			writeFormatted(b, v.Index(i))
		}
		b.WriteByte(']')
	default:
		fmt.Fprint(b, v.Interface())
	}
}
