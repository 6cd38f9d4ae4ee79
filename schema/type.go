package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bjaus/eventbus/codegen"
)

// Property is one stored slot of a synthesized type.
type Property struct {
	Name       string
	Type       reflect.Type
	Index      int // constructor position; -1 for extras
	Positional bool
	Mutable    bool
	NonNull    bool
	Message    string // non-null failure text with $field already replaced
}

func (p Property) nillable() bool {
	switch p.Type.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// accept reports why v cannot be stored in p, or "" when it can.
func (p Property) accept(v any) string {
	if v == nil {
		if p.NonNull {
			return p.Message
		}
		if !p.nillable() {
			return fmt.Sprintf("nil is not a valid %s", p.Type)
		}
		return ""
	}
	if t := reflect.TypeOf(v); !t.AssignableTo(p.Type) {
		return fmt.Sprintf("expected %s, found %s", p.Type, t)
	}
	if p.NonNull && p.nillable() && reflect.ValueOf(v).IsNil() {
		return p.Message
	}
	return ""
}

// Type is the synthesized realization of a Schema.
type Type struct {
	schema     *Schema
	name       string
	handle     codegen.TypeHandle
	backend    codegen.Backend
	properties []Property // positional in index order, then extras
	positional int
	slots      map[string]int
	routing    reflect.Type
	parents    []*Type
	factory    *Factory
}

// Schema returns the schema this type realizes.
func (t *Type) Schema() *Schema { return t.schema }

// Name returns the schema name.
func (t *Type) Name() string { return t.name }

// GeneratedName returns the name the type was defined under in its backend.
func (t *Type) GeneratedName() string { return t.handle.Name() }

// Handle returns the backend type handle.
func (t *Type) Handle() codegen.TypeHandle { return t.handle }

// Properties returns all properties, positional ones first in index order.
func (t *Type) Properties() []Property {
	out := make([]Property, len(t.properties))
	copy(out, t.properties)
	return out
}

// Positional returns the constructor properties in index order.
func (t *Type) Positional() []Property {
	out := make([]Property, t.positional)
	copy(out, t.properties[:t.positional])
	return out
}

// Property looks up a property by name.
func (t *Type) Property(name string) (Property, bool) {
	i, ok := t.slots[name]
	if !ok {
		return Property{}, false
	}
	return t.properties[i], true
}

// RoutingType is the unique reflect.Type events of this type are routed by.
func (t *Type) RoutingType() reflect.Type { return t.routing }

// Parents returns the synthesized types of the parent schemas.
func (t *Type) Parents() []*Type {
	out := make([]*Type, len(t.parents))
	copy(out, t.parents)
	return out
}

// SuperTypes returns the routing types of every ancestor, nearest first,
// without duplicates.
func (t *Type) SuperTypes() []reflect.Type {
	var out []reflect.Type
	seen := make(map[*Type]bool)
	queue := append([]*Type(nil), t.parents...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p.routing)
		queue = append(queue, p.parents...)
	}
	return out
}

// Factory returns the positional constructor for the type.
func (t *Type) Factory() *Factory { return t.factory }

func (t *Type) String() string {
	names := make([]string, len(t.properties))
	for i, p := range t.properties {
		names[i] = p.Name
	}
	return fmt.Sprintf("%s(%s)", t.name, strings.Join(names, ", "))
}

func (t *Type) sameParents(o *Type) bool {
	if len(t.parents) != len(o.parents) {
		return false
	}
	for i := range t.parents {
		if t.parents[i] != o.parents[i] {
			return false
		}
	}
	return true
}

// routingType builds a zero-size struct type whose identity is unique to
// name.
func routingType(name string) reflect.Type {
	return reflect.StructOf([]reflect.StructField{{
		Name: "Event",
		Type: reflect.TypeFor[struct{}](),
		Tag:  reflect.StructTag(fmt.Sprintf("schema:%q", name)),
	}})
}
