package schema

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"
)

// DefaultNonNullMessage is used when RequireNonNull is given no message.
// "$field" is replaced by the property name.
const DefaultNonNullMessage = "$field cannot be null!"

// TypeOf is shorthand for reflect.TypeFor.
func TypeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

// Kind tells a reader accessor from a mutator.
type Kind int

const (
	Getter Kind = iota
	Setter
)

func (k Kind) String() string {
	if k == Setter {
		return "setter"
	}
	return "getter"
}

// Accessor describes one method of an event schema. Getters declare stored
// properties; setters make them mutable.
type Accessor struct {
	Name    string
	Kind    Kind
	Type    reflect.Type // property type; nil models a void accessor
	Index   int
	Indexed bool
	Extra   bool
	NonNull bool
	Message string
}

// Option adjusts an Accessor.
type Option func(*Accessor)

// At binds a getter to a constructor position.
func At(index int) Option {
	return func(a *Accessor) {
		a.Index = index
		a.Indexed = true
	}
}

// AsExtra declares a getter for a property that is not part of the
// constructor. Extra properties are always mutable.
func AsExtra() Option {
	return func(a *Accessor) { a.Extra = true }
}

// RequireNonNull rejects nil values for the property. An empty message means
// DefaultNonNullMessage.
func RequireNonNull(message string) Option {
	return func(a *Accessor) {
		a.NonNull = true
		a.Message = message
	}
}

// Get declares a getter.
func Get(name string, t reflect.Type, opts ...Option) Accessor {
	return newAccessor(name, Getter, t, opts)
}

// Set declares a setter taking a value of type t.
func Set(name string, t reflect.Type, opts ...Option) Accessor {
	return newAccessor(name, Setter, t, opts)
}

func newAccessor(name string, kind Kind, t reflect.Type, opts []Option) Accessor {
	a := Accessor{Name: name, Kind: kind, Type: t}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func (a Accessor) apply(s *Schema) { s.accessors = append(s.accessors, a) }

// Element is an argument to Define.
type Element interface {
	apply(*Schema)
}

type extends []*Schema

func (e extends) apply(s *Schema) { s.parents = append(s.parents, e...) }

// Extends declares parent schemas. Their accessors are inherited and their
// synthesized types become supertypes of the child.
func Extends(parents ...*Schema) Element { return extends(parents) }

var schemaIDs atomic.Uint64

// Schema is an event interface description: a name, accessors and parents.
// Identity is pointer identity; synthesizers cache by *Schema.
type Schema struct {
	id        uint64
	name      string
	accessors []Accessor
	parents   []*Schema
	err       string // deferred construction problem, reported by Describe
}

// Define builds a schema from accessors and Extends elements.
func Define(name string, elems ...Element) *Schema {
	s := &Schema{id: schemaIDs.Add(1), name: name}
	for _, e := range elems {
		if e != nil {
			e.apply(s)
		}
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Accessors returns the schema's own accessors.
func (s *Schema) Accessors() []Accessor {
	out := make([]Accessor, len(s.accessors))
	copy(out, s.accessors)
	return out
}

// Parents returns the declared parent schemas.
func (s *Schema) Parents() []*Schema {
	out := make([]*Schema, len(s.parents))
	copy(out, s.parents)
	return out
}

func (s *Schema) String() string { return s.name }

func (s *Schema) key() string { return strconv.FormatUint(s.id, 10) }

// generatedName is unique per schema within a process.
func (s *Schema) generatedName() string {
	return "gen." + s.name + "$" + s.key()
}

// Canonical maps an accessor name to its property name: getFoo, setFoo and
// isFoo become foo. Other names are used unchanged.
func Canonical(name string) string {
	for _, prefix := range []string{"get", "set", "is"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(rest)
		if unicode.IsUpper(r) {
			return string(unicode.ToLower(r)) + rest[size:]
		}
	}
	return name
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
