package codegen

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrAlreadyDefined is the panic value (wrapped) raised when a name is
	// defined twice in the same backend.
	ErrAlreadyDefined = errors.New("type already defined")

	// ErrUnknownHandle is returned when a handle was not produced by the
	// backend it is passed to.
	ErrUnknownHandle = errors.New("unknown type handle")

	// ErrInvalidSpec is returned when a TypeSpec cannot be realized.
	ErrInvalidSpec = errors.New("invalid type spec")
)

// Backend materializes value types at runtime.
//
// Implementations must be comparable (pointer receivers are the norm) because
// callers key process-wide caches by Backend.
type Backend interface {
	// DefineType realizes spec under name. Each name may be defined at most
	// once; a second definition panics with an error wrapping ErrAlreadyDefined.
	DefineType(name string, spec TypeSpec) (TypeHandle, error)

	// Instantiate creates a new instance of the type behind h. Arguments are
	// assigned to the leading fields in order; remaining fields keep their zero
	// value. The result is a pointer to a struct with the defined layout.
	Instantiate(h TypeHandle, args []any) (any, error)
}

// Initializer is implemented by backends that need a startup step. A failing
// Init makes the backend unusable for generated invocation.
type Initializer interface {
	Init() error
}

// TypeSpec describes the layout of a synthesized type.
type TypeSpec struct {
	Fields []Field
}

// Field is one slot of a TypeSpec.
type Field struct {
	Name string
	Type reflect.Type
}

// TypeHandle identifies a type defined by a Backend.
type TypeHandle interface {
	Name() string
}

// StructHandle is the TypeHandle produced by the reflect backend.
type StructHandle struct {
	name  string
	typ   reflect.Type
	owner *ReflectBackend
}

// Name returns the name the type was defined under.
func (h *StructHandle) Name() string { return h.name }

// Type returns the synthesized struct type.
func (h *StructHandle) Type() reflect.Type { return h.typ }

// ReflectBackend synthesizes struct layouts with reflect.StructOf. Its
// namespace is the backend value itself.
type ReflectBackend struct {
	mu    sync.Mutex
	types map[string]*StructHandle
}

var defaultBackend = Reflect()

// Default returns the process-wide reflect backend.
func Default() *ReflectBackend { return defaultBackend }

// Reflect returns a new reflect backend with an empty namespace.
func Reflect() *ReflectBackend {
	return &ReflectBackend{types: make(map[string]*StructHandle)}
}

// DefineType implements Backend.
func (b *ReflectBackend) DefineType(name string, spec TypeSpec) (TypeHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.types[name]; ok {
		panic(fmt.Errorf("%w: %s has already been defined", ErrAlreadyDefined, name))
	}

	fields := make([]reflect.StructField, 0, len(spec.Fields)+1)
	seen := make(map[string]bool, len(spec.Fields))
	for i, f := range spec.Fields {
		if f.Type == nil {
			return nil, fmt.Errorf("%w: field %d (%s) has no type", ErrInvalidSpec, i, f.Name)
		}
		exported := FieldName(f.Name)
		if exported == "" || exported == MarkerField || seen[exported] {
			return nil, fmt.Errorf("%w: field %d has unusable name %q", ErrInvalidSpec, i, f.Name)
		}
		seen[exported] = true
		fields = append(fields, reflect.StructField{Name: exported, Type: f.Type})
	}
	// The tagged marker keeps layouts with identical fields distinct.
	fields = append(fields, reflect.StructField{
		Name: MarkerField,
		Type: reflect.TypeFor[struct{}](),
		Tag:  reflect.StructTag(fmt.Sprintf("codegen:%q", name)),
	})

	typ, err := structOf(fields)
	if err != nil {
		return nil, err
	}

	h := &StructHandle{name: name, typ: typ, owner: b}
	b.types[name] = h
	return h, nil
}

// Instantiate implements Backend.
func (b *ReflectBackend) Instantiate(h TypeHandle, args []any) (any, error) {
	sh, ok := h.(*StructHandle)
	if !ok || sh.owner != b {
		return nil, fmt.Errorf("%w: %v", ErrUnknownHandle, h)
	}
	if len(args) > sh.typ.NumField()-1 {
		return nil, fmt.Errorf("%s takes at most %d values, got %d", sh.name, sh.typ.NumField()-1, len(args))
	}

	ptr := reflect.New(sh.typ)
	v := ptr.Elem()
	for i, a := range args {
		if a == nil {
			continue
		}
		av := reflect.ValueOf(a)
		fv := v.Field(i)
		if !av.Type().AssignableTo(fv.Type()) {
			return nil, fmt.Errorf("%s.%s: cannot assign %s to %s",
				sh.name, sh.typ.Field(i).Name, av.Type(), fv.Type())
		}
		fv.Set(av)
	}
	return ptr.Interface(), nil
}

// Lookup returns the handle defined under name, if any.
func (b *ReflectBackend) Lookup(name string) (TypeHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.types[name]
	return h, ok
}

// Len returns the number of types defined in this backend.
func (b *ReflectBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.types)
}

func structOf(fields []reflect.StructField) (typ reflect.Type, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidSpec, r)
		}
	}()
	return reflect.StructOf(fields), nil
}

// MarkerField is the struct field DefineType appends to every layout.
// No spec field may map onto it.
const MarkerField = "XDefinedAs"

// FieldName maps a property name onto the exported struct field name that
// DefineType gives it.
func FieldName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	switch {
	case r == utf8.RuneError:
		return ""
	case unicode.IsUpper(r):
		return name
	case unicode.IsLetter(r):
		return string(unicode.ToUpper(r)) + name[size:]
	default:
		return "X" + name
	}
}
