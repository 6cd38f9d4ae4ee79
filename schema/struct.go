package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var templates sync.Map // reflect.Type -> *Schema

// Of derives a schema from the tagged struct template T. The same T always
// yields the same *Schema.
//
// Every exported field becomes a property named after the field with its
// first letter lowered. Tags:
//
//	ID    string `event:"0"`                      // positional, immutable
//	Name  string `event:"1,mutable"`              // positional with setter
//	Owner *User  `event:"2,nonnull"`              // nil rejected
//	Note  string `event:"extra"`                  // settable, not positional
//	Tags  []string `event:"3,mutable,nonnull=$field is required"`
//	Skip  int    `event:"-"`
//
// Embedded structs become parent schemas. Tag problems surface as a
// *SchemaError from Describe.
func Of[T any]() *Schema {
	return FromType(reflect.TypeFor[T]())
}

// FromType is Of for a reflect.Type.
func FromType(t reflect.Type) *Schema {
	if s, ok := templates.Load(t); ok {
		return s.(*Schema)
	}
	s, _ := templates.LoadOrStore(t, fromType(t))
	return s.(*Schema)
}

func fromType(t reflect.Type) *Schema {
	st := t
	if st != nil && st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st == nil || st.Kind() != reflect.Struct {
		s := Define(fmt.Sprint(t))
		s.err = "template must be a struct"
		return s
	}

	s := Define(st.Name())
	if s.name == "" {
		s.name = "anonymous"
	}

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			s.parents = append(s.parents, FromType(f.Type))
			continue
		}
		if !f.IsExported() {
			continue
		}

		tag := f.Tag.Get("event")
		if tag == "-" {
			continue
		}
		accessors, err := parseTag(f, tag)
		if err != "" {
			s.err = fmt.Sprintf("field %s: %s", f.Name, err)
			return s
		}
		s.accessors = append(s.accessors, accessors...)
	}
	return s
}

func parseTag(f reflect.StructField, tag string) ([]Accessor, string) {
	parts := strings.Split(tag, ",")

	var getOpts []Option
	switch head := strings.TrimSpace(parts[0]); head {
	case "":
		// left unindexed; Describe reports the missing index
	case "extra":
		getOpts = append(getOpts, AsExtra())
	default:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 {
			return nil, fmt.Sprintf("invalid index %q", head)
		}
		getOpts = append(getOpts, At(idx))
	}

	var mutable, nonNull bool
	var message string
	for _, p := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(p), "=")
		switch key {
		case "mutable":
			mutable = true
		case "nonnull":
			nonNull = true
			message = value
		default:
			return nil, fmt.Sprintf("unknown option %q", key)
		}
	}

	var setOpts []Option
	if nonNull {
		getOpts = append(getOpts, RequireNonNull(message))
		setOpts = append(setOpts, RequireNonNull(message))
	}

	out := []Accessor{Get("get"+f.Name, f.Type, getOpts...)}
	if mutable {
		out = append(out, Set("set"+f.Name, f.Type, setOpts...))
	}
	return out, ""
}
