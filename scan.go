package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/multierr"

	"github.com/bjaus/eventbus/codegen"
)

// Marker decides which members of a registered source are handlers.
type Marker interface {
	MarksMethod(m reflect.Method) bool
	MarksField(f reflect.StructField) bool
}

// MethodPrefix marks exported methods whose name is the prefix followed by
// an upper-case letter, e.g. MethodPrefix("On") marks OnLogin but not Once.
type MethodPrefix string

// MarksMethod implements Marker.
func (p MethodPrefix) MarksMethod(m reflect.Method) bool {
	rest, ok := strings.CutPrefix(m.Name, string(p))
	if !ok || rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsUpper(r)
}

// MarksField implements Marker.
func (MethodPrefix) MarksField(reflect.StructField) bool { return false }

// StructTag marks struct fields tagged `eventbus:"<value>"`.
type StructTag string

// MarksMethod implements Marker.
func (StructTag) MarksMethod(reflect.Method) bool { return false }

// MarksField implements Marker.
func (t StructTag) MarksField(f reflect.StructField) bool {
	for _, v := range strings.Split(f.Tag.Get("eventbus"), ",") {
		if strings.TrimSpace(v) == string(t) {
			return true
		}
	}
	return false
}

// DefaultMarkers returns the markers every bus recognizes: methods named
// On<Something> and fields tagged `eventbus:"subscribe"`.
func DefaultMarkers() []Marker {
	return []Marker{MethodPrefix("On"), StructTag("subscribe")}
}

type markers []Marker

func (ms markers) method(m reflect.Method) bool {
	for _, mk := range ms {
		if mk.MarksMethod(m) {
			return true
		}
	}
	return false
}

func (ms markers) field(f reflect.StructField) bool {
	for _, mk := range ms {
		if mk.MarksField(f) {
			return true
		}
	}
	return false
}

// Method is a handler method found on a registered source.
type Method struct {
	Receiver  reflect.Type
	Func      reflect.Method
	EventType reflect.Type
	Shape     codegen.Shape
}

// member is one handler found by a scan, ready to be bound.
type member struct {
	name      string
	eventType reflect.Type
	listener  Listener
	recv      reflect.Value // method members only
	method    Method
	invoke    InvokeFunc // field members only
}

func (m member) bind(s Strategy, owner any) (*Subscription, error) {
	if m.invoke != nil {
		return newSubscription(m.name, m.eventType, owner, m.listener, m.invoke), nil
	}
	fn, err := s.Bind(m.recv, m.method)
	if err != nil {
		return nil, err
	}
	return newSubscription(m.name, m.eventType, owner, nil, fn), nil
}

// scan finds every marked member of source. A reflect.Type source registers
// its value-receiver methods on the zero value; anything needing an instance
// is an error. All problems are reported together.
func scan(source any, ms markers) ([]member, error) {
	if source == nil {
		return nil, ErrNilListener
	}

	var (
		recv     reflect.Value
		typ      reflect.Type
		static   bool
		srcName  string
		problems error
	)
	if t, ok := source.(reflect.Type); ok {
		if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
			return nil, &RegistrationError{Source: t.String(), Reason: "type sources must be concrete non-pointer types"}
		}
		static = true
		typ = t
		recv = reflect.Zero(t)
		srcName = t.String()
	} else {
		recv = reflect.ValueOf(source)
		typ = recv.Type()
		srcName = typ.String()
		if typ.Kind() == reflect.Pointer && recv.IsNil() {
			return nil, ErrNilListener
		}
	}

	fail := func(member, format string, args ...any) {
		problems = multierr.Append(problems, &RegistrationError{
			Source: srcName,
			Member: member,
			Reason: fmt.Sprintf(format, args...),
		})
	}

	var found []member

	// Methods. Pointer-receiver methods are only reachable through a pointer.
	ptr := typ
	if typ.Kind() != reflect.Pointer {
		ptr = reflect.PointerTo(typ)
	}
	for i := 0; i < ptr.NumMethod(); i++ {
		pm := ptr.Method(i)
		if !ms.method(pm) {
			continue
		}
		m, ok := typ.MethodByName(pm.Name)
		if !ok {
			if static {
				fail("method "+pm.Name, "is non-static but provided listener was not an instance")
			} else {
				fail("method "+pm.Name, "has a pointer receiver; register a pointer")
			}
			continue
		}
		event, shape, err := codegen.Signature(m.Type, true)
		if err != nil {
			fail("method "+m.Name, "%v", err)
			continue
		}
		found = append(found, member{
			name:      fmt.Sprintf("%s.%s(%s)", typ, m.Name, event),
			eventType: event,
			recv:      recv,
			method:    Method{Receiver: typ, Func: m, EventType: event, Shape: shape},
		})
	}

	// Fields.
	st := typ
	sv := recv
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
		sv = sv.Elem()
	}
	if st.Kind() == reflect.Struct {
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if !ms.field(f) {
				continue
			}
			name := "field " + f.Name
			switch {
			case static:
				fail(name, "is non-static but provided listener was not an instance")
				continue
			case !f.IsExported():
				fail(name, "is not exported")
				continue
			}
			m, err := fieldMember(srcName, f, sv.Field(i))
			if err != nil {
				fail(name, "%v", err)
				continue
			}
			found = append(found, m)
		}
	}

	if problems != nil {
		return nil, problems
	}
	return found, nil
}

var errMissingType = errors.New("is missing type information")

func fieldMember(srcName string, f reflect.StructField, fv reflect.Value) (member, error) {
	if isNil(fv) {
		return member{}, errors.New("is nil")
	}
	value := fv.Interface()
	name := fmt.Sprintf("%s.%s", srcName, f.Name)

	if l, ok := value.(Listener); ok {
		typed, ok := value.(Typed)
		if !ok || typed.EventType() == nil {
			return member{}, errMissingType
		}
		event := typed.EventType()
		return member{
			name:      fmt.Sprintf("%s(%s)", name, event),
			eventType: event,
			listener:  l,
			invoke:    l.Handle,
		}, nil
	}

	if fv.Kind() == reflect.Func {
		fn, event, err := codegen.FuncOf(value)
		if err != nil {
			return member{}, err
		}
		return member{
			name:      fmt.Sprintf("%s(%s)", name, event),
			eventType: event,
			invoke:    fn,
		}, nil
	}

	return member{}, errMissingType
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return !v.IsValid()
}
