package codegen

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrSignature is returned when a function does not have an accepted
	// handler shape.
	ErrSignature = errors.New("invalid handler signature")

	// ErrEventType is returned when an event is not assignable to the
	// parameter type of the handler it was routed to.
	ErrEventType = errors.New("event type mismatch")
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Func is the uniform calling convention every handler is adapted to.
type Func func(ctx context.Context, event any) error

// Shape records which optional parts a handler signature carries.
type Shape struct {
	Context bool // leading context.Context parameter
	Error   bool // trailing error result
}

// Signature inspects a handler function type and returns the event parameter
// type. When method is true the first input is the receiver and is skipped.
func Signature(ft reflect.Type, method bool) (reflect.Type, Shape, error) {
	if ft == nil || ft.Kind() != reflect.Func {
		return nil, Shape{}, fmt.Errorf("%w: %v is not a function", ErrSignature, ft)
	}
	if ft.IsVariadic() {
		return nil, Shape{}, fmt.Errorf("%w: variadic handlers are not supported", ErrSignature)
	}

	in := make([]reflect.Type, 0, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		if method && i == 0 {
			continue
		}
		in = append(in, ft.In(i))
	}

	var shape Shape
	n := len(in)
	if n == 2 && in[0] == contextType {
		shape.Context = true
		in = in[1:]
	}
	if len(in) != 1 {
		return nil, Shape{}, fmt.Errorf("%w: must accept exactly one event parameter (found %d)", ErrSignature, n)
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) != errorType {
			return nil, Shape{}, fmt.Errorf("%w: may only return error, not %v", ErrSignature, ft.Out(0))
		}
		shape.Error = true
	default:
		return nil, Shape{}, fmt.Errorf("%w: may only return error (found %d results)", ErrSignature, ft.NumOut())
	}
	return in[0], shape, nil
}

// CallValue invokes fn, a function value of the given shape, through
// reflection. Panics raised by fn propagate to the caller.
func CallValue(ctx context.Context, fn reflect.Value, shape Shape, event any) error {
	ft := fn.Type()
	param := ft.In(ft.NumIn() - 1)

	ev := reflect.ValueOf(event)
	switch {
	case !ev.IsValid():
		ev = reflect.Zero(param)
	case !ev.Type().AssignableTo(param):
		return fmt.Errorf("%w: %T is not assignable to %v", ErrEventType, event, param)
	}

	var out []reflect.Value
	if shape.Context {
		out = fn.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem(), ev})
	} else {
		out = fn.Call([]reflect.Value{ev})
	}

	if shape.Error {
		if err, _ := out[0].Interface().(error); err != nil {
			return err
		}
	}
	return nil
}

// adapter turns a function value into a typed Func when it has one of the
// accepted shapes for its event type.
type adapter func(fn any) (Func, bool)

var adapters sync.Map // reflect.Type -> adapter

func init() {
	RegisterEvent[any]()
}

// RegisterEvent installs statically typed call adapters for handlers of event
// type E. Handlers bound after registration are called without reflection.
// Registering the same type again replaces its adapters.
func RegisterEvent[E any]() {
	adapters.Store(reflect.TypeFor[E](), adapter(func(fn any) (Func, bool) {
		switch f := fn.(type) {
		case func(E):
			return func(_ context.Context, event any) error {
				e, err := cast[E](event)
				if err != nil {
					return err
				}
				f(e)
				return nil
			}, true
		case func(E) error:
			return func(_ context.Context, event any) error {
				e, err := cast[E](event)
				if err != nil {
					return err
				}
				return f(e)
			}, true
		case func(context.Context, E):
			return func(ctx context.Context, event any) error {
				e, err := cast[E](event)
				if err != nil {
					return err
				}
				f(ctx, e)
				return nil
			}, true
		case func(context.Context, E) error:
			return func(ctx context.Context, event any) error {
				e, err := cast[E](event)
				if err != nil {
					return err
				}
				return f(ctx, e)
			}, true
		}
		return nil, false
	}))
}

// Registered reports whether typed adapters exist for event type t.
func Registered(t reflect.Type) bool {
	_, ok := adapters.Load(t)
	return ok
}

func cast[E any](event any) (E, error) {
	e, ok := event.(E)
	if !ok && event != nil {
		return e, fmt.Errorf("%w: %T is not %v", ErrEventType, event, reflect.TypeFor[E]())
	}
	return e, nil
}

// FuncOf adapts a free function of an accepted shape. It returns the
// function's event type alongside the Func.
func FuncOf(fn any) (Func, reflect.Type, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || (v.Kind() == reflect.Func && v.IsNil()) {
		return nil, nil, fmt.Errorf("%w: nil function", ErrSignature)
	}
	event, shape, err := Signature(v.Type(), false)
	if err != nil {
		return nil, nil, err
	}
	if f, ok := adapt(event, fn); ok {
		return f, event, nil
	}
	return func(ctx context.Context, ev any) error {
		return CallValue(ctx, v, shape, ev)
	}, event, nil
}

func adapt(event reflect.Type, fn any) (Func, bool) {
	a, ok := adapters.Load(event)
	if !ok {
		return nil, false
	}
	return a.(adapter)(fn)
}

// Compiled is a handler method resolved once for its declaring type.
type Compiled struct {
	receiver reflect.Type
	method   reflect.Method
	event    reflect.Type
	shape    Shape
}

// Receiver returns the declaring type.
func (c *Compiled) Receiver() reflect.Type { return c.receiver }

// Method returns the resolved method.
func (c *Compiled) Method() reflect.Method { return c.method }

// EventType returns the method's event parameter type.
func (c *Compiled) EventType() reflect.Type { return c.event }

// Shape returns the method's signature shape.
func (c *Compiled) Shape() Shape { return c.shape }

// Static reports whether bound invocations skip reflection.
func (c *Compiled) Static() bool { return Registered(c.event) }

// Bind produces a Func that invokes the method on recv. recv must have
// exactly the declaring type.
func (c *Compiled) Bind(recv reflect.Value) (Func, error) {
	if !recv.IsValid() || recv.Type() != c.receiver {
		return nil, fmt.Errorf("bind %s.%s: receiver is %v", c.receiver, c.method.Name, recv.Type())
	}
	mv := recv.Method(c.method.Index)
	if f, ok := adapt(c.event, mv.Interface()); ok {
		return f, nil
	}
	shape := c.shape
	return func(ctx context.Context, event any) error {
		return CallValue(ctx, mv, shape, event)
	}, nil
}

type compileKey struct {
	recv reflect.Type
	name string
}

var (
	compiled     sync.Map // compileKey -> *Compiled
	compileGroup singleflight.Group
	compiles     atomic.Int64
)

// Compile resolves method name on recv. Each (type, method) pair is compiled
// at most once per process; concurrent first calls share one compilation.
func Compile(recv reflect.Type, name string) (*Compiled, error) {
	if recv == nil {
		return nil, fmt.Errorf("compile %s: nil receiver type", name)
	}
	k := compileKey{recv: recv, name: name}
	if c, ok := compiled.Load(k); ok {
		return c.(*Compiled), nil
	}

	v, err, _ := compileGroup.Do(fmt.Sprintf("%p.%s", recv, name), func() (any, error) {
		if c, ok := compiled.Load(k); ok {
			return c, nil
		}
		m, ok := recv.MethodByName(name)
		if !ok {
			return nil, fmt.Errorf("compile %s.%s: no such method", recv, name)
		}
		event, shape, err := Signature(m.Type, true)
		if err != nil {
			return nil, fmt.Errorf("compile %s.%s: %w", recv, name, err)
		}
		c := &Compiled{receiver: recv, method: m, event: event, shape: shape}
		compiled.Store(k, c)
		compiles.Add(1)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Compiled), nil
}
