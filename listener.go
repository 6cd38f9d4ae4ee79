package eventbus

import (
	"context"
	"fmt"
	"reflect"

	"github.com/bjaus/eventbus/codegen"
)

// Listener receives events it has been subscribed to.
//
// Example:
//
//	type AuditListener struct {
//	    log *slog.Logger
//	}
//
//	func (l *AuditListener) Handle(ctx context.Context, event any) error {
//	    l.log.InfoContext(ctx, "event", "type", fmt.Sprintf("%T", event))
//	    return nil
//	}
type Listener interface {
	Handle(ctx context.Context, event any) error
}

// Typed is implemented by listeners that know which event type they accept.
// RegisterListener routes by it; listeners without it receive every event.
type Typed interface {
	EventType() reflect.Type
}

// TypeHierarchy is implemented by events whose routing type differs from
// their Go type, such as synthesized events. SuperTypes lists the ancestors
// a hierarchical bus also delivers to.
type TypeHierarchy interface {
	EventType() reflect.Type
	SuperTypes() []reflect.Type
}

// ListenerFunc adapts a typed function to Listener. Use for listeners that
// don't need a struct:
//
//	sub, err := bus.RegisterListener(eventbus.ListenerFunc[UserCreated](
//	    func(ctx context.Context, e UserCreated) error {
//	        return nil
//	    },
//	))
type ListenerFunc[E any] func(ctx context.Context, event E) error

// Handle implements Listener.
func (f ListenerFunc[E]) Handle(ctx context.Context, event any) error {
	e, ok := event.(E)
	if !ok && event != nil {
		return fmt.Errorf("%w: %T is not %v", codegen.ErrEventType, event, reflect.TypeFor[E]())
	}
	return f(ctx, e)
}

// EventType implements Typed.
func (f ListenerFunc[E]) EventType() reflect.Type { return reflect.TypeFor[E]() }

// Subscribe registers fn for events of type E.
//
// This is a package-level function (not a method) due to Go generics
// limitations: methods cannot have type parameters independent of the
// receiver.
//
// Example:
//
//	eventbus.Subscribe(bus, func(ctx context.Context, e UserCreated) error {
//	    return welcome.Send(ctx, e.Email)
//	})
func Subscribe[E any](b *Bus, fn func(ctx context.Context, event E) error) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilListener
	}
	return b.RegisterListenerFor(reflect.TypeFor[E](), ListenerFunc[E](fn))
}

// sameListener compares listeners without panicking on uncomparable dynamic
// types. Functions compare by code pointer, so two closures over the same
// literal are indistinguishable.
func sameListener(a, b Listener) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return safeEqual(a, b)
	}
	if ta.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

// sameOwner is sameListener for registered sources.
func sameOwner(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return safeEqual(a, b)
	}
	return false
}

// safeEqual is a == b, false when a comparable struct holds an uncomparable
// interface value.
func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
