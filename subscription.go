package eventbus

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/bjaus/eventbus/codegen"
)

// InvokeFunc is the bound form of a handler.
type InvokeFunc = codegen.Func

// Subscription is an immutable binding of one handler to one event type.
type Subscription struct {
	id        string
	name      string
	eventType reflect.Type
	owner     any
	listener  Listener
	invoke    InvokeFunc
}

func newSubscription(name string, eventType reflect.Type, owner any, listener Listener, invoke InvokeFunc) *Subscription {
	return &Subscription{
		id:        uuid.NewString(),
		name:      name,
		eventType: eventType,
		owner:     owner,
		listener:  listener,
		invoke:    invoke,
	}
}

// ID returns a unique identifier for the subscription.
func (s *Subscription) ID() string { return s.id }

// Name returns the diagnostic name, e.g. "*app.Audit.OnLogin(app.Login)".
func (s *Subscription) Name() string { return s.name }

// EventType returns the declared event type.
func (s *Subscription) EventType() reflect.Type { return s.eventType }

// Owner returns the registered source, or nil for listener subscriptions.
func (s *Subscription) Owner() any { return s.owner }

// Listener returns the listener object, or nil for method subscriptions.
func (s *Subscription) Listener() Listener { return s.listener }

// Invoke calls the handler directly, without fault isolation.
func (s *Subscription) Invoke(ctx context.Context, event any) error {
	return s.invoke(ctx, event)
}

func (s *Subscription) String() string {
	if s == nil {
		return "Subscription(<nil>)"
	}
	return "Subscription(" + s.name + ")"
}
