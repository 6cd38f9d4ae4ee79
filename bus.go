package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"go.uber.org/multierr"

	"github.com/bjaus/eventbus/schema"
)

// Bus delivers published events to the subscriptions registered for their
// type.
//
// Usage:
//  1. Create a bus with New
//  2. Register listener objects with Register, or functions with Subscribe
//  3. Publish events with Publish, Post or Submit
//
// Bus is safe for concurrent use. Registration and publication may overlap
// freely.
type Bus struct {
	registry   *Registry
	engine     *engine
	executor   Executor
	exceptions ExceptionHandler
	strategy   Strategy
	synth      *schema.Synthesizer // nil unless the strategy has a backend
	markers    markers
	logger     *slog.Logger
}

// New creates a Bus with the given options.
//
// By default the bus dispatches synchronously on the publishing goroutine,
// matches hierarchically, invokes handlers through HandleBased and logs
// handler failures.
//
// Example:
//
//	bus, err := eventbus.New(
//	    eventbus.WithBackend(codegen.Default()),
//	    eventbus.WithExecutor(pool),
//	    eventbus.WithOnFailure(func(ctx context.Context, sub *eventbus.Subscription, event any, err error, d time.Duration) {
//	        metrics.Incr("eventbus.failure")
//	    }),
//	)
func New(opts ...Option) (*Bus, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default().With("module", "eventbus")
	}

	strategy := o.strategy
	switch {
	case o.generated:
		g, err := NewGenerated(o.backend)
		if err != nil {
			return nil, err
		}
		g.logger = logger
		strategy = g
	case strategy == nil:
		strategy = HandleBased()
	}

	matcher := o.matcher
	if matcher == nil {
		if o.hierarchical {
			matcher = Hierarchical()
		} else {
			matcher = Exact()
		}
	}

	exceptions := o.exceptions
	if exceptions == nil {
		exceptions = LogExceptions(logger)
	}

	tel, err := newTelemetry(o.tracerProvider, o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("eventbus telemetry: %w", err)
	}

	b := &Bus{
		registry:   NewRegistry(matcher),
		executor:   o.executor,
		exceptions: exceptions,
		strategy:   strategy,
		markers:    o.markers,
		logger:     logger,
	}
	if backend, ok := backendOf(strategy); ok {
		b.synth = schema.For(backend)
	}
	b.engine = &engine{
		registry:   b.registry,
		exceptions: exceptions,
		hooks:      o.hooks,
		telemetry:  tel,
		logger:     logger,
	}
	return b, nil
}

// Register subscribes every handler-marked member of source.
//
// source is either an instance (usually a pointer to a struct) or a
// reflect.Type, in which case only value-receiver methods can be registered
// and they run on the zero value. Marked methods must take one event
// (optionally preceded by a context.Context) and return nothing or an error.
// Marked fields must hold a typed Listener or a function of that shape.
//
// Registration is all or nothing: every problem is reported, combined, and
// nothing is subscribed when there is any.
//
// Example:
//
//	type Audit struct{ log *slog.Logger }
//
//	func (a *Audit) OnLogin(ctx context.Context, e Login) error { ... }
//	func (a *Audit) OnLogout(e Logout) { ... }
//
//	err := bus.Register(&Audit{log: logger})
func (b *Bus) Register(source any) error {
	members, err := scan(source, b.markers)
	if err != nil {
		return err
	}

	subs := make([]*Subscription, 0, len(members))
	var errs error
	for _, m := range members {
		sub, err := m.bind(b.strategy, source)
		if err != nil {
			errs = multierr.Append(errs, &RegistrationError{
				Source: fmt.Sprint(reflect.TypeOf(source)),
				Member: m.name,
				Reason: err.Error(),
			})
			continue
		}
		subs = append(subs, sub)
	}
	if errs != nil {
		return errs
	}

	b.registry.Add(subs...)
	b.logger.Debug("registered listener",
		"source", fmt.Sprint(reflect.TypeOf(source)),
		"subscriptions", len(subs),
		"strategy", b.strategy.Name())
	return nil
}

// RegisterListener subscribes l for the type reported by its EventType
// method, or for every event when it has none.
func (b *Bus) RegisterListener(l Listener) (*Subscription, error) {
	if l == nil {
		return nil, ErrNilListener
	}
	t := reflect.TypeFor[any]()
	if typed, ok := l.(Typed); ok && typed.EventType() != nil {
		t = typed.EventType()
	}
	return b.RegisterListenerFor(t, l)
}

// RegisterListenerFor subscribes l for events of type t.
func (b *Bus) RegisterListenerFor(t reflect.Type, l Listener) (*Subscription, error) {
	if l == nil {
		return nil, ErrNilListener
	}
	if t == nil {
		return nil, &RegistrationError{Source: fmt.Sprintf("%T", l), Reason: "event type is nil"}
	}
	sub := newSubscription(fmt.Sprintf("%T(%s)", l, t), t, nil, l, l.Handle)
	b.registry.Add(sub)
	return sub, nil
}

// Unregister removes every subscription registered from source and returns
// how many were removed.
func (b *Bus) Unregister(source any) int {
	return b.registry.RemoveByOwner(source)
}

// UnregisterListener removes every subscription bound to l.
func (b *Bus) UnregisterListener(l Listener) int {
	return b.registry.RemoveByListener(l)
}

// Unsubscribe removes one subscription.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	return b.registry.Remove(sub)
}

// Publish schedules delivery of event on the executor. The future resolves
// with the delivery report once every matching subscription has run, or
// with the scheduling error.
func (b *Bus) Publish(ctx context.Context, event any) *Future[*PostResult] {
	f := newFuture[*PostResult]()
	if event == nil {
		f.resolve(nil, ErrNilEvent)
		return f
	}
	schedule(b, f, func() {
		f.resolve(b.engine.dispatch(ctx, event, true), nil)
	})
	return f
}

// Post is Publish without the delivery report.
func (b *Bus) Post(ctx context.Context, event any) *Future[struct{}] {
	f := newFuture[struct{}]()
	if event == nil {
		f.resolve(struct{}{}, ErrNilEvent)
		return f
	}
	schedule(b, f, func() {
		b.engine.dispatch(ctx, event, false)
		f.resolve(struct{}{}, nil)
	})
	return f
}

// Submit delivers event on the calling goroutine, bypassing the executor,
// and returns it. A nil event is ignored.
func (b *Bus) Submit(ctx context.Context, event any) any {
	if event == nil {
		return nil
	}
	b.engine.dispatch(ctx, event, false)
	return event
}

// schedule runs task on the executor. The future is failed when scheduling
// fails or the task panics outside handler isolation.
func schedule[T any](b *Bus, f *Future[T], task func()) {
	err := b.executor.Execute(func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.resolve(zero, fmt.Errorf("dispatch panicked: %v", r))
			}
		}()
		task()
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
}

// synthesizer returns the schema synthesizer, or an error naming op when the
// bus has no code backend.
func (b *Bus) synthesizer(op string) (*schema.Synthesizer, error) {
	if b.synth == nil {
		return nil, &UnsupportedOperationError{
			Op:     op,
			Reason: fmt.Sprintf("requires the %s invocation strategy, bus uses %s", StrategyGenerated, b.strategy.Name()),
		}
	}
	return b.synth, nil
}

// PublishSchema synthesizes an event of schema s from args and publishes it.
func (b *Bus) PublishSchema(ctx context.Context, s *schema.Schema, args ...any) (*Future[*PostResult], error) {
	z, err := b.synthesizer("PublishSchema")
	if err != nil {
		return nil, err
	}
	ev, err := z.Instantiate(s, args...)
	if err != nil {
		return nil, err
	}
	return b.Publish(ctx, ev), nil
}

// PostSchema synthesizes an event of schema s from args and posts it.
func (b *Bus) PostSchema(ctx context.Context, s *schema.Schema, args ...any) (*Future[struct{}], error) {
	z, err := b.synthesizer("PostSchema")
	if err != nil {
		return nil, err
	}
	ev, err := z.Instantiate(s, args...)
	if err != nil {
		return nil, err
	}
	return b.Post(ctx, ev), nil
}

// SubmitSchema synthesizes an event of schema s from args, delivers it on
// the calling goroutine and returns it.
func (b *Bus) SubmitSchema(ctx context.Context, s *schema.Schema, args ...any) (*schema.Event, error) {
	z, err := b.synthesizer("SubmitSchema")
	if err != nil {
		return nil, err
	}
	ev, err := z.Instantiate(s, args...)
	if err != nil {
		return nil, err
	}
	b.Submit(ctx, ev)
	return ev, nil
}

// PublishJSON synthesizes an event of schema s from the properties of a JSON
// object and publishes it.
func (b *Bus) PublishJSON(ctx context.Context, s *schema.Schema, raw []byte) (*Future[*PostResult], error) {
	z, err := b.synthesizer("PublishJSON")
	if err != nil {
		return nil, err
	}
	ev, err := z.InstantiateJSON(s, raw)
	if err != nil {
		return nil, err
	}
	return b.Publish(ctx, ev), nil
}

// PreGenerate synthesizes the types for schemas ahead of first use. All
// failures are reported, combined.
func (b *Bus) PreGenerate(schemas ...*schema.Schema) error {
	z, err := b.synthesizer("PreGenerate")
	if err != nil {
		return err
	}
	var errs error
	for _, s := range schemas {
		if _, err := z.Factory(s); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// SubscribeSchema subscribes l to events of schema s and of every schema
// extending it.
func (b *Bus) SubscribeSchema(s *schema.Schema, l Listener) (*Subscription, error) {
	z, err := b.synthesizer("SubscribeSchema")
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNilListener
	}
	t, err := z.Describe(s)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(fmt.Sprintf("%T(%s)", l, t.Name()), t.RoutingType(), nil, l, l.Handle)
	b.registry.Add(sub)
	return sub, nil
}

// Synthesizer returns the schema synthesizer of the bus, or nil when the bus
// has no code backend.
func (b *Bus) Synthesizer() *schema.Synthesizer { return b.synth }

// Executor returns the executor Publish and Post schedule on.
func (b *Bus) Executor() Executor { return b.executor }

// ExceptionHandler returns the handler failures are routed to.
func (b *Bus) ExceptionHandler() ExceptionHandler { return b.exceptions }

// Strategy returns the invocation strategy.
func (b *Bus) Strategy() Strategy { return b.strategy }

// Subscriptions returns a snapshot of every active subscription.
func (b *Bus) Subscriptions() []*Subscription { return b.registry.Snapshot() }
