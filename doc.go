// Package eventbus is an in-process publish/subscribe event bus with
// type-routed handlers.
//
// Listener objects expose handler methods; every published event is
// delivered to each subscription whose declared type matches it. A failing
// handler never prevents delivery to the others: its error or panic is
// routed to an ExceptionHandler and dispatch continues.
//
// # Quick Start
//
// Define events and a listener:
//
//	type UserCreated struct {
//	    ID    string
//	    Email string
//	}
//
//	type Welcome struct {
//	    mail Mailer
//	}
//
//	func (w *Welcome) OnUserCreated(ctx context.Context, e UserCreated) error {
//	    return w.mail.Send(ctx, e.Email, "welcome")
//	}
//
// Create a bus, register the listener and publish:
//
//	bus, err := eventbus.New()
//	if err != nil {
//	    return err
//	}
//	if err := bus.Register(&Welcome{mail: mailer}); err != nil {
//	    return err
//	}
//
//	res, err := bus.Publish(ctx, UserCreated{ID: "u-1", Email: "a@example.com"}).Wait(ctx)
//	// res.Succeeded == 1
//
// # Handlers
//
// By default exported methods named On<Something> are handlers, as are struct
// fields tagged `eventbus:"subscribe"` holding a typed Listener or function.
// Add markers with WithMarkers. A handler takes exactly one event, optionally
// preceded by a context.Context, and returns nothing or an error:
//
//	func (l *L) OnA(e A)
//	func (l *L) OnB(e B) error
//	func (l *L) OnC(ctx context.Context, e C)
//	func (l *L) OnD(ctx context.Context, e D) error
//
// Functions can be subscribed directly with Subscribe.
//
// # Matching
//
// A hierarchical bus (the default) delivers an event to subscriptions for
// its exact type, for any interface it implements (subscribing to any
// receives everything) and, for synthesized events, for every ancestor
// schema. WithHierarchical(false) restricts delivery to the exact type.
//
// # Publishing
//
//   - Publish schedules dispatch on the executor and returns a Future of the
//     PostResult: succeeded and failed counts and per-handler durations.
//   - Post is Publish without the report.
//   - Submit dispatches on the calling goroutine and returns the event.
//
// Dispatch works on a snapshot of the subscriptions taken when it starts.
//
// # Invocation Strategies
//
// Introspective looks up the handler method on every call. HandleBased
// resolves it once at registration. The generated strategy, selected with
// WithBackend, compiles one invoker per handler method through a code
// backend; event types registered with codegen.RegisterEvent are then called
// without reflection. Only a bus with a backend can synthesize schema
// events, so PublishSchema and friends fail with an
// *UnsupportedOperationError otherwise.
//
// # Schema Events
//
// Event types can be described instead of declared; see package schema:
//
//	var Shipped = schema.Define("Shipped",
//	    schema.Get("getOrder", schema.TypeOf[string](), schema.At(0)),
//	    schema.Get("getCarrier", schema.TypeOf[string](), schema.At(1)),
//	)
//
//	bus, _ := eventbus.New(eventbus.WithBackend(codegen.Default()))
//	bus.SubscribeSchema(Shipped, listener)
//	bus.PublishSchema(ctx, Shipped, "o-1", "ups")
//
// # Observability
//
// Each dispatch loop is traced as an "eventbus.dispatch" span, and handler
// invocations, failures and latency are recorded as OpenTelemetry metrics.
// Hooks (WithOnDispatch, WithOnSuccess, WithOnFailure) cover anything else.
package eventbus
