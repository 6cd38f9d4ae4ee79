// Package codegen is the code backend behind the event bus.
//
// It does two jobs:
//
//   - Type synthesis. A Backend defines named value layouts (DefineType) and
//     creates instances of them (Instantiate). Each name is defined at most once
//     per Backend; defining a name twice is a programming error and panics with
//     ErrAlreadyDefined. The default backend, Reflect, builds layouts with
//     reflect.StructOf.
//
//   - Invoker compilation. Compile resolves a handler method once per
//     (declaring type, method) pair and Bind turns it into a Func for a concrete
//     receiver. When the event type was registered ahead of time with
//     RegisterEvent, the bound Func is a plain typed call with no reflection on
//     the hot path:
//
//	func init() {
//	    codegen.RegisterEvent[UserCreated]()
//	}
//
// Handler shapes accepted everywhere in this package:
//
//	func(E)
//	func(E) error
//	func(context.Context, E)
//	func(context.Context, E) error
//
// All package state (the default backend, compiled invokers, adapters) is
// process-wide, populated lazily and never evicted.
package codegen
