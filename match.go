package eventbus

import "reflect"

// EventInfo is what a Matcher sees of a published event.
type EventInfo struct {
	// Type is the routing type: EventType() for TypeHierarchy events, the Go
	// type otherwise.
	Type reflect.Type

	// Dynamic is the Go type of the event value.
	Dynamic reflect.Type

	// Supers lists declared ancestors. For TypeHierarchy events it also holds
	// Dynamic when that differs from Type.
	Supers []reflect.Type
}

// Describe builds the EventInfo for event.
func Describe(event any) EventInfo {
	dyn := reflect.TypeOf(event)
	info := EventInfo{Type: dyn, Dynamic: dyn}
	if h, ok := event.(TypeHierarchy); ok {
		if rt := h.EventType(); rt != nil {
			info.Type = rt
		}
		info.Supers = h.SuperTypes()
		if info.Type != dyn {
			info.Supers = append(info.Supers[:len(info.Supers):len(info.Supers)], dyn)
		}
	}
	return info
}

// Matcher decides whether a subscription declared for a type receives an
// event. Matchers are cheap and must be safe for concurrent use.
type Matcher interface {
	Match(declared reflect.Type, event EventInfo) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(declared reflect.Type, event EventInfo) bool

// Match implements Matcher.
func (f MatcherFunc) Match(declared reflect.Type, event EventInfo) bool { return f(declared, event) }

// Exact matches when the declared type is the routing type.
func Exact() Matcher {
	return exact{}
}

type exact struct{}

func (exact) Match(declared reflect.Type, ev EventInfo) bool {
	return declared == ev.Type
}

// Implements matches when the declared type is an interface the event value
// implements. Subscriptions for any receive every event.
func Implements() Matcher {
	return implements{}
}

type implements struct{}

func (implements) Match(declared reflect.Type, ev EventInfo) bool {
	return declared.Kind() == reflect.Interface && ev.Dynamic != nil && ev.Dynamic.Implements(declared)
}

// Supertypes matches when the declared type is one of the event's declared
// ancestors.
func Supertypes() Matcher {
	return supertypes{}
}

type supertypes struct{}

func (supertypes) Match(declared reflect.Type, ev EventInfo) bool {
	for _, s := range ev.Supers {
		if s == declared {
			return true
		}
	}
	return false
}

// AllOf returns a Matcher that matches when all matchers match.
func AllOf(ms ...Matcher) Matcher {
	return allOf{ms: ms}
}

type allOf struct {
	ms []Matcher
}

func (m allOf) Match(declared reflect.Type, ev EventInfo) bool {
	for _, mm := range m.ms {
		if !mm.Match(declared, ev) {
			return false
		}
	}
	return true
}

// AnyOf returns a Matcher that matches when any matcher matches.
func AnyOf(ms ...Matcher) Matcher {
	return anyOf{ms: ms}
}

type anyOf struct {
	ms []Matcher
}

func (m anyOf) Match(declared reflect.Type, ev EventInfo) bool {
	for _, mm := range m.ms {
		if mm.Match(declared, ev) {
			return true
		}
	}
	return false
}

// Hierarchical is the default matching rule: exact type, implemented
// interfaces and declared ancestors.
func Hierarchical() Matcher {
	return AnyOf(Exact(), Implements(), Supertypes())
}
