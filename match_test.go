package eventbus

import (
	"reflect"
	"testing"
)

type hierEvent struct {
	routing reflect.Type
	supers  []reflect.Type
}

func (e hierEvent) EventType() reflect.Type      { return e.routing }
func (e hierEvent) SuperTypes() []reflect.Type { return e.supers }

type routeA struct{}
type routeB struct{}

func TestDescribe(t *testing.T) {
	t.Run("plain event", func(t *testing.T) {
		info := Describe(loginEvent{})
		if info.Type != reflect.TypeFor[loginEvent]() {
			t.Errorf("Type = %v", info.Type)
		}
		if info.Dynamic != info.Type {
			t.Errorf("Dynamic = %v", info.Dynamic)
		}
		if len(info.Supers) != 0 {
			t.Errorf("Supers = %v", info.Supers)
		}
	})

	t.Run("type hierarchy routes by its event type", func(t *testing.T) {
		ev := hierEvent{routing: reflect.TypeFor[routeA](), supers: []reflect.Type{reflect.TypeFor[routeB]()}}
		info := Describe(ev)
		if info.Type != reflect.TypeFor[routeA]() {
			t.Errorf("Type = %v", info.Type)
		}
		want := []reflect.Type{reflect.TypeFor[routeB](), reflect.TypeFor[hierEvent]()}
		if !reflect.DeepEqual(info.Supers, want) {
			t.Errorf("Supers = %v, want %v", info.Supers, want)
		}
		if len(ev.supers) != 1 {
			t.Error("Describe must not modify the event's supertypes")
		}
	})

	t.Run("nil routing type falls back to the go type", func(t *testing.T) {
		info := Describe(hierEvent{})
		if info.Type != reflect.TypeFor[hierEvent]() {
			t.Errorf("Type = %v", info.Type)
		}
		if len(info.Supers) != 0 {
			t.Errorf("Supers = %v", info.Supers)
		}
	})

	t.Run("nil event", func(t *testing.T) {
		info := Describe(nil)
		if info.Type != nil || info.Dynamic != nil {
			t.Errorf("info = %+v", info)
		}
	})
}

func TestExact(t *testing.T) {
	info := Describe(loginEvent{})

	t.Run("matches the routing type", func(t *testing.T) {
		if !Exact().Match(reflect.TypeFor[loginEvent](), info) {
			t.Error("expected match")
		}
	})

	t.Run("ignores interfaces", func(t *testing.T) {
		if Exact().Match(reflect.TypeFor[namedEvent](), info) {
			t.Error("expected no match")
		}
		if Exact().Match(reflect.TypeFor[any](), info) {
			t.Error("expected no match for any")
		}
	})
}

func TestImplements(t *testing.T) {
	t.Run("matches implemented interface", func(t *testing.T) {
		if !Implements().Match(reflect.TypeFor[namedEvent](), Describe(loginEvent{})) {
			t.Error("expected match")
		}
	})

	t.Run("any matches everything", func(t *testing.T) {
		for _, ev := range []any{loginEvent{}, 3, "s", hierEvent{routing: reflect.TypeFor[routeA]()}} {
			if !Implements().Match(reflect.TypeFor[any](), Describe(ev)) {
				t.Errorf("expected match for %T", ev)
			}
		}
	})

	t.Run("fails when not implemented", func(t *testing.T) {
		if Implements().Match(reflect.TypeFor[namedEvent](), Describe(logoutEvent{})) {
			t.Error("expected no match")
		}
	})

	t.Run("concrete declared type never matches", func(t *testing.T) {
		if Implements().Match(reflect.TypeFor[loginEvent](), Describe(loginEvent{})) {
			t.Error("expected no match")
		}
	})
}

func TestSupertypes(t *testing.T) {
	ev := hierEvent{routing: reflect.TypeFor[routeA](), supers: []reflect.Type{reflect.TypeFor[routeB]()}}
	info := Describe(ev)

	t.Run("matches declared ancestor", func(t *testing.T) {
		if !Supertypes().Match(reflect.TypeFor[routeB](), info) {
			t.Error("expected match")
		}
	})

	t.Run("matches the go type of a routed event", func(t *testing.T) {
		if !Supertypes().Match(reflect.TypeFor[hierEvent](), info) {
			t.Error("expected match")
		}
	})

	t.Run("routing type itself is not a supertype", func(t *testing.T) {
		if Supertypes().Match(reflect.TypeFor[routeA](), info) {
			t.Error("expected no match")
		}
	})
}

func TestAllOf(t *testing.T) {
	yes := MatcherFunc(func(reflect.Type, EventInfo) bool { return true })
	no := MatcherFunc(func(reflect.Type, EventInfo) bool { return false })
	declared := reflect.TypeFor[loginEvent]()
	info := Describe(loginEvent{})

	t.Run("matches when all match", func(t *testing.T) {
		if !AllOf(yes, Exact()).Match(declared, info) {
			t.Error("expected match")
		}
	})

	t.Run("fails when any fails", func(t *testing.T) {
		if AllOf(yes, no).Match(declared, info) {
			t.Error("expected no match")
		}
	})

	t.Run("vacuous truth", func(t *testing.T) {
		if !AllOf().Match(declared, info) {
			t.Error("expected match for empty list")
		}
	})
}

func TestAnyOf(t *testing.T) {
	yes := MatcherFunc(func(reflect.Type, EventInfo) bool { return true })
	no := MatcherFunc(func(reflect.Type, EventInfo) bool { return false })
	declared := reflect.TypeFor[loginEvent]()
	info := Describe(loginEvent{})

	t.Run("matches when any matches", func(t *testing.T) {
		if !AnyOf(no, yes).Match(declared, info) {
			t.Error("expected match")
		}
	})

	t.Run("fails when none match", func(t *testing.T) {
		if AnyOf(no, no).Match(declared, info) {
			t.Error("expected no match")
		}
	})

	t.Run("empty list never matches", func(t *testing.T) {
		if AnyOf().Match(declared, info) {
			t.Error("expected no match for empty list")
		}
	})
}

func TestHierarchical(t *testing.T) {
	ev := hierEvent{routing: reflect.TypeFor[routeA](), supers: []reflect.Type{reflect.TypeFor[routeB]()}}

	tests := []struct {
		name     string
		declared reflect.Type
		event    any
		want     bool
	}{
		{"exact", reflect.TypeFor[loginEvent](), loginEvent{}, true},
		{"interface", reflect.TypeFor[namedEvent](), loginEvent{}, true},
		{"any", reflect.TypeFor[any](), logoutEvent{}, true},
		{"unrelated", reflect.TypeFor[logoutEvent](), loginEvent{}, false},
		{"routing type", reflect.TypeFor[routeA](), ev, true},
		{"ancestor", reflect.TypeFor[routeB](), ev, true},
		{"go type of routed event", reflect.TypeFor[hierEvent](), ev, true},
		{"pointer is a different type", reflect.TypeFor[*loginEvent](), loginEvent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hierarchical().Match(tt.declared, Describe(tt.event)); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}
