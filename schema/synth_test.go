package schema

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/bjaus/eventbus/codegen"
)

// countingBackend wraps a reflect backend and counts calls.
type countingBackend struct {
	*codegen.ReflectBackend
	defines   atomic.Int64
	failNext  atomic.Bool
	failNew   error
	instances atomic.Int64
}

func newCountingBackend() *countingBackend {
	return &countingBackend{ReflectBackend: codegen.Reflect()}
}

func (b *countingBackend) DefineType(name string, spec codegen.TypeSpec) (codegen.TypeHandle, error) {
	b.defines.Add(1)
	if b.failNext.CompareAndSwap(true, false) {
		return nil, errors.New("backend unavailable")
	}
	return b.ReflectBackend.DefineType(name, spec)
}

func (b *countingBackend) Instantiate(h codegen.TypeHandle, args []any) (any, error) {
	b.instances.Add(1)
	if b.failNew != nil {
		return nil, b.failNew
	}
	return b.ReflectBackend.Instantiate(h, args)
}

var (
	pairSchema = Define("Pair",
		Get("getA", TypeOf[int](), At(0)),
		Get("getB", TypeOf[string](), At(1)),
	)
)

type SynthesizerSuite struct {
	suite.Suite
	backend *countingBackend
	synth   *Synthesizer
}

func TestSynthesizerSuite(t *testing.T) {
	suite.Run(t, new(SynthesizerSuite))
}

func (s *SynthesizerSuite) SetupTest() {
	s.backend = newCountingBackend()
	s.synth = For(s.backend)
}

func (s *SynthesizerSuite) TestForIsPerBackend() {
	s.Same(s.synth, For(s.backend))
	s.NotSame(s.synth, For(newCountingBackend()))
	s.Same(Default(), For(codegen.Default()))
}

func (s *SynthesizerSuite) TestDescribeIsIdempotent() {
	t1, err := s.synth.Describe(pairSchema)
	s.Require().NoError(err)
	t2, err := s.synth.Describe(pairSchema)
	s.Require().NoError(err)

	s.Same(t1, t2)
	s.Equal(int64(1), s.backend.defines.Load())
	s.Equal("Pair", t1.Name())
	s.Equal("gen.Pair$"+pairSchema.key(), t1.GeneratedName())
}

func (s *SynthesizerSuite) TestConcurrentFirstUseSynthesizesOnce() {
	sch := Define("Burst", Get("getN", TypeOf[int](), At(0)))

	var wg sync.WaitGroup
	types := make([]*Type, 32)
	for i := range types {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			types[i], _ = s.synth.Describe(sch)
		}(i)
	}
	wg.Wait()

	for _, typ := range types {
		s.Require().NotNil(typ)
		s.Same(types[0], typ)
	}
	s.Equal(int64(1), s.backend.defines.Load())
}

func (s *SynthesizerSuite) TestFailuresAreNotCached() {
	sch := Define("Flaky", Get("getN", TypeOf[int](), At(0)))
	s.backend.failNext.Store(true)

	_, err := s.synth.Describe(sch)
	var ierr *InstantiationError
	s.Require().ErrorAs(err, &ierr)
	s.ErrorIs(err, ErrInstantiation)

	typ, err := s.synth.Describe(sch)
	s.Require().NoError(err)
	s.NotNil(typ)
	s.Equal(int64(2), s.backend.defines.Load())
}

func (s *SynthesizerSuite) TestRoundTrip() {
	ev, err := s.synth.Instantiate(pairSchema, 5, "x")
	s.Require().NoError(err)

	s.Equal([]any{5, "x"}, ev.Fields())
	s.Equal(5, ev.MustGet("a"))
	s.Equal("x", ev.MustGet("b"))
	s.Equal("Pair{a=5, b=x}", ev.String())
	s.Same(pairSchema, ev.Schema())
}

func (s *SynthesizerSuite) TestFactoryValidatesArguments() {
	f, err := s.synth.Factory(pairSchema)
	s.Require().NoError(err)
	s.Equal(2, f.Arity())

	_, err = f.Build(5)
	var aerr *ArgumentError
	s.Require().ErrorAs(err, &aerr)
	s.Equal("invalid argument count: expected 2, found 1", aerr.Reason)

	_, err = f.Build("5", "x")
	s.Require().ErrorAs(err, &aerr)
	s.Equal("a", aerr.Property)

	_, err = f.Build(nil, "x")
	s.Require().ErrorAs(err, &aerr)
	s.ErrorIs(err, ErrInvalidArgument)

	s.Equal(int64(0), s.backend.instances.Load(), "backend is not consulted for bad arguments")
}

func (s *SynthesizerSuite) TestBackendInstantiationFailure() {
	s.backend.failNew = errors.New("out of slots")
	_, err := s.synth.Instantiate(pairSchema, 1, "y")

	var ierr *InstantiationError
	s.Require().ErrorAs(err, &ierr)
	s.EqualError(errors.Unwrap(err), "out of slots")
}

func (s *SynthesizerSuite) TestNonNullPrecondition() {
	sch := Define("Named",
		Get("getName", TypeOf[*string](), At(0), RequireNonNull("")),
		Set("setName", TypeOf[*string]()),
		Get("getAlias", TypeOf[*string](), AsExtra()),
		Set("setAlias", TypeOf[*string](), RequireNonNull("alias for $field missing")),
	)

	_, err := s.synth.Instantiate(sch, nil)
	var aerr *ArgumentError
	s.Require().ErrorAs(err, &aerr)
	s.Equal("name cannot be null!", aerr.Reason)

	_, err = s.synth.Instantiate(sch, (*string)(nil))
	s.Require().ErrorAs(err, &aerr)

	name := "n"
	ev, err := s.synth.Instantiate(sch, &name)
	s.Require().NoError(err)

	alias, _ := ev.Get("alias")
	s.Nil(alias)

	err = ev.Set("alias", nil)
	s.Require().ErrorAs(err, &aerr)
	s.Equal("alias for alias missing", aerr.Reason)

	other := "a"
	s.Require().NoError(ev.Set("alias", &other))
	alias, _ = ev.Get("alias")
	s.Equal(&other, alias)

	s.Require().NoError(ev.Set("name", &other), "setter without precondition accepts values")
}

func (s *SynthesizerSuite) TestSetRejectsImmutableAndUnknown() {
	ev, err := s.synth.Instantiate(pairSchema, 1, "b")
	s.Require().NoError(err)

	s.ErrorIs(ev.Set("a", 2), ErrInvalidArgument)
	s.ErrorIs(ev.Set("missing", 2), ErrInvalidArgument)
	s.Equal(1, ev.MustGet("a"))
}

func (s *SynthesizerSuite) TestInheritance() {
	base := Define("Base", Get("getId", TypeOf[string](), At(0)))
	child := Define("Child", Extends(base), Get("getCount", TypeOf[int](), At(1)))

	ct, err := s.synth.Describe(child)
	s.Require().NoError(err)
	bt, err := s.synth.Describe(base)
	s.Require().NoError(err)

	s.Equal([]*Type{bt}, ct.Parents())
	s.Len(ct.Positional(), 2)
	s.Equal("id", ct.Positional()[0].Name)

	ev, err := ct.Factory().Build("x", 3)
	s.Require().NoError(err)
	s.Equal(ct.RoutingType(), ev.EventType())
	s.Contains(ev.SuperTypes(), bt.RoutingType())
	s.NotEqual(bt.RoutingType(), ct.RoutingType())
}

func (s *SynthesizerSuite) TestConflictingInheritedProperty() {
	base := Define("Base", Get("getId", TypeOf[string](), At(0)))
	child := Define("Child", Extends(base), Get("getId", TypeOf[int](), At(0)))

	_, err := s.synth.Describe(child)
	s.ErrorIs(err, ErrInvalidSchema)
}

func (s *SynthesizerSuite) TestRedeclaredInheritedPropertyIsAllowed() {
	base := Define("Base", Get("getId", TypeOf[string](), At(0)))
	child := Define("Child", Extends(base), Get("getId", TypeOf[string](), At(0)))

	typ, err := s.synth.Describe(child)
	s.Require().NoError(err)
	s.Len(typ.Properties(), 1)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
		reason string
	}{
		{
			name:   "missing index",
			schema: Define("S", Get("getA", TypeOf[int]())),
			reason: "missing index on accessor getA",
		},
		{
			name:   "void accessor",
			schema: Define("S", Get("getA", nil, At(0))),
			reason: "returns nothing",
		},
		{
			name: "duplicate index",
			schema: Define("S",
				Get("getA", TypeOf[int](), At(0)),
				Get("getB", TypeOf[int](), At(0)),
			),
			reason: "duplicate index 0",
		},
		{
			name: "gap",
			schema: Define("S",
				Get("getA", TypeOf[int](), At(0)),
				Get("getB", TypeOf[int](), At(2)),
			),
			reason: "index 1 is missing",
		},
		{
			name:   "invalid property name",
			schema: Define("S", Get("get-a", TypeOf[int](), At(0))),
			reason: "invalid property name",
		},
		{
			name:   "invalid schema name",
			schema: Define("not valid", Get("getA", TypeOf[int](), At(0))),
			reason: "not a valid identifier",
		},
		{
			name: "properties differing only in case",
			schema: Define("S",
				Get("getA", TypeOf[int](), At(0)),
				Get("A", TypeOf[int](), At(1)),
			),
			reason: "properties a and A map to the same field A",
		},
		{
			name:   "reserved property",
			schema: Define("S", Get("getXDefinedAs", TypeOf[int](), At(0))),
			reason: "property xDefinedAs is reserved",
		},
		{
			name:   "setter without getter",
			schema: Define("S", Set("setA", TypeOf[int]())),
			reason: "no matching accessor",
		},
		{
			name: "setter type mismatch",
			schema: Define("S",
				Get("getA", TypeOf[int](), At(0)),
				Set("setA", TypeOf[string]()),
			),
			reason: "takes string",
		},
		{
			name:   "indexed extra",
			schema: Define("S", Get("getA", TypeOf[int](), At(0), AsExtra())),
			reason: "cannot have an index",
		},
		{
			name:   "nil parent",
			schema: Define("S", Extends(nil)),
			reason: "nil parent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newCountingBackend()
			_, err := For(b).Describe(tt.schema)

			var serr *SchemaError
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, serr.Reason, tt.reason)
			assert.Equal(t, int64(0), b.defines.Load())
		})
	}

	t.Run("nil schema", func(t *testing.T) {
		_, err := Default().Describe(nil)
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})
}

func TestInstantiateJSON(t *testing.T) {
	z := For(newCountingBackend())

	ev, err := z.InstantiateJSON(pairSchema, []byte(`{"a": 7, "b": "seven", "c": true}`))
	require.NoError(t, err)
	assert.Equal(t, []any{7, "seven"}, ev.Fields())

	_, err = z.InstantiateJSON(pairSchema, []byte(`{"a": 7}`))
	var aerr *ArgumentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "b", aerr.Property)

	_, err = z.InstantiateJSON(pairSchema, []byte(`{"a": "x", "b": "y"}`))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "a", aerr.Property)

	_, err = z.InstantiateJSON(pairSchema, []byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}
