package schema

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type JSONInspectorSuite struct {
	suite.Suite
	inspector Inspector
}

func (s *JSONInspectorSuite) SetupTest() {
	s.inspector = JSONInspector()
}

func TestJSONInspectorSuite(t *testing.T) {
	suite.Run(t, new(JSONInspectorSuite))
}

func (s *JSONInspectorSuite) TestReturnsViewForValidJSON() {
	view, err := s.inspector.Inspect([]byte(`{"foo": "bar"}`))

	s.Require().NoError(err)
	s.Assert().NotNil(view)
}

func (s *JSONInspectorSuite) TestReturnsErrorForInvalidJSON() {
	_, err := s.inspector.Inspect([]byte(`{not valid}`))

	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

func (s *JSONInspectorSuite) TestReturnsErrorForEmptyInput() {
	_, err := s.inspector.Inspect([]byte{})

	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

func (s *JSONInspectorSuite) TestHasField() {
	view, err := s.inspector.Inspect([]byte(`{"a": {"b": 1}, "n": null}`))
	s.Require().NoError(err)

	s.True(view.HasField("a"))
	s.True(view.HasField("a.b"))
	s.True(view.HasField("n"))
	s.False(view.HasField("missing"))
}

func (s *JSONInspectorSuite) TestIsNull() {
	view, err := s.inspector.Inspect([]byte(`{"n": null, "z": 0, "e": ""}`))
	s.Require().NoError(err)

	s.True(view.IsNull("n"))
	s.False(view.IsNull("z"))
	s.False(view.IsNull("e"))
	s.False(view.IsNull("missing"), "absent is not null")
}

func (s *JSONInspectorSuite) TestGetBytesReturnsRawValue() {
	view, err := s.inspector.Inspect([]byte(`{"s": "v", "o": {"x": [1, 2]}}`))
	s.Require().NoError(err)

	b, ok := view.GetBytes("s")
	s.True(ok)
	s.Equal(`"v"`, string(b))

	b, ok = view.GetBytes("o")
	s.True(ok)
	s.JSONEq(`{"x": [1, 2]}`, string(b))

	_, ok = view.GetBytes("missing")
	s.False(ok)
}

var pairWithCoupon = Define("Coupon",
	Get("getCode", TypeOf[string](), At(0)),
	Get("getCoupon", TypeOf[*string](), At(1)),
)

type ArgsFromJSONSuite struct {
	suite.Suite
	typ *Type
}

func TestArgsFromJSONSuite(t *testing.T) {
	suite.Run(t, new(ArgsFromJSONSuite))
}

func (s *ArgsFromJSONSuite) SetupSuite() {
	sch := Define("Order",
		Get("getId", TypeOf[string](), At(0)),
		Get("getLines", TypeOf[[]int](), At(1)),
		Get("getCoupon", TypeOf[*string](), At(2)),
		Get("getNote", TypeOf[string](), AsExtra()),
	)
	typ, err := Default().Describe(sch)
	s.Require().NoError(err)
	s.typ = typ
}

func (s *ArgsFromJSONSuite) TestDecodesByPropertyName() {
	args, err := ArgsFromJSON(s.typ, []byte(`{"lines": [1, 2], "id": "o-1", "coupon": "SAVE"}`))
	s.Require().NoError(err)
	s.Require().Len(args, 3)

	s.Equal("o-1", args[0])
	s.Equal([]int{1, 2}, args[1])
	s.Equal("SAVE", *args[2].(*string))
}

func (s *ArgsFromJSONSuite) TestNullBecomesNilArgument() {
	args, err := ArgsFromJSON(s.typ, []byte(`{"id": null, "lines": null, "coupon": null}`))
	s.Require().NoError(err)
	s.Require().Len(args, 3)

	for i, a := range args {
		s.Nil(a, "argument %d", i)
		s.Equal(nil, a, "argument %d is an untyped nil", i)
	}
}

func (s *ArgsFromJSONSuite) TestNullIsRejectedForValueTypes() {
	_, err := Default().InstantiateJSON(pairSchema, []byte(`{"a": null, "b": "x"}`))

	var aerr *ArgumentError
	s.Require().ErrorAs(err, &aerr)
	s.Equal("a", aerr.Property)
	s.Equal("nil is not a valid int", aerr.Reason)
}

func (s *ArgsFromJSONSuite) TestNullIsRejectedForNonNullProperties() {
	sch := Define("Ticket",
		Get("getHolder", TypeOf[*string](), At(0), RequireNonNull("")),
	)

	_, err := Default().InstantiateJSON(sch, []byte(`{"holder": null}`))

	var aerr *ArgumentError
	s.Require().ErrorAs(err, &aerr)
	s.Equal("holder cannot be null!", aerr.Reason)
}

func (s *ArgsFromJSONSuite) TestNullAcceptedForNillableProperties() {
	ev, err := Default().InstantiateJSON(pairWithCoupon, []byte(`{"code": "c", "coupon": null}`))
	s.Require().NoError(err)

	coupon, ok := ev.Get("coupon")
	s.True(ok)
	s.Nil(coupon)
}

func (s *ArgsFromJSONSuite) TestExtrasAreNotRequired() {
	_, err := ArgsFromJSON(s.typ, []byte(`{"id": "o-1", "lines": [], "coupon": null}`))
	s.NoError(err)
}

func (s *ArgsFromJSONSuite) TestMissingProperty() {
	_, err := ArgsFromJSON(s.typ, []byte(`{"id": "o-1"}`))

	var aerr *ArgumentError
	s.Require().ErrorAs(err, &aerr)
	s.Equal("lines", aerr.Property)
}
