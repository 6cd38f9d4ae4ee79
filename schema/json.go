package schema

import (
	"encoding/json"
	"errors"
	"reflect"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the input is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Inspector parses a document once so its properties can be read by name.
type Inspector interface {
	Inspect(raw []byte) (View, error)
}

// View reads property values out of an inspected document.
type View interface {
	// HasField reports whether path is present, even when its value is null.
	HasField(path string) bool

	// IsNull reports whether path is present with an explicit null.
	IsNull(path string) bool

	// GetBytes returns the encoded value at path. The bytes must be
	// decodable by encoding/json.
	GetBytes(path string) ([]byte, bool)
}

// JSONInspector returns an Inspector backed by gjson.
func JSONInspector() Inspector {
	return jsonInspector{}
}

type jsonInspector struct{}

func (jsonInspector) Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return jsonView{raw: raw}, nil
}

type jsonView struct {
	raw []byte
}

func (v jsonView) get(path string) gjson.Result {
	return gjson.GetBytes(v.raw, path)
}

func (v jsonView) HasField(path string) bool {
	return v.get(path).Exists()
}

func (v jsonView) IsNull(path string) bool {
	r := v.get(path)
	return r.Exists() && r.Type == gjson.Null
}

func (v jsonView) GetBytes(path string) ([]byte, bool) {
	r := v.get(path)
	if !r.Exists() {
		return nil, false
	}
	return []byte(r.Raw), true
}

// ArgsFromJSON extracts the positional arguments of t from a JSON object
// keyed by property name. Each value is decoded into the property's type.
func ArgsFromJSON(t *Type, raw []byte) ([]any, error) {
	return ArgsFromView(t, raw, JSONInspector())
}

// ArgsFromView is ArgsFromJSON with a caller-supplied Inspector. Values
// returned by the View are decoded as JSON.
//
// An explicit null yields a nil argument, so building the event applies
// the same null rules as Instantiate: nil is rejected for value types and
// for properties marked with RequireNonNull.
func ArgsFromView(t *Type, raw []byte, insp Inspector) ([]any, error) {
	view, err := insp.Inspect(raw)
	if err != nil {
		return nil, &ArgumentError{Type: t.name, Reason: "cannot read document", Err: err}
	}

	args := make([]any, t.positional)
	for i, p := range t.properties[:t.positional] {
		if !view.HasField(p.Name) {
			return nil, &ArgumentError{Type: t.name, Property: p.Name, Reason: "missing from document"}
		}
		if view.IsNull(p.Name) {
			continue
		}
		b, _ := view.GetBytes(p.Name)
		ptr := reflect.New(p.Type)
		if err := json.Unmarshal(b, ptr.Interface()); err != nil {
			return nil, &ArgumentError{Type: t.name, Property: p.Name, Reason: "cannot decode value", Err: err}
		}
		args[i] = ptr.Elem().Interface()
	}
	return args, nil
}
