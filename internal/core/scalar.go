package core

// scalar.go defines the value types carried in a keyword's extra data.
//
// Tool exports contain many columns beyond the canonical keyword fields
// (CPC, SERP features, parent topic, bid ranges). Those land in ExtraData,
// an insertion-ordered map whose values are restricted to Scalar: a string,
// a number or a bool. Anything else is rejected at the decoding boundary.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ScalarKind identifies which variant a Scalar holds.
type ScalarKind int

const (
	ScalarNone ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarString:
		return "string"
	case ScalarNumber:
		return "number"
	case ScalarBool:
		return "bool"
	default:
		return "none"
	}
}

// Scalar is a closed string | number | bool value. The zero value holds
// nothing and reports IsZero.
type Scalar struct {
	kind ScalarKind
	str  string
	num  float64
	b    bool
}

// StringValue wraps s.
func StringValue(s string) Scalar { return Scalar{kind: ScalarString, str: s} }

// NumberValue wraps f.
func NumberValue(f float64) Scalar { return Scalar{kind: ScalarNumber, num: f} }

// BoolValue wraps b.
func BoolValue(b bool) Scalar { return Scalar{kind: ScalarBool, b: b} }

func (s Scalar) Kind() ScalarKind { return s.kind }

// IsZero reports whether s holds no value.
func (s Scalar) IsZero() bool { return s.kind == ScalarNone }

// Str returns the string variant.
func (s Scalar) Str() (string, bool) { return s.str, s.kind == ScalarString }

// Number returns the number variant.
func (s Scalar) Number() (float64, bool) { return s.num, s.kind == ScalarNumber }

// Bool returns the bool variant.
func (s Scalar) Bool() (bool, bool) { return s.b, s.kind == ScalarBool }

// Equal compares kind and value.
func (s Scalar) Equal(o Scalar) bool {
	if s.kind != o.kind {
		return false
	}
	switch s.kind {
	case ScalarString:
		return s.str == o.str
	case ScalarNumber:
		return s.num == o.num
	case ScalarBool:
		return s.b == o.b
	}
	return true
}

// String renders the value for change lines and logs.
func (s Scalar) String() string {
	switch s.kind {
	case ScalarString:
		return s.str
	case ScalarNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case ScalarBool:
		return strconv.FormatBool(s.b)
	}
	return ""
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case ScalarString:
		return json.Marshal(s.str)
	case ScalarNumber:
		return json.Marshal(s.num)
	case ScalarBool:
		return json.Marshal(s.b)
	}
	return []byte("null"), nil
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	sc, err := scalarFromJSON(v)
	if err != nil {
		return err
	}
	*s = sc
	return nil
}

func scalarFromJSON(v any) (Scalar, error) {
	switch t := v.(type) {
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Scalar{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return NumberValue(f), nil
	case float64:
		return NumberValue(t), nil
	case nil:
		return Scalar{}, nil
	}
	return Scalar{}, fmt.Errorf("extra data value must be a string, number or bool, got %T", v)
}

// ExtraData is an insertion-ordered map from key to Scalar. The zero value
// is ready to use. Copies share storage; use Clone before mutating a copy.
type ExtraData struct {
	keys   []string
	values map[string]Scalar
}

// Set stores v under key, keeping the key's original position when it
// already exists.
func (e *ExtraData) Set(key string, v Scalar) {
	if e.values == nil {
		e.values = make(map[string]Scalar)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = v
}

func (e ExtraData) Get(key string) (Scalar, bool) {
	v, ok := e.values[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (e ExtraData) GetString(key string) (string, bool) {
	v, ok := e.values[key]
	if !ok {
		return "", false
	}
	return v.Str()
}

func (e ExtraData) Has(key string) bool {
	_, ok := e.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (e ExtraData) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

func (e ExtraData) Len() int { return len(e.keys) }

// Clone returns an independent copy.
func (e ExtraData) Clone() ExtraData {
	c := ExtraData{
		keys:   make([]string, len(e.keys)),
		values: make(map[string]Scalar, len(e.values)),
	}
	copy(c.keys, e.keys)
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON writes an object whose members follow insertion order.
func (e ExtraData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := e.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping member order. Nested objects and
// arrays are rejected.
func (e *ExtraData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*e = ExtraData{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("extra data must be a JSON object")
	}

	out := ExtraData{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("extra data key must be a string")
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := scalarFromJSON(raw)
		if err != nil {
			return fmt.Errorf("extra data %q: %w", key, err)
		}
		if v.IsZero() {
			continue
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*e = out
	return nil
}
