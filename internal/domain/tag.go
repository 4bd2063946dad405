package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrUnsupportedValue is returned when a tag value is not a string, number or boolean.
var ErrUnsupportedValue = errors.New("tag value must be a string, number or boolean")

// ValueKind identifies which scalar a Value holds.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	}
	return "invalid"
}

// Value is a closed scalar variant: exactly one of string, number or boolean.
// The zero Value is invalid and is rejected by validation.
type Value struct {
	kind ValueKind
	s    string
	n    float64
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf converts a loosely typed Go value into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		if !x.IsValid() {
			return Value{}, ErrUnsupportedValue
		}
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return numberOf(x)
	case float32:
		return numberOf(float64(x))
	case int:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return numberOf(f)
	}
	return Value{}, fmt.Errorf("%w (got %T)", ErrUnsupportedValue, v)
}

func numberOf(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: non-finite number", ErrUnsupportedValue)
	}
	return Number(f), nil
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsValid() bool   { return v.kind != KindInvalid }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Num returns the numeric payload and whether v is a number.
func (v Value) Num() (float64, bool) { return v.n, v.kind == KindNumber }

// Boolean returns the boolean payload and whether v is a boolean.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Float interprets v as a float, accepting numbers and numeric strings.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n
	case KindBool:
		return v.b == o.b
	}
	return true
}

// Same reports whether two values denote the same fact: equal, or equal in
// textual form. Identifiers arrive as numbers from some sources and as
// strings from others.
func (v Value) Same(o Value) bool {
	if v.Equal(o) {
		return true
	}
	vs, os := v.String(), o.String()
	return vs != "" && vs == os
}

// Forms returns v followed by every value of another kind that is Same as v.
// Exact-match lookups search for all of them.
func (v Value) Forms() []Value {
	out := []Value{v}
	switch v.kind {
	case KindNumber, KindBool:
		out = append(out, String(v.String()))
	case KindString:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			if n := Number(f); n.String() == v.s {
				out = append(out, n)
			}
		}
		if b, err := strconv.ParseBool(v.s); err == nil && strconv.FormatBool(b) == v.s {
			out = append(out, Bool(b))
		}
	}
	return out
}

// String renders the value as text.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Any returns the payload as a plain Go value.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsValid() {
		return nil, ErrUnsupportedValue
	}
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Tags maps tag keys to scalar values.
type Tags map[string]Value

// TagsFromMap converts a loosely typed map, reporting every key whose value
// is not a scalar.
func TagsFromMap(raw map[string]any) (Tags, error) {
	tags := make(Tags, len(raw))
	var errs []FieldError
	for _, k := range sortedKeys(raw) {
		v, err := ValueOf(raw[k])
		if err != nil {
			errs = append(errs, FieldError{Field: "tags." + k, Message: err.Error()})
			continue
		}
		tags[k] = v
	}
	if len(errs) > 0 {
		return nil, NewValidationErrors(errs)
	}
	return tags, nil
}

// Keys returns the tag keys in ascending order.
func (t Tags) Keys() []string { return sortedKeys(t) }

// Clone returns a shallow copy.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same keys with equal values.
func (t Tags) Equal(o Tags) bool {
	if len(t) != len(o) {
		return false
	}
	for k, v := range t {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ToMap returns a plain map suitable for generic encoders.
func (t Tags) ToMap() map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = v.Any()
	}
	return out
}

// Validate checks that keys are non-blank and every value is a valid scalar.
func (t Tags) Validate() []FieldError {
	var errs []FieldError
	for _, k := range t.Keys() {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, FieldError{Field: "tags", Message: "blank key"})
			continue
		}
		if !t[k].IsValid() {
			errs = append(errs, FieldError{Field: "tags." + k, Message: ErrUnsupportedValue.Error()})
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
