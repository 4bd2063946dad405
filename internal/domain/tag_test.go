package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValueOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"string", "Cafe X", String("Cafe X")},
		{"float", 52.5, Number(52.5)},
		{"int", 42, Number(42)},
		{"int64", int64(7), Number(7)},
		{"bool", true, Bool(true)},
		{"json number", json.Number("3.25"), Number(3.25)},
		{"value", String("x"), String("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValueOf(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ValueOf(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValueOf_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []any{nil, map[string]any{"a": 1}, []any{"x"}, struct{}{}, Value{}} {
		if _, err := ValueOf(in); !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("ValueOf(%#v) err = %v, want ErrUnsupportedValue", in, err)
		}
	}
}

func TestValue_Equal_KindSensitive(t *testing.T) {
	t.Parallel()

	if String("1").Equal(Number(1)) {
		t.Fatal("string and number must not be equal")
	}
	if !Number(1).Equal(Number(1.0)) {
		t.Fatal("equal numbers must be equal")
	}
	if Bool(true).Equal(Bool(false)) {
		t.Fatal("true != false")
	}
}

func TestValue_Same_AcceptsTextualForm(t *testing.T) {
	t.Parallel()

	if !Number(42).Same(String("42")) || !String("42").Same(Number(42)) {
		t.Fatal("42 and \"42\" must be the same fact")
	}
	if Number(42).Same(String("042")) {
		t.Fatal("\"042\" is not the textual form of 42")
	}
	if String("").Same(Value{}) {
		t.Fatal("empty text must not match")
	}
}

func TestValue_Forms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Value
		want []Value
	}{
		{Number(42), []Value{Number(42), String("42")}},
		{String("42"), []Value{String("42"), Number(42)}},
		{String("042"), []Value{String("042")}},
		{String("1e3"), []Value{String("1e3")}},
		{String("true"), []Value{String("true"), Bool(true)}},
		{Bool(false), []Value{Bool(false), String("false")}},
		{String("Q64"), []Value{String("Q64")}},
	}
	for _, tt := range tests {
		got := tt.in.Forms()
		if len(got) != len(tt.want) {
			t.Errorf("%v.Forms() = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if !got[i].Equal(tt.want[i]) {
				t.Errorf("%v.Forms()[%d] = %#v, want %#v", tt.in, i, got[i], tt.want[i])
			}
			if !got[i].Same(tt.in) {
				t.Errorf("%v.Forms()[%d] is not Same as the input", tt.in, i)
			}
		}
	}
}

func TestValue_Float(t *testing.T) {
	t.Parallel()

	if f, ok := String(" 52.52 ").Float(); !ok || f != 52.52 {
		t.Fatalf("Float() = %v, %v", f, ok)
	}
	if _, ok := String("north").Float(); ok {
		t.Fatal("non-numeric string must not parse")
	}
	if _, ok := Bool(true).Float(); ok {
		t.Fatal("bool must not parse")
	}
}

func TestValue_String(t *testing.T) {
	t.Parallel()

	if got := Number(13.4).String(); got != "13.4" {
		t.Errorf("Number.String() = %q", got)
	}
	if got := Number(100).String(); got != "100" {
		t.Errorf("Number.String() = %q", got)
	}
	if got := Bool(false).String(); got != "false" {
		t.Errorf("Bool.String() = %q", got)
	}
}

func TestTags_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	tags := Tags{"name": String("Cafe X"), "level": Number(2), "wheelchair": Bool(true)}
	data, err := json.Marshal(tags)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"level":2,"name":"Cafe X","wheelchair":true}` {
		t.Fatalf("unexpected json: %s", data)
	}

	var back Tags
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(tags) {
		t.Fatalf("round trip mismatch: %v", back)
	}
}

func TestTags_UnmarshalRejectsNonScalars(t *testing.T) {
	t.Parallel()

	for _, in := range []string{`{"a":null}`, `{"a":{"b":1}}`, `{"a":[1,2]}`} {
		var tags Tags
		if err := json.Unmarshal([]byte(in), &tags); err == nil {
			t.Errorf("Unmarshal(%s) should fail", in)
		}
	}
}

func TestTagsFromMap(t *testing.T) {
	t.Parallel()

	tags, err := TagsFromMap(map[string]any{"name": "X", "capacity": 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 2 || !tags["capacity"].Equal(Number(12)) {
		t.Fatalf("unexpected tags: %v", tags)
	}

	_, err = TagsFromMap(map[string]any{"name": "X", "opening": []string{"mo"}, "geo": map[string]any{}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Errors) != 2 || ve.Errors[0].Field != "tags.geo" || ve.Errors[1].Field != "tags.opening" {
		t.Fatalf("unexpected field errors: %+v", ve.Errors)
	}
}

func TestTags_Validate(t *testing.T) {
	t.Parallel()

	errs := Tags{" ": String("x"), "bad": {}, "ok": String("y")}.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %+v", errs)
	}
}
