package validation

import (
	"regexp"
	"testing"
	"time"

	"github.com/refractio/refract/schema"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		kind    schema.Kind
		want    interface{}
		wantErr bool
	}{
		{"string", "hello", schema.KindString, "hello", false},
		{"string rejects number", float64(1), schema.KindString, nil, true},
		{"int from float64", float64(42), schema.KindInt, int64(42), false},
		{"int from int", 42, schema.KindInt, int64(42), false},
		{"int rejects fraction", 4.5, schema.KindInt, nil, true},
		{"int rejects string", "42", schema.KindInt, nil, true},
		{"float from int", 3, schema.KindFloat, float64(3), false},
		{"float from float64", 3.5, schema.KindFloat, 3.5, false},
		{"bool", true, schema.KindBool, true, false},
		{"bool rejects string", "true", schema.KindBool, nil, true},
		{"time from RFC3339", "2026-01-02T15:04:05Z", schema.KindTime,
			time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), false},
		{"time rejects other formats", "01/02/2026", schema.KindTime, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.value, tt.kind)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("coerce(%v, %s) = %v, want error", tt.value, tt.kind, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("coerce(%v, %s) failed: %v", tt.value, tt.kind, err)
			}
			if !valueEqual(got, tt.want) && got != tt.want {
				t.Errorf("coerce(%v, %s) = %v, want %v", tt.value, tt.kind, got, tt.want)
			}
		})
	}
}

func TestCoerceList(t *testing.T) {
	out, failures := coerceList([]interface{}{float64(1), float64(2)}, schema.KindInt)
	if failures != nil {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(out) != 2 || out[0] != int64(1) || out[1] != int64(2) {
		t.Errorf("coerceList = %v", out)
	}

	_, failures = coerceList([]interface{}{"a", float64(1), "b"}, schema.KindInt)
	if len(failures) != 2 {
		t.Errorf("failures = %v, want one per bad element", failures)
	}

	_, failures = coerceList("not a list", schema.KindString)
	if len(failures) != 1 {
		t.Errorf("failures = %v, want a single list-shape error", failures)
	}
}

func TestCheckConstraint(t *testing.T) {
	field := func(opts ...schema.FieldOption) *schema.Field {
		f := &schema.Field{Name: "x", Kind: schema.KindString}
		for _, opt := range opts {
			opt(f)
		}
		return f
	}

	tests := []struct {
		name       string
		constraint schema.Constraint
		value      interface{}
		wantErr    string
	}{
		{"min passes", schema.Constraint{Type: schema.ConstraintMin, Value: 10}, int64(10), ""},
		{"min fails", schema.Constraint{Type: schema.ConstraintMin, Value: 10}, int64(9), "must be at least 10"},
		{"max fails", schema.Constraint{Type: schema.ConstraintMax, Value: 5}, 5.5, "must be at most 5"},
		{"min_length fails", schema.Constraint{Type: schema.ConstraintMinLength, Value: 3}, "ab", "must be at least 3 characters"},
		{"max_length passes", schema.Constraint{Type: schema.ConstraintMaxLength, Value: 3}, "abc", ""},
		{"pattern fails", schema.Constraint{Type: schema.ConstraintPattern, Value: "^[a-z]+$"}, "Abc", "has an invalid format"},
		{"pattern accepts precompiled", schema.Constraint{Type: schema.ConstraintPattern, Value: regexp.MustCompile("^a")}, "abc", ""},
		{"email passes", schema.Constraint{Type: schema.ConstraintEmail}, "nina@example.com", ""},
		{"email fails", schema.Constraint{Type: schema.ConstraintEmail}, "not-an-address", "must be a valid email address"},
		{"email rejects display name", schema.Constraint{Type: schema.ConstraintEmail}, "Nina <nina@example.com>", "must be a valid email address"},
		{"url passes", schema.Constraint{Type: schema.ConstraintURL}, "https://example.com/a", ""},
		{"url fails without scheme", schema.Constraint{Type: schema.ConstraintURL}, "example.com/a", "must be a valid URL"},
		{"one_of passes across numeric types", schema.Constraint{Type: schema.ConstraintOneOf, Value: []interface{}{1, 2}}, int64(2), ""},
		{"one_of fails", schema.Constraint{Type: schema.ConstraintOneOf, Value: []interface{}{"draft", "live"}}, "gone", "must be one of"},
		{"constraint message wins", schema.Constraint{Type: schema.ConstraintMin, Value: 10, Message: "too small"}, int64(1), "too small"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkConstraint(field(), tt.constraint, tt.value)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if got := err.Error(); len(got) < len(tt.wantErr) || got[:len(tt.wantErr)] != tt.wantErr {
				t.Errorf("error = %q, want prefix %q", got, tt.wantErr)
			}
		})
	}
}

func TestErrorsMerge(t *testing.T) {
	nested := NewErrors()
	nested.Add("title", "is required")
	nested.Add(NonFieldKey, "broken")

	errs := NewErrors()
	errs.Merge("tracks.1", nested)

	if got := errs.Fields["tracks.1.title"]; len(got) != 1 || got[0] != "is required" {
		t.Errorf("merged fields = %v", errs.Fields)
	}
	if got := errs.Fields["tracks.1."+NonFieldKey]; len(got) != 1 {
		t.Errorf("merged object errors = %v", errs.Fields)
	}
	if errs.Count() != 2 {
		t.Errorf("Count = %d, want 2", errs.Count())
	}
}

func TestErrorsErrorIsDeterministic(t *testing.T) {
	errs := NewErrors()
	errs.Add("b", "second")
	errs.Add("a", "first")

	want := "validation failed: a: first; b: second"
	if got := errs.Error(); got != want {
		t.Errorf("Error = %q, want %q", got, want)
	}
}

func TestPayloadConsumeOnce(t *testing.T) {
	p := NewPayload(map[string]interface{}{"name": "x"}, false)

	fields, err := p.Consume()
	if err != nil {
		t.Fatalf("first Consume failed: %v", err)
	}
	if fields["name"] != "x" {
		t.Errorf("fields = %v", fields)
	}

	if _, err := p.Consume(); err != ErrPayloadConsumed {
		t.Errorf("second Consume = %v, want ErrPayloadConsumed", err)
	}
}
