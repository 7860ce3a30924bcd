// Package schema declares the session variables an action expects.
//
// A schema maps variable names to type strings:
//
//	inputs:
//	  order_id: string
//	  quantity: int
//	  tags: "[string]"
//	  note: string?
//
// A trailing "?" makes a variable optional. Numbers decoded from JSON are
// float64, so "int" accepts whole floats.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type validates one value.
type Type interface {
	Name() string
	Validate(value any) error
}

type scalar struct {
	name  string
	check func(any) bool
}

func (t scalar) Name() string { return t.name }

func (t scalar) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

var (
	stringType = scalar{"string", func(v any) bool { _, ok := v.(string); return ok }}
	boolType   = scalar{"bool", func(v any) bool { _, ok := v.(bool); return ok }}
	intType    = scalar{"int", func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	}}
	floatType = scalar{"float", func(v any) bool {
		switch v.(type) {
		case float32, float64, int, int8, int16, int32, int64:
			return true
		}
		return false
	}}
	anyType = scalar{"any", func(v any) bool { return v != nil }}
)

type slice struct{ elem Type }

func (t slice) Name() string { return "[" + t.elem.Name() + "]" }

func (t slice) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Field is one declared variable.
type Field struct {
	Type     Type
	Optional bool
}

// Schema maps variable names to their declaration.
type Schema map[string]Field

// ParseType converts "string", "int", "float", "bool", "any" or "[T]" to a Type.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return slice{elem}, nil
	}
	switch s {
	case "string":
		return stringType, nil
	case "int":
		return intType, nil
	case "float":
		return floatType, nil
	case "bool":
		return boolType, nil
	case "any":
		return anyType, nil
	}
	return nil, fmt.Errorf("unsupported type %q", s)
}

// Parse builds a schema from type strings.
func Parse(types map[string]string) (Schema, error) {
	out := make(Schema, len(types))
	for name, s := range types {
		optional := strings.HasSuffix(s, "?")
		t, err := ParseType(strings.TrimSuffix(s, "?"))
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		out[name] = Field{Type: t, Optional: optional}
	}
	return out, nil
}

// Problem is one variable that failed validation.
type Problem struct {
	Var    string
	Reason string
}

// Error lists every problem found by Validate.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("$%s %s", p.Var, p.Reason)
	}
	return "invalid variables: " + strings.Join(parts, "; ")
}

// Validate checks vars against s. Variables not in s are ignored.
func (s Schema) Validate(vars map[string]any) error {
	var problems []Problem
	for _, name := range s.names() {
		f := s[name]
		v, ok := vars[name]
		if !ok || v == nil {
			if !f.Optional {
				problems = append(problems, Problem{Var: name, Reason: "is required"})
			}
			continue
		}
		if err := f.Type.Validate(v); err != nil {
			problems = append(problems, Problem{Var: name, Reason: err.Error()})
		}
	}
	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

func (s Schema) names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s Schema) types() map[string]string {
	out := make(map[string]string, len(s))
	for name, f := range s {
		t := f.Type.Name()
		if f.Optional {
			t += "?"
		}
		out[name] = t
	}
	return out
}

// MarshalJSON writes the schema as type strings.
func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.types())
}

// UnmarshalJSON reads the schema from type strings.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalYAML reads the schema from type strings.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}
