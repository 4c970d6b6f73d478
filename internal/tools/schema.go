package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ArgType enumerates the value types a tool argument may carry.
type ArgType string

const (
	TypeString     ArgType = "string"
	TypeInt        ArgType = "int"
	TypeBool       ArgType = "bool"
	TypeTime       ArgType = "time" // RFC 3339 timestamp
	TypeStringList ArgType = "stringList"
	TypeIntList    ArgType = "intList"
)

// ArgSpec declares one argument of a tool's schema.
type ArgSpec struct {
	Name        string
	Type        ArgType
	Required    bool
	Default     any
	Description string
}

// Schema is the ordered argument declaration of a tool.
type Schema []ArgSpec

// Args holds the arguments of a single invocation.
type Args map[string]any

// Normalize validates args against the schema and returns the
// canonical form: unknown keys rejected, required keys enforced,
// values coerced to their declared type and defaults applied. The
// canonical form is what gets fingerprinted, so two invocations that
// differ only in argument spelling (15 vs 15.0, an omitted default vs
// an explicit one) normalize identically.
func (s Schema) Normalize(args Args) (Args, error) {
	known := make(map[string]bool, len(s))
	for _, spec := range s {
		known[spec.Name] = true
	}
	for name := range args {
		if !known[name] {
			return nil, fmt.Errorf("%w: unknown argument %q", ErrInvalidArguments, name)
		}
	}

	out := make(Args, len(s))
	for _, spec := range s {
		raw, ok := args[spec.Name]
		if !ok || raw == nil {
			if spec.Required {
				return nil, fmt.Errorf("%w: missing required argument %q", ErrInvalidArguments, spec.Name)
			}
			if spec.Default != nil {
				value, err := coerce(spec.Type, spec.Default)
				if err != nil {
					return nil, fmt.Errorf("%w: default for %q: %v", ErrInvalidArguments, spec.Name, err)
				}
				out[spec.Name] = value
			}
			continue
		}
		value, err := coerce(spec.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %q: %v", ErrInvalidArguments, spec.Name, err)
		}
		out[spec.Name] = value
	}
	return out, nil
}

// JSONSchema renders the schema as a JSON Schema object, used when
// advertising tools to the reasoner and over MCP.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s))
	var required []string
	for _, spec := range s {
		prop := map[string]any{}
		switch spec.Type {
		case TypeString:
			prop["type"] = "string"
		case TypeInt:
			prop["type"] = "integer"
		case TypeBool:
			prop["type"] = "boolean"
		case TypeTime:
			prop["type"] = "string"
			prop["format"] = "date-time"
		case TypeStringList:
			prop["type"] = "array"
			prop["items"] = map[string]any{"type": "string"}
		case TypeIntList:
			prop["type"] = "array"
			prop["items"] = map[string]any{"type": "integer"}
		}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		if spec.Default != nil {
			prop["default"] = spec.Default
		}
		properties[spec.Name] = prop
		if spec.Required {
			required = append(required, spec.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func coerce(t ArgType, v any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeTime:
		if s, ok := v.(string); ok {
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("not an RFC 3339 timestamp: %q", s)
			}
			return ts.UTC().Format(time.RFC3339), nil
		}
	case TypeStringList:
		switch l := v.(type) {
		case []string:
			return append([]string(nil), l...), nil
		case []any:
			out := make([]string, 0, len(l))
			for _, item := range l {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected string element, got %T", item)
				}
				out = append(out, s)
			}
			return out, nil
		}
	case TypeIntList:
		switch l := v.(type) {
		case []int:
			out := make([]int64, 0, len(l))
			for _, n := range l {
				out = append(out, int64(n))
			}
			return out, nil
		case []int64:
			return append([]int64(nil), l...), nil
		case []any:
			out := make([]int64, 0, len(l))
			for _, item := range l {
				coerced, err := coerce(TypeInt, item)
				if err != nil {
					return nil, err
				}
				out = append(out, coerced.(int64))
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, v)
}

// Typed accessors for normalized arguments. They assume Normalize has
// run; a missing optional argument yields the zero value.

func stringArg(args Args, name string) string {
	s, _ := args[name].(string)
	return s
}

func intArg(args Args, name string) int {
	n, _ := args[name].(int64)
	return int(n)
}

func timeArg(args Args, name string) time.Time {
	s, ok := args[name].(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func stringListArg(args Args, name string) []string {
	l, _ := args[name].([]string)
	return l
}

func intListArg(args Args, name string) []int {
	l, ok := args[name].([]int64)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(l))
	for _, n := range l {
		out = append(out, int(n))
	}
	return out
}
