// Package fields describes and validates the fields each content type accepts.
package fields

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxCharLength is the longest value, in characters, a char field accepts.
const MaxCharLength = 255

// ServerManaged names the fields the store stamps itself. Clients may echo
// them back; they are dropped before validation.
var ServerManaged = []string{"created_at", "updated_at"}

// ErrInvalidField is matched by every validation failure.
var ErrInvalidField = errors.New("invalid field")

// Kind is the value type of a field.
type Kind string

const (
	Char Kind = "char" // string of at most MaxCharLength
	Text Kind = "text" // unbounded string
	Bool Kind = "bool"
	Ref  Kind = "ref" // integer id of another entity, or a list of them when Many
)

// Field describes one named field of a content type.
type Field struct {
	Name       string
	Label      string
	Kind       Kind
	Required   bool
	Many       bool
	Target     string // entity type referenced by a Ref field
	Default    any
	Searchable bool
}

// DefaultValue is the value stored when a create omits the field.
func (f Field) DefaultValue() any {
	if f.Many {
		return []any{}
	}
	return f.Default
}

// Validate checks v against the field kind and returns the normalized value.
// Ref ids are returned as int64 (or []int64 when Many).
func (f Field) Validate(v any) (any, error) {
	switch f.Kind {
	case Char, Text:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s data must be a string", f.label())
		}
		if f.Kind == Char && utf8.RuneCountInString(s) > MaxCharLength {
			return nil, fmt.Errorf("max length for %s is %d", f.label(), MaxCharLength)
		}
		return s, nil
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s must be a boolean", f.label())
		}
		return b, nil
	case Ref:
		if f.Many {
			list, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("%s data must be a list of integers", f.label())
			}
			ids := make([]int64, 0, len(list))
			for _, item := range list {
				id, ok := asInt(item)
				if !ok {
					return nil, fmt.Errorf("%s data must be a list of integers", f.label())
				}
				ids = append(ids, id)
			}
			return ids, nil
		}
		if v == nil && !f.Required {
			return nil, nil
		}
		id, ok := asInt(v)
		if !ok {
			return nil, fmt.Errorf("%s data must be an integer", f.label())
		}
		return id, nil
	}
	return nil, fmt.Errorf("%s has unknown kind %q", f.label(), f.Kind)
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// Errors collects per-field validation messages.
type Errors map[string]string

func (e Errors) Error() string {
	keys := slices.Sorted(maps.Keys(e))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid field: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrInvalidField.
func (e Errors) Is(target error) bool {
	return target == ErrInvalidField
}

// Reference is one entity id referenced from a record.
type Reference struct {
	Field  string
	Target string
	ID     int64
}

// Schema is the list of fields a content type accepts.
type Schema struct {
	Type   string
	Fields []Field
	// SlugFrom names the field a missing slug is derived from.
	SlugFrom string
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SearchFields returns the names of fields the q filter searches.
func (s Schema) SearchFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Searchable {
			out = append(out, f.Name)
		}
	}
	return out
}

// ValidateCreate checks a full record. Unknown fields are rejected, required
// fields must be present and omitted optional fields get their default.
func (s Schema) ValidateCreate(data map[string]any) (map[string]any, error) {
	out, errs := s.validate(data)
	for _, f := range s.Fields {
		if _, ok := data[f.Name]; ok {
			continue
		}
		switch {
		case f.Required:
			errs[f.Name] = "this field is required"
		case f.Many || f.Default != nil:
			out[f.Name] = f.DefaultValue()
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ValidatePatch checks a partial record. Only the named fields are validated.
func (s Schema) ValidatePatch(data map[string]any) (map[string]any, error) {
	out, errs := s.validate(data)
	for _, f := range s.Fields {
		if v, ok := out[f.Name]; ok && f.Required && isBlank(v) {
			errs[f.Name] = "this field may not be blank"
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func (s Schema) validate(data map[string]any) (map[string]any, Errors) {
	out := make(map[string]any, len(data))
	errs := Errors{}
	for name, v := range data {
		if name == "id" || slices.Contains(ServerManaged, name) {
			continue
		}
		f, ok := s.Field(name)
		if !ok {
			errs[name] = "unknown field"
			continue
		}
		norm, err := f.Validate(v)
		if err != nil {
			errs[name] = err.Error()
			continue
		}
		if f.Required && isBlank(norm) {
			errs[name] = "this field may not be blank"
			continue
		}
		out[name] = norm
	}
	return out, errs
}

// References lists the entity ids referenced by a validated record, ordered
// by field name.
func (s Schema) References(data map[string]any) []Reference {
	var out []Reference
	for _, f := range s.Fields {
		if f.Kind != Ref {
			continue
		}
		switch v := data[f.Name].(type) {
		case int64:
			out = append(out, Reference{Field: f.Name, Target: f.Target, ID: v})
		case []int64:
			for _, id := range v {
				out = append(out, Reference{Field: f.Name, Target: f.Target, ID: id})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
