// Package entity defines the normalized record shared by the content API,
// the fetch client and the entity-list state.
package entity

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Entity is a record with a stable identifier and a set of named fields.
// The identifier is never stored inside Fields.
type Entity struct {
	ID     string
	Fields map[string]any
}

// New creates an entity, copying the given fields. An "id" key in fields is ignored.
func New(id string, fields map[string]any) Entity {
	e := Entity{ID: id, Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		e.Fields[k] = v
	}
	return e
}

// Clone returns a copy whose field map can be modified independently.
func (e Entity) Clone() Entity {
	return Entity{ID: e.ID, Fields: maps.Clone(e.fieldsOrEmpty())}
}

// Merge returns a new entity with partial merged over e's fields.
// Fields not named in partial are preserved and the identifier never changes.
func (e Entity) Merge(partial map[string]any) Entity {
	out := e.Clone()
	for k, v := range partial {
		if k == "id" {
			continue
		}
		out.Fields[k] = v
	}
	return out
}

// Get returns a field value.
func (e Entity) Get(field string) (any, bool) {
	v, ok := e.Fields[field]
	return v, ok
}

// Keys returns the field names, sorted.
func (e Entity) Keys() []string {
	return slices.Sorted(maps.Keys(e.Fields))
}

// String returns a field rendered as text, or "" when absent.
func (e Entity) String(field string) string {
	v, ok := e.Fields[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Equal reports whether two entities have the same id and field values.
func (e Entity) Equal(other Entity) bool {
	if e.ID != other.ID || len(e.fieldsOrEmpty()) != len(other.fieldsOrEmpty()) {
		return false
	}
	a, err := json.Marshal(e)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

func (e Entity) fieldsOrEmpty() map[string]any {
	if e.Fields == nil {
		return map[string]any{}
	}
	return e.Fields
}

// MarshalJSON renders the entity as a flat object with "id" next to the fields.
func (e Entity) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		flat[k] = v
	}
	flat["id"] = e.ID
	return json.Marshal(flat)
}

// UnmarshalJSON accepts a flat object. Numeric ids are normalized to strings.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	id, err := NormalizeID(flat["id"])
	if err != nil {
		return err
	}
	*e = New(id, flat)
	return nil
}

// NormalizeID converts a decoded JSON id (string or number) into its string form.
func NormalizeID(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("entity id is empty")
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case json.Number:
		return v.String(), nil
	case nil:
		return "", fmt.Errorf("entity id is missing")
	default:
		return "", fmt.Errorf("unsupported entity id type %T", raw)
	}
}
