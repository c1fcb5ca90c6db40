// Package seed parses YAML fixture files that pre-populate the content API.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// User is a login account created at start.
type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Fixtures is a parsed seed file.
type Fixtures struct {
	Users    []User                      `yaml:"users"`
	Entities map[string][]map[string]any `yaml:"entities"`
}

// loadOrder lists types so referenced entities are created before the
// records pointing at them.
var loadOrder = []string{
	entity.Images,
	entity.Persons,
	entity.Sections,
	entity.Topics,
	entity.Tags,
	entity.Articles,
	entity.Polls,
}

// Load reads and parses a seed file.
func Load(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses seed YAML and checks entity types and users.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	for typ := range f.Entities {
		if !entity.IsKnownType(typ) {
			return nil, fmt.Errorf("unknown entity type %q", typ)
		}
	}
	for i, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("user %d: email and password are required", i)
		}
	}
	return &f, nil
}

// Record is one fixture entry with its optional explicit id.
type Record struct {
	Type   string
	ID     string // empty when the fixture leaves id assignment to the store
	Fields map[string]any
}

// Records returns every fixture entry in load order.
func (f *Fixtures) Records() ([]Record, error) {
	var out []Record
	for _, typ := range loadOrder {
		for i, raw := range f.Entities[typ] {
			rec := Record{Type: typ, Fields: make(map[string]any, len(raw))}
			for k, v := range raw {
				if k == "id" {
					id, err := entity.NormalizeID(v)
					if err != nil {
						return nil, fmt.Errorf("%s[%d]: %w", typ, i, err)
					}
					rec.ID = id
					continue
				}
				rec.Fields[k] = normalize(v)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// normalize converts YAML sequences into the []any shape JSON decoding produces.
func normalize(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case int:
		return float64(t)
	}
	return v
}
