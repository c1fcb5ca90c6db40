// Package selectinput drives a searchable multi-select over one entity type.
//
// A Control projects the session's list state into Props for rendering and
// turns user intents (typing a query, changing the selection, creating a new
// item) into fetches against the content API.
package selectinput

import (
	"context"
	"slices"

	"github.com/dispatch-cms/dispatch/internal/client"
	"github.com/dispatch-cms/dispatch/internal/session"
	"github.com/dispatch-cms/dispatch/pkg/entity"
	"github.com/dispatch-cms/dispatch/pkg/entitylist"
)

// Fetcher is the part of client.Fetcher a Control needs.
type Fetcher interface {
	ListInto(ctx context.Context, s *session.Session, entityType string, q client.Query) (client.ListResult, error)
	CreateInto(ctx context.Context, s *session.Session, entityType string, fields map[string]any) (entity.Entity, error)
}

// Option is one selectable item.
type Option struct {
	ID    string
	Label string
}

// Props is what a select input renders.
type Props struct {
	Value       []string
	Results     []string
	Entities    map[string]entity.Entity
	Attribute   string
	EditMessage string
}

// Options returns the current results in list order, labelled by Attribute.
// Results without a record are skipped.
func (p Props) Options() []Option {
	return p.options(p.Results)
}

// Selected returns the selected items, labelled by Attribute.
func (p Props) Selected() []Option {
	return p.options(p.Value)
}

// IsSelected reports whether id is part of Value.
func (p Props) IsSelected(id string) bool {
	return slices.Contains(p.Value, id)
}

func (p Props) options(ids []string) []Option {
	out := make([]Option, 0, len(ids))
	for _, id := range ids {
		e, ok := p.Entities[id]
		if !ok {
			continue
		}
		out = append(out, Option{ID: id, Label: e.String(p.Attribute)})
	}
	return out
}

// Config describes the entity type a Control selects from.
type Config struct {
	EntityType string
	Attribute  string
	// Plural is used in the edit message; defaults to EntityType.
	Plural string
}

// EditMessage returns "Edit <plural>" when something is selected and
// "Add <plural>" otherwise.
func (c Config) EditMessage(value []string) string {
	plural := c.Plural
	if plural == "" {
		plural = c.EntityType
	}
	if len(value) > 0 {
		return "Edit " + plural
	}
	return "Add " + plural
}

// Project builds Props for cfg from a state snapshot and the current value.
func Project(state entitylist.State, cfg Config, value []string) Props {
	return Props{
		Value:       slices.Clone(value),
		Results:     state.Results(cfg.EntityType),
		Entities:    state.Entities(cfg.EntityType),
		Attribute:   cfg.Attribute,
		EditMessage: cfg.EditMessage(value),
	}
}

// Control binds a Config to a session and a fetcher.
type Control struct {
	cfg      Config
	session  *session.Session
	fetcher  Fetcher
	value    []string
	onChange func([]string)
}

// New creates a Control. onChange receives every selection change and may be nil.
func New(s *session.Session, f Fetcher, cfg Config, value []string, onChange func([]string)) *Control {
	return &Control{
		cfg:      cfg,
		session:  s,
		fetcher:  f,
		value:    slices.Clone(value),
		onChange: onChange,
	}
}

// NewTagSelect creates a Control over tags labelled by name.
func NewTagSelect(s *session.Session, f Fetcher, value []string, onChange func([]string)) *Control {
	return New(s, f, Config{EntityType: entity.Tags, Attribute: "name", Plural: "tags"}, value, onChange)
}

// Props projects the session's current state.
func (c *Control) Props() Props {
	return Project(c.session.Snapshot(), c.cfg, c.value)
}

// QueryChanged fetches results for q. An empty query lists without a filter.
func (c *Control) QueryChanged(ctx context.Context, q string) error {
	_, err := c.fetcher.ListInto(ctx, c.session, c.cfg.EntityType, client.Query{Q: q})
	return err
}

// SelectionChanged replaces the selected ids and reports them to onChange.
func (c *Control) SelectionChanged(value []string) {
	c.value = slices.Clone(value)
	if c.onChange != nil {
		c.onChange(slices.Clone(value))
	}
}

// Toggle adds id to the selection, or removes it when already selected.
func (c *Control) Toggle(id string) {
	next := slices.Clone(c.value)
	if i := slices.Index(next, id); i >= 0 {
		next = slices.Delete(next, i, i+1)
	} else {
		next = append(next, id)
	}
	c.SelectionChanged(next)
}

// CreateRequested creates an item whose display attribute is name and passes
// the result to cb. The new item is not selected automatically.
func (c *Control) CreateRequested(ctx context.Context, name string, cb func(entity.Entity, error)) {
	e, err := c.fetcher.CreateInto(ctx, c.session, c.cfg.EntityType, map[string]any{c.cfg.Attribute: name})
	if cb != nil {
		cb(e, err)
	}
}
