// Package entitylist holds the per-type list state used by list-driven controls:
// an ordered result list from the last query and a normalized table of entities
// keyed by identifier.
//
// State values are immutable. Every transition returns a new State and leaves the
// receiver untouched, so snapshots can be handed to readers without copying.
package entitylist

import (
	"slices"

	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// Slice is the state dedicated to one entity type.
type Slice struct {
	results []string
	table   map[string]entity.Entity
}

// State maps entity type names to their slices. The zero value is an empty state.
type State struct {
	slices map[string]Slice
}

// New returns an empty state.
func New() State {
	return State{}
}

// ReplaceList replaces the result list of entityType with ids, keeping their order,
// and merges every record into the entity table. Existing records with the same
// identifier have their fields overwritten; fields absent from the record survive.
func (s State) ReplaceList(entityType string, ids []string, records []entity.Entity) State {
	cur := s.slice(entityType)
	next := Slice{
		results: slices.Clone(ids),
		table:   cur.table,
	}
	if next.results == nil {
		next.results = []string{}
	}
	if len(records) > 0 {
		next.table = cloneTable(cur.table)
		for _, rec := range records {
			next.table[rec.ID] = mergeInto(next.table, rec)
		}
	}
	return s.with(entityType, next)
}

// AppendCreated merges a newly created record into the entity table.
// The result list is left alone: a created entity shows up in it only once a
// later ReplaceList includes its identifier.
func (s State) AppendCreated(entityType string, record entity.Entity) State {
	cur := s.slice(entityType)
	table := cloneTable(cur.table)
	table[record.ID] = mergeInto(table, record)
	return s.with(entityType, Slice{results: cur.results, table: table})
}

// UpdateRecord shallow-merges fields into an existing record.
// An unknown identifier is a no-op and never creates an entry, which makes the
// update safe to repeat.
func (s State) UpdateRecord(entityType, id string, fields map[string]any) State {
	cur := s.slice(entityType)
	existing, ok := cur.table[id]
	if !ok {
		return s
	}
	table := cloneTable(cur.table)
	table[id] = existing.Merge(fields)
	return s.with(entityType, Slice{results: cur.results, table: table})
}

// Results returns a copy of the result list for entityType.
func (s State) Results(entityType string) []string {
	return slices.Clone(s.slice(entityType).results)
}

// Entity looks up a record by identifier.
func (s State) Entity(entityType, id string) (entity.Entity, bool) {
	e, ok := s.slice(entityType).table[id]
	if !ok {
		return entity.Entity{}, false
	}
	return e.Clone(), true
}

// Entities returns a copy of the entity table for entityType.
func (s State) Entities(entityType string) map[string]entity.Entity {
	table := s.slice(entityType).table
	out := make(map[string]entity.Entity, len(table))
	for id, e := range table {
		out[id] = e.Clone()
	}
	return out
}

// Resolve returns the records referenced by the result list, in list order.
// Identifiers without a record in the table are skipped.
func (s State) Resolve(entityType string) []entity.Entity {
	sl := s.slice(entityType)
	out := make([]entity.Entity, 0, len(sl.results))
	for _, id := range sl.results {
		if e, ok := sl.table[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Len returns the number of records in the entity table for entityType.
func (s State) Len(entityType string) int {
	return len(s.slice(entityType).table)
}

// Types returns the entity types that have state, sorted.
func (s State) Types() []string {
	out := make([]string, 0, len(s.slices))
	for t := range s.slices {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (s State) slice(entityType string) Slice {
	return s.slices[entityType]
}

// with returns a copy of s where entityType maps to sl.
func (s State) with(entityType string, sl Slice) State {
	next := make(map[string]Slice, len(s.slices)+1)
	for k, v := range s.slices {
		next[k] = v
	}
	next[entityType] = sl
	return State{slices: next}
}

func cloneTable(table map[string]entity.Entity) map[string]entity.Entity {
	out := make(map[string]entity.Entity, len(table)+1)
	for k, v := range table {
		out[k] = v
	}
	return out
}

func mergeInto(table map[string]entity.Entity, rec entity.Entity) entity.Entity {
	if existing, ok := table[rec.ID]; ok {
		return existing.Merge(rec.Fields)
	}
	return rec.Clone()
}
