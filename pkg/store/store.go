// Package store provides a thread-safe, in-memory collection of entity records
// for the content API. Collections keep insertion order for deterministic
// listing and hand out sequential numeric identifiers.
package store

import (
	"slices"
	"strconv"
	"sync"

	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// Collection holds the records of one entity type.
type Collection struct {
	mu    sync.RWMutex
	items map[string]entity.Entity
	order []string
	seq   uint64
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		items: make(map[string]entity.Entity),
		order: make([]string, 0),
	}
}

// NextID returns the next sequential identifier ("1", "2", ...).
func (c *Collection) NextID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return strconv.FormatUint(c.seq, 10)
}

// Put stores a record. An existing record with the same id is replaced but keeps
// its position in insertion order.
func (c *Collection) Put(e entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(e.Clone())
}

func (c *Collection) putLocked(e entity.Entity) {
	if _, exists := c.items[e.ID]; !exists {
		c.order = append(c.order, e.ID)
	}
	c.items[e.ID] = e
	if n, err := strconv.ParseUint(e.ID, 10, 64); err == nil && n > c.seq {
		c.seq = n
	}
}

// Get returns a copy of the record with the given id.
func (c *Collection) Get(id string) (entity.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[id]
	if !ok {
		return entity.Entity{}, false
	}
	return e.Clone(), true
}

// Patch shallow-merges fields into an existing record and returns the result.
// It reports false, and stores nothing, when id is unknown.
func (c *Collection) Patch(id string, fields map[string]any) (entity.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[id]
	if !ok {
		return entity.Entity{}, false
	}
	merged := e.Merge(fields)
	c.items[id] = merged
	return merged.Clone(), true
}

// Delete removes a record. Returns true if it existed.
func (c *Collection) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[id]; !exists {
		return false
	}
	delete(c.items, id)
	if i := slices.Index(c.order, id); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
	return true
}

// IDs returns all identifiers in insertion order.
func (c *Collection) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// List returns copies of all records in insertion order.
func (c *Collection) List() []entity.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id].Clone())
	}
	return out
}

// Lookup returns the records for ids in the given order, skipping unknown ids.
func (c *Collection) Lookup(ids []string) []entity.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := c.items[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Count returns the number of records.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset removes all records and restarts identifiers at 1.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entity.Entity)
	c.order = make([]string, 0)
	c.seq = 0
}

// Snapshot returns records in insertion order.
func (c *Collection) Snapshot() []entity.Entity {
	return c.List()
}

// LoadSnapshot replaces all records. The identifier sequence continues after the
// largest numeric id loaded.
func (c *Collection) LoadSnapshot(records []entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entity.Entity, len(records))
	c.order = make([]string, 0, len(records))
	c.seq = 0
	for _, e := range records {
		c.putLocked(e.Clone())
	}
}
