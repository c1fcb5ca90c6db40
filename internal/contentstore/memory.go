// Package contentstore holds the content API's records in memory, one
// collection and one search index per entity type.
package contentstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"github.com/dispatch-cms/dispatch/internal/seed"
	"github.com/dispatch-cms/dispatch/pkg/auth"
	"github.com/dispatch-cms/dispatch/pkg/entity"
	"github.com/dispatch-cms/dispatch/pkg/fields"
	"github.com/dispatch-cms/dispatch/pkg/search"
	"github.com/dispatch-cms/dispatch/pkg/store"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnknownType = errors.New("unknown entity type")
)

// Query selects a window of a list, optionally filtered by free text.
type Query struct {
	Q      string
	Offset int
	Limit  int
}

// ListResult is one page of a list.
type ListResult struct {
	Count   int
	Next    *int
	Results []entity.Entity
}

type typeStore struct {
	schema fields.Schema
	coll   *store.Collection
	index  *search.Index
}

// MemoryStore holds all content state in memory.
type MemoryStore struct {
	mu       sync.RWMutex // serializes writes spanning a collection and its index
	types    map[string]*typeStore
	Users    *auth.Users
	Clock    *store.Clock
	fixtures *seed.Fixtures
	logger   *slog.Logger
}

// New creates an empty store with a collection for every known entity type.
func New(logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		types:  make(map[string]*typeStore),
		Users:  auth.NewUsers(),
		Clock:  store.NewClock(),
		logger: logger,
	}
	for _, typ := range entity.Types() {
		schema, ok := fields.For(typ)
		if !ok {
			return nil, fmt.Errorf("no schema for %s", typ)
		}
		idx, err := search.New(schema.SearchFields())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typ, err)
		}
		s.types[typ] = &typeStore{schema: schema, coll: store.NewCollection(), index: idx}
	}
	return s, nil
}

func (s *MemoryStore) typeStore(entityType string) (*typeStore, error) {
	ts, ok := s.types[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, entityType)
	}
	return ts, nil
}

// Schema returns the field schema of entityType.
func (s *MemoryStore) Schema(entityType string) (fields.Schema, error) {
	ts, err := s.typeStore(entityType)
	if err != nil {
		return fields.Schema{}, err
	}
	return ts.schema, nil
}

// List returns a page of records in insertion order. A non-empty q keeps only
// records whose searchable fields match it.
func (s *MemoryStore) List(entityType string, q Query) (ListResult, error) {
	ts, err := s.typeStore(entityType)
	if err != nil {
		return ListResult{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := ts.coll.IDs()
	if q.Q != "" {
		matches, err := ts.index.Matches(q.Q)
		if err != nil {
			return ListResult{}, err
		}
		filtered := make([]string, 0, len(matches))
		for _, id := range ids {
			if _, ok := matches[id]; ok {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}
	page := store.Paginate(ids, q.Offset, q.Limit)
	return ListResult{
		Count:   page.Count,
		Next:    page.Next,
		Results: ts.coll.Lookup(page.IDs),
	}, nil
}

// Get returns one record.
func (s *MemoryStore) Get(entityType, id string) (entity.Entity, error) {
	ts, err := s.typeStore(entityType)
	if err != nil {
		return entity.Entity{}, err
	}
	e, ok := ts.coll.Get(id)
	if !ok {
		return entity.Entity{}, fmt.Errorf("%s %s: %w", entityType, id, ErrNotFound)
	}
	return e, nil
}

// Create validates data and stores a new record with the next free id.
// Validation failures are fields.Errors.
func (s *MemoryStore) Create(entityType string, data map[string]any) (entity.Entity, error) {
	return s.create(entityType, "", data)
}

func (s *MemoryStore) create(entityType, id string, data map[string]any) (entity.Entity, error) {
	ts, err := s.typeStore(entityType)
	if err != nil {
		return entity.Entity{}, err
	}
	norm, err := ts.schema.ValidateCreate(data)
	if err != nil {
		return entity.Entity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRefs(ts.schema, norm); err != nil {
		return entity.Entity{}, err
	}
	if id == "" {
		id = ts.coll.NextID()
	} else if _, exists := ts.coll.Get(id); exists {
		return entity.Entity{}, fields.Errors{"id": "already exists"}
	}
	if err := s.assignSlug(ts, id, norm); err != nil {
		return entity.Entity{}, err
	}
	now := s.Clock.Now().Format(time.RFC3339)
	norm["created_at"] = now
	norm["updated_at"] = now

	e := entity.New(id, norm)
	ts.coll.Put(e)
	if err := ts.index.Put(e); err != nil {
		s.logger.Error("failed to index record", "type", entityType, "id", id, "err", err)
	}
	return e.Clone(), nil
}

// Update shallow-merges data into an existing record.
func (s *MemoryStore) Update(entityType, id string, data map[string]any) (entity.Entity, error) {
	ts, err := s.typeStore(entityType)
	if err != nil {
		return entity.Entity{}, err
	}
	norm, err := ts.schema.ValidatePatch(data)
	if err != nil {
		return entity.Entity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := ts.coll.Get(id); !ok {
		return entity.Entity{}, fmt.Errorf("%s %s: %w", entityType, id, ErrNotFound)
	}
	if err := s.checkRefs(ts.schema, norm); err != nil {
		return entity.Entity{}, err
	}
	if sl, ok := norm["slug"].(string); ok && sl != "" {
		if owner, taken := findSlug(ts.coll, sl); taken && owner != id {
			return entity.Entity{}, fields.Errors{"slug": "already exists"}
		}
	}
	norm["updated_at"] = s.Clock.Now().Format(time.RFC3339)

	merged, _ := ts.coll.Patch(id, norm)
	if err := ts.index.Put(merged); err != nil {
		s.logger.Error("failed to index record", "type", entityType, "id", id, "err", err)
	}
	return merged, nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(entityType, id string) error {
	ts, err := s.typeStore(entityType)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ts.coll.Delete(id) {
		return fmt.Errorf("%s %s: %w", entityType, id, ErrNotFound)
	}
	if err := ts.index.Delete(id); err != nil {
		s.logger.Error("failed to unindex record", "type", entityType, "id", id, "err", err)
	}
	return nil
}

// checkRefs verifies that every referenced entity exists.
func (s *MemoryStore) checkRefs(schema fields.Schema, data map[string]any) error {
	errs := fields.Errors{}
	for _, ref := range schema.References(data) {
		target, ok := s.types[ref.Target]
		if !ok {
			continue
		}
		id := strconv.FormatInt(ref.ID, 10)
		if _, exists := target.coll.Get(id); !exists {
			if _, seen := errs[ref.Field]; !seen {
				errs[ref.Field] = fmt.Sprintf("invalid pk %q - object does not exist", id)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// assignSlug derives a slug when the schema has one and none was given.
// Generated slugs get a numeric suffix on collision, explicit ones are rejected.
func (s *MemoryStore) assignSlug(ts *typeStore, id string, data map[string]any) error {
	if ts.schema.SlugFrom == "" {
		return nil
	}
	if sl, ok := data["slug"].(string); ok && sl != "" {
		if owner, taken := findSlug(ts.coll, sl); taken && owner != id {
			return fields.Errors{"slug": "already exists"}
		}
		return nil
	}
	src, _ := data[ts.schema.SlugFrom].(string)
	base := slug.Make(src)
	if base == "" {
		base = id
	}
	candidate := base
	for n := 2; ; n++ {
		if _, taken := findSlug(ts.coll, candidate); !taken {
			break
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	data["slug"] = candidate
	return nil
}

func findSlug(coll *store.Collection, sl string) (string, bool) {
	for _, e := range coll.List() {
		if e.String("slug") == sl {
			return e.ID, true
		}
	}
	return "", false
}

// LoadFixtures creates seed accounts and records and remembers them for Reset.
func (s *MemoryStore) LoadFixtures(f *seed.Fixtures) error {
	s.fixtures = f
	return s.applyFixtures()
}

func (s *MemoryStore) applyFixtures() error {
	if s.fixtures == nil {
		return nil
	}
	for _, u := range s.fixtures.Users {
		if err := s.Users.Add(u.Email, u.Password); err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
	}
	records, err := s.fixtures.Records()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := s.create(rec.Type, rec.ID, rec.Fields); err != nil {
			return fmt.Errorf("seed %s %s: %w", rec.Type, rec.ID, err)
		}
	}
	s.logger.Info("loaded fixtures", "users", len(s.fixtures.Users), "records", len(records))
	return nil
}

// Snapshot returns every record grouped by entity type.
func (s *MemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]entity.Entity, len(s.types))
	for typ, ts := range s.types {
		out[typ] = ts.coll.Snapshot()
	}
	return out
}

// LoadState replaces all records from a JSON snapshot. Types absent from the
// snapshot end up empty.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap map[string][]entity.Entity
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	for typ := range snap {
		if _, ok := s.types[typ]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownType, typ)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for typ, ts := range s.types {
		records := snap[typ]
		ts.coll.LoadSnapshot(records)
		if err := ts.index.Reset(); err != nil {
			return err
		}
		if len(records) > 0 {
			if err := ts.index.PutAll(records); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reset clears every record and reloads the fixtures. Accounts are kept.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	for _, ts := range s.types {
		ts.coll.Reset()
		if err := ts.index.Reset(); err != nil {
			s.logger.Error("failed to reset index", "err", err)
		}
	}
	s.mu.Unlock()
	s.Clock.Reset()

	if err := s.applyFixtures(); err != nil {
		s.logger.Error("failed to reload fixtures", "err", err)
	}
}

// Close releases the search indexes.
func (s *MemoryStore) Close() error {
	var errs []error
	for _, ts := range s.types {
		errs = append(errs, ts.index.Close())
	}
	return errors.Join(errs...)
}
