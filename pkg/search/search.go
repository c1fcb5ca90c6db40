// Package search maintains in-memory full-text indexes used to answer the
// content API's q filter.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// Index is a full-text index over a fixed set of fields of one entity type.
type Index struct {
	mu     sync.RWMutex
	idx    bleve.Index
	fields []string
}

// New creates an empty in-memory index over fields.
func New(fields []string) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{idx: idx, fields: append([]string(nil), fields...)}, nil
}

// Fields returns the indexed field names.
func (i *Index) Fields() []string {
	return append([]string(nil), i.fields...)
}

// Put indexes or re-indexes a record. Non-searchable fields are ignored.
func (i *Index) Put(e entity.Entity) error {
	doc := make(map[string]string, len(i.fields))
	for _, f := range i.fields {
		if v := e.String(f); v != "" {
			doc[f] = v
		}
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := i.idx.Index(e.ID, doc); err != nil {
		return fmt.Errorf("index %s: %w", e.ID, err)
	}
	return nil
}

// PutAll indexes records in one batch.
func (i *Index) PutAll(records []entity.Entity) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	batch := i.idx.NewBatch()
	for _, e := range records {
		doc := make(map[string]string, len(i.fields))
		for _, f := range i.fields {
			if v := e.String(f); v != "" {
				doc[f] = v
			}
		}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("batch %s: %w", e.ID, err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	return nil
}

// Delete removes a record from the index.
func (i *Index) Delete(id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.idx.Delete(id)
}

// Search returns the identifiers matching q, best match first.
func (i *Index) Search(q string) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	total, err := i.idx.DocCount()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []string{}, nil
	}

	req := bleve.NewSearchRequestOptions(i.buildQuery(q), int(total), 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.ID)
	}
	return out, nil
}

// Matches returns the set of identifiers matching q.
func (i *Index) Matches(q string) (map[string]struct{}, error) {
	ids, err := i.Search(q)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// buildQuery combines match, prefix, fuzzy and substring queries on every
// field. A document matches when any of them does.
func (i *Index) buildQuery(q string) query.Query {
	lower := strings.ToLower(strings.TrimSpace(q))
	terms := strings.Fields(lower)

	bq := bleve.NewBooleanQuery()
	for _, field := range i.fields {
		match := bleve.NewMatchQuery(q)
		match.SetField(field)
		match.SetBoost(3.0)
		bq.AddShould(match)

		for _, term := range terms {
			prefix := bleve.NewPrefixQuery(term)
			prefix.SetField(field)
			prefix.SetBoost(2.0)
			bq.AddShould(prefix)

			contains := bleve.NewWildcardQuery("*" + term + "*")
			contains.SetField(field)
			contains.SetBoost(1.5)
			bq.AddShould(contains)

			// one edit on very short terms matches nearly everything
			if len(term) >= 4 {
				fuzzy := bleve.NewFuzzyQuery(term)
				fuzzy.SetField(field)
				fuzzy.SetFuzziness(1)
				fuzzy.SetBoost(1.0)
				bq.AddShould(fuzzy)
			}
		}
	}
	bq.SetMinShould(1)
	return bq
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.idx.DocCount()
}

// Reset drops every document.
func (i *Index) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	fresh, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}
	old := i.idx
	i.idx = fresh
	return old.Close()
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.idx.Close()
}
