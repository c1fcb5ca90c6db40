package client

import (
	"context"

	"github.com/dispatch-cms/dispatch/internal/session"
	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// Fetcher runs API calls on behalf of a session and feeds the results into it.
// A failed call never modifies the session.
type Fetcher struct {
	client *Client
}

// NewFetcher wraps c.
func NewFetcher(c *Client) *Fetcher {
	return &Fetcher{client: c}
}

// ListInto fetches entityType matching q and replaces the session's result
// list. A response overtaken by a later ListInto for the same type returns
// session.ErrStaleResponse and is discarded.
func (f *Fetcher) ListInto(ctx context.Context, s *session.Session, entityType string, q Query) (ListResult, error) {
	token, err := s.BeginList(entityType)
	if err != nil {
		return ListResult{}, err
	}
	res, err := f.client.List(ctx, s.Token(), entityType, q)
	if err != nil {
		return ListResult{}, err
	}
	if err := s.CompleteList(token, entityType, res.IDs, res.Records); err != nil {
		return res, err
	}
	return res, nil
}

// CreateInto creates a record and merges it into the session's entity table.
func (f *Fetcher) CreateInto(ctx context.Context, s *session.Session, entityType string, fields map[string]any) (entity.Entity, error) {
	e, err := f.client.Create(ctx, s.Token(), entityType, fields)
	if err != nil {
		return entity.Entity{}, err
	}
	if err := s.AppendCreated(entityType, e); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateInto patches a record and merges the server's copy into the session.
func (f *Fetcher) UpdateInto(ctx context.Context, s *session.Session, entityType, id string, fields map[string]any) (entity.Entity, error) {
	e, err := f.client.Update(ctx, s.Token(), entityType, id, fields)
	if err != nil {
		return entity.Entity{}, err
	}
	if err := s.UpdateRecord(entityType, id, e.Fields); err != nil {
		return e, err
	}
	return e, nil
}
