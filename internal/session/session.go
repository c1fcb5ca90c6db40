// Package session owns the entity-list state for one editing session.
//
// A Session applies transitions one at a time, hands out immutable snapshots and
// notifies subscribers after every change. It also guards list fetches against
// out-of-order responses: only the newest list request issued for a type may
// replace that type's result list.
package session

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/dispatch-cms/dispatch/pkg/entity"
	"github.com/dispatch-cms/dispatch/pkg/entitylist"
)

var (
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrStaleResponse is returned by CompleteList when a newer list request for
	// the same type was issued after the one being completed.
	ErrStaleResponse = errors.New("stale list response")
)

// Listener receives the state produced by each applied transition. Listeners
// may read the session but must not apply transitions from inside the call.
type Listener func(entitylist.State)

// Session holds the state for one authenticated user.
type Session struct {
	// notifyMu is held from commit through notification so listeners observe
	// states in commit order. It is always taken before mu.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	token     string
	state     entitylist.State
	closed    bool
	listeners map[uint64]Listener
	nextSub   uint64
	requests  map[string]uint64 // newest list request token per entity type
	nextReq   uint64
	logger    *slog.Logger
}

// New starts a session for the given auth token. A nil logger discards output.
func New(token string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		token:     token,
		state:     entitylist.New(),
		listeners: make(map[uint64]Listener),
		requests:  make(map[string]uint64),
		logger:    logger,
	}
}

// Token returns the auth token the session was started with.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Snapshot returns the current state. The value is immutable and safe to keep.
func (s *Session) Snapshot() entitylist.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called after each transition. The returned
// function removes the subscription and may be called more than once.
func (s *Session) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Apply reduces a into the state and notifies subscribers.
func (s *Session) Apply(a entitylist.Action) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state = entitylist.Reduce(s.state, a)
	next, listeners := s.state, s.listenersLocked()
	s.mu.Unlock()

	s.logger.Debug("applied action", "kind", a.Kind, "type", a.EntityType)
	notify(listeners, next)
	return nil
}

// ReplaceList replaces the result list of entityType without a staleness check.
func (s *Session) ReplaceList(entityType string, ids []string, records []entity.Entity) error {
	return s.Apply(entitylist.ReplaceListAction(entityType, ids, records))
}

// AppendCreated merges a newly created record.
func (s *Session) AppendCreated(entityType string, record entity.Entity) error {
	return s.Apply(entitylist.AppendCreatedAction(entityType, record))
}

// UpdateRecord merges fields into an existing record.
func (s *Session) UpdateRecord(entityType, id string, fields map[string]any) error {
	return s.Apply(entitylist.UpdateRecordAction(entityType, id, fields))
}

// BeginList records a new list request for entityType and returns its token.
// Tokens grow monotonically across all types.
func (s *Session) BeginList(entityType string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	s.nextReq++
	s.requests[entityType] = s.nextReq
	return s.nextReq, nil
}

// CompleteList applies the response to the list request identified by token.
// If a newer request for entityType has been issued since, the state is left
// unchanged and ErrStaleResponse is returned.
func (s *Session) CompleteList(token uint64, entityType string, ids []string, records []entity.Entity) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.requests[entityType] != token {
		s.mu.Unlock()
		s.logger.Debug("dropped stale list response", "type", entityType, "token", token)
		return ErrStaleResponse
	}
	s.state = s.state.ReplaceList(entityType, ids, records)
	next, listeners := s.state, s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, next)
	return nil
}

// Close ends the session and drops all subscribers. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = make(map[uint64]Listener)
	return nil
}

func (s *Session) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, id := range slices.Sorted(maps.Keys(s.listeners)) {
		out = append(out, s.listeners[id])
	}
	return out
}

// notify runs outside the lock so listeners may read the session.
func notify(listeners []Listener, state entitylist.State) {
	for _, fn := range listeners {
		fn(state)
	}
}
