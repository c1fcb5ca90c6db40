package apicore

import (
	"strings"
	"sync"
	"time"
)

// RequestRecord describes one handled request as shown by /admin/requests.
type RequestRecord struct {
	Timestamp  time.Time         `json:"timestamp"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      string            `json:"query,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	StatusCode int               `json:"status_code"`
	Duration   time.Duration     `json:"duration_ms"`
	RequestID  string            `json:"request_id,omitempty"`
	Replayed   bool              `json:"replayed,omitempty"`
	Faulted    bool              `json:"faulted,omitempty"`
}

// RequestFilter selects records. Zero fields match everything.
type RequestFilter struct {
	Method     string
	PathPrefix string
	StatusCode int
}

func (f RequestFilter) match(r RequestRecord) bool {
	if f.Method != "" && !strings.EqualFold(f.Method, r.Method) {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(r.Path, f.PathPrefix) {
		return false
	}
	return f.StatusCode == 0 || f.StatusCode == r.StatusCode
}

// RequestLog keeps the most recent requests in a fixed-size ring.
type RequestLog struct {
	mu   sync.RWMutex
	ring []RequestRecord
	next int
	full bool
}

// NewRequestLog creates a log holding at most size records.
func NewRequestLog(size int) *RequestLog {
	if size < 1 {
		size = 1
	}
	return &RequestLog{ring: make([]RequestRecord, size)}
}

// Add records r, overwriting the oldest record when the ring is full.
func (rl *RequestLog) Add(r RequestRecord) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.ring[rl.next] = r
	rl.next = (rl.next + 1) % len(rl.ring)
	if rl.next == 0 {
		rl.full = true
	}
}

// Entries returns all records, oldest first.
func (rl *RequestLog) Entries() []RequestRecord {
	return rl.Filter(RequestFilter{})
}

// Filter returns the records matching f, oldest first.
func (rl *RequestLog) Filter(f RequestFilter) []RequestRecord {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestRecord, 0, rl.lenLocked())
	start := 0
	if rl.full {
		start = rl.next
	}
	for i := range rl.lenLocked() {
		r := rl.ring[(start+i)%len(rl.ring)]
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of stored records.
func (rl *RequestLog) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.lenLocked()
}

func (rl *RequestLog) lenLocked() int {
	if rl.full {
		return len(rl.ring)
	}
	return rl.next
}

// Clear drops every record.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	clear(rl.ring)
	rl.next, rl.full = 0, false
}
