package apicore

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

// Fault is an injected failure for requests whose path matches a pattern.
// Patterns use path.Match syntax, so "/api/*/" faults every list endpoint.
type Fault struct {
	StatusCode int     `json:"status_code"`
	Body       string  `json:"body,omitempty"`
	DelayMS    int     `json:"delay_ms,omitempty"`
	Rate       float64 `json:"rate"` // probability of firing, 0 means always
	// Method restricts the fault to one HTTP method.
	Method string `json:"method,omitempty"`
	// Times fires the fault that many times and then removes it; 0 is unlimited.
	Times int `json:"times,omitempty"`
}

// Delay returns the injected delay.
func (f Fault) Delay() time.Duration {
	return time.Duration(f.DelayMS) * time.Millisecond
}

// FaultRegistry holds the injected faults keyed by path pattern.
type FaultRegistry struct {
	mu     sync.Mutex
	faults map[string]Fault
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]Fault)}
}

// Set registers f for pattern, replacing any fault already there.
func (fr *FaultRegistry) Set(pattern string, f Fault) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid fault pattern %q: %w", pattern, err)
	}
	if f.Rate <= 0 || f.Rate > 1 {
		f.Rate = 1
	}
	f.Method = strings.ToUpper(f.Method)
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults[pattern] = f
	return nil
}

// Remove deletes the fault for pattern and reports whether one existed.
func (fr *FaultRegistry) Remove(pattern string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, ok := fr.faults[pattern]
	delete(fr.faults, pattern)
	return ok
}

// Check returns the fault that fires for a request, or nil. An exact pattern
// wins over wildcards; wildcards are tried in lexical order.
func (fr *FaultRegistry) Check(method, urlPath string) *Fault {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	pattern, ok := fr.matchLocked(method, urlPath)
	if !ok {
		return nil
	}
	f := fr.faults[pattern]
	if f.Rate < 1 && rand.Float64() >= f.Rate {
		return nil
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(fr.faults, pattern)
		} else {
			fr.faults[pattern] = f
		}
	}
	return &f
}

func (fr *FaultRegistry) matchLocked(method, urlPath string) (string, bool) {
	applies := func(f Fault) bool {
		return f.Method == "" || f.Method == strings.ToUpper(method)
	}
	if f, ok := fr.faults[urlPath]; ok && applies(f) {
		return urlPath, true
	}
	for _, pattern := range slices.Sorted(maps.Keys(fr.faults)) {
		if ok, _ := path.Match(pattern, urlPath); ok && applies(fr.faults[pattern]) {
			return pattern, true
		}
	}
	return "", false
}

// All returns a copy of every registered fault.
func (fr *FaultRegistry) All() map[string]Fault {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return maps.Clone(fr.faults)
}

// Reset removes all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	clear(fr.faults)
}
