package apicore

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Response headers set by the middleware.
const (
	HeaderReplayed = "Idempotent-Replayed"
	HeaderFaulted  = "X-Injected-Fault"
)

// DefaultIdempotencyTTL is how long a create response can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// Middleware holds the request log, injected faults, idempotency cache and
// simulated network conditions shared by the API and admin routes.
type Middleware struct {
	logger     *slog.Logger
	ReqLog     *RequestLog
	Faults     *FaultRegistry
	Idempotent *IdempotencyStore

	mu       sync.RWMutex
	latency  time.Duration
	failRate float64
	verbose  bool
}

// NewMiddleware creates the middleware with the simulation settings of cfg.
// A nil logger discards output.
func NewMiddleware(cfg *Config, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Middleware{
		logger:     logger,
		ReqLog:     NewRequestLog(1000),
		Faults:     NewFaultRegistry(),
		Idempotent: NewIdempotencyStore(DefaultIdempotencyTTL),
	}
	m.Configure(cfg.Latency, cfg.FailRate, cfg.Verbose)
	return m
}

// Configure replaces the simulation settings. It is safe to call while
// requests are in flight.
func (m *Middleware) Configure(latency time.Duration, failRate float64, verbose bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency, m.failRate, m.verbose = latency, failRate, verbose
}

func (m *Middleware) settings() (time.Duration, float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latency, m.failRate, m.verbose
}

// CORS lets the browser front-end call the API from another origin.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Idempotency-Key, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", HeaderReplayed+", X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recorder captures the status, and optionally the body, written downstream.
type recorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.body != nil {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

// RequestLog records every request in the ring buffer. Verbose mode also
// captures headers, minus credentials, and logs each request at debug level.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		_, _, verbose := m.settings()
		entry := RequestRecord{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.RawQuery,
			StatusCode: rec.status,
			Duration:   time.Since(start),
			RequestID:  chimw.GetReqID(r.Context()),
			Replayed:   rec.Header().Get(HeaderReplayed) == "true",
			Faulted:    rec.Header().Get(HeaderFaulted) == "true",
		}
		if verbose {
			entry.Headers = make(map[string]string, len(r.Header))
			for k := range r.Header {
				if k == "Authorization" {
					continue
				}
				entry.Headers[k] = r.Header.Get(k)
			}
			m.logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"request_id", entry.RequestID,
				"duration", entry.Duration,
			)
		}
		m.ReqLog.Add(entry)
	})
}

// Simulate applies the configured latency, with 80-120% jitter, and fails a
// share of requests with 500 according to the fail rate.
func (m *Middleware) Simulate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		latency, failRate, _ := m.settings()
		if latency > 0 {
			time.Sleep(time.Duration(float64(latency) * (0.8 + rand.Float64()*0.4)))
		}
		if failRate > 0 && rand.Float64() < failRate {
			Error(w, http.StatusInternalServerError, "simulated random failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FaultInjection answers with the registered fault for the request path.
// Mount it on API routes only so /admin stays reachable.
func (m *Middleware) FaultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fault := m.Faults.Check(r.Method, r.URL.Path)
		if fault == nil {
			next.ServeHTTP(w, r)
			return
		}
		if d := fault.Delay(); d > 0 {
			time.Sleep(d)
		}
		if fault.StatusCode == 0 {
			next.ServeHTTP(w, r)
			return
		}
		m.logger.Debug("injected fault", "method", r.Method, "path", r.URL.Path, "status", fault.StatusCode)
		w.Header().Set(HeaderFaulted, "true")
		if fault.Body == "" {
			Error(w, fault.StatusCode, "injected fault")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fault.StatusCode)
		fmt.Fprint(w, fault.Body)
	})
}

// Idempotency replays the stored response of a POST whose Idempotency-Key was
// already seen. Keys are scoped by the caller returned by scope and by path,
// so one caller's key never replays another caller's record. Only 2xx
// responses are stored; a failed create can be retried with the same key.
func (m *Middleware) Idempotency(scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			caller := ""
			if scope != nil {
				caller = scope(r)
			}
			cacheKey := caller + "|" + r.URL.Path + "|" + key

			if status, body, ok := m.Idempotent.Lookup(cacheKey); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(status)
				w.Write(body)
				return
			}
			rec := &recorder{ResponseWriter: w, status: http.StatusOK, body: new(bytes.Buffer)}
			next.ServeHTTP(rec, r)
			if rec.status >= 200 && rec.status < 300 {
				m.Idempotent.Remember(cacheKey, rec.status, rec.body.Bytes())
			}
		})
	}
}
