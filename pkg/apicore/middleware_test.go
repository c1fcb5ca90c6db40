package apicore

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMiddleware(cfg *Config) *Middleware {
	return NewMiddleware(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ---------------------------------------------------------------------------
// RequestLog
// ---------------------------------------------------------------------------

func TestRequestLogRingBuffer(t *testing.T) {
	rl := NewRequestLog(3)
	for i := 0; i < 5; i++ {
		rl.Add(RequestRecord{Path: fmt.Sprintf("/api/tags/%d/", i)})
	}

	entries := rl.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Path != "/api/tags/2/" || entries[2].Path != "/api/tags/4/" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	rl.Clear()
	if len(rl.Entries()) != 0 || rl.Len() != 0 {
		t.Error("expected empty log after clear")
	}
}

func TestRequestLogFilter(t *testing.T) {
	rl := NewRequestLog(10)
	rl.Add(RequestRecord{Method: "GET", Path: "/api/tags/", StatusCode: 200})
	rl.Add(RequestRecord{Method: "POST", Path: "/api/tags/", StatusCode: 201})
	rl.Add(RequestRecord{Method: "POST", Path: "/api/topics/", StatusCode: 201})

	got := rl.Filter(RequestFilter{Method: "post", StatusCode: 201})
	if len(got) != 2 || got[0].Path != "/api/tags/" || got[1].Path != "/api/topics/" {
		t.Errorf("unexpected filter result: %+v", got)
	}
	if got := rl.Filter(RequestFilter{PathPrefix: "/api/topics"}); len(got) != 1 {
		t.Errorf("expected 1 topics record, got %+v", got)
	}
}

func TestRequestLogMiddlewareRecords(t *testing.T) {
	mw := newTestMiddleware(&Config{})
	h := mw.RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/tags/", nil))

	entries := mw.ReqLog.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].StatusCode != http.StatusTeapot || entries[0].Method != "GET" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Headers != nil {
		t.Error("headers should only be captured in verbose mode")
	}
}

func TestRequestLogVerboseOmitsCredentials(t *testing.T) {
	mw := newTestMiddleware(&Config{Verbose: true})
	h := mw.RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderReplayed, "true")
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest("POST", "/api/tags/?q=news", nil)
	req.Header.Set("Authorization", "Token secret")
	req.Header.Set("Idempotency-Key", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	e := mw.ReqLog.Entries()[0]
	if _, ok := e.Headers["Authorization"]; ok {
		t.Error("Authorization must not be logged")
	}
	if e.Headers["Idempotency-Key"] != "abc" || e.Query != "q=news" || !e.Replayed {
		t.Errorf("unexpected entry: %+v", e)
	}
}

// ---------------------------------------------------------------------------
// FaultRegistry
// ---------------------------------------------------------------------------

func TestFaultRegistry(t *testing.T) {
	fr := NewFaultRegistry()
	if err := fr.Set("/api/tags/", Fault{StatusCode: 503}); err != nil {
		t.Fatal(err)
	}

	fault := fr.Check("GET", "/api/tags/")
	if fault == nil || fault.StatusCode != 503 {
		t.Fatalf("expected 503 fault, got %+v", fault)
	}
	if fault.Rate != 1.0 {
		t.Errorf("expected default rate 1.0, got %v", fault.Rate)
	}
	if fr.Check("GET", "/api/topics/") != nil {
		t.Error("expected no fault for other path")
	}
	if !fr.Remove("/api/tags/") || fr.Remove("/api/tags/") {
		t.Error("unexpected Remove results")
	}
}

func TestFaultPatterns(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/api/*/", Fault{StatusCode: 503})
	fr.Set("/api/tags/", Fault{StatusCode: 418})
	fr.Set("/api/topics/*/", Fault{StatusCode: 500, Method: "patch"})

	if f := fr.Check("GET", "/api/tags/"); f == nil || f.StatusCode != 418 {
		t.Errorf("exact pattern should win, got %+v", f)
	}
	if f := fr.Check("GET", "/api/polls/"); f == nil || f.StatusCode != 503 {
		t.Errorf("wildcard should match list endpoint, got %+v", f)
	}
	if f := fr.Check("GET", "/api/polls/1/"); f != nil {
		t.Errorf("wildcard must not cross path segments, got %+v", f)
	}
	if f := fr.Check("GET", "/api/topics/1/"); f != nil {
		t.Errorf("method-scoped fault fired for GET: %+v", f)
	}
	if f := fr.Check("PATCH", "/api/topics/1/"); f == nil || f.StatusCode != 500 {
		t.Errorf("expected PATCH fault, got %+v", f)
	}
	if err := fr.Set("/api/[", Fault{StatusCode: 500}); err == nil {
		t.Error("expected malformed pattern to be rejected")
	}
}

func TestFaultTimes(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/api/tags/", Fault{StatusCode: 503, Times: 2})

	for i := 0; i < 2; i++ {
		if fr.Check("POST", "/api/tags/") == nil {
			t.Fatalf("expected fault on call %d", i+1)
		}
	}
	if fr.Check("POST", "/api/tags/") != nil {
		t.Error("fault should be spent after two calls")
	}
	if len(fr.All()) != 0 {
		t.Error("spent fault should be removed")
	}
}

func TestFaultInjectionMiddleware(t *testing.T) {
	mw := newTestMiddleware(&Config{})
	mw.Faults.Set("/api/tags/", Fault{StatusCode: 500})

	var reached bool
	h := mw.FaultInjection(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/tags/", nil))

	if rec.Code != 500 {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if reached {
		t.Error("handler should not run when a fault fires")
	}
	if !strings.Contains(rec.Body.String(), "injected fault") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get(HeaderFaulted) != "true" {
		t.Error("expected injected fault header")
	}
}

// ---------------------------------------------------------------------------
// CORS / latency / random failure
// ---------------------------------------------------------------------------

func TestCORSPreflight(t *testing.T) {
	mw := newTestMiddleware(&Config{})
	h := mw.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/tags/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key") {
		t.Error("expected Idempotency-Key to be an allowed header")
	}
}

func TestSimulateLatency(t *testing.T) {
	mw := newTestMiddleware(&Config{Latency: 20 * time.Millisecond})
	h := mw.Simulate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	start := time.Now()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("expected at least 15ms of latency, got %v", elapsed)
	}
}

func TestSimulateFailureFollowsConfigure(t *testing.T) {
	mw := newTestMiddleware(&Config{FailRate: 1.0})
	h := mw.Simulate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}

	mw.Configure(0, 0, false)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after disabling failures, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Idempotency
// ---------------------------------------------------------------------------

func TestIdempotencyStoreEvictsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore(time.Hour)
	s.now = func() time.Time { return now }

	s.Remember("a", 201, []byte(`{}`))
	s.Remember("b", 201, []byte(`{}`))
	now = now.Add(2 * time.Hour)

	if _, _, ok := s.Lookup("a"); ok {
		t.Error("expected expired entry to be ignored")
	}
	if s.Len() != 1 {
		t.Errorf("expected lookup to evict the expired entry, len=%d", s.Len())
	}

	s.Remember("c", 201, []byte(`{}`))
	if s.Len() != 1 {
		t.Errorf("expected Remember to sweep expired entries, len=%d", s.Len())
	}
}

func TestIdempotencyReplaysPost(t *testing.T) {
	mw := newTestMiddleware(&Config{})
	var calls int32
	h := mw.Idempotency(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		JSON(w, http.StatusCreated, map[string]any{"id": fmt.Sprint(n)})
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/tags/", strings.NewReader(`{"name":"news"}`))
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()

	if calls != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("expected replayed response, got %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected Idempotent-Replayed header")
	}
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	mw := newTestMiddleware(&Config{})
	var calls int32
	h := mw.Idempotency(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		Error(w, http.StatusBadRequest, "bad")
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/tags/", nil)
		req.Header.Set("Idempotency-Key", "abc")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("expected failed creates to be retried, ran %d times", calls)
	}
}

func TestIdempotencyIgnoresNonPost(t *testing.T) {
	mw := newTestMiddleware(&Config{})
	h := mw.Idempotency(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, nil)
	}))

	req := httptest.NewRequest("PATCH", "/api/tags/1/", nil)
	req.Header.Set("Idempotency-Key", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if mw.Idempotent.Len() != 0 {
		t.Error("PATCH responses must not be cached")
	}
}

func TestIdempotencyScopedByCaller(t *testing.T) {
	mw := newTestMiddleware(&Config{})
	var calls int32
	h := mw.Idempotency(func(r *http.Request) string {
		return r.Header.Get("X-Caller")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		JSON(w, http.StatusCreated, map[string]any{"id": fmt.Sprint(n)})
	}))

	send := func(caller string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/tags/", strings.NewReader(`{"name":"news"}`))
		req.Header.Set("Idempotency-Key", "shared")
		req.Header.Set("X-Caller", caller)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	alice := send("alice@dispatch.test")
	bob := send("bob@dispatch.test")

	if calls != 2 {
		t.Errorf("expected each caller to create, ran %d times", calls)
	}
	if bob.Header().Get(HeaderReplayed) != "" || bob.Body.String() == alice.Body.String() {
		t.Errorf("bob received alice's response: %s", bob.Body.String())
	}
}
