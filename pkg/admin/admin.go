// Package admin provides the /admin/* control plane of the content API:
// state management, fault injection, runtime config and request inspection.
package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dispatch-cms/dispatch/pkg/apicore"
	"github.com/dispatch-cms/dispatch/pkg/store"
)

// StateStore is implemented by the content store to support admin state management.
type StateStore interface {
	// Snapshot returns the full state as a JSON-serializable value.
	Snapshot() any
	// LoadState replaces the full state from a JSON body.
	LoadState(data []byte) error
	// Reset clears all state and reloads seed data.
	Reset()
}

// ConfigProvider exposes runtime configuration. apicore.Server implements it.
type ConfigProvider interface {
	GetConfig() map[string]any
	UpdateConfig(updates map[string]any) error
}

// Handler provides the admin endpoints.
type Handler struct {
	state  StateStore
	config ConfigProvider
	mw     *apicore.Middleware
	clock  *store.Clock
}

// NewHandler creates a new admin handler. clock may be nil.
func NewHandler(state StateStore, mw *apicore.Middleware, clock *store.Clock) *Handler {
	return &Handler{
		state: state,
		mw:    mw,
		clock: clock,
	}
}

// SetConfigProvider enables the /admin/config endpoints.
func (h *Handler) SetConfigProvider(c ConfigProvider) {
	h.config = c
}

// Routes mounts the admin endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.handleReset)
		r.Get("/state", h.handleGetState)
		r.Post("/state", h.handleLoadState)
		// faults are keyed by request path pattern, e.g. /admin/fault/api/*/
		r.Post("/fault/*", h.handleInjectFault)
		r.Delete("/fault/*", h.handleRemoveFault)
		r.Get("/faults", h.handleListFaults)
		r.Get("/requests", h.handleGetRequests)
		r.Get("/config", h.handleGetConfig)
		r.Put("/config", h.handleUpdateConfig)
		r.Post("/time/advance", h.handleTimeAdvance)
		r.Get("/time", h.handleGetTime)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	h.mw.ReqLog.Clear()
	h.mw.Faults.Reset()
	h.mw.Idempotent.Reset()
	if h.clock != nil {
		h.clock.Reset()
	}
	apicore.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	apicore.JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) handleLoadState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apicore.Error(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	if err := h.state.LoadState(body); err != nil {
		apicore.Error(w, http.StatusBadRequest, "failed to load state: "+err.Error())
		return
	}
	apicore.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func faultEndpoint(r *http.Request) string {
	return "/" + chi.URLParam(r, "*")
}

func (h *Handler) handleInjectFault(w http.ResponseWriter, r *http.Request) {
	endpoint := faultEndpoint(r)

	var fault apicore.Fault
	if err := json.NewDecoder(r.Body).Decode(&fault); err != nil {
		apicore.Error(w, http.StatusBadRequest, "invalid fault config: "+err.Error())
		return
	}
	if err := h.mw.Faults.Set(endpoint, fault); err != nil {
		apicore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	apicore.JSON(w, http.StatusOK, map[string]any{
		"status":   "injected",
		"endpoint": endpoint,
		"fault":    fault,
	})
}

func (h *Handler) handleRemoveFault(w http.ResponseWriter, r *http.Request) {
	endpoint := faultEndpoint(r)
	if h.mw.Faults.Remove(endpoint) {
		apicore.JSON(w, http.StatusOK, map[string]any{"status": "removed", "endpoint": endpoint})
		return
	}
	apicore.Error(w, http.StatusNotFound, "no fault registered for "+endpoint)
}

func (h *Handler) handleListFaults(w http.ResponseWriter, r *http.Request) {
	apicore.JSON(w, http.StatusOK, h.mw.Faults.All())
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := apicore.RequestFilter{
		Method:     q.Get("method"),
		PathPrefix: q.Get("path"),
	}
	if status := q.Get("status"); status != "" {
		code, err := strconv.Atoi(status)
		if err != nil {
			apicore.Error(w, http.StatusBadRequest, "status must be an integer")
			return
		}
		filter.StatusCode = code
	}
	apicore.JSON(w, http.StatusOK, h.mw.ReqLog.Filter(filter))
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		apicore.Error(w, http.StatusNotFound, "config provider not configured")
		return
	}
	apicore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		apicore.Error(w, http.StatusNotFound, "config provider not configured")
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		apicore.Error(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.config.UpdateConfig(updates); err != nil {
		apicore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	apicore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleTimeAdvance(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		apicore.Error(w, http.StatusBadRequest, "simulated clock not configured")
		return
	}

	var req struct {
		Duration string `json:"duration"` // Go duration string, e.g. "24h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicore.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		apicore.Error(w, http.StatusBadRequest, "invalid duration: "+err.Error())
		return
	}

	h.clock.Advance(d)
	apicore.JSON(w, http.StatusOK, map[string]any{
		"status":    "advanced",
		"duration":  d.String(),
		"offset":    h.clock.Offset().String(),
		"simulated": h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleGetTime(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"real": time.Now().Format(time.RFC3339)}
	if h.clock != nil {
		out["simulated"] = h.clock.Now().Format(time.RFC3339)
		out["offset"] = h.clock.Offset().String()
	}
	apicore.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	apicore.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
