package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dispatch-cms/dispatch/internal/contentstore"
	"github.com/dispatch-cms/dispatch/pkg/apicore"
	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// listResponse is the paginated envelope of the list endpoints.
type listResponse struct {
	Count   int             `json:"count"`
	Next    *int            `json:"next"`
	Results []entity.Entity `json:"results"`
}

// List handles GET /api/{type}/?q=&limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	q := contentstore.Query{Q: r.URL.Query().Get("q")}

	var err error
	if q.Limit, err = intParam(r, "limit"); err != nil {
		apicore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Offset, err = intParam(r, "offset"); err != nil {
		apicore.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.store.List(typ, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Results == nil {
		res.Results = []entity.Entity{}
	}
	apicore.JSON(w, http.StatusOK, listResponse{Count: res.Count, Next: res.Next, Results: res.Results})
}

// Create handles POST /api/{type}/.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	data, ok := decodeObject(w, r)
	if !ok {
		return
	}
	e, err := h.store.Create(typ, data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Debug("created entity", "type", typ, "id", e.ID)
	apicore.JSON(w, http.StatusCreated, e)
}

// Get handles GET /api/{type}/{id}/.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.Get(chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	apicore.JSON(w, http.StatusOK, e)
}

// Update handles PATCH /api/{type}/{id}/.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	typ, id := chi.URLParam(r, "type"), chi.URLParam(r, "id")
	data, ok := decodeObject(w, r)
	if !ok {
		return
	}
	e, err := h.store.Update(typ, id, data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	apicore.JSON(w, http.StatusOK, e)
}

// Delete handles DELETE /api/{type}/{id}/.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "type"), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		apicore.Error(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return nil, false
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, true
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &paramError{name: name, value: raw}
	}
	return n, nil
}

type paramError struct{ name, value string }

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + strconv.Quote(e.value)
}
