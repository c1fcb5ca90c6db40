// Package api implements the Dispatch-compatible REST handlers of the content API.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dispatch-cms/dispatch/internal/contentstore"
	"github.com/dispatch-cms/dispatch/pkg/apicore"
	"github.com/dispatch-cms/dispatch/pkg/auth"
	"github.com/dispatch-cms/dispatch/pkg/fields"
)

// Handler holds all API handler state.
type Handler struct {
	store    *contentstore.MemoryStore
	tokens   auth.Maker
	tokenTTL time.Duration
	mw       *apicore.Middleware
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s *contentstore.MemoryStore, tokens auth.Maker, ttl time.Duration, mw *apicore.Middleware, logger *slog.Logger) *Handler {
	return &Handler{store: s, tokens: tokens, tokenTTL: ttl, mw: mw, logger: logger}
}

// Routes mounts the /api routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// fault injection applies to API routes only, never to /admin
		r.Use(h.mw.FaultInjection)

		r.Post("/token/", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)
			r.Use(h.mw.Idempotency(callerEmail))

			r.Get("/{type}/", h.List)
			r.Post("/{type}/", h.Create)
			r.Get("/{type}/{id}/", h.Get)
			r.Patch("/{type}/{id}/", h.Update)
			r.Delete("/{type}/{id}/", h.Delete)
		})
	})
}

// authMiddleware validates "Authorization: Token <token>".
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Token ")
		if !ok || strings.TrimSpace(token) == "" {
			apicore.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		payload, err := h.tokens.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			msg := "Invalid token."
			if auth.IsExpired(err) {
				msg = "Token has expired."
			}
			h.logger.Debug("rejected token", "err", err)
			apicore.Error(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPayload(r.Context(), payload)))
	})
}

// callerEmail scopes idempotency keys to the authenticated user.
func callerEmail(r *http.Request) string {
	if p, ok := PayloadFrom(r.Context()); ok {
		return p.Email
	}
	return ""
}

// writeError maps store errors onto HTTP responses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var fe fields.Errors
	switch {
	case errors.As(err, &fe):
		apicore.FieldErrors(w, fe)
	case errors.Is(err, contentstore.ErrNotFound), errors.Is(err, contentstore.ErrUnknownType):
		apicore.Error(w, http.StatusNotFound, "Not found.")
	default:
		h.logger.Error("request failed", "err", err)
		apicore.Error(w, http.StatusInternalServerError, "internal error")
	}
}
