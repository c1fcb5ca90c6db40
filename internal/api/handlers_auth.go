package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dispatch-cms/dispatch/pkg/apicore"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Login handles POST /api/token/.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicore.Error(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		apicore.FieldErrors(w, map[string]string{"non_field_errors": "email and password are required"})
		return
	}
	if err := h.store.Users.Authenticate(req.Email, req.Password); err != nil {
		apicore.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	token, payload, err := h.tokens.CreateToken(req.Email, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to issue token", "err", err)
		apicore.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	h.logger.Info("issued token", "email", req.Email, "token_id", payload.ID.String())
	apicore.JSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: payload.ExpiredAt.UTC().Format(time.RFC3339),
	})
}
