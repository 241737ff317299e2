package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/avatar-vault/internal/service"
)

type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type tokenRequest struct {
	UserID string `json:"userId"`
	APIKey string `json:"apiKey"`
}

// HandleToken exchanges {userId, apiKey} for a bearer token.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.IssueToken(r.Context(), req.UserID, req.APIKey)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, res)
}
