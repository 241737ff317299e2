package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/auth"
	"github.com/sakif/avatar-vault/internal/model"
	"github.com/sakif/avatar-vault/internal/service"
)

// AvatarHandler serves /api/users/{userID}/avatars. It expects
// auth.RequireAuth to have run.
type AvatarHandler struct {
	svc    *service.AvatarService
	logger *slog.Logger
}

func NewAvatarHandler(svc *service.AvatarService, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{svc: svc, logger: logger}
}

// Routes mounts the avatar endpoints on r with their scope checks.
func (h *AvatarHandler) Routes(r chi.Router) {
	r.With(auth.RequireScope(auth.ScopeRead)).Get("/", h.HandleList)
	r.With(auth.RequireScope(auth.ScopeWrite)).Post("/", h.HandleCreate)
	r.With(auth.RequireScope(auth.ScopeRead)).Get("/{avatarID}", h.HandleGet)
	r.With(auth.RequireScope(auth.ScopeWrite)).Put("/{avatarID}", h.HandleUpdate)
	r.With(auth.RequireScope(auth.ScopeWrite)).Patch("/{avatarID}", h.HandleUpdate)
	r.With(auth.RequireScope(auth.ScopeWrite)).Delete("/{avatarID}", h.HandleDelete)
}

func (h *AvatarHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AvatarHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := readPayload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := p.toNewAvatar()
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/users/"+userID+"/avatars/"+a.ID)
	writeJSON(w, http.StatusCreated, a)
}

func (h *AvatarHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "avatarID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleUpdate serves both PUT and PATCH; either way only the keys present
// in the body change.
func (h *AvatarHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := readPayload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	patch, err := p.toPatch()
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "avatarID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AvatarHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "avatarID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathUser returns the {userID} path segment after checking that the
// caller's token was issued for that user.
func pathUser(r *http.Request) (string, error) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if err := model.ValidateUserID(userID); err != nil {
		return "", err
	}
	subject, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid authentication required")
	}
	if subject != userID {
		return "", apperror.Forbidden("token does not grant access to this user's avatars")
	}
	return userID, nil
}
