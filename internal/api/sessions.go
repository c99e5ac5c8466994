package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

type sessionResponse struct {
	Token   string         `json:"token"`
	Profile *model.Profile `json:"profile"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, code int, profile *model.Profile) {
	token, err := h.tokens.Issue(profile.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, code, sessionResponse{Token: token, Profile: profile})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.sessions.SignUp(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusCreated, profile)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusOK, profile)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.PasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.sessions.ResetPassword(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, PrincipalFrom(r.Context()))
}

func (h *Handler) myGrants(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	grants, err := h.guests.MyGrants(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	profile, err := h.profiles.Get(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.profiles.Upsert(r.Context(), PrincipalFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
