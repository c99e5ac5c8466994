package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	grants, err := h.guests.ListGrants(r.Context(), PrincipalFrom(r.Context()), agencyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.GrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	grant, err := h.guests.CreateGrant(r.Context(), PrincipalFrom(r.Context()), agencyID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (h *Handler) updateGrant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(ps, "grant")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.GrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	grant, err := h.guests.UpdateGrant(r.Context(), PrincipalFrom(r.Context()), agencyID, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (h *Handler) deleteGrant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(ps, "grant")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.guests.DeleteGrant(r.Context(), PrincipalFrom(r.Context()), agencyID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
