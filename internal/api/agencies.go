package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/service"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

type cascadeResponse struct {
	Steps []store.StepResult `json:"steps"`
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	plans, err := h.agencies.Plans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *Handler) publicAgency(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agency, err := h.agencies.GetBySlug(r.Context(), ps.ByName("slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       agency.ID,
		"name":     agency.Name,
		"slug":     agency.Slug,
		"logo_url": agency.LogoURL,
	})
}

func (h *Handler) listAgencies(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	agencies, err := h.agencies.List(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agencies)
}

func (h *Handler) createAgency(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.CreateAgencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.agencies.Create(r.Context(), PrincipalFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getAgency(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	agency, err := h.agencies.Get(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agency)
}

func (h *Handler) updateAgency(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.UpdateAgencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	agency, err := h.agencies.Update(r.Context(), PrincipalFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agency)
}

// deleteAgency takes the confirmation word as ?confirmation=
func (h *Handler) deleteAgency(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	steps, err := h.agencies.Delete(r.Context(), PrincipalFrom(r.Context()), id, r.URL.Query().Get("confirmation"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cascadeResponse{Steps: steps})
}

func (h *Handler) setOwner(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.agencies.SetOwner(r.Context(), PrincipalFrom(r.Context()), id, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) provisionAdmin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.AdminAccount
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.agencies.ProvisionAdmin(r.Context(), PrincipalFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		PlanKey string `json:"plan_key"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	url, err := h.agencies.StartCheckout(r.Context(), PrincipalFrom(r.Context()), id, req.PlanKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// capabilities lists what the caller may do on the agency, or on one of its
// events with ?event=
func (h *Handler) capabilities(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	eventID, err := optionalUUID(r.URL.Query().Get("event"), "event")
	if err != nil {
		writeError(w, r, err)
		return
	}
	caps, err := h.authz.Capabilities(r.Context(), PrincipalFrom(r.Context()), id, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Capability{"capabilities": caps})
}

func (h *Handler) listRejectionTemplates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	templates, err := h.agencies.RejectionTemplates(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) createRejectionTemplate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.RejectionTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tpl, err := h.agencies.CreateRejectionTemplate(r.Context(), PrincipalFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (h *Handler) deleteRejectionTemplate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(ps, "template")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.agencies.DeleteRejectionTemplate(r.Context(), PrincipalFrom(r.Context()), agencyID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// agencyUpdates streams agency changes to anyone allowed to see its submissions
func (h *Handler) agencyUpdates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, _, err := h.authz.EventScope(r.Context(), PrincipalFrom(r.Context()), id, model.CapViewSubmissions); err != nil {
		writeError(w, r, err)
		return
	}
	h.hub.ServeAgency(w, r, id)
}
