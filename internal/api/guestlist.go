package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

func (h *Handler) publicGuestList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	page, err := h.guestList.Public(r.Context(), ps.ByName("agency"), ps.ByName("event"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID, err := uuidParam(ps, "event")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.RegistrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := h.guestList.Register(r.Context(), eventID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// bot suspects get the same answer as everyone else
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": reg.ID})
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID, err := uuidParam(ps, "event")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.AnalyticsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.guestList.Track(r.Context(), eventID, req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) listGuestLists(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.guestList.ListEvents(r.Context(), PrincipalFrom(r.Context()), agencyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) createGuestList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.GuestListEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.guestList.CreateEvent(r.Context(), PrincipalFrom(r.Context()), agencyID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) updateGuestList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.GuestListEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.guestList.UpdateEvent(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) deleteGuestList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	steps, err := h.guestList.DeleteEvent(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cascadeResponse{Steps: steps})
}

func (h *Handler) listDates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dates, err := h.guestList.ListDates(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

func (h *Handler) createDate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.GuestListDateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := h.guestList.CreateDate(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, date)
}

func (h *Handler) updateDate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(ps, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.GuestListDateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := h.guestList.UpdateDate(r.Context(), PrincipalFrom(r.Context()), agencyID, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, date)
}

func (h *Handler) deleteDate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(ps, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.guestList.DeleteDate(r.Context(), PrincipalFrom(r.Context()), agencyID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listRegistrations narrows to one date with ?date=
func (h *Handler) listRegistrations(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dateID, err := optionalUUID(r.URL.Query().Get("date"), "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	regs, err := h.guestList.Registrations(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, dateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *Handler) guestListSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.guestList.Summary(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
