package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/filter"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

// agencyEvent reads the :agency and :event path ids
func agencyEvent(ps httprouter.Params) (uuid.UUID, uuid.UUID, error) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	eventID, err := uuidParam(ps, "event")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return agencyID, eventID, nil
}

// listEvents honors ?eventActive=active|inactive
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st := filter.Parse(r.URL.Query())
	events, err := h.events.List(r.Context(), PrincipalFrom(r.Context()), agencyID, st.Active())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.events.Create(r.Context(), PrincipalFrom(r.Context()), agencyID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.events.Get(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.events.Update(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	steps, err := h.events.Delete(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cascadeResponse{Steps: steps})
}

func (h *Handler) duplicateEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.events.Duplicate(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) replaceRequirements(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req []service.RequirementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reqs, err := h.events.ReplaceRequirements(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *Handler) replaceFAQs(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req []service.FAQRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	faqs, err := h.events.ReplaceFAQs(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, faqs)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	posts, err := h.posts.List(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, eventID, err := agencyEvent(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.posts.Create(r.Context(), PrincipalFrom(r.Context()), agencyID, eventID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	postID, err := uuidParam(ps, "post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.posts.Update(r.Context(), PrincipalFrom(r.Context()), agencyID, postID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	postID, err := uuidParam(ps, "post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	steps, err := h.posts.Delete(r.Context(), PrincipalFrom(r.Context()), agencyID, postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cascadeResponse{Steps: steps})
}
