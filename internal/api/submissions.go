package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/filter"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

type submissionDetail struct {
	Submission *model.Submission     `json:"submission"`
	Logs       []model.SubmissionLog `json:"logs"`
}

type statusRequest struct {
	Status model.SubmissionStatus `json:"status"`
	Reason string                 `json:"reason"`
}

type bulkStatusRequest struct {
	IDs    []uuid.UUID            `json:"ids"`
	Status model.SubmissionStatus `json:"status"`
	Reason string                 `json:"reason"`
}

type moveRequest struct {
	EventID uuid.UUID  `json:"event_id"`
	PostID  *uuid.UUID `json:"post_id"`
}

// moderator is implemented by both the admin and the guest moderation flows
type moderator interface {
	BulkUpdateStatus(ctx context.Context, p *model.Principal, agencyID uuid.UUID, ids []uuid.UUID, to model.SubmissionStatus, reason string) (int64, error)
	UpdateStatus(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, to model.SubmissionStatus, reason string) error
}

func (h *Handler) moderatorFor(p *model.Principal, agencyID uuid.UUID) moderator {
	if p.IsMasterAdmin() || p.AdministersAgency(agencyID) {
		return h.submissions
	}
	return h.guests
}

func agencySubmission(ps httprouter.Params) (uuid.UUID, uuid.UUID, error) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuidParam(ps, "submission")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return agencyID, id, nil
}

// listSubmissions returns one page of the filtered list; the query string
// carries the dashboard filter state
func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.submissions.List(r.Context(), PrincipalFrom(r.Context()), agencyID, filter.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) bulkUpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req bulkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := PrincipalFrom(r.Context())
	n, err := h.moderatorFor(p, agencyID).BulkUpdateStatus(r.Context(), p, agencyID, req.IDs, req.Status, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, id, err := agencySubmission(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, logs, err := h.submissions.Get(r.Context(), PrincipalFrom(r.Context()), agencyID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionDetail{Submission: sub, Logs: logs})
}

func (h *Handler) deleteSubmission(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, id, err := agencySubmission(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.submissions.Delete(r.Context(), PrincipalFrom(r.Context()), agencyID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// neighbors locates the submission in the current filtered sequence
func (h *Handler) neighbors(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, id, err := agencySubmission(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pos, err := h.submissions.Neighbors(r.Context(), PrincipalFrom(r.Context()), agencyID, id, filter.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, id, err := agencySubmission(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := PrincipalFrom(r.Context())
	if err := h.moderatorFor(p, agencyID).UpdateStatus(r.Context(), p, agencyID, id, req.Status, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, id, err := agencySubmission(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.submissions.Reopen(r.Context(), PrincipalFrom(r.Context()), agencyID, id, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agencyID, id, err := agencySubmission(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.submissions.Move(r.Context(), PrincipalFrom(r.Context()), agencyID, id, req.EventID, req.PostID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type zoomResponse struct {
	State      service.ZoomState `json:"state"`
	Position   *service.Position `json:"position,omitempty"`
	Submission *submissionDetail `json:"submission,omitempty"`
}

// zoomStep runs one viewer operation against the sequence selected by the
// request filters and answers with the resulting viewer state
func (h *Handler) zoomStep(w http.ResponseWriter, r *http.Request, ps httprouter.Params,
	op func(ctx context.Context, session string, seq []uuid.UUID) (service.ZoomState, error)) {
	agencyID, err := uuidParam(ps, "agency")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := PrincipalFrom(r.Context())
	if p.SessionID == "" {
		writeError(w, r, fmt.Errorf("%w: session id missing", service.ErrUnauthenticated))
		return
	}
	seq, err := h.submissions.Sequence(r.Context(), p, agencyID, filter.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := op(r.Context(), p.SessionID, seq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := zoomResponse{State: st}
	if st.Open {
		pos := service.Locate(seq, st.SubmissionID)
		resp.Position = &pos
		sub, logs, err := h.submissions.Get(r.Context(), p, agencyID, st.SubmissionID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Submission = &submissionDetail{Submission: sub, Logs: logs}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) zoomState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.zoomStep(w, r, ps, h.zoom.Reconcile)
}

func (h *Handler) zoomOpen(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		SubmissionID uuid.UUID `json:"submission_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.zoomStep(w, r, ps, func(ctx context.Context, session string, seq []uuid.UUID) (service.ZoomState, error) {
		return h.zoom.Open(ctx, session, seq, req.SubmissionID)
	})
}

func (h *Handler) zoomNext(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.zoomStep(w, r, ps, h.zoom.Next)
}

func (h *Handler) zoomPrevious(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.zoomStep(w, r, ps, h.zoom.Previous)
}

func (h *Handler) zoomClose(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p := PrincipalFrom(r.Context())
	if err := h.zoom.Close(r.Context(), p.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
