package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/filter"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/monitoring"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

// SubmissionStore is the persistence used by SubmissionService
type SubmissionStore interface {
	ListSubmissions(ctx context.Context, agencyID uuid.UUID, q store.SubmissionQuery) (*store.SubmissionPage, error)
	ListSubmissionIDs(ctx context.Context, agencyID uuid.UUID, q store.SubmissionQuery) ([]uuid.UUID, error)
	SubmissionEventIDs(ctx context.Context, agencyID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, agencyID uuid.UUID, c store.StatusChange) (int64, error)
	DeleteSubmission(ctx context.Context, agencyID, id uuid.UUID) error
	MoveSubmission(ctx context.Context, agencyID, id, eventID uuid.UUID, postID *uuid.UUID) error
	SubmissionLogs(ctx context.Context, submissionID uuid.UUID) ([]model.SubmissionLog, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error)
}

// Status change sources, as reported in metrics
const (
	SourceAdmin = "admin"
	SourceBulk  = "bulk"
	SourceGuest = "guest"
)

// SubmissionList is one page of the moderation list
type SubmissionList struct {
	Rows    []model.SubmissionRow `json:"rows"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

type SubmissionService struct {
	store SubmissionStore
	authz *Authorizer
	zoom  *Navigator
}

// NewSubmissionService wires the moderation flows. zoom may be nil.
func NewSubmissionService(st SubmissionStore, authz *Authorizer, zoom *Navigator) *SubmissionService {
	return &SubmissionService{store: st, authz: authz, zoom: zoom}
}

// QueryFromState converts dashboard filter state into a store query. Every
// filter, post number and date range included, runs in the database.
func QueryFromState(st filter.State) (store.SubmissionQuery, error) {
	q := store.SubmissionQuery{
		Search: strings.TrimSpace(st.Search),
		Limit:  st.PerPage,
		Offset: st.Offset(),
	}
	if st.Event != filter.All && st.Event != "" {
		id, err := uuid.Parse(st.Event)
		if err != nil {
			return q, invalid("event: invalid id")
		}
		q.EventID = &id
	}
	if n, ok := st.PostNumber(); ok {
		q.PostNumber = &n
	} else if st.Post != filter.All && st.Post != "" {
		return q, invalid("post: must be a post number")
	}
	if st.Status != filter.All && st.Status != "" {
		status := model.SubmissionStatus(st.Status)
		if !status.Valid() {
			return q, invalid("status: must be one of pending approved rejected")
		}
		q.Status = status
	}
	if st.Type != filter.All && st.Type != "" {
		t := model.SubmissionType(st.Type)
		if !t.Valid() {
			return q, invalid("type: must be one of post sale")
		}
		q.Type = t
	}
	q.DateStart, q.DateEnd = st.DateRange()
	return q, nil
}

// scopedQuery builds the query for p, narrowing guests to their granted events
func (s *SubmissionService) scopedQuery(ctx context.Context, p *model.Principal, agencyID uuid.UUID, st filter.State) (store.SubmissionQuery, error) {
	q, err := QueryFromState(st)
	if err != nil {
		return q, err
	}
	if q.EventID != nil {
		return q, s.authz.Authorize(ctx, p, agencyID, q.EventID, model.CapViewSubmissions)
	}
	events, unrestricted, err := s.authz.EventScope(ctx, p, agencyID, model.CapViewSubmissions)
	if err != nil {
		return q, err
	}
	if !unrestricted {
		q.AllowedEventIDs = events
	}
	return q, nil
}

// List returns the current page of the filtered submission list, most recent first
func (s *SubmissionService) List(ctx context.Context, p *model.Principal, agencyID uuid.UUID, st filter.State) (*SubmissionList, error) {
	q, err := s.scopedQuery(ctx, p, agencyID, st)
	if err != nil {
		return nil, err
	}
	page, err := s.store.ListSubmissions(ctx, agencyID, q)
	if err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to list submissions")
		return nil, err
	}
	rows := page.Rows
	if rows == nil {
		rows = []model.SubmissionRow{}
	}
	return &SubmissionList{Rows: rows, Total: page.Total, Page: st.Page, PerPage: st.PerPage}, nil
}

// All returns every row of the filtered set, ignoring pagination (export)
func (s *SubmissionService) All(ctx context.Context, p *model.Principal, agencyID uuid.UUID, st filter.State) ([]model.SubmissionRow, error) {
	q, err := s.scopedQuery(ctx, p, agencyID, st)
	if err != nil {
		return nil, err
	}
	q.Limit, q.Offset = 0, 0
	page, err := s.store.ListSubmissions(ctx, agencyID, q)
	if err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to export submissions")
		return nil, err
	}
	return page.Rows, nil
}

// Sequence returns the ids of the filtered set in display order
func (s *SubmissionService) Sequence(ctx context.Context, p *model.Principal, agencyID uuid.UUID, st filter.State) ([]uuid.UUID, error) {
	q, err := s.scopedQuery(ctx, p, agencyID, st)
	if err != nil {
		return nil, err
	}
	return s.store.ListSubmissionIDs(ctx, agencyID, q)
}

// Neighbors locates id in the filtered sequence at request time
func (s *SubmissionService) Neighbors(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, st filter.State) (Position, error) {
	seq, err := s.Sequence(ctx, p, agencyID, st)
	if err != nil {
		return Position{}, err
	}
	pos := Locate(seq, id)
	if !pos.Found {
		return pos, fmt.Errorf("%w: submission is not in the current list", ErrNotFound)
	}
	return pos, nil
}

// get loads a submission of agencyID, hiding submissions of other agencies
func (s *SubmissionService) get(ctx context.Context, agencyID, id uuid.UUID) (*model.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("submission_id", id.String()).Msg("Failed to get submission")
		return nil, err
	}
	if sub == nil || sub.AgencyID != agencyID {
		return nil, fmt.Errorf("%w: submission", ErrNotFound)
	}
	return sub, nil
}

// Get returns one submission with its audit trail
func (s *SubmissionService) Get(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID) (*model.Submission, []model.SubmissionLog, error) {
	sub, err := s.get(ctx, agencyID, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authz.Authorize(ctx, p, agencyID, &sub.EventID, model.CapViewSubmissions); err != nil {
		return nil, nil, err
	}
	logs, err := s.store.SubmissionLogs(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sub, logs, nil
}

func checkModerationTarget(to model.SubmissionStatus, reason string) error {
	if to != model.StatusApproved && to != model.StatusRejected {
		return invalid("status: must be approved or rejected")
	}
	if len(reason) > 500 {
		return invalid("reason: must be at most 500 characters")
	}
	return nil
}

// BulkUpdateStatus moves every pending submission in ids to status in one
// statement, writing one audit row per moved submission in the same
// statement. The caller must be allowed to moderate every event touched.
func (s *SubmissionService) BulkUpdateStatus(ctx context.Context, p *model.Principal, agencyID uuid.UUID, ids []uuid.UUID, to model.SubmissionStatus, reason string) (int64, error) {
	return s.bulkUpdate(ctx, p, agencyID, ids, to, reason, SourceBulk)
}

func (s *SubmissionService) bulkUpdate(ctx context.Context, p *model.Principal, agencyID uuid.UUID, ids []uuid.UUID, to model.SubmissionStatus, reason, source string) (int64, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return 0, invalid("ids: select at least one submission")
	}
	if err := checkModerationTarget(to, reason); err != nil {
		return 0, err
	}
	if err := s.authorizeAll(ctx, p, agencyID, ids); err != nil {
		return 0, err
	}

	n, err := s.store.UpdateSubmissionStatus(ctx, agencyID, store.StatusChange{
		IDs:    ids,
		To:     to,
		From:   []model.SubmissionStatus{model.StatusPending},
		Actor:  p.UserID,
		Reason: reason,
	})
	if err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Int("ids", len(ids)).Msg("Failed to bulk update submissions")
		return 0, err
	}
	monitoring.SubmissionStatusChanges.WithLabelValues(string(to), source).Add(float64(n))
	log.Info().Str("agency_id", agencyID.String()).Str("status", string(to)).Int64("rows", n).Str("source", source).Msg("Bulk status update applied")
	return n, nil
}

// authorizeAll re-checks moderation rights on every event the ids belong to
func (s *SubmissionService) authorizeAll(ctx context.Context, p *model.Principal, agencyID uuid.UUID, ids []uuid.UUID) error {
	if p != nil && (p.IsMasterAdmin() || p.AdministersAgency(agencyID)) {
		return nil
	}
	events, err := s.store.SubmissionEventIDs(ctx, agencyID, ids)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return s.authz.Authorize(ctx, p, agencyID, nil, model.CapModerateSubmissions)
	}
	for _, eventID := range events {
		eventID := eventID
		if err := s.authz.Authorize(ctx, p, agencyID, &eventID, model.CapModerateSubmissions); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus approves or rejects one pending submission
func (s *SubmissionService) UpdateStatus(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, to model.SubmissionStatus, reason string) error {
	return s.updateOne(ctx, p, agencyID, id, to, reason, SourceAdmin)
}

func (s *SubmissionService) updateOne(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, to model.SubmissionStatus, reason, source string) error {
	if err := checkModerationTarget(to, reason); err != nil {
		return err
	}
	sub, err := s.get(ctx, agencyID, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, p, agencyID, &sub.EventID, model.CapModerateSubmissions); err != nil {
		return err
	}
	if !model.CanTransition(sub.Status, to, false) {
		return invalid("status: cannot change %s to %s without reopening", sub.Status, to)
	}
	if err := s.apply(ctx, p, agencyID, sub, to, reason, source); err != nil {
		return err
	}
	if err := s.zoom.Resolved(ctx, p.SessionID, id); err != nil {
		log.Warn().Err(err).Str("submission_id", id.String()).Msg("Failed to close submission viewer")
	}
	return nil
}

// Reopen moves an approved or rejected submission back to pending. Only
// agency admins may override a final decision.
func (s *SubmissionService) Reopen(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, reason string) error {
	sub, err := s.get(ctx, agencyID, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, p, agencyID, &sub.EventID, model.CapManageEvents); err != nil {
		return err
	}
	if !model.CanTransition(sub.Status, model.StatusPending, true) {
		return invalid("status: submission is already pending")
	}
	return s.apply(ctx, p, agencyID, sub, model.StatusPending, reason, SourceAdmin)
}

// apply moves sub from its current status; losing a race with another
// moderator surfaces as ErrConflict
func (s *SubmissionService) apply(ctx context.Context, p *model.Principal, agencyID uuid.UUID, sub *model.Submission, to model.SubmissionStatus, reason, source string) error {
	n, err := s.store.UpdateSubmissionStatus(ctx, agencyID, store.StatusChange{
		IDs:    []uuid.UUID{sub.ID},
		To:     to,
		From:   []model.SubmissionStatus{sub.Status},
		Actor:  p.UserID,
		Reason: reason,
	})
	if err != nil {
		log.Error().Err(err).Str("submission_id", sub.ID.String()).Msg("Failed to update submission status")
		return fromStore(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: submission status changed concurrently", ErrConflict)
	}
	monitoring.SubmissionStatusChanges.WithLabelValues(string(to), source).Inc()
	return nil
}

// Delete removes one submission
func (s *SubmissionService) Delete(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID) error {
	sub, err := s.get(ctx, agencyID, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, p, agencyID, &sub.EventID, model.CapManageEvents); err != nil {
		return err
	}
	if err := s.store.DeleteSubmission(ctx, agencyID, id); err != nil {
		log.Error().Err(err).Str("submission_id", id.String()).Msg("Failed to delete submission")
		return fromStore(err)
	}
	return nil
}

// Move reassigns a submission to another event of the agency and,
// optionally, one of that event's posts
func (s *SubmissionService) Move(ctx context.Context, p *model.Principal, agencyID, id, eventID uuid.UUID, postID *uuid.UUID) error {
	sub, err := s.get(ctx, agencyID, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, p, agencyID, &sub.EventID, model.CapManageEvents); err != nil {
		return err
	}
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil || event.AgencyID != agencyID {
		return fmt.Errorf("%w: target event", ErrNotFound)
	}
	if postID != nil {
		post, err := s.store.GetPost(ctx, *postID)
		if err != nil {
			return err
		}
		if post == nil || post.EventID != eventID {
			return fmt.Errorf("%w: target post", ErrNotFound)
		}
		if sub.SubmissionType == model.SubmissionSale && !post.IsSaleSlot() {
			return invalid("post: sale submissions can only move to the sale slot")
		}
		if sub.SubmissionType == model.SubmissionPost && post.IsSaleSlot() {
			return invalid("post: post submissions cannot move to the sale slot")
		}
	}
	if err := s.store.MoveSubmission(ctx, agencyID, id, eventID, postID); err != nil {
		log.Error().Err(err).Str("submission_id", id.String()).Msg("Failed to move submission")
		return fromStore(err)
	}
	return nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
