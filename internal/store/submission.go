package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

// SubmissionQuery filters the submission list. Zero values mean "no filter".
// Limit <= 0 returns every matching row.
type SubmissionQuery struct {
	EventID         *uuid.UUID             `json:"event_id,omitempty"`
	PostNumber      *int                   `json:"post_number,omitempty"`
	Status          model.SubmissionStatus `json:"status,omitempty"`
	Type            model.SubmissionType   `json:"type,omitempty"`
	Search          string                 `json:"search,omitempty"`
	DateStart       *time.Time             `json:"date_start,omitempty"`
	DateEnd         *time.Time             `json:"date_end,omitempty"`
	AllowedEventIDs []uuid.UUID            `json:"allowed_event_ids,omitempty"`
	Limit           int                    `json:"limit"`
	Offset          int                    `json:"offset"`
}

// SubmissionPage is one page of joined submission rows plus the total row
// count of the whole filtered set.
type SubmissionPage struct {
	Rows  []model.SubmissionRow `json:"rows"`
	Total int                   `json:"total"`
}

const submissionFrom = `
	FROM submissions s
	LEFT JOIN profiles pr ON pr.id = s.user_id
	LEFT JOIN posts p ON p.id = s.post_id
	LEFT JOIN events e ON e.id = s.event_id`

const submissionColumns = `s.id, s.user_id, s.post_id, s.event_id, s.agency_id, s.submission_type, s.status,
	s.screenshot_path, s.screenshot_paths, s.profile_screenshot_path, s.followers_range, s.rejection_reason,
	s.utm_source, s.utm_medium, s.utm_campaign, s.submitted_at, s.approved_at, s.approved_by`

// buildSubmissionWhere renders the WHERE clause shared by the page and count queries
func buildSubmissionWhere(agencyID uuid.UUID, q SubmissionQuery) (string, []any) {
	conds := []string{"s.agency_id = $1"}
	args := []any{agencyID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.EventID != nil {
		add("s.event_id = $%d", *q.EventID)
	}
	if len(q.AllowedEventIDs) > 0 {
		add("s.event_id = ANY($%d)", q.AllowedEventIDs)
	}
	if q.PostNumber != nil {
		add("p.post_number = $%d", *q.PostNumber)
	}
	if q.Status != "" {
		add("s.status = $%d", string(q.Status))
	}
	if q.Type != "" {
		add("s.submission_type = $%d", string(q.Type))
	}
	if q.DateStart != nil {
		add("s.submitted_at >= $%d", *q.DateStart)
	}
	if q.DateEnd != nil {
		add("s.submitted_at < $%d", *q.DateEnd)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(pr.full_name ILIKE $%d OR pr.email ILIKE $%d OR pr.instagram ILIKE $%d)", n, n, n))
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildSubmissionPageQuery returns the page query and the count query with their args
func buildSubmissionPageQuery(agencyID uuid.UUID, q SubmissionQuery) (string, string, []any, []any) {
	where, args := buildSubmissionWhere(agencyID, q)
	countSQL := "SELECT COUNT(*)" + submissionFrom + "\n\t" + where

	pageSQL := "SELECT " + submissionColumns + `,
	COALESCE(pr.full_name, ''), COALESCE(pr.email, ''), COALESCE(pr.instagram, ''), COALESCE(pr.gender, ''),
	p.post_number, p.post_type, p.deadline, COALESCE(e.title, '')` + submissionFrom + "\n\t" + where +
		"\n\tORDER BY s.submitted_at DESC, s.id DESC"
	pageArgs := append([]any(nil), args...)
	if q.Limit > 0 {
		pageArgs = append(pageArgs, q.Limit, q.Offset)
		pageSQL += fmt.Sprintf("\n\tLIMIT $%d OFFSET $%d", len(pageArgs)-1, len(pageArgs))
	}
	return pageSQL, countSQL, pageArgs, args
}

func scanSubmission(row pgx.Row, extra ...any) (*model.Submission, error) {
	sub := &model.Submission{}
	dest := []any{
		&sub.ID, &sub.UserID, &sub.PostID, &sub.EventID, &sub.AgencyID, &sub.SubmissionType, &sub.Status,
		&sub.ScreenshotPath, &sub.ScreenshotPaths, &sub.ProfileScreenshotPath, &sub.FollowersRange, &sub.RejectionReason,
		&sub.UTMSource, &sub.UTMMedium, &sub.UTMCampaign, &sub.SubmittedAt, &sub.ApprovedAt, &sub.ApprovedBy,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return sub, nil
}

// ListSubmissions returns one page of joined rows, most recent first, with
// the total count of the filtered set. Results are served from the agency
// query cache when possible.
func (s *Store) ListSubmissions(ctx context.Context, agencyID uuid.UUID, q SubmissionQuery) (*SubmissionPage, error) {
	page := &SubmissionPage{}
	cacheKey, hit := s.cache.Get(ctx, agencyID, q, page)
	if hit {
		return page, nil
	}

	pageSQL, countSQL, pageArgs, countArgs := buildSubmissionPageQuery(agencyID, q)
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page.Rows = make([]model.SubmissionRow, 0)
	for rows.Next() {
		var r model.SubmissionRow
		var postType *string
		sub, err := scanSubmission(rows,
			&r.ProfileName, &r.ProfileEmail, &r.ProfileInstagram, &r.ProfileGender,
			&r.PostNumber, &postType, &r.PostDeadline, &r.EventTitle)
		if err != nil {
			return nil, err
		}
		r.Submission = *sub
		if postType != nil {
			r.PostType = *postType
		}
		page.Rows = append(page.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Set(ctx, cacheKey, page)
	return page, nil
}

// ListSubmissionIDs returns the ids of the filtered set in display order, ignoring pagination
func (s *Store) ListSubmissionIDs(ctx context.Context, agencyID uuid.UUID, q SubmissionQuery) ([]uuid.UUID, error) {
	where, args := buildSubmissionWhere(agencyID, q)
	query := "SELECT s.id" + submissionFrom + "\n\t" + where + "\n\tORDER BY s.submitted_at DESC, s.id DESC"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *Store) GetSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id = $1`
	sub, err := scanSubmission(s.pool.QueryRow(ctx, query, id))
	if noRows(err) {
		return nil, nil
	}
	return sub, err
}

// SubmissionEventIDs returns the distinct events the given submissions of the agency belong to
func (s *Store) SubmissionEventIDs(ctx context.Context, agencyID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT event_id FROM submissions WHERE agency_id = $1 AND id = ANY($2)`, agencyID, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// CreateSubmission inserts a pending submission. The partial unique index on
// (user_id, post_id) turns a duplicate normal-post submission into ErrConflict.
func (s *Store) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	sub.ID = uuid.New()
	sub.Status = model.StatusPending
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	if sub.ScreenshotPaths == nil {
		sub.ScreenshotPaths = []string{}
	}
	query := `INSERT INTO submissions (id, user_id, post_id, event_id, agency_id, submission_type, status,
              screenshot_path, screenshot_paths, profile_screenshot_path, followers_range,
              utm_source, utm_medium, utm_campaign, submitted_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.pool.Exec(ctx, query, sub.ID, sub.UserID, sub.PostID, sub.EventID, sub.AgencyID,
		sub.SubmissionType, sub.Status, sub.ScreenshotPath, sub.ScreenshotPaths, sub.ProfileScreenshotPath,
		sub.FollowersRange, sub.UTMSource, sub.UTMMedium, sub.UTMCampaign, sub.SubmittedAt)
	if err != nil {
		return mapErr(err)
	}
	s.cache.Invalidate(ctx, sub.AgencyID)
	return nil
}

// HasActiveSubmission reports whether the user already has a pending or
// approved submission for the post
func (s *Store) HasActiveSubmission(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM submissions
              WHERE user_id = $1 AND post_id = $2 AND submission_type = 'post' AND status IN ('pending', 'approved'))`
	var exists bool
	err := s.pool.QueryRow(ctx, query, userID, postID).Scan(&exists)
	return exists, err
}

// ActivePostIDs returns the posts of the event the user holds a pending or approved post submission for
func (s *Store) ActivePostIDs(ctx context.Context, userID, eventID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT post_id FROM submissions
              WHERE user_id = $1 AND event_id = $2 AND post_id IS NOT NULL
              AND submission_type = 'post' AND status IN ('pending', 'approved')`
	rows, err := s.pool.Query(ctx, query, userID, eventID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// StatusChange describes one status mutation applied to a set of submissions
type StatusChange struct {
	IDs    []uuid.UUID
	To     model.SubmissionStatus
	From   []model.SubmissionStatus
	Actor  uuid.UUID
	Reason string
}

// buildStatusChange renders the single statement that moves every matching
// row and writes one audit row per moved submission.
func buildStatusChange(agencyID uuid.UUID, c StatusChange) (string, []any) {
	from := make([]string, len(c.From))
	for i, st := range c.From {
		from[i] = string(st)
	}
	query := `WITH prev AS (
		SELECT id, status FROM submissions
		WHERE agency_id = $1 AND id = ANY($2) AND status = ANY($3)
		FOR UPDATE
	), upd AS (
		UPDATE submissions s SET
			status = $4,
			rejection_reason = CASE WHEN $4 = 'rejected' THEN $6 ELSE '' END,
			approved_at = CASE WHEN $4 = 'approved' THEN now() ELSE NULL END,
			approved_by = CASE WHEN $4 = 'approved' THEN $5::uuid ELSE NULL END
		FROM prev WHERE s.id = prev.id
		RETURNING s.id, prev.status AS old_status
	)
	INSERT INTO submission_logs (id, submission_id, changed_by, old_status, new_status, reason, created_at)
	SELECT gen_random_uuid(), upd.id, $5, upd.old_status, $4, $6, now() FROM upd`
	return query, []any{agencyID, c.IDs, from, string(c.To), c.Actor, c.Reason}
}

// UpdateSubmissionStatus applies c in one statement and returns how many rows moved
func (s *Store) UpdateSubmissionStatus(ctx context.Context, agencyID uuid.UUID, c StatusChange) (int64, error) {
	if len(c.IDs) == 0 {
		return 0, nil
	}
	query, args := buildStatusChange(agencyID, c)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	s.cache.Invalidate(ctx, agencyID)
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteSubmission(ctx context.Context, agencyID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE id = $1 AND agency_id = $2`, id, agencyID)
	if err := expectOne(tag, err); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, agencyID)
	return nil
}

// MoveSubmission reassigns a submission to another event and, optionally, post
func (s *Store) MoveSubmission(ctx context.Context, agencyID, id, eventID uuid.UUID, postID *uuid.UUID) error {
	query := `UPDATE submissions SET event_id = $3, post_id = $4 WHERE id = $1 AND agency_id = $2`
	tag, err := s.pool.Exec(ctx, query, id, agencyID, eventID, postID)
	if err := expectOne(tag, err); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, agencyID)
	return nil
}

// SubmissionLogs returns the audit trail of a submission, oldest first
func (s *Store) SubmissionLogs(ctx context.Context, submissionID uuid.UUID) ([]model.SubmissionLog, error) {
	query := `SELECT id, submission_id, changed_by, COALESCE(old_status, ''), new_status, reason, created_at
              FROM submission_logs WHERE submission_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []model.SubmissionLog
	for rows.Next() {
		var l model.SubmissionLog
		if err := rows.Scan(&l.ID, &l.SubmissionID, &l.ChangedBy, &l.OldStatus, &l.NewStatus, &l.Reason, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
