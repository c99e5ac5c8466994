package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// cascadeStep is one statement of a dependency-ordered delete
type cascadeStep struct {
	Name string
	SQL  string
	Args []any
	// Target marks the final delete of the row itself, which must hit exactly one row
	Target bool
}

// StepResult records one completed cascade step
type StepResult struct {
	Step string `json:"step"`
	Rows int64  `json:"rows"`
}

// CascadeError reports exactly where a cascade stopped. Completed lists the
// steps that ran before the failure; they were rolled back with the
// transaction.
type CascadeError struct {
	Kind      string
	TargetID  uuid.UUID
	Step      string
	Completed []StepResult
	Err       error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete %s %s: step %q failed after %d completed steps: %v", e.Kind, e.TargetID, e.Step, len(e.Completed), e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// runCascade executes steps in order and stops at the first failure
func runCascade(ctx context.Context, q Querier, kind string, target uuid.UUID, steps []cascadeStep) ([]StepResult, error) {
	done := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		tag, err := q.Exec(ctx, step.SQL, step.Args...)
		if err == nil && step.Target && tag.RowsAffected() == 0 {
			err = ErrNotFound
		}
		if err != nil {
			return done, &CascadeError{Kind: kind, TargetID: target, Step: step.Name, Completed: done, Err: mapErr(err)}
		}
		done = append(done, StepResult{Step: step.Name, Rows: tag.RowsAffected()})
	}
	return done, nil
}

func eventCascadeSteps(agencyID, eventID uuid.UUID) []cascadeStep {
	return []cascadeStep{
		{Name: "submissions", SQL: `DELETE FROM submissions WHERE agency_id = $1
			AND (event_id = $2 OR post_id IN (SELECT id FROM posts WHERE event_id = $2))`, Args: []any{agencyID, eventID}},
		{Name: "posts", SQL: `DELETE FROM posts WHERE agency_id = $1 AND event_id = $2`, Args: []any{agencyID, eventID}},
		{Name: "event_faqs", SQL: `DELETE FROM event_faqs WHERE event_id = $1`, Args: []any{eventID}},
		{Name: "event_requirements", SQL: `DELETE FROM event_requirements WHERE event_id = $1`, Args: []any{eventID}},
		{Name: "event", SQL: `DELETE FROM events WHERE id = $2 AND agency_id = $1`, Args: []any{agencyID, eventID}, Target: true},
	}
}

func postCascadeSteps(agencyID, postID uuid.UUID) []cascadeStep {
	return []cascadeStep{
		{Name: "submissions", SQL: `DELETE FROM submissions WHERE agency_id = $1 AND post_id = $2`, Args: []any{agencyID, postID}},
		{Name: "post", SQL: `DELETE FROM posts WHERE id = $2 AND agency_id = $1`, Args: []any{agencyID, postID}, Target: true},
	}
}

func agencyCascadeSteps(agencyID uuid.UUID) []cascadeStep {
	a := []any{agencyID}
	return []cascadeStep{
		{Name: "submissions", SQL: `DELETE FROM submissions WHERE agency_id = $1`, Args: a},
		{Name: "posts", SQL: `DELETE FROM posts WHERE agency_id = $1`, Args: a},
		{Name: "event_faqs", SQL: `DELETE FROM event_faqs WHERE event_id IN (SELECT id FROM events WHERE agency_id = $1)`, Args: a},
		{Name: "event_requirements", SQL: `DELETE FROM event_requirements WHERE event_id IN (SELECT id FROM events WHERE agency_id = $1)`, Args: a},
		{Name: "events", SQL: `DELETE FROM events WHERE agency_id = $1`, Args: a},
		{Name: "guest_list_analytics", SQL: `DELETE FROM guest_list_analytics WHERE event_id IN (SELECT id FROM guest_list_events WHERE agency_id = $1)`, Args: a},
		{Name: "guest_list_registrations", SQL: `DELETE FROM guest_list_registrations WHERE event_id IN (SELECT id FROM guest_list_events WHERE agency_id = $1)`, Args: a},
		{Name: "guest_list_dates", SQL: `DELETE FROM guest_list_dates WHERE event_id IN (SELECT id FROM guest_list_events WHERE agency_id = $1)`, Args: a},
		{Name: "guest_list_events", SQL: `DELETE FROM guest_list_events WHERE agency_id = $1`, Args: a},
		{Name: "guest_grants", SQL: `DELETE FROM guest_grants WHERE agency_id = $1`, Args: a},
		{Name: "rejection_templates", SQL: `DELETE FROM rejection_templates WHERE agency_id = $1`, Args: a},
		{Name: "checkout_sessions", SQL: `DELETE FROM checkout_sessions WHERE agency_id = $1`, Args: a},
		{Name: "user_agencies", SQL: `DELETE FROM user_agencies WHERE agency_id = $1`, Args: a},
		{Name: "profiles", SQL: `UPDATE profiles SET agency_id = NULL WHERE agency_id = $1`, Args: a},
		{Name: "agency", SQL: `DELETE FROM agencies WHERE id = $1`, Args: a, Target: true},
	}
}

func guestListEventCascadeSteps(agencyID, eventID uuid.UUID) []cascadeStep {
	return []cascadeStep{
		{Name: "guest_list_analytics", SQL: `DELETE FROM guest_list_analytics WHERE event_id = $1`, Args: []any{eventID}},
		{Name: "guest_list_registrations", SQL: `DELETE FROM guest_list_registrations WHERE event_id = $1`, Args: []any{eventID}},
		{Name: "guest_list_dates", SQL: `DELETE FROM guest_list_dates WHERE event_id = $1`, Args: []any{eventID}},
		{Name: "guest_list_event", SQL: `DELETE FROM guest_list_events WHERE id = $2 AND agency_id = $1`, Args: []any{agencyID, eventID}, Target: true},
	}
}

// cascade runs steps inside one transaction and journals the outcome
func (s *Store) cascade(ctx context.Context, kind string, agencyID, target uuid.UUID, steps []cascadeStep) ([]StepResult, error) {
	var done []StepResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		done, err = runCascade(ctx, tx, kind, target, steps)
		return err
	})
	s.journalCascade(ctx, kind, target, done, err)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, agencyID)
	return done, nil
}

// journalCascade writes one cascade_logs row per completed step plus the failed one
func (s *Store) journalCascade(ctx context.Context, kind string, target uuid.UUID, done []StepResult, err error) {
	now := time.Now()
	status := "committed"
	if err != nil {
		status = "rolled_back"
	}
	rows := make([][]any, 0, len(done)+1)
	for _, d := range done {
		rows = append(rows, []any{uuid.New(), kind, target, d.Step, status, d.Rows, "", now})
	}
	if ce, ok := err.(*CascadeError); ok {
		rows = append(rows, []any{uuid.New(), kind, target, ce.Step, "failed", int64(0), ce.Err.Error(), now})
	}
	if len(rows) == 0 {
		return
	}
	_, cerr := s.pool.CopyFrom(ctx, pgx.Identifier{"cascade_logs"},
		[]string{"id", "kind", "target_id", "step", "status", "rows_affected", "details", "created_at"},
		pgx.CopyFromRows(rows))
	if cerr != nil {
		log.Error().Err(cerr).Str("kind", kind).Str("target_id", target.String()).Msg("Failed to journal cascade")
	}
}

// DeleteEventCascade deletes the event's submissions, then its posts, then
// its FAQs and requirements, then the event, all in one transaction
func (s *Store) DeleteEventCascade(ctx context.Context, agencyID, eventID uuid.UUID) ([]StepResult, error) {
	return s.cascade(ctx, "event", agencyID, eventID, eventCascadeSteps(agencyID, eventID))
}

func (s *Store) DeletePostCascade(ctx context.Context, agencyID, postID uuid.UUID) ([]StepResult, error) {
	return s.cascade(ctx, "post", agencyID, postID, postCascadeSteps(agencyID, postID))
}

func (s *Store) DeleteAgencyCascade(ctx context.Context, agencyID uuid.UUID) ([]StepResult, error) {
	return s.cascade(ctx, "agency", agencyID, agencyID, agencyCascadeSteps(agencyID))
}

func (s *Store) DeleteGuestListEventCascade(ctx context.Context, agencyID, eventID uuid.UUID) ([]StepResult, error) {
	return s.cascade(ctx, "guest_list_event", agencyID, eventID, guestListEventCascadeSteps(agencyID, eventID))
}
