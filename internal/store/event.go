package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const eventColumns = `id, agency_id, title, description, event_date, location, capacity, is_active, purpose,
	accept_posts, accept_sales, target_gender, require_profile_screenshot, require_post_screenshot,
	whatsapp_group_link, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	e := &model.Event{}
	err := row.Scan(&e.ID, &e.AgencyID, &e.Title, &e.Description, &e.EventDate, &e.Location, &e.Capacity,
		&e.IsActive, &e.Purpose, &e.AcceptPosts, &e.AcceptSales, &e.TargetGender, &e.RequireProfileScreenshot,
		&e.RequirePostScreenshot, &e.WhatsAppGroupLink, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func insertEvent(ctx context.Context, q Querier, e *model.Event) error {
	query := `INSERT INTO events (id, agency_id, title, description, event_date, location, capacity, is_active, purpose,
              accept_posts, accept_sales, target_gender, require_profile_screenshot, require_post_screenshot,
              whatsapp_group_link, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := q.Exec(ctx, query, e.ID, e.AgencyID, e.Title, e.Description, e.EventDate, e.Location, e.Capacity,
		e.IsActive, e.Purpose, e.AcceptPosts, e.AcceptSales, e.TargetGender, e.RequireProfileScreenshot,
		e.RequirePostScreenshot, e.WhatsAppGroupLink, e.CreatedAt, e.UpdatedAt)
	return mapErr(err)
}

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	return insertEvent(ctx, s.pool, e)
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return e, err
}

// ListEvents lists the agency events, newest first. active filters on is_active when set.
func (s *Store) ListEvents(ctx context.Context, agencyID uuid.UUID, active *bool) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE agency_id = $1 AND ($2::boolean IS NULL OR is_active = $2)
              ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, agencyID, active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountEvents(ctx context.Context, agencyID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE agency_id = $1`, agencyID).Scan(&n)
	return n, err
}

func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	query := `UPDATE events SET title = $2, description = $3, event_date = $4, location = $5, capacity = $6,
              is_active = $7, purpose = $8, accept_posts = $9, accept_sales = $10, target_gender = $11,
              require_profile_screenshot = $12, require_post_screenshot = $13, whatsapp_group_link = $14, updated_at = $15
              WHERE id = $1 AND agency_id = $16`
	e.UpdatedAt = time.Now()
	tag, err := s.pool.Exec(ctx, query, e.ID, e.Title, e.Description, e.EventDate, e.Location, e.Capacity,
		e.IsActive, e.Purpose, e.AcceptPosts, e.AcceptSales, e.TargetGender, e.RequireProfileScreenshot,
		e.RequirePostScreenshot, e.WhatsAppGroupLink, e.UpdatedAt, e.AgencyID)
	if err := expectOne(tag, err); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, e.AgencyID)
	return nil
}

func (s *Store) ListRequirements(ctx context.Context, eventID uuid.UUID) ([]model.EventRequirement, error) {
	query := `SELECT id, event_id, required_posts, required_sales, description, display_order
              FROM event_requirements WHERE event_id = $1 ORDER BY display_order`
	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EventRequirement, error) {
		var r model.EventRequirement
		err := row.Scan(&r.ID, &r.EventID, &r.RequiredPosts, &r.RequiredSales, &r.Description, &r.DisplayOrder)
		return r, err
	})
}

func (s *Store) ListFAQs(ctx context.Context, eventID uuid.UUID) ([]model.EventFAQ, error) {
	query := `SELECT id, event_id, question, answer, is_visible, display_order
              FROM event_faqs WHERE event_id = $1 ORDER BY display_order`
	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EventFAQ, error) {
		var f model.EventFAQ
		err := row.Scan(&f.ID, &f.EventID, &f.Question, &f.Answer, &f.IsVisible, &f.DisplayOrder)
		return f, err
	})
}

func insertRequirements(ctx context.Context, q Querier, eventID uuid.UUID, reqs []model.EventRequirement) error {
	for i := range reqs {
		reqs[i].ID = uuid.New()
		reqs[i].EventID = eventID
		_, err := q.Exec(ctx, `INSERT INTO event_requirements (id, event_id, required_posts, required_sales, description, display_order)
              VALUES ($1, $2, $3, $4, $5, $6)`,
			reqs[i].ID, eventID, reqs[i].RequiredPosts, reqs[i].RequiredSales, reqs[i].Description, reqs[i].DisplayOrder)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func insertFAQs(ctx context.Context, q Querier, eventID uuid.UUID, faqs []model.EventFAQ) error {
	for i := range faqs {
		faqs[i].ID = uuid.New()
		faqs[i].EventID = eventID
		_, err := q.Exec(ctx, `INSERT INTO event_faqs (id, event_id, question, answer, is_visible, display_order)
              VALUES ($1, $2, $3, $4, $5, $6)`,
			faqs[i].ID, eventID, faqs[i].Question, faqs[i].Answer, faqs[i].IsVisible, faqs[i].DisplayOrder)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// ReplaceRequirements swaps the whole requirement list of an event
func (s *Store) ReplaceRequirements(ctx context.Context, eventID uuid.UUID, reqs []model.EventRequirement) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM event_requirements WHERE event_id = $1`, eventID); err != nil {
			return err
		}
		return insertRequirements(ctx, tx, eventID, reqs)
	})
}

// ReplaceFAQs swaps the whole FAQ list of an event
func (s *Store) ReplaceFAQs(ctx context.Context, eventID uuid.UUID, faqs []model.EventFAQ) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM event_faqs WHERE event_id = $1`, eventID); err != nil {
			return err
		}
		return insertFAQs(ctx, tx, eventID, faqs)
	})
}

// DuplicateEvent deep-copies an event with its requirements and FAQs. The
// copy always starts inactive; posts and submissions are not copied.
func (s *Store) DuplicateEvent(ctx context.Context, id uuid.UUID, title string) (*model.Event, error) {
	src, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNotFound
	}
	reqs, err := s.ListRequirements(ctx, id)
	if err != nil {
		return nil, err
	}
	faqs, err := s.ListFAQs(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := *src
	dup.ID = uuid.New()
	dup.Title = title
	dup.IsActive = false
	dup.CreatedAt = time.Now()
	dup.UpdatedAt = dup.CreatedAt

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := insertEvent(ctx, tx, &dup); err != nil {
			return err
		}
		if err := insertRequirements(ctx, tx, dup.ID, reqs); err != nil {
			return err
		}
		return insertFAQs(ctx, tx, dup.ID, faqs)
	})
	if err != nil {
		return nil, err
	}
	return &dup, nil
}
