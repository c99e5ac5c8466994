package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const guestListEventColumns = `id, agency_id, name, slug, description, location, cover_url, is_active, created_at, updated_at`

func scanGuestListEvent(row pgx.Row) (*model.GuestListEvent, error) {
	e := &model.GuestListEvent{}
	err := row.Scan(&e.ID, &e.AgencyID, &e.Name, &e.Slug, &e.Description, &e.Location, &e.CoverURL, &e.IsActive,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) CreateGuestListEvent(ctx context.Context, e *model.GuestListEvent) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	query := `INSERT INTO guest_list_events (id, agency_id, name, slug, description, location, cover_url, is_active, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query, e.ID, e.AgencyID, e.Name, e.Slug, e.Description, e.Location, e.CoverURL, e.IsActive,
		e.CreatedAt, e.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetGuestListEvent(ctx context.Context, id uuid.UUID) (*model.GuestListEvent, error) {
	e, err := scanGuestListEvent(s.pool.QueryRow(ctx, `SELECT `+guestListEventColumns+` FROM guest_list_events WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return e, err
}

func (s *Store) GetGuestListEventBySlug(ctx context.Context, agencyID uuid.UUID, slug string) (*model.GuestListEvent, error) {
	query := `SELECT ` + guestListEventColumns + ` FROM guest_list_events WHERE agency_id = $1 AND slug = $2`
	e, err := scanGuestListEvent(s.pool.QueryRow(ctx, query, agencyID, slug))
	if noRows(err) {
		return nil, nil
	}
	return e, err
}

func (s *Store) ListGuestListEvents(ctx context.Context, agencyID uuid.UUID) ([]*model.GuestListEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+guestListEventColumns+` FROM guest_list_events WHERE agency_id = $1 ORDER BY created_at DESC`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GuestListEvent
	for rows.Next() {
		e, err := scanGuestListEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpdateGuestListEvent(ctx context.Context, e *model.GuestListEvent) error {
	query := `UPDATE guest_list_events SET name = $3, slug = $4, description = $5, location = $6, cover_url = $7,
              is_active = $8, updated_at = $9 WHERE id = $1 AND agency_id = $2`
	e.UpdatedAt = time.Now()
	tag, err := s.pool.Exec(ctx, query, e.ID, e.AgencyID, e.Name, e.Slug, e.Description, e.Location, e.CoverURL,
		e.IsActive, e.UpdatedAt)
	return expectOne(tag, err)
}

const guestListDateColumns = `id, event_id, event_date, start_time, end_time, price_types, price_details, max_capacity,
	is_active, alternative_link_male, alternative_link_female, show_alternative_after_start, created_at`

func scanGuestListDate(row pgx.Row) (*model.GuestListDate, error) {
	d := &model.GuestListDate{}
	err := row.Scan(&d.ID, &d.EventID, &d.EventDate, &d.StartTime, &d.EndTime, &d.PriceTypes, &d.PriceDetails,
		&d.MaxCapacity, &d.IsActive, &d.AlternativeLinkMale, &d.AlternativeLinkFemale, &d.ShowAlternativeAfterStart,
		&d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) CreateGuestListDate(ctx context.Context, d *model.GuestListDate) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	query := `INSERT INTO guest_list_dates (id, event_id, event_date, start_time, end_time, price_types, price_details,
              max_capacity, is_active, alternative_link_male, alternative_link_female, show_alternative_after_start, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.pool.Exec(ctx, query, d.ID, d.EventID, d.EventDate, d.StartTime, d.EndTime, d.PriceTypes, d.PriceDetails,
		d.MaxCapacity, d.IsActive, d.AlternativeLinkMale, d.AlternativeLinkFemale, d.ShowAlternativeAfterStart, d.CreatedAt)
	return mapErr(err)
}

func (s *Store) GetGuestListDate(ctx context.Context, id uuid.UUID) (*model.GuestListDate, error) {
	d, err := scanGuestListDate(s.pool.QueryRow(ctx, `SELECT `+guestListDateColumns+` FROM guest_list_dates WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return d, err
}

func (s *Store) ListGuestListDates(ctx context.Context, eventID uuid.UUID) ([]*model.GuestListDate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+guestListDateColumns+` FROM guest_list_dates WHERE event_id = $1 ORDER BY event_date`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GuestListDate
	for rows.Next() {
		d, err := scanGuestListDate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) UpdateGuestListDate(ctx context.Context, d *model.GuestListDate) error {
	query := `UPDATE guest_list_dates SET event_date = $2, start_time = $3, end_time = $4, price_types = $5,
              price_details = $6, max_capacity = $7, is_active = $8, alternative_link_male = $9,
              alternative_link_female = $10, show_alternative_after_start = $11
              WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, d.ID, d.EventDate, d.StartTime, d.EndTime, d.PriceTypes, d.PriceDetails,
		d.MaxCapacity, d.IsActive, d.AlternativeLinkMale, d.AlternativeLinkFemale, d.ShowAlternativeAfterStart)
	return expectOne(tag, err)
}

// DeleteGuestListDate removes a date and its registrations in one transaction
func (s *Store) DeleteGuestListDate(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM guest_list_analytics WHERE date_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM guest_list_registrations WHERE date_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM guest_list_dates WHERE id = $1`, id)
		return expectOne(tag, err)
	})
}

// CreateRegistration inserts a registration, sealing e-mail and phone. The
// date row is locked while its capacity is checked so concurrent sign-ups
// cannot overbook it.
func (s *Store) CreateRegistration(ctx context.Context, r *model.GuestListRegistration) error {
	email, err := s.sealer.Seal(r.Email)
	if err != nil {
		return err
	}
	phone, err := s.sealer.Seal(r.Phone)
	if err != nil {
		return err
	}
	r.ID = uuid.New()
	r.RegisteredAt = time.Now()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return insertRegistration(ctx, tx, r, email, phone)
	})
}

// insertRegistration must run inside a transaction. ErrNotFound means the
// date is missing, inactive or full.
func insertRegistration(ctx context.Context, q Querier, r *model.GuestListRegistration, email, phone string) error {
	var active bool
	var capacity *int
	err := q.QueryRow(ctx, `SELECT is_active, max_capacity FROM guest_list_dates WHERE id = $1 AND event_id = $2 FOR UPDATE`,
		r.DateID, r.EventID).Scan(&active, &capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !active {
		return ErrNotFound
	}
	if capacity != nil {
		var taken int
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM guest_list_registrations WHERE date_id = $1`, r.DateID).Scan(&taken); err != nil {
			return err
		}
		if taken >= *capacity {
			return ErrNotFound
		}
	}
	query := `INSERT INTO guest_list_registrations (id, event_id, date_id, full_name, email, phone, gender,
              utm_source, utm_medium, utm_campaign, is_bot_suspect, registered_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = q.Exec(ctx, query, r.ID, r.EventID, r.DateID, r.FullName, email, phone, r.Gender,
		r.UTMSource, r.UTMMedium, r.UTMCampaign, r.IsBotSuspect, r.RegisteredAt)
	return mapErr(err)
}

// ListRegistrations returns the registrations of an event (optionally one date), newest first
func (s *Store) ListRegistrations(ctx context.Context, eventID uuid.UUID, dateID *uuid.UUID) ([]model.GuestListRegistration, error) {
	query := `SELECT r.id, r.event_id, r.date_id, r.full_name, r.email, r.phone, r.gender, r.utm_source, r.utm_medium,
              r.utm_campaign, r.is_bot_suspect, r.registered_at, e.name, d.event_date
              FROM guest_list_registrations r
              JOIN guest_list_events e ON e.id = r.event_id
              JOIN guest_list_dates d ON d.id = r.date_id
              WHERE r.event_id = $1 AND ($2::uuid IS NULL OR r.date_id = $2)
              ORDER BY r.registered_at DESC`
	rows, err := s.pool.Query(ctx, query, eventID, dateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GuestListRegistration
	for rows.Next() {
		var r model.GuestListRegistration
		var email, phone string
		if err := rows.Scan(&r.ID, &r.EventID, &r.DateID, &r.FullName, &email, &phone, &r.Gender, &r.UTMSource,
			&r.UTMMedium, &r.UTMCampaign, &r.IsBotSuspect, &r.RegisteredAt, &r.EventName, &r.EventDate); err != nil {
			return nil, err
		}
		if r.Email, err = s.sealer.Open(email); err != nil {
			return nil, err
		}
		if r.Phone, err = s.sealer.Open(phone); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TrackAnalytics records a funnel event of the public guest list page
func (s *Store) TrackAnalytics(ctx context.Context, a *model.GuestListAnalytics) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	query := `INSERT INTO guest_list_analytics (id, event_id, date_id, event_type, session_id, utm_source, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query, a.ID, a.EventID, a.DateID, a.EventType, a.SessionID, a.UTMSource, a.CreatedAt)
	return mapErr(err)
}

// AnalyticsSummary counts analytics events of a guest list event by type
func (s *Store) AnalyticsSummary(ctx context.Context, eventID uuid.UUID) (map[model.AnalyticsEventType]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT event_type, COUNT(*) FROM guest_list_analytics WHERE event_id = $1 GROUP BY event_type`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.AnalyticsEventType]int{}
	for rows.Next() {
		var t model.AnalyticsEventType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}
