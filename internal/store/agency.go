package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const agencyColumns = `id, name, slug, plan_key, subscription_status, trial_start, trial_end, plan_expires_at,
	max_influencers, max_events, owner_user_id, signup_token, logo_url, created_at, updated_at`

func scanAgency(row pgx.Row) (*model.Agency, error) {
	a := &model.Agency{}
	err := row.Scan(&a.ID, &a.Name, &a.Slug, &a.PlanKey, &a.SubscriptionStatus, &a.TrialStart, &a.TrialEnd,
		&a.PlanExpiresAt, &a.MaxInfluencers, &a.MaxEvents, &a.OwnerUserID, &a.SignupToken, &a.LogoURL,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) CreateAgency(ctx context.Context, a *model.Agency) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	query := `INSERT INTO agencies (id, name, slug, plan_key, subscription_status, trial_start, trial_end, plan_expires_at,
              max_influencers, max_events, owner_user_id, signup_token, logo_url, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.pool.Exec(ctx, query, a.ID, a.Name, a.Slug, a.PlanKey, a.SubscriptionStatus, a.TrialStart, a.TrialEnd,
		a.PlanExpiresAt, a.MaxInfluencers, a.MaxEvents, a.OwnerUserID, a.SignupToken, a.LogoURL, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetAgency(ctx context.Context, id uuid.UUID) (*model.Agency, error) {
	a, err := scanAgency(s.pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return a, err
}

func (s *Store) GetAgencyBySlug(ctx context.Context, slug string) (*model.Agency, error) {
	a, err := scanAgency(s.pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE slug = $1`, slug))
	if noRows(err) {
		return nil, nil
	}
	return a, err
}

func (s *Store) ListAgencies(ctx context.Context) ([]*model.Agency, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+agencyColumns+` FROM agencies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAgency(ctx context.Context, a *model.Agency) error {
	query := `UPDATE agencies SET name = $2, slug = $3, plan_key = $4, subscription_status = $5, trial_start = $6,
              trial_end = $7, plan_expires_at = $8, max_influencers = $9, max_events = $10, logo_url = $11, updated_at = $12
              WHERE id = $1`
	a.UpdatedAt = time.Now()
	tag, err := s.pool.Exec(ctx, query, a.ID, a.Name, a.Slug, a.PlanKey, a.SubscriptionStatus, a.TrialStart,
		a.TrialEnd, a.PlanExpiresAt, a.MaxInfluencers, a.MaxEvents, a.LogoURL, a.UpdatedAt)
	return expectOne(tag, err)
}

// SetAgencyOwner makes userID the single owning admin of the agency. The
// previous owner loses the agency link and, when it was their last agency,
// the agency_admin role.
func (s *Store) SetAgencyOwner(ctx context.Context, agencyID, userID uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var previous *uuid.UUID
		err := tx.QueryRow(ctx, `SELECT owner_user_id FROM agencies WHERE id = $1 FOR UPDATE`, agencyID).Scan(&previous)
		if noRows(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if previous != nil && *previous != userID {
			if _, err := tx.Exec(ctx, `DELETE FROM user_agencies WHERE user_id = $1 AND agency_id = $2`, *previous, agencyID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE profiles SET agency_id = NULL WHERE id = $1 AND agency_id = $2`, *previous, agencyID); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = 'agency_admin'
                  AND NOT EXISTS (SELECT 1 FROM user_agencies WHERE user_id = $1)`, *previous)
			if err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `INSERT INTO user_agencies (user_id, agency_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, agencyID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, 'agency_admin') ON CONFLICT DO NOTHING`, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE profiles SET agency_id = $2 WHERE id = $1`, userID, agencyID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE agencies SET owner_user_id = $2, updated_at = now() WHERE id = $1`, agencyID, userID)
		return mapErr(err)
	})
}

// AgencyDependents counts the rows an agency delete would remove
type AgencyDependents struct {
	Events      int `json:"events"`
	Submissions int `json:"submissions"`
}

func (d AgencyDependents) Trivial() bool {
	return d.Events == 0 && d.Submissions == 0
}

func (s *Store) CountAgencyDependents(ctx context.Context, agencyID uuid.UUID) (AgencyDependents, error) {
	var d AgencyDependents
	query := `SELECT (SELECT COUNT(*) FROM events WHERE agency_id = $1), (SELECT COUNT(*) FROM submissions WHERE agency_id = $1)`
	err := s.pool.QueryRow(ctx, query, agencyID).Scan(&d.Events, &d.Submissions)
	return d, err
}

// SuspendExpiredAgencies suspends trials past trial_end and paid plans past plan_expires_at
func (s *Store) SuspendExpiredAgencies(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `UPDATE agencies SET subscription_status = 'suspended', updated_at = $1
              WHERE (subscription_status = 'trial' AND trial_end IS NOT NULL AND trial_end < $1)
                 OR (subscription_status = 'active' AND plan_expires_at IS NOT NULL AND plan_expires_at < $1)
              RETURNING id`
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *Store) GetPlan(ctx context.Context, planKey string) (*model.SubscriptionPlan, error) {
	query := `SELECT plan_key, name, price_cents, max_influencers, max_events, is_visible FROM subscription_plans WHERE plan_key = $1`
	p := &model.SubscriptionPlan{}
	err := s.pool.QueryRow(ctx, query, planKey).Scan(&p.PlanKey, &p.Name, &p.PriceCents, &p.MaxInfluencers, &p.MaxEvents, &p.IsVisible)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	query := `SELECT plan_key, name, price_cents, max_influencers, max_events, is_visible
              FROM subscription_plans WHERE is_visible ORDER BY price_cents`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SubscriptionPlan, error) {
		var p model.SubscriptionPlan
		err := row.Scan(&p.PlanKey, &p.Name, &p.PriceCents, &p.MaxInfluencers, &p.MaxEvents, &p.IsVisible)
		return p, err
	})
}

func (s *Store) CreateCheckoutSession(ctx context.Context, cs *model.CheckoutSession) error {
	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	cs.CreatedAt = time.Now()
	query := `INSERT INTO checkout_sessions (id, agency_id, plan_key, url, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query, cs.ID, cs.AgencyID, cs.PlanKey, cs.URL, cs.CreatedAt)
	return mapErr(err)
}

func (s *Store) ListRejectionTemplates(ctx context.Context, agencyID uuid.UUID) ([]model.RejectionTemplate, error) {
	query := `SELECT id, agency_id, title, message, created_at FROM rejection_templates WHERE agency_id = $1 ORDER BY title`
	rows, err := s.pool.Query(ctx, query, agencyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RejectionTemplate, error) {
		var t model.RejectionTemplate
		err := row.Scan(&t.ID, &t.AgencyID, &t.Title, &t.Message, &t.CreatedAt)
		return t, err
	})
}

func (s *Store) CreateRejectionTemplate(ctx context.Context, t *model.RejectionTemplate) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	query := `INSERT INTO rejection_templates (id, agency_id, title, message, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query, t.ID, t.AgencyID, t.Title, t.Message, t.CreatedAt)
	return mapErr(err)
}

func (s *Store) DeleteRejectionTemplate(ctx context.Context, agencyID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rejection_templates WHERE id = $1 AND agency_id = $2`, id, agencyID)
	return expectOne(tag, err)
}
