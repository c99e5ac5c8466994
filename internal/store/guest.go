package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const grantColumns = `id, user_id, agency_id, permission_level, allowed_event_ids, access_start, access_end,
	is_active, created_by, created_at, updated_at`

func scanGrant(row pgx.Row) (*model.GuestGrant, error) {
	g := &model.GuestGrant{}
	err := row.Scan(&g.ID, &g.UserID, &g.AgencyID, &g.PermissionLevel, &g.AllowedEventIDs, &g.AccessStart,
		&g.AccessEnd, &g.IsActive, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// CreateGrant inserts the grant and gives its user the guest role in one
// transaction
func (s *Store) CreateGrant(ctx context.Context, g *model.GuestGrant) error {
	g.ID = uuid.New()
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	if g.AllowedEventIDs == nil {
		g.AllowedEventIDs = []uuid.UUID{}
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return insertGrant(ctx, tx, g)
	})
}

func insertGrant(ctx context.Context, q Querier, g *model.GuestGrant) error {
	query := `INSERT INTO guest_grants (id, user_id, agency_id, permission_level, allowed_event_ids, access_start,
              access_end, is_active, created_by, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.Exec(ctx, query, g.ID, g.UserID, g.AgencyID, g.PermissionLevel, g.AllowedEventIDs, g.AccessStart,
		g.AccessEnd, g.IsActive, g.CreatedBy, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	_, err = q.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, g.UserID, model.RoleGuest)
	return mapErr(err)
}

func (s *Store) UpdateGrant(ctx context.Context, g *model.GuestGrant) error {
	query := `UPDATE guest_grants SET permission_level = $3, allowed_event_ids = $4, access_start = $5,
              access_end = $6, is_active = $7, updated_at = $8
              WHERE id = $1 AND agency_id = $2`
	g.UpdatedAt = time.Now()
	tag, err := s.pool.Exec(ctx, query, g.ID, g.AgencyID, g.PermissionLevel, g.AllowedEventIDs, g.AccessStart,
		g.AccessEnd, g.IsActive, g.UpdatedAt)
	return expectOne(tag, err)
}

func (s *Store) DeleteGrant(ctx context.Context, agencyID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM guest_grants WHERE id = $1 AND agency_id = $2`, id, agencyID)
	return expectOne(tag, err)
}

func (s *Store) GetGrantByID(ctx context.Context, id uuid.UUID) (*model.GuestGrant, error) {
	g, err := scanGrant(s.pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM guest_grants WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return g, err
}

// GetGrant returns the grant of userID on agencyID, or nil when there is none
func (s *Store) GetGrant(ctx context.Context, userID, agencyID uuid.UUID) (*model.GuestGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM guest_grants WHERE user_id = $1 AND agency_id = $2`
	g, err := scanGrant(s.pool.QueryRow(ctx, query, userID, agencyID))
	if noRows(err) {
		return nil, nil
	}
	return g, err
}

func (s *Store) ListGrants(ctx context.Context, agencyID uuid.UUID) ([]*model.GuestGrant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+grantColumns+` FROM guest_grants WHERE agency_id = $1 ORDER BY created_at`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GuestGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListGrantsForUser returns every grant a guest holds, across agencies
func (s *Store) ListGrantsForUser(ctx context.Context, userID uuid.UUID) ([]*model.GuestGrant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+grantColumns+` FROM guest_grants WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GuestGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
