package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const profileColumns = `id, full_name, email, instagram, phone, gender, agency_id, password_hash, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.Instagram, &p.Phone, &p.Gender, &p.AgencyID,
		&p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`, email))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	query := `INSERT INTO profiles (id, full_name, email, instagram, phone, gender, agency_id, password_hash, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query, p.ID, p.FullName, p.Email, p.Instagram, p.Phone, p.Gender, p.AgencyID,
		p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

// UpdateProfileFields updates the contributor-editable fields. Submission
// pages join these fields, so the cache of every agency the user submitted
// to is invalidated.
func (s *Store) UpdateProfileFields(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now()
	agencies, err := updateProfileFields(ctx, s.pool, p)
	if err != nil {
		return err
	}
	for _, agencyID := range agencies {
		s.cache.Invalidate(ctx, agencyID)
	}
	return nil
}

// updateProfileFields returns the agencies whose submission pages show p
func updateProfileFields(ctx context.Context, q Querier, p *model.Profile) ([]uuid.UUID, error) {
	query := `UPDATE profiles SET full_name = $2, instagram = $3, phone = $4, gender = $5, updated_at = $6 WHERE id = $1`
	tag, err := q.Exec(ctx, query, p.ID, p.FullName, p.Instagram, p.Phone, p.Gender, p.UpdatedAt)
	if err := expectOne(tag, err); err != nil {
		return nil, err
	}
	var agencies []uuid.UUID
	err = q.QueryRow(ctx, `SELECT COALESCE(array_agg(DISTINCT agency_id), '{}') FROM submissions WHERE user_id = $1`, p.ID).
		Scan(&agencies)
	return agencies, err
}

// SetPasswordResetToken stores a one-time reset token for the user
func (s *Store) SetPasswordResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	query := `UPDATE profiles SET reset_token = $2, reset_token_expires_at = $3 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, userID, token, expiresAt)
	return expectOne(tag, err)
}

func (s *Store) AddUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, role)
	return mapErr(err)
}

// LoadPrincipal builds the request principal of userID from user_roles,
// user_agencies and guest_grants. Unknown users get an empty principal.
func (s *Store) LoadPrincipal(ctx context.Context, userID uuid.UUID) (*model.Principal, error) {
	p := &model.Principal{UserID: userID}

	rows, err := s.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[model.Role])
	if err != nil {
		return nil, err
	}
	p.Roles = roles

	rows, err = s.pool.Query(ctx, `SELECT agency_id FROM user_agencies WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	p.AgencyIDs, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ResetPassword swaps an unexpired reset token for a new password hash. The
// token is single use.
func (s *Store) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (uuid.UUID, error) {
	query := `UPDATE profiles SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $3
              WHERE reset_token = $1 AND reset_token_expires_at > $3
              RETURNING id`
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, token, passwordHash, now).Scan(&id)
	if noRows(err) {
		return uuid.Nil, ErrNotFound
	}
	return id, mapErr(err)
}
