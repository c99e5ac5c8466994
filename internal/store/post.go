package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const postColumns = `id, event_id, agency_id, post_number, deadline, post_type, created_at`

func scanPost(row pgx.Row) (*model.Post, error) {
	p := &model.Post{}
	if err := row.Scan(&p.ID, &p.EventID, &p.AgencyID, &p.PostNumber, &p.Deadline, &p.PostType, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePost inserts a post. UNIQUE(event_id, post_number) keeps post #0 the
// only sale slot of the event.
func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	query := `INSERT INTO posts (id, event_id, agency_id, post_number, deadline, post_type, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query, p.ID, p.EventID, p.AgencyID, p.PostNumber, p.Deadline, p.PostType, p.CreatedAt)
	return mapErr(err)
}

func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

// ListPosts returns the posts of an event ordered by deadline, then number
func (s *Store) ListPosts(ctx context.Context, eventID uuid.UUID) ([]*model.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM posts WHERE event_id = $1 ORDER BY deadline, post_number`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, p *model.Post) error {
	query := `UPDATE posts SET post_number = $2, deadline = $3, post_type = $4 WHERE id = $1 AND agency_id = $5`
	tag, err := s.pool.Exec(ctx, query, p.ID, p.PostNumber, p.Deadline, p.PostType, p.AgencyID)
	if err := expectOne(tag, err); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, p.AgencyID)
	return nil
}

// PostOpen re-checks the deadline against the database clock
func (s *Store) PostOpen(ctx context.Context, postID uuid.UUID) (bool, error) {
	var open bool
	err := s.pool.QueryRow(ctx, `SELECT deadline > now() FROM posts WHERE id = $1`, postID).Scan(&open)
	if noRows(err) {
		return false, nil
	}
	return open, err
}
