package store

import (
	"context"

	"github.com/google/uuid"
)

// CheckRateLimit calls the check_rate_limit database function, which counts
// the user's hits of actionType inside the rolling window and records a new
// hit when the call is allowed.
func (s *Store) CheckRateLimit(ctx context.Context, userID uuid.UUID, actionType string, maxCount, windowMinutes int) (bool, error) {
	var allowed bool
	err := s.pool.QueryRow(ctx, `SELECT check_rate_limit($1, $2, $3, $4)`, userID, actionType, maxCount, windowMinutes).Scan(&allowed)
	return allowed, err
}
