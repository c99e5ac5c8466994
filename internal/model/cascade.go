package model

import (
	"time"

	"github.com/google/uuid"
)

// CascadeLog represents the cascade_logs table. One row is written per step
// of a dependency-ordered delete.
type CascadeLog struct {
	ID           uuid.UUID `json:"id"`
	Kind         string    `json:"kind"`
	TargetID     uuid.UUID `json:"target_id"`
	Step         string    `json:"step"`
	Status       string    `json:"status"`
	RowsAffected int64     `json:"rows_affected"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
