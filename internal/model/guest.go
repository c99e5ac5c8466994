package model

import (
	"time"

	"github.com/google/uuid"
)

// PermissionLevel of a guest moderator. Levels are ordered: none < viewer < moderator < manager.
type PermissionLevel string

const (
	PermissionNone      PermissionLevel = "none"
	PermissionViewer    PermissionLevel = "viewer"
	PermissionModerator PermissionLevel = "moderator"
	PermissionManager   PermissionLevel = "manager"
)

func (l PermissionLevel) rank() int {
	switch l {
	case PermissionViewer:
		return 1
	case PermissionModerator:
		return 2
	case PermissionManager:
		return 3
	}
	return 0
}

// AtLeast reports whether l grants everything min grants
func (l PermissionLevel) AtLeast(min PermissionLevel) bool {
	return l.rank() >= min.rank()
}

func (l PermissionLevel) Valid() bool {
	return l == PermissionViewer || l == PermissionModerator || l == PermissionManager
}

// GuestGrant represents the guest_grants table
type GuestGrant struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	AgencyID        uuid.UUID       `json:"agency_id"`
	PermissionLevel PermissionLevel `json:"permission_level"`
	AllowedEventIDs []uuid.UUID     `json:"allowed_event_ids"`
	AccessStart     *time.Time      `json:"access_start,omitempty"`
	AccessEnd       *time.Time      `json:"access_end,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LevelFor returns the level the grant gives on eventID at now
func (g *GuestGrant) LevelFor(eventID uuid.UUID, now time.Time) PermissionLevel {
	if g == nil || !g.IsActive {
		return PermissionNone
	}
	if g.AccessStart != nil && now.Before(*g.AccessStart) {
		return PermissionNone
	}
	if g.AccessEnd != nil && now.After(*g.AccessEnd) {
		return PermissionNone
	}
	for _, id := range g.AllowedEventIDs {
		if id == eventID {
			return g.PermissionLevel
		}
	}
	return PermissionNone
}
