package model

import "github.com/google/uuid"

// Role of an authenticated user, as stored in user_roles
type Role string

const (
	RoleMasterAdmin Role = "master_admin"
	RoleAgencyAdmin Role = "agency_admin"
	RoleGuest       Role = "guest"
	RoleUser        Role = "user"
)

// Principal is the request-scoped identity threaded through every service call.
// AgencyIDs lists the agencies an agency admin administers.
type Principal struct {
	UserID    uuid.UUID   `json:"user_id"`
	SessionID string      `json:"session_id,omitempty"`
	Roles     []Role      `json:"roles"`
	AgencyIDs []uuid.UUID `json:"agency_ids,omitempty"`
}

func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p *Principal) IsMasterAdmin() bool {
	return p.HasRole(RoleMasterAdmin)
}

// AdministersAgency reports whether p is an agency admin of agencyID
func (p *Principal) AdministersAgency(agencyID uuid.UUID) bool {
	if !p.HasRole(RoleAgencyAdmin) {
		return false
	}
	for _, id := range p.AgencyIDs {
		if id == agencyID {
			return true
		}
	}
	return false
}

// Capability is a single permission consulted both to render controls and to
// gate the mutation behind them.
type Capability string

const (
	CapViewSubmissions     Capability = "view_submissions"
	CapModerateSubmissions Capability = "moderate_submissions"
	CapManagePosts         Capability = "manage_posts"
	CapManageEvents        Capability = "manage_events"
	CapManageAgency        Capability = "manage_agency"
	CapManageAgencies      Capability = "manage_agencies"
)

// AllCapabilities in display order
var AllCapabilities = []Capability{
	CapViewSubmissions,
	CapModerateSubmissions,
	CapManagePosts,
	CapManageEvents,
	CapManageAgency,
	CapManageAgencies,
}

// MinimumGuestLevel returns the guest permission level that unlocks c, or
// PermissionNone when guests can never hold c.
func (c Capability) MinimumGuestLevel() PermissionLevel {
	switch c {
	case CapViewSubmissions:
		return PermissionViewer
	case CapModerateSubmissions:
		return PermissionModerator
	case CapManagePosts:
		return PermissionManager
	}
	return PermissionNone
}
