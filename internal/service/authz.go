package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

// GrantLookup finds the guest grant of a user on an agency (nil when absent)
type GrantLookup interface {
	GetGrant(ctx context.Context, userID, agencyID uuid.UUID) (*model.GuestGrant, error)
}

// Authorizer answers every permission question of the service. The same
// Authorize call backs both the capability list rendered by clients and the
// check in front of each mutation.
type Authorizer struct {
	grants GrantLookup
	now    func() time.Time
}

func NewAuthorizer(grants GrantLookup) *Authorizer {
	return &Authorizer{grants: grants, now: time.Now}
}

// PermissionLevel returns the guest level of userID on eventID of agencyID,
// honoring the grant's allowed events, active flag and access window
func (a *Authorizer) PermissionLevel(ctx context.Context, userID, agencyID, eventID uuid.UUID) (model.PermissionLevel, error) {
	grant, err := a.grants.GetGrant(ctx, userID, agencyID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Str("agency_id", agencyID.String()).Msg("Failed to load guest grant")
		return model.PermissionNone, err
	}
	return grant.LevelFor(eventID, a.now()), nil
}

// Authorize returns nil when p holds c on agencyID. eventID scopes the
// check for guests, who never hold a capability outside a specific event.
func (a *Authorizer) Authorize(ctx context.Context, p *model.Principal, agencyID uuid.UUID, eventID *uuid.UUID, c model.Capability) error {
	if p == nil {
		return fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	if p.IsMasterAdmin() {
		return nil
	}
	if c == model.CapManageAgencies {
		return fmt.Errorf("%w: %s requires a master admin", ErrForbidden, c)
	}
	if p.AdministersAgency(agencyID) {
		return nil
	}

	min := c.MinimumGuestLevel()
	if min == model.PermissionNone || eventID == nil {
		return fmt.Errorf("%w: %s", ErrForbidden, c)
	}
	level, err := a.PermissionLevel(ctx, p.UserID, agencyID, *eventID)
	if err != nil {
		return err
	}
	if level == model.PermissionNone || !level.AtLeast(min) {
		return fmt.Errorf("%w: %s requires %s, have %s", ErrForbidden, c, min, level)
	}
	return nil
}

// Capabilities lists what p may do on agencyID (and eventID, when given)
func (a *Authorizer) Capabilities(ctx context.Context, p *model.Principal, agencyID uuid.UUID, eventID *uuid.UUID) ([]model.Capability, error) {
	caps := make([]model.Capability, 0, len(model.AllCapabilities))
	for _, c := range model.AllCapabilities {
		err := a.Authorize(ctx, p, agencyID, eventID, c)
		if err == nil {
			caps = append(caps, c)
			continue
		}
		if !isForbidden(err) {
			return nil, err
		}
	}
	return caps, nil
}

// EventScope returns the events of agencyID on which p holds c through a
// guest grant. unrestricted is true for admins, who are not scoped at all.
func (a *Authorizer) EventScope(ctx context.Context, p *model.Principal, agencyID uuid.UUID, c model.Capability) (events []uuid.UUID, unrestricted bool, err error) {
	if p == nil {
		return nil, false, fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	if p.IsMasterAdmin() || p.AdministersAgency(agencyID) {
		return nil, true, nil
	}
	min := c.MinimumGuestLevel()
	if min == model.PermissionNone {
		return nil, false, fmt.Errorf("%w: %s", ErrForbidden, c)
	}
	grant, err := a.grants.GetGrant(ctx, p.UserID, agencyID)
	if err != nil {
		return nil, false, err
	}
	if grant == nil {
		return nil, false, fmt.Errorf("%w: no guest access to agency", ErrForbidden)
	}
	now := a.now()
	for _, id := range grant.AllowedEventIDs {
		if level := grant.LevelFor(id, now); level != model.PermissionNone && level.AtLeast(min) {
			events = append(events, id)
		}
	}
	if len(events) == 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrForbidden, c)
	}
	return events, false, nil
}
