package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

type GrantStore interface {
	CreateGrant(ctx context.Context, g *model.GuestGrant) error
	UpdateGrant(ctx context.Context, g *model.GuestGrant) error
	DeleteGrant(ctx context.Context, agencyID, id uuid.UUID) error
	GetGrantByID(ctx context.Context, id uuid.UUID) (*model.GuestGrant, error)
	ListGrants(ctx context.Context, agencyID uuid.UUID) ([]*model.GuestGrant, error)
	ListGrantsForUser(ctx context.Context, userID uuid.UUID) ([]*model.GuestGrant, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
}

// GrantRequest gives a registered user guest access to some events of an agency
type GrantRequest struct {
	Email           string                `json:"email" validate:"required,email"`
	PermissionLevel model.PermissionLevel `json:"permission_level" validate:"required,oneof=viewer moderator manager"`
	AllowedEventIDs []uuid.UUID           `json:"allowed_event_ids" validate:"required,min=1"`
	AccessStart     *time.Time            `json:"access_start"`
	AccessEnd       *time.Time            `json:"access_end"`
	IsActive        bool                  `json:"is_active"`
}

// GuestService manages guest grants and is the entry point of the guest
// moderation dashboard
type GuestService struct {
	store       GrantStore
	authz       *Authorizer
	submissions *SubmissionService
}

func NewGuestService(st GrantStore, authz *Authorizer, submissions *SubmissionService) *GuestService {
	return &GuestService{store: st, authz: authz, submissions: submissions}
}

func (s *GuestService) checkGrant(ctx context.Context, agencyID uuid.UUID, req GrantRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if req.AccessStart != nil && req.AccessEnd != nil && !req.AccessEnd.After(*req.AccessStart) {
		return invalid("access_end: must be after access_start")
	}
	for _, id := range dedupeIDs(req.AllowedEventIDs) {
		e, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if e == nil || e.AgencyID != agencyID {
			return invalid("allowed_event_ids: event %s does not belong to the agency", id)
		}
	}
	return nil
}

func (s *GuestService) CreateGrant(ctx context.Context, p *model.Principal, agencyID uuid.UUID, req GrantRequest) (*model.GuestGrant, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.checkGrant(ctx, agencyID, req); err != nil {
		return nil, err
	}
	user, err := s.store.GetProfileByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: no user registered with %s", ErrNotFound, req.Email)
	}

	createdBy := p.UserID
	g := &model.GuestGrant{
		UserID:          user.ID,
		AgencyID:        agencyID,
		PermissionLevel: req.PermissionLevel,
		AllowedEventIDs: dedupeIDs(req.AllowedEventIDs),
		AccessStart:     req.AccessStart,
		AccessEnd:       req.AccessEnd,
		IsActive:        req.IsActive,
		CreatedBy:       &createdBy,
	}
	if err := s.store.CreateGrant(ctx, g); err != nil {
		if isConflict(fromStore(err)) {
			return nil, fmt.Errorf("%w: user already has guest access to this agency", ErrConflict)
		}
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to create guest grant")
		return nil, fromStore(err)
	}
	log.Info().Str("grant_id", g.ID.String()).Str("agency_id", agencyID.String()).Str("level", string(g.PermissionLevel)).Msg("Guest grant created")
	return g, nil
}

func (s *GuestService) grant(ctx context.Context, agencyID, id uuid.UUID) (*model.GuestGrant, error) {
	g, err := s.store.GetGrantByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil || g.AgencyID != agencyID {
		return nil, fmt.Errorf("%w: guest grant", ErrNotFound)
	}
	return g, nil
}

// UpdateGrant replaces level, events, window and active flag. The grantee is fixed.
func (s *GuestService) UpdateGrant(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, req GrantRequest) (*model.GuestGrant, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	g, err := s.grant(ctx, agencyID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkGrant(ctx, agencyID, req); err != nil {
		return nil, err
	}
	g.PermissionLevel = req.PermissionLevel
	g.AllowedEventIDs = dedupeIDs(req.AllowedEventIDs)
	g.AccessStart, g.AccessEnd = req.AccessStart, req.AccessEnd
	g.IsActive = req.IsActive
	if err := s.store.UpdateGrant(ctx, g); err != nil {
		return nil, fromStore(err)
	}
	return g, nil
}

func (s *GuestService) DeleteGrant(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID) error {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return err
	}
	return fromStore(s.store.DeleteGrant(ctx, agencyID, id))
}

func (s *GuestService) ListGrants(ctx context.Context, p *model.Principal, agencyID uuid.UUID) ([]*model.GuestGrant, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	return s.store.ListGrants(ctx, agencyID)
}

// MyGrants lists the active grants held by p, across agencies
func (s *GuestService) MyGrants(ctx context.Context, p *model.Principal) ([]*model.GuestGrant, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	return s.store.ListGrantsForUser(ctx, p.UserID)
}

// BulkUpdateStatus is the guest dashboard bulk action. Moderation rights are
// checked again on every event the selected submissions belong to.
func (s *GuestService) BulkUpdateStatus(ctx context.Context, p *model.Principal, agencyID uuid.UUID, ids []uuid.UUID, to model.SubmissionStatus, reason string) (int64, error) {
	return s.submissions.bulkUpdate(ctx, p, agencyID, ids, to, reason, SourceGuest)
}

func (s *GuestService) UpdateStatus(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, to model.SubmissionStatus, reason string) error {
	return s.submissions.updateOne(ctx, p, agencyID, id, to, reason, SourceGuest)
}
