package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	UpdateProfileFields(ctx context.Context, p *model.Profile) error
	AddUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error
}

type ProfileRequest struct {
	FullName  string `json:"full_name" validate:"required,min=3,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Instagram string `json:"instagram" validate:"required,max=60"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other"`
}

type ProfileService struct {
	store ProfileStore
}

func NewProfileService(st ProfileStore) *ProfileService {
	return &ProfileService{store: st}
}

func (s *ProfileService) Get(ctx context.Context, p *model.Principal) (*model.Profile, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	profile, err := s.store.GetProfile(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: profile", ErrNotFound)
	}
	return profile, nil
}

// Upsert creates the contributor profile of p on first use and updates the
// editable fields afterwards. The e-mail is fixed once the profile exists.
func (s *ProfileService) Upsert(ctx context.Context, p *model.Principal, req ProfileRequest) (*model.Profile, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Instagram = strings.TrimPrefix(strings.TrimSpace(req.Instagram), "@")
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, p.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to get profile")
		return nil, err
	}
	if profile == nil {
		profile = &model.Profile{
			ID:        p.UserID,
			FullName:  req.FullName,
			Email:     req.Email,
			Instagram: req.Instagram,
			Phone:     req.Phone,
			Gender:    req.Gender,
		}
		if err := s.store.CreateProfile(ctx, profile); err != nil {
			if isConflict(fromStore(err)) {
				return nil, fmt.Errorf("%w: e-mail already in use", ErrConflict)
			}
			return nil, fromStore(err)
		}
		if err := s.store.AddUserRole(ctx, profile.ID, model.RoleUser); err != nil {
			return nil, err
		}
		log.Info().Str("user_id", profile.ID.String()).Msg("Profile created")
		return profile, nil
	}

	profile.FullName = req.FullName
	profile.Instagram = req.Instagram
	profile.Phone = req.Phone
	profile.Gender = req.Gender
	if err := s.store.UpdateProfileFields(ctx, profile); err != nil {
		return nil, fromStore(err)
	}
	return profile, nil
}
