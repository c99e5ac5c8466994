package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/crypto"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

type SessionStore interface {
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	AddUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error
	ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (uuid.UUID, error)
}

type SignUpRequest struct {
	FullName string `json:"full_name" validate:"required,min=3,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type PasswordResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SessionService checks credentials. Issuing the session token is left to
// the transport.
type SessionService struct {
	store SessionStore
	now   func() time.Time
}

func NewSessionService(st SessionStore) *SessionService {
	return &SessionService{store: st, now: time.Now}
}

func (s *SessionService) SignUp(ctx context.Context, req SignUpRequest) (*model.Profile, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	profile := &model.Profile{FullName: req.FullName, Email: req.Email, PasswordHash: hash}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		if isConflict(fromStore(err)) {
			return nil, fmt.Errorf("%w: e-mail already in use", ErrConflict)
		}
		return nil, fromStore(err)
	}
	if err := s.store.AddUserRole(ctx, profile.ID, model.RoleUser); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", profile.ID.String()).Msg("User signed up")
	return profile, nil
}

// Login returns the profile matching the credentials. Unknown e-mails and
// wrong passwords fail the same way.
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (*model.Profile, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	profile, err := s.store.GetProfileByEmail(ctx, req.Email)
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up profile")
		return nil, err
	}
	if profile == nil || profile.PasswordHash == "" || !crypto.CheckPassword(profile.PasswordHash, req.Password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	return profile, nil
}

// ResetPassword consumes a reset link token issued by create-agency-admin
func (s *SessionService) ResetPassword(ctx context.Context, req PasswordResetRequest) (uuid.UUID, error) {
	if err := validateStruct(req); err != nil {
		return uuid.Nil, err
	}
	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := s.store.ResetPassword(ctx, req.Token, hash, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, invalid("token: invalid or expired")
	}
	if err != nil {
		return uuid.Nil, err
	}
	log.Info().Str("user_id", id.String()).Msg("Password reset")
	return id, nil
}
