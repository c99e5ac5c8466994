package functions

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/crypto"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const resetTokenTTL = 72 * time.Hour

// Store is the persistence used by the built-in functions
type Store interface {
	GetAgency(ctx context.Context, id uuid.UUID) (*model.Agency, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	AddUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error
	SetAgencyOwner(ctx context.Context, agencyID, userID uuid.UUID) error
	SetPasswordResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetPlan(ctx context.Context, planKey string) (*model.SubscriptionPlan, error)
	CreateCheckoutSession(ctx context.Context, cs *model.CheckoutSession) error
}

// Handlers implements the built-in business functions
type Handlers struct {
	store           Store
	resetBaseURL    string
	checkoutBaseURL string
	now             func() time.Time
}

func NewHandlers(st Store, resetBaseURL, checkoutBaseURL string) *Handlers {
	return &Handlers{
		store:           st,
		resetBaseURL:    strings.TrimRight(resetBaseURL, "/"),
		checkoutBaseURL: strings.TrimRight(checkoutBaseURL, "/"),
		now:             time.Now,
	}
}

// Register adds every built-in function to l
func (h *Handlers) Register(l *Local) {
	l.Register(CreateAgencyAdmin, h.CreateAgencyAdmin)
	l.Register(CreateCheckoutSession, h.CreateCheckoutSession)
}

// CreateAgencyAdmin links (creating when needed) the profile of admin_email
// as the owner of agency_id and returns a password reset link for it
func (h *Handlers) CreateAgencyAdmin(ctx context.Context, body map[string]any) (map[string]any, error) {
	rawID, err := stringArg(body, "agency_id")
	if err != nil {
		return nil, err
	}
	agencyID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: agency_id", ErrInvalidArgument)
	}
	email, err := stringArg(body, "admin_email")
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	name, _ := body["admin_name"].(string)

	agency, err := h.store.GetAgency(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	if agency == nil {
		return nil, fmt.Errorf("%w: agency %s", ErrNotFound, agencyID)
	}

	profile, err := h.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &model.Profile{FullName: name, Email: email}
		if err := h.store.CreateProfile(ctx, profile); err != nil {
			log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to create admin profile")
			return nil, err
		}
	}
	if err := h.store.AddUserRole(ctx, profile.ID, model.RoleAgencyAdmin); err != nil {
		return nil, err
	}
	if err := h.store.SetAgencyOwner(ctx, agencyID, profile.ID); err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to set agency owner")
		return nil, err
	}

	token, err := crypto.RandomToken(32)
	if err != nil {
		return nil, err
	}
	if err := h.store.SetPasswordResetToken(ctx, profile.ID, token, h.now().Add(resetTokenTTL)); err != nil {
		return nil, err
	}
	link := h.resetBaseURL + "?token=" + url.QueryEscape(token)
	log.Info().Str("agency_id", agencyID.String()).Str("user_id", profile.ID.String()).Msg("Agency admin provisioned")
	return map[string]any{
		"success":    true,
		"user_id":    profile.ID.String(),
		"reset_link": link,
	}, nil
}

// CreateCheckoutSession records a checkout session for plan_key and returns its URL
func (h *Handlers) CreateCheckoutSession(ctx context.Context, body map[string]any) (map[string]any, error) {
	planKey, err := stringArg(body, "plan_key")
	if err != nil {
		return nil, err
	}
	rawID, err := stringArg(body, "agency_id")
	if err != nil {
		return nil, err
	}
	agencyID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: agency_id", ErrInvalidArgument)
	}

	plan, err := h.store.GetPlan(ctx, planKey)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsVisible {
		return nil, fmt.Errorf("%w: plan %s", ErrNotFound, planKey)
	}

	cs := &model.CheckoutSession{ID: uuid.New(), AgencyID: agencyID, PlanKey: plan.PlanKey}
	cs.URL = fmt.Sprintf("%s/%s?plan=%s&agency=%s", h.checkoutBaseURL, cs.ID, url.QueryEscape(plan.PlanKey), agencyID)
	if err := h.store.CreateCheckoutSession(ctx, cs); err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to record checkout session")
		return nil, err
	}
	return map[string]any{"url": cs.URL, "session_id": cs.ID.String()}, nil
}
