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
	"github.com/teresa-solution/agency-hub-service/internal/functions"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/monitoring"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

// AgencyStore is the persistence used by AgencyService
type AgencyStore interface {
	CreateAgency(ctx context.Context, a *model.Agency) error
	GetAgency(ctx context.Context, id uuid.UUID) (*model.Agency, error)
	GetAgencyBySlug(ctx context.Context, slug string) (*model.Agency, error)
	ListAgencies(ctx context.Context) ([]*model.Agency, error)
	UpdateAgency(ctx context.Context, a *model.Agency) error
	SetAgencyOwner(ctx context.Context, agencyID, userID uuid.UUID) error
	CountAgencyDependents(ctx context.Context, agencyID uuid.UUID) (store.AgencyDependents, error)
	DeleteAgencyCascade(ctx context.Context, agencyID uuid.UUID) ([]store.StepResult, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetPlan(ctx context.Context, planKey string) (*model.SubscriptionPlan, error)
	ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error)
	ListRejectionTemplates(ctx context.Context, agencyID uuid.UUID) ([]model.RejectionTemplate, error)
	CreateRejectionTemplate(ctx context.Context, t *model.RejectionTemplate) error
	DeleteRejectionTemplate(ctx context.Context, agencyID, id uuid.UUID) error
}

// AgencyNotifier fans agency changes out to connected dashboards
type AgencyNotifier interface {
	PublishAgency(ctx context.Context, agency *model.Agency) error
}

type CreateAgencyRequest struct {
	Name           string        `json:"name" validate:"required,max=120"`
	Slug           string        `json:"slug" validate:"required,slug"`
	PlanKey        string        `json:"plan_key" validate:"omitempty,max=40"`
	MaxInfluencers int           `json:"max_influencers" validate:"gte=0"`
	MaxEvents      int           `json:"max_events" validate:"gte=0"`
	Admin          *AdminAccount `json:"admin" validate:"omitempty"`
}

// UpdateAgencyRequest changes an agency. Nil fields are left untouched;
// billing fields are reserved to master admins.
type UpdateAgencyRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=120"`
	Slug    *string `json:"slug" validate:"omitempty,slug"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url"`

	PlanKey            *string                   `json:"plan_key" validate:"omitempty,max=40"`
	SubscriptionStatus *model.SubscriptionStatus `json:"subscription_status" validate:"omitempty"`
	PlanExpiresAt      *time.Time                `json:"plan_expires_at"`
	MaxInfluencers     *int                      `json:"max_influencers" validate:"omitempty,gte=0"`
	MaxEvents          *int                      `json:"max_events" validate:"omitempty,gte=0"`
}

func (r UpdateAgencyRequest) touchesBilling() bool {
	return r.PlanKey != nil || r.SubscriptionStatus != nil || r.PlanExpiresAt != nil || r.MaxInfluencers != nil || r.MaxEvents != nil
}

// AgencyCreated is the result of Create
type AgencyCreated struct {
	Agency    *model.Agency    `json:"agency"`
	Provision *ProvisionResult `json:"provision,omitempty"`
}

type AgencyService struct {
	store       AgencyStore
	authz       *Authorizer
	provisioner *Provisioner
	notifier    AgencyNotifier
	trialDays   int
	now         func() time.Time
}

// NewAgencyService wires agency administration. notifier may be nil.
func NewAgencyService(st AgencyStore, authz *Authorizer, provisioner *Provisioner, notifier AgencyNotifier, trialDays int) *AgencyService {
	return &AgencyService{store: st, authz: authz, provisioner: provisioner, notifier: notifier, trialDays: trialDays, now: time.Now}
}

func (s *AgencyService) mustGet(ctx context.Context, id uuid.UUID) (*model.Agency, error) {
	agency, err := s.store.GetAgency(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("agency_id", id.String()).Msg("Failed to get agency")
		return nil, err
	}
	if agency == nil {
		return nil, fmt.Errorf("%w: agency", ErrNotFound)
	}
	return agency, nil
}

// Create registers a new agency on a trial and provisions its admin
func (s *AgencyService) Create(ctx context.Context, p *model.Principal, req CreateAgencyRequest) (*AgencyCreated, error) {
	if err := s.authz.Authorize(ctx, p, uuid.Nil, nil, model.CapManageAgencies); err != nil {
		return nil, err
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	existing, err := s.store.GetAgencyBySlug(ctx, req.Slug)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check slug uniqueness")
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: slug %s already exists", ErrConflict, req.Slug)
	}

	now := s.now()
	trialEnd := now.AddDate(0, 0, s.trialDays)
	agency := &model.Agency{
		Name:               req.Name,
		Slug:               req.Slug,
		PlanKey:            req.PlanKey,
		SubscriptionStatus: model.SubscriptionTrial,
		TrialStart:         &now,
		TrialEnd:           &trialEnd,
		MaxInfluencers:     req.MaxInfluencers,
		MaxEvents:          req.MaxEvents,
	}
	if req.PlanKey != "" {
		plan, err := s.store.GetPlan(ctx, req.PlanKey)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, invalid("plan_key: unknown plan %s", req.PlanKey)
		}
		if agency.MaxInfluencers == 0 {
			agency.MaxInfluencers = plan.MaxInfluencers
		}
		if agency.MaxEvents == 0 {
			agency.MaxEvents = plan.MaxEvents
		}
	}
	if agency.SignupToken, err = crypto.RandomToken(16); err != nil {
		return nil, err
	}

	if err := s.store.CreateAgency(ctx, agency); err != nil {
		log.Error().Err(err).Str("slug", agency.Slug).Msg("Failed to create agency")
		return nil, fromStore(err)
	}
	log.Info().Str("agency_id", agency.ID.String()).Str("slug", agency.Slug).Msg("Agency created")

	out := &AgencyCreated{Agency: agency}
	if req.Admin != nil && s.provisioner != nil {
		res := s.provisioner.Provision(ctx, agency, *req.Admin)
		out.Provision = &res
	}
	return out, nil
}

func (s *AgencyService) Get(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Agency, error) {
	if err := s.authz.Authorize(ctx, p, id, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	return s.mustGet(ctx, id)
}

// GetBySlug resolves a public agency page; it needs no principal
func (s *AgencyService) GetBySlug(ctx context.Context, slug string) (*model.Agency, error) {
	agency, err := s.store.GetAgencyBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, err
	}
	if agency == nil {
		return nil, fmt.Errorf("%w: agency", ErrNotFound)
	}
	return agency, nil
}

// List returns every agency for master admins and the administered ones otherwise
func (s *AgencyService) List(ctx context.Context, p *model.Principal) ([]*model.Agency, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	all, err := s.store.ListAgencies(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list agencies")
		return nil, err
	}
	if p.IsMasterAdmin() {
		return all, nil
	}
	out := make([]*model.Agency, 0)
	for _, a := range all {
		if p.AdministersAgency(a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AgencyService) Update(ctx context.Context, p *model.Principal, id uuid.UUID, req UpdateAgencyRequest) (*model.Agency, error) {
	capability := model.CapManageAgency
	if req.touchesBilling() {
		capability = model.CapManageAgencies
	}
	if err := s.authz.Authorize(ctx, p, id, nil, capability); err != nil {
		return nil, err
	}
	if req.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*req.Slug))
		req.Slug = &slug
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.SubscriptionStatus != nil && !req.SubscriptionStatus.Valid() {
		return nil, invalid("subscription_status: must be one of trial active suspended cancelled")
	}

	agency, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Slug != nil && *req.Slug != agency.Slug {
		existing, err := s.store.GetAgencyBySlug(ctx, *req.Slug)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: slug %s already exists", ErrConflict, *req.Slug)
		}
		agency.Slug = *req.Slug
	}
	if req.Name != nil {
		agency.Name = strings.TrimSpace(*req.Name)
	}
	if req.LogoURL != nil {
		agency.LogoURL = *req.LogoURL
	}
	if req.PlanKey != nil {
		agency.PlanKey = *req.PlanKey
	}
	if req.SubscriptionStatus != nil {
		agency.SubscriptionStatus = *req.SubscriptionStatus
	}
	if req.PlanExpiresAt != nil {
		agency.PlanExpiresAt = req.PlanExpiresAt
	}
	if req.MaxInfluencers != nil {
		agency.MaxInfluencers = *req.MaxInfluencers
	}
	if req.MaxEvents != nil {
		agency.MaxEvents = *req.MaxEvents
	}

	if err := s.store.UpdateAgency(ctx, agency); err != nil {
		log.Error().Err(err).Str("agency_id", id.String()).Msg("Failed to update agency")
		return nil, fromStore(err)
	}
	if s.notifier != nil {
		if err := s.notifier.PublishAgency(ctx, agency); err != nil {
			log.Warn().Err(err).Str("agency_id", id.String()).Msg("Failed to publish agency update")
		}
	}
	return agency, nil
}

// SetOwner makes userID the single owning admin of the agency
func (s *AgencyService) SetOwner(ctx context.Context, p *model.Principal, agencyID, userID uuid.UUID) error {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgencies); err != nil {
		return err
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: user", ErrNotFound)
	}
	if err := s.store.SetAgencyOwner(ctx, agencyID, userID); err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to set agency owner")
		return fromStore(err)
	}
	return nil
}

// ProvisionAdmin retries admin provisioning for an existing agency
func (s *AgencyService) ProvisionAdmin(ctx context.Context, p *model.Principal, agencyID uuid.UUID, admin AdminAccount) (*ProvisionResult, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgencies); err != nil {
		return nil, err
	}
	if err := validateStruct(admin); err != nil {
		return nil, err
	}
	agency, err := s.mustGet(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	res := s.provisioner.Provision(ctx, agency, admin)
	return &res, nil
}

// Delete removes an agency and everything it owns in one transaction. An
// agency that still has events or submissions is only deleted when
// confirmation is the literal ConfirmationWord.
func (s *AgencyService) Delete(ctx context.Context, p *model.Principal, id uuid.UUID, confirmation string) ([]store.StepResult, error) {
	if err := s.authz.Authorize(ctx, p, id, nil, model.CapManageAgencies); err != nil {
		return nil, err
	}
	if _, err := s.mustGet(ctx, id); err != nil {
		return nil, err
	}
	deps, err := s.store.CountAgencyDependents(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deps.Trivial() && strings.TrimSpace(confirmation) != ConfirmationWord {
		return nil, fmt.Errorf("%w: agency has %d events and %d submissions; type %s to confirm",
			ErrConfirmationRequired, deps.Events, deps.Submissions, ConfirmationWord)
	}
	return runCascadeDelete(ctx, "agency", id, func() ([]store.StepResult, error) {
		return s.store.DeleteAgencyCascade(ctx, id)
	})
}

// StartCheckout returns a payment URL for upgrading the agency to planKey
func (s *AgencyService) StartCheckout(ctx context.Context, p *model.Principal, agencyID uuid.UUID, planKey string) (string, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return "", err
	}
	if strings.TrimSpace(planKey) == "" {
		return "", invalid("plan_key: is required")
	}
	url, err := s.provisioner.StartCheckout(ctx, agencyID, planKey)
	if err != nil {
		return "", fromFunctions(err)
	}
	return url, nil
}

func (s *AgencyService) Plans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	return s.store.ListPlans(ctx)
}

func (s *AgencyService) RejectionTemplates(ctx context.Context, p *model.Principal, agencyID uuid.UUID) ([]model.RejectionTemplate, error) {
	if _, _, err := s.authz.EventScope(ctx, p, agencyID, model.CapModerateSubmissions); err != nil {
		return nil, err
	}
	return s.store.ListRejectionTemplates(ctx, agencyID)
}

type RejectionTemplateRequest struct {
	Title   string `json:"title" validate:"required,max=80"`
	Message string `json:"message" validate:"required,max=500"`
}

func (s *AgencyService) CreateRejectionTemplate(ctx context.Context, p *model.Principal, agencyID uuid.UUID, req RejectionTemplateRequest) (*model.RejectionTemplate, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	t := &model.RejectionTemplate{AgencyID: agencyID, Title: req.Title, Message: req.Message}
	if err := s.store.CreateRejectionTemplate(ctx, t); err != nil {
		return nil, fromStore(err)
	}
	return t, nil
}

func (s *AgencyService) DeleteRejectionTemplate(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID) error {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return err
	}
	return fromStore(s.store.DeleteRejectionTemplate(ctx, agencyID, id))
}

// runCascadeDelete runs a dependency-ordered delete, counting and alerting on the outcome
func runCascadeDelete(ctx context.Context, kind string, target uuid.UUID, del func() ([]store.StepResult, error)) ([]store.StepResult, error) {
	done, err := del()
	if err != nil {
		monitoring.CascadeDeletes.WithLabelValues(kind, "failed").Inc()
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, kind)
		}
		alert := map[string]string{"kind": kind, "target_id": target.String()}
		var ce *store.CascadeError
		if errors.As(err, &ce) {
			alert["step"] = ce.Step
		}
		monitoring.Alert("cascade delete rolled back", alert)
		log.Error().Err(err).Str("kind", kind).Str("target_id", target.String()).Msg("Cascade delete failed")
		return nil, fromStore(err)
	}
	monitoring.CascadeDeletes.WithLabelValues(kind, "committed").Inc()
	log.Info().Str("kind", kind).Str("target_id", target.String()).Int("steps", len(done)).Msg("Cascade delete committed")
	return done, nil
}

// fromFunctions converts remote function errors into service errors
func fromFunctions(err error) error {
	switch {
	case errors.Is(err, functions.ErrInvalidArgument):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case errors.Is(err, functions.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
