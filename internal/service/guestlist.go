package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

// MinFormFillTime is the fastest a human fills the registration form;
// quicker submissions are flagged as bot suspects
const MinFormFillTime = 3 * time.Second

type GuestListStore interface {
	GetAgencyBySlug(ctx context.Context, slug string) (*model.Agency, error)
	CreateGuestListEvent(ctx context.Context, e *model.GuestListEvent) error
	GetGuestListEvent(ctx context.Context, id uuid.UUID) (*model.GuestListEvent, error)
	GetGuestListEventBySlug(ctx context.Context, agencyID uuid.UUID, slug string) (*model.GuestListEvent, error)
	ListGuestListEvents(ctx context.Context, agencyID uuid.UUID) ([]*model.GuestListEvent, error)
	UpdateGuestListEvent(ctx context.Context, e *model.GuestListEvent) error
	DeleteGuestListEventCascade(ctx context.Context, agencyID, eventID uuid.UUID) ([]store.StepResult, error)
	CreateGuestListDate(ctx context.Context, d *model.GuestListDate) error
	GetGuestListDate(ctx context.Context, id uuid.UUID) (*model.GuestListDate, error)
	ListGuestListDates(ctx context.Context, eventID uuid.UUID) ([]*model.GuestListDate, error)
	UpdateGuestListDate(ctx context.Context, d *model.GuestListDate) error
	DeleteGuestListDate(ctx context.Context, id uuid.UUID) error
	CreateRegistration(ctx context.Context, r *model.GuestListRegistration) error
	ListRegistrations(ctx context.Context, eventID uuid.UUID, dateID *uuid.UUID) ([]model.GuestListRegistration, error)
	TrackAnalytics(ctx context.Context, a *model.GuestListAnalytics) error
	AnalyticsSummary(ctx context.Context, eventID uuid.UUID) (map[model.AnalyticsEventType]int, error)
}

type GuestListEventRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"required,slug"`
	Description string `json:"description" validate:"max=5000"`
	Location    string `json:"location" validate:"max=300"`
	CoverURL    string `json:"cover_url" validate:"omitempty,url"`
	IsActive    bool   `json:"is_active"`
}

type GuestListDateRequest struct {
	EventDate                 time.Time                    `json:"event_date" validate:"required"`
	StartTime                 string                       `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime                   string                       `json:"end_time" validate:"omitempty,datetime=15:04"`
	PriceTypes                []string                     `json:"price_types" validate:"required,min=1,dive,required,max=40"`
	PriceDetails              map[string]model.PriceDetail `json:"price_details" validate:"required"`
	MaxCapacity               *int                         `json:"max_capacity" validate:"omitempty,gte=1"`
	IsActive                  bool                         `json:"is_active"`
	AlternativeLinkMale       string                       `json:"alternative_link_male" validate:"omitempty,url"`
	AlternativeLinkFemale     string                       `json:"alternative_link_female" validate:"omitempty,url"`
	ShowAlternativeAfterStart bool                         `json:"show_alternative_after_start"`
}

// RegistrationRequest is the public guest list form. Website is a honeypot
// field hidden from humans; FormStartedAt is stamped when the form renders.
type RegistrationRequest struct {
	DateID        uuid.UUID  `json:"date_id" validate:"required"`
	FullName      string     `json:"full_name" validate:"required,min=3,max=120"`
	Email         string     `json:"email" validate:"required,email"`
	Phone         string     `json:"phone" validate:"required,phone"`
	Gender        string     `json:"gender" validate:"required,oneof=male female"`
	UTMSource     string     `json:"utm_source" validate:"max=100"`
	UTMMedium     string     `json:"utm_medium" validate:"max=100"`
	UTMCampaign   string     `json:"utm_campaign" validate:"max=100"`
	Website       string     `json:"website"`
	FormStartedAt *time.Time `json:"form_started_at"`
}

// botSuspect applies the registration heuristics: a filled honeypot or a
// form completed faster than MinFormFillTime
func botSuspect(req RegistrationRequest, now time.Time) bool {
	if strings.TrimSpace(req.Website) != "" {
		return true
	}
	return req.FormStartedAt != nil && now.Sub(*req.FormStartedAt) < MinFormFillTime
}

// PublicGuestList is the public page of a guest list event
type PublicGuestList struct {
	Agency *model.Agency          `json:"agency"`
	Event  *model.GuestListEvent  `json:"event"`
	Dates  []*model.GuestListDate `json:"dates"`
}

// GuestListSummary aggregates registrations and funnel analytics of an event
type GuestListSummary struct {
	Registrations int                              `json:"registrations"`
	BotSuspects   int                              `json:"bot_suspects"`
	ByDate        map[uuid.UUID]int                `json:"by_date"`
	ByGender      map[string]int                   `json:"by_gender"`
	Funnel        map[model.AnalyticsEventType]int `json:"funnel"`
}

type GuestListService struct {
	store GuestListStore
	authz *Authorizer
	now   func() time.Time
}

func NewGuestListService(st GuestListStore, authz *Authorizer) *GuestListService {
	return &GuestListService{store: st, authz: authz, now: time.Now}
}

func (s *GuestListService) event(ctx context.Context, agencyID, id uuid.UUID) (*model.GuestListEvent, error) {
	e, err := s.store.GetGuestListEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil || e.AgencyID != agencyID {
		return nil, fmt.Errorf("%w: guest list event", ErrNotFound)
	}
	return e, nil
}

func (s *GuestListService) date(ctx context.Context, agencyID, id uuid.UUID) (*model.GuestListDate, error) {
	d, err := s.store.GetGuestListDate(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: guest list date", ErrNotFound)
	}
	if _, err := s.event(ctx, agencyID, d.EventID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *GuestListService) CreateEvent(ctx context.Context, p *model.Principal, agencyID uuid.UUID, req GuestListEventRequest) (*model.GuestListEvent, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	e := &model.GuestListEvent{AgencyID: agencyID}
	applyGuestListEvent(e, req)
	if err := s.store.CreateGuestListEvent(ctx, e); err != nil {
		if isConflict(fromStore(err)) {
			return nil, fmt.Errorf("%w: slug %s already exists", ErrConflict, req.Slug)
		}
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to create guest list event")
		return nil, fromStore(err)
	}
	return e, nil
}

func applyGuestListEvent(e *model.GuestListEvent, req GuestListEventRequest) {
	e.Name = strings.TrimSpace(req.Name)
	e.Slug = req.Slug
	e.Description = req.Description
	e.Location = req.Location
	e.CoverURL = req.CoverURL
	e.IsActive = req.IsActive
}

func (s *GuestListService) ListEvents(ctx context.Context, p *model.Principal, agencyID uuid.UUID) ([]*model.GuestListEvent, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	return s.store.ListGuestListEvents(ctx, agencyID)
}

func (s *GuestListService) UpdateEvent(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, req GuestListEventRequest) (*model.GuestListEvent, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	e, err := s.event(ctx, agencyID, id)
	if err != nil {
		return nil, err
	}
	applyGuestListEvent(e, req)
	if err := s.store.UpdateGuestListEvent(ctx, e); err != nil {
		return nil, fromStore(err)
	}
	return e, nil
}

// DeleteEvent removes the event with its dates, registrations and analytics
func (s *GuestListService) DeleteEvent(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID) ([]store.StepResult, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	return runCascadeDelete(ctx, "guest_list_event", id, func() ([]store.StepResult, error) {
		return s.store.DeleteGuestListEventCascade(ctx, agencyID, id)
	})
}

func checkDate(req GuestListDateRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	d := model.GuestListDate{PriceTypes: req.PriceTypes, PriceDetails: req.PriceDetails}
	if missing := d.MissingPriceTypes(); len(missing) > 0 {
		return invalid("price_details: missing prices for %s", strings.Join(missing, ", "))
	}
	if req.StartTime != "" && req.EndTime != "" && req.StartTime == req.EndTime {
		return invalid("end_time: must differ from start_time")
	}
	return nil
}

func applyDate(d *model.GuestListDate, req GuestListDateRequest) {
	d.EventDate = req.EventDate
	d.StartTime = req.StartTime
	d.EndTime = req.EndTime
	d.PriceTypes = req.PriceTypes
	d.PriceDetails = req.PriceDetails
	d.MaxCapacity = req.MaxCapacity
	d.IsActive = req.IsActive
	d.AlternativeLinkMale = req.AlternativeLinkMale
	d.AlternativeLinkFemale = req.AlternativeLinkFemale
	d.ShowAlternativeAfterStart = req.ShowAlternativeAfterStart
}

func (s *GuestListService) CreateDate(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID, req GuestListDateRequest) (*model.GuestListDate, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	if err := checkDate(req); err != nil {
		return nil, err
	}
	if _, err := s.event(ctx, agencyID, eventID); err != nil {
		return nil, err
	}
	d := &model.GuestListDate{EventID: eventID}
	applyDate(d, req)
	if err := s.store.CreateGuestListDate(ctx, d); err != nil {
		return nil, fromStore(err)
	}
	return d, nil
}

func (s *GuestListService) ListDates(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID) ([]*model.GuestListDate, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	if _, err := s.event(ctx, agencyID, eventID); err != nil {
		return nil, err
	}
	return s.store.ListGuestListDates(ctx, eventID)
}

func (s *GuestListService) UpdateDate(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID, req GuestListDateRequest) (*model.GuestListDate, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	if err := checkDate(req); err != nil {
		return nil, err
	}
	d, err := s.date(ctx, agencyID, id)
	if err != nil {
		return nil, err
	}
	applyDate(d, req)
	if err := s.store.UpdateGuestListDate(ctx, d); err != nil {
		return nil, fromStore(err)
	}
	return d, nil
}

// DeleteDate removes a date together with its registrations
func (s *GuestListService) DeleteDate(ctx context.Context, p *model.Principal, agencyID, id uuid.UUID) error {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return err
	}
	if _, err := s.date(ctx, agencyID, id); err != nil {
		return err
	}
	return fromStore(s.store.DeleteGuestListDate(ctx, id))
}

// Public resolves the public page of an active guest list event with its
// active dates
func (s *GuestListService) Public(ctx context.Context, agencySlug, eventSlug string) (*PublicGuestList, error) {
	agency, err := s.store.GetAgencyBySlug(ctx, strings.ToLower(agencySlug))
	if err != nil {
		return nil, err
	}
	if agency == nil {
		return nil, fmt.Errorf("%w: agency", ErrNotFound)
	}
	e, err := s.store.GetGuestListEventBySlug(ctx, agency.ID, strings.ToLower(eventSlug))
	if err != nil {
		return nil, err
	}
	if e == nil || !e.IsActive {
		return nil, fmt.Errorf("%w: guest list event", ErrNotFound)
	}
	dates, err := s.store.ListGuestListDates(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	active := make([]*model.GuestListDate, 0, len(dates))
	for _, d := range dates {
		if d.IsActive {
			active = append(active, d)
		}
	}
	return &PublicGuestList{Agency: agency, Event: e, Dates: active}, nil
}

// Register adds a public registration to an active date. Suspected bots are
// stored flagged instead of refused.
func (s *GuestListService) Register(ctx context.Context, eventID uuid.UUID, req RegistrationRequest) (*model.GuestListRegistration, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	e, err := s.store.GetGuestListEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil || !e.IsActive {
		return nil, fmt.Errorf("%w: guest list event", ErrNotFound)
	}
	d, err := s.store.GetGuestListDate(ctx, req.DateID)
	if err != nil {
		return nil, err
	}
	if d == nil || d.EventID != eventID {
		return nil, fmt.Errorf("%w: guest list date", ErrNotFound)
	}

	r := &model.GuestListRegistration{
		EventID:      eventID,
		DateID:       req.DateID,
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Gender:       req.Gender,
		UTMSource:    req.UTMSource,
		UTMMedium:    req.UTMMedium,
		UTMCampaign:  req.UTMCampaign,
		IsBotSuspect: botSuspect(req, s.now()),
	}
	if err := s.store.CreateRegistration(ctx, r); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: list is closed or full", ErrConflict)
		}
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to create registration")
		return nil, fromStore(err)
	}
	if r.IsBotSuspect {
		log.Warn().Str("registration_id", r.ID.String()).Str("event_id", eventID.String()).Msg("Registration flagged as bot suspect")
	}
	return r, nil
}

type AnalyticsRequest struct {
	DateID    *uuid.UUID               `json:"date_id"`
	EventType model.AnalyticsEventType `json:"event_type" validate:"required"`
	SessionID string                   `json:"session_id" validate:"max=100"`
	UTMSource string                   `json:"utm_source" validate:"max=100"`
}

// Track records a funnel event of the public page
func (s *GuestListService) Track(ctx context.Context, eventID uuid.UUID, req AnalyticsRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if !req.EventType.Valid() {
		return invalid("event_type: must be one of view form_start share_click")
	}
	e, err := s.store.GetGuestListEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: guest list event", ErrNotFound)
	}
	return fromStore(s.store.TrackAnalytics(ctx, &model.GuestListAnalytics{
		EventID:   eventID,
		DateID:    req.DateID,
		EventType: req.EventType,
		SessionID: req.SessionID,
		UTMSource: req.UTMSource,
	}))
}

// Registrations lists the registrations of an event, optionally of one date
func (s *GuestListService) Registrations(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID, dateID *uuid.UUID) ([]model.GuestListRegistration, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageAgency); err != nil {
		return nil, err
	}
	if _, err := s.event(ctx, agencyID, eventID); err != nil {
		return nil, err
	}
	return s.store.ListRegistrations(ctx, eventID, dateID)
}

func (s *GuestListService) Summary(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID) (*GuestListSummary, error) {
	regs, err := s.Registrations(ctx, p, agencyID, eventID, nil)
	if err != nil {
		return nil, err
	}
	funnel, err := s.store.AnalyticsSummary(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sum := &GuestListSummary{
		Registrations: len(regs),
		ByDate:        map[uuid.UUID]int{},
		ByGender:      map[string]int{},
		Funnel:        funnel,
	}
	for _, r := range regs {
		sum.ByDate[r.DateID]++
		sum.ByGender[r.Gender]++
		if r.IsBotSuspect {
			sum.BotSuspects++
		}
	}
	return sum, nil
}
