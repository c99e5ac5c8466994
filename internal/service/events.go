package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

// DuplicateSuffix is appended to the title of a duplicated event
const DuplicateSuffix = " (cópia)"

type EventStore interface {
	GetAgency(ctx context.Context, id uuid.UUID) (*model.Agency, error)
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	ListEvents(ctx context.Context, agencyID uuid.UUID, active *bool) ([]*model.Event, error)
	CountEvents(ctx context.Context, agencyID uuid.UUID) (int, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	DuplicateEvent(ctx context.Context, id uuid.UUID, title string) (*model.Event, error)
	DeleteEventCascade(ctx context.Context, agencyID, eventID uuid.UUID) ([]store.StepResult, error)
	ListRequirements(ctx context.Context, eventID uuid.UUID) ([]model.EventRequirement, error)
	ListFAQs(ctx context.Context, eventID uuid.UUID) ([]model.EventFAQ, error)
	ReplaceRequirements(ctx context.Context, eventID uuid.UUID, reqs []model.EventRequirement) error
	ReplaceFAQs(ctx context.Context, eventID uuid.UUID, faqs []model.EventFAQ) error
}

// EventRequest carries the editable fields of an event
type EventRequest struct {
	Title                    string             `json:"title" validate:"required,max=200"`
	Description              string             `json:"description" validate:"max=5000"`
	EventDate                *time.Time         `json:"event_date"`
	Location                 string             `json:"location" validate:"max=300"`
	Capacity                 int                `json:"capacity" validate:"gte=0"`
	IsActive                 bool               `json:"is_active"`
	Purpose                  model.EventPurpose `json:"purpose" validate:"required"`
	AcceptPosts              bool               `json:"accept_posts"`
	AcceptSales              bool               `json:"accept_sales"`
	TargetGender             string             `json:"target_gender" validate:"omitempty,oneof=all male female"`
	RequireProfileScreenshot bool               `json:"require_profile_screenshot"`
	RequirePostScreenshot    bool               `json:"require_post_screenshot"`
	WhatsAppGroupLink        string             `json:"whatsapp_group_link" validate:"omitempty,url"`
}

func (r EventRequest) apply(e *model.Event) {
	e.Title = strings.TrimSpace(r.Title)
	e.Description = r.Description
	e.EventDate = r.EventDate
	e.Location = r.Location
	e.Capacity = r.Capacity
	e.IsActive = r.IsActive
	e.Purpose = r.Purpose
	e.AcceptPosts = r.AcceptPosts
	e.AcceptSales = r.AcceptSales
	e.TargetGender = r.TargetGender
	if e.TargetGender == "" {
		e.TargetGender = "all"
	}
	e.RequireProfileScreenshot = r.RequireProfileScreenshot
	e.RequirePostScreenshot = r.RequirePostScreenshot
	e.WhatsAppGroupLink = r.WhatsAppGroupLink
}

func validateEvent(r EventRequest) error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if !r.Purpose.Valid() {
		return invalid("purpose: must be divulgacao or selecao_perfil")
	}
	return nil
}

// EventDetail is an event with its requirements and FAQs
type EventDetail struct {
	*model.Event
	Requirements []model.EventRequirement `json:"requirements"`
	FAQs         []model.EventFAQ         `json:"faqs"`
}

type EventService struct {
	store EventStore
	authz *Authorizer
}

func NewEventService(st EventStore, authz *Authorizer) *EventService {
	return &EventService{store: st, authz: authz}
}

// event loads eventID and checks it belongs to agencyID
func (s *EventService) event(ctx context.Context, agencyID, eventID uuid.UUID) (*model.Event, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to get event")
		return nil, err
	}
	if e == nil || e.AgencyID != agencyID {
		return nil, fmt.Errorf("%w: event", ErrNotFound)
	}
	return e, nil
}

// Create adds an event, honoring the agency's max_events quota (0 means unlimited)
func (s *EventService) Create(ctx context.Context, p *model.Principal, agencyID uuid.UUID, req EventRequest) (*model.Event, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageEvents); err != nil {
		return nil, err
	}
	if err := validateEvent(req); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, agencyID); err != nil {
		return nil, err
	}

	e := &model.Event{AgencyID: agencyID}
	req.apply(e)
	if err := s.store.CreateEvent(ctx, e); err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to create event")
		return nil, fromStore(err)
	}
	log.Info().Str("event_id", e.ID.String()).Str("agency_id", agencyID.String()).Msg("Event created")
	return e, nil
}

func (s *EventService) Get(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID) (*EventDetail, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, &eventID, model.CapViewSubmissions); err != nil {
		return nil, err
	}
	e, err := s.event(ctx, agencyID, eventID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequirements(ctx, eventID)
	if err != nil {
		return nil, err
	}
	faqs, err := s.store.ListFAQs(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &EventDetail{Event: e, Requirements: reqs, FAQs: faqs}, nil
}

// List returns the agency's events. Guests only see the events of their grant.
func (s *EventService) List(ctx context.Context, p *model.Principal, agencyID uuid.UUID, active *bool) ([]*model.Event, error) {
	allowed, unrestricted, err := s.authz.EventScope(ctx, p, agencyID, model.CapViewSubmissions)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, agencyID, active)
	if err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to list events")
		return nil, err
	}
	if unrestricted {
		return events, nil
	}
	out := make([]*model.Event, 0, len(allowed))
	for _, e := range events {
		for _, id := range allowed {
			if e.ID == id {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (s *EventService) Update(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID, req EventRequest) (*model.Event, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, &eventID, model.CapManageEvents); err != nil {
		return nil, err
	}
	if err := validateEvent(req); err != nil {
		return nil, err
	}
	e, err := s.event(ctx, agencyID, eventID)
	if err != nil {
		return nil, err
	}
	req.apply(e)
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to update event")
		return nil, fromStore(err)
	}
	return e, nil
}

// checkQuota fails with ErrConflict once the agency holds max_events events
func (s *EventService) checkQuota(ctx context.Context, agencyID uuid.UUID) error {
	agency, err := s.store.GetAgency(ctx, agencyID)
	if err != nil {
		return err
	}
	if agency == nil {
		return fmt.Errorf("%w: agency", ErrNotFound)
	}
	if agency.MaxEvents <= 0 {
		return nil
	}
	n, err := s.store.CountEvents(ctx, agencyID)
	if err != nil {
		return err
	}
	if n >= agency.MaxEvents {
		return fmt.Errorf("%w: plan allows %d events", ErrConflict, agency.MaxEvents)
	}
	return nil
}

// Duplicate copies an event with its requirements and FAQs. The copy is
// inactive and titled after the original.
func (s *EventService) Duplicate(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID) (*model.Event, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageEvents); err != nil {
		return nil, err
	}
	src, err := s.event(ctx, agencyID, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, agencyID); err != nil {
		return nil, err
	}
	dup, err := s.store.DuplicateEvent(ctx, eventID, src.Title+DuplicateSuffix)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to duplicate event")
		return nil, fromStore(err)
	}
	log.Info().Str("event_id", eventID.String()).Str("copy_id", dup.ID.String()).Msg("Event duplicated")
	return dup, nil
}

// Delete removes the event with its submissions, posts, FAQs and requirements
func (s *EventService) Delete(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID) ([]store.StepResult, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageEvents); err != nil {
		return nil, err
	}
	return runCascadeDelete(ctx, "event", eventID, func() ([]store.StepResult, error) {
		return s.store.DeleteEventCascade(ctx, agencyID, eventID)
	})
}

type RequirementRequest struct {
	RequiredPosts int    `json:"required_posts" validate:"gte=0"`
	RequiredSales int    `json:"required_sales" validate:"gte=0"`
	Description   string `json:"description" validate:"max=500"`
}

// ReplaceRequirements swaps the requirement list; order is the slice order
func (s *EventService) ReplaceRequirements(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID, reqs []RequirementRequest) ([]model.EventRequirement, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageEvents); err != nil {
		return nil, err
	}
	if _, err := s.event(ctx, agencyID, eventID); err != nil {
		return nil, err
	}
	out := make([]model.EventRequirement, 0, len(reqs))
	for i, r := range reqs {
		if err := validateStruct(r); err != nil {
			return nil, err
		}
		if r.RequiredPosts == 0 && r.RequiredSales == 0 {
			return nil, invalid("requirements[%d]: needs at least one post or sale", i)
		}
		out = append(out, model.EventRequirement{
			RequiredPosts: r.RequiredPosts,
			RequiredSales: r.RequiredSales,
			Description:   r.Description,
			DisplayOrder:  i,
		})
	}
	if err := s.store.ReplaceRequirements(ctx, eventID, out); err != nil {
		return nil, fromStore(err)
	}
	return out, nil
}

type FAQRequest struct {
	Question  string `json:"question" validate:"required,max=500"`
	Answer    string `json:"answer" validate:"required,max=5000"`
	IsVisible bool   `json:"is_visible"`
}

func (s *EventService) ReplaceFAQs(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID, faqs []FAQRequest) ([]model.EventFAQ, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, nil, model.CapManageEvents); err != nil {
		return nil, err
	}
	if _, err := s.event(ctx, agencyID, eventID); err != nil {
		return nil, err
	}
	out := make([]model.EventFAQ, 0, len(faqs))
	for i, f := range faqs {
		if err := validateStruct(f); err != nil {
			return nil, err
		}
		out = append(out, model.EventFAQ{Question: f.Question, Answer: f.Answer, IsVisible: f.IsVisible, DisplayOrder: i})
	}
	if err := s.store.ReplaceFAQs(ctx, eventID, out); err != nil {
		return nil, fromStore(err)
	}
	return out, nil
}
