package model

import (
	"time"

	"github.com/google/uuid"
)

// GuestListEvent represents the guest_list_events table (VIP list feature)
type GuestListEvent struct {
	ID          uuid.UUID `json:"id"`
	AgencyID    uuid.UUID `json:"agency_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	CoverURL    string    `json:"cover_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PriceDetail is the price of one tier for each gender
type PriceDetail struct {
	MalePrice   float64 `json:"male_price"`
	FemalePrice float64 `json:"female_price"`
	Description string  `json:"description,omitempty"`
}

// GuestListDate represents the guest_list_dates table
type GuestListDate struct {
	ID                        uuid.UUID              `json:"id"`
	EventID                   uuid.UUID              `json:"event_id"`
	EventDate                 time.Time              `json:"event_date"`
	StartTime                 string                 `json:"start_time,omitempty"`
	EndTime                   string                 `json:"end_time,omitempty"`
	PriceTypes                []string               `json:"price_types"`
	PriceDetails              map[string]PriceDetail `json:"price_details"`
	MaxCapacity               *int                   `json:"max_capacity,omitempty"`
	IsActive                  bool                   `json:"is_active"`
	AlternativeLinkMale       string                 `json:"alternative_link_male,omitempty"`
	AlternativeLinkFemale     string                 `json:"alternative_link_female,omitempty"`
	ShowAlternativeAfterStart bool                   `json:"show_alternative_after_start"`
	CreatedAt                 time.Time              `json:"created_at"`
}

// MissingPriceTypes returns every selected price type that has no entry in PriceDetails
func (d *GuestListDate) MissingPriceTypes() []string {
	var missing []string
	for _, t := range d.PriceTypes {
		if _, ok := d.PriceDetails[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// GuestListRegistration represents the guest_list_registrations table
type GuestListRegistration struct {
	ID           uuid.UUID `json:"id"`
	EventID      uuid.UUID `json:"event_id"`
	DateID       uuid.UUID `json:"date_id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Gender       string    `json:"gender"`
	UTMSource    string    `json:"utm_source,omitempty"`
	UTMMedium    string    `json:"utm_medium,omitempty"`
	UTMCampaign  string    `json:"utm_campaign,omitempty"`
	IsBotSuspect bool      `json:"is_bot_suspect"`
	RegisteredAt time.Time `json:"registered_at"`

	// Populated by list queries
	EventName string     `json:"event_name,omitempty"`
	EventDate *time.Time `json:"event_date,omitempty"`
}

// AnalyticsEventType of the guest list funnel
type AnalyticsEventType string

const (
	AnalyticsView       AnalyticsEventType = "view"
	AnalyticsFormStart  AnalyticsEventType = "form_start"
	AnalyticsShareClick AnalyticsEventType = "share_click"
)

func (t AnalyticsEventType) Valid() bool {
	return t == AnalyticsView || t == AnalyticsFormStart || t == AnalyticsShareClick
}

// GuestListAnalytics represents the guest_list_analytics table
type GuestListAnalytics struct {
	ID        uuid.UUID          `json:"id"`
	EventID   uuid.UUID          `json:"event_id"`
	DateID    *uuid.UUID         `json:"date_id,omitempty"`
	EventType AnalyticsEventType `json:"event_type"`
	SessionID string             `json:"session_id,omitempty"`
	UTMSource string             `json:"utm_source,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}
