package model

import (
	"time"

	"github.com/google/uuid"
)

// EventPurpose selects how posts are offered to contributors
type EventPurpose string

const (
	PurposePromotion        EventPurpose = "divulgacao"
	PurposeProfileSelection EventPurpose = "selecao_perfil"
)

func (p EventPurpose) Valid() bool {
	return p == PurposePromotion || p == PurposeProfileSelection
}

// SalePostNumber is the reserved post number of the sale-proof slot
const SalePostNumber = 0

// Event represents the events table
type Event struct {
	ID                       uuid.UUID    `json:"id"`
	AgencyID                 uuid.UUID    `json:"agency_id"`
	Title                    string       `json:"title"`
	Description              string       `json:"description"`
	EventDate                *time.Time   `json:"event_date,omitempty"`
	Location                 string       `json:"location"`
	Capacity                 int          `json:"capacity"`
	IsActive                 bool         `json:"is_active"`
	Purpose                  EventPurpose `json:"purpose"`
	AcceptPosts              bool         `json:"accept_posts"`
	AcceptSales              bool         `json:"accept_sales"`
	TargetGender             string       `json:"target_gender"`
	RequireProfileScreenshot bool         `json:"require_profile_screenshot"`
	RequirePostScreenshot    bool         `json:"require_post_screenshot"`
	WhatsAppGroupLink        string       `json:"whatsapp_group_link,omitempty"`
	CreatedAt                time.Time    `json:"created_at"`
	UpdatedAt                time.Time    `json:"updated_at"`
}

// EventRequirement represents the event_requirements table
type EventRequirement struct {
	ID            uuid.UUID `json:"id"`
	EventID       uuid.UUID `json:"event_id"`
	RequiredPosts int       `json:"required_posts"`
	RequiredSales int       `json:"required_sales"`
	Description   string    `json:"description"`
	DisplayOrder  int       `json:"display_order"`
}

// EventFAQ represents the event_faqs table
type EventFAQ struct {
	ID           uuid.UUID `json:"id"`
	EventID      uuid.UUID `json:"event_id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	IsVisible    bool      `json:"is_visible"`
	DisplayOrder int       `json:"display_order"`
}

// PostType is the kind of slot a post represents
type PostType string

const (
	PostTypePost             PostType = "post"
	PostTypeSale             PostType = "sale"
	PostTypeProfileSelection PostType = "selecao_perfil"
)

// Post represents the posts table. Each post is one submission slot of an event.
type Post struct {
	ID         uuid.UUID `json:"id"`
	EventID    uuid.UUID `json:"event_id"`
	AgencyID   uuid.UUID `json:"agency_id"`
	PostNumber int       `json:"post_number"`
	Deadline   time.Time `json:"deadline"`
	PostType   PostType  `json:"post_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsSaleSlot reports whether the post is the event's sale-proof slot
func (p *Post) IsSaleSlot() bool {
	return p.PostNumber == SalePostNumber
}

// Open reports whether the post still accepts submissions at now
func (p *Post) Open(now time.Time) bool {
	return p.Deadline.After(now)
}
