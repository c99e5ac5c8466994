package model

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the billing state of an agency
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionSuspended, SubscriptionCancelled:
		return true
	}
	return false
}

// Agency represents the agencies table. It is the tenant unit.
type Agency struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	PlanKey            string             `json:"plan_key"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	TrialStart         *time.Time         `json:"trial_start,omitempty"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty"`
	PlanExpiresAt      *time.Time         `json:"plan_expires_at,omitempty"`
	MaxInfluencers     int                `json:"max_influencers"`
	MaxEvents          int                `json:"max_events"`
	OwnerUserID        *uuid.UUID         `json:"owner_user_id,omitempty"`
	SignupToken        string             `json:"signup_token,omitempty"`
	LogoURL            string             `json:"logo_url,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// SubscriptionPlan represents the subscription_plans table
type SubscriptionPlan struct {
	PlanKey        string `json:"plan_key"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	MaxInfluencers int    `json:"max_influencers"`
	MaxEvents      int    `json:"max_events"`
	IsVisible      bool   `json:"is_visible"`
}

// CheckoutSession represents the checkout_sessions table
type CheckoutSession struct {
	ID        uuid.UUID `json:"id"`
	AgencyID  uuid.UUID `json:"agency_id"`
	PlanKey   string    `json:"plan_key"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile represents the profiles table (one row per authenticated user)
type Profile struct {
	ID           uuid.UUID  `json:"id"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Instagram    string     `json:"instagram,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	AgencyID     *uuid.UUID `json:"agency_id,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RejectionTemplate represents the rejection_templates table
type RejectionTemplate struct {
	ID        uuid.UUID `json:"id"`
	AgencyID  uuid.UUID `json:"agency_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
