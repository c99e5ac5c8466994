package model

import (
	"time"

	"github.com/google/uuid"
)

type SubmissionType string

const (
	SubmissionPost SubmissionType = "post"
	SubmissionSale SubmissionType = "sale"
)

func (t SubmissionType) Valid() bool {
	return t == SubmissionPost || t == SubmissionSale
}

type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed. Leaving a terminal
// status (approved/rejected) requires an explicit override.
func CanTransition(from, to SubmissionStatus, override bool) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if from == StatusPending {
		return to == StatusApproved || to == StatusRejected
	}
	return override
}

// FollowerRanges accepted by the profile-selection flow
var FollowerRanges = []string{"0-5k", "5k-10k", "10k-50k", "50k-100k", "100k+"}

// Submission represents the submissions table
type Submission struct {
	ID                    uuid.UUID        `json:"id"`
	UserID                uuid.UUID        `json:"user_id"`
	PostID                *uuid.UUID       `json:"post_id,omitempty"`
	EventID               uuid.UUID        `json:"event_id"`
	AgencyID              uuid.UUID        `json:"agency_id"`
	SubmissionType        SubmissionType   `json:"submission_type"`
	Status                SubmissionStatus `json:"status"`
	ScreenshotPath        string           `json:"screenshot_path,omitempty"`
	ScreenshotPaths       []string         `json:"screenshot_paths,omitempty"`
	ProfileScreenshotPath string           `json:"profile_screenshot_path,omitempty"`
	FollowersRange        string           `json:"followers_range,omitempty"`
	RejectionReason       string           `json:"rejection_reason,omitempty"`
	UTMSource             string           `json:"utm_source,omitempty"`
	UTMMedium             string           `json:"utm_medium,omitempty"`
	UTMCampaign           string           `json:"utm_campaign,omitempty"`
	SubmittedAt           time.Time        `json:"submitted_at"`
	ApprovedAt            *time.Time       `json:"approved_at,omitempty"`
	ApprovedBy            *uuid.UUID       `json:"approved_by,omitempty"`
}

// SubmissionRow is a submission joined with its profile, post and event
type SubmissionRow struct {
	Submission
	ProfileName      string     `json:"profile_name"`
	ProfileEmail     string     `json:"profile_email"`
	ProfileInstagram string     `json:"profile_instagram"`
	ProfileGender    string     `json:"profile_gender"`
	PostNumber       *int       `json:"post_number,omitempty"`
	PostType         string     `json:"post_type,omitempty"`
	PostDeadline     *time.Time `json:"post_deadline,omitempty"`
	EventTitle       string     `json:"event_title"`
}

// SubmissionLog represents the submission_logs table (status audit trail)
type SubmissionLog struct {
	ID           uuid.UUID        `json:"id"`
	SubmissionID uuid.UUID        `json:"submission_id"`
	ChangedBy    uuid.UUID        `json:"changed_by"`
	OldStatus    SubmissionStatus `json:"old_status,omitempty"`
	NewStatus    SubmissionStatus `json:"new_status"`
	Reason       string           `json:"reason,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
