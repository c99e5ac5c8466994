package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/monitoring"
	"github.com/teresa-solution/agency-hub-service/internal/storage"
)

// IntakeState is a step of the contributor submission flow
type IntakeState string

const (
	StateSelectingEvent IntakeState = "selecting-event"
	StateSelectingType  IntakeState = "selecting-submission-type"
	StateSelectingPost  IntakeState = "selecting-post"
	StateFillingProfile IntakeState = "filling-profile"
	StateUploading      IntakeState = "uploading"
	StateConfirming     IntakeState = "confirming"
	StateSubmitting     IntakeState = "submitting"
	StateDone           IntakeState = "done"
	StateError          IntakeState = "error"
)

const (
	rateLimitAction        = "submission"
	rateLimitMax           = 5
	rateLimitWindowMinutes = 60
	maxScreenshots         = 5
)

// IntakeStore is the persistence used by IntakeService
type IntakeStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	ListPosts(ctx context.Context, eventID uuid.UUID) ([]*model.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error)
	ActivePostIDs(ctx context.Context, userID, eventID uuid.UUID) ([]uuid.UUID, error)
	HasActiveSubmission(ctx context.Context, userID, postID uuid.UUID) (bool, error)
	CheckRateLimit(ctx context.Context, userID uuid.UUID, actionType string, maxCount, windowMinutes int) (bool, error)
	PostOpen(ctx context.Context, postID uuid.UUID) (bool, error)
	CreateSubmission(ctx context.Context, sub *model.Submission) error
}

// IntakeOptions is what a contributor may submit for an event right now
type IntakeOptions struct {
	Event *model.Event           `json:"event"`
	Types []model.SubmissionType `json:"types"`

	// Posts offered for a normal submission. Promotion events offer only the
	// earliest open post not yet submitted; profile selection offers them all.
	Posts                []*model.Post `json:"posts"`
	AutoSelectedPost     *uuid.UUID    `json:"auto_selected_post,omitempty"`
	SaleSlot             *model.Post   `json:"sale_slot,omitempty"`
	RequireFollowerRange bool          `json:"require_follower_range"`
	FollowerRanges       []string      `json:"follower_ranges,omitempty"`
	State                IntakeState   `json:"state"`
}

// SubmitRequest is the final form of the contributor flow
type SubmitRequest struct {
	EventID        uuid.UUID            `json:"event_id" validate:"required"`
	PostID         *uuid.UUID           `json:"post_id" validate:"omitempty"`
	Type           model.SubmissionType `json:"type" validate:"required,oneof=post sale"`
	FollowersRange string               `json:"followers_range" validate:"omitempty,max=20"`
	UTMSource      string               `json:"utm_source" validate:"max=100"`
	UTMMedium      string               `json:"utm_medium" validate:"max=100"`
	UTMCampaign    string               `json:"utm_campaign" validate:"max=100"`
}

// Screenshot is one uploaded image, read fully before the checks run
type Screenshot struct {
	Filename string
	Data     []byte
}

type IntakeService struct {
	store  IntakeStore
	bucket storage.Bucket
	now    func() time.Time
}

func NewIntakeService(st IntakeStore, bucket storage.Bucket) *IntakeService {
	return &IntakeService{store: st, bucket: bucket, now: time.Now}
}

func (s *IntakeService) openEvent(ctx context.Context, eventID uuid.UUID) (*model.Event, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to get event")
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event", ErrNotFound)
	}
	if !event.IsActive {
		return nil, invalid("event: no longer accepting submissions")
	}
	return event, nil
}

// Options lists the submission types and slots available to p on eventID at now
func (s *IntakeService) Options(ctx context.Context, p *model.Principal, eventID uuid.UUID) (*IntakeOptions, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	event, err := s.openEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.ListPosts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	active, err := s.store.ActivePostIDs(ctx, p.UserID, eventID)
	if err != nil {
		return nil, err
	}
	return buildOptions(event, posts, active, s.now()), nil
}

// buildOptions applies the offering rules to posts, which arrive ordered by deadline
func buildOptions(event *model.Event, posts []*model.Post, submitted []uuid.UUID, now time.Time) *IntakeOptions {
	done := make(map[uuid.UUID]bool, len(submitted))
	for _, id := range submitted {
		done[id] = true
	}
	opts := &IntakeOptions{Event: event, Posts: []*model.Post{}}
	selection := event.Purpose == model.PurposeProfileSelection

	for _, post := range posts {
		if !post.Open(now) {
			continue
		}
		if post.IsSaleSlot() {
			if event.AcceptSales && opts.SaleSlot == nil {
				opts.SaleSlot = post
			}
			continue
		}
		if !event.AcceptPosts || done[post.ID] {
			continue
		}
		opts.Posts = append(opts.Posts, post)
		if !selection {
			break
		}
	}

	if len(opts.Posts) > 0 {
		opts.Types = append(opts.Types, model.SubmissionPost)
	}
	if opts.SaleSlot != nil {
		opts.Types = append(opts.Types, model.SubmissionSale)
	}
	if selection {
		opts.RequireFollowerRange = true
		opts.FollowerRanges = model.FollowerRanges
	} else if len(opts.Posts) == 1 {
		id := opts.Posts[0].ID
		opts.AutoSelectedPost = &id
	}

	switch {
	case len(opts.Types) == 0:
		opts.State = StateDone
	case len(opts.Types) > 1:
		opts.State = StateSelectingType
	case opts.Types[0] == model.SubmissionSale:
		opts.State = StateUploading
	case opts.AutoSelectedPost != nil:
		opts.State = StateUploading
	default:
		opts.State = StateSelectingPost
	}
	if selection && opts.State == StateUploading {
		opts.State = StateFillingProfile
	}
	return opts
}

// Submit runs the final checks and creates a pending submission. The order
// is fixed: validation (images are decoded and compressed here), duplicate
// check (posts only), rate limit, deadline, upload, insert. Nothing is
// uploaded or inserted unless every check passed, and uploads are removed
// again when a later upload or the insert fails.
func (s *IntakeService) Submit(ctx context.Context, p *model.Principal, req SubmitRequest, shots []Screenshot, profileShot *Screenshot) (*model.Submission, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrForbidden)
	}
	post, event, images, err := s.validateSubmit(ctx, p, req, shots, profileShot)
	if err != nil {
		monitoring.SubmissionsRejectedAtIntake.WithLabelValues("validation").Inc()
		return nil, err
	}

	if req.Type == model.SubmissionPost {
		dup, err := s.store.HasActiveSubmission(ctx, p.UserID, post.ID)
		if err != nil {
			return nil, err
		}
		if dup {
			monitoring.SubmissionsRejectedAtIntake.WithLabelValues("duplicate").Inc()
			return nil, fmt.Errorf("%w: post #%d", ErrAlreadySubmitted, post.PostNumber)
		}
	}

	allowed, err := s.store.CheckRateLimit(ctx, p.UserID, rateLimitAction, rateLimitMax, rateLimitWindowMinutes)
	if err != nil {
		log.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to check rate limit")
		return nil, err
	}
	if !allowed {
		monitoring.SubmissionsRejectedAtIntake.WithLabelValues("rate_limit").Inc()
		return nil, fmt.Errorf("%w: at most %d submissions per %d minutes", ErrRateLimited, rateLimitMax, rateLimitWindowMinutes)
	}

	open, err := s.store.PostOpen(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if !open {
		monitoring.SubmissionsRejectedAtIntake.WithLabelValues("deadline").Inc()
		return nil, fmt.Errorf("%w: post #%d", ErrDeadlinePassed, post.PostNumber)
	}

	sub := &model.Submission{
		UserID:         p.UserID,
		PostID:         &post.ID,
		EventID:        event.ID,
		AgencyID:       event.AgencyID,
		SubmissionType: req.Type,
		FollowersRange: req.FollowersRange,
		UTMSource:      req.UTMSource,
		UTMMedium:      req.UTMMedium,
		UTMCampaign:    req.UTMCampaign,
	}
	dir := fmt.Sprintf("%s/%s/%s", event.AgencyID, event.ID, p.UserID)
	var uploaded []string
	for _, data := range images.shots {
		key, err := s.upload(ctx, dir, data)
		if err != nil {
			s.discard(ctx, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, key)
		sub.ScreenshotPaths = append(sub.ScreenshotPaths, key)
	}
	if len(sub.ScreenshotPaths) > 0 {
		sub.ScreenshotPath = sub.ScreenshotPaths[0]
	}
	if images.profile != nil {
		key, err := s.upload(ctx, dir+"/profile", images.profile)
		if err != nil {
			s.discard(ctx, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, key)
		sub.ProfileScreenshotPath = key
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		s.discard(ctx, uploaded)
		err = fromStore(err)
		if isConflict(err) {
			return nil, fmt.Errorf("%w: post #%d", ErrAlreadySubmitted, post.PostNumber)
		}
		log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to create submission")
		return nil, err
	}
	monitoring.SubmissionsCreated.WithLabelValues(string(sub.SubmissionType)).Inc()
	log.Info().Str("submission_id", sub.ID.String()).Str("event_id", event.ID.String()).Str("type", string(sub.SubmissionType)).Msg("Submission created")
	return sub, nil
}

// compressedImages are the screenshots of a submission, ready to upload
type compressedImages struct {
	shots   [][]byte
	profile []byte
}

// validateSubmit checks the request against the event, resolves the target
// post and compresses every image, so a bad file fails before anything else
// is consumed
func (s *IntakeService) validateSubmit(ctx context.Context, p *model.Principal, req SubmitRequest, shots []Screenshot, profileShot *Screenshot) (*model.Post, *model.Event, *compressedImages, error) {
	if err := validateStruct(req); err != nil {
		return nil, nil, nil, err
	}
	event, err := s.openEvent(ctx, req.EventID)
	if err != nil {
		return nil, nil, nil, err
	}

	var post *model.Post
	switch req.Type {
	case model.SubmissionPost:
		if !event.AcceptPosts {
			return nil, nil, nil, invalid("type: event does not accept posts")
		}
		if req.PostID == nil {
			return nil, nil, nil, invalid("post: select a post")
		}
		if post, err = s.store.GetPost(ctx, *req.PostID); err != nil {
			return nil, nil, nil, err
		}
		if post == nil || post.EventID != event.ID || post.IsSaleSlot() {
			return nil, nil, nil, fmt.Errorf("%w: post", ErrNotFound)
		}
		if event.Purpose != model.PurposeProfileSelection {
			if err := s.checkQueue(ctx, p, event, post); err != nil {
				return nil, nil, nil, err
			}
		}
	case model.SubmissionSale:
		if !event.AcceptSales {
			return nil, nil, nil, invalid("type: event does not accept sales")
		}
		if post, err = s.saleSlot(ctx, event.ID, req.PostID); err != nil {
			return nil, nil, nil, err
		}
	}

	if event.Purpose == model.PurposeProfileSelection && req.Type == model.SubmissionPost {
		if !contains(model.FollowerRanges, req.FollowersRange) {
			return nil, nil, nil, invalid("followers_range: choose one of the listed ranges")
		}
	}
	if len(shots) > maxScreenshots {
		return nil, nil, nil, invalid("screenshots: at most %d images", maxScreenshots)
	}
	if event.RequirePostScreenshot && len(shots) == 0 {
		return nil, nil, nil, invalid("screenshots: at least one image is required")
	}
	if event.RequireProfileScreenshot && profileShot == nil {
		return nil, nil, nil, invalid("profile_screenshot: is required")
	}

	images := &compressedImages{shots: make([][]byte, 0, len(shots))}
	for _, shot := range shots {
		data, err := compress(shot)
		if err != nil {
			return nil, nil, nil, err
		}
		images.shots = append(images.shots, data)
	}
	if profileShot != nil {
		if images.profile, err = compress(*profileShot); err != nil {
			return nil, nil, nil, err
		}
	}
	return post, event, images, nil
}

// checkQueue enforces the one-at-a-time order of promotion events: an open,
// not yet submitted post is accepted only when it is the one Options offers.
// Submitted or closed posts fall through to the duplicate and deadline checks.
func (s *IntakeService) checkQueue(ctx context.Context, p *model.Principal, event *model.Event, post *model.Post) error {
	now := s.now()
	if !post.Open(now) {
		return nil
	}
	active, err := s.store.ActivePostIDs(ctx, p.UserID, event.ID)
	if err != nil {
		return err
	}
	for _, id := range active {
		if id == post.ID {
			return nil
		}
	}
	posts, err := s.store.ListPosts(ctx, event.ID)
	if err != nil {
		return err
	}
	opts := buildOptions(event, posts, active, now)
	if len(opts.Posts) == 1 && opts.Posts[0].ID != post.ID {
		return invalid("post: post #%d must be submitted first", opts.Posts[0].PostNumber)
	}
	return nil
}

func (s *IntakeService) saleSlot(ctx context.Context, eventID uuid.UUID, postID *uuid.UUID) (*model.Post, error) {
	if postID != nil {
		post, err := s.store.GetPost(ctx, *postID)
		if err != nil {
			return nil, err
		}
		if post == nil || post.EventID != eventID || !post.IsSaleSlot() {
			return nil, fmt.Errorf("%w: sale slot", ErrNotFound)
		}
		return post, nil
	}
	posts, err := s.store.ListPosts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, post := range posts {
		if post.IsSaleSlot() {
			return post, nil
		}
	}
	return nil, fmt.Errorf("%w: sale slot", ErrNotFound)
}

func compress(shot Screenshot) ([]byte, error) {
	data, err := storage.CompressImage(bytes.NewReader(shot.Data))
	if err != nil {
		return nil, invalid("screenshot %q: %v", shot.Filename, err)
	}
	return data, nil
}

func (s *IntakeService) upload(ctx context.Context, dir string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s.jpg", dir, uuid.New())
	if err := s.bucket.Upload(ctx, key, bytes.NewReader(data), storage.UploadOptions{ContentType: "image/jpeg"}); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload screenshot")
		return "", err
	}
	return key, nil
}

// discard removes objects of a submission that was not created
func (s *IntakeService) discard(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.bucket.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to remove orphaned screenshot")
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
