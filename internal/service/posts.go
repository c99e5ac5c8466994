package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

type PostStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	CreatePost(ctx context.Context, p *model.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error)
	ListPosts(ctx context.Context, eventID uuid.UUID) ([]*model.Post, error)
	UpdatePost(ctx context.Context, p *model.Post) error
	DeletePostCascade(ctx context.Context, agencyID, postID uuid.UUID) ([]store.StepResult, error)
}

type PostRequest struct {
	PostNumber int       `json:"post_number" validate:"gte=0,lte=100"`
	Deadline   time.Time `json:"deadline" validate:"required"`

	// PostType defaults from the number and the event purpose
	PostType model.PostType `json:"post_type"`
}

type PostService struct {
	store PostStore
	authz *Authorizer
}

func NewPostService(st PostStore, authz *Authorizer) *PostService {
	return &PostService{store: st, authz: authz}
}

func (s *PostService) event(ctx context.Context, agencyID, eventID uuid.UUID) (*model.Event, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil || e.AgencyID != agencyID {
		return nil, fmt.Errorf("%w: event", ErrNotFound)
	}
	return e, nil
}

func (s *PostService) post(ctx context.Context, agencyID, postID uuid.UUID) (*model.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.AgencyID != agencyID {
		return nil, fmt.Errorf("%w: post", ErrNotFound)
	}
	return post, nil
}

// postType resolves the type of a post: number 0 is always the sale slot
func postType(event *model.Event, req PostRequest) (model.PostType, error) {
	if req.PostNumber == model.SalePostNumber {
		if req.PostType != "" && req.PostType != model.PostTypeSale {
			return "", invalid("post_type: post 0 is the sale slot")
		}
		return model.PostTypeSale, nil
	}
	switch req.PostType {
	case "":
		if event.Purpose == model.PurposeProfileSelection {
			return model.PostTypeProfileSelection, nil
		}
		return model.PostTypePost, nil
	case model.PostTypePost, model.PostTypeProfileSelection:
		return req.PostType, nil
	case model.PostTypeSale:
		return "", invalid("post_type: only post 0 can be the sale slot")
	}
	return "", invalid("post_type: unknown type %s", req.PostType)
}

func (s *PostService) Create(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID, req PostRequest) (*model.Post, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, &eventID, model.CapManagePosts); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	event, err := s.event(ctx, agencyID, eventID)
	if err != nil {
		return nil, err
	}
	typ, err := postType(event, req)
	if err != nil {
		return nil, err
	}
	post := &model.Post{EventID: eventID, AgencyID: agencyID, PostNumber: req.PostNumber, Deadline: req.Deadline, PostType: typ}
	if err := s.store.CreatePost(ctx, post); err != nil {
		if isConflict(fromStore(err)) {
			return nil, fmt.Errorf("%w: post %d already exists", ErrConflict, req.PostNumber)
		}
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to create post")
		return nil, fromStore(err)
	}
	return post, nil
}

func (s *PostService) List(ctx context.Context, p *model.Principal, agencyID, eventID uuid.UUID) ([]*model.Post, error) {
	if err := s.authz.Authorize(ctx, p, agencyID, &eventID, model.CapViewSubmissions); err != nil {
		return nil, err
	}
	if _, err := s.event(ctx, agencyID, eventID); err != nil {
		return nil, err
	}
	return s.store.ListPosts(ctx, eventID)
}

func (s *PostService) Update(ctx context.Context, p *model.Principal, agencyID, postID uuid.UUID, req PostRequest) (*model.Post, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	post, err := s.post(ctx, agencyID, postID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, agencyID, &post.EventID, model.CapManagePosts); err != nil {
		return nil, err
	}
	event, err := s.event(ctx, agencyID, post.EventID)
	if err != nil {
		return nil, err
	}
	typ, err := postType(event, req)
	if err != nil {
		return nil, err
	}
	post.PostNumber, post.Deadline, post.PostType = req.PostNumber, req.Deadline, typ
	if err := s.store.UpdatePost(ctx, post); err != nil {
		return nil, fromStore(err)
	}
	return post, nil
}

// Delete removes the post and its submissions in one transaction
func (s *PostService) Delete(ctx context.Context, p *model.Principal, agencyID, postID uuid.UUID) ([]store.StepResult, error) {
	post, err := s.post(ctx, agencyID, postID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, agencyID, &post.EventID, model.CapManagePosts); err != nil {
		return nil, err
	}
	return runCascadeDelete(ctx, "post", postID, func() ([]store.StepResult, error) {
		return s.store.DeletePostCascade(ctx, agencyID, postID)
	})
}
