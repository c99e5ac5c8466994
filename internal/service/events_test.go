package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

func launchRequest(title string) EventRequest {
	return EventRequest{Title: title, IsActive: true, Purpose: model.PurposePromotion, AcceptPosts: true}
}

func TestEventCreate_EnforcesQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, f.authz)

	f.store.agencies[f.agency.ID].MaxEvents = 2
	e, err := svc.Create(ctx, f.admin, f.agency.ID, launchRequest("  After Party "))
	require.NoError(t, err)
	assert.Equal(t, "After Party", e.Title)
	assert.Equal(t, "all", e.TargetGender)

	_, err = svc.Create(ctx, f.admin, f.agency.ID, launchRequest("Third"))
	assert.True(t, errors.Is(err, ErrConflict))

	f.store.agencies[f.agency.ID].MaxEvents = 0
	_, err = svc.Create(ctx, f.admin, f.agency.ID, launchRequest("Unlimited"))
	require.NoError(t, err)
}

func TestEventCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, f.authz)

	_, err := svc.Create(ctx, f.admin, f.agency.ID, EventRequest{Title: "No purpose"})
	assert.True(t, errors.Is(err, ErrValidation))

	req := launchRequest("Bad purpose")
	req.Purpose = "raffle"
	_, err = svc.Create(ctx, f.admin, f.agency.ID, req)
	assert.True(t, errors.Is(err, ErrValidation))

	req = launchRequest("Bad gender")
	req.TargetGender = "any"
	_, err = svc.Create(ctx, f.admin, f.agency.ID, req)
	assert.True(t, errors.Is(err, ErrValidation))

	manager := f.guest(t, model.PermissionManager, f.event.ID)
	_, err = svc.Create(ctx, manager, f.agency.ID, launchRequest("Guest event"))
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestEventDuplicate_CopiesInactiveWithSuffix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, f.authz)
	_, err := svc.ReplaceFAQs(ctx, f.admin, f.agency.ID, f.event.ID, []FAQRequest{{Question: "Dress code?", Answer: "Black", IsVisible: true}})
	require.NoError(t, err)

	dup, err := svc.Duplicate(ctx, f.admin, f.agency.ID, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch Party (cópia)", dup.Title)
	assert.False(t, dup.IsActive)
	assert.NotEqual(t, f.event.ID, dup.ID)

	detail, err := svc.Get(ctx, f.admin, f.agency.ID, dup.ID)
	require.NoError(t, err)
	require.Len(t, detail.FAQs, 1)
	assert.Equal(t, "Dress code?", detail.FAQs[0].Question)
}

func TestEventDuplicate_EnforcesQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, f.authz)

	f.store.agencies[f.agency.ID].MaxEvents = 1
	_, err := svc.Duplicate(ctx, f.admin, f.agency.ID, f.event.ID)
	assert.True(t, errors.Is(err, ErrConflict))

	f.store.agencies[f.agency.ID].MaxEvents = 2
	_, err = svc.Duplicate(ctx, f.admin, f.agency.ID, f.event.ID)
	require.NoError(t, err)
	_, err = svc.Duplicate(ctx, f.admin, f.agency.ID, f.event.ID)
	assert.True(t, errors.Is(err, ErrConflict))

	n, err := f.store.CountEvents(ctx, f.agency.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEventList_GuestSeesGrantedEventsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, f.authz)
	other, err := svc.Create(ctx, f.admin, f.agency.ID, launchRequest("Other"))
	require.NoError(t, err)

	all, err := svc.List(ctx, f.admin, f.agency.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	viewer := f.guest(t, model.PermissionViewer, other.ID)
	mine, err := svc.List(ctx, viewer, f.agency.ID, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, other.ID, mine[0].ID)

	_, err = svc.Get(ctx, viewer, f.agency.ID, f.event.ID)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestEventDelete_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, f.authz)
	post := f.addPost(t, f.event.ID, 1, time.Now().Add(time.Hour))
	f.addSubmission(t, f.event.ID, post, model.StatusPending, 0)
	f.addSubmission(t, f.event.ID, post, model.StatusApproved, time.Minute)

	steps, err := svc.Delete(ctx, f.admin, f.agency.ID, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), steps[0].Rows)
	assert.Empty(t, f.store.submissions)
	assert.Empty(t, f.store.posts)

	_, err = svc.Delete(ctx, f.admin, f.agency.ID, f.event.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEventReplaceRequirements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, f.authz)

	out, err := svc.ReplaceRequirements(ctx, f.admin, f.agency.ID, f.event.ID, []RequirementRequest{
		{RequiredPosts: 2, Description: "2 posts"},
		{RequiredSales: 1, Description: "1 venda"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].DisplayOrder)
	assert.Equal(t, 1, out[1].DisplayOrder)

	_, err = svc.ReplaceRequirements(ctx, f.admin, f.agency.ID, f.event.ID, []RequirementRequest{{Description: "nothing"}})
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Len(t, f.store.requirements[f.event.ID], 2)

	_, err = svc.ReplaceRequirements(ctx, f.admin, f.agency.ID, uuid.New(), nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostType(t *testing.T) {
	promo := &model.Event{Purpose: model.PurposePromotion}
	selection := &model.Event{Purpose: model.PurposeProfileSelection}

	cases := []struct {
		name  string
		event *model.Event
		req   PostRequest
		want  model.PostType
		err   bool
	}{
		{"zero is the sale slot", promo, PostRequest{PostNumber: 0}, model.PostTypeSale, false},
		{"zero cannot be a post", promo, PostRequest{PostNumber: 0, PostType: model.PostTypePost}, "", true},
		{"promotion default", promo, PostRequest{PostNumber: 1}, model.PostTypePost, false},
		{"selection default", selection, PostRequest{PostNumber: 1}, model.PostTypeProfileSelection, false},
		{"sale needs zero", promo, PostRequest{PostNumber: 2, PostType: model.PostTypeSale}, "", true},
		{"unknown type", promo, PostRequest{PostNumber: 2, PostType: "story"}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := postType(tc.event, tc.req)
			if tc.err {
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPostCreate_UniqueNumberPerEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewPostService(f.store, f.authz)
	deadline := time.Now().Add(24 * time.Hour)

	sale, err := svc.Create(ctx, f.admin, f.agency.ID, f.event.ID, PostRequest{PostNumber: 0, Deadline: deadline})
	require.NoError(t, err)
	assert.Equal(t, model.PostTypeSale, sale.PostType)

	_, err = svc.Create(ctx, f.admin, f.agency.ID, f.event.ID, PostRequest{PostNumber: 0, Deadline: deadline})
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "post 0 already exists")

	_, err = svc.Create(ctx, f.admin, f.agency.ID, f.event.ID, PostRequest{PostNumber: 101, Deadline: deadline})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.Create(ctx, f.admin, f.agency.ID, f.event.ID, PostRequest{PostNumber: 1})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPostCreate_GuestManagerOnGrantedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewPostService(f.store, f.authz)
	deadline := time.Now().Add(time.Hour)

	manager := f.guest(t, model.PermissionManager, f.event.ID)
	_, err := svc.Create(ctx, manager, f.agency.ID, f.event.ID, PostRequest{PostNumber: 1, Deadline: deadline})
	require.NoError(t, err)

	moderator := f.guest(t, model.PermissionModerator, f.event.ID)
	_, err = svc.Create(ctx, moderator, f.agency.ID, f.event.ID, PostRequest{PostNumber: 2, Deadline: deadline})
	assert.True(t, errors.Is(err, ErrForbidden))

	posts, err := svc.List(ctx, moderator, f.agency.ID, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestPostUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewPostService(f.store, f.authz)
	post := f.addPost(t, f.event.ID, 1, time.Now().Add(time.Hour))
	f.addSubmission(t, f.event.ID, post, model.StatusPending, 0)

	later := time.Now().Add(48 * time.Hour)
	updated, err := svc.Update(ctx, f.admin, f.agency.ID, post.ID, PostRequest{PostNumber: 1, Deadline: later})
	require.NoError(t, err)
	assert.True(t, updated.Deadline.Equal(later))

	steps, err := svc.Delete(ctx, f.admin, f.agency.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "post", steps[len(steps)-1].Step)
	assert.Empty(t, f.store.submissions)

	_, err = svc.Delete(ctx, f.admin, f.agency.ID, post.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
