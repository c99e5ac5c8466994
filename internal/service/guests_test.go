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

func registeredUser(t *testing.T, f *fixture, email string) *model.Profile {
	t.Helper()
	p := &model.Profile{FullName: "Guest User", Email: email}
	require.NoError(t, f.store.CreateProfile(context.Background(), p))
	return p
}

func TestGuestCreateGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewGuestService(f.store, f.authz, f.subs)
	user := registeredUser(t, f, "mod@acme.com")

	g, err := svc.CreateGrant(ctx, f.admin, f.agency.ID, GrantRequest{
		Email:           " MOD@acme.com ",
		PermissionLevel: model.PermissionModerator,
		AllowedEventIDs: []uuid.UUID{f.event.ID, f.event.ID},
		IsActive:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, g.UserID)
	assert.Equal(t, []uuid.UUID{f.event.ID}, g.AllowedEventIDs)
	assert.Equal(t, f.admin.UserID, *g.CreatedBy)
	assert.Contains(t, f.store.roles[user.ID], model.RoleGuest)

	_, err = svc.CreateGrant(ctx, f.admin, f.agency.ID, GrantRequest{
		Email:           "mod@acme.com",
		PermissionLevel: model.PermissionViewer,
		AllowedEventIDs: []uuid.UUID{f.event.ID},
	})
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestGuestCreateGrant_FailedWriteGrantsNoRole(t *testing.T) {
	f := newFixture(t)
	svc := NewGuestService(f.store, f.authz, f.subs)
	user := registeredUser(t, f, "late@acme.com")
	f.store.createGrantErr = errors.New("connection reset")

	_, err := svc.CreateGrant(context.Background(), f.admin, f.agency.ID, GrantRequest{
		Email:           "late@acme.com",
		PermissionLevel: model.PermissionViewer,
		AllowedEventIDs: []uuid.UUID{f.event.ID},
	})
	require.Error(t, err)
	assert.NotContains(t, f.store.roles[user.ID], model.RoleGuest)
	assert.Empty(t, f.store.grants)
}

func TestGuestCreateGrant_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewGuestService(f.store, f.authz, f.subs)
	registeredUser(t, f, "someone@acme.com")
	foreign := &model.Event{AgencyID: uuid.New(), Title: "Foreign"}
	require.NoError(t, f.store.CreateEvent(ctx, foreign))

	base := GrantRequest{Email: "someone@acme.com", PermissionLevel: model.PermissionViewer, AllowedEventIDs: []uuid.UUID{f.event.ID}}

	unknown := base
	unknown.Email = "nobody@acme.com"
	_, err := svc.CreateGrant(ctx, f.admin, f.agency.ID, unknown)
	assert.True(t, errors.Is(err, ErrNotFound))

	noEvents := base
	noEvents.AllowedEventIDs = nil
	_, err = svc.CreateGrant(ctx, f.admin, f.agency.ID, noEvents)
	assert.True(t, errors.Is(err, ErrValidation))

	badLevel := base
	badLevel.PermissionLevel = "owner"
	_, err = svc.CreateGrant(ctx, f.admin, f.agency.ID, badLevel)
	assert.True(t, errors.Is(err, ErrValidation))

	otherAgency := base
	otherAgency.AllowedEventIDs = []uuid.UUID{foreign.ID}
	_, err = svc.CreateGrant(ctx, f.admin, f.agency.ID, otherAgency)
	assert.True(t, errors.Is(err, ErrValidation))

	start := time.Now()
	end := start.Add(-time.Hour)
	window := base
	window.AccessStart, window.AccessEnd = &start, &end
	_, err = svc.CreateGrant(ctx, f.admin, f.agency.ID, window)
	assert.True(t, errors.Is(err, ErrValidation))

	manager := f.guest(t, model.PermissionManager, f.event.ID)
	_, err = svc.CreateGrant(ctx, manager, f.agency.ID, base)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestGuestUpdateAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewGuestService(f.store, f.authz, f.subs)
	user := registeredUser(t, f, "viewer@acme.com")
	guest := &model.Principal{UserID: user.ID, Roles: []model.Role{model.RoleGuest}}

	g, err := svc.CreateGrant(ctx, f.admin, f.agency.ID, GrantRequest{
		Email: "viewer@acme.com", PermissionLevel: model.PermissionViewer, AllowedEventIDs: []uuid.UUID{f.event.ID}, IsActive: true,
	})
	require.NoError(t, err)

	sub := f.addSubmission(t, f.event.ID, nil, model.StatusPending, 0)
	err = svc.UpdateStatus(ctx, guest, f.agency.ID, sub.ID, model.StatusApproved, "")
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = svc.UpdateGrant(ctx, f.admin, f.agency.ID, g.ID, GrantRequest{
		Email: "viewer@acme.com", PermissionLevel: model.PermissionModerator, AllowedEventIDs: []uuid.UUID{f.event.ID}, IsActive: true,
	})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, guest, f.agency.ID, sub.ID, model.StatusApproved, ""))
	assert.Equal(t, model.StatusApproved, f.store.submissions[sub.ID].Status)

	mine, err := svc.MyGrants(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, svc.DeleteGrant(ctx, f.admin, f.agency.ID, g.ID))
	level, err := f.authz.PermissionLevel(ctx, user.ID, f.agency.ID, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionNone, level)

	err = svc.DeleteGrant(ctx, f.admin, f.agency.ID, g.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGuestListGrants_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewGuestService(f.store, f.authz, f.subs)
	viewer := f.guest(t, model.PermissionViewer, f.event.ID)

	grants, err := svc.ListGrants(ctx, f.admin, f.agency.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	_, err = svc.ListGrants(ctx, viewer, f.agency.ID)
	assert.True(t, errors.Is(err, ErrForbidden))
}
