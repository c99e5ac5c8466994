package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/storage"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

// memStore is an in-memory implementation of every store interface of the package
type memStore struct {
	mu sync.Mutex

	agencies      map[uuid.UUID]*model.Agency
	plans         map[string]*model.SubscriptionPlan
	profiles      map[uuid.UUID]*model.Profile
	roles         map[uuid.UUID][]model.Role
	events        map[uuid.UUID]*model.Event
	requirements  map[uuid.UUID][]model.EventRequirement
	faqs          map[uuid.UUID][]model.EventFAQ
	posts         map[uuid.UUID]*model.Post
	submissions   map[uuid.UUID]*model.Submission
	logs          []model.SubmissionLog
	grants        map[uuid.UUID]*model.GuestGrant
	templates     map[uuid.UUID]*model.RejectionTemplate
	glEvents      map[uuid.UUID]*model.GuestListEvent
	glDates       map[uuid.UUID]*model.GuestListDate
	registrations []model.GuestListRegistration
	analytics     []model.GuestListAnalytics
	rateHits      map[uuid.UUID]int
	postClosed    map[uuid.UUID]bool
	resetTokens   map[uuid.UUID]string
	checkouts     []model.CheckoutSession

	createSubmissionCalls int
	createSubmissionErr   error
	createGrantErr        error
}

func newMemStore() *memStore {
	return &memStore{
		agencies:     map[uuid.UUID]*model.Agency{},
		plans:        map[string]*model.SubscriptionPlan{},
		profiles:     map[uuid.UUID]*model.Profile{},
		roles:        map[uuid.UUID][]model.Role{},
		events:       map[uuid.UUID]*model.Event{},
		requirements: map[uuid.UUID][]model.EventRequirement{},
		faqs:         map[uuid.UUID][]model.EventFAQ{},
		posts:        map[uuid.UUID]*model.Post{},
		submissions:  map[uuid.UUID]*model.Submission{},
		grants:       map[uuid.UUID]*model.GuestGrant{},
		templates:    map[uuid.UUID]*model.RejectionTemplate{},
		glEvents:     map[uuid.UUID]*model.GuestListEvent{},
		glDates:      map[uuid.UUID]*model.GuestListDate{},
		rateHits:     map[uuid.UUID]int{},
		postClosed:   map[uuid.UUID]bool{},
		resetTokens:  map[uuid.UUID]string{},
	}
}

// agencies

func (m *memStore) CreateAgency(ctx context.Context, a *model.Agency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.agencies {
		if other.Slug == a.Slug {
			return store.ErrConflict
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	m.agencies[a.ID] = &cp
	return nil
}

func (m *memStore) GetAgency(ctx context.Context, id uuid.UUID) (*model.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agencies[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetAgencyBySlug(ctx context.Context, slug string) (*model.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agencies {
		if a.Slug == slug {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListAgencies(ctx context.Context) ([]*model.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Agency
	for _, a := range m.agencies {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *memStore) UpdateAgency(ctx context.Context, a *model.Agency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agencies[a.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *a
	m.agencies[a.ID] = &cp
	return nil
}

func (m *memStore) SetAgencyOwner(ctx context.Context, agencyID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agencies[agencyID]
	if !ok {
		return store.ErrNotFound
	}
	a.OwnerUserID = &userID
	return nil
}

func (m *memStore) CountAgencyDependents(ctx context.Context, agencyID uuid.UUID) (store.AgencyDependents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var d store.AgencyDependents
	for _, e := range m.events {
		if e.AgencyID == agencyID {
			d.Events++
		}
	}
	for _, s := range m.submissions {
		if s.AgencyID == agencyID {
			d.Submissions++
		}
	}
	return d, nil
}

func (m *memStore) DeleteAgencyCascade(ctx context.Context, agencyID uuid.UUID) ([]store.StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agencies[agencyID]; !ok {
		return nil, &store.CascadeError{Kind: "agency", TargetID: agencyID, Step: "agency", Err: store.ErrNotFound}
	}
	var subs, posts, events int64
	for id, s := range m.submissions {
		if s.AgencyID == agencyID {
			delete(m.submissions, id)
			subs++
		}
	}
	for id, p := range m.posts {
		if p.AgencyID == agencyID {
			delete(m.posts, id)
			posts++
		}
	}
	for id, e := range m.events {
		if e.AgencyID == agencyID {
			delete(m.events, id)
			events++
		}
	}
	delete(m.agencies, agencyID)
	return []store.StepResult{{Step: "submissions", Rows: subs}, {Step: "posts", Rows: posts}, {Step: "events", Rows: events}, {Step: "agency", Rows: 1}}, nil
}

func (m *memStore) GetPlan(ctx context.Context, planKey string) (*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plans[planKey]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SubscriptionPlan
	for _, p := range m.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) ListRejectionTemplates(ctx context.Context, agencyID uuid.UUID) ([]model.RejectionTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RejectionTemplate
	for _, t := range m.templates {
		if t.AgencyID == agencyID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) CreateRejectionTemplate(ctx context.Context, t *model.RejectionTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memStore) DeleteRejectionTemplate(ctx context.Context, agencyID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.templates[id]; !ok || t.AgencyID != agencyID {
		return store.ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *memStore) SuspendExpiredAgencies(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for id, a := range m.agencies {
		trialOver := a.SubscriptionStatus == model.SubscriptionTrial && a.TrialEnd != nil && a.TrialEnd.Before(now)
		planOver := a.SubscriptionStatus == model.SubscriptionActive && a.PlanExpiresAt != nil && a.PlanExpiresAt.Before(now)
		if trialOver || planOver {
			a.SubscriptionStatus = model.SubscriptionSuspended
			out = append(out, id)
		}
	}
	return out, nil
}

// profiles and roles

func (m *memStore) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.profiles {
		if strings.EqualFold(other.Email, p.Email) {
			return store.ErrConflict
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) UpdateProfileFields(ctx context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.profiles[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.FullName, cur.Instagram, cur.Phone, cur.Gender = p.FullName, p.Instagram, p.Phone, p.Gender
	return nil
}

func (m *memStore) AddUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles[userID] {
		if r == role {
			return nil
		}
	}
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func (m *memStore) SetPasswordResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[userID] = token
	return nil
}

func (m *memStore) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, t := range m.resetTokens {
		if t != token {
			continue
		}
		delete(m.resetTokens, userID)
		if p, ok := m.profiles[userID]; ok {
			p.PasswordHash = passwordHash
		}
		return userID, nil
	}
	return uuid.Nil, store.ErrNotFound
}

func (m *memStore) CreateCheckoutSession(ctx context.Context, cs *model.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkouts = append(m.checkouts, *cs)
	return nil
}

// events

func (m *memStore) CreateEvent(ctx context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListEvents(ctx context.Context, agencyID uuid.UUID, active *bool) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.AgencyID != agencyID || (active != nil && e.IsActive != *active) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *memStore) CountEvents(ctx context.Context, agencyID uuid.UUID) (int, error) {
	events, _ := m.ListEvents(ctx, agencyID, nil)
	return len(events), nil
}

func (m *memStore) UpdateEvent(ctx context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.events[e.ID]; !ok || cur.AgencyID != e.AgencyID {
		return store.ErrNotFound
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) DuplicateEvent(ctx context.Context, id uuid.UUID, title string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := *src
	dup.ID = uuid.New()
	dup.Title = title
	dup.IsActive = false
	m.events[dup.ID] = &dup
	m.requirements[dup.ID] = append([]model.EventRequirement(nil), m.requirements[id]...)
	m.faqs[dup.ID] = append([]model.EventFAQ(nil), m.faqs[id]...)
	out := dup
	return &out, nil
}

func (m *memStore) DeleteEventCascade(ctx context.Context, agencyID, eventID uuid.UUID) ([]store.StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok || e.AgencyID != agencyID {
		return nil, &store.CascadeError{Kind: "event", TargetID: eventID, Step: "event", Err: store.ErrNotFound}
	}
	var subs, posts int64
	for id, s := range m.submissions {
		if s.EventID == eventID {
			delete(m.submissions, id)
			subs++
		}
	}
	for id, p := range m.posts {
		if p.EventID == eventID {
			delete(m.posts, id)
			posts++
		}
	}
	delete(m.events, eventID)
	delete(m.requirements, eventID)
	delete(m.faqs, eventID)
	return []store.StepResult{{Step: "submissions", Rows: subs}, {Step: "posts", Rows: posts}, {Step: "event", Rows: 1}}, nil
}

func (m *memStore) ListRequirements(ctx context.Context, eventID uuid.UUID) ([]model.EventRequirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requirements[eventID], nil
}

func (m *memStore) ListFAQs(ctx context.Context, eventID uuid.UUID) ([]model.EventFAQ, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faqs[eventID], nil
}

func (m *memStore) ReplaceRequirements(ctx context.Context, eventID uuid.UUID, reqs []model.EventRequirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requirements[eventID] = reqs
	return nil
}

func (m *memStore) ReplaceFAQs(ctx context.Context, eventID uuid.UUID, faqs []model.EventFAQ) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faqs[eventID] = faqs
	return nil
}

// posts

func (m *memStore) CreatePost(ctx context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.posts {
		if other.EventID == p.EventID && other.PostNumber == p.PostNumber {
			return store.ErrConflict
		}
	}
	p.ID = uuid.New()
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m *memStore) GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListPosts(ctx context.Context, eventID uuid.UUID) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for _, p := range m.posts {
		if p.EventID == eventID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].PostNumber < out[j].PostNumber
	})
	return out, nil
}

func (m *memStore) UpdatePost(ctx context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m *memStore) DeletePostCascade(ctx context.Context, agencyID, postID uuid.UUID) ([]store.StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok || p.AgencyID != agencyID {
		return nil, &store.CascadeError{Kind: "post", TargetID: postID, Step: "post", Err: store.ErrNotFound}
	}
	var subs int64
	for id, s := range m.submissions {
		if s.PostID != nil && *s.PostID == postID {
			delete(m.submissions, id)
			subs++
		}
	}
	delete(m.posts, postID)
	return []store.StepResult{{Step: "submissions", Rows: subs}, {Step: "post", Rows: 1}}, nil
}

func (m *memStore) PostOpen(ctx context.Context, postID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return false, nil
	}
	return !m.postClosed[postID] && p.Deadline.After(time.Now()), nil
}

// submissions

func (m *memStore) filtered(agencyID uuid.UUID, q store.SubmissionQuery) []*model.Submission {
	var out []*model.Submission
	for _, s := range m.submissions {
		if s.AgencyID != agencyID {
			continue
		}
		if q.EventID != nil && s.EventID != *q.EventID {
			continue
		}
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		if q.Type != "" && s.SubmissionType != q.Type {
			continue
		}
		if q.PostNumber != nil {
			if s.PostID == nil || m.posts[*s.PostID] == nil || m.posts[*s.PostID].PostNumber != *q.PostNumber {
				continue
			}
		}
		if q.AllowedEventIDs != nil {
			allowed := false
			for _, id := range q.AllowedEventIDs {
				allowed = allowed || id == s.EventID
			}
			if !allowed {
				continue
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

func (m *memStore) ListSubmissions(ctx context.Context, agencyID uuid.UUID, q store.SubmissionQuery) (*store.SubmissionPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filtered(agencyID, q)
	page := &store.SubmissionPage{Total: len(all), Rows: []model.SubmissionRow{}}
	start, end := q.Offset, len(all)
	if start > end {
		start = end
	}
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	for _, s := range all[start:end] {
		row := model.SubmissionRow{Submission: *s}
		if e := m.events[s.EventID]; e != nil {
			row.EventTitle = e.Title
		}
		if pr := m.profiles[s.UserID]; pr != nil {
			row.ProfileName, row.ProfileEmail = pr.FullName, pr.Email
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

func (m *memStore) ListSubmissionIDs(ctx context.Context, agencyID uuid.UUID, q store.SubmissionQuery) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, s := range m.filtered(agencyID, q) {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (m *memStore) SubmissionEventIDs(ctx context.Context, agencyID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, id := range ids {
		s, ok := m.submissions[id]
		if !ok || s.AgencyID != agencyID || seen[s.EventID] {
			continue
		}
		seen[s.EventID] = true
		out = append(out, s.EventID)
	}
	return out, nil
}

func (m *memStore) GetSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.submissions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) UpdateSubmissionStatus(ctx context.Context, agencyID uuid.UUID, c store.StatusChange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range c.IDs {
		s, ok := m.submissions[id]
		if !ok || s.AgencyID != agencyID {
			continue
		}
		match := len(c.From) == 0
		for _, f := range c.From {
			match = match || s.Status == f
		}
		if !match {
			continue
		}
		m.logs = append(m.logs, model.SubmissionLog{ID: uuid.New(), SubmissionID: id, ChangedBy: c.Actor, OldStatus: s.Status, NewStatus: c.To, Reason: c.Reason})
		s.Status = c.To
		n++
	}
	return n, nil
}

func (m *memStore) DeleteSubmission(ctx context.Context, agencyID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.submissions[id]; !ok || s.AgencyID != agencyID {
		return store.ErrNotFound
	}
	delete(m.submissions, id)
	return nil
}

func (m *memStore) MoveSubmission(ctx context.Context, agencyID, id, eventID uuid.UUID, postID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok || s.AgencyID != agencyID {
		return store.ErrNotFound
	}
	s.EventID, s.PostID = eventID, postID
	return nil
}

func (m *memStore) SubmissionLogs(ctx context.Context, submissionID uuid.UUID) ([]model.SubmissionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SubmissionLog
	for _, l := range m.logs {
		if l.SubmissionID == submissionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) ActivePostIDs(ctx context.Context, userID, eventID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, s := range m.submissions {
		if s.UserID == userID && s.EventID == eventID && s.PostID != nil && s.Status != model.StatusRejected {
			out = append(out, *s.PostID)
		}
	}
	return out, nil
}

func (m *memStore) HasActiveSubmission(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.submissions {
		if s.UserID == userID && s.PostID != nil && *s.PostID == postID &&
			s.SubmissionType == model.SubmissionPost && s.Status != model.StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CheckRateLimit(ctx context.Context, userID uuid.UUID, actionType string, maxCount, windowMinutes int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rateHits[userID] >= maxCount {
		return false, nil
	}
	m.rateHits[userID]++
	return true, nil
}

func (m *memStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createSubmissionCalls++
	if m.createSubmissionErr != nil {
		return m.createSubmissionErr
	}
	sub.ID = uuid.New()
	sub.Status = model.StatusPending
	sub.SubmittedAt = time.Now()
	cp := *sub
	m.submissions[sub.ID] = &cp
	return nil
}

// guest grants

func (m *memStore) CreateGrant(ctx context.Context, g *model.GuestGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.grants {
		if other.UserID == g.UserID && other.AgencyID == g.AgencyID {
			return store.ErrConflict
		}
	}
	if m.createGrantErr != nil {
		return m.createGrantErr
	}
	g.ID = uuid.New()
	cp := *g
	m.grants[g.ID] = &cp
	if !slices.Contains(m.roles[g.UserID], model.RoleGuest) {
		m.roles[g.UserID] = append(m.roles[g.UserID], model.RoleGuest)
	}
	return nil
}

func (m *memStore) UpdateGrant(ctx context.Context, g *model.GuestGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[g.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *g
	m.grants[g.ID] = &cp
	return nil
}

func (m *memStore) DeleteGrant(ctx context.Context, agencyID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grants[id]; !ok || g.AgencyID != agencyID {
		return store.ErrNotFound
	}
	delete(m.grants, id)
	return nil
}

func (m *memStore) GetGrantByID(ctx context.Context, id uuid.UUID) (*model.GuestGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grants[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetGrant(ctx context.Context, userID, agencyID uuid.UUID) (*model.GuestGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.UserID == userID && g.AgencyID == agencyID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListGrants(ctx context.Context, agencyID uuid.UUID) ([]*model.GuestGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GuestGrant
	for _, g := range m.grants {
		if g.AgencyID == agencyID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListGrantsForUser(ctx context.Context, userID uuid.UUID) ([]*model.GuestGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GuestGrant
	for _, g := range m.grants {
		if g.UserID == userID && g.IsActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

// guest list

func (m *memStore) CreateGuestListEvent(ctx context.Context, e *model.GuestListEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.glEvents {
		if other.AgencyID == e.AgencyID && other.Slug == e.Slug {
			return store.ErrConflict
		}
	}
	e.ID = uuid.New()
	cp := *e
	m.glEvents[e.ID] = &cp
	return nil
}

func (m *memStore) GetGuestListEvent(ctx context.Context, id uuid.UUID) (*model.GuestListEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.glEvents[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetGuestListEventBySlug(ctx context.Context, agencyID uuid.UUID, slug string) (*model.GuestListEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.glEvents {
		if e.AgencyID == agencyID && e.Slug == slug {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListGuestListEvents(ctx context.Context, agencyID uuid.UUID) ([]*model.GuestListEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GuestListEvent
	for _, e := range m.glEvents {
		if e.AgencyID == agencyID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdateGuestListEvent(ctx context.Context, e *model.GuestListEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.glEvents[e.ID] = &cp
	return nil
}

func (m *memStore) DeleteGuestListEventCascade(ctx context.Context, agencyID, eventID uuid.UUID) ([]store.StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.glEvents[eventID]
	if !ok || e.AgencyID != agencyID {
		return nil, &store.CascadeError{Kind: "guest_list_event", TargetID: eventID, Step: "guest_list_event", Err: store.ErrNotFound}
	}
	kept := m.registrations[:0]
	var regs int64
	for _, r := range m.registrations {
		if r.EventID == eventID {
			regs++
			continue
		}
		kept = append(kept, r)
	}
	m.registrations = kept
	for id, d := range m.glDates {
		if d.EventID == eventID {
			delete(m.glDates, id)
		}
	}
	delete(m.glEvents, eventID)
	return []store.StepResult{{Step: "guest_list_registrations", Rows: regs}, {Step: "guest_list_event", Rows: 1}}, nil
}

func (m *memStore) CreateGuestListDate(ctx context.Context, d *model.GuestListDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	cp := *d
	m.glDates[d.ID] = &cp
	return nil
}

func (m *memStore) GetGuestListDate(ctx context.Context, id uuid.UUID) (*model.GuestListDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.glDates[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListGuestListDates(ctx context.Context, eventID uuid.UUID) ([]*model.GuestListDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GuestListDate
	for _, d := range m.glDates {
		if d.EventID == eventID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	return out, nil
}

func (m *memStore) UpdateGuestListDate(ctx context.Context, d *model.GuestListDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.glDates[d.ID] = &cp
	return nil
}

func (m *memStore) DeleteGuestListDate(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.glDates[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.glDates, id)
	return nil
}

// CreateRegistration mirrors the capacity guard of the real insert
func (m *memStore) CreateRegistration(ctx context.Context, r *model.GuestListRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.glDates[r.DateID]
	if !ok || !d.IsActive {
		return store.ErrNotFound
	}
	if d.MaxCapacity != nil {
		n := 0
		for _, other := range m.registrations {
			if other.DateID == r.DateID {
				n++
			}
		}
		if n >= *d.MaxCapacity {
			return store.ErrNotFound
		}
	}
	r.ID = uuid.New()
	m.registrations = append(m.registrations, *r)
	return nil
}

func (m *memStore) ListRegistrations(ctx context.Context, eventID uuid.UUID, dateID *uuid.UUID) ([]model.GuestListRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.GuestListRegistration
	for _, r := range m.registrations {
		if r.EventID == eventID && (dateID == nil || r.DateID == *dateID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) TrackAnalytics(ctx context.Context, a *model.GuestListAnalytics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analytics = append(m.analytics, *a)
	return nil
}

func (m *memStore) AnalyticsSummary(ctx context.Context, eventID uuid.UUID) (map[model.AnalyticsEventType]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.AnalyticsEventType]int{}
	for _, a := range m.analytics {
		if a.EventID == eventID {
			out[a.EventType]++
		}
	}
	return out, nil
}

// memZoomStore keeps zoom state in a map
type memZoomStore struct {
	states map[string]ZoomState
}

func newMemZoomStore() *memZoomStore {
	return &memZoomStore{states: map[string]ZoomState{}}
}

func (z *memZoomStore) Load(ctx context.Context, session string) (ZoomState, error) {
	return z.states[session], nil
}

func (z *memZoomStore) Save(ctx context.Context, session string, st ZoomState) error {
	z.states[session] = st
	return nil
}

func (z *memZoomStore) Clear(ctx context.Context, session string) error {
	delete(z.states, session)
	return nil
}

// memBucket records uploads. failUploadAt > 0 makes that upload (1-based) fail.
type memBucket struct {
	objects      map[string][]byte
	uploads      int
	deleted      []string
	failUploadAt int
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string][]byte{}}
}

func (b *memBucket) Upload(ctx context.Context, key string, r io.Reader, opts storage.UploadOptions) error {
	b.uploads++
	if b.uploads == b.failUploadAt {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if _, ok := b.objects[key]; ok && !opts.Upsert {
		return storage.ErrExists
	}
	b.objects[key] = data
	return nil
}

func (b *memBucket) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.objects, key)
	return nil
}

func (b *memBucket) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

// pngBytes returns a small valid PNG
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for x := 0; x < 20; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fixture is an agency with one event, seeded into a memStore
type fixture struct {
	store    *memStore
	agency   *model.Agency
	event    *model.Event
	master   *model.Principal
	admin    *model.Principal
	authz    *Authorizer
	zoom     *Navigator
	subs     *SubmissionService
	zoomData *memZoomStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	ctx := context.Background()

	agency := &model.Agency{Name: "Acme", Slug: "acme", SubscriptionStatus: model.SubscriptionTrial}
	require.NoError(t, st.CreateAgency(ctx, agency))
	event := &model.Event{AgencyID: agency.ID, Title: "Launch Party", IsActive: true, Purpose: model.PurposePromotion, AcceptPosts: true, AcceptSales: true}
	require.NoError(t, st.CreateEvent(ctx, event))

	zs := newMemZoomStore()
	authz := NewAuthorizer(st)
	nav := NewNavigator(zs)
	return &fixture{
		store:    st,
		agency:   agency,
		event:    event,
		master:   &model.Principal{UserID: uuid.New(), SessionID: "master", Roles: []model.Role{model.RoleMasterAdmin}},
		admin:    &model.Principal{UserID: uuid.New(), SessionID: "admin", Roles: []model.Role{model.RoleAgencyAdmin}, AgencyIDs: []uuid.UUID{agency.ID}},
		authz:    authz,
		zoom:     nav,
		subs:     NewSubmissionService(st, authz, nav),
		zoomData: zs,
	}
}

func (f *fixture) addPost(t *testing.T, eventID uuid.UUID, number int, deadline time.Time) *model.Post {
	t.Helper()
	typ := model.PostTypePost
	if number == model.SalePostNumber {
		typ = model.PostTypeSale
	}
	p := &model.Post{EventID: eventID, AgencyID: f.agency.ID, PostNumber: number, Deadline: deadline, PostType: typ}
	require.NoError(t, f.store.CreatePost(context.Background(), p))
	return p
}

// addSubmission seeds a submission submitted age ago
func (f *fixture) addSubmission(t *testing.T, eventID uuid.UUID, post *model.Post, status model.SubmissionStatus, age time.Duration) *model.Submission {
	t.Helper()
	s := &model.Submission{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		EventID:        eventID,
		AgencyID:       f.agency.ID,
		SubmissionType: model.SubmissionPost,
		Status:         status,
		SubmittedAt:    time.Now().Add(-age),
	}
	if post != nil {
		s.PostID = &post.ID
		if post.IsSaleSlot() {
			s.SubmissionType = model.SubmissionSale
		}
	}
	f.store.mu.Lock()
	f.store.submissions[s.ID] = s
	f.store.mu.Unlock()
	return s
}

func (f *fixture) guest(t *testing.T, level model.PermissionLevel, events ...uuid.UUID) *model.Principal {
	t.Helper()
	p := &model.Principal{UserID: uuid.New(), SessionID: "guest", Roles: []model.Role{model.RoleGuest}}
	g := &model.GuestGrant{UserID: p.UserID, AgencyID: f.agency.ID, PermissionLevel: level, AllowedEventIDs: events, IsActive: true}
	require.NoError(t, f.store.CreateGrant(context.Background(), g))
	return p
}
