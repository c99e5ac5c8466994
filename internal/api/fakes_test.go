package api

import (
	"context"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/service"
	"github.com/teresa-solution/agency-hub-service/internal/storage"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

// userStore backs the session, profile and principal lookups of the tests
type userStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*model.Profile
	roles    map[uuid.UUID][]model.Role
	agencies map[uuid.UUID][]uuid.UUID
}

func newUserStore() *userStore {
	return &userStore{
		profiles: map[uuid.UUID]*model.Profile{},
		roles:    map[uuid.UUID][]model.Role{},
		agencies: map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *userStore) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *userStore) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *userStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.profiles {
		if strings.EqualFold(other.Email, p.Email) {
			return store.ErrConflict
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *userStore) UpdateProfileFields(ctx context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.FullName, cur.Instagram, cur.Phone, cur.Gender = p.FullName, p.Instagram, p.Phone, p.Gender
	return nil
}

func (s *userStore) AddUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = append(s.roles[userID], role)
	return nil
}

func (s *userStore) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (uuid.UUID, error) {
	return uuid.Nil, store.ErrNotFound
}

func (s *userStore) LoadPrincipal(ctx context.Context, userID uuid.UUID) (*model.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &model.Principal{UserID: userID, Roles: s.roles[userID], AgencyIDs: s.agencies[userID]}, nil
}

func (s *userStore) GetGrant(ctx context.Context, userID, agencyID uuid.UUID) (*model.GuestGrant, error) {
	return nil, nil
}

// hubStore backs the moderation and intake routes
type hubStore struct {
	mu          sync.Mutex
	events      map[uuid.UUID]*model.Event
	posts       map[uuid.UUID]*model.Post
	submissions map[uuid.UUID]*model.Submission
	names       map[uuid.UUID]string
}

func newHubStore() *hubStore {
	return &hubStore{
		events:      map[uuid.UUID]*model.Event{},
		posts:       map[uuid.UUID]*model.Post{},
		submissions: map[uuid.UUID]*model.Submission{},
		names:       map[uuid.UUID]string{},
	}
}

func (s *hubStore) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (s *hubStore) GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *hubStore) ListPosts(ctx context.Context, eventID uuid.UUID) ([]*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Post
	for _, p := range s.posts {
		if p.EventID == eventID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *hubStore) ActivePostIDs(ctx context.Context, userID, eventID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, sub := range s.submissions {
		if sub.UserID == userID && sub.EventID == eventID && sub.PostID != nil && sub.Status != model.StatusRejected {
			out = append(out, *sub.PostID)
		}
	}
	return out, nil
}

func (s *hubStore) HasActiveSubmission(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.submissions {
		if sub.UserID == userID && sub.PostID != nil && *sub.PostID == postID && sub.Status != model.StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (s *hubStore) CheckRateLimit(ctx context.Context, userID uuid.UUID, actionType string, maxCount, windowMinutes int) (bool, error) {
	return true, nil
}

func (s *hubStore) PostOpen(ctx context.Context, postID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	return ok && p.Open(time.Now()), nil
}

func (s *hubStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = uuid.New()
	sub.Status = model.StatusPending
	sub.SubmittedAt = time.Now()
	cp := *sub
	s.submissions[sub.ID] = &cp
	return nil
}

// matching returns the submissions of q, newest first
func (s *hubStore) matching(agencyID uuid.UUID, q store.SubmissionQuery) []*model.Submission {
	var out []*model.Submission
	for _, sub := range s.submissions {
		switch {
		case sub.AgencyID != agencyID:
		case q.EventID != nil && sub.EventID != *q.EventID:
		case q.Status != "" && sub.Status != q.Status:
		case q.Type != "" && sub.SubmissionType != q.Type:
		case q.AllowedEventIDs != nil && !slices.Contains(q.AllowedEventIDs, sub.EventID):
		default:
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

func (s *hubStore) ListSubmissions(ctx context.Context, agencyID uuid.UUID, q store.SubmissionQuery) (*store.SubmissionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.matching(agencyID, q)
	page := &store.SubmissionPage{Total: len(subs)}
	if q.Offset < len(subs) {
		subs = subs[q.Offset:]
	} else {
		subs = nil
	}
	if q.Limit > 0 && len(subs) > q.Limit {
		subs = subs[:q.Limit]
	}
	for _, sub := range subs {
		row := model.SubmissionRow{Submission: *sub, ProfileName: s.names[sub.UserID]}
		if e, ok := s.events[sub.EventID]; ok {
			row.EventTitle = e.Title
		}
		if sub.PostID != nil {
			if p, ok := s.posts[*sub.PostID]; ok {
				n := p.PostNumber
				row.PostNumber = &n
			}
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

func (s *hubStore) ListSubmissionIDs(ctx context.Context, agencyID uuid.UUID, q store.SubmissionQuery) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, sub := range s.matching(agencyID, q) {
		ids = append(ids, sub.ID)
	}
	return ids, nil
}

func (s *hubStore) SubmissionEventIDs(ctx context.Context, agencyID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, id := range ids {
		if sub, ok := s.submissions[id]; ok && sub.AgencyID == agencyID && !slices.Contains(out, sub.EventID) {
			out = append(out, sub.EventID)
		}
	}
	return out, nil
}

func (s *hubStore) GetSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.submissions[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, nil
}

func (s *hubStore) UpdateSubmissionStatus(ctx context.Context, agencyID uuid.UUID, c store.StatusChange) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range c.IDs {
		sub, ok := s.submissions[id]
		if !ok || sub.AgencyID != agencyID || !slices.Contains(c.From, sub.Status) {
			continue
		}
		sub.Status = c.To
		sub.RejectionReason = ""
		if c.To == model.StatusRejected {
			sub.RejectionReason = c.Reason
		}
		n++
	}
	return n, nil
}

func (s *hubStore) DeleteSubmission(ctx context.Context, agencyID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.submissions[id]; !ok || sub.AgencyID != agencyID {
		return store.ErrNotFound
	}
	delete(s.submissions, id)
	return nil
}

func (s *hubStore) MoveSubmission(ctx context.Context, agencyID, id, eventID uuid.UUID, postID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.AgencyID != agencyID {
		return store.ErrNotFound
	}
	sub.EventID, sub.PostID = eventID, postID
	return nil
}

func (s *hubStore) SubmissionLogs(ctx context.Context, submissionID uuid.UUID) ([]model.SubmissionLog, error) {
	return nil, nil
}

// memoryZoom keeps viewer state per session
type memoryZoom struct {
	mu     sync.Mutex
	states map[string]service.ZoomState
}

func newMemoryZoom() *memoryZoom {
	return &memoryZoom{states: map[string]service.ZoomState{}}
}

func (z *memoryZoom) Load(ctx context.Context, session string) (service.ZoomState, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.states[session], nil
}

func (z *memoryZoom) Save(ctx context.Context, session string, st service.ZoomState) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.states[session] = st
	return nil
}

func (z *memoryZoom) Clear(ctx context.Context, session string) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.states, session)
	return nil
}

// memoryBucket records uploaded objects
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: map[string][]byte{}}
}

func (b *memoryBucket) Upload(ctx context.Context, key string, r io.Reader, opts storage.UploadOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memoryBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memoryBucket) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}
