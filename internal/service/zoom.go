package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/teresa-solution/agency-hub-service/internal/store"
)

// ZoomState is the persisted state of the full-screen submission viewer.
// The viewer tracks the shown submission by id; Index is only its last
// known position in the sequence.
type ZoomState struct {
	Open         bool      `json:"open"`
	SubmissionID uuid.UUID `json:"submission_id"`
	Index        int       `json:"index"`
}

// Position of a submission inside the current filtered sequence
type Position struct {
	Found       bool       `json:"found"`
	Index       int        `json:"index"`
	HasPrevious bool       `json:"has_previous"`
	HasNext     bool       `json:"has_next"`
	PreviousID  *uuid.UUID `json:"previous_id,omitempty"`
	NextID      *uuid.UUID `json:"next_id,omitempty"`
}

// Locate finds id in seq
func Locate(seq []uuid.UUID, id uuid.UUID) Position {
	for i, cur := range seq {
		if cur != id {
			continue
		}
		pos := Position{Found: true, Index: i, HasPrevious: i > 0, HasNext: i < len(seq)-1}
		if pos.HasPrevious {
			prev := seq[i-1]
			pos.PreviousID = &prev
		}
		if pos.HasNext {
			next := seq[i+1]
			pos.NextID = &next
		}
		return pos
	}
	return Position{}
}

// ZoomStore persists the viewer state of a session
type ZoomStore interface {
	Load(ctx context.Context, session string) (ZoomState, error)
	Save(ctx context.Context, session string, st ZoomState) error
	Clear(ctx context.Context, session string) error
}

// RedisZoomStore keeps viewer state under zoom:<session> with a TTL
type RedisZoomStore struct {
	redis store.RedisClient
	ttl   time.Duration
}

func NewRedisZoomStore(rdb store.RedisClient, ttl time.Duration) *RedisZoomStore {
	return &RedisZoomStore{redis: rdb, ttl: ttl}
}

func zoomKey(session string) string {
	return "zoom:" + session
}

func (z *RedisZoomStore) Load(ctx context.Context, session string) (ZoomState, error) {
	var st ZoomState
	raw, err := z.redis.Get(ctx, zoomKey(session)).Result()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return ZoomState{}, nil
	}
	return st, nil
}

func (z *RedisZoomStore) Save(ctx context.Context, session string, st ZoomState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return z.redis.SetEx(ctx, zoomKey(session), data, z.ttl).Err()
}

func (z *RedisZoomStore) Clear(ctx context.Context, session string) error {
	return z.redis.Del(ctx, zoomKey(session)).Err()
}

// Navigator moves the viewer over the current filtered sequence. Every
// operation receives that sequence fresh and locates the shown submission
// in it by id, so reordering or shrinking the list never shows the wrong row.
type Navigator struct {
	store ZoomStore
}

func NewNavigator(zs ZoomStore) *Navigator {
	return &Navigator{store: zs}
}

func (n *Navigator) State(ctx context.Context, session string) (ZoomState, error) {
	return n.store.Load(ctx, session)
}

// Open shows id, which must be part of seq
func (n *Navigator) Open(ctx context.Context, session string, seq []uuid.UUID, id uuid.UUID) (ZoomState, error) {
	pos := Locate(seq, id)
	if !pos.Found {
		return ZoomState{}, fmt.Errorf("%w: submission is not in the current list", ErrNotFound)
	}
	st := ZoomState{Open: true, SubmissionID: id, Index: pos.Index}
	return st, n.store.Save(ctx, session, st)
}

// Close hides the viewer and resets the index
func (n *Navigator) Close(ctx context.Context, session string) error {
	return n.store.Clear(ctx, session)
}

func (n *Navigator) Next(ctx context.Context, session string, seq []uuid.UUID) (ZoomState, error) {
	return n.step(ctx, session, seq, 1)
}

func (n *Navigator) Previous(ctx context.Context, session string, seq []uuid.UUID) (ZoomState, error) {
	return n.step(ctx, session, seq, -1)
}

// step moves by delta; moving past either end leaves the state unchanged
func (n *Navigator) step(ctx context.Context, session string, seq []uuid.UUID, delta int) (ZoomState, error) {
	st, err := n.Reconcile(ctx, session, seq)
	if err != nil || !st.Open {
		return st, err
	}
	target := st.Index + delta
	if target < 0 || target >= len(seq) {
		return st, nil
	}
	st = ZoomState{Open: true, SubmissionID: seq[target], Index: target}
	return st, n.store.Save(ctx, session, st)
}

// Reconcile re-locates the shown submission in seq. When it is gone the
// viewer closes and the index resets to 0.
func (n *Navigator) Reconcile(ctx context.Context, session string, seq []uuid.UUID) (ZoomState, error) {
	st, err := n.store.Load(ctx, session)
	if err != nil || !st.Open {
		return ZoomState{}, err
	}
	pos := Locate(seq, st.SubmissionID)
	if !pos.Found {
		return ZoomState{}, n.store.Clear(ctx, session)
	}
	if pos.Index != st.Index {
		st.Index = pos.Index
		if err := n.store.Save(ctx, session, st); err != nil {
			return st, err
		}
	}
	return st, nil
}

// Resolved closes the viewer when it is showing id, which was just approved or rejected
func (n *Navigator) Resolved(ctx context.Context, session string, id uuid.UUID) error {
	if n == nil || session == "" {
		return nil
	}
	st, err := n.store.Load(ctx, session)
	if err != nil {
		return err
	}
	if st.Open && st.SubmissionID == id {
		return n.store.Clear(ctx, session)
	}
	return nil
}
