package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapRedis struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newMapRedis() *mapRedis {
	return &mapRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *mapRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mapRedis) SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mapRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mapRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(1, nil)
}

func (m *mapRedis) Close() error { return nil }

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestLocate(t *testing.T) {
	seq := ids(3)

	first := Locate(seq, seq[0])
	assert.True(t, first.Found)
	assert.False(t, first.HasPrevious)
	assert.True(t, first.HasNext)
	assert.Equal(t, seq[1], *first.NextID)

	last := Locate(seq, seq[2])
	assert.Equal(t, 2, last.Index)
	assert.False(t, last.HasNext)
	assert.Nil(t, last.NextID)

	assert.False(t, Locate(seq, uuid.New()).Found)
	assert.False(t, Locate(nil, seq[0]).Found)
}

func TestNavigator_StepsStopAtBoundaries(t *testing.T) {
	ctx := context.Background()
	nav := NewNavigator(newMemZoomStore())
	seq := ids(3)

	st, err := nav.Open(ctx, "s", seq, seq[0])
	require.NoError(t, err)
	assert.Equal(t, 0, st.Index)

	st, err = nav.Previous(ctx, "s", seq)
	require.NoError(t, err)
	assert.Equal(t, seq[0], st.SubmissionID)

	for i := 0; i < 5; i++ {
		st, err = nav.Next(ctx, "s", seq)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, st.Index)
	assert.Equal(t, seq[2], st.SubmissionID)

	_, err = nav.Open(ctx, "s", seq, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNavigator_ShrinkClosesAndResetsIndex(t *testing.T) {
	ctx := context.Background()
	nav := NewNavigator(newMemZoomStore())
	seq := ids(5)

	_, err := nav.Open(ctx, "s", seq, seq[4])
	require.NoError(t, err)

	// the list shrank to a length <= the shown index and lost the shown row
	st, err := nav.Reconcile(ctx, "s", seq[:3])
	require.NoError(t, err)
	assert.False(t, st.Open)
	assert.Equal(t, 0, st.Index)

	st, err = nav.State(ctx, "s")
	require.NoError(t, err)
	assert.False(t, st.Open)
	assert.Equal(t, 0, st.Index)
}

func TestNavigator_ReorderFollowsTheSubmission(t *testing.T) {
	ctx := context.Background()
	nav := NewNavigator(newMemZoomStore())
	seq := ids(4)

	_, err := nav.Open(ctx, "s", seq, seq[1])
	require.NoError(t, err)

	reordered := []uuid.UUID{seq[3], seq[2], seq[1], seq[0]}
	st, err := nav.Next(ctx, "s", reordered)
	require.NoError(t, err)
	assert.Equal(t, seq[0], st.SubmissionID)
	assert.Equal(t, 3, st.Index)
}

func TestNavigator_ClosedIsNoop(t *testing.T) {
	ctx := context.Background()
	nav := NewNavigator(newMemZoomStore())
	st, err := nav.Next(ctx, "s", ids(2))
	require.NoError(t, err)
	assert.False(t, st.Open)

	var none *Navigator
	assert.NoError(t, none.Resolved(ctx, "s", uuid.New()))
}

func TestRedisZoomStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newMapRedis()
	zs := NewRedisZoomStore(rdb, 30*time.Minute)
	id := uuid.New()

	st, err := zs.Load(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, st.Open)

	require.NoError(t, zs.Save(ctx, "abc", ZoomState{Open: true, SubmissionID: id, Index: 2}))
	assert.Equal(t, 30*time.Minute, rdb.ttl["zoom:abc"])

	st, err = zs.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, ZoomState{Open: true, SubmissionID: id, Index: 2}, st)

	require.NoError(t, zs.Clear(ctx, "abc"))
	st, err = zs.Load(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, st.Open)
}
