package queue_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"SyncPlay/core/position"
	"SyncPlay/core/queue"
	"SyncPlay/core/queue/queuetest"
	"SyncPlay/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, tracks int) (*queue.Store, *queuetest.Repository) {
	t.Helper()
	repo := queuetest.New(queuetest.Catalog(tracks)...)
	n := 0
	store := queue.NewStore(repo, queue.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}))
	return store, repo
}

func enqueueAll(t *testing.T, s *queue.Store, trackIDs ...string) []*model.QueueEntry {
	t.Helper()
	out := make([]*model.QueueEntry, 0, len(trackIDs))
	for _, id := range trackIDs {
		e, err := s.Enqueue(context.Background(), id, "")
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func ids(entries []*model.QueueEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestEnqueue_AppendsWithDefaults(t *testing.T) {
	s, repo := newStore(t, 3)
	entries := enqueueAll(t, s, "t1", "t2", "t3")

	assert.Equal(t, []float64{1, 2, 3}, []float64{entries[0].Position, entries[1].Position, entries[2].Position})
	for _, e := range entries {
		assert.Equal(t, model.DefaultAddedBy, e.AddedBy)
		assert.Equal(t, 0, e.Votes)
		assert.False(t, e.IsPlaying)
		assert.Nil(t, e.PlayedAt)
		require.NotNil(t, e.Track)
		assert.Equal(t, e.TrackID, e.Track.ID)
	}
	assert.Equal(t, 3, repo.Len())
}

func TestEnqueue_Duplicate(t *testing.T) {
	s, repo := newStore(t, 2)
	enqueueAll(t, s, "t1")

	_, err := s.Enqueue(context.Background(), "t1", "bob")
	assert.True(t, errors.Is(err, queue.ErrDuplicateTrack))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, repo.Len())
}

func TestEnqueue_AfterRemoveAllowed(t *testing.T) {
	s, _ := newStore(t, 2)
	e := enqueueAll(t, s, "t1")[0]

	_, err := s.Remove(context.Background(), e.ID)
	require.NoError(t, err)

	_, err = s.Enqueue(context.Background(), "t1", "bob")
	assert.NoError(t, err)
}

func TestEnqueue_UnknownTrack(t *testing.T) {
	s, _ := newStore(t, 1)
	_, err := s.Enqueue(context.Background(), "nope", "")
	assert.True(t, errors.Is(err, queue.ErrNotFound))

	_, err = s.Enqueue(context.Background(), "  ", "")
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))
}

func TestEnqueue_AddedByLength(t *testing.T) {
	s, repo := newStore(t, 2)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, "t1", strings.Repeat("a", model.MaxAddedByLength+1))
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))
	assert.Equal(t, 0, repo.Len())

	// 按字符计数，不按字节
	e, err := s.Enqueue(ctx, "t1", strings.Repeat("歌", model.MaxAddedByLength))
	require.NoError(t, err)
	assert.Equal(t, model.MaxAddedByLength, utf8.RuneCountInString(e.AddedBy))
}

func TestEnqueue_PersistFailureLeavesStateUnchanged(t *testing.T) {
	s, repo := newStore(t, 2)
	repo.Err = errors.New("db down")

	_, err := s.Enqueue(context.Background(), "t1", "")
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())

	e, err := s.Enqueue(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Position)
}

func TestScenario_RepositionToHead(t *testing.T) {
	s, _ := newStore(t, 3)
	entries := enqueueAll(t, s, "t1", "t2", "t3")
	a, b, c := entries[0], entries[1], entries[2]

	newPos := position.Allocate(nil, position.Ptr(a.Position))
	moved, err := s.Reposition(context.Background(), c.ID, newPos)
	require.NoError(t, err)
	assert.Equal(t, 0.0, moved.Position)

	assert.Equal(t, []string{c.ID, a.ID, b.ID}, ids(s.ListOrdered(queue.ByPosition)))
}

func TestReposition_TieBrokenBySeq(t *testing.T) {
	s, _ := newStore(t, 3)
	entries := enqueueAll(t, s, "t1", "t2", "t3")

	_, err := s.Reposition(context.Background(), entries[2].ID, 1.0)
	require.NoError(t, err)

	assert.Equal(t, []string{entries[0].ID, entries[2].ID, entries[1].ID}, ids(s.ListOrdered(queue.ByPosition)))
}

func TestReposition_NotFound(t *testing.T) {
	s, _ := newStore(t, 1)
	_, err := s.Reposition(context.Background(), "missing", 1)
	assert.True(t, errors.Is(err, queue.ErrNotFound))
}

func TestScenario_VoteResort(t *testing.T) {
	s, _ := newStore(t, 3)
	entries := enqueueAll(t, s, "t1", "t2", "t3")
	a, b, c := entries[0], entries[1], entries[2]
	ctx := context.Background()

	for _, id := range []string{b.ID, b.ID, c.ID} {
		_, err := s.Vote(ctx, id, queue.Up)
		require.NoError(t, err)
	}

	ordered := s.ListOrdered(queue.ByVotesDesc)
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, ids(ordered))
	assert.Equal(t, []int{2, 1, 0}, []int{ordered[0].Votes, ordered[1].Votes, ordered[2].Votes})
}

func TestVote_UnboundedAndCommutative(t *testing.T) {
	s, _ := newStore(t, 1)
	e := enqueueAll(t, s, "t1")[0]
	ctx := context.Background()

	const ups, downs = 7, 19
	dirs := make([]queue.Direction, 0, ups+downs)
	for i := 0; i < ups; i++ {
		dirs = append(dirs, queue.Up)
	}
	for i := 0; i < downs; i++ {
		dirs = append(dirs, queue.Down)
	}
	rand.New(rand.NewSource(42)).Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })

	var last int
	for _, d := range dirs {
		v, err := s.Vote(ctx, e.ID, d)
		require.NoError(t, err)
		last = v
	}

	assert.Equal(t, ups-downs, last)
	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, ups-downs, got.Votes)
}

func TestVote_InvalidDirection(t *testing.T) {
	s, _ := newStore(t, 1)
	e := enqueueAll(t, s, "t1")[0]

	_, err := s.Vote(context.Background(), e.ID, queue.Direction("sideways"))
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))

	_, err = queue.ParseDirection("UP")
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))
}

func playingIDs(s *queue.Store) []string {
	var out []string
	for _, e := range s.ListOrdered(queue.ByPosition) {
		if e.IsPlaying {
			out = append(out, e.ID)
		}
	}
	return out
}

func TestSetPlaying_SingleInvariant(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := queuetest.New(queuetest.Catalog(4)...)
	s := queue.NewStore(repo, queue.WithClock(func() time.Time { return now }))
	entries := enqueueAll(t, s, "t1", "t2", "t3", "t4")
	ctx := context.Background()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		target := entries[rng.Intn(len(entries))]
		_, err := s.SetPlaying(ctx, target.ID, rng.Intn(3) != 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(playingIDs(s)), 1)
	}

	a, b := entries[0], entries[1]
	_, err := s.SetPlaying(ctx, b.ID, true)
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = s.SetPlaying(ctx, a.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, playingIDs(s))

	gotB, _ := s.Get(b.ID)
	require.NotNil(t, gotB.PlayedAt)
	assert.Equal(t, now.Add(-time.Minute), *gotB.PlayedAt, "sibling played_at untouched")

	gotA, _ := s.Get(a.ID)
	assert.Equal(t, now, *gotA.PlayedAt)

	// 持久化层也只剩一个正在播放
	assert.True(t, repo.Entry(a.ID).IsPlaying)
	assert.False(t, repo.Entry(b.ID).IsPlaying)
}

func TestSetPlaying_FalseKeepsPlayedAt(t *testing.T) {
	s, _ := newStore(t, 1)
	e := enqueueAll(t, s, "t1")[0]
	ctx := context.Background()

	playing, err := s.SetPlaying(ctx, e.ID, true)
	require.NoError(t, err)
	stopped, err := s.SetPlaying(ctx, e.ID, false)
	require.NoError(t, err)

	assert.False(t, stopped.IsPlaying)
	require.NotNil(t, stopped.PlayedAt)
	assert.Equal(t, *playing.PlayedAt, *stopped.PlayedAt)
}

func TestSetPlaying_FailureDoesNotPartiallyApply(t *testing.T) {
	s, repo := newStore(t, 2)
	entries := enqueueAll(t, s, "t1", "t2")
	ctx := context.Background()

	_, err := s.SetPlaying(ctx, entries[0].ID, true)
	require.NoError(t, err)

	repo.Err = errors.New("tx aborted")
	_, err = s.SetPlaying(ctx, entries[1].ID, true)
	require.Error(t, err)
	assert.Equal(t, []string{entries[0].ID}, playingIDs(s))
}

func TestRemove(t *testing.T) {
	s, _ := newStore(t, 2)
	entries := enqueueAll(t, s, "t1", "t2")
	ctx := context.Background()

	_, err := s.SetPlaying(ctx, entries[0].ID, true)
	require.NoError(t, err)
	removed, err := s.Remove(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID, removed.ID)
	assert.Empty(t, playingIDs(s))

	_, err = s.Remove(ctx, entries[0].ID)
	assert.True(t, errors.Is(err, queue.ErrNotFound))
}

func TestMoveBetween(t *testing.T) {
	s, _ := newStore(t, 4)
	entries := enqueueAll(t, s, "t1", "t2", "t3", "t4")
	a, b, c, d := entries[0], entries[1], entries[2], entries[3]
	ctx := context.Background()

	moved, err := s.MoveBetween(ctx, d.ID, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.5, moved.Position)
	assert.Equal(t, []string{a.ID, d.ID, b.ID, c.ID}, ids(s.ListOrdered(queue.ByPosition)))

	_, err = s.MoveBetween(ctx, c.ID, "", a.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, s.ListOrdered(queue.ByPosition)[0].ID)

	_, err = s.MoveBetween(ctx, a.ID, b.ID, "")
	require.NoError(t, err)
	ordered := s.ListOrdered(queue.ByPosition)
	assert.Equal(t, a.ID, ordered[len(ordered)-1].ID)
}

func TestMoveBetween_Errors(t *testing.T) {
	s, _ := newStore(t, 3)
	entries := enqueueAll(t, s, "t1", "t2", "t3")
	a, b, c := entries[0], entries[1], entries[2]
	ctx := context.Background()

	_, err := s.MoveBetween(ctx, a.ID, "", "")
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))

	_, err = s.MoveBetween(ctx, a.ID, a.ID, b.ID)
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))

	_, err = s.MoveBetween(ctx, a.ID, c.ID, b.ID)
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))

	_, err = s.MoveBetween(ctx, a.ID, "ghost", "")
	assert.True(t, errors.Is(err, queue.ErrNotFound))

	_, err = s.MoveBetween(ctx, "ghost", a.ID, "")
	assert.True(t, errors.Is(err, queue.ErrNotFound))
}

func TestMoveBetween_EqualNeighboursNeedRebalance(t *testing.T) {
	s, _ := newStore(t, 3)
	entries := enqueueAll(t, s, "t1", "t2", "t3")
	a, b, c := entries[0], entries[1], entries[2]
	ctx := context.Background()

	_, err := s.Reposition(ctx, b.ID, a.Position)
	require.NoError(t, err)

	_, err = s.MoveBetween(ctx, c.ID, a.ID, b.ID)
	require.True(t, errors.Is(err, queue.ErrInvalidInput))
	assert.Contains(t, err.Error(), "rebalance required")

	_, err = s.Rebalance(ctx)
	require.NoError(t, err)
	moved, err := s.MoveBetween(ctx, c.ID, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID, b.ID}, ids(s.ListOrdered(queue.ByPosition)))
	assert.Equal(t, 1.5, moved.Position)
}

func TestRebalance(t *testing.T) {
	s, repo := newStore(t, 3)
	entries := enqueueAll(t, s, "t1", "t2", "t3")
	ctx := context.Background()

	_, err := s.Reposition(ctx, entries[2].ID, 1.0000001)
	require.NoError(t, err)

	out, err := s.Rebalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{entries[0].ID, entries[2].ID, entries[1].ID}, ids(out))
	assert.Equal(t, []float64{1, 2, 3}, []float64{out[0].Position, out[1].Position, out[2].Position})
	assert.Equal(t, 2.0, repo.Entry(entries[2].ID).Position)
}

func TestLoad_RestoresStateAndSequence(t *testing.T) {
	repo := queuetest.New(queuetest.Catalog(3)...)
	repo.Seed(&model.QueueEntry{ID: "x", TrackID: "t1", Position: 5, Seq: 9, AddedBy: "amy"})
	repo.Seed(&model.QueueEntry{ID: "y", TrackID: "t2", Position: 2, Seq: 4, AddedBy: "amy"})

	s := queue.NewStore(repo)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, []string{"y", "x"}, ids(s.ListOrdered(queue.ByPosition)))

	_, err := s.Enqueue(context.Background(), "t1", "")
	assert.True(t, errors.Is(err, queue.ErrDuplicateTrack))

	e, err := s.Enqueue(context.Background(), "t3", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), e.Seq)
	assert.Equal(t, 6.0, e.Position)
}

func TestListOrdered_ReturnsCopies(t *testing.T) {
	s, _ := newStore(t, 1)
	enqueueAll(t, s, "t1")

	list := s.ListOrdered(queue.ByPosition)
	list[0].Votes = 100
	list[0].Track.Title = "changed"

	again := s.ListOrdered(queue.ByPosition)
	assert.Equal(t, 0, again[0].Votes)
	assert.Equal(t, "Track 1", again[0].Track.Title)
}

func TestParseOrder(t *testing.T) {
	o, err := queue.ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, queue.ByPosition, o)

	o, err = queue.ParseOrder("by_votes_desc")
	require.NoError(t, err)
	assert.Equal(t, queue.ByVotesDesc, o)

	_, err = queue.ParseOrder("random")
	assert.True(t, errors.Is(err, queue.ErrInvalidInput))
}
