package queue

import (
	"errors"
	"testing"
	"time"

	"SyncPlay/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewFixture(now time.Time) []*model.QueueEntry {
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}
	return []*model.QueueEntry{
		{ID: "a", Position: 1, Votes: 3, AddedAt: now.Add(-5 * time.Hour), PlayedAt: at(time.Hour), Track: &model.Track{DurationSeconds: 100}},
		{ID: "b", Position: 2, Votes: 0, AddedAt: now.Add(-1 * time.Hour), Track: &model.Track{DurationSeconds: 200}},
		{ID: "c", Position: 3, Votes: -2, AddedAt: now.Add(-3 * time.Hour), PlayedAt: at(10 * 24 * time.Hour)},
		{ID: "d", Position: 4, Votes: 5, AddedAt: now.Add(-2 * time.Hour), PlayedAt: at(2 * time.Hour), IsPlaying: true, Track: &model.Track{DurationSeconds: 50}},
		{ID: "e", Position: 5, Votes: -1, AddedAt: now.Add(-4 * time.Hour)},
	}
}

func entryIDs(list []*model.QueueEntry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	entries := viewFixture(now)

	cases := []struct {
		kind FilterKind
		want []string
	}{
		{FilterNone, []string{"a", "b", "c", "d", "e"}},
		{FilterMostPlayed, []string{"d", "a", "b", "e", "c"}},
		{FilterRecentlyAdded, []string{"b", "d", "c", "e", "a"}},
		{FilterRecentlyPlayed, []string{"a", "d"}},
		{FilterNeverPlayed, []string{"b", "e"}},
		{FilterTopRated, []string{"d", "a"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, entryIDs(Filter(entries, tc.kind, now)))
		})
	}

	// 过滤不修改原切片
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, entryIDs(entries))
}

func TestParseFilter(t *testing.T) {
	k, err := ParseFilter("top_rated")
	require.NoError(t, err)
	assert.Equal(t, FilterTopRated, k)

	_, err = ParseFilter("loudest")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTotalDurationAndNowPlaying(t *testing.T) {
	entries := viewFixture(time.Now())
	assert.Equal(t, 350, TotalDuration(entries))
	require.NotNil(t, NowPlaying(entries))
	assert.Equal(t, "d", NowPlaying(entries).ID)
	assert.Nil(t, NowPlaying(entries[:3]))
}

func TestNext(t *testing.T) {
	entries := viewFixture(time.Now())

	assert.Nil(t, Next(nil, nil))
	assert.Equal(t, "a", Next(entries, nil).ID)
	assert.Equal(t, "e", Next(entries, entries[3]).ID)
	assert.Nil(t, Next(entries, entries[4]))
	assert.Equal(t, "a", Next(entries, &model.QueueEntry{ID: "gone"}).ID)
}

func TestSort_VotesTieBreaksByPosition(t *testing.T) {
	list := []*model.QueueEntry{
		{ID: "x", Position: 3, Votes: 1},
		{ID: "y", Position: 1, Votes: 1},
		{ID: "z", Position: 2, Votes: 4},
	}
	Sort(list, ByVotesDesc)
	assert.Equal(t, []string{"z", "y", "x"}, entryIDs(list))
}
