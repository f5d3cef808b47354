package cache

import (
	"context"
	"testing"

	"SyncPlay/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMembers(t *testing.T) {
	entries := []*model.QueueEntry{
		{ID: "a", TrackID: "t1", Position: 1.5, Votes: -2, AddedBy: "amy", Track: &model.Track{ID: "t1", Title: "One"}},
		{ID: "b", TrackID: "t2", Position: 3, IsPlaying: true},
	}

	members, err := encodeMembers(entries)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, 1.5, members[0].Score)
	assert.Equal(t, 3.0, members[1].Score)

	raw := []string{members[0].Member.(string), members[1].Member.(string)}
	decoded, err := decodeMembers(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "a", decoded[0].ID)
	assert.Equal(t, -2, decoded[0].Votes)
	assert.Equal(t, "One", decoded[0].Track.Title)
	assert.True(t, decoded[1].IsPlaying)
}

func TestDecodeMembers_Invalid(t *testing.T) {
	_, err := decodeMembers([]string{"{not json"})
	assert.Error(t, err)
}

func TestNilClient(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewQueueCache(nil).Save(ctx, nil))
	_, err := NewQueueCache(nil).Load(ctx)
	assert.Error(t, err)

	p := NewPresence(nil)
	assert.Error(t, p.Touch(ctx, "c1"))
	assert.Error(t, p.Remove(ctx, "c1"))
	_, err = p.Count(ctx)
	assert.Error(t, err)
}
