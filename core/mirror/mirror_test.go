package mirror

import (
	"testing"

	"SyncPlay/core/fanout"
	"SyncPlay/core/queue"
	"SyncPlay/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Mirror {
	t.Helper()
	m := New()
	require.True(t, m.Apply(fanout.Reordered([]*model.QueueEntry{
		{ID: "a", TrackID: "t1", Position: 1},
		{ID: "b", TrackID: "t2", Position: 2},
		{ID: "c", TrackID: "t3", Position: 3},
	})))
	return m
}

func orderedIDs(m *Mirror, order queue.Order) []string {
	var out []string
	for _, e := range m.Ordered(order) {
		out = append(out, e.ID)
	}
	return out
}

func playing(m *Mirror) []string {
	var out []string
	for _, e := range m.Ordered(queue.ByPosition) {
		if e.IsPlaying {
			out = append(out, e.ID)
		}
	}
	return out
}

func TestApply_RemovedIsIdempotent(t *testing.T) {
	m := seeded(t)

	m.Apply(fanout.Removed("b"))
	first := m.Ordered(queue.ByPosition)
	m.Apply(fanout.Removed("b"))
	second := m.Ordered(queue.ByPosition)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "c"}, orderedIDs(m, queue.ByPosition))

	m.Apply(fanout.Removed("never-existed"))
	assert.Equal(t, 2, m.Len())
}

func TestScenario_PlayTransition(t *testing.T) {
	m := seeded(t)

	m.Apply(fanout.Playing("a"))
	assert.Equal(t, []string{"a"}, playing(m))

	m.Apply(fanout.Playing("b"))
	assert.Equal(t, []string{"b"}, playing(m))

	m.Apply(fanout.Paused("b"))
	assert.Empty(t, playing(m))
}

func TestApply_AddedTrustsServerPosition(t *testing.T) {
	m := seeded(t)
	m.Apply(fanout.Added(&model.QueueEntry{ID: "d", TrackID: "t4", Position: 0.5}))
	m.Apply(fanout.Added(&model.QueueEntry{ID: "d", TrackID: "t4", Position: 0.5}))

	assert.Equal(t, []string{"d", "a", "b", "c"}, orderedIDs(m, queue.ByPosition))
}

func TestApply_MovedAndVotedOverwriteSingleField(t *testing.T) {
	m := seeded(t)
	m.Apply(fanout.Voted("c", 4))
	m.Apply(fanout.Moved("c", 0))
	m.Apply(fanout.Voted("c", 4))

	c, ok := m.Get("c")
	require.True(t, ok)
	assert.Equal(t, 0.0, c.Position)
	assert.Equal(t, 4, c.Votes)
	assert.Equal(t, "t3", c.TrackID)
	assert.Equal(t, []string{"c", "a", "b"}, orderedIDs(m, queue.ByVotesDesc))

	// 不存在的条目直接忽略
	m.Apply(fanout.Moved("zzz", 9))
	assert.Equal(t, 3, m.Len())
}

func TestApply_HeartbeatDoesNotChangeState(t *testing.T) {
	m := seeded(t)
	assert.False(t, m.Apply(fanout.Event{Type: fanout.EventPing, TS: 1}))
	assert.False(t, m.Apply(fanout.Event{Type: fanout.EventPong, TS: 1}))
	assert.Equal(t, 3, m.Len())
}

func TestPredictVote_NoDoubleCountInEitherOrder(t *testing.T) {
	// 预测先到，广播后到
	m := seeded(t)
	_, ok := m.PredictVote("a", queue.Up)
	require.True(t, ok)
	a, _ := m.Get("a")
	assert.Equal(t, 1, a.Votes)

	m.Apply(fanout.Voted("a", 1))
	a, _ = m.Get("a")
	assert.Equal(t, 1, a.Votes)
	assert.Equal(t, 0, m.Pending())

	// 广播先到，之后再应用同一条广播
	m2 := seeded(t)
	m2.Apply(fanout.Voted("a", 1))
	m2.Apply(fanout.Voted("a", 1))
	a, _ = m2.Get("a")
	assert.Equal(t, 1, a.Votes)
}

func TestRollback_RestoresConfirmedState(t *testing.T) {
	m := seeded(t)
	token := m.Predict(fanout.Moved("c", 0))
	assert.Equal(t, []string{"c", "a", "b"}, orderedIDs(m, queue.ByPosition))

	m.Rollback(token)
	assert.Equal(t, []string{"a", "b", "c"}, orderedIDs(m, queue.ByPosition))
	assert.Equal(t, 0, m.Pending())

	// 回滚不存在的 token 不报错
	m.Rollback(token)
}

func TestPredict_AddedConfirmedByTrackID(t *testing.T) {
	m := seeded(t)
	m.Predict(fanout.Added(&model.QueueEntry{ID: "local-1", TrackID: "t9", Position: 4}))
	assert.Equal(t, 4, m.Len())

	m.Apply(fanout.Added(&model.QueueEntry{ID: "srv-9", TrackID: "t9", Position: 4}))
	assert.Equal(t, []string{"a", "b", "c", "srv-9"}, orderedIDs(m, queue.ByPosition))
	assert.Equal(t, 0, m.Pending())
}

func TestPredictions_SurviveUnrelatedEvents(t *testing.T) {
	m := seeded(t)
	m.Predict(fanout.Moved("c", 0))
	m.Apply(fanout.Voted("b", 3))

	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, []string{"c", "a", "b"}, orderedIDs(m, queue.ByPosition))
}

func TestReorderedDropsPredictions(t *testing.T) {
	m := seeded(t)
	m.Predict(fanout.Moved("c", 0))
	m.Apply(fanout.Reordered([]*model.QueueEntry{{ID: "x", Position: 1}}))

	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, []string{"x"}, orderedIDs(m, queue.ByPosition))
}

func TestReset(t *testing.T) {
	m := seeded(t)
	m.Predict(fanout.Removed("a"))
	m.Reset()

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.Pending())
}

func TestOrdered_ReturnsCopies(t *testing.T) {
	m := seeded(t)
	list := m.Ordered(queue.ByPosition)
	list[0].Votes = 99

	a, _ := m.Get("a")
	assert.Equal(t, 0, a.Votes)
}
