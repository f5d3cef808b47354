// Package mirror 客户端侧的队列镜像
//
// 镜像由两部分组成：服务端确认过的状态，以及本地尚未确认的预测。
// 所有事件都是幂等的覆盖写，同一变更的预测和服务端广播无论先后到达，结果都一致。
package mirror

import (
	"sync"

	"SyncPlay/core/fanout"
	"SyncPlay/core/queue"
	"SyncPlay/model"
)

// Token 标识一条本地预测，请求失败时用它回滚
type Token uint64

type prediction struct {
	token Token
	key   string
	event fanout.Event
}

// Mirror 队列镜像，可并发使用
type Mirror struct {
	mu        sync.RWMutex
	confirmed map[string]*model.QueueEntry
	pending   []prediction
	next      Token
}

// New 创建空镜像
func New() *Mirror {
	return &Mirror{confirmed: make(map[string]*model.QueueEntry)}
}

// Apply 应用一条服务端事件。与之对应的本地预测视为已确认并丢弃
// 返回 false 表示事件不影响队列状态（心跳等）
func (m *Mirror) Apply(evt fanout.Event) bool {
	if !affectsState(evt.Type) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	apply(m.confirmed, evt)

	if evt.Type == fanout.EventPlaylistReordered {
		m.pending = nil
		return true
	}

	key := confirmKey(evt)
	kept := m.pending[:0]
	for _, p := range m.pending {
		if p.key != key {
			kept = append(kept, p)
		}
	}
	m.pending = kept
	return true
}

// Predict 在已确认状态之上叠加一条本地预测，立即反映在 Entries 中
func (m *Mirror) Predict(evt fanout.Event) Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.pending = append(m.pending, prediction{token: m.next, key: confirmKey(evt), event: evt})
	return m.next
}

// PredictVote 基于当前视图预测一次投票。预测值是绝对票数，与服务端确认时不会重复累加
func (m *Mirror) PredictVote(id string, dir queue.Direction) (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	view := m.viewLocked()
	e, ok := view[id]
	if !ok {
		return 0, false
	}
	votes := e.Votes + 1
	if dir == queue.Down {
		votes = e.Votes - 1
	}

	m.next++
	evt := fanout.Voted(id, votes)
	m.pending = append(m.pending, prediction{token: m.next, key: confirmKey(evt), event: evt})
	return m.next, true
}

// Rollback 丢弃一条预测，恢复到最近确认的状态
func (m *Mirror) Rollback(token Token) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.pending {
		if p.token == token {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// Reset 丢弃整个镜像，重连后等待服务端快照
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.confirmed = make(map[string]*model.QueueEntry)
	m.pending = nil
}

// Pending 未确认的预测数量
func (m *Mirror) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// Get 返回视图中的一项
func (m *Mirror) Get(id string) (*model.QueueEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.viewLocked()[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Ordered 返回排好序的视图（已确认状态加上本地预测）
func (m *Mirror) Ordered(order queue.Order) []*model.QueueEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	view := m.viewLocked()
	out := make([]*model.QueueEntry, 0, len(view))
	for _, e := range view {
		out = append(out, e.Clone())
	}
	queue.Sort(out, order)
	return out
}

// Len 视图中的条目数
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.viewLocked())
}

func (m *Mirror) viewLocked() map[string]*model.QueueEntry {
	if len(m.pending) == 0 {
		return m.confirmed
	}
	view := make(map[string]*model.QueueEntry, len(m.confirmed))
	for id, e := range m.confirmed {
		view[id] = e.Clone()
	}
	for _, p := range m.pending {
		apply(view, p.event)
	}
	return view
}

func affectsState(t fanout.EventType) bool {
	switch t {
	case fanout.EventTrackAdded, fanout.EventTrackRemoved, fanout.EventTrackMoved,
		fanout.EventTrackVoted, fanout.EventTrackPlaying, fanout.EventTrackPaused,
		fanout.EventPlaylistReordered:
		return true
	}
	return false
}

// confirmKey 预测与广播的对应关系。新增的条目在确认前没有服务端 ID，按 track_id 对应
func confirmKey(evt fanout.Event) string {
	if evt.Type == fanout.EventTrackAdded && evt.Item != nil {
		return string(evt.Type) + "|track:" + evt.Item.TrackID
	}
	return string(evt.Type) + "|" + evt.ID
}

// apply 所有分支都是覆盖写，重复应用结果不变
func apply(entries map[string]*model.QueueEntry, evt fanout.Event) {
	switch evt.Type {
	case fanout.EventTrackAdded:
		if evt.Item != nil {
			entries[evt.Item.ID] = evt.Item.Clone()
		}

	case fanout.EventTrackRemoved:
		delete(entries, evt.ID)

	case fanout.EventTrackMoved:
		if e, ok := entries[evt.ID]; ok && evt.Position != nil {
			e.Position = *evt.Position
		}

	case fanout.EventTrackVoted:
		if e, ok := entries[evt.ID]; ok && evt.Votes != nil {
			e.Votes = *evt.Votes
		}

	case fanout.EventTrackPlaying:
		for id, e := range entries {
			e.IsPlaying = id == evt.ID
		}

	case fanout.EventTrackPaused:
		if e, ok := entries[evt.ID]; ok {
			e.IsPlaying = false
		}

	case fanout.EventPlaylistReordered:
		for id := range entries {
			delete(entries, id)
		}
		for _, item := range evt.Items {
			if item != nil {
				entries[item.ID] = item.Clone()
			}
		}
	}
}
