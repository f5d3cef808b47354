package fanout

import (
	"bytes"
	"encoding/json"
	"time"

	"SyncPlay/model"
)

// EventType 推送事件类型
type EventType string

const (
	// 队列变更
	EventTrackAdded        EventType = "track.added"
	EventTrackRemoved      EventType = "track.removed"
	EventTrackMoved        EventType = "track.moved"
	EventTrackVoted        EventType = "track.voted"
	EventTrackPlaying      EventType = "track.playing"
	EventTrackPaused       EventType = "track.paused"
	EventPlaylistReordered EventType = "playlist.reordered"

	// 系统消息
	EventPing  EventType = "ping"
	EventPong  EventType = "pong"
	EventSync  EventType = "sync" // 客户端请求全量快照
	EventError EventType = "error"
)

// Event 服务端与客户端共用的消息信封，按 type 区分负载
type Event struct {
	Type     EventType           `json:"type"`
	ID       string              `json:"id,omitempty"`
	Item     *model.QueueEntry   `json:"item,omitempty"`
	Items    []*model.QueueEntry `json:"items,omitempty"`
	Position *float64            `json:"position,omitempty"`
	Votes    *int                `json:"votes,omitempty"`
	TS       int64               `json:"ts,omitempty"`
	Message  string              `json:"message,omitempty"`
}

// Added 新增队列项，携带完整条目（含服务端分配的位置）
func Added(e *model.QueueEntry) Event { return Event{Type: EventTrackAdded, ID: e.ID, Item: e} }

// Removed 删除队列项
func Removed(id string) Event { return Event{Type: EventTrackRemoved, ID: id} }

// Moved 位置变化，只携带新位置
func Moved(id string, pos float64) Event {
	return Event{Type: EventTrackMoved, ID: id, Position: &pos}
}

// Voted 票数变化，携带绝对票数
func Voted(id string, votes int) Event {
	return Event{Type: EventTrackVoted, ID: id, Votes: &votes}
}

// Playing 开始播放，其余条目随之停止
func Playing(id string) Event { return Event{Type: EventTrackPlaying, ID: id} }

// Paused 停止播放
func Paused(id string) Event { return Event{Type: EventTrackPaused, ID: id} }

// Reordered 全量快照，items 为空时客户端清空镜像
func Reordered(items []*model.QueueEntry) Event {
	return Event{Type: EventPlaylistReordered, Items: items}
}

// Ping 服务端心跳
func Ping(now time.Time) Event { return Event{Type: EventPing, TS: now.UnixMilli()} }

// Pong 回复客户端的 ping
func Pong(now time.Time) Event { return Event{Type: EventPong, TS: now.UnixMilli()} }

// Error 错误通知
func Error(msg string) Event { return Event{Type: EventError, Message: msg} }

// Encode 序列化事件
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode 解析一帧消息。WritePump 会把多条消息用换行合并成一帧，因此可能返回多个事件
func Decode(frame []byte) ([]Event, error) {
	var out []Event
	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
