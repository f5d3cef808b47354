// Package queuetest 提供内存版 queue.Repository，供测试使用
package queuetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SyncPlay/core/queue"
	"SyncPlay/model"
)

// Repository 内存仓库，行为与 GORM 实现的错误映射保持一致
type Repository struct {
	mu      sync.Mutex
	tracks  map[string]*model.Track
	entries map[string]*model.QueueEntry

	// Err 不为空时，下一次写操作返回该错误并清空
	Err error
}

// New 创建带曲库的内存仓库
func New(tracks ...*model.Track) *Repository {
	r := &Repository{
		tracks:  make(map[string]*model.Track),
		entries: make(map[string]*model.QueueEntry),
	}
	for _, t := range tracks {
		r.tracks[t.ID] = t
	}
	return r
}

// Catalog 生成 n 首测试歌曲，ID 为 t1..tn
func Catalog(n int) []*model.Track {
	out := make([]*model.Track, n)
	for i := range out {
		out[i] = &model.Track{
			ID:              fmt.Sprintf("t%d", i+1),
			Title:           fmt.Sprintf("Track %d", i+1),
			Artist:          "Artist",
			Album:           "Album",
			DurationSeconds: 180 + i,
			Genre:           "Pop",
		}
	}
	return out
}

// Entry 返回仓库中保存的队列项副本
func (r *Repository) Entry(id string) *model.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].Clone()
}

// Len 仓库中的队列项数量
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Seed 直接写入一条队列项，不经过 Store
func (r *Repository) Seed(e *model.QueueEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := e.Clone()
	if c.Track == nil {
		c.Track = r.tracks[c.TrackID]
	}
	r.entries[c.ID] = c
}

func (r *Repository) takeErr() error {
	err := r.Err
	r.Err = nil
	return err
}

func (r *Repository) FindTrack(_ context.Context, trackID string) (*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracks[trackID]
	if !ok {
		return nil, queue.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *Repository) ListEntries(_ context.Context) ([]*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.QueueEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (r *Repository) CreateEntry(_ context.Context, entry *model.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return err
	}
	for _, e := range r.entries {
		if e.TrackID == entry.TrackID {
			return queue.ErrDuplicateTrack
		}
	}
	r.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *Repository) UpdatePosition(_ context.Context, id string, pos float64) error {
	return r.update(id, func(e *model.QueueEntry) { e.Position = pos })
}

func (r *Repository) UpdateVotes(_ context.Context, id string, votes int) error {
	return r.update(id, func(e *model.QueueEntry) { e.Votes = votes })
}

func (r *Repository) UpdatePlaying(_ context.Context, id string, playing bool, playedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return err
	}
	target, ok := r.entries[id]
	if !ok {
		return queue.ErrNotFound
	}
	if playing {
		for _, e := range r.entries {
			e.IsPlaying = false
		}
		if playedAt != nil {
			t := *playedAt
			target.PlayedAt = &t
		}
	}
	target.IsPlaying = playing
	return nil
}

func (r *Repository) DeleteEntry(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return err
	}
	if _, ok := r.entries[id]; !ok {
		return queue.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *Repository) UpdatePositions(_ context.Context, positions map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return err
	}
	for id := range positions {
		if _, ok := r.entries[id]; !ok {
			return queue.ErrNotFound
		}
	}
	for id, pos := range positions {
		r.entries[id].Position = pos
	}
	return nil
}

func (r *Repository) update(id string, fn func(*model.QueueEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return err
	}
	e, ok := r.entries[id]
	if !ok {
		return queue.ErrNotFound
	}
	fn(e)
	return nil
}
