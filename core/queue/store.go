package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"SyncPlay/core/position"
	"SyncPlay/logger"
	"SyncPlay/model"

	"github.com/google/uuid"
)

// Repository 队列的持久化接口，由 repository 包提供 GORM 实现
// 实现需要把唯一键冲突映射为 ErrDuplicateTrack，把记录不存在映射为 ErrNotFound
type Repository interface {
	FindTrack(ctx context.Context, trackID string) (*model.Track, error)
	ListEntries(ctx context.Context) ([]*model.QueueEntry, error)
	CreateEntry(ctx context.Context, entry *model.QueueEntry) error
	UpdatePosition(ctx context.Context, id string, pos float64) error
	UpdateVotes(ctx context.Context, id string, votes int) error
	// UpdatePlaying 在一个事务内完成；playing 为 true 时同时清除其他项的播放状态
	UpdatePlaying(ctx context.Context, id string, playing bool, playedAt *time.Time) error
	DeleteEntry(ctx context.Context, id string) error
	UpdatePositions(ctx context.Context, positions map[string]float64) error
}

// Direction 投票方向
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection 只接受 up 和 down
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("%w: direction must be up or down", ErrInvalidInput)
	}
}

// Store 播放队列的唯一写入者
// 所有写操作持有同一把写锁，先持久化，成功后再修改内存，不会出现部分生效
type Store struct {
	mu      sync.RWMutex
	repo    Repository
	entries map[string]*model.QueueEntry
	byTrack map[string]string // track_id -> entry id
	seq     int64

	now   func() time.Time
	newID func() string
}

// Option 配置 Store
type Option func(*Store)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator 替换队列项 ID 生成方式
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore 创建空队列，启动时需调用 Load 从数据库恢复
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		entries: make(map[string]*model.QueueEntry),
		byTrack: make(map[string]string),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load 从仓库加载全部队列项，覆盖内存状态
func (s *Store) Load(ctx context.Context) error {
	list, err := s.repo.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*model.QueueEntry, len(list))
	s.byTrack = make(map[string]string, len(list))
	s.seq = 0
	playing := 0
	for _, e := range list {
		s.entries[e.ID] = e.Clone()
		s.byTrack[e.TrackID] = e.ID
		if e.Seq > s.seq {
			s.seq = e.Seq
		}
		if e.IsPlaying {
			playing++
		}
	}
	if playing > 1 {
		logger.Warn("loaded queue has more than one playing entry", logger.Int("playing", playing))
	}

	logger.Info("queue loaded", logger.Int("entries", len(list)))
	return nil
}

// Enqueue 把歌曲追加到队尾
func (s *Store) Enqueue(ctx context.Context, trackID, addedBy string) (*model.QueueEntry, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, fmt.Errorf("%w: track_id is required", ErrInvalidInput)
	}
	addedBy = strings.TrimSpace(addedBy)
	if addedBy == "" {
		addedBy = model.DefaultAddedBy
	}
	if utf8.RuneCountInString(addedBy) > model.MaxAddedByLength {
		return nil, fmt.Errorf("%w: added_by must be at most %d characters", ErrInvalidInput, model.MaxAddedByLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byTrack[trackID]; ok {
		return nil, fmt.Errorf("enqueue %s: %w", trackID, ErrDuplicateTrack)
	}

	track, err := s.repo.FindTrack(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("track %s: %w", trackID, err)
	}

	var tail *float64
	if last := s.lastLocked(); last != nil {
		tail = position.Ptr(last.Position)
	}

	entry := &model.QueueEntry{
		ID:       s.newID(),
		TrackID:  trackID,
		Position: position.Allocate(tail, nil),
		AddedBy:  addedBy,
		AddedAt:  s.now(),
		Seq:      s.seq + 1,
		Track:    track,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", trackID, err)
	}

	s.seq = entry.Seq
	s.entries[entry.ID] = entry
	s.byTrack[trackID] = entry.ID
	return entry.Clone(), nil
}

// Reposition 直接写入调用方给出的位置，不做唯一性校验
func (s *Store) Reposition(ctx context.Context, id string, pos float64) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePosition(ctx, id, pos); err != nil {
		return nil, fmt.Errorf("reposition %s: %w", id, err)
	}

	entry.Position = pos
	return entry.Clone(), nil
}

// MoveBetween 根据目标邻居在服务端计算位置。afterID 为空表示移到队首，beforeID 为空表示移到队尾
func (s *Store) MoveBetween(ctx context.Context, id, afterID, beforeID string) (*model.QueueEntry, error) {
	if afterID == "" && beforeID == "" {
		return nil, fmt.Errorf("%w: after_id or before_id is required", ErrInvalidInput)
	}
	if afterID == id || beforeID == id {
		return nil, fmt.Errorf("%w: an entry cannot be its own neighbour", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}

	var prev, next *float64
	if afterID != "" {
		after, err := s.getLocked(afterID)
		if err != nil {
			return nil, err
		}
		prev = position.Ptr(after.Position)
	}
	if beforeID != "" {
		before, err := s.getLocked(beforeID)
		if err != nil {
			return nil, err
		}
		next = position.Ptr(before.Position)
	}

	if prev != nil && next != nil {
		if *prev > *next {
			return nil, fmt.Errorf("%w: after_id must precede before_id", ErrInvalidInput)
		}
		if position.Exhausted(*prev, *next) {
			return nil, fmt.Errorf("%w: no room between neighbours, rebalance required", ErrInvalidInput)
		}
	}

	pos := position.Allocate(prev, next)
	if err := s.repo.UpdatePosition(ctx, id, pos); err != nil {
		return nil, fmt.Errorf("move %s: %w", id, err)
	}

	entry.Position = pos
	return entry.Clone(), nil
}

// Vote 票数加一或减一，没有上下限，返回新票数
func (s *Store) Vote(ctx context.Context, id string, dir Direction) (int, error) {
	delta := 1
	switch dir {
	case Up:
	case Down:
		delta = -1
	default:
		return 0, fmt.Errorf("%w: direction must be up or down", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getLocked(id)
	if err != nil {
		return 0, err
	}

	votes := entry.Votes + delta
	if err := s.repo.UpdateVotes(ctx, id, votes); err != nil {
		return 0, fmt.Errorf("vote %s: %w", id, err)
	}

	entry.Votes = votes
	return votes, nil
}

// SetPlaying 是唯一能把 is_playing 置为 true 的操作
// 置为 true 时其他项全部停止，只有本项更新 played_at；置为 false 时保留 played_at
func (s *Store) SetPlaying(ctx context.Context, id string, playing bool) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}

	var playedAt *time.Time
	if playing {
		now := s.now()
		playedAt = &now
	}
	if err := s.repo.UpdatePlaying(ctx, id, playing, playedAt); err != nil {
		return nil, fmt.Errorf("set playing %s: %w", id, err)
	}

	if playing {
		for _, other := range s.entries {
			if other.ID != id {
				other.IsPlaying = false
			}
		}
		entry.PlayedAt = playedAt
	}
	entry.IsPlaying = playing
	return entry.Clone(), nil
}

// Remove 删除队列项，正在播放的项被删除后播放即停止
func (s *Store) Remove(ctx context.Context, id string) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}

	delete(s.entries, id)
	delete(s.byTrack, entry.TrackID)
	return entry, nil
}

// Rebalance 按当前顺序把所有位置重写为 1..n
func (s *Store) Rebalance(ctx context.Context) ([]*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.orderedLocked(ByPosition)
	slots := position.Rebalance(len(ordered))
	positions := make(map[string]float64, len(ordered))
	for i, e := range ordered {
		positions[e.ID] = slots[i]
	}

	if len(positions) > 0 {
		if err := s.repo.UpdatePositions(ctx, positions); err != nil {
			return nil, fmt.Errorf("rebalance: %w", err)
		}
	}

	out := make([]*model.QueueEntry, len(ordered))
	for i, e := range ordered {
		e.Position = slots[i]
		out[i] = e.Clone()
	}
	return out, nil
}

// Get 获取单个队列项的副本
func (s *Store) Get(id string) (*model.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// ListOrdered 返回排好序的快照，可能马上过期
func (s *Store) ListOrdered(order Order) []*model.QueueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.orderedLocked(order)
	out := make([]*model.QueueEntry, len(ordered))
	for i, e := range ordered {
		out[i] = e.Clone()
	}
	return out
}

// Len 当前队列长度
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ========== 内部方法（需要持有锁） ==========

func (s *Store) getLocked(id string) (*model.QueueEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return entry, nil
}

func (s *Store) orderedLocked(order Order) []*model.QueueEntry {
	list := make([]*model.QueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	Sort(list, order)
	return list
}

func (s *Store) lastLocked() *model.QueueEntry {
	var last *model.QueueEntry
	for _, e := range s.entries {
		if last == nil || positionLess(last, e) {
			last = e
		}
	}
	return last
}
