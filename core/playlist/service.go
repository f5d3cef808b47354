// Package playlist 队列变更入口：校验参数、调用 queue.Store、成功后广播一条事件
package playlist

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SyncPlay/core/fanout"
	"SyncPlay/core/queue"
	"SyncPlay/logger"
	"SyncPlay/model"
)

// Publisher 事件广播，由 fanout.Hub 实现
type Publisher interface {
	Publish(evt fanout.Event) error
}

// Catalog 曲库只读访问
type Catalog interface {
	ListTracks(ctx context.Context) ([]*model.Track, error)
	GetTrack(ctx context.Context, id string) (*model.Track, error)
}

// SnapshotCache 队列快照缓存，例如 Redis
type SnapshotCache interface {
	Save(ctx context.Context, entries []*model.QueueEntry) error
}

// OnlineCounter 在线连接统计
type OnlineCounter interface {
	OnlineCount(ctx context.Context) (int64, error)
}

// VoteResult 投票结果
type VoteResult struct {
	ID    string `json:"id"`
	Votes int    `json:"votes"`
}

// Stats 队列统计
type Stats struct {
	Count                int               `json:"count"`
	TotalDurationSeconds int               `json:"total_duration_seconds"`
	NowPlaying           *model.QueueEntry `json:"now_playing"`
	Online               int64             `json:"online"`
}

// Service 串行化所有变更：持有 mu 完成 store 操作和 Publish，广播顺序即生效顺序
type Service struct {
	mu      sync.Mutex
	store   *queue.Store
	pub     Publisher
	catalog Catalog
	cache   SnapshotCache
	online  OnlineCounter
	now     func() time.Time
}

// Option 配置 Service
type Option func(*Service)

// WithCache 每次变更后刷新快照缓存
func WithCache(c SnapshotCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithOnlineCounter 设置在线人数来源
func WithOnlineCounter(c OnlineCounter) Option {
	return func(s *Service) { s.online = c }
}

// WithClock 替换时间源，仅影响视图过滤
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建服务。pub 可以在之后通过 SetPublisher 设置
func NewService(store *queue.Store, pub Publisher, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		pub:     pub,
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPublisher Hub 依赖 Snapshot，Service 依赖 Hub，启动时用它打破循环
func (s *Service) SetPublisher(pub Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub = pub
}

// SetOnlineCounter 与 SetPublisher 一样在启动阶段调用
func (s *Service) SetOnlineCounter(c OnlineCounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = c
}

// Snapshot 按位置排序的全量快照，供 Hub 做新连接同步
func (s *Service) Snapshot() []*model.QueueEntry {
	return s.store.ListOrdered(queue.ByPosition)
}

// ========== 变更操作 ==========

// Enqueue 添加歌曲到队尾
func (s *Service) Enqueue(ctx context.Context, trackID, addedBy string) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.store.Enqueue(ctx, trackID, addedBy)
	if err != nil {
		return nil, err
	}
	s.publishLocked(ctx, fanout.Added(entry))

	logger.Info("track enqueued",
		logger.String("entry", entry.ID),
		logger.String("track", entry.TrackID),
		logger.String("addedBy", entry.AddedBy),
		logger.Float64("position", entry.Position))
	return entry, nil
}

// Reposition 直接设置位置，调用方负责用 Allocate 计算
func (s *Service) Reposition(ctx context.Context, id string, pos float64) (*model.QueueEntry, error) {
	if math.IsNaN(pos) || math.IsInf(pos, 0) {
		return nil, fmt.Errorf("%w: position must be a finite number", queue.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.store.Reposition(ctx, id, pos)
	if err != nil {
		return nil, err
	}
	s.publishLocked(ctx, fanout.Moved(entry.ID, entry.Position))
	return entry, nil
}

// MoveBetween 按邻居在服务端计算位置
func (s *Service) MoveBetween(ctx context.Context, id, afterID, beforeID string) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.store.MoveBetween(ctx, id, afterID, beforeID)
	if err != nil {
		return nil, err
	}
	s.publishLocked(ctx, fanout.Moved(entry.ID, entry.Position))
	return entry, nil
}

// SetPlaying 设置播放状态；true 广播 track.playing，false 广播 track.paused
func (s *Service) SetPlaying(ctx context.Context, id string, playing bool) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setPlayingLocked(ctx, id, playing)
}

// Vote 投票，direction 只能是 up 或 down
func (s *Service) Vote(ctx context.Context, id, direction string) (*VoteResult, error) {
	dir, err := queue.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	votes, err := s.store.Vote(ctx, id, dir)
	if err != nil {
		return nil, err
	}
	s.publishLocked(ctx, fanout.Voted(id, votes))
	return &VoteResult{ID: id, Votes: votes}, nil
}

// Remove 删除队列项
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	s.publishLocked(ctx, fanout.Removed(entry.ID))

	logger.Info("track removed",
		logger.String("entry", entry.ID),
		logger.String("track", entry.TrackID),
		logger.Bool("wasPlaying", entry.IsPlaying))
	return nil
}

// Advance 按给定顺序播放下一首。已是最后一首时停止播放并返回 nil
func (s *Service) Advance(ctx context.Context, order queue.Order) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.store.ListOrdered(order)
	current := queue.NowPlaying(ordered)
	next := queue.Next(ordered, current)

	if next == nil {
		if current != nil {
			if _, err := s.setPlayingLocked(ctx, current.ID, false); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return s.setPlayingLocked(ctx, next.ID, true)
}

// Rebalance 把所有位置重写为 1..n，广播 playlist.reordered
func (s *Service) Rebalance(ctx context.Context) ([]*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Rebalance(ctx)
	if err != nil {
		return nil, err
	}
	s.publishLocked(ctx, fanout.Reordered(entries))

	logger.Info("queue rebalanced", logger.Int("entries", len(entries)))
	return entries, nil
}

// ========== 查询操作 ==========

// ListAll 有序列表，filter 为空时不过滤
func (s *Service) ListAll(order queue.Order, filter queue.FilterKind) []*model.QueueEntry {
	entries := s.store.ListOrdered(order)
	if filter == queue.FilterNone {
		return entries
	}
	return queue.Filter(entries, filter, s.now())
}

// Get 单个队列项
func (s *Service) Get(id string) (*model.QueueEntry, error) {
	return s.store.Get(id)
}

// Stats 队列统计
func (s *Service) Stats(ctx context.Context) Stats {
	entries := s.store.ListOrdered(queue.ByPosition)
	stats := Stats{
		Count:                len(entries),
		TotalDurationSeconds: queue.TotalDuration(entries),
		NowPlaying:           queue.NowPlaying(entries),
	}
	if s.online != nil {
		n, err := s.online.OnlineCount(ctx)
		if err != nil {
			logger.Warn("failed to count online clients", logger.ErrorField(err))
		} else {
			stats.Online = n
		}
	}
	return stats
}

// Tracks 曲库列表
func (s *Service) Tracks(ctx context.Context) ([]*model.Track, error) {
	return s.catalog.ListTracks(ctx)
}

// Track 曲库中的单首歌曲
func (s *Service) Track(ctx context.Context, id string) (*model.Track, error) {
	return s.catalog.GetTrack(ctx, id)
}

// ========== 内部方法（需要持有 mu） ==========

func (s *Service) setPlayingLocked(ctx context.Context, id string, playing bool) (*model.QueueEntry, error) {
	entry, err := s.store.SetPlaying(ctx, id, playing)
	if err != nil {
		return nil, err
	}
	if playing {
		s.publishLocked(ctx, fanout.Playing(entry.ID))
	} else {
		s.publishLocked(ctx, fanout.Paused(entry.ID))
	}
	return entry, nil
}

// publishLocked 变更已经持久化，广播失败只记录日志
func (s *Service) publishLocked(ctx context.Context, evt fanout.Event) {
	if s.pub != nil {
		if err := s.pub.Publish(evt); err != nil {
			logger.Error("failed to publish event",
				logger.ErrorField(err),
				logger.String("type", string(evt.Type)),
				logger.String("id", evt.ID))
		}
	}

	if s.cache != nil {
		if err := s.cache.Save(ctx, s.store.ListOrdered(queue.ByPosition)); err != nil {
			logger.Warn("failed to refresh queue cache", logger.ErrorField(err))
		}
	}
}
