package repository

import (
	"context"
	"time"

	"SyncPlay/core/queue"
	"SyncPlay/model"

	"gorm.io/gorm"
)

// gormQueueRepository GORM 实现的 queue.Repository
type gormQueueRepository struct {
	db *gorm.DB
}

// NewGormQueueRepository 创建 GORM 队列仓库
func NewGormQueueRepository(db *gorm.DB) queue.Repository {
	return &gormQueueRepository{db: db}
}

// FindTrack 查询曲库中的歌曲
func (r *gormQueueRepository) FindTrack(ctx context.Context, trackID string) (*model.Track, error) {
	var track model.Track
	if err := r.db.WithContext(ctx).Where("id = ?", trackID).First(&track).Error; err != nil {
		return nil, mapError(err)
	}
	return &track, nil
}

// ListEntries 读取全部队列项及其歌曲
func (r *gormQueueRepository) ListEntries(ctx context.Context) ([]*model.QueueEntry, error) {
	var entries []*model.QueueEntry
	err := r.db.WithContext(ctx).
		Preload("Track").
		Order("position ASC, seq ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// CreateEntry 新增队列项，track_id 唯一索引冲突时返回 ErrDuplicateTrack
func (r *gormQueueRepository) CreateEntry(ctx context.Context, entry *model.QueueEntry) error {
	return mapError(r.db.WithContext(ctx).Omit("Track").Create(entry).Error)
}

// UpdatePosition 更新位置
func (r *gormQueueRepository) UpdatePosition(ctx context.Context, id string, pos float64) error {
	return mapError(r.db.WithContext(ctx).Model(&model.QueueEntry{}).
		Where("id = ?", id).
		Update("position", pos).Error)
}

// UpdateVotes 写入票数绝对值
func (r *gormQueueRepository) UpdateVotes(ctx context.Context, id string, votes int) error {
	return mapError(r.db.WithContext(ctx).Model(&model.QueueEntry{}).
		Where("id = ?", id).
		Update("votes", votes).Error)
}

// UpdatePlaying 更新播放状态；开始播放时在同一事务中停止其他项
func (r *gormQueueRepository) UpdatePlaying(ctx context.Context, id string, playing bool, playedAt *time.Time) error {
	if !playing {
		return mapError(r.db.WithContext(ctx).Model(&model.QueueEntry{}).
			Where("id = ?", id).
			Update("is_playing", false).Error)
	}

	return mapError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先停止其他正在播放的项，played_at 保持不变
		if err := tx.Model(&model.QueueEntry{}).
			Where("is_playing = ? AND id <> ?", true, id).
			Update("is_playing", false).Error; err != nil {
			return err
		}

		return tx.Model(&model.QueueEntry{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_playing": true,
				"played_at":  playedAt,
			}).Error
	}))
}

// DeleteEntry 删除队列项
func (r *gormQueueRepository) DeleteEntry(ctx context.Context, id string) error {
	return mapError(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.QueueEntry{}).Error)
}

// UpdatePositions 在一个事务中批量更新位置
func (r *gormQueueRepository) UpdatePositions(ctx context.Context, positions map[string]float64) error {
	return mapError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, pos := range positions {
			if err := tx.Model(&model.QueueEntry{}).
				Where("id = ?", id).
				Update("position", pos).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}
