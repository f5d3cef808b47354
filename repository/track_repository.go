package repository

import (
	"context"

	"SyncPlay/model"

	"gorm.io/gorm"
)

// TrackRepository 曲库只读访问
type TrackRepository interface {
	ListTracks(ctx context.Context) ([]*model.Track, error)
	GetTrack(ctx context.Context, id string) (*model.Track, error)
}

// gormTrackRepository GORM 实现
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 曲库仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// ListTracks 按歌手、标题排序返回全部歌曲
func (r *gormTrackRepository) ListTracks(ctx context.Context) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).Order("artist ASC, title ASC").Find(&tracks).Error
	if err != nil {
		return nil, mapError(err)
	}
	return tracks, nil
}

// GetTrack 根据ID获取歌曲，不存在时返回 queue.ErrNotFound
func (r *gormTrackRepository) GetTrack(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error; err != nil {
		return nil, mapError(err)
	}
	return &track, nil
}
