package model

import "time"

// DefaultAddedBy 未填写添加者时使用的名称
const DefaultAddedBy = "Anonymous"

// MaxAddedByLength added_by 列的字符上限
const MaxAddedByLength = 100

// QueueEntry 共享播放队列中的一项
// Position 是浮点排序键，不是数组下标；Seq 为插入序号，用作同位置时的稳定排序
type QueueEntry struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	TrackID   string     `json:"track_id" gorm:"size:64;not null;uniqueIndex"`
	Position  float64    `json:"position" gorm:"not null;index"`
	Votes     int        `json:"votes" gorm:"not null;default:0"`
	IsPlaying bool       `json:"is_playing" gorm:"not null;default:false"`
	AddedBy   string     `json:"added_by" gorm:"size:100;not null"`
	AddedAt   time.Time  `json:"added_at" gorm:"not null"`
	PlayedAt  *time.Time `json:"played_at"`
	Seq       int64      `json:"seq" gorm:"not null;index"`

	Track *Track `json:"track,omitempty" gorm:"foreignKey:TrackID;references:ID"`
}

// TableName 指定表名
func (QueueEntry) TableName() string {
	return "playlist_tracks"
}

// Clone 返回深拷贝，调用方修改不会影响原对象
func (e *QueueEntry) Clone() *QueueEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.PlayedAt != nil {
		t := *e.PlayedAt
		c.PlayedAt = &t
	}
	if e.Track != nil {
		t := *e.Track
		c.Track = &t
	}
	return &c
}
