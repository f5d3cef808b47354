package model

// Track 曲库中的歌曲，对本系统只读
type Track struct {
	ID              string `json:"id" gorm:"primaryKey;size:64"`
	Title           string `json:"title" gorm:"size:255;not null"`
	Artist          string `json:"artist" gorm:"size:255;not null"`
	Album           string `json:"album" gorm:"size:255"`
	DurationSeconds int    `json:"duration_seconds" gorm:"not null;default:0"`
	Genre           string `json:"genre" gorm:"size:64"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}
