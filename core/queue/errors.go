package queue

import "errors"

var (
	// ErrNotFound 引用的队列项或歌曲不存在
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTrack 该歌曲已在队列中
	ErrDuplicateTrack = errors.New("track already in queue")
	// ErrInvalidInput 请求参数不合法
	ErrInvalidInput = errors.New("invalid input")
)
