package queue

import (
	"fmt"
	"sort"
	"time"

	"SyncPlay/model"
)

// FilterKind 只读视图过滤方式，不会删除任何队列项
type FilterKind string

const (
	FilterNone           FilterKind = ""
	FilterMostPlayed     FilterKind = "most_played"
	FilterRecentlyAdded  FilterKind = "recently_added"
	FilterRecentlyPlayed FilterKind = "recently_played"
	FilterNeverPlayed    FilterKind = "never_played"
	FilterTopRated       FilterKind = "top_rated"
)

// RecentWindow recently_played 的时间窗口
const RecentWindow = 7 * 24 * time.Hour

// ParseFilter 解析过滤参数
func ParseFilter(s string) (FilterKind, error) {
	switch k := FilterKind(s); k {
	case FilterNone, FilterMostPlayed, FilterRecentlyAdded, FilterRecentlyPlayed, FilterNeverPlayed, FilterTopRated:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", ErrInvalidInput, s)
	}
}

// Filter 返回新切片，输入切片不会被修改
func Filter(entries []*model.QueueEntry, kind FilterKind, now time.Time) []*model.QueueEntry {
	out := make([]*model.QueueEntry, 0, len(entries))

	switch kind {
	case FilterMostPlayed:
		out = append(out, entries...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })

	case FilterRecentlyAdded:
		out = append(out, entries...)
		sortByAddedDesc(out)

	case FilterRecentlyPlayed:
		cutoff := now.Add(-RecentWindow)
		for _, e := range entries {
			if e.PlayedAt != nil && e.PlayedAt.After(cutoff) {
				out = append(out, e)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].PlayedAt.After(*out[j].PlayedAt) })

	case FilterNeverPlayed:
		for _, e := range entries {
			if e.PlayedAt == nil && e.Votes <= 0 {
				out = append(out, e)
			}
		}
		sortByAddedDesc(out)

	case FilterTopRated:
		for _, e := range entries {
			if e.Votes > 0 {
				out = append(out, e)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })

	default:
		out = append(out, entries...)
	}

	return out
}

func sortByAddedDesc(list []*model.QueueEntry) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].AddedAt.After(list[j].AddedAt) })
}

// TotalDuration 队列总时长（秒），缺少曲目信息的项按 0 计
func TotalDuration(entries []*model.QueueEntry) int {
	total := 0
	for _, e := range entries {
		if e.Track != nil {
			total += e.Track.DurationSeconds
		}
	}
	return total
}

// NowPlaying 返回正在播放的项，没有时返回 nil
func NowPlaying(entries []*model.QueueEntry) *model.QueueEntry {
	for _, e := range entries {
		if e.IsPlaying {
			return e
		}
	}
	return nil
}

// Next 返回 ordered 中 current 之后的一项
// current 为空或不在列表中时返回第一项，已经是最后一项时返回 nil
func Next(ordered []*model.QueueEntry, current *model.QueueEntry) *model.QueueEntry {
	if len(ordered) == 0 {
		return nil
	}
	if current == nil {
		return ordered[0]
	}
	for i, e := range ordered {
		if e.ID == current.ID {
			if i+1 < len(ordered) {
				return ordered[i+1]
			}
			return nil
		}
	}
	return ordered[0]
}
