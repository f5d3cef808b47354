package queue

import (
	"fmt"
	"sort"

	"SyncPlay/model"
)

// Order 队列排序方式
type Order string

const (
	ByPosition  Order = "position"
	ByVotesDesc Order = "votes"
)

// ParseOrder 解析排序参数，空字符串表示按位置
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "position", "by_position":
		return ByPosition, nil
	case "votes", "by_votes_desc":
		return ByVotesDesc, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, s)
	}
}

// Sort 原地排序。位置相同时按 seq、id 排序，保证顺序确定
func Sort(entries []*model.QueueEntry, order Order) {
	switch order {
	case ByVotesDesc:
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.Votes != b.Votes {
				return a.Votes > b.Votes
			}
			return positionLess(a, b)
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			return positionLess(entries[i], entries[j])
		})
	}
}

func positionLess(a, b *model.QueueEntry) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}
