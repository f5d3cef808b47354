package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SyncPlay/model"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey = "syncplay:queue" // Sorted Set: score 为 position，member 为队列项 JSON
	queueTTL = 24 * time.Hour
)

// QueueCache 把有序队列镜像到 Redis，供其他进程或离线导出读取
type QueueCache struct {
	client *redis.Client
}

// NewQueueCache 创建队列缓存
func NewQueueCache(client *redis.Client) *QueueCache {
	return &QueueCache{client: client}
}

// Save 用一个事务整体替换缓存中的队列
func (c *QueueCache) Save(ctx context.Context, entries []*model.QueueEntry) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	members, err := encodeMembers(entries)
	if err != nil {
		return err
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, queueKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, queueKey, members...)
			pipe.Expire(ctx, queueKey, queueTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save queue cache: %w", err)
	}
	return nil
}

// Load 按 position 升序读取缓存的队列
func (c *QueueCache) Load(ctx context.Context) ([]*model.QueueEntry, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	raw, err := c.client.ZRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load queue cache: %w", err)
	}
	return decodeMembers(raw)
}

func encodeMembers(entries []*model.QueueEntry) ([]redis.Z, error) {
	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal queue entry %s: %w", e.ID, err)
		}
		members = append(members, redis.Z{Score: e.Position, Member: string(data)})
	}
	return members, nil
}

func decodeMembers(raw []string) ([]*model.QueueEntry, error) {
	entries := make([]*model.QueueEntry, 0, len(raw))
	for _, item := range raw {
		var e model.QueueEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}
