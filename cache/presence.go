package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKey = "syncplay:presence:%s" // String: 连接心跳 key，带过期时间
	presenceSet = "syncplay:online"      // Set: 在线连接集合
	presenceTTL = 60 * time.Second       // 心跳过期时间
	onlineTTL   = 24 * time.Hour
)

// Presence 基于 Redis 的在线连接登记，多个进程共享同一个在线人数
type Presence struct {
	client *redis.Client
}

// NewPresence 创建在线登记
func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

// Touch 登记或刷新连接心跳
func (p *Presence) Touch(ctx context.Context, clientID string) error {
	if p.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(presenceKey, clientID), time.Now().UnixMilli(), presenceTTL)
	pipe.SAdd(ctx, presenceSet, clientID)
	pipe.Expire(ctx, presenceSet, onlineTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// TouchMany 在一个 pipeline 中刷新多个连接的心跳
func (p *Presence) TouchMany(ctx context.Context, clientIDs []string) error {
	if p.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if len(clientIDs) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	members := make([]interface{}, len(clientIDs))
	pipe := p.client.Pipeline()
	for i, id := range clientIDs {
		pipe.Set(ctx, fmt.Sprintf(presenceKey, id), now, presenceTTL)
		members[i] = id
	}
	pipe.SAdd(ctx, presenceSet, members...)
	pipe.Expire(ctx, presenceSet, onlineTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// Remove 移除连接
func (p *Presence) Remove(ctx context.Context, clientID string) error {
	if p.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := p.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(presenceKey, clientID))
	pipe.SRem(ctx, presenceSet, clientID)

	_, err := pipe.Exec(ctx)
	return err
}

// Count 统计心跳未过期的连接数，顺带清理已过期的成员
func (p *Presence) Count(ctx context.Context) (int64, error) {
	if p.client == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	members, err := p.client.SMembers(ctx, presenceSet).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := p.client.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, id := range members {
		checks[i] = pipe.Exists(ctx, fmt.Sprintf(presenceKey, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	active := int64(0)
	expired := make([]interface{}, 0)
	for i, cmd := range checks {
		if cmd.Val() > 0 {
			active++
		} else {
			expired = append(expired, members[i])
		}
	}

	if len(expired) > 0 {
		p.client.SRem(ctx, presenceSet, expired...)
	}
	return active, nil
}
