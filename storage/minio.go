package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"SyncPlay/config"
	"SyncPlay/logger"
	"SyncPlay/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	snapshotPrefix = "snapshots/"
	latestObject   = snapshotPrefix + "latest.json"
)

// Snapshot 导出的队列快照
type Snapshot struct {
	ExportedAt time.Time           `json:"exported_at"`
	Count      int                 `json:"count"`
	Entries    []*model.QueueEntry `json:"entries"`
}

// ObjectInfo 快照文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// SnapshotStore 把队列快照导出到 MinIO
type SnapshotStore struct {
	client     *minio.Client
	bucketName string
}

// NewSnapshotStore 创建 MinIO 客户端，存储桶不存在时自动创建
func NewSnapshotStore(ctx context.Context, cfg *config.Config) (*SnapshotStore, error) {
	logger.Info("正在连接 MinIO 服务器...",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	return &SnapshotStore{client: client, bucketName: cfg.MinioBucket}, nil
}

// ObjectName 快照对象名，按 UTC 时间命名
func ObjectName(t time.Time) string {
	return snapshotPrefix + "queue-" + t.UTC().Format("20060102T150405Z") + ".json"
}

// Encode 生成快照 JSON
func Encode(entries []*model.QueueEntry, now time.Time) ([]byte, error) {
	if entries == nil {
		entries = []*model.QueueEntry{}
	}
	return json.MarshalIndent(Snapshot{
		ExportedAt: now.UTC(),
		Count:      len(entries),
		Entries:    entries,
	}, "", "  ")
}

// Export 上传带时间戳的快照，并覆盖 latest.json，返回对象名
func (s *SnapshotStore) Export(ctx context.Context, entries []*model.QueueEntry, now time.Time) (string, error) {
	data, err := Encode(entries, now)
	if err != nil {
		return "", fmt.Errorf("序列化快照失败: %w", err)
	}

	name := ObjectName(now)
	for _, key := range []string{name, latestObject} {
		_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err != nil {
			return "", fmt.Errorf("上传快照 %s 失败: %w", key, err)
		}
	}

	logger.Info("快照导出成功",
		logger.String("object", name),
		logger.Int("entries", len(entries)))
	return name, nil
}

// List 按时间倒序列出已导出的快照
func (s *SnapshotStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: snapshotPrefix}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出快照失败: %w", object.Err)
		}
		if !strings.HasSuffix(object.Key, ".json") || object.Key == latestObject {
			continue
		}
		out = append(out, ObjectInfo{Key: object.Key, Size: object.Size, LastModified: object.LastModified})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}
