package cmd

import (
	"fmt"
	"time"

	"SyncPlay/cache"
	"SyncPlay/core/queue"
	"SyncPlay/db"
	"SyncPlay/model"
	"SyncPlay/repository"
	"SyncPlay/storage"

	"github.com/spf13/cobra"
)

var (
	snapshotFromCache bool
	snapshotList      bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "导出播放队列快照到MinIO",
	Long:  `把当前播放队列按位置顺序导出为 JSON 对象，写入 MinIO 的 snapshots/ 目录，并更新 snapshots/latest.json。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)
		snapshots, err := storage.NewSnapshotStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		if snapshotList {
			objects, err := snapshots.List(ctx)
			if err != nil {
				return err
			}
			for _, obj := range objects {
				fmt.Printf("%s  %8d  %s\n", obj.LastModified.Format(time.RFC3339), obj.Size, obj.Key)
			}
			fmt.Printf("共 %d 个快照\n", len(objects))
			return nil
		}

		var entries []*model.QueueEntry
		if snapshotFromCache {
			if err := db.ConnectRedis(cfg); err != nil {
				return fmt.Errorf("无法连接到Redis: %w", err)
			}
			defer db.CloseRedis()
			entries, err = cache.NewQueueCache(db.RedisClient).Load(ctx)
		} else {
			if err := db.ConnectGormDB(cfg); err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.CloseGormDB()
			store := queue.NewStore(repository.NewGormQueueRepository(db.GormDB))
			if err = store.Load(ctx); err == nil {
				entries = store.ListOrdered(queue.ByPosition)
			}
		}
		if err != nil {
			return fmt.Errorf("读取播放队列失败: %w", err)
		}

		name, err := snapshots.Export(ctx, entries, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("已导出 %d 项到 %s\n", len(entries), name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().BoolVarP(&snapshotFromCache, "from-cache", "c", false, "从Redis快照缓存读取，而不是数据库")
	snapshotCmd.Flags().BoolVarP(&snapshotList, "list", "l", false, "列出已导出的快照")

	snapshotCmd.Example = `  # 从数据库导出
  syncplay snapshot

  # 从Redis缓存导出
  syncplay snapshot --from-cache

  # 列出已有快照
  syncplay snapshot -l`
}
