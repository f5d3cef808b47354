package cmd

import (
	"fmt"

	"SyncPlay/core/queue"
	"SyncPlay/db"
	"SyncPlay/logger"
	"SyncPlay/repository"

	"github.com/spf13/cobra"
)

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "重写队列位置为 1..n",
	Long: `按当前顺序把所有队列项的位置重写为连续整数。
浮点位置在同一区间反复插入后会耗尽精度，此时移动接口返回 rebalance required。
运行中的服务不会感知离线重排，建议改用 POST /api/playlist/rebalance。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.ConnectGormDB(cfg); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.CloseGormDB()

		store := queue.NewStore(repository.NewGormQueueRepository(db.GormDB))
		if err := store.Load(cmd.Context()); err != nil {
			return err
		}

		entries, err := store.Rebalance(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("queue rebalanced", logger.Int("entries", len(entries)))

		for _, e := range entries {
			fmt.Printf("%6.0f  %s  %s\n", e.Position, e.ID, e.TrackID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebalanceCmd)
}
