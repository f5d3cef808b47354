package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"SyncPlay/core/fanout"
	"SyncPlay/core/mirror"
	"SyncPlay/core/queue"
	"SyncPlay/logger"
	"SyncPlay/model"

	"github.com/spf13/cobra"
)

var (
	watchURL   string
	watchOrder string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "订阅播放队列并在终端实时显示",
	Long:  `作为 WebSocket 客户端连接服务端，维护本地队列镜像，每次变更后重新打印队列。断线后自动重连并重新同步。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := queue.ParseOrder(watchOrder)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub := mirror.NewSubscriber(watchURL, mirror.New())
		sub.OnConnect = func() {
			logger.Info("已连接，等待队列快照", logger.String("url", watchURL))
		}
		sub.OnChange = func(evt fanout.Event, m *mirror.Mirror) {
			printQueue(evt, m.Ordered(order))
		}

		if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func printQueue(evt fanout.Event, entries []*model.QueueEntry) {
	fmt.Printf("\n[%s] %d 项\n", evt.Type, len(entries))
	for i, e := range entries {
		marker := " "
		if e.IsPlaying {
			marker = ">"
		}
		title := e.TrackID
		if e.Track != nil {
			title = fmt.Sprintf("%s - %s", e.Track.Artist, e.Track.Title)
		}
		fmt.Printf("%s %2d. %-40s votes=%-3d pos=%g\n", marker, i+1, title, e.Votes, e.Position)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchURL, "url", "u", "ws://localhost:4000/ws", "WebSocket 地址")
	watchCmd.Flags().StringVarP(&watchOrder, "sort", "s", "position", "排序方式: position 或 votes")
}
