package cmd

import (
	"SyncPlay/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动SyncPlay服务器",
	Long:  `启动共享播放队列的HTTP服务器，提供REST API和WebSocket实时推送`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
