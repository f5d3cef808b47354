package server

import (
	"context"
	"net/http"

	"SyncPlay/core/fanout"
	"SyncPlay/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// WSHandler WebSocket 推送入口
type WSHandler struct {
	hub      *fanout.Hub
	upgrader websocket.Upgrader
	// ctx 服务关闭时取消，结束所有读循环
	ctx context.Context
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(ctx context.Context, hub *fanout.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		ctx: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// WebSocketHandler 升级连接并注册到 Hub，注册后立即收到全量快照
func (h *WSHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := fanout.NewClient(h.hub, conn)
	h.hub.Register(client)

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump(h.ctx)

	logger.Info("WebSocket 连接建立",
		logger.String("client", client.ID),
		logger.String("remote", r.RemoteAddr))
}

// RegisterWSRoutes 注册 WebSocket 路由
func RegisterWSRoutes(router *mux.Router, handler *WSHandler) {
	router.HandleFunc("/ws", handler.WebSocketHandler)
}
