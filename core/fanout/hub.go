package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SyncPlay/logger"
	"SyncPlay/model"
)

// ErrHubStopped Stop 之后的 Publish 返回该错误
var ErrHubStopped = errors.New("hub stopped")

// SnapshotFunc 返回当前队列的有序快照，新连接和 sync 请求都用它做全量同步
type SnapshotFunc func() []*model.QueueEntry

// PresenceRegistry 跨进程的在线连接登记，由 cache.Presence 实现
type PresenceRegistry interface {
	Touch(ctx context.Context, clientID string) error
	TouchMany(ctx context.Context, clientIDs []string) error
	Remove(ctx context.Context, clientID string) error
	Count(ctx context.Context) (int64, error)
}

// HubConfig Hub 配置
type HubConfig struct {
	Snapshot   SnapshotFunc
	Presence   PresenceRegistry // 可为空
	Heartbeat  time.Duration    // 为 0 时不发送心跳，在线登记仍按 presenceRefresh 刷新
	SendBuffer int
}

// presenceRefresh 未配置心跳时刷新在线登记的间隔，需小于 cache 中的过期时间
const presenceRefresh = 20 * time.Second

type requestKind int

const (
	requestSync requestKind = iota
	requestPong
)

type clientRequest struct {
	client *Client
	kind   requestKind
}

// Hub WebSocket 管理中心
// 注册、注销、广播都在 Run 所在的 goroutine 中串行处理，因此每个连接收到的消息顺序与 Publish 顺序一致
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	requests   chan clientRequest

	snapshot   SnapshotFunc
	presence   PresenceRegistry
	heartbeat  time.Duration
	sendBuffer int

	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub 创建 Hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.Snapshot == nil {
		cfg.Snapshot = func() []*model.QueueEntry { return nil }
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		requests:   make(chan clientRequest, 64),
		snapshot:   cfg.Snapshot,
		presence:   cfg.Presence,
		heartbeat:  cfg.Heartbeat,
		sendBuffer: cfg.SendBuffer,
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环，Stop 后返回
func (h *Hub) Run() {
	var tick <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	// 在线登记的过期刷新，有心跳时跟随心跳
	var refresh <-chan time.Time
	if h.presence != nil && h.heartbeat <= 0 {
		ticker := time.NewTicker(presenceRefresh)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastAll(msg)

		case req := <-h.requests:
			h.handleRequest(req)

		case now := <-tick:
			if data, err := Encode(Ping(now)); err == nil {
				h.broadcastAll(data)
			}
			h.refreshPresence()

		case <-refresh:
			h.refreshPresence()

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub 并关闭所有连接
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register 注册客户端，注册后立即收到一份 playlist.reordered 快照
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish 广播事件给所有连接（包括发起请求的客户端）
// 只负责入队，调用方应在持有变更锁时调用，保证广播顺序与变更顺序一致
func (h *Hub) Publish(evt Event) error {
	data, err := Encode(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Type, err)
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// ClientCount 本进程内的连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnlineCount 在线连接数，配置了 PresenceRegistry 时统计所有进程
func (h *Hub) OnlineCount(ctx context.Context) (int64, error) {
	if h.presence == nil {
		return int64(h.ClientCount()), nil
	}
	return h.presence.Count(ctx)
}

// ========== 内部方法（只在 Run 中调用） ==========

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.touchPresence(client)
	h.sendSnapshot(client)

	logger.Info("client registered",
		logger.String("client", client.ID),
		logger.Int("clients", h.ClientCount()))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.mu.Unlock()

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.presence.Remove(ctx, client.ID); err != nil {
			logger.Warn("failed to remove presence on unregister",
				logger.ErrorField(err),
				logger.String("client", client.ID))
		}
	}

	logger.Info("client unregistered", logger.String("client", client.ID))
}

func (h *Hub) broadcastAll(msg []byte) {
	h.mu.RLock()
	clientList := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		select {
		case client.Send <- msg:
		default:
			// 发送缓冲区满，断开连接，客户端重连后会重新同步
			logger.Warn("client send buffer full, dropping", logger.String("client", client.ID))
			h.removeClient(client)
		}
	}
}

func (h *Hub) handleRequest(req clientRequest) {
	h.mu.RLock()
	_, ok := h.clients[req.client]
	h.mu.RUnlock()
	if !ok {
		return
	}

	switch req.kind {
	case requestSync:
		h.sendSnapshot(req.client)
	case requestPong:
		h.touchPresence(req.client)
		h.sendTo(req.client, Pong(time.Now()))
	}
}

func (h *Hub) sendSnapshot(client *Client) {
	h.sendTo(client, Reordered(h.snapshot()))
}

func (h *Hub) sendTo(client *Client, evt Event) {
	data, err := Encode(evt)
	if err != nil {
		logger.Error("failed to encode event", logger.ErrorField(err), logger.String("type", string(evt.Type)))
		return
	}
	select {
	case client.Send <- data:
	default:
		logger.Warn("client send buffer full, dropping", logger.String("client", client.ID))
		h.removeClient(client)
	}
}

// refreshPresence 一次性刷新所有本地连接的在线登记
func (h *Hub) refreshPresence() {
	if h.presence == nil {
		return
	}

	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for client := range h.clients {
		ids = append(ids, client.ID)
	}
	h.mu.RUnlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.TouchMany(ctx, ids); err != nil {
		logger.Warn("failed to refresh presence",
			logger.ErrorField(err),
			logger.Int("clients", len(ids)))
	}
}

func (h *Hub) touchPresence(client *Client) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Touch(ctx, client.ID); err != nil {
		logger.Warn("failed to update presence",
			logger.ErrorField(err),
			logger.String("client", client.ID))
	}
}

// request 由 ReadPump 调用，交给 Run 串行处理
func (h *Hub) request(client *Client, kind requestKind) {
	select {
	case h.requests <- clientRequest{client: client, kind: kind}:
	case <-h.done:
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
}
