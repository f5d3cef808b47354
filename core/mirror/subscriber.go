package mirror

import (
	"context"
	"fmt"
	"time"

	"SyncPlay/core/fanout"
	"SyncPlay/logger"

	"github.com/gorilla/websocket"
)

// Subscriber 连接服务端 WebSocket，把收到的事件应用到 Mirror
// 每次（重新）连接都会清空镜像，等待服务端下发快照；断线后按指数退避重连
type Subscriber struct {
	URL    string
	Mirror *Mirror
	// OnChange 在每条改变状态的事件应用之后调用，在读循环的 goroutine 中执行
	OnChange func(evt fanout.Event, m *Mirror)
	// OnConnect 每次连接成功后调用
	OnConnect func()

	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewSubscriber 使用默认退避参数创建订阅者
func NewSubscriber(url string, m *Mirror) *Subscriber {
	return &Subscriber{
		URL:        url,
		Mirror:     m,
		Dialer:     websocket.DefaultDialer,
		MinBackoff: 200 * time.Millisecond,
		MaxBackoff: 10 * time.Second,
	}
}

// Run 持续订阅直到 ctx 取消
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := s.MinBackoff
	for {
		connected, err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = s.MinBackoff
		}
		logger.Warn("订阅连接断开，准备重连",
			logger.String("url", s.URL),
			logger.Duration("backoff", backoff),
			logger.ErrorField(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.MaxBackoff {
			backoff = s.MaxBackoff
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context) (bool, error) {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.URL, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	s.Mirror.Reset()
	logger.Info("订阅连接成功", logger.String("url", s.URL))
	if s.OnConnect != nil {
		s.OnConnect()
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		events, err := fanout.Decode(frame)
		if err != nil {
			logger.Warn("invalid event frame", logger.ErrorField(err))
		}
		for _, evt := range events {
			if evt.Type == fanout.EventError {
				logger.Warn("server error event", logger.String("message", evt.Message))
				continue
			}
			if s.Mirror.Apply(evt) && s.OnChange != nil {
				s.OnChange(evt, s.Mirror)
			}
		}
	}
}
