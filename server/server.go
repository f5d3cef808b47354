package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SyncPlay/cache"
	"SyncPlay/config"
	"SyncPlay/core/fanout"
	"SyncPlay/core/playlist"
	"SyncPlay/core/queue"
	"SyncPlay/db"
	"SyncPlay/logger"
	"SyncPlay/repository"

	"github.com/gorilla/mux"
)

// NewRouter 组装路由：曲库、播放队列、WebSocket
// CORS 包在路由外层，OPTIONS 预检不经过 mux 的方法匹配
func NewRouter(ctx context.Context, svc *playlist.Service, hub *fanout.Hub, corsOrigin string) http.Handler {
	router := mux.NewRouter()

	RegisterTrackRoutes(router, NewTrackHandler(svc))
	RegisterPlaylistRoutes(router, NewPlaylistHandler(svc))
	RegisterWSRoutes(router, NewWSHandler(ctx, hub))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"clients": hub.ClientCount(),
		})
	}).Methods(http.MethodGet)

	return corsMiddleware(corsOrigin)(router)
}

// corsMiddleware 跨域中间件，OPTIONS 预检直接返回
func corsMiddleware(origin string) mux.MiddlewareFunc {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Start 连接依赖、加载队列并启动 HTTP 服务，收到退出信号后优雅关闭
func Start(cfg *config.Config) error {
	// 连接数据库
	if err := db.ConnectGormDB(cfg); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.CloseGormDB()

	if cfg.DBAutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	var (
		presence *cache.Presence
		opts     []playlist.Option
	)
	if cfg.RedisEnabled {
		if err := db.ConnectRedis(cfg); err != nil {
			// Redis 不可用时降级为单实例模式
			logger.Warn("Redis 连接失败，在线统计和快照缓存已禁用", logger.ErrorField(err))
		} else {
			defer db.CloseRedis()
			presence = cache.NewPresence(db.RedisClient)
			opts = append(opts, playlist.WithCache(cache.NewQueueCache(db.RedisClient)))
		}
	}

	store := queue.NewStore(repository.NewGormQueueRepository(db.GormDB))
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	err := store.Load(loadCtx)
	cancelLoad()
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	logger.Info("播放队列加载完成", logger.Int("entries", store.Len()))

	svc := playlist.NewService(store, nil, repository.NewGormTrackRepository(db.GormDB), opts...)

	hubCfg := fanout.HubConfig{
		Snapshot:   svc.Snapshot,
		Heartbeat:  cfg.HeartbeatInterval,
		SendBuffer: cfg.ClientSendBuffer,
	}
	if presence != nil {
		hubCfg.Presence = presence
	}
	hub := fanout.NewHub(hubCfg)
	svc.SetPublisher(hub)
	svc.SetOnlineCounter(hub)
	go hub.Run()
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(ctx, svc, hub, cfg.CORSOrigin),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		logger.Info("Manage playlist via /api/playlist endpoints, subscribe via /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
		logger.Info("Shutting down server...")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	// 创建一个5秒超时的上下文
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
