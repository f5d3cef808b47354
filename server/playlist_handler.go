package server

import (
	"net/http"
	"strings"

	"SyncPlay/core/playlist"
	"SyncPlay/core/queue"
	"SyncPlay/logger"

	"github.com/gorilla/mux"
)

// PlaylistHandler 播放队列 HTTP 处理器
type PlaylistHandler struct {
	svc *playlist.Service
}

// NewPlaylistHandler 创建播放队列处理器
func NewPlaylistHandler(svc *playlist.Service) *PlaylistHandler {
	return &PlaylistHandler{svc: svc}
}

// ========== 请求结构 ==========

// EnqueueRequest 添加歌曲请求
type EnqueueRequest struct {
	TrackID string `json:"track_id"`
	AddedBy string `json:"added_by"`
}

// UpdateEntryRequest position 和 is_playing 只能二选一
type UpdateEntryRequest struct {
	Position  *float64 `json:"position"`
	IsPlaying *bool    `json:"is_playing"`
}

// MoveRequest 按邻居移动，after_id 为空表示移到队首，before_id 为空表示移到队尾
type MoveRequest struct {
	AfterID  string `json:"after_id"`
	BeforeID string `json:"before_id"`
}

// VoteRequest 投票请求
type VoteRequest struct {
	Direction string `json:"direction"`
}

// ========== HTTP 处理器 ==========

// ListHandler GET /api/playlist?sort=position|votes&filter=
func (h *PlaylistHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order, err := queue.ParseOrder(q.Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := queue.ParseFilter(q.Get("filter"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.svc.ListAll(order, filter))
}

// GetHandler GET /api/playlist/{id}
func (h *PlaylistHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// EnqueueHandler POST /api/playlist
func (h *PlaylistHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TrackID) == "" {
		writeErrorCode(w, http.StatusBadRequest, codeInvalidInput, "track_id is required")
		return
	}

	entry, err := h.svc.Enqueue(r.Context(), req.TrackID, req.AddedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// UpdateHandler PATCH /api/playlist/{id}
func (h *PlaylistHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req UpdateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch {
	case req.Position != nil && req.IsPlaying != nil:
		writeErrorCode(w, http.StatusBadRequest, codeInvalidInput, "position and is_playing cannot be updated together")
	case req.Position != nil:
		entry, err := h.svc.Reposition(r.Context(), id, *req.Position)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case req.IsPlaying != nil:
		entry, err := h.svc.SetPlaying(r.Context(), id, *req.IsPlaying)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	default:
		writeErrorCode(w, http.StatusBadRequest, codeInvalidInput, "position or is_playing is required")
	}
}

// MoveHandler POST /api/playlist/{id}/move
func (h *PlaylistHandler) MoveHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.svc.MoveBetween(r.Context(), mux.Vars(r)["id"], req.AfterID, req.BeforeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// VoteHandler POST /api/playlist/{id}/vote
func (h *PlaylistHandler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Vote(r.Context(), mux.Vars(r)["id"], req.Direction)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveHandler DELETE /api/playlist/{id}
func (h *PlaylistHandler) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &MessageResponse{Message: "Track removed from playlist"})
}

// AdvanceHandler POST /api/playlist/advance?sort=，队列结束时返回 204
func (h *PlaylistHandler) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	order, err := queue.ParseOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.svc.Advance(r.Context(), order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// RebalanceHandler POST /api/playlist/rebalance
func (h *PlaylistHandler) RebalanceHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Rebalance(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// StatsHandler GET /api/playlist/stats
func (h *PlaylistHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats(r.Context()))
}

// RegisterPlaylistRoutes 注册播放队列路由，固定路径要先于 {id} 注册
func RegisterPlaylistRoutes(router *mux.Router, handler *PlaylistHandler) {
	router.HandleFunc("/api/playlist", handler.ListHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlist", handler.EnqueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playlist/stats", handler.StatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlist/advance", handler.AdvanceHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playlist/rebalance", handler.RebalanceHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playlist/{id}", handler.GetHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlist/{id}", handler.UpdateHandler).Methods(http.MethodPatch)
	router.HandleFunc("/api/playlist/{id}", handler.RemoveHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlist/{id}/move", handler.MoveHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playlist/{id}/vote", handler.VoteHandler).Methods(http.MethodPost)

	logger.Info("播放队列API端点注册完成",
		logger.String("endpoints", "GET/POST /api/playlist, PATCH/DELETE /api/playlist/{id}, POST /api/playlist/{id}/move|vote, POST /api/playlist/advance|rebalance"))
}
