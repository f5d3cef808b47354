package server

import (
	"net/http"

	"SyncPlay/core/playlist"

	"github.com/gorilla/mux"
)

// TrackHandler 曲库只读接口
type TrackHandler struct {
	svc *playlist.Service
}

// NewTrackHandler 创建曲库处理器
func NewTrackHandler(svc *playlist.Service) *TrackHandler {
	return &TrackHandler{svc: svc}
}

// ListTracksHandler GET /api/tracks
func (h *TrackHandler) ListTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.svc.Tracks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler GET /api/tracks/{id}
func (h *TrackHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, err := h.svc.Track(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// RegisterTrackRoutes 注册曲库路由
func RegisterTrackRoutes(router *mux.Router, handler *TrackHandler) {
	router.HandleFunc("/api/tracks", handler.ListTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", handler.GetTrackHandler).Methods(http.MethodGet)
}
