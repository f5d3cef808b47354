package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"SyncPlay/core/queue"
	"SyncPlay/logger"
)

// 错误码
const (
	codeNotFound       = "not_found"
	codeDuplicateTrack = "duplicate_track"
	codeInvalidInput   = "invalid_input"
	codeInternal       = "internal"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse 操作确认
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &ErrorResponse{Error: code, Message: message})
}

// writeError 把 queue 的哨兵错误一一映射为 HTTP 状态码，其余按 500 处理并记录日志
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, queue.ErrDuplicateTrack):
		writeErrorCode(w, http.StatusConflict, codeDuplicateTrack, err.Error())
	case errors.Is(err, queue.ErrInvalidInput):
		writeErrorCode(w, http.StatusBadRequest, codeInvalidInput, err.Error())
	default:
		logger.Error("request failed",
			logger.ErrorField(err),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path))
		writeErrorCode(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// decodeJSON 解析请求体，失败时直接写 400
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorCode(w, http.StatusBadRequest, codeInvalidInput, "无效的请求: "+err.Error())
		return false
	}
	return true
}
