package handler

import (
	"encoding/json"
	"net/http"

	"github.com/kenta/moviemate/internal/middleware"
	"github.com/kenta/moviemate/internal/model"
)

// TrackHandler はトラッキングイベント受付のHTTPハンドラー。
// 検証を通過したイベントはバックグラウンドで送信され、
// 送信の成否を待たずに202を返す。
type TrackHandler struct {
	emitter TrackEmitter
}

// NewTrackHandler はTrackHandlerを生成する。
func NewTrackHandler(emitter TrackEmitter) *TrackHandler {
	return &TrackHandler{emitter: emitter}
}

// trackRequest はトラッキングイベントリクエストのボディ。
type trackRequest struct {
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
}

// Track はトラッキングイベントを受け付ける。
// POST /api/track
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := h.emitter.Emit(r.Context(), userID, req.EventType, req.EventData); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
