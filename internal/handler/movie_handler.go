package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kenta/moviemate/internal/middleware"
	"github.com/kenta/moviemate/internal/model"
)

// MovieServiceInterface は映画ハンドラーが必要とするサービスインターフェース。
type MovieServiceInterface interface {
	// Trending はキャッシュ済みまたは再取得したトレンド映画一覧を返す。
	Trending(ctx context.Context) ([]model.Movie, error)
	// Search はトレンド一覧をキーワードで部分一致検索する。
	Search(ctx context.Context, query string) ([]model.Movie, error)
}

// MovieHandler は映画情報のHTTPハンドラー。
type MovieHandler struct {
	service MovieServiceInterface
}

// NewMovieHandler はMovieHandlerを生成する。
func NewMovieHandler(service MovieServiceInterface) *MovieHandler {
	return &MovieHandler{service: service}
}

// movieListResponse は映画一覧のレスポンス。
type movieListResponse struct {
	Results []model.Movie `json:"results"`
}

// Trending はトレンド映画一覧を取得する。
// GET /api/movies/trending
func (h *MovieHandler) Trending(w http.ResponseWriter, r *http.Request) {
	movies, err := h.service.Trending(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(movieListResponse{Results: movies})
}

// Search はトレンド映画をキーワードで検索する。
// GET /api/movies/search?query=xxx
func (h *MovieHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	movies, err := h.service.Search(r.Context(), query)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(movieListResponse{Results: movies})
}
