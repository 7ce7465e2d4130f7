package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kenta/moviemate/internal/metrics"
	"github.com/kenta/moviemate/internal/middleware"
	"github.com/kenta/moviemate/internal/model"
	"github.com/kenta/moviemate/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// Status は指定映画に対するユーザーの状態を返す。未認証はゼロ値。
	Status(ctx context.Context, userID string, movieID int) (profile.MovieState, error)
	// GetProfile はプロフィールドキュメント全体を返す。
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	// ToggleFavorite はお気に入りの所属をトグルし、トグル後の所属状態を返す。
	ToggleFavorite(ctx context.Context, userID string, movieID int, ref model.MovieRef) (bool, error)
	// ToggleWatchlist はウォッチリストの所属をトグルし、トグル後の所属状態を返す。
	ToggleWatchlist(ctx context.Context, userID string, movieID int, ref model.MovieRef) (bool, error)
	// SetRating は指定映画の評価（1〜5）を設定する。
	SetRating(ctx context.Context, userID string, movieID, value int) error
}

// DisplayNameUpdater は表示名更新のインターフェース。
type DisplayNameUpdater interface {
	UpdateDisplayName(ctx context.Context, userID, name string) error
}

// TrackEmitter はトラッキングイベントのfire-and-forget送信インターフェース。
type TrackEmitter interface {
	// Enabled は送信先エンドポイントが設定されているかを返す。
	Enabled() bool
	// Emit はイベントを検証し、バックグラウンドで送信する。
	Emit(ctx context.Context, userID, eventType string, eventData map[string]any) error
}

// ProfileHandler はプロフィールドキュメント操作のHTTPハンドラー。
// トグル・評価の成功時にはトラッキングイベントを送信するが、
// 送信結果はレスポンスに影響しない。
type ProfileHandler struct {
	service     ProfileServiceInterface
	nameUpdater DisplayNameUpdater
	emitter     TrackEmitter
	metrics     metrics.MetricsCollector
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface, nameUpdater DisplayNameUpdater, emitter TrackEmitter, collector metrics.MetricsCollector) *ProfileHandler {
	return &ProfileHandler{
		service:     service,
		nameUpdater: nameUpdater,
		emitter:     emitter,
		metrics:     collector,
	}
}

// --- リクエスト/レスポンス型 ---

// updateNameRequest は表示名更新リクエストのボディ。
type updateNameRequest struct {
	Name string `json:"name"`
}

// toggleRequest はトグルリクエストのボディ。
// プロフィールドキュメントに埋め込む映画のメタデータを運ぶ。
type toggleRequest struct {
	Title       string  `json:"title"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
}

// ref はリクエストボディからプロフィール埋め込み用のMovieRefを生成する。
func (req *toggleRequest) ref(movieID int) model.MovieRef {
	return model.MovieRef{
		ID:          movieID,
		Title:       req.Title,
		PosterPath:  req.PosterPath,
		VoteAverage: req.VoteAverage,
		ReleaseDate: req.ReleaseDate,
	}
}

// ratingRequest は評価設定リクエストのボディ。
type ratingRequest struct {
	Value int `json:"value"`
}

// favoriteResponse はお気に入りトグルのレスポンス。
type favoriteResponse struct {
	IsFavorite bool `json:"isFavorite"`
}

// watchlistResponse はウォッチリストトグルのレスポンス。
type watchlistResponse struct {
	IsInWatchlist bool `json:"isInWatchlist"`
}

// ratingResponse は評価設定のレスポンス。
type ratingResponse struct {
	UserRating int `json:"userRating"`
}

// GetProfile はプロフィールドキュメント全体を取得する。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// movieListBody は一覧系レスポンスのボディ。
type movieListBody struct {
	Results []model.MovieRef `json:"results"`
}

// Favorites はお気に入り一覧を取得する。
// GET /api/profile/favorites
func (h *ProfileHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	h.listField(w, r, func(p *model.Profile) []model.MovieRef { return p.Favorites })
}

// Watchlist はウォッチリスト一覧を取得する。
// GET /api/profile/watchlist
func (h *ProfileHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	h.listField(w, r, func(p *model.Profile) []model.MovieRef { return p.Watchlist })
}

func (h *ProfileHandler) listField(w http.ResponseWriter, r *http.Request, field func(*model.Profile) []model.MovieRef) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	results := field(p)
	if results == nil {
		results = []model.MovieRef{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(movieListBody{Results: results})
}

// UpdateName は表示名を更新する。
// PUT /api/profile/name
func (h *ProfileHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req updateNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := h.nameUpdater.UpdateDisplayName(r.Context(), userID, req.Name); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updateNameRequest{Name: req.Name})
}

// MovieState は指定映画に対するユーザーの状態を取得する。
// GET /api/movies/:id/state
//
// 未認証リクエストも受け付け、その場合はゼロ値の状態を返す。
func (h *ProfileHandler) MovieState(w http.ResponseWriter, r *http.Request) {
	// オプショナルセッション: 未認証ならuserIDは空のまま
	userID, _ := middleware.UserIDFromContext(r.Context())

	movieID, err := movieIDParam(r)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	state, err := h.service.Status(r.Context(), userID, movieID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

// ToggleFavorite はお気に入りの所属をトグルする。
// PUT /api/movies/:id/favorite
func (h *ProfileHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	movieID, err := movieIDParam(r)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	req, err := decodeToggleRequest(r)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	active, err := h.service.ToggleFavorite(r.Context(), userID, movieID, req.ref(movieID))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	h.metrics.RecordToggle("favorite")
	h.emitTrack(r.Context(), userID, "favorite_toggled", map[string]any{
		"movie_id": movieID,
		"active":   active,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(favoriteResponse{IsFavorite: active})
}

// ToggleWatchlist はウォッチリストの所属をトグルする。
// PUT /api/movies/:id/watchlist
func (h *ProfileHandler) ToggleWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	movieID, err := movieIDParam(r)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	req, err := decodeToggleRequest(r)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	active, err := h.service.ToggleWatchlist(r.Context(), userID, movieID, req.ref(movieID))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	h.metrics.RecordToggle("watchlist")
	h.emitTrack(r.Context(), userID, "watchlist_toggled", map[string]any{
		"movie_id": movieID,
		"active":   active,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(watchlistResponse{IsInWatchlist: active})
}

// SetRating は指定映画の評価を設定する。
// PUT /api/movies/:id/rating
func (h *ProfileHandler) SetRating(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	movieID, err := movieIDParam(r)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := h.service.SetRating(r.Context(), userID, movieID, req.Value); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	h.metrics.RecordToggle("rating")
	h.emitTrack(r.Context(), userID, "movie_rated", map[string]any{
		"movie_id": movieID,
		"value":    req.Value,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ratingResponse{UserRating: req.Value})
}

// emitTrack はトラッキングイベントを送信する。
// 送信の失敗はログに記録するだけで、呼び出し元のレスポンスには影響しない。
func (h *ProfileHandler) emitTrack(ctx context.Context, userID, eventType string, eventData map[string]any) {
	if h.emitter == nil || !h.emitter.Enabled() {
		return
	}
	if err := h.emitter.Emit(ctx, userID, eventType, eventData); err != nil {
		slog.Warn("failed to emit tracking event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// movieIDParam はURLパスから映画IDを取得する。
func movieIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	movieID, err := strconv.Atoi(raw)
	if err != nil || movieID <= 0 {
		return 0, model.NewValidationError("映画IDの形式が正しくありません")
	}
	return movieID, nil
}

// decodeToggleRequest はトグルリクエストのボディを読み取る。
// ボディ省略（メタデータなし）は許容する。
func decodeToggleRequest(r *http.Request) (*toggleRequest, error) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return &req, nil
		}
		return nil, model.NewValidationError("リクエストボディの解析に失敗しました")
	}
	return &req, nil
}
