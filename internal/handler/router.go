package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kenta/moviemate/internal/metrics"
	"github.com/kenta/moviemate/internal/middleware"
)

// HealthChecker はDB接続の死活確認インターフェース。
// *sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 運用エンドポイント（nilの場合は登録しない）
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer
	Logger          *slog.Logger

	// 認証と画面フロー
	AuthService  AuthServiceInterface
	AuthConfig   AuthHandlerConfig
	FlowRegistry FlowRegistry

	// プロフィール
	ProfileService ProfileServiceInterface
	NameUpdater    DisplayNameUpdater

	// 映画
	MovieService MovieServiceInterface

	// トラッキング
	TrackEmitter TrackEmitter

	// ユーザー
	UserService UserServiceInterface

	// メトリクス
	Metrics metrics.MetricsCollector
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS →（保護ルートのみ）Session → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）と画面フロー（/api/flow）、トレンド取得は
// セッションミドルウェアの外に配置する。サインインには専用レート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// panicリカバリーとセキュリティヘッダー、CORSを最上位に適用（全ルートに効く）
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	// --- 運用エンドポイント ---

	if deps.HealthChecker != nil {
		r.Get("/health", newHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.FlowRegistry, deps.Metrics, deps.AuthConfig)
	flowHandler := NewFlowHandler(deps.FlowRegistry, deps.AuthService, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.NameUpdater, deps.TrackEmitter, deps.Metrics)
	movieHandler := NewMovieHandler(deps.MovieService)
	trackHandler := NewTrackHandler(deps.TrackEmitter)
	userHandler := NewUserHandler(deps.UserService, deps.FlowRegistry, deps.AuthConfig)

	// --- 認証不要のルート ---

	// 認証ルート（サインイン試行は専用レート制限を追加）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.With(deps.RateLimiter.SigninMiddleware()).Post("/signin", authHandler.SignIn)
		r.Post("/signout", authHandler.SignOut)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// 画面フロー状態
	r.Route("/api/flow", func(r chi.Router) {
		r.Get("/", flowHandler.GetState)
		r.Post("/mode", flowHandler.SwitchMode)
	})

	// トレンド/検索
	r.Get("/api/movies/trending", movieHandler.Trending)
	r.Get("/api/movies/search", movieHandler.Search)

	// 映画の状態取得は未認証も受け付け、ゼロ値を返す
	r.With(middleware.NewOptionalSessionMiddleware(deps.SessionFinder)).
		Get("/api/movies/{id}/state", profileHandler.MovieState)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// プロフィールドキュメント
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Get("/favorites", profileHandler.Favorites)
			r.Get("/watchlist", profileHandler.Watchlist)
			r.Put("/name", profileHandler.UpdateName)
		})

		// お気に入り/ウォッチリスト/評価
		r.Put("/api/movies/{id}/favorite", profileHandler.ToggleFavorite)
		r.Put("/api/movies/{id}/watchlist", profileHandler.ToggleWatchlist)
		r.Put("/api/movies/{id}/rating", profileHandler.SetRating)

		// トラッキングイベント
		r.Post("/api/track", trackHandler.Track)

		// ユーザー管理
		r.Delete("/api/users/me", userHandler.Withdraw)
	})

	return r
}

// newHealthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.PingContext(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
