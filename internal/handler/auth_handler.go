// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kenta/moviemate/internal/auth"
	"github.com/kenta/moviemate/internal/metrics"
	"github.com/kenta/moviemate/internal/middleware"
	"github.com/kenta/moviemate/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// SignUp は新規アカウントを作成する。セッションは発行せず、
	// notifierにauth-change(user)→auth-change(nil)をこの順序で配信する。
	SignUp(ctx context.Context, notifier *auth.Notifier, name, email, password string) (*model.User, error)
	// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
	SignIn(ctx context.Context, notifier *auth.Notifier, email, password string) (*model.User, *model.Session, error)
	// SignOut はセッションを破棄し、notifierにauth-change(nil)を配信する。
	SignOut(ctx context.Context, notifier *auth.Notifier, sessionID string) error
	// GetCurrentUser はセッションから現在のユーザーを取得する。
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はメール/パスワード認証関連のHTTPハンドラー。
// 認証操作と画面フローの連動（サインアップ開始/中断、サインアウト開始）を担う。
type AuthHandler struct {
	service  AuthServiceInterface
	registry FlowRegistry
	metrics  metrics.MetricsCollector
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, registry FlowRegistry, collector metrics.MetricsCollector, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		registry: registry,
		metrics:  collector,
		config:   config,
	}
}

// --- リクエスト/レスポンス型 ---

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signinRequest はサインインリクエストのボディ。
type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SignUp は新規アカウントとプロフィールドキュメントを作成する。
// POST /auth/signup
//
// クライアントのフローコントローラーをサインアップ進行中に遷移させてから
// サービスを呼び出す。サービスが配信するauth-change(user)→auth-change(nil)の
// 2連イベントでコントローラーは完了スプラッシュ→サインイン画面へ進む。
// 失敗時はフローを中断してサインアップフォームへ復帰させる。
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	clientID := ensureClientID(w, r, h.config)
	controller, notifier := h.registry.Get(clientID)

	controller.BeginSignup()

	user, err := h.service.SignUp(r.Context(), notifier, req.Name, req.Email, req.Password)
	if err != nil {
		controller.AbortSignup()
		middleware.WriteAPIError(w, err)
		return
	}

	h.metrics.RecordAuthEvent("signup")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	})
}

// SignIn はメールアドレスとパスワードで認証し、セッションCookieを設定する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	clientID := ensureClientID(w, r, h.config)
	_, notifier := h.registry.Get(clientID)

	user, session, err := h.service.SignIn(r.Context(), notifier, req.Email, req.Password)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordAuthEvent("signin")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	})
}

// SignOut はセッションを破棄し、セッションCookieをクリアする。
// POST /auth/signout
//
// フローコントローラーをサインアウト進行中に設定してからセッションを破棄する。
// サービスが配信するauth-change(nil)でコントローラーはサインアウトスプラッシュへ進む。
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	clientID := ensureClientID(w, r, h.config)
	controller, notifier := h.registry.Get(clientID)

	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		controller.BeginSignout()

		if signOutErr := h.service.SignOut(r.Context(), notifier, cookie.Value); signOutErr != nil {
			slog.Error("failed to sign out", slog.String("error", signOutErr.Error()))
			// サインアウト失敗してもCookieはクリアする
		} else {
			h.metrics.RecordAuthEvent("signout")
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のサインインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	})
}
