package handler

import (
	"context"
	"net/http"

	"github.com/kenta/moviemate/internal/middleware"
	"github.com/kenta/moviemate/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	registry FlowRegistry
	config   AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, registry FlowRegistry, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service:  service,
		registry: registry,
		config:   config,
	}
}

// Withdraw は退会処理を実行する。
// DELETE /api/users/me
//
// ユーザー・セッション・プロフィールドキュメントを削除し、
// セッションCookieのクリアとフローコントローラーの破棄を行う。
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	// フローコントローラーを破棄する。次回アクセス時に未認証状態で再生成される。
	if clientCookie, err := r.Cookie(clientCookieName); err == nil && clientCookie.Value != "" {
		h.registry.Evict(clientCookie.Value)
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
