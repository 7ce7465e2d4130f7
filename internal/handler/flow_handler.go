package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/kenta/moviemate/internal/auth"
	"github.com/kenta/moviemate/internal/flow"
	"github.com/kenta/moviemate/internal/middleware"
	"github.com/kenta/moviemate/internal/model"
)

const (
	// clientCookieName はフローコントローラー識別用Cookieの名前。
	clientCookieName = "client_id"

	// clientCookieMaxAge はクライアントID Cookieの有効期間（30日）。
	clientCookieMaxAge = 30 * 24 * 60 * 60
)

// FlowRegistry はクライアントIDごとの画面フローコントローラーの取得・破棄インターフェース。
type FlowRegistry interface {
	// Get は指定クライアントのコントローラーとNotifierを返す。未登録なら生成する。
	Get(clientID string) (*flow.Controller, *auth.Notifier)
	// Evict は指定クライアントのコントローラーを破棄する。
	Evict(clientID string)
}

// FlowHandler は画面フロー状態のHTTPハンドラー。
// クライアントはクライアントID Cookieで識別され、
// コントローラーはクライアントごとに独立した状態機械として動作する。
type FlowHandler struct {
	registry FlowRegistry
	service  AuthServiceInterface
	config   AuthHandlerConfig
}

// NewFlowHandler はFlowHandlerを生成する。
func NewFlowHandler(registry FlowRegistry, service AuthServiceInterface, config AuthHandlerConfig) *FlowHandler {
	return &FlowHandler{
		registry: registry,
		service:  service,
		config:   config,
	}
}

// switchModeRequest は認証画面モード切り替えリクエストのボディ。
type switchModeRequest struct {
	Mode string `json:"mode"`
}

// GetState は現在の画面フロー状態を返す。
// GET /api/flow
//
// 新規生成されたコントローラーにはセッションCookieから解決した
// 現在の認証状態を初回auth-changeとして配信する。
// 起動スプラッシュの最小表示時間はコントローラー側で保証される。
func (h *FlowHandler) GetState(w http.ResponseWriter, r *http.Request) {
	clientID := ensureClientID(w, r, h.config)
	controller, notifier := h.registry.Get(clientID)

	if !controller.FirstResolved() {
		notifier.Publish(h.currentUser(r))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(controller.State())
}

// SwitchMode は認証画面の表示モード（サインイン/サインアップ）を切り替える。
// POST /api/flow/mode
func (h *FlowHandler) SwitchMode(w http.ResponseWriter, r *http.Request) {
	var req switchModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	mode := flow.AuthMode(req.Mode)
	if mode != flow.ModeSignIn && mode != flow.ModeSignUp {
		middleware.WriteAPIError(w, model.NewValidationError("modeはSIGNINまたはSIGNUPを指定してください"))
		return
	}

	clientID := ensureClientID(w, r, h.config)
	controller, _ := h.registry.Get(clientID)
	controller.SwitchMode(mode)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(controller.State())
}

// currentUser はセッションCookieから現在のユーザーを解決する。
// 未認証・セッション無効の場合はnilを返す。
func (h *FlowHandler) currentUser(r *http.Request) *model.User {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return user
}

// ensureClientID はクライアントID Cookieを読み取り、なければ新規発行する。
// フローコントローラーの識別にのみ使用し、認証情報は含まない。
func ensureClientID(w http.ResponseWriter, r *http.Request, config AuthHandlerConfig) string {
	cookie, err := r.Cookie(clientCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	clientID := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    clientID,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   clientCookieMaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return clientID
}
