// Package flow はクライアントごとの画面フロー状態機械を提供する。
//
// SPAの最上位画面（スプラッシュ/認証/メイン）の遷移を管理する。
// 遷移の入力は認証状態変更イベント（auth-change）とフロー開始アクション
// （サインアップ開始/サインアウト開始）の2系統で、
// サインアップ中の自動サインアウトとユーザー操作によるサインアウトを
// フローフラグで区別する。
package flow

import (
	"sync"
	"time"

	"github.com/kenta/moviemate/internal/model"
)

// Screen は最上位画面の種別を表す。
type Screen string

const (
	// ScreenSplash はスプラッシュ画面（メッセージ付き）。
	ScreenSplash Screen = "SPLASH"
	// ScreenAuth は認証画面（サインイン/サインアップ）。
	ScreenAuth Screen = "AUTH"
	// ScreenMain はメイン画面。
	ScreenMain Screen = "MAIN"
)

// AuthMode は認証画面の表示モードを表す。
type AuthMode string

const (
	// ModeSignIn はサインインフォーム表示。
	ModeSignIn AuthMode = "SIGNIN"
	// ModeSignUp はサインアップフォーム表示。
	ModeSignUp AuthMode = "SIGNUP"
)

// Flag は進行中の認証フローを表す。
type Flag string

const (
	// FlagNormal は通常状態。
	FlagNormal Flag = "NORMAL"
	// FlagSignupInProgress はサインアップ処理の進行中。
	FlagSignupInProgress Flag = "SIGNUP_IN_PROGRESS"
	// FlagSignoutInProgress はサインアウト処理の進行中。
	FlagSignoutInProgress Flag = "SIGNOUT_IN_PROGRESS"
)

// スプラッシュ画面のメッセージ。
const (
	splashLoading        = "Loading your movie experience..."
	splashCreating       = "Creating your account..."
	splashAccountCreated = "Account created successfully! Redirecting to sign in..."
	splashSigningOut     = "Signing out... See you soon!"
)

// ドウェル時間。画面遷移の継続感のための演出であり、
// 機能的な正しさには影響しない。
const (
	// successDwell はサインアップ完了/サインアウト完了スプラッシュの表示時間。
	successDwell = 2500 * time.Millisecond
	// initialDwell は起動直後のスプラッシュの最小表示時間。
	initialDwell = 1500 * time.Millisecond
)

// State はクライアントに返す画面フロー状態のスナップショット。
type State struct {
	Screen        Screen   `json:"screen"`
	AuthMode      AuthMode `json:"auth_mode,omitempty"`
	SplashMessage string   `json:"splash_message,omitempty"`
}

// TimerFactory は遅延実行タイマーを生成する。
// 返される関数を呼ぶとタイマーをキャンセルする。
// テストでは手動発火のタイマーに差し替える。
type TimerFactory func(d time.Duration, fn func()) (cancel func())

// defaultTimerFactory はtime.AfterFuncベースのタイマーを生成する。
func defaultTimerFactory(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Controller はクライアント1つ分の画面フロー状態機械。
// 認証状態変更イベントにのみ反応し、コントローラー自身は失敗しない。
// 認証操作のエラーは認証画面側で処理される。
type Controller struct {
	mu sync.Mutex

	state State
	flag  Flag

	// user は最後に観測した認証状態。
	user *model.User
	// firstResolved は起動後最初のauth-changeを処理済みかどうか。
	firstResolved bool

	startedAt time.Time
	now       func() time.Time
	newTimer  TimerFactory

	// pendingCancel は予約済みの遷移タイマーのキャンセル関数。
	pendingCancel func()

	// unsubscribe はauth-change購読の解除関数。Closeで必ず呼ばれる。
	unsubscribe func()
}

// NewController はControllerを生成する。初期状態はSPLASH（ローディング表示）。
func NewController() *Controller {
	return NewControllerWithClock(time.Now, defaultTimerFactory)
}

// NewControllerWithClock は時刻とタイマーを注入してControllerを生成する。
// テスト用。
func NewControllerWithClock(now func() time.Time, newTimer TimerFactory) *Controller {
	return &Controller{
		state: State{
			Screen:        ScreenSplash,
			SplashMessage: splashLoading,
		},
		flag:      FlagNormal,
		startedAt: now(),
		now:       now,
		newTimer:  newTimer,
	}
}

// State は現在の画面フロー状態のスナップショットを返す。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Flag は現在のフローフラグを返す。
func (c *Controller) Flag() Flag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flag
}

// FirstResolved は起動後最初のauth-changeを処理済みかどうかを返す。
// 未処理のコントローラーには呼び出し側が現在の認証状態を配信する。
func (c *Controller) FirstResolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstResolved
}

// BeginSignup はサインアップフローを開始する。
// フラグをSIGNUP_IN_PROGRESSに設定し、スプラッシュ（作成中表示）へ強制遷移する。
func (c *Controller) BeginSignup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingLocked()
	c.flag = FlagSignupInProgress
	c.state = State{
		Screen:        ScreenSplash,
		SplashMessage: splashCreating,
	}
}

// AbortSignup は失敗したサインアップフローを中断する。
// フラグを通常に戻し、認証画面（サインアップフォーム）へ復帰する。
// エラー表示は認証画面側の責務。
func (c *Controller) AbortSignup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flag != FlagSignupInProgress {
		return
	}
	c.cancelPendingLocked()
	c.flag = FlagNormal
	c.state = State{
		Screen:   ScreenAuth,
		AuthMode: ModeSignUp,
	}
}

// BeginSignout はサインアウトフローを開始する。
// フラグのみを設定し、画面はサインアウト完了のauth-change(nil)で遷移する。
func (c *Controller) BeginSignout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flag = FlagSignoutInProgress
}

// SwitchMode は認証画面のモード（サインイン/サインアップ）を切り替える。
// 認証画面以外では何もしない。
func (c *Controller) SwitchMode(mode AuthMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Screen != ScreenAuth {
		return
	}
	if mode != ModeSignIn && mode != ModeSignUp {
		return
	}
	c.state.AuthMode = mode
}

// OnAuthChange は認証状態変更イベントを処理する。
// 遷移ポリシーは以下の優先順位で評価される:
//  1. サインアップ進行中: 非nilユーザーは「アカウント作成直後」なのでスプラッシュ維持。
//     nilユーザーは作成後サインアウトの完了なので、完了スプラッシュを
//     一定時間表示してからAUTH(SIGNIN)へ遷移する。
//  2. サインアウト進行中かつnilユーザー: サインアウトスプラッシュを
//     一定時間表示してからAUTH(SIGNIN)へ遷移する。
//  3. 通常時: ユーザーを記録し、初回解決なら起動スプラッシュの最小表示時間を
//     満たしてから、以降は即座に、MAIN（認証済み）またはAUTH(SIGNIN)へ遷移する。
func (c *Controller) OnAuthChange(user *model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 1. サインアップ進行中
	if c.flag == FlagSignupInProgress {
		if user != nil {
			// アカウント作成直後。プロバイダーが続けてサインアウトするので
			// スプラッシュのまま待つ。
			c.user = user
			return
		}
		// 作成後サインアウト完了
		c.user = nil
		c.firstResolved = true
		c.cancelPendingLocked()
		c.state = State{
			Screen:        ScreenSplash,
			SplashMessage: splashAccountCreated,
		}
		c.scheduleLocked(successDwell, func() {
			c.flag = FlagNormal
			c.state = State{
				Screen:   ScreenAuth,
				AuthMode: ModeSignIn,
			}
		})
		return
	}

	// 2. サインアウト進行中
	if c.flag == FlagSignoutInProgress && user == nil {
		c.user = nil
		c.firstResolved = true
		c.cancelPendingLocked()
		c.state = State{
			Screen:        ScreenSplash,
			SplashMessage: splashSigningOut,
		}
		c.scheduleLocked(successDwell, func() {
			c.flag = FlagNormal
			c.state = State{
				Screen:   ScreenAuth,
				AuthMode: ModeSignIn,
			}
		})
		return
	}

	// 3. 通常時
	c.user = user
	if !c.firstResolved {
		c.firstResolved = true
		// 起動スプラッシュの最小表示時間の残りを待ってから遷移する
		remaining := initialDwell - c.now().Sub(c.startedAt)
		if remaining > 0 {
			c.cancelPendingLocked()
			c.scheduleLocked(remaining, func() {
				c.revealLocked()
			})
			return
		}
	}
	c.cancelPendingLocked()
	c.revealLocked()
}

// revealLocked は現在の認証状態に応じてMAINまたはAUTH(SIGNIN)へ遷移する。
// 呼び出し側がロックを保持していること。
func (c *Controller) revealLocked() {
	if c.user != nil {
		c.state = State{Screen: ScreenMain}
		return
	}
	c.state = State{
		Screen:   ScreenAuth,
		AuthMode: ModeSignIn,
	}
}

// scheduleLocked は遷移タイマーを予約する。fnはロックを取得した上で実行される。
// 呼び出し側がロックを保持していること。
func (c *Controller) scheduleLocked(d time.Duration, fn func()) {
	c.pendingCancel = c.newTimer(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pendingCancel = nil
		fn()
	})
}

// cancelPendingLocked は予約済みの遷移タイマーをキャンセルする。
// 呼び出し側がロックを保持していること。
func (c *Controller) cancelPendingLocked() {
	if c.pendingCancel != nil {
		c.pendingCancel()
		c.pendingCancel = nil
	}
}

// bindUnsubscribe は購読解除関数を登録する。Registryから呼ばれる。
func (c *Controller) bindUnsubscribe(unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribe = unsubscribe
}

// Close はコントローラーを破棄する。
// auth-change購読を必ず解除し、予約済みタイマーをキャンセルする。
// 複数回呼んでも安全。
func (c *Controller) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.cancelPendingLocked()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
