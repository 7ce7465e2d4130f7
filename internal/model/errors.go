// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, profile, movie, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeEmailInUse        = "EMAIL_IN_USE"
	ErrCodeWeakPassword      = "WEAK_PASSWORD"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeTooManyAttempts   = "TOO_MANY_ATTEMPTS"
	ErrCodeToggleInFlight    = "TOGGLE_IN_FLIGHT"
	ErrCodeRatingOutOfRange  = "RATING_OUT_OF_RANGE"
	ErrCodeTrackInvalid      = "TRACK_INVALID"
	ErrCodeFetchFailed       = "FETCH_FAILED"
)

// NewUnauthenticatedError は未認証エラーを生成する。
// 状態変更操作にはサインイン済みユーザーが必須。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "サインインが必要な操作です。",
		Category: "auth",
		Action:   "サインインしてから再度お試しください。",
	}
}

// NewProfileNotFoundError はプロフィールドキュメント未検出エラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("プロフィールドキュメントが見つかりません: %s", userID),
		Category: "profile",
		Action:   "サインインし直してください。解決しない場合はサポートへお問い合わせください。",
	}
}

// NewValidationError は入力バリデーションエラーを生成する。
// ネットワークに到達する前にローカルで検出される。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailInUseError はメールアドレス重複エラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、サインインしてください。",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードは6文字以上で設定してください。",
		Category: "validation",
		Action:   "より強いパスワードを設定してください。",
	}
}

// NewInvalidCredentialError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無を漏らさないよう、メッセージは共通化する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "サインインし直してください。",
	}
}

// NewTooManyAttemptsError はサインイン試行超過エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "サインイン試行回数が多すぎます。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewToggleInFlightError はトグル操作の多重実行エラーを生成する。
// 同一（ユーザー・種別・映画）のトグルは直列化され、実行中の二重呼び出しは拒否される。
func NewToggleInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodeToggleInFlight,
		Message:  "この映画の更新処理が実行中です。",
		Category: "profile",
		Action:   "処理完了を待ってから再度お試しください。",
	}
}

// NewRatingOutOfRangeError は評価値の範囲外エラーを生成する。
func NewRatingOutOfRangeError(value int) *APIError {
	return &APIError{
		Code:     ErrCodeRatingOutOfRange,
		Message:  fmt.Sprintf("無効な評価値です: %d", value),
		Category: "validation",
		Action:   fmt.Sprintf("評価は%d〜%dの範囲で指定してください。", RatingMin, RatingMax),
	}
}

// NewTrackInvalidError はトラッキングイベントの必須フィールド欠落エラーを生成する。
func NewTrackInvalidError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeTrackInvalid,
		Message:  fmt.Sprintf("トラッキングイベントの必須フィールドがありません: %s", field),
		Category: "system",
		Action:   "user_id、event_type、event_dataをすべて指定してください。",
	}
}

// NewFetchFailedError は外部エンドポイント取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("映画情報の取得に失敗しました: %s", reason),
		Category: "movie",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
