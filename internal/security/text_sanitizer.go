// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は外部コラボレーターから取得した映画メタデータと
// ユーザー入力の表示名をサニタイズし、XSS攻撃などのセキュリティリスクから
// ユーザーを保護する。bluemondayライブラリの厳格ポリシーを使用し、
// 全てのHTMLタグを除去してプレーンテキストのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
// 映画のタイトル・概要の保存前およびプロフィール表示名の登録時に使用される。
type TextSanitizerService interface {
	// Sanitize はテキストから全てのHTMLタグを除去してプレーンテキストを返す。
	// scriptタグ、on*イベント属性を含む全てのマークアップが除去される。
	// 前後の空白はトリムされる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// 映画の概要や表示名はHTMLを含む必要がないため、
// タグを一切許可しないStrictPolicyを使用する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストから全てのHTMLタグを除去してプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
