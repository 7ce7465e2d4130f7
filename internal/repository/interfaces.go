// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kenta/moviemate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithProfile はユーザーとプロフィールを同一トランザクションで作成する。
	// サインアップ直後からプロフィールドキュメントが必ず存在することを保証する。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error

	// UpdateName は指定ユーザーの表示名を更新する。
	UpdateName(ctx context.Context, id, name string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、profilesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProfileRepository はプロフィールドキュメントの永続化インターフェース。
// お気に入り・ウォッチリストの追加/削除は単一UPDATE文のアトミックな集合操作として
// 実装し、読み取り-判定-書き込みの競合で要素が重複しないことを保証する。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// AddFavorite はお気に入りに映画参照を追加する。
	// 既に同じidの要素が存在する場合は何もしない（冪等）。
	AddFavorite(ctx context.Context, userID string, ref model.MovieRef) error

	// RemoveFavorite はお気に入りから指定idの映画参照を削除する。
	// 存在しない場合は何もしない（冪等）。
	RemoveFavorite(ctx context.Context, userID string, movieID int) error

	// AddToWatchlist はウォッチリストに映画参照を追加する。
	// 既に同じidの要素が存在する場合は何もしない（冪等）。
	AddToWatchlist(ctx context.Context, userID string, ref model.MovieRef) error

	// RemoveFromWatchlist はウォッチリストから指定idの映画参照を削除する。
	// 存在しない場合は何もしない（冪等）。
	RemoveFromWatchlist(ctx context.Context, userID string, movieID int) error

	// UpdateRatings は評価マップ全体を上書き保存する。
	// 呼び出し側が読み取り済みのマップに変更を加えて渡す（last-write-wins）。
	UpdateRatings(ctx context.Context, userID string, ratings map[int]int) error

	// DeleteByUserID は指定ユーザーのプロフィールを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TrendingRepository はトレンド映画キャッシュの永続化インターフェース。
// 外部コラボレーターから取得した一覧を単一行のJSONBとして保持する。
type TrendingRepository interface {
	// Get はキャッシュ済みのトレンド一覧と取得日時を返す。
	// キャッシュが存在しない場合はnilとゼロ値を返す。
	Get(ctx context.Context) ([]model.Movie, time.Time, error)

	// Put はトレンド一覧を取得日時とともに上書き保存する。
	Put(ctx context.Context, movies []model.Movie, fetchedAt time.Time) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
