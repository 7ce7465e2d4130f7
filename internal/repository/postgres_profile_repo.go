package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kenta/moviemate/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
// favorites/watchlist/ratingsをJSONBカラムとして保持し、
// 集合操作は単一UPDATE文で完結させる。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}
	var favorites, watchlist, ratings []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, created_at, favorites, watchlist, ratings
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.Name, &profile.Email, &profile.CreatedAt,
		&favorites, &watchlist, &ratings)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(favorites, &profile.Favorites); err != nil {
		return nil, fmt.Errorf("favoritesのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(watchlist, &profile.Watchlist); err != nil {
		return nil, fmt.Errorf("watchlistのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(ratings, &profile.Ratings); err != nil {
		return nil, fmt.Errorf("ratingsのデコードに失敗しました: %w", err)
	}

	return profile, nil
}

// AddFavorite はお気に入りに映画参照を追加する。
// 同じidの要素が既に存在する場合は配列を変更しない（冪等）。
// 存在判定と追加を単一UPDATE文で行い、並行追加でも要素が重複しない。
func (r *PostgresProfileRepo) AddFavorite(ctx context.Context, userID string, ref model.MovieRef) error {
	return r.addRef(ctx, "favorites", userID, ref)
}

// RemoveFavorite はお気に入りから指定idの映画参照を削除する。
func (r *PostgresProfileRepo) RemoveFavorite(ctx context.Context, userID string, movieID int) error {
	return r.removeRef(ctx, "favorites", userID, movieID)
}

// AddToWatchlist はウォッチリストに映画参照を追加する。
func (r *PostgresProfileRepo) AddToWatchlist(ctx context.Context, userID string, ref model.MovieRef) error {
	return r.addRef(ctx, "watchlist", userID, ref)
}

// RemoveFromWatchlist はウォッチリストから指定idの映画参照を削除する。
func (r *PostgresProfileRepo) RemoveFromWatchlist(ctx context.Context, userID string, movieID int) error {
	return r.removeRef(ctx, "watchlist", userID, movieID)
}

// addRef は指定JSONB配列カラムへ映画参照を冪等に追加する。
// columnは"favorites"または"watchlist"のみを想定する（SQLに直接埋め込むため）。
func (r *PostgresProfileRepo) addRef(ctx context.Context, column, userID string, ref model.MovieRef) error {
	payload, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("映画参照のエンコードに失敗しました: %w", err)
	}

	query := fmt.Sprintf(
		`UPDATE profiles
		 SET %s = CASE
		     WHEN EXISTS (
		         SELECT 1 FROM jsonb_array_elements(%s) e WHERE (e->>'id')::int = $2
		     ) THEN %s
		     ELSE %s || jsonb_build_array($3::jsonb)
		 END
		 WHERE user_id = $1`,
		column, column, column, column,
	)

	result, err := r.db.ExecContext(ctx, query, userID, ref.ID, payload)
	if err != nil {
		return fmt.Errorf("%sへの追加に失敗しました: %w", column, err)
	}
	return requireProfileRow(result, userID)
}

// removeRef は指定JSONB配列カラムから映画参照を冪等に削除する。
func (r *PostgresProfileRepo) removeRef(ctx context.Context, column, userID string, movieID int) error {
	query := fmt.Sprintf(
		`UPDATE profiles
		 SET %s = COALESCE(
		     (SELECT jsonb_agg(e) FROM jsonb_array_elements(%s) e WHERE (e->>'id')::int <> $2),
		     '[]'::jsonb
		 )
		 WHERE user_id = $1`,
		column, column,
	)

	result, err := r.db.ExecContext(ctx, query, userID, movieID)
	if err != nil {
		return fmt.Errorf("%sからの削除に失敗しました: %w", column, err)
	}
	return requireProfileRow(result, userID)
}

// UpdateRatings は評価マップ全体を上書き保存する。
// 読み取りと書き込みの間に他の更新が入った場合は後勝ちになる。
func (r *PostgresProfileRepo) UpdateRatings(ctx context.Context, userID string, ratings map[int]int) error {
	if ratings == nil {
		ratings = map[int]int{}
	}
	payload, err := json.Marshal(ratings)
	if err != nil {
		return fmt.Errorf("ratingsのエンコードに失敗しました: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET ratings = $2 WHERE user_id = $1`,
		userID, payload,
	)
	if err != nil {
		return fmt.Errorf("ratingsの更新に失敗しました: %w", err)
	}
	return requireProfileRow(result, userID)
}

// DeleteByUserID は指定ユーザーのプロフィールを削除する。
func (r *PostgresProfileRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}
	return nil
}

// requireProfileRow はUPDATEが1行に適用されたことを確認する。
// 0行の場合はプロフィール行が存在しない。
func requireProfileRow(result sql.Result, userID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", userID)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
