package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kenta/moviemate/internal/model"
)

// PostgresTrendingRepo はPostgreSQLを使用したトレンドキャッシュリポジトリ。
// 一覧全体を単一行（id=1）のJSONBペイロードとして保持する。
type PostgresTrendingRepo struct {
	db *sql.DB
}

// NewPostgresTrendingRepo はPostgresTrendingRepoを生成する。
func NewPostgresTrendingRepo(db *sql.DB) *PostgresTrendingRepo {
	return &PostgresTrendingRepo{db: db}
}

// Get はキャッシュ済みのトレンド一覧と取得日時を返す。
// キャッシュが存在しない場合はnilとゼロ値を返す。
func (r *PostgresTrendingRepo) Get(ctx context.Context) ([]model.Movie, time.Time, error) {
	var payload []byte
	var fetchedAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM trending_cache WHERE id = 1`,
	).Scan(&payload, &fetchedAt)

	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("トレンドキャッシュの取得に失敗しました: %w", err)
	}

	var movies []model.Movie
	if err := json.Unmarshal(payload, &movies); err != nil {
		return nil, time.Time{}, fmt.Errorf("トレンドキャッシュのデコードに失敗しました: %w", err)
	}

	return movies, fetchedAt, nil
}

// Put はトレンド一覧を取得日時とともに上書き保存する。
// 単一行のUPSERTで常に最新の一覧のみを保持する。
func (r *PostgresTrendingRepo) Put(ctx context.Context, movies []model.Movie, fetchedAt time.Time) error {
	if movies == nil {
		movies = []model.Movie{}
	}
	payload, err := json.Marshal(movies)
	if err != nil {
		return fmt.Errorf("トレンド一覧のエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO trending_cache (id, payload, fetched_at)
		 VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET
		     payload = EXCLUDED.payload,
		     fetched_at = EXCLUDED.fetched_at`,
		payload, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("トレンドキャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TrendingRepository = (*PostgresTrendingRepo)(nil)
