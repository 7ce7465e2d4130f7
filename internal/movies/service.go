package movies

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kenta/moviemate/internal/metrics"
	"github.com/kenta/moviemate/internal/model"
	"github.com/kenta/moviemate/internal/repository"
)

// Service はトレンド映画の取得とキャッシュを提供する。
//
// 取得はリードスルー方式で、キャッシュがTTL内であればストアの値を返し、
// 期限切れなら外部コラボレーターから再取得してキャッシュを上書きする。
// 再取得に失敗した場合、期限切れのキャッシュが残っていればそれを返す
// （古いデータの方が空のエラー画面より良い）。
type Service struct {
	fetcher   TrendingFetcher
	repo      repository.TrendingRepository
	collector metrics.MetricsCollector
	logger    *slog.Logger
	ttl       time.Duration
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	fetcher TrendingFetcher,
	repo repository.TrendingRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	ttl time.Duration,
) *Service {
	return &Service{
		fetcher:   fetcher,
		repo:      repo,
		collector: collector,
		logger:    logger,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Trending はトレンド映画一覧を返す。
// 1. キャッシュがTTL内であればキャッシュを返す
// 2. 期限切れ・未取得なら外部から再取得してキャッシュを上書きする
// 3. 再取得失敗時は期限切れキャッシュがあればそれを返し、なければFETCH_FAILED
func (s *Service) Trending(ctx context.Context) ([]model.Movie, error) {
	cached, fetchedAt, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("トレンドキャッシュの取得に失敗しました: %w", err)
	}

	if cached != nil && s.now().Sub(fetchedAt) < s.ttl {
		return cached, nil
	}

	movies, fetchErr := s.refresh(ctx)
	if fetchErr != nil {
		if cached != nil {
			s.logger.Warn("再取得に失敗したため期限切れキャッシュを返します",
				slog.Time("fetched_at", fetchedAt),
				slog.String("error", fetchErr.Error()),
			)
			return cached, nil
		}
		return nil, fetchErr
	}

	return movies, nil
}

// Refresh は外部コラボレーターから強制的に再取得してキャッシュを上書きする。
// バックグラウンドの定期更新ワーカーから呼ばれる。
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

func (s *Service) refresh(ctx context.Context) ([]model.Movie, error) {
	movies, err := s.fetcher.FetchTrending(ctx)
	if err != nil {
		if s.collector != nil {
			s.collector.RecordTrendingRefresh(false)
		}
		return nil, err
	}

	if putErr := s.repo.Put(ctx, movies, s.now()); putErr != nil {
		// キャッシュ保存の失敗は取得結果の返却を妨げない
		s.logger.Error("トレンドキャッシュの保存に失敗しました",
			slog.String("error", putErr.Error()),
		)
	}

	if s.collector != nil {
		s.collector.RecordTrendingRefresh(true)
	}
	return movies, nil
}

// Search はトレンド一覧をタイトルの部分一致で絞り込む。
// 大文字小文字は区別しない。クエリが空の場合はVALIDATION_ERRORを返す。
func (s *Service) Search(ctx context.Context, query string) ([]model.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewValidationError("検索キーワードを入力してください")
	}

	movies, err := s.Trending(ctx)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(query)
	matched := make([]model.Movie, 0)
	for _, m := range movies {
		if strings.Contains(strings.ToLower(m.Title), lowered) ||
			strings.Contains(strings.ToLower(m.OriginalTitle), lowered) {
			matched = append(matched, m)
		}
	}

	return matched, nil
}
