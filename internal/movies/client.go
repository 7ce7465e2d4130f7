// Package movies はトレンド映画の取得・キャッシュ・検索を提供する。
package movies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kenta/moviemate/internal/metrics"
	"github.com/kenta/moviemate/internal/model"
	"github.com/kenta/moviemate/internal/security"
)

// TrendingFetcher はトレンド一覧取得のインターフェース。
type TrendingFetcher interface {
	FetchTrending(ctx context.Context) ([]model.Movie, error)
}

// trendingResponse は外部コラボレーターのレスポンス形式。
type trendingResponse struct {
	Results []model.Movie `json:"results"`
}

// Client は外部コラボレーターからトレンド映画一覧を取得する。
// SSRF検証付きのHTTPクライアントを使用し、取得したメタデータは
// 保存前にサニタイズされる。
type Client struct {
	endpoint    string
	ssrfGuard   security.SSRFGuardService
	sanitizer   security.TextSanitizerService
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	endpoint string,
	ssrfGuard security.SSRFGuardService,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Client {
	return &Client{
		endpoint:    endpoint,
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		collector:   collector,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchTrending はトレンド映画一覧を取得する。
// 取得できない場合はFETCH_FAILEDを返す。部分的な結果は返さない。
func (c *Client) FetchTrending(ctx context.Context) ([]model.Movie, error) {
	start := time.Now()

	// SSRF検証
	if err := c.ssrfGuard.ValidateURL(c.endpoint); err != nil {
		c.logger.Error("SSRF検証に失敗しました",
			slog.String("endpoint", c.endpoint),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchFailedError("endpoint validation")
	}

	client := c.ssrfGuard.NewSafeClient(c.timeout, c.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "MovieMate/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Error("HTTPリクエストに失敗しました",
			slog.String("endpoint", c.endpoint),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchFailedError("request")
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	if c.collector != nil {
		c.collector.RecordFetchLatency(duration)
		c.collector.RecordHTTPStatus(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("トレンド取得が異常ステータスで終了しました",
			slog.String("endpoint", c.endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewFetchFailedError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError("read body")
	}

	var parsed trendingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Error("トレンドレスポンスのパースに失敗しました",
			slog.String("endpoint", c.endpoint),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchFailedError("parse")
	}

	movies := c.sanitizeMovies(parsed.Results)

	c.logger.Info("トレンド映画を取得しました",
		slog.String("endpoint", c.endpoint),
		slog.Int("count", len(movies)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return movies, nil
}

// sanitizeMovies は表示対象のテキストフィールドをサニタイズする。
// 外部コラボレーターのデータは信用せず、保存前に必ず通す。
func (c *Client) sanitizeMovies(movies []model.Movie) []model.Movie {
	cleaned := make([]model.Movie, 0, len(movies))
	for _, m := range movies {
		m.Title = c.sanitizer.Sanitize(m.Title)
		m.OriginalTitle = c.sanitizer.Sanitize(m.OriginalTitle)
		m.Overview = c.sanitizer.Sanitize(m.Overview)
		cleaned = append(cleaned, m)
	}
	return cleaned
}
