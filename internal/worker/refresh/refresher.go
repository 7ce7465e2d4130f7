// Package refresh はトレンド映画キャッシュのバックグラウンド定期更新を提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// TrendingRefresher はトレンドキャッシュの強制再取得インターフェース。
// movies.Serviceが実装する。
type TrendingRefresher interface {
	Refresh(ctx context.Context) error
}

const (
	// initialBackoff は連続失敗時の初回バックオフ遅延（1分）。
	initialBackoff = time.Minute
	// maxBackoff はバックオフの最大遅延（30分）。
	maxBackoff = 30 * time.Minute
)

// Refresher はトレンドキャッシュを定期的に再取得するワーカー。
// 外部コラボレーターの障害時は指数バックオフで更新間隔を広げ、
// リクエスト経路はその間、期限切れキャッシュで応答を継続する。
type Refresher struct {
	service TrendingRefresher
	logger  *slog.Logger
	now     func() time.Time

	consecutiveErrors int
	nextAllowedRun    time.Time
}

// NewRefresher はRefresherの新しいインスタンスを生成する。
func NewRefresher(service TrendingRefresher, logger *slog.Logger) *Refresher {
	return &Refresher{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// Start は指定間隔のティッカーでリフレッシャーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("トレンド更新ワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("トレンド更新ワーカーを停止しました")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce はトレンドキャッシュの再取得を1回実行する。
// バックオフ期間中はスキップし、連続失敗回数に応じて次回実行を遅らせる。
func (r *Refresher) RunOnce(ctx context.Context) {
	if r.now().Before(r.nextAllowedRun) {
		r.logger.Info("バックオフ期間中のため更新をスキップします",
			slog.Time("next_allowed_run", r.nextAllowedRun),
			slog.Int("consecutive_errors", r.consecutiveErrors),
		)
		return
	}

	start := r.now()

	if err := r.service.Refresh(ctx); err != nil {
		r.consecutiveErrors++
		delay := CalculateBackoff(r.consecutiveErrors - 1)
		r.nextAllowedRun = r.now().Add(delay)
		r.logger.Error("トレンドキャッシュの更新に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", r.consecutiveErrors),
			slog.Duration("backoff", delay),
		)
		return
	}

	r.consecutiveErrors = 0
	r.nextAllowedRun = time.Time{}

	duration := r.now().Sub(start)
	r.logger.Info("トレンドキャッシュを更新しました",
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大30分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
