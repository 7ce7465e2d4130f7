// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションの削除と、アイドル状態の画面フローコントローラーの
// 破棄を定期バッチで実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionDeleter は期限切れセッションの削除インターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// FlowEvictor はアイドル状態のフローコントローラーの破棄インターフェース。
type FlowEvictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// CleanupJob は期限切れセッションとアイドルフローコントローラーの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions SessionDeleter
	flows    FlowEvictor
	logger   *slog.Logger

	// FlowMaxIdle はフローコントローラーを破棄するまでのアイドル時間（デフォルト: 1時間）。
	FlowMaxIdle time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionDeleter, flows FlowEvictor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:    sessions,
		flows:       flows,
		logger:      logger,
		FlowMaxIdle: time.Hour,
	}
}

// Run は期限切れセッションを削除し、アイドルフローコントローラーを破棄する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	evictedFlows := 0
	if j.flows != nil {
		evictedFlows = j.flows.EvictIdle(j.FlowMaxIdle)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int("evicted_flows", evictedFlows),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
