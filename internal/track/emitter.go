// Package track は外部コレクターへのトラッキングイベント送信を提供する。
//
// 送信はfire-and-forgetであり、主要な操作の結果に影響を与えない。
// 失敗してもリトライせず、ログとメトリクスに記録するだけである。
package track

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kenta/moviemate/internal/config"
	"github.com/kenta/moviemate/internal/metrics"
	"github.com/kenta/moviemate/internal/model"
	"github.com/kenta/moviemate/internal/security"
)

// defaultEmitTimeout は1回の送信に許容する時間。
// リクエストのライフサイクルから切り離して送信するため、ここで上限を設ける。
const defaultEmitTimeout = 5 * time.Second

// Event は外部コレクターへ送信するトラッキングイベント。
type Event struct {
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
	Timestamp string         `json:"timestamp"`
}

// Emitter はトラッキングイベントを外部コレクターへ送信する。
// エンドポイントが未設定の場合は無効化され、Emitは何もしない。
type Emitter struct {
	endpoint string
	client   *http.Client
	metrics  metrics.MetricsCollector
	now      func() time.Time
	timeout  time.Duration

	// 送信中のゴルーチンを追跡する。グレースフルシャットダウン用。
	wg sync.WaitGroup
}

// NewEmitter はEmitterを生成する。
// HTTPクライアントはSSRF防止機能付きで生成される。
func NewEmitter(cfg *config.Config, guard security.SSRFGuardService, collector metrics.MetricsCollector) *Emitter {
	return &Emitter{
		endpoint: cfg.TrackEndpoint,
		client:   guard.NewSafeClient(cfg.FetchTimeout, cfg.FetchMaxSize),
		metrics:  collector,
		now:      time.Now,
		timeout:  defaultEmitTimeout,
	}
}

// Enabled はエンドポイントが設定されているかを返す。
func (e *Emitter) Enabled() bool {
	return e.endpoint != ""
}

// Emit はトラッキングイベントを送信する。
// user_id、event_type、event_dataはすべて必須で、欠落している場合は
// ネットワークに到達する前にTRACK_INVALIDを返す。
//
// バリデーション通過後の送信は非同期に行われ、結果は呼び出し元に返らない。
// 送信失敗はログとメトリクスに記録され、リトライはしない。
func (e *Emitter) Emit(ctx context.Context, userID, eventType string, eventData map[string]any) error {
	if userID == "" {
		return model.NewTrackInvalidError("user_id")
	}
	if eventType == "" {
		return model.NewTrackInvalidError("event_type")
	}
	if eventData == nil {
		return model.NewTrackInvalidError("event_data")
	}

	if !e.Enabled() {
		return nil
	}

	event := Event{
		UserID:    userID,
		EventType: eventType,
		EventData: eventData,
		Timestamp: e.now().UTC().Format(time.RFC3339),
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.send(event)
	}()

	return nil
}

// send はイベントを1回だけ送信する。呼び出し元のリクエストが完了していても
// 送信を継続できるよう、独立したコンテキストを使う。
func (e *Emitter) send(event Event) {
	timeout := e.timeout
	if timeout == 0 {
		timeout = defaultEmitTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := e.post(ctx, event)
	if err != nil {
		slog.Warn("track emit failed",
			slog.String("event_type", event.EventType),
			slog.String("error", err.Error()),
		)
		if e.metrics != nil {
			e.metrics.RecordTrackEmit(false)
		}
		return
	}

	if e.metrics != nil {
		e.metrics.RecordTrackEmit(true)
	}
}

func (e *Emitter) post(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("イベントの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("コレクターが異常ステータスを返しました: %d", resp.StatusCode)
	}

	return nil
}

// Wait は進行中の送信がすべて完了するまでブロックする。
// サーバーのグレースフルシャットダウン時に呼ぶ。
func (e *Emitter) Wait() {
	e.wg.Wait()
}
