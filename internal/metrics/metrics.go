// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、ワーカー、サービス層から利用する。
type MetricsCollector interface {
	RecordAuthEvent(kind string)
	RecordToggle(kind string)
	RecordTrackEmit(success bool)
	RecordTrendingRefresh(success bool)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents      *prometheus.CounterVec
	toggleOps       *prometheus.CounterVec
	trackEmit       *prometheus.CounterVec
	trendingRefresh *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviemate_auth_events_total",
			Help: "認証イベント（signup/signin/signout）の合計数",
		}, []string{"kind"}),
		toggleOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviemate_toggle_operations_total",
			Help: "トグル操作（favorite/watchlist/rating）の合計数",
		}, []string{"kind"}),
		trackEmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviemate_track_emit_total",
			Help: "トラッキングイベント送信の結果別合計数",
		}, []string{"result"}),
		trendingRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviemate_trending_refresh_total",
			Help: "トレンドキャッシュ更新の結果別合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviemate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moviemate_fetch_latency_seconds",
			Help:    "外部コラボレーターへのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authEvents,
		c.toggleOps,
		c.trackEmit,
		c.trendingRefresh,
		c.httpStatus,
		c.fetchLatency,
	)

	return c
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(kind string) {
	c.authEvents.WithLabelValues(kind).Inc()
}

// RecordToggle はトグル操作を記録する。
func (c *Collector) RecordToggle(kind string) {
	c.toggleOps.WithLabelValues(kind).Inc()
}

// RecordTrackEmit はトラッキングイベント送信の結果を記録する。
func (c *Collector) RecordTrackEmit(success bool) {
	c.trackEmit.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTrendingRefresh はトレンドキャッシュ更新の結果を記録する。
func (c *Collector) RecordTrendingRefresh(success bool) {
	c.trendingRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は外部リクエストのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
