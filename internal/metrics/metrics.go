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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordEventJoined()
	RecordJoinRejected(reason string)
	RecordEventCreated()
	RecordEventsSynced(count int)
	RecordEventsPurged(count int)
	RecordAuthAttempt(provider string, result string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	eventsJoined   prometheus.Counter
	joinRejected   *prometheus.CounterVec
	eventsCreated  prometheus.Counter
	eventsSynced   prometheus.Counter
	eventsPurged   prometheus.Counter
	authAttempts   *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sporthub_events_joined_total",
			Help: "イベント参加の合計数",
		}),
		joinRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthub_join_rejected_total",
			Help: "理由別のイベント参加拒否数",
		}, []string{"reason"}),
		eventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sporthub_events_created_total",
			Help: "作成されたイベントの合計数",
		}),
		eventsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sporthub_events_synced_total",
			Help: "バックエンドから同期されたイベントの合計数",
		}),
		eventsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sporthub_events_purged_total",
			Help: "保持期間を過ぎて削除されたイベントの合計数",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthub_auth_attempts_total",
			Help: "プロバイダー・結果別の認証試行数",
		}, []string{"provider", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sporthub_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.eventsJoined,
		c.joinRejected,
		c.eventsCreated,
		c.eventsSynced,
		c.eventsPurged,
		c.authAttempts,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordEventJoined はイベント参加を記録する。
func (c *Collector) RecordEventJoined() {
	c.eventsJoined.Inc()
}

// RecordJoinRejected はイベント参加の拒否を記録する。
func (c *Collector) RecordJoinRejected(reason string) {
	c.joinRejected.WithLabelValues(reason).Inc()
}

// RecordEventCreated はイベント作成を記録する。
func (c *Collector) RecordEventCreated() {
	c.eventsCreated.Inc()
}

// RecordEventsSynced は同期されたイベント数を記録する。
func (c *Collector) RecordEventsSynced(count int) {
	c.eventsSynced.Add(float64(count))
}

// RecordEventsPurged は削除されたイベント数を記録する。
func (c *Collector) RecordEventsPurged(count int) {
	c.eventsPurged.Add(float64(count))
}

// RecordAuthAttempt は認証試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(provider string, result string) {
	c.authAttempts.WithLabelValues(provider, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
