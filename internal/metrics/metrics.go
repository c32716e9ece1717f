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
// パイプライン・ミューテーション・Webhook・アラートの各層から利用する。
type MetricsCollector interface {
	RecordSnapshotLoad(source string)
	RecordPipelineLatency(d time.Duration)
	RecordMutation(op string, success bool)
	RecordRollback(op string)
	RecordWebhookEvent(eventType string, success bool)
	RecordAlertDelivery(frequency string, success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	snapshotLoads   *prometheus.CounterVec
	pipelineLatency prometheus.Histogram
	mutations       *prometheus.CounterVec
	rollbacks       *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	alertDeliveries *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		snapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealsight_snapshot_loads_total",
			Help: "案件スナップショット読み込みの取得元別合計数",
		}, []string{"source"}),
		pipelineLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dealsight_pipeline_latency_seconds",
			Help:    "一覧パイプライン（取得から整形まで）のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealsight_mutations_total",
			Help: "ユーザー操作（保存・非表示・補正・トラッカー）の結果別合計数",
		}, []string{"op", "success"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealsight_mutation_rollbacks_total",
			Help: "永続化失敗によるローカル状態ロールバックの合計数",
		}, []string{"op"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealsight_webhook_events_total",
			Help: "処理したIdP Webhookイベントの種別・結果別合計数",
		}, []string{"event_type", "success"}),
		alertDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealsight_alert_deliveries_total",
			Help: "アラートメール配信の頻度・結果別合計数",
		}, []string{"frequency", "success"}),
	}

	reg.MustRegister(
		c.snapshotLoads,
		c.pipelineLatency,
		c.mutations,
		c.rollbacks,
		c.webhookEvents,
		c.alertDeliveries,
	)

	return c
}

// RecordSnapshotLoad はスナップショット読み込みを取得元（cache / db）付きで記録する。
func (c *Collector) RecordSnapshotLoad(source string) {
	c.snapshotLoads.WithLabelValues(source).Inc()
}

// RecordPipelineLatency は一覧パイプラインのレイテンシを記録する。
func (c *Collector) RecordPipelineLatency(d time.Duration) {
	c.pipelineLatency.Observe(d.Seconds())
}

// RecordMutation はユーザー操作の結果を記録する。
func (c *Collector) RecordMutation(op string, success bool) {
	c.mutations.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

// RecordRollback はロールバック発生を記録する。
func (c *Collector) RecordRollback(op string) {
	c.rollbacks.WithLabelValues(op).Inc()
}

// RecordWebhookEvent はWebhookイベントの処理結果を記録する。
func (c *Collector) RecordWebhookEvent(eventType string, success bool) {
	c.webhookEvents.WithLabelValues(eventType, strconv.FormatBool(success)).Inc()
}

// RecordAlertDelivery はアラートメール配信の結果を記録する。
func (c *Collector) RecordAlertDelivery(frequency string, success bool) {
	c.alertDeliveries.WithLabelValues(frequency, strconv.FormatBool(success)).Inc()
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
