package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSnapshotLoad_IncrementsCounterWithLabel はスナップショット読み込みカウンタが取得元ラベル付きで増加することを検証する。
func TestRecordSnapshotLoad_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSnapshotLoad("cache")
	c.RecordSnapshotLoad("cache")
	c.RecordSnapshotLoad("db")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dealsight_snapshot_loads_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "cache":
					if val != 2 {
						t.Errorf("snapshot_loads_total{source=cache} = %v, want 2", val)
					}
				case "db":
					if val != 1 {
						t.Errorf("snapshot_loads_total{source=db} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("dealsight_snapshot_loads_total metric not found")
	}
}

// TestRecordPipelineLatency_ObservesHistogram はパイプラインレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordPipelineLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPipelineLatency(100 * time.Millisecond)
	c.RecordPipelineLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dealsight_pipeline_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("dealsight_pipeline_latency_seconds metric not found")
	}
}

// TestRecordMutation_IncrementsCounterWithLabels はミューテーションカウンタが操作・結果ラベル付きで増加することを検証する。
func TestRecordMutation_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMutation("save", true)
	c.RecordMutation("save", true)
	c.RecordMutation("save", false)
	c.RecordMutation("hide", true)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dealsight_mutations_total" {
			found = true
			if len(mf.GetMetric()) != 3 {
				t.Fatalf("expected 3 label combinations, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("dealsight_mutations_total metric not found")
	}
}

// TestRecordRollback_IncrementsCounter はロールバックカウンタが増加することを検証する。
func TestRecordRollback_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRollback("save")
	c.RecordRollback("save")
	c.RecordRollback("hide")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dealsight_mutation_rollbacks_total" {
			found = true
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total != 3 {
				t.Errorf("rollbacks total = %v, want 3", total)
			}
		}
	}
	if !found {
		t.Error("dealsight_mutation_rollbacks_total metric not found")
	}
}

// TestRecordWebhookEvent_IncrementsCounter はWebhookイベントカウンタが増加することを検証する。
func TestRecordWebhookEvent_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWebhookEvent("user.created", true)
	c.RecordWebhookEvent("user.deleted", false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dealsight_webhook_events_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("dealsight_webhook_events_total metric not found")
	}
}

// TestRecordAlertDelivery_IncrementsCounter はアラート配信カウンタが増加することを検証する。
func TestRecordAlertDelivery_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAlertDelivery("daily", true)
	c.RecordAlertDelivery("daily", true)
	c.RecordAlertDelivery("weekly", false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dealsight_alert_deliveries_total" {
			found = true
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total != 3 {
				t.Errorf("alert_deliveries total = %v, want 3", total)
			}
		}
	}
	if !found {
		t.Error("dealsight_alert_deliveries_total metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordSnapshotLoad("db")
	c.RecordPipelineLatency(500 * time.Millisecond)
	c.RecordMutation("save", true)
	c.RecordRollback("hide")
	c.RecordWebhookEvent("user.created", true)
	c.RecordAlertDelivery("daily", true)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"dealsight_snapshot_loads_total",
		"dealsight_pipeline_latency_seconds",
		"dealsight_mutations_total",
		"dealsight_mutation_rollbacks_total",
		"dealsight_webhook_events_total",
		"dealsight_alert_deliveries_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordSnapshotLoad("db")
	c2.RecordSnapshotLoad("db")
	c2.RecordSnapshotLoad("db")

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "dealsight_snapshot_loads_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "dealsight_snapshot_loads_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 snapshot_loads = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 snapshot_loads = %v, want 2", val2)
	}
}
