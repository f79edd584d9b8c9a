// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 再生成結果のラベル値
const (
	RegenerateSuccess     = "success"
	RegeneratePersistFail = "persist_fail"
	RegenerateError       = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordInsightReport(source string)
	RecordRegenerate(result string)
	RecordPersistFailure()
	RecordInsightLatency(duration time.Duration)
	RecordCardsEmitted(count int)
	RecordCheckIn(kind string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	insightReports *prometheus.CounterVec
	regenerate     *prometheus.CounterVec
	persistFail    prometheus.Counter
	insightLatency prometheus.Histogram
	cardsEmitted   prometheus.Histogram
	checkIns       *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		insightReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodlens_insight_reports_total",
			Help: "カードの出所別のインサイトレポート生成数",
		}, []string{"source"}),
		regenerate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodlens_regenerate_total",
			Help: "結果別のインサイト再生成数",
		}, []string{"result"}),
		persistFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moodlens_persist_fail_total",
			Help: "インサイトの置換保存に失敗した回数",
		}),
		insightLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moodlens_insight_latency_seconds",
			Help:    "インサイトレポート生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cardsEmitted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moodlens_cards_emitted",
			Help:    "1レポートあたりのカード枚数",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodlens_checkins_total",
			Help: "種別ごとのチェックイン記録数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodlens_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.insightReports,
		c.regenerate,
		c.persistFail,
		c.insightLatency,
		c.cardsEmitted,
		c.checkIns,
		c.httpStatus,
	)

	return c
}

// RecordInsightReport はレポート生成をカードの出所別に記録する。
func (c *Collector) RecordInsightReport(source string) {
	c.insightReports.WithLabelValues(source).Inc()
}

// RecordRegenerate は再生成の結果を記録する。
func (c *Collector) RecordRegenerate(result string) {
	c.regenerate.WithLabelValues(result).Inc()
}

// RecordPersistFailure は置換保存の失敗を記録する。
func (c *Collector) RecordPersistFailure() {
	c.persistFail.Inc()
}

// RecordInsightLatency はレポート生成のレイテンシを記録する。
func (c *Collector) RecordInsightLatency(duration time.Duration) {
	c.insightLatency.Observe(duration.Seconds())
}

// RecordCardsEmitted はレポートのカード枚数を記録する。
func (c *Collector) RecordCardsEmitted(count int) {
	c.cardsEmitted.Observe(float64(count))
}

// RecordCheckIn はチェックインの記録を種別ごとに数える。
func (c *Collector) RecordCheckIn(kind string) {
	c.checkIns.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
