// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// フィードインポート結果のラベル値
const (
	ResultOK           = "ok"
	ResultNotModified  = "not_modified"
	ResultStopped      = "stopped"
	ResultBackoff      = "backoff"
	ResultParseFailure = "parse_failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// インポートジョブとアイキャッチ画像の決定処理から利用する。
type MetricsCollector interface {
	RecordFeedImport(result string)
	RecordHTTPStatus(statusCode int)
	RecordImportLatency(duration time.Duration)
	RecordPostsImported(count int)
	RecordFeaturedImage(outcome string)
	RecordImageFetchFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	feedImport         *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	importLatency      prometheus.Histogram
	postsImported      prometheus.Counter
	featuredImage      *prometheus.CounterVec
	imageFetchFailures prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedImport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_feed_import_total",
			Help: "結果別のフィードインポート数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_http_status_total",
			Help: "フィード取得時のHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		importLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoblog_feed_import_latency_seconds",
			Help:    "フィード1件のインポート所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		postsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoblog_posts_imported_total",
			Help: "作成された投稿の合計数",
		}),
		featuredImage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_featured_image_total",
			Help: "アイキャッチ画像の決定結果別の件数",
		}, []string{"outcome"}),
		imageFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoblog_image_fetch_failures_total",
			Help: "画像の取得・保存に失敗した合計数",
		}),
	}

	reg.MustRegister(
		c.feedImport,
		c.httpStatus,
		c.importLatency,
		c.postsImported,
		c.featuredImage,
		c.imageFetchFailures,
	)

	return c
}

// RecordFeedImport はフィードインポートの結果を記録する。
func (c *Collector) RecordFeedImport(result string) {
	c.feedImport.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordImportLatency はインポートの所要時間を記録する。
func (c *Collector) RecordImportLatency(duration time.Duration) {
	c.importLatency.Observe(duration.Seconds())
}

// RecordPostsImported は作成された投稿数を記録する。
func (c *Collector) RecordPostsImported(count int) {
	c.postsImported.Add(float64(count))
}

// RecordFeaturedImage はアイキャッチ画像の決定結果を記録する。
func (c *Collector) RecordFeaturedImage(outcome string) {
	c.featuredImage.WithLabelValues(outcome).Inc()
}

// RecordImageFetchFailure は画像取得の失敗を記録する。
func (c *Collector) RecordImageFetchFailure() {
	c.imageFetchFailures.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// Acceptヘッダーで要求された場合はOpenMetrics形式で返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SetupMetricsRoute はワーカー用の小さなHTTPハンドラーを返す。
// /metrics と、死活監視用の /healthz のみを提供する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
