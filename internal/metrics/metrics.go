// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/newsroom/internal/model"
)

// Recorder はメトリクス記録のインターフェース。
// 取り込み・画像補完・フィード探索の各処理から利用する。
type Recorder interface {
	RecordFetchSuccess(source string)
	RecordFetchFailure(source string, kind model.ErrorKind)
	RecordFetchLatency(duration time.Duration)
	RecordArticles(inserted, skipped, failed int)
	RecordBackfill(result model.BackfillResult)
	RecordDiscovery(verified, created int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess     prometheus.Counter
	fetchFail        *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	articles         *prometheus.CounterVec
	backfillChecked  prometheus.Counter
	backfillFilled   prometheus.Counter
	discoveryRuns    prometheus.Counter
	discoveryFeeds   prometheus.Counter
	discoveryCreated prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsroom_ingest_source_success_total",
			Help: "取り込みに成功したソースの合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsroom_ingest_source_fail_total",
			Help: "取り込みに失敗したソースの合計数（失敗種別ごと）",
		}, []string{"kind"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsroom_ingest_source_latency_seconds",
			Help:    "ソース1件あたりの取り込み時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsroom_articles_total",
			Help: "記事の処理結果ごとの件数",
		}, []string{"result"}),
		backfillChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsroom_backfill_checked_total",
			Help: "画像補完の対象になった記事の合計数",
		}),
		backfillFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsroom_backfill_filled_total",
			Help: "画像補完で画像が設定された記事の合計数",
		}),
		discoveryRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsroom_discovery_runs_total",
			Help: "フィード探索の実行回数",
		}),
		discoveryFeeds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsroom_discovery_feeds_total",
			Help: "フィード探索で検証に通った候補の合計数",
		}),
		discoveryCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsroom_discovery_sources_created_total",
			Help: "フィード探索で登録されたソースの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsroom_http_responses_total",
			Help: "APIレスポンスのステータスコード別件数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.articles,
		c.backfillChecked,
		c.backfillFilled,
		c.discoveryRuns,
		c.discoveryFeeds,
		c.discoveryCreated,
		c.httpStatus,
	)

	return c
}

// RecordFetchSuccess はソースの取り込み成功を記録する。
func (c *Collector) RecordFetchSuccess(_ string) {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はソースの取り込み失敗を失敗種別ごとに記録する。
func (c *Collector) RecordFetchFailure(_ string, kind model.ErrorKind) {
	c.fetchFail.WithLabelValues(kind.String()).Inc()
}

// RecordFetchLatency はソース1件分の取り込み時間を記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordArticles は記事の登録・スキップ・失敗件数を記録する。
func (c *Collector) RecordArticles(inserted, skipped, failed int) {
	c.articles.WithLabelValues("inserted").Add(float64(inserted))
	c.articles.WithLabelValues("skipped").Add(float64(skipped))
	c.articles.WithLabelValues("failed").Add(float64(failed))
}

// RecordBackfill は画像補完1回分の結果を記録する。
func (c *Collector) RecordBackfill(result model.BackfillResult) {
	c.backfillChecked.Add(float64(result.Checked))
	c.backfillFilled.Add(float64(result.Filled))
}

// RecordDiscovery はフィード探索1回分の結果を記録する。
func (c *Collector) RecordDiscovery(verified, created int) {
	c.discoveryRuns.Inc()
	c.discoveryFeeds.Add(float64(verified))
	c.discoveryCreated.Add(float64(created))
}

// RecordHTTPStatus はAPIレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。CLIの単発実行やテストで使う。
type Nop struct{}

func (Nop) RecordFetchSuccess(string)                  {}
func (Nop) RecordFetchFailure(string, model.ErrorKind) {}
func (Nop) RecordFetchLatency(time.Duration)           {}
func (Nop) RecordArticles(int, int, int)               {}
func (Nop) RecordBackfill(model.BackfillResult)        {}
func (Nop) RecordDiscovery(int, int)                   {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
