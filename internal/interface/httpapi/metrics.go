package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics はAPIの処理件数とレイテンシを記録する
type metrics struct {
	ingestTotal   *prometheus.CounterVec
	ingestChunks  prometheus.Histogram
	queryTotal    *prometheus.CounterVec
	queryDuration prometheus.Histogram
}

var defaultMetrics *metrics

// newMetrics はメトリクスを登録する
// プロセス内で1度だけデフォルトレジストリに登録し、以降は共有する
func newMetrics() *metrics {
	if defaultMetrics != nil {
		return defaultMetrics
	}

	defaultMetrics = &metrics{
		ingestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docchat_ingest_requests_total",
			Help: "Total number of document ingestion requests by result.",
		}, []string{"status"}),
		ingestChunks: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docchat_ingest_chunks",
			Help:    "Number of chunks stored per successful ingestion.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		queryTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docchat_query_requests_total",
			Help: "Total number of query requests by result.",
		}, []string{"status"}),
		queryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docchat_query_duration_seconds",
			Help:    "End-to-end latency of query requests including streaming.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	return defaultMetrics
}
