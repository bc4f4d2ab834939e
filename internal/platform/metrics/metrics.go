// Package metrics は Prometheus メトリクスを定義する
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cureat/cureat/internal/core/embedding"
	"github.com/cureat/cureat/internal/core/recommend"
)

// Metrics は独自レジストリに登録したメトリクス一式
type Metrics struct {
	registry *prometheus.Registry

	EmbeddingRequests *prometheus.CounterVec
	EmbeddingDuration *prometheus.HistogramVec

	RecommendRequests *prometheus.CounterVec
	RecommendDuration prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New は新しいレジストリにメトリクスを登録する
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EmbeddingRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cureat_embedding_requests_total",
				Help: "Total number of embedding requests by outcome",
			},
			[]string{"outcome"},
		),
		EmbeddingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cureat_embedding_duration_seconds",
				Help:    "Duration of embedding requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		RecommendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cureat_recommendations_total",
				Help: "Total number of recommendation requests by outcome",
			},
			[]string{"outcome"},
		),
		RecommendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cureat_recommendation_duration_seconds",
				Help:    "Duration of recommendation requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cureat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cureat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveEmbedding は embedding.Recorder を実装する
func (m *Metrics) ObserveEmbedding(outcome embedding.Outcome, latency time.Duration) {
	m.EmbeddingRequests.WithLabelValues(string(outcome)).Inc()
	m.EmbeddingDuration.WithLabelValues(string(outcome)).Observe(latency.Seconds())
}

// ObserveRecommendation は recommend.Recorder を実装する
func (m *Metrics) ObserveRecommendation(outcome recommend.Outcome, latency time.Duration) {
	m.RecommendRequests.WithLabelValues(string(outcome)).Inc()
	m.RecommendDuration.Observe(latency.Seconds())
}

// ObserveHTTPRequest はHTTPリクエストを記録する。route はパターン（/users/{id} など）。
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}

// Handler は /metrics 用のハンドラを返す
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var (
	_ embedding.Recorder = (*Metrics)(nil)
	_ recommend.Recorder = (*Metrics)(nil)
)
