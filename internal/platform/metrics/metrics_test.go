package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cureat/cureat/internal/core/embedding"
	"github.com/cureat/cureat/internal/core/recommend"
)

func TestObserveEmbedding(t *testing.T) {
	m := New()
	m.ObserveEmbedding(embedding.OutcomeOK, 20*time.Millisecond)
	m.ObserveEmbedding(embedding.OutcomeOK, 30*time.Millisecond)
	m.ObserveEmbedding(embedding.OutcomeBreakerOpen, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("breaker_open")))
}

func TestObserveRecommendation(t *testing.T) {
	m := New()
	m.ObserveRecommendation(recommend.OutcomeEmbeddingDegraded, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecommendRequests.WithLabelValues("embedding_unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RecommendDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodPost, "/recommendation", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cureat_http_requests_total{method="POST",route="/recommendation",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
