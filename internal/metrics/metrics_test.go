package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-core/model"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// Two instances must not collide on registration
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestObserveSearch(t *testing.T) {
	m := New()
	m.ObserveSearch("movies", 5*time.Millisecond, 3, false, nil)
	m.ObserveSearch("movies", time.Millisecond, 0, true, nil)
	m.ObserveSearch("movies", time.Millisecond, 0, false, errors.New("timeout"))

	body := scrape(t, m)
	assert.Contains(t, body, `search_queries_total{index="movies",result_type="hit"} 1`)
	assert.Contains(t, body, `search_queries_total{index="movies",result_type="zero_result"} 1`)
	assert.Contains(t, body, `search_queries_total{index="movies",result_type="error"} 1`)
	assert.Contains(t, body, "cache_hits_total 1")
	assert.Contains(t, body, "cache_misses_total 2")
	assert.Contains(t, body, "search_results_count_count 2")
}

func TestObserveBatchAndJob(t *testing.T) {
	m := New()
	m.ObserveBatch("movies", 8, 2)
	m.ObserveBatch("movies", 1, 0)
	m.ObserveJob(model.JobTypeAddDocuments, model.JobStatusCompleted, 2*time.Second)
	m.RegisterAnalyticsDropped(func() int64 { return 4 })

	body := scrape(t, m)
	assert.Contains(t, body, `docs_indexed_total{index="movies"} 9`)
	assert.Contains(t, body, `docs_failed_total{index="movies"} 2`)
	assert.Contains(t, body, `jobs_total{status="completed",type="add_documents"} 1`)
	assert.Contains(t, body, `job_duration_seconds_count{type="add_documents"} 1`)
	assert.Contains(t, body, "analytics_events_dropped_total 4")
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/indexes/:name", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	for _, path := range []string{"/indexes/a", "/indexes/b", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/indexes/:name",status="404"} 2`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.Contains(t, body, "http_requests_in_flight 0")
}
