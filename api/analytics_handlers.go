package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// GetAnalyticsHandler returns the aggregated search dashboard.
func (api *API) GetAnalyticsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.analytics.GetDashboardData())
}

// HealthCheckHandler reports the service status with one entry per
// component. Any failing component turns the status to degraded with 503.
func (api *API) HealthCheckHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true
	record := func(name string, err error) {
		if err != nil {
			checks[name] = "unhealthy: " + err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	if api.dataDir != "" {
		_, err := os.Stat(api.dataDir)
		record("storage", err)
	}
	if api.cache != nil {
		record("cache", api.cache.Ping(ctx))
	}
	if api.analytics != nil {
		for sink, err := range api.analytics.Ping(ctx) {
			record("analytics_"+sink, err)
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   "go-search-core",
		"indexes":   len(api.engine.ListIndexes()),
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
