// Package api exposes the search engine over HTTP with gin.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-core/internal/analytics"
	"github.com/gcbaptista/go-search-core/internal/cache"
	"github.com/gcbaptista/go-search-core/internal/jobs"
	"github.com/gcbaptista/go-search-core/internal/metrics"
	"github.com/gcbaptista/go-search-core/services"
)

// Options carries the optional collaborators of the API. Nil fields disable
// the matching endpoints or health checks.
type Options struct {
	Analytics *analytics.Service
	Metrics   *metrics.Metrics
	Cache     *cache.QueryCache
	// DataDir is checked by /health when set.
	DataDir      string
	MaxBodyBytes int64
}

// jobMetricsProvider is implemented by engines that run background jobs.
type jobMetricsProvider interface {
	GetJobMetrics() jobs.JobMetricsData
}

// API holds dependencies for API handlers, primarily the search engine manager.
type API struct {
	engine    services.IndexManager
	analytics *analytics.Service
	metrics   *metrics.Metrics
	cache     *cache.QueryCache
	dataDir   string
}

// NewAPI creates a new API handler structure.
func NewAPI(engine services.IndexManager, opts Options) *API {
	return &API{
		engine:    engine,
		analytics: opts.Analytics,
		metrics:   opts.Metrics,
		cache:     opts.Cache,
		dataDir:   opts.DataDir,
	}
}

// NewRouter builds a gin engine with the middleware chain and every route.
func NewRouter(engine services.IndexManager, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(), CORSMiddleware())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.GinMiddleware())
	}
	router.Use(RequestSizeLimitMiddleware(opts.MaxBodyBytes))
	SetupRoutes(router, NewAPI(engine, opts))
	return router
}

// SetupRoutes defines all the API routes for the search engine.
func SetupRoutes(router *gin.Engine, apiHandler *API) {
	router.GET("/health", apiHandler.HealthCheckHandler)
	if apiHandler.metrics != nil {
		router.GET("/metrics", gin.WrapH(apiHandler.metrics.Handler()))
	}
	if apiHandler.analytics != nil {
		router.GET("/analytics", apiHandler.GetAnalyticsHandler)
	}

	// Job management routes
	jobRoutes := router.Group("/jobs")
	{
		jobRoutes.GET("/metrics", apiHandler.GetJobMetricsHandler) // Get job performance metrics
		jobRoutes.GET("/:jobId", apiHandler.GetJobHandler)         // Get job status by ID
	}

	// Index management routes
	indexRoutes := router.Group("/indexes")
	{
		indexRoutes.POST("", apiHandler.CreateIndexHandler)                              // Create a new index
		indexRoutes.GET("", apiHandler.ListIndexesHandler)                               // List all indexes
		indexRoutes.GET("/:indexName", apiHandler.GetIndexHandler)                       // Get index settings
		indexRoutes.DELETE("/:indexName", apiHandler.DeleteIndexHandler)                 // Delete an index
		indexRoutes.PATCH("/:indexName/settings", apiHandler.UpdateIndexSettingsHandler) // Update mutable settings
		indexRoutes.GET("/:indexName/stats", apiHandler.GetIndexStatsHandler)            // Get index statistics
		indexRoutes.GET("/:indexName/jobs", apiHandler.ListJobsHandler)                  // List jobs for an index

		// Document management routes per index
		docRoutes := indexRoutes.Group("/:indexName/documents")
		{
			docRoutes.PUT("", apiHandler.AddDocumentsHandler)                  // Add/Update documents
			docRoutes.GET("", apiHandler.GetDocumentsHandler)                  // List documents with pagination
			docRoutes.DELETE("", apiHandler.DeleteAllDocumentsHandler)         // Delete all documents
			docRoutes.GET("/:documentId", apiHandler.GetDocumentHandler)       // Get specific document
			docRoutes.DELETE("/:documentId", apiHandler.DeleteDocumentHandler) // Delete specific document
		}

		// Search route per index
		indexRoutes.POST("/:indexName/_search", apiHandler.SearchHandler)
	}
}
