package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
)

var jobStatuses = map[model.JobStatus]bool{
	model.JobStatusPending:   true,
	model.JobStatusRunning:   true,
	model.JobStatusCompleted: true,
	model.JobStatusFailed:    true,
	model.JobStatusCancelled: true,
}

func (api *API) jobManager(c *gin.Context) (services.JobManager, bool) {
	jobManager, ok := api.engine.(services.JobManager)
	if !ok {
		SendError(c, internalErrors.KindNotFound, ErrorCodeJobNotFound, "Job management not supported by this engine")
	}
	return jobManager, ok
}

// GetJobHandler handles requests to get job status by ID
func (api *API) GetJobHandler(c *gin.Context) {
	jobManager, ok := api.jobManager(c)
	if !ok {
		return
	}
	job, err := jobManager.GetJob(c.Param("jobId"))
	if err != nil {
		SendEngineError(c, "get job", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobsHandler handles requests to list jobs for an index
func (api *API) ListJobsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	if _, err := api.engine.GetIndexSettings(indexName); err != nil {
		SendEngineError(c, "list jobs", err)
		return
	}

	var statusFilter *model.JobStatus
	if statusParam := c.Query("status"); statusParam != "" {
		status := model.JobStatus(statusParam)
		if !jobStatuses[status] {
			result := &ValidationResult{}
			result.AddError("status", "Unknown job status '"+statusParam+"'")
			SendValidationError(c, result)
			return
		}
		statusFilter = &status
	}

	jobManager, ok := api.jobManager(c)
	if !ok {
		return
	}
	jobs := jobManager.ListJobs(indexName, statusFilter)
	c.JSON(http.StatusOK, gin.H{
		"jobs":       jobs,
		"index_name": indexName,
		"total":      len(jobs),
	})
}

// GetJobMetricsHandler handles requests to get job performance metrics
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	provider, ok := api.engine.(jobMetricsProvider)
	if !ok {
		SendError(c, internalErrors.KindNotFound, ErrorCodeJobNotFound, "Job metrics not supported by this engine")
		return
	}
	metrics := provider.GetJobMetrics()
	c.JSON(http.StatusOK, gin.H{
		"metrics":          metrics,
		"success_rate":     metrics.SuccessRate,
		"current_workload": metrics.CurrentWorkload,
	})
}
