package jobs

import (
	"sync"
	"time"

	"github.com/gcbaptista/go-search-core/model"
)

// executionSamples bounds the per-type execution history.
const executionSamples = 100

// JobMetricsData is a point-in-time copy of the job metrics, served by
// GET /jobs/metrics.
type JobMetricsData struct {
	JobsCreated            int64                           `json:"jobs_created"`
	JobsCompleted          int64                           `json:"jobs_completed"`
	JobsFailed             int64                           `json:"jobs_failed"`
	TotalExecutionTime     time.Duration                   `json:"total_execution_time_ns"`
	AverageExecutionTime   time.Duration                   `json:"average_execution_time_ns"`
	AverageExecutionByType map[model.JobType]time.Duration `json:"average_execution_by_type_ns"`
	JobsByType             map[model.JobType]int64         `json:"jobs_by_type"`
	JobsByStatus           map[model.JobStatus]int64       `json:"jobs_by_status"`
	SuccessRate            float64                         `json:"success_rate"`
	CurrentWorkload        int64                           `json:"current_workload"`
	LastUpdated            time.Time                       `json:"last_updated"`
}

// JobMetrics tracks performance metrics for job operations
type JobMetrics struct {
	mu                   sync.RWMutex
	jobsCreated          int64
	jobsCompleted        int64
	jobsFailed           int64
	totalExecutionTime   time.Duration
	jobsByType           map[model.JobType]int64
	jobsByStatus         map[model.JobStatus]int64
	executionTimesByType map[model.JobType][]time.Duration
	lastUpdated          time.Time
}

// NewJobMetrics creates a new metrics collector
func NewJobMetrics() *JobMetrics {
	return &JobMetrics{
		jobsByType:           make(map[model.JobType]int64),
		jobsByStatus:         make(map[model.JobStatus]int64),
		executionTimesByType: make(map[model.JobType][]time.Duration),
		lastUpdated:          time.Now(),
	}
}

// RecordJobCreated increments job creation counter
func (m *JobMetrics) RecordJobCreated(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCreated++
	m.jobsByType[jobType]++
	m.jobsByStatus[model.JobStatusPending]++
	m.lastUpdated = time.Now()
}

// RecordJobStatusChange moves one job between status counters
func (m *JobMetrics) RecordJobStatusChange(oldStatus, newStatus model.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldStatus != "" {
		m.jobsByStatus[oldStatus]--
		if m.jobsByStatus[oldStatus] < 0 {
			m.jobsByStatus[oldStatus] = 0
		}
	}
	m.jobsByStatus[newStatus]++
	m.lastUpdated = time.Now()
}

// RecordJobCompleted records successful job completion
func (m *JobMetrics) RecordJobCompleted(jobType model.JobType, executionTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCompleted++
	m.totalExecutionTime += executionTime

	samples := append(m.executionTimesByType[jobType], executionTime)
	if len(samples) > executionSamples {
		samples = samples[1:]
	}
	m.executionTimesByType[jobType] = samples

	m.lastUpdated = time.Now()
}

// RecordJobFailed records job failure
func (m *JobMetrics) RecordJobFailed(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsFailed++
	m.lastUpdated = time.Now()
}

// GetMetrics returns a copy of current metrics
func (m *JobMetrics) GetMetrics() JobMetricsData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobsByType := make(map[model.JobType]int64, len(m.jobsByType))
	for k, v := range m.jobsByType {
		jobsByType[k] = v
	}
	jobsByStatus := make(map[model.JobStatus]int64, len(m.jobsByStatus))
	for k, v := range m.jobsByStatus {
		jobsByStatus[k] = v
	}
	averageByType := make(map[model.JobType]time.Duration, len(m.executionTimesByType))
	for jobType := range m.executionTimesByType {
		averageByType[jobType] = m.averageExecutionTimeLocked(jobType)
	}

	var average time.Duration
	if m.jobsCompleted > 0 {
		average = m.totalExecutionTime / time.Duration(m.jobsCompleted)
	}

	return JobMetricsData{
		JobsCreated:            m.jobsCreated,
		JobsCompleted:          m.jobsCompleted,
		JobsFailed:             m.jobsFailed,
		TotalExecutionTime:     m.totalExecutionTime,
		AverageExecutionTime:   average,
		AverageExecutionByType: averageByType,
		JobsByType:             jobsByType,
		JobsByStatus:           jobsByStatus,
		SuccessRate:            m.successRateLocked(),
		CurrentWorkload:        m.jobsByStatus[model.JobStatusPending] + m.jobsByStatus[model.JobStatusRunning],
		LastUpdated:            m.lastUpdated,
	}
}

func (m *JobMetrics) averageExecutionTimeLocked(jobType model.JobType) time.Duration {
	times := m.executionTimesByType[jobType]
	if len(times) == 0 {
		return 0
	}

	var total time.Duration
	for _, t := range times {
		total += t
	}
	return total / time.Duration(len(times))
}

func (m *JobMetrics) successRateLocked() float64 {
	finished := m.jobsCompleted + m.jobsFailed
	if finished == 0 {
		return 1.0 // No jobs yet, assume 100% success
	}
	return float64(m.jobsCompleted) / float64(finished)
}
