package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
)

func waitForJob(t *testing.T, eng *Engine, jobID string) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = eng.GetJob(jobID)
		require.NoError(t, err)
		return job.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestAddDocumentsAsync(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))

	jobID, err := eng.AddDocumentsAsync("movies", movies())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitForJob(t, eng, jobID)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, model.JobTypeAddDocuments, job.Type)
	assert.Equal(t, "movies", job.IndexName)
	assert.Equal(t, "3", job.Metadata["document_count"])
	assert.Equal(t, "3", job.Metadata["indexed"])
	assert.Equal(t, "0", job.Metadata["failed"])
	require.NotNil(t, job.Progress)
	assert.Equal(t, 3, job.Progress.Current)
	assert.Equal(t, 3, job.Progress.Total)
	assert.NotNil(t, job.CompletedAt)

	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	found, err := accessor.Search(context.Background(), services.SearchQuery{QueryString: "memento"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3"}, hitIDs(found))
}

func TestAsyncOperationsRejectBadInputUpFront(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))

	_, err := eng.AddDocumentsAsync("nope", movies())
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)

	_, err = eng.AddDocumentsAsync("movies", []model.Document{{"uuid": "x"}})
	assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)

	_, err = eng.DeleteAllDocumentsAsync("nope")
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)

	_, err = eng.DeleteDocumentAsync("nope", "m1")
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)

	assert.Empty(t, eng.ListJobs("movies", nil), "rejected operations create no job")
}

func TestDeleteAsyncJobs(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	_, err = accessor.AddDocuments(context.Background(), movies())
	require.NoError(t, err)

	jobID, err := eng.DeleteDocumentAsync("movies", "m1")
	require.NoError(t, err)
	job := waitForJob(t, eng, jobID)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, "m1", job.Metadata["document_id"])
	assert.Equal(t, 2, accessor.ListDocuments(1, 10).Total)

	jobID, err = eng.DeleteDocumentAsync("movies", "m1")
	require.NoError(t, err)
	job = waitForJob(t, eng, jobID)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "m1")

	jobID, err = eng.DeleteAllDocumentsAsync("movies")
	require.NoError(t, err)
	job = waitForJob(t, eng, jobID)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, model.JobTypeDeleteAllDocs, job.Type)
	assert.Zero(t, accessor.ListDocuments(1, 10).Total)
}

func TestListJobsForIndex(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	require.NoError(t, eng.CreateIndex(movieSettings("shows")))

	first, err := eng.AddDocumentsAsync("movies", movies())
	require.NoError(t, err)
	second, err := eng.DeleteDocumentAsync("movies", "missing")
	require.NoError(t, err)
	other, err := eng.AddDocumentsAsync("shows", movies())
	require.NoError(t, err)
	for _, id := range []string{first, second, other} {
		waitForJob(t, eng, id)
	}

	assert.Len(t, eng.ListJobs("movies", nil), 2)
	assert.Len(t, eng.ListJobs("shows", nil), 1)

	failed := model.JobStatusFailed
	failedJobs := eng.ListJobs("movies", &failed)
	require.Len(t, failedJobs, 1)
	assert.Equal(t, second, failedJobs[0].ID)

	_, err = eng.GetJob("no-such-job")
	assert.ErrorIs(t, err, internalErrors.ErrJobNotFound)

	// Counters are recorded just after the status flips
	assert.Eventually(t, func() bool {
		metrics := eng.GetJobMetrics()
		return metrics.JobsCreated == 3 && metrics.JobsCompleted == 2 && metrics.JobsFailed == 1
	}, time.Second, 10*time.Millisecond)
}
