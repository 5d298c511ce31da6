// Package testutil provides helpers shared by the engine and API tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/internal/engine"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
)

// CreateTestEngine creates a bolt-backed engine in a temporary directory that
// is closed when the test ends.
func CreateTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.NewEngine(engine.Options{DataDir: t.TempDir()})
	require.NoError(t, err, "Failed to create test engine")
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// TestIndexSettings returns the settings CreateTestIndex uses.
func TestIndexSettings(indexName string) config.IndexSettings {
	return config.IndexSettings{
		Name:             indexName,
		SearchableFields: []string{"title", "content", "description"},
		FilterableFields: []string{"category", "year", "status", "popularity"},
		RankingCriteria: []config.RankingCriterion{
			{Field: "popularity", Order: "desc"},
		},
		MinWordSizeFor1Typo:  4,
		MinWordSizeFor2Typos: 7,
	}
}

// CreateTestIndex creates a test index with default settings
func CreateTestIndex(t *testing.T, eng *engine.Engine, indexName string) config.IndexSettings {
	t.Helper()
	settings := TestIndexSettings(indexName)
	require.NoError(t, eng.CreateIndex(settings), "Failed to create test index")
	return settings
}

// TestDocuments returns three movie documents with uuids doc1, doc2 and doc3.
func TestDocuments() []model.Document {
	return []model.Document{
		{
			"uuid":        "doc1",
			"title":       "The Matrix",
			"content":     "A computer programmer discovers reality is a simulation",
			"description": "Sci-fi action movie about virtual reality",
			"category":    "movie",
			"year":        1999,
			"status":      "published",
			"popularity":  9.5,
		},
		{
			"uuid":        "doc2",
			"title":       "Inception",
			"content":     "A thief enters people's dreams to steal secrets",
			"description": "Mind-bending thriller about dream manipulation",
			"category":    "movie",
			"year":        2010,
			"status":      "published",
			"popularity":  9.2,
		},
		{
			"uuid":        "doc3",
			"title":       "Interstellar",
			"content":     "Astronauts travel through a wormhole to save humanity",
			"description": "Space epic about time dilation and love",
			"category":    "movie",
			"year":        2014,
			"status":      "draft",
			"popularity":  8.8,
		},
	}
}

// AddTestDocuments adds TestDocuments to an index
func AddTestDocuments(t *testing.T, eng *engine.Engine, indexName string) []model.Document {
	t.Helper()
	indexAccessor, err := eng.GetIndex(indexName)
	require.NoError(t, err, "Failed to get index accessor")

	docs := TestDocuments()
	result, err := indexAccessor.AddDocuments(context.Background(), docs)
	require.NoError(t, err, "Failed to add test documents")
	require.Equal(t, len(docs), result.Indexed)
	return docs
}

// WaitForJob polls a job until it reaches a terminal status.
func WaitForJob(t *testing.T, jobManager services.JobManager, jobID string, timeout time.Duration) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = jobManager.GetJob(jobID)
		require.NoError(t, err, "Failed to get job status")
		if job.Status == model.JobStatusRunning && job.Progress != nil {
			t.Logf("Job %s progress: %d/%d - %s", jobID, job.Progress.Current, job.Progress.Total, job.Progress.Message)
		}
		return job.IsTerminal()
	}, timeout, 10*time.Millisecond, "Job %s did not finish within %v", jobID, timeout)
	return job
}

// AssertJobCompleted verifies that a job completed successfully
func AssertJobCompleted(t *testing.T, job *model.Job, expectedType model.JobType, expectedIndex string) {
	t.Helper()
	assert.Equal(t, model.JobStatusCompleted, job.Status, "Job should be completed")
	assert.Equal(t, expectedType, job.Type, "Job type should match")
	assert.Equal(t, expectedIndex, job.IndexName, "Job index name should match")
	assert.NotNil(t, job.CompletedAt, "Job should have completion timestamp")
	assert.Empty(t, job.Error, "Job should not have error")
}

// SearchTestCase represents a test case for search operations
type SearchTestCase struct {
	Name          string
	Query         services.SearchQuery
	ExpectedCount int
	ExpectedFirst string // Expected first result document uuid
	ValidateFunc  func(t *testing.T, results *services.SearchResult)
}

// RunSearchTests runs a suite of search tests against an index
func RunSearchTests(t *testing.T, indexAccessor services.IndexAccessor, tests []SearchTestCase) {
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			results, err := indexAccessor.Search(context.Background(), tt.Query)
			require.NoError(t, err, "Search should not fail")

			assert.Equal(t, tt.ExpectedCount, results.Total, "Result count should match")

			if tt.ExpectedFirst != "" && len(results.Hits) > 0 {
				firstDocID, exists := results.Hits[0].Document.GetID()
				require.True(t, exists, "First result should have a uuid")
				assert.Equal(t, tt.ExpectedFirst, firstDocID, "First result should match expected")
			}

			if tt.ValidateFunc != nil {
				tt.ValidateFunc(t, &results)
			}
		})
	}
}
