package indexing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/index"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/internal/storage"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/store"
)

// Helper to create a basic IndexSettings for tests
func newTestSettings() *config.IndexSettings {
	settings := &config.IndexSettings{
		Name:             "test_index",
		SearchableFields: []string{"title", "description", "tags"},
		FilterableFields: []string{"genre", "year"},
	}
	settings.ApplyDefaults()
	return settings
}

// failingStorage refuses to store any document whose JSON contains marker.
type failingStorage struct {
	*storage.Memory
	marker []byte
}

func (f *failingStorage) Set(k, v []byte) error {
	if bytes.Contains(v, f.marker) {
		return errors.New("disk full")
	}
	return f.Memory.Set(k, v)
}

type testEnv struct {
	invIndex *index.InvertedIndex
	docStore *store.DocumentStore
	service  *Service
}

func newTestEnv(t testing.TB, backend storage.Storage) *testEnv {
	t.Helper()
	if backend == nil {
		backend = storage.NewMemory()
	}
	settings := newTestSettings()
	env := &testEnv{invIndex: index.New(8), docStore: store.New(settings.Name, backend)}
	svc, err := NewService(env.invIndex, env.docStore, func() *config.IndexSettings { return settings }, Options{Workers: 4})
	require.NoError(t, err)
	env.service = svc
	return env
}

func (e *testEnv) docIDs(token, field string) []uint32 {
	return e.invIndex.Lookup(token, field).DocIDs()
}

func TestNewService(t *testing.T) {
	settings := func() *config.IndexSettings { return newTestSettings() }
	tests := []struct {
		name     string
		invIndex *index.InvertedIndex
		docStore *store.DocumentStore
		settings func() *config.IndexSettings
		wantErr  bool
	}{
		{"valid", index.New(1), store.New("x", storage.NewMemory()), settings, false},
		{"nil inverted index", nil, store.New("x", storage.NewMemory()), settings, true},
		{"nil document store", index.New(1), nil, settings, true},
		{"nil settings", index.New(1), store.New("x", storage.NewMemory()), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewService(tt.invIndex, tt.docStore, tt.settings, Options{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Positive(t, s.workers)
			assert.NotNil(t, s.tokenizer)
		})
	}
}

func TestAddDocuments(t *testing.T) {
	env := newTestEnv(t, nil)
	docs := []model.Document{
		{"uuid": "matrix", "title": "The Matrix", "description": "A hacker learns about reality.", "tags": []interface{}{"sci-fi", "action"}, "year": 1999},
		{"uuid": "reloaded", "title": "The Matrix Reloaded", "description": "Neo learns more.", "year": 2003},
	}

	result, err := env.service.AddDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 2, env.service.Count())

	matrixID, _, ok := env.docStore.GetByExternalID("matrix")
	require.True(t, ok)
	reloadedID, _, ok := env.docStore.GetByExternalID("reloaded")
	require.True(t, ok)

	assert.ElementsMatch(t, []uint32{matrixID, reloadedID}, env.docIDs("matrix", "title"))
	assert.Equal(t, []uint32{reloadedID}, env.docIDs("reloaded", "title"))
	assert.ElementsMatch(t, []uint32{matrixID, reloadedID}, env.docIDs("learns", "description"))
	assert.Equal(t, []uint32{matrixID}, env.docIDs("sci", "tags"))
	assert.Empty(t, env.docIDs("1999", "year"), "non-searchable fields are not indexed")
}

func TestAddDocumentsAssignsIDs(t *testing.T) {
	env := newTestEnv(t, nil)

	result, err := env.service.AddDocuments(context.Background(), []model.Document{{"title": "No Id"}, {"title": "No Id"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)

	page := env.service.ListDocuments(1, 10)
	require.Len(t, page.Documents, 2)
	first, ok := page.Documents[0].GetID()
	require.True(t, ok)
	second, ok := page.Documents[1].GetID()
	require.True(t, ok)
	assert.NotEqual(t, first, second, "identical content still gets distinct ids")
}

func TestAddDocumentsUpsert(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.service.AddDocuments(ctx, []model.Document{{"uuid": "doc", "title": "Original Title", "tags": []string{"old"}}})
	require.NoError(t, err)
	id, _, _ := env.docStore.GetByExternalID("doc")

	_, err = env.service.AddDocuments(ctx, []model.Document{{"uuid": "doc", "title": "Updated Title"}})
	require.NoError(t, err)

	newID, doc, ok := env.docStore.GetByExternalID("doc")
	require.True(t, ok)
	assert.Equal(t, id, newID, "upsert keeps the internal id")
	assert.Equal(t, "Updated Title", doc["title"])
	assert.Equal(t, 1, env.service.Count())

	assert.Empty(t, env.docIDs("original", "title"))
	assert.Empty(t, env.docIDs("old", "tags"))
	assert.Equal(t, []uint32{id}, env.docIDs("updated", "title"))
	assert.Equal(t, []uint32{id}, env.docIDs("title", "title"))
}

func TestAddDocumentsSameIDInBatchLastWins(t *testing.T) {
	env := newTestEnv(t, nil)
	docs := make([]model.Document, 0, 50)
	for i := 0; i < 50; i++ {
		docs = append(docs, model.Document{"uuid": "same", "title": fmt.Sprintf("version%d", i)})
	}

	result, err := env.service.AddDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Indexed)

	doc, err := env.service.GetDocument("same")
	require.NoError(t, err)
	assert.Equal(t, "version49", doc["title"])
	assert.Len(t, env.docIDs("version49", "title"), 1)
	assert.Empty(t, env.docIDs("version0", "title"))
}

func TestAddDocumentsValidation(t *testing.T) {
	tests := []struct {
		name string
		docs []model.Document
		want string
	}{
		{"missing title", []model.Document{{"uuid": "a", "title": "ok"}, {"uuid": "b"}}, "position 1"},
		{"non-string title", []model.Document{{"title": 42}}, "must be a string"},
		{"blank uuid", []model.Document{{"uuid": "  ", "title": "x"}}, "cannot be empty"},
		{"nil document", []model.Document{nil}, "position 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			result, err := env.service.AddDocuments(context.Background(), tt.docs)
			require.Error(t, err)
			assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, result.Indexed)
			assert.Zero(t, env.service.Count(), "a rejected batch applies nothing")
		})
	}
}

func TestAddDocumentsReportsStorageFailures(t *testing.T) {
	env := newTestEnv(t, &failingStorage{Memory: storage.NewMemory(), marker: []byte("poison")})
	docs := []model.Document{
		{"uuid": "a", "title": "Fine"},
		{"uuid": "b", "title": "poison"},
		{"uuid": "c", "title": "Also Fine"},
	}

	result, err := env.service.AddDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Position)
	assert.Equal(t, "b", result.Failures[0].DocumentID)
	assert.Contains(t, result.Failures[0].Error, "disk full")

	assert.Equal(t, 2, env.service.Count())
	assert.Empty(t, env.docIDs("poison", "title"))
	_, err = env.service.GetDocument("b")
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
}

func TestAddDocumentsCancelled(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.service.AddDocuments(ctx, []model.Document{{"title": "Never"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.service.Count())
}

func TestAddDocumentsProgress(t *testing.T) {
	settings := newTestSettings()
	var (
		mu    sync.Mutex
		calls []int
	)
	svc, err := NewService(index.New(2), store.New(settings.Name, storage.NewMemory()),
		func() *config.IndexSettings { return settings },
		Options{Workers: 2, Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 3, total)
			calls = append(calls, done)
		}})
	require.NoError(t, err)

	_, err = svc.AddDocuments(context.Background(), []model.Document{{"title": "a"}, {"title": "b"}, {"title": "c"}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.service.AddDocuments(ctx, []model.Document{
		{"uuid": "keep", "title": "Shared Word"},
		{"uuid": "drop", "title": "Shared Unique"},
	})
	require.NoError(t, err)
	keepID, _, _ := env.docStore.GetByExternalID("keep")

	require.NoError(t, env.service.DeleteDocument(ctx, "drop"))
	assert.Equal(t, 1, env.service.Count())
	assert.Equal(t, []uint32{keepID}, env.docIDs("shared", "title"))
	assert.Empty(t, env.docIDs("unique", "title"))

	err = env.service.DeleteDocument(ctx, "drop")
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
}

func TestDeleteAllDocuments(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.service.AddDocuments(ctx, []model.Document{{"title": "One"}, {"title": "Two"}})
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteAllDocuments(ctx))
	assert.Zero(t, env.service.Count())
	assert.Empty(t, env.docIDs("one", "title"))
	assert.Empty(t, env.invIndex.TermCount())

	_, err = env.service.AddDocuments(ctx, []model.Document{{"title": "Three"}})
	require.NoError(t, err)
	assert.Equal(t, 1, env.service.Count())
}

func TestListDocuments(t *testing.T) {
	env := newTestEnv(t, nil)
	docs := make([]model.Document, 0, 5)
	for i := 0; i < 5; i++ {
		docs = append(docs, model.Document{"uuid": fmt.Sprintf("d%d", i), "title": "t"})
	}
	_, err := env.service.AddDocuments(context.Background(), docs)
	require.NoError(t, err)

	tests := []struct {
		page, pageSize   int
		wantPage, wantPS int
		wantLen          int
	}{
		{1, 2, 1, 2, 2},
		{3, 2, 3, 2, 1},
		{4, 2, 4, 2, 0},
		{0, 0, 1, 10, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page_%d_size_%d", tt.page, tt.pageSize), func(t *testing.T) {
			page := env.service.ListDocuments(tt.page, tt.pageSize)
			assert.Equal(t, 5, page.Total)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantPS, page.PageSize)
			assert.Len(t, page.Documents, tt.wantLen)
		})
	}
}

func TestConcurrentBatches(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for b := 0; b < 8; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			docs := make([]model.Document, 0, 50)
			for i := 0; i < 50; i++ {
				docs = append(docs, model.Document{"uuid": fmt.Sprintf("b%d-%d", b, i), "title": fmt.Sprintf("batch%d common", b)})
			}
			_, err := env.service.AddDocuments(ctx, docs)
			assert.NoError(t, err)
		}(b)
	}
	wg.Wait()

	assert.Equal(t, 400, env.service.Count())
	assert.Len(t, env.docIDs("common", "title"), 400)
	assert.Len(t, env.docIDs("batch3", "title"), 50)
}

func TestRebuild(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.Open(filepath.Join(dir, "documents.bolt"), "bolt")
	require.NoError(t, err)
	env := newTestEnv(t, backend)
	_, err = env.service.AddDocuments(context.Background(), []model.Document{{"uuid": "p", "title": "Persisted Title"}})
	require.NoError(t, err)
	require.NoError(t, env.docStore.Close())

	backend, err = storage.Open(filepath.Join(dir, "documents.bolt"), "bolt")
	require.NoError(t, err)
	reopened := newTestEnv(t, backend)
	defer reopened.docStore.Close()

	require.NoError(t, reopened.service.Rebuild())
	assert.Equal(t, 1, reopened.service.Count())
	assert.Len(t, reopened.docIDs("persisted", "title"), 1)
}
