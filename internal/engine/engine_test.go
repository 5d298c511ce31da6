package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/internal/cache"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	eng, err := NewEngine(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func movieSettings(name string) config.IndexSettings {
	return config.IndexSettings{
		Name:             name,
		SearchableFields: []string{"title", "cast"},
		FilterableFields: []string{"year", "genres"},
		RankingCriteria:  []config.RankingCriterion{{Field: "popularity", Order: "desc"}},
	}
}

func movies() []model.Document {
	return []model.Document{
		{"uuid": "m1", "title": "The Matrix", "cast": []interface{}{"Keanu Reeves"}, "year": 1999, "popularity": 88.7, "series": "matrix"},
		{"uuid": "m2", "title": "The Matrix Reloaded", "cast": []interface{}{"Keanu Reeves"}, "year": 2003, "popularity": 70.2, "series": "matrix"},
		{"uuid": "m3", "title": "Memento", "cast": []interface{}{"Guy Pearce"}, "year": 2000, "popularity": 80.1, "series": "memento"},
	}
}

func hitIDs(result services.SearchResult) []string {
	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, _ := hit.Document.GetID()
		ids = append(ids, id)
	}
	return ids
}

type recordingObserver struct {
	mu       sync.Mutex
	searches []SearchObservation
	batches  []services.BatchResult
}

func (r *recordingObserver) ObserveSearch(obs SearchObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, obs)
}

func (r *recordingObserver) ObserveBatch(_ string, result services.BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, result)
}

func TestCreateIndex(t *testing.T) {
	eng := newTestEngine(t, Options{})

	require.NoError(t, eng.CreateIndex(movieSettings("movies")))

	settings, err := eng.GetIndexSettings("movies")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMinWordSizeFor1Typo, settings.MinWordSizeFor1Typo)
	assert.Equal(t, config.DefaultMinWordSizeFor2Typos, settings.MinWordSizeFor2Typos)
	assert.Equal(t, []string{}, settings.FieldsWithoutPrefixSearch)

	tests := []struct {
		name     string
		settings config.IndexSettings
		kind     internalErrors.Kind
	}{
		{"duplicate name", movieSettings("movies"), internalErrors.KindConflict},
		{"empty name", movieSettings(""), internalErrors.KindValidation},
		{"unsafe name", movieSettings("../etc"), internalErrors.KindValidation},
		{"bad ranking order", config.IndexSettings{Name: "x", RankingCriteria: []config.RankingCriterion{{Field: "year", Order: "up"}}}, internalErrors.KindValidation},
		{"inverted typo thresholds", config.IndexSettings{Name: "y", MinWordSizeFor1Typo: 8, MinWordSizeFor2Typos: 5}, internalErrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.CreateIndex(tt.settings)
			require.Error(t, err)
			assert.Equal(t, tt.kind, internalErrors.KindOf(err))
		})
	}
}

func TestListAndDeleteIndexes(t *testing.T) {
	dir := t.TempDir()
	eng := newTestEngine(t, Options{DataDir: dir})

	for _, name := range []string{"shows", "books", "movies"} {
		require.NoError(t, eng.CreateIndex(movieSettings(name)))
	}
	assert.Equal(t, []string{"books", "movies", "shows"}, eng.ListIndexes())
	assert.DirExists(t, filepath.Join(dir, "books"))

	require.NoError(t, eng.DeleteIndex("books"))
	assert.Equal(t, []string{"movies", "shows"}, eng.ListIndexes())
	assert.NoDirExists(t, filepath.Join(dir, "books"))

	err := eng.DeleteIndex("books")
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)

	_, err = eng.GetIndex("books")
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)
}

func TestDeletedIndexRejectsHeldAccessor(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)

	require.NoError(t, eng.DeleteIndex("movies"))

	_, err = accessor.AddDocuments(context.Background(), movies())
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)
	_, err = accessor.Search(context.Background(), services.SearchQuery{QueryString: "matrix"})
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)
}

func TestAddDocumentsAndSearch(t *testing.T) {
	eng := newTestEngine(t, Options{})
	observer := &recordingObserver{}
	eng.AddObserver(observer)
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	ctx := context.Background()

	result, err := accessor.AddDocuments(ctx, movies())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Indexed)

	found, err := accessor.Search(ctx, services.SearchQuery{QueryString: "matrix"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, hitIDs(found))
	assert.NotEmpty(t, found.QueryId)

	_, err = accessor.Search(ctx, services.SearchQuery{QueryString: "matrix", Filters: map[string]interface{}{"popularity_gt": 1}})
	assert.Equal(t, internalErrors.KindValidation, internalErrors.KindOf(err))

	require.Len(t, observer.batches, 1)
	assert.Equal(t, 3, observer.batches[0].Indexed)
	require.Len(t, observer.searches, 2)
	assert.Equal(t, "movies", observer.searches[0].Index)
	assert.Equal(t, 2, observer.searches[0].Result.Total)
	assert.Error(t, observer.searches[1].Err)

	doc, err := accessor.GetDocument("m3")
	require.NoError(t, err)
	assert.Equal(t, "Memento", doc["title"])

	page := accessor.ListDocuments(1, 2)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Documents, 2)

	require.NoError(t, accessor.DeleteDocument(ctx, "m1"))
	err = accessor.DeleteDocument(ctx, "m1")
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)

	found, err = accessor.Search(ctx, services.SearchQuery{QueryString: "matrix"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, hitIDs(found))
}

func TestSearchTimeout(t *testing.T) {
	eng := newTestEngine(t, Options{SearchTimeout: time.Nanosecond})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)

	_, err = accessor.AddDocuments(context.Background(), movies())
	require.NoError(t, err)

	_, err = accessor.Search(context.Background(), services.SearchQuery{QueryString: "matrix"})
	require.Error(t, err)
	assert.Equal(t, internalErrors.KindTimeout, internalErrors.KindOf(err))
}

func TestUpdateIndexSettings(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = accessor.AddDocuments(ctx, movies())
	require.NoError(t, err)

	t.Run("distinct field applies to the next search", func(t *testing.T) {
		series := "series"
		warning, err := eng.UpdateIndexSettings("movies", config.SettingsUpdate{DistinctField: &series})
		require.NoError(t, err)
		assert.Empty(t, warning)

		found, err := accessor.Search(ctx, services.SearchQuery{QueryString: "keanu"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, hitIDs(found))

		settings, err := eng.GetIndexSettings("movies")
		require.NoError(t, err)
		assert.Equal(t, "series", settings.DistinctField)

		none := ""
		_, err = eng.UpdateIndexSettings("movies", config.SettingsUpdate{DistinctField: &none})
		require.NoError(t, err)
		found, err = accessor.Search(ctx, services.SearchQuery{QueryString: "keanu"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, hitIDs(found))
	})

	t.Run("non-searchable field yields a warning", func(t *testing.T) {
		fields := []string{"year"}
		warning, err := eng.UpdateIndexSettings("movies", config.SettingsUpdate{FieldsWithoutPrefixSearch: &fields})
		require.NoError(t, err)
		assert.Contains(t, warning, "year")

		settings, err := eng.GetIndexSettings("movies")
		require.NoError(t, err)
		assert.Equal(t, []string{"year"}, settings.FieldsWithoutPrefixSearch)
	})

	t.Run("prefix search can be turned off per field", func(t *testing.T) {
		found, err := accessor.Search(ctx, services.SearchQuery{QueryString: "memen"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m3"}, hitIDs(found))

		fields := []string{"title", "cast"}
		_, err = eng.UpdateIndexSettings("movies", config.SettingsUpdate{FieldsWithoutPrefixSearch: &fields})
		require.NoError(t, err)

		found, err = accessor.Search(ctx, services.SearchQuery{QueryString: "memen"})
		require.NoError(t, err)
		assert.Empty(t, found.Hits)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := eng.UpdateIndexSettings("nope", config.SettingsUpdate{})
		assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)

		_, err = eng.UpdateIndexSettings("movies", config.SettingsUpdate{})
		assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)

		dup := []string{"title", "title"}
		_, err = eng.UpdateIndexSettings("movies", config.SettingsUpdate{NoTypoToleranceFields: &dup})
		assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)
	})
}

func TestGetIndexStats(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	_, err = accessor.AddDocuments(context.Background(), movies())
	require.NoError(t, err)

	stats, err := eng.GetIndexStats("movies")
	require.NoError(t, err)
	assert.Equal(t, "movies", stats.Name)
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, []string{"title", "cast"}, stats.SearchableFields)
	assert.Equal(t, 4, stats.TypoSettings.MinWordSizeFor1Typo)
	assert.Equal(t, 7, stats.TypoSettings.MinWordSizeFor2Typos)
	// title: the, matrix, reloaded, memento; cast: keanu, reeves, guy, pearce
	assert.Equal(t, map[string]int{"title": 4, "cast": 4}, stats.TermCount)

	_, err = eng.GetIndexStats("nope")
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)
}

// Concurrent batches followed by delete-all must leave nothing behind.
func TestConcurrentAddsThenDeleteAll(t *testing.T) {
	eng := newTestEngine(t, Options{IndexWorkers: 4})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for b := 0; b < 8; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			docs := make([]model.Document, 0, 50)
			for i := 0; i < 50; i++ {
				docs = append(docs, model.Document{"uuid": fmt.Sprintf("b%d-%d", b, i), "title": fmt.Sprintf("movie number %d", i)})
			}
			_, err := accessor.AddDocuments(ctx, docs)
			assert.NoError(t, err)
		}(b)
	}
	wg.Wait()

	stats, err := eng.GetIndexStats("movies")
	require.NoError(t, err)
	assert.Equal(t, 400, stats.DocumentCount)

	require.NoError(t, accessor.DeleteAllDocuments(ctx))

	stats, err = eng.GetIndexStats("movies")
	require.NoError(t, err)
	assert.Zero(t, stats.DocumentCount)
	assert.Empty(t, stats.TermCount)

	found, err := accessor.Search(ctx, services.SearchQuery{QueryString: "movie"})
	require.NoError(t, err)
	assert.Zero(t, found.Total)
}

// Searches running while batches land must never fail.
func TestSearchDuringWrites(t *testing.T) {
	eng := newTestEngine(t, Options{})
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, err := accessor.AddDocuments(ctx, []model.Document{{"uuid": fmt.Sprintf("d%d", i), "title": "matrix"}})
			assert.NoError(t, err)
		}
		assert.NoError(t, accessor.DeleteAllDocuments(ctx))
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := accessor.Search(ctx, services.SearchQuery{QueryString: "matrix"})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()
}

// finishesWithin runs fn and fails the test if it has not returned after d.
func finishesWithin(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s did not finish within %s", what, d)
	}
}

func TestDeleteIndexWhileBusyLeavesOtherIndexesAvailable(t *testing.T) {
	dir := t.TempDir()
	eng := newTestEngine(t, Options{DataDir: dir})
	require.NoError(t, eng.CreateIndex(movieSettings("a")))
	require.NoError(t, eng.CreateIndex(movieSettings("b")))
	b, err := eng.GetIndex("b")
	require.NoError(t, err)
	_, err = b.AddDocuments(context.Background(), movies())
	require.NoError(t, err)

	// Stands in for a batch still running on a
	a, err := eng.instance("a")
	require.NoError(t, err)
	require.NoError(t, a.enterShared())

	deleted := make(chan error, 1)
	go func() { deleted <- eng.DeleteIndex("a") }()

	require.Eventually(t, func() bool {
		return len(eng.ListIndexes()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	select {
	case err := <-deleted:
		t.Fatalf("delete finished before in-flight work drained: %v", err)
	default:
	}

	finishesWithin(t, 2*time.Second, "search on b", func() {
		accessor, err := eng.GetIndex("b")
		if !assert.NoError(t, err) {
			return
		}
		result, err := accessor.Search(context.Background(), services.SearchQuery{QueryString: "matrix"})
		assert.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, hitIDs(result))
	})
	finishesWithin(t, 2*time.Second, "index management", func() {
		_, err := eng.GetIndexSettings("b")
		assert.NoError(t, err)
		assert.NoError(t, eng.CreateIndex(movieSettings("c")))
		err = eng.CreateIndex(movieSettings("a"))
		assert.Equal(t, internalErrors.KindConflict, internalErrors.KindOf(err), "a is still draining")
	})

	a.gate.RUnlock()
	select {
	case err := <-deleted:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("delete did not finish after in-flight work drained")
	}
	assert.NoDirExists(t, filepath.Join(dir, "a"))
	assert.NoError(t, eng.CreateIndex(movieSettings("a")))
}

func TestBulkWritesDoNotBlockOtherIndexes(t *testing.T) {
	eng := newTestEngine(t, Options{IndexWorkers: 2})
	require.NoError(t, eng.CreateIndex(movieSettings("bulk")))
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	movieIndex, err := eng.GetIndex("movies")
	require.NoError(t, err)
	_, err = movieIndex.AddDocuments(context.Background(), movies())
	require.NoError(t, err)
	bulk, err := eng.GetIndex("bulk")
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx := context.Background()
		for batch := 0; ; batch++ {
			select {
			case <-stop:
				return
			default:
			}
			docs := make([]model.Document, 0, 200)
			for i := 0; i < 200; i++ {
				docs = append(docs, model.Document{"uuid": fmt.Sprintf("%d-%d", batch, i), "title": fmt.Sprintf("matrix sequel %d", i)})
			}
			_, err := bulk.AddDocuments(ctx, docs)
			if batch%5 == 4 && err == nil {
				err = bulk.DeleteAllDocuments(ctx)
			}
			if errors.Is(err, internalErrors.ErrIndexNotFound) {
				return
			}
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < 50; i++ {
		finishesWithin(t, 2*time.Second, "search on movies", func() {
			result, err := movieIndex.Search(context.Background(), services.SearchQuery{QueryString: "matrix"})
			assert.NoError(t, err)
			assert.Equal(t, []string{"m1", "m2"}, hitIDs(result))
		})
	}
	finishesWithin(t, 2*time.Second, "deleting the busy index", func() {
		assert.NoError(t, eng.DeleteIndex("bulk"))
	})
	close(stop)
	wg.Wait()
}

func TestPersistenceAcrossRestarts(t *testing.T) {
	for _, storageEngine := range []string{"bolt", "kv", "gob"} {
		t.Run(storageEngine, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()

			eng, err := NewEngine(Options{DataDir: dir, StorageEngine: storageEngine})
			require.NoError(t, err)
			require.NoError(t, eng.CreateIndex(movieSettings("movies")))
			accessor, err := eng.GetIndex("movies")
			require.NoError(t, err)
			_, err = accessor.AddDocuments(ctx, movies())
			require.NoError(t, err)
			series := "series"
			_, err = eng.UpdateIndexSettings("movies", config.SettingsUpdate{DistinctField: &series})
			require.NoError(t, err)
			require.NoError(t, eng.Close())

			assert.FileExists(t, filepath.Join(dir, "movies", settingsFile))
			assert.FileExists(t, filepath.Join(dir, "movies", "documents."+storageEngine))

			reopened := newTestEngine(t, Options{DataDir: dir, StorageEngine: storageEngine})
			assert.Equal(t, []string{"movies"}, reopened.ListIndexes())
			settings, err := reopened.GetIndexSettings("movies")
			require.NoError(t, err)
			assert.Equal(t, "series", settings.DistinctField)

			accessor, err = reopened.GetIndex("movies")
			require.NoError(t, err)
			found, err := accessor.Search(ctx, services.SearchQuery{QueryString: "keanu"})
			require.NoError(t, err)
			assert.Equal(t, []string{"m1"}, hitIDs(found))

			// New documents continue after the restored internal ids
			result, err := accessor.AddDocuments(ctx, []model.Document{{"title": "Insomnia"}})
			require.NoError(t, err)
			assert.Equal(t, 1, result.Indexed)
			assert.Equal(t, 4, accessor.ListDocuments(1, 10).Total)
		})
	}
}

func TestAssignedUUIDsNotReusedAfterRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	eng, err := NewEngine(Options{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	_, err = accessor.AddDocuments(ctx, []model.Document{{"title": "Heat"}, {"title": "Alien"}})
	require.NoError(t, err)

	page := accessor.ListDocuments(1, 10)
	require.Len(t, page.Documents, 2)
	deleted, _ := page.Documents[1].GetID()
	require.NoError(t, accessor.DeleteDocument(ctx, deleted))
	require.NoError(t, eng.Close())

	reopened := newTestEngine(t, Options{DataDir: dir})
	accessor, err = reopened.GetIndex("movies")
	require.NoError(t, err)
	_, err = accessor.AddDocuments(ctx, []model.Document{{"title": "Aliens"}})
	require.NoError(t, err)

	page = accessor.ListDocuments(1, 10)
	require.Len(t, page.Documents, 2)
	added, _ := page.Documents[1].GetID()
	assert.NotEqual(t, deleted, added)
	_, err = accessor.GetDocument(deleted)
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
}

func TestLoadSkipsBrokenDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "garbage"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage", settingsFile), []byte("not gob"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray-file"), []byte("x"), 0600))

	eng := newTestEngine(t, Options{DataDir: dir})
	assert.Empty(t, eng.ListIndexes())
}

type countingBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *countingBackend) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if data, ok := c.entries[key]; ok {
		return data, nil
	}
	return nil, cache.ErrMiss
}

func (c *countingBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *countingBackend) Ping(context.Context) error { return nil }
func (c *countingBackend) Close() error                { return nil }

func TestSearchCache(t *testing.T) {
	queryCache := cache.New(&countingBackend{entries: map[string][]byte{}}, time.Minute)
	eng := newTestEngine(t, Options{Cache: queryCache})
	observer := &recordingObserver{}
	eng.AddObserver(observer)
	require.NoError(t, eng.CreateIndex(movieSettings("movies")))
	accessor, err := eng.GetIndex("movies")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = accessor.AddDocuments(ctx, movies())
	require.NoError(t, err)

	query := services.SearchQuery{QueryString: "matrix"}
	first, err := accessor.Search(ctx, query)
	require.NoError(t, err)
	second, err := accessor.Search(ctx, query)
	require.NoError(t, err)

	assert.Equal(t, hitIDs(first), hitIDs(second))
	assert.NotEqual(t, first.QueryId, second.QueryId, "every search gets its own query id")
	require.Len(t, observer.searches, 2)
	assert.False(t, observer.searches[0].CacheHit)
	assert.True(t, observer.searches[1].CacheHit)

	// A write makes cached results unreachable
	require.NoError(t, accessor.DeleteDocument(ctx, "m1"))
	third, err := accessor.Search(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, hitIDs(third))
	assert.False(t, observer.searches[2].CacheHit)

	hits, _ := queryCache.Stats()
	assert.Equal(t, int64(1), hits)
}
