package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/index"
	"github.com/gcbaptista/go-search-core/internal/cache"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/internal/indexing"
	"github.com/gcbaptista/go-search-core/internal/search"
	"github.com/gcbaptista/go-search-core/internal/storage"
	"github.com/gcbaptista/go-search-core/internal/typoutil"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
	"github.com/gcbaptista/go-search-core/store"
)

// IndexInstance holds all components and services for a single search index.
// It implements the services.IndexAccessor interface.
//
// The gate orders work on the index: adds, single deletes and searches hold
// it shared, delete-all and index deletion hold it exclusively.
type IndexInstance struct {
	name  string
	dir   string // empty when nothing is persisted
	epoch string

	gate   sync.RWMutex
	closed bool // guarded by gate

	settings   atomic.Pointer[config.IndexSettings]
	generation atomic.Uint64

	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
	indexer       *indexing.Service
	searcher      *search.Service

	timeout   time.Duration
	cache     *cache.QueryCache
	observers func() []Observer
}

// newIndexInstance opens the document backend of an index and wires its
// services. Postings start empty; call rebuild for an index read from disk.
func newIndexInstance(settings config.IndexSettings, dir string, opts Options, observers func() []Observer) (*IndexInstance, error) {
	if settings.Name == "" {
		return nil, fmt.Errorf("index name cannot be empty in settings")
	}

	path := ""
	if dir != "" && opts.StorageEngine != "memory" {
		path = filepath.Join(dir, storage.FileName(opts.StorageEngine))
	}
	backend, err := storage.Open(path, opts.StorageEngine)
	if err != nil {
		return nil, fmt.Errorf("opening document storage for index '%s': %w", settings.Name, err)
	}

	instance := &IndexInstance{
		name:          settings.Name,
		dir:           dir,
		epoch:         uuid.NewString(),
		invertedIndex: index.New(opts.Shards),
		documentStore: store.New(settings.Name, backend),
		timeout:       opts.SearchTimeout,
		cache:         opts.Cache,
		observers:     observers,
	}
	instance.settings.Store(&settings)

	instance.indexer, err = indexing.NewService(instance.invertedIndex, instance.documentStore, instance.current, indexing.Options{
		Tokenizer: opts.Tokenizer,
		Workers:   opts.IndexWorkers,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to create indexer service: %w", err)
	}
	instance.searcher, err = search.NewService(instance.invertedIndex, instance.documentStore, instance.current, search.Options{
		Tokenizer:       opts.Tokenizer,
		Matcher:         typoutil.NewMatcher(),
		DefaultPageSize: opts.DefaultPageSize,
		MaxPageSize:     opts.MaxPageSize,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}
	return instance, nil
}

// current returns the live settings. They are replaced, never mutated.
func (i *IndexInstance) current() *config.IndexSettings {
	return i.settings.Load()
}

// Settings returns a copy of the configuration settings for this index.
func (i *IndexInstance) Settings() config.IndexSettings {
	return i.current().Clone()
}

// enterShared takes the gate shared, failing if the index was deleted while
// the caller waited.
func (i *IndexInstance) enterShared() error {
	i.gate.RLock()
	if i.closed {
		i.gate.RUnlock()
		return internalErrors.NewIndexNotFoundError(i.name)
	}
	return nil
}

func (i *IndexInstance) enterExclusive() error {
	i.gate.Lock()
	if i.closed {
		i.gate.Unlock()
		return internalErrors.NewIndexNotFoundError(i.name)
	}
	return nil
}

// AddDocuments stores and indexes a batch. Searches keep running alongside.
func (i *IndexInstance) AddDocuments(ctx context.Context, docs []model.Document) (services.BatchResult, error) {
	if err := i.enterShared(); err != nil {
		return services.BatchResult{}, err
	}
	defer i.gate.RUnlock()

	i.generation.Add(1)
	result, err := i.indexer.AddDocuments(ctx, docs)
	i.generation.Add(1)

	if flushErr := i.documentStore.Flush(); flushErr != nil && err == nil {
		err = internalErrors.Internalf("flushing documents of index '%s': %v", i.name, flushErr)
	}
	if result.Indexed+result.Failed > 0 {
		for _, o := range i.observers() {
			o.ObserveBatch(i.name, result)
		}
	}
	return result, err
}

// DeleteAllDocuments waits for in-flight work on the index, then removes
// every document and posting.
func (i *IndexInstance) DeleteAllDocuments(ctx context.Context) error {
	if err := i.enterExclusive(); err != nil {
		return err
	}
	defer i.gate.Unlock()

	defer i.generation.Add(1)
	if err := i.indexer.DeleteAllDocuments(ctx); err != nil {
		return err
	}
	return i.documentStore.Flush()
}

// DeleteDocument removes one document by uuid.
func (i *IndexInstance) DeleteDocument(ctx context.Context, docID string) error {
	if err := i.enterShared(); err != nil {
		return err
	}
	defer i.gate.RUnlock()

	defer i.generation.Add(1)
	if err := i.indexer.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	return i.documentStore.Flush()
}

// GetDocument returns one document by uuid.
func (i *IndexInstance) GetDocument(docID string) (model.Document, error) {
	if err := i.enterShared(); err != nil {
		return nil, err
	}
	defer i.gate.RUnlock()
	return i.indexer.GetDocument(docID)
}

// ListDocuments returns one page of documents in insertion order.
func (i *IndexInstance) ListDocuments(page, pageSize int) services.DocumentPage {
	if err := i.enterShared(); err != nil {
		return services.DocumentPage{Documents: []model.Document{}, Page: page, PageSize: pageSize}
	}
	defer i.gate.RUnlock()
	return i.indexer.ListDocuments(page, pageSize)
}

// Search runs a query within the configured time budget. Results may come
// from the cache as long as the index has not changed since they were
// computed.
func (i *IndexInstance) Search(ctx context.Context, query services.SearchQuery) (services.SearchResult, error) {
	start := time.Now()
	result, cacheHit, err := i.search(ctx, query)
	if cacheHit {
		result.QueryId = uuid.NewString()
		result.Took = time.Since(start).Milliseconds()
	}

	obs := SearchObservation{
		Index:    i.name,
		Query:    query,
		Result:   result,
		CacheHit: cacheHit,
		Took:     time.Since(start),
		Err:      err,
	}
	for _, o := range i.observers() {
		o.ObserveSearch(obs)
	}
	return result, err
}

func (i *IndexInstance) search(ctx context.Context, query services.SearchQuery) (services.SearchResult, bool, error) {
	if err := i.searcher.Validate(query); err != nil {
		return services.SearchResult{}, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if err := i.enterShared(); err != nil {
		return services.SearchResult{}, false, err
	}
	defer i.gate.RUnlock()

	if i.cache == nil {
		result, err := i.searcher.Search(ctx, query)
		return result, false, err
	}
	scope := cache.Scope{Index: i.name, Epoch: i.epoch, Generation: i.generation.Load()}
	return i.cache.GetOrCompute(ctx, scope, query, func() (services.SearchResult, error) {
		return i.searcher.Search(ctx, query)
	})
}

// Count returns the number of stored documents.
func (i *IndexInstance) Count() int {
	return i.indexer.Count()
}

// stats reports document and vocabulary counts with the query-time settings.
func (i *IndexInstance) stats() services.IndexStats {
	settings := i.Settings()
	return services.IndexStats{
		Name:             i.name,
		DocumentCount:    i.indexer.Count(),
		SearchableFields: settings.SearchableFields,
		FilterableFields: settings.FilterableFields,
		TypoSettings: services.TypoSettings{
			MinWordSizeFor1Typo:  settings.MinWordSizeFor1Typo,
			MinWordSizeFor2Typos: settings.MinWordSizeFor2Typos,
		},
		FieldSettings: services.FieldSettings{
			FieldsWithoutPrefixSearch: settings.FieldsWithoutPrefixSearch,
			NoTypoToleranceFields:     settings.NoTypoToleranceFields,
			DistinctField:             settings.DistinctField,
		},
		TermCount: i.invertedIndex.TermCount(),
	}
}

// rebuild re-creates postings from the stored documents.
func (i *IndexInstance) rebuild() error {
	i.gate.Lock()
	defer i.gate.Unlock()
	defer i.generation.Add(1)
	return i.indexer.Rebuild()
}

// close waits for in-flight work and releases the backend. Every later
// operation fails with NotFound.
func (i *IndexInstance) close() error {
	i.gate.Lock()
	defer i.gate.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.documentStore.Close()
}
