// Package engine is the index manager: it owns the registry of indexes, their
// on-disk layout and the per-index gate that orders writes, searches and
// deletions.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/internal/cache"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/internal/jobs"
	"github.com/gcbaptista/go-search-core/internal/logger"
	"github.com/gcbaptista/go-search-core/internal/tokenizer"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
)

const (
	dataDirPerm          = 0750
	defaultSearchTimeout = 5 * time.Second
	defaultJobWorkers    = 4
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// DataDir holds one directory per index. Empty keeps everything in memory.
	DataDir string
	// StorageEngine is the document backend: bolt, kv, gob or memory.
	StorageEngine   string
	Shards          int
	IndexWorkers    int
	SearchTimeout   time.Duration
	DefaultPageSize int
	MaxPageSize     int
	Tokenizer       *tokenizer.Tokenizer
	// JobManager runs async operations. A manager with four workers is
	// created and started when nil.
	JobManager *jobs.Manager
	// Cache, when set, keeps search results in Redis.
	Cache *cache.QueryCache
}

// OptionsFromConfig maps the server configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DataDir:         cfg.Storage.DataDir,
		StorageEngine:   cfg.Storage.Engine,
		Shards:          cfg.Search.PostingShards,
		IndexWorkers:    cfg.Search.IndexWorkers,
		SearchTimeout:   cfg.Search.Timeout,
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}
}

// Engine manages multiple search indexes.
// It implements the services.IndexManager interface.
type Engine struct {
	mu       sync.RWMutex // guards the indexes and deleting maps only
	indexes  map[string]*IndexInstance
	deleting map[string]bool // removed from indexes, directory not yet gone

	opts       Options
	jobManager *jobs.Manager
	ownsJobs   bool
	logger     *slog.Logger

	settingsMu sync.Mutex

	obsMu     sync.RWMutex
	observers []Observer
}

// NewEngine creates the engine and loads every index found under DataDir.
func NewEngine(opts Options) (*Engine, error) {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaultSearchTimeout
	}
	if opts.DataDir == "" {
		opts.StorageEngine = "memory"
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.New()
	}

	eng := &Engine{
		indexes:    make(map[string]*IndexInstance),
		deleting:   make(map[string]bool),
		opts:       opts,
		jobManager: opts.JobManager,
		logger:     logger.WithComponent("engine"),
	}
	if eng.jobManager == nil {
		eng.jobManager = jobs.NewManager(defaultJobWorkers)
		eng.jobManager.Start()
		eng.ownsJobs = true
	}

	if opts.DataDir != "" {
		if err := os.MkdirAll(opts.DataDir, dataDirPerm); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", opts.DataDir, err)
		}
		if err := eng.loadIndexesFromDisk(); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// AddObserver registers an observer of searches and document batches.
func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) currentObservers() []Observer {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	return e.observers
}

// Close stops the job manager if the engine created it and closes every
// index backend.
func (e *Engine) Close() error {
	if e.ownsJobs {
		e.jobManager.Stop()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for name, instance := range e.indexes {
		if err := instance.close(); err != nil {
			e.logger.Error("Failed to close index", "index", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// instance returns the live index named name.
func (e *Engine) instance(name string) (*IndexInstance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	instance, exists := e.indexes[name]
	if !exists {
		return nil, internalErrors.NewIndexNotFoundError(name)
	}
	return instance, nil
}

// GetIndex retrieves an index by its name.
func (e *Engine) GetIndex(name string) (services.IndexAccessor, error) {
	return e.instance(name)
}

// ListIndexes returns the names of all indexes, sorted.
func (e *Engine) ListIndexes() []string {
	e.mu.RLock()
	names := make([]string, 0, len(e.indexes))
	for name := range e.indexes {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)
	return names
}

// GetJob returns a snapshot of a background job.
func (e *Engine) GetJob(jobID string) (*model.Job, error) {
	return e.jobManager.GetJob(jobID)
}

// ListJobs lists the jobs of an index, optionally filtered by status.
func (e *Engine) ListJobs(indexName string, status *model.JobStatus) []*model.Job {
	return e.jobManager.ListJobs(indexName, status)
}

// GetJobMetrics returns the job manager counters.
func (e *Engine) GetJobMetrics() jobs.JobMetricsData {
	return e.jobManager.GetMetrics()
}

var (
	_ services.IndexManager      = (*Engine)(nil)
	_ services.AsyncIndexManager = (*Engine)(nil)
	_ services.JobManager        = (*Engine)(nil)
	_ services.IndexAccessor     = (*IndexInstance)(nil)
)
