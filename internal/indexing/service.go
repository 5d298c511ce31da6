// Package indexing applies document batches to one index: it stores each
// document and keeps the posting store in step with what is stored.
package indexing

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/huichen/murmur"
	"golang.org/x/sync/errgroup"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/index"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/internal/logger"
	"github.com/gcbaptista/go-search-core/internal/tokenizer"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
	"github.com/gcbaptista/go-search-core/store"
)

const lockStripes = 64

// Options tunes an indexing Service. Zero values select defaults.
type Options struct {
	Tokenizer *tokenizer.Tokenizer
	Workers   int // documents indexed in parallel per batch; defaults to GOMAXPROCS
	// Progress, when set, is called after each document of a batch.
	Progress func(done, total int)
}

// Service implements the indexing logic for a single index.
// It fulfills the services.Indexer interface.
type Service struct {
	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
	settings      func() *config.IndexSettings
	tokenizer     *tokenizer.Tokenizer
	workers       int
	progress      func(done, total int)

	// Serializes writers of the same uuid across concurrent batches
	stripes [lockStripes]sync.Mutex
}

// NewService creates a new indexing Service.
func NewService(invertedIndex *index.InvertedIndex, documentStore *store.DocumentStore, settings func() *config.IndexSettings, opts Options) (*Service, error) {
	if invertedIndex == nil {
		return nil, fmt.Errorf("inverted index cannot be nil")
	}
	if documentStore == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	s := &Service{
		invertedIndex: invertedIndex,
		documentStore: documentStore,
		settings:      settings,
		tokenizer:     opts.Tokenizer,
		workers:       opts.Workers,
		progress:      opts.Progress,
	}
	if s.tokenizer == nil {
		s.tokenizer = tokenizer.New()
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s, nil
}

type progressKey struct{}

// WithProgress returns a context that makes AddDocuments report progress to
// fn instead of the service-wide callback.
func WithProgress(ctx context.Context, fn func(done, total int)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ValidateDocuments checks every document of a batch and reports all the
// problems found at once. Nothing is applied when it fails.
func ValidateDocuments(docs []model.Document) error {
	var problems []string
	for i, doc := range docs {
		if err := doc.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("document at position %d: %v", i, err))
		}
	}
	if len(problems) > 0 {
		return internalErrors.NewValidationError("documents", strings.Join(problems, "; "))
	}
	return nil
}

// AddDocuments validates the whole batch, then stores and indexes its
// documents in parallel. Documents sharing a uuid are applied in batch order,
// so the last one wins. A document whose storage fails is reported in the
// result and the rest of the batch still applies.
func (s *Service) AddDocuments(ctx context.Context, docs []model.Document) (services.BatchResult, error) {
	if err := ValidateDocuments(docs); err != nil {
		return services.BatchResult{}, err
	}

	var (
		mu       sync.Mutex
		result   services.BatchResult
		done     int
		progress = s.progress
	)
	if fn, ok := ctx.Value(progressKey{}).(func(done, total int)); ok {
		progress = fn
	}
	report := func(position int, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			id, _ := docs[position].GetID()
			result.Failed++
			result.Failures = append(result.Failures, services.DocumentFailure{Position: position, DocumentID: id, Error: err.Error()})
		} else {
			result.Indexed++
		}
		if progress != nil {
			progress(done, len(docs))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, group := range groupByID(docs) {
		if gctx.Err() != nil {
			break
		}
		group := group
		g.Go(func() error {
			for _, position := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				report(position, s.indexDocument(docs[position]))
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].Position < result.Failures[j].Position })
	if result.Failed > 0 {
		logger.FromContext(ctx).Warn("Documents failed to index",
			"index", s.settings().Name, "failed", result.Failed, "indexed", result.Indexed)
	}
	if err != nil {
		return result, fmt.Errorf("indexing interrupted after %d of %d documents: %w", done, len(docs), err)
	}
	return result, nil
}

// groupByID partitions batch positions so documents with the same uuid end up
// in one group, in batch order. Documents without a uuid get a group each.
func groupByID(docs []model.Document) [][]int {
	groups := make([][]int, 0, len(docs))
	byID := make(map[string]int)
	for i, doc := range docs {
		id, ok := doc.GetID()
		if !ok {
			groups = append(groups, []int{i})
			continue
		}
		if g, seen := byID[id]; seen {
			groups[g] = append(groups[g], i)
			continue
		}
		byID[id] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

func (s *Service) stripe(id string) *sync.Mutex {
	return &s.stripes[murmur.Murmur3([]byte(id))%lockStripes]
}

// indexDocument stores doc and swaps its postings for the new content.
func (s *Service) indexDocument(doc model.Document) error {
	if ext, ok := doc.GetID(); ok {
		mu := s.stripe(ext)
		mu.Lock()
		defer mu.Unlock()
	}

	fields := s.settings().SearchableFields
	id, stored, previous, err := s.documentStore.Put(doc)
	if err != nil {
		return err
	}
	if previous != nil {
		s.invertedIndex.RemoveDocument(id, index.Analyze(s.tokenizer, previous, fields))
	}
	s.invertedIndex.AddDocument(id, index.Analyze(s.tokenizer, stored, fields))
	return nil
}

// DeleteAllDocuments removes every document and posting. The caller must
// hold the index exclusively so no reader sees a partial clear.
func (s *Service) DeleteAllDocuments(ctx context.Context) error {
	if err := s.documentStore.Clear(); err != nil {
		return internalErrors.Internalf("clearing documents of index '%s': %v", s.settings().Name, err)
	}
	s.invertedIndex.Clear()
	logger.FromContext(ctx).Info("Deleted all documents", "index", s.settings().Name)
	return nil
}

// DeleteDocument removes the document with the given uuid and its postings.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	mu := s.stripe(docID)
	mu.Lock()
	defer mu.Unlock()

	id, doc, ok, err := s.documentStore.Delete(docID)
	if err != nil {
		return internalErrors.Internalf("deleting document '%s': %v", docID, err)
	}
	if !ok {
		return internalErrors.NewDocumentNotFoundError(docID, s.settings().Name)
	}
	s.invertedIndex.RemoveDocument(id, index.Analyze(s.tokenizer, doc, s.settings().SearchableFields))
	logger.FromContext(ctx).Debug("Deleted document", "index", s.settings().Name, "document_id", docID)
	return nil
}

// GetDocument returns the stored document with the given uuid.
func (s *Service) GetDocument(docID string) (model.Document, error) {
	_, doc, ok := s.documentStore.GetByExternalID(docID)
	if !ok {
		return nil, internalErrors.NewDocumentNotFoundError(docID, s.settings().Name)
	}
	return doc, nil
}

// ListDocuments returns one page of documents in insertion order. page starts at 1.
func (s *Service) ListDocuments(page, pageSize int) services.DocumentPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return services.DocumentPage{
		Documents: s.documentStore.List((page-1)*pageSize, pageSize),
		Total:     s.documentStore.Count(),
		Page:      page,
		PageSize:  pageSize,
	}
}

// Count returns the number of stored documents.
func (s *Service) Count() int {
	return s.documentStore.Count()
}

// Rebuild reloads every stored document and re-creates its postings.
func (s *Service) Rebuild() error {
	s.invertedIndex.Clear()
	fields := s.settings().SearchableFields
	return s.documentStore.Load(func(id uint32, doc model.Document) {
		s.invertedIndex.AddDocument(id, index.Analyze(s.tokenizer, doc, fields))
	})
}
