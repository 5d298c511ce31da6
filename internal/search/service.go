// Package search implements query evaluation for a single index: token
// expansion, candidate gathering, filtering, ranking and pagination.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/index"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/internal/filter"
	"github.com/gcbaptista/go-search-core/internal/tokenizer"
	"github.com/gcbaptista/go-search-core/internal/typoutil"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
	"github.com/gcbaptista/go-search-core/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Options tunes a search Service. Zero values select defaults.
type Options struct {
	Tokenizer       *tokenizer.Tokenizer
	Matcher         *typoutil.Matcher
	DefaultPageSize int
	MaxPageSize     int
}

// Service implements the search logic for a single index.
// It fulfills the services.Searcher interface.
type Service struct {
	invertedIndex   *index.InvertedIndex
	documentStore   *store.DocumentStore
	settings        func() *config.IndexSettings
	tokenizer       *tokenizer.Tokenizer
	matcher         *typoutil.Matcher
	defaultPageSize int
	maxPageSize     int
}

// NewService creates a new search Service. settings is called once per
// search, so query-time settings changes apply to the next search.
func NewService(invIndex *index.InvertedIndex, docStore *store.DocumentStore, settings func() *config.IndexSettings, opts Options) (*Service, error) {
	if invIndex == nil {
		return nil, fmt.Errorf("inverted index cannot be nil")
	}
	if docStore == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	s := &Service{
		invertedIndex:   invIndex,
		documentStore:   docStore,
		settings:        settings,
		tokenizer:       opts.Tokenizer,
		matcher:         opts.Matcher,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
	}
	if s.tokenizer == nil {
		s.tokenizer = tokenizer.New()
	}
	if s.matcher == nil {
		s.matcher = typoutil.NewMatcher()
	}
	if s.defaultPageSize <= 0 {
		s.defaultPageSize = defaultPageSize
	}
	if s.maxPageSize <= 0 {
		s.maxPageSize = maxPageSize
	}
	if s.defaultPageSize > s.maxPageSize {
		s.defaultPageSize = s.maxPageSize
	}
	return s, nil
}

// request is a validated search query.
type request struct {
	settings *config.IndexSettings
	fields   []string
	filters  *filter.Expression
	page     int
	pageSize int
}

// Validate checks a query against the current settings and compiles its
// filters. It does not look at any document.
func (s *Service) Validate(query services.SearchQuery) error {
	_, err := s.prepare(query)
	return err
}

func (s *Service) prepare(query services.SearchQuery) (*request, error) {
	settings := s.settings()
	req := &request{settings: settings, page: query.Page, pageSize: query.PageSize}

	if req.page < 0 {
		return nil, internalErrors.NewValidationError("page", "must be a positive number")
	}
	if req.page == 0 {
		req.page = 1
	}
	if req.pageSize < 0 {
		return nil, internalErrors.NewValidationError("page_size", "must be a positive number")
	}
	if req.pageSize == 0 {
		req.pageSize = s.defaultPageSize
	}
	if req.pageSize > s.maxPageSize {
		return nil, internalErrors.NewValidationError("page_size", fmt.Sprintf("must not exceed %d", s.maxPageSize))
	}

	req.fields = settings.SearchableFields
	if len(query.RestrictSearchableFields) > 0 {
		// Keep the configured order: it drives field precedence
		restricted := make(map[string]bool, len(query.RestrictSearchableFields))
		for _, field := range query.RestrictSearchableFields {
			if !settings.IsSearchable(field) {
				return nil, internalErrors.NewValidationError("restrict_searchable_fields",
					fmt.Sprintf("field '%s' is not a searchable field of index '%s'", field, settings.Name))
			}
			restricted[field] = true
		}
		req.fields = make([]string, 0, len(restricted))
		for _, field := range settings.SearchableFields {
			if restricted[field] {
				req.fields = append(req.fields, field)
			}
		}
	}

	filters, err := filter.Parse(query.Filters, settings)
	if err != nil {
		return nil, err
	}
	req.filters = filters
	return req, nil
}

// Search runs query against the index. The search aborts with a timeout error
// as soon as ctx is done; partial results are never returned.
func (s *Service) Search(ctx context.Context, query services.SearchQuery) (services.SearchResult, error) {
	startTime := time.Now()

	req, err := s.prepare(query)
	if err != nil {
		return services.SearchResult{}, err
	}

	queryTokens := uniqueTokens(s.tokenizer.Tokenize(query.QueryString))

	var candidates []*candidate
	if len(queryTokens) == 0 {
		candidates, err = s.allDocuments(ctx)
	} else {
		candidates, err = s.gatherCandidates(ctx, req, queryTokens)
	}
	if err != nil {
		return services.SearchResult{}, s.wrapContextError(err, req)
	}

	candidates, err = s.applyFilters(ctx, candidates, req.filters)
	if err != nil {
		return services.SearchResult{}, s.wrapContextError(err, req)
	}

	rank(candidates, req.settings.RankingCriteria)
	candidates = distinct(candidates, req.settings.DistinctField)
	if err := ctx.Err(); err != nil {
		return services.SearchResult{}, s.wrapContextError(err, req)
	}

	total := len(candidates)
	start := (req.page - 1) * req.pageSize
	pageCandidates := []*candidate{}
	if start < total {
		end := start + req.pageSize
		if end > total {
			end = total
		}
		pageCandidates = candidates[start:end]
	}

	hits := make([]services.HitResult, 0, len(pageCandidates))
	for _, c := range pageCandidates {
		hits = append(hits, services.HitResult{
			Document:     projectFields(c.doc, query.RetrievableFields),
			FieldMatches: s.fieldMatches(c),
			Score:        c.score,
			Info: services.HitInfo{
				NumTypos:         c.numTypos,
				NumberExactWords: c.numExact,
			},
		})
	}

	return services.SearchResult{
		Hits:     hits,
		Total:    total,
		Page:     req.page,
		PageSize: req.pageSize,
		Took:     time.Since(startTime).Milliseconds(),
		QueryId:  uuid.New().String(),
	}, nil
}

func (s *Service) wrapContextError(err error, req *request) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return internalErrors.NewTimeoutError("search", req.settings.Name)
	}
	return err
}

// uniqueTokens drops repeated query tokens, keeping first occurrences.
func uniqueTokens(tokens []tokenizer.Token) []string {
	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t.Text] {
			seen[t.Text] = true
			unique = append(unique, t.Text)
		}
	}
	return unique
}

// allDocuments returns every document as a candidate, for empty queries.
func (s *Service) allDocuments(ctx context.Context) ([]*candidate, error) {
	ids := s.documentStore.IDs()
	candidates := make([]*candidate, 0, len(ids))
	for i, id := range ids {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if doc, ok := s.documentStore.Get(id); ok {
			candidates = append(candidates, newCandidate(id, doc))
		}
	}
	return candidates, nil
}

// tokenHits collects, for one query token, the best match per document and
// the index tokens that produced a match per document and field.
type tokenHits struct {
	best    map[uint32]tokenMatch
	matched map[uint32]map[string][]string
}

func (th *tokenHits) record(list index.PostingList, indexToken string, m tokenMatch) {
	for _, posting := range list {
		if current, ok := th.best[posting.DocID]; !ok || m.better(current) {
			th.best[posting.DocID] = m
		}
		fields := th.matched[posting.DocID]
		if fields == nil {
			fields = make(map[string][]string)
			th.matched[posting.DocID] = fields
		}
		fields[posting.Field] = append(fields[posting.Field], indexToken)
	}
}

// matchToken finds every document matching token exactly, by prefix or
// within its typo budget in any of the searched fields.
func (s *Service) matchToken(ctx context.Context, req *request, token string) (*tokenHits, error) {
	th := &tokenHits{best: make(map[uint32]tokenMatch), matched: make(map[uint32]map[string][]string)}

	for fieldRank, field := range req.fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		th.record(s.invertedIndex.Lookup(token, field), token, tokenMatch{kind: matchExact, fieldRank: fieldRank})

		if req.settings.PrefixSearchEnabled(field) {
			for _, tp := range s.invertedIndex.PrefixLookup(token, field) {
				if tp.Token == token {
					continue
				}
				th.record(tp.Postings, tp.Token, tokenMatch{kind: matchPrefix, fieldRank: fieldRank})
			}
		}

		typos, err := s.matcher.Expand(ctx, s.invertedIndex, token, field, req.settings)
		if err != nil {
			return nil, err
		}
		for _, typo := range typos {
			// Protected words never match through a typo
			if req.settings.IsNonTypoTolerantWord(typo.Term) {
				continue
			}
			th.record(s.invertedIndex.Lookup(typo.Term, field), typo.Term,
				tokenMatch{kind: matchTypo, typos: typo.Distance, fieldRank: fieldRank})
		}
	}
	return th, nil
}

// gatherCandidates returns the documents that match every query token.
func (s *Service) gatherCandidates(ctx context.Context, req *request, queryTokens []string) ([]*candidate, error) {
	perToken := make([]*tokenHits, len(queryTokens))
	for i, token := range queryTokens {
		th, err := s.matchToken(ctx, req, token)
		if err != nil {
			return nil, err
		}
		if len(th.best) == 0 {
			return []*candidate{}, nil
		}
		perToken[i] = th
	}

	// Intersect starting from the rarest token
	smallest := 0
	for i, th := range perToken {
		if len(th.best) < len(perToken[smallest].best) {
			smallest = i
		}
	}

	candidates := make([]*candidate, 0, len(perToken[smallest].best))
	best := make([]tokenMatch, len(perToken))
	for docID := range perToken[smallest].best {
		inAll := true
		for i, th := range perToken {
			m, ok := th.best[docID]
			if !ok {
				inAll = false
				break
			}
			best[i] = m
		}
		if !inAll {
			continue
		}
		doc, ok := s.documentStore.Get(docID)
		if !ok {
			// Postings of a document being replaced concurrently
			continue
		}
		c := newCandidate(docID, doc)
		c.summarize(best)
		for _, th := range perToken {
			for field, tokens := range th.matched[docID] {
				for _, t := range tokens {
					c.addMatchedToken(field, t)
				}
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Service) applyFilters(ctx context.Context, candidates []*candidate, expr *filter.Expression) ([]*candidate, error) {
	if expr.IsEmpty() {
		return candidates, nil
	}
	kept := candidates[:0]
	for i, c := range candidates {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ok, err := expr.Evaluate(c.doc)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// projectFields returns a copy of doc restricted to fields. The uuid is
// always kept. An empty field list returns doc unchanged.
func projectFields(doc model.Document, fields []string) model.Document {
	if len(fields) == 0 {
		return doc
	}
	projected := make(model.Document, len(fields)+1)
	if id, ok := doc[model.IDField]; ok {
		projected[model.IDField] = id
	}
	for _, field := range fields {
		if value, ok := doc[field]; ok {
			projected[field] = value
		}
	}
	return projected
}
