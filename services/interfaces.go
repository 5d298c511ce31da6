package services

import (
	"context"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/model"
)

// HitInfo contains metadata about a search hit, like typo counts and exact matches.
// This will be embedded in HitResult.
type HitInfo struct {
	NumTypos         int `json:"num_typos"`          // Number of query tokens that matched via typo correction
	NumberExactWords int `json:"number_exact_words"` // Number of query tokens that matched a whole word exactly
}

// HitResult represents a single document in the search results,
// including the document itself and details about which query terms matched in which fields.
type HitResult struct {
	Document     model.Document      `json:"document"`
	FieldMatches map[string][]string `json:"field_matches"` // e.g., {"title": ["Lord", "Rings"]}, surface text as stored
	Score        float64             `json:"score"`         // The overall score for this hit
	Info         HitInfo             `json:"hit_info"`      // Contains metadata like typo counts and exact matches
}

type SearchResult struct {
	Hits     []HitResult `json:"hits"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Took     int64       `json:"took"`     // milliseconds
	QueryId  string      `json:"query_id"` // unique UUID for this search query
}

// SearchQuery is the body of POST /indexes/{name}/_search.
type SearchQuery struct {
	QueryString              string                 `json:"query"`
	Filters                  map[string]interface{} `json:"filters,omitempty"` // "field" or "field_<op>" -> value, ANDed
	Page                     int                    `json:"page,omitempty"`
	PageSize                 int                    `json:"page_size,omitempty"`
	RestrictSearchableFields []string               `json:"restrict_searchable_fields,omitempty"` // Optional: subset of searchable fields to search in
	RetrievableFields        []string               `json:"retrievable_fields,omitempty"`         // Optional: subset of document fields to return in results
}

// DocumentFailure reports one document of a batch that could not be stored.
type DocumentFailure struct {
	Position   int    `json:"position"` // zero-based position in the submitted batch
	DocumentID string `json:"document_id,omitempty"`
	Error      string `json:"error"`
}

// BatchResult summarizes a document batch. Failed documents don't prevent the
// rest of the batch from being applied.
type BatchResult struct {
	Indexed  int               `json:"indexed"`
	Failed   int               `json:"failed"`
	Failures []DocumentFailure `json:"failures,omitempty"`
}

// DocumentPage is one page of the documents of an index, in insertion order.
type DocumentPage struct {
	Documents []model.Document `json:"documents"`
	Total     int              `json:"total"`
	Page      int              `json:"page"`
	PageSize  int              `json:"page_size"`
}

// TypoSettings groups the typo thresholds reported by index stats.
type TypoSettings struct {
	MinWordSizeFor1Typo  int `json:"min_word_size_for_1_typo"`
	MinWordSizeFor2Typos int `json:"min_word_size_for_2_typos"`
}

// FieldSettings groups the query-time field settings reported by index stats.
type FieldSettings struct {
	FieldsWithoutPrefixSearch []string `json:"fields_without_prefix_search"`
	NoTypoToleranceFields     []string `json:"no_typo_tolerance_fields"`
	DistinctField             string   `json:"distinct_field"`
}

// IndexStats is the response of GET /indexes/{name}/stats.
type IndexStats struct {
	Name             string         `json:"name"`
	DocumentCount    int            `json:"document_count"`
	SearchableFields []string       `json:"searchable_fields"`
	FilterableFields []string       `json:"filterable_fields"`
	TypoSettings     TypoSettings   `json:"typo_settings"`
	FieldSettings    FieldSettings  `json:"field_settings"`
	TermCount        map[string]int `json:"term_count"` // distinct tokens per searchable field
}

// Indexer defines operations for adding data to an index
type Indexer interface {
	AddDocuments(ctx context.Context, docs []model.Document) (BatchResult, error)
	DeleteAllDocuments(ctx context.Context) error
	DeleteDocument(ctx context.Context, docID string) error
	GetDocument(docID string) (model.Document, error)
	ListDocuments(page, pageSize int) DocumentPage
}

// Searcher defines operations for querying an index
type Searcher interface {
	Search(ctx context.Context, query SearchQuery) (SearchResult, error)
}

// IndexManager manages the lifecycle of indices
type IndexManager interface {
	CreateIndex(settings config.IndexSettings) error
	GetIndex(name string) (IndexAccessor, error) // IndexAccessor combines Indexer and Searcher
	GetIndexSettings(name string) (config.IndexSettings, error)
	// UpdateIndexSettings applies the mutable subset of settings and returns a
	// warning when part of the update has no effect yet.
	UpdateIndexSettings(name string, update config.SettingsUpdate) (string, error)
	DeleteIndex(name string) error
	ListIndexes() []string
	GetIndexStats(name string) (IndexStats, error)
}

// AsyncIndexManager runs document operations as background jobs.
type AsyncIndexManager interface {
	AddDocumentsAsync(indexName string, docs []model.Document) (string, error) // Returns job ID
	DeleteAllDocumentsAsync(indexName string) (string, error)
	DeleteDocumentAsync(indexName, docID string) (string, error)
}

// JobManager defines operations for managing background jobs
type JobManager interface {
	GetJob(jobID string) (*model.Job, error)
	ListJobs(indexName string, status *model.JobStatus) []*model.Job
}

type IndexAccessor interface {
	Indexer
	Searcher
	Settings() config.IndexSettings
}
