package model

import "time"

// Search types reported by the analytics dashboard.
const (
	SearchTypeExact    = "exact_match"
	SearchTypeFuzzy    = "fuzzy_search"
	SearchTypeFiltered = "filtered"
	SearchTypeWildcard = "wildcard"
)

// SearchEvent represents a single search event for analytics tracking
type SearchEvent struct {
	QueryID      string                 `json:"query_id"`
	IndexName    string                 `json:"index_name"`
	Query        string                 `json:"query"`
	Filters      map[string]interface{} `json:"filters,omitempty"`
	SearchType   string                 `json:"search_type"` // "exact_match", "fuzzy_search", "filtered", "wildcard"
	ResponseTime time.Duration          `json:"response_time"`
	ResultCount  int                    `json:"result_count"`
	CacheHit     bool                   `json:"cache_hit"`
	Timestamp    time.Time              `json:"timestamp"`
}

// PopularSearch represents aggregated data for popular search terms
type PopularSearch struct {
	Query       string `json:"query"`
	SearchCount int    `json:"search_count"`
	TrendChange string `json:"trend_change,omitempty"` // "up", "down", "stable"
}

// IndexUsage represents search activity for a specific index
type IndexUsage struct {
	IndexName       string          `json:"index_name"`
	DocumentCount   int             `json:"document_count"`
	SearchCount     int             `json:"search_count"`
	AvgResponseTime int64           `json:"avg_response_time"` // in milliseconds
	PopularQueries  []PopularSearch `json:"popular_queries"`
}

// ResponseTimeDistribution represents response time distribution buckets
type ResponseTimeDistribution struct {
	Bucket0To25ms     int     `json:"bucket_0_25ms"`
	Bucket25To50ms    int     `json:"bucket_25_50ms"`
	Bucket50To100ms   int     `json:"bucket_50_100ms"`
	Bucket100msPlus   int     `json:"bucket_100ms_plus"`
	Percentage0To25   float64 `json:"percentage_0_25"`
	Percentage25To50  float64 `json:"percentage_25_50"`
	Percentage50To100 float64 `json:"percentage_50_100"`
	Percentage100Plus float64 `json:"percentage_100_plus"`
}

// SearchTypeStats represents statistics for different search types
type SearchTypeStats struct {
	ExactMatch  int `json:"exact_match"`
	FuzzySearch int `json:"fuzzy_search"`
	Filtered    int `json:"filtered"`
	Wildcard    int `json:"wildcard"`
}

// SearchPerformanceHourly represents hourly search performance data
type SearchPerformanceHourly struct {
	Hour            int   `json:"hour"`
	SearchCount     int   `json:"search_count"`
	AvgResponseTime int64 `json:"avg_response_time"` // in milliseconds
}

// SystemHealth represents process health metrics
type SystemHealth struct {
	MemoryUsage float64 `json:"memory_usage_percent"` // heap in use over memory obtained from the OS
	Goroutines  int     `json:"goroutines"`
	IndexHealth float64 `json:"index_health_percent"` // indexes whose stats could be read
}

// AnalyticsDashboard represents the complete analytics dashboard data
type AnalyticsDashboard struct {
	// Summary metrics, over the last 24 hours unless noted
	TotalSearches         int     `json:"total_searches"`
	SearchesChangePercent float64 `json:"searches_change_percent"` // against the previous 24 hours
	AvgResponseTime       int64   `json:"avg_response_time"`       // in milliseconds
	ResponseTimeChange    string  `json:"response_time_change"`
	ZeroResultSearches    int     `json:"zero_result_searches"`
	CacheHitRate          float64 `json:"cache_hit_rate"`
	TotalDocuments        int     `json:"total_documents"`
	ActiveIndexes         int     `json:"active_indexes"`

	// Detailed analytics
	SearchPerformance24h     []SearchPerformanceHourly `json:"search_performance_24h"`
	PopularSearches          []PopularSearch           `json:"popular_searches"` // last 7 days
	IndexUsage               []IndexUsage              `json:"index_usage"`      // last 7 days
	ResponseTimeDistribution ResponseTimeDistribution  `json:"response_time_distribution"`
	SearchTypes              SearchTypeStats           `json:"search_types"`
	SystemHealth             SystemHealth              `json:"system_health"`
}
