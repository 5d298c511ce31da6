package engine

import (
	"time"

	"github.com/gcbaptista/go-search-core/internal/analytics"
	"github.com/gcbaptista/go-search-core/internal/metrics"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
)

// SearchObservation describes one finished search.
type SearchObservation struct {
	Index    string
	Query    services.SearchQuery
	Result   services.SearchResult
	CacheHit bool
	Took     time.Duration
	Err      error
}

// Observer is told about every search and every applied document batch.
// Implementations must not block.
type Observer interface {
	ObserveSearch(obs SearchObservation)
	ObserveBatch(index string, result services.BatchResult)
}

// MetricsObserver feeds the Prometheus collectors.
type MetricsObserver struct {
	Metrics *metrics.Metrics
}

func (m MetricsObserver) ObserveSearch(obs SearchObservation) {
	m.Metrics.ObserveSearch(obs.Index, obs.Took, obs.Result.Total, obs.CacheHit, obs.Err)
}

func (m MetricsObserver) ObserveBatch(index string, result services.BatchResult) {
	m.Metrics.ObserveBatch(index, result.Indexed, result.Failed)
}

// AnalyticsObserver records successful searches as analytics events.
type AnalyticsObserver struct {
	Analytics *analytics.Service
}

func (a AnalyticsObserver) ObserveSearch(obs SearchObservation) {
	if obs.Err != nil {
		return
	}
	fuzzy := false
	for _, hit := range obs.Result.Hits {
		if hit.Info.NumTypos > 0 {
			fuzzy = true
			break
		}
	}
	a.Analytics.TrackSearchEvent(model.SearchEvent{
		QueryID:      obs.Result.QueryId,
		IndexName:    obs.Index,
		Query:        obs.Query.QueryString,
		Filters:      obs.Query.Filters,
		SearchType:   analytics.ClassifySearch(obs.Query.QueryString, obs.Query.Filters, fuzzy),
		ResponseTime: obs.Took,
		ResultCount:  obs.Result.Total,
		CacheHit:     obs.CacheHit,
	})
}

func (a AnalyticsObserver) ObserveBatch(string, services.BatchResult) {}
