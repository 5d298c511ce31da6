// Package analytics records search events and aggregates them into the
// dashboard served by GET /analytics. Events can also be shipped to Kafka
// and to a SQL table, which restores history after a restart.
package analytics

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gcbaptista/go-search-core/internal/logger"
	"github.com/gcbaptista/go-search-core/model"
	"github.com/gcbaptista/go-search-core/services"
)

const (
	defaultMaxEvents = 10000 // Keep last 10k events for performance
	popularLimit     = 5
)

// IndexCatalog is the part of the index manager the dashboard reads.
type IndexCatalog interface {
	ListIndexes() []string
	GetIndexStats(name string) (services.IndexStats, error)
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	MaxEvents int
	Collector *Collector
	Now       func() time.Time
}

// Service implements analytics tracking and reporting
type Service struct {
	mutex     sync.RWMutex
	events    []model.SearchEvent // oldest first
	maxEvents int
	catalog   IndexCatalog
	collector *Collector
	now       func() time.Time
}

// NewService creates a new analytics service
func NewService(catalog IndexCatalog, opts Options) *Service {
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = defaultMaxEvents
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		events:    make([]model.SearchEvent, 0),
		maxEvents: opts.MaxEvents,
		catalog:   catalog,
		collector: opts.Collector,
		now:       opts.Now,
	}
}

// Restore seeds the in-memory history from the SQL sink, if one is
// configured, with the events of the last week.
func (s *Service) Restore(ctx context.Context) error {
	if s.collector == nil {
		return nil
	}
	for _, sink := range s.collector.Sinks() {
		sqlSink, ok := sink.(*SQLSink)
		if !ok {
			continue
		}
		events, err := sqlSink.Since(ctx, s.now().Add(-7*24*time.Hour), s.maxEvents)
		if err != nil {
			return err
		}
		s.mutex.Lock()
		s.events = append(events, s.events...)
		s.trimLocked()
		s.mutex.Unlock()
		logger.WithComponent("analytics").Info("Restored search history", "events", len(events))
	}
	return nil
}

// ClassifySearch names the kind of a search for the dashboard.
func ClassifySearch(query string, filters map[string]interface{}, fuzzy bool) string {
	switch {
	case query == "":
		return model.SearchTypeWildcard
	case len(filters) > 0:
		return model.SearchTypeFiltered
	case fuzzy:
		return model.SearchTypeFuzzy
	default:
		return model.SearchTypeExact
	}
}

// TrackSearchEvent records a new search event
func (s *Service) TrackSearchEvent(event model.SearchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	s.mutex.Lock()
	s.events = append(s.events, event)
	s.trimLocked()
	s.mutex.Unlock()

	if s.collector != nil {
		s.collector.Track(event)
	}
}

func (s *Service) trimLocked() {
	// Keep only the latest events to prevent unbounded growth
	if len(s.events) > s.maxEvents {
		s.events = append([]model.SearchEvent(nil), s.events[len(s.events)-s.maxEvents:]...)
	}
}

// EventCount returns the number of events held in memory.
func (s *Service) EventCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.events)
}

// Ping checks every sink, keyed by sink name.
func (s *Service) Ping(ctx context.Context) map[string]error {
	results := make(map[string]error)
	if s.collector == nil {
		return results
	}
	for _, sink := range s.collector.Sinks() {
		results[sink.Name()] = sink.Ping(ctx)
	}
	return results
}

// GetDashboardData returns complete analytics dashboard data
func (s *Service) GetDashboardData() model.AnalyticsDashboard {
	s.mutex.RLock()
	events := s.events
	s.mutex.RUnlock()

	now := s.now()
	yesterday := now.Add(-24 * time.Hour)
	lastWeek := now.Add(-7 * 24 * time.Hour)

	// Filter events for different time periods
	last24hEvents := filterEventsByTimeRange(events, yesterday, now)
	prev24hEvents := filterEventsByTimeRange(events, yesterday.Add(-24*time.Hour), yesterday)
	lastWeekEvents := filterEventsByTimeRange(events, lastWeek, now)
	prevWeekEvents := filterEventsByTimeRange(events, lastWeek.Add(-7*24*time.Hour), lastWeek)

	usage, totalDocuments, health := s.getIndexUsage(lastWeekEvents)

	return model.AnalyticsDashboard{
		TotalSearches:            len(last24hEvents),
		SearchesChangePercent:    calculateChangePercent(len(last24hEvents), len(prev24hEvents)),
		AvgResponseTime:          calculateAvgResponseTime(last24hEvents),
		ResponseTimeChange:       calculateResponseTimeChange(last24hEvents, prev24hEvents),
		ZeroResultSearches:       countZeroResults(last24hEvents),
		CacheHitRate:             cacheHitRate(last24hEvents),
		TotalDocuments:           totalDocuments,
		ActiveIndexes:            len(usage),
		SearchPerformance24h:     getHourlyPerformance(last24hEvents, now),
		PopularSearches:          getPopularSearches(lastWeekEvents, prevWeekEvents),
		IndexUsage:               usage,
		ResponseTimeDistribution: getResponseTimeDistribution(last24hEvents),
		SearchTypes:              getSearchTypeStats(last24hEvents),
		SystemHealth:             getSystemHealth(health),
	}
}

// filterEventsByTimeRange returns events in [start, end)
func filterEventsByTimeRange(events []model.SearchEvent, start, end time.Time) []model.SearchEvent {
	var filtered []model.SearchEvent
	for _, event := range events {
		if !event.Timestamp.Before(start) && event.Timestamp.Before(end) {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// calculateChangePercent calculates percentage change between current and previous values
func calculateChangePercent(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(current-previous) / float64(previous) * 100.0
}

// calculateAvgResponseTime calculates average response time for events in milliseconds
func calculateAvgResponseTime(events []model.SearchEvent) int64 {
	if len(events) == 0 {
		return 0
	}

	var total time.Duration
	for _, event := range events {
		total += event.ResponseTime
	}
	return (total / time.Duration(len(events))).Milliseconds()
}

// calculateResponseTimeChange calculates response time change trend
func calculateResponseTimeChange(current, previous []model.SearchEvent) string {
	currentAvg := calculateAvgResponseTime(current)
	previousAvg := calculateAvgResponseTime(previous)
	return trend(float64(currentAvg), float64(previousAvg))
}

// trend compares two values with a 10% dead band.
func trend(current, previous float64) string {
	if previous == 0 {
		if current > 0 {
			return "up"
		}
		return "stable"
	}
	change := (current - previous) / previous
	switch {
	case change > 0.1:
		return "up"
	case change < -0.1:
		return "down"
	default:
		return "stable"
	}
}

func countZeroResults(events []model.SearchEvent) int {
	n := 0
	for _, event := range events {
		if event.ResultCount == 0 {
			n++
		}
	}
	return n
}

func cacheHitRate(events []model.SearchEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	hits := 0
	for _, event := range events {
		if event.CacheHit {
			hits++
		}
	}
	return float64(hits) / float64(len(events))
}

// getHourlyPerformance buckets the last 24 hours by hour of day
func getHourlyPerformance(events []model.SearchEvent, now time.Time) []model.SearchPerformanceHourly {
	hourlyData := make(map[int][]model.SearchEvent)
	for _, event := range events {
		hour := event.Timestamp.In(now.Location()).Hour()
		hourlyData[hour] = append(hourlyData[hour], event)
	}

	performance := make([]model.SearchPerformanceHourly, 0, 24)
	for hour := 0; hour < 24; hour++ {
		performance = append(performance, model.SearchPerformanceHourly{
			Hour:            hour,
			SearchCount:     len(hourlyData[hour]),
			AvgResponseTime: calculateAvgResponseTime(hourlyData[hour]),
		})
	}
	return performance
}

// countQueries counts non-empty queries.
func countQueries(events []model.SearchEvent) map[string]int {
	counts := make(map[string]int)
	for _, event := range events {
		if event.Query != "" {
			counts[event.Query]++
		}
	}
	return counts
}

// topQueries returns the most frequent queries, ties broken alphabetically.
func topQueries(current, previous map[string]int, limit int) []model.PopularSearch {
	popular := make([]model.PopularSearch, 0, len(current))
	for query, count := range current {
		popular = append(popular, model.PopularSearch{
			Query:       query,
			SearchCount: count,
			TrendChange: trend(float64(count), float64(previous[query])),
		})
	}
	sort.Slice(popular, func(i, j int) bool {
		if popular[i].SearchCount != popular[j].SearchCount {
			return popular[i].SearchCount > popular[j].SearchCount
		}
		return popular[i].Query < popular[j].Query
	})
	if len(popular) > limit {
		popular = popular[:limit]
	}
	return popular
}

// getPopularSearches returns the most popular search terms of the week with
// their trend against the week before
func getPopularSearches(events, previous []model.SearchEvent) []model.PopularSearch {
	return topQueries(countQueries(events), countQueries(previous), popularLimit)
}

// getIndexUsage returns usage statistics for each index, the total document
// count and the share of indexes whose stats could be read.
func (s *Service) getIndexUsage(events []model.SearchEvent) ([]model.IndexUsage, int, float64) {
	usage := make([]model.IndexUsage, 0)
	if s.catalog == nil {
		return usage, 0, 100
	}

	byIndex := make(map[string][]model.SearchEvent)
	for _, event := range events {
		byIndex[event.IndexName] = append(byIndex[event.IndexName], event)
	}

	indexes := s.catalog.ListIndexes()
	total, healthy := 0, 0
	for _, indexName := range indexes {
		documentCount := 0
		if stats, err := s.catalog.GetIndexStats(indexName); err == nil {
			documentCount = stats.DocumentCount
			healthy++
		}
		total += documentCount

		indexEvents := byIndex[indexName]
		usage = append(usage, model.IndexUsage{
			IndexName:       indexName,
			DocumentCount:   documentCount,
			SearchCount:     len(indexEvents),
			AvgResponseTime: calculateAvgResponseTime(indexEvents),
			PopularQueries:  topQueries(countQueries(indexEvents), nil, popularLimit),
		})
	}

	health := 100.0
	if len(indexes) > 0 {
		health = float64(healthy) / float64(len(indexes)) * 100
	}
	return usage, total, health
}

// getResponseTimeDistribution returns response time distribution
func getResponseTimeDistribution(events []model.SearchEvent) model.ResponseTimeDistribution {
	dist := model.ResponseTimeDistribution{}
	total := len(events)
	if total == 0 {
		return dist
	}

	for _, event := range events {
		ms := event.ResponseTime.Milliseconds()
		switch {
		case ms <= 25:
			dist.Bucket0To25ms++
		case ms <= 50:
			dist.Bucket25To50ms++
		case ms <= 100:
			dist.Bucket50To100ms++
		default:
			dist.Bucket100msPlus++
		}
	}

	dist.Percentage0To25 = float64(dist.Bucket0To25ms) / float64(total) * 100
	dist.Percentage25To50 = float64(dist.Bucket25To50ms) / float64(total) * 100
	dist.Percentage50To100 = float64(dist.Bucket50To100ms) / float64(total) * 100
	dist.Percentage100Plus = float64(dist.Bucket100msPlus) / float64(total) * 100
	return dist
}

// getSearchTypeStats returns statistics for different search types
func getSearchTypeStats(events []model.SearchEvent) model.SearchTypeStats {
	stats := model.SearchTypeStats{}
	for _, event := range events {
		switch event.SearchType {
		case model.SearchTypeExact:
			stats.ExactMatch++
		case model.SearchTypeFuzzy:
			stats.FuzzySearch++
		case model.SearchTypeFiltered:
			stats.Filtered++
		case model.SearchTypeWildcard:
			stats.Wildcard++
		}
	}
	return stats
}

// getSystemHealth returns current process health metrics
func getSystemHealth(indexHealth float64) model.SystemHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memoryUsage := 0.0
	if m.Sys > 0 {
		memoryUsage = float64(m.HeapInuse) / float64(m.Sys) * 100
	}
	return model.SystemHealth{
		MemoryUsage: memoryUsage,
		Goroutines:  runtime.NumGoroutine(),
		IndexHealth: indexHealth,
	}
}
