package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-core/model"
)

type recordingSink struct {
	mu       sync.Mutex
	batches  [][]model.SearchEvent
	writeErr error
	closed   bool
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Write(_ context.Context, events []model.SearchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]model.SearchEvent(nil), events...))
	return r.writeErr
}

func (r *recordingSink) Ping(context.Context) error { return nil }

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSink) events() []model.SearchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.SearchEvent
	for _, batch := range r.batches {
		all = append(all, batch...)
	}
	return all
}

func (r *recordingSink) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestCollectorBatchesBySize(t *testing.T) {
	sink := &recordingSink{}
	collector := NewCollector([]Sink{sink}, CollectorOptions{BatchSize: 2, FlushInterval: time.Hour})
	collector.Start(context.Background())

	for _, q := range []string{"a", "b", "c", "d"} {
		collector.Track(model.SearchEvent{Query: q})
	}
	require.Eventually(t, func() bool { return sink.batchCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, collector.Close())
	assert.True(t, sink.closed)
	assert.Equal(t, 2, sink.batchCount(), "nothing left to flush on close")

	var queries []string
	for _, e := range sink.events() {
		queries = append(queries, e.Query)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, queries)
}

func TestCollectorFlushesOnTicker(t *testing.T) {
	sink := &recordingSink{}
	collector := NewCollector([]Sink{sink}, CollectorOptions{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	collector.Start(context.Background())
	defer collector.Close()

	collector.Track(model.SearchEvent{Query: "lonely"})
	require.Eventually(t, func() bool { return len(sink.events()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorFlushesOnClose(t *testing.T) {
	sink := &recordingSink{}
	collector := NewCollector([]Sink{sink}, CollectorOptions{BatchSize: 100, FlushInterval: time.Hour})
	collector.Start(context.Background())

	collector.Track(model.SearchEvent{Query: "a"})
	collector.Track(model.SearchEvent{Query: "b"})
	require.NoError(t, collector.Close())

	assert.Len(t, sink.events(), 2)

	// Tracking after close is a no-op
	collector.Track(model.SearchEvent{Query: "late"})
	assert.Len(t, sink.events(), 2)
	assert.NoError(t, collector.Close())
}

func TestCollectorFlushesOnContextDone(t *testing.T) {
	sink := &recordingSink{}
	collector := NewCollector([]Sink{sink}, CollectorOptions{BatchSize: 100, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	collector.Track(model.SearchEvent{Query: "queued before start"})
	collector.Start(ctx)
	cancel()

	require.NoError(t, collector.Close())
	assert.Len(t, sink.events(), 1)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	collector := NewCollector([]Sink{sink}, CollectorOptions{BufferSize: 2})

	for i := 0; i < 5; i++ {
		collector.Track(model.SearchEvent{Query: "q"})
	}
	assert.Equal(t, int64(3), collector.Dropped())
	require.NoError(t, collector.Close())
}

func TestCollectorSurvivesSinkErrors(t *testing.T) {
	failing := &recordingSink{writeErr: errors.New("broker down")}
	healthy := &recordingSink{}
	collector := NewCollector([]Sink{failing, healthy}, CollectorOptions{BatchSize: 1, FlushInterval: time.Hour})
	collector.Start(context.Background())

	collector.Track(model.SearchEvent{Query: "a"})
	collector.Track(model.SearchEvent{Query: "b"})
	require.NoError(t, collector.Close())

	assert.Len(t, failing.events(), 2)
	assert.Len(t, healthy.events(), 2)
}
