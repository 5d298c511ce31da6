package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gcbaptista/go-search-core/internal/logger"
	"github.com/gcbaptista/go-search-core/model"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = 2 * time.Second
	sinkWriteTimeout     = 5 * time.Second
)

// Sink receives batches of search events, e.g. a Kafka topic or a SQL table.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []model.SearchEvent) error
	// Ping reports whether the sink is reachable, for health checks.
	Ping(ctx context.Context) error
	Close() error
}

// CollectorOptions sizes a Collector. Zero values select defaults.
type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers search events and ships them to its sinks in batches,
// off the request path. Events are dropped, not blocked on, when the buffer
// is full.
type Collector struct {
	sinks    []Sink
	eventCh  chan model.SearchEvent
	batch    int
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewCollector creates a Collector for the given sinks. Call Start to begin
// shipping events.
func NewCollector(sinks []Sink, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	return &Collector{
		sinks:    sinks,
		eventCh:  make(chan model.SearchEvent, opts.BufferSize),
		batch:    opts.BatchSize,
		interval: opts.FlushInterval,
		logger:   logger.WithComponent("analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the shipping loop. It stops when ctx is done or on Close,
// flushing what is buffered either way.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		pending := make([]model.SearchEvent, 0, c.batch)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(pending)
					return
				}
				pending = append(pending, event)
				if len(pending) >= c.batch {
					c.flush(pending)
					pending = pending[:0]
				}
			case <-ticker.C:
				c.flush(pending)
				pending = pending[:0]
			case <-ctx.Done():
				c.flush(c.drainRemaining(pending))
				return
			}
		}
	}()
	c.logger.Info("Analytics collector started", "buffer_size", cap(c.eventCh), "sinks", len(c.sinks))
}

// Track queues an event for shipping.
func (c *Collector) Track(event model.SearchEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("Analytics event dropped (buffer full)")
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Sinks returns the sinks events are shipped to.
func (c *Collector) Sinks() []Sink {
	return c.sinks
}

// Close flushes buffered events and closes every sink.
func (c *Collector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	close(c.eventCh)
	c.mu.Unlock()

	if started {
		<-c.done
	}

	var firstErr error
	for _, sink := range c.sinks {
		if err := sink.Close(); err != nil {
			c.logger.Error("Failed to close analytics sink", "sink", sink.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Collector) drainRemaining(pending []model.SearchEvent) []model.SearchEvent {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return pending
			}
			pending = append(pending, event)
		default:
			return pending
		}
	}
}

func (c *Collector) flush(events []model.SearchEvent) {
	if len(events) == 0 {
		return
	}
	for _, sink := range c.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
		if err := sink.Write(ctx, events); err != nil {
			c.logger.Error("Failed to ship analytics events", "sink", sink.Name(), "count", len(events), "error", err)
		}
		cancel()
	}
}
