package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-core/api"
	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/internal/analytics"
	"github.com/gcbaptista/go-search-core/internal/cache"
	"github.com/gcbaptista/go-search-core/internal/engine"
	"github.com/gcbaptista/go-search-core/internal/jobs"
	"github.com/gcbaptista/go-search-core/internal/logger"
	"github.com/gcbaptista/go-search-core/internal/metrics"
	"github.com/gcbaptista/go-search-core/internal/tokenizer"
)

const version = "1.0.0"

func main() {
	var (
		help        = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to a YAML configuration file")
		port        = flag.Int("port", 0, "Port to run the server on (overrides the config file)")
		dataDir     = flag.String("data-dir", "", "Directory to store search data (overrides the config file)")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Go Search Core - search and indexing engine with typo tolerance\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s                              # Start server on default port 8080\n", os.Args[0])
		fmt.Printf("  %s -config config.yaml          # Load settings from a file\n", os.Args[0])
		fmt.Printf("  %s -port 9000 -data-dir /tmp/s  # Override port and data directory\n", os.Args[0])
		return
	}
	if *showVersion {
		fmt.Printf("Go Search Core v%s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.WithComponent("main")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var promMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		promMetrics = metrics.New()
	}

	opts := engine.OptionsFromConfig(cfg)

	if cfg.Tokenizer.SegmenterDictionaries != "" {
		tok, err := tokenizer.NewWithDictionary(cfg.Tokenizer.SegmenterDictionaries)
		if err != nil {
			return fmt.Errorf("loading segmenter dictionaries: %w", err)
		}
		opts.Tokenizer = tok
	}

	var queryCache *cache.QueryCache
	if cfg.Cache.Enabled {
		backend, err := cache.NewRedisBackend(cfg.Cache)
		if err != nil {
			// Searches still work without the cache
			log.Warn("Search cache disabled", "addr", cfg.Cache.Addr, "error", err)
		} else {
			queryCache = cache.New(backend, cfg.Cache.TTL)
			defer queryCache.Close()
			opts.Cache = queryCache
			log.Info("Search cache enabled", "addr", cfg.Cache.Addr)
		}
	}

	jobManager := jobs.NewManager(cfg.Jobs.MaxWorkers)
	if promMetrics != nil {
		jobManager.SetObserver(promMetrics)
	}
	jobManager.Start()
	opts.JobManager = jobManager

	log.Info("Opening data directory", "data_dir", cfg.Storage.DataDir, "storage", cfg.Storage.Engine)
	searchEngine, err := engine.NewEngine(opts)
	if err != nil {
		jobManager.Stop()
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		// Running jobs finish before their indexes close
		jobManager.Stop()
		if err := searchEngine.Close(); err != nil {
			log.Error("Failed to close engine", "error", err)
		}
	}()

	collector := newCollector(ctx, cfg, log)
	if collector != nil {
		defer collector.Close()
		if promMetrics != nil {
			promMetrics.RegisterAnalyticsDropped(collector.Dropped)
		}
	}
	analyticsService := analytics.NewService(searchEngine, analytics.Options{
		MaxEvents: cfg.Analytics.MaxEvents,
		Collector: collector,
	})
	if err := analyticsService.Restore(ctx); err != nil {
		log.Warn("Failed to restore search history", "error", err)
	}

	searchEngine.AddObserver(engine.AnalyticsObserver{Analytics: analyticsService})
	if promMetrics != nil {
		searchEngine.AddObserver(engine.MetricsObserver{Metrics: promMetrics})
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(searchEngine, api.Options{
		Analytics:    analyticsService,
		Metrics:      promMetrics,
		Cache:        queryCache,
		DataDir:      cfg.Storage.DataDir,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", server.Addr, "indexes", len(searchEngine.ListIndexes()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// newCollector opens the configured analytics sinks. It returns nil when
// none is enabled or reachable.
func newCollector(ctx context.Context, cfg *config.Config, log *slog.Logger) *analytics.Collector {
	var sinks []analytics.Sink

	if cfg.Analytics.Kafka.Enabled {
		sink, err := analytics.NewKafkaSink(cfg.Analytics.Kafka.Brokers, cfg.Analytics.Kafka.Topic)
		if err != nil {
			log.Warn("Kafka analytics sink disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.Analytics.SQL.Enabled {
		sink, err := analytics.OpenSQLSink(ctx, cfg.Analytics.SQL.Driver, cfg.Analytics.SQL.DSN)
		if err != nil {
			log.Warn("SQL analytics sink disabled", "driver", cfg.Analytics.SQL.Driver, "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if len(sinks) == 0 {
		return nil
	}

	collector := analytics.NewCollector(sinks, analytics.CollectorOptions{
		BufferSize:    cfg.Analytics.MaxEvents,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
	})
	collector.Start(ctx)
	return collector
}
