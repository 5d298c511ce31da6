package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from YAML with SE_* environment
// overrides applied on top.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Cache     CacheConfig     `yaml:"cache"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// StorageConfig selects where documents and settings are persisted.
// Engine is one of "bolt", "kv", "gob" or "memory".
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
	Engine  string `yaml:"engine"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	DefaultPageSize int           `yaml:"defaultPageSize"`
	MaxPageSize     int           `yaml:"maxPageSize"`
	PostingShards   int           `yaml:"postingShards"`
	IndexWorkers    int           `yaml:"indexWorkers"`
}

// TokenizerConfig optionally enables dictionary segmentation for scripts
// without word separators.
type TokenizerConfig struct {
	SegmenterDictionaries string `yaml:"segmenterDictionaries"`
}

// JobsConfig sizes the background job worker pool.
type JobsConfig struct {
	MaxWorkers int `yaml:"maxWorkers"`
}

// CacheConfig holds the optional Redis search-result cache settings.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	TTL      time.Duration `yaml:"ttl"`
}

// AnalyticsConfig controls where search events are shipped besides the
// in-memory dashboard aggregates.
type AnalyticsConfig struct {
	MaxEvents     int           `yaml:"maxEvents"`
	Kafka         KafkaConfig   `yaml:"kafka"`
	SQL           SQLConfig     `yaml:"sql"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	BatchSize     int           `yaml:"batchSize"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// SQLConfig selects a database/sql driver ("postgres" or "sqlite3") and DSN.
type SQLConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    64 << 20,
		},
		Storage: StorageConfig{
			DataDir: "./search_data",
			Engine:  "bolt",
		},
		Search: SearchConfig{
			Timeout:         5 * time.Second,
			DefaultPageSize: 10,
			MaxPageSize:     100,
			PostingShards:   16,
			IndexWorkers:    8,
		},
		Jobs: JobsConfig{
			MaxWorkers: 4,
		},
		Cache: CacheConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			TTL:      60 * time.Second,
		},
		Analytics: AnalyticsConfig{
			MaxEvents:     10000,
			FlushInterval: 5 * time.Second,
			BatchSize:     100,
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topic:   "search-events",
			},
			SQL: SQLConfig{
				Driver: "sqlite3",
				DSN:    "file:analytics.db?cache=shared",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "bolt", "kv", "gob", "memory":
	default:
		return fmt.Errorf("unknown storage engine %q (want bolt, kv, gob or memory)", c.Storage.Engine)
	}
	if c.Storage.Engine != "memory" && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.dataDir is required for the %s engine", c.Storage.Engine)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search.timeout must be positive")
	}
	if c.Search.DefaultPageSize <= 0 || c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("search page sizes are inconsistent (default %d, max %d)", c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	if c.Analytics.SQL.Enabled && c.Analytics.SQL.Driver != "postgres" && c.Analytics.SQL.Driver != "sqlite3" {
		return fmt.Errorf("unknown analytics sql driver %q", c.Analytics.SQL.Driver)
	}
	return nil
}

// applyEnvOverrides reads SE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SE_STORAGE_ENGINE"); v != "" {
		cfg.Storage.Engine = v
	}
	if v := os.Getenv("SE_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
	if v := os.Getenv("SE_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("SE_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SE_KAFKA_BROKERS"); v != "" {
		cfg.Analytics.Kafka.Brokers = strings.Split(v, ",")
		cfg.Analytics.Kafka.Enabled = true
	}
	if v := os.Getenv("SE_ANALYTICS_SQL_DRIVER"); v != "" {
		cfg.Analytics.SQL.Driver = v
		cfg.Analytics.SQL.Enabled = true
	}
	if v := os.Getenv("SE_ANALYTICS_SQL_DSN"); v != "" {
		cfg.Analytics.SQL.DSN = v
	}
	if v := os.Getenv("SE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
