// Package config loads and validates the tool's configuration from YAML files
// with environment-variable overrides. One Config value is built per
// invocation and passed explicitly to the build and query entry points.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Query     QueryConfig     `yaml:"query"`
	Documents DocumentsConfig `yaml:"documents"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig controls structured logging level, output format and
// destination. An empty File means stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// IndexerConfig controls where the corpus is read from, where the index is
// persisted and which storage policy writes it.
type IndexerConfig struct {
	DatasetPath string `yaml:"datasetPath"`
	IndexPath   string `yaml:"indexPath"`
	Codec       string `yaml:"codec"`
	Workers     int    `yaml:"workers"`
}

// QueryConfig controls how query files are decoded and which storage policy
// reads the index. Codec "auto" sniffs the file header.
type QueryConfig struct {
	Encoding string `yaml:"encoding"`
	Codec    string `yaml:"codec"`
}

// DocumentsConfig selects the document source: a tab-separated file or a
// PostgreSQL table.
type DocumentsConfig struct {
	Source string `yaml:"source"`
	Table  string `yaml:"table"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`

	// Consecutive failures before the cache stops calling Redis, and how
	// long it stays off before probing again.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// KafkaConfig holds Kafka broker and topic settings for build notifications.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// Codec, encoding and source names. The storage and loader packages reuse
// these values.
const (
	CodecBinary = "binary"
	CodecJSON   = "json"
	CodecStruct = "struct"
	CodecAuto   = "auto"

	EncodingUTF8   = "utf8"
	EncodingCP1251 = "cp1251"

	SourceFile     = "file"
	SourcePostgres = "postgres"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: config file %s: %w", apperrors.ErrInputNotFound, path, err)
			}
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %w", apperrors.ErrInvalidInput, path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Indexer: IndexerConfig{
			DatasetPath: "resources/wikipedia.sample",
			IndexPath:   "resources/inverted.index",
			Codec:       CodecBinary,
			Workers:     1,
		},
		Query: QueryConfig{
			Encoding: EncodingUTF8,
			Codec:    CodecAuto,
		},
		Documents: DocumentsConfig{
			Source: SourceFile,
			Table:  "documents",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "invindex",
			User:            "invindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			PoolSize:         10,
			CacheTTL:         10 * time.Minute,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Metrics: MetricsConfig{
			Textfile: "invindex.prom",
		},
	}
}

// Validate reports the first setting that no component can act on.
func (c *Config) Validate() error {
	switch c.Indexer.Codec {
	case CodecBinary, CodecJSON, CodecStruct:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown indexer codec %q", c.Indexer.Codec)
	}
	switch c.Query.Codec {
	case CodecBinary, CodecJSON, CodecStruct, CodecAuto:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown query codec %q", c.Query.Codec)
	}
	switch c.Query.Encoding {
	case EncodingUTF8, EncodingCP1251:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown query encoding %q", c.Query.Encoding)
	}
	switch c.Documents.Source {
	case SourceFile:
	case SourcePostgres:
		if !identifierRe.MatchString(c.Documents.Table) {
			return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "invalid documents table %q", c.Documents.Table)
		}
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown document source %q", c.Documents.Source)
	}
	if c.Indexer.Workers < 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "workers must not be negative, got %d", c.Indexer.Workers)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "kafka enabled without brokers")
	}
	return nil
}

// applyEnvOverrides reads INVINDEX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INVINDEX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INVINDEX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("INVINDEX_LOGGING_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("INVINDEX_DATASET_PATH"); v != "" {
		cfg.Indexer.DatasetPath = v
	}
	if v := os.Getenv("INVINDEX_INDEX_PATH"); v != "" {
		cfg.Indexer.IndexPath = v
	}
	if v := os.Getenv("INVINDEX_CODEC"); v != "" {
		cfg.Indexer.Codec = v
	}
	if v := os.Getenv("INVINDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("INVINDEX_QUERY_ENCODING"); v != "" {
		cfg.Query.Encoding = v
	}
	if v := os.Getenv("INVINDEX_DOCUMENTS_SOURCE"); v != "" {
		cfg.Documents.Source = v
	}
	if v := os.Getenv("INVINDEX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("INVINDEX_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("INVINDEX_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("INVINDEX_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("INVINDEX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("INVINDEX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("INVINDEX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("INVINDEX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("INVINDEX_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
		cfg.Metrics.Enabled = true
	}
}
