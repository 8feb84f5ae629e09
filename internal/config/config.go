package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	FileStore  FileStoreConfig  `mapstructure:"filestore"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Digest     DigestConfig     `mapstructure:"digest"`
	Strategies []StrategyConfig `mapstructure:"strategies"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`

	// BlockInterval bounds how long a consumer blocks waiting for a new
	// stream entry before re-checking for reclaimable pending work.
	BlockInterval time.Duration `mapstructure:"block_interval"`

	// VisibilityTimeout is the idle time after which an unacknowledged
	// entry becomes claimable again for redelivery.
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`

	// MaxDeliveries is the delivery count after which an entry is
	// dead-lettered instead of redelivered. Zero means redeliver forever.
	MaxDeliveries int64 `mapstructure:"max_deliveries"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type OpenSearchConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	IndexPrefix   string `mapstructure:"index_prefix"`
	Dimensions    int    `mapstructure:"dimensions"`
}

type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type FileStoreConfig struct {
	Root string `mapstructure:"root"`
}

type EmbeddingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type DigestConfig struct {
	// DefaultNamespace is used for uploads that do not name a namespace.
	DefaultNamespace string `mapstructure:"default_namespace"`

	// DefaultStrategies are applied to uploads that do not name strategies.
	DefaultStrategies []string `mapstructure:"default_strategies"`
}

// StrategyConfig declares one named ingestion strategy. All declared
// strategies are built and registered at startup, before any consumer runs.
type StrategyConfig struct {
	Name         string `mapstructure:"name"`
	Type         string `mapstructure:"type"`     // "vector" or "graph"
	Parser       string `mapstructure:"parser"`   // "loader" or "text"
	Splitter     string `mapstructure:"splitter"` // "recursive" or "markdown"
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	Embedding    bool   `mapstructure:"embedding"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.block_interval", "1s")
	v.SetDefault("redis.visibility_timeout", "30s")
	v.SetDefault("redis.max_deliveries", 5)
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.index_prefix", "digest")
	v.SetDefault("opensearch.dimensions", 1536)
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.url", "postgres://localhost:5432/digest")
	v.SetDefault("filestore.root", "/var/lib/digestd/files")
	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.base_url", "http://localhost:11434/v1")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("digest.default_namespace", "default")
	v.SetDefault("digest.default_strategies", []string{"standard"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/digestd")
	}

	// Environment variables override
	v.SetEnvPrefix("DIGESTD")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}

	return &cfg, nil
}

// DefaultStrategies returns the strategy set used when none are declared.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{
			Name:         "standard",
			Type:         "vector",
			Parser:       "loader",
			Splitter:     "recursive",
			ChunkSize:    1024,
			ChunkOverlap: 128,
			Embedding:    true,
		},
		{
			Name:         "tables",
			Type:         "vector",
			Parser:       "loader",
			Splitter:     "markdown",
			ChunkSize:    1024,
			ChunkOverlap: 128,
			Embedding:    true,
		},
		{
			Name:         "knowledge-graph",
			Type:         "graph",
			Parser:       "loader",
			Splitter:     "recursive",
			ChunkSize:    2048,
			ChunkOverlap: 0,
			Embedding:    false,
		},
	}
}
