package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/yelpclone/directory/pkg/config"
	"github.com/yelpclone/directory/pkg/database"
	"github.com/yelpclone/directory/pkg/middleware"
	"github.com/yelpclone/directory/pkg/tracing"

	"github.com/yelpclone/directory/internal/search"
)

// Storage and session drivers.
const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	SessionRedis  = "redis"
	SessionMemory = "memory"

	SearchNone          = "none"
	SearchMemory        = "memory"
	SearchElasticsearch = "elasticsearch"
)

// ServiceName identifies the service in logs, metrics and traces.
const ServiceName = "directory"

// Config holds all configuration for the directory service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort          int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	SecureCookies     bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	CORSAllowedOrigin []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"mongo"`

	// MongoDB
	MongoURI         string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	MongoDB          string `env:"MONGO_DB" envDefault:"directory"`
	MongoMaxPoolSize uint64 `env:"MONGO_MAX_POOL_SIZE" envDefault:"50"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"directory"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"directory"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"directory"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Chat sessions
	SessionDriver string        `env:"SESSION_DRIVER" envDefault:"redis"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Kafka
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ReconcilerEnabled bool     `env:"RECONCILER_ENABLED" envDefault:"false"`

	// Chat completion API
	ChatAPIKey       string        `env:"CHAT_API_KEY"`
	ChatBaseURL      string        `env:"CHAT_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ChatModel        string        `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	ChatTemperature  float64       `env:"CHAT_TEMPERATURE" envDefault:"0.7"`
	ChatTimeout      time.Duration `env:"CHAT_TIMEOUT" envDefault:"30s"`
	ChatHistoryLimit int           `env:"CHAT_HISTORY_LIMIT" envDefault:"50"`
	ChatMaxRetries   int           `env:"CHAT_MAX_RETRIES" envDefault:"2"`

	// Per-session throttle on POST /chat. Zero RPS disables it.
	ChatRateLimitRPS   float64 `env:"CHAT_RATE_LIMIT_RPS" envDefault:"0.5"`
	ChatRateLimitBurst int     `env:"CHAT_RATE_LIMIT_BURST" envDefault:"5"`

	// Search projection
	SearchDriver          string   `env:"SEARCH_DRIVER" envDefault:"memory"`
	SearchBackfillOnStart bool     `env:"SEARCH_BACKFILL_ON_START" envDefault:"true"`
	ElasticsearchURLs     []string `env:"ELASTICSEARCH_URLS" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchUsername string   `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string   `env:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchIndex    string   `env:"ELASTICSEARCH_INDEX" envDefault:"directory_businesses"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from the environment, after an optional .env
// file in the working directory.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, ".env"); err != nil {
		return nil, fmt.Errorf("load directory config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{StorageMongo, StoragePostgres, StorageMemory}, c.StorageDriver) {
		return fmt.Errorf("STORAGE_DRIVER must be one of mongo, postgres, memory, got %q", c.StorageDriver)
	}
	if !slices.Contains([]string{SessionRedis, SessionMemory}, c.SessionDriver) {
		return fmt.Errorf("SESSION_DRIVER must be one of redis, memory, got %q", c.SessionDriver)
	}
	switch c.StorageDriver {
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if c.MongoDB == "" {
			return fmt.Errorf("MONGO_DB is required")
		}
	case StoragePostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	}
	if c.SessionDriver == SessionRedis && c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.ReconcilerEnabled && !c.KafkaEnabled {
		return fmt.Errorf("RECONCILER_ENABLED requires KAFKA_ENABLED")
	}
	if c.ChatBaseURL == "" {
		return fmt.Errorf("CHAT_BASE_URL is required")
	}
	if c.ChatTemperature < 0 || c.ChatTemperature > 2 {
		return fmt.Errorf("CHAT_TEMPERATURE must be between 0 and 2, got %f", c.ChatTemperature)
	}
	if c.ChatTimeout <= 0 {
		return fmt.Errorf("CHAT_TIMEOUT must be positive, got %s", c.ChatTimeout)
	}
	if c.ChatHistoryLimit < 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must not be negative, got %d", c.ChatHistoryLimit)
	}
	if c.ChatRateLimitRPS < 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT_RPS must not be negative, got %f", c.ChatRateLimitRPS)
	}
	if c.ChatRateLimitRPS > 0 && c.ChatRateLimitBurst < 1 {
		return fmt.Errorf("CHAT_RATE_LIMIT_BURST must be at least 1, got %d", c.ChatRateLimitBurst)
	}
	if !slices.Contains([]string{SearchNone, SearchMemory, SearchElasticsearch}, c.SearchDriver) {
		return fmt.Errorf("SEARCH_DRIVER must be one of none, memory, elasticsearch, got %q", c.SearchDriver)
	}
	if c.SearchDriver == SearchElasticsearch && len(c.ElasticsearchURLs) == 0 {
		return fmt.Errorf("ELASTICSEARCH_URLS is required when SEARCH_DRIVER is elasticsearch")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Postgres returns the connection settings for the PostgreSQL pool.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Mongo returns the connection settings for the MongoDB client.
func (c *Config) Mongo() database.MongoConfig {
	mc := database.DefaultMongoConfig()
	mc.URI = c.MongoURI
	mc.Database = c.MongoDB
	mc.MaxPoolSize = c.MongoMaxPoolSize
	return mc
}

// Redis returns the connection settings for the Redis client.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(ServiceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}

// CORS returns the CORS settings. Credentials are allowed so browsers send
// the session cookie.
func (c *Config) CORS() middleware.CORSConfig {
	cc := middleware.DefaultCORSConfig()
	cc.AllowedOrigins = c.CORSAllowedOrigin
	cc.AllowCredentials = true
	cc.Environment = c.Environment
	return cc
}

// ChatRateLimit returns the throttle applied to POST /chat.
func (c *Config) ChatRateLimit() middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	rl.RPS = c.ChatRateLimitRPS
	rl.Burst = c.ChatRateLimitBurst
	return rl
}

// Elasticsearch returns the connection settings of the search cluster.
func (c *Config) Elasticsearch() search.ElasticsearchConfig {
	return search.ElasticsearchConfig{
		Addresses: c.ElasticsearchURLs,
		Username:  c.ElasticsearchUsername,
		Password:  c.ElasticsearchPassword,
		Index:     c.ElasticsearchIndex,
	}
}

// SlowQueryThreshold returns the slow query threshold as a duration.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
