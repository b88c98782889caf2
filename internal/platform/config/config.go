package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable through STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	BaseURI     string
	Environment string
	LogLevel    string

	// ExchangeTTL is the age after which an exchange is treated as expired on read.
	ExchangeTTL time.Duration
	// RecordTTL sets recordExpiresAt relative to createdAt; stores use it for eviction.
	RecordTTL time.Duration

	RelyingPartiesFile string
	SigningKeysFile    string

	StoreBackend  string
	Database      DatabaseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	SweepInterval time.Duration

	UpstreamTimeout time.Duration
	MaxBodyBytes    int64

	RateLimit RateLimitConfig
}

// DatabaseConfig configures the Postgres exchange store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the Redis exchange store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures exchange lifecycle event publication. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers string
	Topic   string
	Acks    string
}

// RateLimitConfig sets per-IP request budgets for each endpoint class within Window.
type RateLimitConfig struct {
	Enabled        bool
	Window         time.Duration
	Wallet         int
	RelyingParty   int
	Callback       int
	TrustedProxies []string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:               getEnv("VERIGATE_ADDR", ":8080"),
		BaseURI:            strings.TrimSuffix(getEnv("BASE_URI", "http://localhost:8080"), "/"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ExchangeTTL:        getDuration("EXCHANGE_TTL", 15*time.Minute),
		RecordTTL:          getDuration("EXCHANGE_RECORD_TTL", 24*time.Hour),
		RelyingPartiesFile: getEnv("RELYING_PARTIES_FILE", "config/relying-parties.yaml"),
		SigningKeysFile:    os.Getenv("SIGNING_KEYS_FILE"),
		StoreBackend:       getEnv("STORE_BACKEND", StoreMemory),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_EXCHANGE_TOPIC", "verigate.exchanges"),
			Acks:    getEnv("KAFKA_ACKS", "all"),
		},
		SweepInterval:   getDuration("SWEEP_INTERVAL", time.Minute),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		MaxBodyBytes:    int64(getInt("MAX_BODY_BYTES", 1<<20)),
		RateLimit: RateLimitConfig{
			Enabled:        getEnv("RATE_LIMIT_ENABLED", "true") != "false",
			Window:         getDuration("RATE_LIMIT_WINDOW", time.Minute),
			Wallet:         getInt("RATE_LIMIT_WALLET", 60),
			RelyingParty:   getInt("RATE_LIMIT_RELYING_PARTY", 120),
			Callback:       getInt("RATE_LIMIT_CALLBACK", 300),
			TrustedProxies: getList("TRUSTED_PROXIES"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
