package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, assembled from the environment.
type Config struct {
	Server   Server
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Agent    AgentConfig
	Webhook  WebhookConfig
	Storage  StorageConfig
	Tx       TxConfig
	LogLevel string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ReplayTTL    time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AgentConfig struct {
	BaseURL          string
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

type WebhookConfig struct {
	Secret           string
	RequireSignature bool
}

// StorageConfig selects the document store. Backend is "local" or "gcs".
type StorageConfig struct {
	Backend   string
	LocalDir  string
	GCSBucket string
}

type TxConfig struct {
	Timeout time.Duration
}

// FromEnv builds the configuration from environment variables so main stays lean.
// Unset values fall back to development defaults.
func FromEnv() Config {
	jwtSigningKey := getenv("JWT_SIGNING_KEY", "")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Server: Server{
			Addr:          getenv("KYC_ADDR", ":8080"),
			JWTSigningKey: jwtSigningKey,
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getint("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getint("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getduration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ReplayTTL:    getduration("WEBHOOK_REPLAY_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getlist("KAFKA_BROKERS"),
			Topic:   getenv("KAFKA_LIFECYCLE_TOPIC", "kyc.lifecycle"),
		},
		Agent: AgentConfig{
			BaseURL:          getenv("AGENT_URL", "http://localhost:8000"),
			Timeout:          getduration("AGENT_TIMEOUT", 30*time.Second),
			FailureThreshold: getint("AGENT_BREAKER_FAILURES", 5),
			Cooldown:         getduration("AGENT_BREAKER_COOLDOWN", 30*time.Second),
		},
		Webhook: WebhookConfig{
			Secret:           os.Getenv("WEBHOOK_SECRET"),
			RequireSignature: getenv("WEBHOOK_REQUIRE_SIGNATURE", "true") != "false",
		},
		Storage: StorageConfig{
			Backend:   getenv("STORAGE_BACKEND", "local"),
			LocalDir:  getenv("STORAGE_LOCAL_DIR", "uploads"),
			GCSBucket: os.Getenv("GCS_BUCKET"),
		},
		Tx: TxConfig{
			Timeout: getduration("TX_TIMEOUT", 60*time.Second),
		},
		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Webhook.RequireSignature && c.Webhook.Secret == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required when WEBHOOK_REQUIRE_SIGNATURE is enabled"))
	}
	if c.Agent.Timeout >= c.Tx.Timeout {
		errs = append(errs, errors.New("AGENT_TIMEOUT must be shorter than TX_TIMEOUT"))
	}
	switch c.Storage.Backend {
	case "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs storage backend"))
		}
	default:
		errs = append(errs, errors.New("STORAGE_BACKEND must be local or gcs"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_LIFECYCLE_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getduration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func getlist(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
