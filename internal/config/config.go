package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Trace     TraceConfig
}

type APIConfig struct {
	Addr       string
	PresignTTL time.Duration
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency     int
	MaxActiveMerges int
	LocalOutputDir  string
	MetricsAddr     string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DatabaseConfig struct {
	DSN string
}

type WebhookConfig struct {
	SigningSecret string
	Timeout       time.Duration
	MaxAttempts   int
}

type RateLimitConfig struct {
	Capacity     int
	Window       time.Duration
	UserIDHeader string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	defaultMergeSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:       env("PHOTOFRAME_API_ADDR", ":8080"),
			PresignTTL: envDuration("PHOTOFRAME_PRESIGN_TTL", 15*time.Minute),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNQ_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:     envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveMerges: envInt("WORKER_MAX_ACTIVE_MERGES", defaultMergeSlots),
			LocalOutputDir:  env("WORKER_LOCAL_OUTPUT_DIR", "./.photoframe-output"),
			MetricsAddr:     env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "photoframe-creations"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Webhook: WebhookConfig{
			SigningSecret: env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:       envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:   envInt("WEBHOOK_MAX_ATTEMPTS", 3),
		},
		RateLimit: RateLimitConfig{
			Capacity:     envInt("RATE_LIMIT_CAPACITY", 30),
			Window:       envDuration("RATE_LIMIT_WINDOW", time.Minute),
			UserIDHeader: env("RATE_LIMIT_USER_HEADER", "X-User-ID"),
		},
		Trace: TraceConfig{
			Exporter:     env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("TRACE_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("TRACE_OTLP_INSECURE", true),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
