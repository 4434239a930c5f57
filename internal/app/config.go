package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StorageDriver выбирает, где живёт состояние маркетплейса.
type StorageDriver string

const (
	// StorageDriverMemory — всё в памяти процесса, без сохранения.
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverFile — коллекции в памяти со snapshot в JSON-файлах.
	StorageDriverFile StorageDriver = "file"
	// StorageDriverRedis — коллекции в памяти со snapshot в Redis.
	StorageDriverRedis StorageDriver = "redis"
	// StorageDriverPostgres — все репозитории в PostgreSQL.
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	ServiceName string
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	SnapshotDir         string
	RedisURL            string
	RedisKeyPrefix      string
	PostgresDSN         string
	PostgresAutoMigrate bool
	PostgresMaxConns    int

	StrictTransitions bool
	JWTSecret         string
	TokenTTL          time.Duration

	KafkaBrokers  string
	KafkaClientID string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int
	OutboxMaxAge       time.Duration
	// OutboxEventTypes — публикуемые типы событий через запятую; пусто — все.
	OutboxEventTypes string

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	JaegerEndpoint  string
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		ServiceName: "watermate",
		GRPCAddr:    ":50051",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		SnapshotDir:         "data",
		RedisURL:            "redis://localhost:6379/0",
		RedisKeyPrefix:      "",
		PostgresAutoMigrate: true,
		PostgresMaxConns:    10,

		JWTSecret: "watermate-dev-secret",
		TokenTTL:  24 * time.Hour,

		KafkaClientID: "watermate",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  5,
		OutboxRetryDelay:   200 * time.Millisecond,
		OutboxMaxPending:   1000,
		OutboxMaxAge:       5 * time.Minute,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig читает .env (если есть) и переменные окружения WATERMATE_*
// поверх DefaultConfig. Некорректное значение заменяется значением по умолчанию
// и попадает в warnings.
func LoadConfig() (Config, []string) {
	_ = godotenv.Load()
	return configFromEnv(os.Getenv)
}

func configFromEnv(getenv func(string) string) (Config, []string) {
	cfg := DefaultConfig()
	env := &envReader{getenv: getenv}

	cfg.ServiceName = env.str("WATERMATE_SERVICE_NAME", cfg.ServiceName)
	cfg.GRPCAddr = env.str("WATERMATE_GRPC_ADDR", cfg.GRPCAddr)
	cfg.HTTPAddr = env.str("WATERMATE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = env.str("WATERMATE_METRICS_ADDR", cfg.MetricsAddr)

	cfg.StorageDriver = StorageDriver(strings.ToLower(env.str("WATERMATE_STORAGE", string(cfg.StorageDriver))))
	cfg.SnapshotDir = env.str("WATERMATE_SNAPSHOT_DIR", cfg.SnapshotDir)
	cfg.RedisURL = env.str("WATERMATE_REDIS_URL", cfg.RedisURL)
	cfg.RedisKeyPrefix = env.str("WATERMATE_REDIS_PREFIX", cfg.RedisKeyPrefix)
	cfg.PostgresDSN = env.str("WATERMATE_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = env.boolean("WATERMATE_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.PostgresMaxConns = env.integer("WATERMATE_POSTGRES_MAX_CONNS", cfg.PostgresMaxConns)

	cfg.StrictTransitions = env.boolean("WATERMATE_STRICT_TRANSITIONS", cfg.StrictTransitions)
	cfg.JWTSecret = env.str("WATERMATE_JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = env.duration("WATERMATE_TOKEN_TTL", cfg.TokenTTL)

	cfg.KafkaBrokers = env.str("WATERMATE_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaClientID = env.str("WATERMATE_KAFKA_CLIENT_ID", cfg.KafkaClientID)

	cfg.OutboxPollInterval = env.duration("WATERMATE_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = env.integer("WATERMATE_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = env.integer("WATERMATE_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = env.duration("WATERMATE_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.OutboxMaxPending = env.integer("WATERMATE_OUTBOX_MAX_PENDING", cfg.OutboxMaxPending)
	cfg.OutboxMaxAge = env.duration("WATERMATE_OUTBOX_MAX_AGE", cfg.OutboxMaxAge)
	cfg.OutboxEventTypes = env.str("WATERMATE_OUTBOX_EVENT_TYPES", cfg.OutboxEventTypes)

	cfg.IdempotencyTTL = env.duration("WATERMATE_IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.IdempotencyCleanupInterval = env.duration("WATERMATE_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = env.integer("WATERMATE_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	cfg.JaegerEndpoint = env.str("WATERMATE_JAEGER_ENDPOINT", cfg.JaegerEndpoint)
	cfg.ShutdownTimeout = env.duration("WATERMATE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	return cfg, env.warnings
}

// KafkaBrokerList разбирает список брокеров через запятую.
func (c Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// OutboxEventTypeList разбирает OutboxEventTypes.
func (c Config) OutboxEventTypeList() []string {
	return splitList(c.OutboxEventTypes)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type envReader struct {
	getenv   func(string) string
	warnings []string
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		e.warn(key, raw, "positive integer")
		return def
	}
	return v
}

func (e *envReader) boolean(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.warn(key, raw, "boolean")
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		e.warn(key, raw, "non-negative duration")
		return def
	}
	return v
}

func (e *envReader) warn(key, raw, want string) {
	e.warnings = append(e.warnings, fmt.Sprintf("%s=%q is not a valid %s, using default", key, raw, want))
}
