package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	AI           AIConfig
	Kafka        KafkaConfig
	Scheduling   SchedulingConfig
	Session      SessionConfig
	Notification NotificationConfig
	Roster       RosterConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN                  string
	MaxConns             int32
	MinConns             int32
	RunMigrations        bool
	MigrationsDir        string
	ConnMaxIdleSec       int32
	ConnMaxLifeSec       int32
	ApplicationName      string
	StatementTimeoutMs   int
	ConnectTimeoutSec    int
	HealthCheckPeriodSec int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AIConfig configures the text-generation provider.
type AIConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	MaxTokens           int
	TimeoutSeconds      int
	ConfidenceThreshold float64
}

// KafkaConfig configures ticket event publication. Empty brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SchedulingConfig tunes the delayed job queue and worker.
type SchedulingConfig struct {
	AssignmentDelaySeconds   int
	PollIntervalMillis       int
	VisibilityTimeoutSeconds int
	MaxAttempts              int
	BatchSize                int
}

// SessionConfig controls chat session storage and tokens.
type SessionConfig struct {
	TokenSecret     string
	TokenTTLMinutes int
	StoreTTLMinutes int
	HistoryLimit    int
}

// NotificationConfig holds outbound contact targets.
type NotificationConfig struct {
	SupportPhone    string
	WhatsAppNumber  string
	EmailFrom       string
	CountryCode     string
	WebhookURL      string
	EscalationHours string
}

// RosterConfig points to the technician roster file.
type RosterConfig struct {
	Path string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("AI_CONFIDENCE_THRESHOLD", "0.6"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_CONFIDENCE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "service-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                  os.Getenv("POSTGRES_DSN"),
			MaxConns:             int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:             int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:        getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:        getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:       int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:       int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ApplicationName:      getEnv("POSTGRES_APPLICATION_NAME", "service-desk"),
			StatementTimeoutMs:   getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_MS", 5000),
			ConnectTimeoutSec:    getEnvAsInt("POSTGRES_CONNECT_TIMEOUT_SECONDS", 5),
			HealthCheckPeriodSec: getEnvAsInt("POSTGRES_HEALTH_CHECK_SECONDS", 30),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		AI: AIConfig{
			APIKey:              os.Getenv("AI_API_KEY"),
			BaseURL:             getEnv("AI_BASE_URL", "https://api.anthropic.com/v1"),
			Model:               getEnv("AI_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens:           getEnvAsInt("AI_MAX_TOKENS", 1024),
			TimeoutSeconds:      getEnvAsInt("AI_TIMEOUT_SECONDS", 15),
			ConfidenceThreshold: threshold,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TICKET_TOPIC", "service-ticket-events"),
		},
		Scheduling: SchedulingConfig{
			AssignmentDelaySeconds:   getEnvAsInt("ASSIGNMENT_DELAY_SECONDS", 5),
			PollIntervalMillis:       getEnvAsInt("JOB_POLL_INTERVAL_MILLIS", 1000),
			VisibilityTimeoutSeconds: getEnvAsInt("JOB_VISIBILITY_TIMEOUT_SECONDS", 60),
			MaxAttempts:              getEnvAsInt("JOB_MAX_ATTEMPTS", 5),
			BatchSize:                getEnvAsInt("JOB_BATCH_SIZE", 20),
		},
		Session: SessionConfig{
			TokenSecret:     getEnv("SESSION_TOKEN_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("SESSION_TOKEN_TTL_MINUTES", 120),
			StoreTTLMinutes: getEnvAsInt("SESSION_STORE_TTL_MINUTES", 120),
			HistoryLimit:    getEnvAsInt("SESSION_HISTORY_LIMIT", 20),
		},
		Notification: NotificationConfig{
			SupportPhone:    getEnv("SUPPORT_PHONE", "9544654402"),
			WhatsAppNumber:  getEnv("SUPPORT_WHATSAPP", "9544654402"),
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			CountryCode:     getEnv("SUPPORT_COUNTRY_CODE", "91"),
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			EscalationHours: getEnv("SUPPORT_HOURS", "9 AM - 7 PM"),
		},
		Roster: RosterConfig{
			Path: getEnv("TECHNICIAN_ROSTER_PATH", "technicians.yaml"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the deadline applied to each AI call.
func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// AssignmentDelay returns how long after creation auto-assignment fires.
func (s SchedulingConfig) AssignmentDelay() time.Duration {
	if s.AssignmentDelaySeconds < 0 {
		return 0
	}
	return time.Duration(s.AssignmentDelaySeconds) * time.Second
}

// PollInterval returns the worker polling cadence.
func (s SchedulingConfig) PollInterval() time.Duration {
	if s.PollIntervalMillis <= 0 {
		return time.Second
	}
	return time.Duration(s.PollIntervalMillis) * time.Millisecond
}

// VisibilityTimeout returns how long a claimed job stays invisible before being reaped.
func (s SchedulingConfig) VisibilityTimeout() time.Duration {
	if s.VisibilityTimeoutSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.VisibilityTimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued session tokens.
func (s SessionConfig) TokenTTL() time.Duration {
	if s.TokenTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(s.TokenTTLMinutes) * time.Minute
}

// StoreTTL returns how long an idle conversation context is retained.
func (s SessionConfig) StoreTTL() time.Duration {
	if s.StoreTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(s.StoreTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
