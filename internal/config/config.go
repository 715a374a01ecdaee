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
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Classifier   ClassifierConfig
	Audit        AuditConfig
	Alerts       AlertConfig
	Tracing      TracingConfig
	Assignment   AssignmentConfig
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

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StoreConfig selects the ticket item store.
type StoreConfig struct {
	Backend string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AuthConfig defines bearer token parameters used to identify callers.
type AuthConfig struct {
	JWTSecret string
}

// NotificationConfig holds email fan-out settings.
type NotificationConfig struct {
	Enabled           bool
	EmailFrom         string
	ReplyTo           []string
	DefaultRecipients []string
	RecipientDomain   string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	Concurrency       int
	SendTimeout       time.Duration
	MaxPerDay         int
	SendRatePerSecond float64
	TicketURLBase     string
}

// ClassifierConfig configures automatic classification.
type ClassifierConfig struct {
	RulesFile   string
	NLPEndpoint string
	NLPTimeout  time.Duration
	Language    string
}

// AuditConfig configures the structured audit log.
type AuditConfig struct {
	Backend     string
	GroupPrefix string
	Source      string
}

// AlertConfig configures operational pub/sub alerts.
type AlertConfig struct {
	Enabled          bool
	Topic            string
	UrgencyThreshold int
}

// AssignmentConfig lists the agents eligible for automatic assignment.
type AssignmentConfig struct {
	Agents []string
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	sampleRatio, err := strconv.ParseFloat(getEnv("TRACING_SAMPLE_RATIO", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TRACING_SAMPLE_RATIO: %w", err)
	}
	sendRate, err := strconv.ParseFloat(getEnv("NOTIFY_SEND_RATE", "14"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_SEND_RATE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-pipeline"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "tp"),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 14),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Notification: NotificationConfig{
			Enabled:           getEnvAsBool("NOTIFY_ENABLED", true),
			EmailFrom:         getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			ReplyTo:           getEnvAsList("NOTIFY_REPLY_TO", nil),
			DefaultRecipients: getEnvAsList("NOTIFY_DEFAULT_RECIPIENTS", []string{"support@example.com"}),
			RecipientDomain:   getEnv("NOTIFY_RECIPIENT_DOMAIN", ""),
			SMTPHost:          os.Getenv("SMTP_HOST"),
			SMTPPort:          getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername:      os.Getenv("SMTP_USERNAME"),
			SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
			Concurrency:       getEnvAsInt("NOTIFY_CONCURRENCY", 4),
			SendTimeout:       getEnvAsDuration("NOTIFY_SEND_TIMEOUT", 10*time.Second),
			MaxPerDay:         getEnvAsInt("NOTIFY_MAX_PER_DAY", 50000),
			SendRatePerSecond: sendRate,
			TicketURLBase:     getEnv("NOTIFY_TICKET_URL_BASE", ""),
		},
		Classifier: ClassifierConfig{
			RulesFile:   os.Getenv("CLASSIFIER_RULES_FILE"),
			NLPEndpoint: os.Getenv("CLASSIFIER_NLP_ENDPOINT"),
			NLPTimeout:  getEnvAsDuration("CLASSIFIER_NLP_TIMEOUT", 5*time.Second),
			Language:    getEnv("CLASSIFIER_LANGUAGE", "de"),
		},
		Audit: AuditConfig{
			Backend:     strings.ToLower(getEnv("AUDIT_BACKEND", BackendMemory)),
			GroupPrefix: getEnv("AUDIT_GROUP_PREFIX", "/support/"),
			Source:      getEnv("AUDIT_SOURCE", "ticket-pipeline"),
		},
		Alerts: AlertConfig{
			Enabled:          getEnvAsBool("ALERTS_ENABLED", false),
			Topic:            getEnv("ALERTS_TOPIC", "support-alerts"),
			UrgencyThreshold: getEnvAsInt("ALERTS_URGENCY_THRESHOLD", 80),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "localhost:4317"),
			Insecure:    getEnvAsBool("TRACING_INSECURE", true),
			SampleRatio: sampleRatio,
		},
		Assignment: AssignmentConfig{
			Agents: getEnvAsList("ASSIGNMENT_AGENTS", nil),
		},
	}

	switch cfg.Store.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.Store.Backend)
	}
	if cfg.Store.Backend == BackendPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("STORE_BACKEND=postgres requires POSTGRES_DSN")
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
