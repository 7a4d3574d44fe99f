package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
)

// Event buses.
const (
	BusNone  = "none"
	BusSNS   = "sns"
	BusSQS   = "sqs"
	BusKafka = "kafka"
)

// Secret names read when AWS_USE_SECRETS=true.
const (
	SecretStripeAPIKey        = "payments/STRIPE_API_KEY"
	SecretStripeWebhookSecret = "payments/STRIPE_WEBHOOK_SECRET"
	SecretJWTSecret           = "payments/JWT_SECRET"
	SecretDBCredentials       = "payments/DB_CREDENTIALS"
)

// SecretGetter resolves a named secret.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Config holds all configuration for the payment service.
type Config struct {
	Port         string
	Env          string
	ServiceName  string
	StoreBackend string

	MongoURI string
	MongoDB  string

	DynamoPaymentsTable string
	DynamoBookingsTable string
	DynamoClassesTable  string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL      string
	ClassCacheTTL time.Duration

	StripeSecretKey  string
	StripeWebhookKey string
	Currency         string

	JWTSecret string

	EventBus           string
	PaymentSNSTopicARN string
	PaymentQueueURL    string
	KafkaBrokers       []string
	KafkaPaymentTopic  string

	AllowedOrigins string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
	UseSecrets          bool
}

// AuditLogEnabled reports whether a Postgres audit log is configured.
func (c *Config) AuditLogEnabled() bool {
	return c.PostgresHost != ""
}

// PostgresDSN builds the gorm/pgx DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// LoadConfig reads configuration from .env (if present) and the environment.
// Secrets are overridden from secrets when AWS_USE_SECRETS=true and secrets is non-nil.
func LoadConfig(ctx context.Context, secrets SecretGetter) (*Config, error) {
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("CLASS_CACHE_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLASS_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8087"),
		Env:          getEnv("APP_ENV", "development"),
		ServiceName:  getEnv("SERVICE_NAME", "payment-service"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMongo)),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "fitness_app"),

		DynamoPaymentsTable: getEnv("DDB_TABLE_PAYMENTS", "Payments"),
		DynamoBookingsTable: getEnv("DDB_TABLE_BOOKINGS", "Bookings"),
		DynamoClassesTable:  getEnv("DDB_TABLE_CLASSES", "Classes"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		RedisURL:      os.Getenv("REDIS_URL"),
		ClassCacheTTL: ttl,

		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:         strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),

		JWTSecret: os.Getenv("JWT_SECRET"),

		EventBus:           strings.ToLower(getEnv("EVENT_BUS", BusNone)),
		PaymentSNSTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		PaymentQueueURL:    os.Getenv("PAYMENT_EVENTS_QUEUE_URL"),
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaPaymentTopic:  getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),

		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),

		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "FitnessApp"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/fitness-app/services"),
		UseSecrets:          os.Getenv("AWS_USE_SECRETS") == "true",
	}

	if cfg.UseSecrets && secrets != nil {
		applySecrets(ctx, cfg, secrets)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides values with whatever the secret store holds. Missing
// secrets keep the environment value.
func applySecrets(ctx context.Context, cfg *Config, sm SecretGetter) {
	if v, err := sm.GetSecret(ctx, SecretStripeAPIKey); err == nil && v != "" {
		cfg.StripeSecretKey = v
	}
	if v, err := sm.GetSecret(ctx, SecretStripeWebhookSecret); err == nil && v != "" {
		cfg.StripeWebhookKey = v
	}
	if v, err := sm.GetSecret(ctx, SecretJWTSecret); err == nil && v != "" {
		cfg.JWTSecret = v
	}
	if dbjson, err := sm.GetSecret(ctx, SecretDBCredentials); err == nil && dbjson != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(dbjson), &m); err == nil {
			if v := m["POSTGRES_USER"]; v != "" {
				cfg.PostgresUser = v
			}
			if v := m["POSTGRES_PASSWORD"]; v != "" {
				cfg.PostgresPassword = v
			}
			if v := m["POSTGRES_DB"]; v != "" {
				cfg.PostgresDB = v
			}
			if v := m["POSTGRES_HOST"]; v != "" {
				cfg.PostgresHost = v
			}
			if v := m["POSTGRES_PORT"]; v != "" {
				cfg.PostgresPort = v
			}
		}
	}
}

// Validate checks required values and enumerations.
func (c *Config) Validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_API_KEY")
	}
	if c.StripeWebhookKey == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if err := validator.New().Var(strings.ToUpper(c.Currency), "iso4217"); err != nil {
		return fmt.Errorf("invalid PAYMENT_CURRENCY %q", c.Currency)
	}

	switch c.StoreBackend {
	case BackendMongo, BackendDynamoDB:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.EventBus {
	case BusNone:
	case BusSNS:
		if c.PaymentSNSTopicARN == "" {
			return fmt.Errorf("PAYMENT_SNS_TOPIC_ARN is required when EVENT_BUS=sns")
		}
	case BusSQS:
		if c.PaymentQueueURL == "" {
			return fmt.Errorf("PAYMENT_EVENTS_QUEUE_URL is required when EVENT_BUS=sqs")
		}
	case BusKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
		}
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.EventBus)
	}

	if c.AuditLogEnabled() && (c.PostgresUser == "" || c.PostgresDB == "") {
		return fmt.Errorf("database config incomplete")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
