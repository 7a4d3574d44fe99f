package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSecrets struct {
	values map[string]string
}

func (m *mockSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := m.values[name]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func setRequired(t *testing.T) {
	t.Setenv("STRIPE_API_KEY", "sk_test_env")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_env")
	t.Setenv("JWT_SECRET", "jwt_env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_HOST", "")

	cfg, err := LoadConfig(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "8087", cfg.Port)
	assert.Equal(t, BackendMongo, cfg.StoreBackend)
	assert.Equal(t, "fitness_app", cfg.MongoDB)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, BusNone, cfg.EventBus)
	assert.Equal(t, "payment-events", cfg.KafkaPaymentTopic)
	assert.Equal(t, 10*time.Minute, cfg.ClassCacheTTL)
	assert.False(t, cfg.AuditLogEnabled())
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("STRIPE_API_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_API_KEY")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfig_SecretsOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("AWS_USE_SECRETS", "true")
	t.Setenv("POSTGRES_HOST", "")

	sm := &mockSecrets{values: map[string]string{
		SecretStripeAPIKey:  "sk_live_secret",
		SecretJWTSecret:     "jwt_secret",
		SecretDBCredentials: `{"POSTGRES_HOST":"db.internal","POSTGRES_USER":"payments","POSTGRES_DB":"audit"}`,
	}}

	cfg, err := LoadConfig(context.Background(), sm)
	require.NoError(t, err)

	assert.Equal(t, "sk_live_secret", cfg.StripeSecretKey)
	assert.Equal(t, "whsec_env", cfg.StripeWebhookKey)
	assert.Equal(t, "jwt_secret", cfg.JWTSecret)
	assert.Equal(t, "db.internal", cfg.PostgresHost)
	assert.True(t, cfg.AuditLogEnabled())
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "cassandra")

	_, err := LoadConfig(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoadConfig_Currency(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	cfg, err := LoadConfig(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "eur", cfg.Currency)

	t.Setenv("PAYMENT_CURRENCY", "bitcoin")
	_, err = LoadConfig(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoadConfig_EventBusTargets(t *testing.T) {
	setRequired(t)
	t.Setenv("EVENT_BUS", "sns")
	t.Setenv("PAYMENT_SNS_TOPIC_ARN", "")

	_, err := LoadConfig(context.Background(), nil)
	assert.Error(t, err)

	t.Setenv("PAYMENT_SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:payment-events")
	cfg, err := LoadConfig(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BusSNS, cfg.EventBus)
}

func TestLoadConfig_KafkaBrokersList(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := LoadConfig(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}
