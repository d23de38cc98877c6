package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(envOf(map[string]string{
		"DATABASE_URL":        "postgres://localhost/bakery",
		"RAZORPAY_KEY_SECRET": "secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, c.StoreDriver)
	assert.Equal(t, PaymentRazorpay, c.PaymentProvider)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "/v1", c.EndpointPrefix)
	assert.Equal(t, "30", c.EgglessSurcharge.String())
	assert.Equal(t, 24*time.Hour, c.ReplayTTL)
	assert.Equal(t, 64, c.NotifyQueue)
	assert.True(t, c.NotifyConsumer)
	assert.Empty(t, c.KafkaBrokers)
	assert.False(t, c.SMTP.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	c, err := FromEnv(envOf(map[string]string{
		"STORE_DRIVER":       "MEMORY",
		"PAYMENT_PROVIDER":   "stripe",
		"STRIPE_TEST_KEY":    "sk_test_123",
		"EGGLESS_SURCHARGE":  "45.50",
		"KAFKA_BROKERS":      "k1:9092, k2:9092,,",
		"SMTP_HOST":          "smtp.mailtrap.io",
		"PAYMENT_REPLAY_TTL": "90m",
	}))
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, c.StoreDriver)
	assert.Equal(t, PaymentStripe, c.PaymentProvider)
	assert.Equal(t, "45.5", c.EgglessSurcharge.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.True(t, c.SMTP.Enabled())
	assert.Equal(t, 90*time.Minute, c.ReplayTTL)
}

func TestFromEnvRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"RAZORPAY_KEY_SECRET": "s"}},
		{name: "razorpay without secret", env: map[string]string{"STORE_DRIVER": "memory"}},
		{name: "stripe without key", env: map[string]string{"STORE_DRIVER": "memory", "PAYMENT_PROVIDER": "stripe"}},
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "mongo", "RAZORPAY_KEY_SECRET": "s"}},
		{name: "unknown provider", env: map[string]string{"STORE_DRIVER": "memory", "PAYMENT_PROVIDER": "paypal"}},
		{name: "bad surcharge", env: map[string]string{"STORE_DRIVER": "memory", "RAZORPAY_KEY_SECRET": "s", "EGGLESS_SURCHARGE": "thirty"}},
		{name: "negative surcharge", env: map[string]string{"STORE_DRIVER": "memory", "RAZORPAY_KEY_SECRET": "s", "EGGLESS_SURCHARGE": "-1"}},
		{name: "sub-paise surcharge", env: map[string]string{"STORE_DRIVER": "memory", "RAZORPAY_KEY_SECRET": "s", "EGGLESS_SURCHARGE": "30.005"}},
		{name: "bad ttl", env: map[string]string{"STORE_DRIVER": "memory", "RAZORPAY_KEY_SECRET": "s", "PAYMENT_REPLAY_TTL": "soon"}},
		{name: "zero queue", env: map[string]string{"STORE_DRIVER": "memory", "RAZORPAY_KEY_SECRET": "s", "NOTIFY_QUEUE_SIZE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tt.env))
			assert.Error(t, err)
		})
	}
}
