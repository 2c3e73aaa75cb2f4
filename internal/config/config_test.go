package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldworks/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "noop", cfg.Email.Provider)
	assert.Equal(t, "conversations_changed", cfg.Realtime.Channel)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 13.0, cfg.Session.DefaultTaxRate)
	assert.Equal(t, 3, cfg.Delivery.MaxRetries)
	assert.False(t, cfg.S3.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FIELDWORKS_SERVER_PORT", ":9090")
	t.Setenv("FIELDWORKS_SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("FIELDWORKS_CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("FIELDWORKS_SMS_PROVIDER", "sqs")
	t.Setenv("FIELDWORKS_SMS_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/1/sms.fifo")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "sqs", cfg.SMS.Provider)
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("PORT", "7000")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Port)
}

func TestLoad_RejectsIncompleteProviders(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"resend without key", map[string]string{"FIELDWORKS_EMAIL_PROVIDER": "resend"}},
		{"sqs without queue", map[string]string{"FIELDWORKS_SMS_PROVIDER": "sqs"}},
		{"unknown email provider", map[string]string{"FIELDWORKS_EMAIL_PROVIDER": "carrier-pigeon"}},
		{"default secret in production", map[string]string{"FIELDWORKS_SERVER_ENVIRONMENT": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
