package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "clearway-workers", cfg.Worker.ConsumerGroup)
	assert.Equal(t, 2*time.Second, cfg.Worker.PaymentSettleDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.RefundSettleDelay)
	assert.Equal(t, 30*time.Second, cfg.Worker.ReclaimInterval)
	assert.Equal(t, 60*time.Second, cfg.Worker.ReclaimMinIdle)
	assert.Equal(t, int64(5), cfg.Worker.MaxDeliveries)

	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 5, cfg.Webhook.MaxAttempts)
	assert.Equal(t, []time.Duration{
		0, 60 * time.Second, 300 * time.Second, 1800 * time.Second, 7200 * time.Second,
	}, cfg.Webhook.BackoffSchedule)
	assert.Equal(t, "X-Clearway-Signature", cfg.Webhook.SignatureHeader)

	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.InDelta(t, 0.92, cfg.Settlement.SuccessRates["card"], 0.001)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(cfg *Config) {}},
		{
			name:    "bad port",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "missing database host",
			mutate:  func(cfg *Config) { cfg.Database.Host = "" },
			wantErr: "database.host",
		},
		{
			name:    "empty backoff schedule",
			mutate:  func(cfg *Config) { cfg.Webhook.BackoffSchedule = nil },
			wantErr: "webhook.backoff_schedule",
		},
		{
			name:    "nonpositive webhook timeout",
			mutate:  func(cfg *Config) { cfg.Webhook.Timeout = 0 },
			wantErr: "webhook.timeout",
		},
		{
			name:    "nonpositive delivery cap",
			mutate:  func(cfg *Config) { cfg.Worker.MaxDeliveries = 0 },
			wantErr: "worker.max_deliveries",
		},
		{
			name:    "nonpositive idempotency ttl",
			mutate:  func(cfg *Config) { cfg.Idempotency.TTL = 0 },
			wantErr: "idempotency.ttl",
		},
		{
			name:    "short jwt secret",
			mutate:  func(cfg *Config) { cfg.Auth.JWTSecret = "short" },
			wantErr: "auth.jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
