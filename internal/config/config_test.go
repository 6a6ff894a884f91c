package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "statwise-test")
	t.Setenv("FLUTTERWAVE_SECRET_KEY", "FLWSECK_TEST-123")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, "NGN", cfg.PaymentCurrency)
	assert.Equal(t, "https://api.flutterwave.com", cfg.FlutterwaveBaseURL)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.True(t, cfg.NotifyRequireAdmin)
	assert.False(t, cfg.ReferralPreserveHigherTier)
	assert.Equal(t, 7, cfg.ReferralRewardDays)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "statwise-test")
	t.Setenv("FLUTTERWAVE_SECRET_KEY", "FLWSECK_TEST-123")
	t.Setenv("SWEEP_INTERVAL", "1h")
	t.Setenv("PAYMENT_CURRENCY", "USD")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REFERRAL_PRESERVE_HIGHER_TIER", "true")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, "USD", cfg.PaymentCurrency)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.ReferralPreserveHigherTier)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing project id",
			env:     map[string]string{"FLUTTERWAVE_SECRET_KEY": "k"},
			wantErr: "FIREBASE_PROJECT_ID is required",
		},
		{
			name:    "missing gateway secret",
			env:     map[string]string{"FIREBASE_PROJECT_ID": "p"},
			wantErr: "FLUTTERWAVE_SECRET_KEY is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FIREBASE_PROJECT_ID", "")
			t.Setenv("FLUTTERWAVE_SECRET_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
