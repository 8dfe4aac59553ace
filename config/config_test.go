package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CANDLESHOP_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("CANDLESHOP_DB_NAME", "candles_test")
	t.Setenv("CANDLESHOP_PAYMENT_MOCK_DELAY", "250ms")
	t.Setenv("CANDLESHOP_PAYMENT_DEMO", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "candles_test", cfg.DB.Name)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, PaymentModeMock, cfg.Payment.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Payment.MockDelay)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ProductTTL)
}

func TestLoad_ProductionRejectsSimulator(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CANDLESHOP_AUTH_JWT_SECRET", "prod-secret")
	t.Setenv("CANDLESHOP_LOG_DEVELOPMENT", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment.mode=mock")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Auth:          AuthConfig{JWTSecret: "x"},
			Payment:       PaymentConfig{Mode: PaymentModeMock, MockSuccessRate: 0.9, Demo: true},
			Notifications: NotificationConfig{Mode: NotifyDirect},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing secret in production", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"missing secret in development", func(c *Config) { c.Auth.JWTSecret = ""; c.Log.Development = true }, false},
		{"razorpay without keys", func(c *Config) { c.Payment.Mode = PaymentModeRazorpay }, true},
		{"razorpay with keys", func(c *Config) {
			c.Payment.Mode = PaymentModeRazorpay
			c.Payment.KeyID = "rzp_test"
			c.Payment.KeySecret = "secret"
		}, false},
		{"unknown payment mode", func(c *Config) { c.Payment.Mode = "stripe" }, true},
		{"success rate out of range", func(c *Config) { c.Payment.MockSuccessRate = 1.5 }, true},
		{"mock in production", func(c *Config) { c.Payment.Demo = false }, true},
		{"mock in development", func(c *Config) { c.Payment.Demo = false; c.Log.Development = true }, false},
		{"unknown notification mode", func(c *Config) { c.Notifications.Mode = "sms" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
