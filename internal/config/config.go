package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`   // "release" switches Gin to release mode and skips .env loading
	LogLevel  string `mapstructure:"LOG_LEVEL"`  // debug, info, warn or error
	LogFormat string `mapstructure:"LOG_FORMAT"` // "json" for production, anything else for console

	// Firebase. Credentials are taken from the file path first, then the
	// base64 JSON, then Application Default Credentials.
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	// CLIENT_URL is a comma-separated list of allowed CORS origins.
	ClientURL string `mapstructure:"CLIENT_URL"`

	// Payment gateway
	FlutterwaveSecretKey string        `mapstructure:"FLUTTERWAVE_SECRET_KEY"`
	FlutterwaveBaseURL   string        `mapstructure:"FLUTTERWAVE_BASE_URL"`
	PaymentCurrency      string        `mapstructure:"PAYMENT_CURRENCY"` // Verified transactions must be in this currency
	GatewayTimeout       time.Duration `mapstructure:"GATEWAY_TIMEOUT"`

	// Expiry sweeper. Without REDIS_ADDR the sweep lock is local to the process.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepOnStart  bool          `mapstructure:"SWEEP_ON_START"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`

	// Notification dispatcher
	NotificationIconURL     string `mapstructure:"NOTIFICATION_ICON_URL"`
	NotificationDefaultLink string `mapstructure:"NOTIFICATION_DEFAULT_LINK"`
	NotifyRequireAdmin      bool   `mapstructure:"NOTIFY_REQUIRE_ADMIN"` // Set false to allow any caller to broadcast

	// ReferralPreserveHigherTier keeps a referrer's VIP/VVIP tier when the
	// reward is granted instead of resetting it to Premium.
	ReferralPreserveHigherTier bool `mapstructure:"REFERRAL_PRESERVE_HIGHER_TIER"`
	ReferralRewardDays         int  `mapstructure:"REFERRAL_REWARD_DAYS"`
}

// envKeys lists every variable bound explicitly, so Unmarshal sees keys
// that have no default.
var envKeys = []string{
	"PORT",
	"GIN_MODE",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"FIREBASE_PROJECT_ID",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"CLIENT_URL",
	"FLUTTERWAVE_SECRET_KEY",
	"FLUTTERWAVE_BASE_URL",
	"PAYMENT_CURRENCY",
	"GATEWAY_TIMEOUT",
	"SWEEP_INTERVAL",
	"SWEEP_ON_START",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"NOTIFICATION_ICON_URL",
	"NOTIFICATION_DEFAULT_LINK",
	"NOTIFY_REQUIRE_ADMIN",
	"REFERRAL_PRESERVE_HIGHER_TIER",
	"REFERRAL_REWARD_DAYS",
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

// load reads the environment into v. Tests pass their own viper instance.
func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com")
	v.SetDefault("PAYMENT_CURRENCY", "NGN")
	v.SetDefault("GATEWAY_TIMEOUT", "15s")
	v.SetDefault("SWEEP_INTERVAL", "24h")
	v.SetDefault("SWEEP_ON_START", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NOTIFICATION_ICON_URL", "https://statwise.app/icon-192.png")
	v.SetDefault("NOTIFICATION_DEFAULT_LINK", "https://statwise.app/")
	v.SetDefault("NOTIFY_REQUIRE_ADMIN", true)
	v.SetDefault("REFERRAL_PRESERVE_HIGHER_TIER", false)
	v.SetDefault("REFERRAL_REWARD_DAYS", 7)

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	// Validate essential configurations
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the required settings are present and sane.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.FlutterwaveSecretKey == "" {
		return errors.New("FLUTTERWAVE_SECRET_KEY is required")
	}
	if c.PaymentCurrency == "" {
		return errors.New("PAYMENT_CURRENCY cannot be empty")
	}
	if c.GatewayTimeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.ReferralRewardDays <= 0 {
		return errors.New("REFERRAL_REWARD_DAYS must be positive")
	}
	return nil
}
