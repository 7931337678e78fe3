package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Sweep    SweepConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// GatewayConfig holds the payment-gateway webhook settings. WebhookSecret is
// required; SignatureBypass exists for local harnesses without gateway access
// and must never be enabled in production.
type GatewayConfig struct {
	WebhookSecret     string
	SignatureBypass   bool
	CommissionRateBps int64
	SigAlertThreshold int
	SigAlertWindow    time.Duration
}

type SweepConfig struct {
	Interval  time.Duration
	BatchSize int
}

var (
	ErrMissingWebhookSecret = errors.New("GATEWAY_WEBHOOK_SECRET is required")
	ErrBypassInProduction   = errors.New("GATEWAY_SIGNATURE_BYPASS must not be enabled in production")
)

// Load reads configuration from the environment. It fails closed: no webhook
// secret means no process, and the signature bypass refuses to coexist with
// ENV=production.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_DSN", "pitchside:pitchside@tcp(localhost:3306)/pitchside?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: 15 * time.Minute,
			Issuer:       "pitchside",
		},
		Gateway: GatewayConfig{
			WebhookSecret:     os.Getenv("GATEWAY_WEBHOOK_SECRET"),
			SignatureBypass:   getEnvBool("GATEWAY_SIGNATURE_BYPASS", false),
			CommissionRateBps: getEnvInt64("COMMISSION_RATE_BPS", 1000),
			SigAlertThreshold: int(getEnvInt64("SIG_ALERT_THRESHOLD", 10)),
			SigAlertWindow:    5 * time.Minute,
		},
		Sweep: SweepConfig{
			Interval:  getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
			BatchSize: int(getEnvInt64("SWEEP_BATCH_SIZE", 100)),
		},
	}
	if cfg.Gateway.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if cfg.Gateway.SignatureBypass && cfg.Server.Env == "production" {
		return nil, ErrBypassInProduction
	}
	if cfg.Gateway.CommissionRateBps < 0 || cfg.Gateway.CommissionRateBps > 10000 {
		return nil, fmt.Errorf("COMMISSION_RATE_BPS out of range: %d", cfg.Gateway.CommissionRateBps)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
