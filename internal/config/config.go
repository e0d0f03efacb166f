package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config is the environment-driven service configuration.
type Config struct {
	HTTPAddr    string
	DatabaseURL string

	// AccessSecret and RefreshSecret sign the two credential kinds and
	// must differ.
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// AppBaseURL prefixes verification and reset links in outbound mail.
	AppBaseURL string

	SMTPAddr string
	SMTPFrom string
	SMTPUser string
	SMTPPass string

	BcryptCost    int
	MaxConcurrent int

	RateLimitPerSecond int
	RateLimitBurst     int
}

// Load reads configuration from the environment, applying defaults for
// everything except the signing secrets.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:           getenv("GATEHOUSE_HTTP_ADDR", ":8080"),
		DatabaseURL:        getenv("GATEHOUSE_PG_DSN", ""),
		AccessSecret:       os.Getenv("GATEHOUSE_ACCESS_SECRET"),
		RefreshSecret:      os.Getenv("GATEHOUSE_REFRESH_SECRET"),
		AccessTTL:          getenvDuration("GATEHOUSE_ACCESS_TTL", 24*time.Hour),
		RefreshTTL:         getenvDuration("GATEHOUSE_REFRESH_TTL", 7*24*time.Hour),
		AppBaseURL:         getenv("GATEHOUSE_APP_URL", "http://localhost:8080"),
		SMTPAddr:           getenv("GATEHOUSE_SMTP_ADDR", "localhost:25"),
		SMTPFrom:           getenv("GATEHOUSE_SMTP_FROM", "no-reply@gatehouse.org"),
		SMTPUser:           os.Getenv("GATEHOUSE_SMTP_USER"),
		SMTPPass:           os.Getenv("GATEHOUSE_SMTP_PASS"),
		BcryptCost:         getenvInt("GATEHOUSE_BCRYPT_COST", 10),
		MaxConcurrent:      getenvInt("GATEHOUSE_HASH_CONCURRENCY", 0),
		RateLimitPerSecond: getenvInt("GATEHOUSE_RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getenvInt("GATEHOUSE_RATE_LIMIT_BURST", 40),
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return Config{}, errors.New("config: GATEHOUSE_ACCESS_SECRET and GATEHOUSE_REFRESH_SECRET are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, errors.New("config: access and refresh secrets must differ")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
