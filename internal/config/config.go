package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	AppBaseURL     string

	DatabaseURL string
	RedisURL    string

	MeiliSearchHost string
	MeiliMasterKey  string

	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string
	AdminTokenTTL     time.Duration

	TurnstileSecretKey string
	DisposableDomains  []string

	XBearerToken        string
	XAPIBaseURL         string
	CampaignHandle      string
	SocialTimeout       time.Duration
	SocialRatePerSecond float64
	SocialBurst         int

	LeaderboardCron        string
	LeaderboardConcurrency int
	JobTimeout             time.Duration
	LeaderboardCacheTTL    time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	SnapshotBucket    string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string

	LogLevel  string
	LogFormat string
	LogOutput string

	RateLimitSignup time.Duration
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		AppBaseURL:     getEnv("APP_BASE_URL", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		TurnstileSecretKey: os.Getenv("TURNSTILE_SECRET_KEY"),
		DisposableDomains:  splitList(os.Getenv("DISPOSABLE_DOMAINS")),

		XBearerToken:   os.Getenv("X_BEARER_TOKEN"),
		XAPIBaseURL:    getEnv("X_API_BASE_URL", "https://api.twitter.com/2"),
		CampaignHandle: getEnv("CAMPAIGN_HANDLE", "@acepyr_"),

		LeaderboardCron: getEnv("LEADERBOARD_CRON", "0 * * * *"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASS"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		SnapshotBucket:    os.Getenv("SNAPSHOT_BUCKET"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
	}

	// Parsing durations
	var err error
	if cfg.SocialTimeout, err = parseDuration(getEnv("SOCIAL_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("invalid SOCIAL_TIMEOUT: %w", err)
	}
	if cfg.JobTimeout, err = parseDuration(getEnv("JOB_TIMEOUT", "10m")); err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	if cfg.LeaderboardCacheTTL, err = parseDuration(getEnv("LEADERBOARD_CACHE_TTL", "5m")); err != nil {
		return nil, fmt.Errorf("invalid LEADERBOARD_CACHE_TTL: %w", err)
	}
	if cfg.AdminTokenTTL, err = parseDuration(getEnv("ADMIN_TOKEN_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TOKEN_TTL: %w", err)
	}
	if cfg.RateLimitSignup, err = parseDuration(getEnv("RATE_LIMIT_SIGNUP", "3s")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SIGNUP: %w", err)
	}

	if cfg.SocialRatePerSecond, err = strconv.ParseFloat(getEnv("SOCIAL_RATE_PER_SECOND", "1"), 64); err != nil {
		return nil, fmt.Errorf("invalid SOCIAL_RATE_PER_SECOND: %w", err)
	}
	if cfg.SocialBurst, err = strconv.Atoi(getEnv("SOCIAL_BURST", "5")); err != nil {
		return nil, fmt.Errorf("invalid SOCIAL_BURST: %w", err)
	}
	if cfg.LeaderboardConcurrency, err = strconv.Atoi(getEnv("LEADERBOARD_CONCURRENCY", "4")); err != nil {
		return nil, fmt.Errorf("invalid LEADERBOARD_CONCURRENCY: %w", err)
	}
	if cfg.LeaderboardConcurrency < 1 {
		cfg.LeaderboardConcurrency = 1
	}
	if cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
