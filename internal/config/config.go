// Package config はアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Clerk
	ClerkSecretKey     string
	ClerkWebhookSecret string

	// Redis（RedisAddrが空の場合、スナップショットキャッシュは無効）
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// Listings
	FetchTimeout time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitRefresh int

	// Alerts
	AlertInterval      time.Duration
	AlertMaxConcurrent int

	// SMTP（SMTPServerが空の場合、メール配信は無効）
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string

	// Gemini（APIキーが空の場合、マーケットサマリーは無効）
	GeminiAPIKey string
	GeminiModel  string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// EmailEnabled はメール配信が設定されているかを返す。
func (c *Config) EmailEnabled() bool {
	return c.SMTPServer != ""
}

// CacheEnabled はスナップショットキャッシュが設定されているかを返す。
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（未配置はエラーにしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ClerkSecretKey = os.Getenv("CLERK_SECRET_KEY")
	if cfg.ClerkSecretKey == "" {
		missing = append(missing, "CLERK_SECRET_KEY")
	}

	cfg.ClerkWebhookSecret = os.Getenv("CLERK_WEBHOOK_SECRET")
	if cfg.ClerkWebhookSecret == "" {
		missing = append(missing, "CLERK_WEBHOOK_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.SnapshotTTL = getEnvDuration("SNAPSHOT_TTL", 5*time.Minute)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRefresh = getEnvInt("RATE_LIMIT_REFRESH", 10)
	cfg.AlertInterval = getEnvDuration("ALERT_INTERVAL", 1*time.Hour)
	cfg.AlertMaxConcurrent = getEnvInt("ALERT_MAX_CONCURRENT", 10)
	cfg.SMTPServer = getEnvString("SMTP_SERVER", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnvString("SMTP_USER", "")
	cfg.SMTPPass = getEnvString("SMTP_PASS", "")
	cfg.FromEmail = getEnvString("FROM_EMAIL", "alerts@dealsight.app")
	cfg.GeminiAPIKey = getEnvString("GEMINI_API_KEY", "")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.0-flash")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
