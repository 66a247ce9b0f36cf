package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// 空の場合はインメモリのリポジトリで起動する。
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure       bool
	CookieDomain       string
	ClientCookieMaxAge int

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitJoin    int

	// Auth
	AuthSimulateLatency bool
	AuthRestoreDelay    time.Duration
	AuthEmailDelay      time.Duration
	AuthProviderDelay   time.Duration
	SessionIdleTTL      time.Duration

	// Catalog
	CatalogEnforceCapacity bool
	CatalogSeed            bool

	// Worker
	EventRetentionDays int
	CleanupInterval    time.Duration
	SyncInterval       time.Duration

	// Media
	VerifyMediaURLs   bool
	MediaCheckTimeout time.Duration

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 値の範囲が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.ClientCookieMaxAge = getEnvInt("CLIENT_COOKIE_MAX_AGE", 31536000)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitJoin = getEnvInt("RATE_LIMIT_JOIN", 10)
	cfg.AuthSimulateLatency = getEnvBool("AUTH_SIMULATE_LATENCY", true)
	cfg.AuthRestoreDelay = getEnvDuration("AUTH_RESTORE_DELAY", 2*time.Second)
	cfg.AuthEmailDelay = getEnvDuration("AUTH_EMAIL_DELAY", 1500*time.Millisecond)
	cfg.AuthProviderDelay = getEnvDuration("AUTH_PROVIDER_DELAY", time.Second)
	cfg.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	cfg.CatalogEnforceCapacity = getEnvBool("CATALOG_ENFORCE_CAPACITY", true)
	cfg.CatalogSeed = getEnvBool("CATALOG_SEED", true)
	cfg.EventRetentionDays = getEnvInt("EVENT_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 15*time.Minute)
	cfg.VerifyMediaURLs = getEnvBool("VERIFY_MEDIA_URLS", false)
	cfg.MediaCheckTimeout = getEnvDuration("MEDIA_CHECK_TIMEOUT", 5*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	var invalid []string
	if cfg.RateLimitGeneral <= 0 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if cfg.RateLimitJoin <= 0 {
		invalid = append(invalid, "RATE_LIMIT_JOIN")
	}
	if cfg.SessionIdleTTL <= 0 {
		invalid = append(invalid, "SESSION_IDLE_TTL")
	}
	if cfg.EventRetentionDays <= 0 {
		invalid = append(invalid, "EVENT_RETENTION_DAYS")
	}
	if cfg.CleanupInterval <= 0 {
		invalid = append(invalid, "CLEANUP_INTERVAL")
	}
	if cfg.SyncInterval <= 0 {
		invalid = append(invalid, "SYNC_INTERVAL")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables must be positive: %v", invalid)
	}

	return cfg, nil
}

// UsesDatabase はPostgreSQLを使用する構成かを返す。
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
