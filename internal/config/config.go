// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ストアの種類。
const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver string
	DatabaseURL string
	BoltPath    string

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchUserAgent     string
	DiscoveryUserAgent string
	SSRFProtection     bool

	// Ingest
	IngestInterval      time.Duration
	IngestMaxItems      int
	IngestMaxConcurrent int

	// Backfill
	BackfillInterval   time.Duration
	BackfillLimit      int
	BackfillRatePerSec float64

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitTrigger int

	// Server
	ServerPort        string
	CORSAllowedOrigin string // カンマ区切り。空ならCORSヘッダーを返さない

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（既定: .env）が存在すれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.StoreDriver = getEnvString("STORE_DRIVER", StorePostgres)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.BoltPath = getEnvString("BOLT_PATH", "data/newsroom.db")

	var missing []string
	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreBolt:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q (want %q or %q)", cfg.StoreDriver, StorePostgres, StoreBolt)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 20*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchUserAgent = getEnvString("FETCH_USER_AGENT", "")
	cfg.DiscoveryUserAgent = getEnvString("DISCOVERY_USER_AGENT", "NewsroomBot/1.0 (+https://github.com/hitoshi/newsroom)")
	cfg.SSRFProtection = getEnvBool("SSRF_PROTECTION", true)
	cfg.IngestInterval = getEnvDuration("INGEST_INTERVAL", 10*time.Minute)
	cfg.IngestMaxItems = getEnvInt("INGEST_MAX_ITEMS", 50)
	cfg.IngestMaxConcurrent = getEnvInt("INGEST_MAX_CONCURRENT", 1)
	cfg.BackfillInterval = getEnvDuration("BACKFILL_INTERVAL", 15*time.Minute)
	cfg.BackfillLimit = getEnvInt("BACKFILL_LIMIT", 30)
	cfg.BackfillRatePerSec = getEnvFloat("BACKFILL_RATE_PER_SEC", 2)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitTrigger = getEnvInt("RATE_LIMIT_TRIGGER", 6)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// loadEnvFile はpathの.envファイルを読み込む。ファイルが無い場合は何もしない。
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
