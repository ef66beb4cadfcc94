package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hitoshi/autoblog/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort  string
	MetricsPort string // ワーカーの/metrics公開ポート
	BaseURL     string
	SiteID      int64

	// Feed import
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	FetchInterval      time.Duration

	// Featured image
	ImageFetchTimeout          time.Duration
	ImageMaxSize               int64
	FeaturedImageDefaultMethod model.FeaturedImageMethod

	// Dashboard
	DashboardDays       int
	DashboardLocation   *time.Location
	DashboardDateFormat string
	DashboardTimeFormat string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int

	// Logging
	LogRetentionDays int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.SiteID = getEnvInt64("SITE_ID", 1)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 5)
	cfg.FetchInterval = getEnvDuration("FETCH_INTERVAL", 5*time.Minute)
	cfg.ImageFetchTimeout = getEnvDuration("IMAGE_FETCH_TIMEOUT", 10*time.Minute)
	cfg.ImageMaxSize = getEnvInt64("IMAGE_MAX_SIZE", 20971520)
	cfg.LogRetentionDays = getEnvInt("LOG_RETENTION_DAYS", 30)
	cfg.DashboardDays = getEnvInt("DASHBOARD_DAYS", 7)
	cfg.DashboardDateFormat = getEnvString("DASHBOARD_DATE_FORMAT", "2006-01-02")
	cfg.DashboardTimeFormat = getEnvString("DASHBOARD_TIME_FORMAT", "15:04")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	method, ok := model.ParseFeaturedImageMethod(os.Getenv("FEATURED_IMAGE_DEFAULT_METHOD"))
	if !ok {
		return nil, fmt.Errorf("invalid FEATURED_IMAGE_DEFAULT_METHOD: %q", os.Getenv("FEATURED_IMAGE_DEFAULT_METHOD"))
	}
	cfg.FeaturedImageDefaultMethod = method

	loc, err := time.LoadLocation(getEnvString("DASHBOARD_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_TIMEZONE: %w", err)
	}
	cfg.DashboardLocation = loc

	return cfg, nil
}

// envOr は環境変数をparseで変換して返す。未設定や変換できない値はdefaultValを返す。
func envOr[T any](key string, defaultVal T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parsed, err := parse(v)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnvString(key, defaultVal string) string {
	return envOr(key, defaultVal, func(s string) (string, error) { return s, nil })
}

func getEnvInt(key string, defaultVal int) int {
	return envOr(key, defaultVal, strconv.Atoi)
}

func getEnvInt64(key string, defaultVal int64) int64 {
	return envOr(key, defaultVal, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	return envOr(key, defaultVal, time.ParseDuration)
}
