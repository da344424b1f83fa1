// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Analyzer backends.
const (
	AnalyzerGemini = "gemini"
	AnalyzerGRPC   = "grpc"
	AnalyzerNone   = "none"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	CORSOrigins []string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	Analysis AnalysisConfig
	Quota    QuotaConfig

	SessionIdleTTL time.Duration
	StartRateLimit int    // session starts per user per minute
	PolicyFile     string // optional coaching policy YAML
	StaticDir      string // optional built web client served at /
}

// AnalysisConfig selects and tunes the analysis backend.
type AnalysisConfig struct {
	Backend       string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	SidecarAddr   string
	Timeout       time.Duration
	MaxConcurrent int
}

// QuotaConfig bounds how often a user may trigger analysis.
type QuotaConfig struct {
	DailyLimit  int
	HourlyLimit int
	MinSpacing  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		CORSOrigins: getEnvList("CORS_ORIGINS"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:      getEnv("DB_PATH", "./data/motion-coach.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Analysis: AnalysisConfig{
			Backend:       strings.ToLower(getEnv("ANALYZER", AnalyzerGemini)),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			GeminiBaseURL: getEnv("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
			SidecarAddr:   getEnv("ANALYZER_ADDR", "localhost:50051"),
			Timeout:       getEnvDuration("ANALYSIS_TIMEOUT", 20*time.Second),
			MaxConcurrent: getEnvInt("MAX_CONCURRENT_ANALYSES", 16),
		},
		Quota: QuotaConfig{
			DailyLimit:  getEnvInt("QUOTA_DAILY_LIMIT", 500),
			HourlyLimit: getEnvInt("QUOTA_HOURLY_LIMIT", 120),
			MinSpacing:  getEnvDuration("QUOTA_MIN_SPACING", time.Second),
		},
		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		StartRateLimit: getEnvInt("START_RATE_LIMIT", 10),
		PolicyFile:     getEnv("POLICY_FILE", ""),
		StaticDir:      getEnv("STATIC_DIR", ""),
	}

	if len(cfg.CORSOrigins) == 0 && cfg.FrontendURL != "" {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	switch c.Analysis.Backend {
	case AnalyzerGemini:
		if c.Analysis.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when ANALYZER=gemini")
		}
	case AnalyzerGRPC:
		if c.Analysis.SidecarAddr == "" {
			return fmt.Errorf("ANALYZER_ADDR is required when ANALYZER=grpc")
		}
	case AnalyzerNone:
	default:
		return fmt.Errorf("ANALYZER must be gemini, grpc or none, got %q", c.Analysis.Backend)
	}
	if c.Analysis.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_ANALYSES must be > 0")
	}
	if c.Quota.DailyLimit <= 0 || c.Quota.HourlyLimit <= 0 {
		return fmt.Errorf("QUOTA_DAILY_LIMIT and QUOTA_HOURLY_LIMIT must be > 0")
	}
	if c.Quota.MinSpacing < 0 {
		return fmt.Errorf("QUOTA_MIN_SPACING cannot be negative")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.StartRateLimit <= 0 {
		return fmt.Errorf("START_RATE_LIMIT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("20s") or bare seconds ("20").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
