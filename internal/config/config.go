package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	LLM       LLMConfig
	Ranking   RankingConfig
	Analytics AnalyticsConfig
}

// ServerConfig holds HTTP server configuration.
// MigrateOnStart applies pending schema migrations before serving.
type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	MigrateOnStart bool
}

// DatabaseConfig holds PostgreSQL connection configuration.
// URL takes precedence over the individual connection fields when set.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// LLMConfig holds the chat-completions endpoint used for ranking.
// An empty APIKey disables ranking.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retries int
}

// RankingConfig controls how many candidates are sent to the ranker
// and how long ranking results are cached.
type RankingConfig struct {
	CandidateLimit int
	CacheTTL       time.Duration
}

// AnalyticsConfig holds the CSV exports backing the analytics endpoints.
// Empty paths leave the corresponding dataset unloaded.
type AnalyticsConfig struct {
	DealsCSV    string
	TrendCSV    string
	ForecastCSV string
}

// Load reads configuration from a .env file (if present) and environment variables.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := loadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "realty")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8501")
	v.SetDefault("LLM_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("LLM_RETRIES", 2)
	v.SetDefault("RANKING_CANDIDATE_LIMIT", 20)
	v.SetDefault("RANKING_CACHE_TTL", "10m")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			Env:            v.GetString("ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		LLM: LLMConfig{
			BaseURL: strings.TrimRight(v.GetString("LLM_BASE_URL"), "/"),
			APIKey:  v.GetString("LLM_API_KEY"),
			Model:   v.GetString("LLM_MODEL"),
			Timeout: v.GetDuration("LLM_TIMEOUT"),
			Retries: v.GetInt("LLM_RETRIES"),
		},
		Ranking: RankingConfig{
			CandidateLimit: v.GetInt("RANKING_CANDIDATE_LIMIT"),
			CacheTTL:       v.GetDuration("RANKING_CACHE_TTL"),
		},
		Analytics: AnalyticsConfig{
			DealsCSV:    v.GetString("ANALYTICS_DEALS_CSV"),
			TrendCSV:    v.GetString("ANALYTICS_TREND_CSV"),
			ForecastCSV: v.GetString("ANALYTICS_FORECAST_CSV"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if err := c.Database.validate(); err != nil {
		return err
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.LLM.APIKey != "" {
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("LLM_BASE_URL is required when LLM_API_KEY is set")
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("LLM_MODEL is required when LLM_API_KEY is set")
		}
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.LLM.Retries < 0 {
		return fmt.Errorf("LLM_RETRIES must be non-negative")
	}

	if c.Ranking.CandidateLimit < 1 || c.Ranking.CandidateLimit > 100 {
		return fmt.Errorf("RANKING_CANDIDATE_LIMIT must be between 1 and 100")
	}
	if c.Ranking.CacheTTL <= 0 {
		return fmt.Errorf("RANKING_CACHE_TTL must be positive")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	if d.URL == "" {
		if d.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if d.Port == "" {
			return fmt.Errorf("DB_PORT is required")
		}
		if d.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if d.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if d.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// loadDotEnv loads variables from path, or from ./.env when path is empty.
// A missing default file is not an error.
func loadDotEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
