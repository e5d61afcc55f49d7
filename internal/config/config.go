// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	OpenAIAPIKey     string
	AnthropicAPIKey  string
	PerplexityAPIKey string
	GeminiAPIKey     string

	WebhookURL string

	Database DatabaseConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	Scoring  ScoringConfig
}

// DatabaseConfig matches the shape the dashboard API uses so both services
// can share one DATABASE_URL.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// PipelineConfig tunes the audit execution pipeline. Every knob has a
// default that matches production behavior so a bare environment still runs.
type PipelineConfig struct {
	QueryConcurrency   int           // concurrent queries in flight per job
	ProviderTimeout    time.Duration // per provider call
	MaxRetryAttempts   int
	RetryBaseDelay     time.Duration
	RateLimitWait      time.Duration // bounded wait for a limiter token, 0 = fail fast
	CacheTTL           time.Duration
	PollInterval       time.Duration // queue poll cadence
	DailyBudgetUSD     float64       // per provider
	MonthlyBudgetUSD   float64       // per provider
	RateLimitPerSecond float64       // per provider refill rate
	RateLimitBurst     int
	BreakerThreshold   int // consecutive failures before opening
	BreakerCooldown    time.Duration
	PersistWorkers     int // dedicated pool for store writes during execution
}

// ScoringConfig carries the tunable business weights. The SOV sentiment
// multipliers are deliberately configuration, not constants.
type ScoringConfig struct {
	GEOWeightFrequency float64
	GEOWeightSentiment float64
	GEOWeightRelevance float64
	GEOWeightPosition  float64
	GEOWeightAuthority float64

	SOVPositiveMultiplier float64
	SOVNeutralMultiplier  float64
	SOVNegativeMultiplier float64

	// Source-authority factor per provider, 0-100.
	ProviderAuthority map[string]float64
}

func Load() *Config {
	config := &Config{
		Port:             getEnv("PORT", "8000"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		PerplexityAPIKey: os.Getenv("PERPLEXITY_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		WebhookURL:       os.Getenv("AUDIT_WEBHOOK_URL"),
	}

	dbConfig, err := parseDatabaseConfig()
	if err != nil {
		// If DATABASE_URL parsing fails, fall back to individual env vars
		dbConfig = DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "brandview"),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		}
	}
	config.Database = dbConfig

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		Enabled:  getEnvBool("REDIS_ENABLED", true),
	}

	config.Pipeline = PipelineConfig{
		QueryConcurrency:   getEnvInt("PIPELINE_QUERY_CONCURRENCY", 5),
		ProviderTimeout:    getEnvDuration("PIPELINE_PROVIDER_TIMEOUT", 90*time.Second),
		MaxRetryAttempts:   getEnvInt("PIPELINE_MAX_RETRIES", 3),
		RetryBaseDelay:     getEnvDuration("PIPELINE_RETRY_BASE_DELAY", time.Second),
		RateLimitWait:      getEnvDuration("PIPELINE_RATE_LIMIT_WAIT", 10*time.Second),
		CacheTTL:           getEnvDuration("PIPELINE_CACHE_TTL", time.Hour),
		PollInterval:       getEnvDuration("PIPELINE_POLL_INTERVAL", 5*time.Second),
		DailyBudgetUSD:     getEnvFloat("PIPELINE_DAILY_BUDGET_USD", 50),
		MonthlyBudgetUSD:   getEnvFloat("PIPELINE_MONTHLY_BUDGET_USD", 1000),
		RateLimitPerSecond: getEnvFloat("PIPELINE_RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvInt("PIPELINE_RATE_LIMIT_BURST", 5),
		BreakerThreshold:   getEnvInt("PIPELINE_BREAKER_THRESHOLD", 5),
		BreakerCooldown:    getEnvDuration("PIPELINE_BREAKER_COOLDOWN", time.Minute),
		PersistWorkers:     getEnvInt("PIPELINE_PERSIST_WORKERS", 4),
	}

	config.Scoring = ScoringConfig{
		GEOWeightFrequency: getEnvFloat("SCORING_GEO_WEIGHT_FREQUENCY", 0.25),
		GEOWeightSentiment: getEnvFloat("SCORING_GEO_WEIGHT_SENTIMENT", 0.20),
		GEOWeightRelevance: getEnvFloat("SCORING_GEO_WEIGHT_RELEVANCE", 0.20),
		GEOWeightPosition:  getEnvFloat("SCORING_GEO_WEIGHT_POSITION", 0.20),
		GEOWeightAuthority: getEnvFloat("SCORING_GEO_WEIGHT_AUTHORITY", 0.15),

		SOVPositiveMultiplier: getEnvFloat("SCORING_SOV_POSITIVE_MULT", 1.2),
		SOVNeutralMultiplier:  getEnvFloat("SCORING_SOV_NEUTRAL_MULT", 1.0),
		SOVNegativeMultiplier: getEnvFloat("SCORING_SOV_NEGATIVE_MULT", 0.8),

		ProviderAuthority: map[string]float64{
			"openai":     getEnvFloat("SCORING_AUTHORITY_OPENAI", 90),
			"anthropic":  getEnvFloat("SCORING_AUTHORITY_ANTHROPIC", 85),
			"perplexity": getEnvFloat("SCORING_AUTHORITY_PERPLEXITY", 80),
			"gemini":     getEnvFloat("SCORING_AUTHORITY_GEMINI", 85),
		},
	}

	return config
}

func parseDatabaseConfig() (DatabaseConfig, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL not set")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	name := strings.TrimPrefix(parsedURL.Path, "/")
	if name == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL has no database name")
	}

	config := DatabaseConfig{
		Host:            parsedURL.Hostname(),
		Port:            5432, // default
		User:            parsedURL.User.Username(),
		Name:            name,
		SSLMode:         getEnv("DB_SSLMODE", "require"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
	}

	if password, ok := parsedURL.User.Password(); ok {
		config.Password = password
	}

	if parsedURL.Port() != "" {
		if port, err := strconv.Atoi(parsedURL.Port()); err == nil {
			config.Port = port
		}
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
