package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	HTTP     HTTPConfig
	Log      LogConfig
	Search   SearchConfig
	Gemini   GeminiConfig
	Redis    RedisConfig
	Enrich   EnrichConfig
	Pipeline PipelineConfig
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type SearchConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	MaxResults int
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StreamMaxLen int64
}

type EnrichConfig struct {
	Enabled        bool
	Timeout        time.Duration
	MaxConcurrency int
	MinSnippetLen  int
}

type PipelineConfig struct {
	MaxQueryLen int
	MaxSources  int
}

// Load reads process configuration once at startup. A missing provider API
// key is a fatal configuration error, never a per-request one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	searchKey := os.Getenv("BRAVE_API_KEY")
	if searchKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY environment variable is required")
	}

	modelKey := os.Getenv("GEMINI_API_KEY")
	if modelKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
		Search: SearchConfig{
			APIKey:     searchKey,
			BaseURL:    getEnv("BRAVE_SEARCH_URL", "https://api.search.brave.com/res/v1/web/search"),
			Timeout:    getEnvDuration("SEARCH_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvInt("SEARCH_MAX_RETRIES", 2),
			RetryDelay: getEnvDuration("SEARCH_RETRY_DELAY", 1*time.Second),
			MaxResults: getEnvInt("SEARCH_MAX_RESULTS", 10),
		},
		Gemini: GeminiConfig{
			APIKey:      modelKey,
			Model:       getEnv("LLM_MODEL", "gemini-2.0-flash"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:  getEnvInt("LLM_MAX_RETRIES", 2),
			RetryDelay:  getEnvDuration("LLM_RETRY_DELAY", 1*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			StreamMaxLen: int64(getEnvInt("REDIS_STREAM_MAX_LEN", 10000)),
		},
		Enrich: EnrichConfig{
			Enabled:        getEnvBool("ENRICH_ENABLED", true),
			Timeout:        getEnvDuration("ENRICH_TIMEOUT", 15*time.Second),
			MaxConcurrency: getEnvInt("ENRICH_MAX_CONCURRENCY", 3),
			MinSnippetLen:  getEnvInt("ENRICH_MIN_SNIPPET_LEN", 80),
		},
		Pipeline: PipelineConfig{
			MaxQueryLen: getEnvInt("MAX_QUERY_LEN", 2000),
			MaxSources:  getEnvInt("MAX_SOURCES", 10),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
