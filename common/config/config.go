package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	App    AppConfig
	Server ServerConfig
	Ollama OllamaConfig
	Redis  RedisConfig
	BFF    BFFConfig
}

// AppConfig holds application identity settings
type AppConfig struct {
	Name     string
	Version  string
	Debug    bool
	LogLevel string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string
	Port int
}

// OllamaConfig holds Ollama model service settings
type OllamaConfig struct {
	BaseURL        string
	DefaultModel   string
	Timeout        time.Duration
	MaxConnections int
}

// RedisConfig holds optional Redis settings for event fan-out
type RedisConfig struct {
	URL string // empty disables Redis publishing
}

// BFFConfig holds BFF callback settings
type BFFConfig struct {
	BaseURL         string
	CallbackEnabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "AI Workflow Service"),
			Version:  getEnv("APP_VERSION", "0.1.0"),
			Debug:    getEnvBool("DEBUG", false),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: getEnvInt("PORT", 8000),
		},
		Ollama: OllamaConfig{
			BaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			DefaultModel:   getEnv("OLLAMA_DEFAULT_MODEL", "llama2"),
			Timeout:        getEnvDuration("OLLAMA_TIMEOUT", 300*time.Second),
			MaxConnections: getEnvInt("OLLAMA_MAX_CONNECTIONS", 5),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		BFF: BFFConfig{
			BaseURL:         getEnv("BFF_BASE_URL", "http://localhost:3001"),
			CallbackEnabled: getEnvBool("BFF_CALLBACK_ENABLED", true),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama base url is required")
	}

	if c.Ollama.MaxConnections < 1 {
		return fmt.Errorf("ollama max_connections must be >= 1")
	}

	if c.BFF.CallbackEnabled && c.BFF.BaseURL == "" {
		return fmt.Errorf("bff base url is required when callbacks are enabled")
	}

	return nil
}

// Addr returns the host:port the HTTP server binds to
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper functions

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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("300s") and, for env file
// compatibility, bare float seconds ("300").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
