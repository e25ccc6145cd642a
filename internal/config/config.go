package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for ParallelProof
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Fork      ForkConfig      `json:"fork"`
	Agent     AgentConfig     `json:"agent"`
	Log       LogConfig       `json:"log"`
}

// LLMConfig holds generative model API configuration (any OpenAI-compatible endpoint)
type LLMConfig struct {
	URL                string  `json:"url"`
	APIKey             string  `json:"api_key"`
	Model              string  `json:"model"`
	MaxTokens          int     `json:"max_tokens"`
	Temperature        float64 `json:"temperature"`
	RateLimitPerMinute int     `json:"rate_limit_per_minute"`
	TimeoutSeconds     int     `json:"timeout_seconds"`
}

// EmbeddingConfig holds embedding API configuration
type EmbeddingConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`      // e.g., "text-embedding-3-small"
	Dimensions int    `json:"dimensions"` // must match the patterns.embeddings column
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
	MaxConns    int    `json:"max_conns"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	CORSOrigins    []string `json:"cors_origins"`
	MaxConnections int      `json:"max_connections"` // 0 disables the listener cap
	Environment    string   `json:"environment"`     // reported by /health
}

// ForkConfig controls how isolated environments are provisioned
type ForkConfig struct {
	Mode          string `json:"mode"`         // "virtual" or "real"
	BaseService   string `json:"base_service"` // service forked in real mode
	CLI           string `json:"cli"`          // fork CLI binary, e.g. "tiger"
	MaxConcurrent int    `json:"max_concurrent"`
}

// MaxSearchLimit caps the patterns one agent retrieves as context.
const MaxSearchLimit = 5

// AgentConfig holds per-task fan-out settings
type AgentConfig struct {
	DefaultCount        int `json:"default_count"`
	MaxCount            int `json:"max_count"`
	AgentTimeoutSeconds int `json:"agent_timeout_seconds"`
	TaskTimeoutSeconds  int `json:"task_timeout_seconds"`
	SearchLimit         int `json:"search_limit"`
	QueryPrefixChars    int `json:"query_prefix_chars"`
	// StrategyCatalog is a YAML file replacing the built-in catalog when set
	StrategyCatalog string `json:"strategy_catalog"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			URL:                "http://localhost:8000/v1",
			Model:              "gemini-2.0-flash",
			MaxTokens:          4096,
			Temperature:        0.7,
			RateLimitPerMinute: 60,
			TimeoutSeconds:     120,
		},
		Embedding: EmbeddingConfig{
			URL:        "",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Database: DatabaseConfig{
			PostgresURL: "postgres://localhost:5432/parallelproof",
			MaxConns:    20,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			Environment: "development",
		},
		Fork: ForkConfig{
			Mode:          "virtual",
			CLI:           "tiger",
			MaxConcurrent: 100,
		},
		Agent: AgentConfig{
			DefaultCount:        50,
			MaxCount:            100,
			AgentTimeoutSeconds: 180,
			TaskTimeoutSeconds:  300,
			SearchLimit:         3,
			QueryPrefixChars:    500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// AgentTimeout returns the per-agent deadline
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.AgentTimeoutSeconds) * time.Second
}

// TaskTimeout returns the whole-task deadline
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Agent.TaskTimeoutSeconds) * time.Second
}

// LLMTimeout returns the per-request HTTP timeout for generation
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load reads the config file, applies environment overrides and validates the result
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyEnv() {
	envString("PARALLELPROOF_LLM_URL", &cfg.LLM.URL)
	envString("PARALLELPROOF_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("PARALLELPROOF_LLM_MODEL", &cfg.LLM.Model)
	envInt("PARALLELPROOF_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envFloat("PARALLELPROOF_LLM_TEMPERATURE", &cfg.LLM.Temperature)
	envInt("PARALLELPROOF_LLM_RATE_LIMIT_PER_MINUTE", &cfg.LLM.RateLimitPerMinute)
	envInt("PARALLELPROOF_LLM_TIMEOUT_SECONDS", &cfg.LLM.TimeoutSeconds)

	envString("PARALLELPROOF_EMBEDDING_URL", &cfg.Embedding.URL)
	envString("PARALLELPROOF_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	envString("PARALLELPROOF_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("PARALLELPROOF_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)

	envString("PARALLELPROOF_POSTGRES_URL", &cfg.Database.PostgresURL)
	envInt("PARALLELPROOF_DB_MAX_CONNS", &cfg.Database.MaxConns)

	envString("PARALLELPROOF_SERVER_HOST", &cfg.Server.Host)
	envInt("PARALLELPROOF_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("PARALLELPROOF_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	envInt("PARALLELPROOF_SERVER_MAX_CONNECTIONS", &cfg.Server.MaxConnections)
	envString("PARALLELPROOF_ENV", &cfg.Server.Environment)

	envString("PARALLELPROOF_FORK_MODE", &cfg.Fork.Mode)
	envString("PARALLELPROOF_FORK_BASE_SERVICE", &cfg.Fork.BaseService)
	envString("PARALLELPROOF_FORK_CLI", &cfg.Fork.CLI)
	envInt("PARALLELPROOF_FORK_MAX_CONCURRENT", &cfg.Fork.MaxConcurrent)

	envInt("PARALLELPROOF_AGENT_DEFAULT_COUNT", &cfg.Agent.DefaultCount)
	envInt("PARALLELPROOF_AGENT_MAX_COUNT", &cfg.Agent.MaxCount)
	envInt("PARALLELPROOF_AGENT_TIMEOUT_SECONDS", &cfg.Agent.AgentTimeoutSeconds)
	envInt("PARALLELPROOF_TASK_TIMEOUT_SECONDS", &cfg.Agent.TaskTimeoutSeconds)
	envInt("PARALLELPROOF_AGENT_SEARCH_LIMIT", &cfg.Agent.SearchLimit)
	envInt("PARALLELPROOF_AGENT_QUERY_PREFIX_CHARS", &cfg.Agent.QueryPrefixChars)
	envString("PARALLELPROOF_AGENT_STRATEGY_CATALOG", &cfg.Agent.StrategyCatalog)

	envString("PARALLELPROOF_LOG_LEVEL", &cfg.Log.Level)
	envString("PARALLELPROOF_LOG_FORMAT", &cfg.Log.Format)
}

// IsEmbeddingConfigured returns true if embedding service is configured
func (c *Config) IsEmbeddingConfigured() bool {
	return c.Embedding.URL != ""
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, "server max_connections must not be negative")
	}

	// LLM validation
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "LLM max_tokens must be positive")
	}
	if c.LLM.URL == "" {
		errs = append(errs, "LLM URL is required")
	} else if !isValidURL(c.LLM.URL) {
		errs = append(errs, "LLM URL must be a valid URL")
	}
	if c.LLM.RateLimitPerMinute < 0 {
		errs = append(errs, "LLM rate_limit_per_minute must not be negative")
	}
	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, "LLM timeout_seconds must be positive")
	}

	// Database validation
	if c.Database.PostgresURL == "" {
		errs = append(errs, "PostgreSQL URL is required")
	} else if !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}
	if c.Database.MaxConns < 1 {
		errs = append(errs, "database max_conns must be positive")
	}

	// Embedding validation (optional but validate if set)
	if c.Embedding.URL != "" {
		if !isValidURL(c.Embedding.URL) {
			errs = append(errs, "Embedding URL must be a valid URL")
		}
		if c.Embedding.Dimensions < 1 {
			errs = append(errs, "Embedding dimensions must be positive when URL is set")
		}
	}

	// Fork validation
	switch c.Fork.Mode {
	case "virtual":
	case "real":
		if c.Fork.BaseService == "" {
			errs = append(errs, "fork base_service is required in real mode")
		}
		if c.Fork.CLI == "" {
			errs = append(errs, "fork cli is required in real mode")
		}
	default:
		errs = append(errs, "fork mode must be 'virtual' or 'real'")
	}
	if c.Fork.MaxConcurrent < 1 {
		errs = append(errs, "fork max_concurrent must be at least 1")
	}

	// Agent validation
	if c.Agent.MaxCount < 1 {
		errs = append(errs, "agent max_count must be at least 1")
	}
	if c.Agent.DefaultCount < 1 || c.Agent.DefaultCount > c.Agent.MaxCount {
		errs = append(errs, fmt.Sprintf("agent default_count must be between 1 and %d", c.Agent.MaxCount))
	}
	if c.Agent.AgentTimeoutSeconds < 1 {
		errs = append(errs, "agent_timeout_seconds must be positive")
	}
	if c.Agent.TaskTimeoutSeconds < c.Agent.AgentTimeoutSeconds {
		errs = append(errs, "task_timeout_seconds must not be shorter than agent_timeout_seconds")
	}
	if c.Agent.SearchLimit < 1 || c.Agent.SearchLimit > MaxSearchLimit {
		errs = append(errs, fmt.Sprintf("agent search_limit must be between 1 and %d", MaxSearchLimit))
	}
	if c.Agent.QueryPrefixChars < 1 {
		errs = append(errs, "agent query_prefix_chars must be positive")
	}

	// Log validation
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, "log format must be 'text' or 'json'")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("PARALLELPROOF_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	// Check ~/.config/parallelproof/config.json first
	configPath := filepath.Join(homeDir, ".config", "parallelproof", "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	// Check ~/.parallelproof/config.json
	altPath := filepath.Join(homeDir, ".parallelproof", "config.json")
	if _, err := os.Stat(altPath); err == nil {
		return altPath
	}

	return configPath
}
