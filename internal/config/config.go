// Package config provides configuration management for Recall.
// Settings come from an optional YAML file plus environment variables with
// the RECALL_ prefix; environment variables win, and every option has a
// sensible default so a bare `recall-server` starts with a local SQLite
// store and no LLM.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Recall application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Security SecurityConfig `yaml:"security"`
	Engine   EngineConfig   `yaml:"engine"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6380)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`        // Storage engine: sqlite, postgres, neo4j (default: sqlite)
	DataPath    string `yaml:"data_path"`     // Path to data directory for sqlite (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"`  // Connection string when engine is postgres
	Neo4jURI    string `yaml:"neo4j_uri"`     // Bolt URI when engine is neo4j
	Neo4jUser   string `yaml:"neo4j_user"`    // Neo4j user (default: neo4j)
	Neo4jPass   string `yaml:"neo4j_password"`
	Neo4jDB     string `yaml:"neo4j_database"`
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider        string `yaml:"provider"`          // LLM provider: none, ollama, openai, anthropic (default: none)
	OllamaURL       string `yaml:"ollama_url"`        // Ollama API URL (default: http://localhost:11434)
	OllamaModel     string `yaml:"ollama_model"`      // Ollama model name (default: qwen2.5:7b)
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIModel     string `yaml:"openai_model"`      // (default: gpt-4o-mini)
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`   // (default: claude-3-5-sonnet-20241022)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	Mode      string  `yaml:"mode"`       // Security mode: development, production (default: development)
	APIToken  string  `yaml:"api_token"`  // Bearer token; required in production mode
	RateLimit float64 `yaml:"rate_limit"` // Requests per second per server (default: 10)
	RateBurst int     `yaml:"rate_burst"` // Burst allowance (default: 20)
}

// EngineConfig tunes the memory engine's queues and deadlines.
type EngineConfig struct {
	IngestWorkers    int           `yaml:"ingest_workers"`     // Ingestion worker count (default: 2)
	IngestQueueSize  int           `yaml:"ingest_queue_size"`  // Bounded queue capacity (default: 256)
	ReadDeadline     time.Duration `yaml:"read_deadline"`      // Retrieval deadline (default: 500ms)
	ContextCharLimit int           `yaml:"context_char_limit"` // Assembled context budget (default: 4000)
	MessageWindow    int           `yaml:"message_window"`     // Messages per retrieval (default: 10)
	TurnWindow       int           `yaml:"turn_window"`        // Chat turns per lane (default: 20)
}

// LoadConfig loads configuration from the file named by RECALL_CONFIG_FILE
// (if set) and then applies RECALL_-prefixed environment variables on top.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("RECALL_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "postgres", "neo4j":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres engine requires a DSN")
	}
	if c.Storage.Engine == "neo4j" && c.Storage.Neo4jURI == "" {
		return fmt.Errorf("config: neo4j engine requires a URI")
	}
	if c.Security.Mode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: production mode requires an API token")
	}
	if c.Engine.ReadDeadline <= 0 {
		return fmt.Errorf("config: read deadline must be positive")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 6380,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			Engine:    "sqlite",
			DataPath:  "./data",
			Neo4jUser: "neo4j",
		},
		LLM: LLMConfig{
			Provider:       "none",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "qwen2.5:7b",
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-3-5-sonnet-20241022",
		},
		Security: SecurityConfig{
			Mode:      "development",
			RateLimit: 10,
			RateBurst: 20,
		},
		Engine: EngineConfig{
			IngestWorkers:    2,
			IngestQueueSize:  256,
			ReadDeadline:     500 * time.Millisecond,
			ContextCharLimit: 4000,
			MessageWindow:    10,
			TurnWindow:       20,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("RECALL_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("RECALL_HOST", cfg.Server.Host)

	cfg.Storage.Engine = getEnv("RECALL_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("RECALL_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("RECALL_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.Neo4jURI = getEnv("RECALL_NEO4J_URI", cfg.Storage.Neo4jURI)
	cfg.Storage.Neo4jUser = getEnv("RECALL_NEO4J_USER", cfg.Storage.Neo4jUser)
	cfg.Storage.Neo4jPass = getEnv("RECALL_NEO4J_PASSWORD", cfg.Storage.Neo4jPass)
	cfg.Storage.Neo4jDB = getEnv("RECALL_NEO4J_DATABASE", cfg.Storage.Neo4jDB)

	cfg.LLM.Provider = getEnv("RECALL_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("RECALL_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("RECALL_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OpenAIAPIKey = getEnv("RECALL_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("RECALL_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.AnthropicAPIKey = getEnv("RECALL_ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.AnthropicModel = getEnv("RECALL_ANTHROPIC_MODEL", cfg.LLM.AnthropicModel)

	cfg.Security.Mode = getEnv("RECALL_SECURITY_MODE", cfg.Security.Mode)
	cfg.Security.APIToken = getEnv("RECALL_API_TOKEN", cfg.Security.APIToken)

	cfg.Engine.IngestWorkers = getEnvInt("RECALL_INGEST_WORKERS", cfg.Engine.IngestWorkers)
	cfg.Engine.IngestQueueSize = getEnvInt("RECALL_INGEST_QUEUE_SIZE", cfg.Engine.IngestQueueSize)
	cfg.Engine.ReadDeadline = getEnvDuration("RECALL_READ_DEADLINE", cfg.Engine.ReadDeadline)
	cfg.Engine.ContextCharLimit = getEnvInt("RECALL_CONTEXT_CHAR_LIMIT", cfg.Engine.ContextCharLimit)
	cfg.Engine.MessageWindow = getEnvInt("RECALL_MESSAGE_WINDOW", cfg.Engine.MessageWindow)
	cfg.Engine.TurnWindow = getEnvInt("RECALL_TURN_WINDOW", cfg.Engine.TurnWindow)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("500ms", "2s")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
