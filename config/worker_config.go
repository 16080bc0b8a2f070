package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/agent/llm"

	"github.com/BurntSushi/toml"
)

// Message store backends.
const (
	StorePostgres = "postgres"
	StoreMongoDB  = "mongodb"
	StoreMemory   = "memory"
)

type Config struct {
	Port        string `toml:"port"`
	Environment string `toml:"env"`
	LogLevel    string `toml:"log_level"`

	// Database
	DatabaseURL    string `toml:"database_url"`
	MongoDBURL     string `toml:"mongodb_url"`
	MongoDBName    string `toml:"mongodb_database"`
	RedisURL       string `toml:"redis_url"`
	MessageStore   string `toml:"message_store"`
	MemorySeedFile string `toml:"memory_seed_file"`

	// JWT
	JWTSecret string `toml:"jwt_secret"`

	// OpenAI
	OpenAIAPIKey    string `toml:"openai_api_key"`
	OpenAIBaseURL   string `toml:"openai_base_url"`
	LLMModel        string `toml:"llm_model"`
	EmbeddingModel  string `toml:"embedding_model"`
	LLMTimeoutSec   int    `toml:"llm_timeout_sec"`
	LLMMaxRetries   int    `toml:"llm_max_retries"`
	ReasoningPrompt string `toml:"reasoning_prompt"`

	// Planner
	VectorNamespace      string `toml:"vector_namespace"`
	SemanticTopK         int    `toml:"semantic_top_k"`
	MaxCandidates        int    `toml:"max_candidates"`
	FanOutConcurrency    int    `toml:"fanout_concurrency"`
	PlannerTimezone      string `toml:"planner_timezone"`
	EmbeddingCacheTTLMin int    `toml:"embedding_cache_ttl_min"`

	// Rate limit (per user)
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`

	// CORS
	AllowedOrigins []string `toml:"allowed_origins"`

	// MCP
	MCPUserEmail string `toml:"mcp_user_email"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",

		MongoDBName:  "inbox",
		MessageStore: StorePostgres,

		LLMModel:       "gpt-4o-mini",
		EmbeddingModel: llm.DefaultEmbeddingModel,
		LLMTimeoutSec:  30,
		LLMMaxRetries:  3,

		VectorNamespace:      "messages",
		SemanticTopK:         10,
		MaxCandidates:        1000,
		FanOutConcurrency:    4,
		PlannerTimezone:      "UTC",
		EmbeddingCacheTTLMin: 60,

		RateLimitRPS:   5,
		RateLimitBurst: 10,

		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Load builds the configuration from defaults, then the optional TOML file
// named by PLANNER_CONFIG, then the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("PLANNER_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	// Database
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.MongoDBURL = getEnv("MONGODB_URL", c.MongoDBURL)
	c.MongoDBName = getEnv("MONGODB_DATABASE", c.MongoDBName)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.MessageStore = strings.ToLower(getEnv("MESSAGE_STORE", c.MessageStore))
	c.MemorySeedFile = getEnv("MEMORY_SEED_FILE", c.MemorySeedFile)

	// JWT
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	// OpenAI
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.LLMTimeoutSec = getEnvInt("LLM_TIMEOUT_SEC", c.LLMTimeoutSec)
	c.LLMMaxRetries = getEnvInt("LLM_MAX_RETRIES", c.LLMMaxRetries)
	c.ReasoningPrompt = getEnv("REASONING_PROMPT", c.ReasoningPrompt)

	// Planner
	c.VectorNamespace = getEnv("VECTOR_NAMESPACE", c.VectorNamespace)
	c.SemanticTopK = getEnvInt("SEMANTIC_TOP_K", c.SemanticTopK)
	c.MaxCandidates = getEnvInt("MAX_CANDIDATES", c.MaxCandidates)
	c.FanOutConcurrency = getEnvInt("FANOUT_CONCURRENCY", c.FanOutConcurrency)
	c.PlannerTimezone = getEnv("PLANNER_TIMEZONE", c.PlannerTimezone)
	c.EmbeddingCacheTTLMin = getEnvInt("EMBEDDING_CACHE_TTL_MIN", c.EmbeddingCacheTTLMin)

	// Rate limit
	c.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)

	// CORS
	c.AllowedOrigins = getEnvSlice("ALLOWED_ORIGINS", c.AllowedOrigins)

	// MCP
	c.MCPUserEmail = getEnv("MCP_USER_EMAIL", c.MCPUserEmail)
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	var errs []error
	switch c.MessageStore {
	case StorePostgres, StoreMongoDB, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("MESSAGE_STORE: unknown backend %q", c.MessageStore))
	}
	if c.MessageStore == StoreMongoDB && c.MongoDBURL == "" {
		errs = append(errs, errors.New("MONGODB_URL is required when MESSAGE_STORE=mongodb"))
	}
	if _, err := time.LoadLocation(c.PlannerTimezone); err != nil {
		errs = append(errs, fmt.Errorf("PLANNER_TIMEZONE: %w", err))
	}
	if _, err := llm.ParseEmbeddingModel(c.EmbeddingModel); err != nil {
		errs = append(errs, fmt.Errorf("EMBEDDING_MODEL: %w", err))
	}
	if c.SemanticTopK <= 0 {
		errs = append(errs, errors.New("SEMANTIC_TOP_K must be positive"))
	}
	if c.MaxCandidates <= 0 {
		errs = append(errs, errors.New("MAX_CANDIDATES must be positive"))
	}
	return errors.Join(errs...)
}

// Location returns the planner time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.PlannerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LLMTimeout returns the per-call model timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// EmbeddingCacheTTL returns how long query embeddings stay in the shared cache.
func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.EmbeddingCacheTTLMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
