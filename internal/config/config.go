package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names for LLM and embedding backends.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateRPS     float64  `yaml:"rate_limit_rps"`
	RateBurst   int      `yaml:"rate_limit_burst"`

	// Language models
	LLMProvider     string `yaml:"llm_provider"`
	OllamaHost      string `yaml:"ollama_base_url"`
	ModelSmall      string `yaml:"model_small"`
	ModelMedium     string `yaml:"model_medium"`
	ModelLarge      string `yaml:"model_large"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	AWSRegion       string `yaml:"aws_region"`

	// Embeddings
	EmbedProvider  string `yaml:"embed_provider"`
	EmbedModel     string `yaml:"embed_model"`
	EmbedDimension int    `yaml:"embed_dimension"`

	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"-"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Retrieval
	RAGTopK      int `yaml:"rag_top_k"`
	MemoryTopK   int `yaml:"memory_top_k"`
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Sessions and events
	SessionTTL      time.Duration `yaml:"session_ttl"`
	MaxHistory      int           `yaml:"session_max_history"`
	ConfirmationTTL time.Duration `yaml:"confirmation_ttl"`
	EventBuffer     int           `yaml:"event_buffer"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:        "3000",
		CORSOrigins: []string{"*"},
		RateRPS:     10,
		RateBurst:   20,

		LLMProvider: ProviderOllama,
		OllamaHost:  "http://127.0.0.1:11434",
		ModelSmall:  "qwen3:4b",
		ModelMedium: "mistral:latest",
		ModelLarge:  "gpt-oss:20b",
		AWSRegion:   "eu-west-1",

		EmbedProvider:  ProviderOllama,
		EmbedModel:     "qwen3-embedding:8b",
		EmbedDimension: 4096,

		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "jarvis",
		SurrealDBDatabase:  "assistant",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		RAGTopK:      5,
		MemoryTopK:   5,
		ChunkSize:    1000,
		ChunkOverlap: 150,

		SessionTTL:      30 * time.Minute,
		MaxHistory:      20,
		ConfirmationTTL: 5 * time.Minute,
		EventBuffer:     64,

		LogFile:  "/tmp/jarvis.log",
		LogLevel: slog.LevelInfo,
	}
}

// Load reads configuration from an optional YAML file named by JARVIS_CONFIG,
// then from environment variables, which take precedence.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("JARVIS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	c.RateRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateRPS)
	c.RateBurst = getEnvInt("RATE_LIMIT_BURST", c.RateBurst)

	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.OllamaHost = getEnv("OLLAMA_BASE_URL", c.OllamaHost)
	c.ModelSmall = getEnv("OLLAMA_MODEL_SMALL", c.ModelSmall)
	c.ModelMedium = getEnv("OLLAMA_MODEL_MEDIUM", c.ModelMedium)
	c.ModelLarge = getEnv("OLLAMA_MODEL_LARGE", c.ModelLarge)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)

	c.EmbedProvider = getEnv("EMBED_PROVIDER", c.EmbedProvider)
	c.EmbedModel = getEnv("OLLAMA_EMBED_MODEL", c.EmbedModel)
	c.EmbedDimension = getEnvInt("EMBED_DIMENSION", c.EmbedDimension)

	c.SurrealDBURL = getEnv("SURREALDB_URL", c.SurrealDBURL)
	c.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", c.SurrealDBNamespace)
	c.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", c.SurrealDBDatabase)
	c.SurrealDBUser = getEnv("SURREALDB_USER", c.SurrealDBUser)
	c.SurrealDBPass = getEnv("SURREALDB_PASS", c.SurrealDBPass)
	c.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", c.SurrealDBAuthLevel)

	c.RAGTopK = getEnvInt("RAG_TOP_K", c.RAGTopK)
	c.MemoryTopK = getEnvInt("MEMORY_TOP_K", c.MemoryTopK)
	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.ChunkOverlap)

	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.MaxHistory = getEnvInt("SESSION_MAX_HISTORY", c.MaxHistory)
	c.ConfirmationTTL = getEnvDuration("CONFIRMATION_TTL", c.ConfirmationTTL)
	c.EventBuffer = getEnvInt("EVENT_BUFFER", c.EventBuffer)

	c.LogFile = getEnv("JARVIS_LOG_FILE", c.LogFile)
	if v := os.Getenv("JARVIS_LOG_LEVEL"); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderOllama, ProviderBedrock:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM provider: %q", c.LLMProvider))
	}

	switch c.EmbedProvider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for openai embeddings"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported embedding provider: %q", c.EmbedProvider))
	}

	if c.EmbedDimension <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIMENSION must be positive, got %d", c.EmbedDimension))
	}
	if c.RAGTopK < 1 || c.RAGTopK > 50 {
		errs = append(errs, fmt.Errorf("RAG_TOP_K must be between 1 and 50, got %d", c.RAGTopK))
	}
	if c.MemoryTopK < 1 || c.MemoryTopK > 50 {
		errs = append(errs, fmt.Errorf("MEMORY_TOP_K must be between 1 and 50, got %d", c.MemoryTopK))
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got size %d overlap %d", c.ChunkSize, c.ChunkOverlap))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_HISTORY must be positive, got %d", c.MaxHistory))
	}
	if c.RateRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %g", c.RateRPS))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		slog.Warn("invalid number in environment, using default", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val)
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
