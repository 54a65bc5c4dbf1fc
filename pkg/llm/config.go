package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/that-cod/reepost-ai-sub001/pkg/config"
)

// DefaultEmbeddingDimensions matches the posts.embedding column.
const DefaultEmbeddingDimensions = 1536

type Config struct {
	Provider    string
	Model       string
	APIKey      string
	APIURL      string
	MaxTokens   int
	Temperature float64
	Dimensions  int
	Timeout     time.Duration
}

func LoadConfig() Config {
	return Config{
		Provider:    config.GetEnv("LLM_PROVIDER", "openai"),
		Model:       config.GetEnv("LLM_MODEL", "gpt-4o-mini"),
		APIKey:      config.GetEnv("LLM_API_KEY", ""),
		APIURL:      config.GetEnv("LLM_API_URL", ""),
		MaxTokens:   config.GetEnvInt("LLM_MAX_TOKENS", 1024),
		Temperature: 0.7,
		Timeout:     config.GetEnvDuration("LLM_TIMEOUT", 60*time.Second),
	}
}

// LoadEmbeddingConfig loads embedding-specific configuration from EMBEDDING_*
// env vars, falling back to their LLM_* counterparts when unset.
func LoadEmbeddingConfig() Config {
	return Config{
		Provider:   config.GetEnv("EMBEDDING_PROVIDER", config.GetEnv("LLM_PROVIDER", "openai")),
		Model:      config.GetEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		APIKey:     config.GetEnv("EMBEDDING_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		APIURL:     config.GetEnv("EMBEDDING_API_URL", config.GetEnv("LLM_API_URL", "")),
		Dimensions: config.GetEnvInt("EMBEDDING_DIMENSIONS", DefaultEmbeddingDimensions),
		Timeout:    config.GetEnvDuration("EMBEDDING_TIMEOUT", 30*time.Second),
	}
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		if strings.TrimSpace(cfg.APIURL) == "" {
			cfg.APIURL = "http://localhost:11434/v1"
		}
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
