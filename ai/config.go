package ai

import (
	"errors"
	"time"

	"github.com/Try3D/Eunoia/ai/core/embedding"
	"github.com/Try3D/Eunoia/ai/core/llm"
	"github.com/Try3D/Eunoia/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding embedding.Config
	LLM       llm.Config
	Enabled   bool
}

// NewConfigFromProfile creates AI config from profile.
// The embedding config is always filled in: retrieval works without the LLM.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.AIEnabled,
	}

	cfg.Embedding = embedding.Config{
		Provider:   p.AIEmbeddingProvider,
		BaseURL:    p.AIEmbeddingBaseURL,
		APIKey:     p.AIEmbeddingAPIKey,
		Model:      p.AIEmbeddingModel,
		Dimensions: p.AIEmbeddingDimensions,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.LLM = llm.Config{
		Provider:    p.ALLMProvider,
		Model:       p.ALLMModel,
		APIKey:      p.ALLMAPIKey,
		BaseURL:     p.ALLMBaseURL,
		MaxTokens:   2048,
		Temperature: 0.7,
		Timeout:     p.ALLMTimeout,
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Embedding.Provider != "ollama" && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}

	if !c.Enabled {
		return nil
	}

	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	return nil
}
