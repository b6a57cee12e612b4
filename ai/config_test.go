package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Try3D/Eunoia/ai/core/embedding"
	"github.com/Try3D/Eunoia/ai/core/llm"
	"github.com/Try3D/Eunoia/internal/profile"
)

func TestNewConfigFromProfile_Gemini(t *testing.T) {
	prof := &profile.Profile{
		AIEnabled:             true,
		ALLMProvider:          "gemini",
		ALLMAPIKey:            "gemini-key",
		ALLMBaseURL:           "https://generativelanguage.googleapis.com/v1beta/openai/",
		ALLMModel:             "gemini-2.0-flash",
		ALLMTimeout:           60,
		AIEmbeddingProvider:   "ollama",
		AIEmbeddingModel:      "all-minilm",
		AIEmbeddingBaseURL:    "http://localhost:11434/v1",
		AIEmbeddingDimensions: 384,
	}

	cfg := NewConfigFromProfile(prof)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 60, cfg.LLM.Timeout)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 3, cfg.Embedding.MaxRetries)
	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromProfile_Disabled(t *testing.T) {
	prof := &profile.Profile{
		AIEmbeddingProvider: "ollama",
		AIEmbeddingModel:    "all-minilm",
	}

	cfg := NewConfigFromProfile(prof)

	assert.False(t, cfg.Enabled)
	assert.Empty(t, cfg.LLM.Provider)
	assert.Equal(t, "all-minilm", cfg.Embedding.Model, "embedding config is set even when the LLM is disabled")
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "missing embedding model",
			cfg:     &Config{},
			wantErr: true,
		},
		{
			name:    "hosted embedding without key",
			cfg:     &Config{Embedding: embedding.Config{Provider: "openai", Model: "text-embedding-3-small"}},
			wantErr: true,
		},
		{
			name: "enabled without LLM key",
			cfg: &Config{
				Enabled:   true,
				Embedding: embedding.Config{Provider: "ollama", Model: "all-minilm"},
				LLM:       llm.Config{Provider: "gemini"},
			},
			wantErr: true,
		},
		{
			name: "ollama everywhere",
			cfg: &Config{
				Enabled:   true,
				Embedding: embedding.Config{Provider: "ollama", Model: "all-minilm"},
				LLM:       llm.Config{Provider: "ollama", Model: "llava"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
