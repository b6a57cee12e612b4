// Package embedding turns text into fixed-length float32 vectors through an
// OpenAI-compatible embeddings endpoint (OpenAI, Ollama, or any gateway).
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Try3D/Eunoia/ai/metrics"
)

// Encoder maps text to a vector. Implementations must be deterministic for a
// given model and safe for concurrent use.
type Encoder interface {
	// Embed generates the vector for a single text. Blank text (empty or
	// whitespace only) must not fail when Dimensions is known: it maps to the
	// zero vector of that length, which is similar to nothing.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the configured vector length, or 0 if unknown.
	Dimensions() int
}

// BatchEncoder is an Encoder that can embed several texts in one request.
type BatchEncoder interface {
	Encoder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrEmptyResponse is returned when the endpoint answers without vectors.
var ErrEmptyResponse = errors.New("empty embedding response")

// Config configures the embedding provider.
type Config struct {
	Provider   string // openai, ollama, or any OpenAI-compatible name
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the configuration matching the bundled corpus:
// all-MiniLM served by a local Ollama, 384 dimensions.
func DefaultConfig() *Config {
	return &Config{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434/v1",
		Model:      "all-minilm",
		Dimensions: 384,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// Provider is an Encoder backed by go-openai's CreateEmbeddings.
type Provider struct {
	config  *Config
	client  *openai.Client
	metrics *metrics.PrometheusExporter
}

// NewProvider creates a Provider, filling zero-valued fields from DefaultConfig.
func NewProvider(cfg *Config) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	c := *cfg
	if c.BaseURL == "" {
		c.BaseURL = defaults.BaseURL
	}
	if c.Model == "" {
		c.Model = defaults.Model
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Dimensions < 0 {
		return nil, fmt.Errorf("invalid embedding dimensions: %d", c.Dimensions)
	}

	clientConfig := openai.DefaultConfig(c.APIKey)
	clientConfig.BaseURL = c.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: c.Timeout}

	return &Provider{
		config: &c,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// NewProviderFromEnv creates a Provider from EUNOIA_AI_EMBEDDING_* variables.
func NewProviderFromEnv() (*Provider, error) {
	defaults := DefaultConfig()
	dims, err := strconv.Atoi(getEnv("EUNOIA_AI_EMBEDDING_DIMENSIONS", strconv.Itoa(defaults.Dimensions)))
	if err != nil {
		dims = defaults.Dimensions
	}
	return NewProvider(&Config{
		Provider:   getEnv("EUNOIA_AI_EMBEDDING_PROVIDER", defaults.Provider),
		BaseURL:    getEnv("EUNOIA_AI_EMBEDDING_BASE_URL", defaults.BaseURL),
		APIKey:     getEnv("EUNOIA_AI_EMBEDDING_API_KEY", ""),
		Model:      getEnv("EUNOIA_AI_EMBEDDING_MODEL", defaults.Model),
		Dimensions: dims,
	})
}

// WithMetrics attaches a metrics exporter.
func (p *Provider) WithMetrics(m *metrics.PrometheusExporter) *Provider {
	p.metrics = m
	return p
}

// Model returns the embedding model name.
func (p *Provider) Model() string {
	return p.config.Model
}

// Dimensions returns the configured vector length.
func (p *Provider) Dimensions() int {
	return p.config.Dimensions
}

// Validate checks that the configuration can reach a hosted provider.
func (p *Provider) Validate(_ context.Context) error {
	if p.config.Provider != "ollama" && p.config.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if p.config.Model == "" {
		return errors.New("embedding model is required")
	}
	return nil
}

// Embed generates the vector for a single text. Blank text returns the zero
// vector without a request when Dimensions is configured, since most
// endpoints reject empty input; with unknown dimensions it is sent as is.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" && p.config.Dimensions > 0 {
		return make([]float32, p.config.Dimensions), nil
	}
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates vectors for multiple texts, retrying transient failures.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.config.Model),
	}
	// Only OpenAI's text-embedding-3 family accepts a dimensions override.
	if p.config.Provider == "openai" && p.config.Dimensions > 0 {
		req.Dimensions = p.config.Dimensions
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 200 * time.Millisecond
			slog.Debug("embedding: retrying", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				break
			}
			continue
		}

		if len(resp.Data) != len(texts) {
			lastErr = fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmptyResponse, len(resp.Data), len(texts))
			break
		}

		vectors := make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(vectors) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		if p.config.Dimensions > 0 && len(vectors[0]) != p.config.Dimensions {
			slog.Warn("embedding: dimension differs from configuration",
				"model", p.config.Model,
				"configured", p.config.Dimensions,
				"actual", len(vectors[0]),
			)
		}

		p.metrics.RecordEmbedding(p.config.Model, time.Since(start), true)
		return vectors, nil
	}

	p.metrics.RecordEmbedding(p.config.Model, time.Since(start), false)
	slog.Error("embedding: request failed", "model", p.config.Model, "error", lastErr)
	return nil, fmt.Errorf("create embeddings failed: %w", lastErr)
}

// retryable reports whether err is worth another attempt: network failures,
// rate limits and server errors.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
