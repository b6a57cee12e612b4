package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingServer starts an OpenAI-compatible /embeddings endpoint.
// The first failures requests answer with status failStatus.
func newEmbeddingServer(t *testing.T, failures int32, failStatus int, vec func(input string) []float32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if n <= failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failStatus)
			_, _ = w.Write([]byte(`{"error":{"message":"try later","type":"server_error"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec(in)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func lengthVector(input string) []float32 {
	return []float32{float32(len(input)), 1, 0}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "all-minilm", cfg.Model)
	assert.Equal(t, 384, cfg.Dimensions)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(nil)
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", p.Model())

	p, err = NewProvider(&Config{BaseURL: "https://api.test.com", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.config.MaxRetries)
	assert.Equal(t, 30*time.Second, p.config.Timeout)
	assert.Equal(t, "all-minilm", p.config.Model)

	_, err = NewProvider(&Config{Dimensions: -1})
	assert.Error(t, err)
}

func TestProvider_Validate(t *testing.T) {
	p, err := NewProvider(&Config{Provider: "openai", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.ErrorContains(t, p.Validate(context.TODO()), "API key is required")

	p, err = NewProvider(&Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.NoError(t, p.Validate(context.TODO()))
}

func TestNewProviderFromEnv(t *testing.T) {
	t.Setenv("EUNOIA_AI_EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("EUNOIA_AI_EMBEDDING_DIMENSIONS", "768")

	p, err := NewProviderFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", p.Model())
	assert.Equal(t, 768, p.Dimensions())
}

func TestProvider_Embed(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 0, 0, lengthVector)

	p, err := NewProvider(&Config{BaseURL: srv.URL, Model: "all-minilm", Dimensions: 3})
	require.NoError(t, err)

	v, err := p.Embed(context.Background(), "wood, nails")
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 1, 0}, v)
	assert.Equal(t, int32(1), calls.Load())

	vs, err := p.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, float32(2), vs[1][0])

	_, err = p.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestProvider_EmbedBlankText(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 0, 0, lengthVector)

	p, err := NewProvider(&Config{BaseURL: srv.URL, Model: "all-minilm", Dimensions: 3})
	require.NoError(t, err)
	for _, text := range []string{"", "  \t\n"} {
		v, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0, 0}, v)
	}
	assert.Equal(t, int32(0), calls.Load(), "blank text never reaches the endpoint")

	// Without a configured length there is no zero vector to return.
	p, err = NewProvider(&Config{BaseURL: srv.URL, Model: "all-minilm"})
	require.NoError(t, err)
	v, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProvider_RetriesServerErrors(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 2, http.StatusServiceUnavailable, lengthVector)

	p, err := NewProvider(&Config{BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	v, err := p.Embed(context.Background(), "glue")
	require.NoError(t, err)
	assert.Equal(t, float32(4), v[0])
	assert.Equal(t, int32(3), calls.Load())
}

func TestProvider_NoRetryOnClientError(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 10, http.StatusBadRequest, lengthVector)

	p, err := NewProvider(&Config{BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "glue")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProvider_GivesUpAfterMaxRetries(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 10, http.StatusInternalServerError, lengthVector)

	p, err := NewProvider(&Config{BaseURL: srv.URL, MaxRetries: 2})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "glue")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

type countingEncoder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEncoder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return lengthVector(text), nil
}

func (c *countingEncoder) Dimensions() int { return 3 }

func TestCachedEncoder(t *testing.T) {
	next := &countingEncoder{}
	enc := NewCachedEncoder(next, 10, time.Minute, nil)

	v1, err := enc.Embed(context.Background(), "plastic bottle")
	require.NoError(t, err)
	v2, err := enc.Embed(context.Background(), "plastic bottle")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, 3, enc.Dimensions())

	stats := enc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCachedEncoder_DoesNotCacheErrors(t *testing.T) {
	next := &countingEncoder{err: errors.New("down")}
	enc := NewCachedEncoder(next, 10, time.Minute, nil)

	_, err := enc.Embed(context.Background(), "x")
	require.Error(t, err)
	_, err = enc.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}
