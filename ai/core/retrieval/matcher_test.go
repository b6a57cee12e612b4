package retrieval

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Try3D/Eunoia/ai/core/embedding"
)

// fakeEncoder returns a fixed vector per text and counts calls.
type fakeEncoder struct {
	vectors map[string][]float32
	dims    int
	err     error
	calls   atomic.Int32
	last    atomic.Value
}

func (e *fakeEncoder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	e.last.Store(text)
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, e.dims), nil
}

func (e *fakeEncoder) Dimensions() int { return e.dims }

type fakeIndex struct {
	neighbors []Neighbor
	err       error
	gotK      int
}

func (i *fakeIndex) Nearest(_ context.Context, _ []float32, k int) ([]Neighbor, error) {
	i.gotK = k
	if i.err != nil {
		return nil, i.err
	}
	if len(i.neighbors) > k {
		return i.neighbors[:k], nil
	}
	return i.neighbors, nil
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero query", []float32{0, 0}, []float32{1, 0}, 0},
		{"zero record", []float32{1, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestDistanceToSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, DistanceToSimilarity(0))
	assert.Equal(t, 0.0, DistanceToSimilarity(1))
	assert.Equal(t, 0.0, DistanceToSimilarity(1.5))
	assert.Equal(t, 0.0, DistanceToSimilarity(2))
	assert.InDelta(t, 0.75, DistanceToSimilarity(0.25), 1e-12)
}

func TestMatchVector(t *testing.T) {
	records := []*ProjectRecord{
		{Title: "Orthogonal", Embedding: []float32{0, 1}},
		{Title: "Exact", Embedding: []float32{1, 0}},
		{Title: "NoEmbedding"},
		{Title: "Diagonal", Embedding: []float32{1, 1}},
		{Title: "WrongDims", Embedding: []float32{1, 0, 0}},
		{Title: "ExactTwin", Embedding: []float32{3, 0}},
		nil,
	}

	t.Run("ranked and truncated", func(t *testing.T) {
		got := MatchVector([]float32{1, 0}, records, 10)
		require.Len(t, got, 4)
		titles := []string{}
		for _, m := range got {
			titles = append(titles, m.Record.Title)
		}
		assert.Equal(t, []string{"Exact", "ExactTwin", "Diagonal", "Orthogonal"}, titles)
		assert.InDelta(t, 1.0, got[0].Score, 1e-9)
		assert.InDelta(t, 1/math.Sqrt2, got[2].Score, 1e-9)
	})

	t.Run("at most min(topN, N) and non-increasing", func(t *testing.T) {
		for topN := 1; topN <= 6; topN++ {
			got := MatchVector([]float32{0.3, 0.7}, records, topN)
			assert.LessOrEqual(t, len(got), min(topN, 4))
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
			}
		}
	})

	t.Run("non-positive topN", func(t *testing.T) {
		assert.Empty(t, MatchVector([]float32{1, 0}, records, 0))
		assert.Empty(t, MatchVector([]float32{1, 0}, records, -2))
		assert.NotNil(t, MatchVector([]float32{1, 0}, records, 0))
	})

	t.Run("no embedded records", func(t *testing.T) {
		got := MatchVector([]float32{1, 0}, []*ProjectRecord{{Title: "a"}, {Title: "b"}}, 3)
		assert.Empty(t, got)
	})

	t.Run("empty corpus", func(t *testing.T) {
		assert.Empty(t, MatchVector([]float32{1, 0}, nil, 3))
	})

	t.Run("degenerate query", func(t *testing.T) {
		got := MatchVector([]float32{0, 0}, records, 10)
		require.Len(t, got, 4)
		for _, m := range got {
			assert.Equal(t, 0.0, m.Score)
		}
		assert.Equal(t, "Orthogonal", got[0].Record.Title, "ties keep corpus order")
	})
}

func TestSnapshotMatcher_Birdhouse(t *testing.T) {
	corpus := NewCorpus(context.Background(), &staticSource{records: []*ProjectRecord{
		{Title: "Birdhouse", MaterialsRequired: []string{"wood", "nails"}, Embedding: []float32{1, 0}},
	}}, nil)
	enc := &fakeEncoder{dims: 2, vectors: map[string][]float32{"wood, nails": {1, 0}}}

	got, err := NewSnapshotMatcher(enc, corpus).Match(context.Background(), []string{"wood", "nails"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Birdhouse", got[0].Record.Title)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "wood, nails", enc.last.Load())
}

func TestSnapshotMatcher_Errors(t *testing.T) {
	ctx := context.Background()
	corpus := NewCorpus(ctx, &staticSource{records: []*ProjectRecord{{Title: "a", Embedding: []float32{1}}}}, nil)

	t.Run("encoder failure propagates", func(t *testing.T) {
		cause := errors.New("connection refused")
		enc := &fakeEncoder{err: cause}
		_, err := NewSnapshotMatcher(enc, corpus).Match(ctx, []string{"wood"}, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEncoderFailure)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("topN zero skips the encoder", func(t *testing.T) {
		enc := &fakeEncoder{dims: 1}
		got, err := NewSnapshotMatcher(enc, corpus).Match(ctx, []string{"wood"}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, int32(0), enc.calls.Load())
	})

	t.Run("empty materials still encode", func(t *testing.T) {
		enc := &fakeEncoder{dims: 1}
		_, err := NewSnapshotMatcher(enc, corpus).Match(ctx, nil, 3)
		require.NoError(t, err)
		assert.Equal(t, "", enc.last.Load())
	})
}

func TestSnapshotMatcher_EmptyMaterialsWithProvider(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"input cannot be empty","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	provider, err := embedding.NewProvider(&embedding.Config{BaseURL: srv.URL, Model: "all-minilm", Dimensions: 2})
	require.NoError(t, err)
	corpus := NewCorpus(context.Background(), &staticSource{records: []*ProjectRecord{
		{Title: "Birdhouse", Embedding: []float32{1, 0}},
		{Title: "Planter", Embedding: []float32{0, 1}},
	}}, nil)

	got, err := NewSnapshotMatcher(provider, corpus).Match(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, 0.0, m.Score)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestIndexMatcher(t *testing.T) {
	ctx := context.Background()
	a := &ProjectRecord{Title: "A"}
	b := &ProjectRecord{Title: "B"}
	c := &ProjectRecord{Title: "C"}
	d := &ProjectRecord{Title: "D"}
	enc := &fakeEncoder{dims: 2}

	t.Run("distances converted and ranked", func(t *testing.T) {
		index := &fakeIndex{neighbors: []Neighbor{
			{Record: a, Distance: 0.2},
			{Record: b, Distance: 0},
			{Record: c, Distance: 1.5},
			{Record: d, Distance: 0.2},
			{Record: nil, Distance: 0},
		}}
		got, err := NewIndexMatcher(enc, index).Match(ctx, []string{"wood"}, 10)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, b, got[0].Record)
		assert.Equal(t, 1.0, got[0].Score)
		assert.Equal(t, a, got[1].Record, "ties keep index order")
		assert.Equal(t, d, got[2].Record)
		assert.InDelta(t, 0.8, got[1].Score, 1e-12)
		assert.Equal(t, c, got[3].Record)
		assert.Equal(t, 0.0, got[3].Score, "out-of-range distance clamps to 0")
		assert.Equal(t, 10, index.gotK)
	})

	t.Run("index failure degrades to empty", func(t *testing.T) {
		got, err := NewIndexMatcher(enc, &fakeIndex{err: errors.New("down")}).Match(ctx, []string{"wood"}, 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("encoder failure propagates", func(t *testing.T) {
		_, err := NewIndexMatcher(&fakeEncoder{err: errors.New("boom")}, &fakeIndex{}).Match(ctx, nil, 3)
		assert.ErrorIs(t, err, ErrEncoderFailure)
	})

	t.Run("topN zero", func(t *testing.T) {
		e := &fakeEncoder{dims: 2}
		got, err := NewIndexMatcher(e, &fakeIndex{}).Match(ctx, nil, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, int32(0), e.calls.Load())
	})
}
