package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Try3D/Eunoia/ai/metrics"
	"github.com/Try3D/Eunoia/internal/profile"
	"github.com/Try3D/Eunoia/store"
	"github.com/Try3D/Eunoia/store/db/sqlite"
)

func newTestMetrics() *metrics.PrometheusExporter {
	return metrics.NewPrometheusExporter(metrics.Config{Registry: prometheus.NewRegistry()})
}

func gaugeValue(t *testing.T, m *metrics.PrometheusExporter, name string) float64 {
	t.Helper()
	families, err := m.GetRegistry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestRetriever_Suggest(t *testing.T) {
	ctx := context.Background()
	m := newTestMetrics()
	src := &staticSource{records: []*ProjectRecord{
		{Title: "Birdhouse", MaterialsRequired: []string{"wood", "nails"}, Embedding: []float32{1, 0}},
		{Embedding: []float32{0, 1}},
	}}
	enc := &fakeEncoder{dims: 2, vectors: map[string][]float32{"wood, nails": {1, 0}}}
	r := NewCorpusRetriever(enc, NewCorpus(ctx, src, m), 3, m)

	got, err := r.Suggest(ctx, []string{"wood", "nails"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Birdhouse", got[0].Title)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	assert.Equal(t, "Untitled Project", got[1].Title)
	assert.Equal(t, "static", r.Source())
	assert.Equal(t, 3, r.DefaultTopN())

	size, err := r.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	assert.Equal(t, 2.0, gaugeValue(t, m, "eunoia_retrieval_corpus_records"))

	_, err = NewCorpusRetriever(&fakeEncoder{err: errors.New("down")}, NewCorpus(ctx, src, nil), 3, nil).Suggest(ctx, []string{"x"}, 3)
	assert.ErrorIs(t, err, ErrEncoderFailure)
}

func TestRetriever_Reload(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{records: []*ProjectRecord{{Title: "A"}}}
	r := NewCorpusRetriever(&fakeEncoder{dims: 1}, NewCorpus(ctx, src, nil), 3, nil)

	src.set([]*ProjectRecord{{Title: "A"}, {Title: "B"}}, nil)
	n, err := r.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	src.set(nil, errors.New("gone"))
	_, err = r.Reload(ctx)
	assert.Error(t, err)
	size, _ := r.Size(ctx)
	assert.Equal(t, 2, size)
}

func TestRetriever_DefaultTopN(t *testing.T) {
	r := NewIndexRetriever(&fakeEncoder{}, &fakeIndex{}, 0, nil)
	assert.Equal(t, 3, r.DefaultTopN())
	assert.Equal(t, profile.CorpusSourceIndex, r.Source())
}

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	prof := &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "retrieval.db")}
	driver, err := sqlite.NewDB(prof)
	require.NoError(t, err)
	st := store.New(driver, prof)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestNewRetriever_StoreBackedSources(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)
	require.NoError(t, st.CreateProjectRecords(ctx, []*store.ProjectRecord{
		{Title: "Birdhouse", MaterialsRequired: []string{"wood", "nails"}, Embedding: []float32{1, 0}},
		{Title: "Vase", MaterialsRequired: []string{"bottle"}, Embedding: []float32{0, 1}},
		{Title: "NoEmbedding"},
	}))
	enc := &fakeEncoder{dims: 2, vectors: map[string][]float32{"wood, nails": {1, 0}}}

	for _, source := range []string{profile.CorpusSourceDB, profile.CorpusSourceIndex} {
		t.Run(source, func(t *testing.T) {
			r, err := NewRetriever(ctx, &profile.Profile{CorpusSource: source, TopN: 3}, st, enc, nil)
			require.NoError(t, err)

			got, err := r.Suggest(ctx, []string{"wood", "nails"}, 3)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "Birdhouse", got[0].Title)
			assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
			assert.Equal(t, "Vase", got[1].Title)
			assert.InDelta(t, 0.0, got[1].Similarity, 1e-6)

			size, err := r.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, size)
		})
	}

	_, err := NewRetriever(ctx, &profile.Profile{CorpusSource: profile.CorpusSourceIndex}, nil, enc, nil)
	assert.Error(t, err)
	_, err = NewRetriever(ctx, &profile.Profile{CorpusSource: "chroma"}, st, enc, nil)
	assert.Error(t, err)
}

func TestNewRetriever_FileSource(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, `[{"title":"Birdhouse","materials_required":["wood","nails"],"embedding":[1,0]}]`)
	enc := &fakeEncoder{dims: 2, vectors: map[string][]float32{"wood, nails": {1, 0}}}

	r, err := NewRetriever(ctx, &profile.Profile{CorpusSource: profile.CorpusSourceFile, CorpusPath: path}, nil, enc, nil)
	require.NoError(t, err)
	assert.Equal(t, "file", r.Source())

	got, err := r.Suggest(ctx, []string{"wood", "nails"}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Birdhouse", got[0].Title)
}
