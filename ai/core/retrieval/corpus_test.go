package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	mu      sync.Mutex
	records []*ProjectRecord
	err     error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Load(_ context.Context) ([]*ProjectRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, s.err
}

func (s *staticSource) set(records []*ProjectRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records, s.err = records, err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()

	t.Run("skips malformed entries", func(t *testing.T) {
		path := writeFile(t, `[
			{"title": "Birdhouse", "materials_required": ["wood"], "embedding": [1, 0]},
			"not an object",
			{"name": "Lamp", "materials": ["jar"]}
		]`)
		records, err := (&FileSource{Path: path}).Load(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Birdhouse", records[0].Title)
		assert.Equal(t, "Lamp", records[1].Title)
		assert.Equal(t, []string{"jar"}, records[1].MaterialsRequired)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}).Load(ctx)
		assert.ErrorIs(t, err, ErrCorpusUnavailable)
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := (&FileSource{Path: writeFile(t, `{"title": "x"}`)}).Load(ctx)
		assert.ErrorIs(t, err, ErrCorpusUnavailable)
	})
}

func TestNewCorpus_UnavailableSourceIsEmpty(t *testing.T) {
	ctx := context.Background()
	corpus := NewCorpus(ctx, &FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}, nil)

	snap := corpus.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Len())

	enc := &fakeEncoder{dims: 2}
	got, err := NewSnapshotMatcher(enc, corpus).Match(ctx, []string{"wood"}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCorpus_Reload(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{records: []*ProjectRecord{
		{Title: "A", Embedding: []float32{1}},
		{Title: "B"},
		nil,
	}}
	corpus := NewCorpus(ctx, src, nil)

	first := corpus.Snapshot()
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 1, first.EmbeddedCount())

	src.set([]*ProjectRecord{{Title: "C"}}, nil)
	snap, err := corpus.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Same(t, snap, corpus.Snapshot())
	assert.Equal(t, 2, first.Len(), "old snapshot is not mutated")

	src.set(nil, errors.New("disk gone"))
	_, err = corpus.Reload(ctx)
	require.Error(t, err)
	assert.Same(t, snap, corpus.Snapshot(), "failed reload keeps the previous snapshot")
}

func TestCorpus_ConcurrentReloadAndMatch(t *testing.T) {
	ctx := context.Background()
	small := []*ProjectRecord{{Title: "A", Embedding: []float32{1, 0}}}
	large := []*ProjectRecord{
		{Title: "A", Embedding: []float32{1, 0}},
		{Title: "B", Embedding: []float32{0, 1}},
	}
	src := &staticSource{records: small}
	corpus := NewCorpus(ctx, src, nil)
	matcher := NewSnapshotMatcher(&fakeEncoder{dims: 2, vectors: map[string][]float32{"wood": {1, 0}}}, corpus)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				src.set(large, nil)
			} else {
				src.set(small, nil)
			}
			_, _ = corpus.Reload(ctx)
		}(i)
		go func() {
			defer wg.Done()
			got, err := matcher.Match(ctx, []string{"wood"}, 5)
			assert.NoError(t, err)
			// A match sees either snapshot in full.
			assert.Contains(t, []int{1, 2}, len(got))
			assert.Equal(t, "A", got[0].Record.Title)
		}()
	}
	wg.Wait()
}
