package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Try3D/Eunoia/internal/profile"
	"github.com/Try3D/Eunoia/store"
	"github.com/Try3D/Eunoia/store/db/sqlite"
)

func TestNewServer_WithoutAI(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus.json")
	require.NoError(t, os.WriteFile(corpus, []byte(`[
		{"title": "Birdhouse", "materials_required": ["wood"], "embedding": [1, 0]},
		{"title": "Planter", "materials_required": ["bottle"], "embedding": [0, 1]}
	]`), 0o600))

	prof := &profile.Profile{Mode: "dev", Data: dir, CorpusPath: corpus}
	prof.FromEnv()
	prof.AIEnabled = false
	require.NoError(t, prof.Validate())

	driver, err := sqlite.NewDB(prof)
	require.NoError(t, err)
	st := store.New(driver, prof)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	s, err := NewServer(context.Background(), prof, st)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.0, body["corpus_size"])
	assert.Equal(t, "file", body["corpus_source"])
	assert.Equal(t, false, body["ai_enabled"])

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewServer_RejectsUnknownCorpusSource(t *testing.T) {
	prof := &profile.Profile{Mode: "dev", CorpusSource: "s3", DSN: filepath.Join(t.TempDir(), "x.db")}
	driver, err := sqlite.NewDB(prof)
	require.NoError(t, err)
	st := store.New(driver, prof)
	t.Cleanup(func() { _ = st.Close() })

	_, err = NewServer(context.Background(), prof, st)
	assert.Error(t, err)
}
