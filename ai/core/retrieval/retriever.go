package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Try3D/Eunoia/ai/core/embedding"
	"github.com/Try3D/Eunoia/ai/metrics"
	"github.com/Try3D/Eunoia/internal/profile"
	"github.com/Try3D/Eunoia/store"
)

// Retriever is built once at startup and shared by every request that needs
// similar projects.
type Retriever struct {
	matcher Matcher
	corpus  *Corpus
	index   Index
	source  string
	topN    int
	metrics *metrics.PrometheusExporter
}

// NewRetriever builds a retriever for the profile's corpus source: an
// in-memory snapshot of the corpus file or the project_record table, or the
// store's vector search for the index source.
func NewRetriever(ctx context.Context, p *profile.Profile, st *store.Store, enc embedding.Encoder, m *metrics.PrometheusExporter) (*Retriever, error) {
	switch p.CorpusSource {
	case profile.CorpusSourceIndex:
		if st == nil {
			return nil, fmt.Errorf("corpus source %q requires a store", p.CorpusSource)
		}
		return NewIndexRetriever(enc, &StoreIndex{Store: st}, p.TopN, m), nil
	case profile.CorpusSourceDB:
		if st == nil {
			return nil, fmt.Errorf("corpus source %q requires a store", p.CorpusSource)
		}
		return NewCorpusRetriever(enc, NewCorpus(ctx, &StoreSource{Store: st}, m), p.TopN, m), nil
	case profile.CorpusSourceFile, "":
		return NewCorpusRetriever(enc, NewCorpus(ctx, &FileSource{Path: p.CorpusPath}, m), p.TopN, m), nil
	default:
		return nil, fmt.Errorf("unsupported corpus source: %s", p.CorpusSource)
	}
}

// NewCorpusRetriever matches against an in-memory corpus.
func NewCorpusRetriever(enc embedding.Encoder, corpus *Corpus, topN int, m *metrics.PrometheusExporter) *Retriever {
	return &Retriever{
		matcher: NewSnapshotMatcher(enc, corpus),
		corpus:  corpus,
		source:  corpus.source.Name(),
		topN:    topN,
		metrics: m,
	}
}

// NewIndexRetriever matches through a vector index.
func NewIndexRetriever(enc embedding.Encoder, index Index, topN int, m *metrics.PrometheusExporter) *Retriever {
	return &Retriever{
		matcher: NewIndexMatcher(enc, index),
		index:   index,
		source:  profile.CorpusSourceIndex,
		topN:    topN,
		metrics: m,
	}
}

// Source names where records come from: file, db or index.
func (r *Retriever) Source() string {
	return r.source
}

// DefaultTopN is the number of suggestions returned when a caller does not ask.
func (r *Retriever) DefaultTopN() int {
	if r.topN <= 0 {
		return 3
	}
	return r.topN
}

// Match returns the raw scored matches.
func (r *Retriever) Match(ctx context.Context, materials []string, topN int) ([]ScoredMatch, error) {
	start := time.Now()
	matches, err := r.matcher.Match(ctx, materials, topN)
	if err != nil {
		slog.Error("retrieval failed", "source", r.source, "error", err)
		return nil, err
	}
	r.metrics.RecordMatch(r.source, time.Since(start), len(matches))
	slog.Debug("retrieval completed",
		"source", r.source,
		"materials", len(materials),
		"top_n", topN,
		"results", len(matches),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return matches, nil
}

// Suggest matches materials and formats the top results.
func (r *Retriever) Suggest(ctx context.Context, materials []string, topN int) ([]Suggestion, error) {
	matches, err := r.Match(ctx, materials, topN)
	if err != nil {
		return nil, err
	}
	return FormatAll(matches), nil
}

// Reload swaps in a fresh corpus snapshot and returns its size. The index
// source always reads live data, so it only reports the current size.
func (r *Retriever) Reload(ctx context.Context) (int, error) {
	if r.corpus == nil {
		return r.Size(ctx)
	}
	snap, err := r.corpus.Reload(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Len(), nil
}

// Size returns the number of records available for matching.
func (r *Retriever) Size(ctx context.Context) (int, error) {
	if r.corpus != nil {
		return r.corpus.Snapshot().Len(), nil
	}
	if sized, ok := r.index.(interface {
		Len(ctx context.Context) (int, error)
	}); ok {
		return sized.Len(ctx)
	}
	return 0, nil
}
