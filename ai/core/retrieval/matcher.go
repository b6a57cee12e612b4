package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Try3D/Eunoia/ai/core/embedding"
	"github.com/Try3D/Eunoia/internal/vector"
	"github.com/Try3D/Eunoia/store"
)

// MaterialsSeparator joins query materials into the encoded text. Corpus
// embeddings are built from materials joined the same way.
const MaterialsSeparator = ", "

// ErrEncoderFailure is the only error a match returns: without a query
// vector there is nothing to compare.
var ErrEncoderFailure = errors.New("embedding encoder failure")

// Matcher ranks corpus records by similarity to a list of materials.
type Matcher interface {
	Match(ctx context.Context, materials []string, topN int) ([]ScoredMatch, error)
}

func encode(ctx context.Context, enc embedding.Encoder, materials []string) ([]float32, error) {
	vec, err := enc.Embed(ctx, strings.Join(materials, MaterialsSeparator))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoderFailure, err)
	}
	return vec, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is 0.
// Vectors of different lengths are not comparable and also score 0.
func CosineSimilarity(a, b []float32) float64 {
	return vector.Cosine(a, b)
}

// DistanceToSimilarity converts a cosine distance to a similarity. Distances
// above 1 score 0 rather than going negative.
func DistanceToSimilarity(distance float64) float64 {
	if distance <= 1 {
		return 1 - distance
	}
	return 0
}

// rank sorts matches by score, highest first, keeping input order for ties,
// and keeps at most topN.
func rank(matches []ScoredMatch, topN int) []ScoredMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches
}

// MatchVector scores query against every record whose embedding has the same
// length. Other records are skipped.
func MatchVector(query []float32, records []*ProjectRecord, topN int) []ScoredMatch {
	if topN <= 0 {
		return []ScoredMatch{}
	}

	matches := make([]ScoredMatch, 0, len(records))
	mismatched := 0
	for _, r := range records {
		if r == nil || len(r.Embedding) == 0 {
			continue
		}
		if len(r.Embedding) != len(query) {
			mismatched++
			continue
		}
		matches = append(matches, ScoredMatch{Record: r, Score: CosineSimilarity(query, r.Embedding)})
	}
	if mismatched > 0 {
		slog.Debug("skipped records with mismatched embedding dimensions",
			"query_dims", len(query),
			"skipped", mismatched,
		)
	}
	return rank(matches, topN)
}

// SnapshotMatcher scans the current corpus snapshot in memory.
type SnapshotMatcher struct {
	encoder embedding.Encoder
	corpus  *Corpus
}

func NewSnapshotMatcher(encoder embedding.Encoder, corpus *Corpus) *SnapshotMatcher {
	return &SnapshotMatcher{encoder: encoder, corpus: corpus}
}

func (m *SnapshotMatcher) Match(ctx context.Context, materials []string, topN int) ([]ScoredMatch, error) {
	if topN <= 0 {
		return []ScoredMatch{}, nil
	}
	query, err := encode(ctx, m.encoder, materials)
	if err != nil {
		return nil, err
	}
	return MatchVector(query, m.corpus.Snapshot().Records(), topN), nil
}

// Neighbor is a record returned by an Index with its cosine distance.
type Neighbor struct {
	Record   *ProjectRecord
	Distance float64
}

// Index is a vector index that answers nearest-neighbor queries by distance.
type Index interface {
	Nearest(ctx context.Context, query []float32, k int) ([]Neighbor, error)
}

// IndexMatcher delegates the scan to an Index and converts its distances.
type IndexMatcher struct {
	encoder embedding.Encoder
	index   Index
}

func NewIndexMatcher(encoder embedding.Encoder, index Index) *IndexMatcher {
	return &IndexMatcher{encoder: encoder, index: index}
}

// Match queries the index. An unavailable index yields no matches.
func (m *IndexMatcher) Match(ctx context.Context, materials []string, topN int) ([]ScoredMatch, error) {
	if topN <= 0 {
		return []ScoredMatch{}, nil
	}
	query, err := encode(ctx, m.encoder, materials)
	if err != nil {
		return nil, err
	}

	neighbors, err := m.index.Nearest(ctx, query, topN)
	if err != nil {
		slog.Warn("vector index unavailable, returning no matches", "error", err)
		return []ScoredMatch{}, nil
	}

	matches := make([]ScoredMatch, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Record == nil {
			continue
		}
		matches = append(matches, ScoredMatch{Record: n.Record, Score: DistanceToSimilarity(n.Distance)})
	}
	return rank(matches, topN), nil
}

// maxIndexResults is the largest k the store accepts.
const maxIndexResults = 1000

// StoreIndex answers nearest-neighbor queries from the project_record table.
type StoreIndex struct {
	Store *store.Store
}

func (i *StoreIndex) Nearest(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if k > maxIndexResults {
		k = maxIndexResults
	}
	hits, err := i.Store.SearchProjectRecords(ctx, &store.ProjectRecordSearchOptions{Vector: query, Limit: k})
	if err != nil {
		return nil, err
	}
	neighbors := make([]Neighbor, len(hits))
	for j, h := range hits {
		neighbors[j] = Neighbor{Record: h.Record, Distance: h.Distance}
	}
	return neighbors, nil
}

// Len returns the number of indexed records.
func (i *StoreIndex) Len(ctx context.Context) (int, error) {
	return i.Store.CountProjectRecords(ctx)
}
