package retrieval

import (
	"github.com/Try3D/Eunoia/store"
)

// ProjectRecord is one historical project of the corpus.
type ProjectRecord = store.ProjectRecord

// ScoredMatch pairs a corpus record with its similarity to a query.
type ScoredMatch struct {
	Record *ProjectRecord
	// Score is higher for closer records. The in-memory scan reports raw
	// cosine similarity in [-1, 1]; only index-mode scores, converted from
	// distances by DistanceToSimilarity, are clamped to [0, 1].
	Score float64
}

// Suggestion is the canonical project shape returned to clients.
type Suggestion struct {
	Title        string            `json:"title"`
	Materials    []string          `json:"materials"`
	Difficulty   string            `json:"difficulty"`
	TimeRequired string            `json:"timeRequired"`
	Steps        []string          `json:"steps"`
	Tips         []string          `json:"tips"`
	Warnings     map[string]string `json:"warnings"`
	Similarity   float64           `json:"similarity"`
}
