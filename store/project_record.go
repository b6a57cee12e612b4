package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ProjectRecord is one historical DIY project of the retrieval corpus.
// It is immutable once loaded into a corpus snapshot.
type ProjectRecord struct {
	ID                int32             `json:"id,omitempty"`
	Title             string            `json:"title"`
	MaterialsRequired []string          `json:"materials_required"`
	Steps             []string          `json:"steps"`
	Tips              []string          `json:"tips"`
	Difficulty        string            `json:"difficulty"`
	TimeRequired      string            `json:"time_required"`
	Embedding         []float32         `json:"embedding,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// extraKeys are the free-form string fields kept from scraped records.
var extraKeys = []string{"description", "url", "creator", "subcategory", "category"}

// UnmarshalJSON decodes a record, accepting the alternate key names found in
// scraped and generated data: materials, timeRequired and time. List fields
// tolerate a single string or null. An embedding that is not a numeric array
// is dropped so the record is still usable for display.
func (r *ProjectRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "project record must be a JSON object")
	}

	*r = ProjectRecord{}
	if v, ok := first(raw, "id"); ok {
		_ = json.Unmarshal(v, &r.ID)
	}
	if v, ok := first(raw, "title", "name"); ok {
		r.Title = decodeString(v)
	}
	if v, ok := first(raw, "materials_required", "materials"); ok {
		r.MaterialsRequired = decodeStrings(v)
	}
	if v, ok := first(raw, "steps"); ok {
		r.Steps = decodeStrings(v)
	}
	if v, ok := first(raw, "tips"); ok {
		r.Tips = decodeStrings(v)
	}
	if v, ok := first(raw, "difficulty"); ok {
		r.Difficulty = decodeString(v)
	}
	if v, ok := first(raw, "time_required", "timeRequired", "time"); ok {
		r.TimeRequired = decodeString(v)
	}
	if v, ok := first(raw, "embedding"); ok {
		var emb []float32
		if err := json.Unmarshal(v, &emb); err == nil && len(emb) > 0 {
			r.Embedding = emb
		}
	}
	if v, ok := first(raw, "extra"); ok {
		_ = json.Unmarshal(v, &r.Extra)
	}
	for _, key := range extraKeys {
		if v, ok := raw[key]; ok {
			if s := decodeString(v); s != "" {
				if r.Extra == nil {
					r.Extra = make(map[string]string)
				}
				r.Extra[key] = s
			}
		}
	}
	return nil
}

func first(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func decodeString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	// Numbers are kept in their JSON form, e.g. 2 for "2 hours".
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

func decodeStrings(v json.RawMessage) []string {
	var list []any
	if err := json.Unmarshal(v, &list); err != nil {
		if s := decodeString(v); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MaterialsText is the text embedded for a record: materials joined by ", ".
func (r *ProjectRecord) MaterialsText() string {
	return strings.Join(r.MaterialsRequired, ", ")
}

// FindProjectRecord is the find condition for project records.
type FindProjectRecord struct {
	ID    *int32
	Limit int
}

// ProjectRecordWithDistance is a vector search hit. Distance is the cosine
// distance (1 - cosine similarity) reported by the driver.
type ProjectRecordWithDistance struct {
	Record   *ProjectRecord
	Distance float64
}

// ProjectRecordSearchOptions are the options for a project record vector search.
type ProjectRecordSearchOptions struct {
	Vector []float32
	Limit  int
}

// Validate validates the search options.
func (o *ProjectRecordSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.New("vector cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 10
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	return nil
}

// CreateProjectRecords inserts records in one transaction.
func (s *Store) CreateProjectRecords(ctx context.Context, records []*ProjectRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.driver.CreateProjectRecords(ctx, records)
}

// ListProjectRecords lists project records in insertion order.
func (s *Store) ListProjectRecords(ctx context.Context, find *FindProjectRecord) ([]*ProjectRecord, error) {
	if find == nil {
		find = &FindProjectRecord{}
	}
	return s.driver.ListProjectRecords(ctx, find)
}

// CountProjectRecords returns the number of stored project records.
func (s *Store) CountProjectRecords(ctx context.Context) (int, error) {
	return s.driver.CountProjectRecords(ctx)
}

// SearchProjectRecords returns the records nearest to the vector, closest first.
// Records without an embedding, or with one of a different length, are excluded.
func (s *Store) SearchProjectRecords(ctx context.Context, opts *ProjectRecordSearchOptions) ([]*ProjectRecordWithDistance, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.SearchProjectRecords(ctx, opts)
}
