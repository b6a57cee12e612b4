package retrieval

import (
	"strings"
)

// Defaults for fields a record leaves empty.
const (
	DefaultTitle        = "Untitled Project"
	DefaultDifficulty   = "Medium"
	DefaultTimeRequired = "Unknown"
)

// Format shapes a match into a Suggestion. Every missing field gets its
// default, so it never fails, even for a nil record.
func Format(m ScoredMatch) Suggestion {
	s := Suggestion{
		Title:        DefaultTitle,
		Materials:    []string{},
		Difficulty:   DefaultDifficulty,
		TimeRequired: DefaultTimeRequired,
		Steps:        []string{},
		Tips:         []string{},
		Warnings:     map[string]string{},
		Similarity:   m.Score,
	}
	r := m.Record
	if r == nil {
		return s
	}

	s.Title = orDefault(r.Title, DefaultTitle)
	s.Difficulty = orDefault(r.Difficulty, DefaultDifficulty)
	s.TimeRequired = orDefault(r.TimeRequired, DefaultTimeRequired)
	s.Materials = append(s.Materials, r.MaterialsRequired...)
	s.Steps = append(s.Steps, r.Steps...)
	s.Tips = append(s.Tips, r.Tips...)
	return s
}

// FormatAll formats matches in order. The result is never nil.
func FormatAll(matches []ScoredMatch) []Suggestion {
	out := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, Format(m))
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
