// Package advisor turns a photo into a DIY project with the help of a
// multimodal language model, optionally grounded on similar corpus projects.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Try3D/Eunoia/ai/core/llm"
	"github.com/Try3D/Eunoia/ai/core/retrieval"
	"github.com/Try3D/Eunoia/ai/metrics"
)

// ErrInvalidResponse is returned when the model answer cannot be parsed into
// the requested shape.
var ErrInvalidResponse = errors.New("invalid response from language model")

// Project is a generated DIY project.
type Project struct {
	Title        string            `json:"title"`
	Materials    []string          `json:"materials"`
	Difficulty   string            `json:"difficulty"`
	TimeRequired string            `json:"timeRequired"`
	Steps        []string          `json:"steps"`
	Tips         []string          `json:"tips"`
	Warnings     map[string]string `json:"warnings"`
}

// Clarification is a detailed breakdown of one project step.
type Clarification struct {
	DetailedSteps  []string `json:"detailed_steps"`
	Tips           []string `json:"tips"`
	CommonMistakes []string `json:"common_mistakes"`
}

// Advisor wraps the LLM calls of the project flow.
type Advisor struct {
	llm     llm.Service
	model   string
	metrics *metrics.PrometheusExporter
}

// New creates an advisor. model only labels metrics.
func New(svc llm.Service, model string, m *metrics.PrometheusExporter) *Advisor {
	return &Advisor{llm: svc, model: model, metrics: m}
}

// ListItems asks the model for the useful objects visible in the image.
func (a *Advisor) ListItems(ctx context.Context, image llm.Image) ([]string, error) {
	content, err := a.call(ctx, "list_items", func() (string, *llm.LLMCallStats, error) {
		return a.llm.ChatWithImage(ctx, listItemsPrompt, PrepareImage(image))
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := ParseItems(content)
	slog.Debug("advisor: items listed", "count", len(items))
	return items, nil
}

// ParseItems splits a comma-separated answer into trimmed items, dropping
// empty entries and case-insensitive duplicates.
func ParseItems(text string) []string {
	text = llm.StripCodeFence(text)
	seen := make(map[string]bool)
	items := []string{}
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		item := strings.Trim(strings.TrimSpace(part), ".")
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, item)
	}
	return items
}

// GenerateProject asks the model for a project built from items. References,
// when present, are included as inspiration.
func (a *Advisor) GenerateProject(ctx context.Context, items []string, references []retrieval.Suggestion) (*Project, error) {
	prompt, err := render(projectTemplate, projectPromptData{Items: items, References: references})
	if err != nil {
		return nil, fmt.Errorf("render project prompt: %w", err)
	}

	operation := "generate_project"
	if len(references) > 0 {
		operation = "generate_project_augmented"
	}
	content, err := a.call(ctx, operation, func() (string, *llm.LLMCallStats, error) {
		return a.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)})
	})
	if err != nil {
		return nil, fmt.Errorf("generate project: %w", err)
	}

	project, err := ParseProject(content)
	if err != nil {
		a.metrics.RecordLLMError(operation, "parse")
		slog.Warn("advisor: project parse failed", "error", err, "content", content)
		return nil, err
	}
	return project, nil
}

// ParseProject decodes a project answer, filling the same defaults as corpus
// suggestions for anything the model left out.
func ParseProject(content string) (*Project, error) {
	data := []byte(llm.StripCodeFence(content))

	var record retrieval.ProjectRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	var extra struct {
		Warnings map[string]any `json:"warnings"`
	}
	// Warnings of an unexpected shape are dropped.
	_ = json.Unmarshal(data, &extra)

	s := retrieval.Format(retrieval.ScoredMatch{Record: &record})
	p := &Project{
		Title:        s.Title,
		Materials:    s.Materials,
		Difficulty:   s.Difficulty,
		TimeRequired: s.TimeRequired,
		Steps:        s.Steps,
		Tips:         s.Tips,
		Warnings:     s.Warnings,
	}
	for step, w := range extra.Warnings {
		if w == nil {
			continue
		}
		text := strings.TrimSpace(fmt.Sprint(w))
		if text == "" {
			continue
		}
		p.Warnings[step] = text
	}
	return p, nil
}

// ClarifyStep asks the model for a detailed breakdown of one step.
func (a *Advisor) ClarifyStep(ctx context.Context, title string, stepNumber int, content string) (*Clarification, error) {
	prompt, err := render(clarifyTemplate, clarifyPromptData{Title: title, StepNumber: stepNumber, Content: content})
	if err != nil {
		return nil, fmt.Errorf("render clarify prompt: %w", err)
	}

	answer, err := a.call(ctx, "clarify_step", func() (string, *llm.LLMCallStats, error) {
		return a.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)})
	})
	if err != nil {
		return nil, fmt.Errorf("clarify step: %w", err)
	}

	c, err := ParseClarification(answer)
	if err != nil {
		a.metrics.RecordLLMError("clarify_step", "parse")
		slog.Warn("advisor: clarification parse failed", "error", err, "content", answer)
		return nil, err
	}
	return c, nil
}

var clarificationKeys = []string{"detailed_steps", "tips", "common_mistakes"}

// ParseClarification decodes a clarification answer. A first parse failure
// is retried once with newlines collapsed; all three keys must be present.
func ParseClarification(content string) (*Clarification, error) {
	cleaned := extractJSON(llm.StripCodeFence(content))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		collapsed := strings.ReplaceAll(strings.ReplaceAll(cleaned, "\n", ""), "  ", " ")
		if err := json.Unmarshal([]byte(collapsed), &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
	}
	for _, key := range clarificationKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrInvalidResponse, key)
		}
	}

	c := &Clarification{}
	for key, dst := range map[string]*[]string{
		"detailed_steps":  &c.DetailedSteps,
		"tips":            &c.Tips,
		"common_mistakes": &c.CommonMistakes,
	} {
		if err := json.Unmarshal(raw[key], dst); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, key, err)
		}
		if *dst == nil {
			*dst = []string{}
		}
	}
	return c, nil
}

// extractJSON trims text around the outermost JSON object, if any.
func extractJSON(s string) string {
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

func (a *Advisor) call(ctx context.Context, operation string, fn func() (string, *llm.LLMCallStats, error)) (string, error) {
	start := time.Now()
	content, stats, err := fn()
	a.metrics.RecordLLMLatency(operation, time.Since(start))
	if err != nil {
		errorType := "request"
		if ctx.Err() != nil {
			errorType = "timeout"
		}
		a.metrics.RecordLLMError(operation, errorType)
		return "", err
	}
	if stats != nil {
		a.metrics.RecordLLMTokens(a.model, "prompt", stats.PromptTokens)
		a.metrics.RecordLLMTokens(a.model, "completion", stats.CompletionTokens)
	}
	return content, nil
}

func joinItems(items []string) string {
	return strings.Join(items, retrieval.MaterialsSeparator)
}
