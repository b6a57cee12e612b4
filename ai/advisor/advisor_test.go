package advisor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Try3D/Eunoia/ai/core/llm"
	"github.com/Try3D/Eunoia/ai/core/retrieval"
)

// fakeLLM replies with a queued answer per call and records prompts.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
	images  []llm.Image
}

func (f *fakeLLM) next(prompt string) (string, *llm.LLMCallStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", nil, f.err
	}
	if len(f.replies) == 0 {
		return "", nil, errors.New("no reply queued")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, &llm.LLMCallStats{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message) (string, *llm.LLMCallStats, error) {
	return f.next(messages[len(messages)-1].Content)
}

func (f *fakeLLM) ChatWithImage(_ context.Context, prompt string, image llm.Image) (string, *llm.LLMCallStats, error) {
	f.mu.Lock()
	f.images = append(f.images, image)
	f.mu.Unlock()
	return f.next(prompt)
}

func (f *fakeLLM) Warmup(context.Context) {}

func TestParseItems(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"wood, nails, glue", []string{"wood", "nails", "glue"}},
		{" Wood ,wood,  , Nails.", []string{"Wood", "Nails"}},
		{"bottle\njar", []string{"bottle", "jar"}},
		{"```\ncardboard, tape\n```", []string{"cardboard", "tape"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseItems(tt.in), tt.in)
	}
}

func TestListItems(t *testing.T) {
	fake := &fakeLLM{replies: []string{"wood, nails, Wood"}}
	a := New(fake, "test-model", nil)

	items, err := a.ListItems(context.Background(), llm.Image{MIMEType: "image/png", Data: []byte("raw")})
	require.NoError(t, err)
	assert.Equal(t, []string{"wood", "nails"}, items)
	require.Len(t, fake.images, 1)
	assert.Equal(t, []byte("raw"), fake.images[0].Data, "undecodable image is forwarded unchanged")
	assert.Equal(t, listItemsPrompt, fake.prompts[0])

	_, err = New(&fakeLLM{err: errors.New("quota")}, "m", nil).ListItems(context.Background(), llm.Image{Data: []byte("x")})
	assert.Error(t, err)
}

func TestParseProject(t *testing.T) {
	p, err := ParseProject("```json\n" + `{
		"title": "Bottle Planter",
		"materials": ["bottle", "soil"],
		"difficulty": "Easy",
		"timeRequired": "30 minutes",
		"steps": ["cut", "fill"],
		"tips": ["wear gloves"],
		"warnings": {"1": "sharp edges", "2": "", "3": null}
	}` + "\n```")
	require.NoError(t, err)
	assert.Equal(t, &Project{
		Title:        "Bottle Planter",
		Materials:    []string{"bottle", "soil"},
		Difficulty:   "Easy",
		TimeRequired: "30 minutes",
		Steps:        []string{"cut", "fill"},
		Tips:         []string{"wear gloves"},
		Warnings:     map[string]string{"1": "sharp edges"},
	}, p)

	p, err = ParseProject(`{}`)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Project", p.Title)
	assert.Equal(t, "Medium", p.Difficulty)
	assert.Equal(t, "Unknown", p.TimeRequired)
	assert.Equal(t, []string{}, p.Steps)
	assert.Equal(t, map[string]string{}, p.Warnings)

	_, err = ParseProject("Sorry, I cannot help with that.")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGenerateProject(t *testing.T) {
	reply := `{"title": "Bird Feeder", "steps": ["a"]}`

	t.Run("pure", func(t *testing.T) {
		fake := &fakeLLM{replies: []string{reply}}
		p, err := New(fake, "m", nil).GenerateProject(context.Background(), []string{"bottle", "string"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Bird Feeder", p.Title)
		assert.Contains(t, fake.prompts[0], "Using these items: bottle, string")
		assert.NotContains(t, fake.prompts[0], "similar projects")
	})

	t.Run("augmented", func(t *testing.T) {
		fake := &fakeLLM{replies: []string{reply}}
		refs := []retrieval.Suggestion{{
			Title:        "Birdhouse",
			Materials:    []string{"wood", "nails"},
			Difficulty:   "Easy",
			TimeRequired: "2 hours",
			Steps:        []string{"cut", "nail"},
		}}
		_, err := New(fake, "m", nil).GenerateProject(context.Background(), []string{"wood"}, refs)
		require.NoError(t, err)
		assert.Contains(t, fake.prompts[0], "similar projects")
		assert.Contains(t, fake.prompts[0], "1. Birdhouse (difficulty: Easy, time: 2 hours)")
		assert.Contains(t, fake.prompts[0], "Materials: wood, nails")
	})

	t.Run("unparseable", func(t *testing.T) {
		_, err := New(&fakeLLM{replies: []string{"no json"}}, "m", nil).GenerateProject(context.Background(), nil, nil)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
}

func TestParseClarification(t *testing.T) {
	t.Run("fenced", func(t *testing.T) {
		c, err := ParseClarification("```json\n{\"detailed_steps\": [\"a\"], \"tips\": [\"b\"], \"common_mistakes\": []}\n```")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, c.DetailedSteps)
		assert.Equal(t, []string{"b"}, c.Tips)
		assert.Equal(t, []string{}, c.CommonMistakes)
	})

	t.Run("surrounding text", func(t *testing.T) {
		c, err := ParseClarification("Here you go:\n{\"detailed_steps\": [], \"tips\": [], \"common_mistakes\": [\"rushing\"]}\nGood luck!")
		require.NoError(t, err)
		assert.Equal(t, []string{"rushing"}, c.CommonMistakes)
	})

	t.Run("newlines inside strings are collapsed on retry", func(t *testing.T) {
		c, err := ParseClarification("{\"detailed_steps\": [\"First, measure\nthe board\"], \"tips\": [], \"common_mistakes\": []}")
		require.NoError(t, err)
		assert.Equal(t, []string{"First, measurethe board"}, c.DetailedSteps)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := ParseClarification(`{"detailed_steps": [], "tips": []}`)
		assert.ErrorIs(t, err, ErrInvalidResponse)
		assert.Contains(t, err.Error(), "common_mistakes")
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseClarification("I can't")
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
}

func TestClarifyStep(t *testing.T) {
	fake := &fakeLLM{replies: []string{`{"detailed_steps": ["x"], "tips": ["y"], "common_mistakes": ["z"]}`}}
	c, err := New(fake, "m", nil).ClarifyStep(context.Background(), "Birdhouse", 2, "Nail the roof")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, c.DetailedSteps)
	assert.Contains(t, fake.prompts[0], `DIY project "Birdhouse"`)
	assert.Contains(t, fake.prompts[0], "STEP 2: Nail the roof")
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareImage(t *testing.T) {
	t.Run("large image is downscaled", func(t *testing.T) {
		out := PrepareImage(llm.Image{MIMEType: "image/png", Data: encodePNG(t, 2048, 1024)})
		assert.Equal(t, "image/jpeg", out.MIMEType)
		img, err := imaging.Decode(bytes.NewReader(out.Data))
		require.NoError(t, err)
		assert.Equal(t, 1024, img.Bounds().Dx())
		assert.Equal(t, 512, img.Bounds().Dy())
	})

	t.Run("small image keeps its size", func(t *testing.T) {
		out := PrepareImage(llm.Image{MIMEType: "image/png", Data: encodePNG(t, 64, 32)})
		img, err := imaging.Decode(bytes.NewReader(out.Data))
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
	})

	t.Run("garbage passes through", func(t *testing.T) {
		in := llm.Image{MIMEType: "image/heic", Data: []byte(strings.Repeat("x", 10))}
		assert.Equal(t, in, PrepareImage(in))
	})
}
