package advisor

import (
	"bytes"
	"text/template"

	"github.com/Try3D/Eunoia/ai/core/retrieval"
)

var promptFuncs = template.FuncMap{
	"join": joinItems,
	"inc":  func(i int) int { return i + 1 },
}

const listItemsPrompt = "List only the important objects in the scene that could be useful for a project. " +
	"Return only a comma-separated list of items, no other text."

var projectTemplate = template.Must(template.New("project").Funcs(promptFuncs).Parse(`Using these items: {{join .Items}}
{{if .References}}
Here are similar projects other makers built with comparable materials. Use them as inspiration, but adapt the project to the items above:
{{range $i, $r := .References}}
{{inc $i}}. {{$r.Title}} (difficulty: {{$r.Difficulty}}, time: {{$r.TimeRequired}})
   Materials: {{join $r.Materials}}
{{- if $r.Steps}}
   Steps: {{join $r.Steps}}
{{- end}}
{{end}}{{end}}
Generate a DIY project and return it in this exact JSON format (no markdown). The warnings should only be hazardous ones:
{
  "title": "Project Name",
  "materials": ["item1", "item2", "item3"],
  "difficulty": "Easy/Medium/Hard",
  "timeRequired": "estimated time",
  "steps": ["step1", "step2", "step3"],
  "tips": ["tip1", "tip2"],
  "warnings": {"1": "warning in step 1 (if any)", "2": "warning in step 2 (if any)"}
}`))

var clarifyTemplate = template.Must(template.New("clarify").Parse(`Given this step from the DIY project "{{.Title}}":
STEP {{.StepNumber}}: {{.Content}}

Provide a detailed breakdown in this exact JSON format:
{
  "detailed_steps": ["First, ...", "Then, ...", "Finally, ..."],
  "tips": ["Specific tip about technique", "Helpful measurement tip", "Safety tip"],
  "common_mistakes": ["Common error to avoid", "Frequent mistake", "What not to do"]
}

Return ONLY the JSON object, nothing else.`))

type projectPromptData struct {
	Items      []string
	References []retrieval.Suggestion
}

type clarifyPromptData struct {
	Title      string
	StepNumber int
	Content    string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
