package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"digitalwall/internal/domain"
)

// Depth selects how much analytical effort the provider is asked for.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

const maxPromptContent = 4000

const systemPrompt = `You are a content analysis service for a personal content wall.
You categorize shared content into exactly one of these categories:
technology, entertainment, news, social, education, lifestyle, business, art, science, other.
Sentiment is one of: positive, negative, neutral, mixed.
You always respond with a single JSON object and nothing else.`

var depthInstructions = map[Depth]string{
	DepthQuick: "Keep the analysis minimal: 3-5 tags, one-sentence description, " +
		"skip topic modeling beyond the obvious.",
	DepthStandard: "Provide a balanced analysis with tags, topics, and a concise description.",
	DepthDeep: "Provide rich topic modeling, contextual reasoning about why this content " +
		"matters, and nuanced sentiment. Use the full tag and topic budgets.",
}

// buildPrompt assembles the user message: a templated content block plus
// depth-specific instructions, requesting strict JSON matching the
// AnalysisResult shape.
func buildPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following shared content.\n\n")
	fmt.Fprintf(&sb, "Content type: %s\n", req.ContentType)
	fmt.Fprintf(&sb, "Content:\n%s\n", domain.Truncate(req.Content, maxPromptContent))

	if len(req.Context) > 0 {
		if blob, err := json.Marshal(req.Context); err == nil {
			fmt.Fprintf(&sb, "\nShare context: %s\n", blob)
		}
	}
	if len(req.Preferences) > 0 {
		if blob, err := json.Marshal(req.Preferences); err == nil {
			fmt.Fprintf(&sb, "\nUser preferences: %s\n", blob)
		}
	}

	instructions, ok := depthInstructions[req.Depth]
	if !ok {
		instructions = depthInstructions[DepthStandard]
	}
	sb.WriteString("\n")
	sb.WriteString(instructions)

	sb.WriteString(`

Return a JSON object with exactly these fields:
{
  "title": "clear title, max 100 chars",
  "description": "summary, max 300 chars",
  "tags": ["lowercase", "tags"],
  "category": "one of the fixed categories",
  "sentiment": "positive|negative|neutral|mixed",
  "topics": ["main", "topics"],
  "quality_score": 0.0,
  "confidence": 0.0,
  "reasoning": "one sentence on why, max 200 chars"
}

Respond only with valid JSON, no additional text.`)

	return sb.String()
}
