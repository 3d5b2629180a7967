package domain

import "strings"

// Category is one of the fixed content taxonomy values.
type Category string

const (
	CategoryTechnology    Category = "technology"
	CategoryEntertainment Category = "entertainment"
	CategoryNews          Category = "news"
	CategorySocial        Category = "social"
	CategoryEducation     Category = "education"
	CategoryLifestyle     Category = "lifestyle"
	CategoryBusiness      Category = "business"
	CategoryArt           Category = "art"
	CategoryScience       Category = "science"
	CategoryOther         Category = "other"
)

// Sentiment is the overall tone assigned to the content.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// Provenance records which strategy produced an AnalysisResult.
type Provenance string

const (
	ProvenanceAI        Provenance = "ai"
	ProvenanceRuleBased Provenance = "rule_based"
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceEmergency Provenance = "emergency"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 300
	maxReasoningLen   = 200
	maxTags           = 10
	maxTopics         = 8
)

// AnalysisResult is the canonical output of AI analysis or its fallback.
// Instances are never mutated after Normalize; a retry produces a new one.
type AnalysisResult struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Tags         []string   `json:"tags"`
	Category     Category   `json:"category"`
	Sentiment    Sentiment  `json:"sentiment"`
	Topics       []string   `json:"topics"`
	QualityScore float64    `json:"quality_score"`
	Confidence   float64    `json:"confidence"`
	Reasoning    string     `json:"reasoning"`
	Provenance   Provenance `json:"provenance"`
}

var validCategories = map[Category]struct{}{
	CategoryTechnology: {}, CategoryEntertainment: {}, CategoryNews: {},
	CategorySocial: {}, CategoryEducation: {}, CategoryLifestyle: {},
	CategoryBusiness: {}, CategoryArt: {}, CategoryScience: {}, CategoryOther: {},
}

var validSentiments = map[Sentiment]struct{}{
	SentimentPositive: {}, SentimentNegative: {}, SentimentNeutral: {}, SentimentMixed: {},
}

// Normalize enforces every AnalysisResult invariant: field lengths, list
// caps, enum membership, and [0,1] score clamping. Out-of-enum values from
// untrusted sources coerce to other/neutral.
func (a *AnalysisResult) Normalize() {
	a.Title = Truncate(strings.TrimSpace(a.Title), maxTitleLen)
	a.Description = Truncate(strings.TrimSpace(a.Description), maxDescriptionLen)
	a.Reasoning = Truncate(strings.TrimSpace(a.Reasoning), maxReasoningLen)

	a.Tags = normalizeTerms(a.Tags, maxTags)
	a.Topics = normalizeTerms(a.Topics, maxTopics)

	a.Category = Category(strings.ToLower(strings.TrimSpace(string(a.Category))))
	if _, ok := validCategories[a.Category]; !ok {
		a.Category = CategoryOther
	}

	a.Sentiment = Sentiment(strings.ToLower(strings.TrimSpace(string(a.Sentiment))))
	if _, ok := validSentiments[a.Sentiment]; !ok {
		a.Sentiment = SentimentNeutral
	}

	a.QualityScore = Clamp01(a.QualityScore)
	a.Confidence = Clamp01(a.Confidence)

	switch a.Provenance {
	case ProvenanceAI, ProvenanceRuleBased, ProvenanceHeuristic, ProvenanceEmergency:
	default:
		a.Provenance = ProvenanceEmergency
	}
}

func normalizeTerms(terms []string, limit int) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Clamp01 pins a score into [0,1]; NaN comparisons fail both bounds checks
// and fall through to zero.
func Clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v >= 0 {
		return v
	}
	return 0
}

// Truncate cuts s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
