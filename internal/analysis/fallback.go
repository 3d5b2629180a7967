package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"digitalwall/internal/domain"
)

// Fallback is the AI-free degradation path: three tiers tried in order,
// first success wins. The emergency tier cannot fail, so Analyze always
// returns a result.
type Fallback struct {
	tiers  []tier
	logger *slog.Logger
}

type tier struct {
	name string
	run  func(req Request) (*domain.AnalysisResult, error)
}

// NewFallback builds the standard rule-based -> heuristic -> emergency
// chain.
func NewFallback(logger *slog.Logger) *Fallback {
	f := &Fallback{logger: logger}
	f.tiers = []tier{
		{name: "rule_based", run: ruleBased},
		{name: "heuristic", run: heuristic},
		{name: "emergency", run: emergency},
	}
	return f
}

// Analyze runs the tiers in order and returns the first successful result,
// normalized. Callers signal reduced trust by scaling Confidence (the
// pipeline multiplies by 0.7).
func (f *Fallback) Analyze(req Request) *domain.AnalysisResult {
	for _, t := range f.tiers {
		result, err := t.run(req)
		if err != nil {
			if f.logger != nil {
				f.logger.Debug("fallback tier declined", "tier", t.name, "error", err)
			}
			continue
		}
		result.Normalize()
		return result
	}
	// Unreachable: emergency never errors. Kept so the compiler sees a
	// return on every path.
	result, _ := emergency(req)
	result.Normalize()
	return result
}

var categoryKeywords = map[domain.Category][]string{
	domain.CategoryTechnology: {
		"code", "programming", "software", "github", "api", "developer",
		"tech", "machine learning", "database", "cloud", "linux",
	},
	domain.CategoryEntertainment: {
		"movie", "music", "game", "show", "youtube", "netflix", "celebrity",
		"trailer", "episode",
	},
	domain.CategoryNews: {
		"news", "breaking", "report", "announce", "update", "election",
		"headline",
	},
	domain.CategorySocial: {
		"twitter", "instagram", "facebook", "reddit", "tiktok", "thread",
		"follower",
	},
	domain.CategoryEducation: {
		"learn", "tutorial", "guide", "course", "lecture", "education",
		"how to", "teach",
	},
	domain.CategoryLifestyle: {
		"recipe", "travel", "fitness", "health", "fashion", "home",
		"wellness",
	},
	domain.CategoryBusiness: {
		"business", "startup", "market", "finance", "investment", "revenue",
		"company",
	},
	domain.CategoryArt: {
		"art", "design", "painting", "photography", "illustration", "gallery",
	},
	domain.CategoryScience: {
		"science", "research", "study", "experiment", "physics", "biology",
		"arxiv",
	},
}

var positiveWords = []string{
	"good", "great", "love", "awesome", "excellent", "amazing", "happy",
	"best", "wonderful", "beautiful",
}

var negativeWords = []string{
	"bad", "terrible", "hate", "awful", "worst", "horrible", "broken",
	"angry", "disappointing",
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"from": {}, "have": {}, "about": {}, "what": {}, "when": {}, "where": {},
	"http": {}, "https": {}, "www": {}, "com": {}, "your": {}, "their": {},
	"will": {}, "just": {}, "into": {}, "more": {}, "some": {}, "been": {},
}

// ruleBased scores categories by keyword hits and sentiment by word lists.
// It declines URL-shaped content with zero keyword hits so the heuristic
// domain table gets first say on unknown domains.
func ruleBased(req Request) (*domain.AnalysisResult, error) {
	content := strings.ToLower(strings.TrimSpace(req.Content))
	if content == "" {
		return nil, errors.New("no content for rule-based analysis")
	}

	category, hits := bestCategory(content)
	if hits == 0 && isURLShaped(req.Content) {
		return nil, errors.New("no keyword signal for url content")
	}

	tags := extractTags(content, 8)
	topics := tags
	if len(topics) > 5 {
		topics = topics[:5]
	}

	title := req.Context["title"]
	if title == "" {
		title = domain.Truncate(strings.TrimSpace(req.Content), 80)
	}
	description := req.Context["description"]
	if description == "" {
		description = domain.Truncate(strings.TrimSpace(req.Content), 200)
	}

	return &domain.AnalysisResult{
		Title:        title,
		Description:  description,
		Tags:         tags,
		Category:     category,
		Sentiment:    scoreSentiment(content),
		Topics:       topics,
		QualityScore: 0.5,
		Confidence:   0.6,
		Reasoning:    "rule-based keyword classification",
		Provenance:   domain.ProvenanceRuleBased,
	}, nil
}

var domainCategories = map[string]domain.Category{
	"github.com":           domain.CategoryTechnology,
	"stackoverflow.com":    domain.CategoryTechnology,
	"news.ycombinator.com": domain.CategoryTechnology,
	"youtube.com":          domain.CategoryEntertainment,
	"youtu.be":             domain.CategoryEntertainment,
	"netflix.com":          domain.CategoryEntertainment,
	"twitch.tv":            domain.CategoryEntertainment,
	"twitter.com":          domain.CategorySocial,
	"x.com":                domain.CategorySocial,
	"instagram.com":        domain.CategorySocial,
	"reddit.com":           domain.CategorySocial,
	"linkedin.com":         domain.CategorySocial,
	"nytimes.com":          domain.CategoryNews,
	"bbc.com":              domain.CategoryNews,
	"cnn.com":              domain.CategoryNews,
	"reuters.com":          domain.CategoryNews,
	"coursera.org":         domain.CategoryEducation,
	"udemy.com":            domain.CategoryEducation,
	"wikipedia.org":        domain.CategoryEducation,
	"amazon.com":           domain.CategoryBusiness,
	"bloomberg.com":        domain.CategoryBusiness,
	"arxiv.org":            domain.CategoryScience,
	"nature.com":           domain.CategoryScience,
	"behance.net":          domain.CategoryArt,
	"dribbble.com":         domain.CategoryArt,
}

// heuristic classifies URLs purely by a static domain table and non-URL
// text purely by length thresholds.
func heuristic(req Request) (*domain.AnalysisResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errors.New("no content for heuristic analysis")
	}

	if isURLShaped(content) {
		parsed, err := url.Parse(content)
		if err != nil {
			return nil, fmt.Errorf("unparseable url: %w", err)
		}
		if parsed.Hostname() == "" {
			return nil, fmt.Errorf("url without host: %q", content)
		}
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

		category := domain.CategoryOther
		for suffix, cat := range domainCategories {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				category = cat
				break
			}
		}

		return &domain.AnalysisResult{
			Title:        "Content from " + host,
			Description:  "Shared link from " + host,
			Tags:         domainTags(host),
			Category:     category,
			Sentiment:    domain.SentimentNeutral,
			Topics:       []string{string(category)},
			QualityScore: 0.6,
			Confidence:   0.5,
			Reasoning:    "classified by source domain",
			Provenance:   domain.ProvenanceHeuristic,
		}, nil
	}

	quality := 0.8
	switch {
	case len(content) < 50:
		quality = 0.3
	case len(content) < 200:
		quality = 0.6
	}

	return &domain.AnalysisResult{
		Title:        domain.Truncate(content, 80),
		Description:  domain.Truncate(content, 200),
		Category:     domain.CategoryOther,
		Sentiment:    domain.SentimentNeutral,
		Topics:       sentenceFragments(content, 3, 30),
		QualityScore: quality,
		Confidence:   0.4,
		Reasoning:    "length-based heuristic classification",
		Provenance:   domain.ProvenanceHeuristic,
	}, nil
}

// emergency is the guaranteed-success stub.
func emergency(Request) (*domain.AnalysisResult, error) {
	return &domain.AnalysisResult{
		Title:        "Shared Content",
		Description:  "",
		Category:     domain.CategoryOther,
		Sentiment:    domain.SentimentNeutral,
		QualityScore: 0.3,
		Confidence:   0.2,
		Reasoning:    "emergency stub analysis",
		Provenance:   domain.ProvenanceEmergency,
	}, nil
}

func bestCategory(content string) (domain.Category, int) {
	best := domain.CategoryOther
	bestHits := 0
	for category, keywords := range categoryKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				hits++
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && category < best) {
			best, bestHits = category, hits
		}
	}
	return best, bestHits
}

func scoreSentiment(content string) domain.Sentiment {
	positive, negative := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(content, w) {
			positive++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(content, w) {
			negative++
		}
	}
	switch {
	case positive > negative:
		return domain.SentimentPositive
	case negative > positive:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func extractTags(content string, limit int) []string {
	words := strings.FieldsFunc(content, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	seen := map[string]struct{}{}
	var tags []string
	for _, w := range words {
		if len(w) < 4 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tags = append(tags, w)
		if len(tags) == limit {
			break
		}
	}
	return tags
}

func sentenceFragments(content string, count, maxLen int) []string {
	parts := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var fragments []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fragments = append(fragments, domain.Truncate(p, maxLen))
		if len(fragments) == count {
			break
		}
	}
	return fragments
}

func domainTags(host string) []string {
	parts := strings.Split(host, ".")
	var tags []string
	for _, p := range parts {
		if len(p) > 2 {
			tags = append(tags, p)
		}
	}
	return tags
}

func isURLShaped(content string) bool {
	trimmed := strings.TrimSpace(content)
	return (strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")) &&
		!strings.ContainsAny(trimmed, " \n\t")
}
