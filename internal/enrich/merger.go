package enrich

import (
	"net/url"
	"strings"
	"time"

	"digitalwall/internal/domain"
)

// PipelineVersion tags every enriched record with the producing pipeline
// revision so stored records can be migrated or re-enriched later.
const PipelineVersion = "1.0"

const previewLength = 280

// Merge combines an item's extracted metadata and analysis result into the
// denormalized enriched record used for display and search. The item itself
// is not mutated; callers assign the returned map to item.Enriched.
func Merge(item *domain.ContentItem, elapsed time.Duration, now time.Time) map[string]any {
	record := map[string]any{
		"content_type":    string(item.ContentType),
		"metadata":        item.Metadata,
		"ai_analysis":     analysisMap(item.Analysis),
		"search_keywords": searchKeywords(item),
		"display":         displayRecord(item),
		"processing": map[string]any{
			"processed_at":     now.UTC().Format(time.RFC3339),
			"elapsed_seconds":  elapsed.Seconds(),
			"pipeline_version": PipelineVersion,
			"warnings":         append([]string(nil), item.Warnings...),
		},
	}
	return record
}

func analysisMap(a *domain.AnalysisResult) map[string]any {
	if a == nil {
		return nil
	}
	return map[string]any{
		"title":         a.Title,
		"description":   a.Description,
		"tags":          append([]string(nil), a.Tags...),
		"category":      string(a.Category),
		"sentiment":     string(a.Sentiment),
		"topics":        append([]string(nil), a.Topics...),
		"quality_score": a.QualityScore,
		"confidence":    a.Confidence,
		"reasoning":     a.Reasoning,
		"provenance":    string(a.Provenance),
	}
}

// searchKeywords collects the deduplicated lowercase keyword set from
// analysis tags and topics, plus the source domain for URL shares.
func searchKeywords(item *domain.ContentItem) []string {
	seen := map[string]struct{}{}
	var keywords []string
	add := func(word string) {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			return
		}
		if _, dup := seen[word]; dup {
			return
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}

	if item.Analysis != nil {
		for _, tag := range item.Analysis.Tags {
			add(tag)
		}
		for _, topic := range item.Analysis.Topics {
			add(topic)
		}
		add(string(item.Analysis.Category))
	}

	if item.ContentType == domain.ContentTypeURL {
		if host := sourceDomain(item.PrimaryContent); host != "" {
			add(host)
		}
	}

	return keywords
}

func displayRecord(item *domain.ContentItem) map[string]any {
	title := "Shared Content"
	description := ""
	if item.Analysis != nil {
		if item.Analysis.Title != "" {
			title = item.Analysis.Title
		}
		description = item.Analysis.Description
	}

	display := map[string]any{
		"title":         title,
		"description":   description,
		"thumbnail_url": thumbnailURL(item.Metadata),
	}

	if item.ContentType == domain.ContentTypeText {
		display["preview"] = domain.Truncate(strings.TrimSpace(item.PrimaryContent), previewLength)
	}

	return display
}

// thumbnailURL prefers the page's og:image, then the first scraped image.
func thumbnailURL(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if og, ok := metadata["open_graph"].(map[string]string); ok {
		if img := og["og:image"]; img != "" {
			return img
		}
	}
	if images, ok := metadata["images"].([]string); ok && len(images) > 0 {
		return images[0]
	}
	return ""
}

func sourceDomain(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}
