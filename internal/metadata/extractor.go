package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"digitalwall/internal/domain"
)

const (
	defaultUserAgent = "DigitalWall/1.0 (content-pipeline)"
	maxImageURLs     = 5
	maxJSONLDBlocks  = 3
)

// TextAnalyzer is the extension point for text-share metadata. The default
// implementation produces basic statistics only.
type TextAnalyzer interface {
	Analyze(text string) map[string]any
}

// Extractor produces a best-effort structured metadata document for a
// content item. It never returns an error: failures reduce to a partial
// map annotated with "error" and "status" keys.
type Extractor struct {
	client    *http.Client
	userAgent string
	platforms *PlatformRegistry
	text      TextAnalyzer
	logger    *slog.Logger
}

// NewExtractor wires an HTTP client; timeout defaults to 20s.
func NewExtractor(client *http.Client, userAgent string, logger *slog.Logger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Extractor{
		client:    client,
		userAgent: userAgent,
		platforms: DefaultPlatforms(),
		text:      basicTextAnalyzer{},
		logger:    logger,
	}
}

// WithTextAnalyzer swaps the text-share analyzer.
func (e *Extractor) WithTextAnalyzer(a TextAnalyzer) *Extractor {
	if a != nil {
		e.text = a
	}
	return e
}

// Extract branches on content type and always yields a metadata map.
func (e *Extractor) Extract(ctx context.Context, item *domain.ContentItem) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			result = failedMeta(fmt.Errorf("metadata extraction panic: %v", r))
		}
	}()

	switch item.ContentType {
	case domain.ContentTypeURL:
		return e.extractURL(ctx, item.PrimaryContent)
	case domain.ContentTypeImage, domain.ContentTypeVideo, domain.ContentTypeFile:
		return e.extractFiles(item.Files)
	default:
		return e.text.Analyze(item.PrimaryContent)
	}
}

func (e *Extractor) extractURL(ctx context.Context, rawURL string) map[string]any {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return failedMeta(fmt.Errorf("invalid url: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return failedMeta(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return timeoutMeta(err)
		}
		return failedMeta(fmt.Errorf("fetch page: %w", err))
	}
	defer resp.Body.Close()

	meta := map[string]any{
		"url":    pageURL.String(),
		"domain": pageURL.Hostname(),
		"status": "ok",
	}

	if resp.StatusCode != http.StatusOK {
		meta["status"] = "failed"
		meta["error"] = fmt.Sprintf("page returned %s", resp.Status)
		e.applyPlatform(meta, pageURL)
		return meta
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") &&
		!strings.Contains(contentType, "application/xhtml") {
		meta["status"] = "skipped_non_html"
		meta["content_type"] = contentType
		e.applyPlatform(meta, pageURL)
		return meta
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		meta["status"] = "failed"
		meta["error"] = fmt.Sprintf("parse document: %v", err)
		return meta
	}

	e.parseDocument(doc, pageURL, meta)
	e.applyPlatform(meta, pageURL)
	return meta
}

func (e *Extractor) parseDocument(doc *goquery.Document, pageURL *url.URL, meta map[string]any) {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}

	for metaName, key := range map[string]string{
		"description": "description",
		"keywords":    "keywords",
		"author":      "author",
	} {
		sel := fmt.Sprintf(`meta[name=%q]`, metaName)
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			meta[key] = strings.TrimSpace(v)
		}
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		meta["language"] = lang
	}

	if images := collectImages(doc, pageURL); len(images) > 0 {
		meta["images"] = images
	}

	if og := collectPrefixed(doc, "meta[property^='og:']", "property", "og:"); len(og) > 0 {
		meta["open_graph"] = og
	}
	if tw := collectPrefixed(doc, "meta[name^='twitter:']", "name", "twitter:"); len(tw) > 0 {
		meta["twitter_card"] = tw
	}

	if blocks := collectJSONLD(doc); len(blocks) > 0 {
		meta["json_ld"] = blocks
	}
}

func collectImages(doc *goquery.Document, pageURL *url.URL) []string {
	var images []string
	seen := map[string]struct{}{}

	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		ref, err := url.Parse(src)
		if err != nil {
			return true
		}
		abs := pageURL.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		images = append(images, abs)
		return len(images) < maxImageURLs
	})

	return images
}

func collectPrefixed(doc *goquery.Document, selector, attr, prefix string) map[string]string {
	pairs := map[string]string{}
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr(attr)
		content, ok := sel.Attr("content")
		if !ok {
			return
		}
		key := strings.TrimPrefix(name, prefix)
		if key == "" || key == name {
			return
		}
		if _, exists := pairs[key]; !exists {
			pairs[key] = strings.TrimSpace(content)
		}
	})
	return pairs
}

// collectJSONLD parses embedded structured-data blocks; malformed JSON is
// skipped, not reported.
func collectJSONLD(doc *goquery.Document) []any {
	var blocks []any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var block any
		if err := json.Unmarshal([]byte(sel.Text()), &block); err == nil {
			blocks = append(blocks, block)
		}
		return len(blocks) < maxJSONLDBlocks
	})
	return blocks
}

func (e *Extractor) applyPlatform(meta map[string]any, pageURL *url.URL) {
	if e.platforms == nil {
		return
	}
	if platform := e.platforms.Extract(pageURL); platform != nil {
		meta["platform"] = platform
	}
}

func (e *Extractor) extractFiles(files []domain.SharedFile) map[string]any {
	if len(files) == 0 {
		return failedMeta(errors.New("no files attached"))
	}

	infos := make([]map[string]any, 0, len(files))
	totalSize := 0
	for _, f := range files {
		infos = append(infos, ExtractFile(f))
		totalSize += len(f.Data)
	}

	return map[string]any{
		"status":          "ok",
		"file_count":      len(files),
		"total_file_size": totalSize,
		"files":           infos,
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func failedMeta(err error) map[string]any {
	return map[string]any{"status": "failed", "error": err.Error()}
}

func timeoutMeta(err error) map[string]any {
	return map[string]any{"status": "timeout", "error": err.Error()}
}

// basicTextAnalyzer is the minimal text-share analyzer: counts and a URL
// presence flag. Richer NLP plugs in via WithTextAnalyzer.
type basicTextAnalyzer struct{}

func (basicTextAnalyzer) Analyze(text string) map[string]any {
	return map[string]any{
		"status":     "ok",
		"char_count": len(text),
		"word_count": len(strings.Fields(text)),
		"has_urls":   strings.Contains(text, "http://") || strings.Contains(text, "https://"),
	}
}
