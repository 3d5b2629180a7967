package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"digitalwall/internal/domain"
	"digitalwall/internal/ports"
	"digitalwall/internal/quota"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultCacheTTL     = 24 * time.Hour
	completionMaxTokens = 1000
	completionTemp      = 0.3

	// Rough blended provider price per token; only used for quota cost
	// accounting, not billing.
	tokenCostUSD = 3.0 / 1_000_000
)

// Request carries one analysis job.
type Request struct {
	UserID      string
	ContentType domain.ContentType
	Content     string
	Context     map[string]string
	Preferences map[string]string
	Depth       Depth
}

// Client drives the external LLM provider: fingerprint caching, prompt
// construction, response repair, and usage accounting. Provider failures
// propagate to the caller; the pipeline decides whether to fall back.
type Client struct {
	chat     ports.ChatClient
	cache    ports.CacheStore
	quota    *quota.Tracker
	timeout  time.Duration
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewClient wires the provider, cache, and quota tracker.
func NewClient(chat ports.ChatClient, cache ports.CacheStore, tracker *quota.Tracker, logger *slog.Logger) *Client {
	return &Client{
		chat:     chat,
		cache:    cache,
		quota:    tracker,
		timeout:  defaultTimeout,
		cacheTTL: defaultCacheTTL,
		logger:   logger,
	}
}

// WithTimeout overrides the per-call provider timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithCacheTTL overrides the result cache lifetime.
func (c *Client) WithCacheTTL(d time.Duration) *Client {
	if d > 0 {
		c.cacheTTL = d
	}
	return c
}

// Fingerprint is the deterministic cache key for an analysis request.
func Fingerprint(contentType domain.ContentType, content string, depth Depth) string {
	h := sha256.New()
	h.Write([]byte(contentType))
	h.Write([]byte{0})
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(depth))
	return "analysis:" + hex.EncodeToString(h.Sum(nil))
}

// Analyze returns a canonical AnalysisResult for the content. Cache hits
// consume no quota and trigger no provider call. A provider transport
// error or timeout is returned to the caller; malformed provider JSON
// degrades to a local minimal record instead.
func (c *Client) Analyze(ctx context.Context, req Request) (*domain.AnalysisResult, error) {
	if req.Depth == "" {
		req.Depth = DepthStandard
	}

	key := Fingerprint(req.ContentType, req.Content, req.Depth)
	if cached := c.cachedResult(ctx, key); cached != nil {
		c.debug("analysis cache hit", "key", key)
		return cached, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(req)
	raw, err := c.chat.Complete(callCtx, ports.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   completionMaxTokens,
		Temperature: completionTemp,
	})
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}

	c.recordUsage(ctx, req.UserID, prompt, raw)

	obj, ok := extractJSONObject(raw)
	if !ok {
		c.debug("no JSON object in provider response, using minimal record")
		return minimalRecord(raw, req), nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		c.debug("provider JSON did not decode, using minimal record", "error", err)
		return minimalRecord(raw, req), nil
	}

	result := resultFromFields(fields)
	result.Provenance = domain.ProvenanceAI
	result.Normalize()

	c.storeCache(ctx, key, result)
	return result, nil
}

func (c *Client) cachedResult(ctx context.Context, key string) *domain.AnalysisResult {
	if c.cache == nil {
		return nil
	}
	payload, err := c.cache.Get(ctx, key)
	if err != nil {
		// Any cache error degrades to a miss.
		return nil
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil
	}
	return &result
}

// storeCache persists only verified provider JSON; minimal records never
// enter the cache.
func (c *Client) storeCache(ctx context.Context, key string, result *domain.AnalysisResult) {
	if c.cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, payload, c.cacheTTL); err != nil {
		c.debug("cache store failed", "key", key, "error", err)
	}
}

func (c *Client) recordUsage(ctx context.Context, userID, prompt, response string) {
	if c.quota == nil {
		return
	}
	tokens := int64((len(prompt) + len(response)) / 4)
	c.quota.RecordUsage(ctx, userID, tokens, float64(tokens)*tokenCostUSD)
}

// extractJSONObject returns the first balanced {...} region of the text.
// Braces inside JSON strings are accounted for.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// minimalRecord wraps raw provider text (or the content itself) into a
// low-confidence AnalysisResult. This is the client-local degradation for
// malformed responses, distinct from the rule-based fallback tiers.
func minimalRecord(raw string, req Request) *domain.AnalysisResult {
	source := strings.TrimSpace(raw)
	if source == "" {
		source = strings.TrimSpace(req.Content)
	}

	title := source
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	if title == "" {
		title = "Shared Content"
	}

	result := &domain.AnalysisResult{
		Title:        title,
		Description:  source,
		Category:     domain.CategoryOther,
		Sentiment:    domain.SentimentNeutral,
		QualityScore: 0.3,
		Confidence:   0.3,
		Reasoning:    "provider response could not be parsed",
		Provenance:   domain.ProvenanceAI,
	}
	result.Normalize()
	return result
}

// resultFromFields repairs an untrusted decoded JSON object into the
// canonical shape, filling missing fields with type-appropriate defaults.
func resultFromFields(fields map[string]any) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Title:        stringField(fields, "title"),
		Description:  stringField(fields, "description"),
		Tags:         stringListField(fields, "tags"),
		Category:     domain.Category(stringField(fields, "category")),
		Sentiment:    domain.Sentiment(stringField(fields, "sentiment")),
		Topics:       stringListField(fields, "topics"),
		QualityScore: floatField(fields, "quality_score", 0.5),
		Confidence:   floatField(fields, "confidence", 0.5),
		Reasoning:    stringField(fields, "reasoning"),
	}
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func stringListField(fields map[string]any, key string) []string {
	raw, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatField(fields map[string]any, key string, fallback float64) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
