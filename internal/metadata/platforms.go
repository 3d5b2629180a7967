package metadata

import (
	"net/url"
	"strings"
)

// PlatformExtractor derives structured fields from a platform-shaped URL.
// Extractors are pure URL-structure parsers and make no network calls.
type PlatformExtractor interface {
	Name() string
	Match(host string) bool
	Extract(u *url.URL) map[string]any
}

// PlatformRegistry keeps a mapping from platforms to their extractors and
// resolves the first one whose host substring matches.
type PlatformRegistry struct {
	extractors []PlatformExtractor
}

// NewPlatformRegistry builds an empty registry.
func NewPlatformRegistry() *PlatformRegistry {
	return &PlatformRegistry{}
}

// Register appends an extractor; earlier registrations win on overlap.
func (r *PlatformRegistry) Register(e PlatformExtractor) {
	r.extractors = append(r.extractors, e)
}

// Extract runs the first matching extractor, or returns nil when the URL
// belongs to no known platform.
func (r *PlatformRegistry) Extract(u *url.URL) map[string]any {
	host := strings.ToLower(u.Hostname())
	for _, e := range r.extractors {
		if !e.Match(host) {
			continue
		}
		if fields := e.Extract(u); fields != nil {
			fields["platform"] = e.Name()
			return fields
		}
	}
	return nil
}

// DefaultPlatforms registers the built-in extractors.
func DefaultPlatforms() *PlatformRegistry {
	r := NewPlatformRegistry()
	r.Register(githubExtractor{})
	r.Register(youtubeExtractor{})
	r.Register(twitterExtractor{})
	return r
}

type githubExtractor struct{}

func (githubExtractor) Name() string          { return "github" }
func (githubExtractor) Match(host string) bool { return strings.Contains(host, "github.com") }

func (githubExtractor) Extract(u *url.URL) map[string]any {
	parts := pathParts(u)
	if len(parts) < 2 {
		return nil
	}
	fields := map[string]any{
		"owner": parts[0],
		"repo":  parts[1],
	}
	if len(parts) >= 3 {
		switch parts[2] {
		case "issues", "pull", "discussions":
			fields["content_type"] = strings.TrimSuffix(parts[2], "s")
		case "blob", "tree":
			fields["content_type"] = "code"
		case "releases":
			fields["content_type"] = "release"
		default:
			fields["content_type"] = "repository"
		}
	} else {
		fields["content_type"] = "repository"
	}
	return fields
}

type youtubeExtractor struct{}

func (youtubeExtractor) Name() string { return "youtube" }

func (youtubeExtractor) Match(host string) bool {
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}

func (youtubeExtractor) Extract(u *url.URL) map[string]any {
	if strings.Contains(u.Hostname(), "youtu.be") {
		if parts := pathParts(u); len(parts) > 0 {
			return map[string]any{"video_id": parts[0]}
		}
		return nil
	}

	if id := u.Query().Get("v"); id != "" {
		return map[string]any{"video_id": id}
	}

	// Shorts and embeds carry the id as the second path segment.
	parts := pathParts(u)
	if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed") {
		return map[string]any{"video_id": parts[1], "format": parts[0]}
	}
	return nil
}

type twitterExtractor struct{}

func (twitterExtractor) Name() string { return "twitter" }

func (twitterExtractor) Match(host string) bool {
	return strings.Contains(host, "twitter.com") || host == "x.com" || strings.HasSuffix(host, ".x.com")
}

func (twitterExtractor) Extract(u *url.URL) map[string]any {
	parts := pathParts(u)
	if len(parts) == 0 {
		return nil
	}
	fields := map[string]any{"username": parts[0]}
	if len(parts) >= 3 && parts[1] == "status" {
		fields["tweet_id"] = parts[2]
	}
	return fields
}

func pathParts(u *url.URL) []string {
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
