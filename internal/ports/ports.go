package ports

import (
	"context"
	"errors"
	"time"

	"digitalwall/internal/domain"
)

// ErrCacheMiss is returned by CacheStore.Get when the key is absent or
// expired. A backing-store error must be surfaced as-is so callers can
// degrade it to a miss.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore is the external AI-result cache (Redis in production).
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CounterStore is the daily-keyed usage counter service. Increment must be
// atomic in the backing store; the pipeline never locks around it.
type CounterStore interface {
	Increment(ctx context.Context, key string, amount int64) error
	Read(ctx context.Context, key string) (int64, error)
}

// CompletionRequest is one round trip to the LLM provider.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ChatClient calls the external LLM provider and returns its free-text
// response, which may embed a JSON object. Treated as unreliable.
type ChatClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ItemStore persists enriched records and shared file payloads. A StoreItem
// failure is fatal to the item being processed.
type ItemStore interface {
	StoreItem(ctx context.Context, item *domain.ContentItem) (string, error)
	StoreFiles(ctx context.Context, itemID string, files []domain.SharedFile) ([]string, error)
}

// SearchIndex receives the enriched record for discovery. Failures here are
// never fatal.
type SearchIndex interface {
	Index(ctx context.Context, item *domain.ContentItem) error
}

// ProgressUpdate is a best-effort processing event for live UIs.
type ProgressUpdate struct {
	UserID   string       `json:"user_id,omitempty"`
	ItemID   string       `json:"item_id"`
	Stage    domain.Stage `json:"stage"`
	Progress int          `json:"progress"`
	Message  string       `json:"message,omitempty"`
}

// ProgressNotifier publishes stage transitions to interested subscribers.
type ProgressNotifier interface {
	PublishUpdate(ctx context.Context, update ProgressUpdate) error
}
