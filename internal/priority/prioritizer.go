package priority

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"digitalwall/internal/domain"
	"digitalwall/internal/quota"
)

// Context keys recognized on incoming shares.
const (
	// SharedViaKey marks how the share arrived; native share-target shares
	// get a priority bonus.
	SharedViaKey = "shared_via"
	NativeShare  = "native_share"

	// AIModeKey set to "off" means the item never enters AI analysis and
	// therefore bypasses quota filtering entirely.
	AIModeKey = "ai"
	AIModeOff = "off"
)

// Full-score weights. Recency decays linearly to zero over 24h.
const (
	recencyWeight    = 0.4
	nativeShareBonus = 0.3
	lengthWeight     = 0.2
	lengthCap        = 5000
	recencyWindow    = 24 * time.Hour
)

// Prioritizer orders and filters a batch of pending items before AI
// analysis. Aside from a single quota read it is pure and deterministic
// for a fixed clock.
type Prioritizer struct {
	quota  *quota.Tracker
	logger *slog.Logger
	now    func() time.Time
}

// New wires the prioritizer onto the quota tracker.
func New(tracker *quota.Tracker, logger *slog.Logger) *Prioritizer {
	return &Prioritizer{quota: tracker, logger: logger, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (p *Prioritizer) WithClock(now func() time.Time) *Prioritizer {
	p.now = now
	return p
}

// Prioritize returns the full batch ordered by descending priority. When
// the user's remaining daily request quota is smaller than the number of
// AI-bound items, the AI-bound set is cut down to the quota size using a
// cheap heuristic; items outside the cut are demoted to the no-AI path
// rather than dropped, so every submitted item is still processed and
// stored. Items with AI disabled bypass quota filtering and keep their
// relative order at the tail.
func (p *Prioritizer) Prioritize(ctx context.Context, items []*domain.ContentItem, userID string) []*domain.ContentItem {
	if len(items) == 0 {
		return nil
	}

	var aiBound, bypass []*domain.ContentItem
	for _, item := range items {
		if item.Context[AIModeKey] == AIModeOff {
			bypass = append(bypass, item)
		} else {
			aiBound = append(aiBound, item)
		}
	}

	var demoted []*domain.ContentItem
	if p.quota != nil && len(aiBound) > 0 {
		status := p.quota.CheckQuota(ctx, userID)
		if status.Remaining.Requests < int64(len(aiBound)) {
			if p.logger != nil {
				p.logger.Info("quota smaller than batch, filtering",
					"user", userID,
					"batch", len(aiBound),
					"remaining_requests", status.Remaining.Requests)
			}
			aiBound, demoted = p.topByCheapScore(aiBound, int(status.Remaining.Requests))
			for _, item := range demoted {
				disableAI(item)
			}
		}
	}

	now := p.now()
	sort.SliceStable(aiBound, func(i, j int) bool {
		return p.fullScore(aiBound[i], now) > p.fullScore(aiBound[j], now)
	})

	ordered := append(aiBound, demoted...)
	return append(ordered, bypass...)
}

// topByCheapScore splits the items into the n highest-priority ones by a
// coarse score (native-share intent dominates, then URL presence, then
// length, then recency) and the excluded rest in original relative order.
func (p *Prioritizer) topByCheapScore(items []*domain.ContentItem, n int) (kept, excluded []*domain.ContentItem) {
	if n <= 0 {
		return nil, items
	}
	if n >= len(items) {
		return items, nil
	}

	type scored struct {
		item  *domain.ContentItem
		score float64
		index int
	}

	now := p.now()
	ranked := make([]scored, len(items))
	for i, item := range items {
		ranked[i] = scored{item: item, score: cheapScore(item, now), index: i}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	kept = make([]*domain.ContentItem, 0, n)
	for _, r := range ranked[:n] {
		kept = append(kept, r.item)
	}

	rest := make([]scored, len(ranked[n:]))
	copy(rest, ranked[n:])
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].index < rest[j].index })
	excluded = make([]*domain.ContentItem, 0, len(rest))
	for _, r := range rest {
		excluded = append(excluded, r.item)
	}
	return kept, excluded
}

// disableAI marks an item for the local-analysis path.
func disableAI(item *domain.ContentItem) {
	if item.Context == nil {
		item.Context = map[string]string{}
	}
	item.Context[AIModeKey] = AIModeOff
}

func cheapScore(item *domain.ContentItem, now time.Time) float64 {
	var score float64
	if isNativeShare(item) {
		score += 8
	}
	if hasURL(item) {
		score += 4
	}
	length := len(item.PrimaryContent)
	if length > 2000 {
		length = 2000
	}
	score += float64(length) / 1000
	score += recencyFactor(item.CreatedAt, now)
	return score
}

// fullScore is the weighted sum used for final ordering of the retained
// set. The historical-engagement term is a placeholder at zero until an
// engagement signal exists.
func (p *Prioritizer) fullScore(item *domain.ContentItem, now time.Time) float64 {
	score := recencyWeight * recencyFactor(item.CreatedAt, now)
	if isNativeShare(item) {
		score += nativeShareBonus
	}
	length := len(item.PrimaryContent)
	if length > lengthCap {
		length = lengthCap
	}
	score += lengthWeight * float64(length) / lengthCap
	score += 0 // historical engagement
	return score
}

func recencyFactor(created, now time.Time) float64 {
	age := now.Sub(created)
	if age < 0 {
		age = 0
	}
	if age >= recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(recencyWindow)
}

func isNativeShare(item *domain.ContentItem) bool {
	return item.Context[SharedViaKey] == NativeShare
}

func hasURL(item *domain.ContentItem) bool {
	return item.ContentType == domain.ContentTypeURL ||
		strings.HasPrefix(item.PrimaryContent, "http://") ||
		strings.HasPrefix(item.PrimaryContent, "https://")
}
