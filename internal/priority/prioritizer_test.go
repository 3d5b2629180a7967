package priority

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalwall/internal/config"
	"digitalwall/internal/domain"
	"digitalwall/internal/quota"
)

type mapCounters struct {
	values map[string]int64
}

func (m *mapCounters) Increment(_ context.Context, key string, amount int64) error {
	m.values[key] += amount
	return nil
}

func (m *mapCounters) Read(_ context.Context, key string) (int64, error) {
	return m.values[key], nil
}

var testNow = time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)

func clock() func() time.Time { return func() time.Time { return testNow } }

func newTracker(counters *mapCounters, requestsPerDay int64) *quota.Tracker {
	cfg := config.QuotaConfig{TokensPerDay: 100000, RequestsPerDay: requestsPerDay, CostPerDayUSD: 10}
	return quota.New(counters, cfg, nil).WithClock(clock())
}

func item(id string, age time.Duration, content string, ctxMap map[string]string) *domain.ContentItem {
	return &domain.ContentItem{
		ID:             id,
		ContentType:    domain.ContentTypeText,
		PrimaryContent: content,
		Context:        ctxMap,
		CreatedAt:      testNow.Add(-age),
		Stage:          domain.StageIngestion,
	}
}

func TestPrioritizeOrdersByScoreDeterministically(t *testing.T) {
	p := New(newTracker(&mapCounters{values: map[string]int64{}}, 100), nil).WithClock(clock())

	old := item("old", 23*time.Hour, "short", nil)
	fresh := item("fresh", time.Minute, "short", nil)
	native := item("native", 12*time.Hour, "short", map[string]string{SharedViaKey: NativeShare})

	first := p.Prioritize(context.Background(), []*domain.ContentItem{old, fresh, native}, "u1")
	second := p.Prioritize(context.Background(), []*domain.ContentItem{old, fresh, native}, "u1")

	require.Len(t, first, 3)
	assert.Equal(t, "native", first[0].ID, "native bonus outweighs the recency gap")
	assert.Equal(t, "fresh", first[1].ID)
	assert.Equal(t, "old", first[2].ID)
	assert.Equal(t, first, second, "same inputs and clock must give the same order")
}

func TestPrioritizeNativeShareBeatsRecency(t *testing.T) {
	p := New(newTracker(&mapCounters{values: map[string]int64{}}, 100), nil).WithClock(clock())

	plain := item("plain", 6*time.Hour, "hello", nil)
	native := item("native", 6*time.Hour, "hello", map[string]string{SharedViaKey: NativeShare})

	got := p.Prioritize(context.Background(), []*domain.ContentItem{plain, native}, "u1")
	assert.Equal(t, "native", got[0].ID)
}

func TestPrioritizeFiltersToRemainingQuota(t *testing.T) {
	counters := &mapCounters{values: map[string]int64{}}
	tracker := newTracker(counters, 5)

	// Burn 2 of the 5 daily requests.
	tracker.RecordUsage(context.Background(), "u1", 100, 0.001)
	tracker.RecordUsage(context.Background(), "u1", 100, 0.001)

	p := New(tracker, nil).WithClock(clock())

	items := make([]*domain.ContentItem, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, item(fmt.Sprintf("i%02d", i), time.Duration(i)*time.Minute, "content body", nil))
	}

	got := p.Prioritize(context.Background(), items, "u1")

	require.Len(t, got, 20, "no submitted item may be lost")
	aiAdmitted := 0
	for _, it := range got {
		if it.Context[AIModeKey] != AIModeOff {
			aiAdmitted++
		}
	}
	assert.Equal(t, 3, aiAdmitted, "AI admissions must not exceed remaining requests")

	// The freshest items win the cheap-score cut; the rest follow in their
	// original relative order, demoted to the no-AI path.
	for i, it := range got[3:] {
		assert.Equal(t, fmt.Sprintf("i%02d", i+3), it.ID)
		assert.Equal(t, AIModeOff, it.Context[AIModeKey])
	}
}

func TestPrioritizeExhaustedQuotaDemotesAIBoundItems(t *testing.T) {
	counters := &mapCounters{values: map[string]int64{}}
	tracker := newTracker(counters, 1)
	tracker.RecordUsage(context.Background(), "u1", 10, 0)

	p := New(tracker, nil).WithClock(clock())

	got := p.Prioritize(context.Background(), []*domain.ContentItem{
		item("a", time.Minute, "x", nil),
		item("b", time.Minute, "y", nil),
	}, "u1")

	require.Len(t, got, 2)
	for _, it := range got {
		assert.Equal(t, AIModeOff, it.Context[AIModeKey], "exhausted quota demotes, never drops")
	}
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestPrioritizeAIDisabledItemsBypassQuota(t *testing.T) {
	counters := &mapCounters{values: map[string]int64{}}
	tracker := newTracker(counters, 1)
	tracker.RecordUsage(context.Background(), "u1", 10, 0)

	p := New(tracker, nil).WithClock(clock())

	noAI1 := item("noai1", time.Minute, "x", map[string]string{AIModeKey: AIModeOff})
	noAI2 := item("noai2", time.Minute, "y", map[string]string{AIModeKey: AIModeOff})
	aiBound := item("ai", time.Minute, "z", nil)

	got := p.Prioritize(context.Background(), []*domain.ContentItem{noAI1, aiBound, noAI2}, "u1")

	require.Len(t, got, 3)
	assert.Equal(t, "ai", got[0].ID, "demoted items precede the explicit bypass set")
	assert.Equal(t, "noai1", got[1].ID)
	assert.Equal(t, "noai2", got[2].ID, "bypass items keep their relative order")
}
