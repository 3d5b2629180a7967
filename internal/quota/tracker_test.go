package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalwall/internal/config"
)

type fakeCounters struct {
	mu      sync.Mutex
	values  map[string]int64
	failAll bool
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{values: map[string]int64{}}
}

func (f *fakeCounters) Increment(_ context.Context, key string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("store unreachable")
	}
	f.values[key] += amount
	return nil
}

func (f *fakeCounters) Read(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return 0, errors.New("store unreachable")
	}
	return f.values[key], nil
}

func testLimits() config.QuotaConfig {
	return config.QuotaConfig{TokensPerDay: 1000, RequestsPerDay: 3, CostPerDayUSD: 0.5}
}

func fixedClock() func() time.Time {
	day := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return day }
}

func TestRecordUsageIncrementsDailyCounters(t *testing.T) {
	counters := newFakeCounters()
	tracker := New(counters, testLimits(), nil).WithClock(fixedClock())

	tracker.RecordUsage(context.Background(), "u1", 250, 0.01)
	tracker.RecordUsage(context.Background(), "u1", 100, 0.02)

	status := tracker.CheckQuota(context.Background(), "u1")
	assert.Equal(t, int64(350), status.Usage.Tokens)
	assert.Equal(t, int64(2), status.Usage.Requests)
	assert.InDelta(t, 0.03, status.Usage.CostUSD, 1e-9)
	assert.False(t, status.Exceeded)
}

func TestCheckQuotaExceededOnAnyLimit(t *testing.T) {
	counters := newFakeCounters()
	tracker := New(counters, testLimits(), nil).WithClock(fixedClock())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tracker.RecordUsage(ctx, "u2", 10, 0.001)
	}

	status := tracker.CheckQuota(ctx, "u2")
	require.True(t, status.Exceeded, "request limit of 3 should trip")
	assert.Equal(t, int64(0), status.Remaining.Requests)
	assert.Equal(t, int64(970), status.Remaining.Tokens)
}

func TestCheckQuotaFailsOpen(t *testing.T) {
	counters := newFakeCounters()
	counters.failAll = true
	tracker := New(counters, testLimits(), nil).WithClock(fixedClock())

	status := tracker.CheckQuota(context.Background(), "u3")
	assert.False(t, status.Exceeded)
	assert.Equal(t, int64(1000), status.Remaining.Tokens)
}

func TestRecordUsageSwallowsStoreErrors(t *testing.T) {
	counters := newFakeCounters()
	counters.failAll = true
	tracker := New(counters, testLimits(), nil).WithClock(fixedClock())

	// Must not panic or surface the error.
	tracker.RecordUsage(context.Background(), "u4", 10, 0.001)
}

func TestAnonymousUsersShareTheAnonymousBucket(t *testing.T) {
	counters := newFakeCounters()
	tracker := New(counters, testLimits(), nil).WithClock(fixedClock())

	ctx := context.Background()
	tracker.RecordUsage(ctx, "", 10, 0)

	status := tracker.CheckQuota(ctx, "")
	assert.Equal(t, int64(1), status.Usage.Requests)
}
