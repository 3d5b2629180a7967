package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digitalwall/internal/config"
	"digitalwall/internal/ports"
)

// Cost is tracked in micro-dollars so the external counter store only ever
// sees integral atomic increments.
const microUSD = 1_000_000

// Usage holds one user's AI consumption for the current day.
type Usage struct {
	Tokens   int64
	Requests int64
	CostUSD  float64
}

// Limits are the static daily ceilings from configuration.
type Limits struct {
	Tokens   int64
	Requests int64
	CostUSD  float64
}

// Status is the result of a quota check.
type Status struct {
	Usage     Usage
	Limits    Limits
	Remaining Usage
	Exceeded  bool
}

// Tracker records and checks per-user daily AI usage against fixed limits.
// Reads are best-effort and fail open: blocking legitimate usage is worse
// than occasional over-quota.
type Tracker struct {
	counters ports.CounterStore
	limits   Limits
	logger   *slog.Logger
	now      func() time.Time
}

// New wires the tracker onto the external counter store.
func New(counters ports.CounterStore, cfg config.QuotaConfig, logger *slog.Logger) *Tracker {
	return &Tracker{
		counters: counters,
		limits: Limits{
			Tokens:   cfg.TokensPerDay,
			Requests: cfg.RequestsPerDay,
			CostUSD:  cfg.CostPerDayUSD,
		},
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the clock; tests pin the day boundary with it.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// RecordUsage increments today's counters for the user. Backing-store
// errors are logged and swallowed: quota tracking must never block the
// pipeline.
func (t *Tracker) RecordUsage(ctx context.Context, userID string, tokens int64, costUSD float64) {
	day := t.day()
	increments := []struct {
		metric string
		amount int64
	}{
		{"tokens", tokens},
		{"requests", 1},
		{"cost", int64(costUSD * microUSD)},
	}

	for _, inc := range increments {
		if inc.amount == 0 {
			continue
		}
		if err := t.counters.Increment(ctx, t.key(userID, day, inc.metric), inc.amount); err != nil {
			t.warn("record usage failed", "user", userID, "metric", inc.metric, "error", err)
		}
	}
}

// CheckQuota computes whether any of the daily limits are met or exceeded.
// An unreachable counter store reads as zero usage (fail-open).
func (t *Tracker) CheckQuota(ctx context.Context, userID string) Status {
	day := t.day()

	usage := Usage{
		Tokens:   t.read(ctx, t.key(userID, day, "tokens")),
		Requests: t.read(ctx, t.key(userID, day, "requests")),
		CostUSD:  float64(t.read(ctx, t.key(userID, day, "cost"))) / microUSD,
	}

	remaining := Usage{
		Tokens:   maxInt64(t.limits.Tokens-usage.Tokens, 0),
		Requests: maxInt64(t.limits.Requests-usage.Requests, 0),
		CostUSD:  maxFloat(t.limits.CostUSD-usage.CostUSD, 0),
	}

	exceeded := usage.Tokens >= t.limits.Tokens ||
		usage.Requests >= t.limits.Requests ||
		usage.CostUSD >= t.limits.CostUSD

	return Status{Usage: usage, Limits: t.limits, Remaining: remaining, Exceeded: exceeded}
}

func (t *Tracker) read(ctx context.Context, key string) int64 {
	value, err := t.counters.Read(ctx, key)
	if err != nil {
		t.warn("quota read failed, assuming zero", "key", key, "error", err)
		return 0
	}
	return value
}

func (t *Tracker) day() string {
	return t.now().UTC().Format("2006-01-02")
}

func (t *Tracker) key(userID, day, metric string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return fmt.Sprintf("quota:%s:%s:%s", userID, day, metric)
}

func (t *Tracker) warn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
