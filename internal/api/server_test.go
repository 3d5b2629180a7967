package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalwall/internal/analysis"
	"digitalwall/internal/config"
	"digitalwall/internal/domain"
	"digitalwall/internal/metadata"
	"digitalwall/internal/ports"
	"digitalwall/internal/priority"
	"digitalwall/internal/quota"
	"digitalwall/internal/usecase"
)

type stubChat struct{}

func (stubChat) Complete(context.Context, ports.CompletionRequest) (string, error) {
	return `{"title": "Note", "description": "A note.", "tags": ["notes"],
		"category": "other", "sentiment": "neutral", "topics": [],
		"quality_score": 0.6, "confidence": 0.8, "reasoning": "short"}`, nil
}

type stubCache struct{}

func (stubCache) Get(context.Context, string) ([]byte, error) { return nil, ports.ErrCacheMiss }
func (stubCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

type stubCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

func (s *stubCounters) Increment(_ context.Context, key string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]int64{}
	}
	s.values[key] += amount
	return nil
}

func (s *stubCounters) Read(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

type stubStore struct {
	mu     sync.Mutex
	stored int
}

func (s *stubStore) StoreItem(_ context.Context, item *domain.ContentItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored++
	return item.ID, nil
}

func (s *stubStore) StoreFiles(_ context.Context, _ string, files []domain.SharedFile) ([]string, error) {
	urls := make([]string, len(files))
	for i, f := range files {
		urls[i] = "/files/" + f.Name
	}
	return urls, nil
}

type stubIndex struct{}

func (stubIndex) Index(context.Context, *domain.ContentItem) error { return nil }

func newTestServer(t *testing.T) (*Server, *stubStore) {
	t.Helper()
	return newQuotaTestServer(t, 100)
}

func newQuotaTestServer(t *testing.T, requestsPerDay int64) (*Server, *stubStore) {
	t.Helper()

	quotaCfg := config.QuotaConfig{TokensPerDay: 100000, RequestsPerDay: requestsPerDay, CostPerDayUSD: 10}
	tracker := quota.New(&stubCounters{}, quotaCfg, nil)

	store := &stubStore{}
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Extractor: metadata.NewExtractor(&http.Client{Timeout: time.Second}, "test-agent", nil),
		Analyzer:  analysis.NewClient(stubChat{}, stubCache{}, tracker, nil),
		Fallback:  analysis.NewFallback(nil),
		Store:     store,
		Index:     stubIndex{},
		Config:    config.PipelineConfig{MaxConcurrent: 4, AIMaxConcurrent: 2},
	})

	cfg := config.Config{
		Server:   config.ServerConfig{Addr: ":0"},
		Pipeline: config.PipelineConfig{MaxConcurrent: 4},
	}
	return New(pipeline, priority.New(tracker, nil), cfg, nil), store
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestShareProcessesTextItem(t *testing.T) {
	server, store := newTestServer(t)

	rec := postJSON(t, server.Handler(), "/api/v1/share", ShareRequest{
		UserID:  "u1",
		Content: "a note worth keeping",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Stage)
	assert.NotEmpty(t, resp.ID)
	assert.NotNil(t, resp.Enriched["display"])
	assert.Equal(t, 1, store.stored)
}

func TestShareRejectsEmptyRequest(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server.Handler(), "/api/v1/share", ShareRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShareReportsValidationFailure(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server.Handler(), "/api/v1/share", ShareRequest{
		Type:    "url",
		Content: "ftp://example.com/file",
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Stage)
	assert.NotEmpty(t, resp.Errors)
}

func TestShareBatchAggregatesResults(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server.Handler(), "/api/v1/share/batch", BatchShareRequest{
		UserID: "u1",
		Items: []ShareRequest{
			{Content: "first note"},
			{Type: "url", Content: "ftp://bad.example/x"},
			{Content: "third note"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 3)
	assert.Equal(t, 2, resp.Completed)
	assert.Equal(t, 1, resp.Failed)
}

func TestShareBatchOverQuotaStillProcessesEveryItem(t *testing.T) {
	server, store := newQuotaTestServer(t, 2)

	batch := BatchShareRequest{UserID: "u1", Items: []ShareRequest{
		{Content: "first note"},
		{Content: "second note"},
		{Content: "third note"},
		{Content: "fourth note"},
		{Content: "fifth note"},
	}}
	rec := postJSON(t, server.Handler(), "/api/v1/share/batch", batch)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, len(batch.Items), "every submitted item must appear in the response")
	assert.Equal(t, len(batch.Items), resp.Completed+resp.Failed)
	assert.Equal(t, len(batch.Items), resp.Completed, "items past the quota cut fall back to local analysis")
	assert.Equal(t, len(batch.Items), store.stored, "items past the quota cut must still be stored")
	for _, item := range resp.Items {
		assert.Equal(t, "completed", item.Stage)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
