package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"digitalwall/internal/analysis"
	"digitalwall/internal/config"
	"digitalwall/internal/domain"
	"digitalwall/internal/enrich"
	"digitalwall/internal/metadata"
	"digitalwall/internal/ports"
	"digitalwall/internal/priority"
)

const (
	maxTextBytes = 10_000

	// Fallback results carry less trust than a genuine provider analysis.
	fallbackConfidenceScale = 0.7

	defaultBatchConcurrency = 10
	defaultAIConcurrency    = 5
)

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Extractor *metadata.Extractor
	Analyzer  *analysis.Client
	Fallback  *analysis.Fallback
	Store     ports.ItemStore
	Index     ports.SearchIndex
	Notifier  ports.ProgressNotifier
	Config    config.PipelineConfig
	Logger    *slog.Logger
}

// Pipeline drives a ContentItem through the ordered stage sequence:
// validation, metadata extraction, AI analysis, enrichment, storage,
// indexing. Validation and storage failures are fatal; AI analysis and
// indexing failures degrade to warnings.
type Pipeline struct {
	extractor *metadata.Extractor
	analyzer  *analysis.Client
	fallback  *analysis.Fallback
	store     ports.ItemStore
	index     ports.SearchIndex
	notifier  ports.ProgressNotifier
	cfg       config.PipelineConfig
	logger    *slog.Logger
	now       func() time.Time

	// aiSem caps concurrent provider calls across the whole pipeline, so a
	// wide batch never fans out past the provider concurrency limit.
	aiSem *semaphore.Weighted
}

// BatchResult aggregates one ProcessBatch run.
type BatchResult struct {
	Items     []*domain.ContentItem
	Completed int
	Failed    int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	aiLimit := deps.Config.AIMaxConcurrent
	if aiLimit <= 0 {
		aiLimit = defaultAIConcurrency
	}
	return &Pipeline{
		extractor: deps.Extractor,
		analyzer:  deps.Analyzer,
		fallback:  deps.Fallback,
		store:     deps.Store,
		index:     deps.Index,
		notifier:  deps.Notifier,
		cfg:       deps.Config,
		logger:    deps.Logger,
		now:       time.Now,
		aiSem:     semaphore.NewWeighted(int64(aiLimit)),
	}
}

// WithClock overrides the clock; tests pin processing timestamps with it.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// ProcessSingle runs one item to a terminal stage. It always returns the
// item in a terminal state; panics anywhere in the sequence are caught and
// force the failed state.
func (p *Pipeline) ProcessSingle(ctx context.Context, item *domain.ContentItem) *domain.ContentItem {
	return p.process(ctx, ctx, item)
}

// process is the shared stage sequence. aiCtx bounds only the AI analysis
// stage; ProcessBatch passes a batch-deadlined context there so a slow
// provider cannot stall later stages, which still run under ctx.
func (p *Pipeline) process(ctx, aiCtx context.Context, item *domain.ContentItem) (out *domain.ContentItem) {
	start := p.now()

	out = item
	defer func() {
		if r := recover(); r != nil {
			item.Fail(fmt.Sprintf("unexpected processing error: %v", r))
			p.publish(ctx, item, "processing aborted")
		}
	}()

	if item.Stage.Terminal() {
		return item
	}

	if !p.validate(ctx, item) {
		p.publish(ctx, item, "validation failed")
		return item
	}

	p.extractMetadata(ctx, item)
	p.analyze(ctx, aiCtx, item)
	p.enrichItem(ctx, item, start)

	if !p.persist(ctx, item) {
		p.publish(ctx, item, "storage failed")
		return item
	}

	p.indexItem(ctx, item)

	item.Stage = domain.StageCompleted
	p.publish(ctx, item, "completed")
	return item
}

// ProcessBatch runs the stage sequence over all items under a
// bounded-concurrency limiter. Individual failures never abort the batch;
// the returned slice preserves input order.
func (p *Pipeline) ProcessBatch(ctx context.Context, items []*domain.ContentItem, maxConcurrent int) BatchResult {
	if maxConcurrent <= 0 {
		maxConcurrent = p.cfg.MaxConcurrent
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultBatchConcurrency
	}

	// One shared deadline for the batch's AI stage: items that cannot get
	// their provider call in before it expires degrade to fallback analysis
	// instead of holding the batch open.
	aiCtx := ctx
	if p.cfg.AIBatchTimeout > 0 {
		var cancel context.CancelFunc
		aiCtx, cancel = context.WithTimeout(ctx, p.cfg.AIBatchTimeout)
		defer cancel()
	}

	results := make([]*domain.ContentItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, item := range items {
		g.Go(func() error {
			results[i] = p.process(gctx, aiCtx, item)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Items: results}
	for _, item := range results {
		if item.Stage == domain.StageCompleted {
			result.Completed++
		} else {
			result.Failed++
		}
	}
	return result
}

// validate infers the content type, bounds text size, drops unusable files,
// and rejects malformed URLs. Returns false when the item failed.
func (p *Pipeline) validate(ctx context.Context, item *domain.ContentItem) bool {
	item.Stage = domain.StageValidation
	p.publish(ctx, item, "validating")

	if item.ContentType == "" {
		item.ContentType = inferContentType(item)
	}

	if item.ContentType == domain.ContentTypeText && len(item.PrimaryContent) > maxTextBytes {
		item.PrimaryContent = domain.Truncate(item.PrimaryContent, maxTextBytes)
		item.AddWarning("Text content truncated to 10KB")
	}

	if kept, dropped := filterFiles(item.Files); dropped > 0 {
		item.Files = kept
		item.AddWarning(fmt.Sprintf("dropped %d invalid files", dropped))
	}

	if item.ContentType == domain.ContentTypeURL {
		if err := checkURLShape(item.PrimaryContent); err != nil {
			item.Fail(fmt.Sprintf("invalid url: %v", err))
			return false
		}
	}

	return true
}

func (p *Pipeline) extractMetadata(ctx context.Context, item *domain.ContentItem) {
	item.Stage = domain.StageMetadata
	p.publish(ctx, item, "extracting metadata")

	item.Metadata = p.extractor.Extract(ctx, item)
	if errMsg, ok := item.Metadata["error"].(string); ok {
		item.AddWarning("metadata extraction failed: " + errMsg)
	}
}

// analyze fills item.Analysis, never failing the item. Provider errors and
// timeouts substitute the local fallback chain with scaled-down confidence.
func (p *Pipeline) analyze(ctx, aiCtx context.Context, item *domain.ContentItem) {
	item.Stage = domain.StageAIAnalysis
	p.publish(ctx, item, "analyzing")

	req := analysis.Request{
		UserID:      item.UserID,
		ContentType: item.ContentType,
		Content:     item.PrimaryContent,
		Context:     item.Context,
		Depth:       analysis.DepthStandard,
	}

	// Items explicitly marked ai=off never reach the provider.
	if item.Context[priority.AIModeKey] == priority.AIModeOff {
		item.Analysis = p.fallback.Analyze(req)
		return
	}

	result, err := p.callProvider(aiCtx, req)
	if err != nil {
		item.AddWarning(fmt.Sprintf("ai analysis unavailable: %v", err))
		result = p.fallback.Analyze(req)
		result.Confidence = domain.Clamp01(result.Confidence * fallbackConfidenceScale)
	}
	item.Analysis = result
}

// callProvider issues the provider call under the AI concurrency cap. A
// batch deadline expiring while waiting for a slot surfaces as an error,
// which analyze turns into fallback analysis.
func (p *Pipeline) callProvider(aiCtx context.Context, req analysis.Request) (*domain.AnalysisResult, error) {
	if err := p.aiSem.Acquire(aiCtx, 1); err != nil {
		return nil, fmt.Errorf("ai slot unavailable: %w", err)
	}
	defer p.aiSem.Release(1)
	return p.analyzer.Analyze(aiCtx, req)
}

// enrichItem builds the denormalized record; its own errors substitute a
// minimal record rather than failing the item.
func (p *Pipeline) enrichItem(ctx context.Context, item *domain.ContentItem, start time.Time) {
	item.Stage = domain.StageEnrichment
	p.publish(ctx, item, "enriching")

	record := func() (rec map[string]any) {
		defer func() {
			if r := recover(); r != nil {
				item.AddWarning(fmt.Sprintf("enrichment failed: %v", r))
				rec = minimalEnrichedRecord(item, p.now())
			}
		}()
		return enrich.Merge(item, p.now().Sub(start), p.now())
	}()

	item.Enriched = record
}

// persist writes the item and its files. Storage is the one late stage whose
// failure is fatal: an unstored item cannot be considered processed.
func (p *Pipeline) persist(ctx context.Context, item *domain.ContentItem) bool {
	item.Stage = domain.StageStorage
	p.publish(ctx, item, "storing")

	storedID, err := p.store.StoreItem(ctx, item)
	if err != nil {
		item.Fail(fmt.Sprintf("storage failed: %v", err))
		return false
	}
	if item.ID == "" {
		item.ID = storedID
	}

	if len(item.Files) > 0 {
		urls, err := p.store.StoreFiles(ctx, item.ID, item.Files)
		if err != nil {
			item.Fail(fmt.Sprintf("file storage failed: %v", err))
			return false
		}
		if item.Enriched != nil {
			item.Enriched["file_urls"] = urls
		}
	}

	return true
}

func (p *Pipeline) indexItem(ctx context.Context, item *domain.ContentItem) {
	item.Stage = domain.StageIndexing
	p.publish(ctx, item, "indexing")

	if p.index == nil {
		return
	}
	if err := p.index.Index(ctx, item); err != nil {
		item.AddWarning(fmt.Sprintf("indexing failed: %v", err))
	}
}

var stageProgress = map[domain.Stage]int{
	domain.StageIngestion:  0,
	domain.StageValidation: 10,
	domain.StageMetadata:   30,
	domain.StageAIAnalysis: 55,
	domain.StageEnrichment: 70,
	domain.StageStorage:    85,
	domain.StageIndexing:   95,
	domain.StageCompleted:  100,
	domain.StageFailed:     100,
}

// publish sends a best-effort progress event; notifier errors are logged and
// dropped.
func (p *Pipeline) publish(ctx context.Context, item *domain.ContentItem, message string) {
	if p.notifier == nil {
		return
	}
	update := ports.ProgressUpdate{
		UserID:   item.UserID,
		ItemID:   item.ID,
		Stage:    item.Stage,
		Progress: stageProgress[item.Stage],
		Message:  message,
	}
	if err := p.notifier.PublishUpdate(ctx, update); err != nil && p.logger != nil {
		p.logger.Debug("progress publish failed", "item", item.ID, "error", err)
	}
}

func inferContentType(item *domain.ContentItem) domain.ContentType {
	trimmed := strings.TrimSpace(item.PrimaryContent)
	switch {
	case (strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")) &&
		!strings.ContainsAny(trimmed, " \n\t"):
		return domain.ContentTypeURL
	case len(item.Files) > 0:
		return fileContentType(item.Files[0].MIME)
	default:
		return domain.ContentTypeText
	}
}

func fileContentType(mime string) domain.ContentType {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return domain.ContentTypeImage
	case strings.HasPrefix(mime, "video/"):
		return domain.ContentTypeVideo
	default:
		return domain.ContentTypeFile
	}
}

func filterFiles(files []domain.SharedFile) (kept []domain.SharedFile, dropped int) {
	for _, f := range files {
		if f.Name == "" || len(f.Data) == 0 {
			dropped++
			continue
		}
		kept = append(kept, f)
	}
	return kept, dropped
}

func checkURLShape(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// minimalEnrichedRecord is the enrichment-stage degradation: enough of the
// record shape for storage and display, nothing derived.
func minimalEnrichedRecord(item *domain.ContentItem, now time.Time) map[string]any {
	return map[string]any{
		"content_type": string(item.ContentType),
		"display": map[string]any{
			"title":       "Shared Content",
			"description": "",
		},
		"processing": map[string]any{
			"processed_at":     now.UTC().Format(time.RFC3339),
			"pipeline_version": enrich.PipelineVersion,
			"warnings":         append([]string(nil), item.Warnings...),
		},
	}
}
