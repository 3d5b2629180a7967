package domain

import "time"

// ContentType classifies what kind of payload a share carries.
type ContentType string

const (
	ContentTypeURL   ContentType = "url"
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeFile  ContentType = "file"
)

// Stage enumerates pipeline milestones for a ContentItem.
type Stage string

const (
	StageIngestion  Stage = "ingestion"
	StageValidation Stage = "validation"
	StageMetadata   Stage = "metadata_extraction"
	StageAIAnalysis Stage = "ai_analysis"
	StageEnrichment Stage = "enrichment"
	StageStorage    Stage = "storage"
	StageIndexing   Stage = "indexing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Terminal reports whether the stage is one of the two end states.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// SharedFile carries an uploaded file through the pipeline.
type SharedFile struct {
	Name string
	MIME string
	Data []byte
}

// ContentItem is the unit of work flowing through the pipeline.
//
// Result slots (Metadata, Analysis, Enriched) are populated progressively
// and never cleared; once Stage is terminal the item must not be mutated.
type ContentItem struct {
	ID             string
	UserID         string
	ContentType    ContentType
	PrimaryContent string
	Context        map[string]string
	Files          []SharedFile
	CreatedAt      time.Time

	Stage    Stage
	Warnings []string
	Errors   []string

	Metadata map[string]any
	Analysis *AnalysisResult
	Enriched map[string]any
}

// AddWarning appends a processing warning without changing the stage.
func (c *ContentItem) AddWarning(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

// Fail records the error and moves the item to its terminal failed state.
func (c *ContentItem) Fail(msg string) {
	c.Errors = append(c.Errors, msg)
	c.Stage = StageFailed
}
