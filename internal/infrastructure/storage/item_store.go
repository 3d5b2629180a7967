package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"digitalwall/internal/domain"
	"digitalwall/internal/ports"
)

// ItemStore persists processed content items and their file payloads into
// Postgres.
type ItemStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ItemStore = (*ItemStore)(nil)

// NewItemStore wires a sql.DB implementation.
func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// StoreItem upserts the item and its enriched record, returning the stored
// id. An id is generated when the item arrives without one.
func (s *ItemStore) StoreItem(ctx context.Context, item *domain.ContentItem) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("item store not connected")
	}

	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}

	enriched, err := json.Marshal(item.Enriched)
	if err != nil {
		return "", fmt.Errorf("marshal enriched record: %w", err)
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := s.builder.
		Insert("content_items").
		Columns("id", "user_id", "content_type", "primary_content",
			"stage", "warnings", "errors", "enriched", "created_at", "updated_at").
		Values(id, nullable(item.UserID), string(item.ContentType), item.PrimaryContent,
			string(item.Stage), pq.StringArray(item.Warnings), pq.StringArray(item.Errors),
			enriched, createdAt, time.Now().UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE
			SET stage = EXCLUDED.stage,
			    warnings = EXCLUDED.warnings,
			    errors = EXCLUDED.errors,
			    enriched = EXCLUDED.enriched,
			    updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build item upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("upsert item: %w", err)
	}

	return id, nil
}

// StoreFiles inserts the uploaded payloads and returns their serving paths.
func (s *ItemStore) StoreFiles(ctx context.Context, itemID string, files []domain.SharedFile) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("item store not connected")
	}
	if len(files) == 0 {
		return nil, nil
	}

	insert := s.builder.
		Insert("content_files").
		Columns("id", "item_id", "name", "mime", "data", "created_at")

	urls := make([]string, len(files))
	now := time.Now().UTC()
	for i, file := range files {
		fileID := uuid.NewString()
		urls[i] = "/files/" + fileID
		insert = insert.Values(fileID, itemID, file.Name, file.MIME, file.Data, now)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build file insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert files: %w", err)
	}

	return urls, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
